package sources

import (
	"context"
	"math"
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	"github.com/imeteo/radarfusion/internal/httpfetch"
)

func TestIMGWTimestampFromFilename(t *testing.T) {
	got := imgwTimestampFromFilename("20260731053000 00dBZ.cmax.h5")
	if got != "20260731053000" {
		t.Fatalf("imgwTimestampFromFilename() = %q, want 20260731053000", got)
	}
}

func TestIMGWTimestampFromFilenameRejectsMalformed(t *testing.T) {
	if got := imgwTimestampFromFilename("not-a-radar-file.txt"); got != "" {
		t.Fatalf("expected empty string for malformed filename, got %q", got)
	}
}

func TestIMGWListAvailableTimestampsParsesJSON(t *testing.T) {
	client := newFakeHTTPClient()
	i := NewIMGW(client, &fakeODIMReader{}, zerolog.Nop())
	body := []byte(`[{"file":"20260731120000 00dBZ.cmax.h5"},{"file":"readme.txt"},{"file":"20260731121500 00dBZ.cmax.h5"}]`)
	client.responses[i.apiURL] = &httpfetch.Response{StatusCode: 200, Body: body, Header: http.Header{}}

	got, err := i.ListAvailableTimestamps(context.Background(), 0, nil, nil, nil)
	if err != nil {
		t.Fatalf("ListAvailableTimestamps: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d timestamps, want 2: %v", len(got), got)
	}
}

func TestIMGWDownloadRejectsHTMLAsPermanent(t *testing.T) {
	client := newFakeHTTPClient()
	i := NewIMGW(client, &fakeODIMReader{}, zerolog.Nop())
	url := i.productURL("20260731120000")
	h := http.Header{}
	h.Set("Content-Type", "text/html; charset=utf-8")
	client.responses[url] = &httpfetch.Response{StatusCode: 200, Body: []byte("<html>not found</html>"), Header: h}

	results, err := i.Download(context.Background(), []string{"20260731120000"}, nil)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if len(results) != 1 || results[0].Err == nil {
		t.Fatalf("expected a permanent error for HTML response, got %+v", results)
	}
}

func TestIMGWDecodeReadsScalingFromDataset1What(t *testing.T) {
	file := &fakeODIMFile{
		attrs: map[string]string{
			"where/projdef":           "+proj=stere +lat_0=90 +lon_0=19",
			"where/LL_lon":            "13.8",
			"where/LL_lat":            "48.9",
			"where/UR_lon":            "24.3",
			"where/UR_lat":            "55.0",
			"dataset1/what/gain":      "0.5",
			"dataset1/what/offset":    "-32.0",
			"dataset1/what/nodata":    "0",
			"dataset1/what/startdate": "20260731",
			"dataset1/what/starttime": "120000",
		},
		height: 1, width: 2,
		data: []float64{0, 80},
	}
	i := NewIMGW(newFakeHTTPClient(), &fakeODIMReader{file: file}, zerolog.Nop())
	frame, err := i.Decode(context.Background(), "unused")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if frame.Data[1] != float32(80*0.5-32) {
		t.Fatalf("Data[1] = %v, want %v", frame.Data[1], 80*0.5-32)
	}
	if !math.IsNaN(float64(frame.Data[0])) {
		t.Fatalf("Data[0] = %v, want NaN (nodata=0 scaled to -32)", frame.Data[0])
	}
}
