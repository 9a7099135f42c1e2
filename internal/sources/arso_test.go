package sources

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/imeteo/radarfusion/internal/radar"
)

func TestParseSRDHeader(t *testing.T) {
	content := "ncell 401 301\noffset 64\nstart 12.0\nslope 3.0\ntime 202607311200\nDATA\n" + strings.Repeat("A", 12)
	header, _ := parseSRDHeader(content)
	if header.intOr("offset", -1) != 64 {
		t.Fatalf("offset = %d, want 64", header.intOr("offset", -1))
	}
	if header.floatOr("start", -1) != 12.0 {
		t.Fatalf("start = %v, want 12.0", header.floatOr("start", -1))
	}
	if got := header["ncell"]; len(got) != 2 || got[0] != "401" || got[1] != "301" {
		t.Fatalf("ncell = %v, want [401 301]", got)
	}
}

func TestParseSRDDataQuantizationAndMasking(t *testing.T) {
	// offset byte (64) means "no precipitation within coverage", not
	// "outside the grid" — the whole 2x2 grid below is inside coverage,
	// but one cell reports no echo.
	width, height, offset := 2, 2, 64
	start, slope := 12.0, 3.0
	dataBytes := []byte{byte(offset), byte(70), byte(80), byte(90)}
	content := "\nDATA\n" + string(dataBytes)
	data, err := parseSRDData(content, width, height, offset, start, slope)
	if err != nil {
		t.Fatalf("parseSRDData: %v", err)
	}
	if len(data) != width*height {
		t.Fatalf("len(data) = %d, want %d", len(data), width*height)
	}
	if !math.IsNaN(float64(data[0])) {
		t.Fatalf("data[0] (offset byte) = %v, want NaN (no-precipitation, not outside-coverage)", data[0])
	}
	want := float32(start + slope*float64(70-offset))
	if data[1] != want {
		t.Fatalf("data[1] = %v, want %v", data[1], want)
	}
}

func TestParseSRDDataPadsShortSections(t *testing.T) {
	width, height, offset := 3, 3, 64
	content := "\nDATA\n" + string([]byte{65, 66})
	data, err := parseSRDData(content, width, height, offset, 12.0, 3.0)
	if err != nil {
		t.Fatalf("parseSRDData: %v", err)
	}
	if len(data) != width*height {
		t.Fatalf("len(data) = %d, want %d (padded)", len(data), width*height)
	}
}

func TestARSODecodeSRD(t *testing.T) {
	content := "ncell 2 2\noffset 64\nstart 12.0\nslope 3.0\ntime 20260731120000\nDATA\n" +
		string([]byte{64, 70, 80, 90})
	path, err := writeTempFile("arso-test", []byte(content))
	if err != nil {
		t.Fatalf("writeTempFile: %v", err)
	}
	a := NewARSO(newFakeHTTPClient(), zerolog.Nop())
	frame, err := a.Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if frame.Timestamp != "20260731120000" {
		t.Fatalf("Timestamp = %q, want 20260731120000", frame.Timestamp)
	}
	if frame.Dims.Height != 2 || frame.Dims.Width != 2 {
		t.Fatalf("Dims = %+v, want 2x2", frame.Dims)
	}
	if frame.Projection.Kind != radar.ProjectionLCC {
		t.Fatalf("Projection.Kind = %v, want ProjectionLCC", frame.Projection.Kind)
	}
	if !math.IsNaN(float64(frame.Data[0])) {
		t.Fatalf("Data[0] (offset byte) = %v, want NaN", frame.Data[0])
	}
}

// TestARSODecodeExtentOnlyMatchesDecodeWithoutPixelData exercises the
// metadata-only contract: DecodeExtentOnly must report the same grid
// shape and projection as Decode without ever running parseSRDData
// over the byte-packed payload.
func TestARSODecodeExtentOnlyMatchesDecodeWithoutPixelData(t *testing.T) {
	content := "ncell 2 2\noffset 64\nstart 12.0\nslope 3.0\ntime 20260731120000\nDATA\n" +
		string([]byte{64, 70, 80, 90})
	path, err := writeTempFile("arso-test", []byte(content))
	if err != nil {
		t.Fatalf("writeTempFile: %v", err)
	}
	a := NewARSO(newFakeHTTPClient(), zerolog.Nop())

	extent, err := a.DecodeExtentOnly(context.Background(), path)
	if err != nil {
		t.Fatalf("DecodeExtentOnly: %v", err)
	}
	if extent.Dimensions.Height != 2 || extent.Dimensions.Width != 2 {
		t.Fatalf("Dimensions = %+v, want 2x2", extent.Dimensions)
	}
	if extent.Projection.Kind != radar.ProjectionLCC {
		t.Fatalf("Projection.Kind = %v, want ProjectionLCC", extent.Projection.Kind)
	}
}
