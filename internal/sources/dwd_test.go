package sources

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/imeteo/radarfusion/internal/radar"
)

func TestDWDProductURL(t *testing.T) {
	d := NewDWD(newFakeHTTPClient(), &fakeODIMReader{}, zerolog.Nop())
	got := d.productURL("dmax", "20260731120000")
	want := "https://opendata.dwd.de/weather/radar/composite/dmax/composite_dmax_20260731120000-hd5"
	if got != want {
		t.Fatalf("productURL() = %q, want %q", got, want)
	}
}

func TestDWDProductURLLatestSentinel(t *testing.T) {
	d := NewDWD(newFakeHTTPClient(), &fakeODIMReader{}, zerolog.Nop())
	got := d.productURL("dmax", "LATEST")
	want := "https://opendata.dwd.de/weather/radar/composite/dmax/composite_dmax_LATEST-hd5"
	if got != want {
		t.Fatalf("productURL(LATEST) = %q, want %q", got, want)
	}
}

func TestDWDDecodeUsesProjdefNotCornerInterpolation(t *testing.T) {
	file := &fakeODIMFile{
		attrs: map[string]string{
			"where/projdef":     "+proj=stere +lat_0=90 +lon_0=10",
			"where/LL_lon":      "0.0",
			"where/LL_lat":      "45.0",
			"where/UR_lon":      "15.0",
			"where/UR_lat":      "55.0",
			"what/date":         "20260731",
			"what/time":         "120000",
			"dataset1/what/gain":   "0.5",
			"dataset1/what/offset": "-32.0",
			"dataset1/what/nodata": "255",
		},
		height: 2, width: 2,
		data: []float64{10, 255, 20, 0},
	}
	d := NewDWD(newFakeHTTPClient(), &fakeODIMReader{file: file}, zerolog.Nop())
	frame, err := d.Decode(context.Background(), "unused")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if frame.Projection.Proj4 != "+proj=stere +lat_0=90 +lon_0=10" {
		t.Fatalf("Projection.Proj4 = %q, want the native projdef", frame.Projection.Proj4)
	}
	if frame.Projection.Kind != 1 { // ProjectionProjected
		t.Fatalf("Projection.Kind = %v, want ProjectionProjected", frame.Projection.Kind)
	}
	if frame.Timestamp != "20260731120000" {
		t.Fatalf("Timestamp = %q, want 20260731120000", frame.Timestamp)
	}
	// raw=255 -> nodata -> NaN; raw=10 -> 10*0.5-32 = -27
	if frame.Data[0] != -27 {
		t.Fatalf("Data[0] = %v, want -27", frame.Data[0])
	}
	if !math.IsNaN(float64(frame.Data[1])) {
		t.Fatalf("Data[1] = %v, want NaN (nodata)", frame.Data[1])
	}
}
