package sources

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSHMUProductURL(t *testing.T) {
	s := NewSHMU(5*time.Second, &fakeODIMReader{}, zerolog.Nop())
	got, err := s.productURL("zmax", "20260731120000")
	if err != nil {
		t.Fatalf("productURL: %v", err)
	}
	want := "https://opendata.shmu.sk/meteorology/weather/radar/composite/skcomp/zmax/20260731/T_PABV22_C_LZIB_20260731120000.hdf"
	if got != want {
		t.Fatalf("productURL() = %q, want %q", got, want)
	}
}

func TestSHMUProductURLUnknownProduct(t *testing.T) {
	s := NewSHMU(5*time.Second, &fakeODIMReader{}, zerolog.Nop())
	if _, err := s.productURL("bogus", "20260731120000"); err == nil {
		t.Fatal("expected error for unknown product")
	}
}

func TestSHMUDecode(t *testing.T) {
	file := &fakeODIMFile{
		attrs: map[string]string{
			"where/projdef":        "+proj=stere +lat_0=90 +lon_0=19",
			"where/LL_lon":         "14.5",
			"where/LL_lat":         "46.0",
			"where/UR_lon":         "23.8",
			"where/UR_lat":         "50.8",
			"dataset1/what/gain":      "0.5",
			"dataset1/what/offset":    "-32.0",
			"dataset1/what/nodata":    "255",
			"dataset1/what/startdate": "20260731",
			"dataset1/what/starttime": "120000",
		},
		height: 2, width: 2,
		data: []float64{40, 255, 0, 64},
	}
	s := NewSHMU(5*time.Second, &fakeODIMReader{file: file}, zerolog.Nop())
	frame, err := s.Decode(context.Background(), "unused")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if frame.Bounds.West != 14.5 || frame.Bounds.North != 50.8 {
		t.Fatalf("Bounds = %+v, want corner-derived 14.5..23.8, 46.0..50.8", frame.Bounds)
	}
	if frame.Timestamp != "20260731120000" {
		t.Fatalf("Timestamp = %q", frame.Timestamp)
	}
	if !math.IsNaN(float64(frame.Data[1])) {
		t.Fatalf("Data[1] = %v, want NaN (nodata)", frame.Data[1])
	}
	if frame.Data[0] != 40*0.5-32 {
		t.Fatalf("Data[0] = %v, want %v", frame.Data[0], 40*0.5-32)
	}
}
