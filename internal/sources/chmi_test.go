package sources

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"
)

func TestCHMIProductURL(t *testing.T) {
	c := NewCHMI(newFakeHTTPClient(), &fakeODIMReader{}, zerolog.Nop())
	got, err := c.productURL("20260731120000")
	if err != nil {
		t.Fatalf("productURL: %v", err)
	}
	want := "https://opendata.chmi.cz/meteorology/weather/radar/composite/maxz/hdf5/T_PABV23_C_OKPR_20260731120000.hdf"
	if got != want {
		t.Fatalf("productURL() = %q, want %q", got, want)
	}
}

func TestCHMIProductURLRejectsBadTimestamp(t *testing.T) {
	c := NewCHMI(newFakeHTTPClient(), &fakeODIMReader{}, zerolog.Nop())
	if _, err := c.productURL("2026"); err == nil {
		t.Fatal("expected error for non-14-digit timestamp")
	}
}

func TestCHMIDecodeUsesNativeProjdef(t *testing.T) {
	// CHMI's WGS84 corners look regular but the grid sits on a Mercator
	// projection with nonzero false easting/northing; Decode must carry
	// the native projdef through, not synthesize one from the corners.
	file := &fakeODIMFile{
		attrs: map[string]string{
			"where/projdef":           "+proj=merc +lat_ts=0 +lon_0=0 +x_0=-1254222.15 +y_0=-6702777.85",
			"where/LL_lon":            "11.8",
			"where/LL_lat":            "47.8",
			"where/UR_lon":            "20.0",
			"where/UR_lat":            "51.3",
			"dataset1/what/gain":      "0.5",
			"dataset1/what/offset":    "-32.0",
			"dataset1/what/nodata":    "255",
			"dataset1/what/startdate": "20260731",
			"dataset1/what/starttime": "123000",
		},
		height: 1, width: 2,
		data: []float64{255, 30},
	}
	c := NewCHMI(newFakeHTTPClient(), &fakeODIMReader{file: file}, zerolog.Nop())
	frame, err := c.Decode(context.Background(), "unused")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if frame.Projection.Proj4 != "+proj=merc +lat_ts=0 +lon_0=0 +x_0=-1254222.15 +y_0=-6702777.85" {
		t.Fatalf("Projection.Proj4 = %q, want native projdef carried through", frame.Projection.Proj4)
	}
	if !math.IsNaN(float64(frame.Data[0])) {
		t.Fatalf("Data[0] = %v, want NaN (nodata)", frame.Data[0])
	}
	if frame.Timestamp != "20260731123000" {
		t.Fatalf("Timestamp = %q", frame.Timestamp)
	}
}
