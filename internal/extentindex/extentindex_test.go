package extentindex

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/imeteo/radarfusion/internal/radar"
)

func TestBuildSourceWithMercator(t *testing.T) {
	bounds := radar.Bounds{West: 2.5, East: 26.4, South: 44.0, North: 56.2}
	mercator := &radar.MercatorBounds{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4}
	grid := radar.Dimensions{Height: 100, Width: 200}

	got := BuildSource("dwd", "germany", bounds, "projected", grid, 500, mercator)

	want := Source{
		Name:        "dwd",
		Country:     "germany",
		Extent:      Extent{West: 2.5, East: 26.4, South: 44.0, North: 56.2},
		Projection:  "projected",
		GridSize:    [2]int{100, 200},
		ResolutionM: 500,
		Mercator:    &MercatorExtent{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("BuildSource mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteFileThenReadIndexRoundTrips(t *testing.T) {
	bounds := radar.Bounds{West: 16.8, East: 22.6, South: 45.5, North: 49.6}
	src := BuildSource("arso", "slovenia", bounds, "lcc", radar.Dimensions{Height: 50, Width: 60}, 1000, nil)
	idx := NewIndex(src, "2026-07-31T00:00:00Z")

	path := filepath.Join(t.TempDir(), "extent", "arso.json")
	if err := WriteFile(path, idx); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := ReadIndex(path)
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if diff := cmp.Diff(idx, got); diff != "" {
		t.Fatalf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestNewCombinedCarriesEverySource(t *testing.T) {
	sources := []Source{
		BuildSource("dwd", "germany", radar.Bounds{}, "projected", radar.Dimensions{}, 500, nil),
		BuildSource("omsz", "hungary", radar.Bounds{}, "wgs84", radar.Dimensions{}, 1000, nil),
	}
	combined := NewCombined(sources, "2026-07-31T00:00:00Z")

	if diff := cmp.Diff(sources, combined.Sources); diff != "" {
		t.Fatalf("Combined.Sources mismatch (-want +got):\n%s", diff)
	}
	if combined.Metadata.Version != SchemaVersion {
		t.Fatalf("expected schema version %q, got %q", SchemaVersion, combined.Metadata.Version)
	}
}
