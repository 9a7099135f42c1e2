// Package extentindex builds and persists extent_index.json, the
// per-source (and per-composite) geometry manifest named in spec.md
// §6. It is a supplemented feature: present in the original
// implementation's utils/extent_loader.py, named in the CLI surface,
// but not detailed as a numbered component in spec.md §4 — grounded
// directly on that file's read/write/merge behavior.
package extentindex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/imeteo/radarfusion/internal/radar"
)

// SchemaVersion is written into every extent_index.json's
// metadata.version field.
const SchemaVersion = "1.0"

// Extent is the WGS84 rectangle plus source geometry recorded for one
// source (spec.md §6's extent_index.json schema).
type Extent struct {
	West  float64 `json:"west"`
	East  float64 `json:"east"`
	South float64 `json:"south"`
	North float64 `json:"north"`
}

// MercatorExtent carries the Web Mercator rectangle alongside the WGS84
// one, present only when the source's geometry was derived through the
// Reference Grid's Mercator affine (spec.md §6: "coordinate system
// rule — bounds written to side-cars must derive from the Mercator
// destination affine, never recomputed independently").
type MercatorExtent struct {
	MinX, MinY, MaxX, MaxY float64
}

// Metadata is the shared header every extent_index.json carries.
type Metadata struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Version        string `json:"version"`
	Generated      string `json:"generated"`
	CoordinateSystem string `json:"coordinate_system"`
}

// Source describes one provider's geometry, the "source" object in the
// schema named in spec.md §6.
type Source struct {
	Name        string          `json:"name"`
	Country     string          `json:"country"`
	Extent      Extent          `json:"extent"`
	Projection  string          `json:"projection"`
	GridSize    [2]int          `json:"grid_size"` // [height, width]
	ResolutionM float64         `json:"resolution_m"`
	Mercator    *MercatorExtent `json:"mercator,omitempty"`
}

// Index is the full extent_index.json document for a single source.
type Index struct {
	Metadata Metadata `json:"metadata"`
	Source   Source   `json:"source"`
}

// Combined is radar_extent_combined.json, produced for `extent --source
// all` (spec.md §6).
type Combined struct {
	Metadata Metadata `json:"metadata"`
	Sources  []Source `json:"sources"`
}

// BuildSource assembles one source's Source entry.
func BuildSource(name, country string, bounds radar.Bounds, projectionKind string, gridSize radar.Dimensions, resolutionM float64, mercator *radar.MercatorBounds) Source {
	s := Source{
		Name:        name,
		Country:     country,
		Extent:      Extent{West: bounds.West, East: bounds.East, South: bounds.South, North: bounds.North},
		Projection:  projectionKind,
		GridSize:    [2]int{gridSize.Height, gridSize.Width},
		ResolutionM: resolutionM,
	}
	if mercator != nil {
		s.Mercator = &MercatorExtent{MinX: mercator.MinX, MinY: mercator.MinY, MaxX: mercator.MaxX, MaxY: mercator.MaxY}
	}
	return s
}

// NewIndex wraps source in a single-source Index. generated is an
// RFC3339 timestamp, passed in rather than computed here since this
// package must stay free of wall-clock reads to keep it trivially
// testable.
func NewIndex(source Source, generated string) Index {
	return Index{
		Metadata: Metadata{
			Title:            fmt.Sprintf("%s radar extent", source.Name),
			Description:      "Geographic extent and grid geometry for this radar source",
			Version:          SchemaVersion,
			Generated:        generated,
			CoordinateSystem: "EPSG:4326",
		},
		Source: source,
	}
}

func NewCombined(sources []Source, generated string) Combined {
	return Combined{
		Metadata: Metadata{
			Title:            "Combined radar extents",
			Description:      "Geographic extent and grid geometry for every configured radar source",
			Version:          SchemaVersion,
			Generated:        generated,
			CoordinateSystem: "EPSG:4326",
		},
		Sources: sources,
	}
}

// WriteFile marshals v (an Index or Combined) as indented JSON to path,
// creating parent directories as needed.
func WriteFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("extentindex: creating directory for %s: %w", path, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("extentindex: marshaling %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadIndex loads a previously written extent_index.json.
func ReadIndex(path string) (Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Index{}, err
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return Index{}, fmt.Errorf("extentindex: parsing %s: %w", path, err)
	}
	return idx, nil
}
