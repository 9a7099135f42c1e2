// Package radar defines the canonical in-memory radar frame that every
// source adapter decodes into and every downstream stage (reprojector,
// compositor, cache) consumes. See SPEC_FULL.md §3.
package radar

import (
	"fmt"
	"math"
)

// MinDBZ and MaxDBZ bound the valid reflectivity range. Any finite pixel
// outside this range is a decode bug, not legitimate data.
const (
	MinDBZ = -35.0
	MaxDBZ = 85.0
)

// Dimensions is a (height, width) pair, row-major like the rest of the
// pipeline.
type Dimensions struct {
	Height int
	Width  int
}

// Bounds is a WGS84 geographic extent.
type Bounds struct {
	West  float64
	East  float64
	South float64
	North float64
}

// ProjectionKind tags which variant of Projection is populated.
type ProjectionKind int

const (
	// ProjectionWGS84 marks a pure lat/lon grid (netCDF OMSZ, or a
	// degenerate ODIM file with no projected CRS).
	ProjectionWGS84 ProjectionKind = iota
	// ProjectionProjected marks an ODIM stereographic/Mercator source
	// (DWD, SHMU, CHMI, IMGW).
	ProjectionProjected
	// ProjectionLCC marks a Lambert Conformal Conic source (ARSO).
	ProjectionLCC
)

func (k ProjectionKind) String() string {
	switch k {
	case ProjectionWGS84:
		return "wgs84"
	case ProjectionProjected:
		return "projected"
	case ProjectionLCC:
		return "lcc"
	default:
		return "unknown"
	}
}

// GridParams carries the affine parameters needed to build a source
// affine transform for a projected or LCC grid. Fields that don't apply
// to a given projection are left zero.
type GridParams struct {
	// OriginX, OriginY is the projected coordinate of the grid's
	// upper-left pixel corner.
	OriginX, OriginY float64
	// PixelWidth, PixelHeight are the projected-unit size of one pixel.
	// PixelHeight is conventionally negative (rows increase southward).
	PixelWidth, PixelHeight float64
}

// Projection is a tagged variant describing how a frame's pixel grid
// maps to geographic space. Exactly one of the payload fields is
// meaningful, selected by Kind — no dynamic string dispatch happens at
// reprojection time (Design Notes, SPEC_FULL.md §9).
type Projection struct {
	Kind ProjectionKind

	// Proj4 is populated for Projected and LCC; it is the proj4
	// definition string read from the provider (ODIM `projdef`, or the
	// fixed ARSO LCC definition).
	Proj4 string

	// CornerWGS84, if non-nil, are the four corner points in WGS84 as
	// reported by the provider — used as a fallback and for side-car
	// metadata, never as the authoritative geometry source (spec.md
	// §4.1's DWD rule: don't linearly interpolate corner lat/lon for
	// data that lives on a projected grid).
	CornerWGS84 *Bounds

	Grid GridParams
}

// Metadata carries descriptive, non-geometric frame attributes.
type Metadata struct {
	Product        string
	Quantity       string
	Source         string
	Units          string
	NodataSentinel float64
	Gain           float64
	Offset         float64
}

// Timestamp is always the normalized 14-digit YYYYMMDDHHMMSS form.
type Timestamp string

// Frame is the canonical decoded radar product: one provider, one
// product, one timestamp.
type Frame struct {
	// Data is row-major height*width float32, units dBZ, NaN for
	// nodata. Invariant: no element equals Metadata.NodataSentinel —
	// the decoder must have already converted sentinels to NaN.
	Data []float32

	Dims       Dimensions
	Bounds     Bounds
	Projection Projection
	Metadata   Metadata
	Timestamp  Timestamp
}

// At returns the value at (row, col).
func (f *Frame) At(row, col int) float32 {
	return f.Data[row*f.Dims.Width+col]
}

// Validate checks the invariants from SPEC_FULL.md §3. Decoders and the
// Processed-Data Cache do not call it; the Orchestrator's decode pass
// and the coverage-mask command call it on each freshly decoded Frame.
func (f *Frame) Validate() error {
	if len(f.Data) != f.Dims.Height*f.Dims.Width {
		return fmt.Errorf("radar: data length %d does not match dimensions %dx%d", len(f.Data), f.Dims.Height, f.Dims.Width)
	}
	if len(f.Timestamp) != 14 {
		return fmt.Errorf("radar: timestamp %q is not 14 digits", f.Timestamp)
	}
	for _, ts := range f.Timestamp {
		if ts < '0' || ts > '9' {
			return fmt.Errorf("radar: timestamp %q contains non-digit characters", f.Timestamp)
		}
	}
	for i, v := range f.Data {
		if math.IsNaN(float64(v)) {
			continue
		}
		if v < MinDBZ || v > MaxDBZ {
			return fmt.Errorf("radar: pixel %d value %f outside valid range [%g, %g]", i, v, MinDBZ, MaxDBZ)
		}
	}
	return nil
}

// ClipAndMask clips every finite value to [MinDBZ, MaxDBZ] and converts
// any pixel exactly equal to nodataSentinel to NaN. Decoders call
// this once after applying gain/offset scaling.
func ClipAndMask(data []float32, nodataSentinel float64, hasSentinel bool) {
	for i, v := range data {
		if hasSentinel && float64(v) == nodataSentinel {
			data[i] = float32(math.NaN())
			continue
		}
		if math.IsNaN(float64(v)) {
			continue
		}
		if v < MinDBZ {
			data[i] = MinDBZ
		} else if v > MaxDBZ {
			data[i] = MaxDBZ
		}
	}
}
