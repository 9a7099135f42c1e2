// Package compositor implements the Compositor (C5): a NaN-aware
// elementwise-maximum accumulator over the Reference Grid, per
// SPEC_FULL.md §4.5.
package compositor

import (
	"fmt"
	"math"

	"github.com/imeteo/radarfusion/internal/radar"
)

// Composite is the output of get_composite(): the merged data array
// plus the bookkeeping fields named in spec.md §4.5.
type Composite struct {
	Data            []float32
	Extent          radar.Bounds
	MercatorBounds  radar.MercatorBounds
	ResolutionM     float64
	GridSize        radar.Dimensions
	Sources         []string
	CoveragePercent float64
	ValidPixels     int
	TotalPixels     int
}

// Compositor accumulates reprojected source frames onto the Reference
// Grid via NaN-aware elementwise maximum. The zero value is not usable;
// build with New.
type Compositor struct {
	grid    radar.ReferenceGrid
	data    []float32
	sources []string
}

// New allocates a Compositor state shaped like grid, initialised to
// NaN.
func New(grid radar.ReferenceGrid) *Compositor {
	n := grid.DstShape.Height * grid.DstShape.Width
	data := make([]float32, n)
	nan := float32(math.NaN())
	for i := range data {
		data[i] = nan
	}
	return &Compositor{grid: grid, data: data}
}

// fmax implements the merge rule from spec.md §4.5: fmax(NaN, x) = x,
// fmax(x, NaN) = x, fmax(NaN, NaN) = NaN, otherwise the ordinary
// maximum. This is commutative and associative, so AddSource's results
// are independent of call order.
func fmax(a, b float32) float32 {
	if math.IsNaN(float64(a)) {
		return b
	}
	if math.IsNaN(float64(b)) {
		return a
	}
	if a > b {
		return a
	}
	return b
}

// AddSource merges a reprojected frame (already gathered onto the
// Reference Grid — see internal/reproject) into the accumulator.
// Re-adding the same source name is allowed and simply merges again,
// since max is idempotent for identical data and otherwise behaves the
// same as any other pair of frames.
func (c *Compositor) AddSource(sourceName string, reprojected []float32) error {
	if len(reprojected) != len(c.data) {
		return errShapeMismatch(len(reprojected), len(c.data))
	}
	for i, v := range reprojected {
		c.data[i] = fmax(c.data[i], v)
	}
	c.sources = append(c.sources, sourceName)
	return nil
}

// GetComposite snapshots the current accumulator state.
func (c *Compositor) GetComposite() Composite {
	valid := 0
	for _, v := range c.data {
		if !math.IsNaN(float64(v)) {
			valid++
		}
	}
	total := len(c.data)
	out := make([]float32, total)
	copy(out, c.data)

	coverage := 0.0
	if total > 0 {
		coverage = 100.0 * float64(valid) / float64(total)
	}

	sources := make([]string, len(c.sources))
	copy(sources, c.sources)

	return Composite{
		Data:            out,
		Extent:          c.grid.WGS84Bounds,
		MercatorBounds:  c.grid.MercatorBounds,
		ResolutionM:     c.grid.ResolutionM,
		GridSize:        c.grid.DstShape,
		Sources:         sources,
		CoveragePercent: coverage,
		ValidPixels:     valid,
		TotalPixels:     total,
	}
}

// ClearCache releases accumulator state, matching spec.md §4.5's
// clear_cache(); the Compositor must not be reused after this call.
func (c *Compositor) ClearCache() {
	c.data = nil
	c.sources = nil
}

type shapeMismatchError struct {
	got, want int
}

func errShapeMismatch(got, want int) error {
	return &shapeMismatchError{got: got, want: want}
}

func (e *shapeMismatchError) Error() string {
	return fmt.Sprintf("compositor: reprojected frame length %d does not match reference grid size %d", e.got, e.want)
}
