// Package reproject implements the Reprojector (C4): the fast gather
// path from a precomputed Transform Grid, and the cold path that
// builds one on the fly, per SPEC_FULL.md §4.4.
package reproject

import (
	"context"
	"fmt"
	"math"

	"github.com/imeteo/radarfusion/internal/proj"
	"github.com/imeteo/radarfusion/internal/radar"
	"github.com/imeteo/radarfusion/internal/radarerr"
	"github.com/imeteo/radarfusion/internal/transformcache"
)

// FastReproject gathers frame's pixel data onto the Reference Grid
// using a precomputed Transform Grid. It is the hot loop: a single pass
// over the destination index arrays, no interpolation, nearest-
// neighbour by construction (the grid itself is nearest-neighbour).
// Accuracy matches the grid's calculate_default_transform origin
// exactly, since the grid was built from the same source footprint.
func FastReproject(grid *transformcache.Grid, frame *radar.Frame) ([]float32, error) {
	if frame.Dims != grid.SrcShape {
		return nil, fmt.Errorf("%w: frame shape %dx%d does not match transform grid's source shape %dx%d",
			radarerr.ErrDecode, frame.Dims.Height, frame.Dims.Width, grid.SrcShape.Height, grid.SrcShape.Width)
	}

	n := grid.DstShape.Height * grid.DstShape.Width
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		r, c := grid.RowIdx[i], grid.ColIdx[i]
		if r < 0 || c < 0 {
			out[i] = float32(math.NaN())
			continue
		}
		out[i] = frame.Data[int(r)*frame.Dims.Width+int(c)]
	}
	return out, nil
}

// ReprojectCold handles a transform-grid cache miss: it builds a grid
// for this single frame's footprint, hands it to the cache for future
// runs (best-effort — a persist failure does not block returning the
// reprojected data), and gathers through it once.
func ReprojectCold(ctx context.Context, cache *transformcache.Cache, sourceName string, frame *radar.Frame, srcProjection proj.Transformer, srcBounds [4]float64, refGrid radar.ReferenceGrid) ([]float32, *transformcache.Grid, error) {
	grid, err := cache.GetOrCompute(ctx, sourceName, frame.Dims, srcProjection, srcBounds, refGrid)
	if err != nil {
		return nil, nil, fmt.Errorf("reproject: building transform grid for %s: %w", sourceName, err)
	}
	data, err := FastReproject(grid, frame)
	if err != nil {
		return nil, grid, err
	}
	return data, grid, nil
}
