// Package coveragemask generates coverage_mask.png: a map of where a
// source (or the composite) reports data, derived from the finite
// pixels of one recent frame per source. It is a supplemented feature,
// named in spec.md §6's CLI surface but not detailed as a numbered
// component in §4 — grounded on
// original_source/.../processing/coverage_mask.py.
package coveragemask

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/imeteo/radarfusion/internal/radar"
	"github.com/imeteo/radarfusion/internal/transformcache"
)

// Uncovered is the gray, fully opaque pixel painted outside radar
// range; covered pixels stay (0,0,0,0), fully transparent
// (coverage_mask.py's UNCOVERED_COLOR).
var Uncovered = color.RGBA{R: 128, G: 128, B: 128, A: 255}

// FromFrame derives a per-pixel coverage mask from a decoded frame's
// own data: a pixel is "covered" exactly when this decode produced a
// finite value there — nodata sentinels are already converted to NaN
// by the adapter, so no source-specific nodata table is needed here
// (contrast with coverage_mask.py's NODATA_VALUES, which existed only
// because the Python reader worked from raw bytes). ARSO is the one
// provider whose NaN pixels still lie inside coverage; the
// coverage-mask command marks its whole grid covered instead of
// relying on this function alone.
func FromFrame(data []float32, height, width int) []bool {
	covered := make([]bool, height*width)
	for i, v := range data {
		covered[i] = !math.IsNaN(float64(v))
	}
	return covered
}

// Reproject gathers a source coverage mask onto the Reference Grid
// through a precomputed Transform Grid, the same nearest-neighbour
// gather internal/reproject.FastReproject uses for data, specialized to
// booleans: an out-of-footprint destination pixel is never covered.
func Reproject(grid *transformcache.Grid, covered []bool, srcShape radar.Dimensions) ([]bool, error) {
	if len(covered) != srcShape.Height*srcShape.Width {
		return nil, fmt.Errorf("coveragemask: coverage length %d does not match source shape %dx%d", len(covered), srcShape.Height, srcShape.Width)
	}
	n := grid.DstShape.Height * grid.DstShape.Width
	out := make([]bool, n)
	for i := 0; i < n; i++ {
		r, c := grid.RowIdx[i], grid.ColIdx[i]
		if r < 0 || c < 0 {
			continue
		}
		out[i] = covered[int(r)*srcShape.Width+int(c)]
	}
	return out, nil
}

// CombineOR merges src into dst in place (logical OR), matching
// coverage_mask.py's "composite_coverage |= reprojected".
func CombineOR(dst, src []bool) {
	for i, v := range src {
		if v {
			dst[i] = true
		}
	}
}

// Encode renders a boolean coverage grid as an RGBA PNG: transparent
// where covered, opaque gray where not. Encoding PNG itself needs no
// third-party library in this module's reference corpus (see
// internal/pngio's DefaultEncoder for the same reasoning) — only the
// boolean-specific pixel rule lives here rather than reusing
// pngio.Encoder, since a coverage mask has no dBZ value to colour-map.
func Encode(covered []bool, height, width int) ([]byte, error) {
	if len(covered) != height*width {
		return nil, fmt.Errorf("coveragemask: covered length %d does not match %dx%d", len(covered), height, width)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			i := row*width + col
			if !covered[i] {
				img.SetRGBA(col, row, Uncovered)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
