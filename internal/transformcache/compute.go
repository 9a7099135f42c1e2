package transformcache

import (
	"fmt"

	"github.com/imeteo/radarfusion/internal/proj"
	"github.com/imeteo/radarfusion/internal/radar"
	"github.com/imeteo/radarfusion/internal/radarerr"
)

// Compute builds a fresh Grid mapping every pixel of the fixed
// Reference Grid back to a source-raster (row, col), or marks it
// out-of-footprint. Grounded on the boundary-sampling approach of
// rasterio's calculate_default_transform (used here to establish the
// source's footprint in Web Mercator) composed with a per-pixel
// nearest-neighbour inverse lookup, matching the two-stage algorithm
// described in SPEC_FULL.md §4.2.
func Compute(sourceName string, srcShape radar.Dimensions, srcProjection proj.Transformer, srcBounds [4]float64, refGrid radar.ReferenceGrid) (*Grid, error) {
	if err := ValidateSourceName(sourceName); err != nil {
		return nil, err
	}
	if err := validateDimensions(srcShape); err != nil {
		return nil, err
	}
	minX, minY, maxX, maxY := srcBounds[0], srcBounds[1], srcBounds[2], srcBounds[3]
	if !(maxX > minX && maxY > minY) {
		return nil, fmt.Errorf("%w: degenerate source bounds %v", radarerr.ErrConfig, srcBounds)
	}

	wm := proj.WebMercator()
	composed := proj.Transformer{
		Forward: func(sx, sy float64) (float64, float64, error) {
			lon, lat, err := srcProjection.Inverse(sx, sy)
			if err != nil {
				return 0, 0, err
			}
			return wm.Forward(lon, lat)
		},
		Inverse: func(mx, my float64) (float64, float64, error) {
			lon, lat, err := wm.Inverse(mx, my)
			if err != nil {
				return 0, 0, err
			}
			return srcProjection.Forward(lon, lat)
		},
	}

	// Only used to derive the quick-overlap footprint bounds carried on
	// the Grid; the per-pixel index arrays below are computed directly
	// against the fixed reference grid.
	footprint, err := proj.CalculateDefaultTransform(composed, srcShape.Width, srcShape.Height, minX, minY, maxX, maxY)
	if err != nil {
		return nil, fmt.Errorf("transformcache: computing %s footprint: %w", sourceName, err)
	}
	footWGS84, footMercator, err := footprintBounds(footprint, wm)
	if err != nil {
		return nil, fmt.Errorf("transformcache: converting %s footprint to WGS84: %w", sourceName, err)
	}

	srcPixelWidth := (maxX - minX) / float64(srcShape.Width)
	srcPixelHeight := (maxY - minY) / float64(srcShape.Height)

	dstH, dstW := refGrid.DstShape.Height, refGrid.DstShape.Width
	mb := refGrid.MercatorBounds
	dstPixelWidth := (mb.MaxX - mb.MinX) / float64(dstW)
	dstPixelHeight := (mb.MaxY - mb.MinY) / float64(dstH)

	rowIdx := make([]int16, dstH*dstW)
	colIdx := make([]int16, dstH*dstW)

	for r := 0; r < dstH; r++ {
		my := mb.MaxY - (float64(r)+0.5)*dstPixelHeight
		for c := 0; c < dstW; c++ {
			mx := mb.MinX + (float64(c)+0.5)*dstPixelWidth
			i := r*dstW + c

			sx, sy, err := composed.Inverse(mx, my)
			if err != nil {
				rowIdx[i], colIdx[i] = -1, -1
				continue
			}
			srcCol := int((sx - minX) / srcPixelWidth)
			srcRow := int((maxY - sy) / srcPixelHeight)
			if srcCol < 0 || srcCol >= srcShape.Width || srcRow < 0 || srcRow >= srcShape.Height {
				rowIdx[i], colIdx[i] = -1, -1
				continue
			}
			rowIdx[i], colIdx[i] = int16(srcRow), int16(srcCol)
		}
	}

	return &Grid{
		RowIdx:         rowIdx,
		ColIdx:         colIdx,
		DstShape:       refGrid.DstShape,
		SrcShape:       srcShape,
		DstWGS84Bounds: footWGS84,
		Mercator:       footMercator,
		SourceName:     sourceName,
		Version:        CacheVersion,
	}, nil
}

// footprintBounds converts the corner pixels of a computed destination
// raster back to both lon/lat and Mercator bounds, for the Grid's
// quick-overlap metadata.
func footprintBounds(r proj.DefaultTransformResult, wm proj.Transformer) (radar.Bounds, radar.MercatorBounds, error) {
	x0, y0 := r.Affine.Apply(0, 0)
	x1, y1 := r.Affine.Apply(float64(r.Width), float64(r.Height))
	lon0, lat0, err := wm.Inverse(x0, y0)
	if err != nil {
		return radar.Bounds{}, radar.MercatorBounds{}, err
	}
	lon1, lat1, err := wm.Inverse(x1, y1)
	if err != nil {
		return radar.Bounds{}, radar.MercatorBounds{}, err
	}
	b := radar.Bounds{West: lon0, East: lon1, South: lat1, North: lat0}
	if b.West > b.East {
		b.West, b.East = b.East, b.West
	}
	if b.South > b.North {
		b.South, b.North = b.North, b.South
	}
	mb := radar.MercatorBounds{MinX: x0, MinY: y1, MaxX: x1, MaxY: y0}
	if mb.MinX > mb.MaxX {
		mb.MinX, mb.MaxX = mb.MaxX, mb.MinX
	}
	if mb.MinY > mb.MaxY {
		mb.MinY, mb.MaxY = mb.MaxY, mb.MinY
	}
	return b, mb, nil
}
