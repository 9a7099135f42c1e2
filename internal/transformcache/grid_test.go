package transformcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imeteo/radarfusion/internal/proj"
	"github.com/imeteo/radarfusion/internal/radar"
)

func testRefGrid() radar.ReferenceGrid {
	wm := proj.WebMercator()
	return radar.NewReferenceGrid(radar.DefaultReferenceBounds, 10000, func(lon, lat float64) (float64, float64) {
		x, y, _ := wm.Forward(lon, lat)
		return x, y
	})
}

func TestValidateSourceName(t *testing.T) {
	assert.NoError(t, ValidateSourceName("dwd"))
	assert.NoError(t, ValidateSourceName("shmu"))
	assert.Error(t, ValidateSourceName(""))
	assert.Error(t, ValidateSourceName("DWD"))
	assert.Error(t, ValidateSourceName("../../etc"))
	assert.Error(t, ValidateSourceName("a-very-very-long-source-name"))
}

func TestKeyFormat(t *testing.T) {
	bounds := [4]float64{0, 0, 1000, 1000}
	k, err := Key("dwd", radar.Dimensions{Height: 100, Width: 100}, &bounds)
	require.NoError(t, err)
	assert.Regexp(t, `^dwd_100x100_[0-9a-f]{8}_v1$`, k)

	k2, err := Key("dwd", radar.Dimensions{Height: 100, Width: 100}, nil)
	require.NoError(t, err)
	assert.Equal(t, "dwd_100x100_v1", k2)
}

func TestComputeProducesInBoundsIndices(t *testing.T) {
	ref := testRefGrid()
	wm := proj.WebMercator()

	srcShape := radar.Dimensions{Height: 50, Width: 50}

	// Build a source footprint covering the whole reference grid in Web
	// Mercator meters so every destination pixel should resolve to an
	// in-range source pixel.
	srcBounds := [4]float64{ref.MercatorBounds.MinX, ref.MercatorBounds.MinY, ref.MercatorBounds.MaxX, ref.MercatorBounds.MaxY}

	identity := proj.Transformer{
		Forward: func(lon, lat float64) (float64, float64, error) {
			return wm.Forward(lon, lat)
		},
		Inverse: func(x, y float64) (float64, float64, error) {
			return wm.Inverse(x, y)
		},
	}

	g, err := Compute("dwd", srcShape, identity, srcBounds, ref)
	require.NoError(t, err)
	assert.Equal(t, ref.DstShape, g.DstShape)
	assert.Equal(t, len(g.RowIdx), ref.DstShape.Height*ref.DstShape.Width)

	inBounds := 0
	for i := range g.RowIdx {
		if g.RowIdx[i] >= 0 && g.ColIdx[i] >= 0 {
			inBounds++
		}
	}
	assert.Greater(t, inBounds, 0)
}

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, nil)
	require.NoError(t, err)

	ref := testRefGrid()
	wm := proj.WebMercator()
	identity := proj.Transformer{
		Forward: func(lon, lat float64) (float64, float64, error) { return wm.Forward(lon, lat) },
		Inverse: func(x, y float64) (float64, float64, error) { return wm.Inverse(x, y) },
	}
	srcBounds := [4]float64{ref.MercatorBounds.MinX, ref.MercatorBounds.MinY, ref.MercatorBounds.MaxX, ref.MercatorBounds.MaxY}
	srcShape := radar.Dimensions{Height: 20, Width: 20}

	ctx := context.Background()
	g1, err := c.GetOrCompute(ctx, "dwd", srcShape, identity, srcBounds, ref)
	require.NoError(t, err)

	// A fresh cache instance pointed at the same directory should load
	// the persisted grid from disk without recomputation, with
	// identical index arrays (SPEC_FULL.md §8 property 2: cache fidelity).
	c2, err := New(dir, nil)
	require.NoError(t, err)
	key, err := Key("dwd", srcShape, &srcBounds)
	require.NoError(t, err)
	g2, ok, err := c2.tiers.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, g1.RowIdx, g2.RowIdx)
	assert.Equal(t, g1.ColIdx, g2.ColIdx)
	assert.Equal(t, g1.SourceName, g2.SourceName)
}

func TestInvalidDimensionsRejected(t *testing.T) {
	ref := testRefGrid()
	wm := proj.WebMercator()
	identity := proj.Transformer{
		Forward: func(lon, lat float64) (float64, float64, error) { return wm.Forward(lon, lat) },
		Inverse: func(x, y float64) (float64, float64, error) { return wm.Inverse(x, y) },
	}
	_, err := Compute("dwd", radar.Dimensions{Height: 0, Width: 10}, identity, [4]float64{0, 0, 1, 1}, ref)
	assert.Error(t, err)
}
