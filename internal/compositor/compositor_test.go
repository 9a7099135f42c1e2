package compositor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imeteo/radarfusion/internal/radar"
)

func smallGrid() radar.ReferenceGrid {
	return radar.ReferenceGrid{
		WGS84Bounds:    radar.DefaultReferenceBounds,
		ResolutionM:    500,
		MercatorBounds: radar.MercatorBounds{MinX: 0, MinY: 0, MaxX: 4, MaxY: 4},
		DstShape:       radar.Dimensions{Height: 2, Width: 2},
	}
}

func nan() float32 { return float32(math.NaN()) }

func TestAddSourceNaNNeverDisplacesFinite(t *testing.T) {
	c := New(smallGrid())
	require.NoError(t, c.AddSource("dwd", []float32{1, nan(), nan(), 4}))
	require.NoError(t, c.AddSource("shmu", []float32{nan(), 2, 3, nan()}))

	comp := c.GetComposite()
	assert.Equal(t, []float32{1, 2, 3, 4}, comp.Data)
	assert.Equal(t, 4, comp.ValidPixels)
	assert.Equal(t, 4, comp.TotalPixels)
	assert.Equal(t, 100.0, comp.CoveragePercent)
	assert.Equal(t, []string{"dwd", "shmu"}, comp.Sources)
}

func TestAddSourceIsOrderIndependent(t *testing.T) {
	a := New(smallGrid())
	require.NoError(t, a.AddSource("dwd", []float32{1, 5, nan(), 2}))
	require.NoError(t, a.AddSource("shmu", []float32{3, 1, 9, nan()}))
	require.NoError(t, a.AddSource("chmi", []float32{nan(), nan(), 1, 8}))

	b := New(smallGrid())
	require.NoError(t, b.AddSource("chmi", []float32{nan(), nan(), 1, 8}))
	require.NoError(t, b.AddSource("dwd", []float32{1, 5, nan(), 2}))
	require.NoError(t, b.AddSource("shmu", []float32{3, 1, 9, nan()}))

	assert.Equal(t, a.GetComposite().Data, b.GetComposite().Data)
}

func TestAddSourceRejectsShapeMismatch(t *testing.T) {
	c := New(smallGrid())
	err := c.AddSource("dwd", []float32{1, 2, 3})
	assert.Error(t, err)
}

func TestClearCacheReleasesState(t *testing.T) {
	c := New(smallGrid())
	require.NoError(t, c.AddSource("dwd", []float32{1, 2, 3, 4}))
	c.ClearCache()
	assert.Nil(t, c.data)
	assert.Nil(t, c.sources)
}

func TestAllNaNGivesZeroCoverage(t *testing.T) {
	c := New(smallGrid())
	comp := c.GetComposite()
	assert.Equal(t, 0, comp.ValidPixels)
	assert.Equal(t, 0.0, comp.CoveragePercent)
}
