package coveragemask

import (
	"bytes"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imeteo/radarfusion/internal/radar"
	"github.com/imeteo/radarfusion/internal/transformcache"
)

func TestFromFrameMarksOnlyFiniteValuesCovered(t *testing.T) {
	nan := float32(math.NaN())
	data := []float32{1, nan, 3, nan}
	covered := FromFrame(data, 2, 2)
	assert.Equal(t, []bool{true, false, true, false}, covered)
}

func TestCombineORIsLogicalOr(t *testing.T) {
	dst := []bool{true, false, false, false}
	src := []bool{false, true, false, true}
	CombineOR(dst, src)
	assert.Equal(t, []bool{true, true, false, true}, dst)
}

func TestReprojectGathersThroughGridAndMarksOutOfFootprintUncovered(t *testing.T) {
	grid := &transformcache.Grid{
		RowIdx:   []int16{0, 1, -1, 0},
		ColIdx:   []int16{0, 1, -1, 1},
		DstShape: radar.Dimensions{Height: 2, Width: 2},
		SrcShape: radar.Dimensions{Height: 2, Width: 2},
	}
	covered := []bool{true, false, false, true} // src row-major 2x2

	out, err := Reproject(grid, covered, radar.Dimensions{Height: 2, Width: 2})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, false, false}, out)
}

func TestReprojectRejectsMismatchedLength(t *testing.T) {
	grid := &transformcache.Grid{DstShape: radar.Dimensions{Height: 1, Width: 1}}
	_, err := Reproject(grid, []bool{true}, radar.Dimensions{Height: 2, Width: 2})
	assert.Error(t, err)
}

func TestEncodeProducesValidPNGWithTransparentCoveredPixels(t *testing.T) {
	covered := []bool{true, false, true, false}
	data, err := Encode(covered, 2, 2)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())

	_, _, _, a := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0), a, "covered pixel must be fully transparent")
	_, _, _, a = img.At(1, 0).RGBA()
	assert.NotEqual(t, uint32(0), a, "uncovered pixel must be opaque")
}

func TestEncodeRejectsMismatchedLength(t *testing.T) {
	_, err := Encode([]bool{true}, 2, 2)
	assert.Error(t, err)
}
