package proj

import "math"

// Affine is a 2D affine transform mapping (col, row) pixel space to
// projected (x, y) space: x = a*col + b*row + c, y = d*col + e*row + f.
// Only axis-aligned (b=d=0) grids occur in this pipeline, but the full
// form is kept so inversion is a single general routine.
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// Apply maps a pixel coordinate to projected space.
func (af Affine) Apply(col, row float64) (x, y float64) {
	return af.A*col + af.B*row + af.C, af.D*col + af.E*row + af.F
}

// Invert returns the affine mapping projected space back to pixel
// space, or ok=false if af is singular.
func (af Affine) Invert() (inv Affine, ok bool) {
	det := af.A*af.E - af.B*af.D
	if det == 0 {
		return Affine{}, false
	}
	ia := af.E / det
	ib := -af.B / det
	id := -af.D / det
	ie := af.A / det
	ic := -(ia*af.C + ib*af.F)
	ifv := -(id*af.C + ie*af.F)
	return Affine{A: ia, B: ib, C: ic, D: id, E: ie, F: ifv}, true
}

// DefaultTransformResult mirrors rasterio's calculate_default_transform
// output: a destination affine and pixel shape that covers the source
// bounds at (approximately) the source's native resolution, reprojected
// into the destination CRS.
type DefaultTransformResult struct {
	Affine Affine
	Width  int
	Height int
}

// CalculateDefaultTransform computes the destination affine and shape
// for reprojecting a source grid (srcWidth x srcHeight, covering
// srcBoundsMinX..MaxX/MinY..MaxY in the source CRS) into the destination
// CRS, given the forward transform from source CRS to destination CRS.
//
// This reimplements the documented algorithm behind rasterio's
// calculate_default_transform: sample points densely along the source
// boundary, transform them to the destination CRS, take the bounding
// box, and derive a resolution that approximately preserves the number
// of source pixels along the longer dimension. No Go library in this
// module's dependency set (nor a common ecosystem package) exposes this
// specific algorithm, so it is implemented directly here — see
// DESIGN.md's internal/proj entry.
func CalculateDefaultTransform(srcToDst Transformer, srcWidth, srcHeight int, srcMinX, srcMinY, srcMaxX, srcMaxY float64) (DefaultTransformResult, error) {
	const samplesPerSide = 21

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)

	sampleEdge := func(x0, y0, x1, y1 float64) error {
		for i := 0; i < samplesPerSide; i++ {
			t := float64(i) / float64(samplesPerSide-1)
			x := x0 + (x1-x0)*t
			y := y0 + (y1-y0)*t
			dx, dy, err := srcToDst.Forward(x, y)
			if err != nil {
				continue // skip unprojectable boundary samples (e.g. poles)
			}
			if dx < minX {
				minX = dx
			}
			if dx > maxX {
				maxX = dx
			}
			if dy < minY {
				minY = dy
			}
			if dy > maxY {
				maxY = dy
			}
		}
		return nil
	}

	_ = sampleEdge(srcMinX, srcMinY, srcMaxX, srcMinY)
	_ = sampleEdge(srcMinX, srcMaxY, srcMaxX, srcMaxY)
	_ = sampleEdge(srcMinX, srcMinY, srcMinX, srcMaxY)
	_ = sampleEdge(srcMaxX, srcMinY, srcMaxX, srcMaxY)

	if math.IsInf(minX, 1) {
		return DefaultTransformResult{}, errTransformEmpty
	}

	// Preserve approximately the source's pixel density: resolution is
	// the source pixel size (in source-CRS units) converted through the
	// same sampled scale factor used for the bounding box.
	srcResX := (srcMaxX - srcMinX) / float64(srcWidth)
	srcResY := (srcMaxY - srcMinY) / float64(srcHeight)
	dstWidthSrcUnits := srcMaxX - srcMinX
	dstHeightSrcUnits := srcMaxY - srcMinY
	scaleX := (maxX - minX) / maxf(dstWidthSrcUnits, 1e-9)
	scaleY := (maxY - minY) / maxf(dstHeightSrcUnits, 1e-9)

	resX := srcResX * scaleX
	resY := srcResY * scaleY
	if resX <= 0 {
		resX = (maxX - minX) / float64(srcWidth)
	}
	if resY <= 0 {
		resY = (maxY - minY) / float64(srcHeight)
	}

	width := int(math.Ceil((maxX - minX) / resX))
	height := int(math.Ceil((maxY - minY) / resY))
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	af := Affine{
		A: (maxX - minX) / float64(width), B: 0, C: minX,
		D: 0, E: -(maxY - minY) / float64(height), F: maxY,
	}

	return DefaultTransformResult{Affine: af, Width: width, Height: height}, nil
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

var errTransformEmpty = errDefaultTransform("calculate_default_transform: no boundary sample could be projected")

type errDefaultTransform string

func (e errDefaultTransform) Error() string { return string(e) }
