// Package pngio defines the contract this pipeline needs from a PNG
// encoder for per-source and composite exports. spec.md §1 names
// "colormap definition" and "PNG encoding" as out-of-scope external
// collaborators — the core only needs an Encoder seam and a ColorMap
// function to turn a dBZ value into a pixel; DefaultEncoder below is a
// direct image/png (standard library) implementation, since encoding
// PNG itself needs no third-party library in this module's reference
// corpus, only the colour policy is left external.
package pngio

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
)

// ColorMap turns a dBZ value (or NaN for nodata) into an RGBA pixel.
// The concrete colour scheme (e.g. the provider's published radar
// palette) is supplied by the caller — this package only consumes it.
type ColorMap func(dbz float32) color.RGBA

// GrayscaleColorMap is the fallback used when no provider-specific
// palette is supplied: linear dBZ → gray ramp over
// [radar.MinDBZ, radar.MaxDBZ], transparent for NaN.
func GrayscaleColorMap(minDBZ, maxDBZ float64) ColorMap {
	span := maxDBZ - minDBZ
	return func(dbz float32) color.RGBA {
		if math.IsNaN(float64(dbz)) {
			return color.RGBA{}
		}
		v := (float64(dbz) - minDBZ) / span
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		g := uint8(v * 255)
		return color.RGBA{R: g, G: g, B: g, A: 255}
	}
}

// Encoder renders a row-major float32 grid to PNG bytes.
type Encoder interface {
	Encode(data []float32, height, width int, cm ColorMap) ([]byte, error)
}

// DefaultEncoder renders via image/png with no compression-level
// tuning beyond the library default.
type DefaultEncoder struct{}

func (DefaultEncoder) Encode(data []float32, height, width int, cm ColorMap) ([]byte, error) {
	if cm == nil {
		cm = GrayscaleColorMap(-35, 85)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			img.SetRGBA(col, row, cm(data[row*width+col]))
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
