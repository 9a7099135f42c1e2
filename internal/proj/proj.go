// Package proj wraps github.com/ctessum/geom/proj for the projection
// families this pipeline needs, and adds the one family that vendored
// library doesn't register: polar stereographic (DWD). See DESIGN.md's
// internal/proj entry for the grounding.
package proj

import (
	"fmt"
	"math"

	gproj "github.com/ctessum/geom/proj"
)

const degToRad = math.Pi / 180.0
const radToDeg = 180.0 / math.Pi

// WebMercatorEarthRadius is the spherical radius (meters) EPSG:3857 uses
// for its pseudo-Mercator projection.
const WebMercatorEarthRadius = 6378137.0

// Transformer converts between (lon, lat) in WGS84 degrees and (x, y) in
// the target projected coordinate system, in both directions.
type Transformer struct {
	Forward func(lon, lat float64) (x, y float64, err error)
	Inverse func(x, y float64) (lon, lat float64, err error)
}

// LonLatToMercator converts WGS84 degrees to Web Mercator (EPSG:3857)
// meters, ported from original_source/.../core/base.py's
// lonlat_to_mercator.
func LonLatToMercator(lon, lat float64) (x, y float64) {
	x = lon * 20037508.34 / 180.0
	y = math.Log(math.Tan((90.0+lat)*math.Pi/360.0)) / (math.Pi / 180.0)
	y = y * 20037508.34 / 180.0
	return x, y
}

// MercatorToLonLat converts Web Mercator (EPSG:3857) meters to WGS84
// degrees, the inverse of LonLatToMercator.
func MercatorToLonLat(x, y float64) (lon, lat float64) {
	lon = x / 20037508.34 * 180.0
	lat = math.Atan(math.Exp(y/20037508.34*math.Pi/180.0))*360.0/math.Pi - 90.0
	return lon, lat
}

// ForProj4 builds a Transformer for a proj4 definition string, using the
// vendored projection family (Mercator, Lambert Conformal Conic, and
// friends) where ctessum/geom/proj registers one, and our own polar
// stereographic implementation otherwise (see Stereographic below).
func ForProj4(proj4 string) (Transformer, error) {
	if isStereographic(proj4) {
		return stereographicFromProj4(proj4)
	}
	sr, err := gproj.Parse(proj4)
	if err != nil {
		return Transformer{}, fmt.Errorf("proj: parsing %q: %w", proj4, err)
	}
	fwd, inv, err := sr.Transformers()
	if err != nil {
		return Transformer{}, fmt.Errorf("proj: building transformers for %q: %w", proj4, err)
	}
	return Transformer{
		Forward: func(lon, lat float64) (float64, float64, error) {
			return fwd(lon*degToRad, lat*degToRad)
		},
		Inverse: func(x, y float64) (float64, float64, error) {
			lon, lat, err := inv(x, y)
			if err != nil {
				return 0, 0, err
			}
			return lon * radToDeg, lat * radToDeg, nil
		},
	}, nil
}

// WebMercator returns a Transformer between WGS84 degrees and EPSG:3857
// meters, built from LonLatToMercator/MercatorToLonLat directly (no
// proj4 string parsing needed — it's a closed-form pseudo-Mercator).
func WebMercator() Transformer {
	return Transformer{
		Forward: func(lon, lat float64) (float64, float64, error) {
			x, y := LonLatToMercator(lon, lat)
			return x, y, nil
		},
		Inverse: func(x, y float64) (float64, float64, error) {
			lon, lat := MercatorToLonLat(x, y)
			return lon, lat, nil
		},
	}
}
