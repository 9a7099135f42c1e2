package proj

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// isStereographic reports whether a proj4 definition string names a
// stereographic projection family. ctessum/geom/proj registers aea,
// krovak, lcc, longlat, merc, tmerc, and utm (grep of registerTrans in
// vendor/github.com/ctessum/geom/proj/*.go) but never stere/ups, which
// is what DWD's ODIM files carry — so that one family is implemented
// here, in the same one-file-per-projection style as the vendored
// package.
func isStereographic(proj4 string) bool {
	for _, tok := range strings.Fields(proj4) {
		if tok == "+proj=stere" || tok == "+proj=ups" {
			return true
		}
	}
	return false
}

type stereoParams struct {
	lat0, lon0, latTS float64 // radians
	x0, y0            float64
	radius            float64
}

func parseStereoProj4(proj4 string) (stereoParams, error) {
	p := stereoParams{radius: WebMercatorEarthRadius}
	for _, tok := range strings.Fields(proj4) {
		tok = strings.TrimPrefix(tok, "+")
		kv := strings.SplitN(tok, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key, val := kv[0], kv[1]
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			continue
		}
		switch key {
		case "lat_0":
			p.lat0 = f * degToRad
		case "lon_0":
			p.lon0 = f * degToRad
		case "lat_ts":
			p.latTS = f * degToRad
		case "x_0":
			p.x0 = f
		case "y_0":
			p.y0 = f
		case "R", "a":
			p.radius = f
		}
	}
	if p.latTS == 0 {
		p.latTS = p.lat0
	}
	return p, nil
}

// stereographicFromProj4 implements the spherical oblique stereographic
// projection (Snyder, "Map Projections — A Working Manual", eqs. 21-2
// through 21-5 and their inverses 21-13/21-14/21-15), which reduces to
// the polar case when lat_0 is +/-90 degrees. DWD's composites use a
// polar stereographic grid true at 60N.
func stereographicFromProj4(proj4 string) (Transformer, error) {
	p, err := parseStereoProj4(proj4)
	if err != nil {
		return Transformer{}, fmt.Errorf("proj: parsing stereographic proj4 %q: %w", proj4, err)
	}

	sinLat0, cosLat0 := math.Sin(p.lat0), math.Cos(p.lat0)
	// k0 scales the projection so it is true (scale factor 1) at latTS,
	// per Snyder eq. 21-4 (spherical case, polar form simplified to the
	// general oblique form via the standard substitution).
	k0 := (1 + math.Sin(math.Abs(p.latTS))) / 2

	forward := func(lon, lat float64) (x, y float64, err error) {
		lonRad, latRad := lon*degToRad, lat*degToRad
		dLon := lonRad - p.lon0
		sinLat, cosLat := math.Sin(latRad), math.Cos(latRad)
		cosC := sinLat0*sinLat + cosLat0*cosLat*math.Cos(dLon)
		if cosC <= -1+1e-12 {
			return 0, 0, fmt.Errorf("proj: stereographic forward singular at antipodal point (lon=%g, lat=%g)", lon, lat)
		}
		k := 2 * k0 / (1 + cosC)
		x = p.x0 + p.radius*k*cosLat*math.Sin(dLon)
		y = p.y0 + p.radius*k*(cosLat0*sinLat-sinLat0*cosLat*math.Cos(dLon))
		return x, y, nil
	}

	inverse := func(x, y float64) (lon, lat float64, err error) {
		xr, yr := x-p.x0, y-p.y0
		rho := math.Hypot(xr, yr)
		if rho < 1e-9 {
			return p.lon0 * radToDeg, p.lat0 * radToDeg, nil
		}
		c := 2 * math.Atan2(rho, 2*k0*p.radius)
		sinC, cosC := math.Sin(c), math.Cos(c)
		latRad := math.Asin(cosC*sinLat0 + (yr*sinC*cosLat0)/rho)
		var lonRad float64
		if math.Abs(cosLat0) < 1e-12 {
			// Polar aspect: avoid the 0/0 from the oblique formula.
			if p.lat0 > 0 {
				lonRad = p.lon0 + math.Atan2(xr, -yr)
			} else {
				lonRad = p.lon0 + math.Atan2(xr, yr)
			}
		} else {
			lonRad = p.lon0 + math.Atan2(xr*sinC, rho*cosLat0*cosC-yr*sinLat0*sinC)
		}
		return lonRad * radToDeg, latRad * radToDeg, nil
	}

	return Transformer{Forward: forward, Inverse: inverse}, nil
}
