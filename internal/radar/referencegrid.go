package radar

// ReferenceGrid is the fixed WGS84 rectangle and resolution that defines
// composite output geometry, independent of which sources are present
// (SPEC_FULL.md §3). Its dimensions are derived once, at init time, from
// the WGS84 rectangle reprojected to Web Mercator at ResolutionM meters
// per pixel — callers needing the destination shape should use
// ReferenceGrid.DstShape rather than recomputing it, so every run and
// every composite is byte-stable in size.
type ReferenceGrid struct {
	WGS84Bounds   Bounds
	ResolutionM   float64
	MercatorBounds MercatorBounds
	DstShape      Dimensions
}

// MercatorBounds is a Web Mercator (EPSG:3857) axis-aligned rectangle in
// meters.
type MercatorBounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// DefaultReferenceBounds is the compile-time constant rectangle named in
// spec.md §3: west=2.50, east=26.40, south=44.00, north=56.20.
var DefaultReferenceBounds = Bounds{
	West:  2.50,
	East:  26.40,
	South: 44.00,
	North: 56.20,
}

// DefaultResolutionM is the default composite resolution, 500 meters per
// pixel.
const DefaultResolutionM = 500.0

// NewReferenceGrid builds the reference grid for the given WGS84 bounds
// and resolution, computing the Web Mercator destination rectangle and
// pixel shape. mercatorProjector converts (lon, lat) to Web Mercator
// meters; it is injected so this package does not import internal/proj
// (which would create an import cycle with packages that depend on both).
func NewReferenceGrid(bounds Bounds, resolutionM float64, mercatorProjector func(lon, lat float64) (x, y float64)) ReferenceGrid {
	minX, minY := mercatorProjector(bounds.West, bounds.South)
	maxX, maxY := mercatorProjector(bounds.East, bounds.North)
	mb := MercatorBounds{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}

	width := int((mb.MaxX - mb.MinX) / resolutionM)
	height := int((mb.MaxY - mb.MinY) / resolutionM)
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	return ReferenceGrid{
		WGS84Bounds:    bounds,
		ResolutionM:    resolutionM,
		MercatorBounds: mb,
		DstShape:       Dimensions{Height: height, Width: width},
	}
}
