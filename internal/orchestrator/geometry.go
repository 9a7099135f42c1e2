package orchestrator

import (
	"fmt"

	"github.com/imeteo/radarfusion/internal/proj"
	"github.com/imeteo/radarfusion/internal/radar"
	"github.com/imeteo/radarfusion/internal/radarerr"
)

// arsoUnitsPerMeter converts ARSO's GridParams (stored in meters, per
// internal/sources/arso.go's arsoGridGeometry) into the kilometers the
// fixed SIRAD proj4 string's "+units=km" declares, mirroring the same
// conversion arso.go applies before calling proj.Transformer.Inverse.
const arsoUnitsPerMeter = 1.0 / 1000.0

// SourceGeometry derives the (proj.Transformer, native-unit bounding
// box) pair internal/transformcache.Compute and internal/reproject need
// from a source's tagged-union Projection field, called with a decoded
// *radar.Frame's fields by the per-timestamp decode pass and by
// internal/cliapp's coverage-mask command — this is the one piece of per-provider-geometry
// knowledge the Orchestrator needs beyond what Adapter.Decode already
// gives it, since internal/transformcache operates on native projected
// coordinates, not the WGS84 corner hints carried for side-car
// metadata.
func SourceGeometry(sourceName string, dims radar.Dimensions, bounds radar.Bounds, projection radar.Projection) (proj.Transformer, [4]float64, error) {
	switch projection.Kind {
	case radar.ProjectionWGS84:
		return identityTransformer(), [4]float64{
			bounds.West, bounds.South, bounds.East, bounds.North,
		}, nil

	case radar.ProjectionLCC:
		transformer, err := proj.ForProj4(projection.Proj4)
		if err != nil {
			return proj.Transformer{}, [4]float64{}, fmt.Errorf("orchestrator: building transformer for %s: %w", sourceName, err)
		}
		gp := projection.Grid
		minX := gp.OriginX * arsoUnitsPerMeter
		maxY := gp.OriginY * arsoUnitsPerMeter
		maxX := (gp.OriginX + float64(dims.Width)*gp.PixelWidth) * arsoUnitsPerMeter
		minY := (gp.OriginY + float64(dims.Height)*gp.PixelHeight) * arsoUnitsPerMeter
		return transformer, [4]float64{minX, minY, maxX, maxY}, nil

	case radar.ProjectionProjected:
		transformer, err := proj.ForProj4(projection.Proj4)
		if err != nil {
			return proj.Transformer{}, [4]float64{}, fmt.Errorf("orchestrator: building transformer for %s: %w", sourceName, err)
		}
		corners := projection.CornerWGS84
		if corners == nil {
			corners = &bounds
		}
		// These ODIM sources report their where/LL_*, where/UR_*
		// attributes in WGS84, not native projected units, and never
		// carry a native affine origin (unlike ARSO's GridParams). The
		// corner readback is explicitly not authoritative for *pixel*
		// geometry (radar.Projection.CornerWGS84's doc comment), but
		// it is the only footprint estimate available, and is good
		// enough to seed the Transform-Grid Cache's bounding box: the
		// per-pixel mapping itself still comes from the proj4 string,
		// not from these corners.
		minX, minY, err := transformer.Forward(corners.West, corners.South)
		if err != nil {
			return proj.Transformer{}, [4]float64{}, fmt.Errorf("orchestrator: projecting %s SW corner: %w", sourceName, err)
		}
		maxX, maxY, err := transformer.Forward(corners.East, corners.North)
		if err != nil {
			return proj.Transformer{}, [4]float64{}, fmt.Errorf("orchestrator: projecting %s NE corner: %w", sourceName, err)
		}
		if minX > maxX {
			minX, maxX = maxX, minX
		}
		if minY > maxY {
			minY, maxY = maxY, minY
		}
		return transformer, [4]float64{minX, minY, maxX, maxY}, nil

	default:
		return proj.Transformer{}, [4]float64{}, fmt.Errorf("%w: unknown projection kind %v", radarerr.ErrConfig, projection.Kind)
	}
}

// identityTransformer treats (lon, lat) as already being the "native
// projected" coordinate system, for sources whose data already lives on
// a WGS84 grid (OMSZ's netCDF export).
func identityTransformer() proj.Transformer {
	return proj.Transformer{
		Forward: func(lon, lat float64) (float64, float64, error) { return lon, lat, nil },
		Inverse: func(x, y float64) (float64, float64, error) { return x, y, nil },
	}
}
