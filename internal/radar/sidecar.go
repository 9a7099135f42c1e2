package radar

import "time"

// Sidecar is the JSON side-car persisted next to a cached frame's NPZ-
// equivalent payload (SPEC_FULL.md §3, Processed-Data Cache Entry).
type Sidecar struct {
	Source         string            `json:"source"`
	Timestamp      string            `json:"timestamp"` // 12-digit normalized
	Product        string            `json:"product"`
	Extent         Bounds            `json:"extent"`
	Projection     string            `json:"projection"`
	Dimensions     [2]int            `json:"dimensions"`
	SourceMetadata map[string]string `json:"source_metadata"`
	CachedAt       int64             `json:"cached_at"`
}

// SidecarJSON builds the side-car record for f, stamped with cachedAt
// (unix seconds). ts12 is the 12-digit normalized timestamp the cache
// keys on.
func (f *Frame) SidecarJSON(ts12 string, cachedAt time.Time) Sidecar {
	return Sidecar{
		Source:     f.Metadata.Source,
		Timestamp:  ts12,
		Product:    f.Metadata.Product,
		Extent:     f.Bounds,
		Projection: f.Projection.Kind.String(),
		Dimensions: [2]int{f.Dims.Height, f.Dims.Width},
		SourceMetadata: map[string]string{
			"quantity": f.Metadata.Quantity,
			"units":    f.Metadata.Units,
		},
		CachedAt: cachedAt.Unix(),
	}
}
