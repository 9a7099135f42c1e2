package transformcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// boundsHash8 produces the 8-hex-character bounds fingerprint used in
// the cache key when a source's native bounds can shift between runs
// (spec.md §4.2: "{source}_{height}x{width}[_{bounds_hash8}]_{version}").
func boundsHash8(bounds [4]float64) string {
	s := fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", bounds[0], bounds[1], bounds[2], bounds[3])
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}
