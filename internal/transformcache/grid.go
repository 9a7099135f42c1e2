// Package transformcache implements the Transform-Grid Cache (C2):
// precomputed destination-pixel -> source-pixel index arrays, tiered
// memory -> local disk -> object store, per SPEC_FULL.md §4.2.
package transformcache

import (
	"context"
	"fmt"
	"regexp"

	"github.com/imeteo/radarfusion/internal/objectstore"
	"github.com/imeteo/radarfusion/internal/proj"
	"github.com/imeteo/radarfusion/internal/radar"
	"github.com/imeteo/radarfusion/internal/radarerr"
	"github.com/imeteo/radarfusion/internal/tiercache"
)

// CacheVersion is bumped to invalidate every existing transform grid
// (SPEC_FULL.md §3: "Invalidated by bumping version").
const CacheVersion = "v1"

// sourceNamePattern is the path-traversal defence named in spec.md §4.2.
var sourceNamePattern = regexp.MustCompile(`^[a-z]{2,10}$`)

// ValidateSourceName enforces the ^[a-z]{2,10}$ rule before a source
// name is used to build any cache key or file path.
func ValidateSourceName(name string) error {
	if !sourceNamePattern.MatchString(name) {
		return fmt.Errorf("%w: source name %q must match ^[a-z]{2,10}$", radarerr.ErrSecurity, name)
	}
	return nil
}

// Grid is the precomputed transformation grid described in
// SPEC_FULL.md §3.
type Grid struct {
	RowIdx, ColIdx []int16 // len == DstShape.Height*DstShape.Width; -1 marks out-of-bounds
	DstShape       radar.Dimensions
	SrcShape       radar.Dimensions
	DstWGS84Bounds radar.Bounds
	Mercator       radar.MercatorBounds
	SourceName     string
	Version        string
}

// At returns the source (row, col) a destination pixel maps to, or
// ok=false if the destination pixel is out of the source's footprint.
func (g *Grid) At(dstRow, dstCol int) (row, col int, ok bool) {
	i := dstRow*g.DstShape.Width + dstCol
	r, c := g.RowIdx[i], g.ColIdx[i]
	if r < 0 || c < 0 {
		return 0, 0, false
	}
	return int(r), int(c), true
}

// MemorySizeMB reports the grid's footprint, mirroring the Python
// implementation's memory_size_mb diagnostic.
func (g *Grid) MemorySizeMB() float64 {
	bytesTotal := len(g.RowIdx)*2 + len(g.ColIdx)*2
	return float64(bytesTotal) / (1024 * 1024)
}

// Cache is the three-tier cache of Grid values.
type Cache struct {
	tiers *tiercache.Cache[*Grid]
}

const remotePrefix = "iradar-data/grid/"

// New builds the cache. localDir holds the on-disk tier; remote may be
// nil (local-only mode).
func New(localDir string, remote objectstore.Store) (*Cache, error) {
	tiers, err := tiercache.New[*Grid](localDir, remote, func(key string) string {
		return remotePrefix + key + ".bin"
	}, gridCodec{}, ".bin", 64)
	if err != nil {
		return nil, err
	}
	return &Cache{tiers: tiers}, nil
}

// Key builds the cache key described in spec.md §4.2:
// {source}_{height}x{width}[_{bounds_hash8}]_{version}.
func Key(sourceName string, srcShape radar.Dimensions, nativeBounds *[4]float64) (string, error) {
	if err := ValidateSourceName(sourceName); err != nil {
		return "", err
	}
	if err := validateDimensions(srcShape); err != nil {
		return "", err
	}
	if nativeBounds != nil {
		return fmt.Sprintf("%s_%dx%d_%s_%s", sourceName, srcShape.Height, srcShape.Width, boundsHash8(*nativeBounds), CacheVersion), nil
	}
	return fmt.Sprintf("%s_%dx%d_%s", sourceName, srcShape.Height, srcShape.Width, CacheVersion), nil
}

// MaxGridDimension bounds grid height/width per spec.md §7's Config
// error class.
const MaxGridDimension = 10000

func validateDimensions(d radar.Dimensions) error {
	if d.Height <= 0 || d.Width <= 0 || d.Height > MaxGridDimension || d.Width > MaxGridDimension {
		return fmt.Errorf("%w: grid dimensions %dx%d out of range (1..%d)", radarerr.ErrConfig, d.Height, d.Width, MaxGridDimension)
	}
	return nil
}

// GetOrCompute looks the grid up through the tiered cache, and on a
// total miss computes it via the SPEC_FULL.md §4.2 algorithm, then
// writes it back through every tier for future runs.
func (c *Cache) GetOrCompute(ctx context.Context, sourceName string, srcShape radar.Dimensions, srcProjection proj.Transformer, srcBounds [4]float64, refGrid radar.ReferenceGrid) (*Grid, error) {
	key, err := Key(sourceName, srcShape, &srcBounds)
	if err != nil {
		return nil, err
	}

	if g, ok, err := c.tiers.Get(ctx, key); err != nil {
		// Cache corruption is never fatal (spec.md §7): fall through
		// to recompute.
		_ = err
	} else if ok {
		return g, nil
	}

	g, err := Compute(sourceName, srcShape, srcProjection, srcBounds, refGrid)
	if err != nil {
		return nil, err
	}
	if err := c.tiers.Put(ctx, key, g); err != nil {
		return g, fmt.Errorf("transformcache: computed grid but failed to persist it: %w", err)
	}
	return g, nil
}

// Delete removes a grid from every tier. No CLI path calls it:
// --clear-cache clears only the Processed-Data Cache.
func (c *Cache) Delete(ctx context.Context, sourceName string, srcShape radar.Dimensions, srcBounds *[4]float64) error {
	key, err := Key(sourceName, srcShape, srcBounds)
	if err != nil {
		return err
	}
	return c.tiers.Delete(ctx, key)
}
