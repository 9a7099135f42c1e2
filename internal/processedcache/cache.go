package processedcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/imeteo/radarfusion/internal/objectstore"
	"github.com/imeteo/radarfusion/internal/radar"
	"github.com/imeteo/radarfusion/internal/radarerr"
	"github.com/imeteo/radarfusion/internal/tiercache"
)

// DefaultTTL is the 60-minute default named in spec.md §4.3.
const DefaultTTL = 60 * time.Minute

const remotePrefix = "iradar-data/data/"
const entryExt = ".rfentry"

// Cache is the three-tier Processed-Data Cache. It composes the same
// tiercache.Cache[V] primitive the Transform-Grid Cache uses
// (SPEC_FULL.md §9), with entryCodec bundling the NPZ-equivalent
// payload and JSON side-car into the single blob each tier stores.
type Cache struct {
	tiered   *tiercache.Cache[*Entry]
	localDir string
	remote   objectstore.Store
	ttl      time.Duration
	log      zerolog.Logger
}

// New builds a Cache rooted at localDir. remote may be nil (local-only
// mode). ttl defaults to DefaultTTL when zero.
func New(localDir string, remote objectstore.Store, ttl time.Duration, log zerolog.Logger) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	tiered, err := tiercache.New[*Entry](
		localDir,
		remote,
		func(key string) string { return remotePrefix + key + entryExt },
		entryCodec{},
		entryExt,
		256,
	)
	if err != nil {
		return nil, fmt.Errorf("processedcache: %w", err)
	}
	return &Cache{tiered: tiered, localDir: localDir, remote: remote, ttl: ttl, log: log}, nil
}

func entryKey(source, product, ts12 string) string {
	return fmt.Sprintf("%s_%s_%s", source, product, ts12)
}

// Get checks memory, then local disk, then the remote store, in that
// order, returning (nil, false, nil) on a clean miss or TTL expiry.
func (c *Cache) Get(ctx context.Context, source, ts, product string) (*radar.Frame, bool, error) {
	if err := ValidateSourceName(source); err != nil {
		return nil, false, err
	}
	if err := validateProduct(product); err != nil {
		return nil, false, err
	}
	ts12, err := NormalizeTimestamp(ts)
	if err != nil {
		return nil, false, err
	}
	key := entryKey(source, product, ts12)

	e, ok, err := c.tiered.Get(ctx, key)
	if err != nil {
		if errors.Is(err, radarerr.ErrCacheCorrupt) {
			// Corrupt entry: treat as a miss, per spec.md §7.
			c.log.Debug().Err(err).Str("key", key).Msg("processedcache: corrupt entry, treating as miss")
			return nil, false, nil
		}
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	if e.expired(c.ttl, time.Now()) {
		return nil, false, nil
	}
	return e.Frame, true, nil
}

// Put writes frame to every tier, unless force is false and a valid
// non-expired entry already exists (spec.md §4.3: "no-op" in that
// case).
func (c *Cache) Put(ctx context.Context, source, product string, frame *radar.Frame, force bool) error {
	if err := ValidateSourceName(source); err != nil {
		return err
	}
	if err := validateProduct(product); err != nil {
		return err
	}
	ts12, err := NormalizeTimestamp(string(frame.Timestamp))
	if err != nil {
		return err
	}

	if !force {
		if existing, ok, err := c.Get(ctx, source, ts12, product); err == nil && ok && existing != nil {
			return nil
		}
	}

	key := entryKey(source, product, ts12)
	e := &Entry{Frame: frame, CachedAt: time.Now()}
	if err := c.tiered.Put(ctx, key, e); err != nil {
		return fmt.Errorf("processedcache: writing entry %q: %w", key, err)
	}
	return nil
}

// ListTimestamps returns the union of local and remote 12-digit
// timestamps for source (optionally filtered to product), newest
// first, excluding expired entries.
func (c *Cache) ListTimestamps(ctx context.Context, source, product string) ([]string, error) {
	if err := ValidateSourceName(source); err != nil {
		return nil, err
	}
	now := time.Now()
	seen := make(map[string]bool)

	c.walkLocalKeys(func(src, prod, ts12, key string) {
		if src != source || (product != "" && prod != product) {
			return
		}
		if e, ok, err := c.tiered.Get(ctx, key); err == nil && ok && !e.expired(c.ttl, now) {
			seen[ts12] = true
		}
	})

	if c.remote != nil {
		c.walkRemoteKeys(ctx, func(src, prod, ts12, key string) {
			if src != source || (product != "" && prod != product) {
				return
			}
			if e, ok, err := c.tiered.Get(ctx, key); err == nil && ok && !e.expired(c.ttl, now) {
				seen[ts12] = true
			}
		})
	}

	out := make([]string, 0, len(seen))
	for ts := range seen {
		out = append(out, ts)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

// CleanupExpired deletes every local entry (and its remote counterpart,
// if configured) whose cached_at + ttl has passed, returning the number
// of entries removed.
func (c *Cache) CleanupExpired(ctx context.Context) (int, error) {
	count := 0
	now := time.Now()

	var stale []string
	c.walkLocalKeys(func(_, _, _, key string) {
		e, ok, err := c.tiered.Get(ctx, key)
		if err != nil || !ok {
			return
		}
		if e.expired(c.ttl, now) {
			stale = append(stale, key)
		}
	})
	for _, key := range stale {
		if err := c.tiered.Delete(ctx, key); err != nil {
			continue
		}
		count++
	}
	return count, nil
}

// Clear deletes every cached entry for source (or every source, if
// source is empty), returning the number of entries removed.
func (c *Cache) Clear(ctx context.Context, source string) (int, error) {
	if source != "" {
		if err := ValidateSourceName(source); err != nil {
			return 0, err
		}
	}

	count := 0
	c.walkLocalKeys(func(src, _, _, key string) {
		if source != "" && src != source {
			return
		}
		if err := c.tiered.Delete(ctx, key); err == nil {
			count++
		}
	})
	return count, nil
}

// walkLocalKeys visits every entry found on local disk, calling fn with
// its parsed (source, product, ts12) and cache key.
func (c *Cache) walkLocalKeys(fn func(source, product, ts12, key string)) {
	entries, err := os.ReadDir(c.localDir)
	if err != nil {
		return
	}
	for _, de := range entries {
		name := de.Name()
		if !strings.HasSuffix(name, entryExt) {
			continue
		}
		source, product, ts12, ok := parseEntryFilename(name)
		if !ok {
			continue
		}
		fn(source, product, ts12, entryKey(source, product, ts12))
	}
}

// walkRemoteKeys visits every entry found under the remote prefix,
// calling fn with its parsed (source, product, ts12) and cache key.
func (c *Cache) walkRemoteKeys(ctx context.Context, fn func(source, product, ts12, key string)) {
	keys, err := c.remote.List(ctx, remotePrefix)
	if err != nil {
		return
	}
	for _, k := range keys {
		base := strings.TrimPrefix(k, remotePrefix)
		if !strings.HasSuffix(base, entryExt) {
			continue
		}
		source, product, ts12, ok := parseEntryFilename(base)
		if !ok {
			continue
		}
		fn(source, product, ts12, entryKey(source, product, ts12))
	}
}

// parseEntryFilename splits "{source}_{product}_{ts12}.rfentry" back
// into its components.
func parseEntryFilename(name string) (source, product, ts12 string, ok bool) {
	base := strings.TrimSuffix(name, entryExt)
	parts := strings.Split(base, "_")
	if len(parts) < 3 {
		return "", "", "", false
	}
	ts12 = parts[len(parts)-1]
	if _, err := NormalizeTimestamp(ts12); err != nil {
		return "", "", "", false
	}
	source = parts[0]
	product = strings.Join(parts[1:len(parts)-1], "_")
	return source, product, ts12, true
}
