// Package tiercache implements the shared memory → local disk → object
// store cache primitive used by both the Transform-Grid Cache and the
// Processed-Data Cache (SPEC_FULL.md §9, "Express both via a single
// parameterised cache abstraction with a codec trait"). It is grounded
// on the teacher's github.com/ctessum/requestcache pipeline-of-tiers
// design, reimplemented with Go generics and synchronous calls since
// these caches are read-heavy/single-writer rather than a fan-out
// on-demand content processor (see DESIGN.md).
package tiercache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/imeteo/radarfusion/internal/objectstore"
	"github.com/imeteo/radarfusion/internal/radarerr"
)

// Codec encodes/decodes a value of type V to/from bytes for the local
// and remote tiers. Implementations must round-trip exactly for the
// fields that matter to the cache's fidelity invariant (SPEC_FULL.md §8
// property 2).
type Codec[V any] interface {
	Encode(v V) ([]byte, error)
	Decode(data []byte) (V, error)
}

// Cache is a three-tier (memory, local disk, object store) cache keyed
// by string. The object-store tier is optional: a nil Store means
// local-only mode.
type Cache[V any] struct {
	memory    *lru.Cache[string, V]
	localDir  string
	remote    objectstore.Store
	remoteKey func(key string) string // maps a cache key to an object-store key
	codec     Codec[V]
	ext       string // local file extension, including the dot
}

// keyPattern validates cache keys before they are used to build a local
// file path, closing the path-traversal hole named in spec.md §4.2 and
// §7 ("Security violation: Path traversal in cache key").
var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,127}$`)

// New builds a Cache. localDir is created if absent. remote may be nil
// (local-only mode). memoryEntries bounds the in-process LRU tier.
func New[V any](localDir string, remote objectstore.Store, remoteKeyFn func(string) string, codec Codec[V], ext string, memoryEntries int) (*Cache[V], error) {
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return nil, fmt.Errorf("tiercache: creating local dir: %w", err)
	}
	mem, err := lru.New[string, V](memoryEntries)
	if err != nil {
		return nil, fmt.Errorf("tiercache: creating memory tier: %w", err)
	}
	return &Cache[V]{
		memory:    mem,
		localDir:  localDir,
		remote:    remote,
		remoteKey: remoteKeyFn,
		codec:     codec,
		ext:       ext,
	}, nil
}

func (c *Cache[V]) localPath(key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", fmt.Errorf("%w: invalid cache key %q", radarerr.ErrSecurity, key)
	}
	p := filepath.Join(c.localDir, key+c.ext)
	resolved, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	rootAbs, err := filepath.Abs(c.localDir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(rootAbs, resolved)
	if err != nil || rel == ".." || len(rel) >= 2 && rel[:3] == "../" {
		return "", fmt.Errorf("%w: cache key %q escapes cache root", radarerr.ErrSecurity, key)
	}
	return p, nil
}

// Get looks up key in memory, then local disk, then the remote store (if
// configured), populating faster tiers on a hit from a slower one. It
// returns (zero, false, nil) on a clean miss and (zero, false, err) only
// for unexpected I/O errors — cache corruption is logged by the caller
// and treated as a miss, per spec.md §7.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if v, ok := c.memory.Get(key); ok {
		return v, true, nil
	}

	path, err := c.localPath(key)
	if err != nil {
		return zero, false, err
	}
	if data, err := os.ReadFile(path); err == nil {
		v, decErr := c.codec.Decode(data)
		if decErr != nil {
			return zero, false, fmt.Errorf("%w: local entry %q: %v", radarerr.ErrCacheCorrupt, key, decErr)
		}
		c.memory.Add(key, v)
		return v, true, nil
	} else if !os.IsNotExist(err) {
		return zero, false, err
	}

	if c.remote != nil {
		rkey := c.remoteKey(key)
		data, err := c.remote.Get(ctx, rkey)
		if err == nil {
			v, decErr := c.codec.Decode(data)
			if decErr != nil {
				return zero, false, fmt.Errorf("%w: remote entry %q: %v", radarerr.ErrCacheCorrupt, rkey, decErr)
			}
			c.memory.Add(key, v)
			_ = c.writeLocal(path, data)
			return v, true, nil
		} else if err != objectstore.ErrNotExist {
			return zero, false, err
		}
	}

	return zero, false, nil
}

// Put writes key to every tier: memory, local disk (atomic
// temp-then-rename), and the remote store if configured. Local and
// remote writes are best-effort in the sense that a remote failure does
// not unwind the local write — the entry is still usable locally.
func (c *Cache[V]) Put(ctx context.Context, key string, v V) error {
	c.memory.Add(key, v)

	data, err := c.codec.Encode(v)
	if err != nil {
		return fmt.Errorf("tiercache: encoding %q: %w", key, err)
	}

	path, err := c.localPath(key)
	if err != nil {
		return err
	}
	if err := c.writeLocal(path, data); err != nil {
		return fmt.Errorf("tiercache: writing local entry %q: %w", key, err)
	}

	if c.remote != nil {
		if err := c.remote.Put(ctx, c.remoteKey(key), data); err != nil {
			return fmt.Errorf("tiercache: uploading %q: %w", key, err)
		}
	}
	return nil
}

// writeLocal stages the payload in a temp file inside the cache root
// (mode 0600, per spec.md §4.2) and renames it into place, so readers
// never observe a partially written file.
func (c *Cache[V]) writeLocal(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tiercache-tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Delete removes key from every tier.
func (c *Cache[V]) Delete(ctx context.Context, key string) error {
	c.memory.Remove(key)
	path, err := c.localPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	if c.remote != nil {
		if err := c.remote.Delete(ctx, c.remoteKey(key)); err != nil {
			return err
		}
	}
	return nil
}
