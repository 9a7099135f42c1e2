package sources

import (
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/imeteo/radarfusion/internal/httpfetch"
)

// base is the shared adapter scaffolding every concrete adapter
// embeds, grounded on core/base.py's RadarSource ABC: a per-adapter
// session download cache (avoids re-downloading the same timestamp
// twice within one run) and temp-file bookkeeping for
// CleanupTempFiles.
type base struct {
	name   string
	http   httpfetch.Client
	retry  RetryConfig
	log    zerolog.Logger

	mu          sync.Mutex
	sessionPath *lru.Cache[string, string] // "{timestamp}_{product}" -> local path
	tempFiles   map[string]string
}

func newBase(name string, client httpfetch.Client, retry RetryConfig, log zerolog.Logger) base {
	cache, _ := lru.New[string, string](512)
	return base{
		name:        name,
		http:        client,
		retry:       retry,
		log:         log,
		sessionPath: cache,
		tempFiles:   make(map[string]string),
	}
}

func (b *base) Name() string { return b.name }

func sessionKey(timestamp, product string) string { return timestamp + "_" + product }

// cachedPath returns a previously downloaded path for (timestamp,
// product) within this run, if any.
func (b *base) cachedPath(timestamp, product string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionPath.Get(sessionKey(timestamp, product))
}

// rememberPath records a freshly downloaded path, tracked both for
// session-cache reuse and for CleanupTempFiles.
func (b *base) rememberPath(timestamp, product, path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := sessionKey(timestamp, product)
	b.sessionPath.Add(key, path)
	b.tempFiles[key] = path
}

// CleanupTempFiles removes every file this adapter downloaded this
// session, matching core/base.py's cleanup_temp_files.
func (b *base) CleanupTempFiles() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	cleaned := 0
	for key, path := range b.tempFiles {
		if err := os.Remove(path); err == nil {
			cleaned++
		} else if !os.IsNotExist(err) {
			b.log.Warn().Err(err).Str("path", path).Msg("sources: could not delete temp file")
		}
		delete(b.tempFiles, key)
	}
	return cleaned
}
