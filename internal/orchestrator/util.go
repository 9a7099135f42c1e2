package orchestrator

import (
	"os"
	"path/filepath"
	"time"

	"github.com/imeteo/radarfusion/internal/config"
	"github.com/imeteo/radarfusion/internal/matcher"
)

// parseTimestamp parses a 14-digit timestamp as UTC, mirroring
// matcher's own parseTS (unexported there, so this is a deliberate,
// tiny duplication rather than exporting an internal matcher helper
// for one caller).
func parseTimestamp(ts string) (time.Time, bool) {
	t, err := time.Parse("20060102150405", ts)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// unixSeconds renders a 14-digit timestamp as the unix-seconds form the
// CLI's output layout names ("{root}/{country}/{unix_ts}.png").
func unixSeconds(ts string) (int64, error) {
	t, ok := parseTimestamp(ts)
	if !ok {
		return 0, os.ErrInvalid
	}
	return t.Unix(), nil
}

// orderedSources returns the sources present in m, in config.AllSources
// order, so per-timestamp processing (and its log output) is
// deterministic across runs regardless of map iteration order.
func orderedSources(m map[string]matcher.Candidate) []string {
	out := make([]string, 0, len(m))
	for _, name := range config.AllSources {
		if _, ok := m[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// WriteFileAtomic writes data to path via a same-directory temp file
// plus rename, matching processedcache's atomicWrite pattern so a
// crash mid-write never leaves a partial PNG at the final path.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".radarfusion-tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// pendingUpload pairs a file already written to OutputRoot with the
// object-store key it belongs under, deferred until after the local
// write succeeds so an upload failure never blocks the local artifact.
type pendingUpload struct {
	localPath string
	remoteKey string
}
