package sources

import (
	"bytes"
	"io"
	"os"
	"time"
)

// generateTimestampCandidates produces up to count 14-digit timestamps,
// newest first, 5 minutes apart, starting 15 minutes behind wall-clock
// to allow for provider processing delay — grounded on
// utils/timestamps.py's generate_timestamp_candidates.
func generateTimestampCandidates(count int, start, end *time.Time) []string {
	if count <= 0 {
		count = 12
	}
	now := time.Now().UTC().Add(-15 * time.Minute)
	if end != nil && end.Before(now) {
		now = *end
	}
	var out []string
	t := now.Truncate(5 * time.Minute)
	for i := 0; i < count; i++ {
		if start != nil && t.Before(*start) {
			break
		}
		out = append(out, t.Format("20060102150405"))
		t = t.Add(-5 * time.Minute)
	}
	return out
}

// filterTimestampRange keeps only 14-digit timestamps within [start,
// end), matching utils/timestamps.py's filter_timestamps_by_range.
func filterTimestampRange(timestamps []string, start, end *time.Time) []string {
	if start == nil && end == nil {
		return timestamps
	}
	var out []string
	for _, ts := range timestamps {
		t, err := time.Parse("20060102150405", ts)
		if err != nil {
			continue
		}
		if start != nil && t.Before(*start) {
			continue
		}
		if end != nil && !t.Before(*end) {
			continue
		}
		out = append(out, ts)
	}
	return out
}

// writeTempFile persists a downloaded payload to a uniquely-named
// temporary file, returning its path for the caller's decode step and
// for session-scoped cleanup tracking (core/base.py's temp_files
// pattern).
func writeTempFile(prefix string, body []byte) (string, error) {
	f, err := os.CreateTemp("", prefix+"-*.tmp")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, bytes.NewReader(body)); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// readFile reads a whole file's contents, used by the ARSO adapter for
// its ASCII-header-plus-byte-data SRD-3 format.
func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
