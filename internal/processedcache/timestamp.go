package processedcache

import (
	"fmt"
	"regexp"

	"github.com/imeteo/radarfusion/internal/radarerr"
)

var (
	ts14Pattern = regexp.MustCompile(`^\d{14}$`)
	ts12Pattern = regexp.MustCompile(`^\d{12}$`)
)

// NormalizeTimestamp collapses a 14-digit (YYYYMMDDHHMMSS) timestamp to
// the 12-digit (YYYYMMDDHHMM) cache key form by dropping seconds, per
// spec.md §4.3: "the 14-digit form collapses to the same key." A
// 12-digit timestamp passes through unchanged.
func NormalizeTimestamp(ts string) (string, error) {
	switch {
	case ts12Pattern.MatchString(ts):
		return ts, nil
	case ts14Pattern.MatchString(ts):
		return ts[:12], nil
	default:
		return "", fmt.Errorf("%w: timestamp %q is not 12 or 14 numeric digits", radarerr.ErrConfig, ts)
	}
}
