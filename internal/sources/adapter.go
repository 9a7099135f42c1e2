// Package sources implements the Source Adapters (C1): one adapter per
// provider, behind the uniform contract of spec.md §4.1.
package sources

import (
	"context"
	"time"

	"github.com/imeteo/radarfusion/internal/radar"
)

// ExtentOnly is the result of DecodeExtentOnly: enough to run the
// extent pass (pass 1 of the Orchestrator) without a full data load.
type ExtentOnly struct {
	WGS84Bounds radar.Bounds
	Dimensions  radar.Dimensions
	Projection  radar.Projection
}

// NativeExtent is a source's static footprint, used as a fallback and
// for side-car metadata (spec.md §4.1).
type NativeExtent struct {
	WGS84Bounds    radar.Bounds
	MercatorBounds radar.MercatorBounds
	GridSize       radar.Dimensions
	ResolutionM    float64
}

// DownloadResult is one (timestamp, product) download outcome. Err is
// non-nil on failure — adapter-level failures are captured here, never
// raised, so the Orchestrator can apply the Timestamp Matcher's
// degradation ladder (spec.md §7's propagation policy).
type DownloadResult struct {
	Timestamp       string
	Product         string
	Path            string
	CachedInSession bool
	Err             error
}

// Adapter is the uniform per-provider contract from spec.md §4.1.
type Adapter interface {
	// Name is the ^[a-z]{2,10}$ source identifier (e.g. "dwd").
	Name() string

	// ListAvailableTimestamps returns up to count 14-digit timestamps,
	// newest first, optionally restricted to [start, end).
	ListAvailableTimestamps(ctx context.Context, count int, products []string, start, end *time.Time) ([]string, error)

	// Download fetches each (timestamp, product) pair, using the
	// adapter's session cache to avoid re-fetching within one run.
	Download(ctx context.Context, timestamps, products []string) ([]DownloadResult, error)

	Decode(ctx context.Context, path string) (*radar.Frame, error)
	DecodeExtentOnly(ctx context.Context, path string) (ExtentOnly, error)
	NativeExtent() NativeExtent

	// CleanupTempFiles removes files this adapter downloaded this
	// session, returning the count removed.
	CleanupTempFiles() int
}
