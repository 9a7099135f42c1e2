// Package config resolves run-time configuration from environment
// variables and CLI flags into a validated struct, using viper the way
// the teacher's inmaputil.Cfg does (env-var binding plus explicit
// validation before any network call — spec.md §7's config-error
// class: "exit 1 before any network call").
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/imeteo/radarfusion/internal/matcher"
	"github.com/imeteo/radarfusion/internal/objectstore"
	"github.com/imeteo/radarfusion/internal/outage"
	"github.com/imeteo/radarfusion/internal/radar"
	"github.com/imeteo/radarfusion/internal/radarerr"
	"github.com/imeteo/radarfusion/internal/transformcache"
)

// AllSources is the fixed provider list this pipeline supports, in the
// order spec.md §6 lists them.
var AllSources = []string{"dwd", "shmu", "chmi", "arso", "omsz", "imgw"}

// Country maps a source identifier to the output-folder country name
// used in spec.md §6's "{root}/{country}/{unix_ts}.png" layout.
var Country = map[string]string{
	"dwd":  "germany",
	"shmu": "slovakia",
	"chmi": "czechia",
	"arso": "slovenia",
	"omsz": "hungary",
	"imgw": "poland",
}

// Config is the fully-resolved run configuration shared by every CLI
// subcommand.
type Config struct {
	Spaces objectstore.SpacesConfig

	OutputRoot string
	CacheDir   string
	CacheTTL   time.Duration
	NoCache    bool
	NoCacheUpload bool

	MaxWorkers int

	ResolutionM      float64
	TimestampToleranceMinutes int
	RequireArso      bool
	MaxDataAge       time.Duration
	MinCoreSources   int
	ReprocessCount   int
	DisableUpload    bool
	NoIndividual     bool
}

// Load reads the DIGITALOCEAN_SPACES_* environment variables and the
// unprefixed OUTPUT_ROOT, CACHE_DIR, CACHE_TTL_MINUTES, MAX_WORKERS,
// RESOLUTION_M, TIMESTAMP_TOLERANCE_MINUTES, MAX_DATA_AGE_MINUTES,
// MIN_CORE_SOURCES and REPROCESS_COUNT variables via viper, applying
// the defaults named throughout spec.md §§4-6 (the IMETEO_LOG_*
// variables are read by internal/applog, not here). CLI
// flags are expected to override individual fields after Load returns
// (cobra's flag binding does this field-by-field in internal/cliapp,
// mirroring how inmaputil.Cfg layers flags over viper-sourced
// defaults).
func Load() Config {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	v.SetDefault("output_root", "/tmp/iradar")
	v.SetDefault("cache_dir", "/tmp/iradar-data/processed")
	v.SetDefault("cache_ttl_minutes", 60)
	v.SetDefault("max_workers", 6)
	v.SetDefault("resolution_m", radar.DefaultResolutionM)
	v.SetDefault("timestamp_tolerance_minutes", 10)
	v.SetDefault("max_data_age_minutes", int(outage.DefaultMaxDataAge.Minutes()))
	v.SetDefault("min_core_sources", outage.DefaultMinCoreSources)
	v.SetDefault("reprocess_count", 1)

	return Config{
		Spaces: objectstore.SpacesConfig{
			Key:      v.GetString("DIGITALOCEAN_SPACES_KEY"),
			Secret:   v.GetString("DIGITALOCEAN_SPACES_SECRET"),
			Endpoint: v.GetString("DIGITALOCEAN_SPACES_ENDPOINT"),
			Region:   v.GetString("DIGITALOCEAN_SPACES_REGION"),
			Bucket:   v.GetString("DIGITALOCEAN_SPACES_BUCKET"),
		},
		OutputRoot:                v.GetString("output_root"),
		CacheDir:                  v.GetString("cache_dir"),
		CacheTTL:                  time.Duration(v.GetInt("cache_ttl_minutes")) * time.Minute,
		MaxWorkers:                v.GetInt("max_workers"),
		ResolutionM:               v.GetFloat64("resolution_m"),
		TimestampToleranceMinutes: v.GetInt("timestamp_tolerance_minutes"),
		MaxDataAge:                time.Duration(v.GetInt("max_data_age_minutes")) * time.Minute,
		MinCoreSources:            v.GetInt("min_core_sources"),
		ReprocessCount:            v.GetInt("reprocess_count"),
	}
}

// ValidateSources checks a requested source list against AllSources and
// the path-traversal-safe name pattern, returning a
// radarerr.ErrConfig-wrapped error naming every invalid entry at once
// (spec.md §7: config errors are caught "before any network call").
func ValidateSources(requested []string) error {
	if len(requested) == 0 {
		return fmt.Errorf("%w: no sources requested", radarerr.ErrConfig)
	}
	known := make(map[string]bool, len(AllSources))
	for _, s := range AllSources {
		known[s] = true
	}
	for _, s := range requested {
		if err := transformcache.ValidateSourceName(s); err != nil {
			return err
		}
		if !known[s] {
			return fmt.Errorf("%w: unknown source %q (known: %v)", radarerr.ErrConfig, s, AllSources)
		}
	}
	return nil
}

// Validate checks the numeric/range invariants spec.md §7 names as
// config errors: resolution, worker count, core-quorum bounds,
// reprocess count and timestamp tolerance. Grid dimensions are not
// checked here; internal/transformcache rejects them against
// MaxGridDimension with the same ErrConfig class.
func (c Config) Validate() error {
	if c.ResolutionM <= 0 {
		return fmt.Errorf("%w: resolution_m must be positive, got %v", radarerr.ErrConfig, c.ResolutionM)
	}
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("%w: max_workers must be positive, got %d", radarerr.ErrConfig, c.MaxWorkers)
	}
	if c.MinCoreSources <= 0 || c.MinCoreSources > len(matcher.CoreSources) {
		return fmt.Errorf("%w: min_core_sources must be in [1, %d], got %d", radarerr.ErrConfig, len(matcher.CoreSources), c.MinCoreSources)
	}
	if c.ReprocessCount <= 0 {
		return fmt.Errorf("%w: reprocess_count must be positive, got %d", radarerr.ErrConfig, c.ReprocessCount)
	}
	if c.TimestampToleranceMinutes < 0 {
		return fmt.Errorf("%w: timestamp_tolerance_minutes must be non-negative, got %d", radarerr.ErrConfig, c.TimestampToleranceMinutes)
	}
	return nil
}

// ReferenceGrid builds the radar.ReferenceGrid for this config's
// resolution, using mercatorProjector to avoid importing internal/proj
// here (matching radar.NewReferenceGrid's own injection seam).
func (c Config) ReferenceGrid(mercatorProjector func(lon, lat float64) (x, y float64)) radar.ReferenceGrid {
	return radar.NewReferenceGrid(radar.DefaultReferenceBounds, c.ResolutionM, mercatorProjector)
}
