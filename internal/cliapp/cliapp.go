// Package cliapp wires internal/config, internal/applog and every
// pipeline component into the cobra.Command tree named in spec.md §6:
// `fetch`, `composite`, `extent`, `coverage-mask`. Structured after
// the teacher's inmaputil.Cfg: a struct embedding *viper.Viper plus
// named *cobra.Command fields, with a root PersistentPreRunE that
// validates configuration before any subcommand's RunE runs a single
// network call (spec.md §7's config-error class: "exit 1 before any
// network call").
package cliapp

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/imeteo/radarfusion/internal/applog"
	"github.com/imeteo/radarfusion/internal/config"
	"github.com/imeteo/radarfusion/internal/httpfetch"
	"github.com/imeteo/radarfusion/internal/objectstore"
	"github.com/imeteo/radarfusion/internal/odim"
	"github.com/imeteo/radarfusion/internal/orchestrator"
	"github.com/imeteo/radarfusion/internal/processedcache"
	"github.com/imeteo/radarfusion/internal/proj"
	"github.com/imeteo/radarfusion/internal/radarerr"
	"github.com/imeteo/radarfusion/internal/sources"
	"github.com/imeteo/radarfusion/internal/transformcache"
)

// Cfg holds the resolved configuration plus the command tree, the way
// inmaputil.Cfg bundles *viper.Viper with named *cobra.Command fields.
type Cfg struct {
	*viper.Viper

	Root, fetchCmd, compositeCmd, extentCmd, coverageMaskCmd *cobra.Command

	resolved config.Config
	log      zerolog.Logger
}

// NewRootCommand builds the full command tree.
func NewRootCommand() *cobra.Command {
	cfg := &Cfg{Viper: viper.New()}

	cfg.Root = &cobra.Command{
		Use:   "radarfusion",
		Short: "Fuse six national radar composites into one Central-European mosaic.",
		Long: `radarfusion ingests weather-radar composite products from six national
meteorological providers, reprojects each onto a shared Web Mercator
grid, and fuses them by per-pixel maximum reflectivity.

Configuration is read from environment variables (OUTPUT_ROOT,
CACHE_DIR and the other unprefixed settings, DIGITALOCEAN_SPACES_*,
IMETEO_LOG_*) and overridden by the flags below.`,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg.resolved = config.Load()
			bindCommonFlags(cmd, &cfg.resolved)
			if err := cfg.resolved.Validate(); err != nil {
				return err
			}
			cfg.log = applog.New(applog.FromEnv())
			return nil
		},
	}
	cfg.Root.PersistentFlags().String("output-root", "/tmp/iradar", "root directory for PNG and side-car output")
	cfg.Root.PersistentFlags().Int("max-workers", 6, "concurrent network operations per run")
	cfg.Root.PersistentFlags().Bool("disable-upload", false, "never upload to object storage, even if configured")

	cfg.fetchCmd = newFetchCommand(cfg)
	cfg.compositeCmd = newCompositeCommand(cfg)
	cfg.extentCmd = newExtentCommand(cfg)
	cfg.coverageMaskCmd = newCoverageMaskCommand(cfg)

	cfg.Root.AddCommand(cfg.fetchCmd, cfg.compositeCmd, cfg.extentCmd, cfg.coverageMaskCmd)
	return cfg.Root
}

// bindCommonFlags overrides resolved's viper-sourced defaults with any
// flags the user actually set, mirroring inmaputil's flag-over-viper
// layering.
func bindCommonFlags(cmd *cobra.Command, resolved *config.Config) {
	if v, err := cmd.Flags().GetString("output-root"); err == nil && cmd.Flags().Changed("output-root") {
		resolved.OutputRoot = v
	}
	if v, err := cmd.Flags().GetInt("max-workers"); err == nil && cmd.Flags().Changed("max-workers") {
		resolved.MaxWorkers = v
	}
	if v, err := cmd.Flags().GetBool("disable-upload"); err == nil && cmd.Flags().Changed("disable-upload") {
		resolved.DisableUpload = v
	}
}

// buildAdapters constructs every requested source's Adapter, sharing
// one httpfetch.Client across every constructor that takes one (SHMU
// builds its own from a timeout), and a single odim.Unimplemented reader for the four ODIM
// sources (see internal/odim's doc comment: there is no HDF5 binding
// in this module's reference corpus to wire in its place).
func buildAdapters(names []string, log zerolog.Logger) (map[string]sources.Adapter, error) {
	if err := config.ValidateSources(names); err != nil {
		return nil, err
	}
	reader := odim.Unimplemented{}
	client := httpfetch.New(30*time.Second, false)

	all := map[string]sources.Adapter{
		"dwd":  sources.NewDWD(client, reader, log),
		"shmu": sources.NewSHMU(30*time.Second, reader, log),
		"chmi": sources.NewCHMI(client, reader, log),
		"imgw": sources.NewIMGW(client, reader, log),
		"omsz": sources.NewOMSZ(client, log),
		"arso": sources.NewARSO(client, log),
	}

	out := make(map[string]sources.Adapter, len(names))
	for _, n := range names {
		out[n] = all[n]
	}
	return out, nil
}

// buildOrchestrator assembles the caches, object store and Reference
// Grid behind internal/orchestrator.New, the shared wiring every
// network-touching subcommand needs.
func buildOrchestrator(cmd *cobra.Command, c *Cfg, names []string, opts orchestrator.Options) (*orchestrator.Orchestrator, error) {
	ctx := cmd.Context()
	resolved := c.resolved

	adapters, err := buildAdapters(names, c.log)
	if err != nil {
		return nil, err
	}

	var remote objectstore.Store
	if !resolved.DisableUpload {
		remote = objectstore.OpenUploader(ctx, resolved.Spaces, c.log)
	}

	var processedRemote objectstore.Store
	if !resolved.NoCacheUpload {
		processedRemote = remote
	}
	procCache, err := processedcache.New(resolved.CacheDir, processedRemote, resolved.CacheTTL, c.log)
	if err != nil {
		return nil, fmt.Errorf("cliapp: building processed cache: %w", err)
	}

	transformDir := filepath.Join(filepath.Dir(filepath.Clean(resolved.CacheDir)), "grid")
	transformCache, err := transformcache.New(transformDir, remote)
	if err != nil {
		return nil, fmt.Errorf("cliapp: building transform cache: %w", err)
	}

	refGrid := resolved.ReferenceGrid(proj.LonLatToMercator)

	return orchestrator.New(adapters, procCache, transformCache, remote, refGrid, resolved.OutputRoot, opts, c.log), nil
}

// parseBackloadWindow resolves --hours or --from/--to into a
// [start, end) pair, matching the `--backload [--hours N | --from ...
// --to ...]` surface named in spec.md §6.
func parseBackloadWindow(hours int, from, to string) (start, end time.Time, err error) {
	if from != "" || to != "" {
		if from == "" || to == "" {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: --from and --to must both be set", radarerr.ErrConfig)
		}
		start, err = time.Parse("2006-01-02 15:04", from)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: parsing --from: %v", radarerr.ErrConfig, err)
		}
		end, err = time.Parse("2006-01-02 15:04", to)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: parsing --to: %v", radarerr.ErrConfig, err)
		}
		return start.UTC(), end.UTC(), nil
	}
	if hours <= 0 {
		hours = 24
	}
	end = time.Now().UTC()
	start = end.Add(-time.Duration(hours) * time.Hour)
	return start, end, nil
}
