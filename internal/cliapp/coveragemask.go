package cliapp

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/imeteo/radarfusion/internal/config"
	"github.com/imeteo/radarfusion/internal/coveragemask"
	"github.com/imeteo/radarfusion/internal/orchestrator"
	"github.com/imeteo/radarfusion/internal/proj"
	"github.com/imeteo/radarfusion/internal/radar"
	"github.com/imeteo/radarfusion/internal/radarerr"
	"github.com/imeteo/radarfusion/internal/sources"
	"github.com/imeteo/radarfusion/internal/transformcache"
)

func newCoverageMaskCommand(c *Cfg) *cobra.Command {
	var source string
	var resolutionM float64
	var output string

	cmd := &cobra.Command{
		Use:   "coverage-mask",
		Short: "Render coverage_mask.png: where a source can ever report data.",
		Long: `coverage-mask decodes one recent frame per requested source, derives
a per-pixel covered/uncovered mask from it, reprojects that mask onto
the Reference Grid through the same Transform Grid the fusion pipeline
uses, and writes it as coverage_mask.png. --source composite ORs every
configured source's mask together, the footprint the fused composite
can ever cover.`,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if source == "" {
				return fmt.Errorf("%w: --source is required", radarerr.ErrConfig)
			}

			resolved := c.resolved
			if cmd.Flags().Changed("resolution") {
				resolved.ResolutionM = resolutionM
			}

			var names []string
			switch source {
			case "all", "composite":
				names = config.AllSources
			default:
				names = []string{source}
			}
			if err := config.ValidateSources(names); err != nil {
				return err
			}

			adapters, err := buildAdapters(names, c.log)
			if err != nil {
				return err
			}

			transformDir := filepath.Join(filepath.Dir(filepath.Clean(resolved.CacheDir)), "grid")
			transformCache, err := transformcache.New(transformDir, nil)
			if err != nil {
				return fmt.Errorf("coverage-mask: building transform cache: %w", err)
			}
			refGrid := resolved.ReferenceGrid(proj.LonLatToMercator)

			ctx := cmd.Context()
			var combined []bool

			for _, name := range names {
				covered, err := sourceCoverageOnGrid(ctx, adapters[name], name, transformCache, refGrid)
				if err != nil {
					c.log.Warn().Err(err).Str("source", name).Msg("coverage-mask: skipping source")
					continue
				}

				if source == "composite" {
					if combined == nil {
						combined = make([]bool, len(covered))
					}
					coveragemask.CombineOR(combined, covered)
					continue
				}
				if err := writeCoverageMask(c, resolved, output, name, covered, refGrid); err != nil {
					return err
				}
			}

			if source == "composite" {
				if combined == nil {
					return fmt.Errorf("coverage-mask: no source produced a usable frame")
				}
				if err := writeCoverageMask(c, resolved, output, "composite", combined, refGrid); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "one of dwd, shmu, chmi, arso, omsz, imgw, all, or composite")
	cmd.Flags().Float64Var(&resolutionM, "resolution", radar.DefaultResolutionM, "Reference Grid resolution, metres/pixel")
	cmd.Flags().StringVar(&output, "output", "", "override the output root directory for coverage_mask.png")
	return cmd
}

// sourceCoverageOnGrid lists and downloads one recent timestamp for
// name's adapter, decodes it, derives its coverage mask and reprojects
// that mask onto the Reference Grid through the Transform Grid cache —
// the same geometry internal/orchestrator uses for data, specialized to
// booleans by internal/coveragemask.
func sourceCoverageOnGrid(ctx context.Context, adapter sources.Adapter, name string, transformCache *transformcache.Cache, refGrid radar.ReferenceGrid) ([]bool, error) {
	product, ok := orchestrator.DefaultProduct[name]
	if !ok {
		return nil, fmt.Errorf("%w: no default product for source %q", radarerr.ErrConfig, name)
	}

	timestamps, err := adapter.ListAvailableTimestamps(ctx, 1, []string{product}, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: listing timestamps: %w", name, err)
	}
	if len(timestamps) == 0 {
		return nil, fmt.Errorf("%s: no timestamps available", name)
	}

	results, err := adapter.Download(ctx, timestamps[:1], []string{product})
	if err != nil {
		return nil, fmt.Errorf("%s: download: %w", name, err)
	}
	if len(results) == 0 || results[0].Err != nil {
		return nil, fmt.Errorf("%s: no usable download result", name)
	}

	frame, err := adapter.Decode(ctx, results[0].Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", radarerr.ErrDecode, name, err)
	}
	if err := frame.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", radarerr.ErrDecode, name, err)
	}

	transformer, bounds, err := orchestrator.SourceGeometry(name, frame.Dims, frame.Bounds, frame.Projection)
	if err != nil {
		return nil, err
	}
	grid, err := transformCache.GetOrCompute(ctx, name, frame.Dims, transformer, bounds, refGrid)
	if err != nil {
		return nil, fmt.Errorf("%s: building transform grid: %w", name, err)
	}

	covered := coveragemask.FromFrame(frame.Data, frame.Dims.Height, frame.Dims.Width)
	if name == "arso" {
		// SRD-3's offset byte decodes to NaN but means "no echo" inside
		// the grid, so every ARSO pixel counts as covered.
		for i := range covered {
			covered[i] = true
		}
	}
	reprojected, err := coveragemask.Reproject(grid, covered, frame.Dims)
	if err != nil {
		return nil, fmt.Errorf("%s: reprojecting coverage mask: %w", name, err)
	}

	return reprojected, nil
}

func writeCoverageMask(c *Cfg, resolved config.Config, output, name string, covered []bool, refGrid radar.ReferenceGrid) error {
	pngBytes, err := coveragemask.Encode(covered, refGrid.DstShape.Height, refGrid.DstShape.Width)
	if err != nil {
		return fmt.Errorf("coverage-mask: encoding %s: %w", name, err)
	}
	root := resolved.OutputRoot
	if output != "" {
		root = output
	}
	path := filepath.Join(root, "coverage", name, "coverage_mask.png")
	if err := orchestrator.WriteFileAtomic(path, pngBytes); err != nil {
		return fmt.Errorf("coverage-mask: writing %s: %w", path, err)
	}
	c.log.Info().Str("source", name).Str("path", path).Msg("coverage-mask: wrote mask")
	return nil
}
