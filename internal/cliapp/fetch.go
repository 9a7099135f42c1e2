package cliapp

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/imeteo/radarfusion/internal/config"
	"github.com/imeteo/radarfusion/internal/extentindex"
	"github.com/imeteo/radarfusion/internal/orchestrator"
	"github.com/imeteo/radarfusion/internal/radarerr"
)

func newFetchCommand(c *Cfg) *cobra.Command {
	var source string
	var backload bool
	var hours int
	var from, to string
	var updateExtent bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and decode a single source, without fusing it into a composite.",
		Long: `fetch drives one Source Adapter on its own: list available timestamps,
download, decode, and export its per-source PNG(s). Useful for
backfilling one provider's archive or diagnosing a single adapter
without running the full multi-source pipeline.`,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if source == "" {
				return fmt.Errorf("%w: --source is required", radarerr.ErrConfig)
			}
			if err := config.ValidateSources([]string{source}); err != nil {
				return err
			}

			opts := orchestrator.DefaultOptions()
			opts.MaxWorkers = c.resolved.MaxWorkers
			opts.DisableUpload = c.resolved.DisableUpload
			// A single-source run has no cross-source quorum to enforce.
			opts.MinCoreSources = 1
			opts.CoreQuorum = 1
			opts.TimestampToleranceMinutes = 0

			orch, err := buildOrchestrator(cmd, c, []string{source}, opts)
			if err != nil {
				return err
			}

			var summary orchestrator.Summary
			if backload {
				start, end, err := parseBackloadWindow(hours, from, to)
				if err != nil {
					return err
				}
				summary, err = orch.RunBackload(cmd.Context(), []string{source}, start, end)
				if err != nil {
					return err
				}
			} else {
				summary, err = orch.RunLatest(cmd.Context(), []string{source})
				if err != nil {
					return err
				}
			}

			c.log.Info().
				Int("processed", summary.Processed).
				Int("skipped_exists", summary.SkippedExists).
				Int("skipped_insufficient", summary.SkippedInsufficient).
				Int("failed", summary.Failed).
				Str("source", source).
				Msg("fetch: run complete")

			if updateExtent {
				adapters, err := buildAdapters([]string{source}, c.log)
				if err != nil {
					return err
				}
				native := adapters[source].NativeExtent()
				generated := time.Now().UTC().Format(time.RFC3339)
				idx := extentindex.NewIndex(
					extentindex.BuildSource(source, config.Country[source], native.WGS84Bounds, "", native.GridSize, native.ResolutionM, &native.MercatorBounds),
					generated,
				)
				path := filepath.Join(c.resolved.OutputRoot, config.Country[source], "extent_index.json")
				if err := extentindex.WriteFile(path, idx); err != nil {
					return fmt.Errorf("fetch: writing extent index: %w", err)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "one of dwd, shmu, chmi, arso, omsz, imgw")
	cmd.Flags().BoolVar(&backload, "backload", false, "process an archival window instead of the latest timestamps")
	cmd.Flags().IntVar(&hours, "hours", 24, "backload window size in hours (ignored if --from/--to set)")
	cmd.Flags().StringVar(&from, "from", "", `backload window start, "YYYY-MM-DD HH:MM" UTC`)
	cmd.Flags().StringVar(&to, "to", "", `backload window end, "YYYY-MM-DD HH:MM" UTC`)
	cmd.Flags().BoolVar(&updateExtent, "update-extent", false, "write this source's extent_index.json after the run")
	return cmd
}
