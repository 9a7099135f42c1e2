package cliapp

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/imeteo/radarfusion/internal/config"
	"github.com/imeteo/radarfusion/internal/extentindex"
	"github.com/imeteo/radarfusion/internal/radarerr"
)

func newExtentCommand(c *Cfg) *cobra.Command {
	var source string
	var output string

	cmd := &cobra.Command{
		Use:   "extent",
		Short: "Write a source's (or every source's) static geometry to extent_index.json.",
		Long: `extent queries each requested Source Adapter's static NativeExtent
(no network call, no frame decode) and writes it to extent_index.json.
--source all also writes radar_extent_combined.json, merging every
source into one document.`,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if source == "" {
				return fmt.Errorf("%w: --source is required", radarerr.ErrConfig)
			}

			var names []string
			if source == "all" {
				names = config.AllSources
			} else {
				names = []string{source}
			}
			if err := config.ValidateSources(names); err != nil {
				return err
			}

			adapters, err := buildAdapters(names, c.log)
			if err != nil {
				return err
			}

			generated := time.Now().UTC().Format(time.RFC3339)
			outputRoot := c.resolved.OutputRoot
			if output != "" {
				outputRoot = output
			}

			var combinedSources []extentindex.Source
			for _, name := range names {
				native := adapters[name].NativeExtent()
				mb := native.MercatorBounds
				src := extentindex.BuildSource(name, config.Country[name], native.WGS84Bounds, "", native.GridSize, native.ResolutionM, &mb)
				combinedSources = append(combinedSources, src)

				idx := extentindex.NewIndex(src, generated)
				path := filepath.Join(outputRoot, config.Country[name], "extent_index.json")
				if err := extentindex.WriteFile(path, idx); err != nil {
					return fmt.Errorf("extent: writing %s: %w", path, err)
				}
				c.log.Info().Str("source", name).Str("path", path).Msg("extent: wrote source index")
			}

			if source == "all" {
				combined := extentindex.NewCombined(combinedSources, generated)
				path := filepath.Join(outputRoot, "extent", "radar_extent_combined.json")
				if err := extentindex.WriteFile(path, combined); err != nil {
					return fmt.Errorf("extent: writing %s: %w", path, err)
				}
				c.log.Info().Str("path", path).Msg("extent: wrote combined index")
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "one of dwd, shmu, chmi, arso, omsz, imgw, or all")
	cmd.Flags().StringVar(&output, "output", "", "override the output root directory for extent_index.json")
	return cmd
}
