package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/thumbatlas/pkg/config"
	"github.com/matzehuels/thumbatlas/pkg/pipeline"
)

// layoutFlags are the overrides shared by generate and plan.
type layoutFlags struct {
	images      string
	output      string
	maxSize     int
	capFraction float64
	noCache     bool
}

func (f *layoutFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.images, "images", "i", "", "image directory (overrides images_dir)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output directory for atlas.png and atlas.json")
	cmd.Flags().IntVar(&f.maxSize, "max-size", 0, "maximum atlas width and height in pixels")
	cmd.Flags().Float64Var(&f.capFraction, "cap-fraction", 0, "share of the atlas side used for the per-image cap")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable the dimension probe cache")
}

// apply copies the set flags onto a copy of cfg.
func (f *layoutFlags) apply(cfg *config.Config) (*config.Config, error) {
	out := *cfg
	out.Atlas.Extensions = append([]string(nil), cfg.Atlas.Extensions...)
	// Directory flags are relative to the working directory, not data_dir.
	var err error
	if f.images != "" {
		if out.ImagesDir, err = filepath.Abs(f.images); err != nil {
			return nil, err
		}
	}
	if f.output != "" {
		if out.OutputDir, err = filepath.Abs(f.output); err != nil {
			return nil, err
		}
	}
	if f.maxSize > 0 {
		out.Atlas.MaxWidth = f.maxSize
		out.Atlas.MaxHeight = f.maxSize
	}
	if f.capFraction != 0 {
		out.Atlas.CapFraction = f.capFraction
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// generateCommand creates the generate command.
func (c *CLI) generateCommand() *cobra.Command {
	var flags layoutFlags

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the atlas and coordinate map",
		Long: `Generate scans the image directory, packs every readable image into a
single atlas no larger than the configured maximum, and writes atlas.png and
atlas.json to the output directory. Unreadable images are skipped.`,
		Example: `  # Use the configured data directory
  thumbatlas generate

  # Pack a different directory into a 4096px atlas
  thumbatlas generate --images ./thumbs --output ./public --max-size 4096`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.apply(c.settings())
			if err != nil {
				return err
			}
			return c.runGenerate(cmd, cfg, flags.noCache)
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *CLI) runGenerate(cmd *cobra.Command, cfg *config.Config, noCache bool) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	runner, err := c.newRunner(ctx, cfg, noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	opts.Logger = logger

	prog := newProgress(logger)
	spinner := newSpinnerWithContext(ctx, "Generating atlas...").follow(runner.Status)
	spinner.Start()
	result, err := runner.Execute(ctx, opts)
	if err != nil {
		spinner.StopWithError("Atlas generation failed")
		return err
	}
	spinner.Stop()
	prog.done(fmt.Sprintf("Generated %dx%d atlas", result.Width, result.Height))

	printSuccess("Packed %d images", result.Stats.Composited)
	printStats(result.Stats.Composited, len(result.Dropped), result.Stats.CacheHits)
	printKeyValue("Size", fmt.Sprintf("%d x %d", result.Width, result.Height))
	printKeyValue("Image cap", fmt.Sprintf("%d px", result.DimensionCap))
	printKeyValue("Fill", fmt.Sprintf("%.1f%%", result.Stats.Fill*100))
	if result.Correction.Applied {
		printKeyValue("Scaled", fmt.Sprintf("%.4f", result.Correction.Scale))
	}
	printFile(result.AtlasPath)
	printFile(result.CoordinatesPath)

	printDropped(result.Dropped)
	return nil
}
