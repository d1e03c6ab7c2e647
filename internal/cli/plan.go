package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/thumbatlas/pkg/pipeline"
)

// planCommand creates the plan command.
func (c *CLI) planCommand() *cobra.Command {
	var flags layoutFlags

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the layout a generate run would produce",
		Long: `Plan reads image dimensions and computes the packed layout without
decoding or writing anything, then prints the atlas size, fill ratio and any
corrective scale.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.apply(c.settings())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			runner, err := c.newRunner(ctx, cfg, flags.noCache)
			if err != nil {
				return err
			}
			defer runner.Close()

			opts, err := pipeline.OptionsFromConfig(cfg)
			if err != nil {
				return err
			}
			opts.Logger = logger

			plan, err := runner.Plan(ctx, opts)
			if err != nil {
				return err
			}

			printInfo("Layout for %s", StyleHighlight.Render(opts.ImagesDir))
			printKeyValue("Images", fmt.Sprintf("%d", plan.Images))
			printKeyValue("Image cap", fmt.Sprintf("%d px", plan.DimensionCap))
			printKeyValue("Size", fmt.Sprintf("%d x %d", plan.Width, plan.Height))
			printKeyValue("Fill", fmt.Sprintf("%.1f%%", plan.Fill*100))
			if plan.Correction.Applied {
				printWarning("Layout exceeds the maximum; images will be scaled by %.4f", plan.Correction.Scale)
			}
			printDropped(plan.Dropped)
			printNewline()
			printNextStep("Generate it", appName+" generate")
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
