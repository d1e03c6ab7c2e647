package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/thumbatlas/pkg/pipeline"
	"github.com/matzehuels/thumbatlas/pkg/server"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the atlas trigger and status API",
		Long: `Serve starts the HTTP API. POST /api/atlas starts a run and returns
immediately; GET /api/atlas/status reports its progress.`,
		Example: `  # Listen on the configured address
  thumbatlas serve

  # Listen on a custom port with shared Redis status
  THUMBATLAS_STATUS_BACKEND=redis thumbatlas serve --addr :9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			cfg := c.settings()

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

			srv := server.New(runner, opts, cfg.Status.StaleAfter.Duration, logger)
			srv.Addr = cfg.Server.Addr
			if addr != "" {
				srv.Addr = addr
			}
			srv.ShutdownTimeout = cfg.Server.ShutdownTimeout.Duration

			printInfo("Serving %s on %s", StyleHighlight.Render(opts.ImagesDir), StyleLink.Render(srv.Addr))
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the dimension probe cache")
	return cmd
}
