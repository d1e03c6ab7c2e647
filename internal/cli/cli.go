package cli

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/matzehuels/thumbatlas/pkg/buildinfo"
	"github.com/matzehuels/thumbatlas/pkg/cache"
	"github.com/matzehuels/thumbatlas/pkg/config"
	"github.com/matzehuels/thumbatlas/pkg/errors"
	"github.com/matzehuels/thumbatlas/pkg/history"
	"github.com/matzehuels/thumbatlas/pkg/observability"
	"github.com/matzehuels/thumbatlas/pkg/pipeline"
	"github.com/matzehuels/thumbatlas/pkg/status"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for display.
	appName = "thumbatlas"

	// defaultEnvFile is loaded before the config when present.
	defaultEnvFile = ".env"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	envFile    string
	cfg        *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Thumbatlas packs image collections into a single texture atlas",
		Long:         `Thumbatlas scans a directory of images, packs them into one atlas PNG no larger than a fixed maximum, and writes a coordinate map for GPU viewers.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			if c.Logger.GetLevel() <= LogDebug {
				hooks := observability.NewLogHooks(c.Logger)
				observability.SetPipelineHooks(hooks)
				observability.SetCacheHooks(hooks)
			}
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default ./"+config.DefaultFile+" if present)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", defaultEnvFile, "dotenv file loaded before the config")

	// Register all subcommands
	root.AddCommand(c.generateCommand())
	root.AddCommand(c.planCommand())
	root.AddCommand(c.statusCommand())
	root.AddCommand(c.historyCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the dotenv file and the configuration once per process.
func (c *CLI) loadConfig() error {
	if c.cfg != nil {
		return nil
	}
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil && !(os.IsNotExist(err) && c.envFile == defaultEnvFile) {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "load %s", c.envFile)
		}
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.Logger.Debug("loaded config", "data_dir", cfg.DataDir, "status", cfg.Status.Backend, "history", cfg.History.Backend)
	return nil
}

// settings returns the loaded configuration, falling back to defaults for
// commands run without the root pre-run.
func (c *CLI) settings() *config.Config {
	if c.cfg == nil {
		c.cfg = config.Default()
	}
	return c.cfg
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use, with stores chosen by
// the configuration.
func (c *CLI) newRunner(ctx context.Context, cfg *config.Config, noCache bool) (*pipeline.Runner, error) {
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	ch, err := newCache(cfg, noCache)
	if err != nil {
		return nil, err
	}
	store, err := openStatusStore(ctx, cfg)
	if err != nil {
		ch.Close()
		return nil, err
	}
	hist, err := openHistoryStore(ctx, cfg)
	if err != nil {
		ch.Close()
		store.Close()
		return nil, err
	}
	return pipeline.NewRunner(ch, newKeyer(cfg), store, hist, c.Logger), nil
}

// newKeyer scopes cache keys by the configured namespace, if any.
func newKeyer(cfg *config.Config) cache.Keyer {
	if cfg.Cache.Namespace == "" {
		return cache.NewDefaultKeyer()
	}
	return cache.NewScopedKeyer(nil, cfg.Cache.Namespace+":")
}

func newCache(cfg *config.Config, noCache bool) (cache.Cache, error) {
	if noCache || !cfg.Cache.Enabled || cfg.Cache.Dir == "" {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(cfg.Cache.Dir)
}

// openStatusStore returns the status backend named by the configuration.
func openStatusStore(ctx context.Context, cfg *config.Config) (status.Store, error) {
	switch cfg.Status.Backend {
	case config.BackendMemory:
		return status.NewMemoryStore(), nil
	case config.BackendFile:
		return status.NewFileStore(cfg.Status.Path)
	case config.BackendRedis:
		return status.NewRedisStore(ctx, cfg.Status.RedisAddr, cfg.Status.RedisKey)
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "invalid status backend: %q", cfg.Status.Backend)
	}
}

// openHistoryStore returns the run history backend named by the
// configuration.
func openHistoryStore(ctx context.Context, cfg *config.Config) (history.Store, error) {
	switch cfg.History.Backend {
	case config.BackendNone, "":
		return history.NullStore{}, nil
	case config.BackendMemory:
		return history.NewMemoryStore(0), nil
	case config.BackendMongo:
		return history.NewMongoStore(ctx, cfg.History.MongoURI, cfg.History.Database, cfg.History.Collection)
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "invalid history backend: %q", cfg.History.Backend)
	}
}

// statusReader builds a reader over the configured store. Live is left
// unset: the CLI cannot see runs in other processes.
func statusReader(store status.Store, cfg *config.Config, logger *log.Logger) *status.Reader {
	return &status.Reader{
		Store:      store,
		StaleAfter: cfg.Status.StaleAfter.Duration,
		Artifacts:  []string{cfg.AtlasImage, cfg.CoordinateMap},
		Logger:     logger,
	}
}
