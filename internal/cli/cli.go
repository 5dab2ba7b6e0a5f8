package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/kahnsched/pkg/buildinfo"
	"github.com/matzehuels/kahnsched/pkg/cache"
	"github.com/matzehuels/kahnsched/pkg/pipeline"
	"github.com/matzehuels/kahnsched/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "kahnsched"

	// historySuffix replaces the input extension when no output path is given.
	historySuffix = ".history.json"
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
	config     Config

	// out receives command output, errOut the spinner.
	out    io.Writer
	errOut io.Writer
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		config: DefaultConfig(),
		out:    os.Stdout,
		errOut: os.Stderr,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

func (c *CLI) console() console {
	return console{w: c.out}
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "kahnsched schedules dependency graphs by priority",
		Long: `kahnsched orders the nodes of a dependency graph with a priority-constrained
variant of Kahn's algorithm and records the full state of every step, so a
schedule can be inspected, replayed or used as training data.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.loadConfig(cmd.Flags().Changed("config")); err != nil {
				return err
			}
			c.out, c.errOut = cmd.OutOrStdout(), cmd.ErrOrStderr()
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", defaultConfigPath(), "config file")

	// Register all subcommands
	root.AddCommand(c.scheduleCommand())
	root.AddCommand(c.batchCommand())
	root.AddCommand(c.replayCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use. With archive set, runs
// are saved to the file store.
func (c *CLI) newRunner(noCache, archive bool) (*pipeline.Runner, error) {
	cache, err := c.newCache(noCache)
	if err != nil {
		return nil, err
	}
	runner := pipeline.NewRunner(cache, nil, c.Logger)
	runner.TTL = c.config.Cache.TTL.Duration

	if archive {
		dir, err := store.DefaultDir()
		if err != nil {
			return nil, err
		}
		st, err := store.NewFileStore(dir)
		if err != nil {
			return nil, err
		}
		runner.Store = st
	}
	return runner, nil
}

func (c *CLI) newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.Disabled(), nil
	}
	dir, err := cache.DefaultDir()
	if err != nil {
		c.Logger.Debug("no cache directory, caching disabled", "err", err)
		return cache.Disabled(), nil
	}
	return cache.NewFileCache(dir)
}
