package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/kahnsched/pkg/api"
	"github.com/matzehuels/kahnsched/pkg/cache"
	"github.com/matzehuels/kahnsched/pkg/observability"
	"github.com/matzehuels/kahnsched/pkg/pipeline"
	"github.com/matzehuels/kahnsched/pkg/store"
	"github.com/matzehuels/kahnsched/pkg/store/mongo"
)

const shutdownTimeout = 5 * time.Second

// serveCommand creates the serve command for running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var cfg ServeConfig
	var noCache bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduling HTTP API",
		Long: `Run the scheduling HTTP API.

Scheduled runs are archived in memory unless --mongo-uri is given. Results
are cached in Redis when --redis-addr is given and in the local cache
directory otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), c.serveConfig(cmd, cfg), noCache)
		},
	}

	cmd.Flags().StringVar(&cfg.Addr, "addr", "", "listen address (default :8080)")
	cmd.Flags().StringVar(&cfg.RedisAddr, "redis-addr", "", "Redis address or redis:// URL for the result cache")
	cmd.Flags().StringVar(&cfg.MongoURI, "mongo-uri", "", "MongoDB URI for the run archive")
	cmd.Flags().StringVar(&cfg.MongoDatabase, "mongo-database", "", "MongoDB database name (default kahnsched)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

// serveConfig overlays flags the user set on the [serve] config section.
func (c *CLI) serveConfig(cmd *cobra.Command, flags ServeConfig) ServeConfig {
	cfg := c.config.Serve
	if cmd.Flags().Changed("addr") {
		cfg.Addr = flags.Addr
	}
	if cmd.Flags().Changed("redis-addr") {
		cfg.RedisAddr = flags.RedisAddr
	}
	if cmd.Flags().Changed("mongo-uri") {
		cfg.MongoURI = flags.MongoURI
	}
	if cmd.Flags().Changed("mongo-database") {
		cfg.MongoDatabase = flags.MongoDatabase
	}
	return cfg
}

// runServe wires the backends and serves until ctx is cancelled.
func (c *CLI) runServe(ctx context.Context, cfg ServeConfig, noCache bool) error {
	runner, err := c.newServeRunner(ctx, cfg, noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	if c.Logger.GetLevel() <= log.DebugLevel {
		observability.NewLogHooks(c.Logger).Register()
		defer observability.Reset()
	}

	srv := api.NewServer(runner, c.Logger).HTTPServer(cfg.Addr)
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	c.console().success("Listening on %s", styleAccent.Render(cfg.Addr))

	select {
	case err := <-errc:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	c.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

// newServeRunner picks the cache and store backends for the API server.
func (c *CLI) newServeRunner(ctx context.Context, cfg ServeConfig, noCache bool) (*pipeline.Runner, error) {
	var rc cache.Cache
	switch {
	case noCache:
		rc = cache.Disabled()
	case cfg.RedisAddr != "":
		redis, err := cache.NewRedisCache(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		c.Logger.Info("using redis cache", "addr", cfg.RedisAddr)
		rc = redis
	default:
		fc, err := c.newCache(false)
		if err != nil {
			return nil, err
		}
		rc = fc
	}

	runner := pipeline.NewRunner(rc, nil, c.Logger)
	runner.TTL = c.config.Cache.TTL.Duration

	if cfg.MongoURI == "" {
		runner.Store = store.NewMemoryStore()
		return runner, nil
	}
	st, err := mongo.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		runner.Close()
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	c.Logger.Info("using mongodb archive", "database", cfg.MongoDatabase)
	runner.Store = st
	return runner, nil
}
