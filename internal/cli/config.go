package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/kahnsched/pkg/cache"
	kio "github.com/matzehuels/kahnsched/pkg/io"
	"github.com/matzehuels/kahnsched/pkg/kahn"
	"github.com/matzehuels/kahnsched/pkg/pipeline"
)

// Config is the contents of config.toml. Command-line flags override it.
type Config struct {
	Schedule ScheduleConfig `toml:"schedule"`
	Cache    CacheConfig    `toml:"cache"`
	Serve    ServeConfig    `toml:"serve"`
}

// ScheduleConfig holds defaults shared by schedule and batch.
type ScheduleConfig struct {
	TieBreak    string `toml:"tie_break"`
	Deadlock    string `toml:"deadlock"`
	BreakCycles bool   `toml:"break_cycles"`
	Format      string `toml:"format"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	TTL duration `toml:"ttl"`
}

// ServeConfig configures the API server.
type ServeConfig struct {
	Addr          string `toml:"addr"`
	RedisAddr     string `toml:"redis_addr"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

// duration decodes TOML strings such as "24h".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Schedule: ScheduleConfig{
			TieBreak: pipeline.DefaultTieBreak,
			Deadlock: pipeline.DefaultDeadlock,
			Format:   pipeline.DefaultFormat,
		},
		Cache: CacheConfig{TTL: duration{cache.TTLRun}},
		Serve: ServeConfig{
			Addr:          ":8080",
			MongoDatabase: appName,
		},
	}
}

// defaultConfigPath returns $XDG_CONFIG_HOME/kahnsched/config.toml, falling
// back to ~/.config/kahnsched/config.toml.
func defaultConfigPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName, "config.toml")
}

// ReadConfig decodes path on top of the defaults. A missing file yields the
// defaults unless required is set.
func ReadConfig(path string, required bool) (Config, []string, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return DefaultConfig(), nil, nil
	}
	if err != nil {
		return cfg, nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var unknown []string
	for _, key := range md.Undecoded() {
		unknown = append(unknown, key.String())
	}
	if err := cfg.Validate(); err != nil {
		return cfg, unknown, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, unknown, nil
}

// Validate rejects values the scheduler would not accept.
func (cfg Config) Validate() error {
	if _, err := kahn.ParseTieBreak(cfg.Schedule.TieBreak); err != nil {
		return fmt.Errorf("schedule.tie_break: %w", err)
	}
	if _, err := kahn.ParseDeadlockPolicy(cfg.Schedule.Deadlock); err != nil {
		return fmt.Errorf("schedule.deadlock: %w", err)
	}
	if _, err := kio.ParseFormat(cfg.Schedule.Format); err != nil {
		return fmt.Errorf("schedule.format: %w", err)
	}
	if cfg.Cache.TTL.Duration < 0 {
		return fmt.Errorf("cache.ttl: must not be negative")
	}
	return nil
}

// loadConfig reads c.configPath into c.config.
func (c *CLI) loadConfig(explicit bool) error {
	cfg, unknown, err := ReadConfig(c.configPath, explicit)
	if err != nil {
		return err
	}
	if len(unknown) > 0 {
		c.Logger.Warn("unknown config keys", "path", c.configPath, "keys", strings.Join(unknown, ", "))
	}
	c.config = cfg
	return nil
}
