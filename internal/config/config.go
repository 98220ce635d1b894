// Package config loads the engine configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-logr/logr"

	"github.com/l7mp/dflow/pkg/engine"
	"github.com/l7mp/dflow/pkg/persist"
)

const (
	DefaultFlushInterval  = time.Second
	DefaultMetricsAddress = ":8080"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is the engine configuration.
type Config struct {
	// Workers bounds the number of nodes processed in parallel, zero means GOMAXPROCS.
	Workers     int         `toml:"workers"`
	Persistence Persistence `toml:"persistence"`
	Metrics     Metrics     `toml:"metrics"`
}

type Persistence struct {
	Mode          string        `toml:"mode"`
	Path          string        `toml:"path"`
	FlushInterval time.Duration `toml:"flush-interval"`
	QueueCapacity int           `toml:"queue-capacity"`
}

type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
}

// Default returns the default configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a config file. Missing fields take their default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

// Parse decodes a config. Unknown keys are rejected.
func Parse(data string) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown keys %s", ErrInvalidConfig, strings.Join(keys, ", "))
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Persistence.Mode) == "" {
		cfg.Persistence.Mode = string(persist.ModeMemory)
	}
	if cfg.Persistence.FlushInterval == 0 {
		cfg.Persistence.FlushInterval = DefaultFlushInterval
	}
	if cfg.Persistence.QueueCapacity == 0 {
		cfg.Persistence.QueueCapacity = engine.DefaultQueueCapacity
	}
	if strings.TrimSpace(cfg.Metrics.Address) == "" {
		cfg.Metrics.Address = DefaultMetricsAddress
	}
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidConfig)
	}
	mode, err := persist.ParseMode(c.Persistence.Mode)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if mode == persist.ModePermanent && strings.TrimSpace(c.Persistence.Path) == "" {
		return fmt.Errorf("%w: permanent persistence needs a path", ErrInvalidConfig)
	}
	if c.Persistence.FlushInterval < 0 {
		return fmt.Errorf("%w: flush-interval must not be negative", ErrInvalidConfig)
	}
	if c.Persistence.QueueCapacity < 0 {
		return fmt.Errorf("%w: queue-capacity must not be negative", ErrInvalidConfig)
	}
	return nil
}

// PersistParams returns the durability log parameters.
func (c *Config) PersistParams(logger logr.Logger) persist.Params {
	return persist.Params{
		Mode:          persist.Mode(c.Persistence.Mode),
		Path:          c.Persistence.Path,
		FlushInterval: c.Persistence.FlushInterval,
		Logger:        logger,
	}
}

// EngineOptions opens the durability log and returns the engine options. The log is closed by
// the engine.
func (c *Config) EngineOptions(logger logr.Logger) (engine.Options, error) {
	plog, err := persist.Open(c.PersistParams(logger))
	if err != nil {
		return engine.Options{}, err
	}
	return engine.Options{
		Workers:       c.Workers,
		QueueCapacity: c.Persistence.QueueCapacity,
		Log:           plog,
		Logger:        logger,
	}, nil
}
