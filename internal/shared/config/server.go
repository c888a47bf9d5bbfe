package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig contains all configuration for the analytics server.
type ServerConfig struct {
	Dataset DatasetConfig `mapstructure:"dataset"`
	Output  OutputConfig  `mapstructure:"output"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Model   ModelConfig   `mapstructure:"model"`
	Runs    RunsConfig    `mapstructure:"runs"`
	Store   StoreConfig   `mapstructure:"store"`
	REST    RESTConfig    `mapstructure:"rest"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// DatasetConfig points at the input dataset (a doublestar glob).
type DatasetConfig struct {
	Path string `mapstructure:"path"`
}

// OutputConfig controls where run outputs live and how many result rows are
// returned inline.
type OutputConfig struct {
	BaseDir          string `mapstructure:"base_dir"`
	MaxInlineResults int    `mapstructure:"max_inline_results"`
}

// RunsConfig sizes the pool executing submitted runs. A zero Retention keeps
// finished runs forever.
type RunsConfig struct {
	Workers       int           `mapstructure:"workers"`
	QueueSize     int           `mapstructure:"queue_size"`
	Retention     time.Duration `mapstructure:"retention"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// StoreConfig selects the run history backend: "memory" or "sqlite".
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// RESTConfig contains REST API server configuration.
type RESTConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoadServer loads the server configuration from the given path.
// If configPath is empty, it looks for server.yaml in the config/ directory.
// Environment variables with CLINMR_ prefix override config file values.
func LoadServer(configPath string) (*ServerConfig, error) {
	v := viper.New()

	setEngineDefaults(v)
	v.SetDefault("dataset.path", "input/datos.csv")
	v.SetDefault("output.base_dir", "output")
	v.SetDefault("output.max_inline_results", 1000)
	v.SetDefault("runs.workers", 2)
	v.SetDefault("runs.queue_size", 64)
	v.SetDefault("runs.retention", 0)
	v.SetDefault("runs.sweep_interval", 10*time.Minute)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "clinmr.db")
	v.SetDefault("rest.addr", ":8080")
	v.SetDefault("rest.read_timeout", 15*time.Second)
	v.SetDefault("rest.write_timeout", 10*time.Minute)
	v.SetDefault("rest.idle_timeout", 60*time.Second)

	var cfg ServerConfig
	if err := load(v, configPath, "server", "CLINMR", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ServerConfig) Validate() error {
	if c.Dataset.Path == "" {
		return fmt.Errorf("dataset.path is required")
	}
	if c.Output.BaseDir == "" {
		return fmt.Errorf("output.base_dir is required")
	}
	if c.Engine.Mappers <= 0 || c.Engine.Reducers <= 0 {
		return fmt.Errorf("engine.mappers and engine.reducers must be greater than 0")
	}
	if c.Runs.Workers <= 0 || c.Runs.QueueSize <= 0 {
		return fmt.Errorf("runs.workers and runs.queue_size must be greater than 0")
	}
	if c.Runs.Retention < 0 {
		return fmt.Errorf("runs.retention must not be negative")
	}
	if c.Runs.Retention > 0 && c.Runs.SweepInterval <= 0 {
		return fmt.Errorf("runs.sweep_interval must be greater than 0 when retention is set")
	}
	switch c.Store.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	return nil
}
