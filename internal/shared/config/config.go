package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoggingConfig contains logging-related configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EngineConfig controls map and reduce parallelism.
type EngineConfig struct {
	Mappers  int `mapstructure:"mappers"`
	Reducers int `mapstructure:"reducers"`
}

// ModelConfig holds the default readmission scoring weights.
type ModelConfig struct {
	WeightAge     float64 `mapstructure:"weight_age"`
	WeightGlucose float64 `mapstructure:"weight_glucose"`
	Threshold     float64 `mapstructure:"threshold"`
}

func setEngineDefaults(v *viper.Viper) {
	v.SetDefault("engine.mappers", 4)
	v.SetDefault("engine.reducers", 4)
	v.SetDefault("model.weight_age", 0.03)
	v.SetDefault("model.weight_glucose", 0.015)
	v.SetDefault("model.threshold", 4.0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// load reads an optional config file named name from ./config or the working
// directory (or configPath when set), then applies env overrides with prefix.
func load(v *viper.Viper, configPath, name, prefix string, out any) error {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(name)
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	return nil
}
