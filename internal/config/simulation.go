package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. GRIDCOMBAT_SEED.
const EnvPrefix = "GRIDCOMBAT"

// Simulation is the run configuration of the batch simulator.
type Simulation struct {
	Catalog  string `mapstructure:"catalog"`
	Setup    string `mapstructure:"setup"`
	Scenario string `mapstructure:"scenario"`
	Seed     int64  `mapstructure:"seed"`
	Runs     int    `mapstructure:"runs"`
	Workers  int    `mapstructure:"workers"`
	MaxTurns int    `mapstructure:"max_turns"`
	Out      string `mapstructure:"out"`
	DB       string `mapstructure:"db"`
	LogLevel string `mapstructure:"log_level"`
}

func simulationDefaults(v *viper.Viper) {
	v.SetDefault("catalog", "assets/catalog")
	v.SetDefault("setup", "")
	v.SetDefault("scenario", "")
	v.SetDefault("seed", 0)
	v.SetDefault("runs", 1)
	v.SetDefault("workers", 4)
	v.SetDefault("max_turns", 200)
	v.SetDefault("out", "")
	v.SetDefault("db", "")
	v.SetDefault("log_level", "info")
}

// LoadSimulation reads the optional run-config file at path (YAML, JSON or
// TOML by extension) over the defaults, then applies GRIDCOMBAT_* environment
// overrides and finally overrides, usually command-line flags. An empty path
// skips the file.
func LoadSimulation(path string, overrides map[string]any) (Simulation, error) {
	v := viper.New()
	simulationDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Simulation{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	var cfg Simulation
	if err := v.Unmarshal(&cfg); err != nil {
		return Simulation{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings no run can use.
func (c Simulation) Validate() error {
	var errs []error
	if c.Setup == "" && c.Scenario == "" {
		errs = append(errs, errors.New("one of setup or scenario is required"))
	}
	if c.Runs < 1 {
		errs = append(errs, fmt.Errorf("runs must be positive, got %d", c.Runs))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	return errors.Join(errs...)
}
