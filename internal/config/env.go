package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Server is the battle server configuration, read from the environment.
type Server struct {
	Addr         string `env:"GRIDCOMBAT_ADDR" envDefault:":8080"`
	CatalogDir   string `env:"GRIDCOMBAT_CATALOG_DIR" envDefault:"assets/catalog"`
	DBPath       string `env:"GRIDCOMBAT_DB_PATH" envDefault:"gridcombat.db"`
	LogLevel     string `env:"GRIDCOMBAT_LOG_LEVEL" envDefault:"info"`
	MaxTurns     int    `env:"GRIDCOMBAT_MAX_TURNS" envDefault:"200"`
	OtelEndpoint string `env:"GRIDCOMBAT_OTEL_ENDPOINT"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServer parses Server from the environment.
func LoadServer() (Server, error) {
	var cfg Server
	if err := ParseEnv(&cfg); err != nil {
		return Server{}, err
	}
	if cfg.MaxTurns < 1 {
		return Server{}, fmt.Errorf("GRIDCOMBAT_MAX_TURNS must be positive, got %d", cfg.MaxTurns)
	}
	return cfg, nil
}
