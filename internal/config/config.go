package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything userctl reads from the environment. Database
// connection settings follow the libpq conventions (DATABASE_URL plus
// discrete PG* overrides) so the tool can run unchanged against hosted
// providers that inject either form.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	User        string `env:"PGUSER"`
	Password    string `env:"PGPASSWORD"`
	Host        string `env:"PGHOST" envDefault:"localhost"`
	Port        string `env:"PGPORT" envDefault:"5432"`
	Database    string `env:"PGDATABASE"`

	LogLevel     string        `env:"USERCTL_LOG_LEVEL" envDefault:"info"`
	LogFile      string        `env:"USERCTL_LOG_FILE"`
	QueryTimeout time.Duration `env:"USERCTL_QUERY_TIMEOUT" envDefault:"5s"`
}

// Load parses the process environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
