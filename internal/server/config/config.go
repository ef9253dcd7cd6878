// Package config reads server settings from the environment, optionally
// seeded from a .env file. Command-line flags in cmd/arcade-server take
// precedence over anything loaded here.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"arcade/internal/server/service"
)

const minSecretLength = 32

// Store backends
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

type Config struct {
	APIHost   string `env:"ARCADE_API_HOST" envDefault:"localhost"`
	APIPort   int    `env:"ARCADE_API_PORT" envDefault:"8080"`
	WSPort    int    `env:"ARCADE_WS_PORT" envDefault:"8081"`
	DevMode   bool   `env:"ARCADE_DEV"`
	RateLimit int    `env:"ARCADE_RATE_LIMIT"`

	// DatabaseURL selects postgres; otherwise StoragePath selects sqlite and
	// with neither games live in memory
	DatabaseURL string `env:"ARCADE_DATABASE_URL"`
	StoragePath string `env:"ARCADE_STORAGE_PATH"`
	// RedisURL fans changes out across instances; empty uses the in-process hub
	RedisURL string `env:"ARCADE_REDIS_URL"`

	JWTSecret string `env:"ARCADE_JWT_SECRET"`

	InviteTTL      time.Duration `env:"ARCADE_INVITE_TTL"`
	SweepInterval  time.Duration `env:"ARCADE_SWEEP_INTERVAL" envDefault:"1m"`
	MoveRetryLimit int           `env:"ARCADE_MOVE_RETRY_LIMIT" envDefault:"3"`

	OTelEndpoint string `env:"ARCADE_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"ARCADE_OTEL_ENABLED" envDefault:"true"`
}

// Load reads envFile when it exists and then parses the environment.
// Variables already set win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid API port %d", c.APIPort))
	}
	if c.WSPort < 0 || c.WSPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid websocket port %d", c.WSPort))
	}
	if c.WSPort != 0 && c.WSPort == c.APIPort {
		errs = append(errs, fmt.Errorf("websocket port %d collides with API port", c.WSPort))
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT secret must be at least %d characters", minSecretLength))
	}
	if c.InviteTTL < 0 {
		errs = append(errs, fmt.Errorf("invite TTL must not be negative"))
	}
	if c.MoveRetryLimit < 0 {
		errs = append(errs, fmt.Errorf("move retry limit must not be negative"))
	}
	return errors.Join(errs...)
}

// StoreKind names the backend the settings select
func (c *Config) StoreKind() string {
	switch {
	case c.DatabaseURL != "":
		return StorePostgres
	case c.StoragePath != "":
		return StoreSQLite
	default:
		return StoreMemory
	}
}

// TracingEnabled reports whether spans should be exported
func (c *Config) TracingEnabled() bool {
	return c.OTelEnabled && c.OTelEndpoint != ""
}

// Service returns the engine settings
func (c *Config) Service() service.Config {
	return service.Config{
		MoveRetryLimit: c.MoveRetryLimit,
		InviteTTL:      c.InviteTTL,
		SweepInterval:  c.SweepInterval,
	}
}
