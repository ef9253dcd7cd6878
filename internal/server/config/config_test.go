package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads so the host environment does
// not leak into assertions
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ARCADE_API_HOST", "ARCADE_API_PORT", "ARCADE_WS_PORT", "ARCADE_DEV", "ARCADE_RATE_LIMIT",
		"ARCADE_DATABASE_URL", "ARCADE_STORAGE_PATH", "ARCADE_REDIS_URL", "ARCADE_JWT_SECRET",
		"ARCADE_INVITE_TTL", "ARCADE_SWEEP_INTERVAL", "ARCADE_MOVE_RETRY_LIMIT",
		"ARCADE_OTEL_ENDPOINT", "ARCADE_OTEL_ENABLED",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.APIHost)
	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, 8081, cfg.WSPort)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 3, cfg.MoveRetryLimit)
	assert.Zero(t, cfg.InviteTTL)
	assert.Equal(t, StoreMemory, cfg.StoreKind())
	assert.False(t, cfg.TracingEnabled())
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ARCADE_API_PORT", "9000")
	t.Setenv("ARCADE_INVITE_TTL", "24h")
	t.Setenv("ARCADE_STORAGE_PATH", "/tmp/arcade.db")
	t.Setenv("ARCADE_OTEL_ENDPOINT", "http://localhost:4318")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.APIPort)
	assert.Equal(t, 24*time.Hour, cfg.InviteTTL)
	assert.Equal(t, StoreSQLite, cfg.StoreKind())
	assert.True(t, cfg.TracingEnabled())

	svc := cfg.Service()
	assert.Equal(t, 24*time.Hour, svc.InviteTTL)
	assert.Equal(t, 3, svc.MoveRetryLimit)

	t.Setenv("ARCADE_DATABASE_URL", "postgres://localhost/arcade")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.StoreKind())
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ARCADE_API_PORT=7000\nARCADE_REDIS_URL=redis://localhost:6379/0\n"), 0o600))

	// the environment wins over the file
	t.Setenv("ARCADE_API_PORT", "7100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.APIPort)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.APIPort = 0 }},
		{"port collision", func(c *Config) { c.WSPort = c.APIPort }},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }},
		{"negative ttl", func(c *Config) { c.InviteTTL = -time.Second }},
		{"negative retries", func(c *Config) { c.MoveRetryLimit = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{APIPort: 8080, WSPort: 8081, MoveRetryLimit: 3}
			require.NoError(t, cfg.Validate())
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
