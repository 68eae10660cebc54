package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(4096), cfg.MaxMessageSize)
	assert.Equal(t, RateLimitConfig{Burst: 5, RefillInterval: time.Second}, cfg.RateLimit)
	assert.Equal(t, 256, cfg.DeliveryBuffer)
	assert.True(t, cfg.SeedFixtures)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "3")
	t.Setenv("DELIVERY_BUFFER", "32")
	t.Setenv("SEED_FIXTURES", "false")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("SHUTDOWN_TIMEOUT", "1500ms")

	cfg := NewConfigFromEnv()

	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(1024), cfg.MaxMessageSize)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Equal(t, 3*time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 32, cfg.DeliveryBuffer)
	assert.False(t, cfg.SeedFixtures)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 1500*time.Millisecond, cfg.ShutdownTimeout)
}

func TestNewConfigFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "-5")
	t.Setenv("RATE_LIMIT_BURST", "lots")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "soon")
	t.Setenv("SEED_FIXTURES", "maybe")

	cfg := NewConfigFromEnv()
	def := NewConfig()

	assert.Equal(t, def.MaxMessageSize, cfg.MaxMessageSize)
	assert.Equal(t, def.RateLimit, cfg.RateLimit)
	assert.Equal(t, def.SeedFixtures, cfg.SeedFixtures)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teamchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: ":7000"
allowed_origins:
  - "*"
rate_limit:
  burst: 20
  refill_interval: 2s
seed_fixtures: false
`), 0o600))

	cfg := NewConfig()
	require.NoError(t, LoadConfigFile(path, cfg))

	assert.Equal(t, ":7000", cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, RateLimitConfig{Burst: 20, RefillInterval: 2 * time.Second}, cfg.RateLimit)
	assert.False(t, cfg.SeedFixtures)
	assert.Equal(t, int64(4096), cfg.MaxMessageSize)
}

func TestLoadConfigFileErrors(t *testing.T) {
	cfg := NewConfig()
	assert.Error(t, LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"), cfg))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unclosed"), 0o600))
	assert.Error(t, LoadConfigFile(path, cfg))
}

func TestSanitizeConfig(t *testing.T) {
	origins := []string{"http://a.example"}
	cfg := sanitizeConfig(Config{AllowedOrigins: origins})

	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, int64(defaultMaxMessageSize), cfg.MaxMessageSize)
	assert.Equal(t, defaultBurst, cfg.RateLimit.Burst)
	assert.Equal(t, defaultRefillInterval, cfg.RateLimit.RefillInterval)
	assert.Equal(t, defaultDeliveryBuffer, cfg.DeliveryBuffer)
	assert.Equal(t, defaultShutdownTimeout, cfg.ShutdownTimeout)

	cfg.AllowedOrigins[0] = "changed"
	assert.Equal(t, "http://a.example", origins[0])
}
