package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("DATABASE_URL_TEST", "sqlite://:memory:")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, "sqlite://:memory:", cfg.DatabaseURL)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 20*time.Millisecond, cfg.UpdateRetryBase)
	assert.Equal(t, 3, cfg.UpdateMaxAttempts)
	assert.Equal(t, 200, cfg.SweepBatchSize)
	assert.True(t, cfg.WorkersEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL_PROD", "postgres://prod")
	t.Setenv("SWEEP_INTERVAL", "15s")
	t.Setenv("UPDATE_MAX_ATTEMPTS", "5")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("WORKERS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://prod", cfg.DatabaseURL)
	assert.Equal(t, 15*time.Second, cfg.SweepInterval)
	assert.Equal(t, 5, cfg.UpdateMaxAttempts)
	assert.Equal(t, "nats://localhost:4222", cfg.NatsURL)
	assert.False(t, cfg.WorkersEnabled)
}
