package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.WorkerPollInterval)
	assert.Equal(t, 30, cfg.DeliveryRetentionDays)
}

func TestLoad_ReadsEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("WEBHOOK_WORKER_POLL_INTERVAL_SECS", "5")
	os.Unsetenv("DATABASE_URL")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 5*time.Second, cfg.WorkerPollInterval)
}

func TestLoad_InvalidIntOverrideFallsBackToDefault(t *testing.T) {
	t.Setenv("WEBHOOK_WORKER_POLL_INTERVAL_SECS", "not-a-number")
	t.Setenv("WEBHOOK_DELIVERY_RETENTION_DAYS", "-5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.WorkerPollInterval)
	assert.Equal(t, 30, cfg.DeliveryRetentionDays)
}
