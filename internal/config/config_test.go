package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval)
	assert.Equal(t, "maintenance.events", cfg.MQExchange)
	assert.False(t, cfg.UpstreamMode())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://board.internal/")
	t.Setenv("REFRESH_INTERVAL", "5s")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("DB_MAX_OPEN_CONNS", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://board.internal", cfg.UpstreamURL)
	assert.True(t, cfg.UpstreamMode())
	assert.Equal(t, 5*time.Second, cfg.RefreshInterval)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 7, cfg.DBMaxOpenConns)
}

func TestValidate(t *testing.T) {
	cfg := &Config{HTTPPort: ":8080", RefreshInterval: time.Second}
	assert.Error(t, cfg.Validate())

	cfg.UpstreamURL = "http://board"
	assert.NoError(t, cfg.Validate())

	cfg.RefreshInterval = 0
	assert.Error(t, cfg.Validate())
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
}
