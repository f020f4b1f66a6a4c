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
	assert.Equal(t, "https://api.nexus-sentinel.app", cfg.APIURL)
	assert.Equal(t, time.Duration(0), cfg.RequestTimeout)
	assert.Equal(t, SettingsMemory, cfg.Settings)
	assert.Equal(t, "/admin", cfg.BasePath)
	assert.Equal(t, 1024, cfg.Breakpoint)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("NEXUS_API_URL", "http://localhost:8080")
	t.Setenv("NEXUS_REQUEST_TIMEOUT", "5s")
	t.Setenv("SENTINEL_SETTINGS", "redis")
	t.Setenv("SENTINEL_REDIS_ADDR", "redis:6379")
	t.Setenv("SENTINEL_ENV", "production")
	t.Setenv("SENTINEL_METRICS_ADDR", ":9100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.APIURL)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	assert.True(t, cfg.IsProduction())
}

func TestLoadRejectsInvalidCombinations(t *testing.T) {
	t.Setenv("SENTINEL_SETTINGS", "file")
	_, err := Load()
	assert.ErrorContains(t, err, "SENTINEL_SETTINGS_FILE")

	t.Setenv("SENTINEL_SETTINGS", "etcd")
	_, err = Load()
	assert.ErrorContains(t, err, "unknown settings backend")

	t.Setenv("SENTINEL_SETTINGS", "memory")
	t.Setenv("SENTINEL_BASE_PATH", "admin")
	_, err = Load()
	assert.ErrorContains(t, err, "base path")

	t.Setenv("SENTINEL_BASE_PATH", "/admin")
	t.Setenv("NEXUS_REQUEST_TIMEOUT", "soon")
	_, err = Load()
	assert.Error(t, err)
}
