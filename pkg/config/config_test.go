package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg := New()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "lru", cfg.Cache.EvictionPolicy)
	assert.Equal(t, 60, cfg.RateLimit.WindowSeconds)
	assert.Equal(t, 1000, cfg.RateLimit.MaxRequests)
	assert.Equal(t, "x-owner-address", cfg.Auth.OwnerAddressHeader)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CACHE_MAX_MEMORY_MB", "512")
	t.Setenv("RATELIMIT_MAX_REQUESTS", "200")
	os.Unsetenv("CONFIG_FILE")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Cache.MaxMemoryMB)
	assert.Equal(t, 200, cfg.RateLimit.MaxRequests)
}

func TestNormalizeClampsRateLimitCeiling(t *testing.T) {
	cfg := New()
	cfg.RateLimit.MaxRequests = 5000
	cfg.normalize()
	assert.Equal(t, 1000, cfg.RateLimit.MaxRequests)
}

func TestLoadConfigFromJSON(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.json"
	require.NoError(t, os.WriteFile(path, []byte(`{"server":{"port":9090},"cache":{"max_memory_mb":128}}`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 128, cfg.Cache.MaxMemoryMB)
}
