package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 30*time.Second, cfg.Lock.TTL.Std())
}

func TestLoad_ParsesAndOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	content := `
addr: ":9090"
log_level: debug
store:
  backend: redis
  redis:
    addr: "redis:6379"
    ttl: 1h
lock:
  distributed: true
security:
  pii_patterns:
    - password
    - ssn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, time.Hour, cfg.Store.Redis.TTL.Std())
	assert.True(t, cfg.Lock.Distributed)
	assert.Equal(t, []string{"password", "ssn"}, cfg.Security.PIIPatterns)
	// Untouched fields keep their defaults.
	assert.Equal(t, "espalier:session:", cfg.Store.Redis.Prefix)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: dynamo\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store backend")
}

func TestLoad_RejectsDistributedLockWithoutRedis(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte("lock:\n  distributed: true\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires the redis backend")
}
