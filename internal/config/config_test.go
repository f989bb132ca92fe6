package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("OPENAI_API_KEY", "")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 8081, c.Server.HealthPort)
	assert.Equal(t, "localhost:6379", c.Redis.Addr)
	assert.Equal(t, 24*time.Hour, c.Redis.SessionTTL)
	assert.Equal(t, "sqlite3", c.Archive.Driver)
	assert.Equal(t, "gpt-4o-mini", c.LLM.Model)
	assert.Equal(t, 10*time.Second, c.Tools.InvokeTimeout)
	assert.Equal(t, "info", c.Logging.Level)
	assert.False(t, c.Auth.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "features.yaml")
	yaml := `
server:
  port: 9090
redis:
  addr: redis.internal:6379
  session_ttl: 1h
llm:
  model: gpt-4o
  api_key: file-key
tools:
  rate_per_second: 2.5
auth:
  enabled: true
  jwt_secret: secret
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("OPENAI_API_KEY", "")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, "redis.internal:6379", c.Redis.Addr)
	assert.Equal(t, time.Hour, c.Redis.SessionTTL)
	assert.Equal(t, "gpt-4o", c.LLM.Model)
	assert.Equal(t, "file-key", c.LLM.APIKey)
	assert.Equal(t, 2.5, c.Tools.RatePerSecond)
	assert.True(t, c.Auth.Enabled)

	// File values override defaults; untouched sections keep defaults.
	assert.Equal(t, 8081, c.Server.HealthPort)
	assert.Equal(t, "sqlite3", c.Archive.Driver)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("REDIS_ADDR", "env-redis:6380")
	t.Setenv("REDIS_PASSWORD", "env-pass")
	t.Setenv("OPENAI_API_KEY", "env-key")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "env-redis:6380", c.Redis.Addr)
	assert.Equal(t, "env-pass", c.Redis.Password)
	assert.Equal(t, "env-key", c.LLM.APIKey)
}

func TestFileAPIKeyWinsOverEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "features.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  api_key: file-key\n"), 0o644))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("OPENAI_API_KEY", "env-key")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "file-key", c.LLM.APIKey)
}
