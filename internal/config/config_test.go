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
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ModeFake, cfg.Mode)
	assert.True(t, cfg.IsFake())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 6*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 20*time.Second, cfg.Analytics.Timeout)
	assert.Equal(t, 3*time.Second, cfg.Store.Timeout)
	assert.Equal(t, "file", cfg.Store.Backend)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nugget-config.yaml")
	body := `
mode: live
property: properties/999
server:
  port: 9091
llm:
  api_key: sk-test
  model: test-model
  timeout: 2s
analytics:
  base_url: https://analytics.example.com
  token: tok
  timeout: 12s
store:
  backend: memory
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, ModeLive, cfg.Mode)
	assert.False(t, cfg.IsFake())
	assert.Equal(t, "properties/999", cfg.Property)
	assert.Equal(t, 9091, cfg.Server.Port)
	assert.Equal(t, "test-model", cfg.LLM.Model)
	assert.Equal(t, 2*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "https://analytics.example.com", cfg.Analytics.BaseURL)
	assert.Equal(t, 12*time.Second, cfg.Analytics.Timeout)
	assert.Equal(t, "memory", cfg.Store.Backend)
	// Unset keys keep their defaults.
	assert.Equal(t, 2, cfg.LLM.MaxRetries)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NUGGET_SERVER_PORT", "9999")
	t.Setenv("NUGGET_PROPERTY", "properties/42")
	t.Setenv("NUGGET_STORE_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "properties/42", cfg.Property)
	assert.Equal(t, "memory", cfg.Store.Backend)
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NUGGET_MODE", "dry-run")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestLiveModeRequiresCredentials(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NUGGET_MODE", "live")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analytics.base_url")

	t.Setenv("NUGGET_ANALYTICS_BASE_URL", "https://analytics.example.com")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.api_key")

	t.Setenv("NUGGET_LLM_API_KEY", "sk-live")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ModeLive, cfg.Mode)
}

func TestLoadFileMissingPathFails(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
