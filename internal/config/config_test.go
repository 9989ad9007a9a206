package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Search.DefaultMaxResults)
	assert.Equal(t, 30*time.Second, cfg.Search.DefaultTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Search.Retention)
	assert.Len(t, cfg.Vendors, 4)

	cemaco, ok := cfg.Vendors["cemaco"]
	require.True(t, ok)
	assert.Equal(t, "Cemaco", cemaco.Name)
	assert.True(t, cemaco.Enabled)
	assert.Equal(t, time.Second, cemaco.BaseDelay)
	assert.Equal(t, 3, cemaco.MaxRetries)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
search:
  default_max_results: 20
  retention: 5m
vendors:
  cemaco:
    name: Cemaco
    base_url: https://www.cemaco.com
    enabled: true
    base_delay: 250ms
  walmart:
    name: Walmart
    base_url: https://walmart.com.gt
    enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Search.DefaultMaxResults)
	assert.Equal(t, 5*time.Minute, cfg.Search.Retention)
	assert.Len(t, cfg.Vendors, 2)
	assert.Equal(t, 250*time.Millisecond, cfg.Vendors["cemaco"].BaseDelay)

	// Unset vendor fields still receive defaults.
	assert.Equal(t, 30*time.Second, cfg.Vendors["cemaco"].Timeout)

	ids := cfg.EnabledVendorIDs()
	assert.Equal(t, []string{"cemaco"}, ids)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("SEARCH_RETENTION", "90s")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Search.Retention)
}

func TestLoad_InvalidConfig(t *testing.T) {
	path := writeConfig(t, `
vendors:
  broken:
    name: Broken
    enabled: true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
}

func TestValidate_DatabaseRequiredWhenEnabled(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	cfg.Database.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.host")
}
