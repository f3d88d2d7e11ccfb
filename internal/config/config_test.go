package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfigFile(t, `
credentials:
  dsn: "postgres://gateway@localhost/gateway"
command:
  bearer_token: "backend-token"
backend:
  base_url: "http://backend.internal"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8883, cfg.Broker.Port)
	assert.Equal(t, int64(300), cfg.Validation.SkewBudgetSeconds)
	assert.Equal(t, 1000, cfg.Validation.ReplayCacheSize)
	assert.Equal(t, ":8443", cfg.Command.ListenAddr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Backend.ForwardErrorBody)
	assert.False(t, cfg.Backend.SurfaceFailureAck)
}

func TestLoad_MissingCredentialsDSNIsFatal(t *testing.T) {
	path := writeConfigFile(t, `
command:
  bearer_token: "backend-token"
backend:
  base_url: "http://backend.internal"
`)

	_, err := Load(path)
	require.Error(t, err)

	var configErr *ConfigurationError
	require.ErrorAs(t, err, &configErr)
}

func TestLoad_MissingBearerTokenIsFatal(t *testing.T) {
	path := writeConfigFile(t, `
credentials:
  dsn: "postgres://gateway@localhost/gateway"
backend:
  base_url: "http://backend.internal"
`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
credentials:
  dsn: "postgres://gateway@localhost/gateway"
command:
  bearer_token: "backend-token"
  listen_addr: ":9443"
backend:
  base_url: "http://backend.internal"
validation:
  skew_budget_seconds: 60
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(60), cfg.Validation.SkewBudgetSeconds)
	assert.Equal(t, ":9443", cfg.Command.ListenAddr)
}
