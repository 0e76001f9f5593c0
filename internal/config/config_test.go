package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/bimi-admin/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("BIMI_PROFILE_DIR", t.TempDir())
	c := config.New(config.WithEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	require.Equal(t, config.DefaultAPIBaseURL, c.GetAPIBaseURL())
	require.Equal(t, 15*time.Minute, c.GetIdleTimeout())
	require.Equal(t, 30*time.Second, c.GetHTTPTimeout())
	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "DEV", c.GetEnv())
	require.Empty(t, c.GetSessionPassphrase())
}

func TestEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BIMI_PROFILE_DIR", dir)
	t.Setenv("BIMI_API_BASE_URL", "http://localhost:9000/")
	t.Setenv("BIMI_IDLE_TIMEOUT", "90s")
	t.Setenv("BIMI_PORT", "9999")
	t.Setenv("BIMI_ENV", "prod")

	c := config.New(config.WithEnvFile(filepath.Join(dir, "missing.env")))

	require.Equal(t, "http://localhost:9000", c.GetAPIBaseURL())
	require.Equal(t, 90*time.Second, c.GetIdleTimeout())
	require.Equal(t, ":9999", c.GetPort())
	require.Equal(t, "PROD", c.GetEnv())
	require.Equal(t, filepath.Join(dir, "session.json"), c.GetSessionFile())
}

func TestOverrideBeatsEnvironment(t *testing.T) {
	t.Setenv("BIMI_API_BASE_URL", "http://env.example")

	c := config.New(
		config.WithEnvFile(filepath.Join(t.TempDir(), "missing.env")),
		config.WithOverride(config.KeyAPIBaseURL, "http://flag.example"),
	)

	require.Equal(t, "http://flag.example", c.GetAPIBaseURL())
}

func TestInvalidIdleTimeoutFallsBack(t *testing.T) {
	t.Setenv("BIMI_IDLE_TIMEOUT", "-5m")

	c := config.New(config.WithEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	require.Equal(t, config.DefaultIdleTimeout, c.GetIdleTimeout())
}
