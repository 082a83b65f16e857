package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortly/internal/ratelimit"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(missingEnvFile(t))

		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, ":8080", cfg.Server.Addr())
		assert.Equal(t, 24*time.Hour, cfg.JWT.TTL())
		assert.Equal(t, 5*time.Second, cfg.Safety.Timeout)
		assert.False(t, cfg.RateLimit.Disabled)
		assert.Equal(t, ratelimit.DefaultPolicies, cfg.RateLimit.Policies())
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "9090")
		t.Setenv("DATABASE_URL", "postgres://localhost/shortly")
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("RATE_LIMIT_DISABLED", "true")
		t.Setenv("RATE_LIMIT_CREATE_WINDOW", "30s")
		t.Setenv("SAFETY_TIMEOUT", "2s")

		cfg, err := Load(missingEnvFile(t))

		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "postgres://localhost/shortly", cfg.Database.URL)
		assert.Equal(t, "s3cret", cfg.JWT.Secret)
		assert.True(t, cfg.RateLimit.Disabled)
		assert.Equal(t, 30*time.Second, cfg.RateLimit.CreateWindow)
		assert.Equal(t, 2*time.Second, cfg.Safety.Timeout)
	})

	t.Run("legacy variable names", func(t *testing.T) {
		t.Setenv("BASE_URL", "https://sho.rt")
		t.Setenv("JWT_TTL_HOURS", "2")

		cfg, err := Load(missingEnvFile(t))

		require.NoError(t, err)
		assert.Equal(t, "https://sho.rt", cfg.Server.BaseURL)
		assert.Equal(t, 2*time.Hour, cfg.JWT.TTL())
	})

	t.Run("env file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("ANALYTICS_WORKER_COUNT=7\n"), 0o600))
		t.Cleanup(func() { os.Unsetenv("ANALYTICS_WORKER_COUNT") })

		cfg, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, 7, cfg.Analytics.WorkerCount)
	})

	t.Run("malformed env file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("BAD-KEY=1\n"), 0o600))

		_, err := Load(path)

		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url")
	assert.Contains(t, err.Error(), "jwt.secret")

	cfg.Database.URL = "postgres://localhost/shortly"
	cfg.JWT.Secret = "s3cret"
	assert.NoError(t, cfg.Validate())

	cfg.RateLimit.ClickLimit = 0
	assert.ErrorContains(t, cfg.Validate(), "rate_limit.click")
}
