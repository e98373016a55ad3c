package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "clickhouse", cfg.DB.Driver)
	require.Equal(t, cfg.DB.DSN, cfg.DB.ReadOnlyDSN)
	require.Equal(t, time.Hour, cfg.DB.ConnMaxLifetime)
	require.Equal(t, "0.0.0.0:8000", cfg.Server.Address)
	require.False(t, cfg.Server.CorsEnabled)
	require.False(t, cfg.Redis.Enabled)
	require.Equal(t, 5*time.Minute, cfg.Redis.TTL)
	require.Equal(t, "analytics-events", cfg.Azure.QueueName)
	require.Equal(t, 10*time.Minute, cfg.Worker.WarmupInterval)
	require.Empty(t, cfg.Tracing.LicenseKey)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("ANALYTICS_DATABASE_DRIVER", "sqlite")
	t.Setenv("ANALYTICS_DATABASE_DSN", "file::memory:?cache=shared")
	t.Setenv("ANALYTICS_DATABASE_READ_ONLY_DSN", "file:replica.db")
	t.Setenv("ANALYTICS_REDIS_ENABLED", "true")
	t.Setenv("ANALYTICS_SERVER_TIMEOUT", "5s")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "sqlite", cfg.DB.Driver)
	require.Equal(t, "file::memory:?cache=shared", cfg.DB.DSN)
	require.Equal(t, "file:replica.db", cfg.DB.ReadOnlyDSN)
	require.True(t, cfg.Redis.Enabled)
	require.Equal(t, 5*time.Second, cfg.Server.Timeout)
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	yaml := `
environment: production
server:
  address: 127.0.0.1:9000
  cors_enabled: true
  cors_origins:
    - https://app.example.com
database:
  driver: postgres
  dsn: postgresql://localhost:5432/analytics?sslmode=disable
elastic:
  prefix: stage
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, "production", cfg.Environment)
	require.Equal(t, "127.0.0.1:9000", cfg.Server.Address)
	require.True(t, cfg.Server.CorsEnabled)
	require.Equal(t, []string{"https://app.example.com"}, cfg.Server.CorsOrigins)
	require.Equal(t, "postgres", cfg.DB.Driver)
	require.Equal(t, "stage-events", FormatIndex(cfg.Elastic, cfg.Elastic.Index))
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
