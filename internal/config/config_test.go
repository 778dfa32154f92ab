package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popeskul/evolution-gateway/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
evolution:
  base_url: "https://evolution.example.com"
  instance: "sales"
  api_key: "from-file"
`

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "X-Signature", cfg.Webhook.SignatureHeader)
	assert.Equal(t, 86400, cfg.Webhook.DedupeTTL)
	assert.Equal(t, 30, cfg.Scheduler.IntervalSeconds)
	assert.Equal(t, 10, cfg.Scheduler.BatchSize)
	assert.Equal(t, uint32(5), cfg.CircuitBreaker.ConsecutiveFails)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())

	client := cfg.Evolution.ClientConfig()
	assert.Equal(t, 15*time.Second, client.Timeout)
	require.NotNil(t, client.Retry)
	assert.Equal(t, 3, client.Retry.MaxRetries)
	assert.Equal(t, 2*time.Second, client.Retry.InitialInterval)
	assert.Equal(t, 8*time.Second, client.Retry.MaxInterval)
	assert.Equal(t, 2.0, client.Retry.Multiplier)
	assert.Equal(t, 0.2, client.Retry.Jitter)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("EVOLUTION_API_KEY", "from-env")
	t.Setenv("WEBHOOK_SECRET", "hook-secret")

	cfg, err := config.LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Evolution.APIKey)
	assert.Equal(t, "hook-secret", cfg.Webhook.Secret)
}

func TestLoadConfig_FileValues(t *testing.T) {
	cfg, err := config.LoadConfig(writeConfig(t, minimalConfig+`
  headers:
    x-tenant: acme
  retry:
    max_retries: 5
    initial_interval_ms: 100
database:
  host: db
  port: 5433
  user: gateway
  password: pw
  dbname: evolution
`))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Evolution.Retry.MaxRetries)
	assert.Equal(t, 100, cfg.Evolution.Retry.InitialInterval)
	assert.Equal(t, "acme", cfg.Evolution.Headers["x-tenant"])
	assert.Equal(t, "host=db port=5433 user=gateway password=pw dbname=evolution sslmode=disable", cfg.Database.GetDSN())
}

func TestLoadConfig_Failure(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorContains(t, err, "failed to read config file")
	})

	t.Run("missing evolution settings", func(t *testing.T) {
		_, err := config.LoadConfig(writeConfig(t, "server:\n  port: \"9090\"\n"))
		require.Error(t, err)
		assert.ErrorContains(t, err, "evolution.base_url is required")
		assert.ErrorContains(t, err, "evolution.instance is required")
		assert.ErrorContains(t, err, "evolution.api_key is required")
	})

	t.Run("bad scheduler", func(t *testing.T) {
		_, err := config.LoadConfig(writeConfig(t, minimalConfig+"scheduler:\n  batch_size: 0\n"))
		assert.ErrorContains(t, err, "scheduler.batch_size must be positive")
	})
}

func TestLoadDatabaseConfig(t *testing.T) {
	t.Run("skips evolution validation", func(t *testing.T) {
		db, err := config.LoadDatabaseConfig(writeConfig(t, "database:\n  host: db.internal\n  dbname: gateway\n"))
		require.NoError(t, err)

		assert.Equal(t, "db.internal", db.Host)
		assert.Contains(t, db.GetDSN(), "dbname=gateway")
	})

	t.Run("missing file falls back to defaults and env", func(t *testing.T) {
		t.Setenv("DATABASE_HOST", "pg.from.env")

		db, err := config.LoadDatabaseConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)

		assert.Equal(t, "pg.from.env", db.Host)
		assert.Equal(t, 5432, db.Port)
	})
}
