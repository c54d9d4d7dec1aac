package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"SERVER_PORT", "DATABASE_DRIVER", "SESSION_TTL", "IMPORT_BATCH_SIZE", "KAFKA_BROKERS", "COOKIE_SECURE", "ES_SYNC_INTERVAL"} {
		t.Setenv(k, "")
	}

	cfg := Load("")

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 50, cfg.ImportBatchSize)
	assert.Nil(t, cfg.KafkaBrokers)
	assert.False(t, cfg.CookieSecure)
	assert.Equal(t, 10*time.Minute, cfg.ESSyncInterval)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("SESSION_TTL", "48h")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("COOKIE_SECURE", "true")

	cfg := Load("")

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, []byte("s3cret"), cfg.SessionSecret)
	assert.Equal(t, 48*time.Hour, cfg.SessionTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.CookieSecure)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ES_INDEX=from_file\n"), 0o600))
	t.Setenv("ES_INDEX", "")
	require.NoError(t, os.Unsetenv("ES_INDEX"))

	cfg := Load(path)
	assert.Equal(t, "from_file", cfg.ESIndex)
	require.NoError(t, os.Unsetenv("ES_INDEX"))
}

func TestEnvHelpers_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("X_INT", "nope")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_DUR", "forever")

	assert.Equal(t, 3, EnvIntDefault("X_INT", 3))
	assert.True(t, EnvBoolDefault("X_BOOL", true))
	assert.Equal(t, time.Second, EnvDurationDefault("X_DUR", time.Second))
}
