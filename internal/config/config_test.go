package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("JWT_SECRET_KEY", "jwt-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, 15*time.Minute, cfg.Reconciler.Interval)
	assert.Equal(t, 2, cfg.Notification.WorkerCount)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.App.AllowedOrigins)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("JWT_SECRET_KEY", "jwt-secret")

	t.Run("bad port", func(t *testing.T) {
		t.Setenv("DB_PORT", "not-a-port")
		_, err := Load()
		assert.ErrorContains(t, err, "DB_PORT")
	})

	t.Run("bad interval", func(t *testing.T) {
		t.Setenv("RECONCILER_INTERVAL", "soon")
		_, err := Load()
		assert.ErrorContains(t, err, "RECONCILER_INTERVAL")
	})

	t.Run("minio without endpoint", func(t *testing.T) {
		t.Setenv("STORAGE_TYPE", "minio")
		_, err := Load()
		assert.ErrorContains(t, err, "MINIO_ENDPOINT")
	})
}

func TestValidate_RequiresSecrets(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{Type: "local"}}
	assert.ErrorContains(t, cfg.Validate(), "DB_PASSWORD")

	cfg.Database.Password = "x"
	assert.ErrorContains(t, cfg.Validate(), "JWT_SECRET_KEY")
}

func TestSlogLevel(t *testing.T) {
	cfg := &Config{App: AppConfig{LogLevel: "DEBUG"}}
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())

	cfg.App.LogLevel = "bogus"
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestDatabaseURL(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 1, Name: "n", SSLMode: "disable"}}
	assert.Equal(t, "postgres://u:p@h:1/n?sslmode=disable", cfg.DatabaseURL())
}
