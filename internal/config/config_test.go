package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"PORT", "DATABASE_URL", "SQLITE_PATH", "REDIS_URL", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(k, "")
	}
}

func TestLoadFile_Defaults(t *testing.T) {
	clearEnv(t)
	c, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 30*time.Minute, c.Sessions.IdleTTL)
	assert.Equal(t, 0.20, c.Engine.TakeProfitPct)
	assert.Equal(t, 200.0, c.Engine.DefaultInitialCash)
}

func TestLoadFile_YAMLAndEnv(t *testing.T) {
	path := writeFile(t, `
server:
  port: 9000
  request_timeout: 5s
engine:
  default_initial_cash: 10000
  risk_free_rate: 0.02
sessions:
  idle_ttl: 1h
  janitor_schedule: "*/10 * * * *"
log:
  level: debug
`)
	clearEnv(t)
	t.Setenv("PORT", "9100")
	t.Setenv("SQLITE_PATH", "/tmp/runs.db")
	t.Setenv("LOG_FORMAT", "text")

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, c.Server.Port, "env wins over file")
	assert.Equal(t, 5*time.Second, c.Server.RequestTimeout)
	assert.Equal(t, 10000.0, c.Engine.DefaultInitialCash)
	assert.Equal(t, 0.10, c.Engine.StopLossPct, "unset keys keep defaults")
	assert.Equal(t, time.Hour, c.Sessions.IdleTTL)
	assert.Equal(t, "/tmp/runs.db", c.Store.SQLitePath)
	assert.Equal(t, "text", c.Log.Format)

	level, err := c.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadFile_Invalid(t *testing.T) {
	clearEnv(t)
	tests := map[string]string{
		"port":     "server:\n  port: -1\n",
		"pct":      "engine:\n  stop_loss_pct: -0.1\n",
		"schedule": "sessions:\n  janitor_schedule: every now and then\n",
		"duration": "store:\n  cache_ttl: -5s\n",
		"level":    "log:\n  level: loud\n",
		"format":   "log:\n  format: xml\n",
		"yaml":     "server: [\n",
	}
	for name, body := range tests {
		_, err := LoadFile(writeFile(t, body))
		assert.ErrorIs(t, err, ErrInvalidConfig, name)
	}

	t.Setenv("PORT", "eighty")
	_, err := LoadFile("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
