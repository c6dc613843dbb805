package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"npbc-dashboard/internal/timerange"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: boiler\n"))
	require.NoError(t, err)

	assert.Equal(t, "boiler", cfg.App.Name)
	assert.Zero(t, cfg.API.MaxAttempts)
	assert.Zero(t, cfg.API.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.API.RequestTimeout)
	assert.Equal(t, 30*time.Second, cfg.Poller.Interval)
	assert.Equal(t, timerange.Hours24, cfg.DefaultRange())
	assert.Equal(t, 7*24*time.Hour, cfg.Poller.JournalRetention)
	assert.Equal(t, "npbc-dashboard.db", cfg.SQLite.Path)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: http://boiler.lan:8088
poller:
  default_range: 48
  timezone: Europe/Sofia
`)
	t.Setenv("NPBC_POLLER_INTERVAL", "1m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://boiler.lan:8088", cfg.API.BaseURL)
	assert.Equal(t, time.Minute, cfg.Poller.Interval)
	assert.Equal(t, timerange.Hours48, cfg.DefaultRange())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Sofia", loc.String())
}

func TestRetryScheduleIsNotConfigurable(t *testing.T) {
	path := writeConfig(t, `
api:
  max_attempts: 10
  base_delay: 5ms
`)
	t.Setenv("NPBC_API_MAX_ATTEMPTS", "1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.API.MaxAttempts)
	assert.Zero(t, cfg.API.BaseDelay)
}

func TestValidateRejectsUnsupportedRange(t *testing.T) {
	_, err := Load(writeConfig(t, "poller:\n  default_range: 5\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, timerange.ErrInvalid)
}

func TestValidateTelegramNeedsCredentials(t *testing.T) {
	_, err := Load(writeConfig(t, "alerting:\n  telegram:\n    enabled: true\n"))
	assert.ErrorContains(t, err, "bot_token")
}
