package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NEXUS_DB_PATH", filepath.Join(dir, "db", "test.db"))
	t.Setenv("NEXUS_REPORT_DIR", filepath.Join(dir, "storage"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, time.Hour, cfg.ReportURLTTL)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "@hourly", cfg.OverdueSweepSchedule)
	assert.Empty(t, cfg.NotifyURLs)
	assert.DirExists(t, filepath.Join(dir, "db"))
	assert.DirExists(t, filepath.Join(dir, "storage", "reports"))
}

func TestLoad_Overrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NEXUS_DB_PATH", filepath.Join(dir, "test.db"))
	t.Setenv("NEXUS_REPORT_DIR", filepath.Join(dir, "storage"))
	t.Setenv("NEXUS_HTTP_PORT", "9090")
	t.Setenv("NEXUS_DEBUG", "true")
	t.Setenv("NEXUS_REPORT_URL_TTL", "30m")
	t.Setenv("NEXUS_NOTIFY_URLS", "generic://example.com/hook, ,discord://token@id")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 30*time.Minute, cfg.ReportURLTTL)
	assert.Equal(t, []string{"generic://example.com/hook", "discord://token@id"}, cfg.NotifyURLs)
}

func TestLoad_InvalidDuration(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NEXUS_DB_PATH", filepath.Join(dir, "test.db"))
	t.Setenv("NEXUS_REPORT_DIR", filepath.Join(dir, "storage"))
	t.Setenv("NEXUS_TOKEN_TTL", "forever")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "NEXUS_TOKEN_TTL")
}
