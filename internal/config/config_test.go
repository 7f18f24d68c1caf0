package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"shortlink/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(contents), 0o600)
	require.NoError(t, err)
	return dir
}

func TestLoad_DefaultsWithSecretFromEnv(t *testing.T) {
	t.Setenv("SHORTLINK_SHORTCODE_SECRET", "test-secret")

	cfg, err := config.Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "test-secret", cfg.ShortCode.Secret)
	assert.Equal(t, int64(100), cfg.Pool.MinThreshold)
	assert.Equal(t, int64(1000), cfg.Pool.MaxSize)
	assert.Equal(t, 5*time.Minute, cfg.Pool.LockTTL)
	assert.Equal(t, time.Hour, cfg.Cache.LinkTTL)
	assert.Equal(t, time.Minute, cfg.Cache.NotFoundTTL)
	assert.Equal(t, int64(10), cfg.Clicks.SyncEvery)
	assert.Equal(t, 15, cfg.Queue.ClickWorkers)
	assert.Equal(t, 1, cfg.Queue.RefillWorkers)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: 9090
shortcode:
  secret: file-secret
pool:
  min_threshold: 50
  max_size: 500
clicks:
  sync_every: 25
`)

	cfg, err := config.Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "file-secret", cfg.ShortCode.Secret)
	assert.Equal(t, int64(50), cfg.Pool.MinThreshold)
	assert.Equal(t, int64(500), cfg.Pool.MaxSize)
	assert.Equal(t, int64(25), cfg.Clicks.SyncEvery)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: 9090
shortcode:
  secret: file-secret
`)
	t.Setenv("SHORTLINK_SERVER_PORT", "7070")

	cfg, err := config.Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_RejectsMissingSecret(t *testing.T) {
	_, err := config.Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shortcode.secret")
}

func TestLoad_RejectsThresholdAboveMaxSize(t *testing.T) {
	dir := writeConfig(t, `
shortcode:
  secret: s
pool:
  min_threshold: 2000
  max_size: 1000
`)

	_, err := config.Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_threshold")
}
