package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "orgclassify.db", cfg.Store.Path)
	assert.InDelta(t, 0.85, cfg.Resolver.SimilarityThreshold, 0.001)
	assert.InDelta(t, 0.3, cfg.Resolver.MinWordOverlap, 0.001)
	assert.Equal(t, []string{"google", "duckduckgo", "bing"}, cfg.Search.Backends)
	assert.Equal(t, 15, cfg.Search.TimeoutSecs)
	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.Equal(t, 20, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 3, cfg.Fetch.MaxAttempts)
	assert.Equal(t, int64(512*1024), cfg.Fetch.MaxBodyBytes)
	assert.True(t, cfg.Fetch.FollowAboutNav)
	assert.Equal(t, 50, cfg.Content.MinLength)
	assert.Equal(t, 2000, cfg.Content.MaxLength)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Classify.Model)
	assert.Equal(t, int64(10), cfg.Classify.MaxTokens)
	assert.InDelta(t, 0.1, cfg.Classify.Temperature, 0.001)
	assert.Equal(t, time.Second, cfg.Classify.RateInterval())
	assert.Equal(t, 720*time.Hour, cfg.Cache.MaxAge())
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	chTempDir(t)

	yaml := `
store:
  path: /tmp/other.db
search:
  backends: [bing]
log:
  level: debug
  format: console
batch:
  workers: 8
`
	require.NoError(t, os.WriteFile("config.yaml", []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.db", cfg.Store.Path)
	assert.Equal(t, []string{"bing"}, cfg.Search.Backends)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 8, cfg.Batch.Workers)
	// Defaults still apply for unset values
	assert.Equal(t, 2000, cfg.Content.MaxLength)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chTempDir(t)

	yaml := `
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(".", "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("ORGCLASSIFY_LOG_LEVEL", "warn")
	t.Setenv("ORGCLASSIFY_STORE_PATH", "env.db")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "env.db", cfg.Store.Path)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chTempDir(t)

	t.Setenv("ORGCLASSIFY_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "not-a-level", Format: "json"}))
}
