package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/beatloom/internal/llm"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/beatloom.db", cfg.DBPath)
	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, llm.DefaultModel, cfg.Model)
	assert.Equal(t, 2000, cfg.MaxTokens)
	assert.InDelta(t, 0.8, cfg.Temperature, 1e-9)
	assert.Equal(t, 45*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, 5*time.Minute, cfg.ContextTTL)
	assert.Equal(t, time.Minute, cfg.StateCacheTTL)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BEATLOOM_DB_PATH", "/tmp/x.db")
	t.Setenv("BEATLOOM_GENERATION_TIMEOUT", "3s")
	t.Setenv("BEATLOOM_SEED", "42")
	t.Setenv("BEATLOOM_LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, 3*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestLoadError(t *testing.T) {
	t.Setenv("BEATLOOM_API_PORT", "not-a-port")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestNormalizeFillsZeroValues(t *testing.T) {
	var cfg Config
	cfg.StateCacheTTL = -time.Second
	cfg.Normalize()
	assert.Equal(t, 45*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, llm.DefaultMaxTokens, cfg.MaxTokens)
	assert.Zero(t, cfg.StateCacheTTL)
	assert.Equal(t, "info", cfg.LogLevel)
}
