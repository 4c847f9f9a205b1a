// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/talgya/beatloom/internal/llm"
)

// Config holds every runtime setting. Flags on the serve command override
// the environment.
type Config struct {
	DBPath            string        `env:"BEATLOOM_DB_PATH" envDefault:"data/beatloom.db"`
	APIPort           int           `env:"BEATLOOM_API_PORT" envDefault:"8080"`
	AdminKey          string        `env:"BEATLOOM_ADMIN_KEY"`
	AnthropicKey      string        `env:"ANTHROPIC_API_KEY"`
	Model             string        `env:"BEATLOOM_MODEL"`
	MaxTokens         int           `env:"BEATLOOM_MAX_TOKENS" envDefault:"2000"`
	Temperature       float64       `env:"BEATLOOM_TEMPERATURE" envDefault:"0.8"`
	GenerationTimeout time.Duration `env:"BEATLOOM_GENERATION_TIMEOUT" envDefault:"45s"`
	ContextTTL        time.Duration `env:"BEATLOOM_CONTEXT_TTL" envDefault:"5m"`
	StateCacheTTL     time.Duration `env:"BEATLOOM_STATE_CACHE_TTL" envDefault:"1m"`
	LoreFile          string        `env:"BEATLOOM_LORE_FILE"`
	Seed              int64         `env:"BEATLOOM_SEED"` // 0 draws a seed
	OTelEndpoint      string        `env:"BEATLOOM_OTEL_ENDPOINT"`
	LogLevel          string        `env:"BEATLOOM_LOG_LEVEL" envDefault:"info"`
	CORSOrigins       []string      `env:"BEATLOOM_CORS_ORIGINS" envSeparator:","`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment into a normalized Config.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.Normalize()
	return cfg, nil
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	if c.DBPath == "" {
		c.DBPath = "data/beatloom.db"
	}
	if c.APIPort <= 0 {
		c.APIPort = 8080
	}
	if c.Model == "" {
		c.Model = llm.DefaultModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = llm.DefaultMaxTokens
	}
	if c.Temperature <= 0 {
		c.Temperature = llm.DefaultTemperature
	}
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = 45 * time.Second
	}
	if c.ContextTTL <= 0 {
		c.ContextTTL = 5 * time.Minute
	}
	if c.StateCacheTTL < 0 {
		c.StateCacheTTL = 0
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Level maps LogLevel to a slog level, defaulting to info.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
