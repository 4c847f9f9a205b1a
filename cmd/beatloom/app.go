package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/talgya/beatloom/internal/config"
	"github.com/talgya/beatloom/internal/culture"
	"github.com/talgya/beatloom/internal/engine"
	"github.com/talgya/beatloom/internal/entropy"
	"github.com/talgya/beatloom/internal/llm"
	"github.com/talgya/beatloom/internal/lore"
	"github.com/talgya/beatloom/internal/motivation"
	"github.com/talgya/beatloom/internal/persistence"
	"github.com/talgya/beatloom/internal/scheduler"
	"github.com/talgya/beatloom/internal/telemetry"
	"github.com/talgya/beatloom/internal/world"
)

// app is the wired engine shared by every subcommand.
type app struct {
	db       *persistence.DB
	worlds   *world.Model
	motives  *motivation.Model
	cultures *culture.Model
	sched    *scheduler.Scheduler
	ledger   *scheduler.Ledger
	seed     int64

	shutdownTelemetry func(context.Context) error
}

func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{}

	// ── Telemetry ─────────────────────────────────────────────────────
	shutdown, err := telemetry.Setup(ctx, "beatloom", cfg.OTelEndpoint)
	if err != nil {
		return nil, err
	}
	a.shutdownTelemetry = shutdown

	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	a.db, err = persistence.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Debug("database opened", "path", cfg.DBPath, "schema", persistence.SchemaVersion)

	// ── Seed (restored so replays stay deterministic) ─────────────────
	seed := cfg.Seed
	if seed == 0 {
		if s, err := a.db.GetMeta(ctx, "seed"); err == nil {
			seed, _ = strconv.ParseInt(s, 10, 64)
		} else if !errors.Is(err, persistence.ErrNotFound) {
			a.Close(ctx)
			return nil, err
		}
	}
	rng, seed := entropy.FromSeed(seed)
	a.seed = seed
	if err := a.db.SaveMeta(ctx, "seed", strconv.FormatInt(seed, 10)); err != nil {
		a.Close(ctx)
		return nil, err
	}

	// ── Models ────────────────────────────────────────────────────────
	a.worlds = world.NewModel(a.db, rng, cfg.StateCacheTTL)
	a.motives = motivation.NewModel(a.db, rng, cfg.StateCacheTTL)
	a.cultures = culture.NewModel(a.db, cfg.StateCacheTTL)

	// ── Lore ──────────────────────────────────────────────────────────
	sources := lore.Sources{}
	if cfg.LoreFile != "" {
		f, err := lore.LoadFile(cfg.LoreFile)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		sources = f.Sources()
		slog.Info("lore loaded", "file", cfg.LoreFile)
	}
	sources.History = a.db
	provider := lore.NewProvider(sources, cfg.ContextTTL)

	// ── Generation backend ────────────────────────────────────────────
	var backend llm.Backend
	if client := llm.NewClient(cfg.AnthropicKey); client.Enabled() {
		backend = client
	} else {
		slog.Info("no ANTHROPIC_API_KEY set, narratives use templates")
	}

	orch := engine.New(a.worlds, a.motives, a.cultures, provider, backend, a.db, engine.Config{
		GenerationTimeout: cfg.GenerationTimeout,
		Model:             cfg.Model,
		MaxTokens:         cfg.MaxTokens,
		Temperature:       cfg.Temperature,
	})

	clock := scheduler.RealClock()
	a.sched = scheduler.New(context.Background(), a.db, orch, clock)
	a.ledger = scheduler.NewLedger(a.db, clock)
	return a, nil
}

// Close stops timers, then releases the database and flushes spans.
func (a *app) Close(ctx context.Context) {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			slog.Warn("close database", "error", err)
		}
	}
	if a.shutdownTelemetry != nil {
		if err := a.shutdownTelemetry(ctx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}
}
