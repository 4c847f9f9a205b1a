// Package engine runs one narrative tick: it couples the world, motivation
// and culture models, grounds the beat in lore and produces the story text.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/talgya/beatloom/internal/culture"
	"github.com/talgya/beatloom/internal/llm"
	"github.com/talgya/beatloom/internal/lore"
	"github.com/talgya/beatloom/internal/motivation"
	"github.com/talgya/beatloom/internal/story"
	"github.com/talgya/beatloom/internal/world"
)

// DefaultGenerationTimeout bounds a single backend call.
const DefaultGenerationTimeout = 45 * time.Second

// LoreProvider assembles the lore context for a batch.
type LoreProvider interface {
	Fetch(ctx context.Context, gameID string, actions []story.Action) lore.Context
}

// Store persists narratives and the tick audit trail.
type Store interface {
	SaveNarrative(ctx context.Context, n Narrative) error
	AppendTickRecord(ctx context.Context, rec TickRecord, keep int) error
}

// Config tunes generation.
type Config struct {
	GenerationTimeout time.Duration
	Model             string
	MaxTokens         int
	Temperature       float64
}

func (c Config) normalize() Config {
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = DefaultGenerationTimeout
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
	return c
}

// Orchestrator runs ticks. It is safe for concurrent use across games; the
// scheduler guarantees one tick per game at a time.
type Orchestrator struct {
	world      *world.Model
	motivation *motivation.Model
	culture    *culture.Model
	lore       LoreProvider
	backend    llm.Backend
	store      Store
	cfg        Config

	now    func() time.Time
	newID  func() string
	tracer trace.Tracer
}

// New wires an orchestrator. A nil backend always uses the template
// narrative; a nil lore provider yields an empty context.
func New(w *world.Model, m *motivation.Model, c *culture.Model, lp LoreProvider, backend llm.Backend, store Store, cfg Config) *Orchestrator {
	return &Orchestrator{
		world:      w,
		motivation: m,
		culture:    c,
		lore:       lp,
		backend:    backend,
		store:      store,
		cfg:        cfg.normalize(),
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
		tracer:     otel.Tracer("github.com/talgya/beatloom/internal/engine"),
	}
}

// SetClock overrides the time source (for tests).
func (o *Orchestrator) SetClock(now func() time.Time) { o.now = now }

// TickRequest is one batch to process.
type TickRequest struct {
	GameID  string
	CycleID *int64
	Actions []story.Action // processing order
	Dt      float64
}

// TickResult is what a tick produced.
type TickResult struct {
	Narrative  Narrative
	Influences Influences
	Patterns   []motivation.Pattern
	Degraded   []string
}

// RunTick advances all three models by one tick and narrates the result.
// Generation failures fall back to the template narrative; only state
// persistence failures are returned.
func (o *Orchestrator) RunTick(ctx context.Context, req TickRequest) (TickResult, error) {
	ctx, span := o.tracer.Start(ctx, "engine.RunTick", trace.WithAttributes(
		attribute.String("game.id", req.GameID),
		attribute.Int("actions", len(req.Actions)),
	))
	defer span.End()

	res, err := o.runTick(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (o *Orchestrator) runTick(ctx context.Context, req TickRequest) (TickResult, error) {
	dt := req.Dt
	if dt <= 0 {
		dt = 1
	}

	// ── Snapshots ───────────────────────────────────────────────────────
	ws := o.world.GetState(ctx, req.GameID)
	ms := o.motivation.GetState(ctx, req.GameID)
	cs := o.culture.GetState(ctx, req.GameID)

	lc := lore.Context{GameID: req.GameID}
	if o.lore != nil {
		lc = o.lore.Fetch(ctx, req.GameID, req.Actions)
	}

	// ── Influence ───────────────────────────────────────────────────────
	// Every vector is computed from the pre-tick snapshots so the result
	// does not depend on update order.
	infl := ComputeInfluences(ws, ms, cs, req.Actions)

	// ── Update ──────────────────────────────────────────────────────────
	ws, err := o.world.Update(ctx, req.GameID, infl.World, lc, dt)
	if err != nil {
		return TickResult{}, fmt.Errorf("update world: %w", err)
	}
	ms, err = o.motivation.Update(ctx, req.GameID, infl.Motivation, lc, dt)
	if err != nil {
		return TickResult{}, fmt.Errorf("update motivation: %w", err)
	}
	cs, err = o.culture.Update(ctx, req.GameID, infl.Culture, lc, dt)
	if err != nil {
		return TickResult{}, fmt.Errorf("update culture: %w", err)
	}

	patterns := motivation.DetectPatterns(ms.Entities)
	ms, err = o.motivation.RecordPatterns(ctx, req.GameID, patterns)
	if err != nil {
		return TickResult{}, fmt.Errorf("record patterns: %w", err)
	}

	// ── Narrate ─────────────────────────────────────────────────────────
	theme := Theme(ws, ms, cs)
	in := llm.NarrativeInput{
		World:      ws,
		Motivation: ms,
		Culture:    cs,
		Patterns:   patterns,
		Lore:       lc,
		Actions:    story.Chronological(req.Actions),
		Theme:      theme,
	}
	text, method, tone := o.narrate(ctx, in)

	n := Narrative{
		ID:              o.newID(),
		GameID:          req.GameID,
		CycleID:         req.CycleID,
		Content:         text,
		Method:          method,
		Theme:           theme,
		Tone:            tone,
		World:           ws,
		Motivation:      ms,
		Culture:         cs,
		ActionIDs:       story.IDs(req.Actions),
		PlayerInfluence: PlayerInfluence(text, req.Actions),
		CreatedAt:       o.now(),
	}

	res := TickResult{Narrative: n, Influences: infl, Patterns: patterns, Degraded: lc.Degraded}
	if o.store == nil {
		return res, nil
	}
	if err := o.store.SaveNarrative(ctx, n); err != nil {
		return res, fmt.Errorf("save narrative: %w", err)
	}
	rec := TickRecord{
		GameID:      req.GameID,
		CycleID:     req.CycleID,
		NarrativeID: n.ID,
		Theme:       theme,
		Method:      method,
		Actions:     len(req.Actions),
		Influences:  infl,
		Patterns:    patterns,
		Degraded:    lc.Degraded,
		CreatedAt:   n.CreatedAt,
	}
	if err := o.store.AppendTickRecord(ctx, rec, MaxTickHistory); err != nil {
		// The narrative is already saved; the audit trail is best effort.
		slog.Warn("tick history append failed", "game", req.GameID, "error", err)
	}

	slog.Info("tick complete",
		"game", req.GameID,
		"actions", len(req.Actions),
		"theme", theme,
		"method", method,
		"mood", cs.Mood,
		"dominant", ms.Dominant.Imperative,
	)
	return res, nil
}

// narrate produces the beat text. An empty batch or a missing backend goes
// straight to the template.
func (o *Orchestrator) narrate(ctx context.Context, in llm.NarrativeInput) (string, story.Method, string) {
	if len(in.Actions) == 0 || o.backend == nil {
		text, tone := llm.Fallback(in)
		return text, story.MethodTemplate, string(tone)
	}

	text, err := o.generate(ctx, llm.BuildPrompt(in))
	if err != nil {
		slog.Warn("narrative generation failed, using template", "game", in.Lore.GameID, "error", err)
		text, tone := llm.Fallback(in)
		return text, story.MethodTemplate, string(tone)
	}
	return text, story.MethodGenerated, ""
}

type generation struct {
	text string
	err  error
}

// generate calls the backend with the timeout enforced here rather than
// trusted to the backend.
func (o *Orchestrator) generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := o.tracer.Start(ctx, "engine.generate")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
	defer cancel()

	done := make(chan generation, 1)
	go func() {
		text, err := o.backend.Generate(ctx, prompt, llm.Options{
			Model:       o.cfg.Model,
			MaxTokens:   o.cfg.MaxTokens,
			Temperature: o.cfg.Temperature,
			System:      llm.SystemPrompt,
		})
		done <- generation{text: text, err: err}
	}()

	select {
	case g := <-done:
		if g.err != nil {
			span.RecordError(g.err)
			return "", g.err
		}
		if strings.TrimSpace(g.text) == "" {
			return "", llm.ErrEmptyResponse
		}
		return g.text, nil
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		return "", fmt.Errorf("generation: %w", ctx.Err())
	}
}
