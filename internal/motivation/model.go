package motivation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/talgya/beatloom/internal/entropy"
	"github.com/talgya/beatloom/internal/lore"
	"github.com/talgya/beatloom/internal/statestore"
)

const (
	decayFervor = 0.1
	// Below this fervor an entity's soulscape settles back to calm.
	fervorSettled = 0.1
)

// ImperativeShift may move characters to a new imperative. Each character
// draws once; the shift fires when the draw is below Probability*dt.
type ImperativeShift struct {
	To          Imperative `json:"to"`
	Probability float64    `json:"probability"`
	Trigger     string     `json:"trigger"`
}

// SoulscapeChange sets every character's soulscape.
type SoulscapeChange struct {
	Soulscape string `json:"soulscape"`
	Qualia    string `json:"qualia,omitempty"`
}

// AspectAdoption adds an aspect to every character, optionally moving ethos.
type AspectAdoption struct {
	Aspect  string `json:"aspect"`
	Ethos   *Ethos `json:"ethos,omitempty"`
	Trigger string `json:"trigger,omitempty"`
}

// Arrival registers a participant's character in the catalog.
type Arrival struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Influence is a sparse set of motivation changes. Nil or empty fields mean
// no change this tick.
type Influence struct {
	ImperativeShift *ImperativeShift `json:"imperative_shift,omitempty"`
	SoulscapeChange *SoulscapeChange `json:"soulscape_change,omitempty"`
	AspectAdoptions []AspectAdoption `json:"aspect_adoptions,omitempty"`
	Arrivals        []Arrival        `json:"arrivals,omitempty"`
}

// Empty reports whether no field is set.
func (i Influence) Empty() bool {
	return i.ImperativeShift == nil && i.SoulscapeChange == nil &&
		len(i.AspectAdoptions) == 0 && len(i.Arrivals) == 0
}

// Model owns the motivation slice for every game.
type Model struct {
	repo *statestore.Repo[State]
	rng  entropy.Source
	now  func() time.Time
}

// NewModel creates a motivation model. rng drives imperative shifts.
func NewModel(store statestore.SliceStore, rng entropy.Source, cacheTTL time.Duration) *Model {
	if rng == nil {
		rng = entropy.Crypto{}
	}
	return &Model{
		repo: statestore.NewRepo(store, statestore.SliceMotivation, cacheTTL, Default),
		rng:  rng,
		now:  time.Now,
	}
}

// SetClock replaces the time source.
func (m *Model) SetClock(now func() time.Time) { m.now = now }

// GetState returns the current catalog, or the baseline if the store is unreachable.
func (m *Model) GetState(ctx context.Context, gameID string) State {
	s, err := m.repo.Load(ctx, gameID)
	if err != nil {
		slog.Warn("motivation state unavailable, using baseline", "game", gameID, "error", err)
	}
	return s
}

// Save persists s after rederiving its summary fields.
func (m *Model) Save(ctx context.Context, gameID string, s State) error {
	s.Derive()
	return m.repo.Save(ctx, gameID, s, m.now())
}

// Update applies infl, decays fervor, enforces lore rules, clamps and persists.
func (m *Model) Update(ctx context.Context, gameID string, infl Influence, lc lore.Context, dt float64) (State, error) {
	s, err := m.repo.Load(ctx, gameID)
	if err != nil {
		return s, fmt.Errorf("motivation update: %w", err)
	}

	s = Step(s, infl, lc.Rules, dt, m.rng)
	s.UpdatedAt = m.now().UTC()

	if err := m.repo.Save(ctx, gameID, s, s.UpdatedAt); err != nil {
		return s, fmt.Errorf("motivation update: %w", err)
	}
	return s, nil
}

// RecordPatterns stores the emergent patterns detected after a tick so the
// next tick's influences can read them.
func (m *Model) RecordPatterns(ctx context.Context, gameID string, patterns []Pattern) (State, error) {
	s, err := m.repo.Load(ctx, gameID)
	if err != nil {
		return s, fmt.Errorf("record patterns: %w", err)
	}
	s.Patterns = patterns
	if err := m.repo.Save(ctx, gameID, s, m.now()); err != nil {
		return s, fmt.Errorf("record patterns: %w", err)
	}
	return s, nil
}

// Step advances s by one tick without touching storage.
func Step(s State, infl Influence, rules lore.Rules, dt float64, rng entropy.Source) State {
	s = clone(s)
	if dt < 0 {
		dt = 0
	}

	for _, a := range infl.Arrivals {
		if s.Find(a.ID) >= 0 {
			continue
		}
		e := NewEntity(a.ID, a.Name, Character, Discover, Neutral, Curiosity)
		s.Entities = append(s.Entities, e)
	}

	for i := range s.Entities {
		e := &s.Entities[i]
		if e.Kind != Character {
			continue
		}
		if sh := infl.ImperativeShift; sh != nil && e.Function.Imperative != sh.To &&
			!rules.ImperativeForbidden(sh.To.String()) {
			if rng.Float64() < sh.Probability*dt {
				e.SetImperative(sh.To)
				e.Function.Qualia = sh.Trigger
				e.Function.Fervor = 1
			}
		}
		if sc := infl.SoulscapeChange; sc != nil {
			e.Function.Soulscape = sc.Soulscape
			if sc.Qualia != "" {
				e.Function.Qualia = sc.Qualia
			}
			e.Function.Fervor += 0.3 * dt
		}
		for _, ad := range infl.AspectAdoptions {
			if e.Adopt(ad.Aspect) {
				e.Function.Fervor += 0.2 * dt
			}
			if ad.Ethos != nil && e.Function.Ethos != *ad.Ethos {
				e.Function.Ethos = *ad.Ethos
				e.reshape()
			}
		}
	}

	for i := range s.Entities {
		f := &s.Entities[i].Function
		factor := math.Max(0, 1-decayFervor*dt)
		f.Fervor *= factor
		if f.Fervor < fervorSettled && s.Entities[i].Kind == Character {
			f.Soulscape = ""
		}
	}

	for i := range s.Entities {
		e := &s.Entities[i]
		if rules.ImperativeForbidden(e.Function.Imperative.String()) {
			e.SetImperative(Balance)
		}
	}

	for i := range s.Entities {
		e := &s.Entities[i]
		e.Function.Fervor = math.Max(0, math.Min(1, e.Function.Fervor))
		if e.Influence < 0 {
			e.Influence = 0
		}
	}

	s.Derive()
	return s
}

func clone(s State) State {
	entities := make([]Entity, len(s.Entities))
	for i, e := range s.Entities {
		e.Function.AdoptedAspects = append([]string(nil), e.Function.AdoptedAspects...)
		entities[i] = e
	}
	if s.Entities == nil {
		entities = nil
	}
	s.Entities = entities
	if s.Patterns != nil {
		s.Patterns = append([]Pattern(nil), s.Patterns...)
	}
	return s
}
