package culture

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/talgya/beatloom/internal/lore"
	"github.com/talgya/beatloom/internal/statestore"
)

// Per-unit-dt decay rates toward zero (VAD) or the 0.5 midpoint (indicators).
const (
	decayValence   = 0.1
	decayArousal   = 0.2
	decayDominance = 0.05
	decayIndicator = 0.02
)

// forbiddenMoodDamping scales VAD toward neutral until the mood is allowed.
const (
	forbiddenMoodDamping  = 0.8
	forbiddenMoodAttempts = 10
)

// Influence is a sparse set of cultural deltas. Nil fields mean no change.
type Influence struct {
	Valence   *float64 `json:"valence,omitempty"`
	Arousal   *float64 `json:"arousal,omitempty"`
	Dominance *float64 `json:"dominance,omitempty"`
	Shifts    []Shift  `json:"shifts,omitempty"`
	Factions  *int     `json:"factions,omitempty"`
}

// AddValence accumulates d into the valence delta.
func (i *Influence) AddValence(d float64) { i.Valence = add(i.Valence, d) }

// AddArousal accumulates d into the arousal delta.
func (i *Influence) AddArousal(d float64) { i.Arousal = add(i.Arousal, d) }

// AddDominance accumulates d into the dominance delta.
func (i *Influence) AddDominance(d float64) { i.Dominance = add(i.Dominance, d) }

// AddShift records shift once.
func (i *Influence) AddShift(shift Shift) {
	for _, s := range i.Shifts {
		if s == shift {
			return
		}
	}
	i.Shifts = append(i.Shifts, shift)
}

// Empty reports whether no field is set.
func (i Influence) Empty() bool {
	return i.Valence == nil && i.Arousal == nil && i.Dominance == nil && len(i.Shifts) == 0 && i.Factions == nil
}

func add(p *float64, d float64) *float64 {
	v := d
	if p != nil {
		v += *p
	}
	return &v
}

// Model owns the cultural slice for every game.
type Model struct {
	repo *statestore.Repo[State]
	now  func() time.Time
}

// NewModel creates a culture model over store.
func NewModel(store statestore.SliceStore, cacheTTL time.Duration) *Model {
	return &Model{
		repo: statestore.NewRepo(store, statestore.SliceCulture, cacheTTL, Default),
		now:  time.Now,
	}
}

// SetClock replaces the time source.
func (m *Model) SetClock(now func() time.Time) { m.now = now }

// GetState returns the current culture, or the baseline if the store is unreachable.
func (m *Model) GetState(ctx context.Context, gameID string) State {
	s, err := m.repo.Load(ctx, gameID)
	if err != nil {
		slog.Warn("culture state unavailable, using baseline", "game", gameID, "error", err)
	}
	return s
}

// Save persists s after rederiving mood, tension and trends.
func (m *Model) Save(ctx context.Context, gameID string, s State) error {
	s.derive()
	return m.repo.Save(ctx, gameID, s, m.now())
}

// Update applies infl, decays, enforces lore rules, clamps and persists.
func (m *Model) Update(ctx context.Context, gameID string, infl Influence, lc lore.Context, dt float64) (State, error) {
	s, err := m.repo.Load(ctx, gameID)
	if err != nil {
		return s, fmt.Errorf("culture update: %w", err)
	}

	s = Step(s, infl, lc.Rules, dt, m.now().UTC())

	if err := m.repo.Save(ctx, gameID, s, s.UpdatedAt); err != nil {
		return s, fmt.Errorf("culture update: %w", err)
	}
	return s, nil
}

// Step advances s by one tick without touching storage.
func Step(s State, infl Influence, rules lore.Rules, dt float64, at time.Time) State {
	s.History = append([]HistoryEntry(nil), s.History...)
	if dt < 0 {
		dt = 0
	}

	if infl.Valence != nil {
		s.VAD.Valence += *infl.Valence * dt
	}
	if infl.Arousal != nil {
		s.VAD.Arousal += *infl.Arousal * dt
	}
	if infl.Dominance != nil {
		s.VAD.Dominance += *infl.Dominance * dt
	}
	if infl.Factions != nil {
		s.Factions = *infl.Factions
	}
	ind := &s.Indicators
	for _, sh := range infl.Shifts {
		switch sh {
		case ShiftOptimism:
			ind.Openness += 0.1 * dt
		case ShiftUnrest:
			ind.Cohesion -= 0.15 * dt
			ind.Traditionalism -= 0.1 * dt
		case ShiftUnity:
			ind.Cohesion += 0.2 * dt
			ind.Collectivism += 0.1 * dt
		case ShiftHarmony:
			ind.Cohesion += 0.1 * dt
			ind.Collectivism += 0.05 * dt
		case ShiftAggression:
			ind.Cohesion -= 0.1 * dt
		}
	}
	s.Shifts = append([]Shift(nil), infl.Shifts...)
	if len(s.Shifts) == 0 {
		s.Shifts = nil
	}

	s.VAD.Valence *= factor(decayValence, dt)
	s.VAD.Arousal *= factor(decayArousal, dt)
	s.VAD.Dominance *= factor(decayDominance, dt)
	ind.Cohesion = towardMid(ind.Cohesion, dt)
	ind.Traditionalism = towardMid(ind.Traditionalism, dt)
	ind.Openness = towardMid(ind.Openness, dt)
	ind.Collectivism = towardMid(ind.Collectivism, dt)

	applyRules(&s, rules)
	clampAll(&s)

	s.derive()
	s.UpdatedAt = at
	s.History = append(s.History, HistoryEntry{VAD: s.VAD, Mood: s.Mood, At: at})
	if len(s.History) > MaxHistory {
		s.History = s.History[len(s.History)-MaxHistory:]
	}
	return s
}

func factor(r, dt float64) float64 {
	return math.Max(0, 1-r*dt)
}

func towardMid(v, dt float64) float64 {
	return baseIndicator + (v-baseIndicator)*factor(decayIndicator, dt)
}

func applyRules(s *State, rules lore.Rules) {
	if rules.MaxTraditionalism != nil && s.Indicators.Traditionalism > *rules.MaxTraditionalism {
		s.Indicators.Traditionalism = *rules.MaxTraditionalism
	}
	if rules.MinCohesion != nil && s.Indicators.Cohesion < *rules.MinCohesion {
		s.Indicators.Cohesion = *rules.MinCohesion
	}
	for i := 0; i < forbiddenMoodAttempts && rules.MoodForbidden(string(MoodOf(s.VAD))); i++ {
		s.VAD.Valence *= forbiddenMoodDamping
		s.VAD.Arousal *= forbiddenMoodDamping
		s.VAD.Dominance *= forbiddenMoodDamping
	}
}

func clampAll(s *State) {
	s.VAD.Valence = clamp(s.VAD.Valence, -1, 1)
	s.VAD.Arousal = clamp(s.VAD.Arousal, -1, 1)
	s.VAD.Dominance = clamp(s.VAD.Dominance, -1, 1)
	s.Indicators.Cohesion = clamp(s.Indicators.Cohesion, 0, 1)
	s.Indicators.Traditionalism = clamp(s.Indicators.Traditionalism, 0, 1)
	s.Indicators.Openness = clamp(s.Indicators.Openness, 0, 1)
	s.Indicators.Collectivism = clamp(s.Indicators.Collectivism, 0, 1)
	if s.Factions < 0 {
		s.Factions = 0
	}
}
