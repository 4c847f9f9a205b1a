package world

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/talgya/beatloom/internal/entropy"
	"github.com/talgya/beatloom/internal/lore"
	"github.com/talgya/beatloom/internal/statestore"
	"github.com/talgya/beatloom/internal/weather"
)

// Per-unit-dt decay rates toward baseline.
const (
	decayEconomic  = 0.05
	decayStability = 0.05
	decayTrade     = 0.1
	decayDemand    = 0.1
	decayResource  = 0.03
	decayConflict  = 0.1
)

const (
	tradeHealthFactor = 0.5  // economic health gained per unit of extra trade
	demandDrain       = 0.1  // resource drawn per unit of extra demand
	conflictResolved  = 0.05 // severity below which a conflict ends
	maxMultiplier     = 3.0
	maxMagicLevel     = 10.0
)

// Influence is a sparse set of deltas. Nil fields mean no change this tick.
type Influence struct {
	TradeVolume         *float64             `json:"trade_volume,omitempty"`
	ResourceDemand      *float64             `json:"resource_demand,omitempty"`
	FlowDirection       *Flow                `json:"flow_direction,omitempty"`
	StabilityDelta      *float64             `json:"stability_delta,omitempty"`
	ConflictProbability *float64             `json:"conflict_probability,omitempty"`
	ResourceFlows       map[Resource]float64 `json:"resource_flows,omitempty"`
}

// Empty reports whether no field is set.
func (i Influence) Empty() bool {
	return i.TradeVolume == nil && i.ResourceDemand == nil && i.FlowDirection == nil &&
		i.StabilityDelta == nil && i.ConflictProbability == nil && len(i.ResourceFlows) == 0
}

// Model owns the world slice for every game.
type Model struct {
	repo *statestore.Repo[State]
	rng  entropy.Source
	now  func() time.Time
}

// NewModel creates a world model over store.
func NewModel(store statestore.SliceStore, rng entropy.Source, cacheTTL time.Duration) *Model {
	if rng == nil {
		rng = entropy.Crypto{}
	}
	return &Model{
		repo: statestore.NewRepo(store, statestore.SliceWorld, cacheTTL, Default),
		rng:  rng,
		now:  time.Now,
	}
}

// SetClock replaces the time source.
func (m *Model) SetClock(now func() time.Time) { m.now = now }

// GetState returns the current world, or the baseline if the store is unreachable.
func (m *Model) GetState(ctx context.Context, gameID string) State {
	s, err := m.repo.Load(ctx, gameID)
	if err != nil {
		slog.Warn("world state unavailable, using baseline", "game", gameID, "error", err)
	}
	return s
}

// Save persists s as-is.
func (m *Model) Save(ctx context.Context, gameID string, s State) error {
	return m.repo.Save(ctx, gameID, s, m.now())
}

// Update applies infl scaled by dt, then decay, then lore constraints, then
// clamping, and persists the result.
func (m *Model) Update(ctx context.Context, gameID string, infl Influence, lc lore.Context, dt float64) (State, error) {
	s, err := m.repo.Load(ctx, gameID)
	if err != nil {
		return s, fmt.Errorf("world update: %w", err)
	}

	s = Step(s, infl, lc.Rules, dt, m.rng, weather.SeedFor(gameID))
	s.UpdatedAt = m.now().UTC()

	if err := m.repo.Save(ctx, gameID, s, s.UpdatedAt); err != nil {
		return s, fmt.Errorf("world update: %w", err)
	}
	return s, nil
}

// Step advances s by one tick without touching storage.
func Step(s State, infl Influence, rules lore.Rules, dt float64, rng entropy.Source, weatherSeed int64) State {
	s = clone(s)
	if dt < 0 {
		dt = 0
	}

	applyInfluence(&s, infl, dt, rng)

	s.WorldAge += dt
	s.Season = SeasonAt(s.WorldAge)
	wx := weather.Forecast(uint8(s.Season), s.WorldAge, weatherSeed)
	s.Weather = wx.Description
	s.WeatherSeverity = wx.Severity

	decay(&s, dt)
	applyRules(&s, rules)
	clampAll(&s)

	s.MarketPrices = prices(s)
	return s
}

func applyInfluence(s *State, infl Influence, dt float64, rng entropy.Source) {
	if infl.TradeVolume != nil {
		d := *infl.TradeVolume
		s.TradeVolume += d * dt
		s.EconomicHealth += d * tradeHealthFactor * dt
	}
	if infl.ResourceDemand != nil {
		d := *infl.ResourceDemand
		s.ResourceDemand += d * dt
		for _, r := range Resources {
			s.Resources[r] -= d * demandDrain * dt
		}
	}
	if infl.FlowDirection != nil {
		s.FlowDirection = *infl.FlowDirection
	}
	if infl.StabilityDelta != nil {
		s.PoliticalStability += *infl.StabilityDelta * dt
	}
	if infl.ConflictProbability != nil {
		p := math.Min(1, *infl.ConflictProbability*dt)
		if rng.Float64() < p {
			s.Conflicts = append(s.Conflicts, Conflict{
				Kind:      "civil_unrest",
				Severity:  *infl.ConflictProbability,
				StartedAt: s.WorldAge,
			})
		}
	}
	for r, d := range infl.ResourceFlows {
		s.Resources[r] += d * dt
	}
}

// decayToward moves v toward base by factor (1 - r*dt), never past it.
func decayToward(v, base, r, dt float64) float64 {
	f := 1 - r*dt
	if f < 0 {
		f = 0
	}
	return base + (v-base)*f
}

func decay(s *State, dt float64) {
	s.EconomicHealth = decayToward(s.EconomicHealth, BaseEconomicHealth, decayEconomic, dt)
	s.PoliticalStability = decayToward(s.PoliticalStability, BasePoliticalStability, decayStability, dt)
	s.TradeVolume = decayToward(s.TradeVolume, BaseTradeVolume, decayTrade, dt)
	s.ResourceDemand = decayToward(s.ResourceDemand, BaseResourceDemand, decayDemand, dt)
	for _, r := range Resources {
		s.Resources[r] = decayToward(s.Resources[r], BaseResource(r), decayResource, dt)
	}
	if s.TradeVolume == BaseTradeVolume && s.ResourceDemand == BaseResourceDemand {
		s.FlowDirection = FlowBalanced
	}

	active := s.Conflicts[:0]
	for _, c := range s.Conflicts {
		c.Severity = decayToward(c.Severity, 0, decayConflict, dt)
		if c.Severity >= conflictResolved {
			active = append(active, c)
		}
	}
	s.Conflicts = active
	if len(s.Conflicts) == 0 {
		s.Conflicts = nil
	}
}

func applyRules(s *State, rules lore.Rules) {
	if rules.MaxMagicLevel != nil && s.MagicLevel > *rules.MaxMagicLevel {
		s.MagicLevel = *rules.MaxMagicLevel
	}
	if rules.MinPopulation != nil && s.Population < *rules.MinPopulation {
		s.Population = *rules.MinPopulation
	}
	if len(rules.ForbiddenRegions) > 0 {
		kept := s.Regions[:0]
		for _, r := range s.Regions {
			if !rules.RegionForbidden(r.Name) {
				kept = append(kept, r)
			}
		}
		s.Regions = kept
	}
}

func clampAll(s *State) {
	s.EconomicHealth = clamp(s.EconomicHealth, 0, 1)
	s.PoliticalStability = clamp(s.PoliticalStability, 0, 1)
	s.TradeVolume = clamp(s.TradeVolume, 0, maxMultiplier)
	s.ResourceDemand = clamp(s.ResourceDemand, 0, maxMultiplier)
	for _, r := range Resources {
		s.Resources[r] = clamp(s.Resources[r], 0, 1)
	}
	for i := range s.Conflicts {
		s.Conflicts[i].Severity = clamp(s.Conflicts[i].Severity, 0, 1)
	}
	s.MagicLevel = clamp(s.MagicLevel, 0, maxMagicLevel)
	if s.Population < 0 {
		s.Population = 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func clone(s State) State {
	res := make(map[Resource]float64, len(Resources))
	for _, r := range Resources {
		v, ok := s.Resources[r]
		if !ok {
			v = BaseResource(r)
		}
		res[r] = v
	}
	s.Resources = res
	if s.Conflicts != nil {
		s.Conflicts = append([]Conflict(nil), s.Conflicts...)
	}
	if s.Regions != nil {
		regions := make([]Region, len(s.Regions))
		for i, r := range s.Regions {
			r.Settlements = append([]Settlement(nil), r.Settlements...)
			regions[i] = r
		}
		s.Regions = regions
	}
	return s
}
