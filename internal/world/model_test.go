package world

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/beatloom/internal/entropy"
	"github.com/talgya/beatloom/internal/lore"
	"github.com/talgya/beatloom/internal/statestore"
)

func ptr[T any](v T) *T { return &v }

func fixedClock() func() time.Time {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestStepStaysInBounds(t *testing.T) {
	s := Default()
	infl := Influence{
		TradeVolume:         ptr(50.0),
		ResourceDemand:      ptr(50.0),
		StabilityDelta:      ptr(-40.0),
		ConflictProbability: ptr(3.0),
		ResourceFlows:       map[Resource]float64{Food: 20, Magic: -20},
	}
	for i := 0; i < 25; i++ {
		s = Step(s, infl, lore.Rules{}, 1, entropy.Fixed(0), 1)
		assert.GreaterOrEqual(t, s.EconomicHealth, 0.0)
		assert.LessOrEqual(t, s.EconomicHealth, 1.0)
		assert.GreaterOrEqual(t, s.PoliticalStability, 0.0)
		assert.LessOrEqual(t, s.PoliticalStability, 1.0)
		assert.LessOrEqual(t, s.TradeVolume, maxMultiplier)
		for _, r := range Resources {
			assert.GreaterOrEqual(t, s.Resources[r], 0.0, r)
			assert.LessOrEqual(t, s.Resources[r], 1.0, r)
		}
		for _, c := range s.Conflicts {
			assert.LessOrEqual(t, c.Severity, 1.0)
		}
	}
}

func TestIdleDecayMovesTowardBaseline(t *testing.T) {
	s := Default()
	s.EconomicHealth = 0.95
	s.PoliticalStability = 0.1
	s.TradeVolume = 2.5
	s.Resources[Food] = 0.1
	s.Resources[Magic] = 0.9
	s.Conflicts = []Conflict{{Kind: "war", Severity: 0.9}}

	dist := func(s State) []float64 {
		return []float64{
			math.Abs(s.EconomicHealth - BaseEconomicHealth),
			math.Abs(s.PoliticalStability - BasePoliticalStability),
			math.Abs(s.TradeVolume - BaseTradeVolume),
			math.Abs(s.Resources[Food] - BaseResource(Food)),
			math.Abs(s.Resources[Magic] - BaseResource(Magic)),
		}
	}

	prev := dist(s)
	for i := 0; i < 60; i++ {
		s = Step(s, Influence{}, lore.Rules{}, 0.5, entropy.Fixed(1), 1)
		cur := dist(s)
		for j := range cur {
			assert.LessOrEqual(t, cur[j], prev[j], "field %d moved away from baseline at step %d", j, i)
		}
		prev = cur
	}
	assert.Empty(t, s.Conflicts, "conflicts resolve once severity decays")
}

func TestDecayNeverOvershoots(t *testing.T) {
	assert.Equal(t, 0.6, decayToward(0.9, 0.6, 0.5, 10))
	assert.InDelta(t, 0.75, decayToward(0.9, 0.6, 0.5, 1), 1e-9)
}

func TestConflictDrawUsesSource(t *testing.T) {
	infl := Influence{ConflictProbability: ptr(0.3)}

	never := Step(Default(), infl, lore.Rules{}, 1, entropy.Fixed(1), 1)
	assert.Empty(t, never.Conflicts)

	always := Step(Default(), infl, lore.Rules{}, 1, entropy.Fixed(0), 1)
	require.Len(t, always.Conflicts, 1)
	assert.Equal(t, "civil_unrest", always.Conflicts[0].Kind)
}

func TestRulesOverrideComputedValues(t *testing.T) {
	s := Default()
	s.MagicLevel = 8
	s.Population = 50
	rules := lore.Rules{
		MaxMagicLevel:    lore.Float(1.5),
		MinPopulation:    lore.Int(500),
		ForbiddenRegions: []string{"the northern reach"},
	}
	s = Step(s, Influence{}, rules, 1, entropy.Fixed(1), 1)
	assert.Equal(t, 1.5, s.MagicLevel)
	assert.Equal(t, 500, s.Population)
	for _, r := range s.Regions {
		assert.NotEqual(t, "The Northern Reach", r.Name)
	}
}

func TestExpandInfluenceRaisesTrade(t *testing.T) {
	out := FlowOutward
	s := Step(Default(), Influence{TradeVolume: ptr(0.2), FlowDirection: &out}, lore.Rules{}, 1, entropy.Fixed(1), 1)
	assert.Greater(t, s.TradeVolume, BaseTradeVolume)
	assert.Greater(t, s.EconomicHealth, BaseEconomicHealth)
	assert.Equal(t, FlowOutward, s.FlowDirection)
}

func TestWorldAgeAndSeasonAdvance(t *testing.T) {
	s := Default()
	for i := 0; i < 8; i++ {
		s = Step(s, Influence{}, lore.Rules{}, 1, entropy.Fixed(1), 1)
	}
	assert.Equal(t, 8.0, s.WorldAge)
	assert.Equal(t, SeasonSummer, s.Season)
	assert.NotEmpty(t, s.Weather)
}

func TestModelRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemory()
	m := NewModel(store, entropy.Fixed(1), time.Minute)
	m.SetClock(fixedClock())

	s, err := m.Update(ctx, "g1", Influence{ResourceFlows: map[Resource]float64{Wood: 0.1}}, lore.Context{}, 1)
	require.NoError(t, err)

	fresh := NewModel(store, entropy.Fixed(1), 0)
	assert.Equal(t, s, fresh.GetState(ctx, "g1"))
}

func TestModelDegradesOnReadAndSurfacesWriteFailure(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemory()
	store.SetOffline(true)
	m := NewModel(store, entropy.Fixed(1), time.Minute)

	assert.Equal(t, Default(), m.GetState(ctx, "g1"))

	_, err := m.Update(ctx, "g1", Influence{}, lore.Context{}, 1)
	assert.ErrorIs(t, err, statestore.ErrUnavailable)
}

func TestResourceAvailability(t *testing.T) {
	s := Default()
	for _, r := range Resources {
		s.Resources[r] = 0.2
	}
	assert.InDelta(t, 0.2, s.ResourceAvailability(), 1e-9)
}
