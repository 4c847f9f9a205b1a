package motivation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/beatloom/internal/entropy"
	"github.com/talgya/beatloom/internal/lore"
	"github.com/talgya/beatloom/internal/statestore"
)

func char(id string, imp Imperative, influence float64) Entity {
	e := NewEntity(id, id, Character, imp, Neutral, Purpose)
	e.Influence = influence
	return e
}

func TestDefaultInteractionsAreConsistent(t *testing.T) {
	for _, imp := range Imperatives() {
		t.Run(imp.String(), func(t *testing.T) {
			table := DefaultInteractions(imp)
			assert.Equal(t, Indifferent, table.Of(imp), "self is never listed")
			total := len(table.With(Attracted)) + len(table.With(Aversion)) + len(table.With(Indifferent))
			assert.Equal(t, NumImperatives, total)
			for _, a := range defaultAttractions[imp] {
				assert.NotContains(t, defaultAversions[imp], a)
			}
		})
	}
}

func TestInteractionTableJSON(t *testing.T) {
	table := DefaultInteractions(Survive)
	b, err := json.Marshal(table)
	require.NoError(t, err)

	var back InteractionTable
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, table, back)

	err = json.Unmarshal([]byte(`{"attracted":["Create"],"aversion":["create"]}`), &back)
	assert.Error(t, err)

	require.NoError(t, json.Unmarshal([]byte(`{"attracted":["Share"]}`), &back))
	assert.Equal(t, Attracted, back.Of(Share))
	assert.Equal(t, Indifferent, back.Of(Destroy))
}

func TestImperativeAffinity(t *testing.T) {
	assert.Equal(t, 1.0, ImperativeAffinity(Survive, Protect))
	assert.Equal(t, -1.0, ImperativeAffinity(Survive, Destroy))
	assert.Equal(t, 0.0, ImperativeAffinity(Survive, Create))
	assert.Equal(t, 0.3, ImperativeAffinity(Create, Create))
}

func TestParseImperative(t *testing.T) {
	imp, err := ParseImperative("consume")
	require.NoError(t, err)
	assert.Equal(t, Consume, imp)

	_, err = ParseImperative("Chaos")
	assert.Error(t, err)
}

func TestDominantImperative(t *testing.T) {
	entities := []Entity{
		char("a", Create, 3),
		char("b", Survive, 2),
		NewEntity("c", "Idea", Concept, Destroy, Negative, Chaos),
	}
	d := DominantImperative(entities)
	assert.Equal(t, Create, d.Imperative)
	assert.InDelta(t, 0.6, d.Strength, 1e-9)

	assert.Equal(t, Dominant{Imperative: Balance}, DominantImperative(nil))

	def := Default()
	assert.Equal(t, Connect, def.Dominant.Imperative)
	assert.Equal(t, SoulscapeEquilibrium, def.Soulscape)
}

func TestLocationsCountHalf(t *testing.T) {
	entities := []Entity{
		char("a", Create, 1),
		NewEntity("l1", "Keep", Location, Protect, Neutral, Order),
		NewEntity("l2", "Gate", Location, Protect, Neutral, Order),
		NewEntity("l3", "Wall", Location, Protect, Neutral, Order),
	}
	d := DominantImperative(entities)
	assert.Equal(t, Protect, d.Imperative)
	assert.InDelta(t, 0.6, d.Strength, 1e-9)
}

func TestDetectPatterns(t *testing.T) {
	t.Run("faction", func(t *testing.T) {
		p := DetectPatterns([]Entity{char("a", Create, 1), char("b", Create, 1), char("c", Balance, 1)})
		require.NotEmpty(t, p)
		assert.Equal(t, FactionFormation, p[0].Kind)
		require.NotNil(t, p[0].Imperative)
		assert.Equal(t, Create, *p[0].Imperative)
		assert.Equal(t, []string{"a", "b"}, p[0].Members)
		assert.InDelta(t, 2.0/3.0, p[0].Strength, 1e-9)
	})
	t.Run("conflict", func(t *testing.T) {
		p := DetectPatterns([]Entity{char("a", Create, 1), char("b", Destroy, 1)})
		assert.True(t, HasPattern(p, EmergingConflict))
		assert.False(t, HasPattern(p, FactionFormation))
	})
	t.Run("convergence", func(t *testing.T) {
		p := DetectPatterns([]Entity{char("a", Create, 1), char("b", Transform, 1), char("c", Discover, 1)})
		assert.True(t, HasPattern(p, ConvergenceKind))
		assert.False(t, HasPattern(p, EmergingConflict))
	})
	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, DetectPatterns(nil))
	})
}

func TestStepImperativeShiftUsesSource(t *testing.T) {
	s := State{Entities: []Entity{char("a", Create, 1)}}
	infl := Influence{ImperativeShift: &ImperativeShift{To: Survive, Probability: 0.3, Trigger: "scarcity"}}

	never := Step(s, infl, lore.Rules{}, 1, entropy.Fixed(1))
	assert.Equal(t, Create, never.Entities[0].Function.Imperative)

	always := Step(s, infl, lore.Rules{}, 1, entropy.Fixed(0))
	got := always.Entities[0]
	assert.Equal(t, Survive, got.Function.Imperative)
	assert.Equal(t, DefaultInteractions(Survive), got.Function.Interactions)
	assert.Equal(t, "scarcity", got.Function.Qualia)
	assert.Equal(t, Create, s.Entities[0].Function.Imperative, "input is not mutated")

	blocked := Step(s, infl, lore.Rules{ForbiddenImperatives: []string{"survive"}}, 1, entropy.Fixed(0))
	assert.Equal(t, Create, blocked.Entities[0].Function.Imperative)
}

func TestStepSeededShiftIsReproducible(t *testing.T) {
	s := State{}
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		s.Entities = append(s.Entities, char(id, Create, 1))
	}
	infl := Influence{ImperativeShift: &ImperativeShift{To: Survive, Probability: 0.5}}
	a := Step(s, infl, lore.Rules{}, 1, entropy.NewSeeded(11))
	b := Step(s, infl, lore.Rules{}, 1, entropy.NewSeeded(11))
	assert.Equal(t, a, b)
}

func TestSoulscapeSettlesWhenIdle(t *testing.T) {
	s := State{Entities: []Entity{char("a", Create, 1), char("b", Share, 1)}}
	s = Step(s, Influence{SoulscapeChange: &SoulscapeChange{Soulscape: "turmoil"}}, lore.Rules{}, 1, entropy.Fixed(1))
	assert.Equal(t, SoulscapeTurmoil, s.Soulscape)

	prev := s.Entities[0].Function.Fervor
	for i := 0; i < 15; i++ {
		s = Step(s, Influence{}, lore.Rules{}, 1, entropy.Fixed(1))
		cur := s.Entities[0].Function.Fervor
		assert.LessOrEqual(t, cur, prev)
		prev = cur
	}
	assert.Equal(t, SoulscapeEquilibrium, s.Soulscape)
}

func TestStepAspectAdoptionAndArrivals(t *testing.T) {
	pos := Positive
	s := Step(Default(), Influence{
		Arrivals:        []Arrival{{ID: "actor-1", Name: "Mira"}},
		AspectAdoptions: []AspectAdoption{{Aspect: "Growth", Ethos: &pos}},
	}, lore.Rules{}, 1, entropy.Fixed(1))

	i := s.Find("actor-1")
	require.GreaterOrEqual(t, i, 0)
	mira := s.Entities[i]
	assert.Equal(t, Character, mira.Kind)
	assert.Equal(t, []string{"Growth"}, mira.Function.AdoptedAspects)
	assert.Equal(t, Positive, mira.Function.Ethos)

	again := Step(s, Influence{Arrivals: []Arrival{{ID: "actor-1", Name: "Mira"}}}, lore.Rules{}, 1, entropy.Fixed(1))
	assert.Len(t, again.Entities, len(s.Entities))
}

func TestStepFervorBounded(t *testing.T) {
	s := State{Entities: []Entity{char("a", Create, 1)}}
	infl := Influence{
		SoulscapeChange: &SoulscapeChange{Soulscape: "turmoil"},
		AspectAdoptions: []AspectAdoption{{Aspect: "x"}, {Aspect: "y"}, {Aspect: "z"}},
	}
	s = Step(s, infl, lore.Rules{}, 10, entropy.Fixed(1))
	f := s.Entities[0].Function.Fervor
	assert.GreaterOrEqual(t, f, 0.0)
	assert.LessOrEqual(t, f, 1.0)
}

func TestModelRoundTripAndPatterns(t *testing.T) {
	ctx := context.Background()
	store := statestore.NewMemory()
	m := NewModel(store, entropy.Fixed(1), time.Minute)
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return at })

	s := Default()
	s.Entities = append(s.Entities, char("a", Create, 3), char("b", Create, 1))
	require.NoError(t, m.Save(ctx, "g1", s))

	patterns := DetectPatterns(s.Entities)
	saved, err := m.RecordPatterns(ctx, "g1", patterns)
	require.NoError(t, err)

	fresh := NewModel(store, entropy.Fixed(1), 0)
	got := fresh.GetState(ctx, "g1")
	assert.Equal(t, saved, got)
	assert.True(t, HasPattern(got.Patterns, FactionFormation))
	assert.Equal(t, Create, got.Dominant.Imperative)
}
