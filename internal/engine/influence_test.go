package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/beatloom/internal/culture"
	"github.com/talgya/beatloom/internal/motivation"
	"github.com/talgya/beatloom/internal/story"
	"github.com/talgya/beatloom/internal/world"
)

func dominated(imp motivation.Imperative) motivation.State {
	s := motivation.State{Entities: []motivation.Entity{
		motivation.NewEntity("c1", "Ada", motivation.Character, imp, motivation.Neutral, motivation.Curiosity),
	}}
	s.Derive()
	return s
}

func TestWorldInfluenceFromDominantImperative(t *testing.T) {
	infl := WorldInfluence(dominated(motivation.Expand), culture.Default(), nil)
	require.NotNil(t, infl.TradeVolume)
	assert.InDelta(t, 0.2, *infl.TradeVolume, 1e-9)
	require.NotNil(t, infl.FlowDirection)
	assert.Equal(t, world.FlowOutward, *infl.FlowDirection)
	assert.Nil(t, infl.ResourceDemand)

	infl = WorldInfluence(dominated(motivation.Consume), culture.Default(), nil)
	require.NotNil(t, infl.ResourceDemand)
	assert.InDelta(t, 0.3, *infl.ResourceDemand, 1e-9)
	assert.Equal(t, world.FlowInward, *infl.FlowDirection)
	assert.Nil(t, infl.TradeVolume)
}

func TestWorldInfluenceHighArousal(t *testing.T) {
	c := culture.Default()
	c.VAD.Arousal = 0.8
	infl := WorldInfluence(dominated(motivation.Balance), c, nil)
	require.NotNil(t, infl.StabilityDelta)
	assert.InDelta(t, -0.2, *infl.StabilityDelta, 1e-9)
	assert.InDelta(t, 0.3, *infl.ConflictProbability, 1e-9)
}

func TestWorldInfluenceEconomicActions(t *testing.T) {
	actions := []story.Action{
		{ID: 1, Kind: story.KindEconomic, Target: "Food", Priority: 5},
		{ID: 2, Kind: story.KindEconomic, Target: "food", Priority: 10},
		{ID: 3, Kind: story.KindEconomic, Target: "gold", Priority: 5},
		{ID: 4, Kind: story.KindDialogue, Target: "water", Priority: 5},
	}
	infl := WorldInfluence(motivation.State{}, culture.Default(), actions)
	require.Len(t, infl.ResourceFlows, 1)
	assert.InDelta(t, 0.15, infl.ResourceFlows[world.Food], 1e-9)
}

func TestWorldInfluenceQuietIsEmpty(t *testing.T) {
	infl := WorldInfluence(dominated(motivation.Balance), culture.Default(), nil)
	assert.True(t, infl.Empty())
}

func TestMotivationInfluence(t *testing.T) {
	w := world.Default()
	for _, r := range world.Resources {
		w.Resources[r] = 0.1
	}
	c := culture.Default()
	c.VAD = culture.VAD{Valence: -0.5, Arousal: 0.9}

	actions := []story.Action{
		{ID: 1, ActorID: "p1", ActorName: "Mira"},
		{ID: 2, ActorID: "p1", ActorName: "Mira"},
		{ID: 3, ActorID: "c1", ActorName: "Ada"},
	}
	infl := MotivationInfluence(w, c, actions, dominated(motivation.Create))

	require.NotNil(t, infl.ImperativeShift)
	assert.Equal(t, motivation.Survive, infl.ImperativeShift.To)
	assert.InDelta(t, 0.3, infl.ImperativeShift.Probability, 1e-9)
	require.NotNil(t, infl.SoulscapeChange)
	assert.Equal(t, "turmoil", infl.SoulscapeChange.Soulscape)
	assert.Empty(t, infl.AspectAdoptions)
	assert.Equal(t, []motivation.Arrival{{ID: "p1", Name: "Mira"}}, infl.Arrivals)
}

func TestMotivationInfluenceHighValenceAdoptsGrowth(t *testing.T) {
	c := culture.Default()
	c.VAD.Valence = 0.6
	infl := MotivationInfluence(world.Default(), c, nil, motivation.State{})
	require.Len(t, infl.AspectAdoptions, 1)
	assert.Equal(t, "Growth", infl.AspectAdoptions[0].Aspect)
	require.NotNil(t, infl.AspectAdoptions[0].Ethos)
	assert.Equal(t, motivation.Positive, *infl.AspectAdoptions[0].Ethos)
	assert.Nil(t, infl.ImperativeShift)
}

func TestCultureInfluenceStacks(t *testing.T) {
	w := world.Default()
	w.EconomicHealth = 0.8
	m := dominated(motivation.Create)
	actions := []story.Action{
		{ID: 1, Kind: story.KindCultural, Sentiment: story.SentimentPositive},
		{ID: 2, Kind: story.KindSocial, Sentiment: story.SentimentNegative},
	}
	infl := CultureInfluence(w, m, actions)

	require.NotNil(t, infl.Valence)
	assert.InDelta(t, 0.5, *infl.Valence, 1e-9)
	require.NotNil(t, infl.Dominance)
	assert.InDelta(t, 0.1, *infl.Dominance, 1e-9)
	assert.Nil(t, infl.Arousal)
	assert.ElementsMatch(t, []culture.Shift{culture.ShiftOptimism, culture.ShiftHarmony}, infl.Shifts)
	require.NotNil(t, infl.Factions)
	assert.Zero(t, *infl.Factions)
}

func TestCultureInfluenceConflictAndAggression(t *testing.T) {
	m := dominated(motivation.Destroy)
	m.Patterns = []motivation.Pattern{
		{Kind: motivation.EmergingConflict, Strength: 0.5},
		{Kind: motivation.FactionFormation, Strength: 0.4},
		{Kind: motivation.FactionFormation, Strength: 0.6},
	}
	infl := CultureInfluence(world.Default(), m, nil)

	assert.InDelta(t, -0.5, *infl.Valence, 1e-9)
	assert.InDelta(t, 0.7, *infl.Arousal, 1e-9)
	assert.ElementsMatch(t, []culture.Shift{culture.ShiftUnrest, culture.ShiftAggression}, infl.Shifts)
	assert.Equal(t, 2, *infl.Factions)
}

func TestTheme(t *testing.T) {
	w := world.Default()
	c := culture.Default()
	assert.Equal(t, ThemeDevelopment, Theme(w, dominated(motivation.Create), c))
	assert.Equal(t, ThemeDiscovery, Theme(w, dominated(motivation.Discover), c))

	poor := world.Default()
	poor.EconomicHealth = 0.2
	assert.Equal(t, ThemeSurvival, Theme(poor, dominated(motivation.Discover), c))

	w.Conflicts = []world.Conflict{{Kind: "war", Severity: 0.5}}
	c.VAD.Arousal = 0.7
	assert.Equal(t, ThemeConflict, Theme(w, dominated(motivation.Create), c))
}

func TestPlayerInfluence(t *testing.T) {
	actions := []story.Action{
		{ID: 1, Content: "Mira lights the beacon on the tower"},
		{ID: 2, Content: "We sail at dawn"},
	}
	got := PlayerInfluence("The beacon burned on the old tower while Mira watched.", actions)
	assert.Equal(t, 3, got[1])
	assert.Equal(t, 0, got[2])
	assert.Nil(t, PlayerInfluence("anything", nil))
}
