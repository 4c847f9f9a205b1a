package engine

import (
	"strings"

	"github.com/talgya/beatloom/internal/culture"
	"github.com/talgya/beatloom/internal/motivation"
	"github.com/talgya/beatloom/internal/story"
	"github.com/talgya/beatloom/internal/world"
)

// Thresholds and magnitudes for cross-model influence.
const (
	highArousal    = 0.7
	lowValence     = -0.3
	highValence    = 0.5
	lowResources   = 0.3
	strongEconomy  = 0.7
	survivalChance = 0.3

	expandTrade       = 0.2
	consumeDemand     = 0.3
	arousalStability  = -0.2
	arousalConflict   = 0.3
	economicFlow      = 0.05 // per action at default priority
	socialValence     = 0.1
	growthAspect      = "Growth"
	turmoilSoulscape  = "turmoil"
	scarcityTrigger   = "scarcity"
	unrestQualia      = "restless dread"
	prosperityValence = 0.2
)

// Influences groups the three vectors computed for one tick.
type Influences struct {
	World      world.Influence      `json:"world"`
	Motivation motivation.Influence `json:"motivation"`
	Culture    culture.Influence    `json:"culture"`
}

// ComputeInfluences derives every vector from the pre-tick snapshots.
func ComputeInfluences(w world.State, m motivation.State, c culture.State, actions []story.Action) Influences {
	return Influences{
		World:      WorldInfluence(m, c, actions),
		Motivation: MotivationInfluence(w, c, actions, m),
		Culture:    CultureInfluence(w, m, actions),
	}
}

// WorldInfluence is how drives, mood and economic actions move the world.
func WorldInfluence(m motivation.State, c culture.State, actions []story.Action) world.Influence {
	var infl world.Influence

	switch m.Dominant.Imperative {
	case motivation.Expand:
		infl.TradeVolume = addTo(infl.TradeVolume, expandTrade)
		infl.FlowDirection = flow(world.FlowOutward)
	case motivation.Consume:
		infl.ResourceDemand = addTo(infl.ResourceDemand, consumeDemand)
		infl.FlowDirection = flow(world.FlowInward)
	}

	if c.VAD.Arousal > highArousal {
		infl.StabilityDelta = addTo(infl.StabilityDelta, arousalStability)
		infl.ConflictProbability = addTo(infl.ConflictProbability, arousalConflict)
	}

	for _, a := range actions {
		if a.Kind != story.KindEconomic {
			continue
		}
		r, ok := world.ParseResource(strings.ToLower(strings.TrimSpace(a.Target)))
		if !ok {
			continue
		}
		if infl.ResourceFlows == nil {
			infl.ResourceFlows = make(map[world.Resource]float64)
		}
		infl.ResourceFlows[r] += economicFlow * float64(a.Priority) / story.DefaultPriority
	}
	return infl
}

// MotivationInfluence is how scarcity and mood move the characters. The
// catalog snapshot is only used to register newly seen actors.
func MotivationInfluence(w world.State, c culture.State, actions []story.Action, m motivation.State) motivation.Influence {
	var infl motivation.Influence

	if w.ResourceAvailability() < lowResources {
		infl.ImperativeShift = &motivation.ImperativeShift{
			To:          motivation.Survive,
			Probability: survivalChance,
			Trigger:     scarcityTrigger,
		}
	}
	if c.VAD.Arousal > highArousal && c.VAD.Valence < lowValence {
		infl.SoulscapeChange = &motivation.SoulscapeChange{Soulscape: turmoilSoulscape, Qualia: unrestQualia}
	}
	if c.VAD.Valence > highValence {
		pos := motivation.Positive
		infl.AspectAdoptions = append(infl.AspectAdoptions, motivation.AspectAdoption{
			Aspect:  growthAspect,
			Ethos:   &pos,
			Trigger: "collective hope",
		})
	}

	seen := make(map[string]bool)
	for _, a := range actions {
		if a.ActorID == "" || seen[a.ActorID] || m.Find(a.ActorID) >= 0 {
			continue
		}
		seen[a.ActorID] = true
		infl.Arrivals = append(infl.Arrivals, motivation.Arrival{ID: a.ActorID, Name: a.DisplayName()})
	}
	return infl
}

// CultureInfluence is how the economy, drives and social actions move the
// collective mood. Conditions stack additively.
func CultureInfluence(w world.State, m motivation.State, actions []story.Action) culture.Influence {
	var infl culture.Influence

	if w.EconomicHealth > strongEconomy {
		infl.AddValence(prosperityValence)
		infl.AddShift(culture.ShiftOptimism)
	}
	if motivation.HasPattern(m.Patterns, motivation.EmergingConflict) {
		infl.AddValence(-0.3)
		infl.AddArousal(0.4)
		infl.AddShift(culture.ShiftUnrest)
	}
	if motivation.HasPattern(m.Patterns, motivation.ConvergenceKind) {
		infl.AddShift(culture.ShiftUnity)
	}

	switch m.Dominant.Imperative {
	case motivation.Destroy, motivation.Consume:
		infl.AddValence(-0.2)
		infl.AddArousal(0.3)
		infl.AddShift(culture.ShiftAggression)
	case motivation.Create, motivation.Share:
		infl.AddValence(0.2)
		infl.AddDominance(0.1)
		infl.AddShift(culture.ShiftHarmony)
	}

	for _, a := range actions {
		if (a.Kind == story.KindCultural || a.Kind == story.KindSocial) && a.Sentiment == story.SentimentPositive {
			infl.AddValence(socialValence)
		}
	}

	factions := 0
	for _, p := range m.Patterns {
		if p.Kind == motivation.FactionFormation {
			factions++
		}
	}
	infl.Factions = &factions
	return infl
}

func addTo(p *float64, d float64) *float64 {
	v := d
	if p != nil {
		v += *p
	}
	return &v
}

func flow(f world.Flow) *world.Flow { return &f }
