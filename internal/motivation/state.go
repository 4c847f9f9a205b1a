package motivation

import (
	"strings"
	"time"
)

// Dominant is the weighted-majority imperative across the catalog.
type Dominant struct {
	Imperative Imperative `json:"imperative"`
	Strength   float64    `json:"strength"`
}

// State is the motivation snapshot for one game.
type State struct {
	Entities  []Entity  `json:"entities"`
	Dominant  Dominant  `json:"dominant"`
	Soulscape string    `json:"soulscape"`
	Patterns  []Pattern `json:"patterns,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Default returns the catalog every game starts from.
func Default() State {
	s := State{
		Entities: []Entity{
			NewEntity("loc-crossroads", "The Crossroads", Location, Connect, Neutral, Unity),
			NewEntity("concept-creation", "Act of Creation", Concept, Create, Positive, Growth),
		},
	}
	s.Derive()
	return s
}

// Derive recomputes the dominant imperative and collective soulscape.
func (s *State) Derive() {
	s.Dominant = DominantImperative(s.Entities)
	s.Soulscape = CollectiveSoulscape(s.Entities)
}

// Find returns the index of the entity with id, or -1.
func (s State) Find(id string) int {
	for i, e := range s.Entities {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Characters returns the character entities.
func (s State) Characters() []Entity {
	var out []Entity
	for _, e := range s.Entities {
		if e.Kind == Character {
			out = append(out, e)
		}
	}
	return out
}

// DominantImperative weighs characters by influence and locations at half
// weight. With nothing to weigh it returns Balance at zero strength.
func DominantImperative(entities []Entity) Dominant {
	var totals [NumImperatives]float64
	total := 0.0
	for _, e := range entities {
		if e.Kind != Character && e.Kind != Location {
			continue
		}
		if !e.Function.Imperative.Valid() {
			continue
		}
		w := e.weight()
		totals[e.Function.Imperative] += w
		total += w
	}
	if total == 0 {
		return Dominant{Imperative: Balance}
	}
	best := Balance
	bestWeight := -1.0
	for i, w := range totals {
		if w > bestWeight {
			best, bestWeight = Imperative(i), w
		}
	}
	return Dominant{Imperative: best, Strength: bestWeight / total}
}

// Collective soulscape labels.
const (
	SoulscapeTurmoil        = "Collective Turmoil - The world churns with conflict"
	SoulscapePeace          = "Collective Peace - Harmony prevails across souls"
	SoulscapeTransformation = "Collective Transformation - The world is becoming something new"
	SoulscapeEquilibrium    = "Dynamic Equilibrium - Forces in constant flux"
)

// CollectiveSoulscape summarises the characters' individual soulscapes.
func CollectiveSoulscape(entities []Entity) string {
	var n, turmoil, peace, change float64
	for _, e := range entities {
		if e.Kind != Character {
			continue
		}
		n++
		ss := strings.ToLower(e.Function.Soulscape)
		switch {
		case strings.Contains(ss, "turmoil"), strings.Contains(ss, "conflict"), strings.Contains(ss, "chaos"):
			turmoil++
		case strings.Contains(ss, "peace"), strings.Contains(ss, "harmony"), strings.Contains(ss, "calm"):
			peace++
		case strings.Contains(ss, "transform"), strings.Contains(ss, "growth"), strings.Contains(ss, "change"):
			change++
		}
	}
	if n == 0 {
		return SoulscapeEquilibrium
	}
	switch {
	case turmoil/n > 0.5:
		return SoulscapeTurmoil
	case peace/n > 0.5:
		return SoulscapePeace
	case change/n > 0.3:
		return SoulscapeTransformation
	default:
		return SoulscapeEquilibrium
	}
}
