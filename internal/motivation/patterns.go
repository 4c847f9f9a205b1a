package motivation

import (
	"math"
	"sort"
)

// PatternKind names an emergent signal over the catalog.
type PatternKind string

const (
	FactionFormation PatternKind = "faction_formation"
	EmergingConflict PatternKind = "emerging_conflict"
	ConvergenceKind  PatternKind = "convergence"
)

// Pattern is one emergent signal.
type Pattern struct {
	Kind       PatternKind `json:"kind"`
	Imperative *Imperative `json:"imperative,omitempty"`
	Members    []string    `json:"members,omitempty"`
	Strength   float64     `json:"strength"`
}

// Interaction is the scored relationship between two entities.
type Interaction struct {
	A, B     string
	Affinity Affinity
	Strength float64
}

const (
	strongRelation   = 0.7
	conflictRatio    = 0.2
	convergenceRatio = 0.3
)

// Interactions scores every pair of characters and character/location.
func Interactions(entities []Entity) []Interaction {
	var out []Interaction
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			a, b := entities[i], entities[j]
			if !pairable(a.Kind, b.Kind) {
				continue
			}
			aff := a.Function.Interactions.Of(b.Function.Imperative)
			strength := math.Abs(aff.Weight())
			if a.Function.Imperative == b.Function.Imperative {
				aff, strength = Attracted, sameImperativeAffinity
			}
			out = append(out, Interaction{A: a.ID, B: b.ID, Affinity: aff, Strength: strength})
		}
	}
	return out
}

func pairable(a, b EntityKind) bool {
	switch {
	case a == Character && b == Character:
		return true
	case a == Character && b == Location, a == Location && b == Character:
		return true
	}
	return false
}

// DetectPatterns derives faction, conflict and convergence signals.
func DetectPatterns(entities []Entity) []Pattern {
	var patterns []Pattern

	chars := 0
	groups := make(map[Imperative][]string)
	for _, e := range entities {
		if e.Kind != Character {
			continue
		}
		chars++
		groups[e.Function.Imperative] = append(groups[e.Function.Imperative], e.Name)
	}
	for _, imp := range Imperatives() {
		members := groups[imp]
		if len(members) < 2 {
			continue
		}
		sort.Strings(members)
		patterns = append(patterns, Pattern{
			Kind:       FactionFormation,
			Imperative: &imp,
			Members:    members,
			Strength:   float64(len(members)) / float64(chars),
		})
	}

	inter := Interactions(entities)
	if len(inter) == 0 {
		return patterns
	}
	var conflicts, attractions int
	for _, in := range inter {
		if in.Strength <= strongRelation {
			continue
		}
		switch in.Affinity {
		case Aversion:
			conflicts++
		case Attracted:
			attractions++
		}
	}
	n := float64(len(inter))
	if r := float64(conflicts) / n; conflicts > 0 && r >= conflictRatio {
		patterns = append(patterns, Pattern{Kind: EmergingConflict, Strength: r})
	}
	if r := float64(attractions) / n; r > convergenceRatio {
		patterns = append(patterns, Pattern{Kind: ConvergenceKind, Strength: r})
	}
	return patterns
}

// HasPattern reports whether kind is among patterns.
func HasPattern(patterns []Pattern, kind PatternKind) bool {
	for _, p := range patterns {
		if p.Kind == kind {
			return true
		}
	}
	return false
}
