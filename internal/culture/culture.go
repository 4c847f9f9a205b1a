// Package culture models the collective affect of a game as a
// valence/arousal/dominance vector plus slower-moving cultural indicators.
package culture

import (
	"math"
	"time"
)

// VAD is collective affect. Each component lies in [-1, 1].
type VAD struct {
	Valence   float64 `json:"valence"`
	Arousal   float64 `json:"arousal"`
	Dominance float64 `json:"dominance"`
}

// Mood is the discrete label for a VAD vector.
type Mood string

const (
	Triumphant  Mood = "triumphant"
	Excited     Mood = "excited"
	Content     Mood = "content"
	Peaceful    Mood = "peaceful"
	Angry       Mood = "angry"
	Anxious     Mood = "anxious"
	Melancholic Mood = "melancholic"
	Depressed   Mood = "depressed"
	Tense       Mood = "tense"
	Lethargic   Mood = "lethargic"
	NeutralMood Mood = "neutral"
)

// MoodOf labels a VAD vector by its circumplex quadrant.
func MoodOf(v VAD) Mood {
	switch {
	case v.Valence > 0.3 && v.Arousal > 0.3:
		if v.Dominance > 0 {
			return Triumphant
		}
		return Excited
	case v.Valence > 0.3 && v.Arousal < -0.3:
		if v.Dominance > 0 {
			return Content
		}
		return Peaceful
	case v.Valence < -0.3 && v.Arousal > 0.3:
		if v.Dominance > 0 {
			return Angry
		}
		return Anxious
	case v.Valence < -0.3 && v.Arousal < -0.3:
		if v.Dominance > 0 {
			return Melancholic
		}
		return Depressed
	case v.Arousal > 0.5:
		return Tense
	case v.Arousal < -0.5:
		return Lethargic
	default:
		return NeutralMood
	}
}

// Shift is a named cultural movement pushed by an influence.
type Shift string

const (
	ShiftOptimism   Shift = "optimism"
	ShiftUnrest     Shift = "unrest"
	ShiftAggression Shift = "aggression"
	ShiftHarmony    Shift = "harmony"
	ShiftUnity      Shift = "unity"
)

// Trend is a derived long-form cultural tendency.
type Trend string

const (
	Renaissance     Trend = "renaissance"
	Revolution      Trend = "revolution"
	Conservatism    Trend = "conservatism"
	Cosmopolitanism Trend = "cosmopolitanism"
	Fragmentation   Trend = "fragmentation"
	UnityTrend      Trend = "unity"
)

// Indicators are cultural traits, each in [0, 1].
type Indicators struct {
	Cohesion       float64 `json:"cohesion"`
	Traditionalism float64 `json:"traditionalism"`
	Openness       float64 `json:"openness"`
	Collectivism   float64 `json:"collectivism"`
}

// HistoryEntry is a past VAD snapshot.
type HistoryEntry struct {
	VAD  VAD       `json:"vad"`
	Mood Mood      `json:"mood"`
	At   time.Time `json:"at"`
}

// MaxHistory bounds the history log.
const MaxHistory = 100

// State is the cultural snapshot for one game.
type State struct {
	VAD           VAD            `json:"vad"`
	Mood          Mood           `json:"mood"`
	Indicators    Indicators     `json:"indicators"`
	Factions      int            `json:"factions"`
	SocialTension float64        `json:"social_tension"`
	Trends        []Trend        `json:"trends,omitempty"`
	Shifts        []Shift        `json:"shifts,omitempty"` // applied on the last tick
	History       []HistoryEntry `json:"history,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

const baseIndicator = 0.5

// Default returns the neutral culture every game starts from.
func Default() State {
	s := State{
		Indicators: Indicators{
			Cohesion:       baseIndicator,
			Traditionalism: baseIndicator,
			Openness:       baseIndicator,
			Collectivism:   baseIndicator,
		},
	}
	s.derive()
	return s
}

// HasShift reports whether shift was applied on the last tick.
func (s State) HasShift(shift Shift) bool {
	for _, v := range s.Shifts {
		if v == shift {
			return true
		}
	}
	return false
}

func (s *State) derive() {
	s.Mood = MoodOf(s.VAD)
	s.SocialTension = socialTension(s.VAD, s.Indicators.Cohesion, s.Factions)
	s.Trends = trends(s.VAD, s.Indicators)
}

func socialTension(v VAD, cohesion float64, factions int) float64 {
	emotional := math.Max(0, v.Arousal*(1-v.Valence))
	division := 1 - cohesion
	factional := math.Min(1, float64(factions)/5)
	return clamp((emotional+division+factional)/3, 0, 1)
}

func trends(v VAD, ind Indicators) []Trend {
	var out []Trend
	if v.Valence > 0.3 && ind.Openness > 0.6 {
		out = append(out, Renaissance)
	}
	if v.Arousal > 0.6 && v.Valence < -0.2 && ind.Cohesion < 0.4 {
		out = append(out, Revolution)
	}
	if ind.Traditionalism > 0.7 {
		out = append(out, Conservatism)
	}
	if ind.Openness > 0.7 && ind.Traditionalism < 0.4 {
		out = append(out, Cosmopolitanism)
	}
	if ind.Cohesion < 0.3 {
		out = append(out, Fragmentation)
	}
	if ind.Cohesion > 0.75 && ind.Collectivism > 0.6 {
		out = append(out, UnityTrend)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
