package engine

import (
	"github.com/talgya/beatloom/internal/culture"
	"github.com/talgya/beatloom/internal/motivation"
	"github.com/talgya/beatloom/internal/world"
)

// Narrative themes.
const (
	ThemeConflict    = "conflict"
	ThemeSurvival    = "survival"
	ThemeDiscovery   = "discovery"
	ThemeDevelopment = "development"
)

// Theme picks the dominant theme from the post-tick states.
func Theme(w world.State, m motivation.State, c culture.State) string {
	switch {
	case len(w.Conflicts) > 0 && c.VAD.Arousal > 0.6:
		return ThemeConflict
	case w.EconomicHealth < 0.3:
		return ThemeSurvival
	case m.Dominant.Imperative == motivation.Discover:
		return ThemeDiscovery
	default:
		return ThemeDevelopment
	}
}
