// Package weather derives seasonal weather for a game's world. Conditions
// drift smoothly with world age using simplex noise seeded per game, so the
// same game replays the same skies.
package weather

import (
	"hash/fnv"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Season indices, matching world.Season.
const (
	Spring uint8 = iota
	Summer
	Autumn
	Winter
)

// Conditions is the weather for one tick.
type Conditions struct {
	Description string  `json:"description"`
	Severity    float64 `json:"severity"` // 0 calm .. 1 extreme
}

var patterns = [4][]string{
	Spring: {"mild spring rain", "clear skies", "morning fog", "fresh breezes"},
	Summer: {"scorching heat", "warm sunshine", "summer storms", "humid air"},
	Autumn: {"crisp winds", "falling leaves", "early frost", "harvest moon"},
	Winter: {"heavy snow", "bitter cold", "ice storms", "clear frozen skies"},
}

// severity per pattern, same order as patterns.
var severity = [4][]float64{
	Spring: {0.2, 0.0, 0.1, 0.1},
	Summer: {0.6, 0.1, 0.7, 0.3},
	Autumn: {0.3, 0.1, 0.4, 0.1},
	Winter: {0.7, 0.6, 0.9, 0.3},
}

// SeedFor derives a stable noise seed from a game id.
func SeedFor(gameID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(gameID))
	return int64(h.Sum64() >> 1)
}

// Forecast picks the weather for season at worldAge.
func Forecast(season uint8, worldAge float64, seed int64) Conditions {
	if int(season) >= len(patterns) {
		return Conditions{Description: "fair weather"}
	}
	noise := opensimplex.NewNormalized(seed)
	n := noise.Eval2(worldAge*0.35, float64(season)*10)

	opts := patterns[season]
	idx := int(math.Floor(n * float64(len(opts))))
	if idx >= len(opts) {
		idx = len(opts) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return Conditions{Description: opts[idx], Severity: severity[season][idx]}
}

// SeasonDefault is the calm weather description for a season.
func SeasonDefault(season uint8) string {
	switch season {
	case Spring:
		return "mild spring weather"
	case Summer:
		return "warm summer sun"
	case Autumn:
		return "cool autumn breeze"
	case Winter:
		return "cold winter chill"
	default:
		return "fair weather"
	}
}
