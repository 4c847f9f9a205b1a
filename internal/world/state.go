// Package world models the physical and economic slice of a game's
// simulation: seasons, weather, resources, trade, stability and conflicts.
package world

import (
	"sort"
	"time"
)

// Season of the world calendar.
type Season uint8

const (
	SeasonSpring Season = iota
	SeasonSummer
	SeasonAutumn
	SeasonWinter
)

// SeasonLength is the world age spanned by one season.
const SeasonLength = 7.0

// String returns a human-readable season name.
func (s Season) String() string {
	switch s {
	case SeasonSpring:
		return "Spring"
	case SeasonSummer:
		return "Summer"
	case SeasonAutumn:
		return "Autumn"
	case SeasonWinter:
		return "Winter"
	default:
		return "Unknown"
	}
}

// SeasonAt returns the season for a world age.
func SeasonAt(worldAge float64) Season {
	if worldAge < 0 {
		worldAge = 0
	}
	return Season(int(worldAge/SeasonLength) % 4)
}

// Resource is a tracked resource type.
type Resource string

const (
	Food     Resource = "food"
	Water    Resource = "water"
	Minerals Resource = "minerals"
	Wood     Resource = "wood"
	Magic    Resource = "magic"
)

// Resources lists every tracked resource in a stable order.
var Resources = []Resource{Food, Water, Minerals, Wood, Magic}

// ParseResource matches a free-form target against the tracked resources.
func ParseResource(s string) (Resource, bool) {
	for _, r := range Resources {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Flow is the prevailing direction of resource movement.
type Flow string

const (
	FlowBalanced Flow = "balanced"
	FlowOutward  Flow = "outward"
	FlowInward   Flow = "inward"
)

// Conflict is an active struggle in the world.
type Conflict struct {
	Kind      string  `json:"kind"`
	Severity  float64 `json:"severity"`
	Region    string  `json:"region,omitempty"`
	StartedAt float64 `json:"started_at"` // world age
}

// Region is a named area and its settlements.
type Region struct {
	Name        string       `json:"name"`
	Settlements []Settlement `json:"settlements,omitempty"`
}

// Settlement is a populated place.
type Settlement struct {
	Name       string `json:"name"`
	Population int    `json:"population"`
}

// State is the world snapshot for one game.
type State struct {
	Season             Season               `json:"season"`
	Weather            string               `json:"weather"`
	WeatherSeverity    float64              `json:"weather_severity"`
	EconomicHealth     float64              `json:"economic_health"`
	PoliticalStability float64              `json:"political_stability"`
	TradeVolume        float64              `json:"trade_volume"`
	ResourceDemand     float64              `json:"resource_demand"`
	FlowDirection      Flow                 `json:"flow_direction"`
	Resources          map[Resource]float64 `json:"resources"`
	MarketPrices       map[string]float64   `json:"market_prices"`
	Conflicts          []Conflict           `json:"conflicts,omitempty"`
	Regions            []Region             `json:"regions,omitempty"`
	TechLevel          int                  `json:"tech_level"`
	MagicLevel         float64              `json:"magic_level"`
	Population         int                  `json:"population"`
	WorldAge           float64              `json:"world_age"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// Baselines that decaying fields drift back to.
const (
	BaseEconomicHealth     = 0.6
	BasePoliticalStability = 0.5
	BaseTradeVolume        = 1.0
	BaseResourceDemand     = 1.0
)

var baseResources = map[Resource]float64{
	Food:     0.7,
	Water:    0.8,
	Minerals: 0.5,
	Wood:     0.6,
	Magic:    0.3,
}

// BaseResource returns the resting level of r.
func BaseResource(r Resource) float64 {
	return baseResources[r]
}

var basePrices = map[string]float64{
	"grain":       1,
	"meat":        2.5,
	"wood":        0.8,
	"iron":        3,
	"gold":        100,
	"gems":        50,
	"cloth":       1.5,
	"weapons":     10,
	"magic_items": 500,
}

// Default returns the baseline world for a game never simulated before.
func Default() State {
	res := make(map[Resource]float64, len(baseResources))
	for r, v := range baseResources {
		res[r] = v
	}
	s := State{
		Season:             SeasonSpring,
		Weather:            "mild spring weather",
		EconomicHealth:     BaseEconomicHealth,
		PoliticalStability: BasePoliticalStability,
		TradeVolume:        BaseTradeVolume,
		ResourceDemand:     BaseResourceDemand,
		FlowDirection:      FlowBalanced,
		Resources:          res,
		Regions: []Region{
			{Name: "The Heartlands", Settlements: []Settlement{{Name: "Millbrook", Population: 4200}, {Name: "Ashford", Population: 2600}}},
			{Name: "The Northern Reach", Settlements: []Settlement{{Name: "Frosthold", Population: 1900}}},
			{Name: "The Sunken Coast", Settlements: []Settlement{{Name: "Saltmere", Population: 1300}}},
		},
		TechLevel:  3,
		MagicLevel: 2,
		Population: 10000,
	}
	s.MarketPrices = prices(s)
	return s
}

// ResourceAvailability is the mean level across tracked resources.
func (s State) ResourceAvailability() float64 {
	if len(s.Resources) == 0 {
		return 0
	}
	total := 0.0
	for _, r := range Resources {
		total += s.Resources[r]
	}
	return total / float64(len(Resources))
}

// ConflictKinds returns the distinct active conflict kinds, sorted.
func (s State) ConflictKinds() []string {
	seen := make(map[string]bool)
	var kinds []string
	for _, c := range s.Conflicts {
		if !seen[c.Kind] {
			seen[c.Kind] = true
			kinds = append(kinds, c.Kind)
		}
	}
	sort.Strings(kinds)
	return kinds
}

// prices scales base prices by scarcity of the backing resource and season.
func prices(s State) map[string]float64 {
	backing := map[string]Resource{
		"grain": Food, "meat": Food, "wood": Wood, "iron": Minerals,
		"gold": Minerals, "gems": Minerals, "magic_items": Magic,
	}
	out := make(map[string]float64, len(basePrices))
	for good, base := range basePrices {
		mod := 1.0
		if r, ok := backing[good]; ok {
			// Scarcity against the resting level raises the price.
			mod += (BaseResource(r) - s.Resources[r]) * 0.8
		}
		if s.Season == SeasonWinter && (good == "grain" || good == "meat") {
			mod *= 1.3
		}
		if s.Season == SeasonAutumn && good == "grain" {
			mod *= 0.8
		}
		if mod < 0.2 {
			mod = 0.2
		}
		out[good] = roundCents(base * mod)
	}
	return out
}

func roundCents(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
