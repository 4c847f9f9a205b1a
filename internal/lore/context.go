// Package lore aggregates the established world context a tick is grounded
// in: structure, recent history, relationships, economy, geography and the
// hard rules the state models must respect.
package lore

import (
	"slices"
	"strings"
	"time"
)

// Context is the aggregated lore for one game.
type Context struct {
	GameID         string            `json:"game_id"`
	WorldStructure WorldStructure    `json:"world_structure"`
	History        []HistoricalEvent `json:"history,omitempty"`
	Relationships  []Relationship    `json:"relationships,omitempty"`
	Economy        Economy           `json:"economy"`
	Geography      Geography         `json:"geography"`
	Rules          Rules             `json:"rules"`
	FetchedAt      time.Time         `json:"fetched_at"`
	Degraded       []string          `json:"degraded,omitempty"` // sources that failed this fetch
}

// WorldStructure describes the setting.
type WorldStructure struct {
	Name        string   `yaml:"name" json:"name,omitempty"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Factions    []string `yaml:"factions" json:"factions,omitempty"`
	Era         string   `yaml:"era" json:"era,omitempty"`
}

// HistoricalEvent is one past beat of the story.
type HistoricalEvent struct {
	Sequence int       `json:"sequence"`
	Theme    string    `json:"theme,omitempty"`
	Summary  string    `json:"summary"`
	At       time.Time `json:"at"`
}

// Relationship links two named characters.
type Relationship struct {
	From     string  `yaml:"from" json:"from"`
	To       string  `yaml:"to" json:"to"`
	Kind     string  `yaml:"kind" json:"kind"`
	Strength float64 `yaml:"strength" json:"strength"`
}

// Economy is the lore-level description of trade.
type Economy struct {
	Currency   string   `yaml:"currency" json:"currency,omitempty"`
	TradeGoods []string `yaml:"trade_goods" json:"trade_goods,omitempty"`
	Notes      string   `yaml:"notes" json:"notes,omitempty"`
}

// Geography lists known places and those the current actions mention.
type Geography struct {
	Regions   []Region `yaml:"regions" json:"regions,omitempty"`
	Landmarks []string `yaml:"landmarks" json:"landmarks,omitempty"`
	Focus     []string `yaml:"-" json:"focus,omitempty"`
}

// Region is a named area of the world.
type Region struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Settlements []string `yaml:"settlements" json:"settlements,omitempty"`
}

// Rules are hard constraints. Nil pointers mean unconstrained.
type Rules struct {
	MaxMagicLevel        *float64 `yaml:"max_magic_level" json:"max_magic_level,omitempty"`
	MinPopulation        *int     `yaml:"min_population" json:"min_population,omitempty"`
	ForbiddenRegions     []string `yaml:"forbidden_regions" json:"forbidden_regions,omitempty"`
	MaxTraditionalism    *float64 `yaml:"max_traditionalism" json:"max_traditionalism,omitempty"`
	MinCohesion          *float64 `yaml:"min_cohesion" json:"min_cohesion,omitempty"`
	ForbiddenMoods       []string `yaml:"forbidden_moods" json:"forbidden_moods,omitempty"`
	ForbiddenImperatives []string `yaml:"forbidden_imperatives" json:"forbidden_imperatives,omitempty"`
	Laws                 []string `yaml:"laws" json:"laws,omitempty"`
}

// RegionForbidden reports whether name is excluded by the rules.
func (r Rules) RegionForbidden(name string) bool {
	return containsFold(r.ForbiddenRegions, name)
}

// MoodForbidden reports whether mood is excluded by the rules.
func (r Rules) MoodForbidden(mood string) bool {
	return containsFold(r.ForbiddenMoods, mood)
}

// ImperativeForbidden reports whether imperative is excluded by the rules.
func (r Rules) ImperativeForbidden(imperative string) bool {
	return containsFold(r.ForbiddenImperatives, imperative)
}

func containsFold(list []string, s string) bool {
	return slices.ContainsFunc(list, func(v string) bool { return strings.EqualFold(v, s) })
}

// Float and Int build rule pointers.
func Float(v float64) *float64 { return &v }
func Int(v int) *int           { return &v }
