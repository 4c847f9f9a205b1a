package engine

import (
	"strings"
	"time"
	"unicode"

	"github.com/talgya/beatloom/internal/culture"
	"github.com/talgya/beatloom/internal/motivation"
	"github.com/talgya/beatloom/internal/story"
	"github.com/talgya/beatloom/internal/world"
)

// Narrative is one generated story beat with the state it was grounded in.
type Narrative struct {
	ID         string           `json:"id"`
	GameID     string           `json:"game_id"`
	CycleID    *int64           `json:"cycle_id,omitempty"`
	Content    string           `json:"content"`
	Method     story.Method     `json:"method"`
	Theme      string           `json:"theme"`
	Tone       string           `json:"tone,omitempty"`
	World      world.State      `json:"world"`
	Motivation motivation.State `json:"motivation"`
	Culture    culture.State    `json:"culture"`
	ActionIDs  []int64          `json:"action_ids"`
	// PlayerInfluence maps action ID to how many of its words surfaced in
	// the narrative.
	PlayerInfluence map[int64]int `json:"player_influence,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// TickRecord is the audit entry kept for each tick.
type TickRecord struct {
	GameID      string               `json:"game_id"`
	CycleID     *int64               `json:"cycle_id,omitempty"`
	NarrativeID string               `json:"narrative_id"`
	Theme       string               `json:"theme"`
	Method      story.Method         `json:"method"`
	Actions     int                  `json:"actions"`
	Influences  Influences           `json:"influences"`
	Patterns    []motivation.Pattern `json:"patterns,omitempty"`
	Degraded    []string             `json:"degraded,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

// MaxTickHistory bounds the per-game tick audit trail.
const MaxTickHistory = 100

// minKeyword is the shortest word that counts toward player influence.
const minKeyword = 4

// PlayerInfluence scores each action by the distinct words of its content
// that appear in text.
func PlayerInfluence(text string, actions []story.Action) map[int64]int {
	if len(actions) == 0 {
		return nil
	}
	present := make(map[string]bool)
	for _, w := range words(text) {
		present[w] = true
	}

	out := make(map[int64]int, len(actions))
	for _, a := range actions {
		seen := make(map[string]bool)
		for _, w := range words(a.Content) {
			if len(w) < minKeyword || seen[w] {
				continue
			}
			seen[w] = true
			if present[w] {
				out[a.ID]++
			}
		}
	}
	return out
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
