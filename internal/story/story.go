// Package story holds the records that flow between the action ledger, the
// cycle scheduler and the simulation: games, cycles and participant actions.
package story

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidAction is returned by Action.Validate.
var ErrInvalidAction = errors.New("invalid action")

// GameStatus is the lifecycle of a game.
type GameStatus string

const (
	GameActive   GameStatus = "active"
	GameArchived GameStatus = "archived"
)

// DefaultMaxPlayers caps the roster when a game is created without one.
const DefaultMaxPlayers = 8

// Game is a registered asynchronous story.
type Game struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Frequency   Frequency  `json:"frequency"`
	MaxPlayers  int        `json:"max_players"`
	Status      GameStatus `json:"status"`
	LastCycleAt *time.Time `json:"last_cycle_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Player is an actor on a game's roster.
type Player struct {
	GameID   string    `json:"game_id"`
	ActorID  string    `json:"actor_id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

// Frequency names a cycle cadence policy.
type Frequency string

const (
	Hourly Frequency = "hourly"
	Daily  Frequency = "daily"
	Weekly Frequency = "weekly"
)

// CycleStatus is the lifecycle of a narrative cycle.
type CycleStatus string

const (
	CycleScheduled  CycleStatus = "scheduled"
	CycleProcessing CycleStatus = "processing"
	CycleCompleted  CycleStatus = "completed"
)

// CanAdvanceTo reports whether moving from s to next is a legal forward step.
func (s CycleStatus) CanAdvanceTo(next CycleStatus) bool {
	switch s {
	case CycleScheduled:
		return next == CycleProcessing
	case CycleProcessing:
		return next == CycleCompleted
	default:
		return false
	}
}

// Open reports whether the cycle still occupies the game's single slot.
func (s CycleStatus) Open() bool {
	return s == CycleScheduled || s == CycleProcessing
}

// Cycle is one scheduled collapse of pending actions into a story beat.
type Cycle struct {
	ID               int64       `json:"id"`
	GameID           string      `json:"game_id"`
	Sequence         int         `json:"sequence"`
	Status           CycleStatus `json:"status"`
	ScheduledStart   time.Time   `json:"scheduled_start"`
	InputDeadline    time.Time   `json:"input_deadline"`
	ActualStart      *time.Time  `json:"actual_start,omitempty"`
	CompletedAt      *time.Time  `json:"completed_at,omitempty"`
	ActionsCollected int         `json:"actions_collected"`
	ActionsProcessed int         `json:"actions_processed"`
	NarrativeText    string      `json:"narrative_text,omitempty"`
	LastError        string      `json:"last_error,omitempty"`
}

// ActionStatus is the lifecycle of a participant action.
type ActionStatus string

const (
	ActionPending      ActionStatus = "pending"
	ActionIncorporated ActionStatus = "incorporated"
)

// Sentiment is the participant-declared tone of an action.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Well-known action kinds. Kinds are free-form; these carry simulation meaning.
const (
	KindDialogue = "dialogue"
	KindAction   = "action"
	KindReaction = "reaction"
	KindEconomic = "economic"
	KindCultural = "cultural"
	KindSocial   = "social"
)

// DefaultPriority is assigned to actions submitted without one.
const DefaultPriority = 5

// Action is an atomic participant contribution.
type Action struct {
	ID          int64        `json:"id"`
	GameID      string       `json:"game_id"`
	ActorID     string       `json:"actor_id"`
	ActorName   string       `json:"actor_name"`
	ChapterID   *int64       `json:"chapter_id,omitempty"`
	BeatID      *int64       `json:"beat_id,omitempty"`
	Kind        string       `json:"kind"`
	Content     string       `json:"content"`
	Target      string       `json:"target,omitempty"`
	Sentiment   Sentiment    `json:"sentiment,omitempty"`
	Priority    int          `json:"priority"`
	Status      ActionStatus `json:"status"`
	SubmittedAt time.Time    `json:"submitted_at"`
	ProcessedAt *time.Time   `json:"processed_at,omitempty"`
	CycleID     *int64       `json:"cycle_id,omitempty"`
}

// Validate checks the fields a participant must supply.
func (a Action) Validate() error {
	switch {
	case a.GameID == "":
		return fmt.Errorf("%w: missing game id", ErrInvalidAction)
	case a.ActorID == "":
		return fmt.Errorf("%w: missing actor id", ErrInvalidAction)
	case a.Content == "":
		return fmt.Errorf("%w: empty content", ErrInvalidAction)
	case a.Priority < 0:
		return fmt.Errorf("%w: negative priority %d", ErrInvalidAction, a.Priority)
	}
	return nil
}

// DisplayName is the actor name used in narration.
func (a Action) DisplayName() string {
	if a.ActorName != "" {
		return a.ActorName
	}
	return a.ActorID
}

// SortForProcessing orders actions by priority descending, then submission
// time ascending, then id ascending.
func SortForProcessing(actions []Action) {
	sort.SliceStable(actions, func(i, j int) bool {
		a, b := actions[i], actions[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.ID < b.ID
	})
}

// Chronological returns a copy ordered by submission time.
func Chronological(actions []Action) []Action {
	out := append([]Action(nil), actions...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// IDs returns the action ids in order.
func IDs(actions []Action) []int64 {
	ids := make([]int64, len(actions))
	for i, a := range actions {
		ids[i] = a.ID
	}
	return ids
}

// Method tags how a narrative was produced.
type Method string

const (
	MethodGenerated Method = "lore-grounded-ai"
	MethodTemplate  Method = "template"
)
