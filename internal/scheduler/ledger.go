package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/talgya/beatloom/internal/story"
)

// Ledger accepts participant actions. Actions stay pending until a cycle
// incorporates them; submissions after a cycle's input deadline are still
// collected if they land before the cycle fires.
type Ledger struct {
	store Store
	clock Clock
}

// NewLedger creates a ledger over store.
func NewLedger(store Store, clock Clock) *Ledger {
	if clock == nil {
		clock = RealClock()
	}
	return &Ledger{store: store, clock: clock}
}

// Submit records a pending action, joining its actor to the roster when
// there is room.
func (l *Ledger) Submit(ctx context.Context, a story.Action) (story.Action, error) {
	if a.Priority == 0 {
		a.Priority = story.DefaultPriority
	}
	if a.Kind == "" {
		a.Kind = story.KindAction
	}
	if err := a.Validate(); err != nil {
		return a, err
	}

	g, err := l.store.GetGame(ctx, a.GameID)
	if err != nil {
		return a, err
	}
	if g.Status == story.GameArchived {
		return a, ErrGameArchived
	}

	now := l.clock.Now()
	joined, err := l.store.JoinGame(ctx, story.Player{
		GameID:   a.GameID,
		ActorID:  a.ActorID,
		Name:     a.DisplayName(),
		JoinedAt: now,
	}, g.MaxPlayers)
	if err != nil {
		return a, err
	}
	if !joined {
		return a, fmt.Errorf("game %s (max %d players): %w", g.ID, g.MaxPlayers, ErrRosterFull)
	}

	a.SubmittedAt = now
	stored, err := l.store.InsertAction(ctx, a)
	if err != nil {
		return a, err
	}
	slog.Debug("action submitted", "game", a.GameID, "actor", a.ActorID, "kind", a.Kind, "priority", a.Priority)
	return stored, nil
}

// Pending returns a game's pending actions in processing order.
func (l *Ledger) Pending(ctx context.Context, gameID string) ([]story.Action, error) {
	actions, err := l.store.PendingActions(ctx, gameID)
	if err != nil {
		return nil, err
	}
	story.SortForProcessing(actions)
	return actions, nil
}
