package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/talgya/beatloom/internal/story"
)

type actionRow struct {
	ID          int64          `db:"id"`
	GameID      string         `db:"game_id"`
	ActorID     string         `db:"actor_id"`
	ActorName   string         `db:"actor_name"`
	ChapterID   sql.NullInt64  `db:"chapter_id"`
	BeatID      sql.NullInt64  `db:"beat_id"`
	Kind        string         `db:"kind"`
	Content     string         `db:"content"`
	Target      string         `db:"target"`
	Sentiment   string         `db:"sentiment"`
	Priority    int            `db:"priority"`
	Status      string         `db:"status"`
	SubmittedAt string         `db:"submitted_at"`
	ProcessedAt sql.NullString `db:"processed_at"`
	CycleID     sql.NullInt64  `db:"cycle_id"`
}

func (r actionRow) action() (story.Action, error) {
	a := story.Action{
		ID:        r.ID,
		GameID:    r.GameID,
		ActorID:   r.ActorID,
		ActorName: r.ActorName,
		ChapterID: intPtr(r.ChapterID),
		BeatID:    intPtr(r.BeatID),
		Kind:      r.Kind,
		Content:   r.Content,
		Target:    r.Target,
		Sentiment: story.Sentiment(r.Sentiment),
		Priority:  r.Priority,
		Status:    story.ActionStatus(r.Status),
		CycleID:   intPtr(r.CycleID),
	}
	var err error
	if a.SubmittedAt, err = parseTime(r.SubmittedAt); err != nil {
		return a, err
	}
	if a.ProcessedAt, err = parseTimePtr(r.ProcessedAt); err != nil {
		return a, err
	}
	return a, nil
}

const actionColumns = `id, game_id, actor_id, actor_name, chapter_id, beat_id, kind, content, target,
	sentiment, priority, status, submitted_at, processed_at, cycle_id`

// InsertAction stores a pending action and returns it with its id.
func (db *DB) InsertAction(ctx context.Context, a story.Action) (story.Action, error) {
	a.Status = story.ActionPending
	res, err := db.conn.ExecContext(ctx, `INSERT INTO player_actions
		(game_id, actor_id, actor_name, chapter_id, beat_id, kind, content, target,
		 sentiment, priority, status, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.GameID, a.ActorID, a.ActorName, nullInt(a.ChapterID), nullInt(a.BeatID), a.Kind, a.Content,
		a.Target, string(a.Sentiment), a.Priority, string(a.Status), formatTime(a.SubmittedAt),
	)
	if err != nil {
		return a, fmt.Errorf("insert action: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return a, fmt.Errorf("insert action: %w", err)
	}
	return a, nil
}

// PendingActions returns a game's pending actions in processing order:
// priority descending, then submission time, then id.
func (db *DB) PendingActions(ctx context.Context, gameID string) ([]story.Action, error) {
	var rows []actionRow
	if err := db.conn.SelectContext(ctx, &rows, `SELECT `+actionColumns+` FROM player_actions
		WHERE game_id = ? AND status = ?
		ORDER BY priority DESC, submitted_at ASC, id ASC`,
		gameID, string(story.ActionPending)); err != nil {
		return nil, fmt.Errorf("pending actions %s: %w", gameID, err)
	}
	out := make([]story.Action, 0, len(rows))
	for _, r := range rows {
		a, err := r.action()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// CycleActions returns the actions a cycle incorporated, in processing order.
func (db *DB) CycleActions(ctx context.Context, cycleID int64) ([]story.Action, error) {
	var rows []actionRow
	if err := db.conn.SelectContext(ctx, &rows, `SELECT `+actionColumns+` FROM player_actions
		WHERE cycle_id = ? ORDER BY priority DESC, submitted_at ASC, id ASC`, cycleID); err != nil {
		return nil, fmt.Errorf("cycle actions %d: %w", cycleID, err)
	}
	out := make([]story.Action, 0, len(rows))
	for _, r := range rows {
		a, err := r.action()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

type actorCount struct {
	ActorID string `db:"actor_id"`
	Count   int    `db:"n"`
}

// ActorCounts returns how many actions each actor has submitted to a game.
func (db *DB) ActorCounts(ctx context.Context, gameID string) (map[string]int, error) {
	var rows []actorCount
	if err := db.conn.SelectContext(ctx, &rows,
		`SELECT actor_id, COUNT(*) AS n FROM player_actions WHERE game_id = ? GROUP BY actor_id`, gameID); err != nil {
		return nil, fmt.Errorf("actor counts %s: %w", gameID, err)
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.ActorID] = r.Count
	}
	return out, nil
}
