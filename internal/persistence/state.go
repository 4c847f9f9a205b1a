package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/talgya/beatloom/internal/lore"
	"github.com/talgya/beatloom/internal/story"
)

// LoadSlice returns the stored payload of one state slice. The bool is
// false when the game has no such slice yet.
func (db *DB) LoadSlice(ctx context.Context, gameID, slice string) ([]byte, bool, error) {
	var payload string
	err := db.conn.GetContext(ctx, &payload,
		`SELECT payload FROM game_state WHERE game_id = ? AND slice = ?`, gameID, slice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s/%s: %w", gameID, slice, err)
	}
	return []byte(payload), true, nil
}

// SaveSlice replaces one state slice.
func (db *DB) SaveSlice(ctx context.Context, gameID, slice string, payload []byte, at time.Time) error {
	_, err := db.conn.ExecContext(ctx, `INSERT INTO game_state (game_id, slice, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (game_id, slice) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		gameID, slice, string(payload), formatTime(at))
	if err != nil {
		return fmt.Errorf("save %s/%s: %w", gameID, slice, err)
	}
	return nil
}

// summaryLength bounds each history entry handed to the narrator.
const summaryLength = 280

type historyRow struct {
	Sequence    int            `db:"sequence"`
	Theme       sql.NullString `db:"theme"`
	Text        string         `db:"narrative_text"`
	CompletedAt sql.NullString `db:"completed_at"`
}

// History returns the most recent completed beats of a game, oldest first.
func (db *DB) History(ctx context.Context, gameID string, limit int) ([]lore.HistoricalEvent, error) {
	var rows []historyRow
	if err := db.conn.SelectContext(ctx, &rows, `SELECT c.sequence, n.theme, c.narrative_text, c.completed_at
		FROM narrative_cycles c LEFT JOIN narratives n ON n.cycle_id = c.id
		WHERE c.game_id = ? AND c.status = ?
		ORDER BY c.sequence DESC LIMIT ?`,
		gameID, string(story.CycleCompleted), limit); err != nil {
		return nil, fmt.Errorf("history %s: %w", gameID, err)
	}

	out := make([]lore.HistoricalEvent, 0, len(rows))
	for _, r := range rows {
		at, err := parseTimePtr(r.CompletedAt)
		if err != nil {
			return nil, err
		}
		ev := lore.HistoricalEvent{
			Sequence: r.Sequence,
			Theme:    r.Theme.String,
			Summary:  summarize(r.Text),
		}
		if at != nil {
			ev.At = *at
		}
		out = append(out, ev)
	}
	slices.Reverse(out)
	return out, nil
}

func summarize(text string) string {
	r := []rune(text)
	if len(r) <= summaryLength {
		return text
	}
	return string(r[:summaryLength]) + "..."
}
