package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/talgya/beatloom/internal/engine"
)

// SaveNarrative stores an immutable narrative record.
func (db *DB) SaveNarrative(ctx context.Context, n engine.Narrative) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal narrative: %w", err)
	}
	_, err = db.conn.ExecContext(ctx, `INSERT INTO narratives
		(id, game_id, cycle_id, method, theme, content, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.GameID, nullInt(n.CycleID), string(n.Method), n.Theme, n.Content,
		string(payload), formatTime(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert narrative %s: %w", n.ID, err)
	}
	return nil
}

// GetNarrative loads one narrative by id.
func (db *DB) GetNarrative(ctx context.Context, id string) (engine.Narrative, error) {
	var payload string
	err := db.conn.GetContext(ctx, &payload, `SELECT payload FROM narratives WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Narrative{}, fmt.Errorf("narrative %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return engine.Narrative{}, fmt.Errorf("get narrative %s: %w", id, err)
	}
	var n engine.Narrative
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return n, fmt.Errorf("unmarshal narrative %s: %w", id, err)
	}
	return n, nil
}

// ListNarratives returns a game's most recent narratives, newest first.
func (db *DB) ListNarratives(ctx context.Context, gameID string, limit int) ([]engine.Narrative, error) {
	var payloads []string
	if err := db.conn.SelectContext(ctx, &payloads, `SELECT payload FROM narratives
		WHERE game_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, gameID, limit); err != nil {
		return nil, fmt.Errorf("list narratives %s: %w", gameID, err)
	}
	out := make([]engine.Narrative, 0, len(payloads))
	for _, p := range payloads {
		var n engine.Narrative
		if err := json.Unmarshal([]byte(p), &n); err != nil {
			return nil, fmt.Errorf("unmarshal narrative: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}

// AppendTickRecord adds a tick audit entry and trims the game's trail to
// the newest keep entries.
func (db *DB) AppendTickRecord(ctx context.Context, rec engine.TickRecord, keep int) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal tick record: %w", err)
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append tick record: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO tick_history (game_id, payload, created_at) VALUES (?, ?, ?)`,
		rec.GameID, string(payload), formatTime(rec.CreatedAt)); err != nil {
		return fmt.Errorf("insert tick record: %w", err)
	}
	if keep > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tick_history WHERE game_id = ? AND id NOT IN
			(SELECT id FROM tick_history WHERE game_id = ? ORDER BY id DESC LIMIT ?)`,
			rec.GameID, rec.GameID, keep); err != nil {
			return fmt.Errorf("trim tick history: %w", err)
		}
	}
	return tx.Commit()
}

// TickHistory returns a game's most recent tick records, newest first.
func (db *DB) TickHistory(ctx context.Context, gameID string, limit int) ([]engine.TickRecord, error) {
	var payloads []string
	if err := db.conn.SelectContext(ctx, &payloads,
		`SELECT payload FROM tick_history WHERE game_id = ? ORDER BY id DESC LIMIT ?`, gameID, limit); err != nil {
		return nil, fmt.Errorf("tick history %s: %w", gameID, err)
	}
	out := make([]engine.TickRecord, 0, len(payloads))
	for _, p := range payloads {
		var rec engine.TickRecord
		if err := json.Unmarshal([]byte(p), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal tick record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
