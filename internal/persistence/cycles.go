package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/talgya/beatloom/internal/story"
)

type cycleRow struct {
	ID               int64          `db:"id"`
	GameID           string         `db:"game_id"`
	Sequence         int            `db:"sequence"`
	Status           string         `db:"status"`
	ScheduledStart   string         `db:"scheduled_start"`
	InputDeadline    string         `db:"input_deadline"`
	ActualStart      sql.NullString `db:"actual_start"`
	CompletedAt      sql.NullString `db:"completed_at"`
	ActionsCollected int            `db:"actions_collected"`
	ActionsProcessed int            `db:"actions_processed"`
	NarrativeText    string         `db:"narrative_text"`
	LastError        string         `db:"last_error"`
}

func (r cycleRow) cycle() (story.Cycle, error) {
	c := story.Cycle{
		ID:               r.ID,
		GameID:           r.GameID,
		Sequence:         r.Sequence,
		Status:           story.CycleStatus(r.Status),
		ActionsCollected: r.ActionsCollected,
		ActionsProcessed: r.ActionsProcessed,
		NarrativeText:    r.NarrativeText,
		LastError:        r.LastError,
	}
	var err error
	if c.ScheduledStart, err = parseTime(r.ScheduledStart); err != nil {
		return c, err
	}
	if c.InputDeadline, err = parseTime(r.InputDeadline); err != nil {
		return c, err
	}
	if c.ActualStart, err = parseTimePtr(r.ActualStart); err != nil {
		return c, err
	}
	if c.CompletedAt, err = parseTimePtr(r.CompletedAt); err != nil {
		return c, err
	}
	return c, nil
}

func cycles(rows []cycleRow) ([]story.Cycle, error) {
	out := make([]story.Cycle, 0, len(rows))
	for _, r := range rows {
		c, err := r.cycle()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

const cycleColumns = `id, game_id, sequence, status, scheduled_start, input_deadline, actual_start,
	completed_at, actions_collected, actions_processed, narrative_text, last_error`

// InsertCycle stores c as scheduled with the next gapless sequence number
// for its game and returns the stored cycle.
func (db *DB) InsertCycle(ctx context.Context, c story.Cycle) (story.Cycle, error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return c, fmt.Errorf("insert cycle: %w", err)
	}
	defer tx.Rollback()

	var last int
	if err := tx.GetContext(ctx, &last,
		`SELECT COALESCE(MAX(sequence), 0) FROM narrative_cycles WHERE game_id = ?`, c.GameID); err != nil {
		return c, fmt.Errorf("insert cycle: next sequence: %w", err)
	}
	c.Sequence = last + 1
	c.Status = story.CycleScheduled

	res, err := tx.ExecContext(ctx, `INSERT INTO narrative_cycles
		(game_id, sequence, status, scheduled_start, input_deadline)
		VALUES (?, ?, ?, ?, ?)`,
		c.GameID, c.Sequence, string(c.Status), formatTime(c.ScheduledStart), formatTime(c.InputDeadline),
	)
	if err != nil {
		return c, fmt.Errorf("insert cycle %s#%d: %w", c.GameID, c.Sequence, err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return c, fmt.Errorf("insert cycle: %w", err)
	}
	return c, tx.Commit()
}

// GetCycle loads one cycle by id.
func (db *DB) GetCycle(ctx context.Context, id int64) (story.Cycle, error) {
	var row cycleRow
	err := db.conn.GetContext(ctx, &row, `SELECT `+cycleColumns+` FROM narrative_cycles WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return story.Cycle{}, fmt.Errorf("cycle %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return story.Cycle{}, fmt.Errorf("get cycle %d: %w", id, err)
	}
	return row.cycle()
}

// OpenCycle returns the game's scheduled or processing cycle, if any.
func (db *DB) OpenCycle(ctx context.Context, gameID string) (story.Cycle, bool, error) {
	var row cycleRow
	err := db.conn.GetContext(ctx, &row, `SELECT `+cycleColumns+` FROM narrative_cycles
		WHERE game_id = ? AND status IN (?, ?) ORDER BY sequence DESC LIMIT 1`,
		gameID, string(story.CycleScheduled), string(story.CycleProcessing))
	if errors.Is(err, sql.ErrNoRows) {
		return story.Cycle{}, false, nil
	}
	if err != nil {
		return story.Cycle{}, false, fmt.Errorf("open cycle %s: %w", gameID, err)
	}
	c, err := row.cycle()
	return c, err == nil, err
}

// LastCompleted returns the game's most recent completed cycle, if any.
func (db *DB) LastCompleted(ctx context.Context, gameID string) (story.Cycle, bool, error) {
	var row cycleRow
	err := db.conn.GetContext(ctx, &row, `SELECT `+cycleColumns+` FROM narrative_cycles
		WHERE game_id = ? AND status = ? ORDER BY sequence DESC LIMIT 1`,
		gameID, string(story.CycleCompleted))
	if errors.Is(err, sql.ErrNoRows) {
		return story.Cycle{}, false, nil
	}
	if err != nil {
		return story.Cycle{}, false, fmt.Errorf("last completed %s: %w", gameID, err)
	}
	c, err := row.cycle()
	return c, err == nil, err
}

// ListCycles returns the most recent cycles of a game, newest first.
func (db *DB) ListCycles(ctx context.Context, gameID string, limit int) ([]story.Cycle, error) {
	var rows []cycleRow
	if err := db.conn.SelectContext(ctx, &rows, `SELECT `+cycleColumns+` FROM narrative_cycles
		WHERE game_id = ? ORDER BY sequence DESC LIMIT ?`, gameID, limit); err != nil {
		return nil, fmt.Errorf("list cycles %s: %w", gameID, err)
	}
	return cycles(rows)
}

// ScheduledCycles returns every scheduled cycle of an active game, soonest
// first.
func (db *DB) ScheduledCycles(ctx context.Context) ([]story.Cycle, error) {
	var rows []cycleRow
	if err := db.conn.SelectContext(ctx, &rows, `SELECT c.id, c.game_id, c.sequence, c.status,
		c.scheduled_start, c.input_deadline, c.actual_start, c.completed_at,
		c.actions_collected, c.actions_processed, c.narrative_text, c.last_error
		FROM narrative_cycles c JOIN games g ON g.id = c.game_id
		WHERE c.status = ? AND g.status = ? ORDER BY c.scheduled_start, c.id`,
		string(story.CycleScheduled), string(story.GameActive)); err != nil {
		return nil, fmt.Errorf("scheduled cycles: %w", err)
	}
	return cycles(rows)
}

// StartCycle moves a scheduled cycle to processing. It reports false when
// the cycle was not scheduled.
func (db *DB) StartCycle(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `UPDATE narrative_cycles
		SET status = ?, actual_start = ?, last_error = ''
		WHERE id = ? AND status = ?`,
		string(story.CycleProcessing), formatTime(at), id, string(story.CycleScheduled))
	if err != nil {
		return false, fmt.Errorf("start cycle %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// SetCycleCollected records how many actions a processing cycle picked up.
func (db *DB) SetCycleCollected(ctx context.Context, id int64, n int) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE narrative_cycles SET actions_collected = ? WHERE id = ?`, n, id)
	if err != nil {
		return fmt.Errorf("set collected %d: %w", id, err)
	}
	return nil
}

// FailCycle records the error that left a cycle in processing.
func (db *DB) FailCycle(ctx context.Context, id int64, msg string) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE narrative_cycles SET last_error = ? WHERE id = ?`, msg, id)
	if err != nil {
		return fmt.Errorf("fail cycle %d: %w", id, err)
	}
	return nil
}

// CompleteCycle marks a processing cycle completed, incorporates its actions
// and advances the game's last-cycle marker in one transaction. It reports
// false when the cycle was not processing.
func (db *DB) CompleteCycle(ctx context.Context, c story.Cycle, actionIDs []int64, at time.Time) (bool, error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("complete cycle: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE narrative_cycles
		SET status = ?, completed_at = ?, actions_collected = ?, actions_processed = ?,
			narrative_text = ?, last_error = ''
		WHERE id = ? AND status = ?`,
		string(story.CycleCompleted), formatTime(at), c.ActionsCollected, c.ActionsProcessed,
		c.NarrativeText, c.ID, string(story.CycleProcessing))
	if err != nil {
		return false, fmt.Errorf("complete cycle %d: %w", c.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return false, err
	}

	if len(actionIDs) > 0 {
		q, args, err := sqlx.In(`UPDATE player_actions SET status = ?, processed_at = ?, cycle_id = ?
			WHERE status = ? AND id IN (?)`,
			string(story.ActionIncorporated), formatTime(at), c.ID, string(story.ActionPending), actionIDs)
		if err != nil {
			return false, fmt.Errorf("complete cycle %d: %w", c.ID, err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(q), args...); err != nil {
			return false, fmt.Errorf("incorporate actions: %w", err)
		}
	}

	if err := touchGame(ctx, tx, c.GameID, at); err != nil {
		return false, fmt.Errorf("touch game %s: %w", c.GameID, err)
	}
	return true, tx.Commit()
}
