// Package persistence provides SQLite-backed storage for games, cycles,
// actions, narratives and the per-game state slices.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// SchemaVersion is the latest schema version the migrator applies.
const SchemaVersion = 2

// timeLayout is fixed width so TEXT columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path and migrates it.
func Open(path string) (*DB, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer; every tick for a game is already serialized by the scheduler.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

var migrations = []string{
	1: `
	CREATE TABLE IF NOT EXISTS games (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		frequency TEXT NOT NULL,
		max_players INTEGER NOT NULL,
		status TEXT NOT NULL,
		last_cycle_at TEXT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS game_players (
		game_id TEXT NOT NULL REFERENCES games(id),
		actor_id TEXT NOT NULL,
		name TEXT NOT NULL,
		joined_at TEXT NOT NULL,
		PRIMARY KEY (game_id, actor_id)
	);

	CREATE TABLE IF NOT EXISTS game_state (
		game_id TEXT NOT NULL,
		slice TEXT NOT NULL,
		payload TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (game_id, slice)
	);

	CREATE TABLE IF NOT EXISTS narrative_cycles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		game_id TEXT NOT NULL REFERENCES games(id),
		sequence INTEGER NOT NULL,
		status TEXT NOT NULL,
		scheduled_start TEXT NOT NULL,
		input_deadline TEXT NOT NULL,
		actual_start TEXT NULL,
		completed_at TEXT NULL,
		actions_collected INTEGER NOT NULL DEFAULT 0,
		actions_processed INTEGER NOT NULL DEFAULT 0,
		narrative_text TEXT NOT NULL DEFAULT '',
		last_error TEXT NOT NULL DEFAULT '',
		UNIQUE (game_id, sequence)
	);

	-- At most one open cycle per game.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_cycles_open
		ON narrative_cycles(game_id) WHERE status IN ('scheduled', 'processing');

	CREATE TABLE IF NOT EXISTS player_actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		game_id TEXT NOT NULL REFERENCES games(id),
		actor_id TEXT NOT NULL,
		actor_name TEXT NOT NULL DEFAULT '',
		chapter_id INTEGER NULL,
		beat_id INTEGER NULL,
		kind TEXT NOT NULL,
		content TEXT NOT NULL,
		target TEXT NOT NULL DEFAULT '',
		sentiment TEXT NOT NULL DEFAULT '',
		priority INTEGER NOT NULL,
		status TEXT NOT NULL,
		submitted_at TEXT NOT NULL,
		processed_at TEXT NULL,
		cycle_id INTEGER NULL REFERENCES narrative_cycles(id)
	);

	CREATE INDEX IF NOT EXISTS idx_actions_pending ON player_actions(game_id, status);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`,
	2: `
	CREATE TABLE IF NOT EXISTS narratives (
		id TEXT PRIMARY KEY,
		game_id TEXT NOT NULL,
		cycle_id INTEGER NULL,
		method TEXT NOT NULL,
		theme TEXT NOT NULL,
		content TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_narratives_game ON narratives(game_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_narratives_cycle ON narratives(cycle_id);

	CREATE TABLE IF NOT EXISTS tick_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		game_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tick_history_game ON tick_history(game_id, id);
	`,
}

// migrate brings the schema up to SchemaVersion, one transaction per version.
func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := db.conn.GetContext(ctx, &current, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`); err != nil {
		return fmt.Errorf("read current version: %w", err)
	}

	for v := current + 1; v <= SchemaVersion; v++ {
		tx, err := db.conn.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin v%d: %w", v, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply v%d: %w", v, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, v); err != nil {
			tx.Rollback()
			return fmt.Errorf("record v%d: %w", v, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit v%d: %w", v, err)
		}
		slog.Info("schema migrated", "version", v)
	}
	return nil
}

// SaveMeta stores a key-value pair in the service metadata.
func (db *DB) SaveMeta(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := db.conn.GetContext(ctx, &value, "SELECT value FROM world_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
