package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/talgya/beatloom/internal/story"
)

type gameRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Frequency   string         `db:"frequency"`
	MaxPlayers  int            `db:"max_players"`
	Status      string         `db:"status"`
	LastCycleAt sql.NullString `db:"last_cycle_at"`
	CreatedAt   string         `db:"created_at"`
}

func (r gameRow) game() (story.Game, error) {
	g := story.Game{
		ID:         r.ID,
		Name:       r.Name,
		Frequency:  story.Frequency(r.Frequency),
		MaxPlayers: r.MaxPlayers,
		Status:     story.GameStatus(r.Status),
	}
	var err error
	if g.LastCycleAt, err = parseTimePtr(r.LastCycleAt); err != nil {
		return g, err
	}
	if g.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return g, err
	}
	return g, nil
}

const gameColumns = `id, name, frequency, max_players, status, last_cycle_at, created_at`

// CreateGame inserts a new game.
func (db *DB) CreateGame(ctx context.Context, g story.Game) error {
	_, err := db.conn.ExecContext(ctx, `INSERT INTO games (`+gameColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, string(g.Frequency), g.MaxPlayers, string(g.Status),
		formatTimePtr(g.LastCycleAt), formatTime(g.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create game %s: %w", g.ID, err)
	}
	return nil
}

// GetGame loads one game.
func (db *DB) GetGame(ctx context.Context, id string) (story.Game, error) {
	var row gameRow
	err := db.conn.GetContext(ctx, &row, `SELECT `+gameColumns+` FROM games WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return story.Game{}, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return story.Game{}, fmt.Errorf("get game %s: %w", id, err)
	}
	return row.game()
}

// ListGames returns games with the given status, or all games when status
// is empty, oldest first.
func (db *DB) ListGames(ctx context.Context, status story.GameStatus) ([]story.Game, error) {
	var rows []gameRow
	var err error
	if status == "" {
		err = db.conn.SelectContext(ctx, &rows, `SELECT `+gameColumns+` FROM games ORDER BY created_at, id`)
	} else {
		err = db.conn.SelectContext(ctx, &rows, `SELECT `+gameColumns+` FROM games WHERE status = ? ORDER BY created_at, id`, string(status))
	}
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	games := make([]story.Game, 0, len(rows))
	for _, r := range rows {
		g, err := r.game()
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, nil
}

// SetGameStatus updates a game's lifecycle status.
func (db *DB) SetGameStatus(ctx context.Context, id string, status story.GameStatus) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE games SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("set game status %s: %w", id, err)
	}
	return expectRow(res, "game "+id)
}

// JoinGame adds actorID to the roster. It reports false without error when
// the roster is full; an actor already on the roster is a no-op success.
func (db *DB) JoinGame(ctx context.Context, p story.Player, maxPlayers int) (bool, error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("join game: %w", err)
	}
	defer tx.Rollback()

	var present int
	if err := tx.GetContext(ctx, &present,
		`SELECT COUNT(*) FROM game_players WHERE game_id = ? AND actor_id = ?`, p.GameID, p.ActorID); err != nil {
		return false, fmt.Errorf("join game: %w", err)
	}
	if present > 0 {
		return true, nil
	}

	var count int
	if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM game_players WHERE game_id = ?`, p.GameID); err != nil {
		return false, fmt.Errorf("join game: %w", err)
	}
	if maxPlayers > 0 && count >= maxPlayers {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO game_players (game_id, actor_id, name, joined_at) VALUES (?, ?, ?, ?)`,
		p.GameID, p.ActorID, p.Name, formatTime(p.JoinedAt)); err != nil {
		return false, fmt.Errorf("join game: %w", err)
	}
	return true, tx.Commit()
}

type playerRow struct {
	GameID   string `db:"game_id"`
	ActorID  string `db:"actor_id"`
	Name     string `db:"name"`
	JoinedAt string `db:"joined_at"`
}

// Players lists a game's roster in join order.
func (db *DB) Players(ctx context.Context, gameID string) ([]story.Player, error) {
	var rows []playerRow
	if err := db.conn.SelectContext(ctx, &rows,
		`SELECT game_id, actor_id, name, joined_at FROM game_players WHERE game_id = ? ORDER BY joined_at, actor_id`, gameID); err != nil {
		return nil, fmt.Errorf("players %s: %w", gameID, err)
	}
	out := make([]story.Player, 0, len(rows))
	for _, r := range rows {
		at, err := parseTime(r.JoinedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, story.Player{GameID: r.GameID, ActorID: r.ActorID, Name: r.Name, JoinedAt: at})
	}
	return out, nil
}

func touchGame(ctx context.Context, tx execer, id string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE games SET last_cycle_at = ? WHERE id = ?`, formatTime(at), id)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
