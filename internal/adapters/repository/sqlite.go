package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/ladder/internal/domain/model"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{`
CREATE TABLE IF NOT EXISTS players (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    surname TEXT NOT NULL,
    mu REAL NOT NULL,
    sigma REAL NOT NULL,
    games_played INTEGER NOT NULL DEFAULT 0,
    rank_updates INTEGER NOT NULL DEFAULT 0,
    UNIQUE (name, surname)
)`, `
CREATE TABLE IF NOT EXISTS opponents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    player_id INTEGER NOT NULL REFERENCES players(id) ON DELETE CASCADE,
    level_id INTEGER NOT NULL,
    mu REAL NOT NULL,
    sigma REAL NOT NULL,
    UNIQUE (player_id, level_id)
)`,
}

// SQLiteStore is a Backend persisted in a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	cfg settings
}

// OpTimeout returns the bound applied to each store call.
func (s *SQLiteStore) OpTimeout() time.Duration { return s.cfg.opTimeout }

// NewSQLiteStore opens (creating if needed) the database at path. Use
// ":memory:" for a private in-memory database.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: empty sqlite database path", ErrInvalidRecord)
	}
	if path != ":memory:" {
		parent := filepath.Dir(path)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, ioError("mkdir", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ioError("open", err)
	}
	// One connection serialises writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db, cfg: newSettings(opts)}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	statements := []string{
		fmt.Sprintf(`PRAGMA busy_timeout = %d;`, sqliteBusyMS),
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
	}
	for _, stmt := range append(statements, sqliteSchema...) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, ioError("init", err)
		}
	}
	return s, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// GetPlayer implements Store.
func (s *SQLiteStore) GetPlayer(ctx context.Context, name, surname string) (rec model.AgentRecord, err error) {
	defer func(start time.Time) { err = observe("get_player", start, err) }(time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
SELECT id, name, surname, mu, sigma, games_played, rank_updates
FROM players
WHERE name = ? AND surname = ?
`, name, surname)
	rec, err = scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AgentRecord{}, fmt.Errorf("%w: %s %s", ErrNotFound, name, surname)
	}
	return rec, err
}

// GetOpponents implements Store.
func (s *SQLiteStore) GetOpponents(ctx context.Context, playerID int64) (out []model.OpponentRecord, err error) {
	defer func(start time.Time) { err = observe("get_opponents", start, err) }(time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
SELECT id, player_id, level_id, mu, sigma
FROM opponents
WHERE player_id = ?
ORDER BY level_id
`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var o model.OpponentRecord
		if err := rows.Scan(&o.ID, &o.PlayerID, &o.LevelID, &o.Rating.Mu, &o.Rating.Sigma); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdatePlayer implements Store.
func (s *SQLiteStore) UpdatePlayer(ctx context.Context, id int64, mu, sigma float64, gamesPlayed, rankUpdates int) (err error) {
	defer func(start time.Time) { err = observe("update_player", start, err) }(time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return updatePlayerSQL(ctx, s.db, id, mu, sigma, gamesPlayed, rankUpdates)
}

// UpdateOpponent implements Store.
func (s *SQLiteStore) UpdateOpponent(ctx context.Context, playerID int64, levelID int, mu, sigma float64) (err error) {
	defer func(start time.Time) { err = observe("update_opponent", start, err) }(time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return updateOpponentSQL(ctx, s.db, playerID, levelID, mu, sigma)
}

// Flush implements Flusher in a single transaction.
func (s *SQLiteStore) Flush(ctx context.Context, agent model.AgentRecord, opponents []model.OpponentRecord) (err error) {
	defer func(start time.Time) { err = observe("flush", start, err) }(time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	r := agent.Rating
	if err := updatePlayerSQL(ctx, tx, agent.ID, r.Mu, r.Sigma, agent.GamesPlayed, agent.RankUpdates); err != nil {
		return err
	}
	for _, o := range opponents {
		if err := updateOpponentSQL(ctx, tx, agent.ID, o.LevelID, o.Rating.Mu, o.Rating.Sigma); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CreatePlayer implements Admin.
func (s *SQLiteStore) CreatePlayer(ctx context.Context, agent model.AgentRecord, opponents []model.OpponentRecord) (rec model.AgentRecord, err error) {
	defer func(start time.Time) { err = observe("create_player", start, err) }(time.Now())
	if err := validateNewPlayer(agent, opponents); err != nil {
		return model.AgentRecord{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.AgentRecord{}, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM players WHERE name = ? AND surname = ?`, agent.Name, agent.Surname).Scan(&exists)
	switch {
	case err == nil:
		return model.AgentRecord{}, fmt.Errorf("%w: %s %s", ErrAlreadyExists, agent.Name, agent.Surname)
	case !errors.Is(err, sql.ErrNoRows):
		return model.AgentRecord{}, err
	}

	res, err := tx.ExecContext(ctx, `
INSERT INTO players (name, surname, mu, sigma, games_played, rank_updates)
VALUES (?, ?, ?, ?, ?, ?)
`, agent.Name, agent.Surname, agent.Rating.Mu, agent.Rating.Sigma, agent.GamesPlayed, agent.RankUpdates)
	if err != nil {
		return model.AgentRecord{}, err
	}
	if agent.ID, err = res.LastInsertId(); err != nil {
		return model.AgentRecord{}, err
	}

	for _, o := range opponents {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO opponents (player_id, level_id, mu, sigma)
VALUES (?, ?, ?, ?)
`, agent.ID, o.LevelID, o.Rating.Mu, o.Rating.Sigma); err != nil {
			return model.AgentRecord{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.AgentRecord{}, err
	}
	return agent, nil
}

// ListPlayers implements Admin.
func (s *SQLiteStore) ListPlayers(ctx context.Context) (out []model.AgentRecord, err error) {
	defer func(start time.Time) { err = observe("list_players", start, err) }(time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, surname, mu, sigma, games_played, rank_updates
FROM players
ORDER BY id
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.cfg.opTimeout)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row scanner) (model.AgentRecord, error) {
	var p model.AgentRecord
	err := row.Scan(&p.ID, &p.Name, &p.Surname, &p.Rating.Mu, &p.Rating.Sigma, &p.GamesPlayed, &p.RankUpdates)
	return p, err
}

func updatePlayerSQL(ctx context.Context, db execer, id int64, mu, sigma float64, gamesPlayed, rankUpdates int) error {
	res, err := db.ExecContext(ctx, `
UPDATE players
SET mu = ?, sigma = ?, games_played = ?, rank_updates = ?
WHERE id = ?
`, mu, sigma, gamesPlayed, rankUpdates, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, fmt.Sprintf("id %d", id))
}

func updateOpponentSQL(ctx context.Context, db execer, playerID int64, levelID int, mu, sigma float64) error {
	res, err := db.ExecContext(ctx, `
UPDATE opponents
SET mu = ?, sigma = ?
WHERE player_id = ? AND level_id = ?
`, mu, sigma, playerID, levelID)
	if err != nil {
		return err
	}
	return expectOneRow(res, fmt.Sprintf("player %d level %d", playerID, levelID))
}

func expectOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return nil
}
