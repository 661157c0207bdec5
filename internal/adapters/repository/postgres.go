package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/ladder/internal/domain/model"
)

var postgresSchema = []string{`
CREATE TABLE IF NOT EXISTS players (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    surname TEXT NOT NULL,
    mu DOUBLE PRECISION NOT NULL,
    sigma DOUBLE PRECISION NOT NULL,
    games_played INTEGER NOT NULL DEFAULT 0,
    rank_updates INTEGER NOT NULL DEFAULT 0,
    UNIQUE (name, surname)
)`, `
CREATE TABLE IF NOT EXISTS opponents (
    id BIGSERIAL PRIMARY KEY,
    player_id BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
    level_id INTEGER NOT NULL,
    mu DOUBLE PRECISION NOT NULL,
    sigma DOUBLE PRECISION NOT NULL,
    UNIQUE (player_id, level_id)
)`,
}

// PostgresStore is a Backend on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	cfg  settings
}

// OpTimeout returns the bound applied to each store call.
func (s *PostgresStore) OpTimeout() time.Duration { return s.cfg.opTimeout }

// NewPostgresStore connects to dsn and makes sure the tables exist.
func NewPostgresStore(ctx context.Context, dsn string, opts ...Option) (*PostgresStore, error) {
	s := &PostgresStore{cfg: newSettings(opts)}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, ioError("connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, ioError("ping", err)
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, ioError("init", err)
		}
	}
	s.pool = pool
	return s, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// GetPlayer implements Store.
func (s *PostgresStore) GetPlayer(ctx context.Context, name, surname string) (rec model.AgentRecord, err error) {
	defer func(start time.Time) { err = observe("get_player", start, err) }(time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rec, err = scanPlayer(s.pool.QueryRow(ctx, `
		SELECT id, name, surname, mu, sigma, games_played, rank_updates
		  FROM players
		 WHERE name = $1 AND surname = $2
	`, name, surname))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AgentRecord{}, fmt.Errorf("%w: %s %s", ErrNotFound, name, surname)
	}
	return rec, err
}

// GetOpponents implements Store.
func (s *PostgresStore) GetOpponents(ctx context.Context, playerID int64) (out []model.OpponentRecord, err error) {
	defer func(start time.Time) { err = observe("get_opponents", start, err) }(time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT id, player_id, level_id, mu, sigma
		  FROM opponents
		 WHERE player_id = $1
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
func (s *PostgresStore) UpdatePlayer(ctx context.Context, id int64, mu, sigma float64, gamesPlayed, rankUpdates int) (err error) {
	defer func(start time.Time) { err = observe("update_player", start, err) }(time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return updatePlayerPG(ctx, s.pool, id, mu, sigma, gamesPlayed, rankUpdates)
}

// UpdateOpponent implements Store.
func (s *PostgresStore) UpdateOpponent(ctx context.Context, playerID int64, levelID int, mu, sigma float64) (err error) {
	defer func(start time.Time) { err = observe("update_opponent", start, err) }(time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return updateOpponentPG(ctx, s.pool, playerID, levelID, mu, sigma)
}

// Flush implements Flusher in a single transaction.
func (s *PostgresStore) Flush(ctx context.Context, agent model.AgentRecord, opponents []model.OpponentRecord) (err error) {
	defer func(start time.Time) { err = observe("flush", start, err) }(time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	r := agent.Rating
	if err := updatePlayerPG(ctx, tx, agent.ID, r.Mu, r.Sigma, agent.GamesPlayed, agent.RankUpdates); err != nil {
		return err
	}
	for _, o := range opponents {
		if err := updateOpponentPG(ctx, tx, agent.ID, o.LevelID, o.Rating.Mu, o.Rating.Sigma); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// CreatePlayer implements Admin.
func (s *PostgresStore) CreatePlayer(ctx context.Context, agent model.AgentRecord, opponents []model.OpponentRecord) (rec model.AgentRecord, err error) {
	defer func(start time.Time) { err = observe("create_player", start, err) }(time.Now())
	if err := validateNewPlayer(agent, opponents); err != nil {
		return model.AgentRecord{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.AgentRecord{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO players (name, surname, mu, sigma, games_played, rank_updates)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, agent.Name, agent.Surname, agent.Rating.Mu, agent.Rating.Sigma, agent.GamesPlayed, agent.RankUpdates).Scan(&agent.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return model.AgentRecord{}, fmt.Errorf("%w: %s %s", ErrAlreadyExists, agent.Name, agent.Surname)
		}
		return model.AgentRecord{}, err
	}

	for _, o := range opponents {
		if _, err := tx.Exec(ctx, `
			INSERT INTO opponents (player_id, level_id, mu, sigma)
			VALUES ($1, $2, $3, $4)
		`, agent.ID, o.LevelID, o.Rating.Mu, o.Rating.Sigma); err != nil {
			return model.AgentRecord{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return model.AgentRecord{}, err
	}
	return agent, nil
}

// ListPlayers implements Admin.
func (s *PostgresStore) ListPlayers(ctx context.Context) (out []model.AgentRecord, err error) {
	defer func(start time.Time) { err = observe("list_players", start, err) }(time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
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

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.cfg.opTimeout)
}

// pgExecer is satisfied by *pgxpool.Pool and pgx.Tx.
type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func updatePlayerPG(ctx context.Context, db pgExecer, id int64, mu, sigma float64, gamesPlayed, rankUpdates int) error {
	tag, err := db.Exec(ctx, `
		UPDATE players
		   SET mu = $2, sigma = $3, games_played = $4, rank_updates = $5
		 WHERE id = $1
	`, id, mu, sigma, gamesPlayed, rankUpdates)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

func updateOpponentPG(ctx context.Context, db pgExecer, playerID int64, levelID int, mu, sigma float64) error {
	tag, err := db.Exec(ctx, `
		UPDATE opponents
		   SET mu = $3, sigma = $4
		 WHERE player_id = $1 AND level_id = $2
	`, playerID, levelID, mu, sigma)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: player %d level %d", ErrNotFound, playerID, levelID)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
