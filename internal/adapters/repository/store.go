// Package repository defines the rating store interface and its backends.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/metrics"
)

// Store provides read/write access to persisted ratings. Writes for one
// player only ever touch that player's rows.
type Store interface {
	// GetPlayer returns the agent record for name/surname.
	// Returns ErrNotFound if the player is unknown.
	GetPlayer(ctx context.Context, name, surname string) (model.AgentRecord, error)

	// GetOpponents returns the opponent tiers owned by playerID.
	GetOpponents(ctx context.Context, playerID int64) ([]model.OpponentRecord, error)

	// UpdatePlayer overwrites the agent's rating and counters.
	UpdatePlayer(ctx context.Context, id int64, mu, sigma float64, gamesPlayed, rankUpdates int) error

	// UpdateOpponent overwrites the rating of one opponent tier.
	UpdateOpponent(ctx context.Context, playerID int64, levelID int, mu, sigma float64) error
}

// Flusher is implemented by stores that can persist a player and all of its
// opponents in a single write transaction.
type Flusher interface {
	Flush(ctx context.Context, agent model.AgentRecord, opponents []model.OpponentRecord) error
}

// Admin covers the operations used to seed and inspect a store.
type Admin interface {
	// CreatePlayer inserts a player with one opponent per entry of opponents
	// and returns the stored record. Returns ErrAlreadyExists on a duplicate
	// name/surname.
	CreatePlayer(ctx context.Context, agent model.AgentRecord, opponents []model.OpponentRecord) (model.AgentRecord, error)

	// ListPlayers returns every player ordered by id.
	ListPlayers(ctx context.Context) ([]model.AgentRecord, error)
}

// Backend is a complete store implementation.
type Backend interface {
	Store
	Flusher
	Admin
	Close() error
}

// observe records latency and failure metrics for a store operation and
// wraps driver failures as ErrStoreIO. Domain sentinels pass through as is
// and are not counted as store errors.
func observe(op string, start time.Time, err error) error {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
	if err == nil {
		return nil
	}
	if !isDomainError(err) {
		err = ioError(op, err)
	}
	if errors.Is(err, ErrStoreIO) {
		metrics.RecordStoreError(op)
	}
	return err
}

// validateNewPlayer rejects blank names and duplicated opponent levels.
func validateNewPlayer(agent model.AgentRecord, opponents []model.OpponentRecord) error {
	if strings.TrimSpace(agent.Name) == "" || strings.TrimSpace(agent.Surname) == "" {
		return fmt.Errorf("%w: name and surname are required", ErrInvalidRecord)
	}
	seen := make(map[int]struct{}, len(opponents))
	for _, o := range opponents {
		if _, dup := seen[o.LevelID]; dup {
			return fmt.Errorf("%w: duplicate level %d", ErrInvalidRecord, o.LevelID)
		}
		seen[o.LevelID] = struct{}{}
	}
	return nil
}
