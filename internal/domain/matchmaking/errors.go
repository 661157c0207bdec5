package matchmaking

import (
	"errors"

	"github.com/okian/ladder/internal/adapters/repository"
)

// Sentinel kinds for matchmaking errors.
var (
	// ErrPrecondition marks an operation invoked out of sequence or on a
	// manager that was not built by New. Nothing is mutated.
	ErrPrecondition = errors.New("matchmaking precondition violated")

	// ErrNoOpponents is returned by New when the player owns no opponent tiers.
	ErrNoOpponents = errors.New("player has no opponents")

	// ErrInvalidPairs is returned by New when a recalibration pair names an
	// unknown level or is not ordered lower then higher.
	ErrInvalidPairs = errors.New("invalid recalibration pairs")

	// ErrNotFound and ErrStoreIO are the store sentinels surfaced unchanged.
	ErrNotFound = repository.ErrNotFound
	ErrStoreIO  = repository.ErrStoreIO
)
