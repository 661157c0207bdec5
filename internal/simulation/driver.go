package simulation

import (
	"context"

	"github.com/okian/ladder/internal/domain/skill"
	"github.com/okian/ladder/internal/domain/types"
)

// Driver is the matchmaking surface a simulation plays against.
// key identifies one outcome report so that a retry is applied once.
type Driver interface {
	CreatePlayer(ctx context.Context, name, surname string) error
	ChooseOpponent(ctx context.Context, name, surname string) (int, error)
	RecordOutcome(ctx context.Context, name, surname string, outcome skill.Outcome, reward float64, key string) (types.Standing, error)
	Leaderboard(ctx context.Context, limit int) ([]types.Entry, error)
}

// Service is the in-process matchmaking service.
type Service interface {
	CreatePlayer(ctx context.Context, name, surname string) (types.Standing, error)
	ChooseOpponent(ctx context.Context, name, surname string) (int, error)
	RecordOutcome(ctx context.Context, name, surname string, outcome skill.Outcome, reward float64) (types.Standing, error)
	Leaderboard(ctx context.Context, limit int) ([]types.Entry, error)
}

// LocalDriver plays against a Service in the same process. Reports are
// never retried, so keys are ignored.
type LocalDriver struct {
	svc Service
}

// NewLocalDriver wraps svc.
func NewLocalDriver(svc Service) *LocalDriver {
	return &LocalDriver{svc: svc}
}

func (d *LocalDriver) CreatePlayer(ctx context.Context, name, surname string) error {
	_, err := d.svc.CreatePlayer(ctx, name, surname)
	return err
}

func (d *LocalDriver) ChooseOpponent(ctx context.Context, name, surname string) (int, error) {
	return d.svc.ChooseOpponent(ctx, name, surname)
}

func (d *LocalDriver) RecordOutcome(ctx context.Context, name, surname string, outcome skill.Outcome, reward float64, _ string) (types.Standing, error) {
	return d.svc.RecordOutcome(ctx, name, surname, outcome, reward)
}

func (d *LocalDriver) Leaderboard(ctx context.Context, limit int) ([]types.Entry, error) {
	return d.svc.Leaderboard(ctx, limit)
}
