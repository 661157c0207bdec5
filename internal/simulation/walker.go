// Package simulation drives the matchmaking service with simulated learning
// agents. A Walker stands in for a trained walking policy whose episode
// reward depends on its latent skill and the difficulty of the terrain tier.
package simulation

import (
	"context"
	"math/rand/v2"

	"github.com/okian/ladder/internal/domain/skill"
)

// Episode reward thresholds.
const (
	WinReward   = 200.0
	rewardScale = 120.0
)

// OutcomeSource plays one game against an opponent level.
type OutcomeSource interface {
	Play(ctx context.Context, levelID int) (skill.Outcome, float64, error)
}

// OutcomeFromReward maps an episode result to a game outcome. A negative
// reward is a loss, a fall is a draw, a reward above WinReward is a win and
// anything else is a draw.
func OutcomeFromReward(reward float64, fallen bool) skill.Outcome {
	switch {
	case reward < 0:
		return skill.Loss
	case fallen:
		return skill.Draw
	case reward > WinReward:
		return skill.Win
	default:
		return skill.Draw
	}
}

// Walker is a simulated agent that gets better the more it plays.
// It is not safe for concurrent use.
type Walker struct {
	skill        float64
	learnRate    float64
	noise        float64
	difficulties []float64
	rng          *rand.Rand
}

// WalkerOption configures NewWalker.
type WalkerOption func(*Walker)

// WithSkill sets the initial latent skill.
func WithSkill(s float64) WalkerOption {
	return func(w *Walker) { w.skill = s }
}

// WithLearnRate sets the skill gained per episode against level 0.
func WithLearnRate(r float64) WalkerOption {
	return func(w *Walker) {
		if r >= 0 {
			w.learnRate = r
		}
	}
}

// WithNoise sets the standard deviation of episode performance.
func WithNoise(n float64) WalkerOption {
	return func(w *Walker) {
		if n >= 0 {
			w.noise = n
		}
	}
}

// WithDifficulties sets the terrain difficulty of each level id.
func WithDifficulties(d []float64) WalkerOption {
	return func(w *Walker) {
		if len(d) > 0 {
			w.difficulties = append([]float64(nil), d...)
		}
	}
}

// NewWalker returns a walker seeded with seed.
func NewWalker(seed uint64, opts ...WalkerOption) *Walker {
	w := &Walker{
		skill:        1.0,
		learnRate:    0.02,
		noise:        1.0,
		difficulties: []float64{0, 1.5, 3},
		rng:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Skill returns the current latent skill.
func (w *Walker) Skill() float64 { return w.skill }

// Episode runs one episode on levelID and returns its reward and whether the
// walker fell. Harder levels teach more.
func (w *Walker) Episode(levelID int) (float64, bool) {
	perf := w.skill - w.difficulty(levelID) + w.rng.NormFloat64()*w.noise
	w.skill += w.learnRate * (1 + float64(max(levelID, 0))/2)
	return WinReward + rewardScale*perf, perf < 0
}

// Play implements OutcomeSource.
func (w *Walker) Play(ctx context.Context, levelID int) (skill.Outcome, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	reward, fallen := w.Episode(levelID)
	return OutcomeFromReward(reward, fallen), reward, nil
}

// difficulty extrapolates past the last configured level.
func (w *Walker) difficulty(levelID int) float64 {
	n := len(w.difficulties)
	switch {
	case levelID < 0:
		return w.difficulties[0]
	case levelID < n:
		return w.difficulties[levelID]
	case n == 1:
		return w.difficulties[0]
	default:
		step := w.difficulties[n-1] - w.difficulties[n-2]
		return w.difficulties[n-1] + step*float64(levelID-n+1)
	}
}
