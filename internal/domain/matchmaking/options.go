package matchmaking

import (
	"github.com/okian/ladder/internal/domain/skill"
	"github.com/okian/ladder/pkg/logger"
)

// Default manager settings.
const (
	DefaultHysteresis        = 0.5
	DefaultRecalibrationBase = 5
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithModel sets the skill model used for updates and match quality.
func WithModel(model *skill.Model) Option {
	return func(m *Manager) {
		if model != nil {
			m.model = model
		}
	}
}

// WithBaseline switches the manager to greedy selection with no periodic
// recalibration.
func WithBaseline(baseline bool) Option {
	return func(m *Manager) {
		m.baseline = baseline
	}
}

// WithHysteresis sets the minimum sigma gap that justifies switching away
// from the current opponent.
func WithHysteresis(threshold float64) Option {
	return func(m *Manager) {
		if threshold >= 0 {
			m.hysteresis = threshold
		}
	}
}

// WithRecalibrationBase sets b in games_played mod b^rank_updates == 0.
func WithRecalibrationBase(base int) Option {
	return func(m *Manager) {
		if base >= 2 {
			m.base = base
		}
	}
}

// WithRecalibrationPairs sets the (lower, higher) level pairs played during
// recalibration. Nil keeps DefaultPairs.
func WithRecalibrationPairs(pairs [][2]int) Option {
	return func(m *Manager) {
		if len(pairs) > 0 {
			m.pairs = append([][2]int(nil), pairs...)
		}
	}
}

// WithLogger sets a custom logger for the manager.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}
