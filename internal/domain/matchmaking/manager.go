// Package matchmaking picks the opponent tier that gives a learning agent the
// most informative game and keeps agent and opponent ratings up to date.
package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/okian/ladder/internal/adapters/repository"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/skill"
	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

// State is the selection state of a Manager.
type State int8

// States.
const (
	Idle State = iota
	OpponentChosen
)

func (s State) String() string {
	if s == OpponentChosen {
		return "opponent_chosen"
	}
	return "idle"
}

// Manager drives matchmaking for one agent. It is not safe for concurrent use.
type Manager struct {
	store repository.Store
	model *skill.Model
	log   logger.Logger

	baseline   bool
	hysteresis float64
	base       int
	pairs      [][2]int // level ids, lower first

	agent     model.AgentRecord
	opponents []model.OpponentRecord
	pairIdx   [][2]int // pairs resolved to opponent indexes

	state    State
	current  int
	switches int
	label    string
}

// New loads the agent name/surname and its opponents from store.
// It returns ErrNotFound when the player is unknown and ErrNoOpponents when
// the player owns no tiers.
func New(ctx context.Context, store repository.Store, name, surname string, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", ErrPrecondition)
	}

	m := &Manager{
		store:      store,
		hysteresis: DefaultHysteresis,
		base:       DefaultRecalibrationBase,
		label:      name + " " + surname,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.model == nil {
		m.model = skill.NewModel()
	}
	if m.log == nil {
		m.log = logger.Named("matchmaking")
	}

	agent, err := store.GetPlayer(ctx, name, surname)
	if err != nil {
		return nil, storeError(err)
	}
	opponents, err := store.GetOpponents(ctx, agent.ID)
	if err != nil {
		return nil, storeError(err)
	}
	if len(opponents) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoOpponents, m.label)
	}
	model.SortByLevel(opponents)

	m.agent = agent
	m.opponents = opponents

	levels := make([]int, len(opponents))
	for i, o := range opponents {
		levels[i] = o.LevelID
	}
	if m.pairs == nil {
		m.pairs = DefaultPairs(levels)
	}
	if m.pairIdx, err = resolvePairs(m.pairs, levels); err != nil {
		return nil, err
	}

	m.log.Debug(ctx, "manager loaded",
		logger.String("player", m.label),
		logger.Int64("player_id", agent.ID),
		logger.Int("opponents", len(opponents)),
		logger.Bool("baseline", m.baseline),
	)
	m.publish()
	return m, nil
}

// ChooseOpponent selects the opponent level for the next game and returns its
// level id. An agent that was never recalibrated is recalibrated first unless
// the manager runs in baseline mode.
func (m *Manager) ChooseOpponent(ctx context.Context) (int, error) {
	if err := m.ready("choose_opponent"); err != nil {
		return 0, err
	}

	if !m.baseline && m.agent.RankUpdates == 0 {
		if err := m.RecalibrateOpponents(ctx); err != nil {
			return 0, err
		}
	}

	candidate, quality := m.bestCandidate()
	next := m.current
	switch {
	case m.baseline, m.state == Idle:
		next = candidate
	default:
		gap := math.Abs(m.opponents[candidate].Rating.Sigma - m.opponents[m.current].Rating.Sigma)
		if gap > m.hysteresis {
			next = candidate
		}
	}

	if m.state == OpponentChosen && next != m.current {
		m.switches++
		metrics.RecordOpponentSwitch()
	}
	m.current = next
	m.state = OpponentChosen

	level := m.opponents[next].LevelID
	if next != candidate {
		quality = m.model.MatchQuality(m.agent.Rating, m.opponents[next].Rating)
	}
	metrics.RecordOpponentChoice(level, quality)
	m.log.Debug(ctx, "opponent chosen",
		logger.String("player", m.label),
		logger.Int("level", level),
		logger.Int("candidate_level", m.opponents[candidate].LevelID),
		logger.Float64("quality", quality),
	)
	return level, nil
}

// RecordOutcome applies the result of a game against the selected opponent,
// recalibrates on schedule and persists every record. When persisting fails
// the in-memory ratings are kept and Flush may be retried.
func (m *Manager) RecordOutcome(ctx context.Context, outcome skill.Outcome) error {
	if err := m.ready("record_outcome"); err != nil {
		return err
	}
	if m.state != OpponentChosen {
		metrics.RecordPreconditionFailure("record_outcome")
		return fmt.Errorf("%w: record_outcome before choose_opponent", ErrPrecondition)
	}
	if !outcome.Valid() {
		return fmt.Errorf("%w: %w: %d", ErrPrecondition, skill.ErrUnknownOutcome, int8(outcome))
	}

	opp := &m.opponents[m.current]
	m.agent.Rating, opp.Rating = m.model.UpdatePair(m.agent.Rating, opp.Rating, outcome)
	m.agent.GamesPlayed++
	metrics.RecordGame(outcome.String())

	m.log.Debug(ctx, "outcome recorded",
		logger.String("player", m.label),
		logger.Int("level", opp.LevelID),
		logger.String("outcome", outcome.String()),
		logger.Float64("mu", m.agent.Rating.Mu),
		logger.Float64("sigma", m.agent.Rating.Sigma),
		logger.Int("games_played", m.agent.GamesPlayed),
	)

	if !m.baseline && recalibrationDue(m.agent.GamesPlayed, m.base, m.agent.RankUpdates) {
		m.recalibrate(ctx)
	}
	return m.Flush(ctx)
}

// RecalibrateOpponents plays one synthetic round among the opponents in which
// the higher level of every pair wins, increments the agent's rank updates and
// persists every record.
func (m *Manager) RecalibrateOpponents(ctx context.Context) error {
	if err := m.ready("recalibrate_opponents"); err != nil {
		return err
	}
	m.recalibrate(ctx)
	return m.Flush(ctx)
}

func (m *Manager) recalibrate(ctx context.Context) {
	for _, p := range m.pairIdx {
		lo, hi := &m.opponents[p[0]], &m.opponents[p[1]]
		hi.Rating, lo.Rating = m.model.UpdatePair(hi.Rating, lo.Rating, skill.Win)
	}
	m.agent.RankUpdates++
	metrics.RecordRecalibration()

	m.log.Info(ctx, "opponents recalibrated",
		logger.String("player", m.label),
		logger.Int("rank_updates", m.agent.RankUpdates),
		logger.Int("games_played", m.agent.GamesPlayed),
	)
}

// Flush writes the agent and all of its opponents to the store. It only
// writes the current in-memory values, so calling it again after an
// ErrStoreIO is safe.
func (m *Manager) Flush(ctx context.Context) error {
	if err := m.ready("flush"); err != nil {
		return err
	}
	m.publish()

	var err error
	if f, ok := m.store.(repository.Flusher); ok {
		err = f.Flush(ctx, m.agent, m.opponents)
	} else {
		err = m.flushEach(ctx)
	}
	if err != nil {
		err = storeError(err)
		m.log.Error(ctx, "flush failed", logger.String("player", m.label), logger.Error(err))
	}
	return err
}

func (m *Manager) flushEach(ctx context.Context) error {
	a := m.agent
	if err := m.store.UpdatePlayer(ctx, a.ID, a.Rating.Mu, a.Rating.Sigma, a.GamesPlayed, a.RankUpdates); err != nil {
		return err
	}
	for _, o := range m.opponents {
		if err := m.store.UpdateOpponent(ctx, a.ID, o.LevelID, o.Rating.Mu, o.Rating.Sigma); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot returns copies of the agent and opponent records.
func (m *Manager) Snapshot() (model.AgentRecord, []model.OpponentRecord) {
	if m == nil {
		return model.AgentRecord{}, nil
	}
	return m.agent, append([]model.OpponentRecord(nil), m.opponents...)
}

// Selected returns the level id of the current opponent, if any.
func (m *Manager) Selected() (int, bool) {
	if m == nil || m.state != OpponentChosen {
		return 0, false
	}
	return m.opponents[m.current].LevelID, true
}

// State returns the selection state.
func (m *Manager) State() State {
	if m == nil {
		return Idle
	}
	return m.state
}

// Switches returns how many times the selected opponent changed.
func (m *Manager) Switches() int {
	if m == nil {
		return 0
	}
	return m.switches
}

// Baseline reports whether the manager runs in baseline mode.
func (m *Manager) Baseline() bool { return m != nil && m.baseline }

// bestCandidate returns the index with the highest match quality, the first
// one on ties.
func (m *Manager) bestCandidate() (int, float64) {
	best, bestQ := 0, -1.0
	for i, o := range m.opponents {
		q := m.model.MatchQuality(m.agent.Rating, o.Rating)
		if q > bestQ {
			best, bestQ = i, q
		}
	}
	return best, bestQ
}

func (m *Manager) ready(op string) error {
	if m == nil || m.store == nil || len(m.opponents) == 0 {
		metrics.RecordPreconditionFailure(op)
		return fmt.Errorf("%w: %s on an unloaded manager", ErrPrecondition, op)
	}
	return nil
}

func (m *Manager) publish() {
	metrics.UpdateAgentRating(m.label, m.agent.Rating.Mu, m.agent.Rating.Sigma)
	for _, o := range m.opponents {
		metrics.UpdateOpponentRating(m.label, o.LevelID, o.Rating.Mu, o.Rating.Sigma)
	}
}

// DefaultPairs returns adjacent level pairs followed by pairs with wider
// gaps, e.g. (0,1) (1,2) (0,2) for three levels. levels must be sorted.
func DefaultPairs(levels []int) [][2]int {
	var out [][2]int
	for gap := 1; gap < len(levels); gap++ {
		for i := 0; i+gap < len(levels); i++ {
			out = append(out, [2]int{levels[i], levels[i+gap]})
		}
	}
	return out
}

func resolvePairs(pairs [][2]int, levels []int) ([][2]int, error) {
	index := make(map[int]int, len(levels))
	for i, l := range levels {
		index[l] = i
	}
	out := make([][2]int, 0, len(pairs))
	for _, p := range pairs {
		lo, okLo := index[p[0]]
		hi, okHi := index[p[1]]
		if !okLo || !okHi {
			return nil, fmt.Errorf("%w: pair %d-%d names an unknown level", ErrInvalidPairs, p[0], p[1])
		}
		if p[0] >= p[1] {
			return nil, fmt.Errorf("%w: pair %d-%d is not lower-higher", ErrInvalidPairs, p[0], p[1])
		}
		out = append(out, [2]int{lo, hi})
	}
	return out, nil
}

// recalibrationDue reports whether games mod base^exp == 0. A period that
// overflows int is never reached.
func recalibrationDue(games, base, exp int) bool {
	period := 1
	for i := 0; i < exp; i++ {
		if period > math.MaxInt/base {
			return false
		}
		period *= base
	}
	return games%period == 0
}

func storeError(err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStoreIO) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreIO, err)
}
