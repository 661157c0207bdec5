// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	repository "github.com/okian/ladder/internal/adapters/repository"
	"github.com/okian/ladder/internal/domain/matchmaking"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/skill"
	"github.com/okian/ladder/internal/domain/types"
	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

// Sentinel kinds for service errors.
var (
	ErrNotStarted  = errors.New("service not started")
	ErrInvalidName = fmt.Errorf("%w: name and surname are required", repository.ErrInvalidRecord)
)

// player serialises access to one agent's manager.
type player struct {
	mu sync.Mutex
	m  *matchmaking.Manager
}

// Service implements the API dependencies for the matchmaking ladder.
type Service struct {
	mu sync.RWMutex

	store     repository.Backend
	ownsStore bool
	players   map[string]*player

	// Configuration
	driver     string
	source     string
	opTimeout  time.Duration
	model      *skill.Model
	baseline   bool
	hysteresis float64
	base       int
	pairs      [][2]int
	levels     int

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore makes the service use an already opened store. The service does
// not close it on Stop.
func WithStore(store repository.Backend) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithStoreDriver selects the store opened by Start. source is the sqlite
// path or the postgres DSN.
func WithStoreDriver(driver, source string) Option {
	return func(s *Service) {
		if driver != "" {
			s.driver = driver
			s.source = source
		}
	}
}

// WithStoreTimeout bounds each store operation.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// WithModel sets the skill model shared by every manager.
func WithModel(m *skill.Model) Option {
	return func(s *Service) {
		if m != nil {
			s.model = m
		}
	}
}

// WithBaseline runs every manager in baseline mode.
func WithBaseline(baseline bool) Option {
	return func(s *Service) { s.baseline = baseline }
}

// WithHysteresis sets the opponent switching threshold.
func WithHysteresis(threshold float64) Option {
	return func(s *Service) {
		if threshold >= 0 {
			s.hysteresis = threshold
		}
	}
}

// WithRecalibrationBase sets the recalibration schedule base.
func WithRecalibrationBase(base int) Option {
	return func(s *Service) {
		if base >= 2 {
			s.base = base
		}
	}
}

// WithRecalibrationPairs sets the level pairs played during recalibration.
func WithRecalibrationPairs(pairs [][2]int) Option {
	return func(s *Service) { s.pairs = pairs }
}

// WithLevels sets how many opponent tiers a new player is given.
func WithLevels(levels int) Option {
	return func(s *Service) {
		if levels > 0 {
			s.levels = levels
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		players:    make(map[string]*player),
		driver:     repository.DriverMemory,
		hysteresis: matchmaking.DefaultHysteresis,
		base:       matchmaking.DefaultRecalibrationBase,
		levels:     3,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.model == nil {
		s.model = skill.NewModel()
	}
	return s
}

// Start opens the store unless one was injected.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	if s.store == nil {
		var opts []repository.Option
		if s.opTimeout > 0 {
			opts = append(opts, repository.WithOpTimeout(s.opTimeout))
		}
		store, err := repository.Open(ctx, s.driver, s.source, opts...)
		if err != nil {
			return fmt.Errorf("open %s store: %w", s.driver, err)
		}
		s.store = store
		s.ownsStore = true
	}

	s.started = true
	s.logger.Info(ctx, "ladder service started",
		logger.String("driver", s.driver),
		logger.Bool("baseline", s.baseline),
		logger.Float64("hysteresis", s.hysteresis),
		logger.Int("recalibration_base", s.base),
	)
	return nil
}

// Stop retries pending flushes and closes the store if the service opened it.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	for key, p := range s.players {
		p.mu.Lock()
		if err := p.m.Flush(ctx); err != nil {
			s.logger.Error(ctx, "final flush failed", logger.String("player", key), logger.Error(err))
		}
		p.mu.Unlock()
	}

	if s.ownsStore {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "store close failed", logger.Error(err))
		}
		s.store = nil
		s.ownsStore = false
	}
	s.players = make(map[string]*player)
	metrics.UpdateActiveManagers(0)

	s.started = false
	s.logger.Info(ctx, "ladder service stopped")
}

// CreatePlayer stores a new agent with the model's prior rating and one
// opponent per configured level.
func (s *Service) CreatePlayer(ctx context.Context, name, surname string) (types.Standing, error) {
	if err := s.ready(); err != nil {
		return types.Standing{}, err
	}
	name, surname, err := cleanName(name, surname)
	if err != nil {
		return types.Standing{}, err
	}

	agent := model.AgentRecord{Name: name, Surname: surname, Rating: s.model.Initial()}
	opponents := make([]model.OpponentRecord, s.levels)
	for i := range opponents {
		opponents[i] = model.OpponentRecord{LevelID: i, Rating: s.model.Initial()}
	}

	created, err := s.store.CreatePlayer(ctx, agent, opponents)
	if err != nil {
		return types.Standing{}, err
	}
	s.logger.Info(ctx, "player created",
		logger.String("name", name),
		logger.String("surname", surname),
		logger.Int64("id", created.ID),
		logger.Int("levels", s.levels),
	)

	p, err := s.player(ctx, name, surname)
	if err != nil {
		return types.Standing{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return s.standing(p.m), nil
}

// ChooseOpponent returns the level the agent should play next.
func (s *Service) ChooseOpponent(ctx context.Context, name, surname string) (int, error) {
	p, err := s.player(ctx, name, surname)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.m.ChooseOpponent(ctx)
}

// RecordOutcome reports a finished game. reward is only logged.
func (s *Service) RecordOutcome(ctx context.Context, name, surname string, outcome skill.Outcome, reward float64) (types.Standing, error) {
	p, err := s.player(ctx, name, surname)
	if err != nil {
		return types.Standing{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	level, _ := p.m.Selected()
	err = p.m.RecordOutcome(ctx, outcome)
	if err != nil && !errors.Is(err, matchmaking.ErrStoreIO) {
		return types.Standing{}, err
	}

	s.logger.Info(ctx, "game recorded",
		logger.String("name", name),
		logger.String("surname", surname),
		logger.Int("level", level),
		logger.String("outcome", outcome.String()),
		logger.Float64("reward", reward),
	)
	return s.standing(p.m), err
}

// Standing returns the current state of an agent.
func (s *Service) Standing(ctx context.Context, name, surname string) (types.Standing, error) {
	p, err := s.player(ctx, name, surname)
	if err != nil {
		return types.Standing{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return s.standing(p.m), nil
}

// Leaderboard returns up to limit players ranked by conservative skill.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]types.Entry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return nil, err
	}
	return types.Leaderboard(players, limit), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":            s.started,
		"driver":             s.driver,
		"baseline":           s.baseline,
		"hysteresis":         s.hysteresis,
		"recalibrationBase":  s.base,
		"levels":             s.levels,
		"activeManagers":     len(s.players),
		"betaPerformanceStd": s.model.Beta(),
	}
	metrics.UpdateActiveManagers(len(s.players))
	return stats
}

// player returns the cached manager for name/surname, loading it on first use.
func (s *Service) player(ctx context.Context, name, surname string) (*player, error) {
	name, surname, err := cleanName(name, surname)
	if err != nil {
		return nil, err
	}
	key := name + "\x00" + surname

	s.mu.RLock()
	started, p := s.started, s.players[key]
	s.mu.RUnlock()
	if !started {
		return nil, ErrNotStarted
	}
	if p != nil {
		return p, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.players[key]; p != nil {
		return p, nil
	}

	m, err := matchmaking.New(ctx, s.store, name, surname,
		matchmaking.WithModel(s.model),
		matchmaking.WithBaseline(s.baseline),
		matchmaking.WithHysteresis(s.hysteresis),
		matchmaking.WithRecalibrationBase(s.base),
		matchmaking.WithRecalibrationPairs(s.pairs),
		matchmaking.WithLogger(s.logger.Named("matchmaking")),
	)
	if err != nil {
		return nil, err
	}
	p = &player{m: m}
	s.players[key] = p
	metrics.UpdateActiveManagers(len(s.players))
	return p, nil
}

func (s *Service) standing(m *matchmaking.Manager) types.Standing {
	agent, opps := m.Snapshot()
	st := types.Standing{
		Name:         agent.Name,
		Surname:      agent.Surname,
		Mu:           agent.Rating.Mu,
		Sigma:        agent.Rating.Sigma,
		Conservative: agent.Rating.Conservative(),
		GamesPlayed:  agent.GamesPlayed,
		RankUpdates:  agent.RankUpdates,
		Switches:     m.Switches(),
		Baseline:     m.Baseline(),
		Opponents:    make([]types.Opponent, len(opps)),
	}
	if level, ok := m.Selected(); ok {
		st.Selected = &level
	}
	for i, o := range opps {
		st.Opponents[i] = types.Opponent{
			LevelID:        o.LevelID,
			Mu:             o.Rating.Mu,
			Sigma:          o.Rating.Sigma,
			MatchQuality:   s.model.MatchQuality(agent.Rating, o.Rating),
			WinProbability: s.model.WinProbability(agent.Rating, o.Rating),
		}
	}
	return st
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

func cleanName(name, surname string) (string, string, error) {
	name, surname = strings.TrimSpace(name), strings.TrimSpace(surname)
	if name == "" || surname == "" {
		return "", "", ErrInvalidName
	}
	return name, surname, nil
}
