package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/ladder/internal/domain/model"
)

type playerKey struct {
	name    string
	surname string
}

// MemoryStore is an in-memory Backend. It is safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    int64
	byName    map[playerKey]int64
	players   map[int64]model.AgentRecord
	opponents map[int64][]model.OpponentRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byName:    make(map[playerKey]int64),
		players:   make(map[int64]model.AgentRecord),
		opponents: make(map[int64][]model.OpponentRecord),
	}
}

// GetPlayer implements Store.
func (s *MemoryStore) GetPlayer(_ context.Context, name, surname string) (model.AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[playerKey{name, surname}]
	if !ok {
		return model.AgentRecord{}, fmt.Errorf("%w: %s %s", ErrNotFound, name, surname)
	}
	return s.players[id], nil
}

// GetOpponents implements Store.
func (s *MemoryStore) GetOpponents(_ context.Context, playerID int64) ([]model.OpponentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.OpponentRecord, len(s.opponents[playerID]))
	copy(out, s.opponents[playerID])
	return out, nil
}

// UpdatePlayer implements Store.
func (s *MemoryStore) UpdatePlayer(_ context.Context, id int64, mu, sigma float64, gamesPlayed, rankUpdates int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatePlayerLocked(id, mu, sigma, gamesPlayed, rankUpdates)
}

// UpdateOpponent implements Store.
func (s *MemoryStore) UpdateOpponent(_ context.Context, playerID int64, levelID int, mu, sigma float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateOpponentLocked(playerID, levelID, mu, sigma)
}

// Flush implements Flusher. Either every record is written or none is.
func (s *MemoryStore) Flush(_ context.Context, agent model.AgentRecord, opponents []model.OpponentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[agent.ID]; !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, agent.ID)
	}
	for _, o := range opponents {
		if s.levelIndexLocked(agent.ID, o.LevelID) < 0 {
			return fmt.Errorf("%w: player %d level %d", ErrNotFound, agent.ID, o.LevelID)
		}
	}

	_ = s.updatePlayerLocked(agent.ID, agent.Rating.Mu, agent.Rating.Sigma, agent.GamesPlayed, agent.RankUpdates)
	for _, o := range opponents {
		_ = s.updateOpponentLocked(agent.ID, o.LevelID, o.Rating.Mu, o.Rating.Sigma)
	}
	return nil
}

// CreatePlayer implements Admin.
func (s *MemoryStore) CreatePlayer(_ context.Context, agent model.AgentRecord, opponents []model.OpponentRecord) (model.AgentRecord, error) {
	if err := validateNewPlayer(agent, opponents); err != nil {
		return model.AgentRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := playerKey{agent.Name, agent.Surname}
	if _, ok := s.byName[key]; ok {
		return model.AgentRecord{}, fmt.Errorf("%w: %s %s", ErrAlreadyExists, agent.Name, agent.Surname)
	}

	s.nextID++
	agent.ID = s.nextID
	s.byName[key] = agent.ID
	s.players[agent.ID] = agent

	opps := make([]model.OpponentRecord, 0, len(opponents))
	for _, o := range opponents {
		s.nextID++
		o.ID = s.nextID
		o.PlayerID = agent.ID
		opps = append(opps, o)
	}
	model.SortByLevel(opps)
	s.opponents[agent.ID] = opps
	return agent, nil
}

// ListPlayers implements Admin.
func (s *MemoryStore) ListPlayers(_ context.Context) ([]model.AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.AgentRecord, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close implements Backend.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) updatePlayerLocked(id int64, mu, sigma float64, gamesPlayed, rankUpdates int) error {
	p, ok := s.players[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	p.Rating.Mu = mu
	p.Rating.Sigma = sigma
	p.GamesPlayed = gamesPlayed
	p.RankUpdates = rankUpdates
	s.players[id] = p
	return nil
}

func (s *MemoryStore) updateOpponentLocked(playerID int64, levelID int, mu, sigma float64) error {
	i := s.levelIndexLocked(playerID, levelID)
	if i < 0 {
		return fmt.Errorf("%w: player %d level %d", ErrNotFound, playerID, levelID)
	}
	s.opponents[playerID][i].Rating.Mu = mu
	s.opponents[playerID][i].Rating.Sigma = sigma
	return nil
}

func (s *MemoryStore) levelIndexLocked(playerID int64, levelID int) int {
	for i, o := range s.opponents[playerID] {
		if o.LevelID == levelID {
			return i
		}
	}
	return -1
}
