// Package model contains domain records passed between layers.
package model

import (
	"sort"

	"github.com/okian/ladder/internal/domain/skill"
)

// AgentRecord is the persisted state of a learning agent.
type AgentRecord struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Surname     string       `json:"surname"`
	Rating      skill.Rating `json:"rating"`
	GamesPlayed int          `json:"games_played"`
	RankUpdates int          `json:"rank_updates"`
}

// OpponentRecord is the persisted state of one opponent difficulty tier
// belonging to a player.
type OpponentRecord struct {
	ID       int64        `json:"id"`
	PlayerID int64        `json:"player_id"`
	LevelID  int          `json:"level_id"`
	Rating   skill.Rating `json:"rating"`
}

// SortByLevel orders opponents by LevelID ascending, in place.
func SortByLevel(opponents []OpponentRecord) {
	sort.SliceStable(opponents, func(i, j int) bool {
		return opponents[i].LevelID < opponents[j].LevelID
	})
}
