// Package types contains read models shared by the service and the HTTP API.
package types

import (
	"sort"
	"strings"

	"github.com/okian/ladder/internal/domain/model"
)

// Opponent is one opponent tier as seen from its agent.
type Opponent struct {
	LevelID        int     `json:"level_id"`
	Mu             float64 `json:"mu"`
	Sigma          float64 `json:"sigma"`
	MatchQuality   float64 `json:"match_quality"`
	WinProbability float64 `json:"win_probability"`
}

// Standing is the current matchmaking state of one agent.
type Standing struct {
	Name         string     `json:"name"`
	Surname      string     `json:"surname"`
	Mu           float64    `json:"mu"`
	Sigma        float64    `json:"sigma"`
	Conservative float64    `json:"conservative"`
	GamesPlayed  int        `json:"games_played"`
	RankUpdates  int        `json:"rank_updates"`
	Selected     *int       `json:"selected_level,omitempty"`
	Switches     int        `json:"switches"`
	Baseline     bool       `json:"baseline"`
	Opponents    []Opponent `json:"opponents"`
}

// Entry is a leaderboard row.
type Entry struct {
	Rank        int     `json:"rank"`
	Name        string  `json:"name"`
	Surname     string  `json:"surname"`
	Mu          float64 `json:"mu"`
	Sigma       float64 `json:"sigma"`
	Score       float64 `json:"score"`
	GamesPlayed int     `json:"games_played"`
}

// Leaderboard ranks players by their conservative skill estimate, highest
// first, and returns at most limit rows. A limit below one returns all rows.
// Ties are broken by name then surname.
func Leaderboard(players []model.AgentRecord, limit int) []Entry {
	sorted := append([]model.AgentRecord(nil), players...)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := sorted[i].Rating.Conservative(), sorted[j].Rating.Conservative()
		if si != sj {
			return si > sj
		}
		if c := strings.Compare(sorted[i].Name, sorted[j].Name); c != 0 {
			return c < 0
		}
		return sorted[i].Surname < sorted[j].Surname
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]Entry, len(sorted))
	for i, p := range sorted {
		out[i] = Entry{
			Rank:        i + 1,
			Name:        p.Name,
			Surname:     p.Surname,
			Mu:          p.Rating.Mu,
			Sigma:       p.Rating.Sigma,
			Score:       p.Rating.Conservative(),
			GamesPlayed: p.GamesPlayed,
		}
	}
	return out
}
