package simulation

import (
	"fmt"
	"time"

	"github.com/okian/ladder/internal/domain/types"
)

// Config holds the parameters of a simulation run.
type Config struct {
	// Players lists name/surname pairs to simulate.
	Players []Player
	// Games is the number of games each player plays.
	Games int
	// Workers bounds how many players play at the same time.
	Workers int
	// Create adds missing players before playing.
	Create bool
	// Seed makes walkers reproducible. Player i uses Seed+i.
	Seed uint64
	// Walker options applied to every player.
	Walker []WalkerOption
	// TopN entries of the leaderboard are fetched at the end.
	TopN int
	// Verbose logs every game instead of every tenth.
	Verbose bool
}

// Player identifies a simulated agent.
type Player struct {
	Name    string
	Surname string
}

func (p Player) String() string { return p.Name + " " + p.Surname }

// Players returns n players named prefix-1..prefix-n sharing surname. A
// single player keeps prefix as its name.
func Players(prefix, surname string, n int) []Player {
	if n == 1 {
		return []Player{{Name: prefix, Surname: surname}}
	}
	out := make([]Player, n)
	for i := range out {
		out[i] = Player{Name: fmt.Sprintf("%s-%d", prefix, i+1), Surname: surname}
	}
	return out
}

func (c *Config) validate() error {
	switch {
	case len(c.Players) == 0:
		return fmt.Errorf("%w: no players", ErrInvalidConfig)
	case c.Games < 0:
		return fmt.Errorf("%w: games must not be negative", ErrInvalidConfig)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.TopN < 1 {
		c.TopN = 10
	}
	return nil
}

// PlayerReport summarises the games of one player.
type PlayerReport struct {
	Player      Player
	Games       int
	Wins        int
	Draws       int
	Losses      int
	StoreErrors int
	Levels      map[int]int // games per level id
	Final       types.Standing
	LatentSkill float64
	Err         error
}

// Report is the result of a simulation run.
type Report struct {
	RunID       string
	Players     []PlayerReport
	Leaderboard []types.Entry
	Duration    time.Duration
}
