package skill

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownOutcome is returned when an outcome label cannot be parsed.
var ErrUnknownOutcome = errors.New("unknown outcome")

// Outcome is a game result from the agent's perspective.
type Outcome int8

// Outcomes.
const (
	Draw Outcome = iota
	Win
	Loss
)

// String returns the lower case label of the outcome.
func (o Outcome) String() string {
	switch o {
	case Win:
		return "win"
	case Loss:
		return "loss"
	case Draw:
		return "draw"
	default:
		return fmt.Sprintf("outcome(%d)", int8(o))
	}
}

// Valid reports whether o is one of Win, Loss or Draw.
func (o Outcome) Valid() bool {
	return o == Win || o == Loss || o == Draw
}

// ParseOutcome parses "win", "loss" or "draw" (case-insensitive).
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "win", "w":
		return Win, nil
	case "loss", "lose", "l":
		return Loss, nil
	case "draw", "d":
		return Draw, nil
	default:
		return Draw, fmt.Errorf("%w: %q", ErrUnknownOutcome, s)
	}
}
