package simulation

import "errors"

// Sentinel kinds for simulation errors.
var (
	ErrInvalidConfig    = errors.New("invalid simulation config")
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	ErrInFlight         = errors.New("report still in flight")
)
