package repository

import (
	"errors"
	"fmt"
)

// Sentinel kinds for store errors.
var (
	ErrNotFound       = errors.New("player not found")
	ErrAlreadyExists  = errors.New("player already exists")
	ErrInvalidRecord  = errors.New("invalid record")
	ErrStoreIO        = errors.New("store i/o failed")
	ErrUnknownBackend = errors.New("unknown store driver")
)

func ioError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreIO, op, err)
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrInvalidRecord) ||
		errors.Is(err, ErrStoreIO)
}
