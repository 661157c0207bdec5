package repository

import "time"

// Default store configuration constants.
const (
	defaultOpTimeout = 3 * time.Second
	sqliteBusyMS     = 5000
)

// settings are shared by the SQL backends.
type settings struct {
	opTimeout time.Duration
}

// Option applies a configuration option to a SQL store.
type Option func(*settings)

// WithOpTimeout bounds every store call.
func WithOpTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{opTimeout: defaultOpTimeout}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
