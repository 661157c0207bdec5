package repository

import (
	"context"
	"fmt"
	"strings"
)

// Supported store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the backend named by driver. source is the sqlite path or the
// postgres DSN and is ignored by the memory driver.
func Open(ctx context.Context, driver, source string, opts ...Option) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite, "sqlite3":
		s, err := NewSQLiteStore(ctx, source, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres, "pg", "postgresql":
		s, err := NewPostgresStore(ctx, source, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, driver)
	}
}
