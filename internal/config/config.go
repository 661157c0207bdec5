// Package config defines the ladder service configuration and its loader.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Store drivers accepted in StoreDriver.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the rating store: memory, sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`
	SQLitePath  string `koanf:"sqlite_path"`
	PostgresDSN string `koanf:"postgres_dsn"`

	// StoreTimeoutMS bounds a single store operation.
	StoreTimeoutMS int `koanf:"store_timeout_ms"`

	// Baseline disables hysteresis and periodic recalibration.
	Baseline bool `koanf:"baseline"`

	// HysteresisThreshold is the minimum sigma gap that justifies switching opponents.
	HysteresisThreshold float64 `koanf:"hysteresis_threshold"`

	// RecalibrationBase b triggers recalibration when games_played mod b^rank_updates == 0.
	RecalibrationBase int `koanf:"recalibration_base"`

	// RecalibrationPairs lists "lower-higher" level pairs separated by commas,
	// e.g. "0-1,1-2,0-2". Empty means adjacent pairs followed by wider gaps.
	RecalibrationPairs string `koanf:"recalibration_pairs"`

	// Levels is the number of opponent tiers seeded for a new player.
	Levels int `koanf:"levels"`

	InitialMu       float64 `koanf:"initial_mu"`
	InitialSigma    float64 `koanf:"initial_sigma"`
	Beta            float64 `koanf:"beta"`
	Tau             float64 `koanf:"tau"`
	DrawProbability float64 `koanf:"draw_probability"`
	SigmaFloor      float64 `koanf:"sigma_floor"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		StoreDriver:         StoreSQLite,
		SQLitePath:          "data/ladder.db",
		StoreTimeoutMS:      3000,
		HysteresisThreshold: 0.5,
		RecalibrationBase:   5,
		Levels:              3,
		InitialMu:           25,
		InitialSigma:        25.0 / 3,
		Beta:                25.0 / 6,
		Tau:                 25.0 / 300,
		DrawProbability:     0.10,
		SigmaFloor:          1e-3,
	}
}

// Validate reports the first invalid setting wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.HysteresisThreshold < 0:
		return fmt.Errorf("%w: hysteresis_threshold must be >= 0", ErrInvalidConfig)
	case c.RecalibrationBase < 2:
		return fmt.Errorf("%w: recalibration_base must be >= 2", ErrInvalidConfig)
	case c.Levels < 1:
		return fmt.Errorf("%w: levels must be >= 1", ErrInvalidConfig)
	case c.InitialSigma <= 0 || c.Beta <= 0:
		return fmt.Errorf("%w: initial_sigma and beta must be > 0", ErrInvalidConfig)
	case c.Tau < 0:
		return fmt.Errorf("%w: tau must be >= 0", ErrInvalidConfig)
	case c.DrawProbability < 0 || c.DrawProbability >= 1:
		return fmt.Errorf("%w: draw_probability must be in [0,1)", ErrInvalidConfig)
	case c.SigmaFloor <= 0:
		return fmt.Errorf("%w: sigma_floor must be > 0", ErrInvalidConfig)
	case c.StoreTimeoutMS <= 0:
		return fmt.Errorf("%w: store_timeout_ms must be > 0", ErrInvalidConfig)
	}

	switch strings.ToLower(c.StoreDriver) {
	case StoreMemory:
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("%w: sqlite_path must not be empty", ErrInvalidConfig)
		}
	case StorePostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("%w: postgres_dsn must not be empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}

	pairs, err := c.Pairs()
	if err != nil {
		return err
	}
	for _, p := range pairs {
		if p[1] >= c.Levels {
			return fmt.Errorf("%w: recalibration pair %d-%d exceeds %d levels", ErrInvalidConfig, p[0], p[1], c.Levels)
		}
	}
	return nil
}

// Pairs parses RecalibrationPairs. It returns nil when the setting is empty.
func (c *Config) Pairs() ([][2]int, error) {
	raw := strings.TrimSpace(c.RecalibrationPairs)
	if raw == "" {
		return nil, nil
	}

	var out [][2]int
	for _, item := range strings.Split(raw, ",") {
		lo, hi, ok := strings.Cut(strings.TrimSpace(item), "-")
		if !ok {
			return nil, fmt.Errorf("%w: recalibration pair %q is not lower-higher", ErrInvalidConfig, item)
		}
		a, errA := strconv.Atoi(strings.TrimSpace(lo))
		b, errB := strconv.Atoi(strings.TrimSpace(hi))
		if errA != nil || errB != nil {
			return nil, fmt.Errorf("%w: recalibration pair %q is not numeric", ErrInvalidConfig, item)
		}
		if a < 0 || a >= b {
			return nil, fmt.Errorf("%w: recalibration pair %q must satisfy 0 <= lower < higher", ErrInvalidConfig, item)
		}
		out = append(out, [2]int{a, b})
	}
	return out, nil
}
