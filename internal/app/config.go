package service

import (
	"strings"
	"time"

	"github.com/okian/ladder/internal/config"
	"github.com/okian/ladder/internal/domain/skill"
)

// OptionsFromConfig maps process configuration onto service options.
func OptionsFromConfig(cfg *config.Config) ([]Option, error) {
	pairs, err := cfg.Pairs()
	if err != nil {
		return nil, err
	}

	driver := strings.ToLower(cfg.StoreDriver)
	source := ""
	switch driver {
	case config.StoreSQLite:
		source = cfg.SQLitePath
	case config.StorePostgres:
		source = cfg.PostgresDSN
	}

	model := skill.NewModel(
		skill.WithInitial(cfg.InitialMu, cfg.InitialSigma),
		skill.WithBeta(cfg.Beta),
		skill.WithTau(cfg.Tau),
		skill.WithDrawProbability(cfg.DrawProbability),
		skill.WithSigmaFloor(cfg.SigmaFloor),
	)

	return []Option{
		WithStoreDriver(driver, source),
		WithStoreTimeout(time.Duration(cfg.StoreTimeoutMS) * time.Millisecond),
		WithModel(model),
		WithBaseline(cfg.Baseline),
		WithHysteresis(cfg.HysteresisThreshold),
		WithRecalibrationBase(cfg.RecalibrationBase),
		WithRecalibrationPairs(pairs),
		WithLevels(cfg.Levels),
	}, nil
}
