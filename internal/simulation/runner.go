package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	repository "github.com/okian/ladder/internal/adapters/repository"
	"github.com/okian/ladder/internal/domain/matchmaking"
	"github.com/okian/ladder/internal/domain/skill"
	"github.com/okian/ladder/pkg/logger"
)

// progressEvery is the game interval of non-verbose progress logs.
const progressEvery = 10

// Run plays cfg.Games games for every player against drv. Players run
// concurrently, bounded by cfg.Workers, while each player's games are
// strictly sequential. A player whose game fails stops; the others go on.
func Run(ctx context.Context, drv Driver, cfg Config) (*Report, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := logger.Get().Named("simulation").With(logger.String("run_id", runID))
	start := time.Now()

	log.Info(ctx, "simulation started",
		logger.Int("players", len(cfg.Players)),
		logger.Int("games", cfg.Games),
		logger.Int("workers", cfg.Workers),
		logger.Bool("create", cfg.Create),
	)

	report := &Report{RunID: runID, Players: make([]PlayerReport, len(cfg.Players))}

	jobs := make(chan int, cfg.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				report.Players[idx] = playPlayer(ctx, drv, cfg, idx, runID, log)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range cfg.Players {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()
	wg.Wait()

	var errs []error
	for i := range report.Players {
		pr := &report.Players[i]
		if pr.Player == (Player{}) {
			pr.Player = cfg.Players[i]
			pr.Err = ctx.Err()
		}
		if pr.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", pr.Player, pr.Err))
		}
	}

	lb, err := drv.Leaderboard(ctx, cfg.TopN)
	if err != nil {
		log.Warn(ctx, "leaderboard unavailable", logger.Error(err))
	}
	report.Leaderboard = lb
	report.Duration = time.Since(start)

	log.Info(ctx, "simulation finished",
		logger.String("duration", report.Duration.String()),
		logger.Int("failed_players", len(errs)),
	)
	return report, errors.Join(errs...)
}

func playPlayer(ctx context.Context, drv Driver, cfg Config, idx int, runID string, log logger.Logger) PlayerReport {
	p := cfg.Players[idx]
	pr := PlayerReport{Player: p, Levels: make(map[int]int)}
	plog := log.With(logger.String("player", p.String()))

	if cfg.Create {
		err := drv.CreatePlayer(ctx, p.Name, p.Surname)
		switch {
		case err == nil:
			plog.Info(ctx, "player created")
		case errors.Is(err, repository.ErrAlreadyExists):
			plog.Debug(ctx, "player already exists")
		default:
			pr.Err = err
			return pr
		}
	}

	walker := NewWalker(cfg.Seed+uint64(idx), cfg.Walker...)
	for g := 1; g <= cfg.Games; g++ {
		level, err := drv.ChooseOpponent(ctx, p.Name, p.Surname)
		if err != nil {
			pr.Err = err
			break
		}
		outcome, reward, err := walker.Play(ctx, level)
		if err != nil {
			pr.Err = err
			break
		}

		key := fmt.Sprintf("%s-%d", runID, g)
		st, err := drv.RecordOutcome(ctx, p.Name, p.Surname, outcome, reward, key)
		if err != nil && !errors.Is(err, matchmaking.ErrStoreIO) {
			pr.Err = err
			break
		}
		if err != nil {
			pr.StoreErrors++
			plog.Warn(ctx, "game applied but not persisted", logger.Int("game", g), logger.Error(err))
		}

		pr.Games++
		pr.Levels[level]++
		switch outcome {
		case skill.Win:
			pr.Wins++
		case skill.Loss:
			pr.Losses++
		default:
			pr.Draws++
		}
		if st.Name != "" {
			pr.Final = st
		}

		if cfg.Verbose || g%progressEvery == 0 || g == cfg.Games {
			plog.Info(ctx, "game played",
				logger.Int("game", g),
				logger.Int("level", level),
				logger.String("outcome", outcome.String()),
				logger.Float64("reward", reward),
				logger.Float64("mu", st.Mu),
				logger.Float64("sigma", st.Sigma),
				logger.Float64("latent_skill", walker.Skill()),
			)
		}
	}
	pr.LatentSkill = walker.Skill()
	return pr
}
