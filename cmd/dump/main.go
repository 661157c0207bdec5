// Command dump prints stored players and their opponent tiers.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	repository "github.com/okian/ladder/internal/adapters/repository"
	"github.com/okian/ladder/internal/config"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/logger"
)

// Store is what dump reads from.
type Store interface {
	GetPlayer(ctx context.Context, name, surname string) (model.AgentRecord, error)
	GetOpponents(ctx context.Context, playerID int64) ([]model.OpponentRecord, error)
	ListPlayers(ctx context.Context) ([]model.AgentRecord, error)
}

type playerDump struct {
	model.AgentRecord
	Opponents []model.OpponentRecord `json:"opponents"`
}

func main() {
	var (
		name    = flag.StringP("name", "n", "", "player name; empty dumps every player")
		surname = flag.StringP("surname", "s", "", "player surname")
		asJSON  = flag.Bool("json", false, "print JSON instead of text")
	)
	flag.Parse()

	_ = godotenv.Load()
	ctx := context.Background()

	if err := run(ctx, os.Stdout, *name, *surname, *asJSON); err != nil {
		os.Stderr.WriteString("dump failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, name, surname string, asJSON bool) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(os.Stderr)); err != nil {
		return err
	}
	_ = logger.SetLevelString(cfg.LogLevel)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return dump(ctx, store, out, name, surname, asJSON)
}

// openStore opens the configured backend with the same per-call timeout the
// service uses.
func openStore(ctx context.Context, cfg *config.Config) (repository.Backend, error) {
	source := cfg.SQLitePath
	if cfg.StoreDriver == config.StorePostgres {
		source = cfg.PostgresDSN
	}
	timeout := time.Duration(cfg.StoreTimeoutMS) * time.Millisecond
	return repository.Open(ctx, cfg.StoreDriver, source, repository.WithOpTimeout(timeout))
}

// dump writes one player, or every player when name is empty.
func dump(ctx context.Context, store Store, out io.Writer, name, surname string, asJSON bool) error {
	var players []model.AgentRecord
	if name == "" {
		all, err := store.ListPlayers(ctx)
		if err != nil {
			return err
		}
		players = all
	} else {
		p, err := store.GetPlayer(ctx, name, surname)
		if err != nil {
			return err
		}
		players = []model.AgentRecord{p}
	}

	dumps := make([]playerDump, 0, len(players))
	for _, p := range players {
		opps, err := store.GetOpponents(ctx, p.ID)
		if err != nil {
			return err
		}
		model.SortByLevel(opps)
		dumps = append(dumps, playerDump{AgentRecord: p, Opponents: opps})
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(dumps)
	}

	for _, d := range dumps {
		fmt.Fprintln(out, "#########################")
		fmt.Fprintf(out, "%s %s\n\tmu: %.6f\n\tsigma: %.6f\n\tgames_played: %d\n\trank_updates: %d\n",
			d.Name, d.Surname, d.Rating.Mu, d.Rating.Sigma, d.GamesPlayed, d.RankUpdates)
		for _, o := range d.Opponents {
			fmt.Fprintf(out, "level: %d\n    mu: %.6f\n    sigma: %.6f\n", o.LevelID, o.Rating.Mu, o.Rating.Sigma)
		}
		fmt.Fprintln(out, "#########################")
	}
	return nil
}
