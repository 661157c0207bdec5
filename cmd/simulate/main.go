// Command simulate plays simulated walkers against the ladder, either over
// HTTP (--url) or in process against the configured store.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	service "github.com/okian/ladder/internal/app"
	"github.com/okian/ladder/internal/config"
	"github.com/okian/ladder/internal/simulation"
	"github.com/okian/ladder/pkg/logger"
)

const defaultTimeout = 30 * time.Second

func main() {
	var (
		baseURL   = flag.String("url", "", "ladder server URL; empty plays in process against the configured store")
		name      = flag.String("name", "walker", "player name, or name prefix when --players > 1")
		surname   = flag.String("surname", "sim", "player surname")
		players   = flag.Int("players", 1, "number of simulated players")
		games     = flag.Int("games", 100, "games per player")
		workers   = flag.Int("workers", 4, "players simulated at the same time")
		create    = flag.Bool("create", false, "create missing players with default ratings")
		seed      = flag.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
		skillInit = flag.Float64("skill", 1.0, "initial latent skill of each walker")
		learnRate = flag.Float64("learn-rate", 0.02, "latent skill gained per game on level 0")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		topN      = flag.Int("top", 10, "leaderboard entries to print")
		verbose   = flag.BoolP("verbose", "v", false, "log every game")
	)
	flag.Parse()

	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *baseURL, simulation.Config{
		Players: simulation.Players(*name, *surname, *players),
		Games:   *games,
		Workers: *workers,
		Create:  *create,
		Seed:    *seed,
		TopN:    *topN,
		Verbose: *verbose,
		Walker: []simulation.WalkerOption{
			simulation.WithSkill(*skillInit),
			simulation.WithLearnRate(*learnRate),
		},
	}, *timeout); err != nil {
		os.Stderr.WriteString("simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context, baseURL string, cfg simulation.Config, timeout time.Duration) error {
	appCfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.WithFormat(appCfg.LogFormat)); err != nil {
		return err
	}
	_ = logger.SetLevelString(appCfg.LogLevel)

	var drv simulation.Driver
	if baseURL != "" {
		client := simulation.NewHTTPClient(baseURL, timeout)
		if err := client.Health(ctx); err != nil {
			return fmt.Errorf("service health check failed: %w", err)
		}
		drv = client
	} else {
		opts, err := service.OptionsFromConfig(appCfg)
		if err != nil {
			return err
		}
		svc := service.New(opts...)
		if err := svc.Start(ctx); err != nil {
			return err
		}
		defer svc.Stop(context.Background())
		drv = simulation.NewLocalDriver(svc)
	}

	report, err := simulation.Run(ctx, drv, cfg)
	if report != nil {
		printReport(os.Stdout, report)
	}
	return err
}

func printReport(out io.Writer, r *simulation.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "run %s finished in %s\n\n", r.RunID, r.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, "PLAYER\tGAMES\tW/D/L\tLEVELS\tMU\tSIGMA\tRANK UPDATES\tLATENT\tERROR")
	for _, p := range r.Players {
		errText := "-"
		if p.Err != nil {
			errText = p.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%d\t%d/%d/%d\t%s\t%.3f\t%.3f\t%d\t%.3f\t%s\n",
			p.Player, p.Games, p.Wins, p.Draws, p.Losses, levelMix(p.Levels),
			p.Final.Mu, p.Final.Sigma, p.Final.RankUpdates, p.LatentSkill, errText)
	}
	if len(r.Leaderboard) > 0 {
		fmt.Fprintln(w, "\nRANK\tPLAYER\tSCORE\tMU\tSIGMA\tGAMES")
		for _, e := range r.Leaderboard {
			fmt.Fprintf(w, "%d\t%s %s\t%.3f\t%.3f\t%.3f\t%d\n", e.Rank, e.Name, e.Surname, e.Score, e.Mu, e.Sigma, e.GamesPlayed)
		}
	}
	_ = w.Flush()
}

// levelMix renders games per level as "0:12 1:30".
func levelMix(levels map[int]int) string {
	ids := make([]int, 0, len(levels))
	for id := range levels {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	s := ""
	for i, id := range ids {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%d:%d", id, levels[id])
	}
	if s == "" {
		return "-"
	}
	return s
}
