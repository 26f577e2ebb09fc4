package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/overcall/internal/simulate"
	"github.com/okian/overcall/pkg/logger"
)

// Default configuration constants.
const (
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTestTimeout = 5 * time.Minute
)

func main() {
	var (
		baseURL = flag.String("url", simulate.DefaultBaseURL, "Base URL of the service")
		teams   = flag.Int("teams", simulate.DefaultTeams, "Number of teams to provision")
		topN    = flag.Int("top", simulate.DefaultTopN, "Number of leaderboard entries to fetch")
		workers = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout = flag.Duration("timeout", simulate.DefaultTimeout, "HTTP request timeout")
		prefix  = flag.String("prefix", simulate.DefaultPrefix, "Team name prefix")
		seed    = flag.Uint64("seed", 0, "Random seed (0 picks one)")
		bonus   = flag.Int("wicket-bonus", simulate.DefaultBonus, "Wicket bonus configured on the server")
		penalty = flag.Int("wicket-penalty", simulate.DefaultPenalty, "Wicket penalty configured on the server")
		rule    = flag.String("active-rule", "nonzero_runs", "Active prediction rule configured on the server")
		format  = flag.String("log-format", logger.FormatText, "Log format: text or json")
		verbose = flag.Bool("verbose", false, "Log every verified team")
	)
	flag.Usage = func() {
		os.Stderr.WriteString(`overcall round simulator

Plays one round against a running server: closes any open round,
provisions teams, opens a round, submits random predictions, scores a
random outcome and verifies every team's score against local scoring.

Usage:
  go run ./cmd/simulate [options]

Options:
`)
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := logger.Init(logger.WithFormat(*format)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	cfg := simulate.Config{
		BaseURL: *baseURL,
		Teams:   *teams,
		TopN:    *topN,
		Workers: *workers,
		Timeout: *timeout,
		Prefix:  *prefix,
		Seed:    *seed,
		Bonus:   *bonus,
		Penalty: *penalty,
		Rule:    *rule,
		Verbose: *verbose,
	}
	if _, err := simulate.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		os.Exit(1)
	}
}
