package simulate

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/overcall/internal/domain/model"
	"github.com/okian/overcall/internal/domain/scoring"
	"github.com/okian/overcall/pkg/logger"
)

// skipEvery leaves every n-th team without a prediction.
const skipEvery = 5

type scoreRequest struct {
	ActualRuns    int    `json:"actual_runs"`
	ActualWickets int    `json:"actual_wickets"`
	RequestID     string `json:"request_id"`
}

type scoreResponse struct {
	Report model.ScoreReport `json:"report"`
	Round  *model.Round      `json:"round"`
}

type predictionRequest struct {
	Runs    int `json:"runs"`
	Wickets int `json:"wickets"`
}

type teamRequest struct {
	TeamName string `json:"team_name"`
}

// Run plays one complete round against the server at cfg.BaseURL. Any
// round left open on the server is closed first.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	cfg.withDefaults()
	rule, err := scoring.ParseActiveRule(cfg.Rule)
	if err != nil {
		return nil, err
	}
	engine := scoring.NewEngine(
		scoring.WithWicketBonus(cfg.Bonus),
		scoring.WithWicketPenalty(cfg.Penalty),
		scoring.WithActiveRule(rule),
	)

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed>>1))

	log := logger.Get().Named("simulate")
	stats := &Stats{StartTime: time.Now()}
	c := newClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting simulated round",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("teams", cfg.Teams),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", seed))

	if err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}
	if err := c.do(ctx, http.MethodPost, "/round/close", nil, nil, http.StatusOK); err != nil {
		return stats, fmt.Errorf("close previous round: %w", err)
	}

	names := teamNames(cfg.Prefix, cfg.Teams)
	created := forEach(ctx, cfg.Workers, len(names), func(i int) error {
		return c.do(ctx, http.MethodPost, "/teams", teamRequest{TeamName: names[i]}, nil, http.StatusCreated)
	})
	stats.TeamsCreated = created
	if created != len(names) {
		return stats, fmt.Errorf("created %d of %d teams", created, len(names))
	}

	var round model.Round
	if err := c.do(ctx, http.MethodPost, "/round/open", nil, &round, http.StatusOK); err != nil {
		return stats, fmt.Errorf("open round: %w", err)
	}
	log.Info(ctx, "round opened", logger.String("round", round.ID), logger.Int("number", round.Number))

	predictions := generatePredictions(rng, names)
	sent := forEach(ctx, cfg.Workers, len(predictions), func(i int) error {
		p := predictions[i]
		return c.do(ctx, http.MethodPut, teamPath(p.TeamName, "/prediction"),
			predictionRequest{Runs: p.Runs, Wickets: p.Wickets}, nil, http.StatusOK)
	})
	stats.PredictionsSent = sent
	stats.PredictionsFailed = len(predictions) - sent
	if stats.PredictionsFailed > 0 {
		return stats, fmt.Errorf("%d predictions failed", stats.PredictionsFailed)
	}

	outcome := model.Outcome{
		Runs:    rng.IntN(model.MaxRuns + 1),
		Wickets: rng.IntN(model.MaxWickets + 1),
	}
	stats.Outcome = outcome
	var scored scoreResponse
	req := scoreRequest{ActualRuns: outcome.Runs, ActualWickets: outcome.Wickets, RequestID: uuid.NewString()}
	if err := c.do(ctx, http.MethodPost, "/round/score", req, &scored, http.StatusOK); err != nil {
		return stats, fmt.Errorf("score round: %w", err)
	}
	stats.ScoreChanges = len(scored.Report.Changes)
	log.Info(ctx, "round scored",
		logger.Int("actual_runs", outcome.Runs),
		logger.Int("actual_wickets", outcome.Wickets),
		logger.Int("changes", stats.ScoreChanges),
		logger.Int("attempts", scored.Report.Attempts))

	expected := expectedScores(engine, outcome, names, predictions)
	if err := verify(ctx, c, cfg, expected, stats); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(stats.StartTime)
	log.Info(ctx, "simulation completed",
		logger.Int("teamsCreated", stats.TeamsCreated),
		logger.Int("predictionsSent", stats.PredictionsSent),
		logger.Int("scoreChanges", stats.ScoreChanges),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Duration("duration", stats.Duration))
	return stats, nil
}

func teamNames(prefix string, n int) []string {
	run := uuid.NewString()[:8]
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%s-%s-%03d", prefix, run, i)
	}
	return names
}

func generatePredictions(rng *rand.Rand, names []string) []model.Prediction {
	out := make([]model.Prediction, 0, len(names))
	for i, name := range names {
		if i%skipEvery == skipEvery-1 {
			continue
		}
		out = append(out, model.Prediction{
			TeamName:  name,
			Runs:      rng.IntN(model.MaxRuns + 1),
			Wickets:   rng.IntN(model.MaxWickets + 1),
			Submitted: true,
		})
	}
	return out
}

// forEach runs fn for 0..n-1 on a pool of workers and returns how many
// calls succeeded.
func forEach(ctx context.Context, workers, n int, fn func(i int) error) int {
	log := logger.Get().Named("simulate")
	idx := make(chan int, workers)
	var (
		wg sync.WaitGroup
		ok int64
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				if err := fn(i); err != nil {
					log.Warn(ctx, "request failed", logger.Int("index", i), logger.Error(err))
					continue
				}
				atomic.AddInt64(&ok, 1)
			}
		}()
	}

	func() {
		defer close(idx)
		for i := 0; i < n; i++ {
			select {
			case <-ctx.Done():
				return
			case idx <- i:
			}
		}
	}()
	wg.Wait()
	return int(atomic.LoadInt64(&ok))
}
