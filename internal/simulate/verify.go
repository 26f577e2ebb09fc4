package simulate

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/overcall/internal/domain/model"
	"github.com/okian/overcall/internal/domain/ranking"
	"github.com/okian/overcall/internal/domain/scoring"
	"github.com/okian/overcall/pkg/logger"
)

// expectedScores replays the round locally for freshly created teams.
func expectedScores(engine *scoring.Engine, outcome model.Outcome, names []string, predictions []model.Prediction) map[string]int {
	teams := make(map[string]model.Team, len(names))
	expected := make(map[string]int, len(names))
	for _, n := range names {
		teams[n] = model.Team{Name: n}
		expected[n] = 0
	}
	for _, ch := range engine.Score(outcome, predictions, teams).Changes {
		expected[ch.TeamName] = ch.New
	}
	return expected
}

// verify compares server scores against expected and checks the shape of
// the leaderboard.
func verify(ctx context.Context, c *client, cfg Config, expected map[string]int, stats *Stats) error {
	log := logger.Get().Named("simulate")

	local := make([]model.Team, 0, len(expected))
	for name, score := range expected {
		var entry model.LeaderboardEntry
		if err := c.do(ctx, http.MethodGet, teamPath(name, "/rank"), nil, &entry, http.StatusOK); err != nil {
			return fmt.Errorf("rank %s: %w", name, err)
		}
		if entry.Score != score {
			stats.Mismatches++
			log.Warn(ctx, "score mismatch",
				logger.String("team", name),
				logger.Int("expected", score),
				logger.Int("actual", entry.Score))
		} else if cfg.Verbose {
			log.Info(ctx, "team verified",
				logger.String("team", name),
				logger.Int("score", entry.Score),
				logger.Int("position", entry.Position))
		}
		local = append(local, model.Team{Name: name, Score: score})
	}

	var board []model.LeaderboardEntry
	path := "/leaderboard?limit=" + strconv.Itoa(cfg.TopN)
	if err := c.do(ctx, http.MethodGet, path, nil, &board, http.StatusOK); err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}
	stats.LeaderboardEntries = len(board)
	if err := checkStandings(board); err != nil {
		return err
	}

	top := ranking.Top(ranking.Leaderboard(local), cfg.TopN)
	for _, e := range top {
		log.Info(ctx, "simulated standing",
			logger.Int("position", e.Position),
			logger.String("team", e.TeamName),
			logger.Int("score", e.Score))
	}

	if stats.Mismatches > 0 {
		return fmt.Errorf("%d of %d teams scored differently than expected", stats.Mismatches, len(expected))
	}
	return nil
}

// checkStandings verifies descending scores and competition positions.
func checkStandings(board []model.LeaderboardEntry) error {
	for i, e := range board {
		if i == 0 {
			if e.Position != 1 {
				return fmt.Errorf("leaderboard starts at position %d", e.Position)
			}
			continue
		}
		prev := board[i-1]
		switch {
		case e.Score > prev.Score:
			return fmt.Errorf("leaderboard not sorted at entry %d", i)
		case e.Score == prev.Score && e.Position != prev.Position:
			return fmt.Errorf("tied entries %d and %d have different positions", i-1, i)
		case e.Score < prev.Score && e.Position != i+1:
			return fmt.Errorf("entry %d has position %d, want %d", i, e.Position, i+1)
		}
	}
	return nil
}
