// Package ranking derives leaderboard positions from cumulative scores.
package ranking

import (
	"fmt"
	"sort"

	"github.com/okian/overcall/internal/domain/model"
)

// Leaderboard orders teams by score descending and assigns competition
// positions: tied scores share a position and the next distinct score takes
// its 1-based index, so [50,50,40] ranks [1,1,3]. The sort is stable; ties
// keep the order teams were given in.
func Leaderboard(teams []model.Team) []model.LeaderboardEntry {
	sorted := make([]model.Team, len(teams))
	copy(sorted, teams)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	out := make([]model.LeaderboardEntry, len(sorted))
	for i, t := range sorted {
		pos := i + 1
		if i > 0 && t.Score == sorted[i-1].Score {
			pos = out[i-1].Position
		}
		out[i] = model.LeaderboardEntry{Position: pos, TeamName: t.Name, Score: t.Score}
	}
	return out
}

// Top returns at most n leading entries. A non-positive n returns all.
func Top(entries []model.LeaderboardEntry, n int) []model.LeaderboardEntry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[:n]
}

// Find scans the full ordering for a team's entry.
func Find(entries []model.LeaderboardEntry, teamName string) (model.LeaderboardEntry, error) {
	for _, e := range entries {
		if e.TeamName == teamName {
			return e, nil
		}
	}
	return model.LeaderboardEntry{}, fmt.Errorf("%s: %w", teamName, model.ErrTeamNotFound)
}
