package model

// LeaderboardEntry is a derived row; it is never stored.
type LeaderboardEntry struct {
	Position int    `json:"position"`
	TeamName string `json:"team_name"`
	Score    int    `json:"score"`
}

// ScoreChange records what scoring did to one team.
type ScoreChange struct {
	TeamName      string `json:"team_name"`
	PredictedRuns int    `json:"predicted_runs"`
	PredictedWkts int    `json:"predicted_wickets"`
	Previous      int    `json:"previous_score"`
	Delta         int    `json:"delta"`
	New           int    `json:"new_score"`
}

// ScoreReport summarizes one ScoreRound invocation.
type ScoreReport struct {
	RoundID     string             `json:"round_id"`
	RoundNumber int                `json:"round_number"`
	Outcome     Outcome            `json:"outcome"`
	Changes     []ScoreChange      `json:"changes"`
	Skipped     int                `json:"skipped"`
	Orphaned    []string           `json:"orphaned,omitempty"`
	Attempts    int                `json:"attempts"`
	Duplicate   bool               `json:"duplicate,omitempty"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}
