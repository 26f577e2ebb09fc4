// Package simulate drives a running overcall server through a full round
// over HTTP and checks the resulting standings.
package simulate

import (
	"time"

	"github.com/okian/overcall/internal/domain/model"
)

// Config holds configuration for a simulated round.
type Config struct {
	BaseURL string        // Base URL of the service
	Teams   int           // Number of teams to provision
	TopN    int           // Leaderboard size to fetch
	Workers int           // Concurrent HTTP workers
	Timeout time.Duration // HTTP request timeout
	Prefix  string        // Team name prefix
	Seed    uint64        // Random seed; 0 picks one
	Bonus   int           // Wicket bonus configured on the server
	Penalty int           // Wicket penalty configured on the server
	Rule    string        // Active prediction rule configured on the server
	Verbose bool          // Log every team
}

// Default settings.
const (
	DefaultBaseURL = "http://localhost:9080"
	DefaultTeams   = 20
	DefaultTopN    = 10
	DefaultWorkers = 8
	DefaultTimeout = 10 * time.Second
	DefaultPrefix  = "sim"
	DefaultBonus   = 10
	DefaultPenalty = 5
)

func (c *Config) withDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Teams <= 0 {
		c.Teams = DefaultTeams
	}
	if c.TopN <= 0 {
		c.TopN = DefaultTopN
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
}

// Stats summarizes one simulated round.
type Stats struct {
	TeamsCreated       int
	PredictionsSent    int
	PredictionsFailed  int
	ScoreChanges       int
	Mismatches         int
	LeaderboardEntries int
	Outcome            model.Outcome
	StartTime          time.Time
	Duration           time.Duration
}
