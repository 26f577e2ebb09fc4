package model

import (
	"fmt"
	"time"
)

// Legal ranges for one over: six balls of at most six runs, and at most
// four wickets in the format played here.
const (
	MinRuns    = 0
	MaxRuns    = 36
	MinWickets = 0
	MaxWickets = 4
)

// Prediction is a team's guess for the current round.
type Prediction struct {
	TeamName  string    `json:"team_name"`
	Runs      int       `json:"runs"`
	Wickets   int       `json:"wickets"`
	Submitted bool      `json:"submitted"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Outcome is the administrator-supplied result of a round.
type Outcome struct {
	Runs    int `json:"actual_runs"`
	Wickets int `json:"actual_wickets"`
}

// ValidateRunsWickets checks runs and wickets against the legal domain.
func ValidateRunsWickets(runs, wickets int) error {
	if runs < MinRuns || runs > MaxRuns {
		return fmt.Errorf("runs %d not in [%d,%d]: %w", runs, MinRuns, MaxRuns, ErrInvalidRange)
	}
	if wickets < MinWickets || wickets > MaxWickets {
		return fmt.Errorf("wickets %d not in [%d,%d]: %w", wickets, MinWickets, MaxWickets, ErrInvalidRange)
	}
	return nil
}

// Validate checks the outcome against the legal domain.
func (o Outcome) Validate() error {
	return ValidateRunsWickets(o.Runs, o.Wickets)
}

// Reset returns the prediction cleared for the next round. The row is kept.
func (p Prediction) Reset() Prediction {
	p.Runs = 0
	p.Wickets = 0
	p.Submitted = false
	return p
}
