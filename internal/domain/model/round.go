package model

import "time"

// Round is one over's prediction cycle. The zero value is the initial
// closed state.
type Round struct {
	ID       string    `json:"round_id"`
	Number   int       `json:"number"`
	Open     bool      `json:"is_open"`
	Scored   bool      `json:"scored"`
	OpenedAt time.Time `json:"opened_at,omitempty"`
	ClosedAt time.Time `json:"closed_at,omitempty"`
}

// AcceptsPredictions reports whether submissions are allowed: the round
// is open and has not been scored yet.
func (r Round) AcceptsPredictions() bool {
	return r.Open && !r.Scored
}

// State returns "open" or "closed".
func (r Round) State() string {
	if r.Open {
		return "open"
	}
	return "closed"
}
