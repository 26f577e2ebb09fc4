// Package scoring turns an outcome and the round's predictions into score
// changes.
package scoring

import (
	"fmt"
	"strings"

	"github.com/okian/overcall/internal/domain/model"
)

// Default scoring configuration constants.
const (
	defaultWicketBonus   = 10
	defaultWicketPenalty = 5
)

// ActiveRule decides which predictions take part in scoring.
type ActiveRule int

const (
	// ActiveNonZeroRuns treats a prediction as active when runs != 0. A team
	// that predicted zero runs is indistinguishable from one that never
	// submitted and is skipped.
	ActiveNonZeroRuns ActiveRule = iota
	// ActiveSubmitted uses the explicit submitted flag.
	ActiveSubmitted
)

// String returns the configuration name of the rule.
func (r ActiveRule) String() string {
	switch r {
	case ActiveSubmitted:
		return "submitted"
	default:
		return "nonzero_runs"
	}
}

// ParseActiveRule maps a configuration value onto an ActiveRule.
func ParseActiveRule(s string) (ActiveRule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nonzero_runs":
		return ActiveNonZeroRuns, nil
	case "submitted":
		return ActiveSubmitted, nil
	default:
		return ActiveNonZeroRuns, fmt.Errorf("unknown active rule: %s", s)
	}
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithWicketBonus sets the points awarded for an exact wicket prediction.
func WithWicketBonus(points int) Option {
	return func(e *Engine) {
		if points >= 0 {
			e.wicketBonus = points
		}
	}
}

// WithWicketPenalty sets the points deducted for a wrong wicket prediction.
func WithWicketPenalty(points int) Option {
	return func(e *Engine) {
		if points >= 0 {
			e.wicketPenalty = points
		}
	}
}

// WithActiveRule selects how active predictions are recognised.
func WithActiveRule(rule ActiveRule) Option {
	return func(e *Engine) {
		e.activeRule = rule
	}
}

// Result is the outcome of scoring a set of predictions.
type Result struct {
	Changes []model.ScoreChange
	// Inactive counts predictions skipped by the active rule.
	Inactive int
	// Orphaned lists active predictions whose team is unknown.
	Orphaned []string
}

// Scorer computes score changes for a round.
type Scorer interface {
	Score(outcome model.Outcome, predictions []model.Prediction, teams map[string]model.Team) Result
}

// Engine implements Scorer with the run-error and wicket bonus rules.
type Engine struct {
	wicketBonus   int
	wicketPenalty int
	activeRule    ActiveRule
}

// NewEngine creates a scoring engine with configuration options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		wicketBonus:   defaultWicketBonus,
		wicketPenalty: defaultWicketPenalty,
		activeRule:    ActiveNonZeroRuns,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Active reports whether p takes part in scoring.
func (e *Engine) Active(p model.Prediction) bool {
	if e.activeRule == ActiveSubmitted {
		return p.Submitted
	}
	return p.Runs != 0
}

// Delta computes the change to a team's score for one prediction.
// Run error is absolute, so an exact run guess costs nothing.
func (e *Engine) Delta(p model.Prediction, o model.Outcome) int {
	delta := -abs(o.Runs - p.Runs)
	if p.Wickets == o.Wickets {
		delta += e.wicketBonus
	} else {
		delta -= e.wicketPenalty
	}
	return delta
}

// Apply adds delta to score and floors the result at zero.
func Apply(score, delta int) int {
	if s := score + delta; s > 0 {
		return s
	}
	return 0
}

// Score computes the change for every active prediction. Predictions are
// processed in the order given; teams is keyed by team name.
func (e *Engine) Score(o model.Outcome, predictions []model.Prediction, teams map[string]model.Team) Result {
	res := Result{Changes: make([]model.ScoreChange, 0, len(predictions))}
	for _, p := range predictions {
		if !e.Active(p) {
			res.Inactive++
			continue
		}
		t, ok := teams[p.TeamName]
		if !ok {
			res.Orphaned = append(res.Orphaned, p.TeamName)
			continue
		}
		delta := e.Delta(p, o)
		res.Changes = append(res.Changes, model.ScoreChange{
			TeamName:      t.Name,
			PredictedRuns: p.Runs,
			PredictedWkts: p.Wickets,
			Previous:      t.Score,
			Delta:         delta,
			New:           Apply(t.Score, delta),
		})
	}
	return res
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
