// Package repository defines the persistence contract for teams,
// predictions and the round, and its implementations.
package repository

import (
	"context"

	"github.com/okian/overcall/internal/domain/model"
)

// ScoreUpdate is one team's new score, guarded by the version read before
// the score was computed.
type ScoreUpdate struct {
	TeamName        string
	Score           int
	ExpectedVersion int64
}

// Store provides read/write access to the game state.
type Store interface {
	// CreateTeam provisions a team with a zero score.
	// Returns ErrAlreadyExists if the name is taken.
	CreateTeam(ctx context.Context, name string) (model.Team, error)
	// GetTeam returns ErrNotFound if the team is unknown.
	GetTeam(ctx context.Context, name string) (model.Team, error)
	// ListTeams returns every team ordered by score desc. Ties keep
	// creation order.
	ListTeams(ctx context.Context) ([]model.Team, error)
	// UpdateTeamScore sets a team's score unconditionally.
	UpdateTeamScore(ctx context.Context, name string, score int) error
	// ApplyScores applies all updates or none. Returns ErrVersionConflict if
	// any team changed since its version was read.
	ApplyScores(ctx context.Context, updates []ScoreUpdate) error

	// GetPrediction returns ErrNotFound if the team has never submitted.
	GetPrediction(ctx context.Context, teamName string) (model.Prediction, error)
	// ListPredictions returns every prediction row in team creation order.
	ListPredictions(ctx context.Context) ([]model.Prediction, error)
	// UpsertPrediction creates or overwrites a team's prediction. The write
	// is conditional on the stored round being open and returns
	// model.ErrRoundClosed otherwise.
	UpsertPrediction(ctx context.Context, p model.Prediction) error
	// ResetAllPredictions zeroes every prediction row without deleting it.
	ResetAllPredictions(ctx context.Context) error

	// GetRound returns the current round; the zero Round if none was saved.
	GetRound(ctx context.Context) (model.Round, error)
	// SaveRound replaces the current round.
	SaveRound(ctx context.Context, r model.Round) error

	// Count returns the number of teams.
	Count(ctx context.Context) (int, error)
	// Close releases resources held by the store.
	Close() error
}
