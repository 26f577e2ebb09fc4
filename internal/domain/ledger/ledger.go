// Package ledger holds the current round and each team's prediction for it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/overcall/internal/adapters/repository"
	"github.com/okian/overcall/internal/domain/model"
)

// Store is the subset of repository.Store the ledger needs.
type Store interface {
	GetTeam(ctx context.Context, name string) (model.Team, error)
	GetPrediction(ctx context.Context, teamName string) (model.Prediction, error)
	UpsertPrediction(ctx context.Context, p model.Prediction) error
	ResetAllPredictions(ctx context.Context) error
	GetRound(ctx context.Context) (model.Round, error)
	SaveRound(ctx context.Context, r model.Round) error
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithTimeout bounds every store call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		if d >= 0 {
			l.timeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// Ledger gates predictions on the round state. Submissions share a read
// lock; round transitions take the write lock so no submit interleaves
// with a close.
type Ledger struct {
	mu      sync.RWMutex
	store   Store
	timeout time.Duration
	now     func() time.Time
}

// New creates a ledger over store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:   store,
		timeout: 2 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.timeout)
}

// Submit records a prediction for team in the open round. Checks run in
// order: round open, value range, team known.
func (l *Ledger) Submit(ctx context.Context, team string, runs, wickets int) (model.Prediction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ctx, cancel := l.bound(ctx)
	defer cancel()

	r, err := l.store.GetRound(ctx)
	if err != nil {
		return model.Prediction{}, repository.Unavailable(err)
	}
	if !r.AcceptsPredictions() {
		return model.Prediction{}, model.ErrRoundClosed
	}
	if err := model.ValidateRunsWickets(runs, wickets); err != nil {
		return model.Prediction{}, err
	}
	if _, err := l.store.GetTeam(ctx, team); err != nil {
		return model.Prediction{}, teamErr(team, err)
	}

	p := model.Prediction{TeamName: team, Runs: runs, Wickets: wickets, Submitted: true}
	if err := l.store.UpsertPrediction(ctx, p); err != nil {
		if errors.Is(err, model.ErrRoundClosed) {
			return model.Prediction{}, model.ErrRoundClosed
		}
		return model.Prediction{}, teamErr(team, err)
	}
	p.UpdatedAt = l.now()
	return p, nil
}

// Prediction returns the team's current prediction. A team that has not
// submitted gets the zero prediction.
func (l *Ledger) Prediction(ctx context.Context, team string) (model.Prediction, error) {
	ctx, cancel := l.bound(ctx)
	defer cancel()

	if _, err := l.store.GetTeam(ctx, team); err != nil {
		return model.Prediction{}, teamErr(team, err)
	}
	p, err := l.store.GetPrediction(ctx, team)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Prediction{TeamName: team}, nil
	}
	if err != nil {
		return model.Prediction{}, repository.Unavailable(err)
	}
	return p, nil
}

// Round returns the current round.
func (l *Ledger) Round(ctx context.Context) (model.Round, error) {
	ctx, cancel := l.bound(ctx)
	defer cancel()

	r, err := l.store.GetRound(ctx)
	if err != nil {
		return model.Round{}, repository.Unavailable(err)
	}
	return r, nil
}

// Open starts a new round. Opening an open round changes nothing and
// reports changed=false.
func (l *Ledger) Open(ctx context.Context) (r model.Round, changed bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ctx, cancel := l.bound(ctx)
	defer cancel()

	cur, err := l.store.GetRound(ctx)
	if err != nil {
		return model.Round{}, false, repository.Unavailable(err)
	}
	if cur.Open {
		return cur, false, nil
	}
	next := model.Round{
		ID:       uuid.NewString(),
		Number:   cur.Number + 1,
		Open:     true,
		OpenedAt: l.now(),
	}
	if err := l.store.SaveRound(ctx, next); err != nil {
		return model.Round{}, false, repository.Unavailable(err)
	}
	return next, true, nil
}

// CloseAndClear closes the round and resets every prediction to zero.
// The reset always runs so a retried close finishes a failed one;
// changed reports whether the round was open.
func (l *Ledger) CloseAndClear(ctx context.Context) (r model.Round, changed bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ctx, cancel := l.bound(ctx)
	defer cancel()

	cur, err := l.store.GetRound(ctx)
	if err != nil {
		return model.Round{}, false, repository.Unavailable(err)
	}
	if cur.Open {
		cur.Open = false
		cur.ClosedAt = l.now()
		if err := l.store.SaveRound(ctx, cur); err != nil {
			return model.Round{}, false, repository.Unavailable(err)
		}
		changed = true
	}
	if err := l.store.ResetAllPredictions(ctx); err != nil {
		return model.Round{}, changed, repository.Unavailable(err)
	}
	return cur, changed, nil
}

// MarkScored flags the round roundID as scored. A round opened since
// is left alone.
func (l *Ledger) MarkScored(ctx context.Context, roundID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ctx, cancel := l.bound(ctx)
	defer cancel()

	cur, err := l.store.GetRound(ctx)
	if err != nil {
		return repository.Unavailable(err)
	}
	if cur.ID != roundID || cur.Scored {
		return nil
	}
	cur.Scored = true
	if err := l.store.SaveRound(ctx, cur); err != nil {
		return repository.Unavailable(err)
	}
	return nil
}

func teamErr(team string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", team, model.ErrTeamNotFound)
	}
	return repository.Unavailable(err)
}
