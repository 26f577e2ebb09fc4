package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/okian/overcall/internal/domain/model"
	"github.com/okian/overcall/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: score DESC, then creation sequence ASC. "less" means ranks
// earlier, so an in-order traversal yields the leaderboard from best to
// worst with ties in the order teams were created.

type node struct {
	name  string
	score int
	seq   uint64
	prio  uint64
	left  *node
	right *node
}

type teamRecord struct {
	team model.Team
	seq  uint64
}

// less returns true if (aScore, aSeq) should appear before (bScore, bSeq).
func less(aScore int, aSeq uint64, bScore int, bSeq uint64) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aSeq < bSeq
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	return y
}

// namePriority derives a stable heap priority from the team name.
func namePriority(name string, seq uint64) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return h.Sum64() ^ (seq * 0x9E3779B97F4A7C15)
}

func insert(n *node, name string, score int, seq uint64) *node {
	if n == nil {
		return &node{name: name, score: score, seq: seq, prio: namePriority(name, seq)}
	}
	if less(score, seq, n.score, n.seq) {
		n.left = insert(n.left, name, score, seq)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, name, score, seq)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	return n
}

func deleteNode(n *node, score int, seq uint64) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && seq == n.seq:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, score, seq)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, score, seq)
		}
	case less(score, seq, n.score, n.seq):
		n.left = deleteNode(n.left, score, seq)
	default:
		n.right = deleteNode(n.right, score, seq)
	}
	return n
}

// collectAll appends every team in rank order.
func collectAll(n *node, byName map[string]*teamRecord, out *[]model.Team) {
	if n == nil {
		return
	}
	collectAll(n.left, byName, out)
	if rec, ok := byName[n.name]; ok {
		*out = append(*out, rec.team)
	}
	collectAll(n.right, byName, out)
}

// TreapStore keeps teams in a treap keyed by rank order, predictions in a
// map and the round as a single value. All methods are safe for concurrent
// use.
type TreapStore struct {
	mu      sync.RWMutex
	root    *node
	byName  map[string]*teamRecord
	order   []string
	preds   map[string]model.Prediction
	round   model.Round
	nextSeq uint64
	now     func() time.Time
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{
		byName: make(map[string]*teamRecord),
		preds:  make(map[string]model.Prediction),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func observe(op string, start time.Time) {
	metrics.RecordStoreOperation(op, float64(time.Since(start).Milliseconds()))
}

// CreateTeam implements Store.CreateTeam.
func (s *TreapStore) CreateTeam(ctx context.Context, name string) (model.Team, error) {
	defer observe("create_team", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[name]; ok {
		return model.Team{}, fmt.Errorf("team %s: %w", name, ErrAlreadyExists)
	}
	s.nextSeq++
	t := model.Team{Name: name, CreatedAt: s.now()}
	s.byName[name] = &teamRecord{team: t, seq: s.nextSeq}
	s.order = append(s.order, name)
	s.root = insert(s.root, name, 0, s.nextSeq)
	return t, nil
}

// GetTeam implements Store.GetTeam.
func (s *TreapStore) GetTeam(ctx context.Context, name string) (model.Team, error) {
	defer observe("get_team", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byName[name]
	if !ok {
		return model.Team{}, fmt.Errorf("team %s: %w", name, ErrNotFound)
	}
	return rec.team, nil
}

// ListTeams implements Store.ListTeams with an in-order traversal.
func (s *TreapStore) ListTeams(ctx context.Context) ([]model.Team, error) {
	defer observe("list_teams", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Team, 0, len(s.byName))
	collectAll(s.root, s.byName, &out)
	return out, nil
}

// setScore moves a team within the treap. Caller holds the write lock.
func (s *TreapStore) setScore(rec *teamRecord, score int) {
	s.root = deleteNode(s.root, rec.team.Score, rec.seq)
	rec.team.Score = score
	rec.team.Version++
	s.root = insert(s.root, rec.team.Name, score, rec.seq)
}

// UpdateTeamScore implements Store.UpdateTeamScore.
func (s *TreapStore) UpdateTeamScore(ctx context.Context, name string, score int) error {
	defer observe("update_team_score", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("team %s: %w", name, ErrNotFound)
	}
	s.setScore(rec, score)
	return nil
}

// ApplyScores implements Store.ApplyScores. Every version is checked
// before anything is written.
func (s *TreapStore) ApplyScores(ctx context.Context, updates []ScoreUpdate) error {
	defer observe("apply_scores", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range updates {
		rec, ok := s.byName[u.TeamName]
		if !ok {
			return fmt.Errorf("team %s: %w", u.TeamName, ErrNotFound)
		}
		if rec.team.Version != u.ExpectedVersion {
			return fmt.Errorf("team %s at version %d, expected %d: %w",
				u.TeamName, rec.team.Version, u.ExpectedVersion, ErrVersionConflict)
		}
	}
	for _, u := range updates {
		s.setScore(s.byName[u.TeamName], u.Score)
	}
	return nil
}

// GetPrediction implements Store.GetPrediction.
func (s *TreapStore) GetPrediction(ctx context.Context, teamName string) (model.Prediction, error) {
	defer observe("get_prediction", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.preds[teamName]
	if !ok {
		return model.Prediction{}, fmt.Errorf("prediction for %s: %w", teamName, ErrNotFound)
	}
	return p, nil
}

// ListPredictions implements Store.ListPredictions.
func (s *TreapStore) ListPredictions(ctx context.Context) ([]model.Prediction, error) {
	defer observe("list_predictions", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Prediction, 0, len(s.preds))
	for _, name := range s.order {
		if p, ok := s.preds[name]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// UpsertPrediction implements Store.UpsertPrediction.
func (s *TreapStore) UpsertPrediction(ctx context.Context, p model.Prediction) error {
	defer observe("upsert_prediction", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.round.AcceptsPredictions() {
		return model.ErrRoundClosed
	}
	if _, ok := s.byName[p.TeamName]; !ok {
		return fmt.Errorf("team %s: %w", p.TeamName, ErrNotFound)
	}
	p.UpdatedAt = s.now()
	s.preds[p.TeamName] = p
	return nil
}

// ResetAllPredictions implements Store.ResetAllPredictions.
func (s *TreapStore) ResetAllPredictions(ctx context.Context) error {
	defer observe("reset_predictions", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for name, p := range s.preds {
		p = p.Reset()
		p.UpdatedAt = now
		s.preds[name] = p
	}
	return nil
}

// GetRound implements Store.GetRound.
func (s *TreapStore) GetRound(ctx context.Context) (model.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.round, nil
}

// SaveRound implements Store.SaveRound.
func (s *TreapStore) SaveRound(ctx context.Context, r model.Round) error {
	defer observe("save_round", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.round = r
	return nil
}

// Count returns the total number of teams.
func (s *TreapStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byName), nil
}

// Close is a no-op for the in-memory store.
func (s *TreapStore) Close() error {
	return nil
}
