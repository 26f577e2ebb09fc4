package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/overcall/internal/adapters/mq/broker"
	"github.com/okian/overcall/internal/adapters/repository"
	"github.com/okian/overcall/internal/domain/model"
	"github.com/okian/overcall/internal/domain/ranking"
	"github.com/okian/overcall/pkg/logger"
	"github.com/okian/overcall/pkg/metrics"
)

// CreateTeam provisions a team with a zero score.
func (s *Service) CreateTeam(ctx context.Context, name string) (model.Team, error) {
	name, err := model.NormalizeTeamName(name)
	if err != nil {
		return model.Team{}, err
	}

	bctx, cancel := s.bound(ctx)
	defer cancel()
	t, err := s.store.CreateTeam(bctx, name)
	switch {
	case errors.Is(err, repository.ErrAlreadyExists):
		return model.Team{}, fmt.Errorf("%s: %w", name, model.ErrTeamExists)
	case err != nil:
		metrics.RecordStoreError("create_team")
		return model.Team{}, repository.Unavailable(err)
	}

	s.logger.Info(ctx, "team created", logger.String("team", name))
	s.publish(ctx, broker.TypeTeamCreated, "", name, nil)
	return t, nil
}

// Team returns one team.
func (s *Service) Team(ctx context.Context, name string) (model.Team, error) {
	bctx, cancel := s.bound(ctx)
	defer cancel()
	t, err := s.store.GetTeam(bctx, name)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return model.Team{}, fmt.Errorf("%s: %w", name, model.ErrTeamNotFound)
	case err != nil:
		return model.Team{}, repository.Unavailable(err)
	}
	return t, nil
}

// SubmitPrediction records a team's guess for the open round.
func (s *Service) SubmitPrediction(ctx context.Context, team string, runs, wickets int) (model.Prediction, error) {
	p, err := s.ledger.Submit(ctx, team, runs, wickets)
	if err != nil {
		metrics.RecordPredictionRejected(rejectReason(err))
		s.logger.Debug(ctx, "prediction rejected",
			logger.String("team", team),
			logger.Int("runs", runs),
			logger.Int("wickets", wickets),
			logger.Error(err),
		)
		return model.Prediction{}, err
	}
	metrics.RecordPredictionSubmitted()

	// Other teams see that a prediction landed, not its value.
	round, err := s.ledger.Round(ctx)
	if err != nil {
		s.logger.Warn(ctx, "prediction stored but event not published",
			logger.String("team", team), logger.Error(err))
		return p, nil
	}
	s.publish(ctx, broker.TypePredictionSubmitted, round.ID, team, nil)
	return p, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, model.ErrRoundClosed):
		return "round_closed"
	case errors.Is(err, model.ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, model.ErrTeamNotFound):
		return "team_not_found"
	case errors.Is(err, model.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "other"
	}
}

// Prediction returns a team's current prediction.
func (s *Service) Prediction(ctx context.Context, team string) (model.Prediction, error) {
	return s.ledger.Prediction(ctx, team)
}

// Round returns the current round.
func (s *Service) Round(ctx context.Context) (model.Round, error) {
	return s.ledger.Round(ctx)
}

// OpenRound opens a new round. Opening an open round is a no-op.
func (s *Service) OpenRound(ctx context.Context) (model.Round, error) {
	r, changed, err := s.ledger.Open(ctx)
	if err != nil {
		return model.Round{}, err
	}
	if changed {
		metrics.RecordRoundTransition("opened")
		metrics.UpdateRoundOpen(true)
		s.logger.Info(ctx, "round opened", logger.String("round", r.ID), logger.Int("number", r.Number))
		s.publish(ctx, broker.TypeRoundOpened, r.ID, "", r)
	}
	return r, nil
}

// CloseRound closes the round and clears every prediction.
func (s *Service) CloseRound(ctx context.Context) (model.Round, error) {
	r, changed, err := s.ledger.CloseAndClear(ctx)
	if err != nil {
		return model.Round{}, err
	}
	if changed {
		metrics.RecordRoundTransition("closed")
		metrics.UpdateRoundOpen(false)
		s.logger.Info(ctx, "round closed", logger.String("round", r.ID), logger.Int("number", r.Number))
		s.publish(ctx, broker.TypeRoundClosed, r.ID, "", r)
		s.publish(ctx, broker.TypePredictionsReset, r.ID, "", nil)
	}
	return r, nil
}

func (s *Service) limit(n int) int {
	switch {
	case n <= 0:
		return s.leaderboardCap
	case n > s.maxLimit:
		return s.maxLimit
	default:
		return n
	}
}

func (s *Service) standings(ctx context.Context) ([]model.LeaderboardEntry, error) {
	bctx, cancel := s.bound(ctx)
	defer cancel()
	teams, err := s.store.ListTeams(bctx)
	if err != nil {
		metrics.RecordStoreError("list_teams")
		return nil, repository.Unavailable(err)
	}
	return ranking.Leaderboard(teams), nil
}

// Leaderboard returns the top n teams. n <= 0 means the configured cap;
// larger values are clamped to the maximum limit.
func (s *Service) Leaderboard(ctx context.Context, n int) ([]model.LeaderboardEntry, error) {
	entries, err := s.standings(ctx)
	if err != nil {
		return nil, err
	}
	metrics.RecordLeaderboardRead()
	return ranking.Top(entries, s.limit(n)), nil
}

// Position locates one team across the full standings.
func (s *Service) Position(ctx context.Context, team string) (model.LeaderboardEntry, error) {
	if _, err := s.Team(ctx, team); err != nil {
		return model.LeaderboardEntry{}, err
	}
	entries, err := s.standings(ctx)
	if err != nil {
		return model.LeaderboardEntry{}, err
	}
	return ranking.Find(entries, team)
}
