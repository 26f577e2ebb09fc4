package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/overcall/internal/adapters/mq/broker"
	"github.com/okian/overcall/internal/adapters/repository"
	"github.com/okian/overcall/internal/domain/model"
	"github.com/okian/overcall/internal/domain/ranking"
	"github.com/okian/overcall/pkg/logger"
	"github.com/okian/overcall/pkg/metrics"
)

func scoringFailed(err error) error {
	return fmt.Errorf("%w: %w", model.ErrScoringFailed, err)
}

// ScoreRound applies outcome to every active prediction of the current
// round. The round is not closed; callers close it separately.
//
// A non-empty requestID makes the call idempotent: a repeat returns a
// report flagged Duplicate without touching scores.
func (s *Service) ScoreRound(ctx context.Context, outcome model.Outcome, requestID string) (model.ScoreReport, error) {
	if err := outcome.Validate(); err != nil {
		return model.ScoreReport{}, err
	}
	if requestID != "" && s.SeenAndRecord(ctx, requestID) {
		s.logger.Info(ctx, "duplicate score request acknowledged", logger.String("requestID", requestID))
		return model.ScoreReport{Outcome: outcome, Duplicate: true}, nil
	}

	report, err := s.scoreRound(ctx, outcome)
	if err != nil {
		if requestID != "" {
			s.Unrecord(ctx, requestID)
		}
		if !errors.Is(err, model.ErrRoundAlreadyScored) {
			metrics.RecordScoringFailure()
		}
		s.logger.Error(ctx, "scoring failed", logger.Error(err))
		return model.ScoreReport{}, err
	}
	return report, nil
}

func (s *Service) scoreRound(ctx context.Context, outcome model.Outcome) (model.ScoreReport, error) {
	s.scoreMu.Lock()
	defer s.scoreMu.Unlock()

	start := time.Now()
	round, err := s.ledger.Round(ctx)
	if err != nil {
		return model.ScoreReport{}, scoringFailed(err)
	}
	if round.Scored {
		return model.ScoreReport{}, fmt.Errorf("round %d: %w", round.Number, model.ErrRoundAlreadyScored)
	}

	report := model.ScoreReport{
		RoundID:     round.ID,
		RoundNumber: round.Number,
		Outcome:     outcome,
	}
	var applied bool
	for attempt := 1; attempt <= s.retryLimit; attempt++ {
		report.Attempts = attempt
		err := s.applyOnce(ctx, outcome, &report)
		if err == nil {
			applied = true
			break
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return model.ScoreReport{}, scoringFailed(err)
		}
		metrics.RecordScoringRetry()
		s.logger.Warn(ctx, "score batch conflicted, recomputing",
			logger.Int("attempt", attempt), logger.Error(err))
	}
	if !applied {
		return model.ScoreReport{}, scoringFailed(fmt.Errorf("gave up after %d attempts: %w",
			s.retryLimit, repository.ErrVersionConflict))
	}

	for _, name := range report.Orphaned {
		s.logger.Warn(ctx, "prediction for unknown team skipped", logger.String("team", name))
	}
	for _, c := range report.Changes {
		metrics.RecordScoreDelta(c.Delta)
	}

	if err := s.ledger.MarkScored(ctx, round.ID); err != nil {
		s.logger.Error(ctx, "scores applied but round not marked scored",
			logger.String("round", round.ID), logger.Error(err))
		return model.ScoreReport{}, scoringFailed(err)
	}

	entries, err := s.standings(ctx)
	if err != nil {
		return model.ScoreReport{}, scoringFailed(err)
	}
	report.Leaderboard = ranking.Top(entries, s.leaderboardCap)

	metrics.RecordRoundTransition("scored")
	metrics.RecordScoringLatency(float64(time.Since(start).Milliseconds()))
	s.logger.Info(ctx, "round scored",
		logger.String("round", round.ID),
		logger.Int("number", round.Number),
		logger.Int("changes", len(report.Changes)),
		logger.Int("skipped", report.Skipped),
		logger.Int("attempts", report.Attempts),
	)
	s.publish(ctx, broker.TypeRoundScored, round.ID, "", report)
	s.publish(ctx, broker.TypeLeaderboardUpdated, round.ID, "", report.Leaderboard)
	return report, nil
}

// applyOnce reads teams and predictions, scores them and writes the batch.
func (s *Service) applyOnce(ctx context.Context, outcome model.Outcome, report *model.ScoreReport) error {
	bctx, cancel := s.bound(ctx)
	defer cancel()

	teams, err := s.store.ListTeams(bctx)
	if err != nil {
		metrics.RecordStoreError("list_teams")
		return repository.Unavailable(err)
	}
	preds, err := s.store.ListPredictions(bctx)
	if err != nil {
		metrics.RecordStoreError("list_predictions")
		return repository.Unavailable(err)
	}

	byName := make(map[string]model.Team, len(teams))
	for _, t := range teams {
		byName[t.Name] = t
	}
	res := s.scorer.Score(outcome, preds, byName)

	updates := make([]repository.ScoreUpdate, 0, len(res.Changes))
	for _, c := range res.Changes {
		updates = append(updates, repository.ScoreUpdate{
			TeamName:        c.TeamName,
			Score:           c.New,
			ExpectedVersion: byName[c.TeamName].Version,
		})
	}
	if len(updates) > 0 {
		if err := s.store.ApplyScores(bctx, updates); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return err
			}
			metrics.RecordStoreError("apply_scores")
			return repository.Unavailable(err)
		}
	}

	report.Changes = res.Changes
	report.Skipped = res.Inactive
	report.Orphaned = res.Orphaned
	return nil
}
