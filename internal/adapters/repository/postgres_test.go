package repository

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/overcall/internal/domain/model"
)

// Runs against a live database when OVERCALL_TEST_POSTGRES_DSN is set.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("OVERCALL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("OVERCALL_TEST_POSTGRES_DSN not set")
	}

	Convey("Given a migrated postgres store", t, func() {
		ctx := context.Background()
		s, err := NewPostgresStore(ctx, dsn)
		So(err, ShouldBeNil)
		defer s.Close()

		suffix := uuid.NewString()[:8]
		a, b := "pg-a-"+suffix, "pg-b-"+suffix

		_, err = s.CreateTeam(ctx, a)
		So(err, ShouldBeNil)
		_, err = s.CreateTeam(ctx, b)
		So(err, ShouldBeNil)

		_, err = s.CreateTeam(ctx, a)
		So(errors.Is(err, ErrAlreadyExists), ShouldBeTrue)

		Convey("Predictions follow the round gate", func() {
			So(s.SaveRound(ctx, model.Round{ID: suffix, Number: 1}), ShouldBeNil)
			err := s.UpsertPrediction(ctx, model.Prediction{TeamName: a, Runs: 4, Submitted: true})
			So(errors.Is(err, model.ErrRoundClosed), ShouldBeTrue)

			So(s.SaveRound(ctx, model.Round{ID: suffix, Number: 1, Open: true}), ShouldBeNil)
			So(s.UpsertPrediction(ctx, model.Prediction{TeamName: a, Runs: 4, Wickets: 1, Submitted: true}), ShouldBeNil)
			p, err := s.GetPrediction(ctx, a)
			So(err, ShouldBeNil)
			So(p.Runs, ShouldEqual, 4)

			So(s.SaveRound(ctx, model.Round{ID: suffix, Number: 1, Open: true, Scored: true}), ShouldBeNil)
			err = s.UpsertPrediction(ctx, model.Prediction{TeamName: a, Runs: 9, Submitted: true})
			So(errors.Is(err, model.ErrRoundClosed), ShouldBeTrue)
			So(s.SaveRound(ctx, model.Round{ID: suffix, Number: 1, Open: true}), ShouldBeNil)

			err = s.UpsertPrediction(ctx, model.Prediction{TeamName: "ghost-" + suffix, Runs: 1})
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)

			So(s.ResetAllPredictions(ctx), ShouldBeNil)
			p, _ = s.GetPrediction(ctx, a)
			So(p.Runs, ShouldEqual, 0)
			So(p.Submitted, ShouldBeFalse)
		})

		Convey("ApplyScores is version checked", func() {
			ta, _ := s.GetTeam(ctx, a)
			tb, _ := s.GetTeam(ctx, b)
			err := s.ApplyScores(ctx, []ScoreUpdate{
				{TeamName: a, Score: 10, ExpectedVersion: ta.Version},
				{TeamName: b, Score: 5, ExpectedVersion: tb.Version + 1},
			})
			So(errors.Is(err, ErrVersionConflict), ShouldBeTrue)
			ta2, _ := s.GetTeam(ctx, a)
			So(ta2.Score, ShouldEqual, ta.Score)

			err = s.ApplyScores(ctx, []ScoreUpdate{
				{TeamName: a, Score: 10, ExpectedVersion: ta.Version},
				{TeamName: b, Score: 5, ExpectedVersion: tb.Version},
			})
			So(err, ShouldBeNil)
			ta2, _ = s.GetTeam(ctx, a)
			So(ta2.Score, ShouldEqual, 10)
		})
	})
}
