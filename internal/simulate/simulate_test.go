package simulate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/overcall/internal/adapters/http/api"
	service "github.com/okian/overcall/internal/app"
	"github.com/okian/overcall/internal/domain/model"
	"github.com/okian/overcall/internal/domain/scoring"
	"github.com/okian/overcall/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestRun(t *testing.T) {
	Convey("Given a live game server", t, func() {
		svc := service.New()
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(context.Background(), mux)
		ts := httptest.NewServer(mux)
		defer ts.Close()

		cfg := Config{
			BaseURL: ts.URL,
			Teams:   12,
			TopN:    5,
			Workers: 4,
			Timeout: 5 * time.Second,
			Seed:    42,
			Bonus:   10,
			Penalty: 5,
		}

		Convey("A full round verifies against local scoring", func() {
			stats, err := Run(context.Background(), cfg)
			So(err, ShouldBeNil)
			So(stats.TeamsCreated, ShouldEqual, 12)
			So(stats.PredictionsSent, ShouldEqual, 10)
			So(stats.Mismatches, ShouldEqual, 0)
			So(stats.LeaderboardEntries, ShouldEqual, 5)

			round, err := svc.Round(context.Background())
			So(err, ShouldBeNil)
			So(round.Open, ShouldBeFalse)
			So(round.Scored, ShouldBeTrue)

			Convey("And a second round runs on the same server", func() {
				stats, err := Run(context.Background(), cfg)
				So(err, ShouldBeNil)
				So(stats.Mismatches, ShouldEqual, 0)
			})
		})

		Convey("Scores that differ from the expectation are reported", func() {
			_, err := svc.CreateTeam(context.Background(), "drifted")
			So(err, ShouldBeNil)
			stats := &Stats{}
			err = verify(context.Background(), newClient(ts.URL, time.Second), cfg, map[string]int{"drifted": 5}, stats)
			So(err, ShouldNotBeNil)
			So(stats.Mismatches, ShouldEqual, 1)
		})

		Convey("An unknown active rule is rejected", func() {
			cfg.Rule = "always"
			_, err := Run(context.Background(), cfg)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given no server", t, func() {
		_, err := Run(context.Background(), Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
		So(err, ShouldNotBeNil)
	})
}

func TestCheckStandings(t *testing.T) {
	Convey("Competition positions are validated", t, func() {
		So(checkStandings(nil), ShouldBeNil)
		So(checkStandings([]model.LeaderboardEntry{
			{Position: 1, TeamName: "a", Score: 9},
			{Position: 1, TeamName: "b", Score: 9},
			{Position: 3, TeamName: "c", Score: 4},
		}), ShouldBeNil)

		So(checkStandings([]model.LeaderboardEntry{
			{Position: 2, TeamName: "a", Score: 9},
		}), ShouldNotBeNil)
		So(checkStandings([]model.LeaderboardEntry{
			{Position: 1, TeamName: "a", Score: 4},
			{Position: 2, TeamName: "b", Score: 9},
		}), ShouldNotBeNil)
		So(checkStandings([]model.LeaderboardEntry{
			{Position: 1, TeamName: "a", Score: 9},
			{Position: 2, TeamName: "b", Score: 9},
		}), ShouldNotBeNil)
		So(checkStandings([]model.LeaderboardEntry{
			{Position: 1, TeamName: "a", Score: 9},
			{Position: 1, TeamName: "b", Score: 9},
			{Position: 2, TeamName: "c", Score: 4},
		}), ShouldNotBeNil)
	})
}

func TestExpectedScores(t *testing.T) {
	Convey("Expected scores replay the engine for fresh teams", t, func() {
		names := []string{"a", "b", "c"}
		preds := []model.Prediction{
			{TeamName: "a", Runs: 10, Wickets: 2, Submitted: true},
			{TeamName: "b", Runs: 30, Wickets: 0, Submitted: true},
		}
		engine := scoring.NewEngine(scoring.WithWicketBonus(10), scoring.WithWicketPenalty(5))
		got := expectedScores(engine, model.Outcome{Runs: 12, Wickets: 2}, names, preds)
		So(got, ShouldResemble, map[string]int{"a": 8, "b": 0, "c": 0})
	})
}
