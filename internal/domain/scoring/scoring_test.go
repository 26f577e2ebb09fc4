package scoring_test

import (
	"testing"

	"github.com/okian/overcall/internal/domain/model"
	scoring "github.com/okian/overcall/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEngine_Delta(t *testing.T) {
	Convey("Given the default scoring engine", t, func() {
		e := scoring.NewEngine()
		outcome := model.Outcome{Runs: 10, Wickets: 1}

		Convey("When runs and wickets are both exact", func() {
			d := e.Delta(model.Prediction{Runs: 10, Wickets: 1}, outcome)

			Convey("Then only the wicket bonus is earned", func() {
				So(d, ShouldEqual, 10)
			})
		})

		Convey("When runs miss by 5 and wickets miss", func() {
			d := e.Delta(model.Prediction{Runs: 15, Wickets: 2}, outcome)

			Convey("Then the run error and wicket penalty are deducted", func() {
				So(d, ShouldEqual, -10)
			})
		})

		Convey("When runs undershoot and wickets hit", func() {
			d := e.Delta(model.Prediction{Runs: 4, Wickets: 1}, outcome)
			So(d, ShouldEqual, -6+10)
		})
	})

	Convey("Given an engine with custom wicket points", t, func() {
		e := scoring.NewEngine(scoring.WithWicketBonus(20), scoring.WithWicketPenalty(1))
		So(e.Delta(model.Prediction{Runs: 6, Wickets: 0}, model.Outcome{Runs: 6, Wickets: 0}), ShouldEqual, 20)
		So(e.Delta(model.Prediction{Runs: 8, Wickets: 3}, model.Outcome{Runs: 6, Wickets: 0}), ShouldEqual, -3)
	})

	Convey("Given negative custom points", t, func() {
		e := scoring.NewEngine(scoring.WithWicketBonus(-3), scoring.WithWicketPenalty(-3))

		Convey("Then the defaults are kept", func() {
			So(e.Delta(model.Prediction{Runs: 1, Wickets: 0}, model.Outcome{Runs: 1, Wickets: 0}), ShouldEqual, 10)
			So(e.Delta(model.Prediction{Runs: 1, Wickets: 1}, model.Outcome{Runs: 1, Wickets: 0}), ShouldEqual, -5)
		})
	})
}

func TestApply(t *testing.T) {
	Convey("Given cumulative scores", t, func() {
		So(scoring.Apply(50, 10), ShouldEqual, 60)
		So(scoring.Apply(3, -10), ShouldEqual, 0)
		So(scoring.Apply(10, -10), ShouldEqual, 0)
		So(scoring.Apply(0, 0), ShouldEqual, 0)
	})
}

func TestEngine_Score(t *testing.T) {
	Convey("Given teams and their predictions", t, func() {
		e := scoring.NewEngine()
		teams := map[string]model.Team{
			"lions":  {Name: "lions", Score: 50},
			"tigers": {Name: "tigers", Score: 3},
			"bears":  {Name: "bears", Score: 20},
		}
		preds := []model.Prediction{
			{TeamName: "lions", Runs: 10, Wickets: 1, Submitted: true},
			{TeamName: "tigers", Runs: 15, Wickets: 2, Submitted: true},
			{TeamName: "bears"},
		}

		Convey("When scoring outcome 10/1", func() {
			res := e.Score(model.Outcome{Runs: 10, Wickets: 1}, preds, teams)

			Convey("Then an exact guess gains 10", func() {
				So(len(res.Changes), ShouldEqual, 2)
				So(res.Changes[0].TeamName, ShouldEqual, "lions")
				So(res.Changes[0].New, ShouldEqual, 60)
			})

			Convey("And a miss is floored at zero", func() {
				So(res.Changes[1].TeamName, ShouldEqual, "tigers")
				So(res.Changes[1].Delta, ShouldEqual, -10)
				So(res.Changes[1].Previous, ShouldEqual, 3)
				So(res.Changes[1].New, ShouldEqual, 0)
			})

			Convey("And the all-zero prediction is skipped", func() {
				So(res.Inactive, ShouldEqual, 1)
				for _, c := range res.Changes {
					So(c.TeamName, ShouldNotEqual, "bears")
				}
			})
		})

		Convey("When a prediction references an unknown team", func() {
			withGhost := append([]model.Prediction{{TeamName: "ghosts", Runs: 5, Wickets: 0}}, preds...)
			res := e.Score(model.Outcome{Runs: 10, Wickets: 1}, withGhost, teams)

			Convey("Then it is reported as orphaned and not scored", func() {
				So(res.Orphaned, ShouldResemble, []string{"ghosts"})
				So(len(res.Changes), ShouldEqual, 2)
			})
		})
	})
}

func TestActiveRule(t *testing.T) {
	Convey("Given a team that genuinely predicted zero runs", t, func() {
		p := model.Prediction{TeamName: "owls", Runs: 0, Wickets: 1, Submitted: true}

		Convey("When the non-zero runs rule is active", func() {
			e := scoring.NewEngine()
			Convey("Then the prediction is skipped", func() {
				So(e.Active(p), ShouldBeFalse)
			})
		})

		Convey("When the submitted rule is active", func() {
			e := scoring.NewEngine(scoring.WithActiveRule(scoring.ActiveSubmitted))
			Convey("Then the prediction is scored", func() {
				So(e.Active(p), ShouldBeTrue)
				res := e.Score(model.Outcome{Runs: 2, Wickets: 1}, []model.Prediction{p},
					map[string]model.Team{"owls": {Name: "owls", Score: 1}})
				So(len(res.Changes), ShouldEqual, 1)
				So(res.Changes[0].New, ShouldEqual, 9)
			})
		})
	})

	Convey("Given rule names from configuration", t, func() {
		r, err := scoring.ParseActiveRule("submitted")
		So(err, ShouldBeNil)
		So(r, ShouldEqual, scoring.ActiveSubmitted)
		So(r.String(), ShouldEqual, "submitted")

		r, err = scoring.ParseActiveRule("")
		So(err, ShouldBeNil)
		So(r, ShouldEqual, scoring.ActiveNonZeroRuns)
		So(r.String(), ShouldEqual, "nonzero_runs")

		_, err = scoring.ParseActiveRule("whatever")
		So(err, ShouldNotBeNil)
	})
}
