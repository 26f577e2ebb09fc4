package ranking_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/okian/overcall/internal/domain/model"
	"github.com/okian/overcall/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

func teamsWithScores(scores ...int) []model.Team {
	out := make([]model.Team, len(scores))
	for i, s := range scores {
		out[i] = model.Team{Name: fmt.Sprintf("team-%d", i), Score: s}
	}
	return out
}

func positions(entries []model.LeaderboardEntry) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.Position
	}
	return out
}

func TestLeaderboard(t *testing.T) {
	Convey("Given scores with two pairs of ties", t, func() {
		lb := ranking.Leaderboard(teamsWithScores(80, 80, 60, 60, 10))

		Convey("Then tied teams share positions and gaps follow", func() {
			So(positions(lb), ShouldResemble, []int{1, 1, 3, 3, 5})
		})
	})

	Convey("Given [50,50,40]", t, func() {
		lb := ranking.Leaderboard(teamsWithScores(50, 50, 40))
		So(positions(lb), ShouldResemble, []int{1, 1, 3})
	})

	Convey("Given unsorted input", t, func() {
		lb := ranking.Leaderboard(teamsWithScores(10, 90, 40, 90))

		Convey("Then it is ordered by score descending", func() {
			So(lb[0].Score, ShouldEqual, 90)
			So(lb[1].Score, ShouldEqual, 90)
			So(lb[2].Score, ShouldEqual, 40)
			So(lb[3].Score, ShouldEqual, 10)
			So(positions(lb), ShouldResemble, []int{1, 1, 3, 4})
		})

		Convey("And ties keep the input order", func() {
			So(lb[0].TeamName, ShouldEqual, "team-1")
			So(lb[1].TeamName, ShouldEqual, "team-3")
		})
	})

	Convey("Given all teams on zero", t, func() {
		lb := ranking.Leaderboard(teamsWithScores(0, 0, 0))
		So(positions(lb), ShouldResemble, []int{1, 1, 1})
	})

	Convey("Given no teams", t, func() {
		So(ranking.Leaderboard(nil), ShouldBeEmpty)
	})

	Convey("Given the input slice", t, func() {
		in := teamsWithScores(1, 2, 3)
		_ = ranking.Leaderboard(in)

		Convey("Then it is not reordered", func() {
			So(in[0].Score, ShouldEqual, 1)
			So(in[2].Score, ShouldEqual, 3)
		})
	})
}

func TestTopAndFind(t *testing.T) {
	Convey("Given a leaderboard of 60 teams", t, func() {
		scores := make([]int, 60)
		for i := range scores {
			scores[i] = 600 - i*10
		}
		lb := ranking.Leaderboard(teamsWithScores(scores...))

		Convey("When capping at 50", func() {
			top := ranking.Top(lb, 50)
			So(len(top), ShouldEqual, 50)
			So(top[49].Position, ShouldEqual, 50)
		})

		Convey("When the cap is larger than the board or not positive", func() {
			So(len(ranking.Top(lb, 100)), ShouldEqual, 60)
			So(len(ranking.Top(lb, 0)), ShouldEqual, 60)
		})

		Convey("When a team outside the cap looks up its position", func() {
			e, err := ranking.Find(lb, "team-55")
			So(err, ShouldBeNil)
			So(e.Position, ShouldEqual, 56)
			So(e.Score, ShouldEqual, 50)
		})

		Convey("When an unknown team looks up its position", func() {
			_, err := ranking.Find(lb, "nobody")
			So(errors.Is(err, model.ErrTeamNotFound), ShouldBeTrue)
		})
	})
}
