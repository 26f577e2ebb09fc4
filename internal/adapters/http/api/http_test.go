package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/overcall/internal/adapters/http/api"
	"github.com/okian/overcall/internal/adapters/mq/broker"
	service "github.com/okian/overcall/internal/app"
	"github.com/okian/overcall/internal/domain/model"
	"github.com/okian/overcall/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newTestServer(opts ...service.Option) (*service.Service, *http.ServeMux) {
	opts = append([]service.Option{service.WithTeams("Lions", "Tigers", "Bears")}, opts...)
	svc := service.New(opts...)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(context.Background(), mux)
	return svc, mux
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body == "" {
		rd = bytes.NewReader(nil)
	} else {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func errorCode(w *httptest.ResponseRecorder) string {
	var resp struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return resp.Code
}

func TestRoundEndpoints(t *testing.T) {
	Convey("Given a running game server", t, func() {
		svc, mux := newTestServer()
		defer svc.Stop()

		Convey("Predictions are rejected before any round opens", func() {
			w := do(mux, http.MethodPut, "/teams/Lions/prediction", `{"runs":6,"wickets":1}`)
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(errorCode(w), ShouldEqual, "round_closed")
		})

		Convey("Opening a round reports it open", func() {
			w := do(mux, http.MethodPost, "/round/open", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var round model.Round
			So(json.Unmarshal(w.Body.Bytes(), &round), ShouldBeNil)
			So(round.Open, ShouldBeTrue)
			So(round.Number, ShouldEqual, 1)

			w = do(mux, http.MethodGet, "/round", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, round.ID)

			Convey("And scoring applies and closes the round", func() {
				So(do(mux, http.MethodPut, "/teams/Lions/prediction", `{"runs":10,"wickets":2}`).Code, ShouldEqual, http.StatusOK)
				So(do(mux, http.MethodPut, "/teams/Tigers/prediction", `{"runs":14,"wickets":0}`).Code, ShouldEqual, http.StatusOK)

				w := do(mux, http.MethodPost, "/round/score", `{"actual_runs":12,"actual_wickets":2,"request_id":"over-1"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Report model.ScoreReport `json:"report"`
					Round  *model.Round      `json:"round"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Report.RoundID, ShouldEqual, round.ID)
				So(len(resp.Report.Changes), ShouldEqual, 2)
				So(resp.Report.Skipped, ShouldEqual, 1)
				So(resp.Round, ShouldNotBeNil)
				So(resp.Round.Open, ShouldBeFalse)
				So(resp.Round.Scored, ShouldBeTrue)

				lions, err := svc.Team(context.Background(), "Lions")
				So(err, ShouldBeNil)
				So(lions.Score, ShouldEqual, 8)

				Convey("Predictions sent after scoring are refused", func() {
					w := do(mux, http.MethodPut, "/teams/Bears/prediction", `{"runs":12,"wickets":2}`)
					So(w.Code, ShouldEqual, http.StatusConflict)
					So(errorCode(w), ShouldEqual, "round_closed")
				})

				Convey("A repeated request id is acknowledged without rescoring", func() {
					w := do(mux, http.MethodPost, "/round/score", `{"actual_runs":12,"actual_wickets":2,"request_id":"over-1"}`)
					So(w.Code, ShouldEqual, http.StatusOK)
					So(w.Body.String(), ShouldContainSubstring, `"duplicate":true`)
					lions, _ := svc.Team(context.Background(), "Lions")
					So(lions.Score, ShouldEqual, 8)
				})

				Convey("A fresh request for the same round conflicts", func() {
					w := do(mux, http.MethodPost, "/round/score", `{"actual_runs":12,"actual_wickets":2}`)
					So(w.Code, ShouldEqual, http.StatusConflict)
					So(errorCode(w), ShouldEqual, "round_already_scored")
				})

				Convey("Predictions were cleared by the close", func() {
					w := do(mux, http.MethodGet, "/teams/Lions/prediction", "")
					So(w.Code, ShouldEqual, http.StatusOK)
					var p model.Prediction
					So(json.Unmarshal(w.Body.Bytes(), &p), ShouldBeNil)
					So(p.Runs, ShouldEqual, 0)
					So(p.Submitted, ShouldBeFalse)
				})
			})

			Convey("And closing twice is harmless", func() {
				So(do(mux, http.MethodPost, "/round/close", "").Code, ShouldEqual, http.StatusOK)
				w := do(mux, http.MethodPost, "/round/close", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"is_open":false`)
			})
		})

		Convey("Score requests are validated", func() {
			So(do(mux, http.MethodPost, "/round/score", `{"actual_runs":12}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodPost, "/round/score", `not json`).Code, ShouldEqual, http.StatusBadRequest)
			w := do(mux, http.MethodPost, "/round/score", `{"actual_runs":40,"actual_wickets":1}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "invalid_range")
		})

		Convey("Unsupported methods are rejected by the mux", func() {
			So(do(mux, http.MethodDelete, "/round", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestTeamEndpoints(t *testing.T) {
	Convey("Given a running game server with an open round", t, func() {
		svc, mux := newTestServer()
		defer svc.Stop()
		So(do(mux, http.MethodPost, "/round/open", "").Code, ShouldEqual, http.StatusOK)

		Convey("Teams can be created once", func() {
			w := do(mux, http.MethodPost, "/teams", `{"team_name":"Wolves"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(w.Body.String(), ShouldContainSubstring, `"team_name":"Wolves"`)

			w = do(mux, http.MethodPost, "/teams", `{"team_name":"Wolves"}`)
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(errorCode(w), ShouldEqual, "team_exists")
		})

		Convey("Blank team names are rejected", func() {
			w := do(mux, http.MethodPost, "/teams", `{"team_name":"  "}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "invalid_team_name")
		})

		Convey("Unknown teams are not found", func() {
			So(do(mux, http.MethodGet, "/teams/Nobody", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/teams/Nobody/rank", "").Code, ShouldEqual, http.StatusNotFound)
			w := do(mux, http.MethodPut, "/teams/Nobody/prediction", `{"runs":1,"wickets":1}`)
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(errorCode(w), ShouldEqual, "team_not_found")
		})

		Convey("Predictions are range checked", func() {
			w := do(mux, http.MethodPut, "/teams/Lions/prediction", `{"runs":37,"wickets":1}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "invalid_range")
			So(do(mux, http.MethodPut, "/teams/Lions/prediction", `{"runs":3}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A stored prediction is read back", func() {
			So(do(mux, http.MethodPut, "/teams/Lions/prediction", `{"runs":9,"wickets":3}`).Code, ShouldEqual, http.StatusOK)
			w := do(mux, http.MethodGet, "/teams/Lions/prediction", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var p model.Prediction
			So(json.Unmarshal(w.Body.Bytes(), &p), ShouldBeNil)
			So(p.Runs, ShouldEqual, 9)
			So(p.Wickets, ShouldEqual, 3)
			So(p.Submitted, ShouldBeTrue)
		})

		Convey("Rank reports the shared position of tied teams", func() {
			w := do(mux, http.MethodGet, "/teams/Bears/rank", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var e model.LeaderboardEntry
			So(json.Unmarshal(w.Body.Bytes(), &e), ShouldBeNil)
			So(e.Position, ShouldEqual, 1)
			So(e.TeamName, ShouldEqual, "Bears")
		})
	})
}

func TestLeaderboardEndpoint(t *testing.T) {
	Convey("Given a server with a small leaderboard cap", t, func() {
		svc, mux := newTestServer(service.WithLeaderboardCap(2), service.WithMaxLeaderboardLimit(3),
			service.WithTeams("Lions", "Tigers", "Bears", "Wolves"))
		defer svc.Stop()

		decode := func(w *httptest.ResponseRecorder) []model.LeaderboardEntry {
			var entries []model.LeaderboardEntry
			So(json.Unmarshal(w.Body.Bytes(), &entries), ShouldBeNil)
			return entries
		}

		Convey("No limit uses the cap", func() {
			w := do(mux, http.MethodGet, "/leaderboard", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(len(decode(w)), ShouldEqual, 2)
		})

		Convey("An explicit limit is honoured and clamped", func() {
			So(len(decode(do(mux, http.MethodGet, "/leaderboard?limit=1", ""))), ShouldEqual, 1)
			So(len(decode(do(mux, http.MethodGet, "/leaderboard?limit=100", ""))), ShouldEqual, 3)
		})

		Convey("Bad limits are rejected", func() {
			So(do(mux, http.MethodGet, "/leaderboard?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/leaderboard?limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given a running game server", t, func() {
		svc, mux := newTestServer()
		defer svc.Stop()

		Convey("Health exposes prometheus metrics", func() {
			do(mux, http.MethodGet, "/leaderboard", "")
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "overcall_")
		})

		Convey("Stats are served as JSON", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var stats map[string]interface{}
			So(json.Unmarshal(w.Body.Bytes(), &stats), ShouldBeNil)
			So(stats["started"], ShouldEqual, true)
			So(stats["totalTeams"], ShouldEqual, float64(3))
		})
	})
}

func TestEventStream(t *testing.T) {
	Convey("Given a websocket client on /events", t, func() {
		svc, mux := newTestServer()
		defer svc.Stop()
		ts := httptest.NewServer(mux)
		defer ts.Close()

		url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events?type=" + broker.TypeRoundOpened
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		So(err, ShouldBeNil)
		defer conn.Close()

		deadline := time.Now().Add(2 * time.Second)
		for fmt.Sprint(svc.GetStats()["subscribers"]) != "1" && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}

		Convey("Round transitions are pushed to the client", func() {
			// Team events are filtered out by the type parameter.
			So(do(mux, http.MethodPost, "/teams", `{"team_name":"Wolves"}`).Code, ShouldEqual, http.StatusCreated)
			So(do(mux, http.MethodPost, "/round/open", "").Code, ShouldEqual, http.StatusOK)

			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			var ev broker.Event
			So(conn.ReadJSON(&ev), ShouldBeNil)
			So(ev.Type, ShouldEqual, broker.TypeRoundOpened)
			So(ev.RoundID, ShouldNotBeEmpty)
		})
	})
}
