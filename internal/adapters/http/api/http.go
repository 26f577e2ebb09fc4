// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/overcall/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RoundDependencies
	TeamDependencies
	LeaderboardDependencies
	StreamDependencies
}

// StatsProvider exposes service statistics for /stats.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// Server wires HTTP routes for the game API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	roundHandler       *RoundHandler
	teamHandler        *TeamHandler
	leaderboardHandler *LeaderboardHandler
	streamHandler      *StreamHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		roundHandler:       NewRoundHandler(deps),
		teamHandler:        NewTeamHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
		streamHandler:      NewStreamHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	s.streamHandler.base = ctx

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("GET /round", MetricsMiddleware(s.roundHandler.HandleGetRound, "round"))
	mux.HandleFunc("POST /round/open", MetricsMiddleware(s.roundHandler.HandleOpen, "round_open"))
	mux.HandleFunc("POST /round/close", MetricsMiddleware(s.roundHandler.HandleClose, "round_close"))
	mux.HandleFunc("POST /round/score", MetricsMiddleware(s.roundHandler.HandleScore, "round_score"))

	mux.HandleFunc("POST /teams", MetricsMiddleware(s.teamHandler.HandleCreate, "teams"))
	mux.HandleFunc("GET /teams/{name}", MetricsMiddleware(s.teamHandler.HandleGet, "team"))
	mux.HandleFunc("GET /teams/{name}/prediction", MetricsMiddleware(s.teamHandler.HandleGetPrediction, "prediction"))
	mux.HandleFunc("PUT /teams/{name}/prediction", MetricsMiddleware(s.teamHandler.HandlePutPrediction, "prediction"))
	mux.HandleFunc("GET /teams/{name}/rank", MetricsMiddleware(s.teamHandler.HandleRank, "rank"))

	mux.HandleFunc("GET /leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("GET /events", MetricsMiddleware(s.streamHandler.HandleStream, "events"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusFor maps domain errors onto HTTP status codes and error codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrInvalidRange):
		return http.StatusBadRequest, "invalid_range"
	case errors.Is(err, model.ErrInvalidTeamName):
		return http.StatusBadRequest, "invalid_team_name"
	case errors.Is(err, model.ErrRoundClosed):
		return http.StatusConflict, "round_closed"
	case errors.Is(err, model.ErrRoundAlreadyScored):
		return http.StatusConflict, "round_already_scored"
	case errors.Is(err, model.ErrTeamExists):
		return http.StatusConflict, "team_exists"
	case errors.Is(err, model.ErrTeamNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "team_not_found"
	case errors.Is(err, model.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, model.ErrScoringFailed):
		return http.StatusInternalServerError, "scoring_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func fail(w http.ResponseWriter, op string, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, Wrap(op, err))
}

func decode(w http.ResponseWriter, r *http.Request, op string, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}

