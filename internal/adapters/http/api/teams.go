package api

import (
	"context"
	"net/http"

	"github.com/okian/overcall/internal/domain/model"
)

// TeamDependencies defines the per-team operations.
type TeamDependencies interface {
	CreateTeam(ctx context.Context, name string) (model.Team, error)
	Team(ctx context.Context, name string) (model.Team, error)
	Prediction(ctx context.Context, team string) (model.Prediction, error)
	SubmitPrediction(ctx context.Context, team string, runs, wickets int) (model.Prediction, error)
	Position(ctx context.Context, team string) (model.LeaderboardEntry, error)
}

// TeamHandler handles team and prediction requests.
type TeamHandler struct {
	deps TeamDependencies
}

// NewTeamHandler creates a new team handler.
func NewTeamHandler(deps TeamDependencies) *TeamHandler {
	return &TeamHandler{deps: deps}
}

type teamRequest struct {
	TeamName string `json:"team_name"`
}

type predictionRequest struct {
	Runs    *int `json:"runs"`
	Wickets *int `json:"wickets"`
}

// HandleCreate handles POST /teams requests.
func (h *TeamHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_team"
	var req teamRequest
	if err := decode(w, r, op, &req); err != nil {
		fail(w, op, err)
		return
	}
	team, err := h.deps.CreateTeam(r.Context(), req.TeamName)
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

// HandleGet handles GET /teams/{name} requests.
func (h *TeamHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_team"
	team, err := h.deps.Team(r.Context(), r.PathValue("name"))
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// HandleGetPrediction handles GET /teams/{name}/prediction requests.
func (h *TeamHandler) HandleGetPrediction(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_prediction"
	p, err := h.deps.Prediction(r.Context(), r.PathValue("name"))
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandlePutPrediction handles PUT /teams/{name}/prediction requests.
func (h *TeamHandler) HandlePutPrediction(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_prediction"
	var req predictionRequest
	if err := decode(w, r, op, &req); err != nil {
		fail(w, op, err)
		return
	}
	if req.Runs == nil || req.Wickets == nil {
		fail(w, op, NewKind(op, ErrBadRequest))
		return
	}
	p, err := h.deps.SubmitPrediction(r.Context(), r.PathValue("name"), *req.Runs, *req.Wickets)
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleRank handles GET /teams/{name}/rank requests.
func (h *TeamHandler) HandleRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	entry, err := h.deps.Position(r.Context(), r.PathValue("name"))
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
