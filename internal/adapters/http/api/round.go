package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/overcall/internal/domain/model"
)

// RoundDependencies defines the round lifecycle operations.
type RoundDependencies interface {
	Round(ctx context.Context) (model.Round, error)
	OpenRound(ctx context.Context) (model.Round, error)
	CloseRound(ctx context.Context) (model.Round, error)
	ScoreRound(ctx context.Context, outcome model.Outcome, requestID string) (model.ScoreReport, error)
}

// RoundHandler handles the admin round endpoints.
type RoundHandler struct {
	deps RoundDependencies
}

// NewRoundHandler creates a new round handler.
func NewRoundHandler(deps RoundDependencies) *RoundHandler {
	return &RoundHandler{deps: deps}
}

// scoreRequest mirrors the OpenAPI schema for POST /round/score.
type scoreRequest struct {
	ActualRuns    *int   `json:"actual_runs"`
	ActualWickets *int   `json:"actual_wickets"`
	RequestID     string `json:"request_id,omitempty"`
}

type scoreResponse struct {
	Report model.ScoreReport `json:"report"`
	Round  *model.Round      `json:"round,omitempty"`
}

// HandleGetRound handles GET /round requests.
func (h *RoundHandler) HandleGetRound(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_round"
	round, err := h.deps.Round(r.Context())
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// HandleOpen handles POST /round/open requests.
func (h *RoundHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	const op = "api.open_round"
	round, err := h.deps.OpenRound(r.Context())
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// HandleClose handles POST /round/close requests.
func (h *RoundHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	const op = "api.close_round"
	round, err := h.deps.CloseRound(r.Context())
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// HandleScore handles POST /round/score requests. A fresh request scores
// the round and then closes it; a repeated request_id only echoes the ack.
func (h *RoundHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.score_round"
	var req scoreRequest
	if err := decode(w, r, op, &req); err != nil {
		fail(w, op, err)
		return
	}
	if req.ActualRuns == nil || req.ActualWickets == nil {
		fail(w, op, NewKind(op, ErrBadRequest))
		return
	}
	requestID := strings.TrimSpace(req.RequestID)
	if requestID == "" {
		requestID = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	}

	outcome := model.Outcome{Runs: *req.ActualRuns, Wickets: *req.ActualWickets}
	report, err := h.deps.ScoreRound(r.Context(), outcome, requestID)
	if err != nil {
		fail(w, op, err)
		return
	}
	if report.Duplicate {
		writeJSON(w, http.StatusOK, scoreResponse{Report: report})
		return
	}

	round, err := h.deps.CloseRound(r.Context())
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{Report: report, Round: &round})
}
