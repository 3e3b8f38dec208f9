package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/football-investment/practice-booking-system-sub003/models"
	"github.com/football-investment/practice-booking-system-sub003/services"
)

// GenerationDispatcher is the part of services.Dispatcher the HTTP layer drives.
type GenerationDispatcher interface {
	Generate(ctx context.Context, req services.GenerateRequest) (*services.GenerateResponse, error)
	Status(ctx context.Context, competitionID int, taskID string) (*services.GenerationStatus, error)
}

type MatchHandler struct {
	competitionService services.CompetitionService
	resultService      services.ResultService
	dispatcher         GenerationDispatcher
}

func NewMatchHandler(cs services.CompetitionService, rs services.ResultService, d GenerationDispatcher) *MatchHandler {
	return &MatchHandler{
		competitionService: cs,
		resultService:      rs,
		dispatcher:         d,
	}
}

// GenerateHandler handles POST /competitions/{competitionID}/sessions
// Small rosters answer 201 with the result; large ones answer 202 with a task to poll.
func (h *MatchHandler) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req services.GenerateRequest
	if err := readOptionalJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	req.CompetitionID = id

	resp, err := h.dispatcher.Generate(r.Context(), req)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	status := http.StatusCreated
	var headers http.Header
	if resp.Mode == services.ModeAsync {
		status = http.StatusAccepted
		headers = http.Header{}
		headers.Set("Location", fmt.Sprintf("/competitions/%d/generation/%s", id, resp.TaskID))
	}

	if err := writeJSON(w, status, jsonResponse{"generation": resp}, headers); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GenerationStatusHandler handles GET /competitions/{competitionID}/generation[/{taskID}]
func (h *MatchHandler) GenerationStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	taskID := chi.URLParam(r, "taskID")

	st, err := h.dispatcher.Status(r.Context(), id, taskID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"generation": st}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMatchesHandler handles GET /competitions/{competitionID}/matches
func (h *MatchHandler) ListMatchesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.competitionService.ListMatches(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetMatchHandler handles GET /matches/{matchID}
func (h *MatchHandler) GetMatchHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.competitionService.GetMatch(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SubmitResultHandler handles PUT /matches/{matchID}/result
func (h *MatchHandler) SubmitResultHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var result models.MatchResult
	if err := readJSON(w, r, &result); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.resultService.SubmitResult(r.Context(), id, &result)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
