package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/football-investment/practice-booking-system-sub003/middleware"
	"github.com/football-investment/practice-booking-system-sub003/models"
	"github.com/football-investment/practice-booking-system-sub003/repositories"
	"github.com/football-investment/practice-booking-system-sub003/services"
)

type CompetitionHandler struct {
	competitionService services.CompetitionService
}

func NewCompetitionHandler(cs services.CompetitionService) *CompetitionHandler {
	return &CompetitionHandler{competitionService: cs}
}

// CreateHandler handles POST /competitions
func (h *CompetitionHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var input services.CreateCompetitionInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	competition, err := h.competitionService.Create(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"competition": competition}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler handles GET /competitions/{competitionID}
func (h *CompetitionHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	competition, err := h.competitionService.Get(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"competition": competition}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler handles GET /competitions?status=&format=&limit=&offset=
func (h *CompetitionHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	var filter repositories.ListCompetitionsFilter
	query := r.URL.Query()

	if s := query.Get("status"); s != "" {
		status := models.CompetitionStatus(s)
		if !status.Valid() {
			badRequestResponse(w, r, errors.New("invalid status query parameter"))
			return
		}
		filter.Status = &status
	}
	if f := query.Get("format"); f != "" {
		format := models.Format(f)
		if !format.Valid() {
			badRequestResponse(w, r, errors.New("invalid format query parameter"))
			return
		}
		filter.Format = &format
	}
	if l := query.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit <= 0 {
			badRequestResponse(w, r, errors.New("invalid limit query parameter"))
			return
		}
		filter.Limit = limit
	}
	if o := query.Get("offset"); o != "" {
		offset, err := strconv.Atoi(o)
		if err != nil || offset < 0 {
			badRequestResponse(w, r, errors.New("invalid offset query parameter"))
			return
		}
		filter.Offset = offset
	}

	competitions, err := h.competitionService.List(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"competitions": competitions}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// OpenEnrollmentHandler handles POST /competitions/{competitionID}/open
func (h *CompetitionHandler) OpenEnrollmentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	competition, err := h.competitionService.OpenEnrollment(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"competition": competition}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ArchiveHandler handles POST /competitions/{competitionID}/archive
func (h *CompetitionHandler) ArchiveHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	competition, err := h.competitionService.Archive(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"competition": competition}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type enrollRequest struct {
	ParticipantID int  `json:"participant_id"`
	Seed          *int `json:"seed,omitempty"`
}

// actingParticipant resolves whose enrollment a request touches. Participants may
// only act for themselves; organizers and admins name the participant explicitly.
func actingParticipant(r *http.Request, requested int) (int, error) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		return 0, err
	}
	role, err := middleware.GetUserRoleFromContext(r.Context())
	if err != nil {
		return 0, err
	}
	if role != middleware.RoleParticipant {
		if requested <= 0 {
			return 0, errors.New("participant_id is required")
		}
		return requested, nil
	}
	if requested != 0 && requested != userID {
		return 0, errActingForOthers
	}
	return userID, nil
}

var errActingForOthers = errors.New("participants may only manage their own enrollment")

func (h *CompetitionHandler) resolveParticipant(w http.ResponseWriter, r *http.Request, requested int) (int, bool) {
	pid, err := actingParticipant(r, requested)
	switch {
	case errors.Is(err, errActingForOthers):
		forbiddenResponse(w, r, err.Error())
		return 0, false
	case err != nil:
		badRequestResponse(w, r, err)
		return 0, false
	}
	return pid, true
}

// EnrollHandler handles POST /competitions/{competitionID}/enrollments
func (h *CompetitionHandler) EnrollHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input enrollRequest
	if err := readOptionalJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	pid, ok := h.resolveParticipant(w, r, input.ParticipantID)
	if !ok {
		return
	}

	enrollment, err := h.competitionService.Enroll(r.Context(), id, pid, input.Seed)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"enrollment": enrollment}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// WithdrawHandler handles DELETE /competitions/{competitionID}/enrollments/{participantID}
func (h *CompetitionHandler) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	requested, err := getIDFromURL(r, "participantID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	pid, ok := h.resolveParticipant(w, r, requested)
	if !ok {
		return
	}

	enrollment, err := h.competitionService.Withdraw(r.Context(), id, pid)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"enrollment": enrollment}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListEnrollmentsHandler handles GET /competitions/{competitionID}/enrollments
func (h *CompetitionHandler) ListEnrollmentsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	enrollments, err := h.competitionService.ListEnrollments(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"enrollments": enrollments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
