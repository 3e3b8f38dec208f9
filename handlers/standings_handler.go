package handlers

import (
	"net/http"

	"github.com/football-investment/practice-booking-system-sub003/services"
)

type StandingsHandler struct {
	rankingService services.RankingService
	rewardService  services.RewardService
}

func NewStandingsHandler(rs services.RankingService, rws services.RewardService) *StandingsHandler {
	return &StandingsHandler{rankingService: rs, rewardService: rws}
}

// CalculateRankingsHandler handles POST /competitions/{competitionID}/rankings
func (h *StandingsHandler) CalculateRankingsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	rankings, err := h.rankingService.CalculateRankings(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"rankings": rankings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetRankingsHandler handles GET /competitions/{competitionID}/rankings
func (h *StandingsHandler) GetRankingsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	rankings, err := h.rankingService.GetRankings(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"rankings": rankings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DistributeRewardsHandler handles POST /competitions/{competitionID}/rewards
func (h *StandingsHandler) DistributeRewardsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	summary, err := h.rewardService.DistributeRewards(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"summary": summary}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListRewardsHandler handles GET /competitions/{competitionID}/rewards
func (h *StandingsHandler) ListRewardsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "competitionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	rewards, err := h.rewardService.ListRewards(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"rewards": rewards}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
