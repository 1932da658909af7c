package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"marchFitnessAPI/internal/activity"
	"marchFitnessAPI/middleware"
	"marchFitnessAPI/services"
)

type LeaderboardHandler struct {
	leaderboardService *services.LeaderboardService
}

func NewLeaderboardHandler(leaderboardService *services.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboardService: leaderboardService,
	}
}

func (h *LeaderboardHandler) GetCumulativeLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challengeID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	// Anonymous viewers get the board without a user position.
	clerkID, _ := middleware.GetClerkID(ctx)
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 0)

	lb, err := h.leaderboardService.GetCumulativeLeaderboard(ctx, challengeID, clerkID, offset, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get leaderboard")
		return
	}

	respondWithJSON(w, http.StatusOK, lb)
}

func (h *LeaderboardHandler) GetWeeklyLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challengeID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	week, err := strconv.Atoi(r.URL.Query().Get("week"))
	if err != nil || week < 1 {
		respondWithError(w, http.StatusBadRequest, "week query parameter is required")
		return
	}

	clerkID, _ := middleware.GetClerkID(ctx)
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 0)

	lb, err := h.leaderboardService.GetWeeklyLeaderboard(ctx, challengeID, clerkID, week, offset, limit)
	if err != nil {
		if errors.Is(err, activity.ErrChallengeOrTypeNotFound) {
			respondWithError(w, http.StatusNotFound, "Challenge not found")
			return
		}
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, lb)
}

func (h *LeaderboardHandler) GetCategoryLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challengeID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	categoryID, ok := pathUUID(w, r, "categoryId")
	if !ok {
		return
	}

	week := queryInt(r, "week", 0)
	if week < 0 {
		respondWithError(w, http.StatusBadRequest, "week must be positive")
		return
	}

	segments, err := h.leaderboardService.GetCategoryLeaderboard(ctx, challengeID, categoryID, week)
	if err != nil {
		if errors.Is(err, activity.ErrChallengeOrTypeNotFound) {
			respondWithError(w, http.StatusNotFound, "Category not found")
			return
		}
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, segments)
}

func queryInt(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	return v
}
