package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"marchFitnessAPI/middleware"
	"marchFitnessAPI/services"
)

type AchievementHandler struct {
	achievementService *services.AchievementService
}

func NewAchievementHandler(achievementService *services.AchievementService) *AchievementHandler {
	return &AchievementHandler{
		achievementService: achievementService,
	}
}

func (h *AchievementHandler) CreateAchievement(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challengeID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req services.CreateAchievementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "Achievement name is required")
		return
	}

	a, err := h.achievementService.CreateAchievement(ctx, challengeID, &req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, a)
}

func (h *AchievementHandler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	challengeID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	achievements, err := h.achievementService.ListAchievements(ctx, challengeID, clerkID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list achievements")
		return
	}

	respondWithJSON(w, http.StatusOK, achievements)
}
