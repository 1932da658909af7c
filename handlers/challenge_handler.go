package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"marchFitnessAPI/internal/activity"
	"marchFitnessAPI/internal/challenge"
	"marchFitnessAPI/middleware"
	"marchFitnessAPI/services"
)

type ChallengeHandler struct {
	challengeService *services.ChallengeService
}

func NewChallengeHandler(challengeService *services.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
	}
}

func (h *ChallengeHandler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req challenge.CreateChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "Challenge name is required")
		return
	}

	c, err := h.challengeService.CreateChallenge(ctx, &req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, c)
}

func (h *ChallengeHandler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challenges, err := h.challengeService.ListChallenges(ctx)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list challenges")
		return
	}

	respondWithJSON(w, http.StatusOK, challenges)
}

func (h *ChallengeHandler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challengeID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	c, err := h.challengeService.GetChallenge(ctx, challengeID)
	if err != nil {
		if errors.Is(err, activity.ErrChallengeOrTypeNotFound) {
			respondWithError(w, http.StatusNotFound, "Challenge not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to get challenge")
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}

func (h *ChallengeHandler) DeleteChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challengeID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.challengeService.DeleteChallenge(ctx, challengeID); err != nil {
		if errors.Is(err, activity.ErrChallengeOrTypeNotFound) {
			respondWithError(w, http.StatusNotFound, "Challenge not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to delete challenge")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "challenge deleted"})
}

func (h *ChallengeHandler) JoinChallenge(w http.ResponseWriter, r *http.Request) {
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

	p, err := h.challengeService.JoinChallenge(ctx, challengeID, clerkID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to join challenge")
		return
	}

	respondWithJSON(w, http.StatusCreated, p)
}

func (h *ChallengeHandler) GetParticipationStatus(w http.ResponseWriter, r *http.Request) {
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

	status, err := h.challengeService.GetParticipationStatus(ctx, challengeID, clerkID)
	if err != nil {
		switch {
		case errors.Is(err, activity.ErrChallengeOrTypeNotFound):
			respondWithError(w, http.StatusNotFound, "Challenge not found")
		case errors.Is(err, activity.ErrNotParticipant):
			respondWithError(w, http.StatusNotFound, "Not a participant of this challenge")
		default:
			respondWithError(w, http.StatusInternalServerError, "Failed to get participation")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, status)
}

func (h *ChallengeHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challengeID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req challenge.CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cat, err := h.challengeService.CreateCategory(ctx, challengeID, &req)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to create category")
		return
	}

	respondWithJSON(w, http.StatusCreated, cat)
}

func (h *ChallengeHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challengeID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	categories, err := h.challengeService.ListCategories(ctx, challengeID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}

	respondWithJSON(w, http.StatusOK, categories)
}

func (h *ChallengeHandler) CreateActivityType(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challengeID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req challenge.CreateActivityTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "Activity type name is required")
		return
	}

	t, err := h.challengeService.CreateActivityType(ctx, challengeID, &req)
	if err != nil {
		// Bad scoring configs surface here, including unknown config types.
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, t)
}

func (h *ChallengeHandler) ListActivityTypes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challengeID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	types, err := h.challengeService.ListActivityTypes(ctx, challengeID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list activity types")
		return
	}

	respondWithJSON(w, http.StatusOK, types)
}

// pathUUID parses a UUID path variable, writing the error response itself.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
