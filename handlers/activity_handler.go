package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"marchFitnessAPI/internal/activity"
	"marchFitnessAPI/middleware"
	"marchFitnessAPI/services"
)

type ActivityHandler struct {
	activityService *services.ActivityService
}

func NewActivityHandler(activityService *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{
		activityService: activityService,
	}
}

func (h *ActivityHandler) LogActivity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req activity.LogActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	a, err := h.activityService.LogActivity(ctx, clerkID, &req)
	if err != nil {
		middleware.ObserveIngest("manual", "rejected")
		respondIngestError(w, err)
		return
	}

	middleware.ObserveIngest("manual", "accepted")
	respondWithJSON(w, http.StatusCreated, a)
}

func (h *ActivityHandler) GetActivities(w http.ResponseWriter, r *http.Request) {
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

	activities, err := h.activityService.GetActivities(ctx, challengeID, clerkID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list activities")
		return
	}

	respondWithJSON(w, http.StatusOK, activities)
}

func (h *ActivityHandler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	activityID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.activityService.DeleteActivity(ctx, activityID, clerkID); err != nil {
		if errors.Is(err, activity.ErrActivityNotFound) {
			respondWithError(w, http.StatusNotFound, "Activity not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to delete activity")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "activity deleted"})
}

func (h *ActivityHandler) OverridePoints(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	activityID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req activity.OverridePointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	a, err := h.activityService.OverridePoints(ctx, activityID, &req)
	if err != nil {
		if errors.Is(err, activity.ErrActivityNotFound) {
			respondWithError(w, http.StatusNotFound, "Activity not found")
			return
		}
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, a)
}

func (h *ActivityHandler) FlagActivity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	activityID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req activity.FlagActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Reason == "" {
		respondWithError(w, http.StatusBadRequest, "Flag reason is required")
		return
	}

	if err := h.activityService.FlagActivity(ctx, activityID, &req); err != nil {
		if errors.Is(err, activity.ErrActivityNotFound) {
			respondWithError(w, http.StatusNotFound, "Activity not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to flag activity")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "activity flagged"})
}

func (h *ActivityHandler) ResolveFlag(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	activityID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req activity.ResolveFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.activityService.ResolveFlag(ctx, activityID, &req); err != nil {
		if errors.Is(err, activity.ErrActivityNotFound) {
			respondWithError(w, http.StatusNotFound, "Activity not found")
			return
		}
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "flag resolved"})
}

func (h *ActivityHandler) RecomputeParticipation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	challengeID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := pathUUID(w, r, "userId")
	if !ok {
		return
	}

	if err := h.activityService.RecomputeParticipation(ctx, challengeID, userID); err != nil {
		if errors.Is(err, activity.ErrNotParticipant) || errors.Is(err, activity.ErrChallengeOrTypeNotFound) {
			respondWithError(w, http.StatusNotFound, "Participation not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to recompute participation")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "participation recomputed"})
}

// respondIngestError maps pipeline rejections onto HTTP statuses.
func respondIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, activity.ErrChallengeOrTypeNotFound):
		respondWithError(w, http.StatusNotFound, "Challenge or activity type not found")
	case errors.Is(err, activity.ErrNotParticipant):
		respondWithError(w, http.StatusForbidden, "Not a participant of this challenge")
	case errors.Is(err, activity.ErrOutOfChallengeWindow):
		respondWithError(w, http.StatusUnprocessableEntity, "Date is outside the challenge window")
	case errors.Is(err, activity.ErrTypeNotLoggableThisWeek):
		respondWithError(w, http.StatusUnprocessableEntity, "Activity type is not loggable this week")
	case errors.Is(err, activity.ErrCapExceeded):
		respondWithError(w, http.StatusUnprocessableEntity, "Per-challenge limit for this activity type reached")
	default:
		respondWithError(w, http.StatusBadRequest, err.Error())
	}
}
