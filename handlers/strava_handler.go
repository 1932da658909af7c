package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"marchFitnessAPI/internal/strava"
	"marchFitnessAPI/middleware"
	"marchFitnessAPI/services"
)

type StravaHandler struct {
	stravaService *services.StravaService
}

func NewStravaHandler(stravaService *services.StravaService) *StravaHandler {
	return &StravaHandler{
		stravaService: stravaService,
	}
}

func (h *StravaHandler) ConnectStrava(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req strava.ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.AthleteID == 0 || req.AccessToken == "" || req.RefreshToken == "" {
		respondWithError(w, http.StatusBadRequest, "athlete_id, access_token and refresh_token are required")
		return
	}

	conn, err := h.stravaService.SaveConnection(ctx, clerkID, &req)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to save Strava connection")
		return
	}

	respondWithJSON(w, http.StatusCreated, conn)
}

func (h *StravaHandler) GetStravaStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	conn, err := h.stravaService.GetConnection(ctx, clerkID)
	if err != nil {
		if errors.Is(err, services.ErrNoStravaConnection) {
			respondWithJSON(w, http.StatusOK, map[string]bool{"connected": false})
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to get Strava status")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"connected":    true,
		"athlete_id":   conn.AthleteID,
		"needs_reauth": conn.NeedsReauth,
	})
}

func (h *StravaHandler) DisconnectStrava(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if err := h.stravaService.Disconnect(ctx, clerkID); err != nil {
		if errors.Is(err, services.ErrNoStravaConnection) {
			respondWithError(w, http.StatusNotFound, "No Strava connection")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to disconnect Strava")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "strava disconnected"})
}

// HandleWebhookVerification answers Strava's subscription validation GET.
func (h *StravaHandler) HandleWebhookVerification(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("hub.mode") != "subscribe" {
		respondWithError(w, http.StatusBadRequest, "Invalid hub.mode")
		return
	}
	if query.Get("hub.verify_token") != os.Getenv("STRAVA_VERIFY_TOKEN") {
		respondWithError(w, http.StatusForbidden, "Verify token mismatch")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"hub.challenge": query.Get("hub.challenge")})
}

// HandleWebhookEvent accepts a delivery and processes it off the request
// goroutine. Strava expects a 200 within two seconds and retries otherwise;
// failures are recorded on the journal row, not surfaced to Strava.
func (h *StravaHandler) HandleWebhookEvent(w http.ResponseWriter, r *http.Request) {
	var event strava.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid event payload")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := h.stravaService.ProcessWebhookEvent(ctx, &event); err != nil {
			middleware.ObserveWebhookEvent(event.AspectType, "failed")
			log.Printf("Failed to process strava event (object %d, aspect %s): %v", event.ObjectID, event.AspectType, err)
			return
		}
		middleware.ObserveWebhookEvent(event.AspectType, "processed")
	}()

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"success": true}`))
}
