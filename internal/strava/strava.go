package strava

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is the payload Strava POSTs to the callback URL. Deliveries
// are at-least-once and may arrive out of order; (ObjectID, AspectType,
// EventTime) identifies a delivery.
type WebhookEvent struct {
	ObjectType     string            `json:"object_type"` // "activity" or "athlete"
	ObjectID       int64             `json:"object_id"`
	AspectType     string            `json:"aspect_type"` // "create", "update", "delete"
	OwnerID        int64             `json:"owner_id"`
	SubscriptionID int64             `json:"subscription_id"`
	EventTime      int64             `json:"event_time"`
	Updates        map[string]string `json:"updates,omitempty"`
}

// Activity is the subset of Strava's activity resource the ingestion
// pipeline cares about.
type Activity struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	SportType        string    `json:"sport_type"`
	StartDate        time.Time `json:"start_date"`
	ElapsedTime      int       `json:"elapsed_time"` // seconds
	MovingTime       int       `json:"moving_time"`  // seconds
	Distance         float64   `json:"distance"`     // meters
	AverageSpeed     float64   `json:"average_speed,omitempty"`
	AverageHeartrate float64   `json:"average_heartrate,omitempty"`
	TotalElevation   float64   `json:"total_elevation_gain,omitempty"`
}

// Connection is a user's Strava authorization state.
type Connection struct {
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	AthleteID    int64     `json:"athlete_id" db:"athlete_id"`
	AccessToken  string    `json:"-" db:"access_token"`
	RefreshToken string    `json:"-" db:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
	Scope        string    `json:"scope" db:"scope"`
	NeedsReauth  bool      `json:"needs_reauth" db:"needs_reauth"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

type ConnectRequest struct {
	AthleteID    int64  `json:"athlete_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"` // unix seconds
	Scope        string `json:"scope"`
}

// TokenResponse is Strava's OAuth token refresh response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}
