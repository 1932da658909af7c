package activity

import (
	"time"

	"github.com/google/uuid"
)

type Activity struct {
	ID               uuid.UUID          `json:"id" db:"id"`
	ChallengeID      uuid.UUID          `json:"challenge_id" db:"challenge_id"`
	UserID           uuid.UUID          `json:"user_id" db:"user_id"`
	ActivityTypeID   uuid.UUID          `json:"activity_type_id" db:"activity_type_id"`
	LoggedDate       time.Time          `json:"logged_date" db:"logged_date"`
	Metrics          map[string]float64 `json:"metrics" db:"metrics"`
	PointsEarned     float64            `json:"points_earned" db:"points_earned"`
	Notes            string             `json:"notes" db:"notes"`
	ExternalSourceID *string            `json:"external_source_id,omitempty" db:"external_source_id"`
	PointsOverridden bool               `json:"points_overridden" db:"points_overridden"`
	AdminComment     *string            `json:"admin_comment,omitempty" db:"admin_comment"`
	FlaggedReason    *string            `json:"flagged_reason,omitempty" db:"flagged_reason"`
	ResolutionStatus *string            `json:"resolution_status,omitempty" db:"resolution_status"`
	CreatedAt        time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at" db:"updated_at"`
}

type LogActivityRequest struct {
	ChallengeID    uuid.UUID          `json:"challenge_id"`
	ActivityTypeID uuid.UUID          `json:"activity_type_id"`
	LoggedDate     string             `json:"logged_date"` // YYYY-MM-DD
	Metrics        map[string]float64 `json:"metrics"`
	Notes          string             `json:"notes"`
	// SelectedBonuses picks optional bonuses on completion-scored types.
	SelectedBonuses []string `json:"selected_bonuses,omitempty"`
	// Points is required for variable-scored types and ignored otherwise.
	Points *float64 `json:"points,omitempty"`
}

type OverridePointsRequest struct {
	Points       float64 `json:"points"`
	AdminComment string  `json:"admin_comment"`
}

type FlagActivityRequest struct {
	Reason string `json:"reason"`
}

type ResolveFlagRequest struct {
	Status       string `json:"status"` // 'upheld' or 'dismissed'
	AdminComment string `json:"admin_comment"`
}
