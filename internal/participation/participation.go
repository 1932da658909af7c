package participation

import (
	"time"

	"github.com/google/uuid"
)

type Participation struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	ChallengeID        uuid.UUID  `json:"challenge_id" db:"challenge_id"`
	UserID             uuid.UUID  `json:"user_id" db:"user_id"`
	JoinedAt           time.Time  `json:"joined_at" db:"joined_at"`
	TotalPoints        float64    `json:"total_points" db:"total_points"`
	CurrentStreak      int        `json:"current_streak" db:"current_streak"`
	LongestStreak      int        `json:"longest_streak" db:"longest_streak"`
	LastQualifyingDate *time.Time `json:"last_qualifying_date,omitempty" db:"last_qualifying_date"`
	ModifierFactor     float64    `json:"modifier_factor" db:"modifier_factor"`
	PaymentStatus      string     `json:"payment_status" db:"payment_status"`
}

// Status is the per-challenge summary shown on a participant's dashboard.
type Status struct {
	Participation
	Rank              int     `json:"rank"`
	PointsThisWeek    float64 `json:"points_this_week"`
	ActivitiesLogged  int     `json:"activities_logged"`
	AchievementsCount int     `json:"achievements_count"`
}
