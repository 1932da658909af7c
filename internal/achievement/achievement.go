package achievement

import (
	"time"

	"github.com/google/uuid"
)

type Frequency string

const (
	OncePerChallenge Frequency = "once_per_challenge"
	OncePerWeek      Frequency = "once_per_week"
	Unlimited        Frequency = "unlimited"
)

type Achievement struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ChallengeID uuid.UUID `json:"challenge_id" db:"challenge_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Icon        string    `json:"icon" db:"icon"`
	BonusPoints float64   `json:"bonus_points" db:"bonus_points"`
	Criteria    Criteria  `json:"criteria" db:"criteria"`
	Frequency   Frequency `json:"frequency" db:"frequency"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type UserAchievement struct {
	ID            uuid.UUID `json:"id" db:"id"`
	AchievementID uuid.UUID `json:"achievement_id" db:"achievement_id"`
	ChallengeID   uuid.UUID `json:"challenge_id" db:"challenge_id"`
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	WeekNumber    *int      `json:"week_number,omitempty" db:"week_number"`
	UnlockedAt    time.Time `json:"unlocked_at" db:"unlocked_at"`
}

type AchievementWithStatus struct {
	Achievement
	Unlocked     bool       `json:"unlocked"`
	UnlockedAt   *time.Time `json:"unlocked_at,omitempty"`
	CurrentCount int        `json:"current_count"`
	RequiredCount int       `json:"required_count"`
}
