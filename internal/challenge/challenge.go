package challenge

import (
	"time"

	"github.com/google/uuid"

	"marchFitnessAPI/internal/scoring"
)

type Challenge struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	Description     string    `json:"description" db:"description"`
	StartDate       time.Time `json:"start_date" db:"start_date"`
	EndDate         time.Time `json:"end_date" db:"end_date"`
	DurationDays    int       `json:"duration_days" db:"duration_days"`
	StreakMinPoints float64   `json:"streak_min_points" db:"streak_min_points"`
	WeekCalculation string    `json:"week_calculation" db:"week_calculation"`
	FinalDaysCount  int       `json:"final_days_count" db:"final_days_count"`
	Visibility      string    `json:"visibility" db:"visibility"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

type Category struct {
	ID                        uuid.UUID `json:"id" db:"id"`
	ChallengeID               uuid.UUID `json:"challenge_id" db:"challenge_id"`
	Name                      string    `json:"name" db:"name"`
	ShowInCategoryLeaderboard bool      `json:"show_in_category_leaderboard" db:"show_in_category_leaderboard"`
	SortOrder                 int       `json:"sort_order" db:"sort_order"`
}

type ActivityType struct {
	ID                   uuid.UUID                `json:"id" db:"id"`
	ChallengeID          uuid.UUID                `json:"challenge_id" db:"challenge_id"`
	CategoryID           *uuid.UUID               `json:"category_id,omitempty" db:"category_id"`
	Name                 string                   `json:"name" db:"name"`
	ScoringConfig        scoring.Config           `json:"scoring_config" db:"scoring_config"`
	BonusThresholds      []scoring.BonusThreshold `json:"bonus_thresholds,omitempty" db:"bonus_thresholds"`
	ContributesToStreak  bool                     `json:"contributes_to_streak" db:"contributes_to_streak"`
	IsNegative           bool                     `json:"is_negative" db:"is_negative"`
	MaxPerChallenge      *int                     `json:"max_per_challenge,omitempty" db:"max_per_challenge"`
	ValidWeeks           []int                    `json:"valid_weeks,omitempty" db:"valid_weeks"`
	AvailableInFinalDays bool                     `json:"available_in_final_days" db:"available_in_final_days"`
	SortOrder            int                      `json:"sort_order" db:"sort_order"`
	CreatedAt            time.Time                `json:"created_at" db:"created_at"`
}

// LoggableInWeek reports whether the type accepts logs in the given week,
// honoring the final-days fallback for week-restricted types.
func (t *ActivityType) LoggableInWeek(week int, inFinalDays bool) bool {
	if len(t.ValidWeeks) == 0 {
		return true
	}
	for _, w := range t.ValidWeeks {
		if w == week {
			return true
		}
	}
	return t.AvailableInFinalDays && inFinalDays
}

type CreateChallengeRequest struct {
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	StartDate       string  `json:"start_date"` // YYYY-MM-DD
	DurationDays    int     `json:"duration_days"`
	StreakMinPoints float64 `json:"streak_min_points"`
	FinalDaysCount  int     `json:"final_days_count"`
	Visibility      string  `json:"visibility"`
}

type CreateCategoryRequest struct {
	Name                      string `json:"name"`
	ShowInCategoryLeaderboard bool   `json:"show_in_category_leaderboard"`
	SortOrder                 int    `json:"sort_order"`
}

type CreateActivityTypeRequest struct {
	Name                 string                   `json:"name"`
	CategoryID           *uuid.UUID               `json:"category_id,omitempty"`
	ScoringConfig        scoring.Config           `json:"scoring_config"`
	BonusThresholds      []scoring.BonusThreshold `json:"bonus_thresholds,omitempty"`
	ContributesToStreak  bool                     `json:"contributes_to_streak"`
	IsNegative           bool                     `json:"is_negative"`
	MaxPerChallenge      *int                     `json:"max_per_challenge,omitempty"`
	ValidWeeks           []int                    `json:"valid_weeks,omitempty"`
	AvailableInFinalDays bool                     `json:"available_in_final_days"`
	SortOrder            int                      `json:"sort_order"`
}
