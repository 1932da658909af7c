package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"marchFitnessAPI/internal/achievement"
	"marchFitnessAPI/internal/activity"
)

type AchievementService struct {
	db *pgxpool.Pool
}

func NewAchievementService(db *pgxpool.Pool) *AchievementService {
	return &AchievementService{db: db}
}

type CreateAchievementRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Icon        string                `json:"icon"`
	BonusPoints float64               `json:"bonus_points"`
	Criteria    achievement.Criteria  `json:"criteria"`
	Frequency   achievement.Frequency `json:"frequency"`
}

func (s *AchievementService) CreateAchievement(ctx context.Context, challengeID uuid.UUID, req *CreateAchievementRequest) (*achievement.Achievement, error) {
	frequency := req.Frequency
	if frequency == "" {
		frequency = achievement.OncePerChallenge
	}
	switch frequency {
	case achievement.OncePerChallenge, achievement.OncePerWeek, achievement.Unlimited:
	default:
		return nil, fmt.Errorf("invalid achievement frequency %q", frequency)
	}

	criteriaJSON, err := json.Marshal(req.Criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to encode criteria: %w", err)
	}

	a := &achievement.Achievement{
		ID:          uuid.New(),
		ChallengeID: challengeID,
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		BonusPoints: req.BonusPoints,
		Criteria:    req.Criteria,
		Frequency:   frequency,
	}

	err = s.db.QueryRow(ctx, `
	INSERT INTO achievements (id, challenge_id, name, description, icon, bonus_points, criteria, frequency, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	RETURNING created_at
	`, a.ID, a.ChallengeID, a.Name, a.Description, a.Icon, a.BonusPoints, criteriaJSON, a.Frequency).Scan(&a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create achievement: %w", err)
	}
	return a, nil
}

// ListAchievements returns the challenge's achievements annotated with the
// caller's progress, evaluated live against their ledger so progress bars
// stay honest even between unlocks.
func (s *AchievementService) ListAchievements(ctx context.Context, challengeID uuid.UUID, clerkID string) ([]*achievement.AchievementWithStatus, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	rows, err := s.db.Query(ctx, `
	SELECT id, challenge_id, name, description, icon, bonus_points, criteria, frequency, created_at
	FROM achievements WHERE challenge_id = $1 ORDER BY created_at
	`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievements: %w", err)
	}
	defer rows.Close()

	var achievements []*achievement.AchievementWithStatus
	for rows.Next() {
		a := &achievement.AchievementWithStatus{}
		var criteriaJSON []byte
		err := rows.Scan(&a.ID, &a.ChallengeID, &a.Name, &a.Description, &a.Icon, &a.BonusPoints, &criteriaJSON, &a.Frequency, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		if err := json.Unmarshal(criteriaJSON, &a.Criteria); err != nil {
			return nil, fmt.Errorf("failed to decode criteria for achievement %s: %w", a.ID, err)
		}
		achievements = append(achievements, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(achievements) == 0 {
		return achievements, nil
	}

	unlocks, err := s.loadUnlocks(ctx, challengeID, userID)
	if err != nil {
		return nil, err
	}

	logged, err := s.loadLedger(ctx, challengeID, userID)
	if err != nil {
		return nil, err
	}

	for _, a := range achievements {
		ev := achievement.Evaluate(a.Criteria, logged)
		a.CurrentCount = ev.CurrentCount
		a.RequiredCount = ev.RequiredCount
		if at, ok := unlocks[a.ID]; ok {
			a.Unlocked = true
			unlockedAt := at
			a.UnlockedAt = &unlockedAt
		}
	}
	return achievements, nil
}

// loadUnlocks maps achievement id to the earliest unlock time for the user.
func (s *AchievementService) loadUnlocks(ctx context.Context, challengeID, userID uuid.UUID) (map[uuid.UUID]time.Time, error) {
	rows, err := s.db.Query(ctx, `
	SELECT achievement_id, MIN(unlocked_at)
	FROM user_achievements
	WHERE challenge_id = $1 AND user_id = $2
	GROUP BY achievement_id
	`, challengeID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load unlocks: %w", err)
	}
	defer rows.Close()

	unlocks := make(map[uuid.UUID]time.Time)
	for rows.Next() {
		var id uuid.UUID
		var at time.Time
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("failed to scan unlock: %w", err)
		}
		unlocks[id] = at
	}
	return unlocks, rows.Err()
}

func (s *AchievementService) loadLedger(ctx context.Context, challengeID, userID uuid.UUID) ([]*activity.Activity, error) {
	rows, err := s.db.Query(ctx, `
	SELECT id, activity_type_id, logged_date, metrics, points_earned
	FROM activities WHERE challenge_id = $1 AND user_id = $2
	`, challengeID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load activities: %w", err)
	}
	defer rows.Close()

	var out []*activity.Activity
	for rows.Next() {
		a := &activity.Activity{ChallengeID: challengeID, UserID: userID}
		var metricsJSON []byte
		if err := rows.Scan(&a.ID, &a.ActivityTypeID, &a.LoggedDate, &metricsJSON, &a.PointsEarned); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if err := json.Unmarshal(metricsJSON, &a.Metrics); err != nil {
			return nil, fmt.Errorf("failed to decode metrics for activity %s: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
