package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marchFitnessAPI/internal/activity"
	"marchFitnessAPI/internal/challenge"
	"marchFitnessAPI/internal/challengeweek"
	"marchFitnessAPI/internal/participation"
)

type ChallengeService struct {
	db *pgxpool.Pool
}

func NewChallengeService(db *pgxpool.Pool) *ChallengeService {
	return &ChallengeService{db: db}
}

func (s *ChallengeService) CreateChallenge(ctx context.Context, req *challenge.CreateChallengeRequest) (*challenge.Challenge, error) {
	startDate, err := time.ParseInLocation("2006-01-02", req.StartDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid start_date %q: %w", req.StartDate, err)
	}
	if req.DurationDays <= 0 {
		return nil, fmt.Errorf("duration_days must be positive")
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = "public"
	}

	c := &challenge.Challenge{
		ID:              uuid.New(),
		Name:            req.Name,
		Description:     req.Description,
		StartDate:       startDate,
		EndDate:         startDate.AddDate(0, 0, req.DurationDays-1),
		DurationDays:    req.DurationDays,
		StreakMinPoints: req.StreakMinPoints,
		WeekCalculation: "start_date",
		FinalDaysCount:  req.FinalDaysCount,
		Visibility:      visibility,
	}

	query := `
	INSERT INTO challenges (id, name, description, start_date, end_date, duration_days, streak_min_points, week_calculation, final_days_count, visibility, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	RETURNING created_at
	`

	err = s.db.QueryRow(ctx, query,
		c.ID, c.Name, c.Description, c.StartDate, c.EndDate, c.DurationDays,
		c.StreakMinPoints, c.WeekCalculation, c.FinalDaysCount, c.Visibility,
	).Scan(&c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	return c, nil
}

func (s *ChallengeService) GetChallenge(ctx context.Context, challengeID uuid.UUID) (*challenge.Challenge, error) {
	query := `
	SELECT id, name, description, start_date, end_date, duration_days, streak_min_points, week_calculation, final_days_count, visibility, created_at
	FROM challenges
	WHERE id = $1
	`

	c := &challenge.Challenge{}
	err := s.db.QueryRow(ctx, query, challengeID).Scan(
		&c.ID, &c.Name, &c.Description, &c.StartDate, &c.EndDate, &c.DurationDays,
		&c.StreakMinPoints, &c.WeekCalculation, &c.FinalDaysCount, &c.Visibility, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, activity.ErrChallengeOrTypeNotFound
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return c, nil
}

func (s *ChallengeService) ListChallenges(ctx context.Context) ([]*challenge.Challenge, error) {
	query := `
	SELECT id, name, description, start_date, end_date, duration_days, streak_min_points, week_calculation, final_days_count, visibility, created_at
	FROM challenges
	WHERE visibility = 'public'
	ORDER BY start_date DESC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	var challenges []*challenge.Challenge
	for rows.Next() {
		c := &challenge.Challenge{}
		err := rows.Scan(
			&c.ID, &c.Name, &c.Description, &c.StartDate, &c.EndDate, &c.DurationDays,
			&c.StreakMinPoints, &c.WeekCalculation, &c.FinalDaysCount, &c.Visibility, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		challenges = append(challenges, c)
	}
	return challenges, rows.Err()
}

// DeleteChallenge removes a challenge and everything hanging off it. The
// schema cascades activity types, activities, participations, achievements
// and user achievements.
func (s *ChallengeService) DeleteChallenge(ctx context.Context, challengeID uuid.UUID) error {
	result, err := s.db.Exec(ctx, `DELETE FROM challenges WHERE id = $1`, challengeID)
	if err != nil {
		return fmt.Errorf("failed to delete challenge: %w", err)
	}
	if result.RowsAffected() == 0 {
		return activity.ErrChallengeOrTypeNotFound
	}
	return nil
}

func (s *ChallengeService) JoinChallenge(ctx context.Context, challengeID uuid.UUID, clerkID string) (*participation.Participation, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	query := `
	INSERT INTO participations (id, challenge_id, user_id, joined_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (challenge_id, user_id) DO UPDATE SET challenge_id = EXCLUDED.challenge_id
	RETURNING id, challenge_id, user_id, joined_at, total_points, current_streak, longest_streak, last_qualifying_date, modifier_factor, payment_status
	`

	p := &participation.Participation{}
	err = s.db.QueryRow(ctx, query, uuid.New(), challengeID, userID).Scan(
		&p.ID, &p.ChallengeID, &p.UserID, &p.JoinedAt, &p.TotalPoints,
		&p.CurrentStreak, &p.LongestStreak, &p.LastQualifyingDate,
		&p.ModifierFactor, &p.PaymentStatus,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to join challenge: %w", err)
	}
	return p, nil
}

// GetParticipationStatus builds the participant dashboard summary: stored
// aggregate plus rank and this week's points.
func (s *ChallengeService) GetParticipationStatus(ctx context.Context, challengeID uuid.UUID, clerkID string) (*participation.Status, error) {
	c, err := s.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	var userID uuid.UUID
	err = s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	status := &participation.Status{}
	query := `
	SELECT id, challenge_id, user_id, joined_at, total_points, current_streak, longest_streak, last_qualifying_date, modifier_factor, payment_status
	FROM participations
	WHERE challenge_id = $1 AND user_id = $2
	`
	err = s.db.QueryRow(ctx, query, challengeID, userID).Scan(
		&status.ID, &status.ChallengeID, &status.UserID, &status.JoinedAt,
		&status.TotalPoints, &status.CurrentStreak, &status.LongestStreak,
		&status.LastQualifyingDate, &status.ModifierFactor, &status.PaymentStatus,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, activity.ErrNotParticipant
		}
		return nil, fmt.Errorf("failed to get participation: %w", err)
	}

	err = s.db.QueryRow(ctx, `
	SELECT rank FROM (
		SELECT user_id, RANK() OVER (ORDER BY total_points DESC, joined_at ASC, user_id ASC) AS rank
		FROM participations WHERE challenge_id = $1
	) ranked WHERE user_id = $2
	`, challengeID, userID).Scan(&status.Rank)
	if err != nil {
		return nil, fmt.Errorf("failed to compute rank: %w", err)
	}

	week := challengeweek.WeekNumber(c.StartDate, time.Now())
	if week > 0 {
		weekStart, weekEnd := challengeweek.WeekDateRange(c.StartDate, week)
		err = s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(points_earned), 0)
		FROM activities
		WHERE challenge_id = $1 AND user_id = $2 AND logged_date >= $3 AND logged_date < $4
		`, challengeID, userID, weekStart, weekEnd).Scan(&status.PointsThisWeek)
		if err != nil {
			return nil, fmt.Errorf("failed to sum weekly points: %w", err)
		}
	}

	err = s.db.QueryRow(ctx, `
	SELECT
		(SELECT COUNT(*) FROM activities WHERE challenge_id = $1 AND user_id = $2),
		(SELECT COUNT(*) FROM user_achievements WHERE challenge_id = $1 AND user_id = $2)
	`, challengeID, userID).Scan(&status.ActivitiesLogged, &status.AchievementsCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count activities: %w", err)
	}

	return status, nil
}

func (s *ChallengeService) CreateCategory(ctx context.Context, challengeID uuid.UUID, req *challenge.CreateCategoryRequest) (*challenge.Category, error) {
	cat := &challenge.Category{
		ID:                        uuid.New(),
		ChallengeID:               challengeID,
		Name:                      req.Name,
		ShowInCategoryLeaderboard: req.ShowInCategoryLeaderboard,
		SortOrder:                 req.SortOrder,
	}

	_, err := s.db.Exec(ctx, `
	INSERT INTO categories (id, challenge_id, name, show_in_category_leaderboard, sort_order)
	VALUES ($1, $2, $3, $4, $5)
	`, cat.ID, cat.ChallengeID, cat.Name, cat.ShowInCategoryLeaderboard, cat.SortOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return cat, nil
}

func (s *ChallengeService) ListCategories(ctx context.Context, challengeID uuid.UUID) ([]*challenge.Category, error) {
	rows, err := s.db.Query(ctx, `
	SELECT id, challenge_id, name, show_in_category_leaderboard, sort_order
	FROM categories WHERE challenge_id = $1 ORDER BY sort_order, name
	`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []*challenge.Category
	for rows.Next() {
		c := &challenge.Category{}
		if err := rows.Scan(&c.ID, &c.ChallengeID, &c.Name, &c.ShowInCategoryLeaderboard, &c.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *ChallengeService) CreateActivityType(ctx context.Context, challengeID uuid.UUID, req *challenge.CreateActivityTypeRequest) (*challenge.ActivityType, error) {
	// Reject bad configs at definition time; the pipeline re-validates at
	// scoring time as well.
	if err := req.ScoringConfig.Validate(); err != nil {
		return nil, err
	}

	configJSON, err := json.Marshal(req.ScoringConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scoring config: %w", err)
	}
	var bonusJSON []byte
	if len(req.BonusThresholds) > 0 {
		bonusJSON, err = json.Marshal(req.BonusThresholds)
		if err != nil {
			return nil, fmt.Errorf("failed to encode bonus thresholds: %w", err)
		}
	}

	t := &challenge.ActivityType{
		ID:                   uuid.New(),
		ChallengeID:          challengeID,
		CategoryID:           req.CategoryID,
		Name:                 req.Name,
		ScoringConfig:        req.ScoringConfig,
		BonusThresholds:      req.BonusThresholds,
		ContributesToStreak:  req.ContributesToStreak,
		IsNegative:           req.IsNegative,
		MaxPerChallenge:      req.MaxPerChallenge,
		ValidWeeks:           req.ValidWeeks,
		AvailableInFinalDays: req.AvailableInFinalDays,
		SortOrder:            req.SortOrder,
	}

	validWeeks := make([]int32, len(req.ValidWeeks))
	for i, w := range req.ValidWeeks {
		validWeeks[i] = int32(w)
	}

	query := `
	INSERT INTO activity_types (id, challenge_id, category_id, name, scoring_config, bonus_thresholds, contributes_to_streak, is_negative, max_per_challenge, valid_weeks, available_in_final_days, sort_order, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
	RETURNING created_at
	`
	err = s.db.QueryRow(ctx, query,
		t.ID, t.ChallengeID, t.CategoryID, t.Name, configJSON, bonusJSON,
		t.ContributesToStreak, t.IsNegative, t.MaxPerChallenge, validWeeks,
		t.AvailableInFinalDays, t.SortOrder,
	).Scan(&t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create activity type: %w", err)
	}
	return t, nil
}

func (s *ChallengeService) ListActivityTypes(ctx context.Context, challengeID uuid.UUID) ([]*challenge.ActivityType, error) {
	query := `
	SELECT id, challenge_id, category_id, name, scoring_config, bonus_thresholds, contributes_to_streak, is_negative, max_per_challenge, valid_weeks, available_in_final_days, sort_order, created_at
	FROM activity_types
	WHERE challenge_id = $1
	ORDER BY sort_order, name
	`

	rows, err := s.db.Query(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity types: %w", err)
	}
	defer rows.Close()

	var types []*challenge.ActivityType
	for rows.Next() {
		t, err := scanActivityType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivityType(row rowScanner) (*challenge.ActivityType, error) {
	t := &challenge.ActivityType{}
	var configJSON, bonusJSON []byte
	var validWeeks []int32

	err := row.Scan(
		&t.ID, &t.ChallengeID, &t.CategoryID, &t.Name, &configJSON, &bonusJSON,
		&t.ContributesToStreak, &t.IsNegative, &t.MaxPerChallenge, &validWeeks,
		&t.AvailableInFinalDays, &t.SortOrder, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, activity.ErrChallengeOrTypeNotFound
		}
		return nil, fmt.Errorf("failed to scan activity type: %w", err)
	}

	if err := json.Unmarshal(configJSON, &t.ScoringConfig); err != nil {
		return nil, fmt.Errorf("failed to decode scoring config for type %s: %w", t.ID, err)
	}
	if len(bonusJSON) > 0 {
		if err := json.Unmarshal(bonusJSON, &t.BonusThresholds); err != nil {
			return nil, fmt.Errorf("failed to decode bonus thresholds for type %s: %w", t.ID, err)
		}
	}
	for _, w := range validWeeks {
		t.ValidWeeks = append(t.ValidWeeks, int(w))
	}
	return t, nil
}
