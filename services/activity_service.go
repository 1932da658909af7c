package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marchFitnessAPI/internal/achievement"
	"marchFitnessAPI/internal/activity"
	"marchFitnessAPI/internal/challenge"
	"marchFitnessAPI/internal/challengeweek"
	"marchFitnessAPI/internal/notification"
	"marchFitnessAPI/internal/scoring"
	"marchFitnessAPI/internal/streak"
)

// ActivityService owns the ingestion pipeline: validation, scoring, the
// participation aggregate, streaks and achievement grants all move inside a
// single transaction so a crash mid-ingest never leaves totals out of step
// with the activity ledger.
type ActivityService struct {
	db            *pgxpool.Pool
	notifications *NotificationService
}

func NewActivityService(db *pgxpool.Pool, notifications *NotificationService) *ActivityService {
	return &ActivityService{db: db, notifications: notifications}
}

// unlockedAchievement is an achievement granted during an ingest, carried out
// of the transaction so the notification goes out only after commit.
type unlockedAchievement struct {
	UserID      uuid.UUID
	Name        string
	BonusPoints float64
}

func (s *ActivityService) LogActivity(ctx context.Context, clerkID string, req *activity.LogActivityRequest) (*activity.Activity, error) {
	loggedDate, err := time.ParseInLocation("2006-01-02", req.LoggedDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid logged_date %q: %w", req.LoggedDate, err)
	}

	var userID uuid.UUID
	err = s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	a, unlocked, err := s.ingest(ctx, tx, ingestParams{
		UserID:          userID,
		ChallengeID:     req.ChallengeID,
		ActivityTypeID:  req.ActivityTypeID,
		LoggedDate:      loggedDate,
		Metrics:         req.Metrics,
		Notes:           req.Notes,
		SelectedBonuses: req.SelectedBonuses,
		Points:          req.Points,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit activity: %w", err)
	}

	s.notifyUnlocks(ctx, req.ChallengeID, unlocked)
	return a, nil
}

// UpsertExternalActivity ingests an activity sourced from a connected
// provider. Replays of the same external id land on the same ledger row and
// converge on the same totals.
func (s *ActivityService) UpsertExternalActivity(ctx context.Context, userID, challengeID, activityTypeID uuid.UUID, loggedDate time.Time, metrics map[string]float64, externalSourceID string) (*activity.Activity, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	a, unlocked, err := s.ingest(ctx, tx, ingestParams{
		UserID:           userID,
		ChallengeID:      challengeID,
		ActivityTypeID:   activityTypeID,
		LoggedDate:       loggedDate,
		Metrics:          metrics,
		ExternalSourceID: &externalSourceID,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit activity: %w", err)
	}

	s.notifyUnlocks(ctx, challengeID, unlocked)
	return a, nil
}

type ingestParams struct {
	UserID           uuid.UUID
	ChallengeID      uuid.UUID
	ActivityTypeID   uuid.UUID
	LoggedDate       time.Time
	Metrics          map[string]float64
	Notes            string
	SelectedBonuses  []string
	Points           *float64
	ExternalSourceID *string
}

func (s *ActivityService) ingest(ctx context.Context, tx pgx.Tx, p ingestParams) (*activity.Activity, []unlockedAchievement, error) {
	c, at, err := s.loadChallengeAndType(ctx, tx, p.ChallengeID, p.ActivityTypeID)
	if err != nil {
		return nil, nil, err
	}

	// Lock the participation row first. Concurrent ingests for the same
	// participant serialize here, so read-modify-write on the aggregate is
	// safe.
	part, err := lockParticipation(ctx, tx, p.ChallengeID, p.UserID)
	if err != nil {
		return nil, nil, err
	}

	day := challengeweek.DateOnly(p.LoggedDate)
	if !challengeweek.InWindow(c.StartDate, c.EndDate, day) {
		return nil, nil, activity.ErrOutOfChallengeWindow
	}
	week := challengeweek.WeekNumber(c.StartDate, day)
	inFinalDays := challengeweek.IsInFinalDays(c.EndDate, c.FinalDaysCount, day)
	if !at.LoggableInWeek(week, inFinalDays) {
		return nil, nil, activity.ErrTypeNotLoggableThisWeek
	}

	// An external replay updates its existing row instead of creating a
	// second one.
	var existingID *uuid.UUID
	var oldPoints float64
	if p.ExternalSourceID != nil {
		var id uuid.UUID
		err := tx.QueryRow(ctx, `
		SELECT id, points_earned FROM activities
		WHERE challenge_id = $1 AND external_source_id = $2
		`, p.ChallengeID, *p.ExternalSourceID).Scan(&id, &oldPoints)
		if err == nil {
			existingID = &id
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("failed to look up external activity: %w", err)
		}
	}

	if at.MaxPerChallenge != nil && existingID == nil {
		var count int
		err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM activities
		WHERE challenge_id = $1 AND user_id = $2 AND activity_type_id = $3
		`, p.ChallengeID, p.UserID, p.ActivityTypeID).Scan(&count)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to count activities: %w", err)
		}
		if count >= *at.MaxPerChallenge {
			return nil, nil, activity.ErrCapExceeded
		}
	}

	priorUnits, err := s.priorSameDayUnits(ctx, tx, &at.ScoringConfig, p, existingID, day)
	if err != nil {
		return nil, nil, err
	}

	points, err := scoring.ComputeScore(&at.ScoringConfig, scoring.Input{
		Metrics:           p.Metrics,
		SelectedBonuses:   p.SelectedBonuses,
		Points:            p.Points,
		PriorSameDayUnits: priorUnits,
		BonusThresholds:   at.BonusThresholds,
	})
	if err != nil {
		return nil, nil, err
	}
	if at.IsNegative && points > 0 {
		points = -points
	}

	a, err := writeActivityRow(ctx, tx, p, existingID, points)
	if err != nil {
		return nil, nil, err
	}

	// A replay that re-scores an existing row applies only the delta, so the
	// aggregate never double-counts.
	delta := (points - oldPoints) * part.ModifierFactor
	if _, err := tx.Exec(ctx, `
	UPDATE participations SET total_points = total_points + $1 WHERE id = $2
	`, delta, part.ID); err != nil {
		return nil, nil, fmt.Errorf("failed to update total points: %w", err)
	}

	if err := recomputeStreakTx(ctx, tx, c, part.ID, p.UserID, time.Now()); err != nil {
		return nil, nil, err
	}

	unlocked, err := s.evaluateAchievements(ctx, tx, c, part.ID, p.UserID, week)
	if err != nil {
		return nil, nil, err
	}

	return a, unlocked, nil
}

func (s *ActivityService) loadChallengeAndType(ctx context.Context, tx pgx.Tx, challengeID, activityTypeID uuid.UUID) (*challenge.Challenge, *challenge.ActivityType, error) {
	c := &challenge.Challenge{}
	err := tx.QueryRow(ctx, `
	SELECT id, name, description, start_date, end_date, duration_days, streak_min_points, week_calculation, final_days_count, visibility, created_at
	FROM challenges WHERE id = $1
	`, challengeID).Scan(
		&c.ID, &c.Name, &c.Description, &c.StartDate, &c.EndDate, &c.DurationDays,
		&c.StreakMinPoints, &c.WeekCalculation, &c.FinalDaysCount, &c.Visibility, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, activity.ErrChallengeOrTypeNotFound
		}
		return nil, nil, fmt.Errorf("failed to load challenge: %w", err)
	}

	// The type must belong to this challenge; a matching id under another
	// challenge is treated as not found.
	at, err := scanActivityType(tx.QueryRow(ctx, `
	SELECT id, challenge_id, category_id, name, scoring_config, bonus_thresholds, contributes_to_streak, is_negative, max_per_challenge, valid_weeks, available_in_final_days, sort_order, created_at
	FROM activity_types WHERE id = $1 AND challenge_id = $2
	`, activityTypeID, challengeID))
	if err != nil {
		return nil, nil, err
	}
	return c, at, nil
}

// participationLock is the slice of the participation row the pipeline
// needs while it holds the row lock.
type participationLock struct {
	ID             uuid.UUID
	ModifierFactor float64
}

func lockParticipation(ctx context.Context, tx pgx.Tx, challengeID, userID uuid.UUID) (*participationLock, error) {
	out := &participationLock{}
	err := tx.QueryRow(ctx, `
	SELECT id, modifier_factor FROM participations
	WHERE challenge_id = $1 AND user_id = $2
	FOR UPDATE
	`, challengeID, userID).Scan(&out.ID, &out.ModifierFactor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, activity.ErrNotParticipant
		}
		return nil, fmt.Errorf("failed to lock participation: %w", err)
	}
	return out, nil
}

// priorSameDayUnits sums the config metric over the user's other activities
// of the same type on the same day. Daily free units are consumed in logging
// order, so a later entry only gets whatever excusal earlier ones left.
func (s *ActivityService) priorSameDayUnits(ctx context.Context, tx pgx.Tx, cfg *scoring.Config, p ingestParams, excludeID *uuid.UUID, day time.Time) (float64, error) {
	if cfg.Type != scoring.TypeUnitBased || cfg.DailyFreeUnits == 0 {
		return 0, nil
	}

	exclude := uuid.Nil
	if excludeID != nil {
		exclude = *excludeID
	}
	rows, err := tx.Query(ctx, `
	SELECT metrics FROM activities
	WHERE challenge_id = $1 AND user_id = $2 AND activity_type_id = $3 AND logged_date = $4 AND id <> $5
	`, p.ChallengeID, p.UserID, p.ActivityTypeID, day, exclude)
	if err != nil {
		return 0, fmt.Errorf("failed to load same-day activities: %w", err)
	}
	defer rows.Close()

	var total float64
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return 0, fmt.Errorf("failed to scan metrics: %w", err)
		}
		var metrics map[string]float64
		if err := json.Unmarshal(raw, &metrics); err != nil {
			return 0, fmt.Errorf("failed to decode metrics: %w", err)
		}
		if v, ok := scoring.ResolveMetric(metrics, cfg.Metric); ok {
			total += v
		}
	}
	return total, rows.Err()
}

func writeActivityRow(ctx context.Context, tx pgx.Tx, p ingestParams, existingID *uuid.UUID, points float64) (*activity.Activity, error) {
	metricsJSON, err := json.Marshal(p.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metrics: %w", err)
	}

	a := &activity.Activity{
		ChallengeID:      p.ChallengeID,
		UserID:           p.UserID,
		ActivityTypeID:   p.ActivityTypeID,
		LoggedDate:       challengeweek.DateOnly(p.LoggedDate),
		Metrics:          p.Metrics,
		PointsEarned:     points,
		Notes:            p.Notes,
		ExternalSourceID: p.ExternalSourceID,
	}

	if existingID != nil {
		a.ID = *existingID
		err = tx.QueryRow(ctx, `
		UPDATE activities
		SET logged_date = $2, metrics = $3, points_earned = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
		`, a.ID, a.LoggedDate, metricsJSON, points).Scan(&a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to update activity: %w", err)
		}
		return a, nil
	}

	a.ID = uuid.New()
	err = tx.QueryRow(ctx, `
	INSERT INTO activities (id, challenge_id, user_id, activity_type_id, logged_date, metrics, points_earned, notes, external_source_id, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	RETURNING created_at, updated_at
	`, a.ID, a.ChallengeID, a.UserID, a.ActivityTypeID, a.LoggedDate, metricsJSON, points, a.Notes, a.ExternalSourceID).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert activity: %w", err)
	}
	return a, nil
}

// recomputeStreakTx rebuilds the streak from the per-day point sums rather
// than bumping counters, so backfills and replays always converge.
func recomputeStreakTx(ctx context.Context, tx pgx.Tx, c *challenge.Challenge, participationID, userID uuid.UUID, now time.Time) error {
	rows, err := tx.Query(ctx, `
	SELECT a.logged_date
	FROM activities a
	JOIN activity_types at ON at.id = a.activity_type_id
	WHERE a.challenge_id = $1 AND a.user_id = $2 AND at.contributes_to_streak
	GROUP BY a.logged_date
	HAVING SUM(a.points_earned) >= $3
	`, c.ID, userID, c.StreakMinPoints)
	if err != nil {
		return fmt.Errorf("failed to load qualifying days: %w", err)
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return fmt.Errorf("failed to scan qualifying day: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	res := streak.Compute(days, now)
	var last *time.Time
	if !res.LastQualifyingDate.IsZero() {
		last = &res.LastQualifyingDate
	}

	_, err = tx.Exec(ctx, `
	UPDATE participations
	SET current_streak = $2, longest_streak = $3, last_qualifying_date = $4
	WHERE id = $1
	`, participationID, res.Current, res.Longest, last)
	if err != nil {
		return fmt.Errorf("failed to update streak: %w", err)
	}
	return nil
}

// evaluateAchievements re-checks every achievement of the challenge against
// the user's full ledger and grants whatever newly unlocked. Week-scoped
// grants attach to the week of the triggering activity.
func (s *ActivityService) evaluateAchievements(ctx context.Context, tx pgx.Tx, c *challenge.Challenge, participationID, userID uuid.UUID, week int) ([]unlockedAchievement, error) {
	achievements, err := loadAchievementsTx(ctx, tx, c.ID)
	if err != nil {
		return nil, err
	}
	if len(achievements) == 0 {
		return nil, nil
	}

	activities, err := loadUserActivitiesTx(ctx, tx, c.ID, userID)
	if err != nil {
		return nil, err
	}

	var unlocked []unlockedAchievement
	for _, ach := range achievements {
		ev := achievement.Evaluate(ach.Criteria, activities)
		if !ev.Unlocked {
			continue
		}

		granted, err := grantAchievement(ctx, tx, ach, userID, week, ev)
		if err != nil {
			return nil, err
		}
		if !granted {
			continue
		}

		if ach.BonusPoints != 0 {
			if _, err := tx.Exec(ctx, `
			UPDATE participations SET total_points = total_points + $1 WHERE id = $2
			`, ach.BonusPoints, participationID); err != nil {
				return nil, fmt.Errorf("failed to apply achievement bonus: %w", err)
			}
		}
		unlocked = append(unlocked, unlockedAchievement{UserID: userID, Name: ach.Name, BonusPoints: ach.BonusPoints})
	}
	return unlocked, nil
}

// grantAchievement inserts the unlock row, honoring the achievement's
// frequency. The partial unique indexes make repeat grants no-ops, so a
// webhook replay that re-trips the criteria does not grant twice.
func grantAchievement(ctx context.Context, tx pgx.Tx, ach *achievement.Achievement, userID uuid.UUID, week int, ev achievement.Evaluation) (bool, error) {
	var weekNumber *int
	switch ach.Frequency {
	case achievement.OncePerWeek:
		w := week
		weekNumber = &w
	case achievement.Unlimited:
		// Each full multiple of the required count earns another grant.
		var existing int
		err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM user_achievements
		WHERE achievement_id = $1 AND challenge_id = $2 AND user_id = $3
		`, ach.ID, ach.ChallengeID, userID).Scan(&existing)
		if err != nil {
			return false, fmt.Errorf("failed to count grants: %w", err)
		}
		if ev.RequiredCount == 0 || ev.CurrentCount/ev.RequiredCount <= existing {
			return false, nil
		}
		// grant_seq > 0 keeps repeat grants off the once-per-challenge
		// unique index.
		_, err = tx.Exec(ctx, `
		INSERT INTO user_achievements (id, achievement_id, challenge_id, user_id, week_number, grant_seq, unlocked_at)
		VALUES ($1, $2, $3, $4, NULL, $5, NOW())
		`, uuid.New(), ach.ID, ach.ChallengeID, userID, existing+1)
		if err != nil {
			return false, fmt.Errorf("failed to grant achievement: %w", err)
		}
		return true, nil
	}

	result, err := tx.Exec(ctx, `
	INSERT INTO user_achievements (id, achievement_id, challenge_id, user_id, week_number, unlocked_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	ON CONFLICT DO NOTHING
	`, uuid.New(), ach.ID, ach.ChallengeID, userID, weekNumber)
	if err != nil {
		return false, fmt.Errorf("failed to grant achievement: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func loadAchievementsTx(ctx context.Context, tx pgx.Tx, challengeID uuid.UUID) ([]*achievement.Achievement, error) {
	rows, err := tx.Query(ctx, `
	SELECT id, challenge_id, name, description, icon, bonus_points, criteria, frequency, created_at
	FROM achievements WHERE challenge_id = $1
	`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load achievements: %w", err)
	}
	defer rows.Close()

	var out []*achievement.Achievement
	for rows.Next() {
		a := &achievement.Achievement{}
		var criteriaJSON []byte
		err := rows.Scan(&a.ID, &a.ChallengeID, &a.Name, &a.Description, &a.Icon, &a.BonusPoints, &criteriaJSON, &a.Frequency, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		if err := json.Unmarshal(criteriaJSON, &a.Criteria); err != nil {
			return nil, fmt.Errorf("failed to decode criteria for achievement %s: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func loadUserActivitiesTx(ctx context.Context, tx pgx.Tx, challengeID, userID uuid.UUID) ([]*activity.Activity, error) {
	rows, err := tx.Query(ctx, `
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

func (s *ActivityService) notifyUnlocks(ctx context.Context, challengeID uuid.UUID, unlocked []unlockedAchievement) {
	for _, u := range unlocked {
		_, err := s.notifications.Notify(ctx, &notification.CreateNotificationRequest{
			UserID:  u.UserID,
			Type:    notification.NotificationAchievement,
			Title:   "Achievement unlocked!",
			Message: fmt.Sprintf("You earned %s", u.Name),
			Data: map[string]any{
				"challenge_id": challengeID.String(),
				"bonus_points": u.BonusPoints,
			},
		})
		if err != nil {
			log.Printf("Failed to send achievement notification: %v", err)
		}
	}
}

func (s *ActivityService) GetActivities(ctx context.Context, challengeID uuid.UUID, clerkID string) ([]*activity.Activity, error) {
	query := `
	SELECT a.id, a.challenge_id, a.user_id, a.activity_type_id, a.logged_date, a.metrics, a.points_earned, a.notes, a.external_source_id, a.points_overridden, a.admin_comment, a.flagged_reason, a.resolution_status, a.created_at, a.updated_at
	FROM activities a
	JOIN users u ON u.id = a.user_id
	WHERE a.challenge_id = $1 AND u.clerk_id = $2
	ORDER BY a.logged_date DESC, a.created_at DESC
	`
	rows, err := s.db.Query(ctx, query, challengeID, clerkID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var out []*activity.Activity
	for rows.Next() {
		a := &activity.Activity{}
		var metricsJSON []byte
		err := rows.Scan(
			&a.ID, &a.ChallengeID, &a.UserID, &a.ActivityTypeID, &a.LoggedDate,
			&metricsJSON, &a.PointsEarned, &a.Notes, &a.ExternalSourceID,
			&a.PointsOverridden, &a.AdminComment, &a.FlaggedReason, &a.ResolutionStatus,
			&a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if err := json.Unmarshal(metricsJSON, &a.Metrics); err != nil {
			return nil, fmt.Errorf("failed to decode metrics: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteActivity removes a user's own activity and unwinds its contribution
// to the aggregate.
func (s *ActivityService) DeleteActivity(ctx context.Context, activityID uuid.UUID, clerkID string) error {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return fmt.Errorf("user not found: %w", err)
	}
	return s.removeActivity(ctx, activityID, &userID)
}

// DeleteExternalActivities removes every ledger row created from the given
// external source id, one challenge at a time. Used when the provider
// reports the source activity deleted.
func (s *ActivityService) DeleteExternalActivities(ctx context.Context, userID uuid.UUID, externalSourceID string) (int, error) {
	rows, err := s.db.Query(ctx, `
	SELECT id FROM activities WHERE user_id = $1 AND external_source_id = $2
	`, userID, externalSourceID)
	if err != nil {
		return 0, fmt.Errorf("failed to find external activities: %w", err)
	}
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan activity id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		if err := s.removeActivity(ctx, id, &userID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// removeActivity deletes one activity, reverses its point contribution, and
// recomputes the streak. Achievement grants the activity helped earn stay,
// along with their bonus points.
func (s *ActivityService) removeActivity(ctx context.Context, activityID uuid.UUID, ownerID *uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	a := &activity.Activity{}
	err = tx.QueryRow(ctx, `
	SELECT id, challenge_id, user_id, points_earned FROM activities WHERE id = $1
	`, activityID).Scan(&a.ID, &a.ChallengeID, &a.UserID, &a.PointsEarned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return activity.ErrActivityNotFound
		}
		return fmt.Errorf("failed to load activity: %w", err)
	}
	if ownerID != nil && a.UserID != *ownerID {
		return activity.ErrActivityNotFound
	}

	c, err := loadChallengeTx(ctx, tx, a.ChallengeID)
	if err != nil {
		return err
	}
	part, err := lockParticipation(ctx, tx, a.ChallengeID, a.UserID)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM activities WHERE id = $1`, a.ID); err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	if _, err := tx.Exec(ctx, `
	UPDATE participations SET total_points = total_points - $1 WHERE id = $2
	`, a.PointsEarned*part.ModifierFactor, part.ID); err != nil {
		return fmt.Errorf("failed to unwind total points: %w", err)
	}
	if err := recomputeStreakTx(ctx, tx, c, part.ID, a.UserID, time.Now()); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func loadChallengeTx(ctx context.Context, tx pgx.Tx, challengeID uuid.UUID) (*challenge.Challenge, error) {
	c := &challenge.Challenge{}
	err := tx.QueryRow(ctx, `
	SELECT id, start_date, end_date, duration_days, streak_min_points, final_days_count
	FROM challenges WHERE id = $1
	`, challengeID).Scan(&c.ID, &c.StartDate, &c.EndDate, &c.DurationDays, &c.StreakMinPoints, &c.FinalDaysCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, activity.ErrChallengeOrTypeNotFound
		}
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	return c, nil
}

// OverridePoints lets an admin set an activity's points directly. The
// comment is mandatory; overrides without a paper trail are not accepted.
func (s *ActivityService) OverridePoints(ctx context.Context, activityID uuid.UUID, req *activity.OverridePointsRequest) (*activity.Activity, error) {
	if req.AdminComment == "" {
		return nil, fmt.Errorf("admin_comment is required for a points override")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	a := &activity.Activity{}
	err = tx.QueryRow(ctx, `
	SELECT id, challenge_id, user_id, points_earned FROM activities WHERE id = $1 FOR UPDATE
	`, activityID).Scan(&a.ID, &a.ChallengeID, &a.UserID, &a.PointsEarned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, activity.ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to load activity: %w", err)
	}

	c, err := loadChallengeTx(ctx, tx, a.ChallengeID)
	if err != nil {
		return nil, err
	}
	part, err := lockParticipation(ctx, tx, a.ChallengeID, a.UserID)
	if err != nil {
		return nil, err
	}

	oldPoints := a.PointsEarned
	a.PointsEarned = req.Points
	a.PointsOverridden = true
	a.AdminComment = &req.AdminComment

	_, err = tx.Exec(ctx, `
	UPDATE activities
	SET points_earned = $2, points_overridden = TRUE, admin_comment = $3, updated_at = NOW()
	WHERE id = $1
	`, a.ID, req.Points, req.AdminComment)
	if err != nil {
		return nil, fmt.Errorf("failed to override points: %w", err)
	}

	delta := (req.Points - oldPoints) * part.ModifierFactor
	if _, err := tx.Exec(ctx, `
	UPDATE participations SET total_points = total_points + $1 WHERE id = $2
	`, delta, part.ID); err != nil {
		return nil, fmt.Errorf("failed to update total points: %w", err)
	}
	if err := recomputeStreakTx(ctx, tx, c, part.ID, a.UserID, time.Now()); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit override: %w", err)
	}

	_, err = s.notifications.Notify(ctx, &notification.CreateNotificationRequest{
		UserID:  a.UserID,
		Type:    notification.NotificationAdminModerated,
		Title:   "Activity points adjusted",
		Message: req.AdminComment,
		Data:    map[string]any{"activity_id": a.ID.String()},
	})
	if err != nil {
		log.Printf("Failed to send moderation notification: %v", err)
	}
	return a, nil
}

func (s *ActivityService) FlagActivity(ctx context.Context, activityID uuid.UUID, req *activity.FlagActivityRequest) error {
	result, err := s.db.Exec(ctx, `
	UPDATE activities
	SET flagged_reason = $2, resolution_status = 'pending', updated_at = NOW()
	WHERE id = $1
	`, activityID, req.Reason)
	if err != nil {
		return fmt.Errorf("failed to flag activity: %w", err)
	}
	if result.RowsAffected() == 0 {
		return activity.ErrActivityNotFound
	}
	return nil
}

func (s *ActivityService) ResolveFlag(ctx context.Context, activityID uuid.UUID, req *activity.ResolveFlagRequest) error {
	if req.Status != "upheld" && req.Status != "dismissed" {
		return fmt.Errorf("invalid resolution status %q", req.Status)
	}
	result, err := s.db.Exec(ctx, `
	UPDATE activities
	SET resolution_status = $2, admin_comment = COALESCE(NULLIF($3, ''), admin_comment), updated_at = NOW()
	WHERE id = $1 AND flagged_reason IS NOT NULL
	`, activityID, req.Status, req.AdminComment)
	if err != nil {
		return fmt.Errorf("failed to resolve flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return activity.ErrActivityNotFound
	}
	return nil
}

// RecomputeParticipation rebuilds the aggregate from the ledger: the sum of
// earned points times the modifier, plus earned achievement bonuses, plus a
// full streak recompute. Repair tool for aggregates that drifted.
//
// Achievement grants are never revoked, even when the activities that earned
// them are deleted, so the bonus term sums the surviving grants rather than
// re-evaluating criteria against the remaining activities.
func (s *ActivityService) RecomputeParticipation(ctx context.Context, challengeID, userID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := loadChallengeTx(ctx, tx, challengeID)
	if err != nil {
		return err
	}
	part, err := lockParticipation(ctx, tx, challengeID, userID)
	if err != nil {
		return err
	}

	var activityPoints, bonusPoints float64
	err = tx.QueryRow(ctx, `
	SELECT COALESCE(SUM(points_earned), 0) FROM activities
	WHERE challenge_id = $1 AND user_id = $2
	`, challengeID, userID).Scan(&activityPoints)
	if err != nil {
		return fmt.Errorf("failed to sum activity points: %w", err)
	}
	err = tx.QueryRow(ctx, `
	SELECT COALESCE(SUM(a.bonus_points), 0)
	FROM user_achievements ua
	JOIN achievements a ON a.id = ua.achievement_id
	WHERE ua.challenge_id = $1 AND ua.user_id = $2
	`, challengeID, userID).Scan(&bonusPoints)
	if err != nil {
		return fmt.Errorf("failed to sum achievement bonuses: %w", err)
	}

	total := activityPoints*part.ModifierFactor + bonusPoints
	if _, err := tx.Exec(ctx, `
	UPDATE participations SET total_points = $1 WHERE id = $2
	`, total, part.ID); err != nil {
		return fmt.Errorf("failed to write recomputed total: %w", err)
	}
	if err := recomputeStreakTx(ctx, tx, c, part.ID, userID, time.Now()); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
