package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marchFitnessAPI/internal/activity"
	"marchFitnessAPI/internal/scoring"
	"marchFitnessAPI/services"
	"marchFitnessAPI/tests/helpers"
)

func TestManualLoggingUpdatesAggregate(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	notificationService := services.NewNotificationService(pool)
	activityService := services.NewActivityService(pool, notificationService)

	clerkID := "user_ingest_" + time.Now().Format("20060102150405")
	userID := helpers.CreateTestUser(t, pool, clerkID)
	challengeID := helpers.CreateTestChallenge(t, pool, 10)
	typeID := helpers.CreateTestActivityType(t, pool, challengeID, "Run", scoring.Config{
		Type:          scoring.TypeUnitBased,
		Metric:        "miles",
		PointsPerUnit: 5,
	}, nil)
	helpers.JoinTestChallenge(t, pool, challengeID, userID)

	today := time.Now().UTC().Format("2006-01-02")
	a, err := activityService.LogActivity(context.Background(), clerkID, &activity.LogActivityRequest{
		ChallengeID:    challengeID,
		ActivityTypeID: typeID,
		LoggedDate:     today,
		Metrics:        map[string]float64{"miles": 4},
	})
	require.NoError(t, err)
	assert.Equal(t, 20.0, a.PointsEarned)

	total, streak := helpers.ParticipationTotals(t, pool, challengeID, userID)
	assert.Equal(t, 20.0, total)
	assert.Equal(t, 1, streak, "20 points today should start a streak at threshold 10")
}

func TestExternalUpsertIsIdempotent(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	notificationService := services.NewNotificationService(pool)
	activityService := services.NewActivityService(pool, notificationService)

	clerkID := "user_upsert_" + time.Now().Format("20060102150405")
	userID := helpers.CreateTestUser(t, pool, clerkID)
	challengeID := helpers.CreateTestChallenge(t, pool, 10)
	typeID := helpers.CreateTestActivityType(t, pool, challengeID, "Run", scoring.Config{
		Type:          scoring.TypeUnitBased,
		Metric:        "miles",
		PointsPerUnit: 5,
	}, nil)
	helpers.JoinTestChallenge(t, pool, challengeID, userID)

	ctx := context.Background()
	today := time.Now().UTC()
	externalID := "strava-987654"

	first, err := activityService.UpsertExternalActivity(ctx, userID, challengeID, typeID, today, map[string]float64{"miles": 3}, externalID)
	require.NoError(t, err)
	assert.Equal(t, 15.0, first.PointsEarned)

	// Replay with corrected distance: same row, corrected totals.
	second, err := activityService.UpsertExternalActivity(ctx, userID, challengeID, typeID, today, map[string]float64{"miles": 5}, externalID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "replay must land on the same ledger row")
	assert.Equal(t, 25.0, second.PointsEarned)

	var count int
	err = pool.QueryRow(ctx, `
	SELECT COUNT(*) FROM activities WHERE challenge_id = $1 AND external_source_id = $2
	`, challengeID, externalID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	total, _ := helpers.ParticipationTotals(t, pool, challengeID, userID)
	assert.Equal(t, 25.0, total, "aggregate must reflect the corrected value, not the sum of both")
}

func TestDeletionReversesContribution(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	notificationService := services.NewNotificationService(pool)
	activityService := services.NewActivityService(pool, notificationService)

	clerkID := "user_delete_" + time.Now().Format("20060102150405")
	userID := helpers.CreateTestUser(t, pool, clerkID)
	challengeID := helpers.CreateTestChallenge(t, pool, 10)
	typeID := helpers.CreateTestActivityType(t, pool, challengeID, "Run", scoring.Config{
		Type:          scoring.TypeUnitBased,
		Metric:        "miles",
		PointsPerUnit: 5,
	}, nil)
	helpers.JoinTestChallenge(t, pool, challengeID, userID)

	ctx := context.Background()
	today := time.Now().UTC().Format("2006-01-02")

	a, err := activityService.LogActivity(ctx, clerkID, &activity.LogActivityRequest{
		ChallengeID:    challengeID,
		ActivityTypeID: typeID,
		LoggedDate:     today,
		Metrics:        map[string]float64{"miles": 4},
	})
	require.NoError(t, err)

	require.NoError(t, activityService.DeleteActivity(ctx, a.ID, clerkID))

	total, streak := helpers.ParticipationTotals(t, pool, challengeID, userID)
	assert.Equal(t, 0.0, total)
	assert.Equal(t, 0, streak, "deleting the only qualifying activity must clear the streak")
}

func TestPerChallengeCapIsEnforced(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	notificationService := services.NewNotificationService(pool)
	activityService := services.NewActivityService(pool, notificationService)

	clerkID := "user_cap_" + time.Now().Format("20060102150405")
	userID := helpers.CreateTestUser(t, pool, clerkID)
	challengeID := helpers.CreateTestChallenge(t, pool, 10)
	maxLogs := 1
	typeID := helpers.CreateTestActivityType(t, pool, challengeID, "Marathon", scoring.Config{
		Type:        scoring.TypeCompletion,
		FixedPoints: 100,
	}, &maxLogs)
	helpers.JoinTestChallenge(t, pool, challengeID, userID)

	ctx := context.Background()
	today := time.Now().UTC().Format("2006-01-02")

	_, err := activityService.LogActivity(ctx, clerkID, &activity.LogActivityRequest{
		ChallengeID:    challengeID,
		ActivityTypeID: typeID,
		LoggedDate:     today,
		Metrics:        map[string]float64{},
	})
	require.NoError(t, err)

	_, err = activityService.LogActivity(ctx, clerkID, &activity.LogActivityRequest{
		ChallengeID:    challengeID,
		ActivityTypeID: typeID,
		LoggedDate:     today,
		Metrics:        map[string]float64{},
	})
	require.ErrorIs(t, err, activity.ErrCapExceeded)

	total, _ := helpers.ParticipationTotals(t, pool, challengeID, userID)
	assert.Equal(t, 100.0, total, "rejected log must not change the aggregate")
}

func TestLoggingOutsideWindowRejected(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	notificationService := services.NewNotificationService(pool)
	activityService := services.NewActivityService(pool, notificationService)

	clerkID := "user_window_" + time.Now().Format("20060102150405")
	userID := helpers.CreateTestUser(t, pool, clerkID)
	_ = userID
	challengeID := helpers.CreateTestChallenge(t, pool, 10)
	typeID := helpers.CreateTestActivityType(t, pool, challengeID, "Run", scoring.Config{
		Type:          scoring.TypeUnitBased,
		Metric:        "miles",
		PointsPerUnit: 5,
	}, nil)
	helpers.JoinTestChallenge(t, pool, challengeID, userID)

	dayBefore := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	_, err := activityService.LogActivity(context.Background(), clerkID, &activity.LogActivityRequest{
		ChallengeID:    challengeID,
		ActivityTypeID: typeID,
		LoggedDate:     dayBefore,
		Metrics:        map[string]float64{"miles": 4},
	})
	require.ErrorIs(t, err, activity.ErrOutOfChallengeWindow)
}

func TestWeekRestrictedTypeRejectsOffWeekLogs(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	notificationService := services.NewNotificationService(pool)
	activityService := services.NewActivityService(pool, notificationService)

	clerkID := "user_weeks_" + time.Now().Format("20060102150405")
	userID := helpers.CreateTestUser(t, pool, clerkID)
	challengeID := helpers.CreateTestChallenge(t, pool, 10)
	typeID := helpers.CreateTestActivityType(t, pool, challengeID, "Week Two Run", scoring.Config{
		Type:          scoring.TypeUnitBased,
		Metric:        "miles",
		PointsPerUnit: 5,
	}, nil)
	helpers.JoinTestChallenge(t, pool, challengeID, userID)

	ctx := context.Background()
	_, err := pool.Exec(ctx, `UPDATE activity_types SET valid_weeks = '{2}' WHERE id = $1`, typeID)
	require.NoError(t, err)

	// The challenge starts today, so today falls in week 1.
	today := time.Now().UTC()
	_, err = activityService.LogActivity(ctx, clerkID, &activity.LogActivityRequest{
		ChallengeID:    challengeID,
		ActivityTypeID: typeID,
		LoggedDate:     today.Format("2006-01-02"),
		Metrics:        map[string]float64{"miles": 4},
	})
	require.ErrorIs(t, err, activity.ErrTypeNotLoggableThisWeek)

	total, _ := helpers.ParticipationTotals(t, pool, challengeID, userID)
	assert.Equal(t, 0.0, total, "rejected log must not change the aggregate")

	// A date inside week 2 is accepted.
	logged, err := activityService.LogActivity(ctx, clerkID, &activity.LogActivityRequest{
		ChallengeID:    challengeID,
		ActivityTypeID: typeID,
		LoggedDate:     today.AddDate(0, 0, 7).Format("2006-01-02"),
		Metrics:        map[string]float64{"miles": 4},
	})
	require.NoError(t, err)
	assert.Equal(t, 20.0, logged.PointsEarned)
}
