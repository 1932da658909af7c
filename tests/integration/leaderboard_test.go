package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marchFitnessAPI/internal/activity"
	"marchFitnessAPI/internal/scoring"
	"marchFitnessAPI/services"
	"marchFitnessAPI/tests/helpers"
)

func TestCumulativeLeaderboardOrderingAndPosition(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	notificationService := services.NewNotificationService(pool)
	activityService := services.NewActivityService(pool, notificationService)
	leaderboardService := services.NewLeaderboardService(pool)

	suffix := time.Now().Format("20060102150405")
	clerkA := "user_lb_a_" + suffix
	clerkB := "user_lb_b_" + suffix
	userA := helpers.CreateTestUser(t, pool, clerkA)
	userB := helpers.CreateTestUser(t, pool, clerkB)

	challengeID := helpers.CreateTestChallenge(t, pool, 10)
	typeID := helpers.CreateTestActivityType(t, pool, challengeID, "Run", scoring.Config{
		Type:          scoring.TypeUnitBased,
		Metric:        "miles",
		PointsPerUnit: 5,
	}, nil)
	helpers.JoinTestChallenge(t, pool, challengeID, userA)
	helpers.JoinTestChallenge(t, pool, challengeID, userB)

	ctx := context.Background()
	today := time.Now().UTC().Format("2006-01-02")

	_, err := activityService.LogActivity(ctx, clerkA, &activity.LogActivityRequest{
		ChallengeID:    challengeID,
		ActivityTypeID: typeID,
		LoggedDate:     today,
		Metrics:        map[string]float64{"miles": 2},
	})
	require.NoError(t, err)
	_, err = activityService.LogActivity(ctx, clerkB, &activity.LogActivityRequest{
		ChallengeID:    challengeID,
		ActivityTypeID: typeID,
		LoggedDate:     today,
		Metrics:        map[string]float64{"miles": 6},
	})
	require.NoError(t, err)

	lb, err := leaderboardService.GetCumulativeLeaderboard(ctx, challengeID, clerkA, 0, 10)
	require.NoError(t, err)
	require.Len(t, lb.Entries, 2)

	assert.Equal(t, userB, lb.Entries[0].UserID, "higher total ranks first")
	assert.Equal(t, 1, lb.Entries[0].Rank)
	assert.Equal(t, userA, lb.Entries[1].UserID)
	assert.Equal(t, 2, lb.Entries[1].Rank)
	assert.Equal(t, 2, lb.TotalUsers)
	assert.Nil(t, lb.NextOffset)

	require.NotNil(t, lb.UserPosition)
	assert.Equal(t, userA, lb.UserPosition.UserID)
	assert.Equal(t, 2, lb.UserPosition.Rank)
}

func TestWeeklyLeaderboardCountsOnlyTheWeek(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	notificationService := services.NewNotificationService(pool)
	activityService := services.NewActivityService(pool, notificationService)
	leaderboardService := services.NewLeaderboardService(pool)

	clerkID := "user_weekly_" + time.Now().Format("20060102150405")
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

	_, err := activityService.LogActivity(ctx, clerkID, &activity.LogActivityRequest{
		ChallengeID:    challengeID,
		ActivityTypeID: typeID,
		LoggedDate:     today,
		Metrics:        map[string]float64{"miles": 3},
	})
	require.NoError(t, err)

	// The challenge started today, so today is in week 1.
	lb, err := leaderboardService.GetWeeklyLeaderboard(ctx, challengeID, clerkID, 1, 0, 10)
	require.NoError(t, err)
	require.Len(t, lb.Entries, 1)
	assert.Equal(t, 15.0, lb.Entries[0].Points)

	// Week 2 has nothing yet; the participant still appears at zero.
	lb2, err := leaderboardService.GetWeeklyLeaderboard(ctx, challengeID, clerkID, 2, 0, 10)
	require.NoError(t, err)
	require.Len(t, lb2.Entries, 1)
	assert.Equal(t, 0.0, lb2.Entries[0].Points)

	// A week past the challenge duration is rejected.
	_, err = leaderboardService.GetWeeklyLeaderboard(ctx, challengeID, clerkID, 9, 0, 10)
	assert.Error(t, err)
}

func TestCategoryLeaderboardSupportsWeekFilter(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	notificationService := services.NewNotificationService(pool)
	activityService := services.NewActivityService(pool, notificationService)
	leaderboardService := services.NewLeaderboardService(pool)

	clerkID := "user_cat_" + time.Now().Format("20060102150405")
	userID := helpers.CreateTestUser(t, pool, clerkID)
	challengeID := helpers.CreateTestChallenge(t, pool, 10)
	typeID := helpers.CreateTestActivityType(t, pool, challengeID, "Run", scoring.Config{
		Type:          scoring.TypeUnitBased,
		Metric:        "miles",
		PointsPerUnit: 5,
	}, nil)
	helpers.JoinTestChallenge(t, pool, challengeID, userID)

	ctx := context.Background()

	categoryID := uuid.New()
	_, err := pool.Exec(ctx, `
	INSERT INTO categories (id, challenge_id, name, show_in_category_leaderboard, sort_order)
	VALUES ($1, $2, 'Cardio', TRUE, 0)
	`, categoryID, challengeID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `UPDATE activity_types SET category_id = $1 WHERE id = $2`, categoryID, typeID)
	require.NoError(t, err)

	// The challenge starts today, so today is week 1 and today+7d is week 2.
	today := time.Now().UTC()
	_, err = activityService.LogActivity(ctx, clerkID, &activity.LogActivityRequest{
		ChallengeID:    challengeID,
		ActivityTypeID: typeID,
		LoggedDate:     today.Format("2006-01-02"),
		Metrics:        map[string]float64{"miles": 3},
	})
	require.NoError(t, err)
	_, err = activityService.LogActivity(ctx, clerkID, &activity.LogActivityRequest{
		ChallengeID:    challengeID,
		ActivityTypeID: typeID,
		LoggedDate:     today.AddDate(0, 0, 7).Format("2006-01-02"),
		Metrics:        map[string]float64{"miles": 2},
	})
	require.NoError(t, err)

	allTime, err := leaderboardService.GetCategoryLeaderboard(ctx, challengeID, categoryID, 0)
	require.NoError(t, err)
	require.Len(t, allTime.Unspecified, 1)
	assert.Equal(t, 25.0, allTime.Unspecified[0].Points)

	week1, err := leaderboardService.GetCategoryLeaderboard(ctx, challengeID, categoryID, 1)
	require.NoError(t, err)
	require.Len(t, week1.Unspecified, 1)
	assert.Equal(t, 15.0, week1.Unspecified[0].Points)

	week2, err := leaderboardService.GetCategoryLeaderboard(ctx, challengeID, categoryID, 2)
	require.NoError(t, err)
	require.Len(t, week2.Unspecified, 1)
	assert.Equal(t, 10.0, week2.Unspecified[0].Points)

	// A week past the challenge duration is rejected here too.
	_, err = leaderboardService.GetCategoryLeaderboard(ctx, challengeID, categoryID, 9)
	assert.Error(t, err)
}
