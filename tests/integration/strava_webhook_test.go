package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marchFitnessAPI/internal/scoring"
	"marchFitnessAPI/internal/strava"
	"marchFitnessAPI/services"
	"marchFitnessAPI/tests/helpers"
)

func connectTestAthlete(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, athleteID int64) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
	INSERT INTO strava_connections (user_id, athlete_id, access_token, refresh_token, expires_at, scope)
	VALUES ($1, $2, 'token', 'refresh', NOW() + INTERVAL '1 hour', 'activity:read')
	`, userID, athleteID)
	if err != nil {
		t.Fatalf("Failed to connect test athlete: %v", err)
	}
}

func TestWebhookJournalDropsDuplicateDeliveries(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	notificationService := services.NewNotificationService(pool)
	activityService := services.NewActivityService(pool, notificationService)
	stravaService := services.NewStravaService(pool, strava.NewClient("id", "secret"), activityService, notificationService)

	event := &strava.WebhookEvent{
		ObjectType: "activity",
		ObjectID:   time.Now().UnixNano(),
		AspectType: "delete",
		OwnerID:    424242,
		EventTime:  time.Now().Unix(),
	}

	ctx := context.Background()
	// No connection for the owner: the event journals and is ignored.
	require.NoError(t, stravaService.ProcessWebhookEvent(ctx, event))
	require.NoError(t, stravaService.ProcessWebhookEvent(ctx, event), "duplicate delivery must be a no-op")

	var count int
	err := pool.QueryRow(ctx, `
	SELECT COUNT(*) FROM strava_webhook_events
	WHERE object_id = $1 AND aspect_type = 'delete' AND event_time = $2
	`, event.ObjectID, event.EventTime).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "one journal row per distinct delivery")
}

func TestWebhookDeleteRemovesSyncedActivity(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	notificationService := services.NewNotificationService(pool)
	activityService := services.NewActivityService(pool, notificationService)
	stravaService := services.NewStravaService(pool, strava.NewClient("id", "secret"), activityService, notificationService)

	clerkID := "user_strava_" + time.Now().Format("20060102150405")
	userID := helpers.CreateTestUser(t, pool, clerkID)
	athleteID := time.Now().UnixNano()
	connectTestAthlete(t, pool, userID, athleteID)

	challengeID := helpers.CreateTestChallenge(t, pool, 10)
	typeID := helpers.CreateTestActivityType(t, pool, challengeID, "Run", scoring.Config{
		Type:          scoring.TypeUnitBased,
		Metric:        "miles",
		PointsPerUnit: 5,
	}, nil)
	helpers.JoinTestChallenge(t, pool, challengeID, userID)

	ctx := context.Background()
	objectID := time.Now().UnixNano()

	// Simulate the create aspect having been processed already.
	_, err := activityService.UpsertExternalActivity(ctx, userID, challengeID, typeID,
		time.Now().UTC(), map[string]float64{"miles": 4}, "strava-"+uuid.Nil.String())
	require.NoError(t, err)
	// Use the service's own external id format for the deletable one.
	a, err := activityService.UpsertExternalActivity(ctx, userID, challengeID, typeID,
		time.Now().UTC(), map[string]float64{"miles": 2}, fmt.Sprintf("strava-%d", objectID))
	require.NoError(t, err)

	total, _ := helpers.ParticipationTotals(t, pool, challengeID, userID)
	require.Equal(t, 30.0, total)

	err = stravaService.ProcessWebhookEvent(ctx, &strava.WebhookEvent{
		ObjectType: "activity",
		ObjectID:   objectID,
		AspectType: "delete",
		OwnerID:    athleteID,
		EventTime:  time.Now().Unix(),
	})
	require.NoError(t, err)

	var exists bool
	err = pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM activities WHERE id = $1)`, a.ID).Scan(&exists)
	require.NoError(t, err)
	assert.False(t, exists, "delete aspect must remove the synced activity")

	total, _ = helpers.ParticipationTotals(t, pool, challengeID, userID)
	assert.Equal(t, 20.0, total, "only the deleted activity's points are unwound")
}
