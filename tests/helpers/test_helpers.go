package helpers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"marchFitnessAPI/internal/scoring"
)

// SetupTestDB creates a test database connection. Tests that need a real
// database are skipped when neither env var is set.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL or DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}

	return pool
}

// CleanupTestDB removes test users; challenges, participations and
// activities cascade from them or from test challenges.
func CleanupTestDB(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()
	if _, err := pool.Exec(ctx, "DELETE FROM users WHERE email LIKE 'test%@example.com'"); err != nil {
		t.Logf("Warning: failed to cleanup test users: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM challenges WHERE name LIKE 'Test Challenge%'"); err != nil {
		t.Logf("Warning: failed to cleanup test challenges: %v", err)
	}
	pool.Close()
}

// GenerateMockClerkJWT generates a mock JWT token for testing
func GenerateMockClerkJWT(clerkID string) (string, error) {
	secretKey := []byte("test-secret-key-for-testing-only")

	claims := jwt.MapClaims{
		"sub": clerkID,
		"iss": "https://clerk.test",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour * 24).Unix(),
		"azp": "test-app-id",
		"sid": "sess_test123",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// MockClerkWebhookPayload creates a mock webhook payload
func MockClerkWebhookPayload(eventType string, clerkID string) []byte {
	switch eventType {
	case "user.created":
		return []byte(fmt.Sprintf(`{
			"type": "user.created",
			"object": "event",
			"data": {
				"id": "%s",
				"first_name": "Test",
				"last_name": "User",
				"username": "testuser",
				"image_url": "https://example.com/image.jpg",
				"email_addresses": [{
					"email_address": "test.user@example.com",
					"verification": {"status": "verified"}
				}]
			}
		}`, clerkID))
	case "user.deleted":
		return []byte(fmt.Sprintf(`{
			"type": "user.deleted",
			"object": "event",
			"data": {"id": "%s", "deleted": true}
		}`, clerkID))
	}
	return nil
}

// MockStravaWebhookEvent builds a delivery payload for the given activity.
func MockStravaWebhookEvent(aspectType string, objectID, ownerID int64) []byte {
	return []byte(fmt.Sprintf(`{
		"object_type": "activity",
		"object_id": %d,
		"aspect_type": "%s",
		"owner_id": %d,
		"subscription_id": 120475,
		"event_time": %d
	}`, objectID, aspectType, ownerID, time.Now().Unix()))
}

// CreateTestUser inserts a user row directly and returns its id.
func CreateTestUser(t *testing.T, pool *pgxpool.Pool, clerkID string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
	INSERT INTO users (id, clerk_id, email, username, first_name, last_name, role, created_at, updated_at)
	VALUES ($1, $2, $3, $4, 'Test', 'User', 'member', NOW(), NOW())
	`, id, clerkID, fmt.Sprintf("test+%s@example.com", clerkID), "testuser_"+clerkID)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return id
}

// CreateTestChallenge inserts a 31-day challenge starting today (UTC).
func CreateTestChallenge(t *testing.T, pool *pgxpool.Pool, streakMinPoints float64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	start := time.Now().UTC().Truncate(24 * time.Hour)
	_, err := pool.Exec(context.Background(), `
	INSERT INTO challenges (id, name, description, start_date, end_date, duration_days, streak_min_points, week_calculation, final_days_count, visibility, created_at)
	VALUES ($1, $2, '', $3, $4, 31, $5, 'start_date', 3, 'public', NOW())
	`, id, "Test Challenge "+id.String()[:8], start, start.AddDate(0, 0, 30), streakMinPoints)
	if err != nil {
		t.Fatalf("Failed to create test challenge: %v", err)
	}
	return id
}

// CreateTestActivityType inserts an activity type with the given config.
func CreateTestActivityType(t *testing.T, pool *pgxpool.Pool, challengeID uuid.UUID, name string, cfg scoring.Config, maxPerChallenge *int) uuid.UUID {
	t.Helper()
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Failed to encode scoring config: %v", err)
	}
	id := uuid.New()
	_, err = pool.Exec(context.Background(), `
	INSERT INTO activity_types (id, challenge_id, name, scoring_config, contributes_to_streak, is_negative, max_per_challenge, available_in_final_days, sort_order, created_at)
	VALUES ($1, $2, $3, $4, TRUE, FALSE, $5, FALSE, 0, NOW())
	`, id, challengeID, name, cfgJSON, maxPerChallenge)
	if err != nil {
		t.Fatalf("Failed to create test activity type: %v", err)
	}
	return id
}

// JoinTestChallenge creates a participation row and returns its id.
func JoinTestChallenge(t *testing.T, pool *pgxpool.Pool, challengeID, userID uuid.UUID) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
	INSERT INTO participations (id, challenge_id, user_id, joined_at)
	VALUES ($1, $2, $3, NOW())
	`, id, challengeID, userID)
	if err != nil {
		t.Fatalf("Failed to join test challenge: %v", err)
	}
	return id
}

// ParticipationTotals reads back the aggregate for assertions.
func ParticipationTotals(t *testing.T, pool *pgxpool.Pool, challengeID, userID uuid.UUID) (totalPoints float64, currentStreak int) {
	t.Helper()
	err := pool.QueryRow(context.Background(), `
	SELECT total_points, current_streak FROM participations
	WHERE challenge_id = $1 AND user_id = $2
	`, challengeID, userID).Scan(&totalPoints, &currentStreak)
	if err != nil {
		t.Fatalf("Failed to read participation: %v", err)
	}
	return totalPoints, currentStreak
}
