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

	"marchFitnessAPI/internal/activity"
	"marchFitnessAPI/internal/notification"
	"marchFitnessAPI/internal/strava"
	"marchFitnessAPI/middleware"
)

var ErrNoStravaConnection = errors.New("no strava connection for user")

// StravaService turns webhook deliveries into ledger activities. Every
// delivery is journaled first, then processed; replays and out-of-order
// deliveries converge because the ingestion pipeline upserts by external id.
type StravaService struct {
	db            *pgxpool.Pool
	client        *strava.Client
	activities    *ActivityService
	notifications *NotificationService
}

func NewStravaService(db *pgxpool.Pool, client *strava.Client, activities *ActivityService, notifications *NotificationService) *StravaService {
	return &StravaService{db: db, client: client, activities: activities, notifications: notifications}
}

func (s *StravaService) SaveConnection(ctx context.Context, clerkID string, req *strava.ConnectRequest) (*strava.Connection, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	conn := &strava.Connection{
		UserID:       userID,
		AthleteID:    req.AthleteID,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		ExpiresAt:    time.Unix(req.ExpiresAt, 0).UTC(),
		Scope:        req.Scope,
	}

	err = s.db.QueryRow(ctx, `
	INSERT INTO strava_connections (user_id, athlete_id, access_token, refresh_token, expires_at, scope, needs_reauth, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, FALSE, NOW(), NOW())
	ON CONFLICT (user_id) DO UPDATE SET
		athlete_id = EXCLUDED.athlete_id,
		access_token = EXCLUDED.access_token,
		refresh_token = EXCLUDED.refresh_token,
		expires_at = EXCLUDED.expires_at,
		scope = EXCLUDED.scope,
		needs_reauth = FALSE,
		updated_at = NOW()
	RETURNING created_at, updated_at
	`, conn.UserID, conn.AthleteID, conn.AccessToken, conn.RefreshToken, conn.ExpiresAt, conn.Scope).Scan(&conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save strava connection: %w", err)
	}
	return conn, nil
}

func (s *StravaService) GetConnection(ctx context.Context, clerkID string) (*strava.Connection, error) {
	conn := &strava.Connection{}
	err := s.db.QueryRow(ctx, `
	SELECT sc.user_id, sc.athlete_id, sc.access_token, sc.refresh_token, sc.expires_at, sc.scope, sc.needs_reauth, sc.created_at, sc.updated_at
	FROM strava_connections sc
	JOIN users u ON u.id = sc.user_id
	WHERE u.clerk_id = $1
	`, clerkID).Scan(
		&conn.UserID, &conn.AthleteID, &conn.AccessToken, &conn.RefreshToken,
		&conn.ExpiresAt, &conn.Scope, &conn.NeedsReauth, &conn.CreatedAt, &conn.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoStravaConnection
		}
		return nil, fmt.Errorf("failed to load strava connection: %w", err)
	}
	return conn, nil
}

// connectionByAthlete resolves an inbound webhook's owner to the stored
// connection. Events for athletes we no longer track resolve to
// ErrNoStravaConnection.
func (s *StravaService) connectionByAthlete(ctx context.Context, athleteID int64) (*strava.Connection, error) {
	conn := &strava.Connection{}
	err := s.db.QueryRow(ctx, `
	SELECT user_id, athlete_id, access_token, refresh_token, expires_at, scope, needs_reauth, created_at, updated_at
	FROM strava_connections
	WHERE athlete_id = $1
	`, athleteID).Scan(
		&conn.UserID, &conn.AthleteID, &conn.AccessToken, &conn.RefreshToken,
		&conn.ExpiresAt, &conn.Scope, &conn.NeedsReauth, &conn.CreatedAt, &conn.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoStravaConnection
		}
		return nil, fmt.Errorf("failed to load strava connection: %w", err)
	}
	return conn, nil
}

func (s *StravaService) Disconnect(ctx context.Context, clerkID string) error {
	result, err := s.db.Exec(ctx, `
	DELETE FROM strava_connections WHERE user_id = (SELECT id FROM users WHERE clerk_id = $1)
	`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to disconnect strava: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNoStravaConnection
	}
	return nil
}

// ProcessWebhookEvent journals and processes one delivery. Exact duplicate
// deliveries are dropped by the journal's unique key. Processing failures
// are recorded on the journal row; the webhook endpoint still returns 200 so
// Strava does not retry forever.
func (s *StravaService) ProcessWebhookEvent(ctx context.Context, event *strava.WebhookEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	var eventID int64
	err = s.db.QueryRow(ctx, `
	INSERT INTO strava_webhook_events (object_type, object_id, aspect_type, owner_id, event_time, raw)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (event_time, object_id, aspect_type) DO NOTHING
	RETURNING id
	`, event.ObjectType, event.ObjectID, event.AspectType, event.OwnerID, event.EventTime, raw).Scan(&eventID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Duplicate delivery, already journaled.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to journal event: %w", err)
	}

	procErr := s.handleEvent(ctx, event)

	var errText *string
	if procErr != nil {
		msg := procErr.Error()
		errText = &msg
	}
	if _, err := s.db.Exec(ctx, `
	UPDATE strava_webhook_events SET processed = TRUE, processed_at = NOW(), error = $2 WHERE id = $1
	`, eventID, errText); err != nil {
		log.Printf("Failed to mark strava event %d processed: %v", eventID, err)
	}
	return procErr
}

func (s *StravaService) handleEvent(ctx context.Context, event *strava.WebhookEvent) error {
	if event.ObjectType == "athlete" {
		// The only athlete event we care about is deauthorization.
		if event.Updates["authorized"] == "false" {
			return s.markNeedsReauth(ctx, event.OwnerID)
		}
		return nil
	}
	if event.ObjectType != "activity" {
		return nil
	}

	conn, err := s.connectionByAthlete(ctx, event.OwnerID)
	if err != nil {
		if errors.Is(err, ErrNoStravaConnection) {
			// Webhook for an athlete we no longer track.
			return nil
		}
		return err
	}

	externalID := stravaExternalID(event.ObjectID)

	if event.AspectType == "delete" {
		removed, err := s.activities.DeleteExternalActivities(ctx, conn.UserID, externalID)
		if err != nil {
			return fmt.Errorf("failed to remove deleted strava activity: %w", err)
		}
		log.Printf("Removed %d activities for deleted strava activity %d", removed, event.ObjectID)
		return nil
	}

	sa, err := s.fetchWithRefresh(ctx, conn, event.ObjectID)
	if err != nil {
		return err
	}

	normalized := strava.Normalize(sa)
	normalized.ExternalID = externalID

	return s.fanOut(ctx, conn.UserID, normalized)
}

// fetchWithRefresh fetches the activity, refreshing the token once if it is
// expired or rejected. A failed refresh flags the connection and tells the
// user to reconnect.
func (s *StravaService) fetchWithRefresh(ctx context.Context, conn *strava.Connection, activityID int64) (*strava.Activity, error) {
	token := conn.AccessToken
	if time.Until(conn.ExpiresAt) < time.Minute {
		refreshed, err := s.refreshConnection(ctx, conn)
		if err != nil {
			return nil, err
		}
		token = refreshed
	}

	a, err := s.client.GetActivity(ctx, token, activityID)
	if !errors.Is(err, strava.ErrUnauthorized) {
		return a, err
	}

	token, err = s.refreshConnection(ctx, conn)
	if err != nil {
		return nil, err
	}
	return s.client.GetActivity(ctx, token, activityID)
}

func (s *StravaService) refreshConnection(ctx context.Context, conn *strava.Connection) (string, error) {
	token, err := s.client.RefreshToken(ctx, conn.RefreshToken)
	if err != nil {
		if errors.Is(err, strava.ErrUnauthorized) {
			if markErr := s.markNeedsReauth(ctx, conn.AthleteID); markErr != nil {
				log.Printf("Failed to flag strava connection for athlete %d: %v", conn.AthleteID, markErr)
			}
		}
		return "", fmt.Errorf("failed to refresh strava token: %w", err)
	}

	conn.AccessToken = token.AccessToken
	conn.RefreshToken = token.RefreshToken
	conn.ExpiresAt = time.Unix(token.ExpiresAt, 0).UTC()

	_, err = s.db.Exec(ctx, `
	UPDATE strava_connections
	SET access_token = $2, refresh_token = $3, expires_at = $4, needs_reauth = FALSE, updated_at = NOW()
	WHERE user_id = $1
	`, conn.UserID, conn.AccessToken, conn.RefreshToken, conn.ExpiresAt)
	if err != nil {
		return "", fmt.Errorf("failed to store refreshed token: %w", err)
	}
	return conn.AccessToken, nil
}

func (s *StravaService) markNeedsReauth(ctx context.Context, athleteID int64) error {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `
	UPDATE strava_connections SET needs_reauth = TRUE, updated_at = NOW()
	WHERE athlete_id = $1
	RETURNING user_id
	`, athleteID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("failed to flag connection: %w", err)
	}

	_, err = s.notifications.Notify(ctx, &notification.CreateNotificationRequest{
		UserID:  userID,
		Type:    notification.NotificationStravaReauth,
		Title:   "Strava connection lost",
		Message: "Reconnect your Strava account to keep syncing activities.",
	})
	if err != nil {
		log.Printf("Failed to send reauth notification: %v", err)
	}
	return nil
}

// fanOut ingests the normalized activity into every challenge the user is
// part of that has a matching activity type and is live on the activity's
// date. Challenges are independent: one rejecting the activity (cap hit,
// week restriction) never blocks the others.
func (s *StravaService) fanOut(ctx context.Context, userID uuid.UUID, n *strava.NormalizedActivity) error {
	rows, err := s.db.Query(ctx, `
	SELECT p.challenge_id, at.id
	FROM participations p
	JOIN challenges c ON c.id = p.challenge_id
	JOIN activity_types at ON at.challenge_id = p.challenge_id AND at.name = $2
	WHERE p.user_id = $1 AND c.start_date <= $3 AND c.end_date >= $3
	`, userID, n.SportType, n.LoggedDate)
	if err != nil {
		return fmt.Errorf("failed to find target challenges: %w", err)
	}

	type target struct{ challengeID, typeID uuid.UUID }
	var targets []target
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.challengeID, &t.typeID); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	var failed int
	for _, t := range targets {
		_, err := s.activities.UpsertExternalActivity(ctx, userID, t.challengeID, t.typeID, n.LoggedDate, n.Metrics, n.ExternalID)
		if err != nil {
			if isIngestRejection(err) {
				middleware.ObserveIngest("strava", "rejected")
				log.Printf("Strava activity %s rejected by challenge %s: %v", n.ExternalID, t.challengeID, err)
				continue
			}
			middleware.ObserveIngest("strava", "failed")
			log.Printf("Failed to ingest strava activity %s into challenge %s: %v", n.ExternalID, t.challengeID, err)
			failed++
			continue
		}
		middleware.ObserveIngest("strava", "accepted")
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d challenge ingests failed", failed, len(targets))
	}
	return nil
}

// isIngestRejection separates business rejections, which are final, from
// operational failures worth surfacing.
func isIngestRejection(err error) bool {
	return errors.Is(err, activity.ErrOutOfChallengeWindow) ||
		errors.Is(err, activity.ErrTypeNotLoggableThisWeek) ||
		errors.Is(err, activity.ErrCapExceeded) ||
		errors.Is(err, activity.ErrNotParticipant)
}

func stravaExternalID(objectID int64) string {
	return fmt.Sprintf("strava-%d", objectID)
}
