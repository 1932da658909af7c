package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"marchFitnessAPI/internal/notification"
	"marchFitnessAPI/services"
)

// StartStreakReminderWorker starts a background routine that warns
// participants whose streak dies at midnight UTC if they log nothing today.
func StartStreakReminderWorker(db *pgxpool.Pool, notifications *services.NotificationService) {
	ticker := time.NewTicker(1 * time.Hour)

	go func() {
		for range ticker.C {
			remindStreaksAtRisk(db, notifications)
		}
	}()
}

func remindStreaksAtRisk(db *pgxpool.Pool, notifications *services.NotificationService) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Only nag in the evening, when there is still time to log something.
	if h := time.Now().UTC().Hour(); h < 17 {
		return
	}

	// A streak is at risk when the last qualifying day was yesterday and
	// nothing has qualified today in a still-running challenge. The NOT
	// EXISTS on notifications keeps it to one reminder per day.
	query := `
	SELECT p.user_id, p.challenge_id, p.current_streak, c.name
	FROM participations p
	JOIN challenges c ON c.id = p.challenge_id
	WHERE p.current_streak > 0
	  AND p.last_qualifying_date = (NOW() AT TIME ZONE 'utc')::date - 1
	  AND c.end_date >= (NOW() AT TIME ZONE 'utc')::date
	  AND NOT EXISTS (
		SELECT 1 FROM notifications n
		WHERE n.user_id = p.user_id
		  AND n.type = 'streak_risk'
		  AND n.created_at >= (NOW() AT TIME ZONE 'utc')::date
	  )
	`

	rows, err := db.Query(ctx, query)
	if err != nil {
		log.Printf("Streak reminder query failed: %v", err)
		return
	}
	defer rows.Close()

	type atRisk struct {
		userID        uuid.UUID
		challengeID   uuid.UUID
		currentStreak int
		challengeName string
	}
	var risks []atRisk
	for rows.Next() {
		var r atRisk
		if err := rows.Scan(&r.userID, &r.challengeID, &r.currentStreak, &r.challengeName); err != nil {
			log.Printf("Failed to scan at-risk participation: %v", err)
			continue
		}
		risks = append(risks, r)
	}

	for _, r := range risks {
		_, err := notifications.Notify(ctx, &notification.CreateNotificationRequest{
			UserID:  r.userID,
			Type:    notification.NotificationStreakRisk,
			Title:   "Your streak is at risk!",
			Message: fmt.Sprintf("Log an activity in %s today to keep your %d-day streak alive.", r.challengeName, r.currentStreak),
			Data: map[string]any{
				"challenge_id":   r.challengeID.String(),
				"current_streak": r.currentStreak,
			},
		})
		if err != nil {
			log.Printf("Failed to send streak reminder to %s: %v", r.userID, err)
		}
	}

	if len(risks) > 0 {
		log.Printf("Sent %d streak reminders", len(risks))
	}
}
