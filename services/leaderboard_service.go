package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marchFitnessAPI/internal/activity"
	"marchFitnessAPI/internal/challengeweek"
	"marchFitnessAPI/internal/leaderboard"
)

const defaultLeaderboardPageSize = 50

type LeaderboardService struct {
	db *pgxpool.Pool
}

func NewLeaderboardService(db *pgxpool.Pool) *LeaderboardService {
	return &LeaderboardService{db: db}
}

// GetCumulativeLeaderboard ranks participants by stored total points. Ties
// break by join time then user id, so the ordering is total and pages are
// stable across loads.
func (s *LeaderboardService) GetCumulativeLeaderboard(ctx context.Context, challengeID uuid.UUID, clerkID string, offset, limit int) (*leaderboard.Leaderboard, error) {
	offset, limit = normalizePage(offset, limit)

	query := `
	WITH ranked AS (
		SELECT p.user_id, u.username, u.image_url, p.total_points AS points, p.current_streak, u.clerk_id,
			RANK() OVER (ORDER BY p.total_points DESC, p.joined_at ASC, p.user_id ASC) AS rank,
			ROW_NUMBER() OVER (ORDER BY p.total_points DESC, p.joined_at ASC, p.user_id ASC) AS pos
		FROM participations p
		JOIN users u ON u.id = p.user_id
		WHERE p.challenge_id = $1
	)
	SELECT user_id, username, image_url, points, current_streak, rank FROM ranked
	WHERE pos > $2 AND pos <= $2 + $3
	ORDER BY pos
	`

	lb, err := s.pageEntries(ctx, query, challengeID, offset, limit)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRow(ctx, `
	SELECT COUNT(*) FROM participations WHERE challenge_id = $1
	`, challengeID).Scan(&lb.TotalUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}

	lb.UserPosition, err = s.userPosition(ctx, `
	SELECT user_id, username, image_url, points, current_streak, rank FROM (
		SELECT p.user_id, u.username, u.image_url, p.total_points AS points, p.current_streak, u.clerk_id,
			RANK() OVER (ORDER BY p.total_points DESC, p.joined_at ASC, p.user_id ASC) AS rank
		FROM participations p
		JOIN users u ON u.id = p.user_id
		WHERE p.challenge_id = $1
	) ranked WHERE clerk_id = $2
	`, challengeID, clerkID)
	if err != nil {
		return nil, err
	}

	finishPage(lb, offset, limit)
	return lb, nil
}

// GetWeeklyLeaderboard ranks participants by points earned inside one week's
// date range, summed live from the ledger. Participants with no activity
// that week still appear, at zero.
func (s *LeaderboardService) GetWeeklyLeaderboard(ctx context.Context, challengeID uuid.UUID, clerkID string, week, offset, limit int) (*leaderboard.Leaderboard, error) {
	offset, limit = normalizePage(offset, limit)

	var startDate, endDate time.Time
	var durationDays int
	err := s.db.QueryRow(ctx, `
	SELECT start_date, end_date, duration_days FROM challenges WHERE id = $1
	`, challengeID).Scan(&startDate, &endDate, &durationDays)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, activity.ErrChallengeOrTypeNotFound
		}
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	if week < 1 || week > challengeweek.TotalWeeks(durationDays) {
		return nil, fmt.Errorf("week %d is outside the challenge", week)
	}
	weekStart, weekEnd := challengeweek.WeekDateRange(startDate, week)

	query := `
	WITH weekly AS (
		SELECT p.user_id, u.username, u.image_url, p.current_streak, u.clerk_id, p.joined_at,
			COALESCE(SUM(a.points_earned), 0) AS points
		FROM participations p
		JOIN users u ON u.id = p.user_id
		LEFT JOIN activities a ON a.challenge_id = p.challenge_id AND a.user_id = p.user_id
			AND a.logged_date >= $2 AND a.logged_date < $3
		WHERE p.challenge_id = $1
		GROUP BY p.user_id, u.username, u.image_url, p.current_streak, u.clerk_id, p.joined_at
	), ranked AS (
		SELECT user_id, username, image_url, points, current_streak, clerk_id,
			RANK() OVER (ORDER BY points DESC, joined_at ASC, user_id ASC) AS rank,
			ROW_NUMBER() OVER (ORDER BY points DESC, joined_at ASC, user_id ASC) AS pos
		FROM weekly
	)
	SELECT user_id, username, image_url, points, current_streak, rank FROM ranked
	WHERE pos > $4 AND pos <= $4 + $5
	ORDER BY pos
	`

	rows, err := s.db.Query(ctx, query, challengeID, weekStart, weekEnd, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query weekly leaderboard: %w", err)
	}
	lb, err := collectEntries(rows)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRow(ctx, `
	SELECT COUNT(*) FROM participations WHERE challenge_id = $1
	`, challengeID).Scan(&lb.TotalUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}

	lb.UserPosition, err = s.userPosition(ctx, `
	WITH weekly AS (
		SELECT p.user_id, u.username, u.image_url, p.current_streak, u.clerk_id, p.joined_at,
			COALESCE(SUM(a.points_earned), 0) AS points
		FROM participations p
		JOIN users u ON u.id = p.user_id
		LEFT JOIN activities a ON a.challenge_id = p.challenge_id AND a.user_id = p.user_id
			AND a.logged_date >= $3 AND a.logged_date < $4
		WHERE p.challenge_id = $1
		GROUP BY p.user_id, u.username, u.image_url, p.current_streak, u.clerk_id, p.joined_at
	)
	SELECT user_id, username, image_url, points, current_streak, rank FROM (
		SELECT user_id, username, image_url, points, current_streak, clerk_id,
			RANK() OVER (ORDER BY points DESC, joined_at ASC, user_id ASC) AS rank
		FROM weekly
	) ranked WHERE clerk_id = $2
	`, challengeID, clerkID, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}

	finishPage(lb, offset, limit)
	return lb, nil
}

// GetCategoryLeaderboard ranks participants by points earned on activity
// types of one category, split into gender segments. Only categories marked
// for leaderboard display are served. A week of 0 ranks all-time points;
// otherwise the sum is constrained to that week's date range.
func (s *LeaderboardService) GetCategoryLeaderboard(ctx context.Context, challengeID, categoryID uuid.UUID, week int) (*leaderboard.CategorySegments, error) {
	var show bool
	err := s.db.QueryRow(ctx, `
	SELECT show_in_category_leaderboard FROM categories WHERE id = $1 AND challenge_id = $2
	`, categoryID, challengeID).Scan(&show)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, activity.ErrChallengeOrTypeNotFound
		}
		return nil, fmt.Errorf("failed to load category: %w", err)
	}
	if !show {
		return nil, fmt.Errorf("category is not shown on leaderboards")
	}

	dateFilter := ""
	args := []any{challengeID, categoryID}
	if week > 0 {
		var startDate time.Time
		var durationDays int
		err := s.db.QueryRow(ctx, `
		SELECT start_date, duration_days FROM challenges WHERE id = $1
		`, challengeID).Scan(&startDate, &durationDays)
		if err != nil {
			return nil, fmt.Errorf("failed to load challenge: %w", err)
		}
		if week > challengeweek.TotalWeeks(durationDays) {
			return nil, fmt.Errorf("week %d is outside the challenge", week)
		}
		weekStart, weekEnd := challengeweek.WeekDateRange(startDate, week)
		dateFilter = ` AND a.logged_date >= $3 AND a.logged_date < $4`
		args = append(args, weekStart, weekEnd)
	}

	query := `
	SELECT p.user_id, u.username, u.image_url, u.gender, p.current_streak,
		COALESCE(SUM(a.points_earned), 0) AS points
	FROM participations p
	JOIN users u ON u.id = p.user_id
	LEFT JOIN activities a ON a.challenge_id = p.challenge_id AND a.user_id = p.user_id
		AND a.activity_type_id IN (SELECT id FROM activity_types WHERE category_id = $2)` + dateFilter + `
	WHERE p.challenge_id = $1
	GROUP BY p.user_id, u.username, u.image_url, u.gender, p.current_streak, p.joined_at
	HAVING COALESCE(SUM(a.points_earned), 0) > 0
	ORDER BY points DESC, p.joined_at ASC, p.user_id ASC
	`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query category leaderboard: %w", err)
	}
	defer rows.Close()

	segments := &leaderboard.CategorySegments{}
	for rows.Next() {
		e := &leaderboard.Entry{}
		var gender *string
		if err := rows.Scan(&e.UserID, &e.Username, &e.ImageURL, &gender, &e.CurrentStreak, &e.Points); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		segments.TotalUsers++

		g := ""
		if gender != nil {
			g = *gender
		}
		e.Gender = g
		switch g {
		case "male":
			e.Rank = len(segments.Men) + 1
			segments.Men = append(segments.Men, e)
		case "female":
			e.Rank = len(segments.Women) + 1
			segments.Women = append(segments.Women, e)
		default:
			e.Rank = len(segments.Unspecified) + 1
			segments.Unspecified = append(segments.Unspecified, e)
		}
	}
	return segments, rows.Err()
}

func (s *LeaderboardService) pageEntries(ctx context.Context, query string, challengeID uuid.UUID, offset, limit int) (*leaderboard.Leaderboard, error) {
	rows, err := s.db.Query(ctx, query, challengeID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) (*leaderboard.Leaderboard, error) {
	defer rows.Close()

	lb := &leaderboard.Leaderboard{Entries: []*leaderboard.Entry{}}
	for rows.Next() {
		e := &leaderboard.Entry{}
		if err := rows.Scan(&e.UserID, &e.Username, &e.ImageURL, &e.Points, &e.CurrentStreak, &e.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		lb.Entries = append(lb.Entries, e)
	}
	return lb, rows.Err()
}

func (s *LeaderboardService) userPosition(ctx context.Context, query string, args ...any) (*leaderboard.Entry, error) {
	e := &leaderboard.Entry{}
	err := s.db.QueryRow(ctx, query, args...).Scan(&e.UserID, &e.Username, &e.ImageURL, &e.Points, &e.CurrentStreak, &e.Rank)
	if err != nil {
		// Viewer may not be a participant; leaderboards are still readable.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user position: %w", err)
	}
	return e, nil
}

func normalizePage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = defaultLeaderboardPageSize
	}
	return offset, limit
}

func finishPage(lb *leaderboard.Leaderboard, offset, limit int) {
	lb.Offset = offset
	if offset+len(lb.Entries) < lb.TotalUsers && len(lb.Entries) == limit {
		next := offset + limit
		lb.NextOffset = &next
	}
}
