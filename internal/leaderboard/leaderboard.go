package leaderboard

import "github.com/google/uuid"

type Entry struct {
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	Username      string    `json:"username" db:"username"`
	ImageURL      *string   `json:"image_url" db:"image_url"`
	Points        float64   `json:"points" db:"points"`
	Rank          int       `json:"rank" db:"rank"`
	CurrentStreak int       `json:"current_streak" db:"current_streak"`
	Gender        string    `json:"gender,omitempty" db:"gender"`
}

// Leaderboard is one ranked listing. Entries hold the requested page;
// UserPosition is the requesting user's own row regardless of page, so the
// client can always show "you are #N".
type Leaderboard struct {
	Entries      []*Entry `json:"entries"`
	UserPosition *Entry   `json:"user_position"`
	TotalUsers   int      `json:"total_users"`
	Offset       int      `json:"offset"`
	// NextOffset is nil on the last page. The underlying ordering is
	// total (points desc, joined_at asc, user id asc), so pages never
	// shuffle between loads.
	NextOffset *int `json:"next_offset,omitempty"`
}

// CategorySegments splits a category leaderboard by participant gender.
type CategorySegments struct {
	Men         []*Entry `json:"men"`
	Women       []*Entry `json:"women"`
	Unspecified []*Entry `json:"unspecified"`
	TotalUsers  int      `json:"total_users"`
}
