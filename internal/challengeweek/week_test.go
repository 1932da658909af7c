package challengeweek

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestWeekNumber(t *testing.T) {
	assert.Equal(t, 1, WeekNumber(start, start))
	assert.Equal(t, 1, WeekNumber(start, time.Date(2024, 1, 7, 23, 59, 59, 0, time.UTC)))
	assert.Equal(t, 2, WeekNumber(start, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 5, WeekNumber(start, time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)))

	// Before the challenge starts.
	assert.Equal(t, 0, WeekNumber(start, time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)))
}

func TestWeekDateRangeAbutsExactly(t *testing.T) {
	for week := 1; week <= 5; week++ {
		s, e := WeekDateRange(start, week)
		assert.Equal(t, 7*24*time.Hour, e.Sub(s), "week %d spans 7 days", week)

		next, _ := WeekDateRange(start, week+1)
		assert.True(t, e.Equal(next), "week %d end must equal week %d start", week, week+1)

		// Round trip: a week's start maps back to it, its end belongs to
		// the next week.
		assert.Equal(t, week, WeekNumber(start, s))
		assert.Equal(t, week+1, WeekNumber(start, e))
	}
}

func TestTotalWeeks(t *testing.T) {
	assert.Equal(t, 0, TotalWeeks(0))
	assert.Equal(t, 1, TotalWeeks(1))
	assert.Equal(t, 1, TotalWeeks(7))
	assert.Equal(t, 2, TotalWeeks(8))
	assert.Equal(t, 5, TotalWeeks(31))
}

func TestIsInFinalDays(t *testing.T) {
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	assert.False(t, IsInFinalDays(end, 0, end))
	assert.True(t, IsInFinalDays(end, 3, end))
	assert.True(t, IsInFinalDays(end, 3, time.Date(2024, 3, 29, 8, 0, 0, 0, time.UTC)))
	assert.False(t, IsInFinalDays(end, 3, time.Date(2024, 3, 28, 23, 0, 0, 0, time.UTC)))
	assert.False(t, IsInFinalDays(end, 3, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))
}

func TestInWindow(t *testing.T) {
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	assert.True(t, InWindow(start, end, start))
	assert.True(t, InWindow(start, end, end))
	assert.True(t, InWindow(start, end, time.Date(2024, 2, 14, 18, 30, 0, 0, time.UTC)))
	assert.False(t, InWindow(start, end, start.AddDate(0, 0, -1)))
	assert.False(t, InWindow(start, end, end.AddDate(0, 0, 1)))
}
