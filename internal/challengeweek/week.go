package challengeweek

import "time"

// Challenge dates are date-only values pinned to midnight UTC. All week
// arithmetic happens on those day boundaries regardless of the timezone on
// the incoming timestamp.

// DateOnly truncates a timestamp to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekNumber maps a timestamp to a challenge-relative week. The start date
// itself is day 0 of week 1; every 7 calendar days after it the week
// increments. Timestamps before the start return 0.
func WeekNumber(startDate time.Time, t time.Time) int {
	start := DateOnly(startDate)
	day := DateOnly(t)
	if day.Before(start) {
		return 0
	}
	days := int(day.Sub(start).Hours() / 24)
	return days/7 + 1
}

// WeekDateRange returns the [start, end) bounds of a week as UTC
// timestamps. Consecutive weeks abut exactly: week n's end equals week
// n+1's start.
func WeekDateRange(startDate time.Time, week int) (time.Time, time.Time) {
	start := DateOnly(startDate).AddDate(0, 0, (week-1)*7)
	return start, start.AddDate(0, 0, 7)
}

// TotalWeeks is how many (possibly partial) weeks a challenge spans.
func TotalWeeks(durationDays int) int {
	if durationDays <= 0 {
		return 0
	}
	return (durationDays + 6) / 7
}

// IsInFinalDays reports whether t falls inside the challenge's closing
// stretch: the last finalDaysCount calendar days up to and including the
// end date. Week-restricted activity types with final-days availability
// become loggable in this window.
func IsInFinalDays(endDate time.Time, finalDaysCount int, t time.Time) bool {
	if finalDaysCount <= 0 {
		return false
	}
	end := DateOnly(endDate)
	day := DateOnly(t)
	windowStart := end.AddDate(0, 0, -(finalDaysCount - 1))
	return !day.Before(windowStart) && !day.After(end)
}

// InWindow reports whether a logged date falls inside the challenge's
// [start, end] date range, inclusive on both ends.
func InWindow(startDate, endDate, t time.Time) bool {
	day := DateOnly(t)
	return !day.Before(DateOnly(startDate)) && !day.After(DateOnly(endDate))
}
