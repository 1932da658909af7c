package streak

import (
	"sort"
	"time"

	"marchFitnessAPI/internal/challengeweek"
)

// Result is the streak state derived from a user's qualifying days.
type Result struct {
	Current int
	Longest int
	// LastQualifyingDate is zero when the user has no qualifying days.
	LastQualifyingDate time.Time
}

// Compute derives streak state from the full set of qualifying calendar
// days, relative to a reference day (normally today). A day qualifies when
// its streak-eligible points met the challenge threshold; building that set
// is the caller's job.
//
// The input may contain duplicates and arrive in any order: backfilled and
// webhook-replayed activities land here too, and replaying the same days
// must converge to the same result. The current streak is the consecutive
// run ending at the most recent qualifying day, and it is only alive if
// that day is the reference day or the day before it.
func Compute(qualifyingDays []time.Time, reference time.Time) Result {
	if len(qualifyingDays) == 0 {
		return Result{}
	}

	seen := make(map[time.Time]struct{}, len(qualifyingDays))
	days := make([]time.Time, 0, len(qualifyingDays))
	for _, d := range qualifyingDays {
		day := challengeweek.DateOnly(d)
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i].Sub(days[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	last := days[len(days)-1]
	res := Result{Longest: longest, LastQualifyingDate: last}

	// run now holds the length of the trailing consecutive block.
	ref := challengeweek.DateOnly(reference)
	if !last.Before(ref.AddDate(0, 0, -1)) && !last.After(ref) {
		res.Current = run
	}
	return res
}
