package streak

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(n int) time.Time {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestComputeEmpty(t *testing.T) {
	res := Compute(nil, day(5))
	assert.Equal(t, 0, res.Current)
	assert.Equal(t, 0, res.Longest)
	assert.True(t, res.LastQualifyingDate.IsZero())
}

func TestComputeConsecutiveRun(t *testing.T) {
	res := Compute([]time.Time{day(0), day(1), day(2)}, day(2))
	assert.Equal(t, 3, res.Current)
	assert.Equal(t, 3, res.Longest)
	assert.Equal(t, day(2), res.LastQualifyingDate)
}

func TestComputeGapResets(t *testing.T) {
	res := Compute([]time.Time{day(0), day(1), day(3)}, day(3))
	assert.Equal(t, 1, res.Current)
	assert.Equal(t, 2, res.Longest)
}

func TestComputeStreakDiesAfterMissedDay(t *testing.T) {
	days := []time.Time{day(0), day(1), day(2)}

	// Still alive the day after the last qualifying day.
	assert.Equal(t, 3, Compute(days, day(3)).Current)

	// Dead two days later, but the longest streak survives.
	res := Compute(days, day(4))
	assert.Equal(t, 0, res.Current)
	assert.Equal(t, 3, res.Longest)
}

func TestComputeDuplicateDaysCountOnce(t *testing.T) {
	// Two qualifying activities on the same day must not double the run.
	res := Compute([]time.Time{day(1), day(1), day(2)}, day(2))
	assert.Equal(t, 2, res.Current)
	assert.Equal(t, 2, res.Longest)
}

func TestComputeBackfillConvergence(t *testing.T) {
	// Days 1,2,3 logged, then day 0 backfilled: the final state must not
	// depend on insertion order.
	days := []time.Time{day(1), day(2), day(3), day(0)}

	want := Compute(days, day(3))
	assert.Equal(t, 4, want.Current)
	assert.Equal(t, 4, want.Longest)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]time.Time(nil), days...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, Compute(shuffled, day(3)))
	}
}

func TestComputeBackfillCanBridgeGap(t *testing.T) {
	// 0,1 then 3,4 is two runs; backfilling day 2 joins them.
	before := Compute([]time.Time{day(0), day(1), day(3), day(4)}, day(4))
	assert.Equal(t, 2, before.Current)
	assert.Equal(t, 2, before.Longest)

	after := Compute([]time.Time{day(0), day(1), day(3), day(4), day(2)}, day(4))
	assert.Equal(t, 5, after.Current)
	assert.Equal(t, 5, after.Longest)
}

func TestComputeIgnoresTimeOfDay(t *testing.T) {
	late := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)
	early := time.Date(2024, 3, 2, 0, 5, 0, 0, time.UTC)
	res := Compute([]time.Time{late, early}, day(1))
	assert.Equal(t, 2, res.Current)
}
