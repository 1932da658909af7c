package challenge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggableInWeekUnrestricted(t *testing.T) {
	typ := &ActivityType{}

	assert.True(t, typ.LoggableInWeek(1, false))
	assert.True(t, typ.LoggableInWeek(4, false))
	assert.True(t, typ.LoggableInWeek(4, true))
}

func TestLoggableInWeekRestricted(t *testing.T) {
	typ := &ActivityType{ValidWeeks: []int{2, 3}}

	assert.True(t, typ.LoggableInWeek(2, false))
	assert.True(t, typ.LoggableInWeek(3, false))
	assert.False(t, typ.LoggableInWeek(1, false))
	assert.False(t, typ.LoggableInWeek(4, false))
}

func TestLoggableInWeekFinalDaysFallback(t *testing.T) {
	typ := &ActivityType{ValidWeeks: []int{1}, AvailableInFinalDays: true}

	// Off-week, but the challenge is in its final days.
	assert.True(t, typ.LoggableInWeek(5, true))
	assert.False(t, typ.LoggableInWeek(5, false))

	// Without the flag, final days do not reopen a restricted type.
	closed := &ActivityType{ValidWeeks: []int{1}}
	assert.False(t, closed.LoggableInWeek(5, true))
}
