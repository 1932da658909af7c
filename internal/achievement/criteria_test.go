package achievement

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"marchFitnessAPI/internal/activity"
)

func act(typeID uuid.UUID, metrics map[string]float64) *activity.Activity {
	return &activity.Activity{ID: uuid.New(), ActivityTypeID: typeID, Metrics: metrics}
}

func TestEvaluateCountThreshold(t *testing.T) {
	runType := uuid.New()
	rideType := uuid.New()
	otherType := uuid.New()

	c := Criteria{
		ActivityTypeIDs: []uuid.UUID{runType, rideType},
		Metric:          "miles",
		Threshold:       3,
		RequiredCount:   2,
	}

	acts := []*activity.Activity{
		act(runType, map[string]float64{"miles": 5}),
		act(runType, map[string]float64{"miles": 2}),   // under threshold
		act(otherType, map[string]float64{"miles": 8}), // wrong type
	}

	ev := Evaluate(c, acts)
	assert.Equal(t, 1, ev.CurrentCount)
	assert.Equal(t, 2, ev.RequiredCount)
	assert.False(t, ev.Unlocked)

	acts = append(acts, act(rideType, map[string]float64{"distance": 4}))
	ev = Evaluate(c, acts)
	assert.Equal(t, 2, ev.CurrentCount)
	assert.True(t, ev.Unlocked)
}

func TestEvaluateCountThresholdDefaultsWhenTagAbsent(t *testing.T) {
	// Legacy criteria documents have no type tag.
	typeID := uuid.New()
	c := Criteria{ActivityTypeIDs: []uuid.UUID{typeID}, Metric: "minutes", Threshold: 30, RequiredCount: 1}

	ev := Evaluate(c, []*activity.Activity{act(typeID, map[string]float64{"minutes": 45})})
	assert.True(t, ev.Unlocked)
}

func TestEvaluateAllTypeThresholds(t *testing.T) {
	runType := uuid.New()
	swimType := uuid.New()

	c := Criteria{
		Type: CriteriaAllTypeThresholds,
		Requirements: []TypeRequirement{
			{ActivityTypeID: runType, Metric: "miles", Threshold: 3},
			{ActivityTypeID: swimType, Metric: "minutes", Threshold: 20},
		},
	}

	// Only one requirement satisfied.
	ev := Evaluate(c, []*activity.Activity{act(runType, map[string]float64{"miles": 4})})
	assert.Equal(t, 1, ev.CurrentCount)
	assert.Equal(t, 2, ev.RequiredCount)
	assert.False(t, ev.Unlocked)

	// Both satisfied, by different activities of different types.
	ev = Evaluate(c, []*activity.Activity{
		act(runType, map[string]float64{"miles": 4}),
		act(swimType, map[string]float64{"minutes": 25}),
	})
	assert.Equal(t, 2, ev.CurrentCount)
	assert.True(t, ev.Unlocked)
}

func TestEvaluateAllTypeThresholdsCreditsOneActivityPerRequirement(t *testing.T) {
	runType := uuid.New()
	c := Criteria{
		Type: CriteriaAllTypeThresholds,
		Requirements: []TypeRequirement{
			{ActivityTypeID: runType, Metric: "miles", Threshold: 3},
			{ActivityTypeID: uuid.New(), Metric: "miles", Threshold: 3},
		},
	}

	// Two qualifying runs cannot satisfy the second requirement, which
	// names a different type.
	ev := Evaluate(c, []*activity.Activity{
		act(runType, map[string]float64{"miles": 5}),
		act(runType, map[string]float64{"miles": 6}),
	})
	assert.Equal(t, 1, ev.CurrentCount)
	assert.False(t, ev.Unlocked)
}

func TestEvaluateEmptyCriteriaNeverUnlocks(t *testing.T) {
	ev := Evaluate(Criteria{}, nil)
	assert.False(t, ev.Unlocked)

	ev = Evaluate(Criteria{Type: CriteriaAllTypeThresholds}, nil)
	assert.False(t, ev.Unlocked)
}
