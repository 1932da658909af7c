package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestUnitBasedScoring(t *testing.T) {
	cfg := &Config{Type: TypeUnitBased, Metric: "miles", PointsPerUnit: 7.5}

	points, err := ComputeScore(cfg, Input{Metrics: map[string]float64{"miles": 4}})
	require.NoError(t, err)
	assert.Equal(t, 30.0, points)
}

func TestUnitBasedMetricAliases(t *testing.T) {
	cfg := &Config{Type: TypeUnitBased, Metric: "distance_miles", PointsPerUnit: 2}

	for _, key := range []string{"miles", "distance_miles", "distance"} {
		points, err := ComputeScore(cfg, Input{Metrics: map[string]float64{key: 3}})
		require.NoError(t, err)
		assert.Equal(t, 6.0, points, "alias key %s", key)
	}

	_, err := ComputeScore(cfg, Input{Metrics: map[string]float64{"minutes": 30}})
	assert.Error(t, err)
}

func TestUnitBasedMaxUnitsCap(t *testing.T) {
	cfg := &Config{Type: TypeUnitBased, Metric: "count", PointsPerUnit: 10, MaxUnits: f(5)}

	// Monotonically non-decreasing up to the cap, then constant.
	var prev float64 = -1
	for _, v := range []float64{1, 2, 4.5, 5, 6, 50} {
		points, err := ComputeScore(cfg, Input{Metrics: map[string]float64{"count": v}})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, points, prev)
		prev = points
	}
	assert.Equal(t, 50.0, prev)
}

func TestUnitBasedDailyFreeUnits(t *testing.T) {
	// Penalty-style config: first drink of the day is excused.
	cfg := &Config{Type: TypeUnitBased, Metric: "count", PointsPerUnit: 5, DailyFreeUnits: 1}

	points, err := ComputeScore(cfg, Input{Metrics: map[string]float64{"count": 3}})
	require.NoError(t, err)
	assert.Equal(t, 10.0, points)

	// A second entry on the same day gets no excusal.
	points, err = ComputeScore(cfg, Input{
		Metrics:           map[string]float64{"count": 2},
		PriorSameDayUnits: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 10.0, points)
}

func TestUnitBasedBonusThresholdsAdditive(t *testing.T) {
	cfg := &Config{Type: TypeUnitBased, Metric: "miles", PointsPerUnit: 7.5}
	bonuses := []BonusThreshold{
		{Metric: "miles", Threshold: 26.2, BonusPoints: 100, Description: "marathon"},
		{Metric: "miles", Threshold: 13.1, BonusPoints: 25, Description: "half marathon"},
	}

	// A marathon crosses both thresholds; bonuses stack.
	points, err := ComputeScore(cfg, Input{
		Metrics:         map[string]float64{"miles": 26.2},
		BonusThresholds: bonuses,
	})
	require.NoError(t, err)
	assert.InDelta(t, 26.2*7.5+25+100, points, 1e-9)

	// Order independence.
	points2, err := ComputeScore(cfg, Input{
		Metrics:         map[string]float64{"miles": 26.2},
		BonusThresholds: []BonusThreshold{bonuses[1], bonuses[0]},
	})
	require.NoError(t, err)
	assert.Equal(t, points, points2)

	// Below the lower threshold no bonus applies.
	points, err = ComputeScore(cfg, Input{
		Metrics:         map[string]float64{"miles": 13.0},
		BonusThresholds: bonuses,
	})
	require.NoError(t, err)
	assert.InDelta(t, 13.0*7.5, points, 1e-9)
}

func TestTieredScoring(t *testing.T) {
	cfg := &Config{
		Type:   TypeTiered,
		Metric: "minutes",
		Tiers: []Tier{
			{MaxValue: f(10), Points: 50},
			{MaxValue: f(12), Points: 30},
			{Points: 10},
		},
	}

	cases := []struct {
		value float64
		want  float64
	}{
		{10, 50},    // boundary belongs to its tier
		{10.01, 30}, // just past the first tier
		{12, 30},
		{12.01, 10}, // catch-all
		{500, 10},
		{1, 50},
	}
	for _, tc := range cases {
		points, err := ComputeScore(cfg, Input{Metrics: map[string]float64{"minutes": tc.value}})
		require.NoError(t, err)
		assert.Equal(t, tc.want, points, "value %v", tc.value)
	}
}

func TestCompletionScoring(t *testing.T) {
	cfg := &Config{
		Type:        TypeCompletion,
		FixedPoints: 20,
		OptionalBonuses: []OptionalBonus{
			{Name: "with_friend", Points: 5},
			{Name: "outdoors", Points: 3},
		},
	}

	points, err := ComputeScore(cfg, Input{})
	require.NoError(t, err)
	assert.Equal(t, 20.0, points)

	points, err = ComputeScore(cfg, Input{SelectedBonuses: []string{"outdoors", "with_friend"}})
	require.NoError(t, err)
	assert.Equal(t, 28.0, points)

	// Unknown bonus names are ignored, not scored.
	points, err = ComputeScore(cfg, Input{SelectedBonuses: []string{"nope"}})
	require.NoError(t, err)
	assert.Equal(t, 20.0, points)
}

func TestVariableScoring(t *testing.T) {
	cfg := &Config{Type: TypeVariable}

	points, err := ComputeScore(cfg, Input{Points: f(42)})
	require.NoError(t, err)
	assert.Equal(t, 42.0, points)

	_, err = ComputeScore(cfg, Input{})
	assert.Error(t, err)
}

func TestUnknownScoringType(t *testing.T) {
	cfg := &Config{Type: "mystery"}
	_, err := ComputeScore(cfg, Input{Metrics: map[string]float64{"miles": 1}})
	assert.ErrorIs(t, err, ErrUnknownScoringType)
}
