package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{"type":"unit_based","metric":"miles","points_per_unit":7.5,"max_units":20}`))
	require.NoError(t, err)
	assert.Equal(t, TypeUnitBased, cfg.Type)
	require.NotNil(t, cfg.MaxUnits)
	assert.Equal(t, 20.0, *cfg.MaxUnits)
}

func TestParseConfigRejectsUnknownType(t *testing.T) {
	_, err := ParseConfig([]byte(`{"type":"per_rep","points_per_unit":1}`))
	assert.ErrorIs(t, err, ErrUnknownScoringType)
}

func TestParseConfigTieredInvariants(t *testing.T) {
	// Catch-all not last.
	_, err := ParseConfig([]byte(`{"type":"tiered","metric":"minutes","tiers":[{"points":10},{"max_value":12,"points":30}]}`))
	assert.Error(t, err)

	// Not ascending.
	_, err = ParseConfig([]byte(`{"type":"tiered","metric":"minutes","tiers":[{"max_value":12,"points":30},{"max_value":10,"points":50}]}`))
	assert.Error(t, err)

	// Well-formed.
	_, err = ParseConfig([]byte(`{"type":"tiered","metric":"minutes","tiers":[{"max_value":10,"points":50},{"max_value":12,"points":30},{"points":10}]}`))
	assert.NoError(t, err)
}

func TestParseConfigUnitBasedRequiresMetric(t *testing.T) {
	_, err := ParseConfig([]byte(`{"type":"unit_based","points_per_unit":1}`))
	assert.Error(t, err)
}

func TestResolveMetricFirstPositiveWins(t *testing.T) {
	v, ok := ResolveMetric(map[string]float64{"miles": 0, "distance": 5}, "miles")
	assert.True(t, ok)
	assert.Equal(t, 5.0, v)

	// Exact-key zero still counts as present.
	v, ok = ResolveMetric(map[string]float64{"miles": 0}, "miles")
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)

	_, ok = ResolveMetric(map[string]float64{"minutes": 30}, "miles")
	assert.False(t, ok)
}
