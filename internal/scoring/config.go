package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
)

type ConfigType string

const (
	TypeUnitBased  ConfigType = "unit_based"
	TypeTiered     ConfigType = "tiered"
	TypeCompletion ConfigType = "completion"
	TypeVariable   ConfigType = "variable"
)

// ErrUnknownScoringType is returned for a config whose type tag is not one
// of the supported variants. Ingestion treats this as a hard error rather
// than zero-scoring the activity.
var ErrUnknownScoringType = errors.New("unknown scoring config type")

// Tier is one step of a tiered config. A nil MaxValue marks the catch-all
// tier, which must be last.
type Tier struct {
	MaxValue *float64 `json:"max_value,omitempty"`
	Points   float64  `json:"points"`
}

// OptionalBonus is a caller-selectable flat bonus on a completion config.
type OptionalBonus struct {
	Name   string  `json:"name"`
	Points float64 `json:"points"`
}

// BonusThreshold awards a flat bonus once a metric crosses its threshold.
// Thresholds are independent of each other; an activity crossing several
// collects all of them.
type BonusThreshold struct {
	Metric      string  `json:"metric"`
	Threshold   float64 `json:"threshold"`
	BonusPoints float64 `json:"bonus_points"`
	Description string  `json:"description,omitempty"`
}

// Config is the tagged scoring rule variant attached to an activity type.
// Type determines which of the remaining fields are meaningful.
type Config struct {
	Type ConfigType `json:"type"`

	// unit_based
	Metric         string   `json:"metric,omitempty"`
	PointsPerUnit  float64  `json:"points_per_unit,omitempty"`
	MaxUnits       *float64 `json:"max_units,omitempty"`
	DailyFreeUnits float64  `json:"daily_free_units,omitempty"`

	// tiered
	Tiers []Tier `json:"tiers,omitempty"`

	// completion
	FixedPoints     float64         `json:"fixed_points,omitempty"`
	OptionalBonuses []OptionalBonus `json:"optional_bonuses,omitempty"`
}

// Validate checks the type tag and the variant-specific invariants.
func (c *Config) Validate() error {
	switch c.Type {
	case TypeUnitBased:
		if c.Metric == "" {
			return fmt.Errorf("unit_based config requires a metric")
		}
		if c.MaxUnits != nil && *c.MaxUnits < 0 {
			return fmt.Errorf("max_units must not be negative")
		}
	case TypeTiered:
		if c.Metric == "" {
			return fmt.Errorf("tiered config requires a metric")
		}
		if len(c.Tiers) == 0 {
			return fmt.Errorf("tiered config requires at least one tier")
		}
		var prev *float64
		for i, t := range c.Tiers {
			if t.MaxValue == nil {
				if i != len(c.Tiers)-1 {
					return fmt.Errorf("catch-all tier must be last")
				}
				continue
			}
			if prev != nil && *t.MaxValue <= *prev {
				return fmt.Errorf("tiers must be sorted ascending by max_value")
			}
			prev = t.MaxValue
		}
	case TypeCompletion, TypeVariable:
		// no required fields
	default:
		return fmt.Errorf("%w: %q", ErrUnknownScoringType, c.Type)
	}
	return nil
}

// ParseConfig decodes and validates a stored scoring config. Unknown type
// tags fail here so a misconfigured activity type can never silently score
// zero.
func ParseConfig(raw []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode scoring config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
