package scoring

import (
	"fmt"
	"math"
)

// Input carries everything the evaluator needs besides the config itself.
type Input struct {
	// Metrics are the raw logged values, e.g. {"miles": 5.2}.
	Metrics map[string]float64

	// SelectedBonuses names the optional bonuses the user picked on a
	// completion config.
	SelectedBonuses []string

	// Points is the caller-supplied value for a variable config.
	Points *float64

	// PriorSameDayUnits is how many units of this type the user already
	// logged on the same calendar day. Daily free units are consumed by
	// earlier logs first, so a second entry on the same day only gets
	// whatever excusal is left.
	PriorSameDayUnits float64

	// BonusThresholds come from the activity type and only apply to
	// unit_based configs.
	BonusThresholds []BonusThreshold
}

// ComputeScore evaluates a scoring config against raw metrics and returns
// the point magnitude. It is pure: the caller applies the negative sign for
// penalty types and enforces per-challenge caps.
func ComputeScore(cfg *Config, in Input) (float64, error) {
	switch cfg.Type {
	case TypeUnitBased:
		return scoreUnitBased(cfg, in)
	case TypeTiered:
		return scoreTiered(cfg, in)
	case TypeCompletion:
		return scoreCompletion(cfg, in), nil
	case TypeVariable:
		if in.Points == nil {
			return 0, fmt.Errorf("variable scoring requires caller-supplied points")
		}
		return *in.Points, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownScoringType, cfg.Type)
	}
}

func scoreUnitBased(cfg *Config, in Input) (float64, error) {
	value, ok := ResolveMetric(in.Metrics, cfg.Metric)
	if !ok {
		return 0, fmt.Errorf("metric %q not present in activity", cfg.Metric)
	}

	freeRemaining := cfg.DailyFreeUnits - in.PriorSameDayUnits
	if freeRemaining < 0 {
		freeRemaining = 0
	}
	units := value - freeRemaining
	if units < 0 {
		units = 0
	}
	if cfg.MaxUnits != nil {
		units = math.Min(units, *cfg.MaxUnits)
	}
	points := units * cfg.PointsPerUnit

	// Bonus thresholds are additive and independent; an activity crossing
	// several collects them all. Checked against the gross metric value,
	// before free units or the cap.
	for _, bt := range in.BonusThresholds {
		if v, ok := ResolveMetric(in.Metrics, bt.Metric); ok && v >= bt.Threshold {
			points += bt.BonusPoints
		}
	}
	return points, nil
}

func scoreTiered(cfg *Config, in Input) (float64, error) {
	value, ok := ResolveMetric(in.Metrics, cfg.Metric)
	if !ok {
		return 0, fmt.Errorf("metric %q not present in activity", cfg.Metric)
	}
	for _, t := range cfg.Tiers {
		if t.MaxValue == nil {
			return t.Points, nil
		}
		if value <= *t.MaxValue {
			return t.Points, nil
		}
	}
	// Validate guarantees a catch-all or an exhaustive ascent; a value past
	// every bounded tier with no catch-all scores nothing.
	return 0, nil
}

func scoreCompletion(cfg *Config, in Input) float64 {
	points := cfg.FixedPoints
	for _, name := range in.SelectedBonuses {
		for _, b := range cfg.OptionalBonuses {
			if b.Name == name {
				points += b.Points
				break
			}
		}
	}
	return points
}
