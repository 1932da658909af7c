package achievement

import (
	"github.com/google/uuid"

	"marchFitnessAPI/internal/activity"
	"marchFitnessAPI/internal/scoring"
)

type CriteriaType string

const (
	// CriteriaCountThreshold counts activities of any allowed type whose
	// metric meets the threshold. Legacy criteria documents carry no type
	// tag at all and decode to this variant.
	CriteriaCountThreshold CriteriaType = "count_threshold"

	// CriteriaAllTypeThresholds requires every listed activity type to be
	// individually satisfied by some activity.
	CriteriaAllTypeThresholds CriteriaType = "all_activity_type_thresholds"
)

// TypeRequirement is one leg of an all_activity_type_thresholds criteria.
type TypeRequirement struct {
	ActivityTypeID uuid.UUID `json:"activity_type_id"`
	Metric         string    `json:"metric"`
	Threshold      float64   `json:"threshold"`
}

type Criteria struct {
	Type CriteriaType `json:"type,omitempty"`

	// count_threshold
	ActivityTypeIDs []uuid.UUID `json:"activity_type_ids,omitempty"`
	Metric          string      `json:"metric,omitempty"`
	Threshold       float64     `json:"threshold,omitempty"`
	RequiredCount   int         `json:"required_count,omitempty"`

	// all_activity_type_thresholds
	Requirements []TypeRequirement `json:"requirements,omitempty"`
}

// Evaluation is the outcome of checking criteria against a user's logged
// activities. Unlocked is true when CurrentCount has reached RequiredCount.
type Evaluation struct {
	QualifyingActivityIDs []uuid.UUID
	CurrentCount          int
	RequiredCount         int
	Unlocked              bool
}

// Evaluate is pure: it inspects the supplied activities only. Granting the
// unlock, bonus points, and frequency enforcement belong to the caller.
func Evaluate(c Criteria, activities []*activity.Activity) Evaluation {
	switch c.Type {
	case CriteriaAllTypeThresholds:
		return evaluateAllTypeThresholds(c, activities)
	default:
		return evaluateCountThreshold(c, activities)
	}
}

func evaluateCountThreshold(c Criteria, activities []*activity.Activity) Evaluation {
	allowed := make(map[uuid.UUID]struct{}, len(c.ActivityTypeIDs))
	for _, id := range c.ActivityTypeIDs {
		allowed[id] = struct{}{}
	}

	ev := Evaluation{RequiredCount: c.RequiredCount}
	for _, a := range activities {
		if _, ok := allowed[a.ActivityTypeID]; !ok {
			continue
		}
		if v, ok := scoring.ResolveMetric(a.Metrics, c.Metric); !ok || v < c.Threshold {
			continue
		}
		ev.QualifyingActivityIDs = append(ev.QualifyingActivityIDs, a.ID)
	}
	ev.CurrentCount = len(ev.QualifyingActivityIDs)
	ev.Unlocked = ev.RequiredCount > 0 && ev.CurrentCount >= ev.RequiredCount
	return ev
}

func evaluateAllTypeThresholds(c Criteria, activities []*activity.Activity) Evaluation {
	ev := Evaluation{RequiredCount: len(c.Requirements)}

	// At most one activity is credited per requirement, but different
	// requirements may be satisfied by different activities.
	for _, req := range c.Requirements {
		for _, a := range activities {
			if a.ActivityTypeID != req.ActivityTypeID {
				continue
			}
			if v, ok := scoring.ResolveMetric(a.Metrics, req.Metric); ok && v >= req.Threshold {
				ev.QualifyingActivityIDs = append(ev.QualifyingActivityIDs, a.ID)
				ev.CurrentCount++
				break
			}
		}
	}
	ev.Unlocked = ev.RequiredCount > 0 && ev.CurrentCount == ev.RequiredCount
	return ev
}
