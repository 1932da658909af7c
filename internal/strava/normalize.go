package strava

import (
	"time"

	"marchFitnessAPI/utils"
)

// NormalizedActivity is the shape the ingestion pipeline accepts: a logged
// date plus a flat metric map in the units scoring configs speak.
type NormalizedActivity struct {
	ExternalID string
	SportType  string
	LoggedDate time.Time
	Metrics    map[string]float64
}

// sportNames maps Strava sport types onto the activity-type names
// challenges use. Unlisted sports fall back to the raw sport type.
var sportNames = map[string]string{
	"Run":             "Run",
	"TrailRun":        "Run",
	"VirtualRun":      "Run",
	"Ride":            "Bike",
	"VirtualRide":     "Bike",
	"GravelRide":      "Bike",
	"MountainBikeRide": "Bike",
	"Swim":            "Swim",
	"Walk":            "Walk",
	"Hike":            "Hike",
	"Rowing":          "Row",
	"WeightTraining":  "Strength",
	"Workout":         "Workout",
	"Yoga":            "Yoga",
	"Elliptical":      "Cardio",
	"StairStepper":    "Cardio",
}

// Normalize converts a Strava activity into ingestion input. Distances are
// exposed under both mile and kilometer keys so whichever metric a scoring
// config asks for resolves; duration uses moving time, falling back to
// elapsed time for stationary workouts.
func Normalize(a *Activity) *NormalizedActivity {
	metrics := map[string]float64{}

	if a.Distance > 0 {
		metrics["miles"] = utils.MetersToMiles(a.Distance)
		metrics["kilometers"] = utils.MetersToKilometers(a.Distance)
	}

	seconds := a.MovingTime
	if seconds == 0 {
		seconds = a.ElapsedTime
	}
	if seconds > 0 {
		metrics["minutes"] = utils.SecondsToMinutes(seconds)
	}

	if a.AverageHeartrate > 0 {
		metrics["average_heartrate"] = a.AverageHeartrate
	}
	if a.TotalElevation > 0 {
		metrics["elevation_gain"] = a.TotalElevation
	}

	sport := a.SportType
	if sport == "" {
		sport = a.Type
	}
	if name, ok := sportNames[sport]; ok {
		sport = name
	}

	return &NormalizedActivity{
		SportType:  sport,
		LoggedDate: a.StartDate.UTC(),
		Metrics:    metrics,
	}
}
