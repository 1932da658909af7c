package scoring

// Metric key aliases: clients and the Strava sync do not agree on key
// names, so a config asking for "distance_miles" is satisfied by whichever
// of the aliased keys carries a positive value. First positive match wins.
var metricAliases = map[string][]string{
	"miles":            {"miles", "distance_miles", "distance"},
	"distance_miles":   {"distance_miles", "miles", "distance"},
	"kilometers":       {"kilometers", "km", "distance_km", "distance"},
	"distance_km":      {"distance_km", "kilometers", "km", "distance"},
	"minutes":          {"minutes", "duration_minutes", "duration"},
	"duration_minutes": {"duration_minutes", "minutes", "duration"},
	"count":            {"count", "reps", "units"},
}

// ResolveMetric looks up a metric value by name, falling back through the
// alias table. Returns false when no aliased key is present at all.
func ResolveMetric(metrics map[string]float64, name string) (float64, bool) {
	keys, ok := metricAliases[name]
	if !ok {
		keys = []string{name}
	}
	for _, k := range keys {
		if v, present := metrics[k]; present && v > 0 {
			return v, true
		}
	}
	// No positive value; still report an exact-key zero as present so a
	// logged zero is distinguishable from a missing metric.
	if v, present := metrics[name]; present {
		return v, true
	}
	return 0, false
}
