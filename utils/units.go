package utils

const metersPerMile = 1609.344

func MetersToMiles(meters float64) float64 {
	return meters / metersPerMile
}

func MetersToKilometers(meters float64) float64 {
	return meters / 1000
}

func SecondsToMinutes(seconds int) float64 {
	return float64(seconds) / 60
}
