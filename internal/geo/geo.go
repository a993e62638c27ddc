// Package geo holds the great-circle math used by geofencing and favorites.
package geo

import (
	"math"

	"geotasks/internal/models"
)

const (
	// EarthRadiusMeters is the mean Earth radius.
	EarthRadiusMeters = 6371e3

	// ArrivalRadiusMeters is one mile, the default geofence radius.
	ArrivalRadiusMeters = 1609.34

	// DefaultMatchPrecision is the number of decimals used when comparing
	// favorite coordinates (about 1.1 m at the equator).
	DefaultMatchPrecision = 5
)

// DistanceMeters returns the haversine distance between a and b.
func DistanceMeters(a, b models.Coordinate) float64 {
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// SameLocation compares two coordinates. A negative precision compares the
// raw floats; otherwise both are rounded to precision decimals first.
func SameLocation(a, b models.Coordinate, precision int) bool {
	if precision < 0 {
		return a.Latitude == b.Latitude && a.Longitude == b.Longitude
	}
	return round(a.Latitude, precision) == round(b.Latitude, precision) &&
		round(a.Longitude, precision) == round(b.Longitude, precision)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func round(v float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Round(v*p) / p
}
