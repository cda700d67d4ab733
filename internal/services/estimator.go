package services

import (
	"math"
	"visit-route-service/internal/domain"
)

const (
	earthRadiusMeters = 6371000.0

	// Average urban travel speed used for estimated legs.
	urbanSpeedKmh = 25.0

	// Vehicle speed the solver assumes for pairs the matrix does not cover.
	solverMetersPerMinute = 500.0
)

// HaversineMeters returns the great-circle distance between a and b.
func HaversineMeters(a, b domain.Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// EstimateLeg computes a geometric leg from a to b at urban speed.
// It never fails. Identical points, and points with an unset or out-of-range
// coordinate, yield a zero leg.
func EstimateLeg(a, b domain.Coordinate) domain.TravelLeg {
	leg := domain.TravelLeg{Source: domain.SourceEstimated}
	if !a.Valid() || !b.Valid() {
		return leg
	}

	meters := HaversineMeters(a, b)
	if math.IsNaN(meters) || math.IsInf(meters, 0) {
		return leg
	}

	metersPerSecond := urbanSpeedKmh * 1000 / 3600
	leg.DistanceMeters = int(math.Round(meters))
	leg.TravelSeconds = int(math.Round(meters / metersPerSecond))
	return leg
}

// solverTravelSeconds is the fallback time basis for a missing matrix cell.
func solverTravelSeconds(meters int) int {
	return int(math.Round(float64(meters) / solverMetersPerMinute * 60))
}
