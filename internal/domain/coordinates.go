package domain

import (
	"fmt"
	"math"
)

// Immutable geographic coordinates (latitude, longitude) in degrees.
// The zero value (0,0) is treated as "unset" by convention.
type Coordinate struct {
	Lat float64
	Lng float64
}

// Valid reports whether the coordinate can be used for matrix lookups.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return false
	}
	return !(c.Lat == 0 && c.Lng == 0)
}

// Return coordinates as "lat,lng" for external API compatibility.
func (c Coordinate) String() string { return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng) }

// Rounded returns the coordinate rounded to 5 decimal places (~1m precision).
func (c Coordinate) Rounded() Coordinate {
	return Coordinate{Lat: RoundCoordinate(c.Lat), Lng: RoundCoordinate(c.Lng)}
}

func RoundCoordinate(v float64) float64 {
	return math.Round(v*100000) / 100000
}

// Key formats the rounded coordinate as "lat,lng" with 5 decimals.
func (c Coordinate) Key() string {
	r := c.Rounded()
	return fmt.Sprintf("%.5f,%.5f", r.Lat, r.Lng)
}

// PairKey builds the directional cache key for an ordered coordinate pair.
func PairKey(from, to Coordinate) string {
	return from.Key() + "->" + to.Key()
}

// Waypoint is one node of a travel matrix.
// A Virtual waypoint stands in for a depot without a physical location:
// every leg touching it is zero-cost.
type Waypoint struct {
	ID         string
	Coordinate Coordinate
	Virtual    bool
}
