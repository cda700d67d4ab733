package ports

import (
	"context"
	"visit-route-service/internal/domain"
)

// ElementStatusOK is the only per-pair status accepted as a resolved cell.
const ElementStatusOK = "OK"

// Distance and travel duration for one ordered pair of a batch lookup.
type MatrixElement struct {
	Status                 string
	DistanceMeters         int
	DurationSeconds        int
	TrafficDurationSeconds int
}

// TravelSeconds prefers the traffic-adjusted duration when present.
func (e MatrixElement) TravelSeconds() int {
	if e.TrafficDurationSeconds > 0 {
		return e.TrafficDurationSeconds
	}
	return e.DurationSeconds
}

// Contract for the external batch distance/time-matrix API.
type MatrixClient interface {
	// Return an n×n grid of elements for all ordered pairs of points.
	// An error means the whole call failed; per-pair failures are carried in Status.
	FetchMatrix(ctx context.Context, points []domain.Coordinate) ([][]MatrixElement, error)
}
