package ports

import (
	"context"
	"visit-route-service/internal/domain"
)

// Contract for resolving pairwise travel legs for a set of waypoints.
// Implementations never fail: every cell of the returned matrix is resolved,
// with the leg Source recording how.
type DistanceMatrixProvider interface {
	BuildMatrix(ctx context.Context, waypoints []domain.Waypoint) domain.TravelMatrix
}
