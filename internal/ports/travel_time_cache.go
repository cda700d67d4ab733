package ports

import (
	"context"
	"visit-route-service/internal/domain"
)

// Contract for a TTL-bounded store of travel legs keyed by an ordered coordinate pair.
// Keys are directional: (a,b) and (b,a) are independent entries.
// Implementations must be safe for concurrent use.
type TravelTimeCache interface {
	// Return a non-stale leg for from -> to. The returned leg is a copy.
	Get(ctx context.Context, from, to domain.Coordinate) (domain.TravelLeg, bool, error)
	// Store or overwrite the leg for from -> to.
	Put(ctx context.Context, from, to domain.Coordinate, leg domain.TravelLeg) error
	// Remove every entry past its TTL and report how many were removed.
	SweepExpired(ctx context.Context) (int, error)
}
