package services

import (
	"context"
	"time"
	"visit-route-service/internal/domain"
	"visit-route-service/internal/platform/obs"
	"visit-route-service/internal/ports"

	"github.com/rs/zerolog/log"
)

// DepotID identifies the start node in every travel matrix the planner builds.
const DepotID = "depot"

// RoutePlanner is the single entry point for planning a working day.
// It asks the provider for a travel matrix and the optimizer for an order.
type RoutePlanner struct {
	provider  ports.DistanceMatrixProvider
	optimizer *RouteOptimizer
}

func NewRoutePlanner(provider ports.DistanceMatrixProvider, optimizer *RouteOptimizer) *RoutePlanner {
	return &RoutePlanner{provider: provider, optimizer: optimizer}
}

type planOptions struct {
	start *domain.Coordinate
}

type PlanOption func(*planOptions)

// WithStartLocation plans from a physical start point instead of a virtual depot.
func WithStartLocation(c domain.Coordinate) PlanOption {
	return func(o *planOptions) { o.start = &c }
}

// PlanVisits orders visits for the working window [workStart, workEnd],
// given in minutes since midnight. It always returns a complete route.
func (p *RoutePlanner) PlanVisits(
	ctx context.Context,
	visits []domain.Visit,
	workStart, workEnd int,
	opts ...PlanOption,
) *domain.Route {
	var o planOptions
	for _, opt := range opts {
		opt(&o)
	}

	ctx, planID := obs.WithPlanID(ctx)
	defer obs.Time(ctx, "plan_visits")(nil)
	started := time.Now()

	var matrix domain.TravelMatrix
	if len(visits) > 1 {
		matrix = p.provider.BuildMatrix(ctx, waypointsFor(visits, o.start))
		if n := matrix.Unresolved(); n > 0 {
			log.Error().
				Str("plan_id", planID).
				Int("unresolved", n).
				Msg("travel matrix returned with unresolved cells")
		}
	}

	route := p.optimizer.Optimize(ctx, visits, matrix, workStart, workEnd)

	obs.PlansTotal.WithLabelValues(string(route.Strategy)).Inc()
	obs.PlanDuration.Observe(time.Since(started).Seconds())

	log.Info().
		Str("plan_id", planID).
		Int("visits", len(visits)).
		Str("strategy", string(route.Strategy)).
		Int("distance_m", route.TotalDistanceMeters).
		Int("travel_s", route.TotalTravelSeconds).
		Msg("route planned")

	return route
}

// waypointsFor lays out the depot at index 0 followed by visits in input order.
func waypointsFor(visits []domain.Visit, start *domain.Coordinate) []domain.Waypoint {
	waypoints := make([]domain.Waypoint, 0, len(visits)+1)

	depot := domain.Waypoint{ID: DepotID, Virtual: true}
	if start != nil {
		depot = domain.Waypoint{ID: DepotID, Coordinate: *start}
	}
	waypoints = append(waypoints, depot)

	for _, v := range visits {
		waypoints = append(waypoints, domain.Waypoint{ID: v.ID, Coordinate: v.Coordinate})
	}
	return waypoints
}
