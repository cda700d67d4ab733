package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"
	"visit-route-service/internal/domain"
	"visit-route-service/internal/platform/obs"

	"github.com/rs/zerolog/log"
)

const (
	DefaultSolverTimeLimit     = 30 * time.Second
	DefaultSolverMaxIterations = 200000
)

// OptimizerOptions bounds the local search phase.
// Zero values select the defaults.
type OptimizerOptions struct {
	TimeLimit     time.Duration
	MaxIterations int
}

// RouteOptimizer sequences visits against a travel matrix.
//
// Well-formed input goes through greedy construction and local search.
// Degraded input, a matrix whose batch lookup failed, and input for which no
// window-feasible order is found get the deterministic fallback ordering
// instead. Optimize never fails.
type RouteOptimizer struct {
	opts OptimizerOptions
	now  func() time.Time
}

func NewRouteOptimizer(opts OptimizerOptions) *RouteOptimizer {
	if opts.TimeLimit <= 0 {
		opts.TimeLimit = DefaultSolverTimeLimit
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultSolverMaxIterations
	}
	return &RouteOptimizer{opts: opts, now: time.Now}
}

// Optimize orders visits. The matrix must be indexed with the depot at 0 and
// visits[i] at i+1; workStart and workEnd are minutes since midnight.
func (o *RouteOptimizer) Optimize(
	ctx context.Context,
	visits []domain.Visit,
	matrix domain.TravelMatrix,
	workStart, workEnd int,
) *domain.Route {
	switch len(visits) {
	case 0:
		return &domain.Route{
			WorkStart: workStart,
			WorkEnd:   workEnd,
			Stops:     []domain.RouteStop{},
			Strategy:  domain.StrategyEmpty,
		}
	case 1:
		// A lone visit is reached with zero travel.
		route := annotate(visits, domain.TravelMatrix{}, []int{0}, workStart, workEnd)
		route.Strategy = domain.StrategySingle
		return route
	}

	if reason := degradedReason(visits, matrix, workStart, workEnd); reason != "" {
		return o.fallback(ctx, visits, matrix, workStart, workEnd, reason)
	}

	p, ok := newProblem(visits, matrix, workStart, workEnd)
	if !ok {
		return o.fallback(ctx, visits, matrix, workStart, workEnd, "visit window outside working window")
	}

	tour, ok := o.solve(ctx, p)
	if !ok {
		return o.fallback(ctx, visits, matrix, workStart, workEnd, "no feasible visit order found")
	}

	order := make([]int, len(tour))
	for k, node := range tour {
		order[k] = node - 1
	}

	route := annotate(visits, matrix, order, workStart, workEnd)
	route.Strategy = domain.StrategySolver
	route.Optimized = true
	return route
}

func (o *RouteOptimizer) solve(ctx context.Context, p *problem) ([]int, bool) {
	tour, ok := p.cheapestInsertion()
	if !ok {
		tour, ok = p.nearestFeasible()
	}
	if !ok {
		return nil, false
	}

	cost, _ := p.evaluate(tour)
	budget := &searchBudget{
		remaining: o.opts.MaxIterations,
		deadline:  o.now().Add(o.opts.TimeLimit),
		now:       o.now,
		ctx:       ctx,
	}
	improved := p.improve(tour, cost, budget)

	log.Debug().
		Str("plan_id", obs.PlanID(ctx)).
		Int("visits", p.visits).
		Int("initial_m", cost).
		Int("final_m", improved).
		Int("evaluations", budget.spent).
		Msg("local search done")

	return tour, true
}

func (o *RouteOptimizer) fallback(
	ctx context.Context,
	visits []domain.Visit,
	matrix domain.TravelMatrix,
	workStart, workEnd int,
	reason string,
) *domain.Route {
	log.Info().
		Str("plan_id", obs.PlanID(ctx)).
		Int("visits", len(visits)).
		Str("reason", reason).
		Msg("using fallback visit order")

	route := annotate(visits, matrix, fallbackOrder(visits, workStart), workStart, workEnd)
	route.Strategy = domain.StrategyFallback
	route.FallbackReason = reason
	return route
}

// fallbackOrder sorts visit indices by window start, or workStart for visits
// without a window. Ties keep input order.
func fallbackOrder(visits []domain.Visit, workStart int) []int {
	order := make([]int, len(visits))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(visits[a].EarliestOr(workStart), visits[b].EarliestOr(workStart))
	})
	return order
}

// degradedReason explains why the solver must not run, or returns "".
func degradedReason(visits []domain.Visit, m domain.TravelMatrix, workStart, workEnd int) string {
	if !(domain.TimeWindow{Earliest: workStart, Latest: workEnd}).Valid() {
		return fmt.Sprintf("malformed working window %d-%d", workStart, workEnd)
	}
	if m.Size() != len(visits)+1 {
		return "travel matrix does not cover every visit"
	}

	for i, v := range visits {
		node := i + 1
		switch {
		case !v.Coordinate.Valid(), node < len(m.Degraded) && m.Degraded[node]:
			return fmt.Sprintf("visit %q has no usable coordinate", v.ID)
		case v.Window != nil && !v.Window.Valid():
			return fmt.Sprintf("visit %q has a malformed time window", v.ID)
		}
	}
	if m.LookupFailed {
		return "travel matrix lookup unavailable"
	}
	return ""
}

// problem is the solver view of one run. Node 0 is the depot, node i is
// visits[i-1]. Times are seconds since midnight.
type problem struct {
	visits   int
	start    int
	dist     [][]int
	travel   [][]int
	service  []int
	earliest []int
	latest   []int
}

// newProblem reports false when some visit's window does not overlap the
// working window.
func newProblem(visits []domain.Visit, m domain.TravelMatrix, workStart, workEnd int) (*problem, bool) {
	n := len(visits) + 1
	p := &problem{
		visits:   len(visits),
		start:    workStart * 60,
		dist:     make([][]int, n),
		travel:   make([][]int, n),
		service:  make([]int, n),
		earliest: make([]int, n),
		latest:   make([]int, n),
	}

	for i := 0; i < n; i++ {
		p.dist[i] = make([]int, n)
		p.travel[i] = make([]int, n)
		for j := 0; j < n; j++ {
			leg := legAt(m, visits, i, j)
			p.dist[i][j] = leg.DistanceMeters
			p.travel[i][j] = leg.TravelSeconds
		}
	}

	p.earliest[0], p.latest[0] = workStart*60, workEnd*60

	feasible := true
	for i, v := range visits {
		earliest, latest, ok := windowSeconds(v, workStart, workEnd)
		p.earliest[i+1], p.latest[i+1] = earliest, latest
		p.service[i+1] = v.ServiceDuration() * 60
		feasible = feasible && ok
	}
	return p, feasible
}

// evaluate returns the distance of an open tour starting at the depot, or
// false when some arrival falls after its window closes.
func (p *problem) evaluate(tour []int) (int, bool) {
	clock, prev, cost := p.start, 0, 0
	for _, v := range tour {
		clock += p.travel[prev][v]
		if clock > p.latest[v] {
			return 0, false
		}
		clock = max(clock, p.earliest[v]) + p.service[v]
		cost += p.dist[prev][v]
		prev = v
	}
	return cost, true
}

// windowSeconds returns the visit's window intersected with the working
// window, and whether the result is non-empty.
func windowSeconds(v domain.Visit, workStart, workEnd int) (int, int, bool) {
	earliest, latest := workStart, workEnd
	if v.Window != nil {
		if !v.Window.Valid() {
			return v.Window.Earliest * 60, v.Window.Latest * 60, false
		}
		earliest = max(earliest, v.Window.Earliest)
		latest = min(latest, v.Window.Latest)
	}
	return earliest * 60, latest * 60, earliest <= latest
}

// legAt returns the matrix leg between two nodes. Missing cells are estimated
// from straight-line distance at the solver speed.
func legAt(m domain.TravelMatrix, visits []domain.Visit, from, to int) domain.TravelLeg {
	if m.Size() == len(visits)+1 {
		if leg := m.Leg(from, to); leg != nil {
			return *leg
		}
	}

	leg := domain.TravelLeg{
		FromID: nodeID(m, visits, from),
		ToID:   nodeID(m, visits, to),
		Source: domain.SourceEstimated,
	}
	if from > 0 && to > 0 && from != to {
		leg.DistanceMeters = EstimateLeg(visits[from-1].Coordinate, visits[to-1].Coordinate).DistanceMeters
		leg.TravelSeconds = solverTravelSeconds(leg.DistanceMeters)
	}
	return leg
}

func nodeID(m domain.TravelMatrix, visits []domain.Visit, node int) string {
	if node == 0 {
		if m.Size() > 0 {
			return m.IDs[0]
		}
		return DepotID
	}
	return visits[node-1].ID
}

// annotate walks the visits in order from the depot at workStart and fills
// arrival, service and cumulative figures for every stop.
func annotate(
	visits []domain.Visit,
	m domain.TravelMatrix,
	order []int,
	workStart, workEnd int,
) *domain.Route {
	route := &domain.Route{
		WorkStart: workStart,
		WorkEnd:   workEnd,
		Stops:     make([]domain.RouteStop, 0, len(order)),
	}

	clock := workStart * 60
	prev := 0
	for _, idx := range order {
		node := idx + 1
		v := visits[idx]
		leg := legAt(m, visits, prev, node)

		arrive := clock + leg.TravelSeconds
		earliest, latest, ok := windowSeconds(v, workStart, workEnd)
		serviceStart := max(arrive, earliest)
		depart := serviceStart + v.ServiceDuration()*60

		route.TotalDistanceMeters += leg.DistanceMeters
		route.TotalTravelSeconds += leg.TravelSeconds

		route.Stops = append(route.Stops, domain.RouteStop{
			Visit:                    v,
			Leg:                      leg,
			ArriveAt:                 seconds(arrive),
			ServiceStartAt:           seconds(serviceStart),
			DepartAt:                 seconds(depart),
			CumulativeDistanceMeters: route.TotalDistanceMeters,
			CumulativeTravelSeconds:  route.TotalTravelSeconds,
			WithinWindow:             ok && arrive <= latest,
		})

		clock = depart
		prev = node
	}

	route.TotalDuration = seconds(clock - workStart*60)
	return route
}

func seconds(s int) time.Duration { return time.Duration(s) * time.Second }
