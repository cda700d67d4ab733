package services

import (
	"context"
	"errors"
	"time"
	"visit-route-service/internal/domain"
	"visit-route-service/internal/platform/obs"
	"visit-route-service/internal/ports"

	"github.com/rs/zerolog/log"
)

// DefaultLookupTimeout bounds one external matrix lookup.
const DefaultLookupTimeout = 10 * time.Second

var errMalformedGrid = errors.New("build matrix: lookup result does not cover every point")

// TravelMatrixProvider resolves every pair of a waypoint list.
//
// Cache hits short-circuit cells, the remaining pairs between valid waypoints
// go out in one batch lookup, and anything still unresolved is estimated
// geometrically. It never returns an error.
type TravelMatrixProvider struct {
	cache         ports.TravelTimeCache
	client        ports.MatrixClient
	lookupTimeout time.Duration
}

type ProviderOption func(*TravelMatrixProvider)

func WithLookupTimeout(d time.Duration) ProviderOption {
	return func(p *TravelMatrixProvider) {
		if d > 0 {
			p.lookupTimeout = d
		}
	}
}

// NewTravelMatrixProvider builds a provider. Either dependency may be nil:
// without a client every uncached cell is estimated, without a cache every
// cell goes to the client.
func NewTravelMatrixProvider(
	cache ports.TravelTimeCache,
	client ports.MatrixClient,
	opts ...ProviderOption,
) *TravelMatrixProvider {
	p := &TravelMatrixProvider{
		cache:         cache,
		client:        client,
		lookupTimeout: DefaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *TravelMatrixProvider) BuildMatrix(ctx context.Context, waypoints []domain.Waypoint) domain.TravelMatrix {
	defer obs.Time(ctx, "build_matrix")(nil)

	ids := make([]string, len(waypoints))
	for i, w := range waypoints {
		ids[i] = w.ID
	}
	m := domain.NewTravelMatrix(ids)

	for i, w := range waypoints {
		m.Degraded[i] = !w.Virtual && !w.Coordinate.Valid()
	}

	p.resolveLocal(&m, waypoints)
	misses := p.resolveCached(ctx, &m, waypoints)
	if len(misses) > 1 {
		p.resolveRemote(ctx, &m, waypoints, misses)
	}
	p.backfill(&m, waypoints)
	recordCellSources(m)

	return m
}

// resolveLocal fills every cell that never goes to the cache or the API:
// the diagonal, legs touching a virtual waypoint, and legs touching a
// degraded waypoint.
func (p *TravelMatrixProvider) resolveLocal(m *domain.TravelMatrix, waypoints []domain.Waypoint) {
	for i := range waypoints {
		for j := range waypoints {
			var leg domain.TravelLeg
			switch {
			case i == j, waypoints[i].Virtual, waypoints[j].Virtual:
				leg = domain.TravelLeg{Source: domain.SourceEstimated}
			case m.Degraded[i], m.Degraded[j]:
				leg = EstimateLeg(waypoints[i].Coordinate, waypoints[j].Coordinate)
			default:
				continue
			}
			leg.FromID, leg.ToID = m.IDs[i], m.IDs[j]
			m.Legs[i][j] = &leg
		}
	}
}

// resolveCached consults the cache for the open cells and returns the
// indices of waypoints that still have at least one open cell.
func (p *TravelMatrixProvider) resolveCached(
	ctx context.Context,
	m *domain.TravelMatrix,
	waypoints []domain.Waypoint,
) []int {
	missing := make([]bool, len(waypoints))

	for i := range waypoints {
		for j := range waypoints {
			if m.Legs[i][j] != nil {
				continue
			}

			if p.cache != nil {
				leg, ok, err := p.cache.Get(ctx, waypoints[i].Coordinate, waypoints[j].Coordinate)
				if err != nil {
					log.Debug().
						Str("plan_id", obs.PlanID(ctx)).
						Err(err).
						Msg("travel time cache read failed, treating as miss")
				}
				if err == nil && ok {
					leg.FromID, leg.ToID = m.IDs[i], m.IDs[j]
					m.Legs[i][j] = &leg
					continue
				}
			}

			missing[i], missing[j] = true, true
		}
	}

	var out []int
	for i, miss := range missing {
		if miss {
			out = append(out, i)
		}
	}
	return out
}

// resolveRemote issues one batch lookup over the given waypoint indices and
// writes every usable element back to the matrix and the cache.
func (p *TravelMatrixProvider) resolveRemote(
	ctx context.Context,
	m *domain.TravelMatrix,
	waypoints []domain.Waypoint,
	nodes []int,
) {
	if p.client == nil {
		return
	}

	points := make([]domain.Coordinate, len(nodes))
	for k, i := range nodes {
		points[k] = waypoints[i].Coordinate
	}

	lookupCtx, cancel := context.WithTimeout(ctx, p.lookupTimeout)
	grid, err := p.client.FetchMatrix(lookupCtx, points)
	cancel()

	if err == nil && !gridCovers(grid, len(points)) {
		err = errMalformedGrid
	}
	if err != nil {
		m.LookupFailed = true
		obs.MatrixLookupFailuresTotal.Inc()
		log.Warn().
			Str("plan_id", obs.PlanID(ctx)).
			Int("points", len(points)).
			Err(err).
			Msg("matrix lookup failed, estimating travel legs")
		return
	}

	for a, i := range nodes {
		for b, j := range nodes {
			if m.Legs[i][j] != nil {
				continue
			}

			el := grid[a][b]
			if el.Status != ports.ElementStatusOK || el.DistanceMeters < 0 || el.TravelSeconds() < 0 {
				continue
			}

			leg := domain.TravelLeg{
				FromID:         m.IDs[i],
				ToID:           m.IDs[j],
				DistanceMeters: el.DistanceMeters,
				TravelSeconds:  el.TravelSeconds(),
				Source:         domain.SourceAPI,
			}
			m.Legs[i][j] = &leg

			if p.cache == nil {
				continue
			}
			if err := p.cache.Put(ctx, waypoints[i].Coordinate, waypoints[j].Coordinate, leg); err != nil {
				log.Debug().
					Str("plan_id", obs.PlanID(ctx)).
					Err(err).
					Msg("travel time cache write failed")
			}
		}
	}
}

// backfill estimates every cell that is still unresolved.
func (p *TravelMatrixProvider) backfill(m *domain.TravelMatrix, waypoints []domain.Waypoint) {
	for i := range waypoints {
		for j := range waypoints {
			if m.Legs[i][j] != nil {
				continue
			}
			leg := EstimateLeg(waypoints[i].Coordinate, waypoints[j].Coordinate)
			leg.FromID, leg.ToID = m.IDs[i], m.IDs[j]
			m.Legs[i][j] = &leg
		}
	}
}

func gridCovers(grid [][]ports.MatrixElement, n int) bool {
	if len(grid) != n {
		return false
	}
	for _, row := range grid {
		if len(row) != n {
			return false
		}
	}
	return true
}

func recordCellSources(m domain.TravelMatrix) {
	counts := make(map[domain.LegSource]int, 3)
	for i := range m.Legs {
		for j, leg := range m.Legs[i] {
			if i == j || leg == nil {
				continue
			}
			counts[leg.Source]++
		}
	}
	for source, n := range counts {
		obs.MatrixCellsTotal.WithLabelValues(string(source)).Add(float64(n))
	}
}
