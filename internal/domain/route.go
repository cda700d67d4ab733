package domain

import "time"

// LegSource records where a leg's distance and duration came from.
type LegSource string

const (
	SourceAPI       LegSource = "api"
	SourceCache     LegSource = "cache"
	SourceEstimated LegSource = "estimated"
)

// TravelLeg is a directed edge between two matrix nodes.
type TravelLeg struct {
	FromID         string
	ToID           string
	DistanceMeters int
	TravelSeconds  int
	Source         LegSource
}

// TravelMatrix is a complete directed graph over a list of waypoints.
// Index 0 is the depot when the matrix is built for route planning.
// A nil cell means the pair is unresolved.
// LookupFailed is set when the batch lookup was attempted and failed as a
// whole, leaving every uncached cell estimated.
type TravelMatrix struct {
	IDs          []string
	Legs         [][]*TravelLeg
	Degraded     []bool
	LookupFailed bool
}

// NewTravelMatrix allocates an n×n matrix with every cell unresolved.
func NewTravelMatrix(ids []string) TravelMatrix {
	n := len(ids)
	legs := make([][]*TravelLeg, n)
	for i := range legs {
		legs[i] = make([]*TravelLeg, n)
	}
	return TravelMatrix{
		IDs:      append([]string(nil), ids...),
		Legs:     legs,
		Degraded: make([]bool, n),
	}
}

func (m TravelMatrix) Size() int { return len(m.IDs) }

// Leg returns the cell for i -> j, or nil when out of range or unresolved.
func (m TravelMatrix) Leg(i, j int) *TravelLeg {
	if i < 0 || j < 0 || i >= len(m.Legs) || j >= len(m.Legs[i]) {
		return nil
	}
	return m.Legs[i][j]
}

// Unresolved counts nil cells.
func (m TravelMatrix) Unresolved() int {
	n := 0
	for i := range m.Legs {
		for j := range m.Legs[i] {
			if m.Legs[i][j] == nil {
				n++
			}
		}
	}
	return n
}

// Strategy names the algorithm path that produced a Route.
type Strategy string

const (
	StrategyEmpty    Strategy = "empty"
	StrategySingle   Strategy = "single"
	StrategySolver   Strategy = "solver"
	StrategyFallback Strategy = "fallback"
)

// Represents a single stop in a visit route.
// Times are offsets since midnight of the working day.
type RouteStop struct {
	Visit                    Visit
	Leg                      TravelLeg
	ArriveAt                 time.Duration
	ServiceStartAt           time.Duration
	DepartAt                 time.Duration
	CumulativeDistanceMeters int
	CumulativeTravelSeconds  int
	WithinWindow             bool
}

// Represents the planned visit order for one working day.
// A Route is always a permutation of the visits it was planned from.
// Optimized is false whenever the deterministic fallback ordering was used.
type Route struct {
	WorkStart           int
	WorkEnd             int
	Stops               []RouteStop
	TotalDistanceMeters int
	TotalTravelSeconds  int
	TotalDuration       time.Duration
	Strategy            Strategy
	Optimized           bool
	FallbackReason      string
}

// VisitIDs returns the visit ids in route order.
func (r *Route) VisitIDs() []string {
	ids := make([]string, 0, len(r.Stops))
	for _, s := range r.Stops {
		ids = append(ids, s.Visit.ID)
	}
	return ids
}
