package distance

import (
	"context"
	"math"
	"sync"
	"visit-route-service/internal/domain"
	"visit-route-service/internal/ports"
)

// MockMatrixClient answers lookups from a function of the two endpoints.
// Err, when set, fails every call. Calls records the points of every lookup.
type MockMatrixClient struct {
	mu      sync.Mutex
	Element func(from, to domain.Coordinate) ports.MatrixElement
	Err     error
	Calls   [][]domain.Coordinate
}

// NewMockMatrixClient returns a client that reports each pair as the
// Manhattan distance at 111 km per degree, travelled at 10 m/s.
func NewMockMatrixClient() *MockMatrixClient {
	return &MockMatrixClient{
		Element: func(from, to domain.Coordinate) ports.MatrixElement {
			dLat := (to.Lat - from.Lat) * 111000
			dLng := (to.Lng - from.Lng) * 111000
			meters := int(math.Round(math.Abs(dLat) + math.Abs(dLng)))
			return ports.MatrixElement{
				Status:          ports.ElementStatusOK,
				DistanceMeters:  meters,
				DurationSeconds: meters / 10,
			}
		},
	}
}

// NewFailingMatrixClient returns a client whose every call fails with err.
func NewFailingMatrixClient(err error) *MockMatrixClient {
	return &MockMatrixClient{Err: err}
}

func (m *MockMatrixClient) FetchMatrix(
	ctx context.Context,
	points []domain.Coordinate,
) ([][]ports.MatrixElement, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, append([]domain.Coordinate(nil), points...))
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([][]ports.MatrixElement, len(points))
	for i, from := range points {
		out[i] = make([]ports.MatrixElement, len(points))
		for j, to := range points {
			if i == j {
				out[i][j] = ports.MatrixElement{Status: ports.ElementStatusOK}
				continue
			}
			out[i][j] = m.Element(from, to)
		}
	}

	return out, nil
}

// CallCount returns the number of lookups made so far.
func (m *MockMatrixClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
