package distance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"visit-route-service/internal/domain"
	"visit-route-service/internal/platform/obs"
	"visit-route-service/internal/ports"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://maps.googleapis.com/maps/api"

	distanceMatrixEndpoint = "/distancematrix/json"

	// The API accepts at most 100 elements per request; 10x10 blocks stay under it.
	defaultBlockSize = 10

	defaultFlightTimeout = 30 * time.Second
)

// ErrMatrixUnavailable wraps any top-level (non per-element) API status other than OK.
var ErrMatrixUnavailable = errors.New("distance matrix unavailable")

type matrixValue struct {
	Value float64 `json:"value"`
}

type matrixElement struct {
	Status            string       `json:"status"`
	Distance          *matrixValue `json:"distance"`
	Duration          *matrixValue `json:"duration"`
	DurationInTraffic *matrixValue `json:"duration_in_traffic"`
}

type matrixResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Rows         []struct {
		Elements []matrixElement `json:"elements"`
	} `json:"rows"`
}

// GoogleMatrixClient implements MatrixClient against the Google Distance Matrix API.
//
// It coordinates:
//   - Splitting n×n lookups into request-sized origin/destination blocks
//   - Retry with backoff on transient failures
//   - A token-bucket limiter to stay under the key's quota
//   - Collapsing concurrent identical lookups into one round-trip
//
// The client is safe for concurrent use. Returned grids may be shared between
// concurrent callers and must not be mutated.
type GoogleMatrixClient struct {
	session        *http.Client
	apiKey         string
	baseURL        string
	mode           string
	blockSize      int
	maxAttempts    int
	initialBackoff time.Duration
	flightTimeout  time.Duration
	limiter        *rate.Limiter
	group          singleflight.Group
}

var _ ports.MatrixClient = (*GoogleMatrixClient)(nil)

type ClientOption func(*GoogleMatrixClient)

func WithBaseURL(u string) ClientOption {
	return func(g *GoogleMatrixClient) { g.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(c *http.Client) ClientOption {
	return func(g *GoogleMatrixClient) { g.session = c }
}

func WithTravelMode(mode string) ClientOption {
	return func(g *GoogleMatrixClient) {
		if mode != "" {
			g.mode = mode
		}
	}
}

// WithRateLimit caps outbound requests per second; zero or less disables the limiter.
func WithRateLimit(qps float64) ClientOption {
	return func(g *GoogleMatrixClient) {
		if qps <= 0 {
			g.limiter = nil
			return
		}
		g.limiter = rate.NewLimiter(rate.Limit(qps), 1)
	}
}

func WithRetry(maxAttempts int, initialBackoff time.Duration) ClientOption {
	return func(g *GoogleMatrixClient) {
		if maxAttempts > 0 {
			g.maxAttempts = maxAttempts
		}
		if initialBackoff > 0 {
			g.initialBackoff = initialBackoff
		}
	}
}

// WithFlightTimeout bounds one shared lookup independently of the callers
// waiting on it.
func WithFlightTimeout(d time.Duration) ClientOption {
	return func(g *GoogleMatrixClient) {
		if d > 0 {
			g.flightTimeout = d
		}
	}
}

func WithBlockSize(n int) ClientOption {
	return func(g *GoogleMatrixClient) {
		if n > 0 {
			g.blockSize = n
		}
	}
}

func NewGoogleMatrixClient(apiKey string, opts ...ClientOption) (*GoogleMatrixClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("matrix api key is empty")
	}

	client := &GoogleMatrixClient{
		session:        &http.Client{Timeout: 10 * time.Second},
		apiKey:         apiKey,
		baseURL:        DefaultBaseURL,
		mode:           "driving",
		blockSize:      defaultBlockSize,
		maxAttempts:    3,
		initialBackoff: 200 * time.Millisecond,
		flightTimeout:  defaultFlightTimeout,
		limiter:        rate.NewLimiter(rate.Limit(10), 1),
	}
	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// FetchMatrix returns the element grid for every ordered pair of points.
func (g *GoogleMatrixClient) FetchMatrix(
	ctx context.Context,
	points []domain.Coordinate,
) (_ [][]ports.MatrixElement, err error) {
	defer obs.Time(ctx, "matrix.FetchMatrix")(&err)

	if len(points) == 0 {
		return [][]ports.MatrixElement{}, nil
	}

	// The shared lookup outlives any single caller: it keeps the first
	// caller's values but runs under the client's own deadline.
	flight := g.group.DoChan(flightKey(points), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.flightTimeout)
		defer cancel()
		return g.fetchBlocks(fetchCtx, points)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch matrix for %d points: %w", len(points), ctx.Err())
	case res := <-flight:
		if res.Err != nil {
			return nil, fmt.Errorf("fetch matrix for %d points: %w", len(points), res.Err)
		}
		return res.Val.([][]ports.MatrixElement), nil
	}
}

func flightKey(points []domain.Coordinate) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = p.Key()
	}
	return strings.Join(parts, "|")
}

func (g *GoogleMatrixClient) fetchBlocks(
	ctx context.Context,
	points []domain.Coordinate,
) ([][]ports.MatrixElement, error) {
	n := len(points)
	out := make([][]ports.MatrixElement, n)
	for i := range out {
		out[i] = make([]ports.MatrixElement, n)
	}

	for oStart := 0; oStart < n; oStart += g.blockSize {
		oEnd := min(oStart+g.blockSize, n)

		for dStart := 0; dStart < n; dStart += g.blockSize {
			dEnd := min(dStart+g.blockSize, n)

			block, err := g.fetchBlock(ctx, points[oStart:oEnd], points[dStart:dEnd])
			if err != nil {
				return nil, fmt.Errorf("block origins[%d:%d] destinations[%d:%d]: %w", oStart, oEnd, dStart, dEnd, err)
			}

			for i, row := range block {
				copy(out[oStart+i][dStart:dEnd], row)
			}
		}
	}

	return out, nil
}

func joinCoordinates(points []domain.Coordinate) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = p.String()
	}
	return strings.Join(parts, "|")
}

// fetchBlock retrieves one origins × destinations block.
func (g *GoogleMatrixClient) fetchBlock(
	ctx context.Context,
	origins []domain.Coordinate,
	destinations []domain.Coordinate,
) ([][]ports.MatrixElement, error) {
	params := url.Values{}
	params.Set("origins", joinCoordinates(origins))
	params.Set("destinations", joinCoordinates(destinations))
	params.Set("mode", g.mode)
	params.Set("units", "metric")
	params.Set("departure_time", "now")
	params.Set("key", g.apiKey)

	endpoint := g.baseURL + distanceMatrixEndpoint + "?" + params.Encode()

	resp, err := g.doWithRetry(ctx, func() (*http.Request, error) {
		return g.newRequest(ctx, endpoint)
	})
	if err != nil {
		return nil, fmt.Errorf("matrix request failed: %w", err)
	}
	defer resp.Body.Close()

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decode matrix response: %w", err)
	}

	if mr.Status != ports.ElementStatusOK {
		return nil, fmt.Errorf("%w: %s %s", ErrMatrixUnavailable, mr.Status, mr.ErrorMessage)
	}

	if len(mr.Rows) != len(origins) {
		return nil, fmt.Errorf("expected %d rows; got %d", len(origins), len(mr.Rows))
	}

	out := make([][]ports.MatrixElement, len(origins))
	for i, row := range mr.Rows {
		if len(row.Elements) != len(destinations) {
			return nil, fmt.Errorf(
				"row %d length does not match destinations: elements=%d destinations=%d",
				i, len(row.Elements), len(destinations),
			)
		}

		out[i] = make([]ports.MatrixElement, len(destinations))
		for j, e := range row.Elements {
			out[i][j] = convertElement(e)
		}
	}

	return out, nil
}

func convertElement(e matrixElement) ports.MatrixElement {
	el := ports.MatrixElement{Status: e.Status}
	if e.Status != ports.ElementStatusOK {
		return el
	}

	// A nominally OK element without metrics cannot be used.
	if e.Distance == nil || e.Duration == nil || e.Distance.Value < 0 || e.Duration.Value < 0 {
		el.Status = "INVALID_ELEMENT"
		return el
	}

	el.DistanceMeters = int(e.Distance.Value + 0.5)
	el.DurationSeconds = int(e.Duration.Value + 0.5)
	if e.DurationInTraffic != nil && e.DurationInTraffic.Value > 0 {
		el.TrafficDurationSeconds = int(e.DurationInTraffic.Value + 0.5)
	}

	return el
}
