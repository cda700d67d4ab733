package distance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"visit-route-service/internal/domain"
	"visit-route-service/internal/ports"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, server *httptest.Server, opts ...ClientOption) *GoogleMatrixClient {
	t.Helper()

	base := []ClientOption{
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
		WithRateLimit(0),
		WithRetry(3, time.Millisecond),
	}
	client, err := NewGoogleMatrixClient("test-key", append(base, opts...)...)
	require.NoError(t, err)
	return client
}

func parseCoordinates(t *testing.T, s string) []domain.Coordinate {
	t.Helper()

	var out []domain.Coordinate
	for _, part := range strings.Split(s, "|") {
		lat, lng, ok := strings.Cut(part, ",")
		require.True(t, ok, "bad coordinate %q", part)
		la, err := strconv.ParseFloat(lat, 64)
		require.NoError(t, err)
		ln, err := strconv.ParseFloat(lng, 64)
		require.NoError(t, err)
		out = append(out, domain.Coordinate{Lat: la, Lng: ln})
	}
	return out
}

// latDeltaHandler answers every element with distance = |Δlat| * 1e5 meters.
func latDeltaHandler(t *testing.T, requests *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		origins := parseCoordinates(t, r.URL.Query().Get("origins"))
		dests := parseCoordinates(t, r.URL.Query().Get("destinations"))

		rows := make([]map[string]any, len(origins))
		for i, o := range origins {
			elements := make([]map[string]any, len(dests))
			for j, d := range dests {
				meters := math.Round(math.Abs(o.Lat-d.Lat) * 1e5)
				elements[j] = map[string]any{
					"status":   "OK",
					"distance": map[string]any{"value": meters},
					"duration": map[string]any{"value": meters / 10},
				}
			}
			rows[i] = map[string]any{"elements": elements}
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"status": "OK", "rows": rows})
	}
}

func TestFetchMatrixSingleBlock(t *testing.T) {
	var gotQuery atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		fmt.Fprint(w, `{
			"status": "OK",
			"rows": [
				{"elements": [
					{"status": "OK", "distance": {"value": 0}, "duration": {"value": 0}},
					{"status": "OK", "distance": {"value": 2104.4}, "duration": {"value": 400}, "duration_in_traffic": {"value": 520}}
				]},
				{"elements": [
					{"status": "OK", "distance": {"value": 1999.6}, "duration": {"value": 380}},
					{"status": "OK", "distance": {"value": 0}, "duration": {"value": 0}}
				]}
			]
		}`)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	points := []domain.Coordinate{{Lat: 6.9271, Lng: 79.8612}, {Lat: 6.9147, Lng: 79.8728}}

	grid, err := client.FetchMatrix(context.Background(), points)
	require.NoError(t, err)
	require.Len(t, grid, 2)

	require.Equal(t, 2104, grid[0][1].DistanceMeters)
	require.Equal(t, 400, grid[0][1].DurationSeconds)
	require.Equal(t, 520, grid[0][1].TravelSeconds(), "traffic duration preferred")
	require.Equal(t, 2000, grid[1][0].DistanceMeters)
	require.Equal(t, 380, grid[1][0].TravelSeconds())

	q := gotQuery.Load().(url.Values)
	require.Equal(t, []string{"test-key"}, q["key"])
	require.Equal(t, []string{"driving"}, q["mode"])
	require.Equal(t, []string{"6.927100,79.861200|6.914700,79.872800"}, q["origins"])
}

func TestFetchMatrixElementStatusPassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"status": "OK",
			"rows": [
				{"elements": [{"status": "OK", "distance": {"value": 0}, "duration": {"value": 0}}, {"status": "ZERO_RESULTS"}]},
				{"elements": [{"status": "OK"}, {"status": "OK", "distance": {"value": 0}, "duration": {"value": 0}}]}
			]
		}`)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	grid, err := client.FetchMatrix(context.Background(), []domain.Coordinate{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}})
	require.NoError(t, err)

	require.Equal(t, "ZERO_RESULTS", grid[0][1].Status)
	require.Equal(t, "INVALID_ELEMENT", grid[1][0].Status, "OK without metrics is unusable")
}

func TestFetchMatrixTopLevelStatusFailsCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "REQUEST_DENIED", "error_message": "The provided API key is invalid.", "rows": []}`)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.FetchMatrix(context.Background(), []domain.Coordinate{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMatrixUnavailable))
	require.Contains(t, err.Error(), "REQUEST_DENIED")
}

func TestFetchMatrixRetriesTransientFailures(t *testing.T) {
	var requests atomic.Int32
	ok := latDeltaHandler(t, &requests)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Load() == 0 {
			requests.Add(1)
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		ok(w, r)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	grid, err := client.FetchMatrix(context.Background(), []domain.Coordinate{{Lat: 7, Lng: 80}, {Lat: 7.01, Lng: 80}})
	require.NoError(t, err)
	require.Equal(t, 1000, grid[0][1].DistanceMeters)
	require.Equal(t, int32(2), requests.Load())
}

func TestFetchMatrixDoesNotRetryClientErrors(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.FetchMatrix(context.Background(), []domain.Coordinate{{Lat: 7, Lng: 80}, {Lat: 7.01, Lng: 80}})
	require.Error(t, err)

	var he *HTTPStatusError
	require.True(t, errors.As(err, &he))
	require.Equal(t, http.StatusBadRequest, he.Code)
	require.Equal(t, int32(1), requests.Load())
}

func TestFetchMatrixStopsAfterMaxAttempts(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "overloaded", http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.FetchMatrix(context.Background(), []domain.Coordinate{{Lat: 7, Lng: 80}, {Lat: 7.01, Lng: 80}})

	var he *HTTPStatusError
	require.ErrorAs(t, err, &he)
	require.Equal(t, http.StatusBadGateway, he.Code)
	require.Equal(t, int32(3), requests.Load())
}

func TestFetchMatrixSplitsIntoBlocks(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(latDeltaHandler(t, &requests))
	defer server.Close()

	client := newTestClient(t, server, WithBlockSize(5))

	points := make([]domain.Coordinate, 12)
	for i := range points {
		points[i] = domain.Coordinate{Lat: 7 + float64(i)*0.01, Lng: 80}
	}

	grid, err := client.FetchMatrix(context.Background(), points)
	require.NoError(t, err)
	require.Equal(t, int32(9), requests.Load(), "3 origin blocks x 3 destination blocks")

	for i := range points {
		for j := range points {
			want := i - j
			if want < 0 {
				want = -want
			}
			require.Equal(t, want*1000, grid[i][j].DistanceMeters, "cell [%d][%d]", i, j)
			require.Equal(t, ports.ElementStatusOK, grid[i][j].Status)
		}
	}
}

func TestFetchMatrixRespectsContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := newTestClient(t, server, WithFlightTimeout(100*time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.FetchMatrix(ctx, []domain.Coordinate{{Lat: 7, Lng: 80}, {Lat: 7.01, Lng: 80}})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
}

func TestFetchMatrixSharedLookupOutlivesFirstCaller(t *testing.T) {
	var requests atomic.Int32
	answer := latDeltaHandler(t, &requests)
	started := make(chan struct{})
	release := make(chan struct{})

	var once atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		<-release
		answer(w, r)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	points := []domain.Coordinate{{Lat: 7, Lng: 80}, {Lat: 7.01, Lng: 80}}

	short, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	firstErr := make(chan error, 1)
	go func() {
		_, err := client.FetchMatrix(short, points)
		firstErr <- err
	}()
	<-started

	type result struct {
		grid [][]ports.MatrixElement
		err  error
	}
	second := make(chan result, 1)
	go func() {
		grid, err := client.FetchMatrix(context.Background(), points)
		second <- result{grid, err}
	}()

	require.ErrorIs(t, <-firstErr, context.DeadlineExceeded)
	close(release)

	res := <-second
	require.NoError(t, res.err)
	require.Equal(t, 1000, res.grid[0][1].DistanceMeters)
	require.Equal(t, int32(1), requests.Load(), "the second caller joins the in-flight lookup")
}

func TestFetchMatrixEmpty(t *testing.T) {
	client, err := NewGoogleMatrixClient("key", WithBaseURL("http://not-called"))
	require.NoError(t, err)

	grid, err := client.FetchMatrix(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, grid)
}

func TestNewGoogleMatrixClientRequiresKey(t *testing.T) {
	_, err := NewGoogleMatrixClient("  ")
	require.Error(t, err)
}
