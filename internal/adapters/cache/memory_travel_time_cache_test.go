package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
	"visit-route-service/internal/domain"

	"github.com/stretchr/testify/require"
)

var (
	colombo = domain.Coordinate{Lat: 6.9271, Lng: 79.8612}
	pettah  = domain.Coordinate{Lat: 6.9147, Lng: 79.8728}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func TestMemoryCacheGetPut(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryTravelTimeCache(time.Hour)

	_, ok, err := c.Get(ctx, colombo, pettah)
	require.NoError(t, err)
	require.False(t, ok)

	leg := domain.TravelLeg{FromID: "a", ToID: "b", DistanceMeters: 2100, TravelSeconds: 420, Source: domain.SourceAPI}
	require.NoError(t, c.Put(ctx, colombo, pettah, leg))

	got, ok, err := c.Get(ctx, colombo, pettah)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2100, got.DistanceMeters)
	require.Equal(t, 420, got.TravelSeconds)
	require.Equal(t, domain.SourceCache, got.Source)

	// Keys are directional.
	_, ok, err = c.Get(ctx, pettah, colombo)
	require.NoError(t, err)
	require.False(t, ok)

	stats := c.Stats()
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(2), stats.Misses)
	require.Equal(t, 1, stats.Entries)
}

func TestMemoryCacheReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryTravelTimeCache(time.Hour)
	require.NoError(t, c.Put(ctx, colombo, pettah, domain.TravelLeg{DistanceMeters: 100, TravelSeconds: 10}))

	got, ok, _ := c.Get(ctx, colombo, pettah)
	require.True(t, ok)
	got.DistanceMeters = 999

	again, ok, _ := c.Get(ctx, colombo, pettah)
	require.True(t, ok)
	require.Equal(t, 100, again.DistanceMeters)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewMemoryTravelTimeCache(time.Hour, WithClock(clock.Now))

	require.NoError(t, c.Put(ctx, colombo, pettah, domain.TravelLeg{DistanceMeters: 100, TravelSeconds: 10}))

	clock.Advance(59 * time.Minute)
	_, ok, _ := c.Get(ctx, colombo, pettah)
	require.True(t, ok)

	// Stale exactly at the TTL boundary.
	clock.Advance(time.Minute)
	_, ok, _ = c.Get(ctx, colombo, pettah)
	require.False(t, ok)
	require.Equal(t, 0, c.Len(), "stale entry should be evicted lazily")
}

func TestMemoryCacheRefreshOnPut(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewMemoryTravelTimeCache(time.Hour, WithClock(clock.Now))

	require.NoError(t, c.Put(ctx, colombo, pettah, domain.TravelLeg{DistanceMeters: 100}))
	clock.Advance(50 * time.Minute)
	require.NoError(t, c.Put(ctx, colombo, pettah, domain.TravelLeg{DistanceMeters: 120}))
	clock.Advance(50 * time.Minute)

	got, ok, _ := c.Get(ctx, colombo, pettah)
	require.True(t, ok)
	require.Equal(t, 120, got.DistanceMeters)
}

func TestMemoryCacheSweepExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewMemoryTravelTimeCache(time.Hour, WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		to := domain.Coordinate{Lat: 7 + float64(i)*0.01, Lng: 80}
		require.NoError(t, c.Put(ctx, colombo, to, domain.TravelLeg{DistanceMeters: i}))
	}
	clock.Advance(2 * time.Hour)
	require.NoError(t, c.Put(ctx, colombo, pettah, domain.TravelLeg{DistanceMeters: 1}))

	removed, err := c.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 10, removed)
	require.Equal(t, 1, c.Len())
	require.Equal(t, int64(10), c.Stats().Evictions)
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryTravelTimeCache(time.Hour)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				to := domain.Coordinate{Lat: 7 + float64(i%20)*0.01, Lng: 80}
				leg := domain.TravelLeg{DistanceMeters: 1000 + i%20, TravelSeconds: 60 + i%20}
				_ = c.Put(ctx, colombo, to, leg)

				got, ok, err := c.Get(ctx, colombo, to)
				if err != nil {
					t.Errorf("worker %d: %v", w, err)
					return
				}
				// A racing write for the same key carries identical values.
				if ok && (got.DistanceMeters != 1000+i%20 || got.TravelSeconds != 60+i%20) {
					t.Errorf("worker %d: torn read %+v", w, got)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, 20, c.Len(), fmt.Sprintf("stats=%+v", c.Stats()))
}
