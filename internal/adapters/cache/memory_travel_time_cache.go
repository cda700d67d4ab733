package cache

import (
	"context"
	"sync"
	"time"
	"visit-route-service/internal/domain"
	"visit-route-service/internal/platform/obs"
	"visit-route-service/internal/ports"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/atomic"
)

// DefaultTTL bounds how long a looked-up leg may be served.
const DefaultTTL = time.Hour

const shardCount = 32

type cacheEntry struct {
	leg        domain.TravelLeg
	computedAt time.Time
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// CacheStats reports cache effectiveness counters.
type CacheStats struct {
	Entries   int
	Hits      int64
	Misses    int64
	Evictions int64
}

// MemoryTravelTimeCache is a process-wide, TTL-bounded travel leg store.
//
// The table is split into shards selected by key hash, each guarded by its
// own reader/writer lock, so concurrent plans contend only on the same shard.
// Expired entries are evicted lazily on read and on SweepExpired.
type MemoryTravelTimeCache struct {
	ttl    time.Duration
	now    func() time.Time
	shards [shardCount]*shard

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

var _ ports.TravelTimeCache = (*MemoryTravelTimeCache)(nil)

type MemoryOption func(*MemoryTravelTimeCache)

// WithClock replaces time.Now, mainly for tests that need to force expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryTravelTimeCache) { c.now = now }
}

func NewMemoryTravelTimeCache(ttl time.Duration, opts ...MemoryOption) *MemoryTravelTimeCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &MemoryTravelTimeCache{ttl: ttl, now: time.Now}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[string]cacheEntry)}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MemoryTravelTimeCache) shardFor(key string) *shard {
	return c.shards[xxhash.Sum64String(key)%shardCount]
}

func (c *MemoryTravelTimeCache) stale(e cacheEntry, now time.Time) bool {
	return now.Sub(e.computedAt) >= c.ttl
}

// Get returns a copy of the non-stale leg for from -> to, tagged as a cache hit.
func (c *MemoryTravelTimeCache) Get(
	_ context.Context,
	from, to domain.Coordinate,
) (domain.TravelLeg, bool, error) {
	key := domain.PairKey(from, to)
	s := c.shardFor(key)
	now := c.now()

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		c.misses.Inc()
		return domain.TravelLeg{}, false, nil
	}

	if c.stale(e, now) {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent Put may have refreshed it.
		if cur, ok := s.entries[key]; ok && c.stale(cur, now) {
			delete(s.entries, key)
			c.evictions.Inc()
			obs.CacheEvictionsTotal.Inc()
		}
		s.mu.Unlock()

		c.misses.Inc()
		return domain.TravelLeg{}, false, nil
	}

	c.hits.Inc()
	leg := e.leg
	leg.Source = domain.SourceCache
	return leg, true, nil
}

// Put stores or refreshes the leg for from -> to.
func (c *MemoryTravelTimeCache) Put(
	_ context.Context,
	from, to domain.Coordinate,
	leg domain.TravelLeg,
) error {
	key := domain.PairKey(from, to)
	s := c.shardFor(key)
	e := cacheEntry{leg: leg, computedAt: c.now()}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()

	return nil
}

// SweepExpired removes every stale entry and returns the number removed.
func (c *MemoryTravelTimeCache) SweepExpired(ctx context.Context) (_ int, err error) {
	defer obs.Time(ctx, "cache.SweepExpired")(&err)

	now := c.now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.entries {
			if c.stale(e, now) {
				delete(s.entries, k)
				removed++
			}
		}
		s.mu.Unlock()
	}

	c.evictions.Add(int64(removed))
	obs.CacheEvictionsTotal.Add(float64(removed))
	return removed, nil
}

// Len returns the number of stored entries, stale ones included.
func (c *MemoryTravelTimeCache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

func (c *MemoryTravelTimeCache) Stats() CacheStats {
	return CacheStats{
		Entries:   c.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
