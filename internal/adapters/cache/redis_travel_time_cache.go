package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"visit-route-service/internal/domain"
	"visit-route-service/internal/ports"

	"github.com/redis/go-redis/v9"
)

// LegKeyPrefix namespaces travel legs in a shared Redis.
const LegKeyPrefix = "visitroute:leg:"

type redisLeg struct {
	DistanceMeters int       `json:"distance_meters"`
	TravelSeconds  int       `json:"travel_seconds"`
	ComputedAt     time.Time `json:"computed_at"`
}

// RedisTravelTimeCache shares looked-up legs between planner processes.
// Keys expire natively after the TTL; the stored computation time is also
// checked on read so a stale value is never served.
type RedisTravelTimeCache struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

var _ ports.TravelTimeCache = (*RedisTravelTimeCache)(nil)

func NewRedisTravelTimeCache(client *redis.Client, ttl time.Duration) *RedisTravelTimeCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisTravelTimeCache{client: client, ttl: ttl, now: time.Now}
}

// DialRedis creates a client and verifies the connection.
func DialRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection to %q failed: %w", addr, err)
	}

	return client, nil
}

func legKey(from, to domain.Coordinate) string {
	return LegKeyPrefix + domain.PairKey(from, to)
}

func (r *RedisTravelTimeCache) Get(
	ctx context.Context,
	from, to domain.Coordinate,
) (domain.TravelLeg, bool, error) {
	if r.client == nil {
		return domain.TravelLeg{}, false, errors.New("travel time cache: redis client is nil")
	}

	data, err := r.client.Get(ctx, legKey(from, to)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.TravelLeg{}, false, nil
	}
	if err != nil {
		return domain.TravelLeg{}, false, fmt.Errorf("get travel leg: %w", err)
	}

	var stored redisLeg
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.TravelLeg{}, false, fmt.Errorf("get travel leg: decode: %w", err)
	}

	if r.now().Sub(stored.ComputedAt) >= r.ttl {
		return domain.TravelLeg{}, false, nil
	}

	return domain.TravelLeg{
		DistanceMeters: stored.DistanceMeters,
		TravelSeconds:  stored.TravelSeconds,
		Source:         domain.SourceCache,
	}, true, nil
}

func (r *RedisTravelTimeCache) Put(
	ctx context.Context,
	from, to domain.Coordinate,
	leg domain.TravelLeg,
) error {
	if r.client == nil {
		return errors.New("travel time cache: redis client is nil")
	}

	payload, err := json.Marshal(redisLeg{
		DistanceMeters: leg.DistanceMeters,
		TravelSeconds:  leg.TravelSeconds,
		ComputedAt:     r.now(),
	})
	if err != nil {
		return fmt.Errorf("put travel leg: encode: %w", err)
	}

	if err := r.client.Set(ctx, legKey(from, to), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("put travel leg: %w", err)
	}

	return nil
}

// SweepExpired is a no-op: Redis expires keys on its own.
func (r *RedisTravelTimeCache) SweepExpired(context.Context) (int, error) {
	return 0, nil
}
