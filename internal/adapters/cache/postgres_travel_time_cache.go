package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"visit-route-service/internal/domain"
	"visit-route-service/internal/platform/obs"
	"visit-route-service/internal/ports"
)

// PostgresTravelTimeCache keeps looked-up legs in a travel_leg_cache table so
// they survive restarts and are shared by every planner on the database.
// Rows older than the TTL are never served; SweepExpired deletes them.
type PostgresTravelTimeCache struct {
	DB  *sql.DB
	ttl time.Duration
	now func() time.Time
}

var _ ports.TravelTimeCache = (*PostgresTravelTimeCache)(nil)

func NewPostgresTravelTimeCache(db *sql.DB, ttl time.Duration) *PostgresTravelTimeCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PostgresTravelTimeCache{DB: db, ttl: ttl, now: time.Now}
}

// InitSchema creates the cache table and its sweep index when missing.
func (p *PostgresTravelTimeCache) InitSchema(ctx context.Context) (err error) {
	defer obs.Time(ctx, "cache.postgres.InitSchema")(&err)

	if p.DB == nil {
		return errors.New("init travel leg cache: db is nil")
	}

	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init travel leg cache: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createTable := `
	CREATE TABLE IF NOT EXISTS travel_leg_cache (
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		distance_meters INTEGER NOT NULL,
		travel_seconds INTEGER NOT NULL,
		computed_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (origin, destination)
	);
	`
	createIndex := `
	CREATE INDEX IF NOT EXISTS idx_travel_leg_cache_computed_at
	ON travel_leg_cache(computed_at);
	`

	if _, err := tx.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("init travel leg cache: create table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, createIndex); err != nil {
		return fmt.Errorf("init travel leg cache: create index: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init travel leg cache: commit: %w", err)
	}
	return nil
}

func (p *PostgresTravelTimeCache) Get(
	ctx context.Context,
	from, to domain.Coordinate,
) (domain.TravelLeg, bool, error) {
	if p.DB == nil {
		return domain.TravelLeg{}, false, errors.New("travel time cache: db is nil")
	}

	q := `
	SELECT distance_meters, travel_seconds
	FROM travel_leg_cache
	WHERE origin = $1
		AND destination = $2
		AND computed_at > $3;
	`

	var meters, seconds int
	err := p.DB.QueryRowContext(ctx, q, from.Key(), to.Key(), p.now().Add(-p.ttl)).Scan(&meters, &seconds)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TravelLeg{}, false, nil
	}
	if err != nil {
		return domain.TravelLeg{}, false, fmt.Errorf("get travel leg: %w", err)
	}

	return domain.TravelLeg{
		DistanceMeters: meters,
		TravelSeconds:  seconds,
		Source:         domain.SourceCache,
	}, true, nil
}

func (p *PostgresTravelTimeCache) Put(
	ctx context.Context,
	from, to domain.Coordinate,
	leg domain.TravelLeg,
) error {
	if p.DB == nil {
		return errors.New("travel time cache: db is nil")
	}

	q := `
	INSERT INTO travel_leg_cache (origin, destination, distance_meters, travel_seconds, computed_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (origin, destination) DO UPDATE
	SET distance_meters = EXCLUDED.distance_meters,
		travel_seconds = EXCLUDED.travel_seconds,
		computed_at = EXCLUDED.computed_at;
	`

	if _, err := p.DB.ExecContext(ctx, q, from.Key(), to.Key(), leg.DistanceMeters, leg.TravelSeconds, p.now()); err != nil {
		return fmt.Errorf("put travel leg: %w", err)
	}
	return nil
}

// SweepExpired deletes every row computed at least one TTL ago.
func (p *PostgresTravelTimeCache) SweepExpired(ctx context.Context) (_ int, err error) {
	defer obs.Time(ctx, "cache.postgres.SweepExpired")(&err)

	if p.DB == nil {
		return 0, errors.New("sweep travel leg cache: db is nil")
	}

	res, err := p.DB.ExecContext(ctx, `DELETE FROM travel_leg_cache WHERE computed_at <= $1;`, p.now().Add(-p.ttl))
	if err != nil {
		return 0, fmt.Errorf("sweep travel leg cache: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep travel leg cache: rows affected: %w", err)
	}

	obs.CacheEvictionsTotal.Add(float64(n))
	return int(n), nil
}
