package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"visit-route-service/internal/adapters/cache"
	"visit-route-service/internal/adapters/distance"
	"visit-route-service/internal/config"
	"visit-route-service/internal/platform/db"
	"visit-route-service/internal/ports"
	"visit-route-service/internal/services"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// App is the composition root. It owns the process-wide travel time cache
// and wires it, the matrix client and the optimizer into one planner.
type App struct {
	Planner *services.RoutePlanner
	Cache   ports.TravelTimeCache

	sweeper *Sweeper
	redis   *redis.Client
	db      *sql.DB
}

// New builds the planner from configuration. An empty MATRIX_API_KEY yields
// a planner that estimates every leg.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{}

	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		client, err := cache.DialRedis(ctx, cfg.RedisAddress, cfg.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("new app: %w", err)
		}
		a.redis = client
		a.Cache = cache.NewRedisTravelTimeCache(client, cfg.CacheTTL)
	case config.CacheBackendPostgres:
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("new app: %w", err)
		}
		a.db = conn
		legs := cache.NewPostgresTravelTimeCache(conn, cfg.CacheTTL)
		if err := legs.InitSchema(ctx); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("new app: %w", err)
		}
		a.Cache = legs
	default:
		a.Cache = cache.NewMemoryTravelTimeCache(cfg.CacheTTL)
	}

	var client ports.MatrixClient
	if cfg.MatrixAPIKey != "" {
		google, err := distance.NewGoogleMatrixClient(
			cfg.MatrixAPIKey,
			distance.WithBaseURL(cfg.MatrixBaseURL),
			distance.WithTravelMode(cfg.MatrixTravelMode),
			distance.WithRateLimit(cfg.MatrixRateLimit),
			distance.WithFlightTimeout(cfg.MatrixTimeout),
		)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("new app: %w", err)
		}
		client = google
	} else {
		log.Warn().Msg("MATRIX_API_KEY not set, travel legs will be estimated")
	}

	provider := services.NewTravelMatrixProvider(
		a.Cache,
		client,
		services.WithLookupTimeout(cfg.MatrixTimeout),
	)
	optimizer := services.NewRouteOptimizer(services.OptimizerOptions{
		TimeLimit:     cfg.SolverTimeLimit,
		MaxIterations: cfg.SolverMaxIterations,
	})

	a.Planner = services.NewRoutePlanner(provider, optimizer)
	a.sweeper = NewSweeper(a.Cache, cfg.CacheSweepSchedule)

	log.Info().
		Str("cache_backend", cfg.CacheBackend).
		Bool("matrix_api", client != nil).
		Dur("cache_ttl", cfg.CacheTTL).
		Msg("route planner ready")

	return a, nil
}

// Start drops legs that expired while the process was down, then begins
// background cache maintenance on the configured schedule.
func (a *App) Start(ctx context.Context) error {
	a.sweeper.Sweep(ctx)
	return a.sweeper.Start()
}

// Close stops background work and releases connections.
func (a *App) Close() error {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}

	var errs []error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close app: redis: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close app: db: %w", err))
		}
	}
	return errors.Join(errs...)
}
