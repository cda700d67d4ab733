package app

import (
	"context"
	"fmt"
	"time"
	"visit-route-service/internal/ports"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Sweeper periodically drops expired travel legs so a long-running process
// keeps its cache bounded.
type Sweeper struct {
	cron     *cron.Cron
	cache    ports.TravelTimeCache
	schedule string
}

func NewSweeper(cache ports.TravelTimeCache, schedule string) *Sweeper {
	return &Sweeper{
		cron:     cron.New(),
		cache:    cache,
		schedule: schedule,
	}
}

// Start registers the sweep on the schedule and starts the scheduler.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("start sweeper: schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	log.Info().Str("schedule", s.schedule).Msg("cache sweeper started")
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("cache sweeper stopped")
}

// Sweep runs one pass and reports how many entries were removed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	removed, err := s.cache.SweepExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to sweep travel time cache")
		return 0
	}

	log.Debug().Int("removed", removed).Msg("travel time cache swept")
	return removed
}
