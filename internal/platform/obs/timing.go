package obs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const PlanIDKey ctxKey = "plan_id"

// WithPlanID tags ctx with a fresh plan id unless one is already present.
func WithPlanID(ctx context.Context) (context.Context, string) {
	if id := PlanID(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return context.WithValue(ctx, PlanIDKey, id), id
}

func PlanID(ctx context.Context) string {
	id, _ := ctx.Value(PlanIDKey).(string)
	return id
}

func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	planID := PlanID(ctx)

	return func(errp *error) {
		dur := time.Since(start)

		if errp != nil && *errp != nil {
			log.Warn().
				Str("plan_id", planID).
				Str("op", name).
				Int64("dur_ms", dur.Milliseconds()).
				Err(*errp).
				Msg("operation failed")
			return
		}
		log.Debug().
			Str("plan_id", planID).
			Str("op", name).
			Int64("dur_ms", dur.Milliseconds()).
			Msg("operation done")
	}
}
