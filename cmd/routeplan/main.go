package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"visit-route-service/internal/api"
	"visit-route-service/internal/app"
	"visit-route-service/internal/config"
	"visit-route-service/internal/platform/obs"
	"visit-route-service/internal/services"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// main is the application composition root.
// It reads a plan request as JSON, plans the route and prints the result as JSON.
func main() {
	var (
		configPath = flag.String("config", config.Get("CONFIG_PATH", "."), "config path containing app.env")
		inputPath  = flag.String("in", "-", "plan request file, - for stdin")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found (using environment variables)")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		exitErr(err)
	}
	obs.SetupLogger(cfg.Environment, cfg.LogLevel)

	input, err := readInput(*inputPath)
	if err != nil {
		exitErr(err)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		exitErr(err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}()

	if err := a.Start(ctx); err != nil {
		_ = a.Close()
		exitErr(err)
	}

	var opts []services.PlanOption
	if input.Start != nil {
		opts = append(opts, services.WithStartLocation(*input.Start))
	}

	route := a.Planner.PlanVisits(ctx, input.Visits, input.WorkStart, input.WorkEnd, opts...)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(api.NewPlanResponse(route)); err != nil {
		exitErr(fmt.Errorf("encode route: %w", err))
	}
}

func readInput(path string) (api.PlanInput, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return api.PlanInput{}, fmt.Errorf("open plan request %q: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	req, err := api.DecodePlanRequest(r)
	if err != nil {
		return api.PlanInput{}, err
	}

	in, err := api.ToPlanInput(req)
	if err != nil {
		return api.PlanInput{}, fmt.Errorf("plan request: %w", err)
	}
	return in, nil
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
