package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"visit-route-service/internal/api/dto"
	"visit-route-service/internal/domain"
)

const (
	DefaultWorkStart = "09:00"
	DefaultWorkEnd   = "17:00"
)

// PlanInput is a decoded plan request in domain terms.
type PlanInput struct {
	Visits    []domain.Visit
	WorkStart int
	WorkEnd   int
	Start     *domain.Coordinate
}

// DecodePlanRequest reads exactly one JSON plan request from r.
func DecodePlanRequest(r io.Reader) (dto.PlanRequest, error) {
	var req dto.PlanRequest

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		return dto.PlanRequest{}, fmt.Errorf("decode plan request: invalid json: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return dto.PlanRequest{}, errors.New("decode plan request: input must contain only one JSON object")
	}

	return req, nil
}

// ToPlanInput maps a request onto domain values.
// Only unreadable input is rejected: coordinates and windows that are present
// but unusable are passed through for the planner to degrade.
func ToPlanInput(req dto.PlanRequest) (PlanInput, error) {
	workStart, err := clockOr(req.WorkStart, DefaultWorkStart)
	if err != nil {
		return PlanInput{}, fmt.Errorf("work_start: %w", err)
	}
	workEnd, err := clockOr(req.WorkEnd, DefaultWorkEnd)
	if err != nil {
		return PlanInput{}, fmt.Errorf("work_end: %w", err)
	}

	in := PlanInput{
		Visits:    make([]domain.Visit, 0, len(req.Visits)),
		WorkStart: workStart,
		WorkEnd:   workEnd,
	}
	if req.Start != nil {
		in.Start = &domain.Coordinate{Lat: req.Start.Latitude, Lng: req.Start.Longitude}
	}

	seen := make(map[string]struct{}, len(req.Visits))
	for i, v := range req.Visits {
		id := strings.TrimSpace(v.ID)
		if id == "" {
			return PlanInput{}, fmt.Errorf("visits[%d]: id is required", i)
		}
		if _, dup := seen[id]; dup {
			return PlanInput{}, fmt.Errorf("visits[%d]: duplicate id %q", i, id)
		}
		seen[id] = struct{}{}

		visit := domain.Visit{
			ID:             id,
			Coordinate:     domain.Coordinate{Lat: v.Latitude, Lng: v.Longitude},
			ServiceMinutes: v.ServiceMinutes,
			DisplayName:    v.DisplayName,
		}

		if v.Earliest != "" || v.Latest != "" {
			if v.Earliest == "" || v.Latest == "" {
				return PlanInput{}, fmt.Errorf("visits[%d]: earliest and latest must be given together", i)
			}
			earliest, err := domain.ParseClock(v.Earliest)
			if err != nil {
				return PlanInput{}, fmt.Errorf("visits[%d]: %w", i, err)
			}
			latest, err := domain.ParseClock(v.Latest)
			if err != nil {
				return PlanInput{}, fmt.Errorf("visits[%d]: %w", i, err)
			}
			visit.Window = &domain.TimeWindow{Earliest: earliest, Latest: latest}
		}

		in.Visits = append(in.Visits, visit)
	}

	return in, nil
}

// NewPlanResponse renders a route for output.
func NewPlanResponse(route *domain.Route) dto.PlanResponse {
	res := dto.PlanResponse{
		Strategy:             string(route.Strategy),
		Optimized:            route.Optimized,
		FallbackReason:       route.FallbackReason,
		TotalDistanceMeters:  route.TotalDistanceMeters,
		TotalTravelSeconds:   route.TotalTravelSeconds,
		TotalDurationSeconds: int(route.TotalDuration / time.Second),
		Stops:                make([]dto.PlanStopResponse, 0, len(route.Stops)),
	}

	for _, s := range route.Stops {
		res.Stops = append(res.Stops, dto.PlanStopResponse{
			VisitID:                  s.Visit.ID,
			DisplayName:              s.Visit.DisplayName,
			ArriveAt:                 clock(s.ArriveAt),
			ServiceStartAt:           clock(s.ServiceStartAt),
			DepartAt:                 clock(s.DepartAt),
			LegDistanceMeters:        s.Leg.DistanceMeters,
			LegTravelSeconds:         s.Leg.TravelSeconds,
			LegSource:                string(s.Leg.Source),
			CumulativeDistanceMeters: s.CumulativeDistanceMeters,
			WithinWindow:             s.WithinWindow,
		})
	}

	return res
}

func clockOr(s, fallback string) (int, error) {
	if strings.TrimSpace(s) == "" {
		s = fallback
	}
	return domain.ParseClock(s)
}

// clock renders an offset since midnight as "HH:MM", rounding seconds down.
func clock(d time.Duration) string {
	return domain.FormatClock(int(d / time.Minute))
}
