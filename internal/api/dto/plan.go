package dto

// Clock fields are "HH:MM" in the working day's local time.
type PlanRequest struct {
	WorkStart string           `json:"work_start"`
	WorkEnd   string           `json:"work_end"`
	Start     *LocationRequest `json:"start,omitempty"`
	Visits    []VisitRequest   `json:"visits"`
}

type PlanStopResponse struct {
	VisitID                  string `json:"visit_id"`
	DisplayName              string `json:"display_name,omitempty"`
	ArriveAt                 string `json:"arrive_at"`
	ServiceStartAt           string `json:"service_start_at"`
	DepartAt                 string `json:"depart_at"`
	LegDistanceMeters        int    `json:"leg_distance_meters"`
	LegTravelSeconds         int    `json:"leg_travel_seconds"`
	LegSource                string `json:"leg_source"`
	CumulativeDistanceMeters int    `json:"cumulative_distance_meters"`
	WithinWindow             bool   `json:"within_window"`
}

type PlanResponse struct {
	Strategy             string             `json:"strategy"`
	Optimized            bool               `json:"optimized"`
	FallbackReason       string             `json:"fallback_reason,omitempty"`
	TotalDistanceMeters  int                `json:"total_distance_meters"`
	TotalTravelSeconds   int                `json:"total_travel_seconds"`
	TotalDurationSeconds int                `json:"total_duration_seconds"`
	Stops                []PlanStopResponse `json:"stops"`
}
