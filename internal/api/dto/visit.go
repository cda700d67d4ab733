package dto

type LocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type VisitRequest struct {
	ID             string  `json:"id"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Earliest       string  `json:"earliest,omitempty"`
	Latest         string  `json:"latest,omitempty"`
	ServiceMinutes int     `json:"service_minutes,omitempty"`
	DisplayName    string  `json:"display_name,omitempty"`
}
