package domain

import "github.com/wayline/backend/pkg/geo"

// FallbackSpeedMPS is the assumed average driving speed (~50 km/h) used for
// duration estimates when no backend timing is available.
const FallbackSpeedMPS = 13.9

// RouteStep is one maneuver-level instruction within a route. Immutable
// after parsing.
type RouteStep struct {
	Instruction     string    `json:"instruction"`
	Maneuver        string    `json:"maneuver"`
	DistanceMeters  float64   `json:"distance_meters"`
	DistanceText    string    `json:"distance_text"`
	DurationSeconds float64   `json:"duration_seconds"`
	DurationText    string    `json:"duration_text"`
	EndLocation     geo.Point `json:"end_location"`
	Index           int       `json:"index"`
}

// Route is a single candidate path: dense geometry, turn-by-turn steps and
// aggregate totals. IsFallback marks synthetic straight-line routes built
// when the directions backend was unavailable, so callers can disclose the
// reduced accuracy.
type Route struct {
	Points          []geo.Point `json:"points"`
	Steps           []RouteStep `json:"steps"`
	DistanceMeters  float64     `json:"distance_meters"`
	DurationSeconds float64     `json:"duration_seconds"`
	Summary         string      `json:"summary"`
	IsFallback      bool        `json:"is_fallback"`
}

// AverageSpeedMPS returns the route's own average speed, or the generic
// fallback speed when the timing data is absent or degenerate.
func (r *Route) AverageSpeedMPS() float64 {
	if r.DistanceMeters <= 0 || r.DurationSeconds <= 0 {
		return FallbackSpeedMPS
	}
	return r.DistanceMeters / r.DurationSeconds
}

// RankedRoute pairs a route with its composite score and a human-readable
// justification for the ranking.
type RankedRoute struct {
	Route            Route   `json:"route"`
	Score            float64 `json:"score"`
	TrafficPenalty   float64 `json:"traffic_penalty"`
	EstimatedSeconds float64 `json:"estimated_seconds_with_traffic"`
	Justification    string  `json:"justification"`
}

// RoutesResponse wraps ranked routes with metadata
type RoutesResponse struct {
	Data    []RankedRoute `json:"data"`
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
}
