package domain

import (
	"time"

	"github.com/wayline/backend/pkg/geo"
)

// SessionState is the navigation session lifecycle state.
type SessionState string

const (
	StateIdle         SessionState = "idle"
	StateRoutePreview SessionState = "route_preview"
	StateNavigating   SessionState = "navigating"
	StateRerouting    SessionState = "rerouting"
	StateCompleted    SessionState = "completed"
	StateCancelled    SessionState = "cancelled"
)

// EventType identifies an engine-to-presentation event.
type EventType string

const (
	EventRouteSetUpdated EventType = "route_set_updated"
	EventStepAdvanced    EventType = "navigation_step_advanced"
	EventRerouteTrigger  EventType = "reroute_triggered"
	EventETAUpdated      EventType = "eta_distance_updated"
	EventHeatmapUpdated  EventType = "heatmap_updated"
	EventSearchResults   EventType = "search_results"
)

// NavigationEvent is one engine-produced event for the presentation layer.
// Only the fields relevant to the event type are populated.
type NavigationEvent struct {
	Type             EventType      `json:"type"`
	Timestamp        time.Time      `json:"timestamp"`
	Routes           []RankedRoute  `json:"routes,omitempty"`
	Alerts           []TrafficAlert `json:"alerts,omitempty"`
	StepIndex        int            `json:"step_index,omitempty"`
	Step             *RouteStep     `json:"step,omitempty"`
	Reason           string         `json:"reason,omitempty"`
	RemainingMeters  float64        `json:"remaining_meters,omitempty"`
	RemainingSeconds float64        `json:"remaining_seconds,omitempty"`
	Heatmap          *Heatmap       `json:"heatmap,omitempty"`
	Places           []NearbyPlace  `json:"places,omitempty"`
	Query            string         `json:"query,omitempty"`
}

// ProgressUpdate is the per-position-update report: where the session is
// on the active route and what happened since the last update.
type ProgressUpdate struct {
	State            SessionState      `json:"state"`
	CurrentStepIndex int               `json:"current_step_index"`
	CurrentStep      *RouteStep        `json:"current_step,omitempty"`
	DeviationMeters  float64           `json:"deviation_meters"`
	RemainingMeters  float64           `json:"remaining_meters"`
	RemainingSeconds float64           `json:"remaining_seconds"`
	BearingToNext    float64           `json:"bearing_to_next"`
	DistanceToNext   float64           `json:"distance_to_next"`
	Events           []NavigationEvent `json:"events,omitempty"`
}

// SessionSnapshot is a read-only view of session state for the API.
type SessionSnapshot struct {
	ID               string         `json:"id"`
	State            SessionState   `json:"state"`
	Destination      *geo.Point     `json:"destination,omitempty"`
	ActiveRoute      *Route         `json:"active_route,omitempty"`
	RankedRoutes     []RankedRoute  `json:"ranked_routes,omitempty"`
	Alerts           []TrafficAlert `json:"alerts,omitempty"`
	CurrentStepIndex int            `json:"current_step_index"`
	LastPosition     *geo.Point     `json:"last_position,omitempty"`
	LastRerouteAt    *time.Time     `json:"last_reroute_at,omitempty"`
}
