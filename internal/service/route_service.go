package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/wayline/backend/internal/domain"
	"github.com/wayline/backend/pkg/geo"
)

const (
	defaultDirectionsBaseURL = "https://maps.googleapis.com/maps/api"

	// fallbackInterpolatedPoints is the number of evenly spaced points
	// inserted between origin and destination on a synthetic route.
	fallbackInterpolatedPoints = 50
)

var markupPattern = regexp.MustCompile(`<[^>]*>`)

// RouteService fetches driveable routes from the directions backend and
// decodes them into domain routes. Every failure mode degrades to a
// synthetic straight-line route so the rest of the pipeline always has a
// path to work with.
type RouteService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewRouteService creates a new route service. baseURL may be empty to use
// the default backend endpoint.
func NewRouteService(apiKey, baseURL string) *RouteService {
	if baseURL == "" {
		baseURL = defaultDirectionsBaseURL
	}
	return &RouteService{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// directionsResponse mirrors the directions backend payload. Fields are
// validated at this boundary; anything that fails to decode drops only the
// item it belongs to.
type directionsResponse struct {
	Status string            `json:"status"`
	Routes []directionsRoute `json:"routes"`
}

type directionsRoute struct {
	Summary          string          `json:"summary"`
	Legs             []directionsLeg `json:"legs"`
	OverviewPolyline polylineDTO     `json:"overview_polyline"`
}

type directionsLeg struct {
	Distance          valueTextDTO     `json:"distance"`
	Duration          valueTextDTO     `json:"duration"`
	DurationInTraffic *valueTextDTO    `json:"duration_in_traffic,omitempty"`
	Steps             []directionsStep `json:"steps"`
}

type directionsStep struct {
	HTMLInstructions string       `json:"html_instructions"`
	Maneuver         string       `json:"maneuver"`
	Distance         valueTextDTO `json:"distance"`
	Duration         valueTextDTO `json:"duration"`
	EndLocation      latLngDTO    `json:"end_location"`
	Polyline         polylineDTO  `json:"polyline"`
}

type valueTextDTO struct {
	Value float64 `json:"value"`
	Text  string  `json:"text"`
}

type latLngDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type polylineDTO struct {
	Points string `json:"points"`
}

// FetchRoutes returns candidate routes from origin to destination, ordered
// as the backend returned them (first entry is primary). It never returns
// an error: transport failures, non-success statuses and undecodable
// payloads all degrade to a single fallback route, with the reason logged.
func (s *RouteService) FetchRoutes(ctx context.Context, origin, dest geo.Point, alternatives bool) []domain.Route {
	resp, err := s.requestDirections(ctx, origin, dest, alternatives, false)
	if err != nil {
		log.Printf("routes: backend unavailable, using fallback: %v", err)
		return []domain.Route{s.fallbackRoute(origin, dest)}
	}

	if resp.Status != "OK" {
		log.Printf("routes: backend status %q, using fallback", resp.Status)
		return []domain.Route{s.fallbackRoute(origin, dest)}
	}

	routes := make([]domain.Route, 0, len(resp.Routes))
	for i, dto := range resp.Routes {
		route, err := parseRoute(dto)
		if err != nil {
			log.Printf("routes: dropping alternative %d: %v", i, err)
			continue
		}
		routes = append(routes, route)
	}

	if len(routes) == 0 {
		log.Printf("routes: no decodable alternatives, using fallback")
		return []domain.Route{s.fallbackRoute(origin, dest)}
	}
	return routes
}

// ProbeTravelTime requests live-traffic timing for a short route and
// returns (live seconds, free-flow seconds). Used by the heatmap sampler;
// unlike FetchRoutes this surfaces errors so failed probes can be dropped.
func (s *RouteService) ProbeTravelTime(ctx context.Context, origin, dest geo.Point) (float64, float64, error) {
	resp, err := s.requestDirections(ctx, origin, dest, false, true)
	if err != nil {
		return 0, 0, err
	}
	if resp.Status != "OK" || len(resp.Routes) == 0 || len(resp.Routes[0].Legs) == 0 {
		return 0, 0, fmt.Errorf("routes: probe got status %q", resp.Status)
	}

	leg := resp.Routes[0].Legs[0]
	free := leg.Duration.Value
	live := free
	if leg.DurationInTraffic != nil && leg.DurationInTraffic.Value > 0 {
		live = leg.DurationInTraffic.Value
	}
	if free <= 0 || live <= 0 {
		return 0, 0, fmt.Errorf("routes: probe returned degenerate durations")
	}
	return live, free, nil
}

func (s *RouteService) requestDirections(ctx context.Context, origin, dest geo.Point, alternatives, liveTraffic bool) (*directionsResponse, error) {
	params := url.Values{}
	params.Set("origin", fmt.Sprintf("%f,%f", origin.Lat, origin.Lng))
	params.Set("destination", fmt.Sprintf("%f,%f", dest.Lat, dest.Lng))
	params.Set("mode", "driving")
	params.Set("key", s.apiKey)
	if alternatives {
		params.Set("alternatives", "true")
	}
	if liveTraffic {
		params.Set("departure_time", "now")
	}

	reqURL := fmt.Sprintf("%s/directions/json?%s", s.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("routes: failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("routes: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("routes: backend returned HTTP %d", resp.StatusCode)
	}

	var dto directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return nil, fmt.Errorf("routes: failed to decode response: %w", err)
	}
	return &dto, nil
}

// parseRoute converts one backend alternative into a domain route. Step
// geometry is concatenated into the dense path; when no step carries
// geometry the coarser overview polyline is used instead.
func parseRoute(dto directionsRoute) (domain.Route, error) {
	var (
		points   []geo.Point
		steps    []domain.RouteStep
		distance float64
		duration float64
	)

	for _, leg := range dto.Legs {
		distance += leg.Distance.Value
		duration += leg.Duration.Value

		for _, stepDTO := range leg.Steps {
			segment, err := geo.DecodePolyline(stepDTO.Polyline.Points)
			if err != nil {
				return domain.Route{}, fmt.Errorf("step %d polyline: %w", len(steps), err)
			}
			points = appendSegment(points, segment)

			steps = append(steps, domain.RouteStep{
				Instruction:     stripMarkup(stepDTO.HTMLInstructions),
				Maneuver:        stepDTO.Maneuver,
				DistanceMeters:  stepDTO.Distance.Value,
				DistanceText:    stepDTO.Distance.Text,
				DurationSeconds: stepDTO.Duration.Value,
				DurationText:    stepDTO.Duration.Text,
				EndLocation:     geo.Point{Lat: stepDTO.EndLocation.Lat, Lng: stepDTO.EndLocation.Lng},
				Index:           len(steps),
			})
		}
	}

	if len(points) == 0 {
		decoded, err := geo.DecodePolyline(dto.OverviewPolyline.Points)
		if err != nil {
			return domain.Route{}, fmt.Errorf("overview polyline: %w", err)
		}
		points = decoded
	}
	if len(points) == 0 {
		return domain.Route{}, fmt.Errorf("route has no geometry")
	}

	return domain.Route{
		Points:          points,
		Steps:           steps,
		DistanceMeters:  distance,
		DurationSeconds: duration,
		Summary:         dto.Summary,
	}, nil
}

// appendSegment concatenates a decoded step segment onto the path,
// skipping a duplicated joint vertex.
func appendSegment(path, segment []geo.Point) []geo.Point {
	if len(path) > 0 && len(segment) > 0 && path[len(path)-1] == segment[0] {
		segment = segment[1:]
	}
	return append(path, segment...)
}

// fallbackRoute builds a synthetic straight-line route: both endpoints
// plus evenly interpolated points between them, a single instruction, and
// a duration estimated at the generic average driving speed.
func (s *RouteService) fallbackRoute(origin, dest geo.Point) domain.Route {
	points := make([]geo.Point, 0, fallbackInterpolatedPoints+2)
	points = append(points, origin)
	for i := 1; i <= fallbackInterpolatedPoints; i++ {
		t := float64(i) / float64(fallbackInterpolatedPoints+1)
		points = append(points, geo.Interpolate(origin, dest, t))
	}
	points = append(points, dest)

	distance := geo.Distance(origin, dest)
	duration := distance / domain.FallbackSpeedMPS

	return domain.Route{
		Points: points,
		Steps: []domain.RouteStep{
			{
				Instruction:     "Head straight to your destination",
				Maneuver:        "straight",
				DistanceMeters:  distance,
				DistanceText:    fmt.Sprintf("%.1f km", distance/1000),
				DurationSeconds: duration,
				DurationText:    fmt.Sprintf("%.0f min", duration/60),
				EndLocation:     dest,
				Index:           0,
			},
		},
		DistanceMeters:  distance,
		DurationSeconds: duration,
		Summary:         "Direct path",
		IsFallback:      true,
	}
}

// stripMarkup removes HTML tags and entities from backend instructions.
func stripMarkup(instruction string) string {
	clean := markupPattern.ReplaceAllString(instruction, " ")
	clean = html.UnescapeString(clean)
	return strings.Join(strings.Fields(clean), " ")
}
