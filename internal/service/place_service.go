package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/wayline/backend/internal/domain"
	"github.com/wayline/backend/pkg/geo"
	"github.com/wayline/backend/pkg/utils"
)

const (
	defaultPlacesBaseURL = "https://maps.googleapis.com/maps/api"

	// alertSeverityThreshold suppresses clusters whose mean impact is too
	// low to matter for congestion.
	alertSeverityThreshold = 0.4
)

// PlaceService queries the place-search backend for points of interest and
// derives traffic alerts by clustering them per category.
type PlaceService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewPlaceService creates a new place service. baseURL may be empty to use
// the default backend endpoint.
func NewPlaceService(apiKey, baseURL string) *PlaceService {
	if baseURL == "" {
		baseURL = defaultPlacesBaseURL
	}
	return &PlaceService{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// placesResponse mirrors the place-search backend payload.
type placesResponse struct {
	Status  string     `json:"status"`
	Results []placeDTO `json:"results"`
}

type placeDTO struct {
	PlaceID  string `json:"place_id"`
	Name     string `json:"name"`
	Geometry struct {
		Location latLngDTO `json:"location"`
	} `json:"geometry"`
	Types  []string `json:"types"`
	Rating *float64 `json:"rating,omitempty"`
}

// FindNearby returns points of interest around center, one backend query
// per category. A category whose query fails is skipped and logged; the
// remaining categories still contribute, so the call never fails wholesale.
func (s *PlaceService) FindNearby(ctx context.Context, center geo.Point, radiusM float64) []domain.NearbyPlace {
	var places []domain.NearbyPlace
	for _, category := range domain.AllCategories {
		batch, err := s.queryCategory(ctx, center, radiusM, category)
		if err != nil {
			log.Printf("places: skipping category %s: %v", category, err)
			continue
		}
		places = append(places, batch...)
	}
	return places
}

// SearchPlaces runs a free-text place search near center. Failures yield
// an empty list, logged only.
func (s *PlaceService) SearchPlaces(ctx context.Context, query string, center geo.Point) []domain.NearbyPlace {
	params := url.Values{}
	params.Set("query", query)
	params.Set("location", fmt.Sprintf("%f,%f", center.Lat, center.Lng))
	params.Set("key", s.apiKey)

	dto, err := s.request(ctx, "/place/textsearch/json", params)
	if err != nil {
		log.Printf("places: search %q failed: %v", query, err)
		return nil
	}
	return s.parsePlaces(dto, center)
}

func (s *PlaceService) queryCategory(ctx context.Context, center geo.Point, radiusM float64, category domain.PlaceCategory) ([]domain.NearbyPlace, error) {
	params := url.Values{}
	params.Set("location", fmt.Sprintf("%f,%f", center.Lat, center.Lng))
	params.Set("radius", fmt.Sprintf("%.0f", radiusM))
	params.Set("type", string(category))
	params.Set("key", s.apiKey)

	dto, err := s.request(ctx, "/place/nearbysearch/json", params)
	if err != nil {
		return nil, err
	}

	places := s.parsePlaces(dto, center)
	// The backend echoes freeform tags; pin the queried category so every
	// place lands in the closed enumeration.
	for i := range places {
		places[i].Category = category
	}
	return places, nil
}

func (s *PlaceService) request(ctx context.Context, path string, params url.Values) (*placesResponse, error) {
	reqURL := fmt.Sprintf("%s%s?%s", s.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("places: failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places: backend returned HTTP %d", resp.StatusCode)
	}

	var dto placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return nil, fmt.Errorf("places: failed to decode response: %w", err)
	}
	if dto.Status != "OK" && dto.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("places: backend status %q", dto.Status)
	}
	return &dto, nil
}

func (s *PlaceService) parsePlaces(dto *placesResponse, center geo.Point) []domain.NearbyPlace {
	places := make([]domain.NearbyPlace, 0, len(dto.Results))
	for _, r := range dto.Results {
		if r.PlaceID == "" {
			// Malformed item; keep its siblings.
			continue
		}
		loc := geo.Point{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng}
		places = append(places, domain.NearbyPlace{
			ID:             r.PlaceID,
			Name:           r.Name,
			Location:       loc,
			Category:       mapCategory(r.Types),
			Rating:         r.Rating,
			DistanceMeters: utils.RoundTo(geo.Distance(center, loc), 1),
		})
	}
	return places
}

// mapCategory folds the backend's freeform type tags into the closed
// category enumeration. Unmatched tags fall through to the generic store
// category so every place has defined impact behavior.
func mapCategory(tags []string) domain.PlaceCategory {
	for _, tag := range tags {
		switch tag {
		case "market", "supermarket", "shopping_mall", "grocery_or_supermarket":
			return domain.CategoryMarket
		case "school", "university", "primary_school", "secondary_school":
			return domain.CategorySchool
		case "hospital", "doctor", "clinic":
			return domain.CategoryHospital
		case "transit_station", "bus_station", "train_station", "subway_station":
			return domain.CategoryTransit
		case "restaurant", "cafe", "food":
			return domain.CategoryRestaurant
		case "gas_station", "fuel":
			return domain.CategoryFuel
		case "parking":
			return domain.CategoryParking
		}
	}
	return domain.CategoryStore
}

// AnalyzeAlerts clusters places within clusterRadiusM of center by
// category and emits one alert per cluster whose mean impact coefficient
// clears the significance threshold, ranked by severity descending. Pure
// function; the input places are not retained.
func (s *PlaceService) AnalyzeAlerts(center geo.Point, places []domain.NearbyPlace, clusterRadiusM float64) []domain.TrafficAlert {
	clusters := make(map[domain.PlaceCategory][]domain.NearbyPlace)
	for _, p := range places {
		if geo.Distance(center, p.Location) > clusterRadiusM {
			continue
		}
		clusters[p.Category] = append(clusters[p.Category], p)
	}

	alerts := make([]domain.TrafficAlert, 0, len(clusters))
	for category, members := range clusters {
		var latSum, lngSum, impactSum float64
		for _, m := range members {
			latSum += m.Location.Lat
			lngSum += m.Location.Lng
			impactSum += m.Category.ImpactCoefficient()
		}
		n := float64(len(members))
		severity := impactSum / n
		if severity < alertSeverityThreshold {
			continue
		}

		alerts = append(alerts, domain.TrafficAlert{
			Message:    category.AlertMessage(len(members)),
			Location:   geo.Point{Lat: latSum / n, Lng: lngSum / n},
			Severity:   utils.RoundTo(severity, 3),
			PlaceCount: len(members),
			Category:   category,
		})
	}

	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].Severity > alerts[j].Severity
	})
	return alerts
}
