package domain

import (
	"fmt"

	"github.com/wayline/backend/pkg/geo"
)

// PlaceCategory is the closed set of point-of-interest categories the
// analyzer understands. Every category has a defined congestion impact and
// message template; freeform backend tags are folded into this set at the
// parse boundary.
type PlaceCategory string

const (
	CategoryMarket     PlaceCategory = "market"
	CategorySchool     PlaceCategory = "school"
	CategoryHospital   PlaceCategory = "hospital"
	CategoryTransit    PlaceCategory = "transit_station"
	CategoryRestaurant PlaceCategory = "restaurant"
	CategoryFuel       PlaceCategory = "fuel"
	CategoryParking    PlaceCategory = "parking"
	CategoryStore      PlaceCategory = "store"
)

// AllCategories lists every category, in query order.
var AllCategories = []PlaceCategory{
	CategoryMarket,
	CategorySchool,
	CategoryHospital,
	CategoryTransit,
	CategoryRestaurant,
	CategoryFuel,
	CategoryParking,
	CategoryStore,
}

// categoryImpact maps each category to its congestion-impact coefficient
// in [0,1]. The table is total over AllCategories.
var categoryImpact = map[PlaceCategory]float64{
	CategoryMarket:     0.9,
	CategorySchool:     0.8,
	CategoryHospital:   0.7,
	CategoryTransit:    0.7,
	CategoryRestaurant: 0.6,
	CategoryFuel:       0.5,
	CategoryParking:    0.4,
	CategoryStore:      0.3,
}

// categoryMessage holds singular/plural phrasing per category.
var categoryMessage = map[PlaceCategory]struct {
	singular string
	plural   string
}{
	CategoryMarket:     {"Busy market ahead, expect crowds and slow traffic", "%d busy markets in this area, expect heavy congestion"},
	CategorySchool:     {"School zone nearby, watch for pickup/drop-off traffic", "%d schools in this area, expect pickup/drop-off traffic"},
	CategoryHospital:   {"Hospital nearby, ambulances and visitor traffic likely", "%d hospitals in this area, expect visitor traffic"},
	CategoryTransit:    {"Transit hub nearby, expect buses and auto queues", "%d transit stops in this area, expect buses and queues"},
	CategoryRestaurant: {"Popular eatery nearby, roadside parking likely", "%d eateries in this area, roadside parking likely"},
	CategoryFuel:       {"Fuel station nearby, queue may spill onto the road", "%d fuel stations in this area, queues possible"},
	CategoryParking:    {"Parking area nearby, vehicles entering and exiting", "%d parking areas in this area"},
	CategoryStore:      {"Shops along this stretch", "%d shops along this stretch"},
}

// ImpactCoefficient returns the congestion impact for a category. Unknown
// values get the generic store coefficient so the table stays total.
func (c PlaceCategory) ImpactCoefficient() float64 {
	if v, ok := categoryImpact[c]; ok {
		return v
	}
	return categoryImpact[CategoryStore]
}

// AlertMessage renders the category's alert text for a cluster of count
// members.
func (c PlaceCategory) AlertMessage(count int) string {
	tmpl, ok := categoryMessage[c]
	if !ok {
		tmpl = categoryMessage[CategoryStore]
	}
	if count <= 1 {
		return tmpl.singular
	}
	return fmt.Sprintf(tmpl.plural, count)
}

// NearbyPlace is one point of interest from the place-search backend.
// Instances live only for the duration of alert analysis.
type NearbyPlace struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Location       geo.Point     `json:"location"`
	Category       PlaceCategory `json:"category"`
	Rating         *float64      `json:"rating,omitempty"`
	DistanceMeters float64       `json:"distance_meters"`
}

// TrafficAlert is a derived, location-anchored congestion warning built by
// clustering nearby places. Severity is always computed, never set.
type TrafficAlert struct {
	Message    string        `json:"message"`
	Location   geo.Point     `json:"location"`
	Severity   float64       `json:"severity"`
	PlaceCount int           `json:"place_count"`
	Category   PlaceCategory `json:"category"`
}

// AlertsResponse wraps traffic alerts with metadata
type AlertsResponse struct {
	Data    []TrafficAlert `json:"data"`
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
}
