package domain

import (
	"time"

	"github.com/wayline/backend/pkg/geo"
)

// TrafficIntensity is a five-level ordinal classification of observed
// speed degradation.
type TrafficIntensity int

const (
	IntensityNone TrafficIntensity = iota
	IntensityLight
	IntensityModerate
	IntensityHeavy
	IntensitySevere
)

// String returns the human-readable level name.
func (i TrafficIntensity) String() string {
	switch i {
	case IntensityNone:
		return "none"
	case IntensityLight:
		return "light"
	case IntensityModerate:
		return "moderate"
	case IntensityHeavy:
		return "heavy"
	case IntensitySevere:
		return "severe"
	default:
		return "unknown"
	}
}

// ClassifyIntensity buckets a speed ratio (free-flow/live, in [0,1]) into
// an intensity level by fixed thresholds.
func ClassifyIntensity(speedRatio float64) TrafficIntensity {
	switch {
	case speedRatio >= 0.9:
		return IntensityNone
	case speedRatio >= 0.7:
		return IntensityLight
	case speedRatio >= 0.5:
		return IntensityModerate
	case speedRatio >= 0.3:
		return IntensityHeavy
	default:
		return IntensitySevere
	}
}

// TrafficDataPoint is one sampled heatmap cell. The whole set is replaced
// on every sampling cycle.
type TrafficDataPoint struct {
	Location   geo.Point        `json:"location"`
	Intensity  TrafficIntensity `json:"intensity"`
	Level      string           `json:"level"`
	SpeedRatio float64          `json:"speed_ratio"`
}

// Heatmap is the result of one area sampling cycle. AverageIntensity is
// only meaningful when SampleCount > 0.
type Heatmap struct {
	Center           geo.Point          `json:"center"`
	RadiusMeters     float64            `json:"radius_meters"`
	Points           []TrafficDataPoint `json:"points"`
	AverageIntensity TrafficIntensity   `json:"average_intensity"`
	AverageLevel     string             `json:"average_level"`
	SampleCount      int                `json:"sample_count"`
	Timestamp        time.Time          `json:"timestamp"`
}

// HeatmapResponse wraps heatmap data with metadata
type HeatmapResponse struct {
	Data    Heatmap `json:"data"`
	Success bool    `json:"success"`
	Message string  `json:"message,omitempty"`
}
