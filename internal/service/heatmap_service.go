package service

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/wayline/backend/internal/domain"
	"github.com/wayline/backend/pkg/geo"
	"github.com/wayline/backend/pkg/utils"
)

const (
	// gridSpacingM is the heatmap sampling cell size.
	gridSpacingM = 500.0
	// probeDistanceM is the length of the micro-route used to measure live
	// speed at a grid point.
	probeDistanceM = 100.0
	// probeBatchSize caps concurrent probes so grid size never dictates
	// peak backend load.
	probeBatchSize = 5
)

// TravelTimeProber measures live vs free-flow travel time between two
// points. RouteService implements it against the directions backend.
type TravelTimeProber interface {
	ProbeTravelTime(ctx context.Context, origin, dest geo.Point) (liveSec, freeFlowSec float64, err error)
}

// HeatmapService samples a live traffic-intensity field over a bounded
// disc by probing short synthetic routes on a sampling grid.
type HeatmapService struct {
	prober     TravelTimeProber
	batchPause time.Duration
}

// NewHeatmapService creates a new heatmap service.
func NewHeatmapService(prober TravelTimeProber) *HeatmapService {
	return &HeatmapService{
		prober:     prober,
		batchPause: 200 * time.Millisecond,
	}
}

// SampleArea probes the grid covering the disc (center, radiusM) and
// returns the sampled intensity field. Probes run in fixed-size batches
// with a short pause between batches; a probe that errors is dropped
// silently and excluded from aggregation. Resampling is caller-triggered.
func (s *HeatmapService) SampleArea(ctx context.Context, center geo.Point, radiusM float64) domain.Heatmap {
	grid := buildSampleGrid(center, radiusM)

	var (
		mu     sync.Mutex
		points []domain.TrafficDataPoint
	)

	for start := 0; start < len(grid); start += probeBatchSize {
		end := start + probeBatchSize
		if end > len(grid) {
			end = len(grid)
		}

		var wg sync.WaitGroup
		for _, pt := range grid[start:end] {
			wg.Add(1)
			go func(pt geo.Point) {
				defer wg.Done()
				dp, ok := s.probe(ctx, pt)
				if !ok {
					return
				}
				mu.Lock()
				points = append(points, dp)
				mu.Unlock()
			}(pt)
		}
		wg.Wait()

		if end < len(grid) {
			select {
			case <-ctx.Done():
				return assembleHeatmap(center, radiusM, points)
			case <-time.After(s.batchPause):
			}
		}
	}

	return assembleHeatmap(center, radiusM, points)
}

// probe issues one micro-route measurement: from the grid point to a point
// probeDistanceM away at a pseudo-random bearing.
func (s *HeatmapService) probe(ctx context.Context, pt geo.Point) (domain.TrafficDataPoint, bool) {
	dest := geo.DestinationPoint(pt, probeDistanceM, rand.Float64()*360)

	live, free, err := s.prober.ProbeTravelTime(ctx, pt, dest)
	if err != nil || live <= 0 {
		// Dropped silently; no retry within a sampling cycle.
		return domain.TrafficDataPoint{}, false
	}

	ratio := utils.Clamp(free/live, 0, 1)
	intensity := domain.ClassifyIntensity(ratio)
	return domain.TrafficDataPoint{
		Location:   pt,
		Intensity:  intensity,
		Level:      intensity.String(),
		SpeedRatio: utils.RoundTo(ratio, 3),
	}, true
}

// buildSampleGrid tiles the disc's bounding box at gridSpacingM and keeps
// the points inside the disc. The longitude step widens with latitude to
// keep cells square on the ground.
func buildSampleGrid(center geo.Point, radiusM float64) []geo.Point {
	latDelta := (gridSpacingM / geo.EarthRadiusM) * 180 / math.Pi
	lngDelta := latDelta / math.Cos(center.Lat*math.Pi/180)

	latSpan := (radiusM / geo.EarthRadiusM) * 180 / math.Pi
	lngSpan := latSpan / math.Cos(center.Lat*math.Pi/180)

	var grid []geo.Point
	for lat := center.Lat - latSpan; lat <= center.Lat+latSpan; lat += latDelta {
		for lng := center.Lng - lngSpan; lng <= center.Lng+lngSpan; lng += lngDelta {
			pt := geo.Point{Lat: lat, Lng: lng}
			if geo.Distance(center, pt) <= radiusM {
				grid = append(grid, pt)
			}
		}
	}
	return grid
}

// assembleHeatmap aggregates successful samples. The average intensity is
// the rounded mean of the ordinal indices; with zero samples the average
// is meaningless and SampleCount says so.
func assembleHeatmap(center geo.Point, radiusM float64, points []domain.TrafficDataPoint) domain.Heatmap {
	hm := domain.Heatmap{
		Center:       center,
		RadiusMeters: radiusM,
		Points:       points,
		SampleCount:  len(points),
		Timestamp:    time.Now(),
	}
	if len(points) == 0 {
		return hm
	}

	var sum float64
	for _, p := range points {
		sum += float64(p.Intensity)
	}
	hm.AverageIntensity = domain.TrafficIntensity(math.Round(sum / float64(len(points))))
	hm.AverageLevel = hm.AverageIntensity.String()
	return hm
}
