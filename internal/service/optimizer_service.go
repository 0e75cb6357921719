package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wayline/backend/internal/domain"
	"github.com/wayline/backend/pkg/geo"
	"github.com/wayline/backend/pkg/utils"
)

// OptimizerConfig holds the route-scoring constants. They are empirically
// chosen, not derived from a physical model; treat them as tunable.
type OptimizerConfig struct {
	DistanceWeight       float64
	TimeWeight           float64
	PenaltyWeight        float64
	AlertProximityMeters float64
	AlertPenaltyFactor   float64
	DistanceScaleMeters  float64
	TimeScaleSeconds     float64
	ShortRouteMeters     float64
}

// DefaultOptimizerConfig returns the stock scoring constants.
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		DistanceWeight:       0.4,
		TimeWeight:           0.4,
		PenaltyWeight:        0.2,
		AlertProximityMeters: 200,
		AlertPenaltyFactor:   0.3,
		DistanceScaleMeters:  10000,
		TimeScaleSeconds:     3600,
		ShortRouteMeters:     3000,
	}
}

// OptimizerService scores candidate routes against locally observed
// congestion and produces a ranked list with human-readable reasoning.
type OptimizerService struct {
	cfg OptimizerConfig
}

// NewOptimizerService creates a new optimizer with the given config.
func NewOptimizerService(cfg OptimizerConfig) *OptimizerService {
	return &OptimizerService{cfg: cfg}
}

// Rank scores each route against the alerts and returns the routes sorted
// by score descending. Optimization never blocks route display: with no
// alerts available it degrades to ranking by raw duration.
func (s *OptimizerService) Rank(routes []domain.Route, alerts []domain.TrafficAlert) []domain.RankedRoute {
	if len(routes) == 0 {
		return nil
	}
	if alerts == nil {
		return s.RankByDuration(routes)
	}

	ranked := make([]domain.RankedRoute, 0, len(routes))
	for _, route := range routes {
		penalty, nearby := s.trafficPenalty(route, alerts)
		estimated := route.DurationSeconds * (1 + penalty)

		nd := 1 / (1 + route.DistanceMeters/s.cfg.DistanceScaleMeters)
		nt := 1 / (1 + estimated/s.cfg.TimeScaleSeconds)
		score := s.cfg.DistanceWeight*nd + s.cfg.TimeWeight*nt - s.cfg.PenaltyWeight*penalty

		ranked = append(ranked, domain.RankedRoute{
			Route:            route,
			Score:            utils.RoundTo(score, 4),
			TrafficPenalty:   utils.RoundTo(penalty, 4),
			EstimatedSeconds: utils.RoundTo(estimated, 1),
			Justification:    s.justification(route, len(alerts)-nearby, route.DistanceMeters),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// RankByDuration is the degraded ranking used when alert computation
// failed upstream.
func (s *OptimizerService) RankByDuration(routes []domain.Route) []domain.RankedRoute {
	ranked := make([]domain.RankedRoute, 0, len(routes))
	for _, route := range routes {
		ranked = append(ranked, domain.RankedRoute{
			Route:            route,
			Score:            utils.RoundTo(1/(1+route.DurationSeconds/s.cfg.TimeScaleSeconds), 4),
			EstimatedSeconds: route.DurationSeconds,
			Justification:    "Ranked by travel time; live congestion data unavailable",
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Route.DurationSeconds < ranked[j].Route.DurationSeconds
	})
	return ranked
}

// trafficPenalty sums the weighted severity of alerts lying within the
// proximity threshold of the route geometry, and reports how many alerts
// were that close.
func (s *OptimizerService) trafficPenalty(route domain.Route, alerts []domain.TrafficAlert) (float64, int) {
	var penalty float64
	nearby := 0
	for _, alert := range alerts {
		if geo.DistanceToPath(alert.Location, route.Points) < s.cfg.AlertProximityMeters {
			penalty += alert.Severity * s.cfg.AlertPenaltyFactor
			nearby++
		}
	}
	return penalty, nearby
}

func (s *OptimizerService) justification(route domain.Route, avoided int, distanceM float64) string {
	short := distanceM < s.cfg.ShortRouteMeters
	switch {
	case avoided > 0 && short:
		return "Shortest path, " + strings.ToLower(avoidedPhrase(avoided))
	case avoided > 0:
		return avoidedPhrase(avoided)
	case short:
		return "Shortest path"
	default:
		return "Best balance of distance and travel time"
	}
}

func avoidedPhrase(avoided int) string {
	if avoided == 1 {
		return "Avoids 1 high-traffic area"
	}
	return fmt.Sprintf("Avoids %d high-traffic areas", avoided)
}
