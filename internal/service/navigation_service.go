package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wayline/backend/internal/domain"
	"github.com/wayline/backend/pkg/geo"
)

const (
	// snapThresholdM is how close the device must be to the current
	// step's end before the step index may advance.
	snapThresholdM = 100.0
	// deviationThresholdM is the perpendicular distance from the route
	// polyline beyond which an immediate reroute fires.
	deviationThresholdM = 50.0
	// heatmapMoveThresholdM is the minimum center movement between
	// heatmap resamples.
	heatmapMoveThresholdM = 200.0
	// heatmapRadiusM is the sampled disc around the device.
	heatmapRadiusM = 2000.0
	// alertSearchRadiusM / alertClusterRadiusM bound the place query and
	// cluster membership when building alerts for route ranking.
	alertSearchRadiusM  = 2000.0
	alertClusterRadiusM = 1500.0
	// searchMinChars is the minimum query length for debounced search.
	searchMinChars = 2
)

// The session layer depends on the other engine components through small
// interfaces so tests can substitute fakes.

type routeFetcher interface {
	FetchRoutes(ctx context.Context, origin, dest geo.Point, alternatives bool) []domain.Route
}

type placeSource interface {
	FindNearby(ctx context.Context, center geo.Point, radiusM float64) []domain.NearbyPlace
	SearchPlaces(ctx context.Context, query string, center geo.Point) []domain.NearbyPlace
	AnalyzeAlerts(center geo.Point, places []domain.NearbyPlace, clusterRadiusM float64) []domain.TrafficAlert
}

type areaSampler interface {
	SampleArea(ctx context.Context, center geo.Point, radiusM float64) domain.Heatmap
}

type routeRanker interface {
	Rank(routes []domain.Route, alerts []domain.TrafficAlert) []domain.RankedRoute
	RankByDuration(routes []domain.Route) []domain.RankedRoute
}

// NavigationService owns the live navigation sessions and wires them to
// the route, place, optimizer and heatmap components. Timer intervals are
// fields so tests can shrink them.
type NavigationService struct {
	routes    routeFetcher
	places    placeSource
	sampler   areaSampler
	optimizer routeRanker

	store     *SessionStore
	scheduler *TaskScheduler

	rerouteInterval time.Duration
	heatmapDebounce time.Duration
	searchDebounce  time.Duration

	wgBg sync.WaitGroup // tracks per-session timer goroutines for shutdown
}

// NewNavigationService creates a navigation service with production
// timer intervals.
func NewNavigationService(routes routeFetcher, places placeSource, sampler areaSampler, optimizer routeRanker) *NavigationService {
	return &NavigationService{
		routes:          routes,
		places:          places,
		sampler:         sampler,
		optimizer:       optimizer,
		store:           NewSessionStore(),
		scheduler:       NewTaskScheduler(),
		rerouteInterval: 30 * time.Second,
		heatmapDebounce: 2 * time.Second,
		searchDebounce:  400 * time.Millisecond,
	}
}

// CreateSession registers and returns a fresh idle session.
func (svc *NavigationService) CreateSession() *Session {
	s := &Session{
		ID:    uuid.New(),
		svc:   svc,
		state: domain.StateIdle,
	}
	svc.store.Put(s)
	return s
}

// GetSession looks up a live session by ID.
func (svc *NavigationService) GetSession(id string) (*Session, bool) {
	return svc.store.Get(id)
}

// RemoveSession cancels a session and drops it from the registry.
func (svc *NavigationService) RemoveSession(id string) {
	if s, ok := svc.store.Get(id); ok {
		s.Cancel()
		svc.store.Remove(s.ID)
	}
}

// Shutdown cancels pending scheduled tasks and waits for session timer
// goroutines to exit. Call during graceful shutdown.
func (svc *NavigationService) Shutdown() {
	for _, s := range svc.store.All() {
		s.Cancel()
	}
	svc.scheduler.StopAll()
	svc.wgBg.Wait()
}
