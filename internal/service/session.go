package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wayline/backend/internal/domain"
	"github.com/wayline/backend/pkg/geo"
	"github.com/wayline/backend/pkg/utils"
)

// maxPendingEvents caps the per-session event buffer; the oldest events
// are dropped when a slow consumer falls behind.
const maxPendingEvents = 64

// Session is the live navigation state machine. The transition methods
// below are the only mutators; timer callbacks and debounced tasks post
// through the same mutex-serialized path, so callers see a consistent
// single-owner state regardless of which goroutine fired.
type Session struct {
	ID  uuid.UUID
	svc *NavigationService

	mu          sync.Mutex
	state       domain.SessionState
	origin      geo.Point
	destination geo.Point

	ranked        []domain.RankedRoute
	alerts        []domain.TrafficAlert
	active        *domain.Route
	selectedIndex int
	stepIndex     int

	lastPosition geo.Point
	hasPosition  bool

	lastRerouteAt time.Time
	hasRerouted   bool
	deviating     bool

	lastHeatmapCenter geo.Point
	hasHeatmapCenter  bool

	// Generation counters invalidate in-flight results when a newer
	// command of the same kind supersedes them.
	destinationGen uint64
	searchGen      uint64
	heatmapGen     uint64

	rerouteStop chan struct{}

	events []domain.NavigationEvent
}

// State returns the current lifecycle state.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetDestination computes ranked routes to dest and moves the session to
// route preview with the top-ranked route active. Route fetching and
// place/alert analysis run concurrently. If a newer SetDestination lands
// while this one is in flight, the stale result is discarded.
func (s *Session) SetDestination(ctx context.Context, origin, dest geo.Point) domain.SessionSnapshot {
	s.mu.Lock()
	if s.state == domain.StateCompleted || s.state == domain.StateCancelled {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}
	s.stopRerouteTimerLocked()
	s.destinationGen++
	gen := s.destinationGen
	s.origin = origin
	s.destination = dest
	s.state = domain.StateRoutePreview
	s.mu.Unlock()

	var (
		routes []domain.Route
		alerts []domain.TrafficAlert
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		routes = s.svc.routes.FetchRoutes(gctx, origin, dest, true)
		return nil
	})
	g.Go(func() error {
		places := s.svc.places.FindNearby(gctx, origin, alertSearchRadiusM)
		alerts = s.svc.places.AnalyzeAlerts(origin, places, alertClusterRadiusM)
		return nil
	})
	_ = g.Wait() // component calls degrade internally, never error

	ranked := s.svc.optimizer.Rank(routes, alerts)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.destinationGen || s.state != domain.StateRoutePreview {
		// Superseded while in flight.
		return s.snapshotLocked()
	}

	s.ranked = ranked
	s.alerts = alerts
	s.selectedIndex = 0
	s.stepIndex = 0
	s.deviating = false
	if len(ranked) > 0 {
		r := ranked[0].Route
		s.active = &r
	} else {
		s.active = nil
	}
	s.emitLocked(domain.NavigationEvent{
		Type:   domain.EventRouteSetUpdated,
		Routes: ranked,
		Alerts: alerts,
	})
	return s.snapshotLocked()
}

// SelectRoute switches the active route to another ranked alternative
// while previewing.
func (s *Session) SelectRoute(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateRoutePreview {
		return fmt.Errorf("session: cannot select route in state %s", s.state)
	}
	if index < 0 || index >= len(s.ranked) {
		return fmt.Errorf("session: route index %d out of range", index)
	}
	s.selectedIndex = index
	r := s.ranked[index].Route
	s.active = &r
	return nil
}

// Start begins turn-by-turn navigation on the active route and arms the
// periodic reroute timer.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateRoutePreview || s.active == nil {
		return fmt.Errorf("session: cannot start navigation in state %s", s.state)
	}
	s.state = domain.StateNavigating
	s.stepIndex = 0
	s.deviating = false
	s.startRerouteTimerLocked()
	return nil
}

// UpdatePosition ingests a position fix: advances the step index (forward
// only, under the snapping threshold), measures deviation from the route
// polyline, triggers an immediate reroute on the first fix of an excursion
// beyond the deviation threshold, and recomputes remaining distance/ETA.
func (s *Session) UpdatePosition(ctx context.Context, pos geo.Point) domain.ProgressUpdate {
	s.mu.Lock()
	if s.state != domain.StateNavigating || s.active == nil {
		update := domain.ProgressUpdate{
			State:            s.state,
			CurrentStepIndex: s.stepIndex,
			Events:           s.drainEventsLocked(),
		}
		s.mu.Unlock()
		return update
	}

	s.lastPosition = pos
	s.hasPosition = true
	route := s.active

	deviation := geo.DistanceToPath(pos, route.Points)

	// Forward-only step advance: GPS noise never walks the index back.
	if s.stepIndex < len(route.Steps) {
		stepEnd := route.Steps[s.stepIndex].EndLocation
		if geo.Distance(pos, stepEnd) < snapThresholdM {
			s.stepIndex++
			evt := domain.NavigationEvent{
				Type:      domain.EventStepAdvanced,
				StepIndex: s.stepIndex,
			}
			if s.stepIndex < len(route.Steps) {
				next := route.Steps[s.stepIndex]
				evt.Step = &next
			}
			s.emitLocked(evt)
		}
	}

	// One reroute per excursion: the flag only rearms after the position
	// returns under the threshold.
	needReroute := false
	if deviation > deviationThresholdM {
		if !s.deviating {
			s.deviating = true
			needReroute = true
		}
	} else {
		s.deviating = false
	}

	remaining, eta := s.progressLocked(pos, route)
	bearingToNext, distToNext := s.nextTargetLocked(pos, route)
	s.emitLocked(domain.NavigationEvent{
		Type:             domain.EventETAUpdated,
		RemainingMeters:  utils.RoundTo(remaining, 1),
		RemainingSeconds: utils.RoundTo(eta, 1),
	})
	s.mu.Unlock()

	if needReroute {
		s.reroute(ctx, "deviation exceeded threshold")
	}

	s.scheduleHeatmapRefresh(pos)

	s.mu.Lock()
	defer s.mu.Unlock()
	update := domain.ProgressUpdate{
		State:            s.state,
		CurrentStepIndex: s.stepIndex,
		DeviationMeters:  utils.RoundTo(deviation, 1),
		RemainingMeters:  utils.RoundTo(remaining, 1),
		RemainingSeconds: utils.RoundTo(eta, 1),
		BearingToNext:    utils.RoundTo(bearingToNext, 1),
		DistanceToNext:   utils.RoundTo(distToNext, 1),
		Events:           s.drainEventsLocked(),
	}
	if s.active != nil && s.stepIndex < len(s.active.Steps) {
		step := s.active.Steps[s.stepIndex]
		update.CurrentStep = &step
	}
	return update
}

// progressLocked sums polyline segment lengths from the nearest vertex to
// the route end, plus the offset from the raw position to that vertex, and
// derives the ETA from the route's own average speed.
func (s *Session) progressLocked(pos geo.Point, route *domain.Route) (remainingM, etaSec float64) {
	idx, offset := geo.NearestPointIndex(pos, route.Points)
	if idx < 0 {
		return 0, 0
	}
	remainingM = offset
	for i := idx; i < len(route.Points)-1; i++ {
		remainingM += geo.Distance(route.Points[i], route.Points[i+1])
	}
	return remainingM, remainingM / route.AverageSpeedMPS()
}

// nextTargetLocked reports bearing/distance from the device to the current
// step's end (or the route end once steps are exhausted). Consumed by the
// presentation layer's directional overlay.
func (s *Session) nextTargetLocked(pos geo.Point, route *domain.Route) (bearingDeg, distanceM float64) {
	target := route.Points[len(route.Points)-1]
	if s.stepIndex < len(route.Steps) {
		target = route.Steps[s.stepIndex].EndLocation
	}
	return geo.Bearing(pos, target), geo.Distance(pos, target)
}

// reroute refreshes the active route against current conditions. The fetch
// runs unlocked; the result is applied only if the session is still in the
// same route generation, otherwise it is stale and discarded.
func (s *Session) reroute(ctx context.Context, reason string) {
	s.mu.Lock()
	if s.state != domain.StateNavigating || s.active == nil {
		s.mu.Unlock()
		return
	}
	s.state = domain.StateRerouting
	gen := s.destinationGen
	origin := s.origin
	if s.hasPosition {
		origin = s.lastPosition
	}
	dest := s.destination
	s.mu.Unlock()

	routes := s.svc.routes.FetchRoutes(ctx, origin, dest, false)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateRerouting || gen != s.destinationGen {
		return
	}
	if len(routes) > 0 {
		r := routes[0]
		s.active = &r
		s.stepIndex = 0
		s.lastRerouteAt = time.Now()
		s.hasRerouted = true
		s.emitLocked(domain.NavigationEvent{
			Type:   domain.EventRerouteTrigger,
			Reason: reason,
		})
	}
	s.state = domain.StateNavigating
}

// Search runs a debounced free-text place search around the device.
// Queries shorter than the minimum cancel any pending search; a newer
// query supersedes an in-flight one.
func (s *Session) Search(query string) {
	query = strings.TrimSpace(query)

	s.mu.Lock()
	s.searchGen++
	gen := s.searchGen
	center := s.origin
	if s.hasPosition {
		center = s.lastPosition
	}
	s.mu.Unlock()

	key := "search:" + s.ID.String()
	if len([]rune(query)) < searchMinChars {
		s.svc.scheduler.Cancel(key)
		return
	}

	s.svc.scheduler.Schedule(key, s.svc.searchDebounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		results := s.svc.places.SearchPlaces(ctx, query, center)

		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.searchGen {
			return
		}
		s.emitLocked(domain.NavigationEvent{
			Type:   domain.EventSearchResults,
			Places: results,
			Query:  query,
		})
	})
}

// scheduleHeatmapRefresh debounces heatmap resampling: it fires only after
// the configured quiet period of positional stability, and only when the
// center moved far enough since the last sample.
func (s *Session) scheduleHeatmapRefresh(pos geo.Point) {
	key := "heatmap:" + s.ID.String()
	s.svc.scheduler.Schedule(key, s.svc.heatmapDebounce, func() {
		s.mu.Lock()
		if s.state != domain.StateNavigating {
			s.mu.Unlock()
			return
		}
		if s.hasHeatmapCenter && geo.Distance(s.lastHeatmapCenter, pos) <= heatmapMoveThresholdM {
			s.mu.Unlock()
			return
		}
		s.heatmapGen++
		gen := s.heatmapGen
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		hm := s.svc.sampler.SampleArea(ctx, pos, heatmapRadiusM)

		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.heatmapGen || s.state != domain.StateNavigating {
			return
		}
		s.lastHeatmapCenter = pos
		s.hasHeatmapCenter = true
		s.emitLocked(domain.NavigationEvent{
			Type:    domain.EventHeatmapUpdated,
			Heatmap: &hm,
		})
	})
}

// Stop ends navigation and returns to idle, disarming timers and clearing
// session-owned route and alert state.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.StateCompleted || s.state == domain.StateCancelled {
		return
	}
	s.stopRerouteTimerLocked()
	s.cancelScheduledLocked()
	s.destinationGen++
	s.state = domain.StateIdle
	s.clearLocked()
}

// Complete marks the session as arrived. Terminal.
func (s *Session) Complete() {
	s.terminate(domain.StateCompleted)
}

// Cancel aborts the session. Terminal.
func (s *Session) Cancel() {
	s.terminate(domain.StateCancelled)
}

func (s *Session) terminate(final domain.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.StateCompleted || s.state == domain.StateCancelled {
		return
	}
	s.stopRerouteTimerLocked()
	s.cancelScheduledLocked()
	s.destinationGen++
	s.state = final
	s.clearLocked()
}

func (s *Session) clearLocked() {
	s.ranked = nil
	s.alerts = nil
	s.active = nil
	s.selectedIndex = 0
	s.stepIndex = 0
	s.deviating = false
	s.hasHeatmapCenter = false
	s.events = nil
}

// DrainEvents returns and clears the pending engine events.
func (s *Session) DrainEvents() []domain.NavigationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drainEventsLocked()
}

// Snapshot returns a read-only view of the session.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		ID:               s.ID.String(),
		State:            s.state,
		RankedRoutes:     s.ranked,
		Alerts:           s.alerts,
		CurrentStepIndex: s.stepIndex,
	}
	if s.state != domain.StateIdle {
		dest := s.destination
		snap.Destination = &dest
	}
	if s.active != nil {
		route := *s.active
		snap.ActiveRoute = &route
	}
	if s.hasPosition {
		pos := s.lastPosition
		snap.LastPosition = &pos
	}
	if s.hasRerouted {
		t := s.lastRerouteAt
		snap.LastRerouteAt = &t
	}
	return snap
}

func (s *Session) startRerouteTimerLocked() {
	if s.rerouteStop != nil {
		return
	}
	stop := make(chan struct{})
	s.rerouteStop = stop

	s.svc.wgBg.Add(1)
	go func() {
		defer s.svc.wgBg.Done()
		ticker := time.NewTicker(s.svc.rerouteInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.reroute(context.Background(), "periodic refresh")
			}
		}
	}()
	log.Printf("session %s: reroute timer armed (%s)", s.ID, s.svc.rerouteInterval)
}

func (s *Session) stopRerouteTimerLocked() {
	if s.rerouteStop != nil {
		close(s.rerouteStop)
		s.rerouteStop = nil
	}
}

func (s *Session) cancelScheduledLocked() {
	s.svc.scheduler.Cancel("heatmap:" + s.ID.String())
	s.svc.scheduler.Cancel("search:" + s.ID.String())
}

func (s *Session) emitLocked(evt domain.NavigationEvent) {
	evt.Timestamp = time.Now()
	s.events = append(s.events, evt)
	if len(s.events) > maxPendingEvents {
		s.events = s.events[len(s.events)-maxPendingEvents:]
	}
}

func (s *Session) drainEventsLocked() []domain.NavigationEvent {
	evts := s.events
	s.events = nil
	return evts
}
