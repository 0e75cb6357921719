package http

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/wayline/backend/internal/domain"
	"github.com/wayline/backend/internal/service"
	"github.com/wayline/backend/pkg/geo"
)

// Handler contains all HTTP handlers
type Handler struct {
	routeSvc   *service.RouteService
	placeSvc   *service.PlaceService
	heatmapSvc *service.HeatmapService
	optimizer  *service.OptimizerService
	navSvc     *service.NavigationService
	advisor    *service.AdvisorBridge
	validate   *validator.Validate
}

// NewHandler creates a new handler
func NewHandler(
	routeSvc *service.RouteService,
	placeSvc *service.PlaceService,
	heatmapSvc *service.HeatmapService,
	optimizer *service.OptimizerService,
	navSvc *service.NavigationService,
	advisor *service.AdvisorBridge,
) *Handler {
	return &Handler{
		routeSvc:   routeSvc,
		placeSvc:   placeSvc,
		heatmapSvc: heatmapSvc,
		optimizer:  optimizer,
		navSvc:     navSvc,
		advisor:    advisor,
		validate:   validator.New(),
	}
}

type pointDTO struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

func (p pointDTO) toGeo() geo.Point {
	return geo.Point{Lat: p.Lat, Lng: p.Lng}
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "wayline-backend",
		"version": "1.0.0",
	})
}

type computeRoutesRequest struct {
	Origin       *pointDTO `json:"origin" validate:"required"`
	Destination  *pointDTO `json:"destination" validate:"required"`
	Alternatives bool      `json:"alternatives"`
}

// ComputeRoutes fetches candidate routes, ranks them against nearby
// congestion alerts and returns the ranked list. Backend failures degrade
// to a fallback route, never an error status.
func (h *Handler) ComputeRoutes(c *fiber.Ctx) error {
	ctx := c.Context()

	var req computeRoutesRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid origin or destination")
	}

	origin := req.Origin.toGeo()
	dest := req.Destination.toGeo()

	routes := h.routeSvc.FetchRoutes(ctx, origin, dest, req.Alternatives)
	places := h.placeSvc.FindNearby(ctx, origin, 2000)
	alerts := h.placeSvc.AnalyzeAlerts(origin, places, 1500)
	ranked := h.optimizer.Rank(routes, alerts)

	return c.JSON(domain.RoutesResponse{
		Data:    ranked,
		Success: true,
	})
}

// GetNearbyPlaces returns points of interest around a location
func (h *Handler) GetNearbyPlaces(c *fiber.Ctx) error {
	ctx := c.Context()

	center, radius, err := queryArea(c, 1500)
	if err != nil {
		return err
	}

	places := h.placeSvc.FindNearby(ctx, center, radius)
	return c.JSON(fiber.Map{
		"success": true,
		"data":    places,
		"count":   len(places),
	})
}

// GetTrafficAlerts returns clustered congestion alerts around a location
func (h *Handler) GetTrafficAlerts(c *fiber.Ctx) error {
	ctx := c.Context()

	center, radius, err := queryArea(c, 1500)
	if err != nil {
		return err
	}

	places := h.placeSvc.FindNearby(ctx, center, radius)
	alerts := h.placeSvc.AnalyzeAlerts(center, places, radius)

	return c.JSON(domain.AlertsResponse{
		Data:    alerts,
		Success: true,
	})
}

// GetHeatmap samples the live traffic-intensity field around a location
func (h *Handler) GetHeatmap(c *fiber.Ctx) error {
	ctx := c.Context()

	center, radius, err := queryArea(c, 2000)
	if err != nil {
		return err
	}

	hm := h.heatmapSvc.SampleArea(ctx, center, radius)
	return c.JSON(domain.HeatmapResponse{
		Data:    hm,
		Success: true,
	})
}

// Advise proxies route context to the advisory service
func (h *Handler) Advise(c *fiber.Ctx) error {
	ctx := c.Context()

	var req service.AdviceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	advice, err := h.advisor.Advise(ctx, req)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to get advice")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    advice,
	})
}

// CreateSession registers a new navigation session
func (h *Handler) CreateSession(c *fiber.Ctx) error {
	s := h.navSvc.CreateSession()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    s.Snapshot(),
	})
}

// GetSession returns a session snapshot
func (h *Handler) GetSession(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    s.Snapshot(),
	})
}

type setDestinationRequest struct {
	Origin      *pointDTO `json:"origin" validate:"required"`
	Destination *pointDTO `json:"destination" validate:"required"`
}

// SetDestination computes ranked routes and moves the session to preview
func (h *Handler) SetDestination(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}

	var req setDestinationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid origin or destination")
	}

	snap := s.SetDestination(c.Context(), req.Origin.toGeo(), req.Destination.toGeo())
	return c.JSON(fiber.Map{
		"success": true,
		"data":    snap,
	})
}

type selectRouteRequest struct {
	Index int `json:"index" validate:"gte=0"`
}

// SelectRoute switches the active route to another ranked alternative
func (h *Handler) SelectRoute(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}

	var req selectRouteRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := s.SelectRoute(req.Index); err != nil {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    s.Snapshot(),
	})
}

// StartNavigation begins turn-by-turn navigation
func (h *Handler) StartNavigation(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    s.Snapshot(),
	})
}

// UpdatePosition ingests a position fix and returns progress plus any
// pending engine events
func (h *Handler) UpdatePosition(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}

	var req pointDTO
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid position")
	}

	update := s.UpdatePosition(c.Context(), req.toGeo())
	return c.JSON(fiber.Map{
		"success": true,
		"data":    update,
	})
}

type searchRequest struct {
	Query string `json:"query" validate:"required"`
}

// SearchPlaces queues a debounced free-text place search; results arrive
// as a search_results event
func (h *Handler) SearchPlaces(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}

	var req searchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	s.Search(req.Query)
	return c.JSON(fiber.Map{
		"success": true,
	})
}

// GetEvents drains the session's pending engine events
func (h *Handler) GetEvents(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	events := s.DrainEvents()
	return c.JSON(fiber.Map{
		"success": true,
		"data":    events,
		"count":   len(events),
	})
}

// StopNavigation returns the session to idle
func (h *Handler) StopNavigation(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	s.Stop()
	return c.JSON(fiber.Map{
		"success": true,
		"data":    s.Snapshot(),
	})
}

// CompleteSession marks the session as arrived
func (h *Handler) CompleteSession(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	s.Complete()
	return c.JSON(fiber.Map{
		"success": true,
		"data":    s.Snapshot(),
	})
}

// CancelSession aborts the session
func (h *Handler) CancelSession(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	s.Cancel()
	return c.JSON(fiber.Map{
		"success": true,
		"data":    s.Snapshot(),
	})
}

func (h *Handler) session(c *fiber.Ctx) (*service.Session, error) {
	s, ok := h.navSvc.GetSession(c.Params("id"))
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "Session not found")
	}
	return s, nil
}

// queryArea parses lat/lng/radius query parameters with a default radius.
func queryArea(c *fiber.Ctx, defaultRadius float64) (geo.Point, float64, error) {
	lat := c.QueryFloat("lat", 1000)
	lng := c.QueryFloat("lng", 1000)
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return geo.Point{}, 0, fiber.NewError(fiber.StatusBadRequest, "Invalid lat/lng")
	}

	radius := c.QueryFloat("radius", defaultRadius)
	if radius <= 0 || radius > 10000 {
		radius = defaultRadius
	}
	return geo.Point{Lat: lat, Lng: lng}, radius, nil
}
