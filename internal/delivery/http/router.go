package http

import (
	"github.com/gofiber/fiber/v2"
)

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, handler *Handler) {
	// Health check
	app.Get("/health", handler.HealthCheck)

	// API v1 routes
	api := app.Group("/api/v1")
	{
		// Routing and congestion surfaces
		api.Post("/routes", handler.ComputeRoutes)
		api.Get("/places/nearby", handler.GetNearbyPlaces)
		api.Get("/traffic/alerts", handler.GetTrafficAlerts)
		api.Get("/traffic/heatmap", handler.GetHeatmap)

		// Advisory endpoint (proxies to the external advisory service)
		api.Post("/advice", handler.Advise)

		// Navigation session lifecycle
		sessions := api.Group("/sessions")
		sessions.Post("/", handler.CreateSession)
		sessions.Get("/:id", handler.GetSession)
		sessions.Post("/:id/destination", handler.SetDestination)
		sessions.Post("/:id/select", handler.SelectRoute)
		sessions.Post("/:id/start", handler.StartNavigation)
		sessions.Post("/:id/position", handler.UpdatePosition)
		sessions.Post("/:id/search", handler.SearchPlaces)
		sessions.Get("/:id/events", handler.GetEvents)
		sessions.Post("/:id/stop", handler.StopNavigation)
		sessions.Post("/:id/complete", handler.CompleteSession)
		sessions.Post("/:id/cancel", handler.CancelSession)
	}
}
