package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/wayline/backend/internal/delivery/http"
	"github.com/wayline/backend/internal/service"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Configuration
	cfg := loadConfig()

	// Dependency Injection: Services
	routeSvc := service.NewRouteService(cfg.DirectionsAPIKey, cfg.DirectionsBaseURL)
	placeSvc := service.NewPlaceService(cfg.PlacesAPIKey, cfg.PlacesBaseURL)
	heatmapSvc := service.NewHeatmapService(routeSvc)
	optimizer := service.NewOptimizerService(service.DefaultOptimizerConfig())
	navSvc := service.NewNavigationService(routeSvc, placeSvc, heatmapSvc, optimizer)
	advisor := service.NewAdvisorBridge(cfg.AdvisorServiceURL)

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "Wayline Navigation API v1.0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Routes
	handler := http.NewHandler(routeSvc, placeSvc, heatmapSvc, optimizer, navSvc, advisor)
	http.SetupRoutes(app, handler)

	// Graceful shutdown
	go func() {
		port := cfg.Port
		if port == "" {
			port = "8080"
		}
		log.Printf("Server starting on :%s", port)
		if err := app.Listen(":" + port); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	navSvc.Shutdown()
	log.Println("Server exited gracefully")
}

type Config struct {
	DirectionsAPIKey  string
	DirectionsBaseURL string
	PlacesAPIKey      string
	PlacesBaseURL     string
	AdvisorServiceURL string
	Port              string
	Env               string
}

func loadConfig() *Config {
	return &Config{
		DirectionsAPIKey:  getEnv("DIRECTIONS_API_KEY", ""),
		DirectionsBaseURL: getEnv("DIRECTIONS_BASE_URL", ""),
		PlacesAPIKey:      getEnv("PLACES_API_KEY", ""),
		PlacesBaseURL:     getEnv("PLACES_BASE_URL", ""),
		AdvisorServiceURL: getEnv("ADVISOR_SERVICE_URL", "http://localhost:8000"),
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("GO_ENV", "development"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
