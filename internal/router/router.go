package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-analytics-api/internal/config"
	"github.com/noah-isme/gema-analytics-api/internal/handler"
	"github.com/noah-isme/gema-analytics-api/internal/observability"
)

// AnalyticsPrefix is the mount point of the predictive analytics API.
const AnalyticsPrefix = "/api/v1/predictive-analytics"

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	PredictionHandler   *handler.PredictionHandler
	RiskHandler         *handler.RiskHandler
	ForecastHandler     *handler.ForecastHandler
	InterventionHandler *handler.InterventionHandler
	OptimizationHandler *handler.OptimizationHandler
	DashboardHandler    *handler.DashboardHandler
	JobHandler          *handler.JobHandler
	DependencyChecks    []handler.DependencyCheck
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.DependencyChecks...))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	analytics := app.Group(AnalyticsPrefix, jwtMiddleware)

	if deps.PredictionHandler != nil {
		deps.PredictionHandler.Register(analytics)
	}
	if deps.RiskHandler != nil {
		deps.RiskHandler.Register(analytics)
	}
	if deps.ForecastHandler != nil {
		deps.ForecastHandler.Register(analytics)
	}
	if deps.InterventionHandler != nil {
		deps.InterventionHandler.Register(analytics)
	}
	if deps.OptimizationHandler != nil {
		deps.OptimizationHandler.Register(analytics)
	}
	if deps.DashboardHandler != nil {
		deps.DashboardHandler.Register(analytics)
	}

	// Job triggers are admin only and rate limited inside the handler.
	if deps.JobHandler != nil {
		deps.JobHandler.Register(analytics)
	}
}
