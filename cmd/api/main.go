package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-analytics-api/internal/app"
	"github.com/noah-isme/gema-analytics-api/internal/config"
	"github.com/noah-isme/gema-analytics-api/internal/database"
	"github.com/noah-isme/gema-analytics-api/internal/handler"
	"github.com/noah-isme/gema-analytics-api/internal/middleware"
	"github.com/noah-isme/gema-analytics-api/internal/observability"
	"github.com/noah-isme/gema-analytics-api/internal/router"
)

const (
	jobTriggerLimit  = 10
	jobTriggerWindow = time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.RequireJWT(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := app.NewLogger(cfg)
	observability.RegisterMetrics()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	engine, err := app.NewEngine(cfg, db, redisClient, natsConn, logger)
	if err != nil {
		log.Fatalf("failed to build analytics engine: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to access database pool: %v", err)
	}
	checks := []handler.DependencyCheck{
		{Name: "postgres", Check: sqlDB.PingContext},
		{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
	}

	fiberApp := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(fiberApp, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(fiberApp, cfg, router.Dependencies{
		PredictionHandler:   handler.NewPredictionHandler(engine.Predictions, logger),
		RiskHandler:         handler.NewRiskHandler(engine.Risk, logger),
		ForecastHandler:     handler.NewForecastHandler(engine.Forecasts, logger),
		InterventionHandler: handler.NewInterventionHandler(engine.Interventions, logger),
		OptimizationHandler: handler.NewOptimizationHandler(engine.Optimizer, logger),
		DashboardHandler:    handler.NewDashboardHandler(engine.Dashboard, logger),
		JobHandler: handler.NewJobHandler(engine.Queue, engine.Registry,
			middleware.RateLimit("jobs", jobTriggerLimit, jobTriggerWindow), logger),
		DependencyChecks: checks,
		JWTMiddleware:    middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddress()).Msg("analytics api listening")
		if err := fiberApp.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(fiberApp, logger)
}

func waitForShutdown(fiberApp *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := fiberApp.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
