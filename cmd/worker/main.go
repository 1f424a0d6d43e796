package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gema-analytics-api/internal/app"
	"github.com/noah-isme/gema-analytics-api/internal/config"
	"github.com/noah-isme/gema-analytics-api/internal/database"
	"github.com/noah-isme/gema-analytics-api/internal/jobs"
	"github.com/noah-isme/gema-analytics-api/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := app.NewLogger(cfg).With().Str("process", "worker").Logger()
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

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName+"-worker")
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	worker := jobs.NewWorker(engine.Queue, engine.Registry, engine.Dispatcher, cfg.WorkerConcurrency, logger)
	group.Go(func() error {
		return worker.Run(ctx)
	})

	if cfg.SchedulerEnabled {
		scheduler := jobs.NewScheduler(engine.Queue, logger)
		if err := scheduler.RegisterDefaults(); err != nil {
			log.Fatalf("failed to register schedules: %v", err)
		}
		for name, next := range scheduler.NextRuns() {
			logger.Info().Str("job", name).Time("next_run", next).Msg("job scheduled")
		}
		group.Go(func() error {
			return scheduler.Run(ctx)
		})
	}

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Bool("scheduler", cfg.SchedulerEnabled).Msg("analytics worker started")

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker stopped with error")
		return
	}
	logger.Info().Msg("worker stopped")
}
