// Package app assembles the analytics engine shared by the API and the worker.
package app

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-analytics-api/internal/config"
	"github.com/noah-isme/gema-analytics-api/internal/jobs"
	"github.com/noah-isme/gema-analytics-api/internal/repository"
	"github.com/noah-isme/gema-analytics-api/internal/service"
	"github.com/noah-isme/gema-analytics-api/pkg/inference"
)

// Engine holds the services of the predictive analytics engine.
type Engine struct {
	Predictions   service.PredictionService
	Risk          service.RiskAssessmentService
	Forecasts     service.ForecastService
	Interventions service.InterventionService
	Optimizer     service.OptimizerService
	Dashboard     service.DashboardService
	Dispatcher    service.AlertDispatcher
	Queue         *jobs.Queue
	Registry      *jobs.Registry
}

// NewLogger builds the process logger at the configured level.
func NewLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	return zerolog.New(os.Stdout).Level(level).With().
		Timestamp().
		Str("service", cfg.AppName).
		Str("env", cfg.AppEnv).
		Logger()
}

// NewEngine wires repositories, the inference gateway and services. A nil NATS
// connection routes alerts to the log.
func NewEngine(cfg config.Config, db *gorm.DB, cache *redis.Client, conn *nats.Conn, logger zerolog.Logger) (*Engine, error) {
	gateway, err := NewInferenceGateway(cfg, logger)
	if err != nil {
		return nil, err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	predictionRepo := repository.NewPredictionRepository(db)
	assessmentRepo := repository.NewRiskAssessmentRepository(db)
	forecastRepo := repository.NewForecastRepository(db)
	interventionRepo := repository.NewInterventionRepository(db)
	optimizationRepo := repository.NewOptimizationRepository(db)
	signalRepo := repository.NewLearningSignalRepository(db)
	outcomeRepo := repository.NewOutcomeRepository(db)
	usageRepo := repository.NewResourceUsageRepository(db)

	engine := &Engine{
		Predictions:   service.NewPredictionService(predictionRepo, signalRepo, outcomeRepo, gateway, validate, logger),
		Risk:          service.NewRiskAssessmentService(assessmentRepo, signalRepo, validate, logger),
		Forecasts:     service.NewForecastService(forecastRepo, signalRepo, outcomeRepo, gateway, validate, logger),
		Interventions: service.NewInterventionService(interventionRepo, assessmentRepo, predictionRepo, signalRepo, validate, logger),
		Optimizer:     service.NewOptimizerService(optimizationRepo, usageRepo, validate, logger),
		Dispatcher:    service.NewAlertDispatcher(conn, cfg.EventSubjectBase, logger),
		Queue:         jobs.NewQueue(cache, cfg.QueueName),
	}
	engine.Dashboard = service.NewDashboardService(service.DashboardRepositories{
		Predictions:   predictionRepo,
		Assessments:   assessmentRepo,
		Forecasts:     forecastRepo,
		Interventions: interventionRepo,
		Signals:       signalRepo,
	}, engine.Predictions, cache, cfg.DashboardCacheTTL, logger)

	engine.Registry = jobs.NewRegistry(jobs.Services{
		Predictions:   engine.Predictions,
		Risk:          engine.Risk,
		Forecasts:     engine.Forecasts,
		Interventions: engine.Interventions,
		Optimizer:     engine.Optimizer,
		Dashboard:     engine.Dashboard,
		Targets:       signalRepo,
	}, jobs.Settings{
		AccuracyAlertLevel:   cfg.AccuracyAlertLevel,
		RetrainingMinSamples: cfg.RetrainingMinSamples,
	}, logger)

	return engine, nil
}

// NewInferenceGateway selects the inference provider. The "none" provider leaves
// every request to the statistical fallback.
func NewInferenceGateway(cfg config.Config, logger zerolog.Logger) (*inference.Gateway, error) {
	var provider inference.Provider

	switch cfg.InferenceProvider {
	case config.InferenceProviderHTTP:
		if cfg.InferenceURL == "" {
			logger.Warn().Msg("inference url not configured, using statistical fallback")
			break
		}
		httpProvider, err := inference.NewHTTPProvider(inference.HTTPConfig{
			BaseURL:      cfg.InferenceURL,
			Token:        cfg.InferenceToken,
			ModelVersion: cfg.ModelVersion,
			Timeout:      cfg.InferenceTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("build inference client: %w", err)
		}
		provider = httpProvider
	case config.InferenceProviderOpenAI:
		openAIProvider, err := inference.NewOpenAIProvider(inference.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
		})
		if err != nil {
			return nil, fmt.Errorf("build openai provider: %w", err)
		}
		provider = openAIProvider
	}

	return inference.NewGateway(provider, cfg.InferenceTimeout, logger), nil
}
