package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-analytics-api/internal/analytics"
	"github.com/noah-isme/gema-analytics-api/internal/dto"
	"github.com/noah-isme/gema-analytics-api/internal/models"
	"github.com/noah-isme/gema-analytics-api/internal/repository"
	"github.com/noah-isme/gema-analytics-api/pkg/inference"
)

var (
	// ErrForecastNotFound indicates the forecast does not exist.
	ErrForecastNotFound = errors.New("forecast not found")
	// ErrForecastAlreadyRealized rejects a second validation.
	ErrForecastAlreadyRealized = errors.New("forecast already realized")
	// ErrForecastNotDue rejects validating before the target date without a completion date.
	ErrForecastNotDue = errors.New("forecast target date has not passed")
	// ErrForecastTargetInPast rejects forecasts whose target date is not in the future.
	ErrForecastTargetInPast = errors.New("forecast target date must be in the future")
	// ErrUnsupportedOutcomeType indicates an unknown outcome type.
	ErrUnsupportedOutcomeType = errors.New("unsupported outcome type")
)

// ForecastService produces scenario forecasts and reconciles them with realized outcomes.
type ForecastService interface {
	Generate(ctx context.Context, payload dto.ForecastCreateRequest) (models.LearningOutcomeForecast, error)
	Get(ctx context.Context, id uint) (models.LearningOutcomeForecast, error)
	List(ctx context.Context, filter repository.ForecastFilter) ([]models.LearningOutcomeForecast, dto.PageMeta, error)
	Validate(ctx context.Context, id uint, payload dto.ForecastValidateRequest) (models.LearningOutcomeForecast, error)
	ListDue(ctx context.Context, limit int) ([]models.LearningOutcomeForecast, error)
	Reconcile(ctx context.Context, forecast models.LearningOutcomeForecast) (bool, error)
}

type forecastService struct {
	forecasts repository.ForecastRepository
	signals   repository.LearningSignalRepository
	outcomes  repository.OutcomeRepository
	gateway   InferenceGateway
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewForecastService wires the forecast engine.
func NewForecastService(forecasts repository.ForecastRepository, signals repository.LearningSignalRepository, outcomes repository.OutcomeRepository, gateway InferenceGateway, validate *validator.Validate, logger zerolog.Logger) ForecastService {
	return &forecastService{
		forecasts: forecasts,
		signals:   signals,
		outcomes:  outcomes,
		gateway:   gateway,
		validator: validate,
		logger:    logger.With().Str("component", "forecast_service").Logger(),
		now:       time.Now,
	}
}

func (s *forecastService) Generate(ctx context.Context, payload dto.ForecastCreateRequest) (models.LearningOutcomeForecast, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-analytics-api/internal/service/forecast")
	ctx, span := tracer.Start(ctx, "forecast.generate")
	span.SetAttributes(
		attribute.Int64("forecast.student_id", int64(payload.StudentID)),
		attribute.String("forecast.outcome_type", payload.OutcomeType),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return models.LearningOutcomeForecast{}, err
	}

	outcome := models.OutcomeType(payload.OutcomeType)
	profile, ok := analytics.ProfileFor(outcome)
	if !ok {
		return models.LearningOutcomeForecast{}, ErrUnsupportedOutcomeType
	}

	now := s.now().UTC()
	target := payload.TargetDate.UTC()
	if !target.After(now) {
		return models.LearningOutcomeForecast{}, ErrForecastTargetInPast
	}

	snapshot, err := loadSnapshot(ctx, s.signals, payload.StudentID, payload.CourseID, analytics.ForecastWindowDays, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot_failed")
		return models.LearningOutcomeForecast{}, err
	}

	result := s.gateway.Forecast(ctx, inference.ForecastRequest{
		LearningData:      learningData(snapshot, payload.StudentID, payload.CourseID),
		OutcomeType:       string(outcome),
		TargetDate:        target,
		EngagementWeight:  profile.EngagementWeight,
		PerformanceWeight: profile.PerformanceWeight,
	})

	realistic := analytics.Round2(result.SuccessProbability)
	daysToTarget := analytics.DaysUntil(now, target)

	confidence := result.ConfidenceLevel
	if result.ModelVersion == models.FallbackModelVersion {
		confidence = analytics.ForecastConfidence(snapshot)
	}

	forecast := models.LearningOutcomeForecast{
		StudentID:          payload.StudentID,
		CourseID:           payload.CourseID,
		OutcomeType:        outcome,
		ForecastDate:       now,
		TargetDate:         target,
		SuccessProbability: realistic,
		Scenarios:          datatypes.NewJSONType(analytics.BuildScenarios(outcome, realistic, daysToTarget)),
		ConfidenceLevel:    analytics.Round2(confidence),
		ModelVersion:       result.ModelVersion,
		AccuracyMetrics:    datatypes.NewJSONType[*models.ForecastAccuracy](nil),
	}

	if profile.EstimatesScore {
		score := analytics.EstimateScore(snapshot, realistic)
		if result.PredictedScore != nil {
			score = analytics.Round2(*result.PredictedScore)
		}
		forecast.PredictedScore = &score
	}
	if profile.EstimatesDuration {
		days := analytics.EstimateDaysToCompletion(realistic, daysToTarget)
		forecast.EstimatedDaysToCompletion = &days
	}

	if err := s.forecasts.Create(ctx, &forecast); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist_failed")
		return models.LearningOutcomeForecast{}, fmt.Errorf("persist forecast: %w", err)
	}

	s.logger.Info().
		Uint("forecast_id", forecast.ID).
		Uint("student_id", forecast.StudentID).
		Str("outcome_type", string(outcome)).
		Float64("success_probability", realistic).
		Str("model_version", forecast.ModelVersion).
		Msg("forecast generated")

	return forecast, nil
}

func (s *forecastService) Get(ctx context.Context, id uint) (models.LearningOutcomeForecast, error) {
	forecast, err := s.forecasts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.LearningOutcomeForecast{}, ErrForecastNotFound
		}
		return models.LearningOutcomeForecast{}, err
	}
	return forecast, nil
}

func (s *forecastService) List(ctx context.Context, filter repository.ForecastFilter) ([]models.LearningOutcomeForecast, dto.PageMeta, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	items, total, err := s.forecasts.List(ctx, filter)
	if err != nil {
		return nil, dto.PageMeta{}, err
	}
	return items, dto.NewPageMeta(filter.Page, filter.PageSize, total), nil
}

func (s *forecastService) Validate(ctx context.Context, id uint, payload dto.ForecastValidateRequest) (models.LearningOutcomeForecast, error) {
	if err := s.validator.Struct(payload); err != nil {
		return models.LearningOutcomeForecast{}, err
	}

	forecast, err := s.Get(ctx, id)
	if err != nil {
		return models.LearningOutcomeForecast{}, err
	}
	if forecast.IsRealized {
		return models.LearningOutcomeForecast{}, ErrForecastAlreadyRealized
	}

	now := s.now().UTC()
	if payload.ActualCompletionDate == nil && !forecast.IsDue(now) {
		return models.LearningOutcomeForecast{}, ErrForecastNotDue
	}

	if err := s.realize(ctx, &forecast, *payload.ActualOutcome, payload.ActualCompletionDate, now); err != nil {
		return models.LearningOutcomeForecast{}, err
	}
	return forecast, nil
}

func (s *forecastService) realize(ctx context.Context, forecast *models.LearningOutcomeForecast, actual float64, completedAt *time.Time, now time.Time) error {
	accuracy := analytics.ForecastAccuracy(forecast.SuccessProbability, actual, forecast.TargetDate, completedAt, now)

	forecast.IsRealized = true
	forecast.ActualOutcome = &actual
	forecast.ActualCompletionDate = completedAt
	forecast.AccuracyMetrics = datatypes.NewJSONType(&accuracy)

	if err := s.forecasts.Update(ctx, forecast); err != nil {
		return fmt.Errorf("update forecast: %w", err)
	}

	s.logger.Info().
		Uint("forecast_id", forecast.ID).
		Float64("overall_accuracy", accuracy.OverallAccuracy).
		Msg("forecast realized")
	return nil
}

func (s *forecastService) ListDue(ctx context.Context, limit int) ([]models.LearningOutcomeForecast, error) {
	return s.forecasts.ListDue(ctx, s.now().UTC(), limit)
}

// Reconcile realizes a due forecast from the outcome recorded by the learning platform.
// It reports false when no outcome exists yet.
func (s *forecastService) Reconcile(ctx context.Context, forecast models.LearningOutcomeForecast) (bool, error) {
	if forecast.IsRealized {
		return false, nil
	}

	outcome, err := s.outcomes.Latest(ctx, forecast.StudentID, forecast.CourseID, string(forecast.OutcomeType), forecast.ForecastDate)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup outcome: %w", err)
	}

	if err := s.realize(ctx, &forecast, outcome.Value, outcome.CompletedAt, s.now().UTC()); err != nil {
		return false, err
	}
	return true, nil
}
