package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
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
	"github.com/noah-isme/gema-analytics-api/internal/observability"
	"github.com/noah-isme/gema-analytics-api/internal/repository"
	"github.com/noah-isme/gema-analytics-api/pkg/inference"
)

var (
	// ErrPredictionNotFound indicates the prediction does not exist.
	ErrPredictionNotFound = errors.New("prediction not found")
	// ErrPredictionAlreadyValidated rejects a second validation without the correction flag.
	ErrPredictionAlreadyValidated = errors.New("prediction already validated")
	// ErrUnsupportedPredictionType indicates an unknown prediction type.
	ErrUnsupportedPredictionType = errors.New("unsupported prediction type")
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// PredictionService generates, validates and reports on performance predictions.
type PredictionService interface {
	Generate(ctx context.Context, payload dto.PredictionCreateRequest) (models.PerformancePrediction, error)
	Get(ctx context.Context, id uint) (models.PerformancePrediction, error)
	List(ctx context.Context, filter repository.PredictionFilter) ([]models.PerformancePrediction, dto.PageMeta, error)
	Validate(ctx context.Context, id uint, payload dto.PredictionValidateRequest) (models.PerformancePrediction, error)
	History(ctx context.Context, studentID uint, scope repository.CourseScope, predictionType models.PredictionType, limit int) (dto.PredictionHistoryResponse, error)
	AccuracySummary(ctx context.Context, since time.Time) ([]dto.AccuracySummary, error)
	ListDue(ctx context.Context, limit int) ([]models.PerformancePrediction, error)
	Reconcile(ctx context.Context, prediction models.PerformancePrediction) (bool, error)
}

type predictionService struct {
	predictions repository.PredictionRepository
	signals     repository.LearningSignalRepository
	outcomes    repository.OutcomeRepository
	gateway     InferenceGateway
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewPredictionService wires the prediction engine.
func NewPredictionService(predictions repository.PredictionRepository, signals repository.LearningSignalRepository, outcomes repository.OutcomeRepository, gateway InferenceGateway, validate *validator.Validate, logger zerolog.Logger) PredictionService {
	return &predictionService{
		predictions: predictions,
		signals:     signals,
		outcomes:    outcomes,
		gateway:     gateway,
		validator:   validate,
		logger:      logger.With().Str("component", "prediction_service").Logger(),
		now:         time.Now,
	}
}

func (s *predictionService) Generate(ctx context.Context, payload dto.PredictionCreateRequest) (models.PerformancePrediction, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-analytics-api/internal/service/prediction")
	ctx, span := tracer.Start(ctx, "prediction.generate")
	span.SetAttributes(
		attribute.Int64("prediction.student_id", int64(payload.StudentID)),
		attribute.String("prediction.type", payload.PredictionType),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return models.PerformancePrediction{}, err
	}

	predictionType := models.PredictionType(payload.PredictionType)
	if !predictionType.Valid() {
		return models.PerformancePrediction{}, ErrUnsupportedPredictionType
	}

	now := s.now().UTC()
	snapshot, err := loadSnapshot(ctx, s.signals, payload.StudentID, payload.CourseID, PredictionWindowDays, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot_failed")
		return models.PerformancePrediction{}, err
	}

	targetDate := payload.TargetDate
	if targetDate == nil {
		defaultTarget := now.AddDate(0, 0, PredictionWindowDays)
		targetDate = &defaultTarget
	}

	result := s.gateway.Predict(ctx, inference.PredictionRequest{
		LearningData:   learningData(snapshot, payload.StudentID, payload.CourseID),
		PredictionType: string(predictionType),
		TargetDate:     targetDate,
	})

	prediction := models.PerformancePrediction{
		StudentID:       payload.StudentID,
		CourseID:        payload.CourseID,
		PredictionType:  predictionType,
		PredictionDate:  now,
		TargetDate:      targetDate,
		PredictedValue:  analytics.Round2(result.PredictedValue),
		ConfidenceScore: analytics.Round2(result.ConfidenceScore),
		RiskLevel:       predictionRiskLevel(predictionType, result),
		ContributingFactors: datatypes.NewJSONType(models.ContributingFactors{
			Engagement:  result.ContributingFactors.Engagement,
			Performance: result.ContributingFactors.Performance,
			Activity:    result.ContributingFactors.Activity,
			Consistency: result.ContributingFactors.Consistency,
		}),
		Features:     datatypes.NewJSONType(snapshot.Features()),
		ModelVersion: result.ModelVersion,
	}

	if err := s.predictions.Create(ctx, &prediction); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist_failed")
		return models.PerformancePrediction{}, fmt.Errorf("persist prediction: %w", err)
	}

	observability.Predictions().WithLabelValues(string(predictionType), modelSource(prediction.ModelVersion)).Inc()
	span.SetAttributes(
		attribute.Float64("prediction.value", prediction.PredictedValue),
		attribute.String("prediction.model_version", prediction.ModelVersion),
	)
	s.logger.Info().
		Uint("prediction_id", prediction.ID).
		Uint("student_id", prediction.StudentID).
		Str("prediction_type", string(predictionType)).
		Str("model_version", prediction.ModelVersion).
		Float64("predicted_value", prediction.PredictedValue).
		Msg("prediction generated")

	return prediction, nil
}

func (s *predictionService) Get(ctx context.Context, id uint) (models.PerformancePrediction, error) {
	prediction, err := s.predictions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.PerformancePrediction{}, ErrPredictionNotFound
		}
		return models.PerformancePrediction{}, err
	}
	return prediction, nil
}

func (s *predictionService) List(ctx context.Context, filter repository.PredictionFilter) ([]models.PerformancePrediction, dto.PageMeta, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	items, total, err := s.predictions.List(ctx, filter)
	if err != nil {
		return nil, dto.PageMeta{}, err
	}
	return items, dto.NewPageMeta(filter.Page, filter.PageSize, total), nil
}

func (s *predictionService) Validate(ctx context.Context, id uint, payload dto.PredictionValidateRequest) (models.PerformancePrediction, error) {
	if err := s.validator.Struct(payload); err != nil {
		return models.PerformancePrediction{}, err
	}

	prediction, err := s.Get(ctx, id)
	if err != nil {
		return models.PerformancePrediction{}, err
	}
	if prediction.IsValidated && !payload.Correction {
		return models.PerformancePrediction{}, ErrPredictionAlreadyValidated
	}

	s.applyValidation(&prediction, *payload.ActualValue)
	if err := s.predictions.Update(ctx, &prediction); err != nil {
		return models.PerformancePrediction{}, fmt.Errorf("update prediction: %w", err)
	}

	s.logger.Info().
		Uint("prediction_id", prediction.ID).
		Float64("accuracy", *prediction.AccuracyScore).
		Bool("correction", payload.Correction).
		Msg("prediction validated")

	return prediction, nil
}

func (s *predictionService) applyValidation(prediction *models.PerformancePrediction, actual float64) {
	validatedAt := s.now().UTC()
	accuracy := analytics.PredictionAccuracy(prediction.PredictedValue, actual)
	prediction.ActualValue = &actual
	prediction.AccuracyScore = &accuracy
	prediction.IsValidated = true
	prediction.ValidatedAt = &validatedAt
}

func (s *predictionService) History(ctx context.Context, studentID uint, scope repository.CourseScope, predictionType models.PredictionType, limit int) (dto.PredictionHistoryResponse, error) {
	if !predictionType.Valid() {
		return dto.PredictionHistoryResponse{}, ErrUnsupportedPredictionType
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	predictions, err := s.predictions.History(ctx, studentID, scope, predictionType, limit)
	if err != nil {
		return dto.PredictionHistoryResponse{}, err
	}

	points := make([]dto.PredictionHistoryPoint, 0, len(predictions))
	values := make([]float64, 0, len(predictions))
	for _, prediction := range predictions {
		points = append(points, dto.PredictionHistoryPoint{
			PredictionID:   prediction.ID,
			PredictionDate: prediction.PredictionDate,
			PredictedValue: prediction.PredictedValue,
			ActualValue:    prediction.ActualValue,
			ModelVersion:   prediction.ModelVersion,
		})
		values = append(values, prediction.PredictedValue)
	}

	return dto.PredictionHistoryResponse{
		StudentID:      studentID,
		PredictionType: string(predictionType),
		Points:         points,
		Trend:          analytics.AnalyzeTrend(values),
	}, nil
}

func (s *predictionService) AccuracySummary(ctx context.Context, since time.Time) ([]dto.AccuracySummary, error) {
	validated, err := s.predictions.ListValidatedSince(ctx, since)
	if err != nil {
		return nil, err
	}

	type key struct {
		version        string
		predictionType models.PredictionType
	}
	stats := map[key]*analytics.AccuracyStats{}
	for _, prediction := range validated {
		if prediction.ActualValue == nil || prediction.AccuracyScore == nil {
			continue
		}
		k := key{version: prediction.ModelVersion, predictionType: prediction.PredictionType}
		if stats[k] == nil {
			stats[k] = &analytics.AccuracyStats{}
		}
		stats[k].Add(prediction.PredictedValue, *prediction.ActualValue, *prediction.AccuracyScore)
	}

	summaries := make([]dto.AccuracySummary, 0, len(stats))
	for k, stat := range stats {
		summaries = append(summaries, dto.AccuracySummary{
			ModelVersion:      k.version,
			PredictionType:    string(k.predictionType),
			Count:             stat.Count,
			AverageAccuracy:   stat.AverageAccuracy(),
			MeanAbsoluteError: stat.MeanAbsoluteError(),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].ModelVersion != summaries[j].ModelVersion {
			return summaries[i].ModelVersion < summaries[j].ModelVersion
		}
		return summaries[i].PredictionType < summaries[j].PredictionType
	})

	return summaries, nil
}

func (s *predictionService) ListDue(ctx context.Context, limit int) ([]models.PerformancePrediction, error) {
	return s.predictions.ListDueForValidation(ctx, s.now().UTC(), limit)
}

// Reconcile validates a due prediction against the realized outcome recorded by the
// learning platform. It reports false when no outcome has been recorded yet.
func (s *predictionService) Reconcile(ctx context.Context, prediction models.PerformancePrediction) (bool, error) {
	if prediction.IsValidated {
		return false, nil
	}

	outcome, err := s.outcomes.Latest(ctx, prediction.StudentID, prediction.CourseID, string(prediction.PredictionType), prediction.PredictionDate)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup outcome: %w", err)
	}

	s.applyValidation(&prediction, outcome.Value)
	if err := s.predictions.Update(ctx, &prediction); err != nil {
		return false, fmt.Errorf("update prediction: %w", err)
	}
	return true, nil
}

func predictionRiskLevel(predictionType models.PredictionType, result inference.Prediction) models.RiskLevel {
	level := models.RiskLevel(result.RiskLevel)
	if level.Valid() {
		return level
	}
	riskScore := 100 - result.PredictedValue
	if predictionType == models.PredictionTypeDropoutRisk {
		riskScore = result.PredictedValue
	}
	return analytics.ClassifyRiskLevel(riskScore)
}
