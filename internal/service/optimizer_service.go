package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
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
)

var (
	// ErrOptimizationNotFound indicates the optimization does not exist.
	ErrOptimizationNotFound = errors.New("optimization not found")
	// ErrOptimizationAlreadyImplemented rejects implementing twice.
	ErrOptimizationAlreadyImplemented = errors.New("optimization already implemented")
	// ErrOptimizationNotImplemented rejects validating before implementation.
	ErrOptimizationNotImplemented = errors.New("optimization has not been implemented")
	// ErrUnsupportedResourceType indicates an unknown resource type.
	ErrUnsupportedResourceType = errors.New("unsupported resource type")
)

// OptimizerService analyses resource efficiency and tracks implemented recommendations.
type OptimizerService interface {
	Analyze(ctx context.Context, payload dto.OptimizationCreateRequest) (models.ResourceOptimization, error)
	Get(ctx context.Context, id uint) (models.ResourceOptimization, error)
	List(ctx context.Context, filter repository.OptimizationFilter) ([]models.ResourceOptimization, dto.PageMeta, error)
	Implement(ctx context.Context, id uint, payload dto.OptimizationImplementRequest) (models.ResourceOptimization, error)
	Validate(ctx context.Context, id uint) (models.ResourceOptimization, error)
	ActiveResources(ctx context.Context) ([]repository.ResourceRef, error)
}

type optimizerService struct {
	optimizations repository.OptimizationRepository
	usage         repository.ResourceUsageRepository
	validator     *validator.Validate
	sanitizer     *bluemonday.Policy
	logger        zerolog.Logger
	now           func() time.Time
}

// NewOptimizerService wires the resource optimizer.
func NewOptimizerService(optimizations repository.OptimizationRepository, usage repository.ResourceUsageRepository, validate *validator.Validate, logger zerolog.Logger) OptimizerService {
	return &optimizerService{
		optimizations: optimizations,
		usage:         usage,
		validator:     validate,
		sanitizer:     bluemonday.StrictPolicy(),
		logger:        logger.With().Str("component", "optimizer_service").Logger(),
		now:           time.Now,
	}
}

func (s *optimizerService) Analyze(ctx context.Context, payload dto.OptimizationCreateRequest) (models.ResourceOptimization, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-analytics-api/internal/service/optimizer")
	ctx, span := tracer.Start(ctx, "optimizer.analyze")
	span.SetAttributes(
		attribute.String("optimizer.resource_type", payload.ResourceType),
		attribute.Int64("optimizer.resource_id", int64(payload.ResourceID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return models.ResourceOptimization{}, err
	}

	resourceType := models.ResourceType(payload.ResourceType)
	if !resourceType.Valid() {
		return models.ResourceOptimization{}, ErrUnsupportedResourceType
	}

	now := s.now().UTC()
	usage, err := s.snapshot(ctx, resourceType, payload.ResourceID, now.AddDate(0, 0, -analytics.UsageWindowDays), now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot_failed")
		return models.ResourceOptimization{}, err
	}

	plan := analytics.PlanOptimization(resourceType, usage)
	outcomes := plan.Outcomes

	optimization := models.ResourceOptimization{
		ResourceType:          resourceType,
		ResourceID:            payload.ResourceID,
		OptimizationDate:      now,
		CurrentEfficiency:     plan.CurrentEfficiency,
		PredictedEfficiency:   plan.PredictedEfficiency,
		CurrentUsage:          datatypes.NewJSONType(usage),
		Recommendations:       datatypes.NewJSONType(plan.Actions),
		PredictedOutcomes:     datatypes.NewJSONType(&outcomes),
		ImplementationResults: datatypes.NewJSONType[*models.ImplementationResults](nil),
	}

	if err := s.optimizations.Create(ctx, &optimization); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist_failed")
		return models.ResourceOptimization{}, fmt.Errorf("persist optimization: %w", err)
	}

	s.logger.Info().
		Uint("optimization_id", optimization.ID).
		Str("resource_type", string(resourceType)).
		Uint("resource_id", payload.ResourceID).
		Float64("current_efficiency", plan.CurrentEfficiency).
		Float64("predicted_efficiency", plan.PredictedEfficiency).
		Int("actions", len(plan.Actions)).
		Msg("resource optimization analysed")

	return optimization, nil
}

func (s *optimizerService) snapshot(ctx context.Context, resourceType models.ResourceType, resourceID uint, from, to time.Time) (models.UsageSnapshot, error) {
	samples, err := s.usage.ListSamples(ctx, resourceType, resourceID, from, to)
	if err != nil {
		return models.UsageSnapshot{}, fmt.Errorf("load usage samples: %w", err)
	}
	return analytics.SummarizeUsage(samples, to), nil
}

func (s *optimizerService) Get(ctx context.Context, id uint) (models.ResourceOptimization, error) {
	optimization, err := s.optimizations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ResourceOptimization{}, ErrOptimizationNotFound
		}
		return models.ResourceOptimization{}, err
	}
	return optimization, nil
}

func (s *optimizerService) List(ctx context.Context, filter repository.OptimizationFilter) ([]models.ResourceOptimization, dto.PageMeta, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	items, total, err := s.optimizations.List(ctx, filter)
	if err != nil {
		return nil, dto.PageMeta{}, err
	}
	return items, dto.NewPageMeta(filter.Page, filter.PageSize, total), nil
}

func (s *optimizerService) Implement(ctx context.Context, id uint, payload dto.OptimizationImplementRequest) (models.ResourceOptimization, error) {
	if err := s.validator.Struct(payload); err != nil {
		return models.ResourceOptimization{}, err
	}

	optimization, err := s.Get(ctx, id)
	if err != nil {
		return models.ResourceOptimization{}, err
	}
	if optimization.IsImplemented {
		return models.ResourceOptimization{}, ErrOptimizationAlreadyImplemented
	}

	now := s.now().UTC()
	optimization.IsImplemented = true
	optimization.ImplementedAt = &now
	optimization.ImplementationNotes = strings.TrimSpace(s.sanitizer.Sanitize(payload.Notes))

	if err := s.optimizations.Update(ctx, &optimization); err != nil {
		return models.ResourceOptimization{}, fmt.Errorf("update optimization: %w", err)
	}
	return optimization, nil
}

// Validate re-snapshots usage since implementation and records the realized efficiency.
func (s *optimizerService) Validate(ctx context.Context, id uint) (models.ResourceOptimization, error) {
	optimization, err := s.Get(ctx, id)
	if err != nil {
		return models.ResourceOptimization{}, err
	}
	if !optimization.IsImplemented || optimization.ImplementedAt == nil {
		return models.ResourceOptimization{}, ErrOptimizationNotImplemented
	}

	now := s.now().UTC()
	after, err := s.snapshot(ctx, optimization.ResourceType, optimization.ResourceID, *optimization.ImplementedAt, now)
	if err != nil {
		return models.ResourceOptimization{}, err
	}

	actual := analytics.Efficiency(optimization.ResourceType, after)
	results := analytics.EvaluateImplementation(
		optimization.CurrentEfficiency,
		optimization.PredictedEfficiency,
		actual,
		optimization.CurrentUsage.Data(),
		after,
		now,
	)

	optimization.ActualEfficiency = &actual
	optimization.ImplementationResults = datatypes.NewJSONType(&results)
	if err := s.optimizations.Update(ctx, &optimization); err != nil {
		return models.ResourceOptimization{}, fmt.Errorf("update optimization: %w", err)
	}

	s.logger.Info().
		Uint("optimization_id", optimization.ID).
		Float64("actual_efficiency", actual).
		Float64("success_rate", results.SuccessRate).
		Msg("resource optimization validated")

	return optimization, nil
}

func (s *optimizerService) ActiveResources(ctx context.Context) ([]repository.ResourceRef, error) {
	return s.usage.ActiveResources(ctx, s.now().UTC().AddDate(0, 0, -analytics.UsageWindowDays))
}
