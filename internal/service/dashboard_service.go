package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-analytics-api/internal/analytics"
	"github.com/noah-isme/gema-analytics-api/internal/dto"
	"github.com/noah-isme/gema-analytics-api/internal/models"
	"github.com/noah-isme/gema-analytics-api/internal/observability"
	"github.com/noah-isme/gema-analytics-api/internal/repository"
)

const (
	dashboardHistoryLimit  = 10
	dashboardListLimit     = 5
	instructorWindowDays   = 7
	instructorElevatedSize = 50
)

// DashboardService composes read-only predictive dashboards.
type DashboardService interface {
	StudentDashboard(ctx context.Context, studentID uint) (dto.StudentDashboardResponse, error)
	InstructorDashboard(ctx context.Context, instructorID uint) (dto.InstructorDashboardResponse, error)
	Invalidate(ctx context.Context, studentID uint)
}

type dashboardService struct {
	predictions   repository.PredictionRepository
	assessments   repository.RiskAssessmentRepository
	forecasts     repository.ForecastRepository
	interventions repository.InterventionRepository
	signals       repository.LearningSignalRepository
	accuracy      PredictionService
	cache         *redis.Client
	cacheTTL      time.Duration
	logger        zerolog.Logger
	now           func() time.Time
}

// DashboardRepositories groups the stores a dashboard reads from.
type DashboardRepositories struct {
	Predictions   repository.PredictionRepository
	Assessments   repository.RiskAssessmentRepository
	Forecasts     repository.ForecastRepository
	Interventions repository.InterventionRepository
	Signals       repository.LearningSignalRepository
}

// NewDashboardService builds the dashboard composer. A nil cache disables caching.
func NewDashboardService(repos DashboardRepositories, accuracy PredictionService, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) DashboardService {
	return &dashboardService{
		predictions:   repos.Predictions,
		assessments:   repos.Assessments,
		forecasts:     repos.Forecasts,
		interventions: repos.Interventions,
		signals:       repos.Signals,
		accuracy:      accuracy,
		cache:         cache,
		cacheTTL:      ttl,
		logger:        logger.With().Str("component", "dashboard_service").Logger(),
		now:           time.Now,
	}
}

func studentDashboardKey(studentID uint) string {
	return fmt.Sprintf("analytics:dashboard:student:%d", studentID)
}

func instructorDashboardKey(instructorID uint) string {
	return fmt.Sprintf("analytics:dashboard:instructor:%d", instructorID)
}

func (s *dashboardService) StudentDashboard(ctx context.Context, studentID uint) (dto.StudentDashboardResponse, error) {
	cacheKey := studentDashboardKey(studentID)
	tracer := otel.Tracer("github.com/noah-isme/gema-analytics-api/internal/service/dashboard")
	ctx, span := tracer.Start(ctx, "dashboard.student")
	span.SetAttributes(attribute.String("dashboard.cache_key", cacheKey))
	defer span.End()

	var response dto.StudentDashboardResponse
	if s.readCache(ctx, cacheKey, &response) {
		response.CacheHit = true
		span.SetAttributes(attribute.Bool("dashboard.cache_hit", true))
		return response, nil
	}

	now := s.now().UTC()
	response = dto.StudentDashboardResponse{StudentID: studentID, GeneratedAt: now}
	openStatuses := models.OpenInterventionStatuses
	notRealized := false

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		snapshot, err := loadSnapshot(groupCtx, s.signals, studentID, nil, analytics.RiskWindowDays, now)
		if err != nil {
			return err
		}
		response.Signals = snapshot.Features()
		return nil
	})
	group.Go(func() error {
		assessment, err := s.assessments.Latest(groupCtx, studentID, repository.AllCourses())
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("latest assessment: %w", err)
		}
		response.LatestAssessment = &assessment
		return nil
	})
	group.Go(func() error {
		history, err := s.predictions.History(groupCtx, studentID, repository.AllCourses(), models.PredictionTypePerformance, dashboardHistoryLimit)
		if err != nil {
			return fmt.Errorf("prediction history: %w", err)
		}
		response.RecentPredictions = history
		response.PerformanceTrend = analytics.AnalyzeTrend(latestCourseSeries(history))
		return nil
	})
	group.Go(func() error {
		forecasts, _, err := s.forecasts.List(groupCtx, repository.ForecastFilter{StudentID: &studentID, Realized: &notRealized, PageSize: dashboardListLimit})
		if err != nil {
			return fmt.Errorf("active forecasts: %w", err)
		}
		response.ActiveForecasts = forecasts
		return nil
	})
	group.Go(func() error {
		interventions, _, err := s.interventions.List(groupCtx, repository.InterventionFilter{StudentID: &studentID, Statuses: openStatuses, PageSize: dashboardListLimit})
		if err != nil {
			return fmt.Errorf("open interventions: %w", err)
		}
		response.OpenInterventions = interventions
		return nil
	})

	if err := group.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "compose_failed")
		return dto.StudentDashboardResponse{}, err
	}

	s.writeCache(ctx, cacheKey, response)
	return response, nil
}

func (s *dashboardService) InstructorDashboard(ctx context.Context, instructorID uint) (dto.InstructorDashboardResponse, error) {
	cacheKey := instructorDashboardKey(instructorID)
	tracer := otel.Tracer("github.com/noah-isme/gema-analytics-api/internal/service/dashboard")
	ctx, span := tracer.Start(ctx, "dashboard.instructor")
	span.SetAttributes(attribute.String("dashboard.cache_key", cacheKey))
	defer span.End()

	var response dto.InstructorDashboardResponse
	if s.readCache(ctx, cacheKey, &response) {
		response.CacheHit = true
		span.SetAttributes(attribute.Bool("dashboard.cache_hit", true))
		return response, nil
	}

	now := s.now().UTC()
	since := now.AddDate(0, 0, -instructorWindowDays)
	response = dto.InstructorDashboardResponse{
		InstructorID:       instructorID,
		WindowDays:         instructorWindowDays,
		RiskDistribution:   map[string]int64{},
		InterventionStatus: map[string]int64{},
		GeneratedAt:        now,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		counts, err := s.assessments.CountByLevelSince(groupCtx, since)
		if err != nil {
			return fmt.Errorf("risk distribution: %w", err)
		}
		for _, count := range counts {
			response.RiskDistribution[string(count.RiskLevel)] = count.Total
		}
		return nil
	})
	group.Go(func() error {
		elevated, err := s.assessments.ListByLevelsSince(groupCtx, []models.RiskLevel{models.RiskLevelHigh, models.RiskLevelVeryHigh}, since)
		if err != nil {
			return fmt.Errorf("elevated students: %w", err)
		}
		if len(elevated) > instructorElevatedSize {
			elevated = elevated[:instructorElevatedSize]
		}
		response.ElevatedStudents = elevated
		return nil
	})
	group.Go(func() error {
		assigned, _, err := s.interventions.List(groupCtx, repository.InterventionFilter{AssignedToID: &instructorID, Statuses: models.OpenInterventionStatuses})
		if err != nil {
			return fmt.Errorf("assigned interventions: %w", err)
		}
		response.AssignedInterventions = assigned
		return nil
	})
	group.Go(func() error {
		counts, err := s.interventions.CountByStatus(groupCtx, repository.InterventionFilter{AssignedToID: &instructorID})
		if err != nil {
			return fmt.Errorf("intervention status: %w", err)
		}
		for _, count := range counts {
			response.InterventionStatus[string(count.Status)] = count.Total
		}
		return nil
	})
	group.Go(func() error {
		summaries, err := s.accuracy.AccuracySummary(groupCtx, since)
		if err != nil {
			return fmt.Errorf("model accuracy: %w", err)
		}
		response.ModelAccuracy = summaries
		return nil
	})
	group.Go(func() error {
		total, err := s.predictions.CountSince(groupCtx, since)
		if err != nil {
			return fmt.Errorf("prediction count: %w", err)
		}
		response.PredictionsGenerated = total
		return nil
	})

	if err := group.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "compose_failed")
		return dto.InstructorDashboardResponse{}, err
	}

	s.writeCache(ctx, cacheKey, response)
	return response, nil
}

// Invalidate drops the cached dashboard of a student after new analytics were written.
func (s *dashboardService) Invalidate(ctx context.Context, studentID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, studentDashboardKey(studentID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to invalidate dashboard cache")
	}
}

func (s *dashboardService) readCache(ctx context.Context, key string, target interface{}) bool {
	if s.cache == nil {
		return false
	}
	cached, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn().Err(err).Str("cache_key", key).Msg("failed to read dashboard cache")
		}
		observability.DashboardCache().WithLabelValues("miss").Inc()
		return false
	}
	if err := json.Unmarshal([]byte(cached), target); err != nil {
		observability.DashboardCache().WithLabelValues("miss").Inc()
		return false
	}
	observability.DashboardCache().WithLabelValues("hit").Inc()
	return true
}

func (s *dashboardService) writeCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("failed to store dashboard cache")
	}
}

// latestCourseSeries keeps the values of the course the newest prediction belongs to, so a
// trend is never fitted across courses.
func latestCourseSeries(history []models.PerformancePrediction) []float64 {
	if len(history) == 0 {
		return nil
	}
	course := history[len(history)-1].CourseID
	values := make([]float64, 0, len(history))
	for _, prediction := range history {
		if sameCourse(prediction.CourseID, course) {
			values = append(values, prediction.PredictedValue)
		}
	}
	return values
}

func sameCourse(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
