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
	"github.com/noah-isme/gema-analytics-api/internal/observability"
	"github.com/noah-isme/gema-analytics-api/internal/repository"
)

// ErrRiskAssessmentNotFound indicates the assessment does not exist.
var ErrRiskAssessmentNotFound = errors.New("risk assessment not found")

// riskTrendHistory is how many earlier assessments feed the trend of a new one.
const riskTrendHistory = 9

// RiskAssessmentService scores dropout risk from the trailing learning signal.
type RiskAssessmentService interface {
	Assess(ctx context.Context, payload dto.RiskAssessmentRequest) (models.DropoutRiskAssessment, error)
	Get(ctx context.Context, id uint) (models.DropoutRiskAssessment, error)
	Latest(ctx context.Context, studentID uint, courseID *uint) (models.DropoutRiskAssessment, error)
	ListElevatedSince(ctx context.Context, since time.Time) ([]models.DropoutRiskAssessment, error)
	MarkNotified(ctx context.Context, id uint, student, instructor bool) error
}

type riskAssessmentService struct {
	assessments repository.RiskAssessmentRepository
	signals     repository.LearningSignalRepository
	weights     analytics.RiskWeights
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewRiskAssessmentService wires the dropout risk engine with the production weights.
func NewRiskAssessmentService(assessments repository.RiskAssessmentRepository, signals repository.LearningSignalRepository, validate *validator.Validate, logger zerolog.Logger) RiskAssessmentService {
	return &riskAssessmentService{
		assessments: assessments,
		signals:     signals,
		weights:     analytics.DefaultRiskWeights,
		validator:   validate,
		logger:      logger.With().Str("component", "risk_assessment_service").Logger(),
		now:         time.Now,
	}
}

// Assess scores the student and upserts the assessment of the current UTC day.
func (s *riskAssessmentService) Assess(ctx context.Context, payload dto.RiskAssessmentRequest) (models.DropoutRiskAssessment, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-analytics-api/internal/service/risk_assessment")
	ctx, span := tracer.Start(ctx, "risk.assess")
	span.SetAttributes(attribute.Int64("risk.student_id", int64(payload.StudentID)))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return models.DropoutRiskAssessment{}, err
	}

	now := s.now().UTC()
	snapshot, err := loadSnapshot(ctx, s.signals, payload.StudentID, payload.CourseID, analytics.RiskWindowDays, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot_failed")
		return models.DropoutRiskAssessment{}, err
	}

	score := analytics.ScoreRisk(snapshot, s.weights)
	day := models.AssessmentDayKey(now)

	previous, err := s.assessments.RecentProbabilities(ctx, payload.StudentID, payload.CourseID, day, riskTrendHistory)
	if err != nil {
		span.RecordError(err)
		return models.DropoutRiskAssessment{}, fmt.Errorf("load risk history: %w", err)
	}
	trend := analytics.AnalyzeTrend(append(previous, score.Probability)).Summary()

	assessment, err := s.assessments.FindForDay(ctx, payload.StudentID, payload.CourseID, day)
	exists := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		return models.DropoutRiskAssessment{}, fmt.Errorf("lookup assessment: %w", err)
	}

	if !exists || assessment.RiskLevel != score.Level {
		assessment.StudentNotified = false
		assessment.InstructorNotified = false
		assessment.NotifiedAt = nil
	}
	assessment.StudentID = payload.StudentID
	assessment.CourseID = payload.CourseID
	assessment.AssessmentDate = now
	assessment.AssessmentDay = day
	assessment.RiskLevel = score.Level
	assessment.RiskProbability = score.Probability
	assessment.RiskFactors = datatypes.NewJSONType(score.Factors)
	assessment.ProtectiveFactors = datatypes.NewJSONType(score.Protective)
	assessment.InterventionRequired = score.InterventionRequired
	assessment.RecommendedInterventions = datatypes.NewJSONType(score.RecommendedInterventions)
	assessment.InterventionPriority = score.InterventionPriority
	assessment.TrendAnalysis = datatypes.NewJSONType(&trend)
	assessment.Features = datatypes.NewJSONType(snapshot.Features())

	if exists {
		err = s.assessments.Update(ctx, &assessment)
	} else {
		err = s.assessments.Create(ctx, &assessment)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist_failed")
		return models.DropoutRiskAssessment{}, fmt.Errorf("persist assessment: %w", err)
	}

	observability.RiskAssessments().WithLabelValues(string(score.Level)).Inc()
	span.SetAttributes(
		attribute.Float64("risk.probability", score.Probability),
		attribute.String("risk.level", string(score.Level)),
		attribute.Bool("risk.upsert", exists),
	)
	s.logger.Info().
		Uint("assessment_id", assessment.ID).
		Uint("student_id", assessment.StudentID).
		Float64("probability", score.Probability).
		Str("risk_level", string(score.Level)).
		Str("trend", trend.Direction).
		Msg("dropout risk assessed")

	return assessment, nil
}

func (s *riskAssessmentService) Get(ctx context.Context, id uint) (models.DropoutRiskAssessment, error) {
	assessment, err := s.assessments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.DropoutRiskAssessment{}, ErrRiskAssessmentNotFound
		}
		return models.DropoutRiskAssessment{}, err
	}
	return assessment, nil
}

// Latest returns the newest assessment of the student, within courseID when it is set and
// across all of the student's courses otherwise.
func (s *riskAssessmentService) Latest(ctx context.Context, studentID uint, courseID *uint) (models.DropoutRiskAssessment, error) {
	scope := repository.AllCourses()
	if courseID != nil {
		scope = repository.InCourse(courseID)
	}
	assessment, err := s.assessments.Latest(ctx, studentID, scope)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.DropoutRiskAssessment{}, ErrRiskAssessmentNotFound
		}
		return models.DropoutRiskAssessment{}, err
	}
	return assessment, nil
}

func (s *riskAssessmentService) ListElevatedSince(ctx context.Context, since time.Time) ([]models.DropoutRiskAssessment, error) {
	return s.assessments.ListByLevelsSince(ctx, []models.RiskLevel{models.RiskLevelHigh, models.RiskLevelVeryHigh}, since)
}

func (s *riskAssessmentService) MarkNotified(ctx context.Context, id uint, student, instructor bool) error {
	assessment, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	assessment.StudentNotified = assessment.StudentNotified || student
	assessment.InstructorNotified = assessment.InstructorNotified || instructor
	assessment.NotifiedAt = &now
	return s.assessments.Update(ctx, &assessment)
}
