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

	"github.com/noah-isme/gema-analytics-api/internal/dto"
	"github.com/noah-isme/gema-analytics-api/internal/models"
	"github.com/noah-isme/gema-analytics-api/internal/repository"
)

var (
	// ErrInterventionNotFound indicates the intervention does not exist.
	ErrInterventionNotFound = errors.New("intervention not found")
	// ErrInvalidTransition rejects a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid intervention status transition")
	// ErrInterventionOutcomeRequired rejects completion without outcome and effectiveness.
	ErrInterventionOutcomeRequired = errors.New("outcome and effectiveness score are required to complete an intervention")
	// ErrInterventionClosed rejects changes to completed or cancelled interventions.
	ErrInterventionClosed = errors.New("intervention is closed")
)

// InterventionService plans interventions and drives their lifecycle.
type InterventionService interface {
	Generate(ctx context.Context, payload dto.InterventionGenerateRequest) (dto.InterventionGenerateResponse, error)
	GenerateFromAssessment(ctx context.Context, assessmentID uint) (dto.InterventionGenerateResponse, error)
	GenerateFromPrediction(ctx context.Context, predictionID uint) (dto.InterventionGenerateResponse, error)
	Get(ctx context.Context, id uint) (models.InterventionRecommendation, error)
	List(ctx context.Context, filter repository.InterventionFilter) ([]models.InterventionRecommendation, dto.PageMeta, error)
	Transition(ctx context.Context, id uint, payload dto.InterventionTransitionRequest) (models.InterventionRecommendation, error)
	Assign(ctx context.Context, id uint, payload dto.InterventionAssignRequest) (models.InterventionRecommendation, error)
	ListAutomatedPending(ctx context.Context, limit int) ([]models.InterventionRecommendation, error)
	ExecuteAutomated(ctx context.Context, id uint) (models.InterventionRecommendation, error)
	ListReminderDue(ctx context.Context, within time.Duration) ([]models.InterventionRecommendation, error)
	MarkReminderSent(ctx context.Context, id uint) error
	CountByStatus(ctx context.Context, filter repository.InterventionFilter) ([]repository.InterventionStatusCount, error)
}

type interventionService struct {
	interventions repository.InterventionRepository
	assessments   repository.RiskAssessmentRepository
	predictions   repository.PredictionRepository
	signals       repository.LearningSignalRepository
	validator     *validator.Validate
	sanitizer     *bluemonday.Policy
	logger        zerolog.Logger
	now           func() time.Time
}

type interventionSource struct {
	studentID    uint
	courseID     *uint
	assessmentID *uint
	predictionID *uint
	level        models.RiskLevel
	factors      models.RiskFactors
}

// NewInterventionService wires the intervention planner.
func NewInterventionService(interventions repository.InterventionRepository, assessments repository.RiskAssessmentRepository, predictions repository.PredictionRepository, signals repository.LearningSignalRepository, validate *validator.Validate, logger zerolog.Logger) InterventionService {
	return &interventionService{
		interventions: interventions,
		assessments:   assessments,
		predictions:   predictions,
		signals:       signals,
		validator:     validate,
		sanitizer:     bluemonday.StrictPolicy(),
		logger:        logger.With().Str("component", "intervention_service").Logger(),
		now:           time.Now,
	}
}

func (s *interventionService) Generate(ctx context.Context, payload dto.InterventionGenerateRequest) (dto.InterventionGenerateResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.InterventionGenerateResponse{}, err
	}
	if payload.AssessmentID != nil {
		return s.GenerateFromAssessment(ctx, *payload.AssessmentID)
	}
	return s.GenerateFromPrediction(ctx, *payload.PredictionID)
}

func (s *interventionService) GenerateFromAssessment(ctx context.Context, assessmentID uint) (dto.InterventionGenerateResponse, error) {
	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.InterventionGenerateResponse{}, ErrRiskAssessmentNotFound
		}
		return dto.InterventionGenerateResponse{}, err
	}

	id := assessment.ID
	return s.generate(ctx, interventionSource{
		studentID:    assessment.StudentID,
		courseID:     assessment.CourseID,
		assessmentID: &id,
		level:        assessment.RiskLevel,
		factors:      assessment.RiskFactors.Data(),
	})
}

func (s *interventionService) GenerateFromPrediction(ctx context.Context, predictionID uint) (dto.InterventionGenerateResponse, error) {
	prediction, err := s.predictions.GetByID(ctx, predictionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.InterventionGenerateResponse{}, ErrPredictionNotFound
		}
		return dto.InterventionGenerateResponse{}, err
	}

	id := prediction.ID
	return s.generate(ctx, interventionSource{
		studentID:    prediction.StudentID,
		courseID:     prediction.CourseID,
		predictionID: &id,
		level:        prediction.RiskLevel,
		factors:      factorsFromFeatures(prediction.Features.Data()),
	})
}

func (s *interventionService) generate(ctx context.Context, source interventionSource) (dto.InterventionGenerateResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-analytics-api/internal/service/intervention")
	ctx, span := tracer.Start(ctx, "intervention.generate")
	span.SetAttributes(
		attribute.Int64("intervention.student_id", int64(source.studentID)),
		attribute.String("intervention.risk_level", string(source.level)),
	)
	defer span.End()

	response := dto.InterventionGenerateResponse{Items: []models.InterventionRecommendation{}}
	plan := planInterventions(source.level, source.factors)
	if len(plan) == 0 {
		return response, nil
	}

	now := s.now().UTC()
	snapshot, err := loadSnapshot(ctx, s.signals, source.studentID, source.courseID, PredictionWindowDays, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot_failed")
		return dto.InterventionGenerateResponse{}, err
	}
	pre := snapshot.Metrics(now)

	for _, planned := range plan {
		existing, err := s.interventions.FindOpen(ctx, source.studentID, source.courseID, planned.interventionType)
		if err == nil {
			response.Reused++
			response.Items = append(response.Items, existing)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			span.RecordError(err)
			return dto.InterventionGenerateResponse{}, fmt.Errorf("lookup open intervention: %w", err)
		}

		intervention := s.buildIntervention(source, planned, pre, now)
		if err := s.interventions.Create(ctx, &intervention); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "persist_failed")
			return dto.InterventionGenerateResponse{}, fmt.Errorf("persist intervention: %w", err)
		}
		response.Created++
		response.Items = append(response.Items, intervention)
	}

	span.SetAttributes(
		attribute.Int("intervention.created", response.Created),
		attribute.Int("intervention.reused", response.Reused),
	)
	s.logger.Info().
		Uint("student_id", source.studentID).
		Str("risk_level", string(source.level)).
		Int("created", response.Created).
		Int("reused", response.Reused).
		Msg("interventions planned")

	return response, nil
}

func (s *interventionService) buildIntervention(source interventionSource, planned plannedIntervention, pre models.MetricSnapshot, now time.Time) models.InterventionRecommendation {
	template := interventionTemplates[planned.interventionType]
	metrics := targetMetrics(template.metric, pre)
	snapshot := pre

	return models.InterventionRecommendation{
		StudentID:        source.studentID,
		CourseID:         source.courseID,
		PredictionID:     source.predictionID,
		AssessmentID:     source.assessmentID,
		InterventionType: planned.interventionType,
		Title:            s.clean(template.title),
		Description:      s.clean(template.description),
		Priority:         planned.priority,
		Status:           models.InterventionStatusPending,
		RecommendedDate:  now,
		Automated:        template.automated,
		Parameters: datatypes.NewJSONType(models.InterventionParameters{
			TargetMetrics:   metrics,
			Automated:       template.automated,
			FollowUpEnabled: true,
			Channel:         template.channel,
			DurationDays:    template.durationDays,
		}),
		SuccessCriteria: datatypes.NewJSONType(&models.SuccessCriteria{
			Description:      fmt.Sprintf("%s reaches its target within %d days", metrics[0].Metric, template.durationDays),
			MinEffectiveness: MinEffectiveness,
			Thresholds:       metrics,
		}),
		PreMetrics:  datatypes.NewJSONType(&snapshot),
		PostMetrics: datatypes.NewJSONType[*models.MetricSnapshot](nil),
	}
}

func (s *interventionService) Get(ctx context.Context, id uint) (models.InterventionRecommendation, error) {
	intervention, err := s.interventions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.InterventionRecommendation{}, ErrInterventionNotFound
		}
		return models.InterventionRecommendation{}, err
	}
	return intervention, nil
}

func (s *interventionService) List(ctx context.Context, filter repository.InterventionFilter) ([]models.InterventionRecommendation, dto.PageMeta, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	items, total, err := s.interventions.List(ctx, filter)
	if err != nil {
		return nil, dto.PageMeta{}, err
	}
	return items, dto.NewPageMeta(filter.Page, filter.PageSize, total), nil
}

func (s *interventionService) Transition(ctx context.Context, id uint, payload dto.InterventionTransitionRequest) (models.InterventionRecommendation, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-analytics-api/internal/service/intervention")
	ctx, span := tracer.Start(ctx, "intervention.transition")
	span.SetAttributes(
		attribute.Int64("intervention.id", int64(id)),
		attribute.String("intervention.target_status", payload.Status),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return models.InterventionRecommendation{}, err
	}

	intervention, err := s.Get(ctx, id)
	if err != nil {
		return models.InterventionRecommendation{}, err
	}

	from := intervention.Status
	to := models.InterventionStatus(payload.Status)
	if !CanTransition(from, to) {
		span.SetStatus(codes.Error, "invalid_transition")
		return models.InterventionRecommendation{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	now := s.now().UTC()
	switch to {
	case models.InterventionStatusScheduled:
		scheduled := now
		if payload.ScheduledDate != nil {
			scheduled = payload.ScheduledDate.UTC()
		}
		intervention.ScheduledDate = &scheduled
		intervention.ReminderSentAt = nil
	case models.InterventionStatusInProgress:
		intervention.StartedAt = &now
	case models.InterventionStatusCompleted:
		outcome := models.InterventionOutcome(payload.Outcome)
		if !outcome.Valid() || payload.EffectivenessScore == nil {
			return models.InterventionRecommendation{}, ErrInterventionOutcomeRequired
		}
		if err := s.complete(ctx, &intervention, outcome, *payload.EffectivenessScore, now); err != nil {
			span.RecordError(err)
			return models.InterventionRecommendation{}, err
		}
	}

	if notes := s.clean(payload.Notes); notes != "" {
		intervention.OutcomeNotes = notes
	}
	intervention.Status = to

	if err := s.interventions.Update(ctx, &intervention); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist_failed")
		return models.InterventionRecommendation{}, fmt.Errorf("update intervention: %w", err)
	}

	s.logger.Info().
		Uint("intervention_id", intervention.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("intervention transitioned")

	return intervention, nil
}

func (s *interventionService) complete(ctx context.Context, intervention *models.InterventionRecommendation, outcome models.InterventionOutcome, effectiveness float64, now time.Time) error {
	snapshot, err := loadSnapshot(ctx, s.signals, intervention.StudentID, intervention.CourseID, PredictionWindowDays, now)
	if err != nil {
		return err
	}
	post := snapshot.Metrics(now)

	if intervention.PreMetrics.Data() == nil {
		pre := post
		intervention.PreMetrics = datatypes.NewJSONType(&pre)
	}
	intervention.PostMetrics = datatypes.NewJSONType(&post)
	intervention.CompletedAt = &now
	intervention.Outcome = outcome
	intervention.EffectivenessScore = &effectiveness

	intervention.FollowUpRequired = requiresFollowUp(outcome, effectiveness)
	intervention.FollowUpDate = nil
	if intervention.FollowUpRequired {
		followUp := now.AddDate(0, 0, FollowUpDays)
		intervention.FollowUpDate = &followUp
	}
	return nil
}

func (s *interventionService) Assign(ctx context.Context, id uint, payload dto.InterventionAssignRequest) (models.InterventionRecommendation, error) {
	if err := s.validator.Struct(payload); err != nil {
		return models.InterventionRecommendation{}, err
	}

	intervention, err := s.Get(ctx, id)
	if err != nil {
		return models.InterventionRecommendation{}, err
	}
	if intervention.Status.Terminal() {
		return models.InterventionRecommendation{}, ErrInterventionClosed
	}

	assignee := payload.AssignedToID
	intervention.AssignedToID = &assignee
	if err := s.interventions.Update(ctx, &intervention); err != nil {
		return models.InterventionRecommendation{}, fmt.Errorf("update intervention: %w", err)
	}
	return intervention, nil
}

func (s *interventionService) ListAutomatedPending(ctx context.Context, limit int) ([]models.InterventionRecommendation, error) {
	return s.interventions.ListAutomatedPending(ctx, limit)
}

// ExecuteAutomated starts an automated intervention. The caller delivers the message.
func (s *interventionService) ExecuteAutomated(ctx context.Context, id uint) (models.InterventionRecommendation, error) {
	intervention, err := s.Get(ctx, id)
	if err != nil {
		return models.InterventionRecommendation{}, err
	}
	if !intervention.Automated {
		return models.InterventionRecommendation{}, fmt.Errorf("%w: intervention %d is not automated", ErrInvalidTransition, id)
	}
	if !CanTransition(intervention.Status, models.InterventionStatusInProgress) {
		return models.InterventionRecommendation{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, intervention.Status, models.InterventionStatusInProgress)
	}

	now := s.now().UTC()
	intervention.Status = models.InterventionStatusInProgress
	intervention.StartedAt = &now
	if err := s.interventions.Update(ctx, &intervention); err != nil {
		return models.InterventionRecommendation{}, fmt.Errorf("update intervention: %w", err)
	}
	return intervention, nil
}

func (s *interventionService) ListReminderDue(ctx context.Context, within time.Duration) ([]models.InterventionRecommendation, error) {
	return s.interventions.ListReminderDue(ctx, s.now().UTC().Add(within))
}

func (s *interventionService) MarkReminderSent(ctx context.Context, id uint) error {
	intervention, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	intervention.ReminderSentAt = &now
	return s.interventions.Update(ctx, &intervention)
}

func (s *interventionService) CountByStatus(ctx context.Context, filter repository.InterventionFilter) ([]repository.InterventionStatusCount, error) {
	return s.interventions.CountByStatus(ctx, filter)
}

func (s *interventionService) clean(text string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(text))
}
