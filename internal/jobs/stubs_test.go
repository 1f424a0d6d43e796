package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-analytics-api/internal/analytics"
	"github.com/noah-isme/gema-analytics-api/internal/dto"
	"github.com/noah-isme/gema-analytics-api/internal/models"
	"github.com/noah-isme/gema-analytics-api/internal/repository"
	"github.com/noah-isme/gema-analytics-api/internal/service"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewQueue(client, "gema:analytics:jobs"), server
}

func uintPtr(value uint) *uint {
	return &value
}

type stubTargets struct {
	targets []repository.StudentCourse
	since   time.Time
}

func (s *stubTargets) ActiveTargets(_ context.Context, since time.Time) ([]repository.StudentCourse, error) {
	s.since = since
	return s.targets, nil
}

type stubPredictions struct {
	service.PredictionService
	failFor   map[uint]error
	generated []dto.PredictionCreateRequest
	history   map[string][]float64
	summaries []dto.AccuracySummary
}

func (s *stubPredictions) Generate(_ context.Context, payload dto.PredictionCreateRequest) (models.PerformancePrediction, error) {
	if err := s.failFor[payload.StudentID]; err != nil {
		return models.PerformancePrediction{}, err
	}
	s.generated = append(s.generated, payload)
	return models.PerformancePrediction{
		ID:             uint(len(s.generated)),
		StudentID:      payload.StudentID,
		CourseID:       payload.CourseID,
		PredictionType: models.PredictionType(payload.PredictionType),
		PredictedValue: 61,
		RiskLevel:      models.RiskLevelMedium,
	}, nil
}

// History serves the series stored under the target label of studentID and scope.
func (s *stubPredictions) History(_ context.Context, studentID uint, scope repository.CourseScope, predictionType models.PredictionType, _ int) (dto.PredictionHistoryResponse, error) {
	if !scope.Exact {
		return dto.PredictionHistoryResponse{}, errors.New("history must be scoped to one course")
	}
	values := s.history[targetLabel(repository.StudentCourse{StudentID: studentID, CourseID: scope.CourseID})]
	return dto.PredictionHistoryResponse{
		StudentID:      studentID,
		PredictionType: string(predictionType),
		Trend:          analytics.AnalyzeTrend(values),
	}, nil
}

func (s *stubPredictions) AccuracySummary(context.Context, time.Time) ([]dto.AccuracySummary, error) {
	return s.summaries, nil
}

type stubRisk struct {
	service.RiskAssessmentService
	elevated []models.DropoutRiskAssessment
	notified map[uint][2]bool
}

func (s *stubRisk) ListElevatedSince(context.Context, time.Time) ([]models.DropoutRiskAssessment, error) {
	return s.elevated, nil
}

func (s *stubRisk) MarkNotified(_ context.Context, id uint, student, instructor bool) error {
	if s.notified == nil {
		s.notified = map[uint][2]bool{}
	}
	s.notified[id] = [2]bool{student, instructor}
	return nil
}

type stubInterventions struct {
	service.InterventionService
	mu        sync.Mutex
	due       []models.InterventionRecommendation
	reminded  []uint
	generated []uint
}

func (s *stubInterventions) ListReminderDue(context.Context, time.Duration) ([]models.InterventionRecommendation, error) {
	return s.due, nil
}

func (s *stubInterventions) MarkReminderSent(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 0 {
		return errors.New("missing intervention id")
	}
	s.reminded = append(s.reminded, id)
	return nil
}

func (s *stubInterventions) GenerateFromAssessment(_ context.Context, assessmentID uint) (dto.InterventionGenerateResponse, error) {
	s.generated = append(s.generated, assessmentID)
	return dto.InterventionGenerateResponse{Created: 6}, nil
}

type recordingDispatcher struct {
	alerts    []service.Alert
	reminders []service.Reminder
	events    []service.ModelEvent
}

func (d *recordingDispatcher) PublishAlert(_ context.Context, alert service.Alert) error {
	d.alerts = append(d.alerts, alert)
	return nil
}

func (d *recordingDispatcher) PublishReminder(_ context.Context, reminder service.Reminder) error {
	d.reminders = append(d.reminders, reminder)
	return nil
}

func (d *recordingDispatcher) PublishModelEvent(_ context.Context, event service.ModelEvent) error {
	d.events = append(d.events, event)
	return nil
}
