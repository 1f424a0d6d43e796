package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-analytics-api/internal/repository"
	"github.com/noah-isme/gema-analytics-api/internal/service"
)

// Job names accepted by the queue.
const (
	JobGenerateBatchPredictions     = "generate-batch-predictions"
	JobUpdatePredictionAccuracies   = "update-prediction-accuracies"
	JobAssessBatchDropoutRisk       = "assess-batch-dropout-risk"
	JobMonitorHighRiskStudents      = "monitor-high-risk-students"
	JobExecuteAutomatedIntervention = "execute-automated-intervention"
	JobScheduleReminders            = "schedule-intervention-reminders"
	JobDailyAnalyticsGeneration     = "daily-analytics-generation"
	JobWeeklyTrendAnalysis          = "weekly-trend-analysis"
	JobModelAccuracyValidation      = "model-accuracy-validation"
	JobEmergencyDetection           = "emergency-intervention-detection"
	JobPredictiveModelRetraining    = "predictive-model-retraining"
)

// HandlerFunc runs one job with its decoded payload.
type HandlerFunc func(ctx context.Context, payload json.RawMessage, progress ProgressFunc) (Summary, error)

// TargetSource lists the students with recent learning activity.
type TargetSource interface {
	ActiveTargets(ctx context.Context, since time.Time) ([]repository.StudentCourse, error)
}

// Services are the engine components the job handlers drive.
type Services struct {
	Predictions   service.PredictionService
	Risk          service.RiskAssessmentService
	Forecasts     service.ForecastService
	Interventions service.InterventionService
	Optimizer     service.OptimizerService
	Dashboard     service.DashboardService
	Targets       TargetSource
}

// Settings tune alert and retraining thresholds.
type Settings struct {
	AccuracyAlertLevel   float64
	RetrainingMinSamples int
}

// Payload narrows a job to explicit targets or a custom window. Every field is optional.
type Payload struct {
	Targets        []repository.StudentCourse `json:"targets,omitempty"`
	LookbackDays   int                        `json:"lookback_days,omitempty"`
	PredictionType string                     `json:"prediction_type,omitempty"`
	InterventionID uint                       `json:"intervention_id,omitempty"`
	Limit          int                        `json:"limit,omitempty"`
}

// Registry maps job names to handlers.
type Registry struct {
	handlers map[string]HandlerFunc
}

// NewRegistry registers every analytics job against the given services.
func NewRegistry(services Services, settings Settings, logger zerolog.Logger) *Registry {
	h := &handlers{
		services: services,
		settings: settings,
		logger:   logger.With().Str("component", "jobs").Logger(),
		now:      time.Now,
	}
	return h.registry()
}

// Lookup returns the handler of a job name.
func (r *Registry) Lookup(name string) (HandlerFunc, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return handler, nil
}

// Has reports whether name is a registered job.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Names lists the registered jobs in alphabetical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func decodePayload(raw json.RawMessage) (Payload, error) {
	var payload Payload
	if len(raw) == 0 || string(raw) == "null" {
		return payload, nil
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}
