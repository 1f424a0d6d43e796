package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-analytics-api/internal/dto"
	"github.com/noah-isme/gema-analytics-api/internal/models"
	"github.com/noah-isme/gema-analytics-api/internal/repository"
	"github.com/noah-isme/gema-analytics-api/internal/service"
)

const (
	defaultLookbackDays      = 30
	dailyLookbackDays        = 1
	weeklyLookbackDays       = 7
	monitorWindow            = 7 * 24 * time.Hour
	emergencyWindow          = 24 * time.Hour
	reminderHorizon          = 24 * time.Hour
	accuracyWindow           = 30 * 24 * time.Hour
	retrainingWindow         = 90 * 24 * time.Hour
	defaultReconcileLimit    = 500
	defaultAutomatedLimit    = 100
	trendHistoryLimit        = 10
	defaultAccuracyAlert     = 70.0
	defaultRetrainingMinimum = 100
)

type handlers struct {
	services Services
	settings Settings
	logger   zerolog.Logger
	now      func() time.Time
}

func (h *handlers) registry() *Registry {
	return &Registry{handlers: map[string]HandlerFunc{
		JobGenerateBatchPredictions:     h.generateBatchPredictions,
		JobUpdatePredictionAccuracies:   h.updatePredictionAccuracies,
		JobAssessBatchDropoutRisk:       h.assessBatchDropoutRisk,
		JobMonitorHighRiskStudents:      h.monitorHighRiskStudents,
		JobExecuteAutomatedIntervention: h.executeAutomatedInterventions,
		JobScheduleReminders:            h.scheduleInterventionReminders,
		JobDailyAnalyticsGeneration:     h.dailyAnalyticsGeneration,
		JobWeeklyTrendAnalysis:          h.weeklyTrendAnalysis,
		JobModelAccuracyValidation:      h.modelAccuracyValidation,
		JobEmergencyDetection:           h.emergencyInterventionDetection,
		JobPredictiveModelRetraining:    h.predictiveModelRetraining,
	}}
}

func (h *handlers) targets(ctx context.Context, payload Payload, lookbackDays int) ([]repository.StudentCourse, error) {
	if len(payload.Targets) > 0 {
		return payload.Targets, nil
	}
	if payload.LookbackDays > 0 {
		lookbackDays = payload.LookbackDays
	}
	since := h.now().UTC().AddDate(0, 0, -lookbackDays)
	targets, err := h.services.Targets.ActiveTargets(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list active targets: %w", err)
	}
	return targets, nil
}

func (h *handlers) generateBatchPredictions(ctx context.Context, raw json.RawMessage, progress ProgressFunc) (Summary, error) {
	payload, err := decodePayload(raw)
	if err != nil {
		return Summary{}, err
	}
	predictionType := models.PredictionType(payload.PredictionType)
	if predictionType == "" {
		predictionType = models.PredictionTypePerformance
	}
	if !predictionType.Valid() {
		return Summary{}, fmt.Errorf("%w: %s", service.ErrUnsupportedPredictionType, predictionType)
	}

	targets, err := h.targets(ctx, payload, defaultLookbackDays)
	if err != nil {
		return Summary{}, err
	}

	run := newCohortRun(JobGenerateBatchPredictions, len(targets), progress, h.logger)
	for _, target := range targets {
		target := target
		run.do(ctx, targetLabel(target), func(ctx context.Context) (string, error) {
			prediction, err := h.services.Predictions.Generate(ctx, dto.PredictionCreateRequest{
				StudentID:      target.StudentID,
				CourseID:       target.CourseID,
				PredictionType: string(predictionType),
			})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("prediction %d: %.2f (%s)", prediction.ID, prediction.PredictedValue, prediction.RiskLevel), nil
		})
	}
	return run.finish(h.now()), nil
}

func (h *handlers) updatePredictionAccuracies(ctx context.Context, raw json.RawMessage, progress ProgressFunc) (Summary, error) {
	payload, err := decodePayload(raw)
	if err != nil {
		return Summary{}, err
	}
	limit := positiveOr(payload.Limit, defaultReconcileLimit)

	predictions, err := h.services.Predictions.ListDue(ctx, limit)
	if err != nil {
		return Summary{}, fmt.Errorf("list due predictions: %w", err)
	}
	forecasts, err := h.services.Forecasts.ListDue(ctx, limit)
	if err != nil {
		return Summary{}, fmt.Errorf("list due forecasts: %w", err)
	}

	run := newCohortRun(JobUpdatePredictionAccuracies, len(predictions)+len(forecasts), progress, h.logger)
	for _, prediction := range predictions {
		prediction := prediction
		run.do(ctx, fmt.Sprintf("prediction:%d", prediction.ID), func(ctx context.Context) (string, error) {
			reconciled, err := h.services.Predictions.Reconcile(ctx, prediction)
			if err != nil {
				return "", err
			}
			if !reconciled {
				return "", skip("no recorded outcome")
			}
			return "validated", nil
		})
	}
	for _, forecast := range forecasts {
		forecast := forecast
		run.do(ctx, fmt.Sprintf("forecast:%d", forecast.ID), func(ctx context.Context) (string, error) {
			reconciled, err := h.services.Forecasts.Reconcile(ctx, forecast)
			if err != nil {
				return "", err
			}
			if !reconciled {
				return "", skip("no recorded outcome")
			}
			return "realized", nil
		})
	}
	return run.finish(h.now()), nil
}

func (h *handlers) assessBatchDropoutRisk(ctx context.Context, raw json.RawMessage, progress ProgressFunc) (Summary, error) {
	payload, err := decodePayload(raw)
	if err != nil {
		return Summary{}, err
	}
	targets, err := h.targets(ctx, payload, defaultLookbackDays)
	if err != nil {
		return Summary{}, err
	}

	run := newCohortRun(JobAssessBatchDropoutRisk, len(targets), progress, h.logger)
	for _, target := range targets {
		target := target
		run.do(ctx, targetLabel(target), func(ctx context.Context) (string, error) {
			return h.assessTarget(ctx, run, target)
		})
	}
	return run.finish(h.now()), nil
}

// assessTarget scores one student, plans interventions when required and raises an alert
// the first time an elevated level is seen.
func (h *handlers) assessTarget(ctx context.Context, run *cohortRun, target repository.StudentCourse) (string, error) {
	assessment, err := h.services.Risk.Assess(ctx, dto.RiskAssessmentRequest{StudentID: target.StudentID, CourseID: target.CourseID})
	if err != nil {
		return "", err
	}

	planned := 0
	if assessment.InterventionRequired {
		generated, err := h.services.Interventions.GenerateFromAssessment(ctx, assessment.ID)
		if err != nil {
			return "", err
		}
		planned = generated.Created
	}

	if assessment.InterventionRequired && !assessment.InstructorNotified {
		if err := h.services.Risk.MarkNotified(ctx, assessment.ID, false, true); err != nil {
			return "", err
		}
		run.alert(riskAlert(service.AlertHighRisk, assessment))
	}

	return fmt.Sprintf("risk %s %.2f, %d interventions planned", assessment.RiskLevel, assessment.RiskProbability, planned), nil
}

func (h *handlers) monitorHighRiskStudents(ctx context.Context, _ json.RawMessage, progress ProgressFunc) (Summary, error) {
	assessments, err := h.services.Risk.ListElevatedSince(ctx, h.now().UTC().Add(-monitorWindow))
	if err != nil {
		return Summary{}, fmt.Errorf("list elevated assessments: %w", err)
	}

	run := newCohortRun(JobMonitorHighRiskStudents, len(assessments), progress, h.logger)
	for _, assessment := range assessments {
		assessment := assessment
		run.do(ctx, fmt.Sprintf("assessment:%d", assessment.ID), func(ctx context.Context) (string, error) {
			if assessment.InstructorNotified {
				return "", skip("instructor already notified")
			}
			if err := h.services.Risk.MarkNotified(ctx, assessment.ID, false, true); err != nil {
				return "", err
			}
			run.alert(riskAlert(service.AlertHighRisk, assessment))
			return fmt.Sprintf("alerted %s", assessment.RiskLevel), nil
		})
	}
	return run.finish(h.now()), nil
}

func (h *handlers) executeAutomatedInterventions(ctx context.Context, raw json.RawMessage, progress ProgressFunc) (Summary, error) {
	payload, err := decodePayload(raw)
	if err != nil {
		return Summary{}, err
	}

	var pending []models.InterventionRecommendation
	if payload.InterventionID != 0 {
		intervention, err := h.services.Interventions.Get(ctx, payload.InterventionID)
		if err != nil {
			return Summary{}, err
		}
		pending = []models.InterventionRecommendation{intervention}
	} else {
		pending, err = h.services.Interventions.ListAutomatedPending(ctx, positiveOr(payload.Limit, defaultAutomatedLimit))
		if err != nil {
			return Summary{}, fmt.Errorf("list automated interventions: %w", err)
		}
	}

	run := newCohortRun(JobExecuteAutomatedIntervention, len(pending), progress, h.logger)
	for _, intervention := range pending {
		intervention := intervention
		run.do(ctx, fmt.Sprintf("intervention:%d", intervention.ID), func(ctx context.Context) (string, error) {
			started, err := h.services.Interventions.ExecuteAutomated(ctx, intervention.ID)
			if err != nil {
				return "", err
			}
			run.remind(service.Reminder{
				InterventionID:   started.ID,
				StudentID:        started.StudentID,
				InterventionType: started.InterventionType,
				ScheduledDate:    started.ScheduledDate,
				Message:          started.Title,
			})
			return string(started.Status), nil
		})
	}
	return run.finish(h.now()), nil
}

func (h *handlers) scheduleInterventionReminders(ctx context.Context, _ json.RawMessage, progress ProgressFunc) (Summary, error) {
	due, err := h.services.Interventions.ListReminderDue(ctx, reminderHorizon)
	if err != nil {
		return Summary{}, fmt.Errorf("list reminder due interventions: %w", err)
	}

	run := newCohortRun(JobScheduleReminders, len(due), progress, h.logger)
	for _, intervention := range due {
		intervention := intervention
		run.do(ctx, fmt.Sprintf("intervention:%d", intervention.ID), func(ctx context.Context) (string, error) {
			if err := h.services.Interventions.MarkReminderSent(ctx, intervention.ID); err != nil {
				return "", err
			}
			run.remind(service.Reminder{
				InterventionID:   intervention.ID,
				StudentID:        intervention.StudentID,
				AssignedToID:     intervention.AssignedToID,
				InterventionType: intervention.InterventionType,
				ScheduledDate:    intervention.ScheduledDate,
				Message:          fmt.Sprintf("%s is scheduled within the next day", intervention.Title),
			})
			return "reminder queued", nil
		})
	}
	return run.finish(h.now()), nil
}

func (h *handlers) dailyAnalyticsGeneration(ctx context.Context, raw json.RawMessage, progress ProgressFunc) (Summary, error) {
	payload, err := decodePayload(raw)
	if err != nil {
		return Summary{}, err
	}
	targets, err := h.targets(ctx, payload, dailyLookbackDays)
	if err != nil {
		return Summary{}, err
	}
	resources, err := h.services.Optimizer.ActiveResources(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list active resources: %w", err)
	}

	run := newCohortRun(JobDailyAnalyticsGeneration, len(targets)+len(resources), progress, h.logger)
	for _, target := range targets {
		target := target
		run.do(ctx, targetLabel(target), func(ctx context.Context) (string, error) {
			detail, err := h.assessTarget(ctx, run, target)
			if err != nil {
				return "", err
			}
			prediction, err := h.services.Predictions.Generate(ctx, dto.PredictionCreateRequest{
				StudentID:      target.StudentID,
				CourseID:       target.CourseID,
				PredictionType: string(models.PredictionTypePerformance),
			})
			if err != nil {
				return "", err
			}
			if h.services.Dashboard != nil {
				h.services.Dashboard.Invalidate(ctx, target.StudentID)
			}
			return fmt.Sprintf("%s; performance %.2f", detail, prediction.PredictedValue), nil
		})
	}
	for _, resource := range resources {
		resource := resource
		run.do(ctx, fmt.Sprintf("%s:%d", resource.ResourceType, resource.ResourceID), func(ctx context.Context) (string, error) {
			optimization, err := h.services.Optimizer.Analyze(ctx, dto.OptimizationCreateRequest{
				ResourceType: string(resource.ResourceType),
				ResourceID:   resource.ResourceID,
			})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("efficiency %.1f -> %.1f", optimization.CurrentEfficiency, optimization.PredictedEfficiency), nil
		})
	}
	return run.finish(h.now()), nil
}

// weeklyTrendAnalysis fits the recent performance predictions of each student and course
// and refreshes the prediction of those in sharp decline. Courses are never mixed in one fit.
func (h *handlers) weeklyTrendAnalysis(ctx context.Context, raw json.RawMessage, progress ProgressFunc) (Summary, error) {
	payload, err := decodePayload(raw)
	if err != nil {
		return Summary{}, err
	}
	targets, err := h.targets(ctx, payload, weeklyLookbackDays)
	if err != nil {
		return Summary{}, err
	}

	run := newCohortRun(JobWeeklyTrendAnalysis, len(targets), progress, h.logger)
	for _, target := range targets {
		target := target
		run.do(ctx, targetLabel(target), func(ctx context.Context) (string, error) {
			history, err := h.services.Predictions.History(ctx, target.StudentID, repository.InCourse(target.CourseID), models.PredictionTypePerformance, trendHistoryLimit)
			if err != nil {
				return "", err
			}
			if !history.Trend.SharpDecline() {
				return "", skip("trend %s (slope %.2f)", history.Trend.Direction, history.Trend.Slope)
			}

			prediction, err := h.services.Predictions.Generate(ctx, dto.PredictionCreateRequest{
				StudentID:      target.StudentID,
				CourseID:       target.CourseID,
				PredictionType: string(models.PredictionTypePerformance),
			})
			if err != nil {
				return "", err
			}
			run.alert(service.Alert{
				Kind:      service.AlertSharpDecline,
				Severity:  "warning",
				StudentID: target.StudentID,
				CourseID:  target.CourseID,
				RiskLevel: prediction.RiskLevel,
				Message:   fmt.Sprintf("performance of %s is declining (slope %.2f)", targetLabel(target), history.Trend.Slope),
			})
			return fmt.Sprintf("declining, refreshed prediction %d", prediction.ID), nil
		})
	}
	return run.finish(h.now()), nil
}

func (h *handlers) modelAccuracyValidation(ctx context.Context, _ json.RawMessage, progress ProgressFunc) (Summary, error) {
	summaries, err := h.services.Predictions.AccuracySummary(ctx, h.now().UTC().Add(-accuracyWindow))
	if err != nil {
		return Summary{}, fmt.Errorf("summarize accuracy: %w", err)
	}
	threshold := h.accuracyThreshold()

	run := newCohortRun(JobModelAccuracyValidation, len(summaries), progress, h.logger)
	for _, summary := range summaries {
		summary := summary
		run.do(ctx, modelLabel(summary), func(ctx context.Context) (string, error) {
			run.modelEvent(service.ModelEvent{
				Kind:            service.ModelEventAccuracyReport,
				ModelVersion:    summary.ModelVersion,
				PredictionType:  summary.PredictionType,
				SampleCount:     summary.Count,
				AverageAccuracy: summary.AverageAccuracy,
				Message:         fmt.Sprintf("average accuracy %.2f over %d predictions", summary.AverageAccuracy, summary.Count),
			})
			if summary.AverageAccuracy < threshold {
				run.alert(service.Alert{
					Kind:     service.AlertAccuracyDrift,
					Severity: "warning",
					Message:  fmt.Sprintf("%s accuracy %.2f is below %.2f", modelLabel(summary), summary.AverageAccuracy, threshold),
				})
				return "below threshold", nil
			}
			return fmt.Sprintf("accuracy %.2f", summary.AverageAccuracy), nil
		})
	}
	return run.finish(h.now()), nil
}

func (h *handlers) emergencyInterventionDetection(ctx context.Context, _ json.RawMessage, progress ProgressFunc) (Summary, error) {
	elevated, err := h.services.Risk.ListElevatedSince(ctx, h.now().UTC().Add(-emergencyWindow))
	if err != nil {
		return Summary{}, fmt.Errorf("list elevated assessments: %w", err)
	}

	emergencies := make([]models.DropoutRiskAssessment, 0, len(elevated))
	for _, assessment := range elevated {
		if assessment.RiskLevel == models.RiskLevelVeryHigh {
			emergencies = append(emergencies, assessment)
		}
	}

	run := newCohortRun(JobEmergencyDetection, len(emergencies), progress, h.logger)
	for _, assessment := range emergencies {
		assessment := assessment
		run.do(ctx, fmt.Sprintf("assessment:%d", assessment.ID), func(ctx context.Context) (string, error) {
			if assessment.StudentNotified && assessment.InstructorNotified {
				return "", skip("already escalated")
			}
			generated, err := h.services.Interventions.GenerateFromAssessment(ctx, assessment.ID)
			if err != nil {
				return "", err
			}
			if err := h.services.Risk.MarkNotified(ctx, assessment.ID, true, true); err != nil {
				return "", err
			}
			run.alert(riskAlert(service.AlertEmergency, assessment))
			return fmt.Sprintf("escalated, %d interventions planned, %d reused", generated.Created, generated.Reused), nil
		})
	}
	return run.finish(h.now()), nil
}

func (h *handlers) predictiveModelRetraining(ctx context.Context, _ json.RawMessage, progress ProgressFunc) (Summary, error) {
	summaries, err := h.services.Predictions.AccuracySummary(ctx, h.now().UTC().Add(-retrainingWindow))
	if err != nil {
		return Summary{}, fmt.Errorf("summarize accuracy: %w", err)
	}
	threshold := h.accuracyThreshold()
	minimum := positiveOr(h.settings.RetrainingMinSamples, defaultRetrainingMinimum)

	run := newCohortRun(JobPredictiveModelRetraining, len(summaries), progress, h.logger)
	for _, summary := range summaries {
		summary := summary
		run.do(ctx, modelLabel(summary), func(ctx context.Context) (string, error) {
			if summary.Count < minimum {
				return "", skip("only %d validated predictions", summary.Count)
			}
			if summary.AverageAccuracy >= threshold {
				return "", skip("accuracy %.2f is acceptable", summary.AverageAccuracy)
			}
			run.modelEvent(service.ModelEvent{
				Kind:            service.ModelEventRetrainingRequested,
				ModelVersion:    summary.ModelVersion,
				PredictionType:  summary.PredictionType,
				SampleCount:     summary.Count,
				AverageAccuracy: summary.AverageAccuracy,
				Message:         fmt.Sprintf("retraining requested: accuracy %.2f below %.2f", summary.AverageAccuracy, threshold),
			})
			return "retraining requested", nil
		})
	}
	return run.finish(h.now()), nil
}

func (h *handlers) accuracyThreshold() float64 {
	if h.settings.AccuracyAlertLevel > 0 {
		return h.settings.AccuracyAlertLevel
	}
	return defaultAccuracyAlert
}

func riskAlert(kind string, assessment models.DropoutRiskAssessment) service.Alert {
	severity := "high"
	if assessment.RiskLevel == models.RiskLevelVeryHigh {
		severity = "critical"
	}
	id := assessment.ID
	return service.Alert{
		Kind:         kind,
		Severity:     severity,
		StudentID:    assessment.StudentID,
		CourseID:     assessment.CourseID,
		AssessmentID: &id,
		RiskLevel:    assessment.RiskLevel,
		Message:      fmt.Sprintf("student %d is at %s dropout risk (%.2f)", assessment.StudentID, assessment.RiskLevel, assessment.RiskProbability),
	}
}

func targetLabel(target repository.StudentCourse) string {
	if target.CourseID == nil {
		return fmt.Sprintf("student:%d", target.StudentID)
	}
	return fmt.Sprintf("student:%d/course:%d", target.StudentID, *target.CourseID)
}

func modelLabel(summary dto.AccuracySummary) string {
	return summary.ModelVersion + "/" + summary.PredictionType
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
