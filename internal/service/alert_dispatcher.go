package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-analytics-api/internal/models"
	"github.com/noah-isme/gema-analytics-api/internal/observability"
)

// Alert kinds emitted by the batch jobs.
const (
	AlertHighRisk      = "high_risk"
	AlertEmergency     = "emergency"
	AlertSharpDecline  = "sharp_decline"
	AlertAccuracyDrift = "accuracy_drift"
)

// Model event kinds.
const (
	ModelEventAccuracyReport      = "accuracy_report"
	ModelEventRetrainingRequested = "retraining_requested"
)

// Alert notifies staff about a student or a model that needs attention.
type Alert struct {
	ID           string           `json:"id"`
	Kind         string           `json:"kind"`
	Severity     string           `json:"severity"`
	StudentID    uint             `json:"student_id,omitempty"`
	CourseID     *uint            `json:"course_id,omitempty"`
	AssessmentID *uint            `json:"assessment_id,omitempty"`
	RiskLevel    models.RiskLevel `json:"risk_level,omitempty"`
	Message      string           `json:"message"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Reminder tells the assignee about an upcoming intervention.
type Reminder struct {
	ID               string                  `json:"id"`
	InterventionID   uint                    `json:"intervention_id"`
	StudentID        uint                    `json:"student_id"`
	AssignedToID     *uint                   `json:"assigned_to_id,omitempty"`
	InterventionType models.InterventionType `json:"intervention_type"`
	ScheduledDate    *time.Time              `json:"scheduled_date,omitempty"`
	Message          string                  `json:"message"`
	CreatedAt        time.Time               `json:"created_at"`
}

// ModelEvent reports model quality or asks for retraining.
type ModelEvent struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	ModelVersion    string    `json:"model_version"`
	PredictionType  string    `json:"prediction_type,omitempty"`
	SampleCount     int       `json:"sample_count"`
	AverageAccuracy float64   `json:"average_accuracy"`
	Message         string    `json:"message"`
	CreatedAt       time.Time `json:"created_at"`
}

// AlertDispatcher hands alerts, reminders and model events to the notification collaborator.
type AlertDispatcher interface {
	PublishAlert(ctx context.Context, alert Alert) error
	PublishReminder(ctx context.Context, reminder Reminder) error
	PublishModelEvent(ctx context.Context, event ModelEvent) error
}

// NewAlertDispatcher publishes over NATS when a connection is available and logs otherwise.
func NewAlertDispatcher(conn *nats.Conn, subjectBase string, logger zerolog.Logger) AlertDispatcher {
	if conn == nil || subjectBase == "" {
		return NewLogAlertDispatcher(logger)
	}
	return NewNATSAlertDispatcher(conn, subjectBase, logger)
}

// NATSAlertDispatcher publishes JSON events on <base>.alerts, <base>.reminders and <base>.models.
type NATSAlertDispatcher struct {
	conn            *nats.Conn
	alertSubject    string
	reminderSubject string
	modelSubject    string
	nodeID          string
	logger          zerolog.Logger
}

// NewNATSAlertDispatcher builds a dispatcher publishing below subjectBase.
func NewNATSAlertDispatcher(conn *nats.Conn, subjectBase string, logger zerolog.Logger) *NATSAlertDispatcher {
	base := strings.ReplaceAll(subjectBase, ":", ".")
	return &NATSAlertDispatcher{
		conn:            conn,
		alertSubject:    base + ".alerts",
		reminderSubject: base + ".reminders",
		modelSubject:    base + ".models",
		nodeID:          uuid.NewString(),
		logger:          logger.With().Str("component", "alert_dispatcher").Logger(),
	}
}

type eventEnvelope struct {
	Source string      `json:"source"`
	Type   string      `json:"type"`
	Data   interface{} `json:"data"`
}

func (d *NATSAlertDispatcher) publish(subject, kind string, data interface{}) error {
	payload, err := json.Marshal(eventEnvelope{Source: d.nodeID, Type: kind, Data: data})
	if err != nil {
		return err
	}
	if err := d.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	observability.EventsPublished().WithLabelValues(kind, "nats").Inc()
	return nil
}

func (d *NATSAlertDispatcher) PublishAlert(ctx context.Context, alert Alert) error {
	stampAlert(&alert)
	return d.publish(d.alertSubject, "alert", alert)
}

func (d *NATSAlertDispatcher) PublishReminder(ctx context.Context, reminder Reminder) error {
	stampReminder(&reminder)
	return d.publish(d.reminderSubject, "reminder", reminder)
}

func (d *NATSAlertDispatcher) PublishModelEvent(ctx context.Context, event ModelEvent) error {
	stampModelEvent(&event)
	return d.publish(d.modelSubject, "model", event)
}

// LogAlertDispatcher is the fallback used when no broker is configured; it only logs.
type LogAlertDispatcher struct {
	logger zerolog.Logger
}

// NewLogAlertDispatcher constructs a logging dispatcher.
func NewLogAlertDispatcher(logger zerolog.Logger) *LogAlertDispatcher {
	return &LogAlertDispatcher{logger: logger.With().Str("component", "alert_dispatcher").Logger()}
}

func (l *LogAlertDispatcher) PublishAlert(ctx context.Context, alert Alert) error {
	stampAlert(&alert)
	l.logger.Info().
		Str("alert_id", alert.ID).
		Str("kind", alert.Kind).
		Str("severity", alert.Severity).
		Uint("student_id", alert.StudentID).
		Msg(alert.Message)
	observability.EventsPublished().WithLabelValues("alert", "log").Inc()
	return nil
}

func (l *LogAlertDispatcher) PublishReminder(ctx context.Context, reminder Reminder) error {
	stampReminder(&reminder)
	l.logger.Info().
		Str("reminder_id", reminder.ID).
		Uint("intervention_id", reminder.InterventionID).
		Uint("student_id", reminder.StudentID).
		Msg(reminder.Message)
	observability.EventsPublished().WithLabelValues("reminder", "log").Inc()
	return nil
}

func (l *LogAlertDispatcher) PublishModelEvent(ctx context.Context, event ModelEvent) error {
	stampModelEvent(&event)
	l.logger.Info().
		Str("event_id", event.ID).
		Str("kind", event.Kind).
		Str("model_version", event.ModelVersion).
		Float64("average_accuracy", event.AverageAccuracy).
		Msg(event.Message)
	observability.EventsPublished().WithLabelValues("model", "log").Inc()
	return nil
}

func stampAlert(alert *Alert) {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
}

func stampReminder(reminder *Reminder) {
	if reminder.ID == "" {
		reminder.ID = uuid.NewString()
	}
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = time.Now().UTC()
	}
}

func stampModelEvent(event *ModelEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
}
