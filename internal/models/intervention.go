package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TargetMetric is a metric an intervention aims to move.
type TargetMetric struct {
	Metric   string  `json:"metric"`
	Baseline float64 `json:"baseline"`
	Target   float64 `json:"target"`
}

// InterventionParameters configures how an intervention is carried out.
type InterventionParameters struct {
	TargetMetrics   []TargetMetric `json:"target_metrics"`
	Automated       bool           `json:"automated"`
	FollowUpEnabled bool           `json:"follow_up_enabled"`
	Channel         string         `json:"channel,omitempty"`
	DurationDays    int            `json:"duration_days,omitempty"`
}

// SuccessCriteria describes when an intervention counts as successful.
type SuccessCriteria struct {
	Description      string         `json:"description"`
	MinEffectiveness float64        `json:"min_effectiveness"`
	Thresholds       []TargetMetric `json:"thresholds,omitempty"`
}

// MetricSnapshot is a point-in-time view of the metrics an intervention targets.
type MetricSnapshot struct {
	AvgScore          float64   `json:"avg_score"`
	AvgEngagement     float64   `json:"avg_engagement"`
	ActivityCount     int       `json:"activity_count"`
	AvgSessionMinutes float64   `json:"avg_session_minutes"`
	CapturedAt        time.Time `json:"captured_at"`
}

// InterventionRecommendation is a corrective action planned for a student.
type InterventionRecommendation struct {
	ID                 uint                                       `gorm:"primaryKey" json:"id"`
	StudentID          uint                                       `gorm:"index:idx_intervention_student_status;not null" json:"student_id"`
	CourseID           *uint                                      `gorm:"index" json:"course_id,omitempty"`
	PredictionID       *uint                                      `gorm:"index" json:"prediction_id,omitempty"`
	AssessmentID       *uint                                      `gorm:"index" json:"assessment_id,omitempty"`
	InterventionType   InterventionType                           `gorm:"size:32;not null" json:"intervention_type"`
	Title              string                                     `gorm:"size:255;not null" json:"title"`
	Description        string                                     `gorm:"type:text" json:"description"`
	Priority           int                                        `gorm:"index;not null" json:"priority"`
	Status             InterventionStatus                         `gorm:"size:16;index:idx_intervention_student_status;not null" json:"status"`
	RecommendedDate    time.Time                                  `gorm:"not null" json:"recommended_date"`
	ScheduledDate      *time.Time                                 `gorm:"index" json:"scheduled_date,omitempty"`
	StartedAt          *time.Time                                 `json:"started_at,omitempty"`
	CompletedAt        *time.Time                                 `json:"completed_at,omitempty"`
	Parameters         datatypes.JSONType[InterventionParameters] `json:"parameters"`
	Automated          bool                                       `gorm:"index;not null;default:false" json:"automated"`
	SuccessCriteria    datatypes.JSONType[*SuccessCriteria]       `json:"success_criteria"`
	AssignedToID       *uint                                      `gorm:"index" json:"assigned_to_id,omitempty"`
	Outcome            InterventionOutcome                        `gorm:"size:32" json:"outcome,omitempty"`
	OutcomeNotes       string                                     `gorm:"type:text" json:"outcome_notes,omitempty"`
	EffectivenessScore *float64                                   `json:"effectiveness_score,omitempty"`
	PreMetrics         datatypes.JSONType[*MetricSnapshot]        `json:"pre_metrics"`
	PostMetrics        datatypes.JSONType[*MetricSnapshot]        `json:"post_metrics"`
	FollowUpRequired   bool                                       `json:"follow_up_required"`
	FollowUpDate       *time.Time                                 `json:"follow_up_date,omitempty"`
	ReminderSentAt     *time.Time                                 `json:"reminder_sent_at,omitempty"`
	CreatedAt          time.Time                                  `json:"created_at"`
	UpdatedAt          time.Time                                  `json:"updated_at"`
	DeletedAt          gorm.DeletedAt                             `gorm:"index" json:"-"`
}
