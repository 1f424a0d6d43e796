package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ForecastScenario is one of the optimistic/realistic/pessimistic projections.
type ForecastScenario struct {
	Probability   float64  `json:"probability"`
	Outcome       string   `json:"outcome"`
	TimeframeDays int      `json:"timeframe_days"`
	Conditions    []string `json:"conditions"`
}

// ForecastScenarios holds the three named scenarios of a forecast.
type ForecastScenarios struct {
	Optimistic  ForecastScenario `json:"optimistic"`
	Realistic   ForecastScenario `json:"realistic"`
	Pessimistic ForecastScenario `json:"pessimistic"`
}

// Ordered reports whether optimistic >= realistic >= pessimistic.
func (s ForecastScenarios) Ordered() bool {
	return s.Optimistic.Probability >= s.Realistic.Probability && s.Realistic.Probability >= s.Pessimistic.Probability
}

// ForecastAccuracy is computed once a forecast is reconciled with the real outcome.
type ForecastAccuracy struct {
	OutcomeAccuracy float64   `json:"outcome_accuracy"`
	TimeAccuracy    float64   `json:"time_accuracy"`
	OverallAccuracy float64   `json:"overall_accuracy"`
	ValidatedAt     time.Time `json:"validated_at"`
}

// LearningOutcomeForecast projects the probability of a learning outcome by a target date.
type LearningOutcomeForecast struct {
	ID                        uint                                  `gorm:"primaryKey" json:"id"`
	StudentID                 uint                                  `gorm:"index;not null" json:"student_id"`
	CourseID                  *uint                                 `gorm:"index" json:"course_id,omitempty"`
	OutcomeType               OutcomeType                           `gorm:"size:32;index;not null" json:"outcome_type"`
	ForecastDate              time.Time                             `gorm:"not null" json:"forecast_date"`
	TargetDate                time.Time                             `gorm:"index;not null" json:"target_date"`
	SuccessProbability        float64                               `json:"success_probability"`
	PredictedScore            *float64                              `json:"predicted_score,omitempty"`
	EstimatedDaysToCompletion *int                                  `json:"estimated_days_to_completion,omitempty"`
	Scenarios                 datatypes.JSONType[ForecastScenarios] `json:"scenarios"`
	ConfidenceLevel           float64                               `json:"confidence_level"`
	ModelVersion              string                                `gorm:"size:64;not null" json:"model_version"`
	IsRealized                bool                                  `gorm:"index;not null;default:false" json:"is_realized"`
	ActualOutcome             *float64                              `json:"actual_outcome,omitempty"`
	ActualCompletionDate      *time.Time                            `json:"actual_completion_date,omitempty"`
	AccuracyMetrics           datatypes.JSONType[*ForecastAccuracy] `json:"accuracy_metrics"`
	CreatedAt                 time.Time                             `json:"created_at"`
	UpdatedAt                 time.Time                             `json:"updated_at"`
	DeletedAt                 gorm.DeletedAt                        `gorm:"index" json:"-"`
}

// IsDue reports whether the target date has passed.
func (f LearningOutcomeForecast) IsDue(reference time.Time) bool {
	return !reference.Before(f.TargetDate)
}
