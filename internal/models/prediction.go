package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FallbackModelVersion marks predictions produced by the rule-based estimator.
const FallbackModelVersion = "rule-based-v1.0"

// ContributingFactors carries the named weights a model attributed to each input.
type ContributingFactors struct {
	Engagement  float64 `json:"engagement"`
	Performance float64 `json:"performance"`
	Activity    float64 `json:"activity,omitempty"`
	Consistency float64 `json:"consistency,omitempty"`
}

// PredictionFeatures records the aggregated inputs a prediction was computed from.
type PredictionFeatures struct {
	WindowDays        int     `json:"window_days"`
	ActivityCount     int     `json:"activity_count"`
	AvgEngagement     float64 `json:"avg_engagement"`
	AvgPerformance    float64 `json:"avg_performance"`
	AvgSessionMinutes float64 `json:"avg_session_minutes"`
}

// PerformancePrediction is a single model output for a student.
type PerformancePrediction struct {
	ID                  uint                                    `gorm:"primaryKey" json:"id"`
	StudentID           uint                                    `gorm:"index:idx_prediction_student_type;not null" json:"student_id"`
	CourseID            *uint                                   `gorm:"index" json:"course_id,omitempty"`
	PredictionType      PredictionType                          `gorm:"size:32;index:idx_prediction_student_type;not null" json:"prediction_type"`
	PredictionDate      time.Time                               `gorm:"index;not null" json:"prediction_date"`
	TargetDate          *time.Time                              `json:"target_date,omitempty"`
	PredictedValue      float64                                 `json:"predicted_value"`
	ConfidenceScore     float64                                 `json:"confidence_score"`
	RiskLevel           RiskLevel                               `gorm:"size:16;index" json:"risk_level"`
	ContributingFactors datatypes.JSONType[ContributingFactors] `json:"contributing_factors"`
	Features            datatypes.JSONType[PredictionFeatures]  `json:"features"`
	ActualValue         *float64                                `json:"actual_value,omitempty"`
	AccuracyScore       *float64                                `json:"accuracy_score,omitempty"`
	IsValidated         bool                                    `gorm:"index;not null;default:false" json:"is_validated"`
	ValidatedAt         *time.Time                              `json:"validated_at,omitempty"`
	ModelVersion        string                                  `gorm:"size:64;index;not null" json:"model_version"`
	CreatedAt           time.Time                               `json:"created_at"`
	UpdatedAt           time.Time                               `json:"updated_at"`
	DeletedAt           gorm.DeletedAt                          `gorm:"index" json:"-"`
}

// IsDue reports whether the target date has passed without a validation.
func (p PerformancePrediction) IsDue(reference time.Time) bool {
	return !p.IsValidated && p.TargetDate != nil && !reference.Before(*p.TargetDate)
}

// UsedFallback reports whether the rule-based estimator produced the prediction.
func (p PerformancePrediction) UsedFallback() bool {
	return p.ModelVersion == FallbackModelVersion
}
