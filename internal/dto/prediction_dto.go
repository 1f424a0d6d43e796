package dto

import (
	"time"

	"github.com/noah-isme/gema-analytics-api/internal/analytics"
)

// PredictionCreateRequest asks for a new prediction of a student.
type PredictionCreateRequest struct {
	StudentID      uint       `json:"student_id" validate:"required"`
	CourseID       *uint      `json:"course_id" validate:"omitempty,min=1"`
	PredictionType string     `json:"prediction_type" validate:"required,oneof=performance dropout_risk learning_outcome completion_time resource_usage"`
	TargetDate     *time.Time `json:"target_date"`
}

// PredictionValidateRequest records the realized value of a prediction.
type PredictionValidateRequest struct {
	ActualValue *float64 `json:"actual_value" validate:"required,gte=0,lte=100"`
	Correction  bool     `json:"correction"`
}

// PredictionHistoryPoint is one prediction of a history series.
type PredictionHistoryPoint struct {
	PredictionID   uint      `json:"prediction_id"`
	PredictionDate time.Time `json:"prediction_date"`
	PredictedValue float64   `json:"predicted_value"`
	ActualValue    *float64  `json:"actual_value,omitempty"`
	ModelVersion   string    `json:"model_version"`
}

// PredictionHistoryResponse is an ordered series of predictions with its trend.
type PredictionHistoryResponse struct {
	StudentID      uint                     `json:"student_id"`
	PredictionType string                   `json:"prediction_type"`
	Points         []PredictionHistoryPoint `json:"points"`
	Trend          analytics.Trend          `json:"trend"`
}

// AccuracySummary aggregates validated predictions of one model version and type.
type AccuracySummary struct {
	ModelVersion      string  `json:"model_version"`
	PredictionType    string  `json:"prediction_type"`
	Count             int     `json:"count"`
	AverageAccuracy   float64 `json:"average_accuracy"`
	MeanAbsoluteError float64 `json:"mean_absolute_error"`
}
