package inference

import (
	"context"
	"time"
)

// Prediction types accepted by the inference service.
const (
	PredictionPerformance     = "performance"
	PredictionDropoutRisk     = "dropout_risk"
	PredictionLearningOutcome = "learning_outcome"
	PredictionCompletionTime  = "completion_time"
	PredictionResourceUsage   = "resource_usage"
)

// FallbackModelVersion is reported by every result of the rule-based estimator.
const FallbackModelVersion = "rule-based-v1.0"

// LearningData is the aggregated learning signal sent to the model.
type LearningData struct {
	StudentID         uint    `json:"student_id"`
	CourseID          *uint   `json:"course_id,omitempty"`
	WindowDays        int     `json:"window_days"`
	ActivityCount     int     `json:"activity_count"`
	ActiveDays        int     `json:"active_days"`
	AvgEngagement     float64 `json:"avg_engagement"`
	AvgPerformance    float64 `json:"avg_performance"`
	AvgSessionMinutes float64 `json:"avg_session_minutes"`
	CompletionRate    float64 `json:"completion_rate"`
}

// PredictionRequest asks for one prediction of the given type.
type PredictionRequest struct {
	LearningData   LearningData
	PredictionType string
	TargetDate     *time.Time
}

// Factors are the weights a model attributed to each input.
type Factors struct {
	Engagement  float64 `json:"engagement"`
	Performance float64 `json:"performance"`
	Activity    float64 `json:"activity,omitempty"`
	Consistency float64 `json:"consistency,omitempty"`
}

// Prediction is the gateway contract for performance-style predictions.
type Prediction struct {
	PredictedValue      float64 `json:"predicted_value"`
	ConfidenceScore     float64 `json:"confidence_score"`
	RiskLevel           string  `json:"risk_level"`
	ContributingFactors Factors `json:"contributing_factors"`
	ModelVersion        string  `json:"model_version"`
}

// ForecastRequest asks for the success probability of an outcome by a target date.
// The weights steer the rule-based estimator when the model is unavailable.
type ForecastRequest struct {
	LearningData      LearningData
	OutcomeType       string
	TargetDate        time.Time
	EngagementWeight  float64
	PerformanceWeight float64
}

// Forecast is the gateway contract for outcome forecasts.
type Forecast struct {
	SuccessProbability float64  `json:"success_probability"`
	ConfidenceLevel    float64  `json:"confidence_level"`
	PredictedScore     *float64 `json:"predicted_score,omitempty"`
	ModelVersion       string   `json:"model_version"`
}

// Provider is a remote model able to answer predictions and forecasts.
type Provider interface {
	Name() string
	Predict(ctx context.Context, req PredictionRequest) (Prediction, error)
	Forecast(ctx context.Context, req ForecastRequest) (Forecast, error)
}
