package dto

import (
	"time"

	"github.com/noah-isme/gema-analytics-api/internal/analytics"
	"github.com/noah-isme/gema-analytics-api/internal/models"
)

// StudentDashboardResponse is the predictive overview of one student.
type StudentDashboardResponse struct {
	StudentID         uint                                `json:"student_id"`
	Signals           models.PredictionFeatures           `json:"signals"`
	LatestAssessment  *models.DropoutRiskAssessment       `json:"latest_assessment,omitempty"`
	RecentPredictions []models.PerformancePrediction      `json:"recent_predictions"`
	PerformanceTrend  analytics.Trend                     `json:"performance_trend"`
	ActiveForecasts   []models.LearningOutcomeForecast    `json:"active_forecasts"`
	OpenInterventions []models.InterventionRecommendation `json:"open_interventions"`
	GeneratedAt       time.Time                           `json:"generated_at"`
	CacheHit          bool                                `json:"cache_hit"`
}

// InstructorDashboardResponse aggregates risk and intervention state for an instructor.
type InstructorDashboardResponse struct {
	InstructorID          uint                                `json:"instructor_id"`
	WindowDays            int                                 `json:"window_days"`
	RiskDistribution      map[string]int64                    `json:"risk_distribution"`
	ElevatedStudents      []models.DropoutRiskAssessment      `json:"elevated_students"`
	AssignedInterventions []models.InterventionRecommendation `json:"assigned_interventions"`
	InterventionStatus    map[string]int64                    `json:"intervention_status"`
	ModelAccuracy         []AccuracySummary                   `json:"model_accuracy"`
	PredictionsGenerated  int64                               `json:"predictions_generated"`
	GeneratedAt           time.Time                           `json:"generated_at"`
	CacheHit              bool                                `json:"cache_hit"`
}
