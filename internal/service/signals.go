package service

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/gema-analytics-api/internal/analytics"
	"github.com/noah-isme/gema-analytics-api/internal/models"
	"github.com/noah-isme/gema-analytics-api/internal/repository"
	"github.com/noah-isme/gema-analytics-api/pkg/inference"
)

// InferenceGateway produces model predictions and forecasts. Implementations never fail;
// they degrade to the rule-based estimator instead.
type InferenceGateway interface {
	Predict(ctx context.Context, req inference.PredictionRequest) inference.Prediction
	Forecast(ctx context.Context, req inference.ForecastRequest) inference.Forecast
}

// PredictionWindowDays is the trailing window used for model input.
const PredictionWindowDays = 30

func loadSnapshot(ctx context.Context, signals repository.LearningSignalRepository, studentID uint, courseID *uint, windowDays int, now time.Time) (analytics.Snapshot, error) {
	from := now.AddDate(0, 0, -windowDays)
	activities, err := signals.ListActivities(ctx, studentID, courseID, from, now)
	if err != nil {
		return analytics.Snapshot{}, fmt.Errorf("load learning signals: %w", err)
	}
	return analytics.BuildSnapshot(activities, from, now), nil
}

func learningData(snapshot analytics.Snapshot, studentID uint, courseID *uint) inference.LearningData {
	completion := 0.0
	if snapshot.ActivityCount > 0 {
		completion = float64(snapshot.CompletedCount) / float64(snapshot.ActivityCount) * 100
	}
	return inference.LearningData{
		StudentID:         studentID,
		CourseID:          courseID,
		WindowDays:        snapshot.WindowDays(),
		ActivityCount:     snapshot.ActivityCount,
		ActiveDays:        snapshot.ActiveDays,
		AvgEngagement:     analytics.Round2(snapshot.EngagementLevel()),
		AvgPerformance:    analytics.Round2(snapshot.PerformanceLevel()),
		AvgSessionMinutes: analytics.Round2(snapshot.AvgSessionMinutes),
		CompletionRate:    analytics.Round2(completion),
	}
}

func modelSource(modelVersion string) string {
	if modelVersion == models.FallbackModelVersion {
		return "fallback"
	}
	return "model"
}

func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
