package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPredictionAccuracy(t *testing.T) {
	require.Equal(t, 95.0, PredictionAccuracy(70, 65))
	require.Equal(t, 30.0, PredictionAccuracy(70, 0))
	require.Equal(t, 100.0, PredictionAccuracy(42, 42))
	require.Equal(t, 0.0, PredictionAccuracy(150, 0))
}

func TestForecastAccuracyWithCompletionDate(t *testing.T) {
	target := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	completed := target.AddDate(0, 0, 12)
	validatedAt := target.AddDate(0, 0, 20)

	accuracy := ForecastAccuracy(80, 70, target, &completed, validatedAt)

	require.Equal(t, 90.0, accuracy.OutcomeAccuracy)
	require.Equal(t, 88.0, accuracy.TimeAccuracy)
	require.Equal(t, 89.0, accuracy.OverallAccuracy)
	require.Equal(t, validatedAt, accuracy.ValidatedAt)
}

func TestForecastAccuracyWithoutCompletionDate(t *testing.T) {
	target := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	accuracy := ForecastAccuracy(60, 75, target, nil, target)

	require.Equal(t, 85.0, accuracy.OutcomeAccuracy)
	require.Equal(t, 100.0, accuracy.TimeAccuracy)
	require.Equal(t, 92.5, accuracy.OverallAccuracy)
}

func TestForecastAccuracyTimeFloorsAtZero(t *testing.T) {
	target := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	completed := target.AddDate(0, 0, -150)

	accuracy := ForecastAccuracy(50, 50, target, &completed, target)

	require.Zero(t, accuracy.TimeAccuracy)
	require.Equal(t, 50.0, accuracy.OverallAccuracy)
}

func TestAccuracyStats(t *testing.T) {
	var stats AccuracyStats
	require.Zero(t, stats.AverageAccuracy())
	require.Zero(t, stats.MeanAbsoluteError())

	stats.Add(70, 65, PredictionAccuracy(70, 65))
	stats.Add(40, 50, PredictionAccuracy(40, 50))

	require.Equal(t, 2, stats.Count)
	require.Equal(t, 92.5, stats.AverageAccuracy())
	require.Equal(t, 7.5, stats.MeanAbsoluteError())
}
