package analytics

import (
	"math"
	"time"

	"github.com/noah-isme/gema-analytics-api/internal/models"
)

// PredictionAccuracy is 100 minus the absolute error, floored at 0.
func PredictionAccuracy(predicted, actual float64) float64 {
	return Round2(math.Max(0, 100-math.Abs(predicted-actual)))
}

// ForecastAccuracy reconciles a forecast with its realized outcome.
// A nil completion date scores a perfect time accuracy.
func ForecastAccuracy(successProbability, actualOutcome float64, target time.Time, completedAt *time.Time, validatedAt time.Time) models.ForecastAccuracy {
	outcome := PredictionAccuracy(successProbability, actualOutcome)

	timeAccuracy := 100.0
	if completedAt != nil {
		days := math.Round(math.Abs(completedAt.Sub(target).Hours()) / 24)
		timeAccuracy = math.Max(0, 100-days)
	}

	return models.ForecastAccuracy{
		OutcomeAccuracy: outcome,
		TimeAccuracy:    timeAccuracy,
		OverallAccuracy: Round2((outcome + timeAccuracy) / 2),
		ValidatedAt:     validatedAt,
	}
}

// AccuracyStats accumulates validated predictions of one model version and type.
type AccuracyStats struct {
	Count             int
	totalAccuracy     float64
	totalAbsoluteDiff float64
}

// Add records one validated prediction.
func (s *AccuracyStats) Add(predicted, actual, accuracy float64) {
	s.Count++
	s.totalAccuracy += accuracy
	s.totalAbsoluteDiff += math.Abs(predicted - actual)
}

// AverageAccuracy returns the mean accuracy score, 0 when empty.
func (s AccuracyStats) AverageAccuracy() float64 {
	if s.Count == 0 {
		return 0
	}
	return Round2(s.totalAccuracy / float64(s.Count))
}

// MeanAbsoluteError returns the mean absolute prediction error, 0 when empty.
func (s AccuracyStats) MeanAbsoluteError() float64 {
	if s.Count == 0 {
		return 0
	}
	return Round2(s.totalAbsoluteDiff / float64(s.Count))
}
