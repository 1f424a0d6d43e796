package analytics

import "github.com/noah-isme/gema-analytics-api/internal/models"

// Trend directions.
const (
	TrendImproving        = "improving"
	TrendDeclining        = "declining"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"
)

const (
	trendSlopeThreshold  = 2.0
	sharpDeclineSlope    = -5.0
	confidencePerSample  = 10.0
	maxTrendConfidence   = 100.0
	minTrendSampleLength = 2
)

// Trend is an ordinary least-squares fit of values against their index.
type Trend struct {
	Direction  string  `json:"direction"`
	Slope      float64 `json:"slope"`
	Intercept  float64 `json:"intercept"`
	Confidence float64 `json:"confidence"`
	DataPoints int     `json:"data_points"`
}

// AnalyzeTrend fits a line to values ordered oldest first.
func AnalyzeTrend(values []float64) Trend {
	n := len(values)
	if n < minTrendSampleLength {
		return Trend{Direction: TrendInsufficientData, DataPoints: n}
	}

	xMean := float64(n-1) / 2
	yMean := mean(values)

	var numerator, denominator float64
	for i, y := range values {
		dx := float64(i) - xMean
		numerator += dx * (y - yMean)
		denominator += dx * dx
	}

	slope := numerator / denominator
	direction := TrendStable
	switch {
	case slope > trendSlopeThreshold:
		direction = TrendImproving
	case slope < -trendSlopeThreshold:
		direction = TrendDeclining
	}

	return Trend{
		Direction:  direction,
		Slope:      Round2(slope),
		Intercept:  Round2(yMean - slope*xMean),
		Confidence: clamp(float64(n)*confidencePerSample, 0, maxTrendConfidence),
		DataPoints: n,
	}
}

// SharpDecline reports a decline steep enough to warrant a fresh prediction.
func (t Trend) SharpDecline() bool {
	return t.Direction == TrendDeclining && t.Slope < sharpDeclineSlope
}

// Summary converts the trend into its stored form.
func (t Trend) Summary() models.TrendSummary {
	return models.TrendSummary{
		Direction:  t.Direction,
		Slope:      t.Slope,
		Confidence: t.Confidence,
		DataPoints: t.DataPoints,
	}
}
