package inference

import "math"

// blend is the linear combination used by the rule-based estimator for one prediction type.
type blend struct {
	engagement  float64
	performance float64
	invert      bool
}

var fallbackBlends = map[string]blend{
	PredictionPerformance:     {engagement: 0.4, performance: 0.6},
	PredictionDropoutRisk:     {engagement: 0.5, performance: 0.5, invert: true},
	PredictionLearningOutcome: {engagement: 0.3, performance: 0.7},
	PredictionCompletionTime:  {engagement: 0.6, performance: 0.4},
	PredictionResourceUsage:   {engagement: 0.7, performance: 0.3},
}

// SupportsPredictionType reports whether the rule-based estimator knows the type.
func SupportsPredictionType(predictionType string) bool {
	_, ok := fallbackBlends[predictionType]
	return ok
}

// FallbackPredict is the deterministic estimator used when no model answers.
// Unknown types are scored like performance predictions.
func FallbackPredict(req PredictionRequest) Prediction {
	weights, ok := fallbackBlends[req.PredictionType]
	if !ok {
		weights = fallbackBlends[PredictionPerformance]
	}

	data := req.LearningData
	value := weights.engagement*data.AvgEngagement + weights.performance*data.AvgPerformance
	if weights.invert {
		value = 100 - value
	}
	value = round2(clamp(value, 0, 100))

	riskScore := 100 - value
	if weights.invert {
		riskScore = value
	}

	return Prediction{
		PredictedValue:  value,
		ConfidenceScore: fallbackConfidence(data.ActivityCount),
		RiskLevel:       riskLevelFor(riskScore),
		ContributingFactors: Factors{
			Engagement:  weights.engagement,
			Performance: weights.performance,
		},
		ModelVersion: FallbackModelVersion,
	}
}

// FallbackForecast estimates a success probability from the request weights.
func FallbackForecast(req ForecastRequest) Forecast {
	engagementWeight, performanceWeight := req.EngagementWeight, req.PerformanceWeight
	if engagementWeight+performanceWeight <= 0 {
		engagementWeight, performanceWeight = 0.5, 0.5
	}
	total := engagementWeight + performanceWeight

	data := req.LearningData
	probability := (engagementWeight*data.AvgEngagement + performanceWeight*data.AvgPerformance) / total

	return Forecast{
		SuccessProbability: round2(clamp(probability, 0, 100)),
		ConfidenceLevel:    fallbackConfidence(data.ActivityCount),
		ModelVersion:       FallbackModelVersion,
	}
}

func fallbackConfidence(activityCount int) float64 {
	if activityCount > 10 {
		activityCount = 10
	}
	if activityCount < 0 {
		activityCount = 0
	}
	return 50 + float64(activityCount)*2
}

func riskLevelFor(score float64) string {
	switch {
	case score >= 80:
		return "very_high"
	case score >= 65:
		return "high"
	case score >= 50:
		return "medium"
	case score >= 30:
		return "low"
	default:
		return "very_low"
	}
}

func clamp(value, lower, upper float64) float64 {
	return math.Max(lower, math.Min(upper, value))
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
