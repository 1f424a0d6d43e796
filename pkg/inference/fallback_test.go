package inference

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFallbackCoversEveryPredictionType(t *testing.T) {
	types := []string{
		PredictionPerformance,
		PredictionDropoutRisk,
		PredictionLearningOutcome,
		PredictionCompletionTime,
		PredictionResourceUsage,
	}
	require.Len(t, fallbackBlends, len(types))
	for _, predictionType := range types {
		require.True(t, SupportsPredictionType(predictionType), predictionType)
		weights := fallbackBlends[predictionType]
		require.InDelta(t, 1, weights.engagement+weights.performance, 0.0001)
	}
	require.False(t, SupportsPredictionType("unknown"))
}

func TestFallbackPredictDropoutInverts(t *testing.T) {
	data := LearningData{AvgEngagement: 90, AvgPerformance: 90, ActivityCount: 30}

	performance := FallbackPredict(PredictionRequest{LearningData: data, PredictionType: PredictionPerformance})
	dropout := FallbackPredict(PredictionRequest{LearningData: data, PredictionType: PredictionDropoutRisk})

	require.Equal(t, 90.0, performance.PredictedValue)
	require.Equal(t, "very_low", performance.RiskLevel)
	require.Equal(t, 10.0, dropout.PredictedValue)
	require.Equal(t, "very_low", dropout.RiskLevel)
	require.Equal(t, 70.0, dropout.ConfidenceScore)
}

func TestFallbackPredictIsDeterministic(t *testing.T) {
	req := PredictionRequest{LearningData: sampleData(), PredictionType: PredictionResourceUsage}
	require.Equal(t, FallbackPredict(req), FallbackPredict(req))
	require.Equal(t, 44.5, FallbackPredict(req).PredictedValue)
}

func TestFallbackForecastDefaultsWeights(t *testing.T) {
	result := FallbackForecast(ForecastRequest{LearningData: LearningData{AvgEngagement: 60, AvgPerformance: 80}})
	require.Equal(t, 70.0, result.SuccessProbability)
	require.Equal(t, 50.0, result.ConfidenceLevel)
}
