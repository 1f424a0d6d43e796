package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func sampleData() LearningData {
	return LearningData{
		StudentID:      7,
		WindowDays:     30,
		ActivityCount:  8,
		AvgEngagement:  40,
		AvgPerformance: 55,
	}
}

func TestGatewayPredictUsesModelResponse(t *testing.T) {
	var authHeader string
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/predict/performance", r.URL.Path)
		authHeader = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"predicted_value": 72.5, "confidence_score": 88, "risk_level": "low", "contributing_factors": {"engagement": 0.3, "performance": 0.7}, "model_version": "gema-predict-v2"}`))
	}))
	defer server.Close()

	provider, err := NewHTTPProvider(HTTPConfig{BaseURL: server.URL + "/", Token: "secret", ModelVersion: "gema-predict-v2", Timeout: time.Second})
	require.NoError(t, err)
	gateway := NewGateway(provider, time.Second, zerolog.Nop())

	result := gateway.Predict(context.Background(), PredictionRequest{LearningData: sampleData(), PredictionType: PredictionPerformance})

	require.Equal(t, "Bearer secret", authHeader)
	require.Equal(t, "performance", payload["predictionType"])
	require.Equal(t, "gema-predict-v2", payload["modelVersion"])
	require.Contains(t, payload, "learningData")
	require.Equal(t, 72.5, result.PredictedValue)
	require.Equal(t, "low", result.RiskLevel)
	require.Equal(t, "gema-predict-v2", result.ModelVersion)
	require.Equal(t, 0.7, result.ContributingFactors.Performance)
}

func TestGatewayPredictFallsBackOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider, err := NewHTTPProvider(HTTPConfig{BaseURL: server.URL})
	require.NoError(t, err)
	gateway := NewGateway(provider, time.Second, zerolog.Nop())

	result := gateway.Predict(context.Background(), PredictionRequest{LearningData: sampleData(), PredictionType: PredictionPerformance})

	require.Equal(t, FallbackModelVersion, result.ModelVersion)
	require.Equal(t, 49.0, result.PredictedValue)
	require.Equal(t, 66.0, result.ConfidenceScore)
	require.Equal(t, "medium", result.RiskLevel)
}

func TestGatewayPredictFallsBackOnInvalidPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"predicted_value": 140, "confidence_score": 88, "risk_level": "catastrophic", "model_version": "x"}`))
	}))
	defer server.Close()

	provider, err := NewHTTPProvider(HTTPConfig{BaseURL: server.URL})
	require.NoError(t, err)
	gateway := NewGateway(provider, time.Second, zerolog.Nop())

	result := gateway.Predict(context.Background(), PredictionRequest{LearningData: sampleData(), PredictionType: PredictionDropoutRisk})

	require.Equal(t, FallbackModelVersion, result.ModelVersion)
	require.Equal(t, 52.5, result.PredictedValue)
	require.Equal(t, "medium", result.RiskLevel)
}

func TestGatewayPredictFallsBackOnTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	provider, err := NewHTTPProvider(HTTPConfig{BaseURL: server.URL})
	require.NoError(t, err)
	gateway := NewGateway(provider, 50*time.Millisecond, zerolog.Nop())

	start := time.Now()
	result := gateway.Predict(context.Background(), PredictionRequest{LearningData: sampleData(), PredictionType: PredictionPerformance})

	require.Less(t, time.Since(start), 5*time.Second)
	require.Equal(t, FallbackModelVersion, result.ModelVersion)
}

func TestGatewayPredictFallsBackOnUnreachableService(t *testing.T) {
	provider, err := NewHTTPProvider(HTTPConfig{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	gateway := NewGateway(provider, time.Second, zerolog.Nop())

	result := gateway.Predict(context.Background(), PredictionRequest{LearningData: sampleData(), PredictionType: PredictionLearningOutcome})

	require.Equal(t, FallbackModelVersion, result.ModelVersion)
	require.Equal(t, 50.5, result.PredictedValue)
}

func TestGatewayWithoutProviderUsesFallback(t *testing.T) {
	gateway := NewGateway(nil, 0, zerolog.Nop())

	prediction := gateway.Predict(context.Background(), PredictionRequest{LearningData: sampleData(), PredictionType: PredictionCompletionTime})
	require.Equal(t, FallbackModelVersion, prediction.ModelVersion)

	forecast := gateway.Forecast(context.Background(), ForecastRequest{
		LearningData:      sampleData(),
		OutcomeType:       "course_completion",
		TargetDate:        time.Now().Add(24 * time.Hour),
		EngagementWeight:  0.6,
		PerformanceWeight: 0.4,
	})
	require.Equal(t, FallbackModelVersion, forecast.ModelVersion)
	require.Equal(t, 46.0, forecast.SuccessProbability)
	require.Equal(t, 66.0, forecast.ConfidenceLevel)
}

func TestGatewayForecastUsesModelResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/forecast/outcome", r.URL.Path)
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "skill_mastery", payload["outcomeType"])
		_, _ = w.Write([]byte(`{"success_probability": 64, "confidence_level": 71, "predicted_score": 78, "model_version": "gema-forecast-v1"}`))
	}))
	defer server.Close()

	provider, err := NewHTTPProvider(HTTPConfig{BaseURL: server.URL})
	require.NoError(t, err)
	gateway := NewGateway(provider, time.Second, zerolog.Nop())

	result := gateway.Forecast(context.Background(), ForecastRequest{
		LearningData: sampleData(),
		OutcomeType:  "skill_mastery",
		TargetDate:   time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	})

	require.Equal(t, 64.0, result.SuccessProbability)
	require.NotNil(t, result.PredictedScore)
	require.Equal(t, 78.0, *result.PredictedScore)
	require.Equal(t, "gema-forecast-v1", result.ModelVersion)
}

func TestNewHTTPProviderRequiresURL(t *testing.T) {
	_, err := NewHTTPProvider(HTTPConfig{BaseURL: "  "})
	require.Error(t, err)
}
