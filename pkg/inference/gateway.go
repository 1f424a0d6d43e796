// Package inference talks to the external prediction model and falls back to a
// deterministic estimator whenever the model cannot answer.
package inference

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTimeout bounds a single inference call.
const DefaultTimeout = 30 * time.Second

var (
	inferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gema",
		Subsystem: "inference",
		Name:      "request_duration_seconds",
		Help:      "Duration of inference requests",
	}, []string{"provider", "kind"})

	inferenceResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "inference",
		Name:      "results_total",
		Help:      "Inference results by source",
	}, []string{"provider", "kind", "source"})
)

// Gateway serves predictions from a provider and never returns an error: any failure
// or timeout is answered by the rule-based estimator.
type Gateway struct {
	provider Provider
	timeout  time.Duration
	tracer   trace.Tracer
	logger   zerolog.Logger
}

// NewGateway wraps provider. A nil provider always uses the rule-based estimator.
func NewGateway(provider Provider, timeout time.Duration, logger zerolog.Logger) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gateway{
		provider: provider,
		timeout:  timeout,
		tracer:   otel.Tracer("github.com/noah-isme/gema-analytics-api/pkg/inference"),
		logger:   logger.With().Str("component", "inference_gateway").Logger(),
	}
}

// Predict returns a model prediction or the fallback estimate.
func (g *Gateway) Predict(parent context.Context, req PredictionRequest) Prediction {
	ctx, span := g.tracer.Start(parent, "inference.predict", trace.WithAttributes(
		attribute.String("prediction_type", req.PredictionType),
		attribute.Int("student_id", int(req.LearningData.StudentID)),
	))
	defer span.End()

	if g.provider == nil {
		inferenceResults.WithLabelValues("none", "predict", "fallback").Inc()
		return FallbackPredict(req)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	result, err := g.provider.Predict(callCtx, req)
	inferenceDuration.WithLabelValues(g.provider.Name(), "predict").Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		inferenceResults.WithLabelValues(g.provider.Name(), "predict", "fallback").Inc()
		g.logger.Warn().Err(err).
			Str("provider", g.provider.Name()).
			Str("prediction_type", req.PredictionType).
			Uint("student_id", req.LearningData.StudentID).
			Msg("inference prediction failed, using rule-based estimate")
		return FallbackPredict(req)
	}

	inferenceResults.WithLabelValues(g.provider.Name(), "predict", "model").Inc()
	return result
}

// Forecast returns a model forecast or the fallback estimate.
func (g *Gateway) Forecast(parent context.Context, req ForecastRequest) Forecast {
	ctx, span := g.tracer.Start(parent, "inference.forecast", trace.WithAttributes(
		attribute.String("outcome_type", req.OutcomeType),
		attribute.Int("student_id", int(req.LearningData.StudentID)),
	))
	defer span.End()

	if g.provider == nil {
		inferenceResults.WithLabelValues("none", "forecast", "fallback").Inc()
		return FallbackForecast(req)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	result, err := g.provider.Forecast(callCtx, req)
	inferenceDuration.WithLabelValues(g.provider.Name(), "forecast").Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		inferenceResults.WithLabelValues(g.provider.Name(), "forecast", "fallback").Inc()
		g.logger.Warn().Err(err).
			Str("provider", g.provider.Name()).
			Str("outcome_type", req.OutcomeType).
			Uint("student_id", req.LearningData.StudentID).
			Msg("inference forecast failed, using rule-based estimate")
		return FallbackForecast(req)
	}

	inferenceResults.WithLabelValues(g.provider.Name(), "forecast", "model").Inc()
	return result
}
