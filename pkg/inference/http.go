package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBytes = 1 << 20

// HTTPConfig configures the client of the inference service.
type HTTPConfig struct {
	BaseURL      string
	Token        string
	ModelVersion string
	Timeout      time.Duration
	Transport    http.RoundTripper
}

// HTTPProvider calls the inference service over HTTP/JSON.
type HTTPProvider struct {
	baseURL      string
	token        string
	modelVersion string
	client       *http.Client
}

// NewHTTPProvider builds an instrumented HTTP client for the inference service.
func NewHTTPProvider(cfg HTTPConfig) (*HTTPProvider, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("inference base url is required")
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &HTTPProvider{
		baseURL:      baseURL,
		token:        cfg.Token,
		modelVersion: cfg.ModelVersion,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(transport),
		},
	}, nil
}

// Name identifies the provider in metrics and logs.
func (p *HTTPProvider) Name() string {
	return "http"
}

type predictPayload struct {
	LearningData   LearningData `json:"learningData"`
	PredictionType string       `json:"predictionType"`
	TargetDate     *time.Time   `json:"targetDate,omitempty"`
	ModelVersion   string       `json:"modelVersion"`
}

type forecastPayload struct {
	LearningData LearningData `json:"learningData"`
	OutcomeType  string       `json:"outcomeType"`
	TargetDate   time.Time    `json:"targetDate"`
	ModelVersion string       `json:"modelVersion"`
}

// Predict posts to /predict/performance.
func (p *HTTPProvider) Predict(ctx context.Context, req PredictionRequest) (Prediction, error) {
	payload := predictPayload{
		LearningData:   req.LearningData,
		PredictionType: req.PredictionType,
		TargetDate:     req.TargetDate,
		ModelVersion:   p.modelVersion,
	}

	raw, err := p.post(ctx, "/predict/performance", payload)
	if err != nil {
		return Prediction{}, err
	}

	var result Prediction
	if err := decodeValidated(predictionValidator, raw, &result); err != nil {
		return Prediction{}, err
	}
	return result, nil
}

// Forecast posts to /forecast/outcome.
func (p *HTTPProvider) Forecast(ctx context.Context, req ForecastRequest) (Forecast, error) {
	payload := forecastPayload{
		LearningData: req.LearningData,
		OutcomeType:  req.OutcomeType,
		TargetDate:   req.TargetDate,
		ModelVersion: p.modelVersion,
	}

	raw, err := p.post(ctx, "/forecast/outcome", payload)
	if err != nil {
		return Forecast{}, err
	}

	var result Forecast
	if err := decodeValidated(forecastValidator, raw, &result); err != nil {
		return Forecast{}, err
	}
	return result, nil
}

func (p *HTTPProvider) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode inference request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build inference request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	if p.token != "" {
		request.Header.Set("Authorization", "Bearer "+p.token)
	}

	response, err := p.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("call inference service: %w", err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read inference response: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, fmt.Errorf("inference service returned status %d", response.StatusCode)
	}
	return raw, nil
}
