package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the chat-completion backed provider.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
}

// OpenAIProvider asks a chat model for JSON predictions.
type OpenAIProvider struct {
	client *openai.Client
	cfg    OpenAIConfig
}

// NewOpenAIProvider builds a provider using the OpenAI chat completion API.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 256
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{client: openai.NewClientWithConfig(config), cfg: cfg}, nil
}

// Name identifies the provider in metrics and logs.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Predict asks the model for a prediction object.
func (p *OpenAIProvider) Predict(ctx context.Context, req PredictionRequest) (Prediction, error) {
	prompt, err := predictionPrompt(req)
	if err != nil {
		return Prediction{}, err
	}

	content, err := p.complete(ctx, predictionSystemPrompt, prompt)
	if err != nil {
		return Prediction{}, err
	}

	var result Prediction
	if err := decodeValidated(predictionValidator, []byte(content), &result); err != nil {
		return Prediction{}, err
	}
	return result, nil
}

// Forecast asks the model for a forecast object.
func (p *OpenAIProvider) Forecast(ctx context.Context, req ForecastRequest) (Forecast, error) {
	prompt, err := forecastPrompt(req)
	if err != nil {
		return Forecast{}, err
	}

	content, err := p.complete(ctx, forecastSystemPrompt, prompt)
	if err != nil {
		return Forecast{}, err
	}

	var result Forecast
	if err := decodeValidated(forecastValidator, []byte(content), &result); err != nil {
		return Forecast{}, err
	}
	return result, nil
}

func (p *OpenAIProvider) complete(ctx context.Context, system, user string) (string, error) {
	request := openai.ChatCompletionRequest{
		Model:       p.cfg.Model,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := p.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from openai")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

const predictionSystemPrompt = "You are a learning analytics model. Given aggregated learning data, respond with a JSON object " +
	"containing predicted_value (0-100), confidence_score (0-100), risk_level (very_low|low|medium|high|very_high), " +
	"contributing_factors (object of numeric weights) and model_version."

const forecastSystemPrompt = "You are a learning analytics model. Given aggregated learning data and a target outcome, respond " +
	"with a JSON object containing success_probability (0-100), confidence_level (0-100), optional predicted_score (0-100) " +
	"and model_version."

func predictionPrompt(req PredictionRequest) (string, error) {
	data, err := json.Marshal(req.LearningData)
	if err != nil {
		return "", fmt.Errorf("encode learning data: %w", err)
	}

	builder := strings.Builder{}
	builder.WriteString("# Prediction type\n")
	builder.WriteString(req.PredictionType)
	if req.TargetDate != nil {
		builder.WriteString("\n\n# Target date\n")
		builder.WriteString(req.TargetDate.UTC().Format("2006-01-02"))
	}
	builder.WriteString("\n\n# Learning data\n")
	builder.Write(data)
	builder.WriteString("\nReturn JSON.")
	return builder.String(), nil
}

func forecastPrompt(req ForecastRequest) (string, error) {
	data, err := json.Marshal(req.LearningData)
	if err != nil {
		return "", fmt.Errorf("encode learning data: %w", err)
	}

	builder := strings.Builder{}
	builder.WriteString("# Outcome\n")
	builder.WriteString(req.OutcomeType)
	builder.WriteString("\n\n# Target date\n")
	builder.WriteString(req.TargetDate.UTC().Format("2006-01-02"))
	builder.WriteString("\n\n# Learning data\n")
	builder.Write(data)
	builder.WriteString("\nReturn JSON.")
	return builder.String(), nil
}
