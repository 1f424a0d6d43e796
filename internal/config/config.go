package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Inference providers understood by the gateway factory.
const (
	InferenceProviderHTTP   = "http"
	InferenceProviderOpenAI = "openai"
	InferenceProviderNone   = "none"
)

// Config holds runtime configuration values for the API and worker processes.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	LogLevel          string
	DatabaseURL       string
	RedisURL          string
	NATSURL           string
	EventSubjectBase  string
	JWTSecret         string
	CORSAllowOrigins  string
	DashboardCacheTTL time.Duration

	InferenceProvider string
	InferenceURL      string
	InferenceToken    string
	InferenceTimeout  time.Duration
	ModelVersion      string
	OpenAIAPIKey      string
	OpenAIModel       string

	QueueName            string
	WorkerConcurrency    int
	SchedulerEnabled     bool
	AccuracyAlertLevel   float64
	RetrainingMinSamples int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// RequireJWT reports an error when the API is started without a signing secret.
func (c Config) RequireJWT() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("jwt secret must be provided")
	}
	return nil
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Analytics API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("events.subject_base", "gema.analytics")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("dashboard.cache_ttl", "5m")
	v.SetDefault("inference.provider", InferenceProviderHTTP)
	v.SetDefault("inference.timeout", "30s")
	v.SetDefault("inference.model_version", "gema-predict-v2")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("queue.name", "gema:analytics:jobs")
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("accuracy.alert_threshold", 70)
	v.SetDefault("retraining.min_samples", 100)

	ttl, err := parseDuration(v.GetString("dashboard.cache_ttl"), 5*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid dashboard cache ttl: %w", err)
	}

	inferenceTimeout, err := parseDuration(v.GetString("inference.timeout"), 30*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid inference timeout: %w", err)
	}

	cfg := Config{
		AppName:              v.GetString("app.name"),
		AppEnv:               v.GetString("app.env"),
		AppPort:              v.GetString("app.port"),
		LogLevel:             strings.ToLower(v.GetString("log.level")),
		DatabaseURL:          v.GetString("database.url"),
		RedisURL:             v.GetString("redis.url"),
		NATSURL:              v.GetString("nats.url"),
		EventSubjectBase:     v.GetString("events.subject_base"),
		JWTSecret:            v.GetString("jwt.secret"),
		CORSAllowOrigins:     v.GetString("cors.allow_origins"),
		DashboardCacheTTL:    ttl,
		InferenceProvider:    strings.ToLower(v.GetString("inference.provider")),
		InferenceURL:         strings.TrimRight(v.GetString("inference.url"), "/"),
		InferenceToken:       v.GetString("inference.token"),
		InferenceTimeout:     inferenceTimeout,
		ModelVersion:         v.GetString("inference.model_version"),
		OpenAIAPIKey:         v.GetString("openai_api_key"),
		OpenAIModel:          v.GetString("openai.model"),
		QueueName:            v.GetString("queue.name"),
		WorkerConcurrency:    v.GetInt("worker.concurrency"),
		SchedulerEnabled:     v.GetBool("scheduler.enabled"),
		AccuracyAlertLevel:   v.GetFloat64("accuracy.alert_threshold"),
		RetrainingMinSamples: v.GetInt("retraining.min_samples"),
	}

	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 2
	}

	if cfg.RetrainingMinSamples <= 0 {
		cfg.RetrainingMinSamples = 100
	}

	switch cfg.InferenceProvider {
	case InferenceProviderHTTP, InferenceProviderOpenAI, InferenceProviderNone:
	default:
		return Config{}, fmt.Errorf("unsupported inference provider %q", cfg.InferenceProvider)
	}

	return cfg, nil
}

func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}
