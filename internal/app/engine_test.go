package app

import (
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-analytics-api/internal/config"
	"github.com/noah-isme/gema-analytics-api/internal/service"
)

func TestNewInferenceGateway(t *testing.T) {
	logger := zerolog.Nop()

	_, err := NewInferenceGateway(config.Config{InferenceProvider: config.InferenceProviderNone}, logger)
	require.NoError(t, err)

	// Missing URL degrades to the fallback instead of failing startup.
	_, err = NewInferenceGateway(config.Config{InferenceProvider: config.InferenceProviderHTTP}, logger)
	require.NoError(t, err)

	_, err = NewInferenceGateway(config.Config{InferenceProvider: config.InferenceProviderOpenAI}, logger)
	require.Error(t, err)
}

func TestNewEngineWiresJobsAndLogDispatcher(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	cfg := config.Config{
		InferenceProvider: config.InferenceProviderNone,
		QueueName:         "gema:analytics:jobs",
		EventSubjectBase:  "gema.analytics",
	}
	engine, err := NewEngine(cfg, db, client, nil, zerolog.Nop())
	require.NoError(t, err)

	require.Len(t, engine.Registry.Names(), 11)
	require.IsType(t, &service.LogAlertDispatcher{}, engine.Dispatcher)
	require.NotNil(t, engine.Dashboard)
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	require.Equal(t, zerolog.InfoLevel, NewLogger(config.Config{LogLevel: "verbose"}).GetLevel())
	require.Equal(t, zerolog.DebugLevel, NewLogger(config.Config{LogLevel: "debug"}).GetLevel())
}
