package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-analytics-api/internal/database"
	"github.com/noah-isme/gema-analytics-api/internal/handler"
	"github.com/noah-isme/gema-analytics-api/internal/jobs"
	"github.com/noah-isme/gema-analytics-api/internal/models"
	"github.com/noah-isme/gema-analytics-api/internal/repository"
	"github.com/noah-isme/gema-analytics-api/internal/service"
	"github.com/noah-isme/gema-analytics-api/pkg/inference"
)

const analyticsPrefix = "/api/v1/predictive-analytics"

type caller struct {
	id   uint
	role string
}

var (
	asAdmin   = caller{id: 1, role: "admin"}
	asTeacher = caller{id: 2, role: "teacher"}
)

func asStudent(id uint) caller {
	return caller{id: id, role: "student"}
}

type analyticsApp struct {
	app   *fiber.App
	db    *gorm.DB
	queue *jobs.Queue
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Details json.RawMessage `json:"details"`
}

func newAnalyticsApp(t *testing.T) *analyticsApp {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.Nop()
	gateway := inference.NewGateway(nil, time.Second, logger)

	predictionRepo := repository.NewPredictionRepository(db)
	assessmentRepo := repository.NewRiskAssessmentRepository(db)
	forecastRepo := repository.NewForecastRepository(db)
	interventionRepo := repository.NewInterventionRepository(db)
	signalRepo := repository.NewLearningSignalRepository(db)
	outcomeRepo := repository.NewOutcomeRepository(db)

	predictions := service.NewPredictionService(predictionRepo, signalRepo, outcomeRepo, gateway, validate, logger)
	risk := service.NewRiskAssessmentService(assessmentRepo, signalRepo, validate, logger)
	forecasts := service.NewForecastService(forecastRepo, signalRepo, outcomeRepo, gateway, validate, logger)
	interventions := service.NewInterventionService(interventionRepo, assessmentRepo, predictionRepo, signalRepo, validate, logger)
	optimizer := service.NewOptimizerService(repository.NewOptimizationRepository(db), repository.NewResourceUsageRepository(db), validate, logger)
	dashboard := service.NewDashboardService(service.DashboardRepositories{
		Predictions:   predictionRepo,
		Assessments:   assessmentRepo,
		Forecasts:     forecastRepo,
		Interventions: interventionRepo,
		Signals:       signalRepo,
	}, predictions, client, time.Minute, logger)

	queue := jobs.NewQueue(client, "gema:analytics:jobs")
	registry := jobs.NewRegistry(jobs.Services{}, jobs.Settings{}, logger)

	app := fiber.New()
	api := app.Group(analyticsPrefix, injectCaller)
	handler.NewPredictionHandler(predictions, logger).Register(api)
	handler.NewRiskHandler(risk, logger).Register(api)
	handler.NewForecastHandler(forecasts, logger).Register(api)
	handler.NewInterventionHandler(interventions, logger).Register(api)
	handler.NewOptimizationHandler(optimizer, logger).Register(api)
	handler.NewDashboardHandler(dashboard, logger).Register(api)
	handler.NewJobHandler(queue, registry, nil, logger).Register(api)

	return &analyticsApp{app: app, db: db, queue: queue}
}

// injectCaller stands in for the JWT middleware.
func injectCaller(c *fiber.Ctx) error {
	if raw := c.Get("X-Test-User"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return err
		}
		c.Locals("user_id", uint(id))
	}
	if role := c.Get("X-Test-Role"); role != "" {
		c.Locals("user_role", role)
	}
	return c.Next()
}

func (a *analyticsApp) do(t *testing.T, who caller, method, path string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, analyticsPrefix+path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", strconv.FormatUint(uint64(who.id), 10))
	req.Header.Set("X-Test-Role", who.role)

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func (a *analyticsApp) seedActivities(t *testing.T, studentID uint, count int, score, engagement float64) {
	t.Helper()
	now := time.Now().UTC()
	for i := 0; i < count; i++ {
		activity := models.LearningActivity{
			StudentID:       studentID,
			ActivityType:    models.ActivityQuizAttempt,
			DurationMinutes: 35,
			Score:           &score,
			EngagementScore: &engagement,
			Completed:       true,
			OccurredAt:      now.Add(-time.Duration(i+1) * 24 * time.Hour),
		}
		require.NoError(t, a.db.Create(&activity).Error)
	}
}

func decodeData(t *testing.T, body envelope, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(body.Data, target))
}
