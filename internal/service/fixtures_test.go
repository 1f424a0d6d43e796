package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-analytics-api/internal/models"
	"github.com/noah-isme/gema-analytics-api/internal/repository"
	"github.com/noah-isme/gema-analytics-api/pkg/inference"
)

type analyticsFixture struct {
	db            *gorm.DB
	now           time.Time
	validator     *validator.Validate
	gateway       InferenceGateway
	predictions   repository.PredictionRepository
	assessments   repository.RiskAssessmentRepository
	forecasts     repository.ForecastRepository
	interventions repository.InterventionRepository
	optimizations repository.OptimizationRepository
	signals       repository.LearningSignalRepository
	outcomes      repository.OutcomeRepository
	usage         repository.ResourceUsageRepository
}

func newAnalyticsFixture(t *testing.T) *analyticsFixture {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.LearningActivity{},
		&models.LearningOutcome{},
		&models.ResourceUsageSample{},
		&models.PerformancePrediction{},
		&models.DropoutRiskAssessment{},
		&models.LearningOutcomeForecast{},
		&models.InterventionRecommendation{},
		&models.ResourceOptimization{},
	))

	return &analyticsFixture{
		db:            db,
		now:           time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
		validator:     validator.New(validator.WithRequiredStructEnabled()),
		gateway:       inference.NewGateway(nil, time.Second, zerolog.Nop()),
		predictions:   repository.NewPredictionRepository(db),
		assessments:   repository.NewRiskAssessmentRepository(db),
		forecasts:     repository.NewForecastRepository(db),
		interventions: repository.NewInterventionRepository(db),
		optimizations: repository.NewOptimizationRepository(db),
		signals:       repository.NewLearningSignalRepository(db),
		outcomes:      repository.NewOutcomeRepository(db),
		usage:         repository.NewResourceUsageRepository(db),
	}
}

func (f *analyticsFixture) clock() time.Time {
	return f.now
}

func (f *analyticsFixture) predictionService() *predictionService {
	svc := NewPredictionService(f.predictions, f.signals, f.outcomes, f.gateway, f.validator, zerolog.Nop()).(*predictionService)
	svc.now = f.clock
	return svc
}

func (f *analyticsFixture) riskService() *riskAssessmentService {
	svc := NewRiskAssessmentService(f.assessments, f.signals, f.validator, zerolog.Nop()).(*riskAssessmentService)
	svc.now = f.clock
	return svc
}

func (f *analyticsFixture) forecastService() *forecastService {
	svc := NewForecastService(f.forecasts, f.signals, f.outcomes, f.gateway, f.validator, zerolog.Nop()).(*forecastService)
	svc.now = f.clock
	return svc
}

func (f *analyticsFixture) interventionService() *interventionService {
	svc := NewInterventionService(f.interventions, f.assessments, f.predictions, f.signals, f.validator, zerolog.Nop()).(*interventionService)
	svc.now = f.clock
	return svc
}

func (f *analyticsFixture) optimizerService() *optimizerService {
	svc := NewOptimizerService(f.optimizations, f.usage, f.validator, zerolog.Nop()).(*optimizerService)
	svc.now = f.clock
	return svc
}

// seedActivities writes one activity per day before now for the student.
func (f *analyticsFixture) seedActivities(t *testing.T, studentID uint, courseID *uint, count int, score, engagement, minutes float64) {
	t.Helper()
	for i := 0; i < count; i++ {
		activity := models.LearningActivity{
			StudentID:       studentID,
			CourseID:        courseID,
			ActivityType:    models.ActivityQuizAttempt,
			DurationMinutes: minutes,
			Score:           floatPtr(score),
			EngagementScore: floatPtr(engagement),
			OccurredAt:      f.now.Add(-time.Duration(i+1) * 24 * time.Hour),
		}
		require.NoError(t, f.db.Create(&activity).Error)
	}
}

func floatPtr(v float64) *float64 {
	return &v
}

func uintPtr(v uint) *uint {
	return &v
}

type stubGateway struct {
	prediction  inference.Prediction
	forecast    inference.Forecast
	predictReqs []inference.PredictionRequest
	forecastReq []inference.ForecastRequest
}

func (s *stubGateway) Predict(_ context.Context, req inference.PredictionRequest) inference.Prediction {
	s.predictReqs = append(s.predictReqs, req)
	return s.prediction
}

func (s *stubGateway) Forecast(_ context.Context, req inference.ForecastRequest) inference.Forecast {
	s.forecastReq = append(s.forecastReq, req)
	return s.forecast
}
