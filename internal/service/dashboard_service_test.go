package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-analytics-api/internal/dto"
	"github.com/noah-isme/gema-analytics-api/internal/models"
)

func (f *analyticsFixture) dashboardService(client *redis.Client) *dashboardService {
	svc := NewDashboardService(DashboardRepositories{
		Predictions:   f.predictions,
		Assessments:   f.assessments,
		Forecasts:     f.forecasts,
		Interventions: f.interventions,
		Signals:       f.signals,
	}, f.predictionService(), client, time.Minute, zerolog.Nop()).(*dashboardService)
	svc.now = f.clock
	return svc
}

func TestDashboardServiceStudentDashboardCaching(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	fixture := newAnalyticsFixture(t)
	ctx := context.Background()
	fixture.seedActivities(t, 1, nil, 8, 55, 40, 20)

	_, err = fixture.riskService().Assess(ctx, dto.RiskAssessmentRequest{StudentID: 1})
	require.NoError(t, err)
	predictions := fixture.predictionService()
	for i := 0; i < 2; i++ {
		_, err = predictions.Generate(ctx, dto.PredictionCreateRequest{StudentID: 1, PredictionType: string(models.PredictionTypePerformance)})
		require.NoError(t, err)
	}
	_, err = fixture.forecastService().Generate(ctx, dto.ForecastCreateRequest{
		StudentID:   1,
		OutcomeType: string(models.OutcomeTypeCourseCompletion),
		TargetDate:  fixture.now.AddDate(0, 1, 0),
	})
	require.NoError(t, err)

	svc := fixture.dashboardService(client)

	first, err := svc.StudentDashboard(ctx, 1)
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	require.Equal(t, 8, first.Signals.ActivityCount)
	require.NotNil(t, first.LatestAssessment)
	require.Equal(t, models.RiskLevelMedium, first.LatestAssessment.RiskLevel)
	require.Len(t, first.RecentPredictions, 2)
	require.Equal(t, 2, first.PerformanceTrend.DataPoints)
	require.Len(t, first.ActiveForecasts, 1)
	require.Empty(t, first.OpenInterventions)
	require.True(t, server.Exists(studentDashboardKey(1)))

	second, err := svc.StudentDashboard(ctx, 1)
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	require.Len(t, second.RecentPredictions, 2)

	svc.Invalidate(ctx, 1)
	require.False(t, server.Exists(studentDashboardKey(1)))

	third, err := svc.StudentDashboard(ctx, 1)
	require.NoError(t, err)
	require.False(t, third.CacheHit)
}

func TestDashboardServiceStudentWithoutData(t *testing.T) {
	fixture := newAnalyticsFixture(t)
	svc := fixture.dashboardService(nil)

	dashboard, err := svc.StudentDashboard(context.Background(), 77)
	require.NoError(t, err)
	require.Nil(t, dashboard.LatestAssessment)
	require.Zero(t, dashboard.Signals.ActivityCount)
	require.Equal(t, 50.0, dashboard.Signals.AvgEngagement)
	require.Equal(t, "insufficient_data", dashboard.PerformanceTrend.Direction)

	svc.Invalidate(context.Background(), 77)
}

func TestDashboardServiceInstructorDashboard(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	fixture := newAnalyticsFixture(t)
	ctx := context.Background()
	assessment := veryHighAssessment(t, fixture, 4)
	fixture.seedActivities(t, 1, nil, 8, 55, 40, 20)
	_, err = fixture.riskService().Assess(ctx, dto.RiskAssessmentRequest{StudentID: 1})
	require.NoError(t, err)

	interventions := fixture.interventionService()
	generated, err := interventions.GenerateFromAssessment(ctx, assessment.ID)
	require.NoError(t, err)
	_, err = interventions.Assign(ctx, generated.Items[0].ID, dto.InterventionAssignRequest{AssignedToID: 7})
	require.NoError(t, err)

	prediction, err := fixture.predictionService().Generate(ctx, dto.PredictionCreateRequest{StudentID: 1, PredictionType: string(models.PredictionTypePerformance)})
	require.NoError(t, err)
	_, err = fixture.predictionService().Validate(ctx, prediction.ID, dto.PredictionValidateRequest{ActualValue: floatPtr(59)})
	require.NoError(t, err)

	svc := fixture.dashboardService(client)

	dashboard, err := svc.InstructorDashboard(ctx, 7)
	require.NoError(t, err)
	require.False(t, dashboard.CacheHit)
	require.Equal(t, instructorWindowDays, dashboard.WindowDays)
	require.Equal(t, int64(1), dashboard.RiskDistribution[string(models.RiskLevelVeryHigh)])
	require.Equal(t, int64(1), dashboard.RiskDistribution[string(models.RiskLevelMedium)])
	require.Len(t, dashboard.ElevatedStudents, 1)
	require.Equal(t, uint(4), dashboard.ElevatedStudents[0].StudentID)
	require.Len(t, dashboard.AssignedInterventions, 1)
	require.Equal(t, int64(1), dashboard.InterventionStatus[string(models.InterventionStatusPending)])
	require.Equal(t, int64(1), dashboard.PredictionsGenerated)
	require.Len(t, dashboard.ModelAccuracy, 1)
	require.Equal(t, 90.0, dashboard.ModelAccuracy[0].AverageAccuracy)

	cached, err := svc.InstructorDashboard(ctx, 7)
	require.NoError(t, err)
	require.True(t, cached.CacheHit)
	require.Len(t, cached.ElevatedStudents, 1)
}

func TestDashboardServiceReadsCourseScopedRecords(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	fixture := newAnalyticsFixture(t)
	ctx := context.Background()
	course := uint(3)

	assessment := models.DropoutRiskAssessment{
		StudentID:            9,
		CourseID:             &course,
		AssessmentDate:       fixture.now,
		AssessmentDay:        models.AssessmentDayKey(fixture.now),
		RiskLevel:            models.RiskLevelVeryHigh,
		RiskProbability:      86,
		InterventionRequired: true,
		InterventionPriority: 10,
	}
	require.NoError(t, fixture.assessments.Create(ctx, &assessment))

	other := uint(4)
	for day := 0; day < 3; day++ {
		for _, entry := range []struct {
			course *uint
			value  float64
		}{{course: &other, value: 40}, {course: &course, value: 90}} {
			prediction := models.PerformancePrediction{
				StudentID:      9,
				CourseID:       entry.course,
				PredictionType: models.PredictionTypePerformance,
				PredictionDate: fixture.now.AddDate(0, 0, day-3).Add(time.Duration(*entry.course) * time.Hour),
				PredictedValue: entry.value,
				ModelVersion:   "gema-predict-v2",
			}
			require.NoError(t, fixture.predictions.Create(ctx, &prediction))
		}
	}

	dashboard, err := fixture.dashboardService(client).StudentDashboard(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, dashboard.LatestAssessment)
	require.Equal(t, assessment.ID, dashboard.LatestAssessment.ID)
	require.Equal(t, models.RiskLevelVeryHigh, dashboard.LatestAssessment.RiskLevel)

	require.Len(t, dashboard.RecentPredictions, 6)
	require.Equal(t, 3, dashboard.PerformanceTrend.DataPoints)
	require.Equal(t, "stable", dashboard.PerformanceTrend.Direction)
}
