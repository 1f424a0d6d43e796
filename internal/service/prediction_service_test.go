package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-analytics-api/internal/dto"
	"github.com/noah-isme/gema-analytics-api/internal/models"
	"github.com/noah-isme/gema-analytics-api/internal/repository"
	"github.com/noah-isme/gema-analytics-api/pkg/inference"
)

func TestPredictionServiceGenerateFallsBackToRuleBasedEstimator(t *testing.T) {
	fixture := newAnalyticsFixture(t)
	fixture.seedActivities(t, 1, nil, 8, 55, 40, 20)
	svc := fixture.predictionService()

	prediction, err := svc.Generate(context.Background(), dto.PredictionCreateRequest{
		StudentID:      1,
		PredictionType: string(models.PredictionTypePerformance),
	})
	require.NoError(t, err)

	require.NotZero(t, prediction.ID)
	require.Equal(t, models.FallbackModelVersion, prediction.ModelVersion)
	require.True(t, prediction.UsedFallback())
	require.Equal(t, 49.0, prediction.PredictedValue)
	require.Equal(t, 66.0, prediction.ConfidenceScore)
	require.Equal(t, models.RiskLevelMedium, prediction.RiskLevel)
	require.Equal(t, 8, prediction.Features.Data().ActivityCount)
	require.NotNil(t, prediction.TargetDate)
	require.Equal(t, fixture.now.AddDate(0, 0, PredictionWindowDays), *prediction.TargetDate)
}

func TestPredictionServiceGenerateUsesModelResult(t *testing.T) {
	fixture := newAnalyticsFixture(t)
	fixture.seedActivities(t, 1, uintPtr(2), 4, 90, 80, 45)
	gateway := &stubGateway{prediction: inference.Prediction{
		PredictedValue:      80,
		ConfidenceScore:     91,
		RiskLevel:           "not-a-level",
		ContributingFactors: inference.Factors{Engagement: 0.3, Performance: 0.7},
		ModelVersion:        "gema-predict-v2",
	}}
	fixture.gateway = gateway
	svc := fixture.predictionService()

	prediction, err := svc.Generate(context.Background(), dto.PredictionCreateRequest{
		StudentID:      1,
		CourseID:       uintPtr(2),
		PredictionType: string(models.PredictionTypeLearningOutcome),
	})
	require.NoError(t, err)

	require.Equal(t, "gema-predict-v2", prediction.ModelVersion)
	require.Equal(t, models.RiskLevelVeryLow, prediction.RiskLevel)
	require.Equal(t, 0.7, prediction.ContributingFactors.Data().Performance)
	require.Len(t, gateway.predictReqs, 1)
	require.Equal(t, 4, gateway.predictReqs[0].LearningData.ActivityCount)
	require.Equal(t, 90.0, gateway.predictReqs[0].LearningData.AvgPerformance)
}

func TestPredictionServiceGenerateRejectsInvalidPayload(t *testing.T) {
	fixture := newAnalyticsFixture(t)
	svc := fixture.predictionService()

	_, err := svc.Generate(context.Background(), dto.PredictionCreateRequest{StudentID: 1, PredictionType: "weather"})
	require.Error(t, err)
}

func TestPredictionServiceValidateAndCorrection(t *testing.T) {
	fixture := newAnalyticsFixture(t)
	ctx := context.Background()
	prediction := models.PerformancePrediction{
		StudentID:      1,
		PredictionType: models.PredictionTypePerformance,
		PredictionDate: fixture.now,
		PredictedValue: 70,
		ModelVersion:   "gema-predict-v2",
	}
	require.NoError(t, fixture.predictions.Create(ctx, &prediction))
	svc := fixture.predictionService()

	validated, err := svc.Validate(ctx, prediction.ID, dto.PredictionValidateRequest{ActualValue: floatPtr(75)})
	require.NoError(t, err)
	require.True(t, validated.IsValidated)
	require.Equal(t, 95.0, *validated.AccuracyScore)
	require.Equal(t, fixture.now, *validated.ValidatedAt)

	_, err = svc.Validate(ctx, prediction.ID, dto.PredictionValidateRequest{ActualValue: floatPtr(0)})
	require.ErrorIs(t, err, ErrPredictionAlreadyValidated)

	corrected, err := svc.Validate(ctx, prediction.ID, dto.PredictionValidateRequest{ActualValue: floatPtr(0), Correction: true})
	require.NoError(t, err)
	require.Equal(t, 30.0, *corrected.AccuracyScore)
	require.Equal(t, 0.0, *corrected.ActualValue)

	_, err = svc.Validate(ctx, 999, dto.PredictionValidateRequest{ActualValue: floatPtr(10)})
	require.ErrorIs(t, err, ErrPredictionNotFound)
}

func TestPredictionServiceHistoryCarriesTrend(t *testing.T) {
	fixture := newAnalyticsFixture(t)
	ctx := context.Background()
	for i, value := range []float64{50, 60, 70, 80} {
		prediction := models.PerformancePrediction{
			StudentID:      3,
			PredictionType: models.PredictionTypePerformance,
			PredictionDate: fixture.now.AddDate(0, 0, -10+i),
			PredictedValue: value,
			ModelVersion:   "v",
		}
		require.NoError(t, fixture.predictions.Create(ctx, &prediction))
	}
	svc := fixture.predictionService()

	history, err := svc.History(ctx, 3, repository.AllCourses(), models.PredictionTypePerformance, 0)
	require.NoError(t, err)
	require.Len(t, history.Points, 4)
	require.Equal(t, 50.0, history.Points[0].PredictedValue)
	require.Equal(t, "improving", history.Trend.Direction)
	require.Equal(t, 10.0, history.Trend.Slope)

	_, err = svc.History(ctx, 3, repository.AllCourses(), models.PredictionType("weather"), 5)
	require.ErrorIs(t, err, ErrUnsupportedPredictionType)
}

func TestPredictionServiceAccuracySummaryGroupsByModel(t *testing.T) {
	fixture := newAnalyticsFixture(t)
	ctx := context.Background()
	validatedAt := fixture.now.AddDate(0, 0, -1)
	rows := []struct {
		version   string
		predicted float64
		actual    float64
	}{
		{"gema-predict-v2", 70, 75},
		{"gema-predict-v2", 60, 50},
		{models.FallbackModelVersion, 40, 80},
	}
	for _, row := range rows {
		actual := row.actual
		accuracy := 100 - abs(row.predicted-row.actual)
		prediction := models.PerformancePrediction{
			StudentID:      1,
			PredictionType: models.PredictionTypePerformance,
			PredictionDate: fixture.now.AddDate(0, 0, -30),
			PredictedValue: row.predicted,
			ActualValue:    &actual,
			AccuracyScore:  &accuracy,
			IsValidated:    true,
			ValidatedAt:    &validatedAt,
			ModelVersion:   row.version,
		}
		require.NoError(t, fixture.predictions.Create(ctx, &prediction))
	}
	svc := fixture.predictionService()

	summaries, err := svc.AccuracySummary(ctx, fixture.now.AddDate(0, 0, -7))
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, "gema-predict-v2", summaries[0].ModelVersion)
	require.Equal(t, 2, summaries[0].Count)
	require.Equal(t, 92.5, summaries[0].AverageAccuracy)
	require.Equal(t, 7.5, summaries[0].MeanAbsoluteError)
	require.Equal(t, models.FallbackModelVersion, summaries[1].ModelVersion)
	require.Equal(t, 60.0, summaries[1].AverageAccuracy)
}

func TestPredictionServiceReconcileUsesRecordedOutcome(t *testing.T) {
	fixture := newAnalyticsFixture(t)
	ctx := context.Background()
	target := fixture.now.AddDate(0, 0, -1)
	due := models.PerformancePrediction{
		StudentID:      1,
		PredictionType: models.PredictionTypePerformance,
		PredictionDate: fixture.now.AddDate(0, 0, -31),
		TargetDate:     &target,
		PredictedValue: 64,
		ModelVersion:   "v",
	}
	require.NoError(t, fixture.predictions.Create(ctx, &due))
	waiting := models.PerformancePrediction{
		StudentID:      2,
		PredictionType: models.PredictionTypePerformance,
		PredictionDate: fixture.now.AddDate(0, 0, -31),
		TargetDate:     &target,
		PredictedValue: 50,
		ModelVersion:   "v",
	}
	require.NoError(t, fixture.predictions.Create(ctx, &waiting))
	require.NoError(t, fixture.outcomes.Create(ctx, &models.LearningOutcome{
		StudentID:  1,
		Metric:     string(models.PredictionTypePerformance),
		Value:      70,
		RecordedAt: fixture.now.AddDate(0, 0, -2),
	}))
	svc := fixture.predictionService()

	listed, err := svc.ListDue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, listed, 2)

	reconciled, err := svc.Reconcile(ctx, due)
	require.NoError(t, err)
	require.True(t, reconciled)

	skipped, err := svc.Reconcile(ctx, waiting)
	require.NoError(t, err)
	require.False(t, skipped)

	stored, err := svc.Get(ctx, due.ID)
	require.NoError(t, err)
	require.True(t, stored.IsValidated)
	require.Equal(t, 94.0, *stored.AccuracyScore)
}

func TestPredictionServiceListPaginates(t *testing.T) {
	fixture := newAnalyticsFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		prediction := models.PerformancePrediction{StudentID: 1, PredictionType: models.PredictionTypePerformance, PredictionDate: fixture.now, ModelVersion: "v"}
		require.NoError(t, fixture.predictions.Create(ctx, &prediction))
	}
	svc := fixture.predictionService()

	items, meta, err := svc.List(ctx, repository.PredictionFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, int64(3), meta.Total)
	require.Equal(t, 2, meta.Page)
}

func TestRuleBasedEstimatorCoversEveryPredictionType(t *testing.T) {
	for _, predictionType := range models.PredictionTypes {
		require.True(t, inference.SupportsPredictionType(string(predictionType)), "no fallback for %s", predictionType)
	}
	require.Equal(t, models.FallbackModelVersion, inference.FallbackModelVersion)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
