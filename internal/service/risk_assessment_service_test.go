package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-analytics-api/internal/analytics"
	"github.com/noah-isme/gema-analytics-api/internal/dto"
	"github.com/noah-isme/gema-analytics-api/internal/models"
)

func TestRiskAssessmentServiceAssessScoresTrailingWindow(t *testing.T) {
	fixture := newAnalyticsFixture(t)
	fixture.seedActivities(t, 1, nil, 8, 55, 40, 20)
	svc := fixture.riskService()

	assessment, err := svc.Assess(context.Background(), dto.RiskAssessmentRequest{StudentID: 1})
	require.NoError(t, err)

	require.NotZero(t, assessment.ID)
	require.Equal(t, 51.5, assessment.RiskProbability)
	require.Equal(t, models.RiskLevelMedium, assessment.RiskLevel)
	require.Equal(t, 5, assessment.InterventionPriority)
	require.False(t, assessment.InterventionRequired)
	require.Equal(t, []models.InterventionType{models.InterventionStudyPlan}, assessment.RecommendedInterventions.Data())
	require.Equal(t, "2026-04-01", assessment.AssessmentDay)

	factors := assessment.RiskFactors.Data()
	require.Equal(t, 45.0, factors.AcademicPerformance.Score)
	require.Equal(t, 60.0, factors.Engagement.Score)
	require.Equal(t, 60.0, factors.Attendance.Score)
	require.Equal(t, 40.0, factors.TimeManagement.Score)
	require.Zero(t, assessment.ProtectiveFactors.Data().Count())

	trend := assessment.TrendAnalysis.Data()
	require.NotNil(t, trend)
	require.Equal(t, 1, trend.DataPoints)
}

func TestRiskAssessmentServiceUpsertsSameDay(t *testing.T) {
	fixture := newAnalyticsFixture(t)
	fixture.seedActivities(t, 1, nil, 8, 55, 40, 20)
	svc := fixture.riskService()
	ctx := context.Background()

	first, err := svc.Assess(ctx, dto.RiskAssessmentRequest{StudentID: 1})
	require.NoError(t, err)
	require.NoError(t, svc.MarkNotified(ctx, first.ID, true, true))

	fixture.now = fixture.now.Add(3 * time.Hour)
	second, err := svc.Assess(ctx, dto.RiskAssessmentRequest{StudentID: 1})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.True(t, second.StudentNotified, "unchanged level keeps notification state")

	var total int64
	require.NoError(t, fixture.db.Model(&models.DropoutRiskAssessment{}).Count(&total).Error)
	require.Equal(t, int64(1), total)

	fixture.now = fixture.now.Add(24 * time.Hour)
	third, err := svc.Assess(ctx, dto.RiskAssessmentRequest{StudentID: 1})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, third.ID)
	require.False(t, third.StudentNotified)
}

func TestRiskAssessmentServiceTrendUsesEarlierDays(t *testing.T) {
	fixture := newAnalyticsFixture(t)
	ctx := context.Background()
	for i, probability := range []float64{30, 40, 45} {
		day := fixture.now.AddDate(0, 0, -3+i)
		require.NoError(t, fixture.assessments.Create(ctx, &models.DropoutRiskAssessment{
			StudentID:       1,
			AssessmentDate:  day,
			AssessmentDay:   models.AssessmentDayKey(day),
			RiskLevel:       analytics.ClassifyRiskLevel(probability),
			RiskProbability: probability,
		}))
	}
	fixture.seedActivities(t, 1, nil, 8, 55, 40, 20)
	svc := fixture.riskService()

	assessment, err := svc.Assess(ctx, dto.RiskAssessmentRequest{StudentID: 1})
	require.NoError(t, err)

	trend := assessment.TrendAnalysis.Data()
	require.NotNil(t, trend)
	require.Equal(t, 4, trend.DataPoints)
	require.Equal(t, 6.95, trend.Slope)
}

func TestRiskAssessmentServiceFlagsVeryHighRisk(t *testing.T) {
	fixture := newAnalyticsFixture(t)
	seedIrregularLowActivity(t, fixture, 4)
	svc := fixture.riskService()

	assessment, err := svc.Assess(context.Background(), dto.RiskAssessmentRequest{StudentID: 4})
	require.NoError(t, err)

	require.Equal(t, models.RiskLevelVeryHigh, assessment.RiskLevel)
	require.Equal(t, 88.75, assessment.RiskProbability)
	require.True(t, assessment.InterventionRequired)
	require.Equal(t, 10, assessment.InterventionPriority)
	require.Len(t, assessment.RecommendedInterventions.Data(), 6)

	elevated, err := svc.ListElevatedSince(context.Background(), fixture.now.AddDate(0, 0, -1))
	require.NoError(t, err)
	require.Len(t, elevated, 1)

	latest, err := svc.Latest(context.Background(), 4, nil)
	require.NoError(t, err)
	require.Equal(t, assessment.ID, latest.ID)
}

func TestRiskAssessmentServiceNotFound(t *testing.T) {
	fixture := newAnalyticsFixture(t)
	svc := fixture.riskService()

	_, err := svc.Get(context.Background(), 42)
	require.ErrorIs(t, err, ErrRiskAssessmentNotFound)

	_, err = svc.Latest(context.Background(), 42, nil)
	require.ErrorIs(t, err, ErrRiskAssessmentNotFound)

	require.ErrorIs(t, svc.MarkNotified(context.Background(), 42, true, false), ErrRiskAssessmentNotFound)
}

// seedIrregularLowActivity writes two short, uneven, low-scoring sessions so every
// risk factor is elevated.
func seedIrregularLowActivity(t *testing.T, fixture *analyticsFixture, studentID uint) {
	t.Helper()
	fixture.seedActivities(t, studentID, nil, 1, 5, 5, 2)
	fixture.seedActivities(t, studentID, nil, 1, 5, 5, 10)
}
