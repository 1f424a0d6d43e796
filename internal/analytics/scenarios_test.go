package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-analytics-api/internal/models"
)

func TestOutcomeProfilesCoverEveryOutcomeType(t *testing.T) {
	require.Len(t, OutcomeProfiles, len(models.OutcomeTypes))
	for _, outcome := range models.OutcomeTypes {
		profile, ok := ProfileFor(outcome)
		require.True(t, ok, "missing profile for %s", outcome)
		require.NotEmpty(t, profile.Goal)
		require.InDelta(t, 1, profile.EngagementWeight+profile.PerformanceWeight, 0.0001)
	}
}

func TestBuildScenariosOffsets(t *testing.T) {
	scenarios := BuildScenarios(models.OutcomeTypeCourseCompletion, 60, 30)

	require.Equal(t, 75.0, scenarios.Optimistic.Probability)
	require.Equal(t, 60.0, scenarios.Realistic.Probability)
	require.Equal(t, 40.0, scenarios.Pessimistic.Probability)
	require.Equal(t, 24, scenarios.Optimistic.TimeframeDays)
	require.Equal(t, 30, scenarios.Realistic.TimeframeDays)
	require.Equal(t, 39, scenarios.Pessimistic.TimeframeDays)
	require.NotEmpty(t, scenarios.Pessimistic.Conditions)
}

func TestBuildScenariosCapsAndFloors(t *testing.T) {
	high := BuildScenarios(models.OutcomeTypeSkillMastery, 90, 10)
	require.Equal(t, 95.0, high.Optimistic.Probability)
	require.Equal(t, 70.0, high.Pessimistic.Probability)

	low := BuildScenarios(models.OutcomeTypeGradeAchievement, 30, 10)
	require.Equal(t, 20.0, low.Pessimistic.Probability)
}

func TestBuildScenariosOrderingHoldsEverywhere(t *testing.T) {
	for _, outcome := range models.OutcomeTypes {
		for p := -10.0; p <= 110; p += 0.5 {
			scenarios := BuildScenarios(outcome, p, 14)
			require.True(t, scenarios.Ordered(), "outcome %s probability %.1f", outcome, p)
		}
	}
}

func TestDaysUntilAndCompletionEstimate(t *testing.T) {
	reference := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	require.Equal(t, 10, DaysUntil(reference, reference.AddDate(0, 0, 10)))
	require.Equal(t, 1, DaysUntil(reference, reference.Add(2*time.Hour)))
	require.Zero(t, DaysUntil(reference, reference.AddDate(0, 0, -1)))

	require.Equal(t, 10, EstimateDaysToCompletion(70, 10))
	require.Equal(t, 13, EstimateDaysToCompletion(40, 10))
	require.Equal(t, 8, EstimateDaysToCompletion(90, 10))
	require.Zero(t, EstimateDaysToCompletion(50, 0))
}
