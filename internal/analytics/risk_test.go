package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-analytics-api/internal/models"
)

func floatPtr(v float64) *float64 {
	return &v
}

func activitiesFixture(now time.Time, count int, score, engagement, minutes float64) []models.LearningActivity {
	activities := make([]models.LearningActivity, 0, count)
	for i := 0; i < count; i++ {
		activities = append(activities, models.LearningActivity{
			StudentID:       1,
			ActivityType:    models.ActivityQuizAttempt,
			DurationMinutes: minutes,
			Score:           floatPtr(score),
			EngagementScore: floatPtr(engagement),
			Completed:       true,
			OccurredAt:      now.Add(-time.Duration(i+1) * 24 * time.Hour),
		})
	}
	return activities
}

func TestClassifyRiskLevelThresholds(t *testing.T) {
	cases := []struct {
		probability float64
		expected    models.RiskLevel
	}{
		{0, models.RiskLevelVeryLow},
		{29.99, models.RiskLevelVeryLow},
		{30, models.RiskLevelLow},
		{49.99, models.RiskLevelLow},
		{50, models.RiskLevelMedium},
		{64.99, models.RiskLevelMedium},
		{65, models.RiskLevelHigh},
		{79.99, models.RiskLevelHigh},
		{80, models.RiskLevelVeryHigh},
		{100, models.RiskLevelVeryHigh},
	}

	for _, tc := range cases {
		require.Equal(t, tc.expected, ClassifyRiskLevel(tc.probability), "probability %.2f", tc.probability)
	}
}

func TestClassifyRiskLevelIsMonotonic(t *testing.T) {
	rank := map[models.RiskLevel]int{
		models.RiskLevelVeryLow:  0,
		models.RiskLevelLow:      1,
		models.RiskLevelMedium:   2,
		models.RiskLevelHigh:     3,
		models.RiskLevelVeryHigh: 4,
	}

	previous := -1
	for p := 0.0; p <= 100; p += 0.25 {
		current := rank[ClassifyRiskLevel(p)]
		require.GreaterOrEqual(t, current, previous)
		previous = current
	}
}

func TestWeightedProbabilityMatchesWeightedSum(t *testing.T) {
	weightSets := []RiskWeights{
		DefaultRiskWeights,
		{Academic: 0.25, Engagement: 0.25, Attendance: 0.25, TimeManagement: 0.25},
		{Academic: 0.7, Engagement: 0.1, Attendance: 0.1, TimeManagement: 0.1},
		{Academic: 0, Engagement: 0.5, Attendance: 0.5, TimeManagement: 0},
	}
	scores := [][4]float64{
		{45, 60, 60, 40},
		{0, 0, 0, 0},
		{100, 100, 100, 100},
		{12.5, 87.3, 33.3, 70},
	}

	for _, weights := range weightSets {
		for _, s := range scores {
			factors := models.RiskFactors{
				AcademicPerformance: models.RiskFactor{Score: s[0], Weight: weights.Academic},
				Engagement:          models.RiskFactor{Score: s[1], Weight: weights.Engagement},
				Attendance:          models.RiskFactor{Score: s[2], Weight: weights.Attendance},
				TimeManagement:      models.RiskFactor{Score: s[3], Weight: weights.TimeManagement},
			}
			expected := s[0]*weights.Academic + s[1]*weights.Engagement + s[2]*weights.Attendance + s[3]*weights.TimeManagement
			require.InDelta(t, expected, WeightedProbability(factors), 0.01)
		}
	}
}

func TestWeightedProbabilityNormalizesWeights(t *testing.T) {
	factors := models.RiskFactors{
		AcademicPerformance: models.RiskFactor{Score: 80, Weight: 2},
		Engagement:          models.RiskFactor{Score: 40, Weight: 2},
	}
	require.InDelta(t, 60, WeightedProbability(factors), 0.01)
	require.Zero(t, WeightedProbability(models.RiskFactors{}))
}

func TestScoreRiskEndToEndMediumStudent(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	activities := activitiesFixture(now, 8, 55, 40, 20)
	snapshot := BuildSnapshot(activities, now.AddDate(0, 0, -RiskWindowDays), now)

	score := ScoreRisk(snapshot, DefaultRiskWeights)

	require.InDelta(t, 45, score.Factors.AcademicPerformance.Score, 0.01)
	require.InDelta(t, 60, score.Factors.Engagement.Score, 0.01)
	require.InDelta(t, 60, score.Factors.Attendance.Score, 0.01)
	require.InDelta(t, 40, score.Factors.TimeManagement.Score, 0.01)
	require.InDelta(t, 51.5, score.Probability, 0.01)
	require.Equal(t, models.RiskLevelMedium, score.Level)
	require.False(t, score.InterventionRequired)
	require.Equal(t, 5, score.InterventionPriority)
	require.Equal(t, []models.InterventionType{models.InterventionStudyPlan}, score.RecommendedInterventions)
}

func TestScoreRiskInterventionRequiredTracksLevel(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fixtures := [][]models.LearningActivity{
		nil,
		activitiesFixture(now, 2, 10, 5, 5),
		activitiesFixture(now, 8, 55, 40, 20),
		activitiesFixture(now, 25, 95, 90, 45),
	}

	for _, activities := range fixtures {
		snapshot := BuildSnapshot(activities, now.AddDate(0, 0, -RiskWindowDays), now)
		score := ScoreRisk(snapshot, DefaultRiskWeights)
		expected := score.Level == models.RiskLevelHigh || score.Level == models.RiskLevelVeryHigh
		require.Equal(t, expected, score.InterventionRequired)
		require.Equal(t, ClassifyRiskLevel(score.Probability), score.Level)
	}
}

func TestScoreRiskHighRiskRecommendations(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	activities := activitiesFixture(now, 2, 10, 5, 5)
	snapshot := BuildSnapshot(activities, now.AddDate(0, 0, -RiskWindowDays), now)

	score := ScoreRisk(snapshot, DefaultRiskWeights)

	require.Equal(t, models.RiskLevelVeryHigh, score.Level)
	require.True(t, score.InterventionRequired)
	require.Equal(t, 10, score.InterventionPriority)
	require.Contains(t, score.RecommendedInterventions, models.InterventionTutorSupport)
	require.Contains(t, score.RecommendedInterventions, models.InterventionContentReview)
	require.Contains(t, score.RecommendedInterventions, models.InterventionMotivation)
	require.Contains(t, score.RecommendedInterventions, models.InterventionAttendanceCheck)
}

func TestScoreRiskWithoutDataUsesNeutralDefaults(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	snapshot := BuildSnapshot(nil, now.AddDate(0, 0, -RiskWindowDays), now)

	score := ScoreRisk(snapshot, DefaultRiskWeights)

	require.Equal(t, defaultAcademicRisk, score.Factors.AcademicPerformance.Score)
	require.Equal(t, defaultEngagementRisk, score.Factors.Engagement.Score)
	require.Equal(t, 100.0, score.Factors.Attendance.Score)
	require.Equal(t, defaultTimeMgmtRisk, score.Factors.TimeManagement.Score)
	require.Zero(t, score.Protective.Count())
}

func TestDetectProtectiveFactors(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	activities := activitiesFixture(now, 20, 90, 85, 40)
	for i := 0; i < 3; i++ {
		activities = append(activities, models.LearningActivity{
			StudentID:    1,
			ActivityType: models.ActivityDiscussionPost,
			OccurredAt:   now.Add(-time.Hour * time.Duration(i+1)),
		})
	}
	snapshot := BuildSnapshot(activities, now.AddDate(0, 0, -RiskWindowDays), now)

	protective := DetectProtectiveFactors(snapshot)

	require.True(t, protective.StrongMotivation)
	require.True(t, protective.AcademicStrength)
	require.True(t, protective.ConsistentAttendance)
	require.True(t, protective.GoodTimeManagement)
	require.True(t, protective.PeerSupport)
	require.Equal(t, 5, protective.Count())
}

func TestBuildSnapshotIgnoresRowsOutsideWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	activities := []models.LearningActivity{
		{StudentID: 1, Score: floatPtr(80), DurationMinutes: 10, OccurredAt: now.AddDate(0, 0, -40)},
		{StudentID: 1, Score: floatPtr(60), DurationMinutes: 30, OccurredAt: now.AddDate(0, 0, -2)},
		{StudentID: 1, Score: floatPtr(70), DurationMinutes: 50, OccurredAt: now.AddDate(0, 0, -1)},
	}

	snapshot := BuildSnapshot(activities, now.AddDate(0, 0, -RiskWindowDays), now)

	require.Equal(t, 2, snapshot.ActivityCount)
	require.Equal(t, 2, snapshot.ActiveDays)
	require.InDelta(t, 65, snapshot.AvgScore, 0.001)
	require.InDelta(t, 40, snapshot.AvgSessionMinutes, 0.001)
	require.InDelta(t, 0.25, snapshot.SessionCV, 0.001)
	require.Equal(t, []float64{60, 70}, snapshot.DailyScores)
	require.False(t, snapshot.HasEngagement)
	require.Equal(t, NeutralLevel, snapshot.EngagementLevel())
	require.Equal(t, RiskWindowDays, snapshot.WindowDays())
}
