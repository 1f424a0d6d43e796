package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/noah-isme/gema-analytics-api/internal/models"
)

// ForecastWindowDays is the trailing window a forecast looks at.
const ForecastWindowDays = 60

const (
	optimisticUplift    = 15.0
	optimisticCeiling   = 95.0
	pessimisticDrop     = 20.0
	pessimisticFloor    = 20.0
	optimisticTimeRate  = 0.8
	pessimisticTimeRate = 1.3
	onTrackProbability  = 70.0
)

// OutcomeProfile describes how forecasts of one outcome type are worded and what they estimate.
type OutcomeProfile struct {
	Goal               string
	EstimatesScore     bool
	EstimatesDuration  bool
	EngagementWeight   float64
	PerformanceWeight  float64
	OptimisticFactors  []string
	RealisticFactors   []string
	PessimisticFactors []string
}

// OutcomeProfiles holds one profile per outcome type.
var OutcomeProfiles = map[models.OutcomeType]OutcomeProfile{
	models.OutcomeTypeCourseCompletion: {
		Goal:               "complete the course",
		EstimatesDuration:  true,
		EngagementWeight:   0.6,
		PerformanceWeight:  0.4,
		OptimisticFactors:  []string{"engagement increases", "weekly study rhythm holds"},
		RealisticFactors:   []string{"current pace continues"},
		PessimisticFactors: []string{"activity keeps dropping", "missed deadlines accumulate"},
	},
	models.OutcomeTypeSkillMastery: {
		Goal:               "master the target skill",
		EstimatesScore:     true,
		EstimatesDuration:  true,
		EngagementWeight:   0.4,
		PerformanceWeight:  0.6,
		OptimisticFactors:  []string{"practice frequency increases", "quiz scores keep improving"},
		RealisticFactors:   []string{"current practice level continues"},
		PessimisticFactors: []string{"practice stalls", "weak topics stay unresolved"},
	},
	models.OutcomeTypeGradeAchievement: {
		Goal:               "reach the target grade",
		EstimatesScore:     true,
		EngagementWeight:   0.3,
		PerformanceWeight:  0.7,
		OptimisticFactors:  []string{"assessment scores improve", "feedback is acted on"},
		RealisticFactors:   []string{"scores stay at the current average"},
		PessimisticFactors: []string{"assessment scores decline", "submissions are skipped"},
	},
	models.OutcomeTypeCertificationPass: {
		Goal:               "pass the certification",
		EstimatesScore:     true,
		EngagementWeight:   0.35,
		PerformanceWeight:  0.65,
		OptimisticFactors:  []string{"mock exam scores improve", "exam preparation is completed"},
		RealisticFactors:   []string{"preparation continues at the current level"},
		PessimisticFactors: []string{"preparation is interrupted", "mock exam scores drop"},
	},
}

// ProfileFor returns the profile of an outcome type.
func ProfileFor(outcome models.OutcomeType) (OutcomeProfile, bool) {
	profile, ok := OutcomeProfiles[outcome]
	return profile, ok
}

// BuildScenarios derives the three scenarios from the realistic success probability.
// The result always satisfies optimistic >= realistic >= pessimistic.
func BuildScenarios(outcome models.OutcomeType, realistic float64, daysToTarget int) models.ForecastScenarios {
	profile := OutcomeProfiles[outcome]
	realistic = Round2(clamp(realistic, 0, 100))
	if daysToTarget < 0 {
		daysToTarget = 0
	}

	optimistic := math.Max(realistic, math.Min(optimisticCeiling, realistic+optimisticUplift))
	pessimistic := math.Min(realistic, math.Max(pessimisticFloor, realistic-pessimisticDrop))

	return models.ForecastScenarios{
		Optimistic: models.ForecastScenario{
			Probability:   Round2(optimistic),
			Outcome:       describeOutcome(profile.Goal, optimistic),
			TimeframeDays: scaleDays(daysToTarget, optimisticTimeRate),
			Conditions:    profile.OptimisticFactors,
		},
		Realistic: models.ForecastScenario{
			Probability:   realistic,
			Outcome:       describeOutcome(profile.Goal, realistic),
			TimeframeDays: daysToTarget,
			Conditions:    profile.RealisticFactors,
		},
		Pessimistic: models.ForecastScenario{
			Probability:   Round2(pessimistic),
			Outcome:       describeOutcome(profile.Goal, pessimistic),
			TimeframeDays: scaleDays(daysToTarget, pessimisticTimeRate),
			Conditions:    profile.PessimisticFactors,
		},
	}
}

// DaysUntil counts whole days from reference to target, 0 when already past.
func DaysUntil(reference, target time.Time) int {
	if !target.After(reference) {
		return 0
	}
	return int(math.Ceil(target.Sub(reference).Hours() / 24))
}

// EstimateDaysToCompletion stretches or shrinks the remaining days by how far the
// success probability sits from the on-track level.
func EstimateDaysToCompletion(successProbability float64, daysToTarget int) int {
	if daysToTarget <= 0 {
		return 0
	}
	factor := 1 + (onTrackProbability-clamp(successProbability, 0, 100))/100
	days := int(math.Round(float64(daysToTarget) * factor))
	if days < 1 {
		return 1
	}
	return days
}

// EstimateScore blends the current performance level with the success probability.
func EstimateScore(snapshot Snapshot, successProbability float64) float64 {
	return Round2(clamp(0.5*snapshot.PerformanceLevel()+0.5*successProbability, 0, 100))
}

// ForecastConfidence grows with the number of observed activities.
func ForecastConfidence(snapshot Snapshot) float64 {
	return clamp(40+float64(snapshot.ActivityCount)*2, 40, 90)
}

func describeOutcome(goal string, probability float64) string {
	switch {
	case probability >= 75:
		return fmt.Sprintf("likely to %s", goal)
	case probability >= 50:
		return fmt.Sprintf("may %s", goal)
	default:
		return fmt.Sprintf("unlikely to %s without support", goal)
	}
}

func scaleDays(days int, rate float64) int {
	return int(math.Round(float64(days) * rate))
}
