package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/noah-isme/gema-analytics-api/internal/models"
)

// Optimization action names.
const (
	ActionIncreaseUtilization = "increase_utilization"
	ActionImproveExperience   = "improve_user_experience"
	ActionResolveBottleneck   = "resolve_bottleneck"
)

const (
	utilizationTarget   = 80.0
	satisfactionTarget  = 80.0
	utilizationGain     = 10.0
	experienceGain      = 8.0
	bottleneckGain      = 12.0
	bottleneckPenalty   = 5.0
	maxBottleneckDeduct = 20.0
	costPerEffortPoint  = 1000.0
)

// EfficiencyProfile weights the usage signals of one resource type.
type EfficiencyProfile struct {
	UtilizationWeight  float64
	SatisfactionWeight float64
	SessionWeight      float64
	IdealSessionMins   float64
	Label              string
}

// EfficiencyProfiles holds one profile per resource type.
var EfficiencyProfiles = map[models.ResourceType]EfficiencyProfile{
	models.ResourceTypeCourse:           {UtilizationWeight: 0.4, SatisfactionWeight: 0.4, SessionWeight: 0.2, IdealSessionMins: 45, Label: "course"},
	models.ResourceTypeLesson:           {UtilizationWeight: 0.3, SatisfactionWeight: 0.4, SessionWeight: 0.3, IdealSessionMins: 20, Label: "lesson"},
	models.ResourceTypeInstructor:       {UtilizationWeight: 0.5, SatisfactionWeight: 0.4, SessionWeight: 0.1, IdealSessionMins: 60, Label: "instructor"},
	models.ResourceTypeStudyGroup:       {UtilizationWeight: 0.35, SatisfactionWeight: 0.35, SessionWeight: 0.3, IdealSessionMins: 60, Label: "study group"},
	models.ResourceTypeLearningMaterial: {UtilizationWeight: 0.3, SatisfactionWeight: 0.5, SessionWeight: 0.2, IdealSessionMins: 15, Label: "learning material"},
}

// Efficiency scores a usage snapshot for the given resource type on a 0-100 scale.
func Efficiency(resourceType models.ResourceType, usage models.UsageSnapshot) float64 {
	profile, ok := EfficiencyProfiles[resourceType]
	if !ok {
		return 0
	}

	sessionScore := 0.0
	if usage.AvgSessionMinutes > 0 && profile.IdealSessionMins > 0 {
		deviation := math.Abs(usage.AvgSessionMinutes-profile.IdealSessionMins) / profile.IdealSessionMins
		sessionScore = clamp(100-deviation*100, 0, 100)
	}

	score := profile.UtilizationWeight*usage.UtilizationRate +
		profile.SatisfactionWeight*usage.Satisfaction +
		profile.SessionWeight*sessionScore
	score -= math.Min(maxBottleneckDeduct, bottleneckPenalty*float64(len(usage.Bottlenecks)))

	return Round2(clamp(score, 0, 100))
}

// OptimizationPlan is the optimizer's proposal for one resource.
type OptimizationPlan struct {
	CurrentEfficiency   float64
	PredictedEfficiency float64
	Actions             []models.OptimizationAction
	Outcomes            models.OptimizationOutcomes
}

// PlanOptimization ranks the applicable actions by efficiency gain, then by effort.
func PlanOptimization(resourceType models.ResourceType, usage models.UsageSnapshot) OptimizationPlan {
	profile := EfficiencyProfiles[resourceType]
	current := Efficiency(resourceType, usage)

	actions := make([]models.OptimizationAction, 0, 3)
	expectedUtilization := usage.UtilizationRate
	expectedSatisfaction := usage.Satisfaction

	if usage.UtilizationRate < utilizationTarget {
		actions = append(actions, models.OptimizationAction{
			Action:         ActionIncreaseUtilization,
			Description:    fmt.Sprintf("Promote the %s during off-peak hours to lift utilization from %.1f%%", profile.Label, usage.UtilizationRate),
			Impact:         "medium",
			EfficiencyGain: utilizationGain,
			Effort:         2,
			Timeline:       "2 weeks",
		})
		expectedUtilization = math.Min(100, expectedUtilization+utilizationGain)
	}
	if usage.Satisfaction < satisfactionTarget {
		actions = append(actions, models.OptimizationAction{
			Action:         ActionImproveExperience,
			Description:    fmt.Sprintf("Improve the learner experience of the %s (satisfaction %.1f)", profile.Label, usage.Satisfaction),
			Impact:         "medium",
			EfficiencyGain: experienceGain,
			Effort:         3,
			Timeline:       "1 month",
			Dependencies:   []string{"learner feedback survey"},
		})
		expectedSatisfaction = math.Min(100, expectedSatisfaction+experienceGain)
	}
	if len(usage.Bottlenecks) > 0 {
		actions = append(actions, models.OptimizationAction{
			Action:         ActionResolveBottleneck,
			Description:    fmt.Sprintf("Resolve %d recurring bottleneck(s) of the %s", len(usage.Bottlenecks), profile.Label),
			Impact:         "high",
			EfficiencyGain: bottleneckGain,
			Effort:         4,
			Timeline:       "1 month",
			Dependencies:   append([]string(nil), usage.Bottlenecks...),
		})
	}

	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].EfficiencyGain == actions[j].EfficiencyGain {
			return actions[i].Effort < actions[j].Effort
		}
		return actions[i].EfficiencyGain > actions[j].EfficiencyGain
	})

	predicted := current
	cost := 0.0
	for i := range actions {
		actions[i].Rank = i + 1
		predicted += actions[i].EfficiencyGain
		cost += float64(actions[i].Effort) * costPerEffortPoint
	}
	predicted = Round2(math.Min(100, predicted))

	return OptimizationPlan{
		CurrentEfficiency:   current,
		PredictedEfficiency: predicted,
		Actions:             actions,
		Outcomes: models.OptimizationOutcomes{
			EfficiencyGain:       Round2(predicted - current),
			ImplementationCost:   cost,
			ExpectedUtilization:  Round2(expectedUtilization),
			ExpectedSatisfaction: Round2(expectedSatisfaction),
		},
	}
}

// SuccessRate is actual over predicted efficiency as a percentage, capped at 100.
func SuccessRate(predicted, actual float64) float64 {
	if predicted <= 0 {
		return 100
	}
	return Round2(clamp(actual/predicted*100, 0, 100))
}

// EvaluateImplementation compares the usage before and after an implemented optimization.
func EvaluateImplementation(current, predicted, actual float64, before, after models.UsageSnapshot, validatedAt time.Time) models.ImplementationResults {
	results := models.ImplementationResults{
		SuccessRate: SuccessRate(predicted, actual),
		UsageAfter:  after,
		ValidatedAt: validatedAt,
	}

	if actual < predicted {
		results.Issues = append(results.Issues, fmt.Sprintf("efficiency %.1f is below the predicted %.1f", actual, predicted))
	}
	if actual > current {
		results.Benefits = append(results.Benefits, fmt.Sprintf("efficiency improved by %.1f points", actual-current))
	}
	if after.UtilizationRate < before.UtilizationRate {
		results.Issues = append(results.Issues, fmt.Sprintf("utilization dropped from %.1f%% to %.1f%%", before.UtilizationRate, after.UtilizationRate))
	} else if after.UtilizationRate > before.UtilizationRate {
		results.Benefits = append(results.Benefits, fmt.Sprintf("utilization rose from %.1f%% to %.1f%%", before.UtilizationRate, after.UtilizationRate))
	}
	if after.Satisfaction > before.Satisfaction {
		results.Benefits = append(results.Benefits, fmt.Sprintf("satisfaction rose from %.1f to %.1f", before.Satisfaction, after.Satisfaction))
	}

	remaining := map[string]struct{}{}
	for _, name := range after.Bottlenecks {
		remaining[name] = struct{}{}
	}
	for _, name := range before.Bottlenecks {
		if _, ok := remaining[name]; ok {
			results.Issues = append(results.Issues, fmt.Sprintf("bottleneck persists: %s", name))
		} else {
			results.Benefits = append(results.Benefits, fmt.Sprintf("bottleneck resolved: %s", name))
		}
	}

	return results
}
