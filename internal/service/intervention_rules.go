package service

import (
	"math"

	"github.com/noah-isme/gema-analytics-api/internal/analytics"
	"github.com/noah-isme/gema-analytics-api/internal/models"
)

const (
	// FollowUpDays is the delay before a follow-up of an unconvincing intervention.
	FollowUpDays = 7
	// MinEffectiveness is the effectiveness below which a follow-up is required.
	MinEffectiveness = 70.0

	elevatedFactorThreshold = 60.0
	targetMetricUplift      = 15.0
)

type interventionTemplate struct {
	title        string
	description  string
	metric       string
	channel      string
	durationDays int
	automated    bool
}

var interventionTemplates = map[models.InterventionType]interventionTemplate{
	models.InterventionTutorSupport: {
		title:        "One-on-one tutoring",
		description:  "Pair the student with a tutor to work through the topics with the lowest scores.",
		metric:       "avg_score",
		channel:      "tutor",
		durationDays: 14,
	},
	models.InterventionContentReview: {
		title:        "Guided content review",
		description:  "Assign review material for the lessons behind recent low assessment results.",
		metric:       "avg_score",
		channel:      "in_app",
		durationDays: 7,
	},
	models.InterventionMotivation: {
		title:        "Motivational outreach",
		description:  "Send an encouragement message highlighting recent progress and next milestones.",
		metric:       "avg_engagement",
		channel:      "in_app",
		durationDays: 7,
		automated:    true,
	},
	models.InterventionPeerSupport: {
		title:        "Peer study group",
		description:  "Invite the student to a peer study group of the same course.",
		metric:       "avg_engagement",
		channel:      "study_group",
		durationDays: 21,
	},
	models.InterventionStudyPlan: {
		title:        "Personal study plan",
		description:  "Agree on a weekly study plan with concrete lesson and practice targets.",
		metric:       "activity_count",
		channel:      "instructor",
		durationDays: 14,
	},
	models.InterventionAttendanceCheck: {
		title:        "Attendance outreach",
		description:  "Contact the student about missed sessions and agree on a return date.",
		metric:       "activity_count",
		channel:      "instructor",
		durationDays: 7,
	},
	models.InterventionStudySkills: {
		title:        "Study skills coaching",
		description:  "Coach the student on session planning and focused study habits.",
		metric:       "avg_session_minutes",
		channel:      "instructor",
		durationDays: 14,
	},
}

type plannedIntervention struct {
	interventionType models.InterventionType
	priority         int
}

// planInterventions maps a risk profile to the interventions it calls for.
func planInterventions(level models.RiskLevel, factors models.RiskFactors) []plannedIntervention {
	switch {
	case level == models.RiskLevelMedium:
		return []plannedIntervention{{models.InterventionStudyPlan, 5}}
	case !level.Elevated():
		return nil
	}

	base := 8
	if level == models.RiskLevelVeryHigh {
		base = 10
	}

	var plan []plannedIntervention
	if factors.AcademicPerformance.Score > elevatedFactorThreshold {
		plan = append(plan,
			plannedIntervention{models.InterventionTutorSupport, base},
			plannedIntervention{models.InterventionContentReview, base},
		)
	}
	if factors.Engagement.Score > elevatedFactorThreshold {
		plan = append(plan,
			plannedIntervention{models.InterventionMotivation, 7},
			plannedIntervention{models.InterventionPeerSupport, 6},
		)
	}
	if factors.Attendance.Score > elevatedFactorThreshold {
		plan = append(plan, plannedIntervention{models.InterventionAttendanceCheck, 7})
	}
	if factors.TimeManagement.Score > elevatedFactorThreshold {
		plan = append(plan, plannedIntervention{models.InterventionStudySkills, 6})
	}
	if len(plan) == 0 {
		plan = append(plan, plannedIntervention{models.InterventionStudyPlan, base})
	}
	return plan
}

// factorsFromFeatures rebuilds approximate risk sub-scores from the features stored on a prediction.
func factorsFromFeatures(features models.PredictionFeatures) models.RiskFactors {
	weights := analytics.DefaultRiskWeights
	attendance := math.Max(0, 100-float64(features.ActivityCount)/analytics.ExpectedActivityCount*100)
	timeManagement := 0.0
	if features.AvgSessionMinutes > 0 && features.AvgSessionMinutes < 30 {
		timeManagement = 40
	}
	return models.RiskFactors{
		AcademicPerformance: models.RiskFactor{Score: math.Max(0, 100-features.AvgPerformance), Weight: weights.Academic},
		Engagement:          models.RiskFactor{Score: math.Max(0, 100-features.AvgEngagement), Weight: weights.Engagement},
		Attendance:          models.RiskFactor{Score: attendance, Weight: weights.Attendance},
		TimeManagement:      models.RiskFactor{Score: timeManagement, Weight: weights.TimeManagement},
	}
}

func targetMetrics(metric string, pre models.MetricSnapshot) []models.TargetMetric {
	var baseline float64
	switch metric {
	case "avg_score":
		baseline = pre.AvgScore
	case "avg_engagement":
		baseline = pre.AvgEngagement
	case "activity_count":
		return []models.TargetMetric{{
			Metric:   metric,
			Baseline: float64(pre.ActivityCount),
			Target:   math.Max(float64(pre.ActivityCount)+5, analytics.ExpectedActivityCount),
		}}
	case "avg_session_minutes":
		return []models.TargetMetric{{
			Metric:   metric,
			Baseline: pre.AvgSessionMinutes,
			Target:   math.Max(pre.AvgSessionMinutes, 30),
		}}
	}
	return []models.TargetMetric{{
		Metric:   metric,
		Baseline: baseline,
		Target:   math.Min(100, analytics.Round2(baseline+targetMetricUplift)),
	}}
}

var interventionTransitions = map[models.InterventionStatus][]models.InterventionStatus{
	models.InterventionStatusPending: {
		models.InterventionStatusScheduled,
		models.InterventionStatusInProgress,
		models.InterventionStatusCompleted,
		models.InterventionStatusCancelled,
		models.InterventionStatusDeferred,
	},
	models.InterventionStatusScheduled: {
		models.InterventionStatusInProgress,
		models.InterventionStatusCompleted,
		models.InterventionStatusCancelled,
		models.InterventionStatusDeferred,
	},
	models.InterventionStatusInProgress: {
		models.InterventionStatusCompleted,
	},
	models.InterventionStatusDeferred: {
		models.InterventionStatusScheduled,
		models.InterventionStatusCancelled,
	},
}

// CanTransition reports whether an intervention may move from one status to another.
func CanTransition(from, to models.InterventionStatus) bool {
	for _, allowed := range interventionTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// requiresFollowUp decides whether a completed intervention needs a follow-up.
func requiresFollowUp(outcome models.InterventionOutcome, effectiveness float64) bool {
	return effectiveness < MinEffectiveness || outcome == models.OutcomePartiallySuccessful
}
