package analytics

import (
	"fmt"

	"github.com/noah-isme/gema-analytics-api/internal/models"
)

const (
	// RiskWindowDays is the trailing window a dropout assessment looks at.
	RiskWindowDays = 30
	// ExpectedActivityCount is the number of activities expected over the risk window.
	ExpectedActivityCount = 20

	shortSessionMinutes   = 30.0
	shortSessionPenalty   = 40.0
	irregularCVThreshold  = 0.5
	irregularPenalty      = 30.0
	elevatedFactorScore   = 60.0
	defaultAcademicRisk   = 50.0
	defaultEngagementRisk = 60.0
	defaultTimeMgmtRisk   = 60.0
)

// RiskWeights are the weights of the four dropout sub-scores.
type RiskWeights struct {
	Academic       float64
	Engagement     float64
	Attendance     float64
	TimeManagement float64
}

// DefaultRiskWeights is the production weighting.
var DefaultRiskWeights = RiskWeights{
	Academic:       0.30,
	Engagement:     0.25,
	Attendance:     0.25,
	TimeManagement: 0.20,
}

// RiskScore is the full result of scoring a snapshot.
type RiskScore struct {
	Factors                  models.RiskFactors
	Probability              float64
	Level                    models.RiskLevel
	Protective               models.ProtectiveFactors
	InterventionRequired     bool
	InterventionPriority     int
	RecommendedInterventions []models.InterventionType
}

// ScoreRisk computes the dropout risk of a snapshot with the given weights.
func ScoreRisk(snapshot Snapshot, weights RiskWeights) RiskScore {
	factors := models.RiskFactors{
		AcademicPerformance: academicRisk(snapshot, weights.Academic),
		Engagement:          engagementRisk(snapshot, weights.Engagement),
		Attendance:          attendanceRisk(snapshot, weights.Attendance),
		TimeManagement:      timeManagementRisk(snapshot, weights.TimeManagement),
	}

	probability := WeightedProbability(factors)
	level := ClassifyRiskLevel(probability)

	return RiskScore{
		Factors:                  factors,
		Probability:              probability,
		Level:                    level,
		Protective:               DetectProtectiveFactors(snapshot),
		InterventionRequired:     level.Elevated(),
		InterventionPriority:     InterventionPriority(level),
		RecommendedInterventions: RecommendInterventions(factors, level),
	}
}

// WeightedProbability is the weight-normalized sum of score*weight, rounded to 2 decimals.
func WeightedProbability(factors models.RiskFactors) float64 {
	var weighted, totalWeight float64
	for _, factor := range factors.All() {
		weighted += factor.Score * factor.Weight
		totalWeight += factor.Weight
	}
	if totalWeight <= 0 {
		return 0
	}
	return Round2(clamp(weighted/totalWeight, 0, 100))
}

// ClassifyRiskLevel maps a probability to a level. Lower bounds are inclusive.
func ClassifyRiskLevel(probability float64) models.RiskLevel {
	switch {
	case probability >= 80:
		return models.RiskLevelVeryHigh
	case probability >= 65:
		return models.RiskLevelHigh
	case probability >= 50:
		return models.RiskLevelMedium
	case probability >= 30:
		return models.RiskLevelLow
	default:
		return models.RiskLevelVeryLow
	}
}

// InterventionPriority maps a risk level to a 1-10 priority.
func InterventionPriority(level models.RiskLevel) int {
	switch level {
	case models.RiskLevelVeryHigh:
		return 10
	case models.RiskLevelHigh:
		return 8
	case models.RiskLevelMedium:
		return 5
	case models.RiskLevelLow:
		return 3
	default:
		return 1
	}
}

// DetectProtectiveFactors derives the independent protective signals of a snapshot.
func DetectProtectiveFactors(snapshot Snapshot) models.ProtectiveFactors {
	return models.ProtectiveFactors{
		StrongMotivation:     snapshot.HasEngagement && snapshot.AvgEngagement > 70,
		AcademicStrength:     snapshot.HasScores && snapshot.AvgScore > 80,
		ConsistentAttendance: snapshot.ActivityCount >= ExpectedActivityCount,
		GoodTimeManagement: snapshot.HasSessions &&
			snapshot.AvgSessionMinutes >= shortSessionMinutes &&
			snapshot.SessionCV <= irregularCVThreshold,
		PeerSupport: snapshot.DiscussionCount >= 3,
	}
}

// RecommendInterventions lists intervention types suggested by elevated sub-scores.
func RecommendInterventions(factors models.RiskFactors, level models.RiskLevel) []models.InterventionType {
	recommended := make([]models.InterventionType, 0, 4)
	if factors.AcademicPerformance.Score > elevatedFactorScore {
		recommended = append(recommended, models.InterventionTutorSupport, models.InterventionContentReview)
	}
	if factors.Engagement.Score > elevatedFactorScore {
		recommended = append(recommended, models.InterventionMotivation, models.InterventionPeerSupport)
	}
	if factors.Attendance.Score > elevatedFactorScore {
		recommended = append(recommended, models.InterventionAttendanceCheck)
	}
	if factors.TimeManagement.Score > elevatedFactorScore {
		recommended = append(recommended, models.InterventionStudySkills)
	}
	if len(recommended) == 0 && level == models.RiskLevelMedium {
		recommended = append(recommended, models.InterventionStudyPlan)
	}
	return recommended
}

func academicRisk(snapshot Snapshot, weight float64) models.RiskFactor {
	if !snapshot.HasScores {
		return models.RiskFactor{Score: defaultAcademicRisk, Weight: weight, Evidence: []string{"no graded activity in window"}}
	}
	score := clamp(100-snapshot.AvgScore, 0, 100)
	return models.RiskFactor{
		Score:    Round2(score),
		Weight:   weight,
		Evidence: []string{fmt.Sprintf("average score %.1f", snapshot.AvgScore)},
	}
}

func engagementRisk(snapshot Snapshot, weight float64) models.RiskFactor {
	if !snapshot.HasEngagement {
		return models.RiskFactor{Score: defaultEngagementRisk, Weight: weight, Evidence: []string{"no engagement data in window"}}
	}
	score := clamp(100-snapshot.AvgEngagement, 0, 100)
	return models.RiskFactor{
		Score:    Round2(score),
		Weight:   weight,
		Evidence: []string{fmt.Sprintf("average engagement %.1f", snapshot.AvgEngagement)},
	}
}

func attendanceRisk(snapshot Snapshot, weight float64) models.RiskFactor {
	ratio := float64(snapshot.ActivityCount) / float64(ExpectedActivityCount) * 100
	score := clamp(100-ratio, 0, 100)
	return models.RiskFactor{
		Score:  Round2(score),
		Weight: weight,
		Evidence: []string{
			fmt.Sprintf("%d of %d expected activities", snapshot.ActivityCount, ExpectedActivityCount),
			fmt.Sprintf("%d active days", snapshot.ActiveDays),
		},
	}
}

func timeManagementRisk(snapshot Snapshot, weight float64) models.RiskFactor {
	if !snapshot.HasSessions {
		return models.RiskFactor{Score: defaultTimeMgmtRisk, Weight: weight, Evidence: []string{"no session data in window"}}
	}

	var score float64
	evidence := make([]string, 0, 2)
	if snapshot.AvgSessionMinutes < shortSessionMinutes {
		score += shortSessionPenalty
		evidence = append(evidence, fmt.Sprintf("short sessions (avg %.1f min)", snapshot.AvgSessionMinutes))
	}
	if snapshot.SessionCV > irregularCVThreshold {
		score += irregularPenalty
		evidence = append(evidence, fmt.Sprintf("irregular session length (cv %.2f)", snapshot.SessionCV))
	}

	return models.RiskFactor{Score: clamp(score, 0, 100), Weight: weight, Evidence: evidence}
}
