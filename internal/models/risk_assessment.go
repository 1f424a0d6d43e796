package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RiskFactor is one weighted sub-score of a dropout assessment. Higher scores are riskier.
type RiskFactor struct {
	Score    float64  `json:"score"`
	Weight   float64  `json:"weight"`
	Evidence []string `json:"evidence,omitempty"`
}

// RiskFactors groups the four sub-scores used by the dropout model.
type RiskFactors struct {
	AcademicPerformance RiskFactor `json:"academic_performance"`
	Engagement          RiskFactor `json:"engagement"`
	Attendance          RiskFactor `json:"attendance"`
	TimeManagement      RiskFactor `json:"time_management"`
}

// All returns the factors in a fixed order.
func (f RiskFactors) All() []RiskFactor {
	return []RiskFactor{f.AcademicPerformance, f.Engagement, f.Attendance, f.TimeManagement}
}

// ProtectiveFactors are signals that lower the practical dropout risk.
type ProtectiveFactors struct {
	StrongMotivation     bool `json:"strong_motivation"`
	AcademicStrength     bool `json:"academic_strength"`
	ConsistentAttendance bool `json:"consistent_attendance"`
	GoodTimeManagement   bool `json:"good_time_management"`
	PeerSupport          bool `json:"peer_support"`
}

// Count returns how many protective factors are present.
func (p ProtectiveFactors) Count() int {
	count := 0
	for _, present := range []bool{p.StrongMotivation, p.AcademicStrength, p.ConsistentAttendance, p.GoodTimeManagement, p.PeerSupport} {
		if present {
			count++
		}
	}
	return count
}

// TrendSummary is the output of the trend analyzer attached to stored records.
type TrendSummary struct {
	Direction  string  `json:"direction"`
	Slope      float64 `json:"slope"`
	Confidence float64 `json:"confidence"`
	DataPoints int     `json:"data_points"`
}

// DropoutRiskAssessment captures the dropout risk of a student at a point in time.
type DropoutRiskAssessment struct {
	ID                       uint                                   `gorm:"primaryKey" json:"id"`
	StudentID                uint                                   `gorm:"index:idx_assessment_day;not null" json:"student_id"`
	CourseID                 *uint                                  `gorm:"index:idx_assessment_day" json:"course_id,omitempty"`
	AssessmentDate           time.Time                              `gorm:"index;not null" json:"assessment_date"`
	AssessmentDay            string                                 `gorm:"size:10;index:idx_assessment_day;not null" json:"assessment_day"`
	RiskLevel                RiskLevel                              `gorm:"size:16;index;not null" json:"risk_level"`
	RiskProbability          float64                                `json:"risk_probability"`
	RiskFactors              datatypes.JSONType[RiskFactors]        `json:"risk_factors"`
	ProtectiveFactors        datatypes.JSONType[ProtectiveFactors]  `json:"protective_factors"`
	InterventionRequired     bool                                   `gorm:"index" json:"intervention_required"`
	RecommendedInterventions datatypes.JSONType[[]InterventionType] `json:"recommended_interventions"`
	InterventionPriority     int                                    `json:"intervention_priority"`
	TrendAnalysis            datatypes.JSONType[*TrendSummary]      `json:"trend_analysis"`
	Features                 datatypes.JSONType[PredictionFeatures] `json:"features"`
	StudentNotified          bool                                   `json:"student_notified"`
	InstructorNotified       bool                                   `json:"instructor_notified"`
	NotifiedAt               *time.Time                             `json:"notified_at,omitempty"`
	CreatedAt                time.Time                              `json:"created_at"`
	UpdatedAt                time.Time                              `json:"updated_at"`
	DeletedAt                gorm.DeletedAt                         `gorm:"index" json:"-"`
}

// AssessmentDayKey formats the idempotency day key for an assessment timestamp.
func AssessmentDayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
