package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UsageSnapshot summarizes how a resource was used over the sampling window.
type UsageSnapshot struct {
	UtilizationRate   float64   `json:"utilization_rate"`
	PeakHours         []int     `json:"peak_hours"`
	AvgSessionMinutes float64   `json:"avg_session_minutes"`
	Satisfaction      float64   `json:"satisfaction"`
	Bottlenecks       []string  `json:"bottlenecks"`
	ActiveSessions    int       `json:"active_sessions"`
	SampleCount       int       `json:"sample_count"`
	CapturedAt        time.Time `json:"captured_at"`
}

// OptimizationAction is one ranked recommendation of a resource optimization.
type OptimizationAction struct {
	Rank           int      `json:"rank"`
	Action         string   `json:"action"`
	Description    string   `json:"description"`
	Impact         string   `json:"impact"`
	EfficiencyGain float64  `json:"efficiency_gain"`
	Effort         int      `json:"effort"`
	Timeline       string   `json:"timeline"`
	Dependencies   []string `json:"dependencies,omitempty"`
}

// OptimizationOutcomes is what the optimizer expects to happen after implementation.
type OptimizationOutcomes struct {
	EfficiencyGain       float64 `json:"efficiency_gain"`
	ImplementationCost   float64 `json:"implementation_cost"`
	ExpectedUtilization  float64 `json:"expected_utilization"`
	ExpectedSatisfaction float64 `json:"expected_satisfaction"`
}

// ImplementationResults is recorded when an implemented optimization is validated.
type ImplementationResults struct {
	SuccessRate float64       `json:"success_rate"`
	Issues      []string      `json:"issues,omitempty"`
	Benefits    []string      `json:"benefits,omitempty"`
	UsageAfter  UsageSnapshot `json:"usage_after"`
	ValidatedAt time.Time     `json:"validated_at"`
}

// ResourceOptimization is an efficiency analysis of a learning resource.
type ResourceOptimization struct {
	ID                    uint                                       `gorm:"primaryKey" json:"id"`
	ResourceType          ResourceType                               `gorm:"size:32;index:idx_optimization_resource;not null" json:"resource_type"`
	ResourceID            uint                                       `gorm:"index:idx_optimization_resource;not null" json:"resource_id"`
	OptimizationDate      time.Time                                  `gorm:"not null" json:"optimization_date"`
	CurrentEfficiency     float64                                    `json:"current_efficiency"`
	PredictedEfficiency   float64                                    `json:"predicted_efficiency"`
	CurrentUsage          datatypes.JSONType[UsageSnapshot]          `json:"current_usage"`
	Recommendations       datatypes.JSONType[[]OptimizationAction]   `json:"recommendations"`
	PredictedOutcomes     datatypes.JSONType[*OptimizationOutcomes]  `json:"predicted_outcomes"`
	IsImplemented         bool                                       `gorm:"not null;default:false" json:"is_implemented"`
	ImplementedAt         *time.Time                                 `json:"implemented_at,omitempty"`
	ImplementationNotes   string                                     `gorm:"type:text" json:"implementation_notes,omitempty"`
	ActualEfficiency      *float64                                   `json:"actual_efficiency,omitempty"`
	ImplementationResults datatypes.JSONType[*ImplementationResults] `json:"implementation_results"`
	CreatedAt             time.Time                                  `json:"created_at"`
	UpdatedAt             time.Time                                  `json:"updated_at"`
	DeletedAt             gorm.DeletedAt                             `gorm:"index" json:"-"`
}
