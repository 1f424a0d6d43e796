package dto

import (
	"time"

	"github.com/noah-isme/gema-analytics-api/internal/models"
)

// InterventionGenerateRequest asks for recommendations from a stored assessment or prediction.
type InterventionGenerateRequest struct {
	AssessmentID *uint `json:"assessment_id" validate:"required_without=PredictionID,omitempty,min=1"`
	PredictionID *uint `json:"prediction_id" validate:"required_without=AssessmentID,omitempty,min=1"`
}

// InterventionTransitionRequest moves an intervention to another status.
type InterventionTransitionRequest struct {
	Status             string     `json:"status" validate:"required,oneof=pending scheduled in_progress completed cancelled deferred"`
	ScheduledDate      *time.Time `json:"scheduled_date"`
	Outcome            string     `json:"outcome" validate:"omitempty,oneof=successful partially_successful unsuccessful inconclusive"`
	EffectivenessScore *float64   `json:"effectiveness_score" validate:"omitempty,gte=0,lte=100"`
	Notes              string     `json:"notes" validate:"omitempty,max=2000"`
}

// InterventionAssignRequest assigns an intervention to a staff member.
type InterventionAssignRequest struct {
	AssignedToID uint `json:"assigned_to_id" validate:"required"`
}

// InterventionGenerateResponse lists the recommendations produced or reused for a source record.
type InterventionGenerateResponse struct {
	Created int                                 `json:"created"`
	Reused  int                                 `json:"reused"`
	Items   []models.InterventionRecommendation `json:"items"`
}
