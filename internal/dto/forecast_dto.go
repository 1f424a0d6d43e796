package dto

import "time"

// ForecastCreateRequest asks for an outcome forecast.
type ForecastCreateRequest struct {
	StudentID   uint      `json:"student_id" validate:"required"`
	CourseID    *uint     `json:"course_id" validate:"omitempty,min=1"`
	OutcomeType string    `json:"outcome_type" validate:"required,oneof=course_completion skill_mastery grade_achievement certification"`
	TargetDate  time.Time `json:"target_date" validate:"required"`
}

// ForecastValidateRequest records the realized outcome of a forecast.
type ForecastValidateRequest struct {
	ActualOutcome        *float64   `json:"actual_outcome" validate:"required,gte=0,lte=100"`
	ActualCompletionDate *time.Time `json:"actual_completion_date"`
}
