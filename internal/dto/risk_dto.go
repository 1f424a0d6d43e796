package dto

// RiskAssessmentRequest asks for a dropout risk assessment.
type RiskAssessmentRequest struct {
	StudentID uint  `json:"student_id" validate:"required"`
	CourseID  *uint `json:"course_id" validate:"omitempty,min=1"`
}
