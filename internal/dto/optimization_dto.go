package dto

// OptimizationCreateRequest asks for an efficiency analysis of a resource.
type OptimizationCreateRequest struct {
	ResourceType string `json:"resource_type" validate:"required,oneof=course lesson instructor study_group learning_material"`
	ResourceID   uint   `json:"resource_id" validate:"required"`
}

// OptimizationImplementRequest marks an optimization as implemented.
type OptimizationImplementRequest struct {
	Notes string `json:"notes" validate:"omitempty,max=2000"`
}
