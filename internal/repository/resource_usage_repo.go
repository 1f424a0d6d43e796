package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-analytics-api/internal/models"
)

// ResourceRef identifies a resource with usage samples.
type ResourceRef struct {
	ResourceType models.ResourceType `json:"resource_type"`
	ResourceID   uint                `json:"resource_id"`
}

// ResourceUsageRepository reads resource utilization samples.
type ResourceUsageRepository interface {
	ListSamples(ctx context.Context, resourceType models.ResourceType, resourceID uint, from, to time.Time) ([]models.ResourceUsageSample, error)
	ActiveResources(ctx context.Context, since time.Time) ([]ResourceRef, error)
}

type resourceUsageRepository struct {
	db *gorm.DB
}

// NewResourceUsageRepository instantiates the repository.
func NewResourceUsageRepository(db *gorm.DB) ResourceUsageRepository {
	return &resourceUsageRepository{db: db}
}

func (r *resourceUsageRepository) ListSamples(ctx context.Context, resourceType models.ResourceType, resourceID uint, from, to time.Time) ([]models.ResourceUsageSample, error) {
	var samples []models.ResourceUsageSample
	if err := r.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Where("sampled_at >= ? AND sampled_at <= ?", from, to).
		Order("sampled_at ASC").
		Find(&samples).Error; err != nil {
		return nil, err
	}
	return samples, nil
}

func (r *resourceUsageRepository) ActiveResources(ctx context.Context, since time.Time) ([]ResourceRef, error) {
	var refs []ResourceRef
	if err := r.db.WithContext(ctx).Model(&models.ResourceUsageSample{}).
		Distinct("resource_type", "resource_id").
		Where("sampled_at >= ?", since).
		Order("resource_type ASC").
		Order("resource_id ASC").
		Scan(&refs).Error; err != nil {
		return nil, err
	}
	return refs, nil
}
