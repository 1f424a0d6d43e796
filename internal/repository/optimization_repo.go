package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-analytics-api/internal/models"
)

// OptimizationFilter narrows optimization queries.
type OptimizationFilter struct {
	ResourceType string
	ResourceID   *uint
	Implemented  *bool
	Page         int
	PageSize     int
}

// OptimizationRepository persists resource optimizations.
type OptimizationRepository interface {
	Create(ctx context.Context, optimization *models.ResourceOptimization) error
	Update(ctx context.Context, optimization *models.ResourceOptimization) error
	GetByID(ctx context.Context, id uint) (models.ResourceOptimization, error)
	List(ctx context.Context, filter OptimizationFilter) ([]models.ResourceOptimization, int64, error)
}

type optimizationRepository struct {
	db *gorm.DB
}

// NewOptimizationRepository instantiates the repository.
func NewOptimizationRepository(db *gorm.DB) OptimizationRepository {
	return &optimizationRepository{db: db}
}

func (r *optimizationRepository) Create(ctx context.Context, optimization *models.ResourceOptimization) error {
	return r.db.WithContext(ctx).Create(optimization).Error
}

func (r *optimizationRepository) Update(ctx context.Context, optimization *models.ResourceOptimization) error {
	return r.db.WithContext(ctx).Save(optimization).Error
}

func (r *optimizationRepository) GetByID(ctx context.Context, id uint) (models.ResourceOptimization, error) {
	var optimization models.ResourceOptimization
	if err := r.db.WithContext(ctx).First(&optimization, id).Error; err != nil {
		return models.ResourceOptimization{}, err
	}
	return optimization, nil
}

func (r *optimizationRepository) List(ctx context.Context, filter OptimizationFilter) ([]models.ResourceOptimization, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ResourceOptimization{})

	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.ResourceID != nil {
		query = query.Where("resource_id = ?", *filter.ResourceID)
	}
	if filter.Implemented != nil {
		query = query.Where("is_implemented = ?", *filter.Implemented)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var optimizations []models.ResourceOptimization
	if err := paginate(query.Order("optimization_date DESC").Order("id DESC"), filter.Page, filter.PageSize).
		Find(&optimizations).Error; err != nil {
		return nil, 0, err
	}
	return optimizations, total, nil
}
