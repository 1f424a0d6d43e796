package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-analytics-api/internal/models"
)

// ForecastFilter narrows forecast queries.
type ForecastFilter struct {
	StudentID   *uint
	CourseID    *uint
	OutcomeType string
	Realized    *bool
	Page        int
	PageSize    int
}

// ForecastRepository persists learning outcome forecasts.
type ForecastRepository interface {
	Create(ctx context.Context, forecast *models.LearningOutcomeForecast) error
	Update(ctx context.Context, forecast *models.LearningOutcomeForecast) error
	GetByID(ctx context.Context, id uint) (models.LearningOutcomeForecast, error)
	List(ctx context.Context, filter ForecastFilter) ([]models.LearningOutcomeForecast, int64, error)
	ListDue(ctx context.Context, reference time.Time, limit int) ([]models.LearningOutcomeForecast, error)
	ListRealizedSince(ctx context.Context, since time.Time) ([]models.LearningOutcomeForecast, error)
}

type forecastRepository struct {
	db *gorm.DB
}

// NewForecastRepository instantiates the repository.
func NewForecastRepository(db *gorm.DB) ForecastRepository {
	return &forecastRepository{db: db}
}

func (r *forecastRepository) Create(ctx context.Context, forecast *models.LearningOutcomeForecast) error {
	return r.db.WithContext(ctx).Create(forecast).Error
}

func (r *forecastRepository) Update(ctx context.Context, forecast *models.LearningOutcomeForecast) error {
	return r.db.WithContext(ctx).Save(forecast).Error
}

func (r *forecastRepository) GetByID(ctx context.Context, id uint) (models.LearningOutcomeForecast, error) {
	var forecast models.LearningOutcomeForecast
	if err := r.db.WithContext(ctx).First(&forecast, id).Error; err != nil {
		return models.LearningOutcomeForecast{}, err
	}
	return forecast, nil
}

func (r *forecastRepository) List(ctx context.Context, filter ForecastFilter) ([]models.LearningOutcomeForecast, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.LearningOutcomeForecast{})

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.CourseID != nil {
		query = query.Where("course_id = ?", *filter.CourseID)
	}
	if filter.OutcomeType != "" {
		query = query.Where("outcome_type = ?", filter.OutcomeType)
	}
	if filter.Realized != nil {
		query = query.Where("is_realized = ?", *filter.Realized)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var forecasts []models.LearningOutcomeForecast
	if err := paginate(query.Order("forecast_date DESC").Order("id DESC"), filter.Page, filter.PageSize).
		Find(&forecasts).Error; err != nil {
		return nil, 0, err
	}
	return forecasts, total, nil
}

// ListDue returns unrealized forecasts whose target date has passed.
func (r *forecastRepository) ListDue(ctx context.Context, reference time.Time, limit int) ([]models.LearningOutcomeForecast, error) {
	query := r.db.WithContext(ctx).
		Where("is_realized = ?", false).
		Where("target_date <= ?", reference).
		Order("target_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var forecasts []models.LearningOutcomeForecast
	if err := query.Find(&forecasts).Error; err != nil {
		return nil, err
	}
	return forecasts, nil
}

func (r *forecastRepository) ListRealizedSince(ctx context.Context, since time.Time) ([]models.LearningOutcomeForecast, error) {
	var forecasts []models.LearningOutcomeForecast
	if err := r.db.WithContext(ctx).
		Where("is_realized = ?", true).
		Where("updated_at >= ?", since).
		Order("updated_at ASC").
		Find(&forecasts).Error; err != nil {
		return nil, err
	}
	return forecasts, nil
}
