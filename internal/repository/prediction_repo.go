package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-analytics-api/internal/models"
)

// PredictionFilter narrows prediction queries.
type PredictionFilter struct {
	StudentID      *uint
	CourseID       *uint
	PredictionType string
	RiskLevel      string
	ModelVersion   string
	Validated      *bool
	Page           int
	PageSize       int
}

// PredictionRepository persists performance predictions.
type PredictionRepository interface {
	Create(ctx context.Context, prediction *models.PerformancePrediction) error
	Update(ctx context.Context, prediction *models.PerformancePrediction) error
	GetByID(ctx context.Context, id uint) (models.PerformancePrediction, error)
	List(ctx context.Context, filter PredictionFilter) ([]models.PerformancePrediction, int64, error)
	History(ctx context.Context, studentID uint, scope CourseScope, predictionType models.PredictionType, limit int) ([]models.PerformancePrediction, error)
	Latest(ctx context.Context, studentID uint, courseID *uint, predictionType models.PredictionType) (models.PerformancePrediction, error)
	ListDueForValidation(ctx context.Context, reference time.Time, limit int) ([]models.PerformancePrediction, error)
	ListValidatedSince(ctx context.Context, since time.Time) ([]models.PerformancePrediction, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

type predictionRepository struct {
	db *gorm.DB
}

// NewPredictionRepository instantiates the repository.
func NewPredictionRepository(db *gorm.DB) PredictionRepository {
	return &predictionRepository{db: db}
}

func (r *predictionRepository) Create(ctx context.Context, prediction *models.PerformancePrediction) error {
	return r.db.WithContext(ctx).Create(prediction).Error
}

func (r *predictionRepository) Update(ctx context.Context, prediction *models.PerformancePrediction) error {
	return r.db.WithContext(ctx).Save(prediction).Error
}

func (r *predictionRepository) GetByID(ctx context.Context, id uint) (models.PerformancePrediction, error) {
	var prediction models.PerformancePrediction
	if err := r.db.WithContext(ctx).First(&prediction, id).Error; err != nil {
		return models.PerformancePrediction{}, err
	}
	return prediction, nil
}

func (r *predictionRepository) List(ctx context.Context, filter PredictionFilter) ([]models.PerformancePrediction, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PerformancePrediction{})

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.CourseID != nil {
		query = query.Where("course_id = ?", *filter.CourseID)
	}
	if filter.PredictionType != "" {
		query = query.Where("prediction_type = ?", filter.PredictionType)
	}
	if filter.RiskLevel != "" {
		query = query.Where("risk_level = ?", filter.RiskLevel)
	}
	if filter.ModelVersion != "" {
		query = query.Where("model_version = ?", filter.ModelVersion)
	}
	if filter.Validated != nil {
		query = query.Where("is_validated = ?", *filter.Validated)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var predictions []models.PerformancePrediction
	if err := paginate(query.Order("prediction_date DESC").Order("id DESC"), filter.Page, filter.PageSize).
		Find(&predictions).Error; err != nil {
		return nil, 0, err
	}

	return predictions, total, nil
}

// History returns the most recent predictions of one type within scope, oldest first.
func (r *predictionRepository) History(ctx context.Context, studentID uint, scope CourseScope, predictionType models.PredictionType, limit int) ([]models.PerformancePrediction, error) {
	query := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Where("prediction_type = ?", predictionType)
	query = scope.apply(query).
		Order("prediction_date DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var predictions []models.PerformancePrediction
	if err := query.Find(&predictions).Error; err != nil {
		return nil, err
	}

	for i, j := 0, len(predictions)-1; i < j; i, j = i+1, j-1 {
		predictions[i], predictions[j] = predictions[j], predictions[i]
	}
	return predictions, nil
}

func (r *predictionRepository) Latest(ctx context.Context, studentID uint, courseID *uint, predictionType models.PredictionType) (models.PerformancePrediction, error) {
	query := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Where("prediction_type = ?", predictionType)
	query = scopeCourse(query, courseID)

	var prediction models.PerformancePrediction
	if err := query.Order("prediction_date DESC").Order("id DESC").First(&prediction).Error; err != nil {
		return models.PerformancePrediction{}, err
	}
	return prediction, nil
}

// ListDueForValidation returns unvalidated predictions whose target date has passed.
func (r *predictionRepository) ListDueForValidation(ctx context.Context, reference time.Time, limit int) ([]models.PerformancePrediction, error) {
	query := r.db.WithContext(ctx).
		Where("is_validated = ?", false).
		Where("target_date IS NOT NULL AND target_date <= ?", reference).
		Order("target_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var predictions []models.PerformancePrediction
	if err := query.Find(&predictions).Error; err != nil {
		return nil, err
	}
	return predictions, nil
}

func (r *predictionRepository) ListValidatedSince(ctx context.Context, since time.Time) ([]models.PerformancePrediction, error) {
	var predictions []models.PerformancePrediction
	if err := r.db.WithContext(ctx).
		Where("is_validated = ?", true).
		Where("validated_at >= ?", since).
		Order("validated_at ASC").
		Find(&predictions).Error; err != nil {
		return nil, err
	}
	return predictions, nil
}

func (r *predictionRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.PerformancePrediction{}).
		Where("prediction_date >= ?", since).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
