package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-analytics-api/internal/models"
)

// OutcomeRepository reads realized learning outcomes.
type OutcomeRepository interface {
	Latest(ctx context.Context, studentID uint, courseID *uint, metric string, since time.Time) (models.LearningOutcome, error)
	Create(ctx context.Context, outcome *models.LearningOutcome) error
}

type outcomeRepository struct {
	db *gorm.DB
}

// NewOutcomeRepository instantiates the repository.
func NewOutcomeRepository(db *gorm.DB) OutcomeRepository {
	return &outcomeRepository{db: db}
}

// Latest returns the newest outcome of a metric recorded since the cutoff.
func (r *outcomeRepository) Latest(ctx context.Context, studentID uint, courseID *uint, metric string, since time.Time) (models.LearningOutcome, error) {
	query := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Where("metric = ?", metric).
		Where("recorded_at >= ?", since)
	query = scopeCourse(query, courseID)

	var outcome models.LearningOutcome
	if err := query.Order("recorded_at DESC").First(&outcome).Error; err != nil {
		return models.LearningOutcome{}, err
	}
	return outcome, nil
}

func (r *outcomeRepository) Create(ctx context.Context, outcome *models.LearningOutcome) error {
	return r.db.WithContext(ctx).Create(outcome).Error
}
