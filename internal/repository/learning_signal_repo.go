package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-analytics-api/internal/models"
)

// LearningSignalRepository reads the activity rows written by the learning platform.
type LearningSignalRepository interface {
	ListActivities(ctx context.Context, studentID uint, courseID *uint, from, to time.Time) ([]models.LearningActivity, error)
	ActiveTargets(ctx context.Context, since time.Time) ([]StudentCourse, error)
}

type learningSignalRepository struct {
	db *gorm.DB
}

// NewLearningSignalRepository instantiates the read-only repository.
func NewLearningSignalRepository(db *gorm.DB) LearningSignalRepository {
	return &learningSignalRepository{db: db}
}

// ListActivities returns the student's activity in [from, to]. A nil course spans every course.
func (r *learningSignalRepository) ListActivities(ctx context.Context, studentID uint, courseID *uint, from, to time.Time) ([]models.LearningActivity, error) {
	query := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Where("occurred_at >= ? AND occurred_at <= ?", from, to)
	if courseID != nil {
		query = query.Where("course_id = ?", *courseID)
	}

	var activities []models.LearningActivity
	if err := query.Order("occurred_at ASC").Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}

// ActiveTargets lists the distinct student/course pairs with activity since the cutoff.
func (r *learningSignalRepository) ActiveTargets(ctx context.Context, since time.Time) ([]StudentCourse, error) {
	var targets []StudentCourse
	if err := r.db.WithContext(ctx).Model(&models.LearningActivity{}).
		Distinct("student_id", "course_id").
		Where("occurred_at >= ?", since).
		Order("student_id ASC").
		Order("course_id ASC").
		Scan(&targets).Error; err != nil {
		return nil, err
	}
	return targets, nil
}
