package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-analytics-api/internal/models"
)

// RiskLevelCount is the number of assessments at one level.
type RiskLevelCount struct {
	RiskLevel models.RiskLevel `json:"risk_level"`
	Total     int64            `json:"total"`
}

// RiskAssessmentRepository persists dropout risk assessments.
type RiskAssessmentRepository interface {
	Create(ctx context.Context, assessment *models.DropoutRiskAssessment) error
	Update(ctx context.Context, assessment *models.DropoutRiskAssessment) error
	GetByID(ctx context.Context, id uint) (models.DropoutRiskAssessment, error)
	FindForDay(ctx context.Context, studentID uint, courseID *uint, day string) (models.DropoutRiskAssessment, error)
	Latest(ctx context.Context, studentID uint, scope CourseScope) (models.DropoutRiskAssessment, error)
	RecentProbabilities(ctx context.Context, studentID uint, courseID *uint, before string, limit int) ([]float64, error)
	ListByLevelsSince(ctx context.Context, levels []models.RiskLevel, since time.Time) ([]models.DropoutRiskAssessment, error)
	CountByLevelSince(ctx context.Context, since time.Time) ([]RiskLevelCount, error)
}

type riskAssessmentRepository struct {
	db *gorm.DB
}

// NewRiskAssessmentRepository instantiates the repository.
func NewRiskAssessmentRepository(db *gorm.DB) RiskAssessmentRepository {
	return &riskAssessmentRepository{db: db}
}

func (r *riskAssessmentRepository) Create(ctx context.Context, assessment *models.DropoutRiskAssessment) error {
	return r.db.WithContext(ctx).Create(assessment).Error
}

func (r *riskAssessmentRepository) Update(ctx context.Context, assessment *models.DropoutRiskAssessment) error {
	return r.db.WithContext(ctx).Save(assessment).Error
}

func (r *riskAssessmentRepository) GetByID(ctx context.Context, id uint) (models.DropoutRiskAssessment, error) {
	var assessment models.DropoutRiskAssessment
	if err := r.db.WithContext(ctx).First(&assessment, id).Error; err != nil {
		return models.DropoutRiskAssessment{}, err
	}
	return assessment, nil
}

// FindForDay returns the assessment of a student/course on a UTC day key.
func (r *riskAssessmentRepository) FindForDay(ctx context.Context, studentID uint, courseID *uint, day string) (models.DropoutRiskAssessment, error) {
	query := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Where("assessment_day = ?", day)
	query = scopeCourse(query, courseID)

	var assessment models.DropoutRiskAssessment
	if err := query.Order("id DESC").First(&assessment).Error; err != nil {
		return models.DropoutRiskAssessment{}, err
	}
	return assessment, nil
}

func (r *riskAssessmentRepository) Latest(ctx context.Context, studentID uint, scope CourseScope) (models.DropoutRiskAssessment, error) {
	query := scope.apply(r.db.WithContext(ctx).Where("student_id = ?", studentID))

	var assessment models.DropoutRiskAssessment
	if err := query.Order("assessment_date DESC").Order("id DESC").First(&assessment).Error; err != nil {
		return models.DropoutRiskAssessment{}, err
	}
	return assessment, nil
}

// RecentProbabilities returns up to limit probabilities assessed before the given day, oldest first.
func (r *riskAssessmentRepository) RecentProbabilities(ctx context.Context, studentID uint, courseID *uint, before string, limit int) ([]float64, error) {
	query := r.db.WithContext(ctx).Model(&models.DropoutRiskAssessment{}).
		Where("student_id = ?", studentID).
		Where("assessment_day < ?", before)
	query = scopeCourse(query, courseID).Order("assessment_date DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var probabilities []float64
	if err := query.Pluck("risk_probability", &probabilities).Error; err != nil {
		return nil, err
	}

	for i, j := 0, len(probabilities)-1; i < j; i, j = i+1, j-1 {
		probabilities[i], probabilities[j] = probabilities[j], probabilities[i]
	}
	return probabilities, nil
}

func (r *riskAssessmentRepository) ListByLevelsSince(ctx context.Context, levels []models.RiskLevel, since time.Time) ([]models.DropoutRiskAssessment, error) {
	var assessments []models.DropoutRiskAssessment
	if err := r.db.WithContext(ctx).
		Where("risk_level IN ?", levels).
		Where("assessment_date >= ?", since).
		Order("risk_probability DESC").
		Order("id ASC").
		Find(&assessments).Error; err != nil {
		return nil, err
	}
	return assessments, nil
}

func (r *riskAssessmentRepository) CountByLevelSince(ctx context.Context, since time.Time) ([]RiskLevelCount, error) {
	var counts []RiskLevelCount
	if err := r.db.WithContext(ctx).Model(&models.DropoutRiskAssessment{}).
		Select("risk_level, COUNT(*) AS total").
		Where("assessment_date >= ?", since).
		Group("risk_level").
		Order("risk_level ASC").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	return counts, nil
}
