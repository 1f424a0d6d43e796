package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-analytics-api/internal/models"
)

// InterventionFilter narrows intervention queries.
type InterventionFilter struct {
	StudentID        *uint
	CourseID         *uint
	AssignedToID     *uint
	InterventionType string
	Statuses         []models.InterventionStatus
	Page             int
	PageSize         int
}

// InterventionStatusCount is the number of interventions in one status.
type InterventionStatusCount struct {
	Status models.InterventionStatus `json:"status"`
	Total  int64                     `json:"total"`
}

// InterventionRepository persists intervention recommendations.
type InterventionRepository interface {
	Create(ctx context.Context, intervention *models.InterventionRecommendation) error
	Update(ctx context.Context, intervention *models.InterventionRecommendation) error
	GetByID(ctx context.Context, id uint) (models.InterventionRecommendation, error)
	List(ctx context.Context, filter InterventionFilter) ([]models.InterventionRecommendation, int64, error)
	FindOpen(ctx context.Context, studentID uint, courseID *uint, interventionType models.InterventionType) (models.InterventionRecommendation, error)
	ListAutomatedPending(ctx context.Context, limit int) ([]models.InterventionRecommendation, error)
	ListReminderDue(ctx context.Context, before time.Time) ([]models.InterventionRecommendation, error)
	ListCompletedSince(ctx context.Context, since time.Time) ([]models.InterventionRecommendation, error)
	CountByStatus(ctx context.Context, filter InterventionFilter) ([]InterventionStatusCount, error)
}

type interventionRepository struct {
	db *gorm.DB
}

// NewInterventionRepository instantiates the repository.
func NewInterventionRepository(db *gorm.DB) InterventionRepository {
	return &interventionRepository{db: db}
}

func (r *interventionRepository) Create(ctx context.Context, intervention *models.InterventionRecommendation) error {
	return r.db.WithContext(ctx).Create(intervention).Error
}

func (r *interventionRepository) Update(ctx context.Context, intervention *models.InterventionRecommendation) error {
	return r.db.WithContext(ctx).Save(intervention).Error
}

func (r *interventionRepository) GetByID(ctx context.Context, id uint) (models.InterventionRecommendation, error) {
	var intervention models.InterventionRecommendation
	if err := r.db.WithContext(ctx).First(&intervention, id).Error; err != nil {
		return models.InterventionRecommendation{}, err
	}
	return intervention, nil
}

func (r *interventionRepository) applyFilter(query *gorm.DB, filter InterventionFilter) *gorm.DB {
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.CourseID != nil {
		query = query.Where("course_id = ?", *filter.CourseID)
	}
	if filter.AssignedToID != nil {
		query = query.Where("assigned_to_id = ?", *filter.AssignedToID)
	}
	if filter.InterventionType != "" {
		query = query.Where("intervention_type = ?", filter.InterventionType)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	return query
}

func (r *interventionRepository) List(ctx context.Context, filter InterventionFilter) ([]models.InterventionRecommendation, int64, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.InterventionRecommendation{}), filter)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var interventions []models.InterventionRecommendation
	if err := paginate(query.Order("priority DESC").Order("recommended_date ASC").Order("id ASC"), filter.Page, filter.PageSize).
		Find(&interventions).Error; err != nil {
		return nil, 0, err
	}
	return interventions, total, nil
}

// FindOpen returns an open recommendation of the given type for the student/course.
func (r *interventionRepository) FindOpen(ctx context.Context, studentID uint, courseID *uint, interventionType models.InterventionType) (models.InterventionRecommendation, error) {
	query := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Where("intervention_type = ?", interventionType).
		Where("status IN ?", models.OpenInterventionStatuses)
	query = scopeCourse(query, courseID)

	var intervention models.InterventionRecommendation
	if err := query.Order("id ASC").First(&intervention).Error; err != nil {
		return models.InterventionRecommendation{}, err
	}
	return intervention, nil
}

func (r *interventionRepository) ListAutomatedPending(ctx context.Context, limit int) ([]models.InterventionRecommendation, error) {
	query := r.db.WithContext(ctx).
		Where("automated = ?", true).
		Where("status = ?", models.InterventionStatusPending).
		Order("priority DESC").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var interventions []models.InterventionRecommendation
	if err := query.Find(&interventions).Error; err != nil {
		return nil, err
	}
	return interventions, nil
}

// ListReminderDue returns scheduled interventions starting before the cutoff that have no reminder yet.
func (r *interventionRepository) ListReminderDue(ctx context.Context, before time.Time) ([]models.InterventionRecommendation, error) {
	var interventions []models.InterventionRecommendation
	if err := r.db.WithContext(ctx).
		Where("status = ?", models.InterventionStatusScheduled).
		Where("scheduled_date IS NOT NULL AND scheduled_date <= ?", before).
		Where("reminder_sent_at IS NULL").
		Order("scheduled_date ASC").
		Find(&interventions).Error; err != nil {
		return nil, err
	}
	return interventions, nil
}

func (r *interventionRepository) ListCompletedSince(ctx context.Context, since time.Time) ([]models.InterventionRecommendation, error) {
	var interventions []models.InterventionRecommendation
	if err := r.db.WithContext(ctx).
		Where("status = ?", models.InterventionStatusCompleted).
		Where("completed_at >= ?", since).
		Order("completed_at ASC").
		Find(&interventions).Error; err != nil {
		return nil, err
	}
	return interventions, nil
}

func (r *interventionRepository) CountByStatus(ctx context.Context, filter InterventionFilter) ([]InterventionStatusCount, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.InterventionRecommendation{}), filter)

	var counts []InterventionStatusCount
	if err := query.Select("status, COUNT(*) AS total").
		Group("status").
		Order("status ASC").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	return counts, nil
}
