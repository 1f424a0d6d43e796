package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-analytics-api/internal/models"
)

// Migrate creates or updates the analytics tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.LearningActivity{},
		&models.LearningOutcome{},
		&models.ResourceUsageSample{},
		&models.PerformancePrediction{},
		&models.DropoutRiskAssessment{},
		&models.LearningOutcomeForecast{},
		&models.InterventionRecommendation{},
		&models.ResourceOptimization{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
