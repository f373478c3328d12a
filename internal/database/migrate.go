package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/tutordesk-api/internal/models"
)

// activeTaskIndex allows at most one open assignment per student and teacher.
const activeTaskIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_task_active_pair
ON teaching_tasks (student_id, teacher_id)
WHERE status IN ('pending', 'in_progress')`

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Student{},
		&models.Feedback{},
		&models.TeachingTask{},
		&models.OpsTask{},
		&models.VisitRecord{},
		&models.ActivityLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := db.Exec(activeTaskIndex).Error; err != nil {
		return fmt.Errorf("failed to create active task index: %w", err)
	}

	return nil
}
