package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/tutordesk-api/internal/models"
)

// TaskFilter narrows the researcher task history.
type TaskFilter struct {
	TeacherID    *uint
	ResearcherID *uint
	StudentID    *uint
	Status       string
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}

// TeacherTaskStats aggregates assignment counts for one teacher.
type TeacherTaskStats struct {
	TeacherID        uint  `json:"teacher_id"`
	Total            int64 `json:"total"`
	Pending          int64 `json:"pending"`
	InProgress       int64 `json:"in_progress"`
	Completed        int64 `json:"completed"`
	Cancelled        int64 `json:"cancelled"`
	DistinctStudents int64 `json:"distinct_students"`
}

// TeachingTaskRepository persists researcher assignments.
type TeachingTaskRepository interface {
	Create(ctx context.Context, task *models.TeachingTask) error
	GetByTaskID(ctx context.Context, taskID string) (models.TeachingTask, error)
	FindActive(ctx context.Context, studentID, teacherID uint) (models.TeachingTask, error)
	Transition(ctx context.Context, taskID string, from []string, to string) (int64, error)
	CompleteActive(ctx context.Context, studentID, teacherID uint, at time.Time) (int64, error)
	CancelActive(ctx context.Context, teacherID uint, taskIDs []string) (int64, error)
	CancelActiveByStudents(ctx context.Context, teacherID uint, studentIDs []uint) (int64, error)
	Delete(ctx context.Context, taskID string) (int64, error)
	ListActiveForTeacher(ctx context.Context, teacherID uint) ([]models.TeachingTask, error)
	History(ctx context.Context, filter TaskFilter) ([]models.TeachingTask, int64, error)
	StatsByTeacher(ctx context.Context) ([]TeacherTaskStats, error)
}

type teachingTaskRepository struct {
	db *gorm.DB
}

// NewTeachingTaskRepository constructs a teaching task repository.
func NewTeachingTaskRepository(db *gorm.DB) TeachingTaskRepository {
	return &teachingTaskRepository{db: db}
}

// Create runs in its own savepoint so a unique violation leaves an enclosing transaction usable.
func (r *teachingTaskRepository) Create(ctx context.Context, task *models.TeachingTask) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(task).Error
	})
}

func (r *teachingTaskRepository) GetByTaskID(ctx context.Context, taskID string) (models.TeachingTask, error) {
	var task models.TeachingTask
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&task).Error; err != nil {
		return models.TeachingTask{}, err
	}
	return task, nil
}

func (r *teachingTaskRepository) FindActive(ctx context.Context, studentID, teacherID uint) (models.TeachingTask, error) {
	var task models.TeachingTask
	err := r.db.WithContext(ctx).
		Preload("Researcher").
		Where("student_id = ? AND teacher_id = ?", studentID, teacherID).
		Where("status IN ?", models.ActiveTaskStatuses).
		Order("assigned_at DESC").
		First(&task).Error
	if err != nil {
		return models.TeachingTask{}, err
	}
	return task, nil
}

// Transition moves a task to status to only when its current status is one of from.
func (r *teachingTaskRepository) Transition(ctx context.Context, taskID string, from []string, to string) (int64, error) {
	update := r.db.WithContext(ctx).Model(&models.TeachingTask{}).
		Where("task_id = ?", taskID).
		Where("status IN ?", from).
		Update("status", to)
	return update.RowsAffected, update.Error
}

func (r *teachingTaskRepository) CompleteActive(ctx context.Context, studentID, teacherID uint, at time.Time) (int64, error) {
	update := r.db.WithContext(ctx).Model(&models.TeachingTask{}).
		Where("student_id = ? AND teacher_id = ?", studentID, teacherID).
		Where("status IN ?", models.ActiveTaskStatuses).
		Updates(map[string]interface{}{
			"status":       models.TaskStatusCompleted,
			"completed_at": at,
		})
	return update.RowsAffected, update.Error
}

func (r *teachingTaskRepository) CancelActive(ctx context.Context, teacherID uint, taskIDs []string) (int64, error) {
	if len(taskIDs) == 0 {
		return 0, nil
	}
	update := r.db.WithContext(ctx).Model(&models.TeachingTask{}).
		Where("teacher_id = ?", teacherID).
		Where("task_id IN ?", taskIDs).
		Where("status IN ?", models.ActiveTaskStatuses).
		Update("status", models.TaskStatusCancelled)
	return update.RowsAffected, update.Error
}

func (r *teachingTaskRepository) CancelActiveByStudents(ctx context.Context, teacherID uint, studentIDs []uint) (int64, error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}
	update := r.db.WithContext(ctx).Model(&models.TeachingTask{}).
		Where("teacher_id = ?", teacherID).
		Where("student_id IN ?", studentIDs).
		Where("status IN ?", models.ActiveTaskStatuses).
		Update("status", models.TaskStatusCancelled)
	return update.RowsAffected, update.Error
}

func (r *teachingTaskRepository) Delete(ctx context.Context, taskID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("task_id = ?", taskID).Delete(&models.TeachingTask{})
	return result.RowsAffected, result.Error
}

func (r *teachingTaskRepository) ListActiveForTeacher(ctx context.Context, teacherID uint) ([]models.TeachingTask, error) {
	var tasks []models.TeachingTask
	err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("Researcher").
		Where("teacher_id = ?", teacherID).
		Where("status IN ?", models.ActiveTaskStatuses).
		Order("assigned_at DESC").
		Order("id DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *teachingTaskRepository) History(ctx context.Context, filter TaskFilter) ([]models.TeachingTask, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.TeachingTask{})

	if filter.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filter.TeacherID)
	}
	if filter.ResearcherID != nil {
		query = query.Where("researcher_id = ?", *filter.ResearcherID)
	}
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		query = query.Where("assigned_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("assigned_at < ?", *filter.To)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tasks []models.TeachingTask
	err := paginate(query, filter.Page, filter.PageSize).
		Preload("Student").
		Preload("Teacher").
		Preload("Researcher").
		Order("assigned_at DESC").
		Order("id DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (r *teachingTaskRepository) StatsByTeacher(ctx context.Context) ([]TeacherTaskStats, error) {
	var stats []TeacherTaskStats
	err := r.db.WithContext(ctx).Model(&models.TeachingTask{}).
		Select(`teacher_id,
			COUNT(*) AS total,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS pending,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS in_progress,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS completed,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS cancelled,
			COUNT(DISTINCT student_id) AS distinct_students`,
			models.TaskStatusPending, models.TaskStatusInProgress, models.TaskStatusCompleted, models.TaskStatusCancelled).
		Group("teacher_id").
		Order("teacher_id ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}
