package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/tutordesk-api/internal/models"
)

// OpsTaskFilter narrows the operations follow-up queue.
type OpsTaskFilter struct {
	Status        string
	Source        string
	StudentID     *uint
	Search        string
	IncludeClosed bool
	Page          int
	PageSize      int
}

// OpsTaskRepository persists operations follow-up tasks.
type OpsTaskRepository interface {
	Create(ctx context.Context, task *models.OpsTask) error
	GetByTaskID(ctx context.Context, taskID string) (models.OpsTask, error)
	HasOpen(ctx context.Context, studentID uint) (bool, error)
	CountForStudent(ctx context.Context, studentID uint) (int64, error)
	List(ctx context.Context, filter OpsTaskFilter) ([]models.OpsTask, int64, error)
	UpdateStatus(ctx context.Context, id uint, status string, visited bool) error
}

type opsTaskRepository struct {
	db *gorm.DB
}

// NewOpsTaskRepository constructs an operations task repository.
func NewOpsTaskRepository(db *gorm.DB) OpsTaskRepository {
	return &opsTaskRepository{db: db}
}

func (r *opsTaskRepository) Create(ctx context.Context, task *models.OpsTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *opsTaskRepository) GetByTaskID(ctx context.Context, taskID string) (models.OpsTask, error) {
	var task models.OpsTask
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&task).Error; err != nil {
		return models.OpsTask{}, err
	}
	return task, nil
}

func (r *opsTaskRepository) HasOpen(ctx context.Context, studentID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OpsTask{}).
		Where("student_id = ?", studentID).
		Where("task_status IN ?", models.OpenOpsStatuses).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *opsTaskRepository) CountForStudent(ctx context.Context, studentID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OpsTask{}).Where("student_id = ?", studentID).Count(&count).Error
	return count, err
}

func (r *opsTaskRepository) List(ctx context.Context, filter OpsTaskFilter) ([]models.OpsTask, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.OpsTask{})

	switch {
	case filter.Status != "":
		query = query.Where("task_status = ?", filter.Status)
	case !filter.IncludeClosed:
		query = query.Where("task_status <> ?", models.OpsStatusClosed)
	}
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(student_name) LIKE ? OR LOWER(task_id) LIKE ?", like, like)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tasks []models.OpsTask
	if err := paginate(query, filter.Page, filter.PageSize).Order("created_at DESC").Order("id DESC").Find(&tasks).Error; err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// UpdateStatus sets the status and bumps the visit counter when a contact was logged.
func (r *opsTaskRepository) UpdateStatus(ctx context.Context, id uint, status string, visited bool) error {
	updates := map[string]interface{}{"task_status": status}
	if visited {
		updates["visit_count"] = gorm.Expr("visit_count + 1")
	}
	update := r.db.WithContext(ctx).Model(&models.OpsTask{}).Where("id = ?", id).Updates(updates)
	if update.Error != nil {
		return update.Error
	}
	if update.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
