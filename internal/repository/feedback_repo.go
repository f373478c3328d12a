package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/tutordesk-api/internal/models"
)

// PushColumn identifies one of the two at-most-once note columns on feedback.
type PushColumn string

const (
	PushResearch   PushColumn = "push_research"
	PushOperations PushColumn = "push_ops"
)

// FeedbackSelector picks a teacher's feedback rows either by id or by student.
type FeedbackSelector struct {
	TeacherID  uint
	IDs        []uint
	StudentIDs []uint
}

// FeedbackFilter narrows the monitoring listing.
type FeedbackFilter struct {
	TeacherID *uint
	StudentID *uint
	Group     string
	Keyword   string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// FeedbackRepository persists teacher feedback.
type FeedbackRepository interface {
	Create(ctx context.Context, feedback *models.Feedback) error
	GetByID(ctx context.Context, id uint) (models.Feedback, error)
	ListByTeacher(ctx context.Context, teacherID uint, page, pageSize int) ([]models.Feedback, int64, error)
	ListOwned(ctx context.Context, selector FeedbackSelector) ([]models.Feedback, error)
	MarkPushed(ctx context.Context, selector FeedbackSelector, column PushColumn, note string) (int64, error)
	Monitor(ctx context.Context, filter FeedbackFilter) ([]models.Feedback, int64, error)
	LatestForStudents(ctx context.Context, studentIDs []uint) (map[uint]models.Feedback, error)
	RecentForStudent(ctx context.Context, studentID uint, limit int) ([]models.Feedback, error)
}

type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository constructs a feedback repository.
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) Create(ctx context.Context, feedback *models.Feedback) error {
	return r.db.WithContext(ctx).Create(feedback).Error
}

func (r *feedbackRepository) GetByID(ctx context.Context, id uint) (models.Feedback, error) {
	var feedback models.Feedback
	if err := r.db.WithContext(ctx).First(&feedback, id).Error; err != nil {
		return models.Feedback{}, err
	}
	return feedback, nil
}

func (r *feedbackRepository) ListByTeacher(ctx context.Context, teacherID uint, page, pageSize int) ([]models.Feedback, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Feedback{}).Where("teacher_id = ?", teacherID)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Feedback
	if err := paginate(query, page, pageSize).Order("reply_time DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *feedbackRepository) selectOwned(ctx context.Context, selector FeedbackSelector) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Feedback{}).Where("teacher_id = ?", selector.TeacherID)
	switch {
	case len(selector.IDs) > 0 && len(selector.StudentIDs) > 0:
		query = query.Where("id IN ? OR student_id IN ?", selector.IDs, selector.StudentIDs)
	case len(selector.IDs) > 0:
		query = query.Where("id IN ?", selector.IDs)
	case len(selector.StudentIDs) > 0:
		query = query.Where("student_id IN ?", selector.StudentIDs)
	default:
		query = query.Where("1 = 0")
	}
	return query
}

func (r *feedbackRepository) ListOwned(ctx context.Context, selector FeedbackSelector) ([]models.Feedback, error) {
	var rows []models.Feedback
	if err := r.selectOwned(ctx, selector).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkPushed sets the column only on rows where it is still empty and returns how many rows changed.
func (r *feedbackRepository) MarkPushed(ctx context.Context, selector FeedbackSelector, column PushColumn, note string) (int64, error) {
	col := string(column)
	update := r.selectOwned(ctx, selector).
		Where("("+col+" = '' OR "+col+" IS NULL)").
		Update(col, note)
	if update.Error != nil {
		return 0, update.Error
	}
	return update.RowsAffected, nil
}

func (r *feedbackRepository) Monitor(ctx context.Context, filter FeedbackFilter) ([]models.Feedback, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Feedback{})

	if filter.TeacherID != nil {
		query = query.Where("feedback.teacher_id = ?", *filter.TeacherID)
	}
	if filter.StudentID != nil {
		query = query.Where("feedback.student_id = ?", *filter.StudentID)
	}
	if filter.Group != "" {
		query = query.Joins("JOIN students ON students.id = feedback.student_id").
			Where("CAST(students.groups_json AS TEXT) LIKE ?", models.GroupFilterPattern(filter.Group))
	}
	if filter.Keyword != "" {
		like := "%" + strings.ToLower(filter.Keyword) + "%"
		query = query.Where("LOWER(feedback.teacher_comment) LIKE ? OR LOWER(feedback.student_name) LIKE ? OR LOWER(feedback.student_code) LIKE ?", like, like, like)
	}
	if filter.From != nil {
		query = query.Where("feedback.reply_time >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("feedback.reply_time < ?", *filter.To)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Feedback
	err := paginate(query, filter.Page, filter.PageSize).
		Order("feedback.reply_time DESC").
		Order("feedback.id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *feedbackRepository) LatestForStudents(ctx context.Context, studentIDs []uint) (map[uint]models.Feedback, error) {
	latest := make(map[uint]models.Feedback, len(studentIDs))
	if len(studentIDs) == 0 {
		return latest, nil
	}

	newest := r.db.Model(&models.Feedback{}).
		Select("MAX(id)").
		Where("student_id IN ?", studentIDs).
		Group("student_id")

	var rows []models.Feedback
	if err := r.db.WithContext(ctx).Where("id IN (?)", newest).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		latest[row.StudentID] = row
	}
	return latest, nil
}

func (r *feedbackRepository) RecentForStudent(ctx context.Context, studentID uint, limit int) ([]models.Feedback, error) {
	var rows []models.Feedback
	query := r.db.WithContext(ctx).Where("student_id = ?", studentID).Order("reply_time DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
