package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/tutordesk-api/internal/models"
)

// StudentFilter defines filters for the operations student listing.
type StudentFilter struct {
	Search          string
	Status          string
	Group           string
	Sort            string
	Order           string
	Page            int
	PageSize        int
	IncludeArchived bool
}

var studentSortColumns = map[string]string{
	"created_at": "created_at",
	"progress":   "learning_progress",
	"study_time": "total_study_time",
	"name":       "student_name",
}

// StudentRepository provides access to student records.
type StudentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	GetByID(ctx context.Context, id uint) (models.Student, error)
	GetForUpdate(ctx context.Context, id uint) (models.Student, error)
	GetByBusinessID(ctx context.Context, businessID string) (models.Student, error)
	GetByExternalID(ctx context.Context, externalID string) (models.Student, error)
	ListByIDs(ctx context.Context, ids []uint) ([]models.Student, error)
	FindByNameOrAlias(ctx context.Context, name string) ([]models.Student, error)
	Search(ctx context.Context, term string, limit int) ([]models.Student, error)
	List(ctx context.Context, filter StudentFilter) ([]models.Student, int64, error)
	ListFlagged(ctx context.Context) ([]models.Student, error)
	ListStale(ctx context.Context, cutoff time.Time) ([]models.Student, error)
	SaveProgress(ctx context.Context, student *models.Student) error
	UpdateFields(ctx context.Context, id uint, updates map[string]interface{}) error
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

// Create inserts the student and assigns the S-prefixed business id from the row id when none was given.
func (r *studentRepository) Create(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		generate := strings.TrimSpace(student.BusinessID) == ""
		if generate {
			student.BusinessID = "tmp-" + uuid.NewString()
		}
		if err := tx.Create(student).Error; err != nil {
			return err
		}
		if !generate {
			return nil
		}

		student.BusinessID = models.FormatBusinessID(student.ID)
		return tx.Model(&models.Student{}).Where("id = ?", student.ID).Update("business_id", student.BusinessID).Error
	})
}

func (r *studentRepository) GetByID(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Preload("AssignedTeacher").First(&student, id).Error; err != nil {
		return models.Student{}, err
	}
	return student, nil
}

func (r *studentRepository) GetForUpdate(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&student).Error
	if err != nil {
		return models.Student{}, err
	}
	return student, nil
}

func (r *studentRepository) GetByBusinessID(ctx context.Context, businessID string) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Where("business_id = ?", businessID).First(&student).Error; err != nil {
		return models.Student{}, err
	}
	return student, nil
}

func (r *studentRepository) GetByExternalID(ctx context.Context, externalID string) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Where("external_user_id = ?", externalID).First(&student).Error; err != nil {
		return models.Student{}, err
	}
	return student, nil
}

func (r *studentRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.Student, error) {
	if len(ids) == 0 {
		return []models.Student{}, nil
	}
	var students []models.Student
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

func (r *studentRepository) FindByNameOrAlias(ctx context.Context, name string) ([]models.Student, error) {
	like := "%" + strings.ToLower(strings.TrimSpace(name)) + "%"
	var students []models.Student
	err := r.db.WithContext(ctx).
		Where("LOWER(student_name) LIKE ? OR LOWER(alias_name) LIKE ?", like, like).
		Order("id ASC").
		Find(&students).Error
	if err != nil {
		return nil, err
	}
	return students, nil
}

// Search matches name, alias and both identifiers, ranking exact hits ahead of partial ones.
func (r *studentRepository) Search(ctx context.Context, term string, limit int) ([]models.Student, error) {
	lowered := strings.ToLower(strings.TrimSpace(term))
	like := "%" + lowered + "%"

	query := r.db.WithContext(ctx).
		Where("status <> ?", models.StudentStatusArchived).
		Where("LOWER(student_name) LIKE ? OR LOWER(alias_name) LIKE ? OR LOWER(business_id) LIKE ? OR LOWER(external_user_id) LIKE ?", like, like, like, like).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "CASE WHEN LOWER(student_name) = ? OR LOWER(alias_name) = ? OR LOWER(business_id) = ? OR LOWER(external_user_id) = ? THEN 0 ELSE 1 END, id ASC",
			Vars:               []interface{}{lowered, lowered, lowered, lowered},
			WithoutParentheses: true,
		}})
	if limit > 0 {
		query = query.Limit(limit)
	}

	var students []models.Student
	if err := query.Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

func (r *studentRepository) List(ctx context.Context, filter StudentFilter) ([]models.Student, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Student{})
	if !filter.IncludeArchived && filter.Status != models.StudentStatusArchived {
		query = query.Where("status <> ?", models.StudentStatusArchived)
	}

	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(student_name) LIKE ? OR LOWER(alias_name) LIKE ? OR LOWER(business_id) LIKE ? OR LOWER(external_user_id) LIKE ?", like, like, like, like)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Group != "" {
		query = query.Where("CAST(groups_json AS TEXT) LIKE ?", models.GroupFilterPattern(filter.Group))
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := studentSortColumns[filter.Sort]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(filter.Order, "asc") {
		direction = "ASC"
	}

	var students []models.Student
	err := paginate(query, filter.Page, filter.PageSize).
		Preload("AssignedTeacher").
		Order(column + " " + direction).
		Order("id ASC").
		Find(&students).Error
	if err != nil {
		return nil, 0, err
	}
	return students, total, nil
}

func (r *studentRepository) ListFlagged(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	err := r.db.WithContext(ctx).
		Where("is_difficult = ?", true).
		Order("updated_at DESC").
		Find(&students).Error
	if err != nil {
		return nil, err
	}
	return students, nil
}

// ListStale returns unflagged joined or active students without feedback since cutoff.
func (r *studentRepository) ListStale(ctx context.Context, cutoff time.Time) ([]models.Student, error) {
	recent := r.db.Model(&models.Feedback{}).
		Select("1").
		Where("feedback.student_id = students.id").
		Where("feedback.reply_time >= ?", cutoff)

	var students []models.Student
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{models.StudentStatusJoined, models.StudentStatusActive}).
		Where("is_difficult = ?", false).
		Where("created_at < ?", cutoff).
		Where("NOT EXISTS (?)", recent).
		Order("id ASC").
		Find(&students).Error
	if err != nil {
		return nil, err
	}
	return students, nil
}

func (r *studentRepository) SaveProgress(ctx context.Context, student *models.Student) error {
	update := r.db.WithContext(ctx).Model(&models.Student{}).
		Where("id = ?", student.ID).
		Updates(map[string]interface{}{
			"progress_json":     student.Progress,
			"learning_progress": student.LearningProgress,
		})
	if update.Error != nil {
		return update.Error
	}
	if update.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *studentRepository) UpdateFields(ctx context.Context, id uint, updates map[string]interface{}) error {
	update := r.db.WithContext(ctx).Model(&models.Student{}).Where("id = ?", id).Updates(updates)
	if update.Error != nil {
		return update.Error
	}
	if update.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
