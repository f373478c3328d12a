package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/tutordesk-api/internal/models"
)

// VisitFilter narrows visit record listings.
type VisitFilter struct {
	StudentID *uint
	Status    string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// VisitRecordRepository persists operations contact history.
type VisitRecordRepository interface {
	Create(ctx context.Context, record *models.VisitRecord) error
	List(ctx context.Context, filter VisitFilter) ([]models.VisitRecord, int64, error)
	CountForStudent(ctx context.Context, studentID uint) (int64, error)
}

type visitRecordRepository struct {
	db *gorm.DB
}

// NewVisitRecordRepository constructs a visit record repository.
func NewVisitRecordRepository(db *gorm.DB) VisitRecordRepository {
	return &visitRecordRepository{db: db}
}

func (r *visitRecordRepository) Create(ctx context.Context, record *models.VisitRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *visitRecordRepository) List(ctx context.Context, filter VisitFilter) ([]models.VisitRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.VisitRecord{})

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.Status != "" {
		query = query.Where("visit_status = ?", filter.Status)
	}
	if filter.From != nil {
		query = query.Where("visit_time >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("visit_time < ?", *filter.To)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []models.VisitRecord
	if err := paginate(query, filter.Page, filter.PageSize).Order("visit_time DESC").Order("id DESC").Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *visitRecordRepository) CountForStudent(ctx context.Context, studentID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.VisitRecord{}).Where("student_id = ?", studentID).Count(&count).Error
	return count, err
}
