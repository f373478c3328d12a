package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/tutordesk-api/internal/models"
)

// UserFilter narrows user listings.
type UserFilter struct {
	Role       models.Role
	Search     string
	ActiveOnly bool
	Page       int
	PageSize   int
}

// UserRepository persists back-office users.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	List(ctx context.Context, filter UserFilter) ([]models.User, int64, error)
	UpdateRoles(ctx context.Context, id uint, roles []models.Role) (models.User, error)
	SetActive(ctx context.Context, id uint, active bool) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]models.User, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.User{})

	if filter.Role != "" {
		query = query.Where("CAST(roles AS TEXT) LIKE ?", models.RoleFilterPattern(filter.Role))
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(username) LIKE ? OR LOWER(real_name) LIKE ?", like, like)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	if err := paginate(query, filter.Page, filter.PageSize).Order("id ASC").Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepository) UpdateRoles(ctx context.Context, id uint, roles []models.Role) (models.User, error) {
	var holder models.User
	holder.SetRoles(roles)

	update := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("roles", holder.Roles)
	if update.Error != nil {
		return models.User{}, update.Error
	}
	if update.RowsAffected == 0 {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *userRepository) SetActive(ctx context.Context, id uint, active bool) error {
	update := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_active", active)
	if update.Error != nil {
		return update.Error
	}
	if update.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
