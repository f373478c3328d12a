package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/tutordesk-api/internal/dto"
	"github.com/noah-isme/tutordesk-api/internal/models"
	"github.com/noah-isme/tutordesk-api/internal/repository"
)

// UserService administers back-office accounts and resolves request actors.
type UserService interface {
	Create(ctx context.Context, actor Actor, req dto.UserCreateRequest) (dto.UserResponse, error)
	UpdateRoles(ctx context.Context, actor Actor, id uint, req dto.UserRolesRequest) (dto.UserResponse, error)
	Deactivate(ctx context.Context, actor Actor, id uint) error
	List(ctx context.Context, actor Actor, req dto.UserListRequest) (dto.UserListResponse, error)
	ResolveActor(ctx context.Context, id uint) (Actor, error)
	EnsureAdmin(ctx context.Context, username string) (bool, error)
}

type userService struct {
	repo      repository.UserRepository
	validator *validator.Validate
	effects   effects
	logger    zerolog.Logger
}

// NewUserService constructs the user service.
func NewUserService(repo repository.UserRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) UserService {
	logger = logger.With().Str("component", "user_service").Logger()
	return &userService{
		repo:      repo,
		validator: validate,
		effects:   effects{activity: activity, logger: logger},
		logger:    logger,
	}
}

func (s *userService) Create(ctx context.Context, actor Actor, req dto.UserCreateRequest) (dto.UserResponse, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return dto.UserResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}

	roles, err := models.NormalizeRoles(req.Roles)
	if err != nil {
		return dto.UserResponse{}, validationError("%v", err)
	}
	if len(roles) == 0 {
		return dto.UserResponse{}, ErrEmptyRoles
	}

	user := models.User{
		Username: strings.TrimSpace(req.Username),
		RealName: cleanText(req.RealName),
		Phone:    strings.TrimSpace(req.Phone),
		IsActive: true,
	}
	user.SetRoles(roles)

	if err := s.repo.Create(ctx, &user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.UserResponse{}, ErrDuplicateUser
		}
		return dto.UserResponse{}, err
	}

	s.effects.record(ctx, actor, string(models.RoleAdmin), "user.created", "user", uintPtr(user.ID), map[string]interface{}{
		"username": user.Username,
		"roles":    req.Roles,
		"phone":    user.Phone,
	})
	return dto.NewUserResponse(user), nil
}

func (s *userService) UpdateRoles(ctx context.Context, actor Actor, id uint, req dto.UserRolesRequest) (dto.UserResponse, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return dto.UserResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}

	roles, err := models.NormalizeRoles(req.Roles)
	if err != nil {
		return dto.UserResponse{}, validationError("%v", err)
	}
	if len(roles) == 0 {
		return dto.UserResponse{}, ErrEmptyRoles
	}

	user, err := s.repo.UpdateRoles(ctx, id, roles)
	if err != nil {
		return dto.UserResponse{}, notFound(err, ErrUserNotFound)
	}

	s.effects.record(ctx, actor, string(models.RoleAdmin), "user.roles_updated", "user", uintPtr(user.ID), map[string]interface{}{"roles": req.Roles})
	return dto.NewUserResponse(user), nil
}

func (s *userService) Deactivate(ctx context.Context, actor Actor, id uint) error {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return err
	}
	if id == actor.ID {
		return validationError("admins cannot deactivate themselves")
	}

	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return notFound(err, ErrUserNotFound)
	}

	s.effects.record(ctx, actor, string(models.RoleAdmin), "user.deactivated", "user", uintPtr(id), nil)
	return nil
}

func (s *userService) List(ctx context.Context, actor Actor, req dto.UserListRequest) (dto.UserListResponse, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return dto.UserListResponse{}, err
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)
	filter := repository.UserFilter{Search: strings.TrimSpace(req.Search), Page: page, PageSize: pageSize}
	if role := strings.TrimSpace(req.Role); role != "" {
		parsed, err := models.ParseRole(role)
		if err != nil {
			return dto.UserListResponse{}, validationError("%v", err)
		}
		filter.Role = parsed
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.UserListResponse{}, err
	}

	items := make([]dto.UserResponse, 0, len(users))
	for _, user := range users {
		items = append(items, dto.NewUserResponse(user))
	}
	return dto.UserListResponse{Items: items, Pagination: dto.NewPaginationMeta(page, pageSize, total)}, nil
}

// ResolveActor loads the user behind a verified token. Deactivated users and users without
// roles cannot act.
func (s *userService) ResolveActor(ctx context.Context, id uint) (Actor, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Actor{}, notFound(err, ErrUserNotFound)
	}
	if !user.IsActive {
		return Actor{}, ErrInactiveUser
	}
	actor := NewActor(user)
	if len(actor.Roles) == 0 {
		return Actor{}, ErrEmptyRoles
	}
	return actor, nil
}

// EnsureAdmin creates an active admin account named username when none exists.
// It reports whether an account was created.
func (s *userService) EnsureAdmin(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, nil
	}

	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return false, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	user := models.User{Username: username, RealName: username, IsActive: true}
	user.SetRoles([]models.Role{models.RoleAdmin})
	if err := s.repo.Create(ctx, &user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}

	s.effects.record(ctx, SystemActor(), "system", "user.bootstrapped", "user", uintPtr(user.ID), map[string]interface{}{"username": username})
	s.logger.Info().Uint("user_id", user.ID).Str("username", username).Msg("bootstrap admin created")
	return true, nil
}
