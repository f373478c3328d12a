package dto

import (
	"math"
	"time"

	"github.com/noah-isme/tutordesk-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginationMeta derives page counts from the total row count.
func NewPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	if page <= 0 {
		page = 1
	}
	meta := PaginationMeta{Page: page, PageSize: pageSize, TotalItems: total, TotalPages: 1}
	if pageSize > 0 {
		meta.TotalPages = int(math.Ceil(float64(total) / float64(pageSize)))
	}
	return meta
}

// UserCreateRequest captures payloads for provisioning a back-office user.
type UserCreateRequest struct {
	Username string   `json:"username" validate:"required,min=3,max=150"`
	RealName string   `json:"real_name" validate:"omitempty,max=50"`
	Phone    string   `json:"phone" validate:"omitempty,max=20"`
	Roles    []string `json:"roles" validate:"required,min=1,dive,oneof=teacher researcher operator admin"`
}

// UserRolesRequest replaces a user's role set.
type UserRolesRequest struct {
	Roles []string `json:"roles" validate:"required,min=1,dive,oneof=teacher researcher operator admin"`
}

// UserListRequest defines filters for listing users.
type UserListRequest struct {
	Page     int
	PageSize int
	Role     string
	Search   string
}

// UserResponse serializes a back-office user.
type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	RealName  string    `json:"real_name"`
	Phone     string    `json:"phone"`
	Roles     []string  `json:"roles"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserListResponse wraps a paginated user listing.
type UserListResponse struct {
	Items      []UserResponse `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// NewUserResponse converts a user model into a DTO.
func NewUserResponse(user models.User) UserResponse {
	roles := make([]string, 0)
	for _, role := range user.RoleList() {
		roles = append(roles, string(role))
	}

	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		RealName:  user.RealName,
		Phone:     user.Phone,
		Roles:     roles,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

// AdminActivityListRequest defines filters for retrieving activity logs.
type AdminActivityListRequest struct {
	Page       int
	PageSize   int
	ActorID    uint
	Action     string
	EntityType string
	EntityID   uint
}

// AdminActivityResponse serializes activity log entries.
type AdminActivityResponse struct {
	ID            uint                   `json:"id"`
	ActorID       uint                   `json:"actor_id"`
	ActorRole     string                 `json:"actor_role"`
	Action        string                 `json:"action"`
	EntityType    string                 `json:"entity_type"`
	EntityID      *uint                  `json:"entity_id"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Metadata      map[string]interface{} `json:"metadata"`
	CreatedAt     time.Time              `json:"created_at"`
}

// AdminActivityListResponse wraps paginated activity logs.
type AdminActivityListResponse struct {
	Items      []AdminActivityResponse `json:"items"`
	Pagination PaginationMeta          `json:"pagination"`
}

// NewAdminActivityResponse converts an activity log into a DTO.
func NewAdminActivityResponse(model models.ActivityLog) AdminActivityResponse {
	metadata := map[string]interface{}{}
	for key, value := range model.Metadata {
		metadata[key] = value
	}

	return AdminActivityResponse{
		ID:            model.ID,
		ActorID:       model.ActorID,
		ActorRole:     model.ActorRole,
		Action:        model.Action,
		EntityType:    model.EntityType,
		EntityID:      model.EntityID,
		CorrelationID: model.CorrelationID,
		Metadata:      metadata,
		CreatedAt:     model.CreatedAt,
	}
}
