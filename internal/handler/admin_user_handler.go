package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutordesk-api/internal/dto"
	"github.com/noah-isme/tutordesk-api/internal/service"
	"github.com/noah-isme/tutordesk-api/internal/utils"
)

// AdminUserHandler manages staff accounts and their roles.
type AdminUserHandler struct {
	users  service.UserService
	logger zerolog.Logger
}

// NewAdminUserHandler constructs the handler.
func NewAdminUserHandler(users service.UserService, logger zerolog.Logger) *AdminUserHandler {
	return &AdminUserHandler{
		users:  users,
		logger: logger.With().Str("component", "admin_user_handler").Logger(),
	}
}

// Register attaches user management routes to the router group.
func (h *AdminUserHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Put("/:id/roles", h.updateRoles)
	router.Delete("/:id", h.deactivate)
}

func (h *AdminUserHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := parsePaging(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	list, err := h.users.List(c.UserContext(), actorFromContext(c), dto.UserListRequest{
		Page:     page,
		PageSize: pageSize,
		Role:     c.Query("role"),
		Search:   c.Query("search"),
	})
	if err != nil {
		return respondError(c, h.logger, err, "failed to list users")
	}
	return utils.SendSuccess(c, "users", list)
}

func (h *AdminUserHandler) create(c *fiber.Ctx) error {
	var req dto.UserCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	user, err := h.users.Create(c.UserContext(), actorFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create user")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "user created", user)
}

func (h *AdminUserHandler) updateRoles(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.UserRolesRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	user, err := h.users.UpdateRoles(c.UserContext(), actorFromContext(c), id, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update roles")
	}
	return utils.SendSuccess(c, "roles updated", user)
}

func (h *AdminUserHandler) deactivate(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.users.Deactivate(c.UserContext(), actorFromContext(c), id); err != nil {
		return respondError(c, h.logger, err, "failed to deactivate user")
	}
	return utils.SendSuccess(c, "user deactivated", nil)
}
