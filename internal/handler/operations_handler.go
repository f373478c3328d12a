package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutordesk-api/internal/dto"
	"github.com/noah-isme/tutordesk-api/internal/service"
	"github.com/noah-isme/tutordesk-api/internal/utils"
)

// OperationsHandler serves the follow-up queue and visit records.
type OperationsHandler struct {
	ops    service.OpsService
	logger zerolog.Logger
}

// NewOperationsHandler constructs the handler.
func NewOperationsHandler(ops service.OpsService, logger zerolog.Logger) *OperationsHandler {
	return &OperationsHandler{
		ops:    ops,
		logger: logger.With().Str("component", "operations_handler").Logger(),
	}
}

// Register attaches operations routes to the router group.
func (h *OperationsHandler) Register(router fiber.Router) {
	router.Get("/tasks", h.listTasks)
	router.Post("/tasks", h.addTask)
	router.Patch("/tasks/:id", h.updateTask)
	router.Get("/visits", h.listVisits)
	router.Post("/visits", h.createVisit)
}

func (h *OperationsHandler) listTasks(c *fiber.Ctx) error {
	page, pageSize, err := parsePaging(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	list, err := h.ops.ListTasks(c.UserContext(), actorFromContext(c), dto.OpsTaskListRequest{
		Page:          page,
		PageSize:      pageSize,
		Status:        c.Query("status"),
		Source:        c.Query("source"),
		Search:        c.Query("search"),
		IncludeClosed: c.QueryBool("include_closed", false),
	})
	if err != nil {
		return respondError(c, h.logger, err, "failed to list operations tasks")
	}
	return utils.SendSuccess(c, "operations tasks", list)
}

func (h *OperationsHandler) addTask(c *fiber.Ctx) error {
	var req dto.OpsTaskCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	task, err := h.ops.AddManual(c.UserContext(), actorFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create operations task")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "operations task created", task)
}

func (h *OperationsHandler) updateTask(c *fiber.Ctx) error {
	var req dto.OpsTaskUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	task, err := h.ops.UpdateStatus(c.UserContext(), actorFromContext(c), c.Params("id"), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update operations task")
	}
	return utils.SendSuccess(c, "operations task updated", task)
}

func (h *OperationsHandler) listVisits(c *fiber.Ctx) error {
	page, pageSize, err := parsePaging(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	from, err := parseQueryTime(c, "from")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid from")
	}
	to, err := parseQueryTime(c, "to")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid to")
	}

	list, err := h.ops.ListVisits(c.UserContext(), actorFromContext(c), dto.VisitListRequest{
		Page:      page,
		PageSize:  pageSize,
		StudentID: c.Query("student_id"),
		Status:    c.Query("status"),
		From:      from,
		To:        to,
	})
	if err != nil {
		return respondError(c, h.logger, err, "failed to list visits")
	}
	return utils.SendSuccess(c, "visits", list)
}

func (h *OperationsHandler) createVisit(c *fiber.Ctx) error {
	var req dto.VisitRecordCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	visit, err := h.ops.CreateVisit(c.UserContext(), actorFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to record visit")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "visit recorded", visit)
}
