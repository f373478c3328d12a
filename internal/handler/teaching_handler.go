package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutordesk-api/internal/dto"
	"github.com/noah-isme/tutordesk-api/internal/service"
	"github.com/noah-isme/tutordesk-api/internal/utils"
)

// TeachingHandler serves the teacher workspace: today's tasks, feedback and pushes.
type TeachingHandler struct {
	tasks    service.TeachingTaskService
	feedback service.FeedbackService
	pushes   service.FeedbackPushService
	logger   zerolog.Logger
}

// NewTeachingHandler constructs the handler.
func NewTeachingHandler(tasks service.TeachingTaskService, feedback service.FeedbackService, pushes service.FeedbackPushService, logger zerolog.Logger) *TeachingHandler {
	return &TeachingHandler{
		tasks:    tasks,
		feedback: feedback,
		pushes:   pushes,
		logger:   logger.With().Str("component", "teaching_handler").Logger(),
	}
}

// Register attaches teaching routes to the router group.
func (h *TeachingHandler) Register(router fiber.Router) {
	router.Get("/tasks", h.listTasks)
	router.Delete("/tasks", h.cancelByStudents)
	router.Post("/tasks/cancel", h.cancelTasks)
	router.Post("/tasks/:taskId/start", h.startTask)

	router.Get("/feedback", h.listFeedback)
	router.Post("/feedback", h.submitFeedback)
	router.Post("/feedback/manual", h.manualFeedback)
	router.Post("/feedback/push/research", h.pushToResearch)
	router.Post("/feedback/push/operations", h.pushToOperations)
}

func (h *TeachingHandler) listTasks(c *fiber.Ctx) error {
	tasks, err := h.tasks.ListActiveForTeacher(c.UserContext(), actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load tasks")
	}
	return utils.SendSuccess(c, "tasks", tasks)
}

func (h *TeachingHandler) startTask(c *fiber.Ctx) error {
	task, err := h.tasks.Start(c.UserContext(), actorFromContext(c), c.Params("taskId"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to start task")
	}
	return utils.SendSuccess(c, "task started", task)
}

func (h *TeachingHandler) cancelTasks(c *fiber.Ctx) error {
	var req dto.CancelTasksRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	count, err := h.tasks.Cancel(c.UserContext(), actorFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to cancel tasks")
	}
	return utils.SendSuccess(c, "tasks cancelled", dto.CountResponse{Count: count})
}

// cancelByStudents handles DELETE /tasks?student_ids=S0001,S0002.
func (h *TeachingHandler) cancelByStudents(c *fiber.Ctx) error {
	count, err := h.tasks.CancelByStudents(c.UserContext(), actorFromContext(c), splitAndTrim(c.Query("student_ids")))
	if err != nil {
		return respondError(c, h.logger, err, "failed to cancel tasks")
	}
	return utils.SendSuccess(c, "tasks cancelled", dto.CountResponse{Count: count})
}

func (h *TeachingHandler) listFeedback(c *fiber.Ctx) error {
	page, pageSize, err := parsePaging(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	list, err := h.feedback.ListMine(c.UserContext(), actorFromContext(c), page, pageSize)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list feedback")
	}
	return utils.SendSuccess(c, "feedback", list)
}

func (h *TeachingHandler) submitFeedback(c *fiber.Ctx) error {
	var req dto.SubmitFeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.feedback.Submit(c.UserContext(), actorFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to submit feedback")
	}

	requestLogger(h.logger, c).Info().Int("count", result.Count).Int64("completed_tasks", result.CompletedTasks).Msg("feedback submitted")
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "feedback submitted", result)
}

func (h *TeachingHandler) manualFeedback(c *fiber.Ctx) error {
	var req dto.ManualFeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.feedback.Manual(c.UserContext(), actorFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to record feedback")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "feedback recorded", result)
}

func (h *TeachingHandler) pushToResearch(c *fiber.Ctx) error {
	var req dto.PushRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.pushes.PushToResearch(c.UserContext(), actorFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to push feedback")
	}
	return utils.SendSuccess(c, "pushed to research", result)
}

func (h *TeachingHandler) pushToOperations(c *fiber.Ctx) error {
	var req dto.PushRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.pushes.PushToOperations(c.UserContext(), actorFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to push feedback")
	}
	return utils.SendSuccess(c, "pushed to operations", result)
}
