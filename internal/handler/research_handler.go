package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutordesk-api/internal/dto"
	"github.com/noah-isme/tutordesk-api/internal/service"
	"github.com/noah-isme/tutordesk-api/internal/utils"
)

// ResearchHandler serves task assignment, monitoring and research notes.
type ResearchHandler struct {
	tasks     service.TeachingTaskService
	feedback  service.FeedbackService
	attention service.AttentionService
	notes     service.StudentNoteService
	reports   service.ReportService
	logger    zerolog.Logger
}

// NewResearchHandler constructs the handler.
func NewResearchHandler(tasks service.TeachingTaskService, feedback service.FeedbackService, attention service.AttentionService, notes service.StudentNoteService, reports service.ReportService, logger zerolog.Logger) *ResearchHandler {
	return &ResearchHandler{
		tasks:     tasks,
		feedback:  feedback,
		attention: attention,
		notes:     notes,
		reports:   reports,
		logger:    logger.With().Str("component", "research_handler").Logger(),
	}
}

// Register attaches research routes to the router group.
func (h *ResearchHandler) Register(router fiber.Router) {
	router.Post("/tasks", h.assignTasks)
	router.Get("/tasks", h.taskHistory)
	router.Get("/tasks/export", h.exportTasks)
	router.Delete("/tasks/:id", h.deleteTask)
	router.Get("/teachers", h.teachers)
	router.Get("/feedback", h.monitorFeedback)
	router.Get("/attention", h.attentionList)
	router.Put("/students/:id/note", h.setNote)
}

func (h *ResearchHandler) assignTasks(c *fiber.Ctx) error {
	var req dto.AssignTasksRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.tasks.AssignBatch(c.UserContext(), actorFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to assign tasks")
	}

	status := fiber.StatusOK
	if result.Created > 0 {
		status = fiber.StatusCreated
	}
	return utils.SendSuccessWithStatus(c, status, "tasks assigned", result)
}

func (h *ResearchHandler) taskHistory(c *fiber.Ctx) error {
	req, err := taskHistoryFromQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	list, err := h.tasks.History(c.UserContext(), actorFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list tasks")
	}
	return utils.SendSuccess(c, "tasks", list)
}

func (h *ResearchHandler) exportTasks(c *fiber.Ctx) error {
	req, err := taskHistoryFromQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	report, err := h.reports.ExportTasks(c.UserContext(), actorFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to export tasks")
	}
	return utils.SendFile(c, report.Filename, report.ContentType, report.Data)
}

func (h *ResearchHandler) deleteTask(c *fiber.Ctx) error {
	if err := h.tasks.Delete(c.UserContext(), actorFromContext(c), c.Params("id")); err != nil {
		return respondError(c, h.logger, err, "failed to delete task")
	}
	return utils.SendSuccess(c, "task deleted", nil)
}

func (h *ResearchHandler) teachers(c *fiber.Ctx) error {
	summaries, err := h.tasks.TeacherStats(c.UserContext(), actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load teachers")
	}
	return utils.SendSuccess(c, "teachers", summaries)
}

func (h *ResearchHandler) monitorFeedback(c *fiber.Ctx) error {
	page, pageSize, err := parsePaging(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	teacherID, err := parseQueryUint(c, "teacher_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid teacher id")
	}
	from, err := parseQueryTime(c, "from")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid from")
	}
	to, err := parseQueryTime(c, "to")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid to")
	}

	list, err := h.feedback.Monitor(c.UserContext(), actorFromContext(c), dto.FeedbackMonitorRequest{
		Page:      page,
		PageSize:  pageSize,
		TeacherID: teacherID,
		StudentID: c.Query("student_id"),
		Group:     c.Query("group"),
		Keyword:   c.Query("keyword"),
		From:      from,
		To:        to,
	})
	if err != nil {
		return respondError(c, h.logger, err, "failed to list feedback")
	}
	return utils.SendSuccess(c, "feedback", list)
}

func (h *ResearchHandler) attentionList(c *fiber.Ctx) error {
	students, err := h.attention.ListFlagged(c.UserContext(), actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to list flagged students")
	}
	return utils.SendSuccess(c, "flagged students", students)
}

func (h *ResearchHandler) setNote(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.NoteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	student, err := h.notes.SetResearchNote(c.UserContext(), actorFromContext(c), id, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to save note")
	}
	return utils.SendSuccess(c, "note saved", student)
}

func taskHistoryFromQuery(c *fiber.Ctx) (dto.TaskHistoryRequest, error) {
	page, pageSize, err := parsePaging(c)
	if err != nil {
		return dto.TaskHistoryRequest{}, err
	}
	teacherID, err := parseQueryUint(c, "teacher_id")
	if err != nil {
		return dto.TaskHistoryRequest{}, errInvalidQuery("teacher_id")
	}
	from, err := parseQueryTime(c, "from")
	if err != nil {
		return dto.TaskHistoryRequest{}, errInvalidQuery("from")
	}
	to, err := parseQueryTime(c, "to")
	if err != nil {
		return dto.TaskHistoryRequest{}, errInvalidQuery("to")
	}

	return dto.TaskHistoryRequest{
		Page:      page,
		PageSize:  pageSize,
		TeacherID: teacherID,
		Status:    c.Query("status"),
		From:      from,
		To:        to,
	}, nil
}
