package handler

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutordesk-api/internal/dto"
	"github.com/noah-isme/tutordesk-api/internal/service"
	"github.com/noah-isme/tutordesk-api/internal/utils"
)

const maxImportBytes = 10 << 20

// StudentHandler serves the student directory and the operations roster.
type StudentHandler struct {
	students  service.StudentService
	notes     service.StudentNoteService
	attention service.AttentionService
	logger    zerolog.Logger
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(students service.StudentService, notes service.StudentNoteService, attention service.AttentionService, logger zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		students:  students,
		notes:     notes,
		attention: attention,
		logger:    logger.With().Str("component", "student_handler").Logger(),
	}
}

// RegisterDirectory attaches the routes shared by every role.
func (h *StudentHandler) RegisterDirectory(router fiber.Router) {
	router.Get("/search", h.search)
	router.Put("/:id/attention", h.setAttention)
}

// RegisterOperations attaches the roster management routes.
func (h *StudentHandler) RegisterOperations(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Post("/import", h.importRoster)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.update)
	router.Delete("/:id", h.archive)
	router.Put("/:id/note", h.setOpsNote)
}

func (h *StudentHandler) search(c *fiber.Ctx) error {
	items, err := h.students.Search(c.UserContext(), actorFromContext(c), c.Query("q"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to search students")
	}
	return utils.SendSuccess(c, "students", items)
}

func (h *StudentHandler) setAttention(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.AttentionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	student, err := h.attention.SetFlag(c.UserContext(), actorFromContext(c), id, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update attention flag")
	}
	return utils.SendSuccess(c, "attention flag updated", student)
}

func (h *StudentHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := parsePaging(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	list, err := h.students.List(c.UserContext(), actorFromContext(c), dto.StudentListRequest{
		Page:     page,
		PageSize: pageSize,
		Search:   c.Query("search"),
		Status:   c.Query("status"),
		Group:    c.Query("group"),
		Sort:     c.Query("sort"),
		Order:    c.Query("order"),
	})
	if err != nil {
		return respondError(c, h.logger, err, "failed to list students")
	}
	return utils.SendSuccess(c, "students", list)
}

func (h *StudentHandler) create(c *fiber.Ctx) error {
	var req dto.StudentCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	student, err := h.students.Create(c.UserContext(), actorFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create student")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "student created", student)
}

func (h *StudentHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	detail, err := h.students.Get(c.UserContext(), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load student")
	}
	return utils.SendSuccess(c, "student", detail)
}

func (h *StudentHandler) update(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.StudentUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	student, err := h.students.Update(c.UserContext(), actorFromContext(c), id, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update student")
	}
	return utils.SendSuccess(c, "student updated", student)
}

func (h *StudentHandler) archive(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.students.Archive(c.UserContext(), actorFromContext(c), id); err != nil {
		return respondError(c, h.logger, err, "failed to archive student")
	}
	return utils.SendSuccess(c, "student archived", nil)
}

func (h *StudentHandler) setOpsNote(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.NoteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	student, err := h.notes.SetOpsNote(c.UserContext(), actorFromContext(c), id, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to save note")
	}
	return utils.SendSuccess(c, "note saved", student)
}

// importRoster accepts a multipart "file" field or a raw spreadsheet body.
func (h *StudentHandler) importRoster(c *fiber.Ctx) error {
	data := c.Body()
	if header, err := c.FormFile("file"); err == nil {
		if header.Size > maxImportBytes {
			return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "file too large")
		}
		file, err := header.Open()
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "unable to read file")
		}
		defer file.Close()

		data, err = io.ReadAll(io.LimitReader(file, maxImportBytes))
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "unable to read file")
		}
	}
	if len(data) == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}
	if len(data) > maxImportBytes {
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "file too large")
	}

	result, err := h.students.Import(c.UserContext(), actorFromContext(c), data)
	if err != nil {
		return respondError(c, h.logger, err, "failed to import students")
	}

	requestLogger(h.logger, c).Info().Int("created", result.Created).Int("updated", result.Updated).Int("skipped", result.Skipped).Msg("student import finished")
	return utils.SendSuccess(c, "import finished", result)
}
