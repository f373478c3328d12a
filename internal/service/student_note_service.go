package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutordesk-api/internal/dto"
	"github.com/noah-isme/tutordesk-api/internal/models"
	"github.com/noah-isme/tutordesk-api/internal/repository"
)

// StudentNoteService overwrites the notes each department keeps on a student.
type StudentNoteService interface {
	SetResearchNote(ctx context.Context, actor Actor, studentID uint, req dto.NoteRequest) (dto.StudentResponse, error)
	SetOpsNote(ctx context.Context, actor Actor, studentID uint, req dto.NoteRequest) (dto.StudentResponse, error)
}

type studentNoteService struct {
	store     repository.Store
	validator *validator.Validate
	effects   effects
	logger    zerolog.Logger
}

// NewStudentNoteService constructs the note service.
func NewStudentNoteService(store repository.Store, validate *validator.Validate, activity ActivityRecorder, events EventPublisher, logger zerolog.Logger) StudentNoteService {
	logger = logger.With().Str("component", "student_note_service").Logger()
	return &studentNoteService{
		store:     store,
		validator: validate,
		effects:   effects{activity: activity, events: events, logger: logger},
		logger:    logger,
	}
}

func (s *studentNoteService) SetResearchNote(ctx context.Context, actor Actor, studentID uint, req dto.NoteRequest) (dto.StudentResponse, error) {
	return s.setNote(ctx, actor, models.RoleResearcher, "research_note", studentID, req)
}

func (s *studentNoteService) SetOpsNote(ctx context.Context, actor Actor, studentID uint, req dto.NoteRequest) (dto.StudentResponse, error) {
	return s.setNote(ctx, actor, models.RoleOperator, "ops_note", studentID, req)
}

func (s *studentNoteService) setNote(ctx context.Context, actor Actor, role models.Role, column string, studentID uint, req dto.NoteRequest) (dto.StudentResponse, error) {
	if err := requireRole(actor, role); err != nil {
		return dto.StudentResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.StudentResponse{}, err
	}

	note := cleanText(req.Note)
	students := s.store.Repos().Students
	if err := students.UpdateFields(ctx, studentID, map[string]interface{}{column: note}); err != nil {
		return dto.StudentResponse{}, notFound(err, ErrStudentNotFound)
	}

	student, err := students.GetByID(ctx, studentID)
	if err != nil {
		return dto.StudentResponse{}, notFound(err, ErrStudentNotFound)
	}

	metadata := map[string]interface{}{"field": column, "student_id": student.BusinessID}
	s.effects.record(ctx, actor, string(role), "student.note_updated", "student", uintPtr(student.ID), metadata)
	s.effects.publish(ctx, actor, EventStudentUpdated, metadata)

	return dto.NewStudentResponse(student), nil
}
