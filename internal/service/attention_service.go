package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutordesk-api/internal/dto"
	"github.com/noah-isme/tutordesk-api/internal/models"
	"github.com/noah-isme/tutordesk-api/internal/observability"
	"github.com/noah-isme/tutordesk-api/internal/repository"
)

// AttentionService maintains the "needs attention" flag on students.
type AttentionService interface {
	SetFlag(ctx context.Context, actor Actor, studentID uint, req dto.AttentionRequest) (dto.StudentResponse, error)
	ListFlagged(ctx context.Context, actor Actor) ([]dto.AttentionStudentResponse, error)
	Sweep(ctx context.Context, staleAfter time.Duration) (int, error)
}

type attentionService struct {
	store     repository.Store
	validator *validator.Validate
	effects   effects
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAttentionService constructs the attention service.
func NewAttentionService(store repository.Store, validate *validator.Validate, activity ActivityRecorder, events EventPublisher, logger zerolog.Logger) AttentionService {
	logger = logger.With().Str("component", "attention_service").Logger()
	return &attentionService{
		store:     store,
		validator: validate,
		effects:   effects{activity: activity, events: events, logger: logger},
		logger:    logger,
		now:       time.Now,
	}
}

func (s *attentionService) SetFlag(ctx context.Context, actor Actor, studentID uint, req dto.AttentionRequest) (dto.StudentResponse, error) {
	if !actor.System {
		if err := requireRole(actor, models.RoleResearcher, models.RoleOperator); err != nil {
			return dto.StudentResponse{}, err
		}
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.StudentResponse{}, err
	}

	value := *req.IsDifficult
	source, err := flagSource(actor, req.Source)
	if err != nil {
		return dto.StudentResponse{}, err
	}

	updates := map[string]interface{}{
		"is_difficult":      value,
		"difficulty_source": source,
		"learning_status":   models.LearningStatusAttention,
	}
	if !value {
		updates["difficulty_source"] = ""
		updates["learning_status"] = models.LearningStatusNormal
	}

	students := s.store.Repos().Students
	if err := students.UpdateFields(ctx, studentID, updates); err != nil {
		return dto.StudentResponse{}, notFound(err, ErrStudentNotFound)
	}
	student, err := students.GetByID(ctx, studentID)
	if err != nil {
		return dto.StudentResponse{}, notFound(err, ErrStudentNotFound)
	}

	observability.AttentionFlagChanges().WithLabelValues(source, boolLabel(value)).Inc()
	role := string(models.RoleResearcher)
	if !actor.Has(models.RoleResearcher) {
		role = string(models.RoleOperator)
	}
	metadata := map[string]interface{}{"student_id": student.BusinessID, "is_difficult": value, "source": source}
	s.effects.record(ctx, actor, role, "student.flagged", "student", uintPtr(student.ID), metadata)
	s.effects.publish(ctx, actor, EventStudentFlagged, metadata)

	return dto.NewStudentResponse(student), nil
}

// flagSource resolves the provenance recorded with a flag. The system actor always records system.
func flagSource(actor Actor, requested string) (string, error) {
	if actor.System {
		return models.DifficultySourceSystem, nil
	}
	switch source := strings.ToLower(strings.TrimSpace(requested)); source {
	case "":
		return models.DifficultySourceResearcher, nil
	case models.DifficultySourceSystem, models.DifficultySourceTeacher, models.DifficultySourceResearcher:
		return source, nil
	default:
		return "", ErrInvalidSource
	}
}

func boolLabel(value bool) string {
	if value {
		return "true"
	}
	return "false"
}

func (s *attentionService) ListFlagged(ctx context.Context, actor Actor) ([]dto.AttentionStudentResponse, error) {
	if err := requireRole(actor, models.RoleResearcher, models.RoleOperator); err != nil {
		return nil, err
	}

	repos := s.store.Repos()
	students, err := repos.Students.ListFlagged(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(students))
	for _, student := range students {
		ids = append(ids, student.ID)
	}
	latest, err := repos.Feedback.LatestForStudents(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]dto.AttentionStudentResponse, 0, len(students))
	for _, student := range students {
		item := dto.AttentionStudentResponse{StudentResponse: dto.NewStudentResponse(student)}
		if feedback, ok := latest[student.ID]; ok {
			replyTime := feedback.ReplyTime
			item.LatestComment = feedback.TeacherComment
			item.LatestTeacher = feedback.TeacherName
			item.LatestReplyTime = &replyTime
		}
		items = append(items, item)
	}
	return items, nil
}

// Sweep flags, as the system actor, students that have gone without feedback for staleAfter.
func (s *attentionService) Sweep(ctx context.Context, staleAfter time.Duration) (int, error) {
	if staleAfter <= 0 {
		return 0, nil
	}

	cutoff := s.now().Add(-staleAfter)
	stale, err := s.store.Repos().Students.ListStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	flag := true
	actor := SystemActor()
	flagged := 0
	for _, student := range stale {
		if _, err := s.SetFlag(ctx, actor, student.ID, dto.AttentionRequest{IsDifficult: &flag}); err != nil {
			s.logger.Warn().Err(err).Uint("student_id", student.ID).Msg("failed to flag stale student")
			continue
		}
		flagged++
	}

	observability.AttentionSweepFlagged().Add(float64(flagged))
	s.logger.Info().Int("flagged", flagged).Time("cutoff", cutoff).Msg("attention sweep finished")
	return flagged, nil
}
