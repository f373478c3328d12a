package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/tutordesk-api/internal/dto"
	"github.com/noah-isme/tutordesk-api/internal/models"
	"github.com/noah-isme/tutordesk-api/internal/observability"
	"github.com/noah-isme/tutordesk-api/internal/repository"
)

// FeedbackPushService hands a teacher's feedback over to research or operations.
type FeedbackPushService interface {
	PushToResearch(ctx context.Context, actor Actor, req dto.PushRequest) (dto.PushResponse, error)
	PushToOperations(ctx context.Context, actor Actor, req dto.PushRequest) (dto.PushResponse, error)
}

type feedbackPushService struct {
	store     repository.Store
	validator *validator.Validate
	effects   effects
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// NewFeedbackPushService constructs the push service.
func NewFeedbackPushService(store repository.Store, validate *validator.Validate, activity ActivityRecorder, events EventPublisher, logger zerolog.Logger) FeedbackPushService {
	logger = logger.With().Str("component", "feedback_push_service").Logger()
	return &feedbackPushService{
		store:     store,
		validator: validate,
		effects:   effects{activity: activity, events: events, logger: logger},
		tracer:    otel.Tracer("github.com/noah-isme/tutordesk-api/internal/service/push"),
		logger:    logger,
	}
}

func newOpsTaskID(businessID string) string {
	return fmt.Sprintf("OPS-%s-%s", businessID, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (s *feedbackPushService) PushToResearch(ctx context.Context, actor Actor, req dto.PushRequest) (dto.PushResponse, error) {
	selector, note, err := s.prepare(ctx, actor, req)
	if err != nil {
		return dto.PushResponse{}, err
	}

	updated, err := s.store.Repos().Feedback.MarkPushed(ctx, selector, repository.PushResearch, note)
	if err != nil {
		return dto.PushResponse{}, err
	}

	s.afterPush(ctx, actor, "research", req, updated, nil)
	return dto.PushResponse{Updated: updated}, nil
}

// PushToOperations marks the rows and opens one follow-up per referenced student. Rows that
// were already pushed keep their note, but their students still get a new follow-up.
func (s *feedbackPushService) PushToOperations(ctx context.Context, actor Actor, req dto.PushRequest) (dto.PushResponse, error) {
	selector, note, err := s.prepare(ctx, actor, req)
	if err != nil {
		return dto.PushResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "feedback.push_operations", trace.WithAttributes(
		attribute.Int64("feedback.teacher_id", int64(actor.ID)),
	))
	defer span.End()

	var (
		updated int64
		created []models.OpsTask
	)
	err = s.store.WithinTransaction(ctx, func(tx repository.Repositories) error {
		rows, err := tx.Feedback.ListOwned(ctx, selector)
		if err != nil {
			return err
		}
		updated, err = tx.Feedback.MarkPushed(ctx, selector, repository.PushOperations, note)
		if err != nil {
			return err
		}

		seen := make(map[uint]struct{}, len(rows))
		for _, row := range rows {
			if _, ok := seen[row.StudentID]; ok {
				continue
			}
			seen[row.StudentID] = struct{}{}

			task := models.OpsTask{
				TaskID:      newOpsTaskID(row.StudentCode),
				StudentID:   row.StudentID,
				StudentName: row.StudentName,
				Source:      models.OpsSourceTeacher,
				TaskStatus:  models.OpsStatusPending,
			}
			if err := tx.OpsTasks.Create(ctx, &task); err != nil {
				return err
			}
			created = append(created, task)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "push_failed")
		return dto.PushResponse{}, err
	}

	ids := make([]string, 0, len(created))
	for _, task := range created {
		ids = append(ids, task.TaskID)
	}
	s.afterPush(ctx, actor, "operations", req, updated, ids)
	return dto.PushResponse{Updated: updated, OpsTasksCreated: len(created), OpsTaskIDs: ids}, nil
}

func (s *feedbackPushService) prepare(ctx context.Context, actor Actor, req dto.PushRequest) (repository.FeedbackSelector, string, error) {
	if err := requireRole(actor, models.RoleTeacher); err != nil {
		return repository.FeedbackSelector{}, "", err
	}
	if err := s.validator.Struct(req); err != nil {
		return repository.FeedbackSelector{}, "", err
	}

	note := cleanText(req.Note)
	if note == "" {
		return repository.FeedbackSelector{}, "", ErrEmptyNote
	}
	if len(req.FeedbackIDs) == 0 && len(req.StudentIDs) == 0 {
		return repository.FeedbackSelector{}, "", ErrEmptySelection
	}

	selector := repository.FeedbackSelector{TeacherID: actor.ID, IDs: req.FeedbackIDs}
	students := s.store.Repos().Students
	for _, code := range req.StudentIDs {
		student, err := students.GetByBusinessID(ctx, strings.TrimSpace(code))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return repository.FeedbackSelector{}, "", err
		}
		selector.StudentIDs = append(selector.StudentIDs, student.ID)
	}
	return selector, note, nil
}

func (s *feedbackPushService) afterPush(ctx context.Context, actor Actor, target string, req dto.PushRequest, updated int64, opsTaskIDs []string) {
	observability.FeedbackPushes().WithLabelValues(target).Add(float64(updated))

	metadata := map[string]interface{}{
		"target":       target,
		"feedback_ids": req.FeedbackIDs,
		"student_ids":  req.StudentIDs,
		"updated":      updated,
	}
	if opsTaskIDs != nil {
		metadata["ops_task_ids"] = opsTaskIDs
	}
	s.effects.record(ctx, actor, string(models.RoleTeacher), "feedback.pushed", "feedback", nil, metadata)
	s.effects.publish(ctx, actor, EventFeedbackPushed, metadata)
	if len(opsTaskIDs) > 0 {
		s.effects.publish(ctx, actor, EventOpsTaskOpened, map[string]interface{}{"task_ids": opsTaskIDs, "source": models.OpsSourceTeacher})
	}
}
