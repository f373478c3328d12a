package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/tutordesk-api/internal/dto"
	"github.com/noah-isme/tutordesk-api/internal/models"
	"github.com/noah-isme/tutordesk-api/internal/observability"
	"github.com/noah-isme/tutordesk-api/internal/progress"
	"github.com/noah-isme/tutordesk-api/internal/repository"
)

// FeedbackConfig selects how lesson strings are parsed on each write path.
type FeedbackConfig struct {
	SubmitMode progress.Mode
	ManualMode progress.Mode
}

// FeedbackService records teacher feedback and folds it into student progress.
type FeedbackService interface {
	Submit(ctx context.Context, actor Actor, req dto.SubmitFeedbackRequest) (dto.SubmitFeedbackResponse, error)
	Manual(ctx context.Context, actor Actor, req dto.ManualFeedbackRequest) (dto.ManualFeedbackResponse, error)
	ListMine(ctx context.Context, actor Actor, page, pageSize int) (dto.FeedbackListResponse, error)
	Monitor(ctx context.Context, actor Actor, req dto.FeedbackMonitorRequest) (dto.FeedbackListResponse, error)
}

type feedbackService struct {
	store     repository.Store
	tasks     TaskCompleter
	validator *validator.Validate
	stats     *StatsCache
	config    FeedbackConfig
	effects   effects
	tracer    trace.Tracer
	logger    zerolog.Logger
	now       func() time.Time
}

// NewFeedbackService constructs the feedback service.
func NewFeedbackService(store repository.Store, tasks TaskCompleter, validate *validator.Validate, stats *StatsCache, config FeedbackConfig, activity ActivityRecorder, events EventPublisher, logger zerolog.Logger) FeedbackService {
	if config.SubmitMode == "" {
		config.SubmitMode = progress.ModeNumeric
	}
	if config.ManualMode == "" {
		config.ManualMode = progress.ModeRaw
	}
	logger = logger.With().Str("component", "feedback_service").Logger()
	return &feedbackService{
		store:     store,
		tasks:     tasks,
		validator: validate,
		stats:     stats,
		config:    config,
		effects:   effects{activity: activity, events: events, logger: logger},
		tracer:    otel.Tracer("github.com/noah-isme/tutordesk-api/internal/service/feedback"),
		logger:    logger,
		now:       time.Now,
	}
}

type pendingFeedback struct {
	student models.Student
	delta   []progress.Marker
	comment string
}

func parseDelta(raw string, mode progress.Mode) ([]progress.Marker, error) {
	markers, err := progress.ParseMarkers(raw, mode)
	if err != nil {
		var invalid *progress.InvalidMarkerError
		if errors.As(err, &invalid) || errors.Is(err, progress.ErrEmptyMarkers) {
			return nil, validationError("lesson_progress: %v", err)
		}
		return nil, err
	}
	return markers, nil
}

func (s *feedbackService) Submit(ctx context.Context, actor Actor, req dto.SubmitFeedbackRequest) (dto.SubmitFeedbackResponse, error) {
	if err := requireRole(actor, models.RoleTeacher); err != nil {
		return dto.SubmitFeedbackResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.SubmitFeedbackResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "feedback.submit", trace.WithAttributes(
		attribute.Int64("feedback.teacher_id", int64(actor.ID)),
		attribute.Int("feedback.count", len(req.Feedbacks)),
	))
	defer span.End()

	repos := s.store.Repos()
	items := make([]pendingFeedback, 0, len(req.Feedbacks))
	for _, item := range req.Feedbacks {
		comment := cleanText(item.TeacherComment)
		if comment == "" {
			return dto.SubmitFeedbackResponse{}, validationError("teacher_comment must not be empty")
		}
		student, err := repos.Students.GetByBusinessID(ctx, strings.TrimSpace(item.StudentID))
		if err != nil {
			return dto.SubmitFeedbackResponse{}, notFound(err, ErrStudentNotFound)
		}
		delta, err := parseDelta(item.LessonProgress, s.config.SubmitMode)
		if err != nil {
			return dto.SubmitFeedbackResponse{}, err
		}
		items = append(items, pendingFeedback{student: student, delta: delta, comment: comment})
	}

	now := s.now()
	ids := make([]uint, 0, len(items))
	var completed int64
	err := s.store.WithinTransaction(ctx, func(tx repository.Repositories) error {
		for _, item := range items {
			feedback, err := s.fold(ctx, tx, actor, item, now)
			if err != nil {
				return err
			}
			ids = append(ids, feedback.ID)

			closed, err := s.tasks.CompleteActiveTasksFor(ctx, tx, item.student.ID, actor.ID, now)
			if err != nil {
				return err
			}
			completed += closed
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit_failed")
		return dto.SubmitFeedbackResponse{}, err
	}

	observability.FeedbackSubmitted().WithLabelValues("submit").Add(float64(len(ids)))
	if completed > 0 {
		observability.TaskTransitions().WithLabelValues(models.TaskStatusCompleted).Add(float64(completed))
	}
	s.stats.Invalidate(ctx)

	metadata := map[string]interface{}{"feedback_ids": ids, "completed_tasks": completed}
	s.effects.record(ctx, actor, string(models.RoleTeacher), "feedback.submitted", "feedback", nil, metadata)
	s.effects.publish(ctx, actor, EventFeedbackSubmitted, metadata)

	return dto.SubmitFeedbackResponse{FeedbackIDs: ids, Count: len(ids), CompletedTasks: completed}, nil
}

// fold locks the student, merges the delta into its history and writes the feedback row.
func (s *feedbackService) fold(ctx context.Context, tx repository.Repositories, actor Actor, item pendingFeedback, at time.Time) (models.Feedback, error) {
	student, err := tx.Students.GetForUpdate(ctx, item.student.ID)
	if err != nil {
		return models.Feedback{}, notFound(err, ErrStudentNotFound)
	}
	if err := progress.Record(&student, item.delta); err != nil {
		if errors.Is(err, progress.ErrCorruptHistory) {
			return models.Feedback{}, fmt.Errorf("student %s: %w", student.BusinessID, err)
		}
		return models.Feedback{}, validationError("lesson_progress: %v", err)
	}
	if err := tx.Students.SaveProgress(ctx, &student); err != nil {
		return models.Feedback{}, err
	}

	feedback := models.Feedback{
		ReplyTime:      at,
		StudentID:      student.ID,
		StudentCode:    student.BusinessID,
		StudentName:    student.Name,
		TeacherID:      actor.ID,
		TeacherName:    actor.Name,
		TeacherComment: item.comment,
	}
	feedback.SetDelta(item.delta)
	if err := tx.Feedback.Create(ctx, &feedback); err != nil {
		return models.Feedback{}, err
	}
	feedback.Student = student
	return feedback, nil
}

func (s *feedbackService) Manual(ctx context.Context, actor Actor, req dto.ManualFeedbackRequest) (dto.ManualFeedbackResponse, error) {
	if err := requireRole(actor, models.RoleTeacher); err != nil {
		return dto.ManualFeedbackResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ManualFeedbackResponse{}, err
	}

	comment := cleanText(req.TeacherComment)
	if comment == "" {
		return dto.ManualFeedbackResponse{}, validationError("teacher_comment must not be empty")
	}
	delta, err := parseDelta(req.LessonProgress, s.config.ManualMode)
	if err != nil {
		return dto.ManualFeedbackResponse{}, err
	}

	candidates, err := s.store.Repos().Students.FindByNameOrAlias(ctx, req.StudentName)
	if err != nil {
		return dto.ManualFeedbackResponse{}, err
	}
	student, ok := bestNameMatch(candidates, req.StudentName)
	if !ok {
		return dto.ManualFeedbackResponse{}, ErrStudentNotFound
	}

	var feedback models.Feedback
	err = s.store.WithinTransaction(ctx, func(tx repository.Repositories) error {
		var foldErr error
		feedback, foldErr = s.fold(ctx, tx, actor, pendingFeedback{student: student, delta: delta, comment: comment}, s.now())
		return foldErr
	})
	if err != nil {
		return dto.ManualFeedbackResponse{}, err
	}

	observability.FeedbackSubmitted().WithLabelValues("manual").Inc()
	s.stats.Invalidate(ctx)
	metadata := map[string]interface{}{"feedback_id": feedback.ID, "student_id": feedback.StudentCode, "manual": true}
	s.effects.record(ctx, actor, string(models.RoleTeacher), "feedback.submitted", "feedback", uintPtr(feedback.ID), metadata)
	s.effects.publish(ctx, actor, EventFeedbackSubmitted, metadata)

	merged := feedback.Student.ProgressMarkers()
	return dto.ManualFeedbackResponse{
		FeedbackID:      feedback.ID,
		StudentID:       feedback.StudentCode,
		StudentName:     feedback.StudentName,
		Progress:        merged,
		CurrentProgress: progress.Current(merged),
	}, nil
}

// bestNameMatch prefers an exact name or alias match, then the lowest id.
func bestNameMatch(candidates []models.Student, name string) (models.Student, bool) {
	if len(candidates) == 0 {
		return models.Student{}, false
	}
	wanted := strings.ToLower(strings.TrimSpace(name))
	best := candidates[0]
	bestExact := false
	for _, candidate := range candidates {
		exact := strings.ToLower(candidate.Name) == wanted || strings.ToLower(candidate.AliasName) == wanted
		switch {
		case exact && !bestExact:
			best, bestExact = candidate, true
		case exact == bestExact && candidate.ID < best.ID:
			best = candidate
		}
	}
	return best, true
}

func (s *feedbackService) ListMine(ctx context.Context, actor Actor, page, pageSize int) (dto.FeedbackListResponse, error) {
	if err := requireRole(actor, models.RoleTeacher); err != nil {
		return dto.FeedbackListResponse{}, err
	}

	page, pageSize = normalizePage(page, pageSize)
	rows, total, err := s.store.Repos().Feedback.ListByTeacher(ctx, actor.ID, page, pageSize)
	if err != nil {
		return dto.FeedbackListResponse{}, err
	}
	return dto.FeedbackListResponse{
		Items:      dto.NewFeedbackResponseSlice(rows),
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *feedbackService) Monitor(ctx context.Context, actor Actor, req dto.FeedbackMonitorRequest) (dto.FeedbackListResponse, error) {
	if err := requireRole(actor, models.RoleResearcher); err != nil {
		return dto.FeedbackListResponse{}, err
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)
	filter := repository.FeedbackFilter{
		Group:    strings.TrimSpace(req.Group),
		Keyword:  strings.TrimSpace(req.Keyword),
		From:     req.From,
		To:       req.To,
		Page:     page,
		PageSize: pageSize,
	}
	if filter.Group != "" && !models.IsValidGroup(filter.Group) {
		return dto.FeedbackListResponse{}, validationError("unknown group %q", filter.Group)
	}
	if req.TeacherID > 0 {
		filter.TeacherID = &req.TeacherID
	}
	if code := strings.TrimSpace(req.StudentID); code != "" {
		student, err := s.store.Repos().Students.GetByBusinessID(ctx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.FeedbackListResponse{Items: []dto.FeedbackResponse{}, Pagination: dto.NewPaginationMeta(page, pageSize, 0)}, nil
			}
			return dto.FeedbackListResponse{}, err
		}
		filter.StudentID = &student.ID
	}

	if filter.TeacherID == nil && filter.StudentID == nil && filter.Group == "" && filter.Keyword == "" && filter.From == nil && filter.To == nil {
		from, to := weekBounds(s.now())
		filter.From, filter.To = &from, &to
	}

	rows, total, err := s.store.Repos().Feedback.Monitor(ctx, filter)
	if err != nil {
		return dto.FeedbackListResponse{}, err
	}
	return dto.FeedbackListResponse{
		Items:      dto.NewFeedbackResponseSlice(rows),
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

// weekBounds returns Monday 00:00 of the week containing t and the following Monday.
func weekBounds(t time.Time) (time.Time, time.Time) {
	offset := (int(t.Weekday()) + 6) % 7
	start := time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 7)
}
