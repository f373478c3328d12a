package service

import (
	"context"
	"errors"
	"strings"
	"time"

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

// TaskCompleter closes the open assignments of a student and teacher inside a caller's transaction.
type TaskCompleter interface {
	CompleteActiveTasksFor(ctx context.Context, tx repository.Repositories, studentID, teacherID uint, at time.Time) (int64, error)
}

// TeachingTaskService manages the researcher-to-teacher assignment lifecycle.
type TeachingTaskService interface {
	TaskCompleter
	Assign(ctx context.Context, actor Actor, studentID, teacherID uint, note string) (dto.TaskResponse, bool, error)
	AssignBatch(ctx context.Context, actor Actor, req dto.AssignTasksRequest) (dto.AssignTasksResponse, error)
	Start(ctx context.Context, actor Actor, taskID string) (dto.TaskResponse, error)
	Cancel(ctx context.Context, actor Actor, req dto.CancelTasksRequest) (int64, error)
	CancelByStudents(ctx context.Context, actor Actor, studentIDs []string) (int64, error)
	Delete(ctx context.Context, actor Actor, taskID string) error
	ListActiveForTeacher(ctx context.Context, actor Actor) ([]dto.TeacherTaskResponse, error)
	History(ctx context.Context, actor Actor, req dto.TaskHistoryRequest) (dto.TaskListResponse, error)
	TeacherStats(ctx context.Context, actor Actor) ([]dto.TeacherSummaryResponse, error)
}

type teachingTaskService struct {
	store     repository.Store
	validator *validator.Validate
	stats     *StatsCache
	effects   effects
	tracer    trace.Tracer
	logger    zerolog.Logger
	now       func() time.Time
}

// NewTeachingTaskService constructs the teaching task service.
func NewTeachingTaskService(store repository.Store, validate *validator.Validate, stats *StatsCache, activity ActivityRecorder, events EventPublisher, logger zerolog.Logger) TeachingTaskService {
	logger = logger.With().Str("component", "teaching_task_service").Logger()
	return &teachingTaskService{
		store:     store,
		validator: validate,
		stats:     stats,
		effects:   effects{activity: activity, events: events, logger: logger},
		tracer:    otel.Tracer("github.com/noah-isme/tutordesk-api/internal/service/teaching_task"),
		logger:    logger,
		now:       time.Now,
	}
}

func newTaskID() string {
	return "TASK_" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func (s *teachingTaskService) Assign(ctx context.Context, actor Actor, studentID, teacherID uint, note string) (dto.TaskResponse, bool, error) {
	if err := requireRole(actor, models.RoleResearcher); err != nil {
		return dto.TaskResponse{}, false, err
	}

	repos := s.store.Repos()
	student, err := repos.Students.GetByID(ctx, studentID)
	if err != nil {
		return dto.TaskResponse{}, false, notFound(err, ErrStudentNotFound)
	}
	teacher, err := s.loadTeacher(ctx, repos, teacherID)
	if err != nil {
		return dto.TaskResponse{}, false, err
	}

	var (
		task    models.TeachingTask
		created bool
	)
	err = s.store.WithinTransaction(ctx, func(tx repository.Repositories) error {
		var assignErr error
		task, created, assignErr = s.assignWithin(ctx, tx, actor, student, teacher, cleanText(note))
		return assignErr
	})
	if err != nil {
		return dto.TaskResponse{}, false, err
	}

	s.afterAssign(ctx, actor, []models.TeachingTask{task}, boolToInt(created))

	response := dto.NewTaskResponse(task)
	response.Created = &created
	return response, created, nil
}

func (s *teachingTaskService) AssignBatch(ctx context.Context, actor Actor, req dto.AssignTasksRequest) (dto.AssignTasksResponse, error) {
	if err := requireRole(actor, models.RoleResearcher); err != nil {
		return dto.AssignTasksResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.AssignTasksResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "tasks.assign_batch", trace.WithAttributes(
		attribute.Int64("task.teacher_id", int64(req.TeacherID)),
		attribute.Int("task.count", len(req.Tasks)),
	))
	defer span.End()

	repos := s.store.Repos()
	teacher, err := s.loadTeacher(ctx, repos, req.TeacherID)
	if err != nil {
		span.RecordError(err)
		return dto.AssignTasksResponse{}, err
	}

	students := make([]models.Student, 0, len(req.Tasks))
	for _, item := range req.Tasks {
		student, err := repos.Students.GetByBusinessID(ctx, strings.TrimSpace(item.StudentID))
		if err != nil {
			return dto.AssignTasksResponse{}, notFound(err, ErrStudentNotFound)
		}
		students = append(students, student)
	}

	tasks := make([]models.TeachingTask, 0, len(students))
	flags := make([]bool, 0, len(students))
	err = s.store.WithinTransaction(ctx, func(tx repository.Repositories) error {
		for idx, student := range students {
			task, created, err := s.assignWithin(ctx, tx, actor, student, teacher, cleanText(req.Tasks[idx].TaskNote))
			if err != nil {
				return err
			}
			tasks = append(tasks, task)
			flags = append(flags, created)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assign_failed")
		return dto.AssignTasksResponse{}, err
	}

	response := dto.AssignTasksResponse{Items: make([]dto.TaskResponse, 0, len(tasks))}
	for idx, task := range tasks {
		created := flags[idx]
		item := dto.NewTaskResponse(task)
		item.Created = &created
		response.Items = append(response.Items, item)
		if created {
			response.Created++
		} else {
			response.Existing++
		}
	}

	s.afterAssign(ctx, actor, tasks, response.Created)
	return response, nil
}

// assignWithin returns the open task for the pair when one exists. A concurrent insert that
// wins the unique index is resolved by reading the winner.
func (s *teachingTaskService) assignWithin(ctx context.Context, tx repository.Repositories, actor Actor, student models.Student, teacher models.User, note string) (models.TeachingTask, bool, error) {
	existing, err := tx.Tasks.FindActive(ctx, student.ID, teacher.ID)
	if err == nil {
		existing.Student = student
		existing.Teacher = teacher
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.TeachingTask{}, false, err
	}

	task := models.TeachingTask{
		TaskID:       newTaskID(),
		StudentID:    student.ID,
		TeacherID:    teacher.ID,
		ResearcherID: actor.ID,
		TaskNote:     note,
		Status:       models.TaskStatusPending,
		AssignedAt:   s.now(),
	}
	if err := tx.Tasks.Create(ctx, &task); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.TeachingTask{}, false, err
		}
		winner, findErr := tx.Tasks.FindActive(ctx, student.ID, teacher.ID)
		if findErr != nil {
			return models.TeachingTask{}, false, err
		}
		winner.Student = student
		winner.Teacher = teacher
		return winner, false, nil
	}

	task.Student = student
	task.Teacher = teacher
	task.Researcher = models.User{ID: actor.ID, RealName: actor.Name}
	return task, true, nil
}

func (s *teachingTaskService) afterAssign(ctx context.Context, actor Actor, tasks []models.TeachingTask, created int) {
	if created == 0 {
		return
	}

	observability.TaskTransitions().WithLabelValues(models.TaskStatusPending).Add(float64(created))
	s.stats.Invalidate(ctx)

	taskIDs := make([]string, 0, len(tasks))
	for _, task := range tasks {
		taskIDs = append(taskIDs, task.TaskID)
	}
	metadata := map[string]interface{}{"task_ids": taskIDs, "created": created}
	s.effects.record(ctx, actor, string(models.RoleResearcher), "task.assigned", "teaching_task", nil, metadata)
	s.effects.publish(ctx, actor, EventTaskAssigned, metadata)
}

func (s *teachingTaskService) loadTeacher(ctx context.Context, repos repository.Repositories, teacherID uint) (models.User, error) {
	teacher, err := repos.Users.GetByID(ctx, teacherID)
	if err != nil {
		return models.User{}, notFound(err, ErrTeacherNotFound)
	}
	if !teacher.HasRole(models.RoleTeacher) || !teacher.IsActive {
		return models.User{}, ErrNotATeacher
	}
	return teacher, nil
}

func (s *teachingTaskService) Start(ctx context.Context, actor Actor, taskID string) (dto.TaskResponse, error) {
	if err := requireRole(actor, models.RoleTeacher); err != nil {
		return dto.TaskResponse{}, err
	}

	repos := s.store.Repos()
	task, err := repos.Tasks.GetByTaskID(ctx, taskID)
	if err != nil {
		return dto.TaskResponse{}, notFound(err, ErrTaskNotFound)
	}
	if task.TeacherID != actor.ID {
		return dto.TaskResponse{}, ErrNotTaskOwner
	}

	updated, err := repos.Tasks.Transition(ctx, taskID, []string{models.TaskStatusPending}, models.TaskStatusInProgress)
	if err != nil {
		return dto.TaskResponse{}, err
	}
	if updated == 0 {
		return dto.TaskResponse{}, ErrTaskNotActive
	}

	observability.TaskTransitions().WithLabelValues(models.TaskStatusInProgress).Inc()
	s.stats.Invalidate(ctx)
	s.effects.record(ctx, actor, string(models.RoleTeacher), "task.started", "teaching_task", uintPtr(task.ID), map[string]interface{}{"task_id": taskID})
	s.effects.publish(ctx, actor, EventTaskChanged, map[string]interface{}{"task_id": taskID, "status": models.TaskStatusInProgress})

	task.Status = models.TaskStatusInProgress
	return dto.NewTaskResponse(task), nil
}

func (s *teachingTaskService) CompleteActiveTasksFor(ctx context.Context, tx repository.Repositories, studentID, teacherID uint, at time.Time) (int64, error) {
	return tx.Tasks.CompleteActive(ctx, studentID, teacherID, at)
}

func (s *teachingTaskService) Cancel(ctx context.Context, actor Actor, req dto.CancelTasksRequest) (int64, error) {
	if err := requireRole(actor, models.RoleTeacher); err != nil {
		return 0, err
	}
	if err := s.validator.Struct(req); err != nil {
		return 0, err
	}
	if len(req.TaskIDs) == 0 && len(req.StudentIDs) == 0 {
		return 0, ErrEmptySelection
	}

	studentIDs := make([]uint, 0, len(req.StudentIDs))
	repos := s.store.Repos()
	for _, code := range req.StudentIDs {
		student, err := repos.Students.GetByBusinessID(ctx, strings.TrimSpace(code))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return 0, err
		}
		studentIDs = append(studentIDs, student.ID)
	}

	var cancelled int64
	err := s.store.WithinTransaction(ctx, func(tx repository.Repositories) error {
		byTask, err := tx.Tasks.CancelActive(ctx, actor.ID, req.TaskIDs)
		if err != nil {
			return err
		}
		byStudent, err := tx.Tasks.CancelActiveByStudents(ctx, actor.ID, studentIDs)
		if err != nil {
			return err
		}
		cancelled = byTask + byStudent
		return nil
	})
	if err != nil {
		return 0, err
	}

	if cancelled > 0 {
		observability.TaskTransitions().WithLabelValues(models.TaskStatusCancelled).Add(float64(cancelled))
		s.stats.Invalidate(ctx)
		metadata := map[string]interface{}{"task_ids": req.TaskIDs, "student_ids": req.StudentIDs, "cancelled": cancelled}
		s.effects.record(ctx, actor, string(models.RoleTeacher), "task.cancelled", "teaching_task", nil, metadata)
		s.effects.publish(ctx, actor, EventTaskChanged, map[string]interface{}{"status": models.TaskStatusCancelled, "count": cancelled})
	}
	return cancelled, nil
}

func (s *teachingTaskService) CancelByStudents(ctx context.Context, actor Actor, studentIDs []string) (int64, error) {
	return s.Cancel(ctx, actor, dto.CancelTasksRequest{StudentIDs: studentIDs})
}

func (s *teachingTaskService) Delete(ctx context.Context, actor Actor, taskID string) error {
	if err := requireRole(actor, models.RoleResearcher); err != nil {
		return err
	}

	deleted, err := s.store.Repos().Tasks.Delete(ctx, taskID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrTaskNotFound
	}

	s.stats.Invalidate(ctx)
	s.effects.record(ctx, actor, string(models.RoleResearcher), "task.deleted", "teaching_task", nil, map[string]interface{}{"task_id": taskID})
	return nil
}

func (s *teachingTaskService) ListActiveForTeacher(ctx context.Context, actor Actor) ([]dto.TeacherTaskResponse, error) {
	if err := requireRole(actor, models.RoleTeacher); err != nil {
		return nil, err
	}

	tasks, err := s.store.Repos().Tasks.ListActiveForTeacher(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	items := make([]dto.TeacherTaskResponse, 0, len(tasks))
	for _, task := range tasks {
		task.Teacher = models.User{ID: actor.ID, RealName: actor.Name}
		items = append(items, dto.NewTeacherTaskResponse(task))
	}
	return items, nil
}

func (s *teachingTaskService) History(ctx context.Context, actor Actor, req dto.TaskHistoryRequest) (dto.TaskListResponse, error) {
	if err := requireRole(actor, models.RoleResearcher); err != nil {
		return dto.TaskListResponse{}, err
	}

	filter, err := taskFilterFrom(req)
	if err != nil {
		return dto.TaskListResponse{}, err
	}
	filter.Page, filter.PageSize = normalizePage(req.Page, req.PageSize)

	tasks, total, err := s.store.Repos().Tasks.History(ctx, filter)
	if err != nil {
		return dto.TaskListResponse{}, err
	}

	items := make([]dto.TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, dto.NewTaskResponse(task))
	}
	return dto.TaskListResponse{Items: items, Pagination: dto.NewPaginationMeta(filter.Page, filter.PageSize, total)}, nil
}

func taskFilterFrom(req dto.TaskHistoryRequest) (repository.TaskFilter, error) {
	filter := repository.TaskFilter{Page: req.Page, PageSize: req.PageSize, From: req.From, To: req.To}
	if req.TeacherID > 0 {
		filter.TeacherID = &req.TeacherID
	}
	if status := strings.TrimSpace(req.Status); status != "" {
		switch status {
		case models.TaskStatusPending, models.TaskStatusInProgress, models.TaskStatusCompleted, models.TaskStatusCancelled:
			filter.Status = status
		default:
			return repository.TaskFilter{}, ErrInvalidStatus
		}
	}
	return filter, nil
}

func (s *teachingTaskService) TeacherStats(ctx context.Context, actor Actor) ([]dto.TeacherSummaryResponse, error) {
	if err := requireRole(actor, models.RoleResearcher, models.RoleAdmin); err != nil {
		return nil, err
	}

	var cached []dto.TeacherSummaryResponse
	if s.stats.load(ctx, &cached) {
		s.logger.Debug().Msg("teacher stats cache hit")
		return cached, nil
	}

	repos := s.store.Repos()
	teachers, _, err := repos.Users.List(ctx, repository.UserFilter{Role: models.RoleTeacher, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	stats, err := repos.Tasks.StatsByTeacher(ctx)
	if err != nil {
		return nil, err
	}

	byTeacher := make(map[uint]repository.TeacherTaskStats, len(stats))
	for _, row := range stats {
		byTeacher[row.TeacherID] = row
	}

	summaries := make([]dto.TeacherSummaryResponse, 0, len(teachers))
	for _, teacher := range teachers {
		row := byTeacher[teacher.ID]
		summaries = append(summaries, dto.TeacherSummaryResponse{
			ID:       teacher.ID,
			Username: teacher.Username,
			RealName: teacher.RealName,
			Stats: dto.TeacherStatsResponse{
				Total:            row.Total,
				Pending:          row.Pending,
				InProgress:       row.InProgress,
				Completed:        row.Completed,
				Cancelled:        row.Cancelled,
				DistinctStudents: row.DistinctStudents,
			},
		})
	}

	s.stats.store(ctx, summaries)
	return summaries, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
