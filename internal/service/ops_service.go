package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/tutordesk-api/internal/dto"
	"github.com/noah-isme/tutordesk-api/internal/models"
	"github.com/noah-isme/tutordesk-api/internal/repository"
)

// OpsService runs the operations follow-up queue and its visit log.
type OpsService interface {
	ListTasks(ctx context.Context, actor Actor, req dto.OpsTaskListRequest) (dto.OpsTaskListResponse, error)
	AddManual(ctx context.Context, actor Actor, req dto.OpsTaskCreateRequest) (dto.OpsTaskResponse, error)
	UpdateStatus(ctx context.Context, actor Actor, taskID string, req dto.OpsTaskUpdateRequest) (dto.OpsTaskResponse, error)
	CreateVisit(ctx context.Context, actor Actor, req dto.VisitRecordCreateRequest) (dto.VisitRecordResponse, error)
	ListVisits(ctx context.Context, actor Actor, req dto.VisitListRequest) (dto.VisitListResponse, error)
}

type opsService struct {
	store     repository.Store
	validator *validator.Validate
	effects   effects
	logger    zerolog.Logger
	now       func() time.Time
}

// NewOpsService constructs the operations service.
func NewOpsService(store repository.Store, validate *validator.Validate, activity ActivityRecorder, events EventPublisher, logger zerolog.Logger) OpsService {
	logger = logger.With().Str("component", "ops_service").Logger()
	return &opsService{
		store:     store,
		validator: validate,
		effects:   effects{activity: activity, events: events, logger: logger},
		logger:    logger,
		now:       time.Now,
	}
}

func newVisitRecordID() string {
	return "VR" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

func (s *opsService) ListTasks(ctx context.Context, actor Actor, req dto.OpsTaskListRequest) (dto.OpsTaskListResponse, error) {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return dto.OpsTaskListResponse{}, err
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)
	filter := repository.OpsTaskFilter{
		Source:        strings.TrimSpace(req.Source),
		Search:        strings.TrimSpace(req.Search),
		IncludeClosed: req.IncludeClosed,
		Page:          page,
		PageSize:      pageSize,
	}
	if status := strings.TrimSpace(req.Status); status != "" {
		code, ok := models.NormalizeOpsStatus(status)
		if !ok {
			return dto.OpsTaskListResponse{}, ErrInvalidStatus
		}
		filter.Status = code
	}

	tasks, total, err := s.store.Repos().OpsTasks.List(ctx, filter)
	if err != nil {
		return dto.OpsTaskListResponse{}, err
	}

	items := make([]dto.OpsTaskResponse, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, dto.NewOpsTaskResponse(task))
	}
	return dto.OpsTaskListResponse{Items: items, Pagination: dto.NewPaginationMeta(page, pageSize, total)}, nil
}

func (s *opsService) AddManual(ctx context.Context, actor Actor, req dto.OpsTaskCreateRequest) (dto.OpsTaskResponse, error) {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return dto.OpsTaskResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.OpsTaskResponse{}, err
	}

	var task models.OpsTask
	err := s.store.WithinTransaction(ctx, func(tx repository.Repositories) error {
		student, err := tx.Students.GetByBusinessID(ctx, strings.TrimSpace(req.StudentID))
		if err != nil {
			return notFound(err, ErrStudentNotFound)
		}
		if _, err := tx.Students.GetForUpdate(ctx, student.ID); err != nil {
			return err
		}

		open, err := tx.OpsTasks.HasOpen(ctx, student.ID)
		if err != nil {
			return err
		}
		if open {
			return ErrOpenOpsTask
		}

		task = models.OpsTask{
			TaskID:      newOpsTaskID(student.BusinessID),
			StudentID:   student.ID,
			StudentName: student.Name,
			Source:      models.OpsSourceManual,
			TaskStatus:  models.OpsStatusPending,
		}
		return tx.OpsTasks.Create(ctx, &task)
	})
	if err != nil {
		return dto.OpsTaskResponse{}, err
	}

	metadata := map[string]interface{}{"task_id": task.TaskID, "source": task.Source}
	s.effects.record(ctx, actor, string(models.RoleOperator), "ops_task.created", "ops_task", uintPtr(task.ID), metadata)
	s.effects.publish(ctx, actor, EventOpsTaskOpened, metadata)
	return dto.NewOpsTaskResponse(task), nil
}

// UpdateStatus changes a follow-up status. Notes are logged as a visit and bump the visit count.
func (s *opsService) UpdateStatus(ctx context.Context, actor Actor, taskID string, req dto.OpsTaskUpdateRequest) (dto.OpsTaskResponse, error) {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return dto.OpsTaskResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.OpsTaskResponse{}, err
	}
	status, ok := models.NormalizeOpsStatus(strings.TrimSpace(req.Status))
	if !ok {
		return dto.OpsTaskResponse{}, ErrInvalidStatus
	}
	notes := cleanText(req.Notes)

	var task models.OpsTask
	err := s.store.WithinTransaction(ctx, func(tx repository.Repositories) error {
		current, err := tx.OpsTasks.GetByTaskID(ctx, taskID)
		if err != nil {
			return notFound(err, ErrOpsTaskNotFound)
		}

		visited := notes != ""
		if err := tx.OpsTasks.UpdateStatus(ctx, current.ID, status, visited); err != nil {
			return err
		}
		if visited {
			record := models.VisitRecord{
				RecordID:    newVisitRecordID(),
				StudentID:   current.StudentID,
				StudentName: current.StudentName,
				VisitTime:   s.now(),
				VisitStatus: status,
				VisitCount:  current.VisitCount + 1,
				TeacherName: cleanText(req.TeacherName),
				VisitNote:   notes,
				OperatorID:  actor.ID,
			}
			if err := tx.Visits.Create(ctx, &record); err != nil {
				return err
			}
		}

		task, err = tx.OpsTasks.GetByTaskID(ctx, taskID)
		return err
	})
	if err != nil {
		return dto.OpsTaskResponse{}, err
	}

	s.effects.record(ctx, actor, string(models.RoleOperator), "ops_task.updated", "ops_task", uintPtr(task.ID), map[string]interface{}{
		"task_id": task.TaskID,
		"status":  status,
		"visited": notes != "",
	})
	return dto.NewOpsTaskResponse(task), nil
}

func (s *opsService) CreateVisit(ctx context.Context, actor Actor, req dto.VisitRecordCreateRequest) (dto.VisitRecordResponse, error) {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return dto.VisitRecordResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.VisitRecordResponse{}, err
	}
	status, ok := models.NormalizeOpsStatus(strings.TrimSpace(req.VisitStatus))
	if !ok {
		return dto.VisitRecordResponse{}, ErrInvalidStatus
	}

	var record models.VisitRecord
	err := s.store.WithinTransaction(ctx, func(tx repository.Repositories) error {
		student, err := tx.Students.GetByBusinessID(ctx, strings.TrimSpace(req.StudentID))
		if err != nil {
			return notFound(err, ErrStudentNotFound)
		}
		previous, err := tx.Visits.CountForStudent(ctx, student.ID)
		if err != nil {
			return err
		}

		visitTime := s.now()
		if req.VisitTime != nil {
			visitTime = *req.VisitTime
		}
		record = models.VisitRecord{
			RecordID:    newVisitRecordID(),
			StudentID:   student.ID,
			StudentName: student.Name,
			VisitTime:   visitTime,
			VisitStatus: status,
			VisitCount:  int(previous) + 1,
			TeacherName: cleanText(req.TeacherName),
			VisitNote:   cleanText(req.VisitNote),
			OperatorID:  actor.ID,
		}
		return tx.Visits.Create(ctx, &record)
	})
	if err != nil {
		return dto.VisitRecordResponse{}, err
	}

	s.effects.record(ctx, actor, string(models.RoleOperator), "visit.created", "visit_record", uintPtr(record.ID), map[string]interface{}{
		"record_id":  record.RecordID,
		"student_id": req.StudentID,
	})
	return dto.NewVisitRecordResponse(record), nil
}

func (s *opsService) ListVisits(ctx context.Context, actor Actor, req dto.VisitListRequest) (dto.VisitListResponse, error) {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return dto.VisitListResponse{}, err
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)
	filter := repository.VisitFilter{From: req.From, To: req.To, Page: page, PageSize: pageSize}
	if status := strings.TrimSpace(req.Status); status != "" {
		code, ok := models.NormalizeOpsStatus(status)
		if !ok {
			return dto.VisitListResponse{}, ErrInvalidStatus
		}
		filter.Status = code
	}
	if code := strings.TrimSpace(req.StudentID); code != "" {
		student, err := s.store.Repos().Students.GetByBusinessID(ctx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.VisitListResponse{Items: []dto.VisitRecordResponse{}, Pagination: dto.NewPaginationMeta(page, pageSize, 0)}, nil
			}
			return dto.VisitListResponse{}, err
		}
		filter.StudentID = &student.ID
	}

	records, total, err := s.store.Repos().Visits.List(ctx, filter)
	if err != nil {
		return dto.VisitListResponse{}, err
	}

	items := make([]dto.VisitRecordResponse, 0, len(records))
	for _, record := range records {
		items = append(items, dto.NewVisitRecordResponse(record))
	}
	return dto.VisitListResponse{Items: items, Pagination: dto.NewPaginationMeta(page, pageSize, total)}, nil
}
