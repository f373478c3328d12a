package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/tutordesk-api/internal/dto"
	"github.com/noah-isme/tutordesk-api/internal/models"
	"github.com/noah-isme/tutordesk-api/internal/repository"
	"github.com/noah-isme/tutordesk-api/pkg/spreadsheet"
)

const recentDetailItems = 5

// StudentSearchConfig bounds the quick search.
type StudentSearchConfig struct {
	MinLength int
	Limit     int
}

// StudentService manages student records for operations staff.
type StudentService interface {
	Search(ctx context.Context, actor Actor, term string) ([]dto.StudentSearchItem, error)
	Create(ctx context.Context, actor Actor, req dto.StudentCreateRequest) (dto.StudentResponse, error)
	Update(ctx context.Context, actor Actor, id uint, req dto.StudentUpdateRequest) (dto.StudentResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.StudentDetailResponse, error)
	List(ctx context.Context, actor Actor, req dto.StudentListRequest) (dto.StudentListResponse, error)
	Import(ctx context.Context, actor Actor, data []byte) (dto.StudentImportResponse, error)
	Archive(ctx context.Context, actor Actor, id uint) error
}

type studentService struct {
	store     repository.Store
	validator *validator.Validate
	search    StudentSearchConfig
	effects   effects
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(store repository.Store, validate *validator.Validate, search StudentSearchConfig, activity ActivityRecorder, events EventPublisher, logger zerolog.Logger) StudentService {
	if search.MinLength <= 0 {
		search.MinLength = 2
	}
	if search.Limit <= 0 {
		search.Limit = 20
	}
	logger = logger.With().Str("component", "student_service").Logger()
	return &studentService{
		store:     store,
		validator: validate,
		search:    search,
		effects:   effects{activity: activity, events: events, logger: logger},
		tracer:    otel.Tracer("github.com/noah-isme/tutordesk-api/internal/service/student"),
		logger:    logger,
	}
}

func (s *studentService) Search(ctx context.Context, actor Actor, term string) ([]dto.StudentSearchItem, error) {
	if err := requireRole(actor, models.AllRoles...); err != nil {
		return nil, err
	}

	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < s.search.MinLength {
		return []dto.StudentSearchItem{}, nil
	}

	students, err := s.store.Repos().Students.Search(ctx, term, s.search.Limit)
	if err != nil {
		return nil, err
	}

	items := make([]dto.StudentSearchItem, 0, len(students))
	for _, student := range students {
		items = append(items, dto.NewStudentSearchItem(student))
	}
	return items, nil
}

func (s *studentService) Create(ctx context.Context, actor Actor, req dto.StudentCreateRequest) (dto.StudentResponse, error) {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return dto.StudentResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.StudentResponse{}, err
	}

	repos := s.store.Repos()
	if req.AssignedTeacherID != nil {
		if err := s.checkTeacher(ctx, repos, *req.AssignedTeacherID); err != nil {
			return dto.StudentResponse{}, err
		}
	}

	student := models.Student{
		ExternalUserID:    strings.TrimSpace(req.ExternalUserID),
		Name:              cleanText(req.StudentName),
		AliasName:         cleanText(req.AliasName),
		Status:            req.Status,
		LearningHours:     req.LearningHours,
		TotalStudyTime:    req.TotalStudyTime,
		OpsNote:           cleanText(req.OpsNote),
		LearningStatus:    models.LearningStatusNew,
		AssignedTeacherID: req.AssignedTeacherID,
	}
	if student.Name == "" {
		return dto.StudentResponse{}, validationError("student_name must not be empty")
	}
	if student.Status == "" {
		student.Status = models.StudentStatusJoined
	}
	groups := req.Groups
	if len(groups) == 0 {
		groups = []string{models.GroupBasic}
	}
	student.SetGroups(groups)
	student.SetProgress(nil)

	if err := repos.Students.Create(ctx, &student); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.StudentResponse{}, ErrDuplicateStudent
		}
		return dto.StudentResponse{}, err
	}

	metadata := map[string]interface{}{"student_id": student.BusinessID, "external_user_id": student.ExternalUserID}
	s.effects.record(ctx, actor, string(models.RoleOperator), "student.created", "student", uintPtr(student.ID), metadata)
	s.effects.publish(ctx, actor, EventStudentUpdated, metadata)

	return dto.NewStudentResponse(student), nil
}

func (s *studentService) checkTeacher(ctx context.Context, repos repository.Repositories, teacherID uint) error {
	teacher, err := repos.Users.GetByID(ctx, teacherID)
	if err != nil {
		return notFound(err, ErrTeacherNotFound)
	}
	if !teacher.HasRole(models.RoleTeacher) {
		return ErrNotATeacher
	}
	return nil
}

func (s *studentService) Update(ctx context.Context, actor Actor, id uint, req dto.StudentUpdateRequest) (dto.StudentResponse, error) {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return dto.StudentResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.StudentResponse{}, err
	}

	repos := s.store.Repos()
	updates := make(map[string]interface{})
	changed := make([]string, 0)

	if req.StudentName != nil {
		name := cleanText(*req.StudentName)
		if name == "" {
			return dto.StudentResponse{}, validationError("student_name must not be empty")
		}
		updates["student_name"] = name
		changed = append(changed, "student_name")
	}
	if req.AliasName != nil {
		updates["alias_name"] = cleanText(*req.AliasName)
		changed = append(changed, "alias_name")
	}
	if req.Groups != nil {
		var holder models.Student
		holder.SetGroups(req.Groups)
		updates["groups_json"] = holder.Groups
		changed = append(changed, "groups")
	}
	if req.Status != nil {
		updates["status"] = *req.Status
		changed = append(changed, "status")
	}
	if req.LearningHours != nil {
		updates["learning_hours"] = *req.LearningHours
		changed = append(changed, "learning_hours")
	}
	if req.TotalStudyTime != nil {
		updates["total_study_time"] = *req.TotalStudyTime
		changed = append(changed, "total_study_time")
	}
	if req.OpsNote != nil {
		updates["ops_note"] = cleanText(*req.OpsNote)
		changed = append(changed, "ops_note")
	}
	if req.LearningStatus != nil {
		updates["learning_status"] = *req.LearningStatus
		changed = append(changed, "learning_status")
	}
	if req.AssignedTeacherID != nil {
		if err := s.checkTeacher(ctx, repos, *req.AssignedTeacherID); err != nil {
			return dto.StudentResponse{}, err
		}
		updates["assigned_teacher_id"] = *req.AssignedTeacherID
		changed = append(changed, "assigned_teacher_id")
	}

	if len(updates) > 0 {
		if err := repos.Students.UpdateFields(ctx, id, updates); err != nil {
			return dto.StudentResponse{}, notFound(err, ErrStudentNotFound)
		}
	}

	student, err := repos.Students.GetByID(ctx, id)
	if err != nil {
		return dto.StudentResponse{}, notFound(err, ErrStudentNotFound)
	}

	if len(changed) > 0 {
		metadata := map[string]interface{}{"student_id": student.BusinessID, "fields": changed}
		s.effects.record(ctx, actor, string(models.RoleOperator), "student.updated", "student", uintPtr(student.ID), metadata)
		s.effects.publish(ctx, actor, EventStudentUpdated, metadata)
	}
	return dto.NewStudentResponse(student), nil
}

func (s *studentService) Get(ctx context.Context, actor Actor, id uint) (dto.StudentDetailResponse, error) {
	if err := requireRole(actor, models.RoleOperator, models.RoleResearcher); err != nil {
		return dto.StudentDetailResponse{}, err
	}

	repos := s.store.Repos()
	student, err := repos.Students.GetByID(ctx, id)
	if err != nil {
		return dto.StudentDetailResponse{}, notFound(err, ErrStudentNotFound)
	}

	feedback, err := repos.Feedback.RecentForStudent(ctx, id, recentDetailItems)
	if err != nil {
		return dto.StudentDetailResponse{}, err
	}
	visits, _, err := repos.Visits.List(ctx, repository.VisitFilter{StudentID: &id, Page: 1, PageSize: recentDetailItems})
	if err != nil {
		return dto.StudentDetailResponse{}, err
	}
	opsCount, err := repos.OpsTasks.CountForStudent(ctx, id)
	if err != nil {
		return dto.StudentDetailResponse{}, err
	}

	recentVisits := make([]dto.VisitRecordResponse, 0, len(visits))
	for _, visit := range visits {
		recentVisits = append(recentVisits, dto.NewVisitRecordResponse(visit))
	}

	return dto.StudentDetailResponse{
		Student:        dto.NewStudentResponse(student),
		RecentFeedback: dto.NewFeedbackResponseSlice(feedback),
		RecentVisits:   recentVisits,
		OpsTaskCount:   opsCount,
	}, nil
}

func (s *studentService) List(ctx context.Context, actor Actor, req dto.StudentListRequest) (dto.StudentListResponse, error) {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return dto.StudentListResponse{}, err
	}

	page, pageSize := normalizePage(req.Page, req.PageSize)
	filter := repository.StudentFilter{
		Search:   strings.TrimSpace(req.Search),
		Status:   strings.TrimSpace(req.Status),
		Group:    strings.TrimSpace(req.Group),
		Sort:     req.Sort,
		Order:    req.Order,
		Page:     page,
		PageSize: pageSize,
	}
	if filter.Group != "" && !models.IsValidGroup(filter.Group) {
		return dto.StudentListResponse{}, validationError("unknown group %q", filter.Group)
	}
	filter.IncludeArchived = filter.Status == models.StudentStatusArchived

	students, total, err := s.store.Repos().Students.List(ctx, filter)
	if err != nil {
		return dto.StudentListResponse{}, err
	}

	items := make([]dto.StudentResponse, 0, len(students))
	for _, student := range students {
		items = append(items, dto.NewStudentResponse(student))
	}
	return dto.StudentListResponse{Items: items, Pagination: dto.NewPaginationMeta(page, pageSize, total)}, nil
}

// Import creates or renames students from a roster workbook. Each row stands alone, so one bad
// row does not discard the rest.
func (s *studentService) Import(ctx context.Context, actor Actor, data []byte) (dto.StudentImportResponse, error) {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return dto.StudentImportResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "students.import", trace.WithAttributes(attribute.Int("import.bytes", len(data))))
	defer span.End()

	if mime, err := spreadsheet.Detect(data); err != nil {
		return dto.StudentImportResponse{}, validationError("unsupported file type %s", mime)
	}
	rows, skipped, err := spreadsheet.ParseStudentRows(data)
	if err != nil {
		if errors.Is(err, spreadsheet.ErrMissingColumns) || errors.Is(err, spreadsheet.ErrEmptyWorkbook) {
			return dto.StudentImportResponse{}, validationError("%v", err)
		}
		return dto.StudentImportResponse{}, err
	}

	result := dto.StudentImportResponse{Total: len(rows) + len(skipped), Skipped: len(skipped), Errors: []string{}}
	for _, row := range skipped {
		result.Errors = append(result.Errors, fmt.Sprintf("row %d: missing %s", row, spreadsheet.HeaderExternalID))
	}

	students := s.store.Repos().Students
	for _, row := range rows {
		name := cleanText(row.Name)
		if name == "" {
			name = row.ExternalID
		}

		existing, err := students.GetByExternalID(ctx, row.ExternalID)
		switch {
		case err == nil:
			if existing.Name == name {
				continue
			}
			if err := students.UpdateFields(ctx, existing.ID, map[string]interface{}{"student_name": name}); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", row.Row, err))
				continue
			}
			result.Updated++
		case errors.Is(err, gorm.ErrRecordNotFound):
			student := models.Student{
				ExternalUserID: row.ExternalID,
				Name:           name,
				Status:         models.StudentStatusJoined,
				LearningStatus: models.LearningStatusNew,
			}
			student.SetGroups([]string{models.GroupBasic})
			student.SetProgress(nil)
			if err := students.Create(ctx, &student); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", row.Row, err))
				continue
			}
			result.Created++
		default:
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", row.Row, err))
		}
	}

	s.logger.Info().Int("created", result.Created).Int("updated", result.Updated).Int("errors", len(result.Errors)).Msg("student import finished")
	metadata := map[string]interface{}{"total": result.Total, "created": result.Created, "updated": result.Updated, "skipped": result.Skipped}
	s.effects.record(ctx, actor, string(models.RoleOperator), "student.imported", "student", nil, metadata)
	if result.Created+result.Updated > 0 {
		s.effects.publish(ctx, actor, EventStudentUpdated, metadata)
	}
	return result, nil
}

func (s *studentService) Archive(ctx context.Context, actor Actor, id uint) error {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return err
	}

	err := s.store.Repos().Students.UpdateFields(ctx, id, map[string]interface{}{"status": models.StudentStatusArchived})
	if err != nil {
		return notFound(err, ErrStudentNotFound)
	}

	s.effects.record(ctx, actor, string(models.RoleOperator), "student.archived", "student", uintPtr(id), nil)
	s.effects.publish(ctx, actor, EventStudentUpdated, map[string]interface{}{"id": id, "status": models.StudentStatusArchived})
	return nil
}
