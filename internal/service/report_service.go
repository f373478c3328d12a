package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/tutordesk-api/internal/dto"
	"github.com/noah-isme/tutordesk-api/internal/models"
	"github.com/noah-isme/tutordesk-api/internal/repository"
	"github.com/noah-isme/tutordesk-api/pkg/spreadsheet"
)

const reportTimeLayout = "2006-01-02 15:04"

// Report is a rendered export.
type Report struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReportService renders workbook exports for researchers.
type ReportService interface {
	ExportTasks(ctx context.Context, actor Actor, req dto.TaskHistoryRequest) (Report, error)
}

type reportService struct {
	tasks  repository.TeachingTaskRepository
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewReportService constructs the report service.
func NewReportService(tasks repository.TeachingTaskRepository, logger zerolog.Logger) ReportService {
	return &reportService{
		tasks:  tasks,
		tracer: otel.Tracer("github.com/noah-isme/tutordesk-api/internal/service/report"),
		logger: logger.With().Str("component", "report_service").Logger(),
	}
}

func (s *reportService) ExportTasks(ctx context.Context, actor Actor, req dto.TaskHistoryRequest) (Report, error) {
	if err := requireRole(actor, models.RoleResearcher); err != nil {
		return Report{}, err
	}

	filter, err := taskFilterFrom(req)
	if err != nil {
		return Report{}, err
	}
	filter.Page, filter.PageSize = 0, 0

	ctx, span := s.tracer.Start(ctx, "reports.export_tasks")
	defer span.End()

	tasks, _, err := s.tasks.History(ctx, filter)
	if err != nil {
		span.RecordError(err)
		return Report{}, err
	}
	span.SetAttributes(attribute.Int("report.rows", len(tasks)))

	table := spreadsheet.Table{
		Sheet:   "tasks",
		Headers: []string{"task_id", "teacher", "assigned_at", "status", "student_id", "student_name", "researcher", "task_note", "completed_at"},
		Rows:    make([][]interface{}, 0, len(tasks)),
	}
	for _, task := range tasks {
		completed := ""
		if task.CompletedAt != nil {
			completed = task.CompletedAt.Format(reportTimeLayout)
		}
		table.Rows = append(table.Rows, []interface{}{
			task.TaskID,
			task.Teacher.DisplayName(),
			task.AssignedAt.Format(reportTimeLayout),
			task.Status,
			task.Student.BusinessID,
			task.Student.Name,
			task.Researcher.DisplayName(),
			task.TaskNote,
			completed,
		})
	}

	data, err := spreadsheet.Write(table)
	if err != nil {
		return Report{}, fmt.Errorf("render task export: %w", err)
	}

	s.logger.Info().Int("rows", len(tasks)).Uint("actor_id", actor.ID).Msg("task export rendered")
	return Report{
		Filename:    "teaching_tasks.xlsx",
		ContentType: spreadsheet.XLSXMime,
		Data:        data,
	}, nil
}
