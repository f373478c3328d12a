package dto

import (
	"time"

	"github.com/noah-isme/tutordesk-api/internal/models"
)

// OpsTaskResponse serializes an operations follow-up task.
type OpsTaskResponse struct {
	ID          uint      `json:"id"`
	TaskID      string    `json:"task_id"`
	StudentID   uint      `json:"student_id"`
	StudentName string    `json:"student_name"`
	VisitCount  int       `json:"visit_count"`
	Source      string    `json:"source"`
	TaskStatus  string    `json:"task_status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewOpsTaskResponse converts an operations task into a DTO.
func NewOpsTaskResponse(task models.OpsTask) OpsTaskResponse {
	return OpsTaskResponse{
		ID:          task.ID,
		TaskID:      task.TaskID,
		StudentID:   task.StudentID,
		StudentName: task.StudentName,
		VisitCount:  task.VisitCount,
		Source:      task.Source,
		TaskStatus:  task.TaskStatus,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

// OpsTaskListRequest defines the operations queue filters.
type OpsTaskListRequest struct {
	Page          int
	PageSize      int
	Status        string
	Source        string
	Search        string
	IncludeClosed bool
}

// OpsTaskListResponse wraps a paginated operations queue.
type OpsTaskListResponse struct {
	Items      []OpsTaskResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// OpsTaskCreateRequest opens a manual follow-up for a student.
type OpsTaskCreateRequest struct {
	StudentID string `json:"student_id" validate:"required,max=50"`
}

// OpsTaskUpdateRequest changes a follow-up status. Notes log a visit.
type OpsTaskUpdateRequest struct {
	Status      string `json:"status" validate:"required"`
	Notes       string `json:"notes" validate:"omitempty,max=5000"`
	TeacherName string `json:"teacher_name" validate:"omitempty,max=50"`
}

// VisitRecordCreateRequest logs a contact with a student.
type VisitRecordCreateRequest struct {
	StudentID   string     `json:"student_id" validate:"required,max=50"`
	VisitStatus string     `json:"visit_status" validate:"required"`
	VisitNote   string     `json:"visit_note" validate:"omitempty,max=5000"`
	TeacherName string     `json:"teacher_name" validate:"omitempty,max=50"`
	VisitTime   *time.Time `json:"visit_time"`
}

// VisitRecordResponse serializes a visit record.
type VisitRecordResponse struct {
	ID          uint      `json:"id"`
	RecordID    string    `json:"record_id"`
	StudentID   uint      `json:"student_id"`
	StudentName string    `json:"student_name"`
	VisitTime   time.Time `json:"visit_time"`
	VisitStatus string    `json:"visit_status"`
	VisitCount  int       `json:"visit_count"`
	TeacherName string    `json:"teacher_name"`
	VisitNote   string    `json:"visit_note"`
	OperatorID  uint      `json:"operator_id"`
}

// NewVisitRecordResponse converts a visit record into a DTO.
func NewVisitRecordResponse(record models.VisitRecord) VisitRecordResponse {
	return VisitRecordResponse{
		ID:          record.ID,
		RecordID:    record.RecordID,
		StudentID:   record.StudentID,
		StudentName: record.StudentName,
		VisitTime:   record.VisitTime,
		VisitStatus: record.VisitStatus,
		VisitCount:  record.VisitCount,
		TeacherName: record.TeacherName,
		VisitNote:   record.VisitNote,
		OperatorID:  record.OperatorID,
	}
}

// VisitListRequest defines the visit record filters.
type VisitListRequest struct {
	Page      int
	PageSize  int
	StudentID string
	Status    string
	From      *time.Time
	To        *time.Time
}

// VisitListResponse wraps a paginated visit listing.
type VisitListResponse struct {
	Items      []VisitRecordResponse `json:"items"`
	Pagination PaginationMeta        `json:"pagination"`
}
