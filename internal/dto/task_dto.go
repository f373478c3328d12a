package dto

import (
	"time"

	"github.com/noah-isme/tutordesk-api/internal/models"
	"github.com/noah-isme/tutordesk-api/internal/progress"
)

// AssignTaskItem names one student for an assignment batch.
type AssignTaskItem struct {
	StudentID string `json:"student_id" validate:"required,max=50"`
	TaskNote  string `json:"task_note" validate:"omitempty,max=2000"`
}

// AssignTasksRequest assigns students to one teacher.
type AssignTasksRequest struct {
	TeacherID uint             `json:"teacher_id" validate:"required,gt=0"`
	Tasks     []AssignTaskItem `json:"tasks" validate:"required,min=1,max=200,dive"`
}

// TaskResponse serializes a teaching task.
type TaskResponse struct {
	ID             uint       `json:"id"`
	TaskID         string     `json:"task_id"`
	StudentID      uint       `json:"student_id"`
	StudentCode    string     `json:"student_code"`
	StudentName    string     `json:"student_name"`
	TeacherID      uint       `json:"teacher_id"`
	TeacherName    string     `json:"teacher_name"`
	ResearcherID   uint       `json:"researcher_id"`
	ResearcherName string     `json:"researcher_name"`
	TaskNote       string     `json:"task_note"`
	Status         string     `json:"status"`
	AssignedAt     time.Time  `json:"assigned_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	Created        *bool      `json:"created,omitempty"`
}

// NewTaskResponse converts a task with its loaded relations into a DTO.
func NewTaskResponse(task models.TeachingTask) TaskResponse {
	return TaskResponse{
		ID:             task.ID,
		TaskID:         task.TaskID,
		StudentID:      task.StudentID,
		StudentCode:    task.Student.BusinessID,
		StudentName:    task.Student.Name,
		TeacherID:      task.TeacherID,
		TeacherName:    task.Teacher.DisplayName(),
		ResearcherID:   task.ResearcherID,
		ResearcherName: task.Researcher.DisplayName(),
		TaskNote:       task.TaskNote,
		Status:         task.Status,
		AssignedAt:     task.AssignedAt,
		CompletedAt:    task.CompletedAt,
	}
}

// AssignTasksResponse reports an assignment batch.
type AssignTasksResponse struct {
	Items    []TaskResponse `json:"items"`
	Created  int            `json:"created"`
	Existing int            `json:"existing"`
}

// TeacherTaskResponse is an active task as seen by its teacher, with the student's state.
type TeacherTaskResponse struct {
	TaskResponse
	Groups           []string        `json:"groups"`
	CurrentProgress  progress.Marker `json:"current_progress"`
	LearningProgress int             `json:"learning_progress"`
	CoursePercent    int             `json:"course_progress"`
	IsDifficult      bool            `json:"is_difficult"`
	ResearchNote     string          `json:"research_note"`
	OpsNote          string          `json:"ops_note"`
}

// NewTeacherTaskResponse converts an active task with its student into a DTO.
func NewTeacherTaskResponse(task models.TeachingTask) TeacherTaskResponse {
	return TeacherTaskResponse{
		TaskResponse:     NewTaskResponse(task),
		Groups:           task.Student.GroupList(),
		CurrentProgress:  task.Student.CurrentProgress(),
		LearningProgress: task.Student.LearningProgress,
		CoursePercent:    task.Student.CoursePercent(),
		IsDifficult:      task.Student.IsDifficult,
		ResearchNote:     task.Student.ResearchNote,
		OpsNote:          task.Student.OpsNote,
	}
}

// CancelTasksRequest cancels tasks by task id or by student business id.
type CancelTasksRequest struct {
	TaskIDs    []string `json:"task_ids" validate:"omitempty,dive,required"`
	StudentIDs []string `json:"student_ids" validate:"omitempty,dive,required"`
}

// CountResponse reports how many rows an operation changed.
type CountResponse struct {
	Count int64 `json:"count"`
}

// TaskHistoryRequest defines the researcher history filters.
type TaskHistoryRequest struct {
	Page      int
	PageSize  int
	TeacherID uint
	Status    string
	From      *time.Time
	To        *time.Time
}

// TaskListResponse wraps a paginated task listing.
type TaskListResponse struct {
	Items      []TaskResponse `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// TeacherStatsResponse aggregates assignment counts for one teacher.
type TeacherStatsResponse struct {
	Total            int64 `json:"total"`
	Pending          int64 `json:"pending"`
	InProgress       int64 `json:"in_progress"`
	Completed        int64 `json:"completed"`
	Cancelled        int64 `json:"cancelled"`
	DistinctStudents int64 `json:"distinct_students"`
}

// TeacherSummaryResponse lists a teacher with assignment totals.
type TeacherSummaryResponse struct {
	ID       uint                 `json:"id"`
	Username string               `json:"username"`
	RealName string               `json:"real_name"`
	Stats    TeacherStatsResponse `json:"stats"`
}
