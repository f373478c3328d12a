package dto

import (
	"time"

	"github.com/noah-isme/tutordesk-api/internal/models"
	"github.com/noah-isme/tutordesk-api/internal/progress"
)

// FeedbackItemRequest is one row of a bulk feedback submission.
type FeedbackItemRequest struct {
	StudentID      string `json:"student_id" validate:"required,max=50"`
	LessonProgress string `json:"lesson_progress" validate:"required,max=200"`
	TeacherComment string `json:"teacher_comment" validate:"required,max=5000"`
}

// SubmitFeedbackRequest carries a batch of feedback rows.
type SubmitFeedbackRequest struct {
	Feedbacks []FeedbackItemRequest `json:"feedbacks" validate:"required,min=1,max=200,dive"`
}

// SubmitFeedbackResponse reports what a batch submission created.
type SubmitFeedbackResponse struct {
	FeedbackIDs    []uint `json:"feedback_ids"`
	Count          int    `json:"count"`
	CompletedTasks int64  `json:"completed_tasks"`
}

// ManualFeedbackRequest records feedback for a student matched by name.
type ManualFeedbackRequest struct {
	StudentName    string `json:"student_name" validate:"required,max=100"`
	LessonProgress string `json:"lesson_progress" validate:"required,max=200"`
	TeacherComment string `json:"teacher_comment" validate:"required,max=5000"`
}

// ManualFeedbackResponse reports the matched student and the resulting progress.
type ManualFeedbackResponse struct {
	FeedbackID      uint              `json:"feedback_id"`
	StudentID       string            `json:"student_id"`
	StudentName     string            `json:"student_name"`
	Progress        []progress.Marker `json:"progress"`
	CurrentProgress progress.Marker   `json:"current_progress"`
}

// PushRequest selects feedback rows to hand over to another department. Rows can be
// picked by feedback id or by student business id.
type PushRequest struct {
	FeedbackIDs []uint   `json:"feedback_ids" validate:"omitempty,dive,gt=0"`
	StudentIDs  []string `json:"student_ids" validate:"omitempty,dive,required"`
	Note        string   `json:"note" validate:"required,max=5000"`
}

// PushResponse reports how many rows took the note.
type PushResponse struct {
	Updated         int64    `json:"updated"`
	OpsTasksCreated int      `json:"ops_tasks_created,omitempty"`
	OpsTaskIDs      []string `json:"ops_task_ids,omitempty"`
}

// FeedbackResponse serializes a feedback row.
type FeedbackResponse struct {
	ID             uint              `json:"id"`
	ReplyTime      time.Time         `json:"reply_time"`
	StudentID      uint              `json:"student_id"`
	StudentCode    string            `json:"student_code"`
	StudentName    string            `json:"student_name"`
	TeacherID      uint              `json:"teacher_id"`
	TeacherName    string            `json:"teacher_name"`
	LessonProgress []progress.Marker `json:"lesson_progress"`
	TeacherComment string            `json:"teacher_comment"`
	PushResearch   string            `json:"push_research"`
	PushOps        string            `json:"push_ops"`
}

// NewFeedbackResponse converts a feedback model into a DTO.
func NewFeedbackResponse(model models.Feedback) FeedbackResponse {
	return FeedbackResponse{
		ID:             model.ID,
		ReplyTime:      model.ReplyTime,
		StudentID:      model.StudentID,
		StudentCode:    model.StudentCode,
		StudentName:    model.StudentName,
		TeacherID:      model.TeacherID,
		TeacherName:    model.TeacherName,
		LessonProgress: model.Delta(),
		TeacherComment: model.TeacherComment,
		PushResearch:   model.PushResearch,
		PushOps:        model.PushOps,
	}
}

// NewFeedbackResponseSlice converts a list of feedback rows.
func NewFeedbackResponseSlice(rows []models.Feedback) []FeedbackResponse {
	items := make([]FeedbackResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, NewFeedbackResponse(row))
	}
	return items
}

// FeedbackListResponse wraps a paginated feedback listing.
type FeedbackListResponse struct {
	Items      []FeedbackResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

// FeedbackMonitorRequest defines the researcher monitoring filters.
type FeedbackMonitorRequest struct {
	Page      int
	PageSize  int
	TeacherID uint
	StudentID string
	Group     string
	Keyword   string
	From      *time.Time
	To        *time.Time
}
