package dto

import (
	"time"

	"github.com/noah-isme/tutordesk-api/internal/models"
	"github.com/noah-isme/tutordesk-api/internal/progress"
)

// StudentResponse serializes a student with its derived progress fields.
type StudentResponse struct {
	ID                uint              `json:"id"`
	StudentID         string            `json:"student_id"`
	ExternalUserID    string            `json:"external_user_id"`
	StudentName       string            `json:"student_name"`
	AliasName         string            `json:"alias_name"`
	Groups            []string          `json:"groups"`
	Progress          []progress.Marker `json:"progress"`
	CurrentProgress   progress.Marker   `json:"current_progress"`
	LearningProgress  int               `json:"learning_progress"`
	CoursePercent     int               `json:"course_progress"`
	Status            string            `json:"status"`
	LearningHours     float64           `json:"learning_hours"`
	TotalStudyTime    float64           `json:"total_study_time"`
	ResearchNote      string            `json:"research_note"`
	OpsNote           string            `json:"ops_note"`
	IsDifficult       bool              `json:"is_difficult"`
	DifficultySource  string            `json:"difficulty_source"`
	LearningStatus    string            `json:"learning_status"`
	AssignedTeacherID *uint             `json:"assigned_teacher_id"`
	AssignedTeacher   string            `json:"assigned_teacher"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// NewStudentResponse converts a student model into a DTO.
func NewStudentResponse(student models.Student) StudentResponse {
	return StudentResponse{
		ID:                student.ID,
		StudentID:         student.BusinessID,
		ExternalUserID:    student.ExternalUserID,
		StudentName:       student.Name,
		AliasName:         student.AliasName,
		Groups:            student.GroupList(),
		Progress:          student.ProgressMarkers(),
		CurrentProgress:   student.CurrentProgress(),
		LearningProgress:  student.LearningProgress,
		CoursePercent:     student.CoursePercent(),
		Status:            student.Status,
		LearningHours:     student.LearningHours,
		TotalStudyTime:    student.TotalStudyTime,
		ResearchNote:      student.ResearchNote,
		OpsNote:           student.OpsNote,
		IsDifficult:       student.IsDifficult,
		DifficultySource:  student.DifficultySource,
		LearningStatus:    student.LearningStatus,
		AssignedTeacherID: student.AssignedTeacherID,
		AssignedTeacher:   student.AssignedTeacherName(),
		CreatedAt:         student.CreatedAt,
		UpdatedAt:         student.UpdatedAt,
	}
}

// StudentSearchItem is a compact search hit.
type StudentSearchItem struct {
	ID              uint            `json:"id"`
	StudentID       string          `json:"student_id"`
	ExternalUserID  string          `json:"external_user_id"`
	StudentName     string          `json:"student_name"`
	AliasName       string          `json:"alias_name"`
	Groups          []string        `json:"groups"`
	CurrentProgress progress.Marker `json:"current_progress"`
	IsDifficult     bool            `json:"is_difficult"`
}

// NewStudentSearchItem converts a student model into a search hit.
func NewStudentSearchItem(student models.Student) StudentSearchItem {
	return StudentSearchItem{
		ID:              student.ID,
		StudentID:       student.BusinessID,
		ExternalUserID:  student.ExternalUserID,
		StudentName:     student.Name,
		AliasName:       student.AliasName,
		Groups:          student.GroupList(),
		CurrentProgress: student.CurrentProgress(),
		IsDifficult:     student.IsDifficult,
	}
}

// StudentCreateRequest captures payloads for registering a student.
type StudentCreateRequest struct {
	ExternalUserID    string   `json:"external_user_id" validate:"required,max=100"`
	StudentName       string   `json:"student_name" validate:"required,max=100"`
	AliasName         string   `json:"alias_name" validate:"omitempty,max=100"`
	Groups            []string `json:"groups" validate:"omitempty,dive,oneof=basic intermediate advanced ear_training"`
	Status            string   `json:"status" validate:"omitempty,oneof=joined active graduated archived"`
	LearningHours     float64  `json:"learning_hours" validate:"gte=0"`
	TotalStudyTime    float64  `json:"total_study_time" validate:"gte=0"`
	OpsNote           string   `json:"ops_note" validate:"omitempty,max=5000"`
	AssignedTeacherID *uint    `json:"assigned_teacher_id" validate:"omitempty,gt=0"`
}

// StudentUpdateRequest captures partial updates. Identifiers are not accepted.
type StudentUpdateRequest struct {
	StudentName       *string  `json:"student_name" validate:"omitempty,min=1,max=100"`
	AliasName         *string  `json:"alias_name" validate:"omitempty,max=100"`
	Groups            []string `json:"groups" validate:"omitempty,dive,oneof=basic intermediate advanced ear_training"`
	Status            *string  `json:"status" validate:"omitempty,oneof=joined active graduated archived"`
	LearningHours     *float64 `json:"learning_hours" validate:"omitempty,gte=0"`
	TotalStudyTime    *float64 `json:"total_study_time" validate:"omitempty,gte=0"`
	OpsNote           *string  `json:"ops_note" validate:"omitempty,max=5000"`
	AssignedTeacherID *uint    `json:"assigned_teacher_id" validate:"omitempty,gt=0"`
	LearningStatus    *string  `json:"learning_status" validate:"omitempty,oneof=normal excellent new"`
}

// StudentListRequest defines filters for the operations student listing.
type StudentListRequest struct {
	Page     int
	PageSize int
	Search   string
	Status   string
	Group    string
	Sort     string
	Order    string
}

// StudentListResponse wraps a paginated student listing.
type StudentListResponse struct {
	Items      []StudentResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// StudentDetailResponse adds recent activity to a student.
type StudentDetailResponse struct {
	Student        StudentResponse       `json:"student"`
	RecentFeedback []FeedbackResponse    `json:"recent_feedback"`
	RecentVisits   []VisitRecordResponse `json:"recent_visits"`
	OpsTaskCount   int64                 `json:"ops_task_count"`
}

// NoteRequest overwrites a role-owned note. An empty note clears it.
type NoteRequest struct {
	Note string `json:"note" validate:"max=5000"`
}

// AttentionRequest sets or clears the attention flag.
type AttentionRequest struct {
	IsDifficult *bool  `json:"is_difficult" validate:"required"`
	Source      string `json:"source" validate:"max=32"`
}

// AttentionStudentResponse is a flagged student with its latest feedback.
type AttentionStudentResponse struct {
	StudentResponse
	LatestComment   string     `json:"latest_comment"`
	LatestTeacher   string     `json:"latest_teacher"`
	LatestReplyTime *time.Time `json:"latest_reply_time"`
}

// StudentImportResponse summarises a roster import.
type StudentImportResponse struct {
	Total   int      `json:"total"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}
