package models

import "time"

// Operations follow-up statuses, shared by tasks and visit records.
const (
	OpsStatusPending   = "pending"
	OpsStatusContacted = "contacted"
	OpsStatusNoReply   = "no_reply"
	OpsStatusClosed    = "closed"
)

// Where an operations task came from.
const (
	OpsSourceTeacher  = "teacher"
	OpsSourceSystem   = "system"
	OpsSourceResearch = "research"
	OpsSourceManual   = "manual"
)

// OpenOpsStatuses are the statuses of an unfinished follow-up.
var OpenOpsStatuses = []string{OpsStatusPending, OpsStatusContacted, OpsStatusNoReply}

// OpsStatusLabels maps the labels used by the operations screens to status codes.
var OpsStatusLabels = map[string]string{
	"待办":  OpsStatusPending,
	"已联系": OpsStatusContacted,
	"未回复": OpsStatusNoReply,
	"已关闭": OpsStatusClosed,
}

// NormalizeOpsStatus accepts either a status code or its screen label.
func NormalizeOpsStatus(value string) (string, bool) {
	if code, ok := OpsStatusLabels[value]; ok {
		return code, true
	}
	switch value {
	case OpsStatusPending, OpsStatusContacted, OpsStatusNoReply, OpsStatusClosed:
		return value, true
	}
	return "", false
}

// OpsTask is an operations follow-up item keyed to a student.
type OpsTask struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TaskID      string    `gorm:"size:50;uniqueIndex;not null" json:"task_id"`
	StudentID   uint      `gorm:"not null;index:idx_ops_student_status,priority:1" json:"student_id"`
	StudentName string    `gorm:"size:100" json:"student_name"`
	VisitCount  int       `gorm:"not null;default:0" json:"visit_count"`
	Source      string    `gorm:"size:20;not null;index:idx_ops_source_created,priority:1" json:"source"`
	TaskStatus  string    `gorm:"size:20;not null;index:idx_ops_student_status,priority:2" json:"task_status"`
	CreatedAt   time.Time `gorm:"index:idx_ops_source_created,priority:2" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Student     Student   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// VisitRecord is one operations follow-up contact with a student.
type VisitRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RecordID    string    `gorm:"size:50;uniqueIndex;not null" json:"record_id"`
	StudentID   uint      `gorm:"not null;index:idx_visit_student_time,priority:1" json:"student_id"`
	StudentName string    `gorm:"size:100" json:"student_name"`
	VisitTime   time.Time `gorm:"not null;index:idx_visit_student_time,priority:2" json:"visit_time"`
	VisitStatus string    `gorm:"size:20;not null;index" json:"visit_status"`
	VisitCount  int       `gorm:"not null" json:"visit_count"`
	TeacherName string    `gorm:"size:50" json:"teacher_name"`
	VisitNote   string    `gorm:"type:text" json:"visit_note"`
	OperatorID  uint      `json:"operator_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Student     Student   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
