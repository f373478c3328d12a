package models

import "time"

const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
)

// ActiveTaskStatuses are the statuses counted as an open assignment.
var ActiveTaskStatuses = []string{TaskStatusPending, TaskStatusInProgress}

// TeachingTask assigns one student to one teacher on behalf of a researcher.
type TeachingTask struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	TaskID       string     `gorm:"size:50;uniqueIndex;not null" json:"task_id"`
	StudentID    uint       `gorm:"not null;index:idx_task_student_assigned,priority:1" json:"student_id"`
	TeacherID    uint       `gorm:"not null;index:idx_task_teacher_status,priority:1" json:"teacher_id"`
	ResearcherID uint       `gorm:"not null" json:"researcher_id"`
	TaskNote     string     `gorm:"type:text" json:"task_note"`
	Status       string     `gorm:"size:20;not null;index:idx_task_teacher_status,priority:2" json:"status"`
	AssignedAt   time.Time  `gorm:"not null;index:idx_task_student_assigned,priority:2" json:"assigned_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Student      Student    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Teacher      User       `gorm:"foreignKey:TeacherID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Researcher   User       `gorm:"foreignKey:ResearcherID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsActive reports whether the task still awaits the teacher.
func (t TeachingTask) IsActive() bool {
	return t.Status == TaskStatusPending || t.Status == TaskStatusInProgress
}

// CanTransition reports whether the lifecycle allows moving from the current status to next.
func (t TeachingTask) CanTransition(next string) bool {
	switch t.Status {
	case TaskStatusPending:
		return next == TaskStatusInProgress || next == TaskStatusCompleted || next == TaskStatusCancelled
	case TaskStatusInProgress:
		return next == TaskStatusCompleted || next == TaskStatusCancelled
	default:
		return false
	}
}
