package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/tutordesk-api/internal/progress"
)

// Feedback is one teacher's dated comment on a student's lesson. Only the two push
// fields change after creation.
type Feedback struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ReplyTime      time.Time      `gorm:"not null;index:idx_feedback_student_reply,priority:2;index:idx_feedback_teacher_reply,priority:2" json:"reply_time"`
	StudentID      uint           `gorm:"not null;index:idx_feedback_student_reply,priority:1" json:"student_id"`
	StudentCode    string         `gorm:"size:50" json:"student_code"`
	StudentName    string         `gorm:"size:100" json:"student_name"`
	TeacherID      uint           `gorm:"not null;index:idx_feedback_teacher_reply,priority:1" json:"teacher_id"`
	TeacherName    string         `gorm:"size:50" json:"teacher_name"`
	Progress       datatypes.JSON `gorm:"column:progress_json;type:json" json:"-"`
	TeacherComment string         `gorm:"type:text" json:"teacher_comment"`
	PushResearch   string         `gorm:"type:text" json:"push_research"`
	PushOps        string         `gorm:"type:text" json:"push_ops"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Student        Student        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Teacher        User           `gorm:"foreignKey:TeacherID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// TableName keeps the singular table name used by existing reports.
func (Feedback) TableName() string {
	return "feedback"
}

// SetDelta stores the lesson markers exactly as submitted.
func (f *Feedback) SetDelta(markers []progress.Marker) {
	data, err := json.Marshal(markers)
	if err != nil {
		f.Progress = datatypes.JSON([]byte("[]"))
		return
	}
	f.Progress = datatypes.JSON(data)
}

// Delta returns the submitted lesson markers.
func (f Feedback) Delta() []progress.Marker {
	if len(f.Progress) == 0 {
		return []progress.Marker{}
	}
	var markers []progress.Marker
	if err := json.Unmarshal(f.Progress, &markers); err != nil {
		return []progress.Marker{}
	}
	return markers
}

// IsPushedToResearch reports whether the research push has already happened.
func (f Feedback) IsPushedToResearch() bool {
	return f.PushResearch != ""
}

// IsPushedToOps reports whether the operations push has already happened.
func (f Feedback) IsPushedToOps() bool {
	return f.PushOps != ""
}
