package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/tutordesk-api/internal/progress"
)

const (
	StudentStatusJoined    = "joined"
	StudentStatusActive    = "active"
	StudentStatusGraduated = "graduated"
	StudentStatusArchived  = "archived"
)

const (
	GroupBasic        = "basic"
	GroupIntermediate = "intermediate"
	GroupAdvanced     = "advanced"
	GroupEarTraining  = "ear_training"
)

// Attention flag provenance.
const (
	DifficultySourceSystem     = "system"
	DifficultySourceTeacher    = "teacher"
	DifficultySourceResearcher = "researcher"
)

const (
	LearningStatusNormal    = "normal"
	LearningStatusAttention = "attention"
	LearningStatusExcellent = "excellent"
	LearningStatusNew       = "new"
)

// StudentGroups lists the enrollment tracks a student may belong to.
var StudentGroups = []string{GroupBasic, GroupIntermediate, GroupAdvanced, GroupEarTraining}

// Student is the aggregate root for lesson progress, role notes and the attention flag.
type Student struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	BusinessID        string         `gorm:"size:50;uniqueIndex;not null" json:"student_id"`
	ExternalUserID    string         `gorm:"size:100;uniqueIndex;not null" json:"external_user_id"`
	Name              string         `gorm:"column:student_name;size:100;index;not null" json:"student_name"`
	AliasName         string         `gorm:"size:100" json:"alias_name"`
	Groups            datatypes.JSON `gorm:"column:groups_json;type:json" json:"-"`
	Progress          datatypes.JSON `gorm:"column:progress_json;type:json" json:"-"`
	LearningProgress  int            `gorm:"not null;default:0" json:"learning_progress"`
	Status            string         `gorm:"size:20;index;not null" json:"status"`
	LearningHours     float64        `json:"learning_hours"`
	TotalStudyTime    float64        `json:"total_study_time"`
	ResearchNote      string         `gorm:"type:text" json:"research_note"`
	OpsNote           string         `gorm:"type:text" json:"ops_note"`
	IsDifficult       bool           `gorm:"index;not null" json:"is_difficult"`
	DifficultySource  string         `gorm:"size:20" json:"difficulty_source"`
	LearningStatus    string         `gorm:"size:20;index" json:"learning_status"`
	AssignedTeacherID *uint          `json:"assigned_teacher_id"`
	AssignedTeacher   *User          `gorm:"foreignKey:AssignedTeacherID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// FormatBusinessID renders the business identifier assigned to a freshly created student.
func FormatBusinessID(id uint) string {
	return fmt.Sprintf("S%04d", id)
}

// IsValidGroup reports whether group is a known enrollment track.
func IsValidGroup(group string) bool {
	for _, known := range StudentGroups {
		if group == known {
			return true
		}
	}
	return false
}

// SetGroups serializes the enrollment tracks, dropping duplicates.
func (s *Student) SetGroups(groups []string) {
	unique := make([]string, 0, len(groups))
	seen := make(map[string]struct{}, len(groups))
	for _, group := range groups {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		if _, ok := seen[group]; ok {
			continue
		}
		seen[group] = struct{}{}
		unique = append(unique, group)
	}

	data, err := json.Marshal(unique)
	if err != nil {
		s.Groups = datatypes.JSON([]byte("[]"))
		return
	}
	s.Groups = datatypes.JSON(data)
}

// GroupList deserializes the enrollment tracks.
func (s Student) GroupList() []string {
	if len(s.Groups) == 0 {
		return []string{}
	}
	var groups []string
	if err := json.Unmarshal(s.Groups, &groups); err != nil {
		return []string{}
	}
	return groups
}

// DecodeProgress deserializes the stored lesson history.
func (s Student) DecodeProgress() ([]progress.Marker, error) {
	if len(s.Progress) == 0 {
		return []progress.Marker{}, nil
	}
	var markers []progress.Marker
	if err := json.Unmarshal(s.Progress, &markers); err != nil {
		return nil, err
	}
	if markers == nil {
		markers = []progress.Marker{}
	}
	return markers, nil
}

// ProgressMarkers is the history for display. An unreadable history renders empty.
func (s Student) ProgressMarkers() []progress.Marker {
	markers, err := s.DecodeProgress()
	if err != nil {
		return []progress.Marker{}
	}
	return markers
}

// SetProgress replaces the stored lesson history.
func (s *Student) SetProgress(markers []progress.Marker) {
	if markers == nil {
		markers = []progress.Marker{}
	}
	data, err := json.Marshal(markers)
	if err != nil {
		s.Progress = datatypes.JSON([]byte("[]"))
		return
	}
	s.Progress = datatypes.JSON(data)
}

// SetLearningProgress updates the cached lesson counter.
func (s *Student) SetLearningProgress(counter int) {
	s.LearningProgress = counter
}

// CurrentProgress returns the furthest lesson reached.
func (s Student) CurrentProgress() progress.Marker {
	return progress.Current(s.ProgressMarkers())
}

// CoursePercent is the coarse completion percentage derived from the counter.
func (s Student) CoursePercent() int {
	return progress.CoursePercent(s.LearningProgress)
}

// AssignedTeacherName returns the assigned teacher's name when the relation is loaded.
func (s Student) AssignedTeacherName() string {
	if s.AssignedTeacher == nil {
		return ""
	}
	return s.AssignedTeacher.DisplayName()
}

// GroupFilterPattern is the LIKE pattern matching a group inside the JSON column.
func GroupFilterPattern(group string) string {
	return `%"` + group + `"%`
}
