package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LessonStatus string

const (
	LessonScheduled  LessonStatus = "scheduled"
	LessonInProgress LessonStatus = "in_progress"
	LessonCompleted  LessonStatus = "completed"
	LessonCancelled  LessonStatus = "cancelled"
	LessonNoShow     LessonStatus = "no_show"
)

// BlockingStatuses occupy the instructor and vehicle.
var BlockingStatuses = []LessonStatus{LessonScheduled, LessonInProgress}

// lessonTransitions: a scheduled lesson may be completed, cancelled or marked
// no_show directly. in_progress is an optional step for instructors who start
// the lesson from the app; from there it can only finish or become a no_show.
// Terminal statuses have no outgoing edges.
var lessonTransitions = map[LessonStatus][]LessonStatus{
	LessonScheduled:  {LessonInProgress, LessonCompleted, LessonCancelled, LessonNoShow},
	LessonInProgress: {LessonCompleted, LessonNoShow},
}

func (s LessonStatus) Valid() bool {
	switch s {
	case LessonScheduled, LessonInProgress, LessonCompleted, LessonCancelled, LessonNoShow:
		return true
	}
	return false
}

func (s LessonStatus) IsTerminal() bool {
	return s == LessonCompleted || s == LessonCancelled || s == LessonNoShow
}

func (s LessonStatus) CanTransitionTo(to LessonStatus) bool {
	for _, allowed := range lessonTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

type LessonType string

const (
	LessonTheory    LessonType = "theory"
	LessonPractical LessonType = "practical"
	LessonExam      LessonType = "exam"
)

type LessonModel struct {
	LessonID uuid.UUID `gorm:"column:lesson_id;type:uuid;primaryKey" json:"lesson_id"`

	LessonEnrollmentID uuid.UUID  `gorm:"column:lesson_enrollment_id;type:uuid;not null;index" json:"lesson_enrollment_id"`
	LessonInstructorID uuid.UUID  `gorm:"column:lesson_instructor_id;type:uuid;not null;index:idx_lessons_instructor_window,priority:1" json:"lesson_instructor_id"`
	LessonVehicleID    *uuid.UUID `gorm:"column:lesson_vehicle_id;type:uuid;index:idx_lessons_vehicle_window,priority:1" json:"lesson_vehicle_id,omitempty"`

	LessonStartAt time.Time `gorm:"column:lesson_start_at;not null;index:idx_lessons_instructor_window,priority:2;index:idx_lessons_vehicle_window,priority:2" json:"lesson_start_at"`
	LessonEndAt   time.Time `gorm:"column:lesson_end_at;not null" json:"lesson_end_at"`

	LessonType   LessonType   `gorm:"column:lesson_type;type:varchar(20);not null;default:'practical'" json:"lesson_type"`
	LessonStatus LessonStatus `gorm:"column:lesson_status;type:varchar(20);not null;default:'scheduled';index" json:"lesson_status"`
	LessonNotes  *string      `gorm:"column:lesson_notes" json:"lesson_notes,omitempty"`

	LessonCreatedBy *uuid.UUID `gorm:"column:lesson_created_by;type:uuid" json:"lesson_created_by,omitempty"`

	LessonCreatedAt time.Time      `gorm:"column:lesson_created_at;autoCreateTime" json:"lesson_created_at"`
	LessonUpdatedAt time.Time      `gorm:"column:lesson_updated_at;autoUpdateTime" json:"lesson_updated_at"`
	LessonDeletedAt gorm.DeletedAt `gorm:"column:lesson_deleted_at;index" json:"-"`
}

func (LessonModel) TableName() string { return "lessons" }

func (m *LessonModel) BeforeCreate(tx *gorm.DB) error {
	if m.LessonID == uuid.Nil {
		m.LessonID = uuid.New()
	}
	return nil
}

func (m *LessonModel) DurationMinutes() int {
	return int(m.LessonEndAt.Sub(m.LessonStartAt) / time.Minute)
}
