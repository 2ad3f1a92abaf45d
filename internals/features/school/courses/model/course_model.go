package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CourseModel struct {
	CourseID uuid.UUID `gorm:"column:course_id;type:uuid;primaryKey" json:"course_id"`

	CourseName          string          `gorm:"column:course_name;size:150;not null" json:"course_name"`
	CourseDescription   *string         `gorm:"column:course_description" json:"course_description,omitempty"`
	CoursePrice         decimal.Decimal `gorm:"column:course_price;type:numeric(12,2);not null" json:"course_price"`
	CourseDurationWeeks int             `gorm:"column:course_duration_weeks;not null;default:4" json:"course_duration_weeks"`
	CourseIsActive      bool            `gorm:"column:course_is_active;not null;default:true" json:"course_is_active"`

	CourseCreatedAt time.Time      `gorm:"column:course_created_at;autoCreateTime" json:"course_created_at"`
	CourseUpdatedAt time.Time      `gorm:"column:course_updated_at;autoUpdateTime" json:"course_updated_at"`
	CourseDeletedAt gorm.DeletedAt `gorm:"column:course_deleted_at;index" json:"-"`
}

func (CourseModel) TableName() string { return "courses" }

func (m *CourseModel) BeforeCreate(tx *gorm.DB) error {
	if m.CourseID == uuid.Nil {
		m.CourseID = uuid.New()
	}
	return nil
}
