package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type EnrollmentStatus string

const (
	EnrollmentPending   EnrollmentStatus = "pending"
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentDropped   EnrollmentStatus = "dropped"
)

// EnrollmentModel links a student to a course. TotalPaid is only ever
// changed by the payment engine, inside the same transaction as a payment
// status transition.
type EnrollmentModel struct {
	EnrollmentID uuid.UUID `gorm:"column:enrollment_id;type:uuid;primaryKey" json:"enrollment_id"`

	EnrollmentStudentID uuid.UUID        `gorm:"column:enrollment_student_id;type:uuid;not null;index" json:"enrollment_student_id"`
	EnrollmentCourseID  uuid.UUID        `gorm:"column:enrollment_course_id;type:uuid;not null;index" json:"enrollment_course_id"`
	EnrollmentStatus    EnrollmentStatus `gorm:"column:enrollment_status;type:varchar(20);not null;default:'active'" json:"enrollment_status"`
	EnrollmentStartDate time.Time        `gorm:"column:enrollment_start_date;not null" json:"enrollment_start_date"`
	EnrollmentTotalPaid decimal.Decimal  `gorm:"column:enrollment_total_paid;type:numeric(12,2);not null;default:0" json:"enrollment_total_paid"`

	EnrollmentCreatedAt time.Time      `gorm:"column:enrollment_created_at;autoCreateTime" json:"enrollment_created_at"`
	EnrollmentUpdatedAt time.Time      `gorm:"column:enrollment_updated_at;autoUpdateTime" json:"enrollment_updated_at"`
	EnrollmentDeletedAt gorm.DeletedAt `gorm:"column:enrollment_deleted_at;index" json:"-"`
}

func (EnrollmentModel) TableName() string { return "enrollments" }

func (m *EnrollmentModel) BeforeCreate(tx *gorm.DB) error {
	if m.EnrollmentID == uuid.Nil {
		m.EnrollmentID = uuid.New()
	}
	return nil
}

// IsOpen reports whether lessons may still be booked and payments taken.
func (m *EnrollmentModel) IsOpen() bool {
	return m.EnrollmentStatus == EnrollmentActive || m.EnrollmentStatus == EnrollmentPending
}
