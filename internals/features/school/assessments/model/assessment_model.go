package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AssessmentType string

const (
	AssessmentTheoryTest    AssessmentType = "theory_test"
	AssessmentPracticalEval AssessmentType = "practical_eval"
	AssessmentFinalExam     AssessmentType = "final_exam"
	AssessmentProgressCheck AssessmentType = "progress_check"
	AssessmentNTSATheory    AssessmentType = "ntsa_theory"
	AssessmentNTSAPractical AssessmentType = "ntsa_practical"
)

// PassingPercentage is the share of max_score needed to pass.
var PassingPercentage = decimal.NewFromInt(60)

type AssessmentModel struct {
	AssessmentID uuid.UUID `gorm:"column:assessment_id;type:uuid;primaryKey" json:"assessment_id"`

	AssessmentEnrollmentID uuid.UUID  `gorm:"column:assessment_enrollment_id;type:uuid;not null;index:idx_assessments_enrollment_date,priority:1" json:"assessment_enrollment_id"`
	AssessmentInstructorID uuid.UUID  `gorm:"column:assessment_instructor_id;type:uuid;not null;index" json:"assessment_instructor_id"`
	AssessmentLessonID     *uuid.UUID `gorm:"column:assessment_lesson_id;type:uuid" json:"assessment_lesson_id,omitempty"`

	AssessmentType     AssessmentType  `gorm:"column:assessment_type;type:varchar(30);not null" json:"assessment_type"`
	AssessmentScore    decimal.Decimal `gorm:"column:assessment_score;type:numeric(6,2);not null" json:"assessment_score"`
	AssessmentMaxScore decimal.Decimal `gorm:"column:assessment_max_score;type:numeric(6,2);not null;default:100" json:"assessment_max_score"`
	AssessmentPassed   bool            `gorm:"column:assessment_passed;not null" json:"assessment_passed"`
	AssessmentNotes    *string         `gorm:"column:assessment_notes" json:"assessment_notes,omitempty"`
	AssessmentDate     time.Time       `gorm:"column:assessment_date;not null;index:idx_assessments_enrollment_date,priority:2,sort:desc" json:"assessment_date"`

	// NTSA test booking
	AssessmentBookingReference *string `gorm:"column:assessment_booking_reference;size:50" json:"assessment_booking_reference,omitempty"`
	AssessmentTestCenter       *string `gorm:"column:assessment_test_center;size:120" json:"assessment_test_center,omitempty"`

	AssessmentCreatedAt time.Time      `gorm:"column:assessment_created_at;autoCreateTime" json:"assessment_created_at"`
	AssessmentUpdatedAt time.Time      `gorm:"column:assessment_updated_at;autoUpdateTime" json:"assessment_updated_at"`
	AssessmentDeletedAt gorm.DeletedAt `gorm:"column:assessment_deleted_at;index" json:"-"`
}

func (AssessmentModel) TableName() string { return "assessments" }

func (m *AssessmentModel) BeforeCreate(tx *gorm.DB) error {
	if m.AssessmentID == uuid.Nil {
		m.AssessmentID = uuid.New()
	}
	return nil
}

// ScoreError returns "" when score is within [0, max] and max is positive.
func ScoreError(score, max decimal.Decimal) string {
	switch {
	case score.IsNegative():
		return "Score cannot be negative"
	case !max.IsPositive():
		return "Maximum score must be greater than zero"
	case score.GreaterThan(max):
		return fmt.Sprintf("Score (%s) cannot exceed maximum score (%s)", score.String(), max.String())
	}
	return ""
}

// Passed: score/max reaches PassingPercentage.
func Passed(score, max decimal.Decimal) bool {
	if !max.IsPositive() {
		return false
	}
	return score.Mul(decimal.NewFromInt(100)).GreaterThanOrEqual(max.Mul(PassingPercentage))
}
