package dto

import (
	"strings"
	"time"

	"drivingschool_backend/internals/features/school/assessments/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateAssessmentRequest struct {
	EnrollmentID uuid.UUID `json:"enrollment_id" validate:"required"`
	// InstructorID defaults to the caller when the caller is an instructor.
	InstructorID     *uuid.UUID      `json:"instructor_id"`
	LessonID         *uuid.UUID      `json:"lesson_id"`
	Type             string          `json:"assessment_type" validate:"required,oneof=theory_test practical_eval final_exam progress_check ntsa_theory ntsa_practical"`
	Score            decimal.Decimal `json:"score"`
	MaxScore         decimal.Decimal `json:"max_score"`
	Notes            *string         `json:"notes" validate:"omitempty,max=2000"`
	AssessmentDate   *time.Time      `json:"assessment_date"`
	BookingReference *string         `json:"booking_reference" validate:"omitempty,max=50"`
	TestCenter       *string         `json:"test_center" validate:"omitempty,max=120"`
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func (r CreateAssessmentRequest) ToModel(instructorID uuid.UUID, now time.Time) model.AssessmentModel {
	at := now.UTC()
	if r.AssessmentDate != nil {
		at = r.AssessmentDate.UTC()
	}
	score, max := r.Score.Round(2), r.MaxScore.Round(2)
	return model.AssessmentModel{
		AssessmentEnrollmentID:     r.EnrollmentID,
		AssessmentInstructorID:     instructorID,
		AssessmentLessonID:         r.LessonID,
		AssessmentType:             model.AssessmentType(r.Type),
		AssessmentScore:            score,
		AssessmentMaxScore:         max,
		AssessmentPassed:           model.Passed(score, max),
		AssessmentNotes:            trimmed(r.Notes),
		AssessmentDate:             at,
		AssessmentBookingReference: trimmed(r.BookingReference),
		AssessmentTestCenter:       trimmed(r.TestCenter),
	}
}

// UpdateAssessmentRequest is a PATCH. Passed is only honoured when neither
// score nor max_score changes; otherwise it is recomputed.
type UpdateAssessmentRequest struct {
	Score    *decimal.Decimal `json:"score"`
	MaxScore *decimal.Decimal `json:"max_score"`
	Notes    *string          `json:"notes" validate:"omitempty,max=2000"`
	Passed   *bool            `json:"passed"`
}

// Apply returns a non-empty message when the resulting score is invalid;
// the model is left untouched in that case.
func (r UpdateAssessmentRequest) Apply(m *model.AssessmentModel) string {
	if r.Score != nil || r.MaxScore != nil {
		score, max := m.AssessmentScore, m.AssessmentMaxScore
		if r.Score != nil {
			score = r.Score.Round(2)
		}
		if r.MaxScore != nil {
			max = r.MaxScore.Round(2)
		}
		if msg := model.ScoreError(score, max); msg != "" {
			return msg
		}
		m.AssessmentScore, m.AssessmentMaxScore = score, max
		m.AssessmentPassed = model.Passed(score, max)
	} else if r.Passed != nil {
		m.AssessmentPassed = *r.Passed
	}
	if r.Notes != nil {
		m.AssessmentNotes = trimmed(r.Notes)
	}
	return ""
}
