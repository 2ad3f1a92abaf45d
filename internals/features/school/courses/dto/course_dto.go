package dto

import (
	"time"

	"drivingschool_backend/internals/features/school/courses/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateCourseRequest struct {
	Name          string          `json:"course_name" validate:"required,max=150"`
	Description   *string         `json:"course_description"`
	Price         decimal.Decimal `json:"course_price"`
	DurationWeeks int             `json:"course_duration_weeks" validate:"omitempty,min=1,max=104"`
}

func (r CreateCourseRequest) ToModel() model.CourseModel {
	weeks := r.DurationWeeks
	if weeks == 0 {
		weeks = 4
	}
	return model.CourseModel{
		CourseName:          r.Name,
		CourseDescription:   r.Description,
		CoursePrice:         r.Price.Round(2),
		CourseDurationWeeks: weeks,
		CourseIsActive:      true,
	}
}

type EnrollRequest struct {
	StartDate *time.Time `json:"start_date"`
	// StudentID lets staff enroll someone else; students always enroll themselves.
	StudentID *uuid.UUID `json:"student_id"`
}

type EnrollmentResponse struct {
	model.EnrollmentModel
	CourseName  string          `json:"course_name"`
	CoursePrice decimal.Decimal `json:"course_price"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

func NewEnrollmentResponse(e model.EnrollmentModel, c model.CourseModel) EnrollmentResponse {
	return EnrollmentResponse{
		EnrollmentModel: e,
		CourseName:      c.CourseName,
		CoursePrice:     c.CoursePrice,
		Outstanding:     Outstanding(c.CoursePrice, e.EnrollmentTotalPaid),
	}
}

// Outstanding never goes below zero.
func Outstanding(price, paid decimal.Decimal) decimal.Decimal {
	out := price.Sub(paid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}
