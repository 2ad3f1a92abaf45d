package dto

import (
	"strings"
	"time"

	"drivingschool_backend/internals/features/scheduling/lessons/model"
	"drivingschool_backend/internals/features/scheduling/lessons/service"

	"github.com/google/uuid"
)

// BookLessonRequest carries either end_at or duration_minutes, never both.
// Neither means the default lesson length.
type BookLessonRequest struct {
	StartAt         time.Time  `json:"start_at" validate:"required"`
	EndAt           *time.Time `json:"end_at" validate:"excluded_with=DurationMinutes"`
	DurationMinutes *int       `json:"duration_minutes" validate:"omitempty,min=1,max=1440"`
	InstructorID    uuid.UUID  `json:"instructor_id" validate:"required"`
	VehicleID       *uuid.UUID `json:"vehicle_id"`
	EnrollmentID    uuid.UUID  `json:"enrollment_id" validate:"required"`
	LessonType      string     `json:"lesson_type" validate:"omitempty,oneof=theory practical exam"`
	Notes           *string    `json:"notes" validate:"omitempty,max=2000"`
}

func lessonEnd(endAt *time.Time, minutes *int) service.LessonEnd {
	switch {
	case endAt != nil:
		return service.EndAt(*endAt)
	case minutes != nil:
		return service.DurationOf(time.Duration(*minutes) * time.Minute)
	}
	return nil
}

func (r BookLessonRequest) ToBooking() service.BookingRequest {
	var notes *string
	if r.Notes != nil {
		if n := strings.TrimSpace(*r.Notes); n != "" {
			notes = &n
		}
	}
	return service.BookingRequest{
		Window:       service.ResolveWindow(r.StartAt, lessonEnd(r.EndAt, r.DurationMinutes)),
		InstructorID: r.InstructorID,
		VehicleID:    r.VehicleID,
		EnrollmentID: r.EnrollmentID,
		Type:         model.LessonType(r.LessonType),
		Notes:        notes,
	}
}

type RescheduleLessonRequest struct {
	StartAt         time.Time  `json:"start_at" validate:"required"`
	EndAt           *time.Time `json:"end_at" validate:"excluded_with=DurationMinutes"`
	DurationMinutes *int       `json:"duration_minutes" validate:"omitempty,min=1,max=1440"`
	VehicleID       *uuid.UUID `json:"vehicle_id"`
	ClearVehicle    bool       `json:"clear_vehicle"`
}

func (r RescheduleLessonRequest) ToReschedule(lessonID uuid.UUID) service.RescheduleRequest {
	return service.RescheduleRequest{
		LessonID:     lessonID,
		Window:       service.ResolveWindow(r.StartAt, lessonEnd(r.EndAt, r.DurationMinutes)),
		VehicleID:    r.VehicleID,
		ClearVehicle: r.ClearVehicle,
	}
}

type UpdateLessonStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=scheduled in_progress completed cancelled no_show"`
}

type LessonResponse struct {
	model.LessonModel
	DurationMinutes int `json:"duration_minutes"`
}

func FromLesson(l model.LessonModel) LessonResponse {
	return LessonResponse{LessonModel: l, DurationMinutes: l.DurationMinutes()}
}

func FromLessons(rows []model.LessonModel) []LessonResponse {
	out := make([]LessonResponse, 0, len(rows))
	for _, l := range rows {
		out = append(out, FromLesson(l))
	}
	return out
}
