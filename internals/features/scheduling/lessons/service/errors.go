package service

import (
	"errors"
	"fmt"

	"drivingschool_backend/internals/features/scheduling/lessons/model"

	"github.com/google/uuid"
)

// ValidationError is a caller-fixable rule violation. Message is shown verbatim.
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(rule, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// ConflictError means the instructor or vehicle is already booked.
type ConflictError struct {
	Resource      string
	ConflictingID uuid.UUID
	Message       string
}

func (e *ConflictError) Error() string { return e.Message }

type TransitionError struct {
	From model.LessonStatus
	To   model.LessonStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("Cannot change lesson status from %s to %s", e.From, e.To)
}

var (
	ErrLessonNotFound = errors.New("lesson not found")
	ErrForbidden      = errors.New("not authorized to manage lessons for this enrollment")
)
