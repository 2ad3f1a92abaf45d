package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ValidationError is a caller-fixable rejection; nothing was persisted.
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(rule, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// GatewayError is returned after the payment row has been moved to FAILED.
type GatewayError struct {
	Gateway   string
	PaymentID uuid.UUID
	Err       error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s gateway error for payment %s: %v", e.Gateway, e.PaymentID, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

var (
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrForbidden          = errors.New("not authorized to pay for this enrollment")
	ErrNotRefundable      = errors.New("only completed payments can be refunded")
	ErrDuplicateReference = errors.New("a payment with this reference already exists")

	// ErrInvalidSignature rejects a callback whose authenticity check failed.
	ErrInvalidSignature = errors.New("invalid callback signature")
	// ErrCallbackIgnored marks an intermediate notification that carries no final result.
	ErrCallbackIgnored = errors.New("callback carries no final result")
)

// Outcome of one callback delivery.
type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeFailed           Outcome = "failed"
	OutcomeUnmatched        Outcome = "unmatched"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeIgnored          Outcome = "ignored"
)

type ReconciliationResult struct {
	Outcome   Outcome    `json:"outcome"`
	PaymentID *uuid.UUID `json:"payment_id,omitempty"`
}
