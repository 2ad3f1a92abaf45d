package dto

import (
	"strings"

	"drivingschool_backend/internals/features/finance/payments/model"
	"drivingschool_backend/internals/features/finance/payments/service"
	helper "drivingschool_backend/internals/helpers"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

/* =========================================================
   REQUEST DTOs
========================================================= */

// InitiatePaymentRequest: method defaults to mpesa. Amount is checked by the engine.
type InitiatePaymentRequest struct {
	EnrollmentID uuid.UUID       `json:"enrollment_id" validate:"required"`
	Amount       decimal.Decimal `json:"amount"`
	Phone        string          `json:"phone" validate:"omitempty,ke_phone"`
	Method       string          `json:"method" validate:"omitempty,oneof=mpesa card"`
	Email        string          `json:"email" validate:"omitempty,email"`
}

func (r *InitiatePaymentRequest) Normalize() {
	r.Method = strings.ToLower(strings.TrimSpace(r.Method))
	if r.Method == "" {
		r.Method = string(model.PaymentMethodMpesa)
	}
	r.Phone = strings.TrimSpace(r.Phone)
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
}

func (r InitiatePaymentRequest) ToInput(actor helper.CurrentUser) service.InitiateInput {
	return service.InitiateInput{
		Actor:        actor,
		EnrollmentID: r.EnrollmentID,
		Amount:       r.Amount,
		Phone:        r.Phone,
		Method:       model.PaymentMethod(r.Method),
		Email:        r.Email,
	}
}

type ManualPaymentRequest struct {
	EnrollmentID uuid.UUID       `json:"enrollment_id" validate:"required"`
	Amount       decimal.Decimal `json:"amount"`
	Method       string          `json:"method" validate:"required,oneof=cash bank_transfer"`
	Reference    string          `json:"reference" validate:"required,max=120"`
	Note         string          `json:"note" validate:"omitempty,max=500"`
}

func (r ManualPaymentRequest) ToInput(actor helper.CurrentUser) service.ManualInput {
	return service.ManualInput{
		Actor:        actor,
		EnrollmentID: r.EnrollmentID,
		Amount:       r.Amount,
		Method:       model.PaymentMethod(strings.ToLower(r.Method)),
		Reference:    r.Reference,
		Note:         r.Note,
	}
}

type RefundPaymentRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

/* =========================================================
   RESPONSE DTOs
========================================================= */

type PaymentResponse struct {
	model.PaymentModel
	IsTerminal bool `json:"is_terminal"`
}

func FromModel(p model.PaymentModel) PaymentResponse {
	return PaymentResponse{PaymentModel: p, IsTerminal: p.PaymentStatus.IsTerminal()}
}

func FromModels(rows []model.PaymentModel) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(rows))
	for _, p := range rows {
		out = append(out, FromModel(p))
	}
	return out
}
