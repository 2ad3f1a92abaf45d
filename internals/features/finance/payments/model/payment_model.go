package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentStatus string
type PaymentMethod string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

const (
	PaymentMethodMpesa        PaymentMethod = "mpesa"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

const (
	GatewayMpesa    = "mpesa"
	GatewayMidtrans = "midtrans"
	GatewayManual   = "manual"
)

func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentStatusPending
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodMpesa, PaymentMethodCard, PaymentMethodCash, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// IsManual methods are recorded by staff and never reach a gateway.
func (m PaymentMethod) IsManual() bool {
	return m == PaymentMethodCash || m == PaymentMethodBankTransfer
}

/* ===================== Model ===================== */

type PaymentModel struct {
	PaymentID uuid.UUID `gorm:"column:payment_id;type:uuid;primaryKey" json:"payment_id"`

	PaymentEnrollmentID uuid.UUID  `gorm:"column:payment_enrollment_id;type:uuid;not null;index" json:"payment_enrollment_id"`
	PaymentStudentID    uuid.UUID  `gorm:"column:payment_student_id;type:uuid;not null;index:idx_payments_student_completed,priority:1" json:"payment_student_id"`
	PaymentCreatedBy    *uuid.UUID `gorm:"column:payment_created_by;type:uuid" json:"payment_created_by,omitempty"`

	// Nominal
	PaymentAmount          decimal.Decimal  `gorm:"column:payment_amount;type:numeric(12,2);not null" json:"payment_amount"`
	PaymentConfirmedAmount *decimal.Decimal `gorm:"column:payment_confirmed_amount;type:numeric(12,2)" json:"payment_confirmed_amount,omitempty"`
	PaymentCurrency        string           `gorm:"column:payment_currency;type:varchar(8);not null;default:'KES'" json:"payment_currency"`

	// Status & metode
	PaymentStatus PaymentStatus `gorm:"column:payment_status;type:varchar(20);not null;default:'pending';index;index:idx_payments_student_completed,priority:2" json:"payment_status"`
	PaymentMethod PaymentMethod `gorm:"column:payment_method;type:varchar(20);not null" json:"payment_method"`
	PaymentPhone  *string       `gorm:"column:payment_phone;size:20" json:"payment_phone,omitempty"`

	// Gateway: external_ref is the placeholder, then the correlation id, then the receipt.
	// correlation_id keeps the request id once the receipt has replaced it.
	PaymentGateway       string  `gorm:"column:payment_gateway;type:varchar(20);not null" json:"payment_gateway"`
	PaymentExternalRef   *string `gorm:"column:payment_external_ref;size:120;index" json:"payment_external_ref,omitempty"`
	PaymentCorrelationID *string `gorm:"column:payment_correlation_id;size:120;index" json:"payment_correlation_id,omitempty"`
	PaymentCheckoutURL   *string `gorm:"column:payment_checkout_url" json:"payment_checkout_url,omitempty"`
	PaymentResultCode    *int    `gorm:"column:payment_result_code" json:"payment_result_code,omitempty"`
	PaymentResultDesc    *string `gorm:"column:payment_result_desc" json:"payment_result_desc,omitempty"`

	PaymentCompletedAt *time.Time `gorm:"column:payment_completed_at;index:idx_payments_student_completed,priority:3" json:"payment_completed_at,omitempty"`
	PaymentFailedAt    *time.Time `gorm:"column:payment_failed_at" json:"payment_failed_at,omitempty"`
	PaymentRefundedAt  *time.Time `gorm:"column:payment_refunded_at" json:"payment_refunded_at,omitempty"`

	PaymentNote *string           `gorm:"column:payment_note" json:"payment_note,omitempty"`
	PaymentMeta datatypes.JSONMap `gorm:"column:payment_meta" json:"payment_meta,omitempty"`

	PaymentCreatedAt time.Time      `gorm:"column:payment_created_at;autoCreateTime" json:"payment_created_at"`
	PaymentUpdatedAt time.Time      `gorm:"column:payment_updated_at;autoUpdateTime" json:"payment_updated_at"`
	PaymentDeletedAt gorm.DeletedAt `gorm:"column:payment_deleted_at;index" json:"-"`
}

func (PaymentModel) TableName() string { return "payments" }

func (p *PaymentModel) BeforeCreate(tx *gorm.DB) error {
	if p.PaymentID == uuid.Nil {
		p.PaymentID = uuid.New()
	}
	return nil
}

// CreditedAmount is what a completed payment added to the enrollment balance.
func (p *PaymentModel) CreditedAmount() decimal.Decimal {
	if p.PaymentConfirmedAmount != nil {
		return *p.PaymentConfirmedAmount
	}
	return p.PaymentAmount
}
