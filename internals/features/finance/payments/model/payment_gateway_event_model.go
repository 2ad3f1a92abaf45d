package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// payment_gateway_events keeps every callback a gateway delivered, matched or
// not, with the outcome the engine reached for it.

type GatewayEventOutcome string

const (
	GatewayEventReceived         GatewayEventOutcome = "received"
	GatewayEventCompleted        GatewayEventOutcome = "completed"
	GatewayEventFailed           GatewayEventOutcome = "failed"
	GatewayEventUnmatched        GatewayEventOutcome = "unmatched"
	GatewayEventAlreadyProcessed GatewayEventOutcome = "already_processed"
	GatewayEventIgnored          GatewayEventOutcome = "ignored"
	GatewayEventRejected         GatewayEventOutcome = "rejected"
)

type PaymentGatewayEventModel struct {
	GatewayEventID uuid.UUID `gorm:"column:gateway_event_id;type:uuid;primaryKey" json:"gateway_event_id"`

	GatewayEventPaymentID *uuid.UUID `gorm:"column:gateway_event_payment_id;type:uuid;index" json:"gateway_event_payment_id,omitempty"`

	GatewayEventProvider      string  `gorm:"column:gateway_event_provider;type:varchar(20);not null" json:"gateway_event_provider"`
	GatewayEventCorrelationID *string `gorm:"column:gateway_event_correlation_id;size:120;index" json:"gateway_event_correlation_id,omitempty"`
	GatewayEventResultCode    *int    `gorm:"column:gateway_event_result_code" json:"gateway_event_result_code,omitempty"`

	GatewayEventPayload datatypes.JSONMap `gorm:"column:gateway_event_payload" json:"gateway_event_payload,omitempty"`
	GatewayEventRemote  *string           `gorm:"column:gateway_event_remote;size:64" json:"gateway_event_remote,omitempty"`

	GatewayEventOutcome GatewayEventOutcome `gorm:"column:gateway_event_outcome;type:varchar(20);not null;default:'received'" json:"gateway_event_outcome"`
	GatewayEventError   *string             `gorm:"column:gateway_event_error" json:"gateway_event_error,omitempty"`

	GatewayEventReceivedAt  time.Time  `gorm:"column:gateway_event_received_at;autoCreateTime" json:"gateway_event_received_at"`
	GatewayEventProcessedAt *time.Time `gorm:"column:gateway_event_processed_at" json:"gateway_event_processed_at,omitempty"`
}

func (PaymentGatewayEventModel) TableName() string { return "payment_gateway_events" }

func (m *PaymentGatewayEventModel) BeforeCreate(tx *gorm.DB) error {
	if m.GatewayEventID == uuid.Nil {
		m.GatewayEventID = uuid.New()
	}
	return nil
}
