package service

import (
	"context"
	"log"

	"drivingschool_backend/internals/features/finance/payments/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type CallbackEvent struct {
	Gateway   string
	Remote    string
	Result    *CallbackResult
	Outcome   model.GatewayEventOutcome
	PaymentID *uuid.UUID
	Err       error
}

// LogCallback stores one delivery in payment_gateway_events. Failures are
// logged and swallowed so the gateway still gets its acknowledgement.
func (e *Engine) LogCallback(ctx context.Context, ev CallbackEvent) {
	now := e.Clock.Now()
	row := model.PaymentGatewayEventModel{
		GatewayEventPaymentID:   ev.PaymentID,
		GatewayEventProvider:    ev.Gateway,
		GatewayEventOutcome:     ev.Outcome,
		GatewayEventProcessedAt: &now,
	}
	if ev.Remote != "" {
		row.GatewayEventRemote = &ev.Remote
	}
	if ev.Result != nil {
		if ev.Result.CorrelationID != "" {
			row.GatewayEventCorrelationID = &ev.Result.CorrelationID
		}
		code := ev.Result.ResultCode
		row.GatewayEventResultCode = &code
		if ev.Result.Raw != nil {
			row.GatewayEventPayload = datatypes.JSONMap(ev.Result.Raw)
		}
	}
	if ev.Err != nil {
		msg := truncate(ev.Err.Error(), 500)
		row.GatewayEventError = &msg
	}
	if err := e.DB.WithContext(context.WithoutCancel(ctx)).Create(&row).Error; err != nil {
		log.Printf("[Payment.Callback] failed to store gateway event: %v", err)
	}
}

// OutcomeToEvent maps a reconciliation outcome onto the event log vocabulary.
func OutcomeToEvent(o Outcome) model.GatewayEventOutcome {
	switch o {
	case OutcomeCompleted:
		return model.GatewayEventCompleted
	case OutcomeFailed:
		return model.GatewayEventFailed
	case OutcomeUnmatched:
		return model.GatewayEventUnmatched
	case OutcomeAlreadyProcessed:
		return model.GatewayEventAlreadyProcessed
	case OutcomeIgnored:
		return model.GatewayEventIgnored
	}
	return model.GatewayEventReceived
}

func (e *Engine) ListEvents(ctx context.Context, paymentID *uuid.UUID, offset, limit int) ([]model.PaymentGatewayEventModel, int64, error) {
	q := e.DB.WithContext(ctx).Model(&model.PaymentGatewayEventModel{})
	if paymentID != nil {
		q = q.Where("gateway_event_payment_id = ?", *paymentID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []model.PaymentGatewayEventModel
	if err := q.Order("gateway_event_received_at DESC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
