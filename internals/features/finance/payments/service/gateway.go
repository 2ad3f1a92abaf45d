package service

import (
	"context"

	"github.com/shopspring/decimal"
)

type GatewayRequest struct {
	Reference   string
	Phone       string
	Amount      decimal.Decimal
	Description string
	Email       string
	Name        string
}

type GatewayResponse struct {
	// CorrelationID is what the gateway will quote back in its callback.
	CorrelationID string
	RedirectURL   string
	Meta          map[string]any
}

// CallbackResult is the part of a gateway callback the engine acts on.
type CallbackResult struct {
	Gateway         string
	CorrelationID   string
	ResultCode      int
	ResultDesc      string
	ConfirmedAmount decimal.Decimal
	FinalReference  string
	Raw             map[string]any
}

func (r CallbackResult) Succeeded() bool { return r.ResultCode == 0 }

// PaymentGateway starts a payment with an external provider and decodes the
// provider's asynchronous callback.
type PaymentGateway interface {
	Name() string
	Initiate(ctx context.Context, req GatewayRequest) (*GatewayResponse, error)
	ParseCallback(body []byte) (CallbackResult, error)
}
