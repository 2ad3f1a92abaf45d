package service

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"drivingschool_backend/internals/configs"
	"drivingschool_backend/internals/features/finance/payments/model"

	"github.com/bytedance/sonic"
	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"
)

/* =========================================================
   Midtrans Snap (card payments)
========================================================= */

type MidtransGateway struct {
	ServerKey string
	Snap      snap.Client
}

func NewMidtransGateway(cfg configs.MidtransConfig) *MidtransGateway {
	g := &MidtransGateway{ServerKey: cfg.ServerKey}
	if cfg.UseProduction {
		g.Snap.New(cfg.ServerKey, midtrans.Production)
	} else {
		g.Snap.New(cfg.ServerKey, midtrans.Sandbox)
	}
	return g
}

func (g *MidtransGateway) Name() string { return model.GatewayMidtrans }

// Initiate creates a Snap transaction whose order_id is the payment reference.
// The Snap client has no context support, so the call is raced against ctx.
func (g *MidtransGateway) Initiate(ctx context.Context, in GatewayRequest) (*GatewayResponse, error) {
	if in.Reference == "" {
		return nil, errors.New("midtrans: reference is required (used as order_id)")
	}
	gross := in.Amount.Round(0).IntPart()
	if gross <= 0 {
		return nil, errors.New("midtrans: invalid amount")
	}

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  in.Reference,
			GrossAmt: gross,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: in.Name,
			Email: in.Email,
			Phone: in.Phone,
		},
		CreditCard: &snap.CreditCardDetails{Secure: true},
		Items: &[]midtrans.ItemDetails{
			{
				ID:       in.Reference,
				Price:    gross,
				Qty:      1,
				Name:     truncate(defaultString(in.Description, "Driving school fees"), 50),
				Category: "COURSE",
			},
		},
	}

	type result struct {
		resp *snap.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, mErr := g.Snap.CreateTransaction(req)
		if mErr != nil {
			done <- result{err: fmt.Errorf("midtrans snap: %w", mErr)}
			return
		}
		done <- result{resp: resp}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return &GatewayResponse{
			CorrelationID: in.Reference,
			RedirectURL:   r.resp.RedirectURL,
			Meta:          map[string]any{"snap_token": r.resp.Token},
		}, nil
	}
}

/* =========================================================
   Notification
========================================================= */

type midtransNotif struct {
	TransactionStatus string `json:"transaction_status"` // capture, settlement, pending, deny, cancel, expire, failure, refund
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status"` // accept / challenge / deny
	TransactionID     string `json:"transaction_id"`
	StatusMessage     string `json:"status_message"`
}

// MidtransSignature is SHA512(order_id + status_code + gross_amount + server_key).
func MidtransSignature(orderID, statusCode, grossAmount, serverKey string) string {
	h := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(h[:])
}

// midtransResultCode maps a notification to 0 (paid), a non-zero failure
// code, or ErrCallbackIgnored for states that are not final.
func midtransResultCode(n midtransNotif) (int, error) {
	switch strings.ToLower(n.TransactionStatus) {
	case "settlement":
		return 0, nil
	case "capture":
		switch strings.ToLower(n.FraudStatus) {
		case "", "accept":
			return 0, nil
		case "challenge":
			return 0, ErrCallbackIgnored
		}
		return statusCodeOr(n.StatusCode, 1), nil
	case "deny", "cancel", "expire", "failure":
		return statusCodeOr(n.StatusCode, 1), nil
	}
	return 0, ErrCallbackIgnored
}

func statusCodeOr(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil && n != 0 {
		return n
	}
	return def
}

func (g *MidtransGateway) ParseCallback(body []byte) (CallbackResult, error) {
	var n midtransNotif
	if err := sonic.Unmarshal(body, &n); err != nil {
		return CallbackResult{}, fmt.Errorf("midtrans notification: %w", err)
	}
	want := strings.ToLower(n.SignatureKey)
	got := MidtransSignature(n.OrderID, n.StatusCode, n.GrossAmount, g.ServerKey)
	if want == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return CallbackResult{}, ErrInvalidSignature
	}

	res := CallbackResult{
		Gateway:        model.GatewayMidtrans,
		CorrelationID:  n.OrderID,
		ResultDesc:     strings.TrimSpace(n.TransactionStatus + " " + n.StatusMessage),
		FinalReference: n.TransactionID,
	}
	if amt, err := decimal.NewFromString(n.GrossAmount); err == nil {
		res.ConfirmedAmount = amt
	}
	var raw map[string]any
	if err := sonic.Unmarshal(body, &raw); err == nil {
		res.Raw = raw
	}

	code, err := midtransResultCode(n)
	res.ResultCode = code
	return res, err
}

/* =========================================================
   Utils
========================================================= */

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

func defaultString(s string, def string) string {
	if s == "" {
		return def
	}
	return s
}
