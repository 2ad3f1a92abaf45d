package controller

import (
	"crypto/subtle"
	"errors"
	"log"

	"drivingschool_backend/internals/features/finance/payments/model"
	"drivingschool_backend/internals/features/finance/payments/service"
	helper "drivingschool_backend/internals/helpers"

	"github.com/gofiber/fiber/v2"
)

/* =======================================================================
   Webhooks
   Gateways retry on non-2xx, so only datastore trouble answers 503.
======================================================================= */

// POST /api/public/payments/callback/mpesa?token=
func (h *PaymentController) MpesaCallback(c *fiber.Ctx) error {
	token := c.Query("token")
	if h.MpesaCallbackToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.MpesaCallbackToken)) != 1 {
		h.Engine.LogCallback(c.UserContext(), service.CallbackEvent{
			Gateway: model.GatewayMpesa,
			Remote:  c.IP(),
			Outcome: model.GatewayEventRejected,
			Err:     errors.New("callback token mismatch"),
		})
		log.Printf("[Payment.Callback] mpesa callback rejected from %s", c.IP())
		return helper.JsonError(c, fiber.StatusUnauthorized, "Invalid callback token")
	}

	res, status := h.reconcile(c, model.GatewayMpesa)
	if status != fiber.StatusOK {
		return helper.JsonError(c, status, "Callback could not be processed")
	}
	// Daraja expects this acknowledgement shape.
	return c.JSON(fiber.Map{
		"ResultCode": 0,
		"ResultDesc": "Accepted",
		"outcome":    res.Outcome,
	})
}

// POST /api/public/payments/callback/midtrans
func (h *PaymentController) MidtransCallback(c *fiber.Ctx) error {
	res, status := h.reconcile(c, model.GatewayMidtrans)
	if status != fiber.StatusOK {
		return helper.JsonError(c, status, "Callback could not be processed")
	}
	return helper.JsonOK(c, "ok", res)
}

// reconcile parses the body with the named gateway, applies it and logs the
// delivery. It returns the HTTP status to answer with.
func (h *PaymentController) reconcile(c *fiber.Ctx, gateway string) (service.ReconciliationResult, int) {
	ctx := c.UserContext()
	ev := service.CallbackEvent{Gateway: gateway, Remote: c.IP()}

	gw := h.Engine.GatewayByName(gateway)
	if gw == nil {
		log.Printf("[Payment.Callback] %s gateway not configured", gateway)
		return service.ReconciliationResult{}, fiber.StatusNotFound
	}

	cb, err := gw.ParseCallback(c.Body())
	switch {
	case errors.Is(err, service.ErrCallbackIgnored):
		ev.Result, ev.Outcome = &cb, model.GatewayEventIgnored
		h.Engine.LogCallback(ctx, ev)
		return service.ReconciliationResult{Outcome: service.OutcomeIgnored}, fiber.StatusOK
	case errors.Is(err, service.ErrInvalidSignature):
		ev.Outcome, ev.Err = model.GatewayEventRejected, err
		h.Engine.LogCallback(ctx, ev)
		log.Printf("[Payment.Callback] %s invalid signature from %s", gateway, c.IP())
		return service.ReconciliationResult{}, fiber.StatusUnauthorized
	case err != nil:
		ev.Outcome, ev.Err = model.GatewayEventRejected, err
		h.Engine.LogCallback(ctx, ev)
		log.Printf("[Payment.Callback] %s bad payload: %v", gateway, err)
		return service.ReconciliationResult{}, fiber.StatusBadRequest
	}

	ev.Result = &cb
	res, err := h.Engine.ReconcileCallback(ctx, cb)
	if err != nil {
		ev.Outcome, ev.Err = model.GatewayEventReceived, err
		h.Engine.LogCallback(ctx, ev)
		log.Printf("[Payment.Callback] %s correlation=%s: %v", gateway, cb.CorrelationID, err)
		return service.ReconciliationResult{}, fiber.StatusServiceUnavailable
	}
	ev.Outcome, ev.PaymentID = service.OutcomeToEvent(res.Outcome), res.PaymentID
	h.Engine.LogCallback(ctx, ev)
	return res, fiber.StatusOK
}

// GET /api/a/payments/events?payment_id=
func (h *PaymentController) ListEvents(c *fiber.Ctx) error {
	pid, err := helper.ParseUUIDQuery(c, "payment_id")
	if err != nil {
		return err
	}
	p := helper.ResolvePaging(c, 20, 200)
	rows, total, err := h.Engine.ListEvents(c.UserContext(), pid, p.Offset, p.Limit)
	if err != nil {
		return writePaymentError(c, "Payment.Events", err)
	}
	return helper.JsonList(c, "ok", rows, helper.BuildPagination(total, p, rows))
}
