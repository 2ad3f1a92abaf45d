package route

import (
	"drivingschool_backend/internals/features/finance/payments/controller"

	"github.com/gofiber/fiber/v2"
)

// PaymentWebhookRoutes are unauthenticated; each handler verifies its gateway.
func PaymentWebhookRoutes(r fiber.Router, h *controller.PaymentController, mw ...fiber.Handler) {
	cb := r.Group("/payments/callback", mw...)
	cb.Post("/mpesa", h.MpesaCallback)
	cb.Post("/midtrans", h.MidtransCallback)
}
