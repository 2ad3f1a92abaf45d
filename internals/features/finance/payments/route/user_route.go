package route

import (
	"drivingschool_backend/internals/features/finance/payments/controller"

	"github.com/gofiber/fiber/v2"
)

func PaymentUserRoutes(r fiber.Router, h *controller.PaymentController) {
	payments := r.Group("/payments")
	payments.Post("/", h.Initiate)
	payments.Get("/", h.MyPayments)
	payments.Get("/:id", h.GetByID)
}
