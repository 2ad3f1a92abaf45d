package route

import (
	"drivingschool_backend/internals/constants"
	"drivingschool_backend/internals/features/finance/payments/controller"
	authMiddleware "drivingschool_backend/internals/middlewares/auth"

	"github.com/gofiber/fiber/v2"
)

func PaymentAdminRoutes(r fiber.Router, h *controller.PaymentController) {
	payments := r.Group("/payments", authMiddleware.OnlyRoles(constants.RoleErrorAdmin("payments"), constants.AdminRoles...))
	payments.Get("/", h.List)
	payments.Get("/events", h.ListEvents)
	payments.Post("/manual", h.RecordManual)
	payments.Post("/:id/refund", h.Refund)
}
