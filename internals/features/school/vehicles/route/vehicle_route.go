package route

import (
	"drivingschool_backend/internals/constants"
	"drivingschool_backend/internals/features/school/vehicles/controller"
	authMiddleware "drivingschool_backend/internals/middlewares/auth"

	"github.com/gofiber/fiber/v2"
)

func VehicleUserRoutes(r fiber.Router, ctl *controller.VehicleController) {
	grp := r.Group("/vehicles")
	grp.Get("/", ctl.List)
	grp.Get("/:id", ctl.GetByID)
}

func VehicleAdminRoutes(r fiber.Router, ctl *controller.VehicleController) {
	grp := r.Group("/vehicles", authMiddleware.OnlyRoles(constants.RoleErrorAdmin("vehicles"), constants.AdminRoles...))
	grp.Post("/", ctl.Create)
	grp.Patch("/:id", ctl.Patch)
	grp.Delete("/:id", ctl.Delete)
}
