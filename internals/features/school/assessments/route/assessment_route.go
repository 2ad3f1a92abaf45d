package route

import (
	"drivingschool_backend/internals/constants"
	"drivingschool_backend/internals/features/school/assessments/controller"
	authMiddleware "drivingschool_backend/internals/middlewares/auth"

	"github.com/gofiber/fiber/v2"
)

func AssessmentUserRoutes(r fiber.Router, ctl *controller.AssessmentController) {
	staffOnly := authMiddleware.OnlyRoles(constants.RoleErrorStaff("assessments"), constants.StaffRoles...)

	grp := r.Group("/assessments")
	grp.Get("/mine", ctl.Mine)
	grp.Get("/enrollment/:id", ctl.ListByEnrollment)
	grp.Get("/:id", ctl.GetByID)
	grp.Post("/", staffOnly, ctl.Create)
	grp.Patch("/:id", staffOnly, ctl.Patch)
}

func AssessmentAdminRoutes(r fiber.Router, ctl *controller.AssessmentController) {
	grp := r.Group("/assessments", authMiddleware.OnlyRoles(constants.RoleErrorAdmin("assessments"), constants.AdminRoles...))
	grp.Delete("/:id", ctl.Delete)
}
