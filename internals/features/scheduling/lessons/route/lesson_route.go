package route

import (
	"drivingschool_backend/internals/constants"
	"drivingschool_backend/internals/features/scheduling/lessons/controller"
	authMiddleware "drivingschool_backend/internals/middlewares/auth"

	"github.com/gofiber/fiber/v2"
)

func LessonUserRoutes(r fiber.Router, ctl *controller.LessonController) {
	grp := r.Group("/lessons")
	grp.Post("/", ctl.Book)
	grp.Get("/", ctl.List)
	grp.Get("/:id", ctl.GetByID)
	grp.Patch("/:id/reschedule", ctl.Reschedule)
	grp.Patch("/:id/status", ctl.UpdateStatus)

	r.Get("/instructors/:id/availability", ctl.InstructorAvailability)
}

func LessonAdminRoutes(r fiber.Router, ctl *controller.LessonController) {
	grp := r.Group("/lessons", authMiddleware.OnlyRoles(constants.RoleErrorAdmin("lessons"), constants.AdminRoles...))
	grp.Delete("/:id", ctl.Delete)
}
