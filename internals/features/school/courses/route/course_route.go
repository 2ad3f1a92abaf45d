package route

import (
	"drivingschool_backend/internals/constants"
	"drivingschool_backend/internals/features/school/courses/controller"
	authMiddleware "drivingschool_backend/internals/middlewares/auth"

	"github.com/gofiber/fiber/v2"
)

func CourseUserRoutes(r fiber.Router, ctl *controller.CourseController) {
	courses := r.Group("/courses")
	courses.Get("/", ctl.List)
	courses.Post("/:id/enroll", ctl.Enroll)

	enrollments := r.Group("/enrollments")
	enrollments.Get("/mine", ctl.MyEnrollments)
	enrollments.Get("/:id", ctl.GetEnrollment)
}

func CourseAdminRoutes(r fiber.Router, ctl *controller.CourseController) {
	grp := r.Group("/courses", authMiddleware.OnlyRoles(constants.RoleErrorAdmin("courses"), constants.AdminRoles...))
	grp.Post("/", ctl.Create)
}
