package route

import (
	"drivingschool_backend/internals/constants"
	"drivingschool_backend/internals/features/users/auth/controller"
	authMiddleware "drivingschool_backend/internals/middlewares/auth"

	"github.com/gofiber/fiber/v2"
)

// AuthPublicRoutes mounts register/login; limiter guards login brute force.
func AuthPublicRoutes(r fiber.Router, ctl *controller.AuthController, loginLimiter fiber.Handler) {
	grp := r.Group("/auth")
	grp.Post("/register", loginLimiter, ctl.Register)
	grp.Post("/login", loginLimiter, ctl.Login)
}

func AuthUserRoutes(r fiber.Router, ctl *controller.AuthController) {
	r.Get("/me", ctl.Me)
	r.Post("/auth/logout", ctl.Logout)
}

func UserAdminRoutes(r fiber.Router, ctl *controller.AuthController) {
	grp := r.Group("/users", authMiddleware.OnlyRoles(constants.RoleErrorAdmin("user management"), constants.AdminRoles...))
	grp.Post("/", ctl.CreateUser)
}
