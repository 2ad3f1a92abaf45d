package controller

import (
	"errors"
	"log"
	"time"

	"drivingschool_backend/internals/features/users/auth/dto"
	"drivingschool_backend/internals/features/users/auth/service"
	helper "drivingschool_backend/internals/helpers"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AuthController struct {
	Svc      *service.AuthService
	Validate *validator.Validate
}

func NewAuthController(svc *service.AuthService, v *validator.Validate) *AuthController {
	if v == nil {
		v = helper.NewValidator()
	}
	return &AuthController{Svc: svc, Validate: v}
}

// POST /api/auth/register
func (ac *AuthController) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Normalize()
	if err := ac.Validate.Struct(&req); err != nil {
		return helper.ValidationError(c, err)
	}

	user, err := ac.Svc.Register(c.UserContext(), req)
	if err != nil {
		return ac.writeError(c, err)
	}
	return helper.JsonCreated(c, "Registration successful", dto.FromUser(user))
}

// POST /api/a/users
func (ac *AuthController) CreateUser(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Normalize()
	if err := ac.Validate.Struct(&req); err != nil {
		return helper.ValidationError(c, err)
	}

	user, err := ac.Svc.CreateUser(c.UserContext(), req)
	if err != nil {
		return ac.writeError(c, err)
	}
	return helper.JsonCreated(c, "User created", dto.FromUser(user))
}

// POST /api/auth/login
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := ac.Validate.Struct(&req); err != nil {
		return helper.ValidationError(c, err)
	}

	resp, err := ac.Svc.Login(c.UserContext(), req)
	if err != nil {
		return ac.writeError(c, err)
	}
	return helper.JsonOK(c, "Login successful", resp)
}

// POST /api/u/auth/logout
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	token, _ := c.Locals(helper.LocToken).(string)
	if token == "" {
		return helper.JsonError(c, fiber.StatusUnauthorized, "Not logged in")
	}
	exp, _ := c.Locals("token_exp").(time.Time)

	if err := ac.Svc.Logout(c.UserContext(), token, exp); err != nil {
		log.Printf("[Auth.Logout] revoke failed: %v", err)
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to log out")
	}
	return helper.JsonOK(c, "Logged out", nil)
}

// GET /api/u/me
func (ac *AuthController) Me(c *fiber.Ctx) error {
	cu, err := helper.GetCurrentUser(c)
	if err != nil {
		return err
	}
	user, err := ac.Svc.FindByID(c.UserContext(), cu.ID)
	if err != nil {
		return ac.writeError(c, err)
	}
	return helper.JsonOK(c, "ok", dto.FromUser(user))
}

func (ac *AuthController) writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		return helper.JsonError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrUserInactive):
		return helper.JsonError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		return helper.JsonError(c, fiber.StatusNotFound, "User not found")
	}
	log.Printf("[Auth] unexpected error: %v", err)
	return helper.JsonError(c, fiber.StatusInternalServerError, "Internal Server Error")
}
