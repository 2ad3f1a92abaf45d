package controller

import (
	"errors"
	"log"
	"strings"

	"drivingschool_backend/internals/constants"
	"drivingschool_backend/internals/features/finance/payments/dto"
	"drivingschool_backend/internals/features/finance/payments/model"
	"drivingschool_backend/internals/features/finance/payments/service"
	helper "drivingschool_backend/internals/helpers"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type PaymentController struct {
	Engine   *service.Engine
	Validate *validator.Validate
	// MpesaCallbackToken must match ?token= on the Daraja callback URL.
	MpesaCallbackToken string
}

func NewPaymentController(engine *service.Engine, v *validator.Validate, mpesaCallbackToken string) *PaymentController {
	if v == nil {
		v = helper.NewValidator()
	}
	return &PaymentController{Engine: engine, Validate: v, MpesaCallbackToken: mpesaCallbackToken}
}

// POST /api/u/payments
func (h *PaymentController) Initiate(c *fiber.Ctx) error {
	cu, err := helper.GetCurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.InitiatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Normalize()
	if err := h.Validate.Struct(&req); err != nil {
		return helper.ValidationError(c, err)
	}

	p, err := h.Engine.Initiate(c.UserContext(), req.ToInput(cu))
	if err != nil {
		return writePaymentError(c, "Payment.Initiate", err)
	}
	return helper.JsonCreated(c, "Payment initiated", dto.FromModel(*p))
}

// GET /api/u/payments
func (h *PaymentController) MyPayments(c *fiber.Ctx) error {
	cu, err := helper.GetCurrentUser(c)
	if err != nil {
		return err
	}
	f, err := listFilter(c)
	if err != nil {
		return err
	}
	if !cu.HasRole(constants.StaffRoles...) {
		f.StudentID = &cu.ID
	}
	return h.list(c, f)
}

// GET /api/u/payments/:id
func (h *PaymentController) GetByID(c *fiber.Ctx) error {
	cu, err := helper.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	p, err := h.Engine.Get(c.UserContext(), cu, id)
	if err != nil {
		return writePaymentError(c, "Payment.Get", err)
	}
	return helper.JsonOK(c, "ok", dto.FromModel(*p))
}

// GET /api/a/payments?status=&method=&enrollment_id=
func (h *PaymentController) List(c *fiber.Ctx) error {
	f, err := listFilter(c)
	if err != nil {
		return err
	}
	return h.list(c, f)
}

func (h *PaymentController) list(c *fiber.Ctx, f service.ListFilter) error {
	p := helper.ResolvePaging(c, 20, 200)
	rows, total, err := h.Engine.List(c.UserContext(), f, p.Offset, p.Limit)
	if err != nil {
		return writePaymentError(c, "Payment.List", err)
	}
	data := dto.FromModels(rows)
	return helper.JsonList(c, "ok", data, helper.BuildPagination(total, p, data))
}

func listFilter(c *fiber.Ctx) (service.ListFilter, error) {
	var f service.ListFilter
	if s := strings.ToLower(strings.TrimSpace(c.Query("status"))); s != "" {
		st := model.PaymentStatus(s)
		switch st {
		case model.PaymentStatusPending, model.PaymentStatusCompleted, model.PaymentStatusFailed, model.PaymentStatusRefunded:
			f.Status = &st
		default:
			return f, fiber.NewError(fiber.StatusBadRequest, "Unknown status filter")
		}
	}
	if m := strings.ToLower(strings.TrimSpace(c.Query("method"))); m != "" {
		pm := model.PaymentMethod(m)
		if !pm.Valid() {
			return f, fiber.NewError(fiber.StatusBadRequest, "Unknown method filter")
		}
		f.Method = &pm
	}
	id, err := helper.ParseUUIDQuery(c, "enrollment_id")
	if err != nil {
		return f, err
	}
	f.EnrollmentID = id
	return f, nil
}

// POST /api/a/payments/manual
func (h *PaymentController) RecordManual(c *fiber.Ctx) error {
	cu, err := helper.GetCurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.ManualPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.Validate.Struct(&req); err != nil {
		return helper.ValidationError(c, err)
	}

	p, err := h.Engine.RecordManual(c.UserContext(), req.ToInput(cu))
	if err != nil {
		return writePaymentError(c, "Payment.Manual", err)
	}
	return helper.JsonCreated(c, "Payment recorded", dto.FromModel(*p))
}

// POST /api/a/payments/:id/refund
func (h *PaymentController) Refund(c *fiber.Ctx) error {
	cu, err := helper.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.RefundPaymentRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}
	if err := h.Validate.Struct(&req); err != nil {
		return helper.ValidationError(c, err)
	}

	p, err := h.Engine.Refund(c.UserContext(), cu, id, req.Reason)
	if err != nil {
		return writePaymentError(c, "Payment.Refund", err)
	}
	return helper.JsonUpdated(c, "Payment refunded", dto.FromModel(*p))
}

func writePaymentError(c *fiber.Ctx, op string, err error) error {
	var ve *service.ValidationError
	var ge *service.GatewayError
	switch {
	case errors.As(err, &ve):
		return helper.JsonRuleError(c, ve.Rule, ve.Message)
	case errors.As(err, &ge):
		return helper.JsonError(c, fiber.StatusBadGateway, "Payment gateway error, the payment was marked failed")
	case errors.Is(err, service.ErrPaymentNotFound):
		return helper.JsonError(c, fiber.StatusNotFound, "Payment not found")
	case errors.Is(err, service.ErrEnrollmentNotFound):
		return helper.JsonError(c, fiber.StatusNotFound, "Enrollment not found")
	case errors.Is(err, service.ErrForbidden):
		return helper.JsonError(c, fiber.StatusForbidden, "Not authorized to pay for this enrollment")
	case errors.Is(err, service.ErrNotRefundable):
		return helper.JsonError(c, fiber.StatusConflict, "Only completed payments can be refunded")
	case errors.Is(err, service.ErrDuplicateReference):
		return helper.JsonError(c, fiber.StatusConflict, "A payment with this reference already exists")
	case errors.Is(err, helper.ErrRetryable):
		return helper.JsonError(c, fiber.StatusServiceUnavailable, err.Error())
	}
	log.Printf("[%s] %v", op, err)
	return helper.WritePGError(c, err)
}
