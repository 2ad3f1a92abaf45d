package controller

import (
	"errors"
	"log"

	"drivingschool_backend/internals/features/school/vehicles/dto"
	"drivingschool_backend/internals/features/school/vehicles/model"
	helper "drivingschool_backend/internals/helpers"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type VehicleController struct {
	DB       *gorm.DB
	Validate *validator.Validate
}

func NewVehicleController(db *gorm.DB, v *validator.Validate) *VehicleController {
	if v == nil {
		v = helper.NewValidator()
	}
	return &VehicleController{DB: db, Validate: v}
}

// GET /vehicles?active_only=true
func (ctl *VehicleController) List(c *fiber.Ctx) error {
	p := helper.ResolvePaging(c, 20, 100)
	q := ctl.DB.WithContext(c.UserContext()).Model(&model.VehicleModel{})
	if only, ok := helper.ParseBoolLoose(c.Query("active_only")); ok && only {
		q = q.Where("vehicle_is_active = ?", true)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return helper.WritePGError(c, err)
	}
	var rows []model.VehicleModel
	if err := q.Order("vehicle_reg_number ASC").Offset(p.Offset).Limit(p.Limit).Find(&rows).Error; err != nil {
		return helper.WritePGError(c, err)
	}
	return helper.JsonList(c, "ok", rows, helper.BuildPagination(total, p, rows))
}

// GET /vehicles/:id
func (ctl *VehicleController) GetByID(c *fiber.Ctx) error {
	v, err := ctl.find(c)
	if err != nil {
		return err
	}
	return helper.JsonOK(c, "ok", v)
}

// POST /vehicles
func (ctl *VehicleController) Create(c *fiber.Ctx) error {
	var req dto.CreateVehicleRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := ctl.Validate.Struct(&req); err != nil {
		return helper.ValidationError(c, err)
	}

	m := req.ToModel()
	if err := ctl.DB.WithContext(c.UserContext()).Create(&m).Error; err != nil {
		if helper.IsUniqueViolation(err) {
			return helper.JsonError(c, fiber.StatusConflict, "A vehicle with this registration number already exists")
		}
		log.Printf("[Vehicle.Create] %v", err)
		return helper.WritePGError(c, err)
	}
	return helper.JsonCreated(c, "Vehicle created", m)
}

// PATCH /vehicles/:id
func (ctl *VehicleController) Patch(c *fiber.Ctx) error {
	var req dto.UpdateVehicleRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := ctl.Validate.Struct(&req); err != nil {
		return helper.ValidationError(c, err)
	}

	v, err := ctl.find(c)
	if err != nil {
		return err
	}
	req.Apply(v)
	if err := ctl.DB.WithContext(c.UserContext()).Save(v).Error; err != nil {
		if helper.IsUniqueViolation(err) {
			return helper.JsonError(c, fiber.StatusConflict, "A vehicle with this registration number already exists")
		}
		return helper.WritePGError(c, err)
	}
	return helper.JsonUpdated(c, "Vehicle updated", v)
}

// DELETE /vehicles/:id (soft)
func (ctl *VehicleController) Delete(c *fiber.Ctx) error {
	v, err := ctl.find(c)
	if err != nil {
		return err
	}
	if err := ctl.DB.WithContext(c.UserContext()).Delete(v).Error; err != nil {
		return helper.WritePGError(c, err)
	}
	return helper.JsonDeleted(c, "Vehicle deleted", fiber.Map{"vehicle_id": v.VehicleID})
}

func (ctl *VehicleController) find(c *fiber.Ctx) (*model.VehicleModel, error) {
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return nil, err
	}
	var v model.VehicleModel
	if err := ctl.DB.WithContext(c.UserContext()).Where("vehicle_id = ?", id).Take(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Vehicle not found")
		}
		return nil, err
	}
	return &v, nil
}
