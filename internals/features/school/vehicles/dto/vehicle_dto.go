package dto

import (
	"time"

	"drivingschool_backend/internals/features/school/vehicles/model"
)

type CreateVehicleRequest struct {
	RegNumber       string     `json:"vehicle_reg_number" validate:"required,min=3,max=20"`
	Type            string     `json:"vehicle_type" validate:"omitempty,oneof=manual automatic"`
	MakeModel       string     `json:"vehicle_make_model" validate:"required,max=100"`
	InsuranceExpiry *time.Time `json:"vehicle_insurance_expiry"`
	NextServiceDate *time.Time `json:"vehicle_next_service_date"`
}

func (r CreateVehicleRequest) ToModel() model.VehicleModel {
	t := model.VehicleManual
	if r.Type != "" {
		t = model.VehicleType(r.Type)
	}
	return model.VehicleModel{
		VehicleRegNumber:       model.NormalizeRegNumber(r.RegNumber),
		VehicleType:            t,
		VehicleMakeModel:       r.MakeModel,
		VehicleInsuranceExpiry: r.InsuranceExpiry,
		VehicleNextServiceDate: r.NextServiceDate,
		VehicleIsActive:        true,
	}
}

// UpdateVehicleRequest is a PATCH: nil fields are left unchanged.
type UpdateVehicleRequest struct {
	RegNumber       *string    `json:"vehicle_reg_number" validate:"omitempty,min=3,max=20"`
	Type            *string    `json:"vehicle_type" validate:"omitempty,oneof=manual automatic"`
	MakeModel       *string    `json:"vehicle_make_model" validate:"omitempty,max=100"`
	InsuranceExpiry *time.Time `json:"vehicle_insurance_expiry"`
	NextServiceDate *time.Time `json:"vehicle_next_service_date"`
	IsActive        *bool      `json:"vehicle_is_active"`
}

func (r UpdateVehicleRequest) Apply(v *model.VehicleModel) {
	if r.RegNumber != nil {
		v.VehicleRegNumber = model.NormalizeRegNumber(*r.RegNumber)
	}
	if r.Type != nil {
		v.VehicleType = model.VehicleType(*r.Type)
	}
	if r.MakeModel != nil {
		v.VehicleMakeModel = *r.MakeModel
	}
	if r.InsuranceExpiry != nil {
		v.VehicleInsuranceExpiry = r.InsuranceExpiry
	}
	if r.NextServiceDate != nil {
		v.VehicleNextServiceDate = r.NextServiceDate
	}
	if r.IsActive != nil {
		v.VehicleIsActive = *r.IsActive
	}
}
