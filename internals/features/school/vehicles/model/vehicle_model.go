package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VehicleType string

const (
	VehicleManual    VehicleType = "manual"
	VehicleAutomatic VehicleType = "automatic"
)

type VehicleModel struct {
	VehicleID uuid.UUID `gorm:"column:vehicle_id;type:uuid;primaryKey" json:"vehicle_id"`

	VehicleRegNumber       string      `gorm:"column:vehicle_reg_number;size:20;not null;uniqueIndex:uq_vehicles_reg_number" json:"vehicle_reg_number"`
	VehicleType            VehicleType `gorm:"column:vehicle_type;type:varchar(20);not null;default:'manual'" json:"vehicle_type"`
	VehicleMakeModel       string      `gorm:"column:vehicle_make_model;size:100;not null" json:"vehicle_make_model"`
	VehicleInsuranceExpiry *time.Time  `gorm:"column:vehicle_insurance_expiry" json:"vehicle_insurance_expiry,omitempty"`
	VehicleNextServiceDate *time.Time  `gorm:"column:vehicle_next_service_date" json:"vehicle_next_service_date,omitempty"`
	VehicleIsActive        bool        `gorm:"column:vehicle_is_active;not null;default:true;index" json:"vehicle_is_active"`

	VehicleCreatedAt time.Time      `gorm:"column:vehicle_created_at;autoCreateTime" json:"vehicle_created_at"`
	VehicleUpdatedAt time.Time      `gorm:"column:vehicle_updated_at;autoUpdateTime" json:"vehicle_updated_at"`
	VehicleDeletedAt gorm.DeletedAt `gorm:"column:vehicle_deleted_at;index" json:"-"`
}

func (VehicleModel) TableName() string { return "vehicles" }

func (v *VehicleModel) BeforeCreate(tx *gorm.DB) error {
	if v.VehicleID == uuid.Nil {
		v.VehicleID = uuid.New()
	}
	return nil
}

func (v *VehicleModel) BeforeSave(tx *gorm.DB) error {
	v.VehicleRegNumber = NormalizeRegNumber(v.VehicleRegNumber)
	return nil
}

// NormalizeRegNumber upper-cases and strips spaces: "kca 123a" -> "KCA123A".
func NormalizeRegNumber(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// InsuredOn reports whether insurance still covers the calendar day of t in
// loc. Cover runs through the whole expiry day. A vehicle with no recorded
// expiry is treated as insured.
func (v *VehicleModel) InsuredOn(t time.Time, loc *time.Location) bool {
	if v.VehicleInsuranceExpiry == nil {
		return true
	}
	if loc == nil {
		loc = time.UTC
	}
	ey, em, ed := v.VehicleInsuranceExpiry.In(loc).Date()
	ly, lm, ld := t.In(loc).Date()
	return !time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC).Before(time.Date(ly, lm, ld, 0, 0, 0, 0, time.UTC))
}
