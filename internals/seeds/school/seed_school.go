package school

import (
	"log"
	"os"
	"strings"
	"time"

	courseModel "drivingschool_backend/internals/features/school/courses/model"
	vehicleModel "drivingschool_backend/internals/features/school/vehicles/model"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CourseSeed struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	DurationWeeks int             `json:"duration_weeks"`
}

type VehicleSeed struct {
	RegNumber       string `json:"reg_number"`
	Type            string `json:"type"`
	MakeModel       string `json:"make_model"`
	InsuranceMonths int    `json:"insurance_months"`
}

type Seed struct {
	Courses  []CourseSeed  `json:"courses"`
	Vehicles []VehicleSeed `json:"vehicles"`
}

// SeedSchoolFromJSON loads the course catalogue and the fleet. Existing rows
// (same course name / registration) are left alone.
func SeedSchoolFromJSON(db *gorm.DB, filePath string) {
	log.Println("📥 Reading school data from", filePath)

	file, err := os.ReadFile(filePath)
	if err != nil {
		log.Fatalf("❌ cannot read %s: %v", filePath, err)
	}
	var in Seed
	if err := sonic.Unmarshal(file, &in); err != nil {
		log.Fatalf("❌ cannot decode %s: %v", filePath, err)
	}

	for _, c := range in.Courses {
		var n int64
		db.Model(&courseModel.CourseModel{}).Where("course_name = ?", c.Name).Count(&n)
		if n > 0 {
			log.Printf("ℹ️ course '%s' already exists, skipped", c.Name)
			continue
		}
		row := courseModel.CourseModel{
			CourseName:          c.Name,
			CoursePrice:         c.Price,
			CourseDurationWeeks: c.DurationWeeks,
			CourseIsActive:      true,
		}
		if d := strings.TrimSpace(c.Description); d != "" {
			row.CourseDescription = &d
		}
		if err := db.Create(&row).Error; err != nil {
			log.Printf("❌ insert course '%s': %v", c.Name, err)
			continue
		}
		log.Printf("✅ course '%s' created", c.Name)
	}

	now := time.Now().UTC()
	for _, v := range in.Vehicles {
		reg := strings.ToUpper(strings.TrimSpace(v.RegNumber))
		var n int64
		db.Model(&vehicleModel.VehicleModel{}).Where("vehicle_reg_number = ?", reg).Count(&n)
		if n > 0 {
			log.Printf("ℹ️ vehicle '%s' already exists, skipped", reg)
			continue
		}
		row := vehicleModel.VehicleModel{
			VehicleRegNumber: reg,
			VehicleType:      vehicleModel.VehicleType(v.Type),
			VehicleMakeModel: v.MakeModel,
			VehicleIsActive:  true,
		}
		if v.InsuranceMonths > 0 {
			exp := now.AddDate(0, v.InsuranceMonths, 0)
			row.VehicleInsuranceExpiry = &exp
		}
		if err := db.Create(&row).Error; err != nil {
			log.Printf("❌ insert vehicle '%s': %v", reg, err)
			continue
		}
		log.Printf("✅ vehicle '%s' created", reg)
	}
}
