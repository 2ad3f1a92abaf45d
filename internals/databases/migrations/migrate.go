package migrations

import (
	"log"
	"sync/atomic"

	paymentModel "drivingschool_backend/internals/features/finance/payments/model"
	lessonModel "drivingschool_backend/internals/features/scheduling/lessons/model"
	assessmentModel "drivingschool_backend/internals/features/school/assessments/model"
	courseModel "drivingschool_backend/internals/features/school/courses/model"
	vehicleModel "drivingschool_backend/internals/features/school/vehicles/model"
	authModel "drivingschool_backend/internals/features/users/auth/model"

	"gorm.io/gorm"
)

var done atomic.Bool

// Models lists every table owned by the service, in dependency order.
func Models() []any {
	return []any{
		&authModel.UserModel{},
		&authModel.TokenBlacklist{},
		&vehicleModel.VehicleModel{},
		&courseModel.CourseModel{},
		&courseModel.EnrollmentModel{},
		&lessonModel.LessonModel{},
		&assessmentModel.AssessmentModel{},
		&paymentModel.PaymentModel{},
		&paymentModel.PaymentGatewayEventModel{},
	}
}

// AutoMigrate creates or updates the schema and flips the readiness flag.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		log.Printf("[ERROR] AutoMigrate: %v", err)
		return err
	}
	done.Store(true)
	log.Println("[INFO] AutoMigrate done")
	return nil
}

// Done reports whether AutoMigrate has completed in this process.
func Done() bool { return done.Load() }
