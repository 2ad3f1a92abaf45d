package routes

import (
	"log"
	"time"

	"drivingschool_backend/internals/constants"
	paymentController "drivingschool_backend/internals/features/finance/payments/controller"
	paymentRoute "drivingschool_backend/internals/features/finance/payments/route"
	paymentService "drivingschool_backend/internals/features/finance/payments/service"
	lessonController "drivingschool_backend/internals/features/scheduling/lessons/controller"
	lessonRoute "drivingschool_backend/internals/features/scheduling/lessons/route"
	lessonService "drivingschool_backend/internals/features/scheduling/lessons/service"
	assessmentController "drivingschool_backend/internals/features/school/assessments/controller"
	assessmentRoute "drivingschool_backend/internals/features/school/assessments/route"
	courseController "drivingschool_backend/internals/features/school/courses/controller"
	courseRoute "drivingschool_backend/internals/features/school/courses/route"
	vehicleController "drivingschool_backend/internals/features/school/vehicles/controller"
	vehicleRoute "drivingschool_backend/internals/features/school/vehicles/route"
	authController "drivingschool_backend/internals/features/users/auth/controller"
	authRoute "drivingschool_backend/internals/features/users/auth/route"
	authService "drivingschool_backend/internals/features/users/auth/service"
	"drivingschool_backend/internals/features/users/auth/store"
	helper "drivingschool_backend/internals/helpers"
	"drivingschool_backend/internals/helpers/clock"
	"drivingschool_backend/internals/middlewares"
	authMiddleware "drivingschool_backend/internals/middlewares/auth"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var startTime time.Time

// Deps is everything the HTTP layer needs, built once in main.
type Deps struct {
	DB     *gorm.DB
	Tokens store.RevokedTokenStore
	Secret string
	JWTTTL time.Duration
	Clock  clock.Clock

	Lessons            *lessonService.Engine
	Payments           *paymentService.Engine
	MpesaCallbackToken string
}

func SetupRoutes(app *fiber.App, d Deps) {
	startTime = time.Now()
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	v := helper.NewValidator()

	BaseRoutes(app, d.DB)

	// ===================== GROUPS =====================
	log.Println("[INFO] Setting up PUBLIC group...")
	public := app.Group("/api/public")

	auth := authMiddleware.AuthMiddleware(authMiddleware.Options{
		DB:     d.DB,
		Tokens: d.Tokens,
		Secret: d.Secret,
	})

	log.Println("[INFO] Setting up PRIVATE (user) group...")
	private := app.Group("/api/u", auth)

	log.Println("[INFO] Setting up ADMIN group (Auth + admin/manager)...")
	admin := app.Group("/api/a",
		auth,
		authMiddleware.OnlyRoles(constants.RoleErrorAdmin("the admin area"), constants.AdminRoles...),
	)

	// ===================== MOUNT ROUTES =====================
	log.Println("[INFO] Mounting Auth routes...")
	authCtl := authController.NewAuthController(authService.NewAuthService(d.DB, d.Tokens, d.Secret, d.JWTTTL), v)
	authRoute.AuthPublicRoutes(public, authCtl, middlewares.LoginRateLimiter())
	authRoute.AuthUserRoutes(private, authCtl)
	authRoute.UserAdminRoutes(admin, authCtl)

	log.Println("[INFO] Mounting School routes...")
	vehicleCtl := vehicleController.NewVehicleController(d.DB, v)
	vehicleRoute.VehicleUserRoutes(private, vehicleCtl)
	vehicleRoute.VehicleAdminRoutes(admin, vehicleCtl)

	courseCtl := courseController.NewCourseController(d.DB, v, d.Clock)
	courseRoute.CourseUserRoutes(private, courseCtl)
	courseRoute.CourseAdminRoutes(admin, courseCtl)

	assessmentCtl := assessmentController.NewAssessmentController(d.DB, v, d.Clock)
	assessmentRoute.AssessmentUserRoutes(private, assessmentCtl)
	assessmentRoute.AssessmentAdminRoutes(admin, assessmentCtl)

	if d.Lessons != nil {
		log.Println("[INFO] Mounting Scheduling routes...")
		lessonCtl := lessonController.NewLessonController(d.Lessons, v)
		lessonRoute.LessonUserRoutes(private, lessonCtl)
		lessonRoute.LessonAdminRoutes(admin, lessonCtl)
	}

	if d.Payments != nil {
		log.Println("[INFO] Mounting Finance routes...")
		paymentCtl := paymentController.NewPaymentController(d.Payments, v, d.MpesaCallbackToken)
		paymentRoute.PaymentWebhookRoutes(public, paymentCtl, middlewares.WebhookRateLimiter())
		paymentRoute.PaymentUserRoutes(private, paymentCtl)
		paymentRoute.PaymentAdminRoutes(admin, paymentCtl)
	}
}
