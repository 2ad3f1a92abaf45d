package controller

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"drivingschool_backend/internals/configs"
	"drivingschool_backend/internals/constants"
	"drivingschool_backend/internals/databases/testdb"
	"drivingschool_backend/internals/features/finance/payments/model"
	"drivingschool_backend/internals/features/finance/payments/service"
	courseModel "drivingschool_backend/internals/features/school/courses/model"
	userModel "drivingschool_backend/internals/features/users/auth/model"
	helper "drivingschool_backend/internals/helpers"
	"drivingschool_backend/internals/helpers/clock"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const callbackBody = `{"Body":{"stkCallback":{
	"MerchantRequestID":"29115-34620561-1",
	"CheckoutRequestID":"ws_CO_191220191020363925",
	"ResultCode":0,
	"ResultDesc":"The service request is processed successfully.",
	"CallbackMetadata":{"Item":[
		{"Name":"Amount","Value":2500},
		{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"}
	]}}}}`

type webhookFixture struct {
	db         *gorm.DB
	app        *fiber.App
	enrollment courseModel.EnrollmentModel
	payment    model.PaymentModel
}

func newWebhookFixture(t *testing.T, token string) *webhookFixture {
	t.Helper()
	db := testdb.Open(t)
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

	student := userModel.UserModel{UserName: "wanjiru", Email: "wanjiru@school.test", Password: "x", Role: constants.RoleStudent, IsActive: true}
	require.NoError(t, db.Create(&student).Error)
	course := courseModel.CourseModel{CourseName: "Class B", CoursePrice: decimal.NewFromInt(25000), CourseDurationWeeks: 6, CourseIsActive: true}
	require.NoError(t, db.Create(&course).Error)
	enr := courseModel.EnrollmentModel{
		EnrollmentStudentID: student.ID,
		EnrollmentCourseID:  course.CourseID,
		EnrollmentStatus:    courseModel.EnrollmentActive,
		EnrollmentStartDate: now,
	}
	require.NoError(t, db.Create(&enr).Error)

	ref := "ws_CO_191220191020363925"
	p := model.PaymentModel{
		PaymentEnrollmentID:  enr.EnrollmentID,
		PaymentStudentID:     student.ID,
		PaymentAmount:        decimal.NewFromInt(2500),
		PaymentCurrency:      "KES",
		PaymentStatus:        model.PaymentStatusPending,
		PaymentMethod:        model.PaymentMethodMpesa,
		PaymentGateway:       model.GatewayMpesa,
		PaymentExternalRef:   &ref,
		PaymentCorrelationID: &ref,
	}
	require.NoError(t, db.Create(&p).Error)

	engine := service.NewEngine(db, clock.NewFixed(now), configs.DefaultPaymentConfig(),
		map[model.PaymentMethod]service.PaymentGateway{
			model.PaymentMethodMpesa: service.NewMpesaGateway(configs.MpesaConfig{}),
		})
	h := NewPaymentController(engine, helper.NewValidator(), token)

	app := fiber.New()
	app.Post("/callback/mpesa", h.MpesaCallback)
	app.Post("/callback/midtrans", h.MidtransCallback)
	app.Get("/events", h.ListEvents)
	return &webhookFixture{db: db, app: app, enrollment: enr, payment: p}
}

func (f *webhookFixture) post(t *testing.T, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	_ = sonic.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func (f *webhookFixture) totalPaid(t *testing.T) decimal.Decimal {
	t.Helper()
	var enr courseModel.EnrollmentModel
	require.NoError(t, f.db.Where("enrollment_id = ?", f.enrollment.EnrollmentID).Take(&enr).Error)
	return enr.EnrollmentTotalPaid
}

func (f *webhookFixture) outcomes(t *testing.T) map[model.GatewayEventOutcome]int {
	t.Helper()
	var rows []model.PaymentGatewayEventModel
	require.NoError(t, f.db.Find(&rows).Error)
	out := map[model.GatewayEventOutcome]int{}
	for _, r := range rows {
		out[r.GatewayEventOutcome]++
		if r.GatewayEventPaymentID != nil {
			assert.Equal(t, f.payment.PaymentID, *r.GatewayEventPaymentID)
		}
	}
	return out
}

func TestMpesaCallbackRejectsBadToken(t *testing.T) {
	f := newWebhookFixture(t, "s3cret")

	for _, path := range []string{"/callback/mpesa", "/callback/mpesa?token=wrong"} {
		status, _ := f.post(t, path, callbackBody)
		assert.Equal(t, fiber.StatusUnauthorized, status, path)
	}
	assert.True(t, f.totalPaid(t).IsZero())

	var p model.PaymentModel
	require.NoError(t, f.db.Where("payment_id = ?", f.payment.PaymentID).Take(&p).Error)
	assert.Equal(t, model.PaymentStatusPending, p.PaymentStatus)

	assert.Equal(t, map[model.GatewayEventOutcome]int{model.GatewayEventRejected: 2}, f.outcomes(t))
}

func TestMpesaCallbackWithoutConfiguredTokenIsRejected(t *testing.T) {
	f := newWebhookFixture(t, "")
	status, _ := f.post(t, "/callback/mpesa?token=", callbackBody)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.True(t, f.totalPaid(t).IsZero())
}

func TestMpesaCallbackCompletesOnce(t *testing.T) {
	f := newWebhookFixture(t, "s3cret")

	status, body := f.post(t, "/callback/mpesa?token=s3cret", callbackBody)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 0, body["ResultCode"])
	assert.Equal(t, "completed", body["outcome"])
	assert.True(t, decimal.NewFromInt(2500).Equal(f.totalPaid(t)))

	status, body = f.post(t, "/callback/mpesa?token=s3cret", callbackBody)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "already_processed", body["outcome"])
	assert.True(t, decimal.NewFromInt(2500).Equal(f.totalPaid(t)))

	assert.Equal(t, map[model.GatewayEventOutcome]int{
		model.GatewayEventCompleted:        1,
		model.GatewayEventAlreadyProcessed: 1,
	}, f.outcomes(t))
}

func TestMpesaCallbackUnknownCheckoutIsAcknowledged(t *testing.T) {
	f := newWebhookFixture(t, "s3cret")
	body := strings.Replace(callbackBody, "ws_CO_191220191020363925", "ws_CO_unknown", 1)

	status, out := f.post(t, "/callback/mpesa?token=s3cret", body)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "unmatched", out["outcome"])
	assert.True(t, f.totalPaid(t).IsZero())
}

func TestMpesaCallbackMalformedBody(t *testing.T) {
	f := newWebhookFixture(t, "s3cret")
	status, _ := f.post(t, "/callback/mpesa?token=s3cret", `{"Body":{}}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestMidtransCallbackNotConfigured(t *testing.T) {
	f := newWebhookFixture(t, "s3cret")
	status, _ := f.post(t, "/callback/midtrans", `{}`)
	assert.Equal(t, fiber.StatusNotFound, status)
}
