package controller

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"drivingschool_backend/internals/constants"
	"drivingschool_backend/internals/databases/testdb"
	"drivingschool_backend/internals/features/school/courses/model"
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

type courseFixture struct {
	db      *gorm.DB
	app     *fiber.App
	student userModel.UserModel
	course  model.CourseModel
}

func newCourseFixture(t *testing.T) *courseFixture {
	t.Helper()
	db := testdb.Open(t)

	student := userModel.UserModel{UserName: "kamau", Email: "kamau@school.test", Password: "x", Role: constants.RoleStudent, IsActive: true}
	require.NoError(t, db.Create(&student).Error)
	course := model.CourseModel{CourseName: "Class B", CoursePrice: decimal.NewFromInt(25000), CourseDurationWeeks: 6, CourseIsActive: true}
	require.NoError(t, db.Create(&course).Error)

	ctl := NewCourseController(db, helper.NewValidator(), clock.NewFixed(time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)))
	app := fiber.New(fiber.Config{ErrorHandler: helper.FiberErrorHandler})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(helper.LocUserID, student.ID.String())
		c.Locals(helper.LocUserRole, constants.RoleStudent)
		return c.Next()
	})
	app.Post("/courses/:id/enroll", ctl.Enroll)
	return &courseFixture{db: db, app: app, student: student, course: course}
}

func (f *courseFixture) enroll(t *testing.T) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", "/courses/"+f.course.CourseID.String()+"/enroll", strings.NewReader(""))
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	_ = sonic.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestEnrollTwiceIsConflict(t *testing.T) {
	f := newCourseFixture(t)

	status, body := f.enroll(t)
	require.Equal(t, fiber.StatusCreated, status, body)
	data := body["data"].(map[string]any)
	assert.Equal(t, "Class B", data["course_name"])

	status, body = f.enroll(t)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "CONFLICT", body["error_code"])
	assert.Equal(t, "Already enrolled in this course", body["message"])

	var n int64
	require.NoError(t, f.db.Model(&model.EnrollmentModel{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestReenrollAfterDropping(t *testing.T) {
	f := newCourseFixture(t)
	status, _ := f.enroll(t)
	require.Equal(t, fiber.StatusCreated, status)

	require.NoError(t, f.db.Model(&model.EnrollmentModel{}).
		Where("enrollment_student_id = ?", f.student.ID).
		Update("enrollment_status", model.EnrollmentDropped).Error)

	status, _ = f.enroll(t)
	assert.Equal(t, fiber.StatusCreated, status)
}
