package controller

import (
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"drivingschool_backend/internals/configs"
	"drivingschool_backend/internals/constants"
	"drivingschool_backend/internals/databases/testdb"
	"drivingschool_backend/internals/features/scheduling/lessons/model"
	"drivingschool_backend/internals/features/scheduling/lessons/service"
	courseModel "drivingschool_backend/internals/features/school/courses/model"
	userModel "drivingschool_backend/internals/features/users/auth/model"
	helper "drivingschool_backend/internals/helpers"
	"drivingschool_backend/internals/helpers/clock"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type httpFixture struct {
	app        *fiber.App
	db         *gorm.DB
	instructor userModel.UserModel
	enrollment courseModel.EnrollmentModel
}

// Fri 2026-10-16 08:00 UTC
var ctlNow = time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

func newHTTPFixture(t *testing.T) *httpFixture {
	t.Helper()
	db := testdb.Open(t)

	instructor := userModel.UserModel{UserName: "wanjiru", Email: "wanjiru@school.test", Password: "x", Role: constants.RoleInstructor, IsActive: true}
	require.NoError(t, db.Create(&instructor).Error)
	student := userModel.UserModel{UserName: "kamau", Email: "kamau@school.test", Password: "x", Role: constants.RoleStudent, IsActive: true}
	require.NoError(t, db.Create(&student).Error)
	course := courseModel.CourseModel{CourseName: "Class B", CoursePrice: decimal.NewFromInt(25000), CourseDurationWeeks: 6, CourseIsActive: true}
	require.NoError(t, db.Create(&course).Error)
	enr := courseModel.EnrollmentModel{
		EnrollmentStudentID: student.ID,
		EnrollmentCourseID:  course.CourseID,
		EnrollmentStatus:    courseModel.EnrollmentActive,
		EnrollmentStartDate: ctlNow,
	}
	require.NoError(t, db.Create(&enr).Error)

	engine := service.NewEngine(db, nil, clock.NewFixed(ctlNow), configs.DefaultSchedulingConfig())
	ctl := NewLessonController(engine, helper.NewValidator())

	app := fiber.New(fiber.Config{ErrorHandler: helper.FiberErrorHandler})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(helper.LocUserID, student.ID.String())
		c.Locals(helper.LocUserRole, constants.RoleStudent)
		return c.Next()
	})
	app.Post("/lessons", ctl.Book)
	app.Get("/lessons/:id", ctl.GetByID)
	app.Get("/instructors/:id/availability", ctl.InstructorAvailability)
	return &httpFixture{app: app, db: db, instructor: instructor, enrollment: enr}
}

func (f *httpFixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	_ = sonic.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func (f *httpFixture) bookBody(start string, minutes int) string {
	return `{"start_at":"` + start + `","duration_minutes":` + strconv.Itoa(minutes) +
		`,"instructor_id":"` + f.instructor.ID.String() +
		`","enrollment_id":"` + f.enrollment.EnrollmentID.String() + `"}`
}

func TestBookLessonOverHTTP(t *testing.T) {
	f := newHTTPFixture(t)

	status, body := f.do(t, "POST", "/lessons", f.bookBody("2026-10-19T10:00:00Z", 60))
	require.Equal(t, fiber.StatusCreated, status, body)
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 60, data["duration_minutes"])

	status, body = f.do(t, "POST", "/lessons", f.bookBody("2026-10-19T10:30:00Z", 60))
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "CONFLICT", body["error_code"])
}

func TestBookLessonRuleViolationIs422(t *testing.T) {
	f := newHTTPFixture(t)

	status, body := f.do(t, "POST", "/lessons", f.bookBody("2026-10-18T10:00:00Z", 60))
	require.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "VALIDATION_ERROR", body["error_code"])
	errs := body["errors"].(map[string]any)
	assert.Contains(t, errs, service.RuleSundayClosed)

	status, body = f.do(t, "POST", "/lessons", f.bookBody("2026-10-19T10:00:00Z", 20))
	require.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Contains(t, body["errors"].(map[string]any), service.RuleMinDuration)
}

func TestBookLessonRejectsEndAndDuration(t *testing.T) {
	f := newHTTPFixture(t)
	body := `{"start_at":"2026-10-19T10:00:00Z","end_at":"2026-10-19T11:00:00Z","duration_minutes":60,` +
		`"instructor_id":"` + f.instructor.ID.String() + `","enrollment_id":"` + f.enrollment.EnrollmentID.String() + `"}`

	status, _ := f.do(t, "POST", "/lessons", body)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
}

func TestGetUnknownLesson(t *testing.T) {
	f := newHTTPFixture(t)
	status, _ := f.do(t, "GET", "/lessons/"+uuid.NewString(), "")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = f.do(t, "GET", "/lessons/not-a-uuid", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestGetLessonOfAnotherStudentIsNotFound(t *testing.T) {
	f := newHTTPFixture(t)

	status, body := f.do(t, "POST", "/lessons", f.bookBody("2026-10-19T10:00:00Z", 60))
	require.Equal(t, fiber.StatusCreated, status)
	own := body["data"].(map[string]any)["lesson_id"].(string)

	stranger := userModel.UserModel{UserName: "njeri", Email: "njeri@school.test", Password: "x", Role: constants.RoleStudent, IsActive: true}
	require.NoError(t, f.db.Create(&stranger).Error)
	theirs := courseModel.EnrollmentModel{
		EnrollmentStudentID: stranger.ID,
		EnrollmentCourseID:  f.enrollment.EnrollmentCourseID,
		EnrollmentStatus:    courseModel.EnrollmentActive,
		EnrollmentStartDate: ctlNow,
	}
	require.NoError(t, f.db.Create(&theirs).Error)
	foreign := model.LessonModel{
		LessonEnrollmentID: theirs.EnrollmentID,
		LessonInstructorID: f.instructor.ID,
		LessonStartAt:      time.Date(2026, 10, 20, 10, 0, 0, 0, time.UTC),
		LessonEndAt:        time.Date(2026, 10, 20, 11, 0, 0, 0, time.UTC),
		LessonType:         model.LessonPractical,
		LessonStatus:       model.LessonScheduled,
	}
	require.NoError(t, f.db.Create(&foreign).Error)

	status, _ = f.do(t, "GET", "/lessons/"+own, "")
	assert.Equal(t, fiber.StatusOK, status)

	status, body = f.do(t, "GET", "/lessons/"+foreign.LessonID.String(), "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Nil(t, body["data"])
}

func TestInstructorAvailabilityOverHTTP(t *testing.T) {
	f := newHTTPFixture(t)
	status, _ := f.do(t, "POST", "/lessons", f.bookBody("2026-10-19T10:00:00Z", 60))
	require.Equal(t, fiber.StatusCreated, status)

	status, body := f.do(t, "GET", "/instructors/"+f.instructor.ID.String()+"/availability?date=2026-10-19", "")
	require.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "2026-10-19", data["date"])
	assert.Len(t, data["busy"], 1)

	status, _ = f.do(t, "GET", "/instructors/"+f.instructor.ID.String()+"/availability?date=19-10-2026", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}
