package controller_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"drivingschool_backend/internals/constants"
	"drivingschool_backend/internals/databases/testdb"
	lessonModel "drivingschool_backend/internals/features/scheduling/lessons/model"
	"drivingschool_backend/internals/features/school/assessments/controller"
	"drivingschool_backend/internals/features/school/assessments/model"
	"drivingschool_backend/internals/features/school/assessments/route"
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

var assessNow = time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

type assessFixture struct {
	db          *gorm.DB
	app         *fiber.App
	actor       userModel.UserModel
	admin       userModel.UserModel
	instructor  userModel.UserModel
	instructor2 userModel.UserModel
	student     userModel.UserModel
	other       userModel.UserModel
	enrollment  courseModel.EnrollmentModel
	lesson      lessonModel.LessonModel
}

func newAssessFixture(t *testing.T) *assessFixture {
	t.Helper()
	db := testdb.Open(t)
	f := &assessFixture{db: db}

	mkUser := func(name, role string) userModel.UserModel {
		u := userModel.UserModel{UserName: name, Email: name + "@school.test", Password: "x", Role: role, IsActive: true}
		require.NoError(t, db.Create(&u).Error)
		return u
	}
	f.admin = mkUser("mwangi", constants.RoleAdmin)
	f.instructor = mkUser("wanjiru", constants.RoleInstructor)
	f.instructor2 = mkUser("otieno", constants.RoleInstructor)
	f.student = mkUser("kamau", constants.RoleStudent)
	f.other = mkUser("achieng", constants.RoleStudent)

	course := courseModel.CourseModel{CourseName: "Class B", CoursePrice: decimal.NewFromInt(25000), CourseDurationWeeks: 6, CourseIsActive: true}
	require.NoError(t, db.Create(&course).Error)
	f.enrollment = courseModel.EnrollmentModel{
		EnrollmentStudentID: f.student.ID,
		EnrollmentCourseID:  course.CourseID,
		EnrollmentStatus:    courseModel.EnrollmentActive,
		EnrollmentStartDate: assessNow,
	}
	require.NoError(t, db.Create(&f.enrollment).Error)

	f.lesson = lessonModel.LessonModel{
		LessonEnrollmentID: f.enrollment.EnrollmentID,
		LessonInstructorID: f.instructor.ID,
		LessonStartAt:      assessNow.Add(-48 * time.Hour),
		LessonEndAt:        assessNow.Add(-47 * time.Hour),
		LessonType:         lessonModel.LessonPractical,
		LessonStatus:       lessonModel.LessonCompleted,
	}
	require.NoError(t, db.Create(&f.lesson).Error)

	ctl := controller.NewAssessmentController(db, helper.NewValidator(), clock.NewFixed(assessNow))
	app := fiber.New(fiber.Config{ErrorHandler: helper.FiberErrorHandler})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(helper.LocUserID, f.actor.ID.String())
		c.Locals(helper.LocUserRole, f.actor.Role)
		return c.Next()
	})
	route.AssessmentUserRoutes(app.Group("/u"), ctl)
	route.AssessmentAdminRoutes(app.Group("/a"), ctl)
	f.app = app
	f.actor = f.instructor
	return f
}

func (f *assessFixture) as(u userModel.UserModel) { f.actor = u }

func (f *assessFixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
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

func (f *assessFixture) body(score, max string, extra string) string {
	return `{"enrollment_id":"` + f.enrollment.EnrollmentID.String() +
		`","assessment_type":"practical_eval","score":` + score + `,"max_score":` + max + extra + `}`
}

func (f *assessFixture) create(t *testing.T, score, max string) string {
	t.Helper()
	status, body := f.do(t, "POST", "/u/assessments", f.body(score, max, ""))
	require.Equal(t, fiber.StatusCreated, status, body)
	return body["data"].(map[string]any)["assessment_id"].(string)
}

func (f *assessFixture) count(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.AssessmentModel{}).Count(&n).Error)
	return n
}

func TestInstructorRecordsAssessment(t *testing.T) {
	f := newAssessFixture(t)

	cases := []struct {
		score, max string
		passed     bool
	}{
		{"45", "50", true},
		{"30", "50", true},
		{"29.5", "50", false},
	}
	for _, tc := range cases {
		status, body := f.do(t, "POST", "/u/assessments", f.body(tc.score, tc.max, ""))
		require.Equal(t, fiber.StatusCreated, status, body)
		data := body["data"].(map[string]any)
		assert.Equal(t, tc.passed, data["assessment_passed"], "%s/%s", tc.score, tc.max)
		assert.Equal(t, f.instructor.ID.String(), data["assessment_instructor_id"])
		assert.Equal(t, f.enrollment.EnrollmentID.String(), data["assessment_enrollment_id"])
	}
	assert.Equal(t, int64(3), f.count(t))
}

func TestAssessmentScoreRules(t *testing.T) {
	f := newAssessFixture(t)

	cases := map[string]string{
		f.body("55", "50", ""): "Score (55) cannot exceed maximum score (50)",
		f.body("-1", "50", ""): "Score cannot be negative",
		f.body("0", "0", ""):   "Maximum score must be greater than zero",
	}
	for body, msg := range cases {
		status, resp := f.do(t, "POST", "/u/assessments", body)
		require.Equal(t, fiber.StatusUnprocessableEntity, status)
		assert.Equal(t, msg, resp["message"])
		assert.Contains(t, resp["errors"], "score")
	}

	status, _ := f.do(t, "POST", "/u/assessments", `{"enrollment_id":"`+f.enrollment.EnrollmentID.String()+`","assessment_type":"driving","score":1,"max_score":2}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Zero(t, f.count(t))
}

func TestOnlyTeachingInstructorsAssess(t *testing.T) {
	f := newAssessFixture(t)

	f.as(f.instructor2)
	status, body := f.do(t, "POST", "/u/assessments", f.body("40", "50", ""))
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "Instructor is not assigned to any lessons for this enrollment", body["message"])

	f.as(f.instructor)
	status, _ = f.do(t, "POST", "/u/assessments", f.body("40", "50", `,"instructor_id":"`+f.instructor2.ID.String()+`"`))
	assert.Equal(t, fiber.StatusForbidden, status)

	f.as(f.student)
	status, _ = f.do(t, "POST", "/u/assessments", f.body("40", "50", ""))
	assert.Equal(t, fiber.StatusForbidden, status)

	assert.Zero(t, f.count(t))
}

func TestAdminAssessesOnBehalfOfInstructor(t *testing.T) {
	f := newAssessFixture(t)
	f.as(f.admin)

	status, body := f.do(t, "POST", "/u/assessments", f.body("40", "50", ""))
	require.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Contains(t, body["errors"], "instructor_id")

	status, body = f.do(t, "POST", "/u/assessments", f.body("40", "50", `,"instructor_id":"`+f.student.ID.String()+`"`))
	require.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "Instructor not found", body["message"])

	status, body = f.do(t, "POST", "/u/assessments", f.body("40", "50", `,"instructor_id":"`+f.instructor2.ID.String()+`"`))
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, f.instructor2.ID.String(), body["data"].(map[string]any)["assessment_instructor_id"])
}

func TestAssessmentReferenceChecks(t *testing.T) {
	f := newAssessFixture(t)

	status, body := f.do(t, "POST", "/u/assessments", f.body("40", "50", `,"lesson_id":"`+uuid.NewString()+`"`))
	require.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "Lesson not found for this enrollment", body["message"])
	assert.Contains(t, body["errors"], "reference")

	status, _ = f.do(t, "POST", "/u/assessments", f.body("40", "50", `,"lesson_id":"`+f.lesson.LessonID.String()+`"`))
	require.Equal(t, fiber.StatusCreated, status)

	require.NoError(t, f.db.Model(&courseModel.EnrollmentModel{}).Where("enrollment_id = ?", f.enrollment.EnrollmentID).Update("enrollment_status", courseModel.EnrollmentDropped).Error)
	status, body = f.do(t, "POST", "/u/assessments", f.body("40", "50", ""))
	require.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "Cannot assess enrollment with status: dropped", body["message"])
}

func TestStudentsSeeOnlyTheirAssessments(t *testing.T) {
	f := newAssessFixture(t)
	id := f.create(t, "45", "50")
	enrollmentPath := "/u/assessments/enrollment/" + f.enrollment.EnrollmentID.String()

	f.as(f.student)
	status, body := f.do(t, "GET", "/u/assessments/mine", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, _ = f.do(t, "GET", "/u/assessments/"+id, "")
	assert.Equal(t, fiber.StatusOK, status)

	status, body = f.do(t, "GET", enrollmentPath+"?type=practical_eval", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 1)
	status, body = f.do(t, "GET", enrollmentPath+"?type=theory_test", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 0)
	status, _ = f.do(t, "GET", enrollmentPath+"?type=parking", "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	f.as(f.other)
	status, body = f.do(t, "GET", "/u/assessments/mine", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 0)

	status, _ = f.do(t, "GET", "/u/assessments/"+id, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	status, _ = f.do(t, "GET", enrollmentPath, "")
	assert.Equal(t, fiber.StatusForbidden, status)

	f.as(f.instructor)
	status, _ = f.do(t, "GET", "/u/assessments/mine", "")
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestPatchAssessmentRecomputesPassed(t *testing.T) {
	f := newAssessFixture(t)
	id := f.create(t, "45", "50")
	path := "/u/assessments/" + id

	f.as(f.instructor2)
	status, _ := f.do(t, "PATCH", path, `{"score":20}`)
	assert.Equal(t, fiber.StatusForbidden, status)

	f.as(f.instructor)
	status, body := f.do(t, "PATCH", path, `{"score":20}`)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, false, body["data"].(map[string]any)["assessment_passed"])

	status, body = f.do(t, "PATCH", path, `{"score":70}`)
	require.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "Score (70) cannot exceed maximum score (50)", body["message"])

	status, body = f.do(t, "PATCH", path, `{"passed":true,"notes":"  retake waived  "}`)
	require.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["assessment_passed"])
	assert.Equal(t, "retake waived", data["assessment_notes"])

	var stored model.AssessmentModel
	require.NoError(t, f.db.Where("assessment_id = ?", id).Take(&stored).Error)
	assert.True(t, stored.AssessmentScore.Equal(decimal.NewFromInt(20)))
}

func TestAdminDeletesAssessment(t *testing.T) {
	f := newAssessFixture(t)
	id := f.create(t, "45", "50")

	status, _ := f.do(t, "DELETE", "/a/assessments/"+id, "")
	assert.Equal(t, fiber.StatusForbidden, status)

	f.as(f.admin)
	status, _ = f.do(t, "DELETE", "/a/assessments/"+id, "")
	require.Equal(t, fiber.StatusOK, status)

	status, _ = f.do(t, "GET", "/u/assessments/"+id, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	status, _ = f.do(t, "DELETE", "/a/assessments/"+id, "")
	assert.Equal(t, fiber.StatusNotFound, status)
}
