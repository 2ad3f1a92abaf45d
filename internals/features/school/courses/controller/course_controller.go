package controller

import (
	"errors"
	"log"

	"drivingschool_backend/internals/constants"
	"drivingschool_backend/internals/features/school/courses/dto"
	"drivingschool_backend/internals/features/school/courses/model"
	helper "drivingschool_backend/internals/helpers"
	"drivingschool_backend/internals/helpers/clock"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CourseController struct {
	DB       *gorm.DB
	Validate *validator.Validate
	Clock    clock.Clock
}

func NewCourseController(db *gorm.DB, v *validator.Validate, clk clock.Clock) *CourseController {
	if v == nil {
		v = helper.NewValidator()
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &CourseController{DB: db, Validate: v, Clock: clk}
}

// GET /courses
func (ctl *CourseController) List(c *fiber.Ctx) error {
	p := helper.ResolvePaging(c, 20, 100)
	q := ctl.DB.WithContext(c.UserContext()).Model(&model.CourseModel{}).Where("course_is_active = ?", true)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return helper.WritePGError(c, err)
	}
	var rows []model.CourseModel
	if err := q.Order("course_name ASC").Offset(p.Offset).Limit(p.Limit).Find(&rows).Error; err != nil {
		return helper.WritePGError(c, err)
	}
	return helper.JsonList(c, "ok", rows, helper.BuildPagination(total, p, rows))
}

// POST /courses (admin)
func (ctl *CourseController) Create(c *fiber.Ctx) error {
	var req dto.CreateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := ctl.Validate.Struct(&req); err != nil {
		return helper.ValidationError(c, err)
	}
	if !req.Price.IsPositive() {
		return helper.JsonValidationError(c, map[string][]string{"course_price": {"must be greater than zero"}})
	}

	m := req.ToModel()
	if err := ctl.DB.WithContext(c.UserContext()).Create(&m).Error; err != nil {
		log.Printf("[Course.Create] %v", err)
		return helper.WritePGError(c, err)
	}
	return helper.JsonCreated(c, "Course created", m)
}

// POST /courses/:id/enroll
func (ctl *CourseController) Enroll(c *fiber.Ctx) error {
	cu, err := helper.GetCurrentUser(c)
	if err != nil {
		return err
	}
	courseID, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.EnrollRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}

	studentID := cu.ID
	if req.StudentID != nil && *req.StudentID != cu.ID {
		if !cu.HasRole(constants.StaffRoles...) {
			return helper.JsonError(c, fiber.StatusForbidden, "You may only enroll yourself")
		}
		studentID = *req.StudentID
	}
	start := ctl.Clock.Now()
	if req.StartDate != nil {
		start = req.StartDate.UTC()
	}

	var out model.EnrollmentModel
	var course model.CourseModel
	err = ctl.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("course_id = ? AND course_is_active = ?", courseID, true).Take(&course).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "Course not found")
			}
			return err
		}

		var dup int64
		if err := tx.Model(&model.EnrollmentModel{}).
			Where("enrollment_student_id = ? AND enrollment_course_id = ? AND enrollment_status IN ?",
				studentID, courseID, []model.EnrollmentStatus{model.EnrollmentActive, model.EnrollmentPending}).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return fiber.NewError(fiber.StatusConflict, "Already enrolled in this course")
		}

		out = model.EnrollmentModel{
			EnrollmentStudentID: studentID,
			EnrollmentCourseID:  courseID,
			EnrollmentStatus:    model.EnrollmentActive,
			EnrollmentStartDate: start,
		}
		return tx.Create(&out).Error
	})
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return helper.JsonError(c, fe.Code, fe.Message)
		}
		log.Printf("[Course.Enroll] %v", err)
		return helper.WritePGError(c, err)
	}
	return helper.JsonCreated(c, "Enrolled", dto.NewEnrollmentResponse(out, course))
}

// GET /enrollments/mine
func (ctl *CourseController) MyEnrollments(c *fiber.Ctx) error {
	cu, err := helper.GetCurrentUser(c)
	if err != nil {
		return err
	}
	var rows []model.EnrollmentModel
	if err := ctl.DB.WithContext(c.UserContext()).
		Where("enrollment_student_id = ?", cu.ID).
		Order("enrollment_created_at DESC").
		Find(&rows).Error; err != nil {
		return helper.WritePGError(c, err)
	}

	courses, err := ctl.coursesFor(c, rows)
	if err != nil {
		return helper.WritePGError(c, err)
	}
	out := make([]dto.EnrollmentResponse, 0, len(rows))
	for _, e := range rows {
		out = append(out, dto.NewEnrollmentResponse(e, courses[e.EnrollmentCourseID]))
	}
	return helper.JsonOK(c, "ok", out)
}

// GET /enrollments/:id (owner or staff)
func (ctl *CourseController) GetEnrollment(c *fiber.Ctx) error {
	cu, err := helper.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var e model.EnrollmentModel
	if err := ctl.DB.WithContext(c.UserContext()).Where("enrollment_id = ?", id).Take(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return helper.JsonError(c, fiber.StatusNotFound, "Enrollment not found")
		}
		return helper.WritePGError(c, err)
	}
	if e.EnrollmentStudentID != cu.ID && !cu.HasRole(constants.StaffRoles...) {
		return helper.JsonError(c, fiber.StatusForbidden, "Not authorized to view this enrollment")
	}

	courses, err := ctl.coursesFor(c, []model.EnrollmentModel{e})
	if err != nil {
		return helper.WritePGError(c, err)
	}
	return helper.JsonOK(c, "ok", dto.NewEnrollmentResponse(e, courses[e.EnrollmentCourseID]))
}

// coursesFor loads the courses referenced by the enrollments in one query.
func (ctl *CourseController) coursesFor(c *fiber.Ctx, rows []model.EnrollmentModel) (map[uuid.UUID]model.CourseModel, error) {
	out := make(map[uuid.UUID]model.CourseModel, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, e := range rows {
		ids = append(ids, e.EnrollmentCourseID)
	}
	var courses []model.CourseModel
	if err := ctl.DB.WithContext(c.UserContext()).Unscoped().Where("course_id IN ?", ids).Find(&courses).Error; err != nil {
		return nil, err
	}
	for _, co := range courses {
		out[co.CourseID] = co
	}
	return out, nil
}
