package controller

import (
	"errors"
	"log"

	"drivingschool_backend/internals/constants"
	lessonModel "drivingschool_backend/internals/features/scheduling/lessons/model"
	"drivingschool_backend/internals/features/school/assessments/dto"
	"drivingschool_backend/internals/features/school/assessments/model"
	courseModel "drivingschool_backend/internals/features/school/courses/model"
	userModel "drivingschool_backend/internals/features/users/auth/model"
	helper "drivingschool_backend/internals/helpers"
	"drivingschool_backend/internals/helpers/clock"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ruleError is a 422 carrying the violated rule name.
type ruleError struct{ rule, msg string }

func (e *ruleError) Error() string { return e.msg }

type AssessmentController struct {
	DB       *gorm.DB
	Validate *validator.Validate
	Clock    clock.Clock
}

func NewAssessmentController(db *gorm.DB, v *validator.Validate, clk clock.Clock) *AssessmentController {
	if v == nil {
		v = helper.NewValidator()
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &AssessmentController{DB: db, Validate: v, Clock: clk}
}

// POST /assessments (staff). Instructors only assess students they have
// taught, and only in their own name.
func (ctl *AssessmentController) Create(c *fiber.Ctx) error {
	cu, err := helper.GetCurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateAssessmentRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := ctl.Validate.Struct(&req); err != nil {
		return helper.ValidationError(c, err)
	}
	if msg := model.ScoreError(req.Score, req.MaxScore); msg != "" {
		return helper.JsonRuleError(c, "score", msg)
	}

	instructorID := cu.ID
	isInstructor := cu.HasRole(constants.RoleInstructor)
	switch {
	case req.InstructorID != nil && isInstructor && *req.InstructorID != cu.ID:
		return helper.JsonError(c, fiber.StatusForbidden, "Instructors can only create assessments for their own students")
	case req.InstructorID != nil:
		instructorID = *req.InstructorID
	case !isInstructor:
		return helper.JsonValidationError(c, map[string][]string{"instructor_id": {"required"}})
	}

	out := req.ToModel(instructorID, ctl.Clock.Now())
	err = ctl.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var enr courseModel.EnrollmentModel
		if err := tx.Where("enrollment_id = ?", req.EnrollmentID).Take(&enr).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &ruleError{"reference", "Enrollment not found"}
			}
			return err
		}
		if !enr.IsOpen() {
			return &ruleError{"reference", "Cannot assess enrollment with status: " + string(enr.EnrollmentStatus)}
		}

		var instructor userModel.UserModel
		err := tx.Select("id", "role").Where("id = ?", instructorID).Take(&instructor).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && instructor.Role != constants.RoleInstructor) {
			return &ruleError{"reference", "Instructor not found"}
		}
		if err != nil {
			return err
		}

		if isInstructor {
			var taught int64
			if err := tx.Model(&lessonModel.LessonModel{}).
				Where("lesson_enrollment_id = ? AND lesson_instructor_id = ?", enr.EnrollmentID, instructorID).
				Count(&taught).Error; err != nil {
				return err
			}
			if taught == 0 {
				return fiber.NewError(fiber.StatusForbidden, "Instructor is not assigned to any lessons for this enrollment")
			}
		}

		if req.LessonID != nil {
			var n int64
			if err := tx.Model(&lessonModel.LessonModel{}).
				Where("lesson_id = ? AND lesson_enrollment_id = ?", *req.LessonID, enr.EnrollmentID).
				Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return &ruleError{"reference", "Lesson not found for this enrollment"}
			}
		}
		return tx.Create(&out).Error
	})
	if err != nil {
		return writeAssessmentError(c, "Assessment.Create", err)
	}
	log.Printf("[Assessment.Create] id=%s enrollment=%s type=%s passed=%t by %s",
		out.AssessmentID, out.AssessmentEnrollmentID, out.AssessmentType, out.AssessmentPassed, cu.ID)
	return helper.JsonCreated(c, "Assessment recorded", out)
}

// GET /assessments/enrollment/:id?type=
func (ctl *AssessmentController) ListByEnrollment(c *fiber.Ctx) error {
	cu, err := helper.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var enr courseModel.EnrollmentModel
	if err := ctl.DB.WithContext(c.UserContext()).Where("enrollment_id = ?", id).Take(&enr).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return helper.JsonError(c, fiber.StatusNotFound, "Enrollment not found")
		}
		return helper.WritePGError(c, err)
	}
	if !cu.HasRole(constants.StaffRoles...) && enr.EnrollmentStudentID != cu.ID {
		return helper.JsonError(c, fiber.StatusForbidden, "Students can only view their own assessments")
	}

	q := ctl.DB.WithContext(c.UserContext()).Where("assessment_enrollment_id = ?", id)
	if t := c.Query("type"); t != "" {
		if err := ctl.Validate.Var(t, "oneof=theory_test practical_eval final_exam progress_check ntsa_theory ntsa_practical"); err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "Unknown assessment type")
		}
		q = q.Where("assessment_type = ?", t)
	}
	var rows []model.AssessmentModel
	if err := q.Order("assessment_date DESC").Find(&rows).Error; err != nil {
		return helper.WritePGError(c, err)
	}
	return helper.JsonOK(c, "ok", rows)
}

// GET /assessments/mine (students)
func (ctl *AssessmentController) Mine(c *fiber.Ctx) error {
	cu, err := helper.GetCurrentUser(c)
	if err != nil {
		return err
	}
	if !cu.HasRole(constants.RoleStudent) {
		return helper.JsonError(c, fiber.StatusForbidden, "This endpoint is only for students")
	}

	mine := ctl.DB.Model(&courseModel.EnrollmentModel{}).Select("enrollment_id").Where("enrollment_student_id = ?", cu.ID)
	var rows []model.AssessmentModel
	if err := ctl.DB.WithContext(c.UserContext()).
		Where("assessment_enrollment_id IN (?)", mine).
		Order("assessment_date DESC").
		Find(&rows).Error; err != nil {
		return helper.WritePGError(c, err)
	}
	return helper.JsonOK(c, "ok", rows)
}

// GET /assessments/:id
func (ctl *AssessmentController) GetByID(c *fiber.Ctx) error {
	cu, err := helper.GetCurrentUser(c)
	if err != nil {
		return err
	}
	a, err := ctl.find(c)
	if err != nil {
		return writeAssessmentError(c, "Assessment.Get", err)
	}
	if !cu.HasRole(constants.StaffRoles...) {
		var owned int64
		if err := ctl.DB.WithContext(c.UserContext()).Model(&courseModel.EnrollmentModel{}).
			Where("enrollment_id = ? AND enrollment_student_id = ?", a.AssessmentEnrollmentID, cu.ID).
			Count(&owned).Error; err != nil {
			return helper.WritePGError(c, err)
		}
		if owned == 0 {
			return helper.JsonError(c, fiber.StatusNotFound, "Assessment not found")
		}
	}
	return helper.JsonOK(c, "ok", a)
}

// PATCH /assessments/:id (the assessing instructor, or admin/manager)
func (ctl *AssessmentController) Patch(c *fiber.Ctx) error {
	cu, err := helper.GetCurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateAssessmentRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := ctl.Validate.Struct(&req); err != nil {
		return helper.ValidationError(c, err)
	}

	a, err := ctl.find(c)
	if err != nil {
		return writeAssessmentError(c, "Assessment.Patch", err)
	}
	if cu.HasRole(constants.RoleInstructor) && a.AssessmentInstructorID != cu.ID {
		return helper.JsonError(c, fiber.StatusForbidden, "You can only update your own assessments")
	}
	if msg := req.Apply(a); msg != "" {
		return helper.JsonRuleError(c, "score", msg)
	}
	if err := ctl.DB.WithContext(c.UserContext()).Save(a).Error; err != nil {
		return writeAssessmentError(c, "Assessment.Patch", err)
	}
	return helper.JsonUpdated(c, "Assessment updated", a)
}

// DELETE /assessments/:id (admin, soft)
func (ctl *AssessmentController) Delete(c *fiber.Ctx) error {
	a, err := ctl.find(c)
	if err != nil {
		return writeAssessmentError(c, "Assessment.Delete", err)
	}
	if err := ctl.DB.WithContext(c.UserContext()).Delete(a).Error; err != nil {
		return helper.WritePGError(c, err)
	}
	return helper.JsonDeleted(c, "Assessment deleted", fiber.Map{"assessment_id": a.AssessmentID})
}

func (ctl *AssessmentController) find(c *fiber.Ctx) (*model.AssessmentModel, error) {
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return nil, err
	}
	var a model.AssessmentModel
	if err := ctl.DB.WithContext(c.UserContext()).Where("assessment_id = ?", id).Take(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Assessment not found")
		}
		return nil, err
	}
	return &a, nil
}

func writeAssessmentError(c *fiber.Ctx, op string, err error) error {
	var re *ruleError
	var fe *fiber.Error
	switch {
	case errors.As(err, &re):
		return helper.JsonRuleError(c, re.rule, re.msg)
	case errors.As(err, &fe):
		return helper.JsonError(c, fe.Code, fe.Message)
	}
	log.Printf("[%s] %v", op, err)
	return helper.WritePGError(c, err)
}
