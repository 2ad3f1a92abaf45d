package controller

import (
	"errors"
	"log"
	"strings"
	"time"

	"drivingschool_backend/internals/constants"
	"drivingschool_backend/internals/features/scheduling/lessons/dto"
	"drivingschool_backend/internals/features/scheduling/lessons/model"
	"drivingschool_backend/internals/features/scheduling/lessons/service"
	helper "drivingschool_backend/internals/helpers"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type LessonController struct {
	Engine   *service.Engine
	Validate *validator.Validate
}

func NewLessonController(engine *service.Engine, v *validator.Validate) *LessonController {
	if v == nil {
		v = helper.NewValidator()
	}
	return &LessonController{Engine: engine, Validate: v}
}

// POST /lessons
func (ctl *LessonController) Book(c *fiber.Ctx) error {
	cu, err := helper.GetCurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.BookLessonRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := ctl.Validate.Struct(&req); err != nil {
		return helper.ValidationError(c, err)
	}

	booking := req.ToBooking()
	booking.Actor = cu
	lesson, err := ctl.Engine.Book(c.UserContext(), booking)
	if err != nil {
		return writeLessonError(c, "Lesson.Book", err)
	}
	return helper.JsonCreated(c, "Lesson scheduled", dto.FromLesson(*lesson))
}

// PATCH /lessons/:id/reschedule
func (ctl *LessonController) Reschedule(c *fiber.Ctx) error {
	cu, err := helper.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.RescheduleLessonRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := ctl.Validate.Struct(&req); err != nil {
		return helper.ValidationError(c, err)
	}

	in := req.ToReschedule(id)
	in.Actor = cu
	lesson, err := ctl.Engine.Reschedule(c.UserContext(), in)
	if err != nil {
		return writeLessonError(c, "Lesson.Reschedule", err)
	}
	return helper.JsonUpdated(c, "Lesson rescheduled", dto.FromLesson(*lesson))
}

// PATCH /lessons/:id/status
func (ctl *LessonController) UpdateStatus(c *fiber.Ctx) error {
	cu, err := helper.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateLessonStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if err := ctl.Validate.Struct(&req); err != nil {
		return helper.ValidationError(c, err)
	}

	lesson, err := ctl.Engine.UpdateStatus(c.UserContext(), cu, id, model.LessonStatus(req.Status))
	if err != nil {
		return writeLessonError(c, "Lesson.Status", err)
	}
	return helper.JsonUpdated(c, "Lesson status updated", dto.FromLesson(*lesson))
}

// GET /lessons/:id
func (ctl *LessonController) GetByID(c *fiber.Ctx) error {
	cu, err := helper.GetCurrentUser(c)
	if err != nil {
		return err
	}
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	lesson, err := ctl.Engine.Get(c.UserContext(), cu, id)
	if err != nil {
		return writeLessonError(c, "Lesson.Get", err)
	}
	return helper.JsonOK(c, "ok", dto.FromLesson(*lesson))
}

// GET /lessons?from=&to=&instructor_id=&enrollment_id=&status=
// Students only ever see lessons on their own enrollments.
func (ctl *LessonController) List(c *fiber.Ctx) error {
	cu, err := helper.GetCurrentUser(c)
	if err != nil {
		return err
	}

	var f service.ListFilter
	if f.From, err = parseTimeQuery(c, "from"); err != nil {
		return err
	}
	if f.To, err = parseTimeQuery(c, "to"); err != nil {
		return err
	}
	if f.InstructorID, err = helper.ParseUUIDQuery(c, "instructor_id"); err != nil {
		return err
	}
	if f.EnrollmentID, err = helper.ParseUUIDQuery(c, "enrollment_id"); err != nil {
		return err
	}
	if s := strings.TrimSpace(c.Query("status")); s != "" {
		st := model.LessonStatus(strings.ToLower(s))
		if !st.Valid() {
			return helper.JsonError(c, fiber.StatusBadRequest, "Unknown status filter")
		}
		f.Status = &st
	}
	if !cu.HasRole(constants.StaffRoles...) {
		f.StudentID = &cu.ID
	}

	p := helper.ResolvePaging(c, 50, 200)
	rows, total, err := ctl.Engine.List(c.UserContext(), f, p.Offset, p.Limit)
	if err != nil {
		return writeLessonError(c, "Lesson.List", err)
	}
	data := dto.FromLessons(rows)
	return helper.JsonList(c, "ok", data, helper.BuildPagination(total, p, data))
}

// DELETE /lessons/:id (soft)
func (ctl *LessonController) Delete(c *fiber.Ctx) error {
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := ctl.Engine.Delete(c.UserContext(), id); err != nil {
		return writeLessonError(c, "Lesson.Delete", err)
	}
	return helper.JsonDeleted(c, "Lesson deleted", fiber.Map{"lesson_id": id})
}

// GET /instructors/:id/availability?date=YYYY-MM-DD
func (ctl *LessonController) InstructorAvailability(c *fiber.Ctx) error {
	id, err := helper.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}
	loc := ctl.Engine.Cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	day := ctl.Engine.Clock.Now().In(loc)
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		d, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		day = d
	}

	busy, err := ctl.Engine.InstructorBusy(c.UserContext(), id, day)
	if err != nil {
		return writeLessonError(c, "Lesson.Availability", err)
	}
	return helper.JsonOK(c, "ok", fiber.Map{
		"instructor_id": id,
		"date":          day.Format("2006-01-02"),
		"busy":          busy,
	})
}

func parseTimeQuery(c *fiber.Ctx, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, name+" must be RFC3339")
	}
	return &t, nil
}

func writeLessonError(c *fiber.Ctx, op string, err error) error {
	var ve *service.ValidationError
	var ce *service.ConflictError
	var te *service.TransitionError
	switch {
	case errors.As(err, &ve):
		return helper.JsonRuleError(c, ve.Rule, ve.Message)
	case errors.As(err, &ce):
		return helper.JsonError(c, fiber.StatusConflict, ce.Message)
	case errors.As(err, &te):
		return helper.JsonRuleError(c, "status", te.Error())
	case errors.Is(err, service.ErrLessonNotFound):
		return helper.JsonError(c, fiber.StatusNotFound, "Lesson not found")
	case errors.Is(err, service.ErrForbidden):
		return helper.JsonError(c, fiber.StatusForbidden, "Not authorized to manage lessons for this enrollment")
	case errors.Is(err, helper.ErrRetryable):
		return helper.JsonError(c, fiber.StatusServiceUnavailable, err.Error())
	}
	log.Printf("[%s] %v", op, err)
	return helper.WritePGError(c, err)
}
