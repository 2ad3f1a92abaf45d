package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"drivingschool_backend/internals/configs"
	"drivingschool_backend/internals/constants"
	database "drivingschool_backend/internals/databases"
	"drivingschool_backend/internals/features/scheduling/lessons/model"
	courseModel "drivingschool_backend/internals/features/school/courses/model"
	vehicleModel "drivingschool_backend/internals/features/school/vehicles/model"
	userModel "drivingschool_backend/internals/features/users/auth/model"
	helper "drivingschool_backend/internals/helpers"
	"drivingschool_backend/internals/helpers/clock"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookingRequest struct {
	Actor        helper.CurrentUser
	Window       TimeWindow
	InstructorID uuid.UUID
	VehicleID    *uuid.UUID
	EnrollmentID uuid.UUID
	Type         model.LessonType
	Notes        *string
}

type RescheduleRequest struct {
	Actor    helper.CurrentUser
	LessonID uuid.UUID
	Window   TimeWindow
	// VehicleID replaces the vehicle when set; ClearVehicle drops it.
	VehicleID    *uuid.UUID
	ClearVehicle bool
}

// Engine validates and commits lesson bookings. The overlap check and the
// write run under a per-resource lock inside one transaction.
type Engine struct {
	DB     *gorm.DB
	Locker database.ResourceLocker
	Clock  clock.Clock
	Cfg    configs.SchedulingConfig
	rules  Rules
}

func NewEngine(db *gorm.DB, locker database.ResourceLocker, clk clock.Clock, cfg configs.SchedulingConfig) *Engine {
	if locker == nil {
		locker = database.NewResourceLocker(db)
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Engine{DB: db, Locker: locker, Clock: clk, Cfg: cfg, rules: Rules{Cfg: cfg}}
}

func InstructorLockKey(id uuid.UUID) string { return "lesson:instructor:" + id.String() }
func VehicleLockKey(id uuid.UUID) string    { return "lesson:vehicle:" + id.String() }

// Book creates a SCHEDULED lesson or returns a *ValidationError / *ConflictError.
func (e *Engine) Book(ctx context.Context, req BookingRequest) (*model.LessonModel, error) {
	w := req.Window.UTC()
	if err := e.rules.Check(w, e.Clock.Now()); err != nil {
		return nil, err
	}
	if req.Type == "" {
		req.Type = model.LessonPractical
	}

	var out model.LessonModel
	err := helper.RetryTransientOnce(ctx, "Lesson.Book", func() error {
		guard := func(tx *gorm.DB) error {
			enrollment, err := e.loadEnrollment(tx, req.EnrollmentID)
			if err != nil {
				return err
			}
			if !canActOn(req.Actor, enrollment) {
				return ErrForbidden
			}
			return nil
		}
		return e.commit(ctx, req.InstructorID, req.VehicleID, w, nil, guard, func(tx *gorm.DB) error {
			lesson := model.LessonModel{
				LessonEnrollmentID: req.EnrollmentID,
				LessonInstructorID: req.InstructorID,
				LessonVehicleID:    req.VehicleID,
				LessonStartAt:      w.Start,
				LessonEndAt:        w.End,
				LessonType:         req.Type,
				LessonStatus:       model.LessonScheduled,
				LessonNotes:        req.Notes,
			}
			if req.Actor.ID != uuid.Nil {
				actor := req.Actor.ID
				lesson.LessonCreatedBy = &actor
			}
			if err := tx.Create(&lesson).Error; err != nil {
				return err
			}
			out = lesson
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Lesson.Book] lesson=%s instructor=%s start=%s end=%s", out.LessonID, out.LessonInstructorID, out.LessonStartAt.Format(time.RFC3339), out.LessonEndAt.Format(time.RFC3339))
	return &out, nil
}

// Reschedule moves a SCHEDULED lesson. The lesson never conflicts with itself.
func (e *Engine) Reschedule(ctx context.Context, req RescheduleRequest) (*model.LessonModel, error) {
	w := req.Window.UTC()
	if err := e.rules.Check(w, e.Clock.Now()); err != nil {
		return nil, err
	}

	current, err := e.load(ctx, req.LessonID)
	if err != nil {
		return nil, err
	}
	if current.LessonStatus != model.LessonScheduled {
		return nil, invalid(RuleReference, "Only scheduled lessons can be rescheduled")
	}
	vehicleID := current.LessonVehicleID
	if req.ClearVehicle {
		vehicleID = nil
	} else if req.VehicleID != nil {
		vehicleID = req.VehicleID
	}

	var out model.LessonModel
	err = helper.RetryTransientOnce(ctx, "Lesson.Reschedule", func() error {
		guard := func(tx *gorm.DB) error {
			enrollment, err := e.loadEnrollment(tx, current.LessonEnrollmentID)
			if err != nil {
				return err
			}
			if !canActOn(req.Actor, enrollment) {
				return ErrForbidden
			}
			return nil
		}
		return e.commit(ctx, current.LessonInstructorID, vehicleID, w, &req.LessonID, guard, func(tx *gorm.DB) error {
			res := tx.Model(&model.LessonModel{}).
				Where("lesson_id = ? AND lesson_status = ?", req.LessonID, model.LessonScheduled).
				Updates(map[string]any{
					"lesson_start_at":   w.Start,
					"lesson_end_at":     w.End,
					"lesson_vehicle_id": vehicleID,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return invalid(RuleReference, "Only scheduled lessons can be rescheduled")
			}
			return tx.Where("lesson_id = ?", req.LessonID).Take(&out).Error
		})
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Lesson.Reschedule] lesson=%s start=%s end=%s", out.LessonID, out.LessonStartAt.Format(time.RFC3339), out.LessonEndAt.Format(time.RFC3339))
	return &out, nil
}

// commit runs guard, the instructor reference and overlap checks, the vehicle
// reference and overlap checks and finally write, in one transaction while
// holding the resource locks. The first failure aborts the transaction.
func (e *Engine) commit(ctx context.Context, instructorID uuid.UUID, vehicleID *uuid.UUID, w TimeWindow, exclude *uuid.UUID, guard, write func(tx *gorm.DB) error) error {
	keys := []string{InstructorLockKey(instructorID)}
	if vehicleID != nil {
		keys = append(keys, VehicleLockKey(*vehicleID))
	}

	var release func()
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rel, err := e.Locker.Lock(ctx, tx, keys...)
		if err != nil {
			return err
		}
		release = rel

		if err := guard(tx); err != nil {
			return err
		}
		if err := e.checkInstructor(tx, instructorID); err != nil {
			return err
		}
		if id, err := e.findOverlap(tx, "lesson_instructor_id", instructorID, w.Pad(e.Cfg.BreakBuffer), exclude); err != nil {
			return err
		} else if id != uuid.Nil {
			return &ConflictError{Resource: "instructor", ConflictingID: id, Message: "Instructor is not available at this time (including required break time)"}
		}

		if vehicleID != nil {
			if err := e.checkVehicle(tx, *vehicleID, w); err != nil {
				return err
			}
			if id, err := e.findOverlap(tx, "lesson_vehicle_id", *vehicleID, w, exclude); err != nil {
				return err
			} else if id != uuid.Nil {
				return &ConflictError{Resource: "vehicle", ConflictingID: id, Message: "Vehicle is not available at this time"}
			}
		}

		return write(tx)
	})
	if release != nil {
		release()
	}
	return err
}

// findOverlap returns the id of one blocking lesson on the resource whose
// [start,end) intersects w, or uuid.Nil.
func (e *Engine) findOverlap(tx *gorm.DB, column string, resourceID uuid.UUID, w TimeWindow, exclude *uuid.UUID) (uuid.UUID, error) {
	q := tx.Model(&model.LessonModel{}).
		Where(column+" = ?", resourceID).
		Where("lesson_status IN ?", model.BlockingStatuses).
		Where("lesson_start_at < ? AND lesson_end_at > ?", w.End, w.Start)
	if exclude != nil {
		q = q.Where("lesson_id <> ?", *exclude)
	}

	var ids []uuid.UUID
	if err := q.Limit(1).Pluck("lesson_id", &ids).Error; err != nil {
		return uuid.Nil, err
	}
	if len(ids) == 0 {
		return uuid.Nil, nil
	}
	return ids[0], nil
}

func (e *Engine) loadEnrollment(tx *gorm.DB, id uuid.UUID) (*courseModel.EnrollmentModel, error) {
	var enr courseModel.EnrollmentModel
	if err := tx.Where("enrollment_id = ?", id).Take(&enr).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid(RuleReference, "Enrollment not found")
		}
		return nil, err
	}
	if !enr.IsOpen() {
		return nil, invalid(RuleReference, "Enrollment is %s", enr.EnrollmentStatus)
	}
	return &enr, nil
}

func (e *Engine) checkInstructor(tx *gorm.DB, id uuid.UUID) error {
	var u userModel.UserModel
	err := tx.Select("id", "role", "is_active").Where("id = ?", id).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && u.Role != constants.RoleInstructor) {
		return invalid(RuleReference, "Instructor not found")
	}
	if err != nil {
		return err
	}
	if !u.IsActive {
		return invalid(RuleReference, "Instructor is not active")
	}
	return nil
}

func (e *Engine) checkVehicle(tx *gorm.DB, id uuid.UUID, w TimeWindow) error {
	var v vehicleModel.VehicleModel
	if err := tx.Where("vehicle_id = ?", id).Take(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invalid(RuleReference, "Vehicle not found")
		}
		return err
	}
	if !v.VehicleIsActive {
		return invalid(RuleReference, "Vehicle is not active")
	}
	if !v.InsuredOn(w.Start, e.Cfg.Location) {
		return invalid(RuleReference, "Vehicle insurance expires before the lesson date")
	}
	return nil
}

// canActOn: the enrolled student, or any staff member.
func canActOn(actor helper.CurrentUser, enr *courseModel.EnrollmentModel) bool {
	if actor.ID == uuid.Nil {
		return true
	}
	if actor.HasRole(constants.StaffRoles...) {
		return true
	}
	return enr.EnrollmentStudentID == actor.ID
}

// Get returns a lesson visible to actor: staff see all, students only the
// lessons on their own enrollments. Anything else reads as not found.
func (e *Engine) Get(ctx context.Context, actor helper.CurrentUser, id uuid.UUID) (*model.LessonModel, error) {
	l, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.ID == uuid.Nil || actor.HasRole(constants.StaffRoles...) {
		return l, nil
	}
	var owned int64
	if err := e.DB.WithContext(ctx).Model(&courseModel.EnrollmentModel{}).
		Where("enrollment_id = ? AND enrollment_student_id = ?", l.LessonEnrollmentID, actor.ID).
		Count(&owned).Error; err != nil {
		return nil, err
	}
	if owned == 0 {
		return nil, ErrLessonNotFound
	}
	return l, nil
}

func (e *Engine) load(ctx context.Context, id uuid.UUID) (*model.LessonModel, error) {
	var l model.LessonModel
	if err := e.DB.WithContext(ctx).Where("lesson_id = ?", id).Take(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLessonNotFound
		}
		return nil, err
	}
	return &l, nil
}

// UpdateStatus applies one state-machine transition as a compare-and-set on
// the current status. Students may only cancel their own lessons.
func (e *Engine) UpdateStatus(ctx context.Context, actor helper.CurrentUser, id uuid.UUID, to model.LessonStatus) (*model.LessonModel, error) {
	if !to.Valid() {
		return nil, invalid("status", "Unknown lesson status %q", to)
	}

	var out model.LessonModel
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var l model.LessonModel
		if err := tx.Where("lesson_id = ?", id).Take(&l).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLessonNotFound
			}
			return err
		}

		if !actor.HasRole(constants.StaffRoles...) {
			var enr courseModel.EnrollmentModel
			if err := tx.Select("enrollment_student_id").Where("enrollment_id = ?", l.LessonEnrollmentID).Take(&enr).Error; err != nil {
				return err
			}
			if enr.EnrollmentStudentID != actor.ID || to != model.LessonCancelled {
				return ErrForbidden
			}
		}

		if !l.LessonStatus.CanTransitionTo(to) {
			return &TransitionError{From: l.LessonStatus, To: to}
		}

		res := tx.Model(&model.LessonModel{}).
			Where("lesson_id = ? AND lesson_status = ?", id, l.LessonStatus).
			Update("lesson_status", to)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: lesson %s changed concurrently", helper.ErrRetryable, id)
		}
		return tx.Where("lesson_id = ?", id).Take(&out).Error
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Lesson.Status] lesson=%s -> %s by %s", id, to, actor.ID)
	return &out, nil
}

// Delete soft-deletes a lesson.
func (e *Engine) Delete(ctx context.Context, id uuid.UUID) error {
	res := e.DB.WithContext(ctx).Where("lesson_id = ?", id).Delete(&model.LessonModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrLessonNotFound
	}
	return nil
}

// InstructorBusy lists the instructor's blocking intervals on the given local
// day, each padded by the break buffer.
func (e *Engine) InstructorBusy(ctx context.Context, instructorID uuid.UUID, day time.Time) ([]TimeWindow, error) {
	loc := e.Cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	d := day.In(loc)
	dayStart := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	span := TimeWindow{Start: dayStart, End: dayStart.AddDate(0, 0, 1)}.UTC()

	var lessons []model.LessonModel
	if err := e.DB.WithContext(ctx).
		Where("lesson_instructor_id = ? AND lesson_status IN ?", instructorID, model.BlockingStatuses).
		Where("lesson_start_at < ? AND lesson_end_at > ?", span.End, span.Start).
		Order("lesson_start_at ASC").
		Find(&lessons).Error; err != nil {
		return nil, err
	}

	out := make([]TimeWindow, 0, len(lessons))
	for _, l := range lessons {
		out = append(out, TimeWindow{Start: l.LessonStartAt, End: l.LessonEndAt}.Pad(e.Cfg.BreakBuffer))
	}
	return out, nil
}

type ListFilter struct {
	From         *time.Time
	To           *time.Time
	InstructorID *uuid.UUID
	EnrollmentID *uuid.UUID
	StudentID    *uuid.UUID
	Status       *model.LessonStatus
}

func (e *Engine) List(ctx context.Context, f ListFilter, offset, limit int) ([]model.LessonModel, int64, error) {
	q := e.DB.WithContext(ctx).Model(&model.LessonModel{})
	if f.From != nil {
		q = q.Where("lesson_start_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("lesson_start_at <= ?", f.To.UTC())
	}
	if f.InstructorID != nil {
		q = q.Where("lesson_instructor_id = ?", *f.InstructorID)
	}
	if f.EnrollmentID != nil {
		q = q.Where("lesson_enrollment_id = ?", *f.EnrollmentID)
	}
	if f.Status != nil {
		q = q.Where("lesson_status = ?", *f.Status)
	}
	if f.StudentID != nil {
		q = q.Where("lesson_enrollment_id IN (?)",
			e.DB.Model(&courseModel.EnrollmentModel{}).Select("enrollment_id").Where("enrollment_student_id = ?", *f.StudentID))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []model.LessonModel
	if err := q.Order("lesson_start_at ASC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
