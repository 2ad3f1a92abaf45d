package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"drivingschool_backend/internals/configs"
	"drivingschool_backend/internals/constants"
	"drivingschool_backend/internals/features/finance/payments/model"
	courseModel "drivingschool_backend/internals/features/school/courses/model"
	helper "drivingschool_backend/internals/helpers"
	"drivingschool_backend/internals/helpers/clock"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InitiateInput struct {
	Actor        helper.CurrentUser
	EnrollmentID uuid.UUID
	Amount       decimal.Decimal
	Phone        string
	Method       model.PaymentMethod
	Email        string
}

type ManualInput struct {
	Actor        helper.CurrentUser
	EnrollmentID uuid.UUID
	Amount       decimal.Decimal
	Method       model.PaymentMethod
	Reference    string
	Note         string
}

// Engine owns the payment lifecycle. A payment leaves PENDING exactly once,
// through a conditional update on its status; the enrollment credit commits
// in the same transaction.
type Engine struct {
	DB       *gorm.DB
	Gateways map[model.PaymentMethod]PaymentGateway
	Clock    clock.Clock
	Cfg      configs.PaymentConfig
}

func NewEngine(db *gorm.DB, clk clock.Clock, cfg configs.PaymentConfig, gateways map[model.PaymentMethod]PaymentGateway) *Engine {
	if clk == nil {
		clk = clock.System{}
	}
	if gateways == nil {
		gateways = map[model.PaymentMethod]PaymentGateway{}
	}
	return &Engine{DB: db, Gateways: gateways, Clock: clk, Cfg: cfg}
}

// GatewayByName finds the gateway that produces callbacks under name.
func (e *Engine) GatewayByName(name string) PaymentGateway {
	for _, g := range e.Gateways {
		if g.Name() == name {
			return g
		}
	}
	return nil
}

// PlaceholderRef is the external ref a payment carries until the gateway
// answers: REQ_<first 8 hex of the enrollment id>_<random>.
func PlaceholderRef(enrollmentID uuid.UUID) string {
	hexID := strings.ReplaceAll(enrollmentID.String(), "-", "")
	rnd := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "REQ_" + hexID[:8] + "_" + rnd[:12]
}

func (e *Engine) loadEnrollment(ctx context.Context, actor helper.CurrentUser, id uuid.UUID) (*courseModel.EnrollmentModel, error) {
	var enr courseModel.EnrollmentModel
	if err := e.DB.WithContext(ctx).Where("enrollment_id = ?", id).Take(&enr).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, err
	}
	if actor.ID != uuid.Nil && !actor.HasRole(constants.StaffRoles...) && enr.EnrollmentStudentID != actor.ID {
		return nil, ErrForbidden
	}
	if !enr.IsOpen() {
		return nil, invalid(RuleReference, "Enrollment is %s", enr.EnrollmentStatus)
	}
	return &enr, nil
}

// Initiate validates, commits a PENDING row, then asks the gateway. A gateway
// failure or timeout moves the row to FAILED and returns *GatewayError.
func (e *Engine) Initiate(ctx context.Context, in InitiateInput) (*model.PaymentModel, error) {
	if err := ValidateAmount(e.Cfg, in.Amount); err != nil {
		return nil, err
	}
	if in.Method.IsManual() || !in.Method.Valid() {
		return nil, invalid(RuleMethod, "Payment method must be mpesa or card")
	}
	gw := e.Gateways[in.Method]
	if gw == nil {
		return nil, invalid(RuleMethod, "Payment method %s is not available", in.Method)
	}
	var phone *string
	if in.Method == model.PaymentMethodMpesa {
		if !helper.IsKenyanPhone(in.Phone) {
			return nil, invalid(RulePhone, "A valid Safaricom phone number is required for M-Pesa")
		}
		p := helper.NormalizeKenyanPhone(in.Phone)
		phone = &p
	}

	enr, err := e.loadEnrollment(ctx, in.Actor, in.EnrollmentID)
	if err != nil {
		return nil, err
	}
	now := e.Clock.Now()
	if err := checkDailyLimit(ctx, e.DB, e.Cfg, enr.EnrollmentStudentID, in.Amount, now); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	placeholder := PlaceholderRef(enr.EnrollmentID)
	p := model.PaymentModel{
		PaymentEnrollmentID: enr.EnrollmentID,
		PaymentStudentID:    enr.EnrollmentStudentID,
		PaymentAmount:       in.Amount,
		PaymentCurrency:     e.Cfg.Currency,
		PaymentStatus:       model.PaymentStatusPending,
		PaymentMethod:       in.Method,
		PaymentPhone:        phone,
		PaymentGateway:      gw.Name(),
		PaymentExternalRef:  &placeholder,
	}
	if in.Actor.ID != uuid.Nil {
		actor := in.Actor.ID
		p.PaymentCreatedBy = &actor
	}
	if err := e.DB.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, err
	}

	gctx, cancel := context.WithTimeout(ctx, e.Cfg.GatewayTimeout)
	resp, gwErr := gw.Initiate(gctx, GatewayRequest{
		Reference:   placeholder,
		Phone:       in.Phone,
		Amount:      in.Amount,
		Description: "Course fees",
		Email:       in.Email,
		Name:        in.Actor.Name,
	})
	cancel()

	// the row is committed; its final write must not depend on the caller
	bg := context.WithoutCancel(ctx)
	if gwErr != nil {
		log.Printf("[Payment.Initiate] payment=%s gateway=%s failed: %v", p.PaymentID, gw.Name(), gwErr)
		if err := e.markFailed(bg, &p, gwErr.Error()); err != nil {
			log.Printf("[Payment.Initiate] payment=%s could not be marked failed: %v", p.PaymentID, err)
		}
		return &p, &GatewayError{Gateway: gw.Name(), PaymentID: p.PaymentID, Err: gwErr}
	}

	updates := map[string]any{
		"payment_external_ref":   resp.CorrelationID,
		"payment_correlation_id": resp.CorrelationID,
	}
	if resp.RedirectURL != "" {
		updates["payment_checkout_url"] = resp.RedirectURL
	}
	if len(resp.Meta) > 0 {
		updates["payment_meta"] = datatypes.JSONMap{"initiate": resp.Meta}
	}
	res := e.DB.WithContext(bg).Model(&model.PaymentModel{}).
		Where("payment_id = ? AND payment_status = ?", p.PaymentID, model.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if err := e.DB.WithContext(bg).Where("payment_id = ?", p.PaymentID).Take(&p).Error; err != nil {
		return nil, err
	}
	log.Printf("[Payment.Initiate] payment=%s gateway=%s ref=%s amount=%s", p.PaymentID, gw.Name(), resp.CorrelationID, p.PaymentAmount)
	return &p, nil
}

func (e *Engine) markFailed(ctx context.Context, p *model.PaymentModel, reason string) error {
	now := e.Clock.Now()
	code := -1
	res := e.DB.WithContext(ctx).Model(&model.PaymentModel{}).
		Where("payment_id = ? AND payment_status = ?", p.PaymentID, model.PaymentStatusPending).
		Updates(map[string]any{
			"payment_status":      model.PaymentStatusFailed,
			"payment_failed_at":   now,
			"payment_result_code": code,
			"payment_result_desc": truncate(reason, 500),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		p.PaymentStatus = model.PaymentStatusFailed
		p.PaymentFailedAt = &now
		p.PaymentResultCode = &code
		p.PaymentResultDesc = &reason
	}
	return nil
}

// ReconcileCallback applies one gateway callback. Unknown correlation ids and
// already-terminal payments are reported, never raised.
func (e *Engine) ReconcileCallback(ctx context.Context, cb CallbackResult) (ReconciliationResult, error) {
	var p model.PaymentModel
	err := e.DB.WithContext(ctx).
		Where("payment_gateway = ? AND (payment_external_ref = ? OR payment_correlation_id = ?)",
			cb.Gateway, cb.CorrelationID, cb.CorrelationID).
		Order("payment_created_at DESC").
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("[Payment.Callback] unmatched gateway=%s correlation=%s code=%d", cb.Gateway, cb.CorrelationID, cb.ResultCode)
		return ReconciliationResult{Outcome: OutcomeUnmatched}, nil
	}
	if err != nil {
		return ReconciliationResult{}, err
	}
	result := ReconciliationResult{PaymentID: &p.PaymentID}
	if p.PaymentStatus.IsTerminal() {
		result.Outcome = OutcomeAlreadyProcessed
		return result, nil
	}

	err = helper.RetryTransientOnce(ctx, "Payment.Callback", func() error {
		return e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			won, err := e.settle(tx, &p, cb)
			if err != nil {
				return err
			}
			switch {
			case !won:
				result.Outcome = OutcomeAlreadyProcessed
			case cb.Succeeded():
				result.Outcome = OutcomeCompleted
			default:
				result.Outcome = OutcomeFailed
			}
			return nil
		})
	})
	if err != nil {
		return ReconciliationResult{}, err
	}
	log.Printf("[Payment.Callback] payment=%s correlation=%s code=%d outcome=%s", p.PaymentID, cb.CorrelationID, cb.ResultCode, result.Outcome)
	return result, nil
}

// settle moves p out of PENDING. It reports false when another delivery got
// there first.
func (e *Engine) settle(tx *gorm.DB, p *model.PaymentModel, cb CallbackResult) (bool, error) {
	now := e.Clock.Now()
	code := cb.ResultCode
	updates := map[string]any{
		"payment_result_code": code,
		"payment_result_desc": truncate(cb.ResultDesc, 500),
	}
	if cb.Raw != nil {
		meta := datatypes.JSONMap{}
		for k, v := range p.PaymentMeta {
			meta[k] = v
		}
		meta["callback"] = cb.Raw
		updates["payment_meta"] = meta
	}

	confirmed := cb.ConfirmedAmount
	if cb.Succeeded() {
		if !confirmed.IsPositive() {
			confirmed = p.PaymentAmount
		}
		updates["payment_status"] = model.PaymentStatusCompleted
		updates["payment_confirmed_amount"] = confirmed
		updates["payment_completed_at"] = now
		if cb.FinalReference != "" {
			updates["payment_external_ref"] = cb.FinalReference
		}
	} else {
		updates["payment_status"] = model.PaymentStatusFailed
		updates["payment_failed_at"] = now
	}

	res := tx.Model(&model.PaymentModel{}).
		Where("payment_id = ? AND payment_status = ?", p.PaymentID, model.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if !cb.Succeeded() {
		return true, nil
	}
	return true, credit(tx, p.PaymentEnrollmentID, confirmed)
}

func credit(tx *gorm.DB, enrollmentID uuid.UUID, amount decimal.Decimal) error {
	res := tx.Model(&courseModel.EnrollmentModel{}).
		Where("enrollment_id = ?", enrollmentID).
		Update("enrollment_total_paid", gorm.Expr("enrollment_total_paid + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEnrollmentNotFound
	}
	return nil
}

// RecordManual stores a cash or bank-transfer payment as COMPLETED and
// credits the enrollment in one transaction.
func (e *Engine) RecordManual(ctx context.Context, in ManualInput) (*model.PaymentModel, error) {
	if err := ValidateAmount(e.Cfg, in.Amount); err != nil {
		return nil, err
	}
	if !in.Method.IsManual() {
		return nil, invalid(RuleMethod, "Manual payments must be cash or bank_transfer")
	}
	ref := strings.TrimSpace(in.Reference)
	if ref == "" {
		return nil, invalid(RuleReference, "A receipt or transfer reference is required")
	}
	enr, err := e.loadEnrollment(ctx, in.Actor, in.EnrollmentID)
	if err != nil {
		return nil, err
	}

	now := e.Clock.Now()
	p := model.PaymentModel{
		PaymentEnrollmentID:    enr.EnrollmentID,
		PaymentStudentID:       enr.EnrollmentStudentID,
		PaymentAmount:          in.Amount,
		PaymentConfirmedAmount: &in.Amount,
		PaymentCurrency:        e.Cfg.Currency,
		PaymentStatus:          model.PaymentStatusCompleted,
		PaymentMethod:          in.Method,
		PaymentGateway:         model.GatewayManual,
		PaymentExternalRef:     &ref,
		PaymentCompletedAt:     &now,
	}
	if in.Actor.ID != uuid.Nil {
		actor := in.Actor.ID
		p.PaymentCreatedBy = &actor
	}
	if note := strings.TrimSpace(in.Note); note != "" {
		p.PaymentNote = &note
	}

	err = helper.RetryTransientOnce(ctx, "Payment.Manual", func() error {
		return e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var n int64
			if err := tx.Model(&model.PaymentModel{}).
				Where("payment_gateway = ? AND payment_external_ref = ?", model.GatewayManual, ref).
				Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return ErrDuplicateReference
			}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
			return credit(tx, enr.EnrollmentID, in.Amount)
		})
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Payment.Manual] payment=%s enrollment=%s amount=%s by=%s", p.PaymentID, enr.EnrollmentID, in.Amount, in.Actor.ID)
	return &p, nil
}

// Refund moves a COMPLETED payment to REFUNDED and debits what it credited.
func (e *Engine) Refund(ctx context.Context, actor helper.CurrentUser, id uuid.UUID, reason string) (*model.PaymentModel, error) {
	var out model.PaymentModel
	err := helper.RetryTransientOnce(ctx, "Payment.Refund", func() error {
		return e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var p model.PaymentModel
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("payment_id = ?", id).Take(&p).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrPaymentNotFound
				}
				return err
			}
			if p.PaymentStatus != model.PaymentStatusCompleted {
				return ErrNotRefundable
			}

			now := e.Clock.Now()
			updates := map[string]any{
				"payment_status":      model.PaymentStatusRefunded,
				"payment_refunded_at": now,
			}
			if r := strings.TrimSpace(reason); r != "" {
				updates["payment_note"] = r
			}
			res := tx.Model(&model.PaymentModel{}).
				Where("payment_id = ? AND payment_status = ?", id, model.PaymentStatusCompleted).
				Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrNotRefundable
			}
			if err := credit(tx, p.PaymentEnrollmentID, p.CreditedAmount().Neg()); err != nil {
				return err
			}
			return tx.Where("payment_id = ?", id).Take(&out).Error
		})
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Payment.Refund] payment=%s amount=%s by=%s", id, out.CreditedAmount(), actor.ID)
	return &out, nil
}

// Get returns a payment visible to actor: staff see all, students their own.
func (e *Engine) Get(ctx context.Context, actor helper.CurrentUser, id uuid.UUID) (*model.PaymentModel, error) {
	var p model.PaymentModel
	if err := e.DB.WithContext(ctx).Where("payment_id = ?", id).Take(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if actor.ID != uuid.Nil && !actor.HasRole(constants.StaffRoles...) && p.PaymentStudentID != actor.ID {
		return nil, ErrPaymentNotFound
	}
	return &p, nil
}

type ListFilter struct {
	Status       *model.PaymentStatus
	Method       *model.PaymentMethod
	EnrollmentID *uuid.UUID
	StudentID    *uuid.UUID
	From         *time.Time
	To           *time.Time
}

func (e *Engine) List(ctx context.Context, f ListFilter, offset, limit int) ([]model.PaymentModel, int64, error) {
	q := e.DB.WithContext(ctx).Model(&model.PaymentModel{})
	if f.Status != nil {
		q = q.Where("payment_status = ?", *f.Status)
	}
	if f.Method != nil {
		q = q.Where("payment_method = ?", *f.Method)
	}
	if f.EnrollmentID != nil {
		q = q.Where("payment_enrollment_id = ?", *f.EnrollmentID)
	}
	if f.StudentID != nil {
		q = q.Where("payment_student_id = ?", *f.StudentID)
	}
	if f.From != nil {
		q = q.Where("payment_created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("payment_created_at < ?", f.To.UTC())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []model.PaymentModel
	if err := q.Order("payment_created_at DESC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
