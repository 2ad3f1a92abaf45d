package service

import (
	"context"
	"time"

	"drivingschool_backend/internals/configs"
	"drivingschool_backend/internals/features/finance/payments/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	RuleAmount     = "amount"
	RuleDailyLimit = "daily_limit"
	RuleMethod     = "method"
	RulePhone      = "phone"
	RuleReference  = "reference"
)

// ValidateAmount: positive, at most two decimals, within [MinAmount, MaxAmount].
func ValidateAmount(cfg configs.PaymentConfig, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalid(RuleAmount, "Amount must be greater than 0")
	}
	if !amount.Equal(amount.Truncate(2)) {
		return invalid(RuleAmount, "Amount cannot have more than 2 decimal places")
	}
	if amount.LessThan(cfg.MinAmount) {
		return invalid(RuleAmount, "Minimum payment amount is %s %s", cfg.Currency, cfg.MinAmount.StringFixed(2))
	}
	if amount.GreaterThan(cfg.MaxAmount) {
		return invalid(RuleAmount, "Maximum payment amount is %s %s", cfg.Currency, cfg.MaxAmount.StringFixed(2))
	}
	return nil
}

// CompletedSince sums what a student's completed payments credited since t,
// across all of the student's enrollments.
func CompletedSince(ctx context.Context, db *gorm.DB, studentID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	err := db.WithContext(ctx).
		Model(&model.PaymentModel{}).
		Select("COALESCE(SUM(COALESCE(payment_confirmed_amount, payment_amount)), 0) AS total").
		Where("payment_student_id = ? AND payment_status = ? AND payment_completed_at >= ?",
			studentID, model.PaymentStatusCompleted, since.UTC()).
		Scan(&row).Error
	return row.Total, err
}

func checkDailyLimit(ctx context.Context, db *gorm.DB, cfg configs.PaymentConfig, studentID uuid.UUID, amount decimal.Decimal, now time.Time) error {
	paid, err := CompletedSince(ctx, db, studentID, now.Add(-24*time.Hour))
	if err != nil {
		return err
	}
	if paid.Add(amount).GreaterThan(cfg.MaxDaily) {
		return invalid(RuleDailyLimit, "Daily payment limit of %s %s exceeded", cfg.Currency, cfg.MaxDaily.StringFixed(2))
	}
	return nil
}
