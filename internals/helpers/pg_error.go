package helper

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgExclusionViolation   = "23P01"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

func sqlState(err error) string {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// IsTransientTxError reports failures that are safe to retry once:
// serialization failures and deadlocks.
func IsTransientTxError(err error) bool {
	if err == nil {
		return false
	}
	switch sqlState(err) {
	case pgSerializationFailure, pgDeadlockDetected:
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if sqlState(err) == pgUniqueViolation {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func MapPGError(err error) (int, string) {
	switch sqlState(err) {
	case pgExclusionViolation:
		return http.StatusConflict, "Time range overlaps an existing booking"
	case pgForeignKeyViolation:
		return http.StatusBadRequest, "Referenced record not found"
	case pgUniqueViolation:
		return http.StatusConflict, "Duplicate record"
	case pgSerializationFailure, pgDeadlockDetected:
		return http.StatusServiceUnavailable, "Concurrent update, please retry"
	}
	if IsUniqueViolation(err) {
		return http.StatusConflict, "Duplicate record"
	}
	return http.StatusInternalServerError, "Database error"
}

func WritePGError(c *fiber.Ctx, err error) error {
	code, msg := MapPGError(err)
	return JsonError(c, code, msg)
}
