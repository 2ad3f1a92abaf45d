package helper

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsTransientTxError(t *testing.T) {
	assert.True(t, IsTransientTxError(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsTransientTxError(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40P01"})))
	assert.True(t, IsTransientTxError(&pq.Error{Code: "40001"}))
	assert.True(t, IsTransientTxError(errors.New("database is locked")))
	assert.False(t, IsTransientTxError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsTransientTxError(nil))
}

func TestMapPGError(t *testing.T) {
	code, _ := MapPGError(&pgconn.PgError{Code: "23505"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = MapPGError(&pq.Error{Code: "23503"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = MapPGError(&pgconn.PgError{Code: "40001"})
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = MapPGError(errors.New("UNIQUE constraint failed: vehicles.vehicle_reg_number"))
	assert.Equal(t, http.StatusConflict, code)

	code, msg := MapPGError(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Database error", msg)
}
