package helper

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestRetryTransientOnce(t *testing.T) {
	t.Run("retries a serialization failure once", func(t *testing.T) {
		calls := 0
		err := RetryTransientOnce(context.Background(), "test", func() error {
			calls++
			if calls == 1 {
				return &pgconn.PgError{Code: "40001"}
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("second transient failure becomes retryable", func(t *testing.T) {
		calls := 0
		err := RetryTransientOnce(context.Background(), "test", func() error {
			calls++
			return &pgconn.PgError{Code: "40P01"}
		})
		assert.ErrorIs(t, err, ErrRetryable)
		assert.Equal(t, 2, calls)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := RetryTransientOnce(context.Background(), "test", func() error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})
}
