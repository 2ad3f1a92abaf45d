package helper

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// ErrRetryable marks a datastore failure the client may retry.
var ErrRetryable = errors.New("datastore busy, please retry")

// RetryTransientOnce runs op, and runs it a second time only when the first
// attempt failed with a serialization failure or deadlock. A second transient
// failure is wrapped in ErrRetryable.
func RetryTransientOnce(ctx context.Context, label string, op func() error) error {
	err := op()
	if !IsTransientTxError(err) {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	log.Printf("[%s] transient datastore conflict, retrying once: %v", label, err)
	err = op()
	if IsTransientTxError(err) {
		return fmt.Errorf("%w: %v", ErrRetryable, err)
	}
	return err
}
