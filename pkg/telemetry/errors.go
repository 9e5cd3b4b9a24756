package telemetry

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed or out-of-range field in a
// candidate round. The record is rejected before any write happens, so
// the caller can correct the input and resubmit.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TransientError wraps a temporarily failing storage operation. The
// whole per-user apply is retried by the caller; nothing durable has
// happened when one of these surfaces.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s temporarily unavailable: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// InvariantViolation reports an attempted update that would break an
// aggregate invariant, such as a decrease of best_score. These are
// rejected and logged, never silently repaired.
type InvariantViolation struct {
	UserID string
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("aggregate invariant violated for user %s: %s", e.UserID, e.Detail)
}

// IsInvariantViolation reports whether err is an InvariantViolation.
func IsInvariantViolation(err error) bool {
	var iv *InvariantViolation
	return errors.As(err, &iv)
}
