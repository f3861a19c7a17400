/*
errors.go - Centralized error taxonomy for the payment engine

PURPOSE:
  All error categories in one place. Other packages wrap these with
  additional context rather than inventing parallel hierarchies.

ERROR CATEGORIES:
  1. Validation errors  - rejected before any mutation, no partial writes
  2. Conflict errors    - duplicate pending approval, lost OCC race
  3. Not-found errors   - unknown schedule, obligation, or approval id
  4. Policy violations  - privilege or business-window breaches
  5. Store errors       - transient persistence failures, retryable

USAGE:
  if errors.Is(err, schedule.ErrVersionConflict) {
      // reload the document and retry the edit
  }
*/
package schedule

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrScheduleNotFound is returned when no schedule exists for a lease.
	ErrScheduleNotFound = errors.New("payment schedule not found")

	// ErrObligationNotFound is returned when a month key matches no obligation.
	ErrObligationNotFound = errors.New("obligation not found")

	// ErrApprovalNotFound is returned when a referenced approval request
	// does not exist.
	ErrApprovalNotFound = errors.New("approval request not found")

	// ErrDuplicatePendingApproval is returned when an obligation already has
	// an outstanding approval request. At most one review per obligation.
	ErrDuplicatePendingApproval = errors.New("approval already pending for this obligation")

	// ErrVersionConflict is returned when an optimistic-concurrency write
	// loses the race. Callers should reload and retry.
	ErrVersionConflict = errors.New("schedule modified concurrently")

	// ErrPolicyViolation is returned when an actor attempts an operation
	// their role does not permit.
	ErrPolicyViolation = errors.New("operation not permitted for this role")

	// ErrStoreUnavailable wraps transient persistence failures. Batch writes
	// are all-or-nothing, so retries never duplicate effects.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports malformed input. Nothing is written when one is
// returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// SplitMismatchError reports a custom maintenance split whose per-room
// amounts do not sum to the expense total within tolerance.
type SplitMismatchError struct {
	Expected string
	Got      string
}

func (e *SplitMismatchError) Error() string {
	return fmt.Sprintf("custom split amounts sum to %s, expense total is %s", e.Got, e.Expected)
}

func (e *SplitMismatchError) Unwrap() error {
	return &ValidationError{Field: "customSplit", Message: e.Error()}
}

// PastPaymentWindowError reports a paid date older than the window a
// standard user may record payments for.
type PastPaymentWindowError struct {
	PaidDate   string
	WindowDays int
}

func (e *PastPaymentWindowError) Error() string {
	return fmt.Sprintf("paid date %s is outside the %d-day past-payment window", e.PaidDate, e.WindowDays)
}

func (e *PastPaymentWindowError) Unwrap() error {
	return ErrPolicyViolation
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrStoreUnavailable)
}

// IsClientError returns true if the error is due to invalid caller input
// or a rejected business rule, as opposed to an infrastructure failure.
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrDuplicatePendingApproval) ||
		errors.Is(err, ErrPolicyViolation)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrScheduleNotFound) ||
		errors.Is(err, ErrObligationNotFound) ||
		errors.Is(err, ErrApprovalNotFound)
}
