/*
store.go - Persistence interface for lease payment schedules

PURPOSE:
  Defines the boundary between domain logic and the document store. One
  schedule document per lease; full-document reads and writes only.

ATOMICITY:
  A schedule is the unit of atomicity. Put performs an optimistic
  compare-and-swap on Version: if the stored version differs from the one
  read, the write fails with ErrVersionConflict and the caller reloads.
  This is how the sweep and an interactive edit can race on the same
  schedule without lost updates.

BATCHING:
  PutBatch groups writes from the sweep/migration/accrual runs. Each batch
  commits all-or-nothing; a failed batch is reported but does not block
  subsequent batches.

IMPLEMENTATIONS:
  - schedule/store:  in-memory, for tests and development
  - store/sqlite:    JSON documents in SQLite, WAL mode
*/
package schedule

import "context"

// Store persists lease payment schedules as whole documents.
type Store interface {
	// GetByLease returns the schedule for a lease, or ErrScheduleNotFound.
	GetByLease(ctx context.Context, leaseID string) (*LeasePaymentSchedule, error)

	// GetBatch returns the schedules for multiple leases in one call.
	// Missing leases are skipped, not errors.
	GetBatch(ctx context.Context, leaseIDs []string) ([]*LeasePaymentSchedule, error)

	// GetAll returns every schedule, for sweep/accrual/migration runs.
	GetAll(ctx context.Context) ([]*LeasePaymentSchedule, error)

	// Put writes a full schedule document. The write succeeds only when the
	// stored version equals s.Version (compare-and-swap); on success the
	// stored version is incremented. A new schedule must have Version 0.
	Put(ctx context.Context, s *LeasePaymentSchedule) error

	// PutBatch writes multiple schedules atomically with the same
	// per-document version rules. All-or-nothing per batch.
	PutBatch(ctx context.Context, schedules []*LeasePaymentSchedule) error
}
