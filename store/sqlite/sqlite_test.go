package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/lease-engine/approval"
	"github.com/warp/lease-engine/payout"
	"github.com/warp/lease-engine/schedule"
	"github.com/warp/lease-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSchedule(t *testing.T, leaseID string) *schedule.LeasePaymentSchedule {
	t.Helper()
	s, err := schedule.NewSchedule(schedule.LeaseTerms{
		LeaseID:       leaseID,
		StartYear:     2025,
		StartMonth:    time.January,
		Months:        3,
		MonthlyRent:   decimal.NewFromInt(800),
		DepositAmount: decimal.NewFromInt(1600),
	}, schedule.PolicyFirstDay, decimal.Zero, time.Now())
	if err != nil {
		t.Fatalf("failed to build schedule: %v", err)
	}
	return s
}

// =============================================================================
// SCHEDULE ROUND-TRIP & CONCURRENCY TESTS
// =============================================================================

func TestSQLite_ScheduleRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)

	s := testSchedule(t, "lease-1")
	if err := db.Put(ctx, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Version != 1 {
		t.Errorf("expected version 1, got %d", s.Version)
	}

	got, err := db.GetByLease(ctx, "lease-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.LeaseID != "lease-1" || len(got.Obligations) != 4 {
		t.Errorf("unexpected document: %s with %d obligations", got.LeaseID, len(got.Obligations))
	}
	if !got.TotalAmount.Equal(decimal.NewFromInt(4000)) {
		t.Errorf("expected total 4000, got %s", got.TotalAmount.StringFixed(2))
	}
	if got.Version != 1 {
		t.Errorf("expected version 1 from the version column, got %d", got.Version)
	}
}

func TestSQLite_StaleWriteRejected(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)
	if err := db.Put(ctx, testSchedule(t, "lease-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, _ := db.GetByLease(ctx, "lease-1")
	second, _ := db.GetByLease(ctx, "lease-1")

	if err := db.Put(ctx, first); err != nil {
		t.Fatalf("first writer should win: %v", err)
	}
	if err := db.Put(ctx, second); !errors.Is(err, schedule.ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}
}

func TestSQLite_PutBatchRollsBackOnConflict(t *testing.T) {
	// GIVEN: A batch with one stale document
	// WHEN: Writing the batch
	// THEN: The transaction rolls back; the fresh document is not written

	ctx := context.Background()
	db := newStore(t)
	a := testSchedule(t, "lease-a")
	b := testSchedule(t, "lease-b")
	if err := db.PutBatch(ctx, []*schedule.LeasePaymentSchedule{a, b}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	freshA, _ := db.GetByLease(ctx, "lease-a")
	staleB := testSchedule(t, "lease-b")

	err := db.PutBatch(ctx, []*schedule.LeasePaymentSchedule{freshA, staleB})
	if !errors.Is(err, schedule.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	current, _ := db.GetByLease(ctx, "lease-a")
	if current.Version != 1 {
		t.Errorf("expected lease-a untouched at version 1, got %d", current.Version)
	}
}

func TestSQLite_GetByLeaseNotFound(t *testing.T) {
	db := newStore(t)
	if _, err := db.GetByLease(context.Background(), "missing"); !errors.Is(err, schedule.ErrScheduleNotFound) {
		t.Errorf("expected ErrScheduleNotFound, got %v", err)
	}
}

// =============================================================================
// APPROVAL REQUEST TESTS
// =============================================================================

func pendingRequest(id, lease string, key schedule.MonthKey) *approval.PaymentApprovalRequest {
	return &approval.PaymentApprovalRequest{
		ID:         id,
		ScheduleID: lease,
		MonthKey:   key,
		EditedBy:   "user-1",
		Status:     approval.RequestPending,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestSQLite_OnePendingApprovalPerObligation(t *testing.T) {
	// GIVEN: A pending request for an obligation
	// WHEN: Creating a second pending request for the same obligation
	// THEN: The partial unique index rejects it

	ctx := context.Background()
	db := newStore(t)

	if err := db.Create(ctx, pendingRequest("req-1", "lease-1", "2025-01")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := db.Create(ctx, pendingRequest("req-2", "lease-1", "2025-01"))
	if !errors.Is(err, schedule.ErrDuplicatePendingApproval) {
		t.Errorf("expected ErrDuplicatePendingApproval, got %v", err)
	}

	// A different obligation is fine.
	if err := db.Create(ctx, pendingRequest("req-3", "lease-1", "2025-02")); err != nil {
		t.Errorf("unexpected error for a different obligation: %v", err)
	}
}

func TestSQLite_ResolvedRequestReopensSlot(t *testing.T) {
	// GIVEN: A request reviewed to approved
	// WHEN: A new edit on the same obligation creates another request
	// THEN: It is accepted; only pending rows occupy the unique slot

	ctx := context.Background()
	db := newStore(t)

	r := pendingRequest("req-1", "lease-1", "2025-01")
	if err := db.Create(ctx, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.Status = approval.RequestApproved
	if err := db.Update(ctx, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := db.Create(ctx, pendingRequest("req-2", "lease-1", "2025-01")); err != nil {
		t.Errorf("expected new request after resolution, got %v", err)
	}
}

func TestSQLite_ReviewedRequestImmutable(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)

	r := pendingRequest("req-1", "lease-1", "2025-01")
	if err := db.Create(ctx, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.Status = approval.RequestDeclined
	r.ReviewNotes = "proof missing"
	if err := db.Update(ctx, r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.Status = approval.RequestApproved
	if err := db.Update(ctx, r); err == nil {
		t.Error("expected update of a reviewed request to fail")
	}
}

func TestSQLite_PendingForAndList(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)

	if err := db.Create(ctx, pendingRequest("req-1", "lease-1", "2025-01")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := db.PendingFor(ctx, "lease-1", "2025-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != "req-1" {
		t.Errorf("expected req-1, got %+v", got)
	}

	none, err := db.PendingFor(ctx, "lease-1", "2025-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if none != nil {
		t.Errorf("expected nil for no pending request, got %+v", none)
	}

	pending, err := db.ListPending(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("expected one pending request, got %d", len(pending))
	}
}

// =============================================================================
// PAYOUT RECORD TESTS
// =============================================================================

func testPayout(id, lease string) *payout.DepositPayoutRecord {
	return &payout.DepositPayoutRecord{
		ID:            id,
		LeaseID:       lease,
		DepositAmount: decimal.NewFromInt(1600),
		PayoutAmount:  decimal.NewFromInt(1600),
		PayoutDate:    time.Now().UTC(),
		ProcessedBy:   "admin-1",
	}
}

func TestSQLite_PayoutRecordOncePerLease(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)
	records := db.PayoutRecords()

	first := testPayout("p-1", "lease-1")
	if err := records.Create(ctx, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := records.Create(ctx, testPayout("p-2", "lease-1")); err == nil {
		t.Error("expected second record for the same lease to be rejected")
	}

	got, err := records.GetByLease(ctx, "lease-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != "p-1" {
		t.Errorf("expected record p-1, got %+v", got)
	}

	unsettled, err := records.GetByLease(ctx, "lease-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unsettled != nil {
		t.Errorf("expected nil for unsettled lease, got %+v", unsettled)
	}
}
