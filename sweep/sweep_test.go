package sweep_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/lease-engine/directory"
	"github.com/warp/lease-engine/schedule"
	"github.com/warp/lease-engine/schedule/store"
	"github.com/warp/lease-engine/sweep"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func testSettings() *directory.StaticSettings {
	return directory.NewStaticSettings(directory.Settings{
		DueDatePolicy:   "first_day",
		GracePeriodDays: 3,
		LateFeeAmount:   decimal.NewFromInt(5),
	})
}

func at(year int, month time.Month, day int) func() time.Time {
	return func() time.Time {
		return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
	}
}

func seedSchedule(t *testing.T, m *store.Memory, leaseID string, months int) *schedule.LeasePaymentSchedule {
	t.Helper()
	s, err := schedule.NewSchedule(schedule.LeaseTerms{
		LeaseID:       leaseID,
		StartYear:     2025,
		StartMonth:    time.January,
		Months:        months,
		MonthlyRent:   decimal.NewFromInt(800),
		DepositAmount: decimal.NewFromInt(1600),
	}, schedule.PolicyFirstDay, decimal.Zero, time.Now())
	if err != nil {
		t.Fatalf("failed to build schedule: %v", err)
	}
	if err := m.Put(context.Background(), s); err != nil {
		t.Fatalf("failed to seed schedule: %v", err)
	}
	return s
}

// =============================================================================
// OVERDUE SWEEP TESTS
// =============================================================================

func TestSweep_FlipsLapsedPendingToOverdue(t *testing.T) {
	// GIVEN: first_day policy, grace 3 days, February rent due 2025-02-01
	// WHEN: The sweep runs on 2025-02-05
	// THEN: January and February flip to overdue; later months stay pending

	ctx := context.Background()
	m := store.NewMemory()
	seedSchedule(t, m, "lease-1", 6)

	sw := &sweep.Sweeper{Store: m, Settings: testSettings(), Now: at(2025, time.February, 5)}
	result, err := sw.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Scanned != 1 || result.Updated != 1 {
		t.Errorf("expected 1 scanned and updated, got %d/%d", result.Scanned, result.Updated)
	}

	s, _ := m.GetByLease(ctx, "lease-1")
	feb, _ := s.Obligation("2025-02")
	if feb.Status != schedule.StatusOverdue {
		t.Errorf("expected 2025-02 overdue, got %s", feb.Status)
	}
	jan, _ := s.Obligation("2025-01")
	if jan.Status != schedule.StatusOverdue {
		t.Errorf("expected 2025-01 overdue, got %s", jan.Status)
	}
	mar, _ := s.Obligation("2025-03")
	if mar.Status != schedule.StatusPending {
		t.Errorf("expected 2025-03 pending, got %s", mar.Status)
	}
}

func TestSweep_GraceBoundaryExclusive(t *testing.T) {
	// GIVEN: Due 2025-02-01 with 3 grace days
	// WHEN: Sweeping exactly on 2025-02-04
	// THEN: Still pending; the flip needs today strictly past due+grace

	ctx := context.Background()
	m := store.NewMemory()
	seedSchedule(t, m, "lease-1", 2)

	sw := &sweep.Sweeper{Store: m, Settings: testSettings(), Now: at(2025, time.February, 4)}
	if _, err := sw.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s, _ := m.GetByLease(ctx, "lease-1")
	feb, _ := s.Obligation("2025-02")
	if feb.Status != schedule.StatusPending {
		t.Errorf("expected 2025-02 pending on the grace boundary, got %s", feb.Status)
	}
}

func TestSweep_Idempotent(t *testing.T) {
	// GIVEN: A sweep that already converged
	// WHEN: Running again at the same instant
	// THEN: No schedule is written

	ctx := context.Background()
	m := store.NewMemory()
	seedSchedule(t, m, "lease-1", 6)

	sw := &sweep.Sweeper{Store: m, Settings: testSettings(), Now: at(2025, time.February, 5)}
	if _, err := sw.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := sw.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Updated != 0 || second.Flipped != 0 {
		t.Errorf("expected converged no-op, got updated=%d flipped=%d", second.Updated, second.Flipped)
	}
}

func TestSweep_PaidObligationsUntouched(t *testing.T) {
	// GIVEN: A long-lapsed obligation already paid
	// WHEN: The sweep runs
	// THEN: It stays paid

	ctx := context.Background()
	m := store.NewMemory()
	s := seedSchedule(t, m, "lease-1", 2)

	paid := decimal.NewFromInt(800)
	jan, _ := s.Obligation("2025-01")
	jan.PaidAmount = &paid
	jan.Status = schedule.StatusPaid
	s.RecomputeTotals()
	if err := m.Put(ctx, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sw := &sweep.Sweeper{Store: m, Settings: testSettings(), Now: at(2025, time.June, 1)}
	if _, err := sw.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after, _ := m.GetByLease(ctx, "lease-1")
	jan, _ = after.Obligation("2025-01")
	if jan.Status != schedule.StatusPaid {
		t.Errorf("expected 2025-01 still paid, got %s", jan.Status)
	}
}

func TestSweep_DepositUsesOwnDueDate(t *testing.T) {
	// GIVEN: A deposit due on lease start, outside the monthly cadence
	// WHEN: The sweep runs past start+grace
	// THEN: The deposit flips on its own stored date

	ctx := context.Background()
	m := store.NewMemory()
	seedSchedule(t, m, "lease-1", 2)

	sw := &sweep.Sweeper{Store: m, Settings: testSettings(), Now: at(2025, time.January, 10)}
	if _, err := sw.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s, _ := m.GetByLease(ctx, "lease-1")
	dep, _ := s.Obligation("2025-01-deposit")
	if dep.Status != schedule.StatusOverdue {
		t.Errorf("expected deposit overdue, got %s", dep.Status)
	}
}

// failingBatchStore fails PutBatch for batches containing one lease id.
type failingBatchStore struct {
	schedule.Store
	failLease string
}

func (f *failingBatchStore) PutBatch(ctx context.Context, docs []*schedule.LeasePaymentSchedule) error {
	for _, s := range docs {
		if s.LeaseID == f.failLease {
			return schedule.ErrStoreUnavailable
		}
	}
	return f.Store.PutBatch(ctx, docs)
}

func TestSweep_BatchFailureIsolated(t *testing.T) {
	// GIVEN: Batch size 1 and a store that rejects one schedule's batch
	// WHEN: The sweep runs
	// THEN: Other batches commit; the failure is reported per schedule

	ctx := context.Background()
	m := store.NewMemory()
	seedSchedule(t, m, "lease-bad", 2)
	seedSchedule(t, m, "lease-good", 2)

	sw := &sweep.Sweeper{
		Store:     &failingBatchStore{Store: m, failLease: "lease-bad"},
		Settings:  testSettings(),
		BatchSize: 1,
		Now:       at(2025, time.March, 10),
	}
	result, err := sw.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Scanned != 2 {
		t.Errorf("expected both schedules scanned, got %d", result.Scanned)
	}
	if len(result.Errors) != 1 || result.Errors[0].LeaseID != "lease-bad" {
		t.Fatalf("expected one error for lease-bad, got %+v", result.Errors)
	}

	good, _ := m.GetByLease(ctx, "lease-good")
	jan, _ := good.Obligation("2025-01")
	if jan.Status != schedule.StatusOverdue {
		t.Errorf("expected healthy schedule swept, got %s", jan.Status)
	}
}

func TestSweep_CancelledBetweenBatches(t *testing.T) {
	// GIVEN: More dirty schedules than one batch holds and a cancelled context
	// WHEN: The sweep runs
	// THEN: It stops after the first batch and reports the cancellation

	ctx, cancel := context.WithCancel(context.Background())
	m := store.NewMemory()
	for _, id := range []string{"lease-1", "lease-2", "lease-3"} {
		seedSchedule(t, m, id, 2)
	}
	cancel()

	sw := &sweep.Sweeper{Store: m, Settings: testSettings(), BatchSize: 1, Now: at(2025, time.March, 10)}
	if _, err := sw.Run(ctx); err == nil {
		t.Error("expected context cancellation error, got nil")
	}
}
