package sweep_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/lease-engine/schedule"
	"github.com/warp/lease-engine/schedule/store"
	"github.com/warp/lease-engine/sweep"
)

// =============================================================================
// POLICY MIGRATION TESTS
// =============================================================================

func TestMigrate_OverdueFlipsBackToPending(t *testing.T) {
	// GIVEN: February rent overdue under first_day (due 2025-02-01, swept
	//        on 2025-02-05 with 3 grace days)
	// WHEN: Migrating to last_day on 2025-02-05
	// THEN: The new due date 2025-02-28 is in the future, so the
	//       obligation flips back to pending

	ctx := context.Background()
	m := store.NewMemory()
	seedSchedule(t, m, "lease-1", 3)

	sw := &sweep.Sweeper{Store: m, Settings: testSettings(), Now: at(2025, time.February, 5)}
	if _, err := sw.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mig := &sweep.Migrator{Store: m, Settings: testSettings(), Now: at(2025, time.February, 5)}
	result, err := mig.Apply(ctx, schedule.PolicyLastDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Updated != 1 {
		t.Errorf("expected 1 schedule updated, got %d", result.Updated)
	}

	s, _ := m.GetByLease(ctx, "lease-1")
	if s.DueDatePolicy != schedule.PolicyLastDay {
		t.Errorf("expected schedule policy last_day, got %s", s.DueDatePolicy)
	}

	feb, _ := s.Obligation("2025-02")
	if feb.Status != schedule.StatusPending {
		t.Errorf("expected 2025-02 back to pending, got %s", feb.Status)
	}
	wantDue := time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC)
	if !feb.DueDate.Equal(wantDue) {
		t.Errorf("expected due %v, got %v", wantDue, feb.DueDate)
	}

	// January's new due date 2025-01-31 plus grace has still lapsed.
	jan, _ := s.Obligation("2025-01")
	if jan.Status != schedule.StatusOverdue {
		t.Errorf("expected 2025-01 still overdue, got %s", jan.Status)
	}
}

func TestMigrate_PendingFlipsToOverdueWhenNewDateLapsed(t *testing.T) {
	// GIVEN: Rent pending under last_day (Feb due 2025-02-28)
	// WHEN: Migrating to first_day on 2025-02-10
	// THEN: The new due date 2025-02-01 plus grace has lapsed, so the
	//       obligation becomes overdue

	ctx := context.Background()
	m := store.NewMemory()
	s, err := schedule.NewSchedule(schedule.LeaseTerms{
		LeaseID:     "lease-1",
		StartYear:   2025,
		StartMonth:  time.February,
		Months:      2,
		MonthlyRent: decimal.NewFromInt(800),
	}, schedule.PolicyLastDay, decimal.Zero, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Put(ctx, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mig := &sweep.Migrator{Store: m, Settings: testSettings(), Now: at(2025, time.February, 10)}
	if _, err := mig.Apply(ctx, schedule.PolicyFirstDay); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after, _ := m.GetByLease(ctx, "lease-1")
	feb, _ := after.Obligation("2025-02")
	if feb.Status != schedule.StatusOverdue {
		t.Errorf("expected 2025-02 overdue after migration, got %s", feb.Status)
	}
}

func TestMigrate_PreviewIsDryRun(t *testing.T) {
	// GIVEN: Schedules that a migration would touch
	// WHEN: Previewing
	// THEN: Counts and flips are reported but nothing is written

	ctx := context.Background()
	m := store.NewMemory()
	seedSchedule(t, m, "lease-1", 3)

	mig := &sweep.Migrator{Store: m, Settings: testSettings(), Now: at(2025, time.February, 5)}
	cs, err := mig.Preview(ctx, schedule.PolicyLastDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs.SchedulesToUpdate != 1 {
		t.Errorf("expected 1 schedule in preview, got %d", cs.SchedulesToUpdate)
	}
	if cs.PaymentsToUpdate == 0 {
		t.Error("expected re-dated payments in preview")
	}

	s, _ := m.GetByLease(ctx, "lease-1")
	if s.DueDatePolicy != schedule.PolicyFirstDay {
		t.Errorf("preview must not persist: policy is %s", s.DueDatePolicy)
	}
	if s.Version != 1 {
		t.Errorf("preview must not write: version is %d", s.Version)
	}
}

func TestMigrate_IdempotentUnderSamePolicy(t *testing.T) {
	// GIVEN: A migration already applied
	// WHEN: Applying the same policy again
	// THEN: Nothing changes

	ctx := context.Background()
	m := store.NewMemory()
	seedSchedule(t, m, "lease-1", 3)

	mig := &sweep.Migrator{Store: m, Settings: testSettings(), Now: at(2025, time.February, 5)}
	if _, err := mig.Apply(ctx, schedule.PolicyLastDay); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := mig.Apply(ctx, schedule.PolicyLastDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Updated != 0 || len(second.StatusChanges) != 0 {
		t.Errorf("expected converged no-op, got updated=%d flips=%d", second.Updated, len(second.StatusChanges))
	}
}

func TestMigrate_DepositAndSettledUntouched(t *testing.T) {
	// GIVEN: A deposit line and a paid month
	// WHEN: Migrating policy
	// THEN: The deposit keeps its date; the paid month keeps its status

	ctx := context.Background()
	m := store.NewMemory()
	s := seedSchedule(t, m, "lease-1", 3)

	paid := decimal.NewFromInt(800)
	jan, _ := s.Obligation("2025-01")
	jan.PaidAmount = &paid
	jan.Status = schedule.StatusPaid
	s.RecomputeTotals()
	if err := m.Put(ctx, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	depositDue := s.Obligations[0].DueDate

	mig := &sweep.Migrator{Store: m, Settings: testSettings(), Now: at(2025, time.February, 5)}
	if _, err := mig.Apply(ctx, schedule.PolicyLastDay); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after, _ := m.GetByLease(ctx, "lease-1")
	dep, _ := after.Obligation("2025-01-deposit")
	if !dep.DueDate.Equal(depositDue) {
		t.Errorf("deposit due date moved: %v -> %v", depositDue, dep.DueDate)
	}
	jan, _ = after.Obligation("2025-01")
	if jan.Status != schedule.StatusPaid {
		t.Errorf("expected 2025-01 still paid, got %s", jan.Status)
	}
	if !jan.DueDate.Equal(time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected paid month re-dated to 2025-01-31, got %v", jan.DueDate)
	}
}

func TestMigrate_UnknownPolicyRejected(t *testing.T) {
	mig := &sweep.Migrator{Store: store.NewMemory(), Settings: testSettings()}
	if _, err := mig.Preview(context.Background(), "mid_month"); err == nil {
		t.Error("expected validation error for unknown policy, got nil")
	}
}
