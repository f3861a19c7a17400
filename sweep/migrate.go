/*
migrate.go - Due-date policy change migrator

PURPOSE:
  When the organization switches its due-date policy (first_day <->
  last_day), every schedule's monthly obligations must be re-dated under
  the new policy. Statuses are conditionally flipped: an overdue
  obligation whose new due date is now in the future goes back to
  pending; a pending obligation whose new due date (plus grace) has
  lapsed becomes overdue.

DRY RUN:
  Preview computes the full change set without mutating anything, so an
  administrator can see {SchedulesToUpdate, PaymentsToUpdate,
  StatusChanges} before committing.

IDEMPOTENCE:
  Apply run twice under the same policy converges after the first run;
  deposits and one-off obligations are never re-dated.
*/
package sweep

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/lease-engine/directory"
	"github.com/warp/lease-engine/schedule"
)

// =============================================================================
// CHANGE SET - What a migration would (or did) touch
// =============================================================================

// StatusChange records one conditional status flip.
type StatusChange struct {
	LeaseID  string
	MonthKey schedule.MonthKey
	From     schedule.ObligationStatus
	To       schedule.ObligationStatus
}

// ChangeSet is the migration preview: counts plus every status flip.
type ChangeSet struct {
	SchedulesToUpdate int
	PaymentsToUpdate  int
	StatusChanges     []StatusChange
}

// MigrationResult is the outcome of an applied migration.
type MigrationResult struct {
	ChangeSet
	Updated int
	Errors  []ScheduleError
}

// =============================================================================
// MIGRATOR
// =============================================================================

// Migrator rewrites schedule due dates when the organization policy changes.
type Migrator struct {
	Store     schedule.Store
	Settings  directory.SettingsProvider
	Log       *logrus.Logger
	BatchSize int
	Now       func() time.Time
}

// Preview computes the change set for switching to newPolicy without
// writing anything.
func (m *Migrator) Preview(ctx context.Context, newPolicy schedule.DueDatePolicy) (*ChangeSet, error) {
	_, cs, _, err := m.compute(ctx, newPolicy)
	return cs, err
}

// Apply migrates every schedule to newPolicy. Batch-safe and idempotent,
// with the same per-schedule error isolation as the sweep.
func (m *Migrator) Apply(ctx context.Context, newPolicy schedule.DueDatePolicy) (*MigrationResult, error) {
	dirty, cs, errs, err := m.compute(ctx, newPolicy)
	if err != nil {
		return nil, err
	}

	result := &MigrationResult{ChangeSet: *cs, Errors: errs}

	batchSize := m.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	for start := 0; start < len(dirty); start += batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		end := start + batchSize
		if end > len(dirty) {
			end = len(dirty)
		}
		batch := dirty[start:end]
		if err := m.Store.PutBatch(ctx, batch); err != nil {
			for _, s := range batch {
				result.Errors = append(result.Errors, ScheduleError{LeaseID: s.LeaseID, Err: err})
			}
			continue
		}
		result.Updated += len(batch)
	}

	if m.Log != nil {
		m.Log.WithFields(logrus.Fields{
			"policy":   newPolicy,
			"updated":  result.Updated,
			"payments": result.PaymentsToUpdate,
			"flips":    len(result.StatusChanges),
			"errors":   len(result.Errors),
		}).Info("due-date policy migration applied")
	}
	return result, nil
}

// compute walks all schedules and mutates copies in memory, returning the
// dirty documents and the change set they represent.
func (m *Migrator) compute(ctx context.Context, newPolicy schedule.DueDatePolicy) ([]*schedule.LeasePaymentSchedule, *ChangeSet, []ScheduleError, error) {
	if !newPolicy.Valid() {
		return nil, nil, nil, &schedule.ValidationError{Field: "dueDatePolicy", Message: "unknown policy"}
	}

	settings, err := m.Settings.Settings(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	all, err := m.Store.GetAll(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	today := schedule.Day(m.now())
	cs := &ChangeSet{}
	var dirty []*schedule.LeasePaymentSchedule
	var errs []ScheduleError

	for _, s := range all {
		changed, payments, flips, err := migrateSchedule(s, newPolicy, settings.GracePeriodDays, today)
		if err != nil {
			errs = append(errs, ScheduleError{LeaseID: s.LeaseID, Err: err})
			continue
		}
		if !changed {
			continue
		}
		cs.SchedulesToUpdate++
		cs.PaymentsToUpdate += payments
		cs.StatusChanges = append(cs.StatusChanges, flips...)
		dirty = append(dirty, s)
	}
	return dirty, cs, errs, nil
}

// migrateSchedule re-dates one schedule's monthly, non-deposit obligations
// under newPolicy and applies conditional status flips.
func migrateSchedule(s *schedule.LeasePaymentSchedule, newPolicy schedule.DueDatePolicy, graceDays int, today time.Time) (bool, int, []StatusChange, error) {
	changed := s.DueDatePolicy != newPolicy
	payments := 0
	var flips []StatusChange

	for i := range s.Obligations {
		o := &s.Obligations[i]
		if o.Kind == schedule.KindDeposit || !o.MonthKey.IsMonthly() {
			continue
		}

		newDue, err := schedule.DueDateForKey(o.MonthKey, newPolicy)
		if err != nil {
			return false, 0, nil, err
		}

		touched := false
		if !newDue.Equal(o.DueDate) {
			o.DueDate = newDue
			touched = true
		}

		switch o.Status {
		case schedule.StatusOverdue:
			if newDue.After(today) {
				flips = append(flips, StatusChange{LeaseID: s.LeaseID, MonthKey: o.MonthKey, From: o.Status, To: schedule.StatusPending})
				o.Status = schedule.StatusPending
				touched = true
			}
		case schedule.StatusPending:
			if today.After(newDue.AddDate(0, 0, graceDays)) {
				flips = append(flips, StatusChange{LeaseID: s.LeaseID, MonthKey: o.MonthKey, From: o.Status, To: schedule.StatusOverdue})
				o.Status = schedule.StatusOverdue
				touched = true
			}
		case schedule.StatusPaid, schedule.StatusPartial, schedule.StatusPendingApproval:
			// Settled or in-review obligations keep their status; only the
			// due date moves.
		}

		if touched {
			payments++
			changed = true
		}
	}

	if changed {
		s.DueDatePolicy = newPolicy
		s.RecomputeTotals()
	}
	return changed, payments, flips, nil
}

func (m *Migrator) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}
