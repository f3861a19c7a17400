/*
Package sweep implements the batch reconciliation passes over all lease
payment schedules: the overdue sweep and the due-date policy migrator.

PURPOSE:
  The sweep flips pending obligations to overdue once their grace period
  has lapsed. It runs nightly (see api/scheduler.go) or on demand, and is
  safe to re-run: once convergent, another run changes nothing.

BATCHING & ISOLATION:
  Writes are grouped into bounded batches that commit independently. One
  bad schedule never aborts the run; its error is collected and reported
  in the run result. Cancellation is honored between batches, never
  mid-batch.

SEE ALSO:
  - migrate.go: Policy-change migrator sharing the same run mechanics
  - penalty:    The accrual engine, run with the same cadence
*/
package sweep

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/lease-engine/directory"
	"github.com/warp/lease-engine/schedule"
)

// DefaultBatchSize bounds how many schedule documents one batch commits.
const DefaultBatchSize = 500

// =============================================================================
// RUN RESULT - Aggregated outcome, errors collected per schedule
// =============================================================================

// ScheduleError records a failure isolated to one schedule.
type ScheduleError struct {
	LeaseID string
	Err     error
}

// Result summarizes a sweep run.
type Result struct {
	Scanned    int
	Updated    int // schedules written
	Flipped    int // obligations flipped pending -> overdue
	Errors     []ScheduleError
	StartedAt  time.Time
	FinishedAt time.Time
}

// =============================================================================
// OVERDUE SWEEP
// =============================================================================

// Sweeper scans every schedule and marks lapsed pending obligations overdue.
type Sweeper struct {
	Store     schedule.Store
	Settings  directory.SettingsProvider
	Log       *logrus.Logger
	BatchSize int

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Run executes one full sweep. Idempotent: re-running over converged state
// produces no further writes.
func (sw *Sweeper) Run(ctx context.Context) (*Result, error) {
	result := &Result{StartedAt: sw.now()}

	settings, err := sw.Settings.Settings(ctx)
	if err != nil {
		return nil, err
	}

	all, err := sw.Store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	today := schedule.Day(sw.now())
	batchSize := sw.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var dirty []*schedule.LeasePaymentSchedule
	for _, s := range all {
		result.Scanned++

		flipped, err := sweepSchedule(s, settings.GracePeriodDays, today)
		if err != nil {
			result.Errors = append(result.Errors, ScheduleError{LeaseID: s.LeaseID, Err: err})
			continue
		}
		if flipped == 0 {
			continue
		}
		result.Flipped += flipped
		dirty = append(dirty, s)

		if len(dirty) >= batchSize {
			sw.flush(ctx, dirty, result)
			dirty = nil
			if err := ctx.Err(); err != nil {
				// Cooperative cancellation between batches only.
				result.FinishedAt = sw.now()
				return result, err
			}
		}
	}
	sw.flush(ctx, dirty, result)

	result.FinishedAt = sw.now()
	if sw.Log != nil {
		sw.Log.WithFields(logrus.Fields{
			"scanned": result.Scanned,
			"updated": result.Updated,
			"flipped": result.Flipped,
			"errors":  len(result.Errors),
		}).Info("overdue sweep completed")
	}
	return result, nil
}

// flush commits one batch. A failed batch is reported per schedule and
// does not block subsequent batches.
func (sw *Sweeper) flush(ctx context.Context, batch []*schedule.LeasePaymentSchedule, result *Result) {
	if len(batch) == 0 {
		return
	}
	if err := sw.Store.PutBatch(ctx, batch); err != nil {
		for _, s := range batch {
			result.Errors = append(result.Errors, ScheduleError{LeaseID: s.LeaseID, Err: err})
		}
		if sw.Log != nil {
			sw.Log.WithError(err).WithField("batch_size", len(batch)).Warn("sweep batch failed")
		}
		return
	}
	result.Updated += len(batch)
}

// sweepSchedule applies the grace-period rule to one schedule in memory.
// Returns the number of obligations flipped to overdue.
func sweepSchedule(s *schedule.LeasePaymentSchedule, graceDays int, today time.Time) (int, error) {
	flipped := 0
	for i := range s.Obligations {
		o := &s.Obligations[i]
		if o.Status != schedule.StatusPending {
			continue
		}

		// Monthly obligations recompute their due date from the schedule's
		// stored policy; one-off lines keep the date they were written with.
		due := o.DueDate
		if o.MonthKey.IsMonthly() {
			recomputed, err := schedule.DueDateForKey(o.MonthKey, s.DueDatePolicy)
			if err != nil {
				return flipped, err
			}
			due = recomputed
			o.DueDate = recomputed
		}

		if today.After(due.AddDate(0, 0, graceDays)) {
			o.Status = schedule.StatusOverdue
			flipped++
		}
	}
	if flipped > 0 {
		s.RecomputeTotals()
	}
	return flipped, nil
}

func (sw *Sweeper) now() time.Time {
	if sw.Now != nil {
		return sw.Now()
	}
	return time.Now()
}
