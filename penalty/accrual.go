/*
Package penalty implements the aggregated late-payment penalty accrual
engine.

PURPOSE:
  For every schedule carrying overdue obligations, computes the
  incremental penalty owed since the last accrual and folds it into the
  schedule's AggregatedPenalty balance with an append-only history entry.

GUARANTEES:
  - Monotonic: TotalAmount never decreases through accrual. Only payments
    move PaidAmount.
  - Idempotent per calendar day: a schedule already accrued today is
    skipped on re-run, so the nightly job and a manual trigger can
    overlap safely.

ACCRUAL MODEL:
  The daily late fee starts LateFeeStartDay days after an obligation's
  due date. Each run charges the days elapsed since the later of that
  start and the previous accrual, up to today.

SEE ALSO:
  - sweep: flips obligations to overdue before accrual sees them
  - api/scheduler.go: nightly cadence
*/
package penalty

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/lease-engine/directory"
	"github.com/warp/lease-engine/schedule"
	"github.com/warp/lease-engine/sweep"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine accrues penalties across all schedules in bounded batches.
type Engine struct {
	Store     schedule.Store
	Settings  directory.SettingsProvider
	Log       *logrus.Logger
	BatchSize int
	Now       func() time.Time
}

// Result summarizes an accrual run.
type Result struct {
	Scanned      int
	Accrued      int // schedules that received a penalty increment
	Skipped      int // already accrued today
	TotalAccrued decimal.Decimal
	Errors       []sweep.ScheduleError
}

// RunAll accrues penalties for every schedule with overdue obligations.
// Per-schedule failures are collected; one bad schedule never aborts the
// run. Cancellation is honored between batches.
func (e *Engine) RunAll(ctx context.Context) (*Result, error) {
	settings, err := e.Settings.Settings(ctx)
	if err != nil {
		return nil, err
	}

	all, err := e.Store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	today := schedule.Day(e.now())
	result := &Result{TotalAccrued: decimal.Zero}

	batchSize := e.BatchSize
	if batchSize <= 0 {
		batchSize = sweep.DefaultBatchSize
	}

	var dirty []*schedule.LeasePaymentSchedule
	for _, s := range all {
		result.Scanned++

		increment, applied := Accrue(s, settings, today)
		if !applied {
			if s.HasOverdue() && alreadyAccrued(s, today) {
				result.Skipped++
			}
			continue
		}
		result.Accrued++
		result.TotalAccrued = result.TotalAccrued.Add(increment)
		dirty = append(dirty, s)

		if len(dirty) >= batchSize {
			e.flush(ctx, dirty, result)
			dirty = nil
			if err := ctx.Err(); err != nil {
				return result, err
			}
		}
	}
	e.flush(ctx, dirty, result)

	if e.Log != nil {
		e.Log.WithFields(logrus.Fields{
			"scanned": result.Scanned,
			"accrued": result.Accrued,
			"skipped": result.Skipped,
			"total":   result.TotalAccrued.StringFixed(2),
			"errors":  len(result.Errors),
		}).Info("penalty accrual completed")
	}
	return result, nil
}

func (e *Engine) flush(ctx context.Context, batch []*schedule.LeasePaymentSchedule, result *Result) {
	if len(batch) == 0 {
		return
	}
	if err := e.Store.PutBatch(ctx, batch); err != nil {
		for _, s := range batch {
			result.Errors = append(result.Errors, sweep.ScheduleError{LeaseID: s.LeaseID, Err: err})
		}
		if e.Log != nil {
			e.Log.WithError(err).WithField("batch_size", len(batch)).Warn("accrual batch failed")
		}
	}
}

// =============================================================================
// ACCRUAL CALCULATION
// =============================================================================

// Accrue computes and applies today's penalty increment for one schedule.
// Returns the increment and whether the schedule was mutated. Schedules
// without overdue obligations, already accrued today, or with nothing
// chargeable yet are left untouched.
func Accrue(s *schedule.LeasePaymentSchedule, settings directory.Settings, today time.Time) (decimal.Decimal, bool) {
	if !s.HasOverdue() || alreadyAccrued(s, today) {
		return decimal.Zero, false
	}
	if !settings.LateFeeAmount.IsPositive() {
		return decimal.Zero, false
	}

	var lastCalc time.Time
	if s.AggregatedPenalty != nil {
		lastCalc = schedule.Day(s.AggregatedPenalty.LastCalculated)
	}

	increment := decimal.Zero
	overdueCount := 0
	for i := range s.Obligations {
		o := &s.Obligations[i]
		if o.Status != schedule.StatusOverdue {
			continue
		}
		overdueCount++

		// Charging starts LateFeeStartDay days after the due date, and
		// never re-charges days covered by a previous run.
		start := schedule.Day(o.DueDate).AddDate(0, 0, settings.LateFeeStartDay)
		if lastCalc.After(start) {
			start = lastCalc
		}
		days := schedule.DaysBetween(start, today)
		if days <= 0 {
			continue
		}
		increment = increment.Add(settings.LateFeeAmount.Mul(decimal.NewFromInt(int64(days))))
	}

	if !increment.IsPositive() {
		return decimal.Zero, false
	}

	if s.AggregatedPenalty == nil {
		s.AggregatedPenalty = &schedule.AggregatedPenalty{
			TotalAmount: decimal.Zero,
			PaidAmount:  decimal.Zero,
		}
	}
	p := s.AggregatedPenalty
	p.TotalAmount = p.TotalAmount.Add(increment)
	p.OutstandingAmount = p.TotalAmount.Sub(p.PaidAmount)
	p.LastCalculated = today
	p.CalculationHistory = append(p.CalculationHistory, schedule.PenaltyAccrualEntry{
		Date:        today,
		AmountAdded: increment,
		Basis: fmt.Sprintf("%d overdue obligation(s) at %s/day, fees start %d day(s) after due date",
			overdueCount, settings.LateFeeAmount.StringFixed(2), settings.LateFeeStartDay),
	})

	s.RecomputeTotals()
	return increment, true
}

func alreadyAccrued(s *schedule.LeasePaymentSchedule, today time.Time) bool {
	return s.AggregatedPenalty != nil &&
		schedule.Day(s.AggregatedPenalty.LastCalculated).Equal(today)
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}
