/*
Package payout settles lease deposits at termination: it nets the deposit
against recoverable maintenance costs and manual deductions, persists an
immutable DepositPayoutRecord, and appends the payout to the schedule.

CALCULATION:
  totalDeduction = sum(selected recoverable room-cost lines) + manualDeduction
  payoutAmount   = max(0, depositAmount - totalDeduction)

The payout never goes negative. Deduction excess beyond the deposit is
recorded on the payout record as UncollectedAmount so the shortfall
against the former tenant is not silently lost.

All arithmetic is decimal; repeated additions never drift.
*/
package payout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/lease-engine/directory"
	"github.com/warp/lease-engine/schedule"
)

// =============================================================================
// PAYOUT RECORD
// =============================================================================

// DepositPayoutRecord is written once per lease termination and is
// immutable thereafter.
type DepositPayoutRecord struct {
	ID              string          `json:"id"`
	LeaseID         string          `json:"leaseId"`
	DepositAmount   decimal.Decimal `json:"depositAmount"`
	DeductionAmount decimal.Decimal `json:"deductionAmount"`
	PayoutAmount    decimal.Decimal `json:"payoutAmount"`
	// UncollectedAmount is the deduction excess beyond the deposit, owed
	// by the former tenant.
	UncollectedAmount decimal.Decimal `json:"uncollectedAmount"`
	DeductionReason   string          `json:"deductionReason,omitempty"`
	// ExpenseLineIDs reference the recovered maintenance-expense lines.
	ExpenseLineIDs []string  `json:"expenseLineIds,omitempty"`
	PayoutDate     time.Time `json:"payoutDate"`
	ProcessedBy    string    `json:"processedBy"`
}

// RecordStore persists payout records. Create-only: records never change.
type RecordStore interface {
	Create(ctx context.Context, r *DepositPayoutRecord) error
	// GetByLease returns the settlement for a lease, or (nil, nil) when
	// the deposit has not been settled.
	GetByLease(ctx context.Context, leaseID string) (*DepositPayoutRecord, error)
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Input describes one deposit settlement.
type Input struct {
	LeaseID string

	// SelectedLineIDs are the maintenance-expense room-cost lines chosen
	// for recovery; only lines flagged recoverFromDeposit count.
	SelectedLineIDs []string

	ManualDeduction decimal.Decimal
	DeductionReason string
	ProcessedBy     string
}

// Calculator nets deposits against recoverable costs and writes the result.
type Calculator struct {
	Schedules schedule.Store
	Expenses  directory.ExpenseSource
	Records   RecordStore
	Log       *logrus.Logger

	Now   func() time.Time
	NewID func() string
}

// Settle computes and persists the deposit payout for a lease. When the
// payout is positive, a one-off deposit_payout obligation is appended to
// the schedule already marked paid; it is not part of the monthly cadence.
func (c *Calculator) Settle(ctx context.Context, in Input) (*DepositPayoutRecord, error) {
	if in.ManualDeduction.IsNegative() {
		return nil, &schedule.ValidationError{Field: "manualDeduction", Message: "must not be negative"}
	}
	if in.ManualDeduction.IsPositive() && in.DeductionReason == "" {
		return nil, &schedule.ValidationError{Field: "deductionReason", Message: "required for a manual deduction"}
	}

	s, err := c.Schedules.GetByLease(ctx, in.LeaseID)
	if err != nil {
		return nil, err
	}

	// One settlement per lease.
	existing, err := c.Records.GetByLease(ctx, in.LeaseID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &schedule.ValidationError{Field: "leaseId", Message: fmt.Sprintf("deposit for lease %s already settled (record %s)", in.LeaseID, existing.ID)}
	}

	deposit := depositAmount(s)

	deduction := in.ManualDeduction
	var lineIDs []string
	if len(in.SelectedLineIDs) > 0 {
		lines, err := c.Expenses.CostLines(ctx, in.SelectedLineIDs)
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			if !line.RecoverFromDeposit {
				return nil, &schedule.ValidationError{Field: "selectedLineIds", Message: fmt.Sprintf("cost line %s is not recoverable from deposit", line.ID)}
			}
			deduction = deduction.Add(line.Amount)
			lineIDs = append(lineIDs, line.ID)
		}
	}

	amount := deposit.Sub(deduction)
	uncollected := decimal.Zero
	if amount.IsNegative() {
		uncollected = amount.Neg()
		amount = decimal.Zero
	}

	now := schedule.Day(c.now())
	record := &DepositPayoutRecord{
		ID:                c.newID(),
		LeaseID:           in.LeaseID,
		DepositAmount:     deposit,
		DeductionAmount:   deduction,
		PayoutAmount:      amount,
		UncollectedAmount: uncollected,
		DeductionReason:   in.DeductionReason,
		ExpenseLineIDs:    lineIDs,
		PayoutDate:        now,
		ProcessedBy:       in.ProcessedBy,
	}

	if amount.IsPositive() {
		paid := amount
		paidDate := now
		editedAt := c.now()
		if err := s.AppendObligation(schedule.Obligation{
			MonthKey: schedule.MonthKey("payout-" + record.ID),
			DueDate:  now,
			Amount:   amount,
			Kind:     schedule.KindDepositPayout,
			Status:   schedule.StatusPaid,
			PaymentFields: schedule.PaymentFields{
				PaidAmount: &paid,
				PaidDate:   &paidDate,
			},
			EditedBy: in.ProcessedBy,
			EditedAt: &editedAt,
		}); err != nil {
			return nil, err
		}
		if err := c.Schedules.Put(ctx, s); err != nil {
			return nil, err
		}
	}

	if err := c.Records.Create(ctx, record); err != nil {
		return nil, err
	}

	if c.Log != nil {
		c.Log.WithFields(logrus.Fields{
			"lease":       in.LeaseID,
			"deposit":     deposit.StringFixed(2),
			"deduction":   deduction.StringFixed(2),
			"payout":      amount.StringFixed(2),
			"uncollected": uncollected.StringFixed(2),
		}).Info("deposit settled")
	}
	return record, nil
}

// depositAmount sums the schedule's deposit obligations.
func depositAmount(s *schedule.LeasePaymentSchedule) decimal.Decimal {
	total := decimal.Zero
	for i := range s.Obligations {
		if s.Obligations[i].Kind == schedule.KindDeposit {
			total = total.Add(s.Obligations[i].Amount)
		}
	}
	return total
}

func (c *Calculator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Calculator) newID() string {
	if c.NewID != nil {
		return c.NewID()
	}
	return uuid.NewString()
}
