/*
schedule.go - Schedule construction from lease terms

PURPOSE:
  Builds the initial payment schedule when a lease is created: one rent
  obligation per contractual month plus a deposit obligation due with the
  first month. Schedules are created once and never deleted while the
  lease is active; later changes flow through the sweep, accrual engine,
  and approval coordinator.

MONTHLY AMOUNT:
  rent + childSurcharge * children. The surcharge comes from organization
  settings and is fixed into the obligation amounts at creation time, so a
  later settings change does not silently reprice existing leases.
*/
package schedule

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEASE TERMS - Input to schedule creation
// =============================================================================

// LeaseTerms describes the contractual facts a schedule is built from.
type LeaseTerms struct {
	LeaseID    string
	FacilityID string
	RoomID     string
	RenterID   string

	StartYear  int
	StartMonth time.Month
	Months     int

	MonthlyRent   decimal.Decimal
	DepositAmount decimal.Decimal

	// Children is the occupant child count; each child adds the
	// organization's child surcharge to the monthly amount.
	Children int
}

// DepositKey is the month key of the deposit obligation: it shares the
// first month's calendar key with a suffix so it never collides with rent.
func DepositKey(year int, month time.Month) MonthKey {
	return NewMonthKey(year, month) + "-deposit"
}

// =============================================================================
// SCHEDULE BUILDER
// =============================================================================

// NewSchedule builds the payment schedule for a lease: one rent obligation
// per contractual month under the given due-date policy, plus a deposit
// obligation due on the lease start date.
func NewSchedule(terms LeaseTerms, policy DueDatePolicy, childSurcharge decimal.Decimal, now time.Time) (*LeasePaymentSchedule, error) {
	if terms.LeaseID == "" {
		return nil, &ValidationError{Field: "leaseId", Message: "required"}
	}
	if terms.Months <= 0 {
		return nil, &ValidationError{Field: "months", Message: "lease must cover at least one month"}
	}
	if terms.MonthlyRent.IsNegative() || terms.DepositAmount.IsNegative() {
		return nil, &ValidationError{Field: "amount", Message: "rent and deposit must not be negative"}
	}
	if !policy.Valid() {
		return nil, &ValidationError{Field: "dueDatePolicy", Message: fmt.Sprintf("unknown policy %q", policy)}
	}

	monthly := terms.MonthlyRent.Add(childSurcharge.Mul(decimal.NewFromInt(int64(terms.Children))))

	s := &LeasePaymentSchedule{
		LeaseID:       terms.LeaseID,
		FacilityID:    terms.FacilityID,
		RoomID:        terms.RoomID,
		RenterID:      terms.RenterID,
		DueDatePolicy: policy,
		UpdatedAt:     now,
	}

	start := time.Date(terms.StartYear, terms.StartMonth, 1, 0, 0, 0, 0, time.UTC)

	// Deposit is due on lease start regardless of the rent policy.
	if terms.DepositAmount.IsPositive() {
		s.Obligations = append(s.Obligations, Obligation{
			MonthKey: DepositKey(terms.StartYear, terms.StartMonth),
			DueDate:  start,
			Amount:   terms.DepositAmount,
			Kind:     KindDeposit,
			Status:   StatusPending,
		})
	}

	for i := 0; i < terms.Months; i++ {
		at := start.AddDate(0, i, 0)
		s.Obligations = append(s.Obligations, Obligation{
			MonthKey: NewMonthKey(at.Year(), at.Month()),
			DueDate:  DueDate(at.Year(), at.Month(), policy),
			Amount:   monthly,
			Kind:     KindRent,
			Status:   StatusPending,
		})
	}

	s.RecomputeTotals()
	return s, nil
}
