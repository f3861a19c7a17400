/*
Package schedule provides the core lease payment schedule engine.

PURPOSE:
  This package contains the types and algorithms for managing the payment
  lifecycle of a rental lease: the ordered set of monetary obligations
  (monthly rent, deposit, one-off charges), their due dates, and the
  running totals every other component depends on.

KEY CONCEPTS IN THIS FILE (types.go):
  - LeasePaymentSchedule: One document per lease, the unit of atomicity
  - Obligation: A single charge line (monthly or one-off)
  - AggregatedPenalty: Monotonic late-payment penalty balance
  - MonthKey: "YYYY-MM" key, unique per schedule for monthly charges

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point drift
  2. Invariant: Totals always equal the sums over obligations; every
     mutator calls RecomputeTotals, totals are never adjusted in place
  3. Explicit optionality: payment fields are pointers; nil means unset,
     a zero value means explicitly recorded as zero
  4. Closed unions: Kind and Status are typed constants with exhaustive
     switches in all transition logic

SEE ALSO:
  - duedate.go: Due-date policy calendar math
  - errors.go: Error taxonomy
  - store.go: Persistence interface with optimistic concurrency
*/
package schedule

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DUE-DATE POLICY
// =============================================================================

// DueDatePolicy is the organization-wide rule for when monthly rent is due.
type DueDatePolicy string

const (
	// PolicyFirstDay makes rent due on the 1st of each month.
	PolicyFirstDay DueDatePolicy = "first_day"
	// PolicyLastDay makes rent due on the last calendar day of each month.
	PolicyLastDay DueDatePolicy = "last_day"
)

// Valid reports whether p is a known policy.
func (p DueDatePolicy) Valid() bool {
	return p == PolicyFirstDay || p == PolicyLastDay
}

// =============================================================================
// MONTH KEY - "YYYY-MM" for monthly obligations, synthetic for one-offs
// =============================================================================

// MonthKey identifies an obligation within its schedule. Monthly charges use
// the "YYYY-MM" form; one-off lines (deposit payouts, penalty settlements)
// use a synthetic "payout-*" or "penalty-*" key outside the monthly cadence.
type MonthKey string

var monthKeyPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// NewMonthKey builds the canonical key for a calendar month.
func NewMonthKey(year int, month time.Month) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", year, int(month)))
}

// IsMonthly reports whether the key is a calendar-month key (vs synthetic).
func (k MonthKey) IsMonthly() bool {
	return monthKeyPattern.MatchString(string(k))
}

// Parse returns the year and month for a monthly key.
func (k MonthKey) Parse() (int, time.Month, error) {
	if !k.IsMonthly() {
		return 0, 0, &ValidationError{Field: "monthKey", Message: fmt.Sprintf("malformed month key %q, want YYYY-MM", k)}
	}
	var year, month int
	fmt.Sscanf(string(k), "%04d-%02d", &year, &month)
	return year, time.Month(month), nil
}

// =============================================================================
// OBLIGATION - One charge line
// =============================================================================

type ObligationKind string

const (
	KindRent          ObligationKind = "rent"
	KindDeposit       ObligationKind = "deposit"
	KindLateFee       ObligationKind = "late_fee"
	KindDepositPayout ObligationKind = "deposit_payout"
	KindMaintenance   ObligationKind = "maintenance"
	KindPenalty       ObligationKind = "penalty"
)

type ObligationStatus string

const (
	StatusPending         ObligationStatus = "pending"
	StatusPaid            ObligationStatus = "paid"
	StatusOverdue         ObligationStatus = "overdue"
	StatusPartial         ObligationStatus = "partial"
	StatusPendingApproval ObligationStatus = "pending_approval"
)

// PaymentFields groups the optional payment details of an obligation.
// A nil pointer means the field was never recorded; this is distinct from an
// explicit zero (e.g. a recorded zero paid amount on a waived charge).
type PaymentFields struct {
	PaidAmount    *decimal.Decimal `json:"paidAmount,omitempty"`
	PaidDate      *time.Time       `json:"paidDate,omitempty"`
	PaymentMethod string           `json:"paymentMethod,omitempty"`
	ProofRef      string           `json:"proofRef,omitempty"`
}

// Obligation is one charge line within a lease payment schedule.
type Obligation struct {
	MonthKey MonthKey         `json:"monthKey"`
	DueDate  time.Time        `json:"dueDate"`
	Amount   decimal.Decimal  `json:"amount"`
	Kind     ObligationKind   `json:"kind"`
	Status   ObligationStatus `json:"status"`

	PaymentFields

	// Audit trail for the last edit.
	EditedBy string     `json:"editedBy,omitempty"`
	EditedAt *time.Time `json:"editedAt,omitempty"`

	// PriorValues snapshots the payment fields as they were before the
	// proposed edit. A decline resets the fields to unset rather than
	// restoring the snapshot; it serves the audit trail and keeps the
	// pre-proposal state across a resubmission.
	PriorValues *PaymentFields `json:"priorValues,omitempty"`
}

// Paid returns the recorded paid amount, or zero when unset.
func (o *Obligation) Paid() decimal.Decimal {
	if o.PaidAmount == nil {
		return decimal.Zero
	}
	return *o.PaidAmount
}

// SettledStatus returns the status an obligation should carry after its
// payment fields change: paid when the paid amount covers the charge,
// partial otherwise.
func (o *Obligation) SettledStatus() ObligationStatus {
	if o.Paid().GreaterThanOrEqual(o.Amount) {
		return StatusPaid
	}
	return StatusPartial
}

// ClearPayment resets all payment fields to unset and the status to pending.
func (o *Obligation) ClearPayment() {
	o.PaymentFields = PaymentFields{}
	o.PriorValues = nil
	o.Status = StatusPending
}

// =============================================================================
// AGGREGATED PENALTY - Monotonic late-payment balance per schedule
// =============================================================================

// PenaltyAccrualEntry is one append-only history line of a penalty accrual run.
type PenaltyAccrualEntry struct {
	Date        time.Time       `json:"date"`
	AmountAdded decimal.Decimal `json:"amountAdded"`
	Basis       string          `json:"basis"`
}

// AggregatedPenalty tracks the accumulated late-payment penalty of a schedule.
// TotalAmount only ever grows through accrual; payments reduce the
// outstanding balance via PaidAmount.
type AggregatedPenalty struct {
	TotalAmount        decimal.Decimal       `json:"totalAmount"`
	PaidAmount         decimal.Decimal       `json:"paidAmount"`
	OutstandingAmount  decimal.Decimal       `json:"outstandingAmount"`
	LastCalculated     time.Time             `json:"lastCalculated"`
	CalculationHistory []PenaltyAccrualEntry `json:"calculationHistory"`
}

// =============================================================================
// LEASE PAYMENT SCHEDULE - One document per lease
// =============================================================================

// LeasePaymentSchedule is the canonical payment state of one lease. It is the
// unit of atomicity: all mutations to obligations and totals happen in a
// single read-modify-write guarded by Version.
type LeasePaymentSchedule struct {
	LeaseID    string `json:"leaseId"`
	FacilityID string `json:"facilityId"`
	RoomID     string `json:"roomId"`
	RenterID   string `json:"renterId"`

	DueDatePolicy DueDatePolicy `json:"dueDatePolicy"`
	Obligations   []Obligation  `json:"obligations"`

	AggregatedPenalty *AggregatedPenalty `json:"aggregatedPenalty,omitempty"`

	// Computed totals. INVARIANT: always the sums over Obligations.
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	TotalPaid         decimal.Decimal `json:"totalPaid"`
	OutstandingAmount decimal.Decimal `json:"outstandingAmount"`

	// Version guards optimistic concurrency; incremented by the store on
	// every successful write.
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RecomputeTotals re-derives the schedule totals from its obligations.
// Every mutator must call this before persisting; totals never drift.
func (s *LeasePaymentSchedule) RecomputeTotals() {
	total := decimal.Zero
	paid := decimal.Zero
	for i := range s.Obligations {
		total = total.Add(s.Obligations[i].Amount)
		paid = paid.Add(s.Obligations[i].Paid())
	}
	s.TotalAmount = total
	s.TotalPaid = paid
	s.OutstandingAmount = total.Sub(paid)
}

// Obligation returns a pointer to the obligation with the given key.
func (s *LeasePaymentSchedule) Obligation(key MonthKey) (*Obligation, bool) {
	for i := range s.Obligations {
		if s.Obligations[i].MonthKey == key {
			return &s.Obligations[i], true
		}
	}
	return nil, false
}

// HasOverdue reports whether any obligation is currently overdue.
func (s *LeasePaymentSchedule) HasOverdue() bool {
	for i := range s.Obligations {
		if s.Obligations[i].Status == StatusOverdue {
			return true
		}
	}
	return false
}

// AppendObligation adds a one-off obligation and recomputes totals.
// The key must not collide with an existing obligation.
func (s *LeasePaymentSchedule) AppendObligation(o Obligation) error {
	if _, exists := s.Obligation(o.MonthKey); exists {
		return &ValidationError{Field: "monthKey", Message: fmt.Sprintf("obligation %q already exists on lease %s", o.MonthKey, s.LeaseID)}
	}
	s.Obligations = append(s.Obligations, o)
	s.RecomputeTotals()
	return nil
}
