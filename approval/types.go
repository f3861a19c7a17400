/*
Package approval implements the dual-control workflow gating payment
edits by non-privileged actors.

PURPOSE:
  A system_admin edits payment records directly. A standard_user's edit
  is written behind an approval request: the obligation shows the
  proposed figures with status pending_approval and a snapshot of its
  prior values, and an admin later approves (figures stand) or declines
  (figures revert, status back to pending).

INVARIANTS:
  - At most one outstanding approval request per obligation
  - A reviewed request is immutable
  - A decline always carries review notes

SEE ALSO:
  - coordinator.go: SubmitEdit / Review / RemovePayment
  - memory.go:      in-memory RequestStore
  - store/sqlite:   persistent RequestStore
*/
package approval

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/lease-engine/schedule"
)

// =============================================================================
// APPROVAL REQUEST
// =============================================================================

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDeclined RequestStatus = "declined"
)

// Decision is a reviewer's verdict.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionDeclined Decision = "declined"
)

// ProposedValues are the payment fields an edit wants to record.
type ProposedValues struct {
	PaidAmount    decimal.Decimal `json:"paidAmount"`
	PaidDate      time.Time       `json:"paidDate"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	ProofRef      string          `json:"proofRef,omitempty"`

	// AllowOverpay is the explicit override permitting paidAmount to
	// exceed the obligation amount.
	AllowOverpay bool `json:"allowOverpay,omitempty"`
}

// PaymentApprovalRequest captures one edit awaiting (or past) review.
// Once reviewed it never changes again.
type PaymentApprovalRequest struct {
	ID         string                 `json:"id"`
	ScheduleID string                 `json:"scheduleId"` // lease id of the schedule
	MonthKey   schedule.MonthKey      `json:"monthKey"`
	Original   schedule.PaymentFields `json:"originalValues"`
	Proposed   ProposedValues         `json:"proposedValues"`
	EditedBy   string                 `json:"editedBy"`
	Status     RequestStatus          `json:"status"`

	ReviewedBy  string     `json:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty"`
	ReviewNotes string     `json:"reviewNotes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// =============================================================================
// REQUEST STORE
// =============================================================================

// RequestStore persists approval requests.
type RequestStore interface {
	Create(ctx context.Context, r *PaymentApprovalRequest) error

	// Get returns a request by id, or schedule.ErrApprovalNotFound.
	Get(ctx context.Context, id string) (*PaymentApprovalRequest, error)

	// Update persists a status transition. Stores reject updates to
	// requests that are no longer pending.
	Update(ctx context.Context, r *PaymentApprovalRequest) error

	// PendingFor returns the outstanding request for an obligation, or nil.
	PendingFor(ctx context.Context, scheduleID string, key schedule.MonthKey) (*PaymentApprovalRequest, error)

	// ListPending returns all outstanding requests, oldest first.
	ListPending(ctx context.Context) ([]*PaymentApprovalRequest, error)
}
