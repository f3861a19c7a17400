/*
coordinator.go - Payment edit lifecycle

EDIT FLOW:

  actor submits edit
        │
        ├── privileged ──▶ applied directly, status paid/partial
        │
        └── standard ───▶ reject if a review is already pending
                          write proposed values + prior-value snapshot
                          obligation status = pending_approval
                          create PaymentApprovalRequest
                                │
                        ┌───────┴────────┐
                        ▼                ▼
                    approved          declined
              figures stand,     figures revert to unset,
              paid/partial       status back to pending

The coordinator and the payout calculator are the only writers allowed to
transition obligation status outside the sweep and accrual engines.
*/
package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/warp/lease-engine/directory"
	"github.com/warp/lease-engine/schedule"
)

// Coordinator gates payment edits behind role-based review.
type Coordinator struct {
	Schedules schedule.Store
	Requests  RequestStore
	Settings  directory.SettingsProvider
	Log       *logrus.Logger

	// Injectable for tests; default to time.Now / uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// =============================================================================
// SUBMIT EDIT
// =============================================================================

// SubmitEdit records a payment edit on one obligation.
//
// Privileged actors mutate the obligation directly and get a nil request
// back. Non-privileged actors get a pending PaymentApprovalRequest; the
// proposed figures are visible on the obligation immediately, with the
// prior values snapshotted.
func (c *Coordinator) SubmitEdit(ctx context.Context, scheduleID string, key schedule.MonthKey, proposed ProposedValues, actor directory.Actor) (*PaymentApprovalRequest, error) {
	if key == "" {
		return nil, &schedule.ValidationError{Field: "monthKey", Message: "required"}
	}
	if proposed.PaidAmount.IsNegative() {
		return nil, &schedule.ValidationError{Field: "paidAmount", Message: "must not be negative"}
	}

	settings, err := c.Settings.Settings(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.checkPastPaymentWindow(proposed, actor, settings); err != nil {
		return nil, err
	}

	s, err := c.Schedules.GetByLease(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	o, ok := s.Obligation(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s on lease %s", schedule.ErrObligationNotFound, key, scheduleID)
	}

	if !proposed.AllowOverpay && proposed.PaidAmount.GreaterThan(o.Amount) {
		return nil, &schedule.ValidationError{
			Field:   "paidAmount",
			Message: fmt.Sprintf("%s exceeds obligation amount %s; requires explicit override", proposed.PaidAmount.StringFixed(2), o.Amount.StringFixed(2)),
		}
	}

	// One outstanding review per obligation, for every actor. An admin
	// resolves the open request before editing further. The request store
	// is authoritative here: a pending_approval marker with no pending
	// request means an earlier submission persisted the schedule but
	// failed to create its request, and the resubmission proceeds.
	pending, err := c.Requests.PendingFor(ctx, scheduleID, key)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, fmt.Errorf("%w: request %s", schedule.ErrDuplicatePendingApproval, pending.ID)
	}

	now := c.now()

	if actor.Privileged() {
		applyProposed(o, proposed, actor.ID, now)
		o.Status = o.SettledStatus()
		o.PriorValues = nil
		s.RecomputeTotals()
		if err := c.Schedules.Put(ctx, s); err != nil {
			return nil, err
		}
		c.logEdit("payment edit applied", s, key, actor)
		return nil, nil
	}

	// A stale pending_approval marker still holds the proposal of the
	// interrupted submission; the snapshot of the state before any
	// proposal is in PriorValues and stays the revert target.
	original := o.PaymentFields
	if o.Status == schedule.StatusPendingApproval && o.PriorValues != nil {
		original = *o.PriorValues
	}
	applyProposed(o, proposed, actor.ID, now)
	o.PriorValues = &original
	o.Status = schedule.StatusPendingApproval
	s.RecomputeTotals()
	if err := c.Schedules.Put(ctx, s); err != nil {
		return nil, err
	}

	request := &PaymentApprovalRequest{
		ID:         c.newID(),
		ScheduleID: scheduleID,
		MonthKey:   key,
		Original:   original,
		Proposed:   proposed,
		EditedBy:   actor.ID,
		Status:     RequestPending,
		CreatedAt:  now,
	}
	if err := c.Requests.Create(ctx, request); err != nil {
		return nil, err
	}
	c.logEdit("payment edit submitted for review", s, key, actor)
	return request, nil
}

// =============================================================================
// REVIEW
// =============================================================================

// Review resolves a pending approval request. Only privileged actors may
// review; a decline requires notes. Reviewed requests are immutable.
func (c *Coordinator) Review(ctx context.Context, approvalID string, decision Decision, reviewer directory.Actor, notes string) (*PaymentApprovalRequest, error) {
	if !reviewer.Privileged() {
		return nil, fmt.Errorf("%w: review requires system_admin", schedule.ErrPolicyViolation)
	}
	if decision != DecisionApproved && decision != DecisionDeclined {
		return nil, &schedule.ValidationError{Field: "decision", Message: fmt.Sprintf("unknown decision %q", decision)}
	}
	if decision == DecisionDeclined && notes == "" {
		return nil, &schedule.ValidationError{Field: "notes", Message: "declining a payment edit requires review notes"}
	}

	request, err := c.Requests.Get(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if request.Status != RequestPending {
		return nil, &schedule.ValidationError{Field: "approvalId", Message: fmt.Sprintf("request %s already %s", approvalID, request.Status)}
	}

	s, err := c.Schedules.GetByLease(ctx, request.ScheduleID)
	if err != nil {
		return nil, err
	}
	o, ok := s.Obligation(request.MonthKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s on lease %s", schedule.ErrObligationNotFound, request.MonthKey, request.ScheduleID)
	}

	now := c.now()
	switch decision {
	case DecisionApproved:
		applyProposed(o, request.Proposed, request.EditedBy, now)
		o.PriorValues = nil
		o.Status = o.SettledStatus()
	case DecisionDeclined:
		o.ClearPayment()
		o.EditedBy = reviewer.ID
		o.EditedAt = &now
	}
	s.RecomputeTotals()
	if err := c.Schedules.Put(ctx, s); err != nil {
		return nil, err
	}

	request.Status = RequestStatus(decision)
	request.ReviewedBy = reviewer.ID
	request.ReviewedAt = &now
	request.ReviewNotes = notes
	if err := c.Requests.Update(ctx, request); err != nil {
		return nil, err
	}

	if c.Log != nil {
		c.Log.WithFields(logrus.Fields{
			"approval": approvalID,
			"decision": decision,
			"reviewer": reviewer.ID,
			"lease":    request.ScheduleID,
			"monthKey": request.MonthKey,
		}).Info("payment edit reviewed")
	}
	return request, nil
}

// =============================================================================
// REMOVE PAYMENT
// =============================================================================

// RemovePayment resets an obligation to pending and clears its payment
// fields. Privileged-only.
func (c *Coordinator) RemovePayment(ctx context.Context, scheduleID string, key schedule.MonthKey, actor directory.Actor) error {
	if !actor.Privileged() {
		return fmt.Errorf("%w: removing a payment requires system_admin", schedule.ErrPolicyViolation)
	}

	s, err := c.Schedules.GetByLease(ctx, scheduleID)
	if err != nil {
		return err
	}
	o, ok := s.Obligation(key)
	if !ok {
		return fmt.Errorf("%w: %s on lease %s", schedule.ErrObligationNotFound, key, scheduleID)
	}

	now := c.now()
	o.ClearPayment()
	o.EditedBy = actor.ID
	o.EditedAt = &now
	s.RecomputeTotals()
	if err := c.Schedules.Put(ctx, s); err != nil {
		return err
	}
	c.logEdit("payment removed", s, key, actor)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func applyProposed(o *schedule.Obligation, pv ProposedValues, editor string, now time.Time) {
	paid := pv.PaidAmount
	o.PaidAmount = &paid
	if pv.PaidDate.IsZero() {
		o.PaidDate = nil
	} else {
		paidDate := pv.PaidDate
		o.PaidDate = &paidDate
	}
	o.PaymentMethod = pv.PaymentMethod
	o.ProofRef = pv.ProofRef
	o.EditedBy = editor
	o.EditedAt = &now
}

// checkPastPaymentWindow rejects standard-user edits whose paid date is
// older than the configured window. Admins are exempt; zero disables.
func (c *Coordinator) checkPastPaymentWindow(pv ProposedValues, actor directory.Actor, settings directory.Settings) error {
	if actor.Privileged() || settings.MaxPastPaymentDays <= 0 || pv.PaidDate.IsZero() {
		return nil
	}
	cutoff := schedule.Day(c.now()).AddDate(0, 0, -settings.MaxPastPaymentDays)
	if schedule.Day(pv.PaidDate).Before(cutoff) {
		return &schedule.PastPaymentWindowError{
			PaidDate:   pv.PaidDate.Format("2006-01-02"),
			WindowDays: settings.MaxPastPaymentDays,
		}
	}
	return nil
}

func (c *Coordinator) logEdit(msg string, s *schedule.LeasePaymentSchedule, key schedule.MonthKey, actor directory.Actor) {
	if c.Log == nil {
		return
	}
	c.Log.WithFields(logrus.Fields{
		"lease":    s.LeaseID,
		"monthKey": key,
		"actor":    actor.ID,
		"role":     actor.Role,
	}).Info(msg)
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Coordinator) newID() string {
	if c.NewID != nil {
		return c.NewID()
	}
	return uuid.NewString()
}
