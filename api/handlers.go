/*
handlers.go - HTTP handlers over the payment engine

PURPOSE:
  Thin request/response layer: decode DTOs, resolve the acting user's
  role at the trusted boundary, invoke the core, map the error taxonomy
  to HTTP status codes. No business rules live here.

ERROR MAPPING:
  ValidationError / malformed input    -> 400
  ErrPolicyViolation                   -> 403
  Not-found sentinels                  -> 404
  Duplicate approval, version conflict -> 409
  ErrStoreUnavailable and the rest     -> 500
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/warp/lease-engine/approval"
	"github.com/warp/lease-engine/directory"
	"github.com/warp/lease-engine/payout"
	"github.com/warp/lease-engine/penalty"
	"github.com/warp/lease-engine/schedule"
	"github.com/warp/lease-engine/sweep"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Schedules   schedule.Store
	Requests    approval.RequestStore
	Coordinator *approval.Coordinator
	Calculator  *payout.Calculator
	Sweeper     *sweep.Sweeper
	Migrator    *sweep.Migrator
	Penalties   *penalty.Engine
	Settings    directory.SettingsProvider
	Roles       directory.RoleProvider
	Log         *logrus.Logger
}

// actor resolves the acting user at the trusted role boundary.
func (h *Handler) actor(r *http.Request, userID string) (directory.Actor, error) {
	role, err := h.Roles.RoleOf(r.Context(), userID)
	if err != nil {
		return directory.Actor{}, err
	}
	return directory.Actor{ID: userID, Role: role}, nil
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// CreateSchedule builds and persists the schedule for a new lease.
// POST /api/schedules
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rent, err := parseAmount(req.MonthlyRent)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid monthlyRent", err)
		return
	}
	deposit, err := parseAmount(req.DepositAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid depositAmount", err)
		return
	}

	settings, err := h.Settings.Settings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}

	s, err := schedule.NewSchedule(schedule.LeaseTerms{
		LeaseID:       req.LeaseID,
		FacilityID:    req.FacilityID,
		RoomID:        req.RoomID,
		RenterID:      req.RenterID,
		StartYear:     req.StartYear,
		StartMonth:    time.Month(req.StartMonth),
		Months:        req.Months,
		MonthlyRent:   rent,
		DepositAmount: deposit,
		Children:      req.Children,
	}, schedule.DueDatePolicy(settings.DueDatePolicy), settings.ChildSurcharge, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.Schedules.Put(r.Context(), s); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toScheduleDTO(s))
}

// ListSchedules returns every schedule.
// GET /api/schedules
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	all, err := h.Schedules.GetAll(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ScheduleDTO, 0, len(all))
	for _, s := range all {
		dtos = append(dtos, toScheduleDTO(s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSchedule returns one schedule by lease id.
// GET /api/schedules/{leaseID}
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	s, err := h.Schedules.GetByLease(r.Context(), chi.URLParam(r, "leaseID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(s))
}

// GetScheduleBatch returns multiple schedules in one call.
// GET /api/schedules/batch?lease_ids=a,b,c
func (h *Handler) GetScheduleBatch(w http.ResponseWriter, r *http.Request) {
	ids := strings.Split(r.URL.Query().Get("lease_ids"), ",")
	var clean []string
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	batch, err := h.Schedules.GetBatch(r.Context(), clean)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ScheduleDTO, 0, len(batch))
	for _, s := range batch {
		dtos = append(dtos, toScheduleDTO(s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PAYMENT EDIT HANDLERS
// =============================================================================

// SubmitEdit records a payment edit; non-privileged actors go through review.
// POST /api/schedules/{leaseID}/payments/{monthKey}
func (h *Handler) SubmitEdit(w http.ResponseWriter, r *http.Request) {
	var req SubmitEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	paid, err := parseAmount(req.PaidAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paidAmount", err)
		return
	}
	var paidDate time.Time
	if req.PaidDate != "" {
		paidDate, err = time.Parse("2006-01-02", req.PaidDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid paidDate, want YYYY-MM-DD", err)
			return
		}
	}

	actor, err := h.actor(r, req.ActorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	request, err := h.Coordinator.SubmitEdit(r.Context(),
		chi.URLParam(r, "leaseID"),
		schedule.MonthKey(chi.URLParam(r, "monthKey")),
		approval.ProposedValues{
			PaidAmount:    paid,
			PaidDate:      paidDate,
			PaymentMethod: req.PaymentMethod,
			ProofRef:      req.ProofRef,
			AllowOverpay:  req.AllowOverpay,
		}, actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if request == nil {
		// Privileged edit applied directly.
		writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
		return
	}
	writeJSON(w, http.StatusAccepted, toApprovalDTO(request))
}

// RemovePayment resets an obligation to pending. Privileged-only.
// DELETE /api/schedules/{leaseID}/payments/{monthKey}?actor_id=...
func (h *Handler) RemovePayment(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actor(r, r.URL.Query().Get("actor_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	err = h.Coordinator.RemovePayment(r.Context(),
		chi.URLParam(r, "leaseID"),
		schedule.MonthKey(chi.URLParam(r, "monthKey")), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// =============================================================================
// APPROVAL HANDLERS
// =============================================================================

// ListPendingApprovals returns the outstanding review queue.
// GET /api/approvals
func (h *Handler) ListPendingApprovals(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Requests.ListPending(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ApprovalDTO, 0, len(pending))
	for _, p := range pending {
		dtos = append(dtos, toApprovalDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ReviewApproval resolves one pending request.
// POST /api/approvals/{id}/review
func (h *Handler) ReviewApproval(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	reviewer, err := h.actor(r, req.ReviewerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	reviewed, err := h.Coordinator.Review(r.Context(),
		chi.URLParam(r, "id"), approval.Decision(req.Decision), reviewer, req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalDTO(reviewed))
}

// =============================================================================
// ADMIN HANDLERS - sweep, migration, accrual
// =============================================================================

// RunSweep triggers the overdue sweep immediately.
// POST /api/admin/sweep
func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.Sweeper.Run(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSweepResultDTO(result))
}

// PreviewMigration dry-runs a due-date policy change.
// GET /api/admin/migration/preview?policy=last_day
func (h *Handler) PreviewMigration(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Migrator.Preview(r.Context(), schedule.DueDatePolicy(r.URL.Query().Get("policy")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMigrationPreviewDTO(cs))
}

// ApplyMigration rewrites all schedules under the new policy.
// POST /api/admin/migration?policy=last_day
func (h *Handler) ApplyMigration(w http.ResponseWriter, r *http.Request) {
	result, err := h.Migrator.Apply(r.Context(), schedule.DueDatePolicy(r.URL.Query().Get("policy")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dto := toMigrationPreviewDTO(&result.ChangeSet)
	writeJSON(w, http.StatusOK, map[string]any{
		"preview": dto,
		"updated": result.Updated,
		"errors":  toScheduleErrorDTOs(result.Errors),
	})
}

// RunAccrual triggers the penalty accrual engine immediately.
// POST /api/admin/penalties
func (h *Handler) RunAccrual(w http.ResponseWriter, r *http.Request) {
	result, err := h.Penalties.RunAll(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AccrualResultDTO{
		Scanned:      result.Scanned,
		Accrued:      result.Accrued,
		Skipped:      result.Skipped,
		TotalAccrued: result.TotalAccrued.StringFixed(2),
		Errors:       toScheduleErrorDTOs(result.Errors),
	})
}

// =============================================================================
// PAYOUT HANDLERS
// =============================================================================

// SettleDeposit nets a lease deposit and writes the payout record.
// POST /api/payouts
func (h *Handler) SettleDeposit(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	manual, err := parseAmount(req.ManualDeduction)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid manualDeduction", err)
		return
	}
	record, err := h.Calculator.Settle(r.Context(), payout.Input{
		LeaseID:         req.LeaseID,
		SelectedLineIDs: req.SelectedLineIDs,
		ManualDeduction: manual,
		DeductionReason: req.DeductionReason,
		ProcessedBy:     req.ProcessedBy,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayoutDTO(record))
}

// SplitExpense previews a maintenance cost split without persisting it.
// POST /api/expenses/split
func (h *Handler) SplitExpense(w http.ResponseWriter, r *http.Request) {
	var req SplitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	total, err := parseAmount(req.TotalAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid totalAmount", err)
		return
	}

	var lines []directory.RoomCostLine
	if len(req.Shares) > 0 {
		shares := make([]payout.RoomShare, 0, len(req.Shares))
		for roomID, amount := range req.Shares {
			v, err := parseAmount(amount)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid share amount", err)
				return
			}
			shares = append(shares, payout.RoomShare{RoomID: roomID, Amount: v})
		}
		lines, err = payout.SplitCustom(req.ExpenseID, total, shares)
	} else {
		lines, err = payout.SplitEqual(req.ExpenseID, total, req.RoomIDs)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]RoomCostLineDTO, 0, len(lines))
	for _, l := range lines {
		dtos = append(dtos, RoomCostLineDTO{ID: l.ID, RoomID: l.RoomID, Amount: l.Amount.StringFixed(2)})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the engine's error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrDuplicatePendingApproval),
		errors.Is(err, schedule.ErrVersionConflict):
		writeError(w, http.StatusConflict, "Conflict", err)
	case errors.Is(err, schedule.ErrPolicyViolation):
		writeError(w, http.StatusForbidden, "Not permitted", err)
	case schedule.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case schedule.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
