/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures decoupling the domain model from the API contract.
  Amounts cross the wire as fixed two-decimal strings; the engine itself
  only ever works in decimal.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the domain layer, not in DTOs.
  DTOs are pure data carriers.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/lease-engine/approval"
	"github.com/warp/lease-engine/payout"
	"github.com/warp/lease-engine/schedule"
	"github.com/warp/lease-engine/sweep"
)

// =============================================================================
// SCHEDULE
// =============================================================================

type ObligationDTO struct {
	MonthKey      string  `json:"monthKey"`
	DueDate       string  `json:"dueDate"`
	Amount        string  `json:"amount"`
	Kind          string  `json:"kind"`
	Status        string  `json:"status"`
	PaidAmount    *string `json:"paidAmount,omitempty"`
	PaidDate      *string `json:"paidDate,omitempty"`
	PaymentMethod string  `json:"paymentMethod,omitempty"`
	ProofRef      string  `json:"proofRef,omitempty"`
	EditedBy      string  `json:"editedBy,omitempty"`
}

type PenaltyDTO struct {
	TotalAmount       string `json:"totalAmount"`
	PaidAmount        string `json:"paidAmount"`
	OutstandingAmount string `json:"outstandingAmount"`
	LastCalculated    string `json:"lastCalculated"`
	HistoryEntries    int    `json:"historyEntries"`
}

type ScheduleDTO struct {
	LeaseID           string          `json:"leaseId"`
	FacilityID        string          `json:"facilityId"`
	RoomID            string          `json:"roomId"`
	RenterID          string          `json:"renterId"`
	DueDatePolicy     string          `json:"dueDatePolicy"`
	Obligations       []ObligationDTO `json:"obligations"`
	AggregatedPenalty *PenaltyDTO     `json:"aggregatedPenalty,omitempty"`
	TotalAmount       string          `json:"totalAmount"`
	TotalPaid         string          `json:"totalPaid"`
	OutstandingAmount string          `json:"outstandingAmount"`
	Version           int64           `json:"version"`
}

// CreateScheduleRequest carries the lease terms a schedule is built from.
type CreateScheduleRequest struct {
	LeaseID       string `json:"leaseId"`
	FacilityID    string `json:"facilityId"`
	RoomID        string `json:"roomId"`
	RenterID      string `json:"renterId"`
	StartYear     int    `json:"startYear"`
	StartMonth    int    `json:"startMonth"`
	Months        int    `json:"months"`
	MonthlyRent   string `json:"monthlyRent"`
	DepositAmount string `json:"depositAmount"`
	Children      int    `json:"children"`
}

// =============================================================================
// PAYMENT EDITS & APPROVALS
// =============================================================================

// SubmitEditRequest records a payment against an obligation.
type SubmitEditRequest struct {
	ActorID       string `json:"actorId"`
	PaidAmount    string `json:"paidAmount"`
	PaidDate      string `json:"paidDate"` // YYYY-MM-DD
	PaymentMethod string `json:"paymentMethod,omitempty"`
	ProofRef      string `json:"proofRef,omitempty"`
	AllowOverpay  bool   `json:"allowOverpay,omitempty"`
}

type ReviewRequest struct {
	ReviewerID string `json:"reviewerId"`
	Decision   string `json:"decision"` // approved | declined
	Notes      string `json:"notes,omitempty"`
}

type ApprovalDTO struct {
	ID         string     `json:"id"`
	ScheduleID string     `json:"scheduleId"`
	MonthKey   string     `json:"monthKey"`
	EditedBy   string     `json:"editedBy"`
	Status     string     `json:"status"`
	ReviewedBy string     `json:"reviewedBy,omitempty"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty"`
	Notes      string     `json:"reviewNotes,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// =============================================================================
// SWEEP / MIGRATION / ACCRUAL
// =============================================================================

type SweepResultDTO struct {
	Scanned int                `json:"scanned"`
	Updated int                `json:"updated"`
	Flipped int                `json:"flipped"`
	Errors  []ScheduleErrorDTO `json:"errors,omitempty"`
}

type ScheduleErrorDTO struct {
	LeaseID string `json:"leaseId"`
	Error   string `json:"error"`
}

type StatusChangeDTO struct {
	LeaseID  string `json:"leaseId"`
	MonthKey string `json:"monthKey"`
	From     string `json:"from"`
	To       string `json:"to"`
}

type MigrationPreviewDTO struct {
	SchedulesToUpdate int               `json:"schedulesToUpdate"`
	PaymentsToUpdate  int               `json:"paymentsToUpdate"`
	StatusChanges     []StatusChangeDTO `json:"statusChanges"`
}

type AccrualResultDTO struct {
	Scanned      int                `json:"scanned"`
	Accrued      int                `json:"accrued"`
	Skipped      int                `json:"skipped"`
	TotalAccrued string             `json:"totalAccrued"`
	Errors       []ScheduleErrorDTO `json:"errors,omitempty"`
}

// =============================================================================
// PAYOUT & SPLITS
// =============================================================================

type SettleRequest struct {
	LeaseID         string   `json:"leaseId"`
	SelectedLineIDs []string `json:"selectedLineIds,omitempty"`
	ManualDeduction string   `json:"manualDeduction,omitempty"`
	DeductionReason string   `json:"deductionReason,omitempty"`
	ProcessedBy     string   `json:"processedBy"`
}

type PayoutDTO struct {
	ID                string   `json:"id"`
	LeaseID           string   `json:"leaseId"`
	DepositAmount     string   `json:"depositAmount"`
	DeductionAmount   string   `json:"deductionAmount"`
	PayoutAmount      string   `json:"payoutAmount"`
	UncollectedAmount string   `json:"uncollectedAmount"`
	DeductionReason   string   `json:"deductionReason,omitempty"`
	ExpenseLineIDs    []string `json:"expenseLineIds,omitempty"`
	PayoutDate        string   `json:"payoutDate"`
	ProcessedBy       string   `json:"processedBy"`
}

type SplitRequest struct {
	ExpenseID   string            `json:"expenseId"`
	TotalAmount string            `json:"totalAmount"`
	RoomIDs     []string          `json:"roomIds,omitempty"` // equal split
	Shares      map[string]string `json:"shares,omitempty"`  // custom split
}

type RoomCostLineDTO struct {
	ID     string `json:"id"`
	RoomID string `json:"roomId"`
	Amount string `json:"amount"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toScheduleDTO(s *schedule.LeasePaymentSchedule) ScheduleDTO {
	dto := ScheduleDTO{
		LeaseID:           s.LeaseID,
		FacilityID:        s.FacilityID,
		RoomID:            s.RoomID,
		RenterID:          s.RenterID,
		DueDatePolicy:     string(s.DueDatePolicy),
		Obligations:       make([]ObligationDTO, 0, len(s.Obligations)),
		TotalAmount:       s.TotalAmount.StringFixed(2),
		TotalPaid:         s.TotalPaid.StringFixed(2),
		OutstandingAmount: s.OutstandingAmount.StringFixed(2),
		Version:           s.Version,
	}
	for i := range s.Obligations {
		dto.Obligations = append(dto.Obligations, toObligationDTO(&s.Obligations[i]))
	}
	if p := s.AggregatedPenalty; p != nil {
		dto.AggregatedPenalty = &PenaltyDTO{
			TotalAmount:       p.TotalAmount.StringFixed(2),
			PaidAmount:        p.PaidAmount.StringFixed(2),
			OutstandingAmount: p.OutstandingAmount.StringFixed(2),
			LastCalculated:    p.LastCalculated.Format("2006-01-02"),
			HistoryEntries:    len(p.CalculationHistory),
		}
	}
	return dto
}

func toObligationDTO(o *schedule.Obligation) ObligationDTO {
	dto := ObligationDTO{
		MonthKey:      string(o.MonthKey),
		DueDate:       o.DueDate.Format("2006-01-02"),
		Amount:        o.Amount.StringFixed(2),
		Kind:          string(o.Kind),
		Status:        string(o.Status),
		PaymentMethod: o.PaymentMethod,
		ProofRef:      o.ProofRef,
		EditedBy:      o.EditedBy,
	}
	if o.PaidAmount != nil {
		v := o.PaidAmount.StringFixed(2)
		dto.PaidAmount = &v
	}
	if o.PaidDate != nil {
		v := o.PaidDate.Format("2006-01-02")
		dto.PaidDate = &v
	}
	return dto
}

func toApprovalDTO(r *approval.PaymentApprovalRequest) ApprovalDTO {
	return ApprovalDTO{
		ID:         r.ID,
		ScheduleID: r.ScheduleID,
		MonthKey:   string(r.MonthKey),
		EditedBy:   r.EditedBy,
		Status:     string(r.Status),
		ReviewedBy: r.ReviewedBy,
		ReviewedAt: r.ReviewedAt,
		Notes:      r.ReviewNotes,
		CreatedAt:  r.CreatedAt,
	}
}

func toSweepResultDTO(r *sweep.Result) SweepResultDTO {
	return SweepResultDTO{
		Scanned: r.Scanned,
		Updated: r.Updated,
		Flipped: r.Flipped,
		Errors:  toScheduleErrorDTOs(r.Errors),
	}
}

func toScheduleErrorDTOs(errs []sweep.ScheduleError) []ScheduleErrorDTO {
	var out []ScheduleErrorDTO
	for _, e := range errs {
		out = append(out, ScheduleErrorDTO{LeaseID: e.LeaseID, Error: e.Err.Error()})
	}
	return out
}

func toMigrationPreviewDTO(cs *sweep.ChangeSet) MigrationPreviewDTO {
	dto := MigrationPreviewDTO{
		SchedulesToUpdate: cs.SchedulesToUpdate,
		PaymentsToUpdate:  cs.PaymentsToUpdate,
		StatusChanges:     []StatusChangeDTO{},
	}
	for _, sc := range cs.StatusChanges {
		dto.StatusChanges = append(dto.StatusChanges, StatusChangeDTO{
			LeaseID:  sc.LeaseID,
			MonthKey: string(sc.MonthKey),
			From:     string(sc.From),
			To:       string(sc.To),
		})
	}
	return dto
}

func toPayoutDTO(r *payout.DepositPayoutRecord) PayoutDTO {
	return PayoutDTO{
		ID:                r.ID,
		LeaseID:           r.LeaseID,
		DepositAmount:     r.DepositAmount.StringFixed(2),
		DeductionAmount:   r.DeductionAmount.StringFixed(2),
		PayoutAmount:      r.PayoutAmount.StringFixed(2),
		UncollectedAmount: r.UncollectedAmount.StringFixed(2),
		DeductionReason:   r.DeductionReason,
		ExpenseLineIDs:    r.ExpenseLineIDs,
		PayoutDate:        r.PayoutDate.Format("2006-01-02"),
		ProcessedBy:       r.ProcessedBy,
	}
}

// parseAmount parses a wire amount; empty means zero.
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
