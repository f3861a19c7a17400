/*
split.go - Maintenance cost splitting across rooms

Allocates one maintenance expense across multiple rooms, producing the
room-cost lines the payout calculator later recovers from deposits.

Equal splits round each share to cents and push the rounding remainder
onto the first room, so the lines always sum exactly to the expense
total. Custom splits must sum to the total within a 0.01 tolerance.
*/
package payout

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/lease-engine/directory"
	"github.com/warp/lease-engine/schedule"
)

// SplitTolerance is the accepted currency rounding slack for custom splits.
var SplitTolerance = decimal.NewFromFloat(0.01)

// RoomShare is one room's caller-supplied share of a custom split.
type RoomShare struct {
	RoomID string
	Amount decimal.Decimal
}

// SplitEqual divides totalAmount evenly across the rooms.
func SplitEqual(expenseID string, totalAmount decimal.Decimal, roomIDs []string) ([]directory.RoomCostLine, error) {
	if len(roomIDs) == 0 {
		return nil, &schedule.ValidationError{Field: "roomIds", Message: "at least one room required"}
	}
	if !totalAmount.IsPositive() {
		return nil, &schedule.ValidationError{Field: "totalAmount", Message: "must be positive"}
	}

	n := decimal.NewFromInt(int64(len(roomIDs)))
	share := totalAmount.Div(n).Round(2)

	lines := make([]directory.RoomCostLine, 0, len(roomIDs))
	allocated := decimal.Zero
	for i, roomID := range roomIDs {
		amount := share
		if i == 0 {
			// Remainder lands on the first room so the lines sum exactly.
			amount = totalAmount.Sub(share.Mul(n.Sub(decimal.NewFromInt(1))))
		}
		allocated = allocated.Add(amount)
		lines = append(lines, directory.RoomCostLine{
			ID:        fmt.Sprintf("%s-%s", expenseID, roomID),
			ExpenseID: expenseID,
			RoomID:    roomID,
			Amount:    amount,
		})
	}
	return lines, nil
}

// SplitCustom validates caller-supplied per-room amounts against the
// expense total and materializes the cost lines. Shares that do not sum
// to totalAmount within SplitTolerance are rejected.
func SplitCustom(expenseID string, totalAmount decimal.Decimal, shares []RoomShare) ([]directory.RoomCostLine, error) {
	if len(shares) == 0 {
		return nil, &schedule.ValidationError{Field: "shares", Message: "at least one room share required"}
	}

	sum := decimal.Zero
	lines := make([]directory.RoomCostLine, 0, len(shares))
	for _, share := range shares {
		if share.Amount.IsNegative() {
			return nil, &schedule.ValidationError{Field: "shares", Message: fmt.Sprintf("room %s has a negative share", share.RoomID)}
		}
		sum = sum.Add(share.Amount)
		lines = append(lines, directory.RoomCostLine{
			ID:        fmt.Sprintf("%s-%s", expenseID, share.RoomID),
			ExpenseID: expenseID,
			RoomID:    share.RoomID,
			Amount:    share.Amount,
		})
	}

	if sum.Sub(totalAmount).Abs().GreaterThan(SplitTolerance) {
		return nil, &schedule.SplitMismatchError{
			Expected: totalAmount.StringFixed(2),
			Got:      sum.StringFixed(2),
		}
	}
	return lines, nil
}
