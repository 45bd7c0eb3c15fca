package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ALLOCATION SUGGESTION - Splits a new payment across outstanding months
// =============================================================================
//
// Order of consumption:
//   1. legacy debt (PREV-DEBT), when requested: it predates every month
//   2. months oldest first; inside a month the base fee, then extras by id
//   3. anything left goes to the latest month's base fee (CarryRemainder)
//      or is returned as Unallocated

// SuggestRequest is the input of SuggestAllocations.
type SuggestRequest struct {
	Amount         decimal.Decimal // payment amount, sign ignored
	Statuses       []MonthStatus   // from MonthlyStatus, any order
	Legacy         decimal.Decimal // remaining legacy debt; zero skips PREV-DEBT
	CarryRemainder bool
}

// SuggestedAllocation is one proposed allocation row.
type SuggestedAllocation struct {
	Target        Target          `json:"month"`
	Amount        decimal.Decimal `json:"amount"`
	ExtraChargeID *ExtraChargeID  `json:"extra_charge_id,omitempty"`
	Description   string          `json:"description"`
}

// Suggestion is the proposed split plus whatever could not be placed.
type Suggestion struct {
	Amount      decimal.Decimal       `json:"amount"`
	Allocations []SuggestedAllocation `json:"allocations"`
	Unallocated decimal.Decimal       `json:"unallocated"`
}

// Records converts the suggestion into storable rows for transaction txID.
func (s Suggestion) Records(txID TransactionID, newID func() AllocationID) []AllocationRecord {
	out := make([]AllocationRecord, 0, len(s.Allocations))
	for _, a := range s.Allocations {
		out = append(out, AllocationRecord{
			ID:            newID(),
			TransactionID: txID,
			Target:        a.Target,
			Amount:        a.Amount,
			ExtraChargeID: a.ExtraChargeID,
		})
	}
	return out
}

// SuggestAllocations distributes req.Amount over what is still outstanding.
func SuggestAllocations(req SuggestRequest) Suggestion {
	remaining := req.Amount.Abs()
	s := Suggestion{Amount: remaining, Allocations: []SuggestedAllocation{}}

	take := func(target Target, outstanding decimal.Decimal, extra *ExtraChargeID, desc string) {
		if !remaining.IsPositive() || !outstanding.IsPositive() {
			return
		}
		amount := decimal.Min(remaining, outstanding)
		s.Allocations = append(s.Allocations, SuggestedAllocation{Target: target, Amount: amount, ExtraChargeID: extra, Description: desc})
		remaining = remaining.Sub(amount)
	}

	take(PrevDebtTarget(), req.Legacy, nil, "previous debt")

	statuses := make([]MonthStatus, len(req.Statuses))
	copy(statuses, req.Statuses)
	sort.SliceStable(statuses, func(i, j int) bool { return statuses[i].Month.Before(statuses[j].Month) })

	for _, st := range statuses {
		target := MonthTarget(st.Month)
		for _, c := range st.Categories {
			take(target, c.Expected.Sub(c.Paid), c.ExtraChargeID, c.Description)
		}
	}

	if remaining.IsPositive() && req.CarryRemainder && len(statuses) > 0 {
		last := statuses[len(statuses)-1].Month
		s.Allocations = append(s.Allocations, SuggestedAllocation{Target: MonthTarget(last), Amount: remaining, Description: "base fee"})
		remaining = decimal.Zero
	}
	s.Unallocated = remaining
	return s
}
