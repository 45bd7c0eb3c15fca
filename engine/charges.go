package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CHARGE AGGREGATOR - Base fee + active extra charges for one month
// =============================================================================

// ExtraLine is one extra charge billed in a month.
type ExtraLine struct {
	ID          ExtraChargeID   `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// ChargeBreakdown is the itemized expectation for a month.
// Invariant: Total == BaseFee + sum(Extras.Amount).
type ChargeBreakdown struct {
	Month   Month           `json:"month"`
	BaseFee decimal.Decimal `json:"base_fee"`
	Extras  []ExtraLine     `json:"extras"`
	Total   decimal.Decimal `json:"total"`
}

// ExtraFor returns the expected amount for one extra charge in this month.
func (b ChargeBreakdown) ExtraFor(id ExtraChargeID) decimal.Decimal {
	total := decimal.Zero
	for _, x := range b.Extras {
		if x.ID == id {
			total = total.Add(x.Amount)
		}
	}
	return total
}

// ResolveTotal computes what entity owes in month: the resolved base fee
// plus every extra charge that is global or scoped to unit and covers month.
// Pass an empty unit and nil extras for creditors.
func ResolveTotal(rates []RateRecord, extras []ExtraChargeRecord, month Month, def decimal.Decimal, unit UnitID) ChargeBreakdown {
	b := ChargeBreakdown{
		Month:   month,
		BaseFee: ResolveRate(rates, month, def),
		Extras:  []ExtraLine{},
	}
	for _, x := range extras {
		if !x.IsGlobal() && (unit == "" || *x.UnitID != unit) {
			continue
		}
		if !x.Range().Contains(month) {
			continue
		}
		b.Extras = append(b.Extras, ExtraLine{ID: x.ID, Description: x.Description, Amount: x.Amount})
	}
	sort.SliceStable(b.Extras, func(i, j int) bool { return b.Extras[i].ID < b.Extras[j].ID })

	b.Total = b.BaseFee
	for _, x := range b.Extras {
		b.Total = b.Total.Add(x.Amount)
	}
	return b
}

// ChargeSchedule bundles the inputs of ResolveTotal for one entity.
type ChargeSchedule struct {
	Ref     EntityRef
	Rates   []RateRecord
	Extras  []ExtraChargeRecord
	Default decimal.Decimal
}

func (s ChargeSchedule) unit() UnitID {
	if s.Ref.Kind == EntityUnit {
		return UnitID(s.Ref.ID)
	}
	return ""
}

// For returns the breakdown for month.
func (s ChargeSchedule) For(month Month) ChargeBreakdown {
	extras := s.Extras
	if s.Ref.Kind == EntityCreditor {
		extras = nil
	}
	return ResolveTotal(s.Rates, extras, month, s.Default, s.unit())
}

// ExpectedFor sums the totals over months.
func (s ChargeSchedule) ExpectedFor(months []Month) decimal.Decimal {
	total := decimal.Zero
	for _, m := range months {
		total = total.Add(s.For(m).Total)
	}
	return total
}
