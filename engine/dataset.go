package engine

import (
	"sort"
)

// =============================================================================
// DATASET - A consistent snapshot of every record the engine reads
// =============================================================================

// RejectedRecord is a stored row that could not be parsed (bad month,
// non-numeric amount). Loaders keep going and the audit reports it.
type RejectedRecord struct {
	Table  string `json:"table"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Dataset is what a Store snapshot returns and what the audit consumes.
type Dataset struct {
	Units        []Unit
	Creditors    []Creditor
	Owners       []Owner
	Rates        []RateRecord
	ExtraCharges []ExtraChargeRecord
	Transactions []Transaction
	Allocations  []AllocationRecord
	Rejected     []RejectedRecord
}

// Unit returns the unit with id.
func (d Dataset) Unit(id UnitID) (Unit, bool) {
	for _, u := range d.Units {
		if u.ID == id {
			return u, true
		}
	}
	return Unit{}, false
}

// Creditor returns the creditor with id.
func (d Dataset) Creditor(id CreditorID) (Creditor, bool) {
	for _, c := range d.Creditors {
		if c.ID == id {
			return c, true
		}
	}
	return Creditor{}, false
}

// RatesFor returns the rate history of ref, in stored order.
func (d Dataset) RatesFor(ref EntityRef) []RateRecord {
	var out []RateRecord
	for _, r := range d.Rates {
		if r.Owner == ref {
			out = append(out, r)
		}
	}
	return out
}

// OwnersOf returns every ownership period of unit, oldest first.
func (d Dataset) OwnersOf(unit UnitID) []Owner {
	var out []Owner
	for _, o := range d.Owners {
		if o.UnitID == unit {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := Beginning, Beginning
		if out[i].StartMonth != nil {
			a = *out[i].StartMonth
		}
		if out[j].StartMonth != nil {
			b = *out[j].StartMonth
		}
		return a.Before(b)
	})
	return out
}

// CurrentOwner returns the open-ended owner of unit. With several, the most
// recent start wins (the audit flags that case).
func (d Dataset) CurrentOwner(unit UnitID) (Owner, bool) {
	var found Owner
	ok := false
	for _, o := range d.OwnersOf(unit) {
		if o.IsCurrent() {
			found, ok = o, true
		}
	}
	return found, ok
}

// ScheduleFor builds the charge schedule of ref. Unknown entities get a
// zero default.
func (d Dataset) ScheduleFor(ref EntityRef) ChargeSchedule {
	s := ChargeSchedule{Ref: ref, Rates: d.RatesFor(ref), Default: Zero}
	switch ref.Kind {
	case EntityUnit:
		if u, ok := d.Unit(UnitID(ref.ID)); ok {
			s.Default = u.MonthlyFee
		}
		s.Extras = d.ExtraCharges
	case EntityCreditor:
		if c, ok := d.Creditor(CreditorID(ref.ID)); ok {
			s.Default = c.AmountDue
		}
	}
	return s
}

// Ledger joins transactions and allocations. Findings are discarded; use
// Audit to see them.
func (d Dataset) Ledger() Ledger {
	ledger, _ := JoinLedger(d.Transactions, d.Allocations, d.ExtraCharges)
	return ledger
}

// DebtInput assembles the accumulator input for ref.
func (d Dataset) DebtInput(ref EntityRef, asOf Month, firstYear int) DebtInput {
	in := DebtInput{
		Schedule:    d.ScheduleFor(ref),
		Allocations: ForEntity(d.Ledger().Allocations, ref),
		AsOf:        asOf,
		FirstYear:   firstYear,
	}
	if ref.Kind == EntityUnit {
		in.Owners = d.OwnersOf(UnitID(ref.ID))
	}
	return in
}

// Transaction returns the transaction with id and its stored allocations.
func (d Dataset) Transaction(id TransactionID) (Transaction, []AllocationRecord, bool) {
	for _, tx := range d.Transactions {
		if tx.ID != id {
			continue
		}
		var recs []AllocationRecord
		for _, a := range d.Allocations {
			if a.TransactionID == id {
				recs = append(recs, a)
			}
		}
		return tx, recs, true
	}
	return Transaction{}, nil, false
}
