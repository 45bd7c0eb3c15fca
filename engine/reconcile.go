/*
reconcile.go - Allocation Reconciler

PURPOSE:
  Bank transactions are split into allocations: "this 90 EUR pays January
  and February", "these 10 EUR pay the roof works charge", "this pays the
  old debt from before we went digital". The reconciler answers:

  - Does every transaction allocate exactly its amount? (ReconcileTransaction)
  - How much did an entity pay for a month? (MonthlyActual)
  - Paid for which category? (Categorize)
  - How does that compare to what was expected? (MonthlyStatus)

SIGN CONVENTION:
  Expense allocations may be stored signed or unsigned. JoinLedger
  normalizes them once (see Normalize in types.go); nothing downstream
  calls Abs(). A negative row under income is a correction: it is flagged
  and keeps its sign, so 100 + (-10) on a 90 payment nets to 90.

FLAGS (reported, never fatal):
  - orphan_allocation:   allocation points at a missing transaction
  - orphan_extra_charge: allocation points at a missing extra charge
  - allocation_mismatch: sum(allocations) != |amount| beyond Epsilon
  - unallocated_payment: income with no allocation at all
  - suspicious_sign:     negative allocation on a positive transaction
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// JOIN - Attach stored allocations to their transactions
// =============================================================================

// LedgerEntry is a transaction with its normalized allocations.
type LedgerEntry struct {
	Transaction Transaction
	Allocations []Allocation
}

// Ledger is the joined, normalized view of transactions and allocations.
type Ledger struct {
	Entries     []LedgerEntry
	Allocations []Allocation // every allocation with a live parent, input order
	Orphans     []AllocationRecord
}

// JoinLedger normalizes allocation records against their transactions and
// reports integrity problems found on the way. Inputs are not modified.
func JoinLedger(txs []Transaction, records []AllocationRecord, extras []ExtraChargeRecord) (Ledger, Report) {
	var report Report

	index := make(map[TransactionID]int, len(txs))
	ledger := Ledger{Entries: make([]LedgerEntry, len(txs))}
	for i, tx := range txs {
		index[tx.ID] = i
		ledger.Entries[i] = LedgerEntry{Transaction: tx}
	}
	knownExtras := make(map[ExtraChargeID]bool, len(extras))
	for _, x := range extras {
		knownExtras[x.ID] = true
	}

	for _, rec := range records {
		i, ok := index[rec.TransactionID]
		if !ok {
			ledger.Orphans = append(ledger.Orphans, rec)
			report.addf(SeverityError, CodeOrphanAllocation, NoEntity(), string(rec.ID),
				"allocation of %s to %s references missing transaction %s",
				rec.Amount.StringFixed(2), rec.Target, rec.TransactionID)
			continue
		}
		tx := ledger.Entries[i].Transaction
		alloc, suspicious := Normalize(tx, rec)
		if suspicious {
			report.addf(SeverityWarning, CodeSuspiciousSign, tx.Ref, string(rec.ID),
				"negative allocation %s on income transaction %s", rec.Amount.StringFixed(2), tx.ID)
		}
		if rec.ExtraChargeID != nil && !knownExtras[*rec.ExtraChargeID] {
			report.addf(SeverityError, CodeOrphanExtraCharge, tx.Ref, string(rec.ID),
				"allocation references missing extra charge %s", *rec.ExtraChargeID)
		}
		ledger.Entries[i].Allocations = append(ledger.Entries[i].Allocations, alloc)
		ledger.Allocations = append(ledger.Allocations, alloc)
	}
	return ledger, report
}

// =============================================================================
// TRANSACTION BALANCE
// =============================================================================

// TxBalance compares a transaction to the sum of its allocations.
type TxBalance struct {
	TransactionID TransactionID   `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	AllocatedSum  decimal.Decimal `json:"allocated_sum"`
	Diff          decimal.Decimal `json:"diff"`
	IsBalanced    bool            `json:"is_balanced"`
}

// ReconcileTransaction sums the normalized allocations (signed for income)
// and compares them to |tx.Amount|. Balanced means diff <= Epsilon.
func ReconcileTransaction(tx Transaction, allocs []Allocation) TxBalance {
	sum := decimal.Zero
	for _, a := range allocs {
		sum = sum.Add(a.Amount)
	}
	diff := sum.Sub(tx.Amount.Abs()).Abs()
	return TxBalance{
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		AllocatedSum:  sum,
		Diff:          diff,
		IsBalanced:    diff.LessThanOrEqual(Epsilon),
	}
}

// ReconcileRecords is ReconcileTransaction over stored rows, used by write
// paths that validate before persisting.
func ReconcileRecords(tx Transaction, records []AllocationRecord) TxBalance {
	allocs := make([]Allocation, 0, len(records))
	for _, rec := range records {
		a, _ := Normalize(tx, rec)
		allocs = append(allocs, a)
	}
	return ReconcileTransaction(tx, allocs)
}

// CheckLedger flags unbalanced and unallocated transactions.
func CheckLedger(ledger Ledger) Report {
	var report Report
	for _, e := range ledger.Entries {
		tx := e.Transaction
		if len(e.Allocations) == 0 {
			if tx.IsIncome() {
				report.addf(SeverityWarning, CodeUnallocatedPayment, tx.Ref, string(tx.ID),
					"income of %s on %s has no allocations", tx.Amount.StringFixed(2), tx.Date.Format("2006-01-02"))
			}
			continue
		}
		if b := ReconcileTransaction(tx, e.Allocations); !b.IsBalanced {
			report.addf(SeverityError, CodeAllocationMismatch, tx.Ref, string(tx.ID),
				"allocated %s of %s (diff %s)", b.AllocatedSum.StringFixed(2),
				tx.Amount.Abs().StringFixed(2), b.Diff.StringFixed(2))
		}
	}
	return report
}

// =============================================================================
// PAID PER MONTH / CATEGORY
// =============================================================================

// settles reports whether a counts as payment by ref.
func settles(a Allocation, ref EntityRef) bool {
	return a.Ref == ref && a.Kind == ref.SettlingKind()
}

// MonthlyActual sums what ref paid for month. PREV-DEBT allocations never
// match a calendar month; see PrevDebtPaid.
func MonthlyActual(allocs []Allocation, ref EntityRef, month Month) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocs {
		if settles(a, ref) && a.Target.Is(month) {
			total = total.Add(a.Amount)
		}
	}
	return total
}

// PrevDebtPaid sums what ref paid against legacy debt.
func PrevDebtPaid(allocs []Allocation, ref EntityRef) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocs {
		if settles(a, ref) && a.Target.IsPrevDebt() {
			total = total.Add(a.Amount)
		}
	}
	return total
}

// ExtraChargePaid sums what ref paid for one extra charge, across all time.
func ExtraChargePaid(allocs []Allocation, ref EntityRef, id ExtraChargeID) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocs {
		if settles(a, ref) && a.ExtraChargeID != nil && *a.ExtraChargeID == id {
			total = total.Add(a.Amount)
		}
	}
	return total
}

// Categorized partitions a month's payments by category.
type Categorized struct {
	BaseFee  decimal.Decimal                   `json:"base_fee"`
	PerExtra map[ExtraChargeID]decimal.Decimal `json:"per_extra"`
}

// Total is base fee plus every extra.
func (c Categorized) Total() decimal.Decimal {
	total := c.BaseFee
	for _, v := range c.PerExtra {
		total = total.Add(v)
	}
	return total
}

// Categorize splits ref's payments for month by extra charge id; allocations
// without an id land in the base-fee bucket.
func Categorize(allocs []Allocation, ref EntityRef, month Month) Categorized {
	c := Categorized{BaseFee: decimal.Zero, PerExtra: map[ExtraChargeID]decimal.Decimal{}}
	for _, a := range allocs {
		if !settles(a, ref) || !a.Target.Is(month) {
			continue
		}
		if a.ExtraChargeID == nil {
			c.BaseFee = c.BaseFee.Add(a.Amount)
			continue
		}
		c.PerExtra[*a.ExtraChargeID] = c.PerExtra[*a.ExtraChargeID].Add(a.Amount)
	}
	return c
}

// ForEntity returns the allocations that settle ref.
func ForEntity(allocs []Allocation, ref EntityRef) []Allocation {
	var out []Allocation
	for _, a := range allocs {
		if settles(a, ref) {
			out = append(out, a)
		}
	}
	return out
}

// =============================================================================
// MONTH STATUS - expected vs paid, per category
// =============================================================================

type MonthState string

const (
	MonthPaid     MonthState = "paid"
	MonthPartial  MonthState = "partial"
	MonthUnpaid   MonthState = "unpaid"
	MonthOverpaid MonthState = "overpaid"
	MonthNothing  MonthState = "none" // nothing expected, nothing paid
)

// CategoryStatus is expected vs paid for one category of one month.
type CategoryStatus struct {
	ExtraChargeID *ExtraChargeID  `json:"extra_charge_id,omitempty"`
	Description   string          `json:"description"`
	Expected      decimal.Decimal `json:"expected"`
	Paid          decimal.Decimal `json:"paid"`
}

// MonthStatus is the reconciliation of one month.
type MonthStatus struct {
	Month      Month            `json:"month"`
	Expected   ChargeBreakdown  `json:"expected"`
	Paid       decimal.Decimal  `json:"paid"`
	Categories []CategoryStatus `json:"categories"`
	Difference decimal.Decimal  `json:"difference"` // expected - paid
	State      MonthState       `json:"state"`
}

// Outstanding returns max(0, expected - paid).
func (s MonthStatus) Outstanding() decimal.Decimal { return FloorZero(s.Difference) }

// MonthlyStatus reconciles each month of months for the schedule's entity.
func MonthlyStatus(schedule ChargeSchedule, allocs []Allocation, months []Month) []MonthStatus {
	out := make([]MonthStatus, 0, len(months))
	for _, m := range months {
		out = append(out, monthStatus(schedule, allocs, m))
	}
	return out
}

func monthStatus(schedule ChargeSchedule, allocs []Allocation, m Month) MonthStatus {
	expected := schedule.For(m)
	paid := Categorize(allocs, schedule.Ref, m)

	cats := []CategoryStatus{{Description: "base fee", Expected: expected.BaseFee, Paid: paid.BaseFee}}
	seen := make(map[ExtraChargeID]bool)
	for _, x := range expected.Extras {
		id := x.ID
		seen[id] = true
		cats = append(cats, CategoryStatus{ExtraChargeID: &id, Description: x.Description, Expected: x.Amount, Paid: paid.PerExtra[id]})
	}
	// Payments to a charge that isn't billed this month still show up.
	var unbilled []ExtraChargeID
	for id := range paid.PerExtra {
		if !seen[id] {
			unbilled = append(unbilled, id)
		}
	}
	sort.Slice(unbilled, func(i, j int) bool { return unbilled[i] < unbilled[j] })
	for _, id := range unbilled {
		id := id
		cats = append(cats, CategoryStatus{ExtraChargeID: &id, Description: "not billed", Expected: decimal.Zero, Paid: paid.PerExtra[id]})
	}

	total := paid.Total()
	diff := expected.Total.Sub(total)
	return MonthStatus{
		Month:      m,
		Expected:   expected,
		Paid:       total,
		Categories: cats,
		Difference: diff,
		State:      stateOf(expected.Total, total),
	}
}

func stateOf(expected, paid decimal.Decimal) MonthState {
	switch {
	case !MoneyPositive(expected) && !MoneyPositive(paid):
		return MonthNothing
	case MoneyEqual(expected, paid):
		return MonthPaid
	case MoneyExceeds(paid, expected):
		return MonthOverpaid
	case MoneyPositive(paid):
		return MonthPartial
	default:
		return MonthUnpaid
	}
}
