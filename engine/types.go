/*
Package engine implements the Fee & Allocation Reconciliation Engine.

PURPOSE:
  A condominium charges every unit a monthly fee (with a history of rate
  changes), layers extra charges on top, receives payments that are split
  across months and categories, and needs to know who owes what. This
  package answers those questions from plain in-memory records.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money helpers: decimal amounts compared with a one-cent tolerance
  - EntityRef: a unit, a fixed creditor, or nothing
  - RateRecord / ExtraChargeRecord: effective-dated charges
  - Transaction / AllocationRecord: the ledger as stored
  - Allocation: the normalized (signless) form consumed by the engine
  - Owner: ownership periods of a unit, carrying legacy debt

DESIGN PRINCIPLES:
  1. Pure: no I/O, no hidden state, inputs are never mutated
  2. Tolerant: dirty data resolves deterministically, and is reported
     separately by the validator and the audit
  3. Precise: decimal.Decimal everywhere, Epsilon for comparisons

SEE ALSO:
  - rate.go, charges.go: what was owed
  - reconcile.go: what was paid
  - debt.go: what is still owed
  - audit.go: what is wrong with the data
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - decimal amounts with a one-cent tolerance
// =============================================================================

// Epsilon absorbs rounding noise in every money comparison.
var Epsilon = decimal.New(1, -2)

// Zero is a convenience alias.
var Zero = decimal.Zero

// Eur builds an amount from a float literal. Intended for fixtures and tests.
func Eur(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// MoneyEqual reports |a-b| <= Epsilon.
func MoneyEqual(a, b decimal.Decimal) bool { return a.Sub(b).Abs().LessThanOrEqual(Epsilon) }

// MoneyExceeds reports a > b + Epsilon.
func MoneyExceeds(a, b decimal.Decimal) bool { return a.Sub(b).GreaterThan(Epsilon) }

// MoneyPositive reports a > Epsilon ("remaining > 0").
func MoneyPositive(a decimal.Decimal) bool { return a.GreaterThan(Epsilon) }

// FloorZero returns max(0, a).
func FloorZero(a decimal.Decimal) decimal.Decimal {
	if a.IsNegative() {
		return decimal.Zero
	}
	return a
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UnitID string
type CreditorID string
type ExtraChargeID string
type TransactionID string
type AllocationID string

// EntityKind says who a record belongs to.
type EntityKind string

const (
	EntityNone     EntityKind = "none"
	EntityUnit     EntityKind = "unit"
	EntityCreditor EntityKind = "creditor"
)

// EntityRef identifies a unit or a creditor.
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id,omitempty"`
}

func UnitRef(id UnitID) EntityRef         { return EntityRef{Kind: EntityUnit, ID: string(id)} }
func CreditorRef(id CreditorID) EntityRef { return EntityRef{Kind: EntityCreditor, ID: string(id)} }
func NoEntity() EntityRef                 { return EntityRef{Kind: EntityNone} }

func (r EntityRef) IsNone() bool { return r.Kind == EntityNone || r.Kind == "" }

func (r EntityRef) String() string {
	if r.IsNone() {
		return string(EntityNone)
	}
	return string(r.Kind) + ":" + r.ID
}

// SettlingKind is the allocation kind that counts as "paid" for the entity:
// income for units (what owners paid in), expense for creditors (what the
// building paid out).
func (r EntityRef) SettlingKind() AllocationKind {
	if r.Kind == EntityCreditor {
		return KindExpense
	}
	return KindIncome
}

// =============================================================================
// REGISTRY RECORDS
// =============================================================================

// Unit is an apartment, shop or garage paying a monthly fee.
type Unit struct {
	ID         UnitID
	Label      string
	MonthlyFee decimal.Decimal // default when no rate record applies
}

// Creditor is a fixed supplier with recurring dues (cleaning, elevator...).
type Creditor struct {
	ID        CreditorID
	Name      string
	AmountDue decimal.Decimal // default when no rate record applies
}

// Owner is one ownership period of a unit.
// A nil StartMonth means "since records began"; a nil EndMonth means current.
type Owner struct {
	ID           string
	UnitID       UnitID
	Name         string
	StartMonth   *Month
	EndMonth     *Month
	PreviousDebt decimal.Decimal // legacy pre-digital balance
}

// IsCurrent reports whether the owner has no end month.
func (o Owner) IsCurrent() bool { return o.EndMonth == nil }

// =============================================================================
// EFFECTIVE-DATED CHARGES
// =============================================================================

// RateRecord is one entry of a base-fee or creditor-due history.
// Superseded records get EffectiveTo one month before the successor starts.
type RateRecord struct {
	ID            string
	Owner         EntityRef
	Amount        decimal.Decimal
	EffectiveFrom Month
	EffectiveTo   *Month // nil = open-ended
}

func (r RateRecord) Range() Range { return Range{From: r.EffectiveFrom, To: r.EffectiveTo} }

// ExtraChargeRecord is an additional recurring charge, global or unit-scoped.
type ExtraChargeRecord struct {
	ID            ExtraChargeID
	Description   string
	Amount        decimal.Decimal
	EffectiveFrom Month
	EffectiveTo   *Month  // nil = open-ended
	UnitID        *UnitID // nil = global
}

func (x ExtraChargeRecord) Range() Range { return Range{From: x.EffectiveFrom, To: x.EffectiveTo} }

// IsGlobal reports whether the charge applies to every unit.
func (x ExtraChargeRecord) IsGlobal() bool { return x.UnitID == nil }

// AppliesTo reports whether the charge is billed to unit in month m.
func (x ExtraChargeRecord) AppliesTo(unit UnitID, m Month) bool {
	if x.UnitID != nil && *x.UnitID != unit {
		return false
	}
	return x.Range().Contains(m)
}

// ConceptKey groups records of the same conceptual charge (scope + description).
func (x ExtraChargeRecord) ConceptKey() string {
	scope := "global"
	if x.UnitID != nil {
		scope = "unit:" + string(*x.UnitID)
	}
	return scope + "/" + x.Description
}

// =============================================================================
// LEDGER RECORDS (as stored)
// =============================================================================

type TxType string

const (
	TxPayment  TxType = "payment"
	TxExpense  TxType = "expense"
	TxFee      TxType = "fee"
	TxTransfer TxType = "transfer"
)

// Transaction is a bank movement. Positive = income, negative = expense.
type Transaction struct {
	ID          TransactionID
	Amount      decimal.Decimal
	Date        time.Time
	Type        TxType
	Ref         EntityRef
	Description string
}

// IsIncome reports a strictly positive amount.
func (t Transaction) IsIncome() bool { return t.Amount.IsPositive() }

// AllocationRecord is an allocation row as stored. Amount may be signed or
// unsigned depending on who wrote it; Normalize resolves that.
type AllocationRecord struct {
	ID            AllocationID
	TransactionID TransactionID
	Target        Target
	Amount        decimal.Decimal
	ExtraChargeID *ExtraChargeID // nil = base fee
}

// =============================================================================
// ALLOCATION - normalized
// =============================================================================

// AllocationKind tags the direction of the money.
type AllocationKind string

const (
	KindIncome  AllocationKind = "income"
	KindExpense AllocationKind = "expense"
)

// Allocation is the single canonical form consumed by the engine.
// Kind carries the direction. Amount is non-negative except for correction
// rows under income (a split of [100, -10] on a 90 payment), which keep their
// sign so that sums net out.
type Allocation struct {
	ID            AllocationID
	TransactionID TransactionID
	Ref           EntityRef
	Date          time.Time
	Kind          AllocationKind
	Target        Target
	Amount        decimal.Decimal
	ExtraChargeID *ExtraChargeID
}

// IsBaseFee reports whether the allocation pays the base-fee category.
func (a Allocation) IsBaseFee() bool { return a.ExtraChargeID == nil }

// Normalize converts a stored allocation under parent tx to canonical form.
// Expense rows are stored signed or unsigned and are taken as |amount|.
// Income rows keep their sign; suspicious is true when one is negative.
func Normalize(tx Transaction, rec AllocationRecord) (alloc Allocation, suspicious bool) {
	kind := KindIncome
	amount := rec.Amount
	if tx.Amount.IsNegative() {
		kind = KindExpense
		amount = amount.Abs()
	}
	return Allocation{
		ID:            rec.ID,
		TransactionID: tx.ID,
		Ref:           tx.Ref,
		Date:          tx.Date,
		Kind:          kind,
		Target:        rec.Target,
		Amount:        amount,
		ExtraChargeID: rec.ExtraChargeID,
	}, kind == KindIncome && amount.IsNegative()
}
