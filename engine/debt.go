/*
debt.go - Debt Accumulator

PURPOSE:
  Computes, fresh on every call, what a unit (or what the building owes a
  creditor) is outstanding as of a month. Nothing is cached between calls.

ALGORITHM:
  1. Evaluation years: every year with an allocation, plus every year
     spanned by a rate record or an applicable extra charge, intersected
     with [first digital year, asOf.Year-1].
  2. Per year: expected = sum of ResolveTotal over Jan..Dec,
               paid     = sum of MonthlyActual over Jan..Dec (no PREV-DEBT).
  3. Policy: Capped and CarryForward are BOTH computed; the configured one
     is the headline figure, the other is kept for the divergence report.
  4. Legacy debt: sum(owner.PreviousDebt) - PREV-DEBT payments, floored.
     Independent bucket, never folded into the yearly walk.
  5. Extra charges: expected = amount * months active through asOf,
     paid = every allocation to that charge id, remaining floored.
  6. Total = policy total + legacy remaining
             [+ current-year shortfall through asOf, when requested]

SEE ALSO:
  - policy.go: Capped / CarryForward
  - reconcile.go: MonthlyActual, PrevDebtPaid, ExtraChargePaid
*/
package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUT
// =============================================================================

// DebtInput is a consistent snapshot of one entity's records.
type DebtInput struct {
	Schedule    ChargeSchedule
	Allocations []Allocation // may include other entities; filtered by Schedule.Ref
	Owners      []Owner      // units only
	AsOf        Month        // "now"
	FirstYear   int          // earliest digital year; 0 derives it from the data
}

func (in DebtInput) ref() EntityRef { return in.Schedule.Ref }

// applicableExtras returns the extra charges billed to the entity.
func (in DebtInput) applicableExtras() []ExtraChargeRecord {
	if in.ref().Kind != EntityUnit {
		return nil
	}
	unit := UnitID(in.ref().ID)
	var out []ExtraChargeRecord
	for _, x := range in.Schedule.Extras {
		if x.IsGlobal() || *x.UnitID == unit {
			out = append(out, x)
		}
	}
	return out
}

// =============================================================================
// YEAR FIGURES
// =============================================================================

// YearFigures is expected vs paid for one calendar year (or part of it).
type YearFigures struct {
	Year      int             `json:"year"`
	Through   time.Month      `json:"through"` // last month included
	Expected  decimal.Decimal `json:"expected"`
	Paid      decimal.Decimal `json:"paid"`
	Shortfall decimal.Decimal `json:"shortfall"` // max(0, expected - paid)
	Surplus   decimal.Decimal `json:"surplus"`   // max(0, paid - expected)
}

// Delta is expected - paid (negative on surplus).
func (y YearFigures) Delta() decimal.Decimal { return y.Expected.Sub(y.Paid) }

// Figures computes expected vs paid for Jan..through of year.
func Figures(schedule ChargeSchedule, allocs []Allocation, year int, through time.Month) YearFigures {
	months := MonthsThrough(year, through)
	expected := schedule.ExpectedFor(months)
	paid := decimal.Zero
	for _, m := range months {
		paid = paid.Add(MonthlyActual(allocs, schedule.Ref, m))
	}
	delta := expected.Sub(paid)
	return YearFigures{
		Year:      year,
		Through:   through,
		Expected:  expected,
		Paid:      paid,
		Shortfall: FloorZero(delta),
		Surplus:   FloorZero(delta.Neg()),
	}
}

// EvaluationYears returns the past years that need evaluation, ascending.
func EvaluationYears(in DebtInput) []int {
	set := make(map[int]bool)
	addSpan := func(r Range) {
		end := r.EndOr(in.AsOf)
		for y := r.From.Year(); y <= end.Year(); y++ {
			set[y] = true
		}
	}
	for _, a := range in.Allocations {
		if m, ok := a.Target.Month(); ok && settles(a, in.ref()) {
			set[m.Year()] = true
		}
	}
	for _, r := range in.Schedule.Rates {
		if r.Range().Valid() {
			addSpan(r.Range())
		}
	}
	for _, x := range in.applicableExtras() {
		if x.Range().Valid() {
			addSpan(x.Range())
		}
	}

	lower := in.FirstYear
	if lower == 0 {
		for y := range set {
			if lower == 0 || y < lower {
				lower = y
			}
		}
	}
	upper := in.AsOf.Year() - 1

	years := []int{}
	for y := range set {
		if y >= lower && y <= upper {
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years
}

// =============================================================================
// LEGACY DEBT & EXTRA-CHARGE BALANCES
// =============================================================================

// LegacyDebt is the pre-digital bucket of a unit.
type LegacyDebt struct {
	Assigned  decimal.Decimal `json:"assigned"`
	Paid      decimal.Decimal `json:"paid"`
	Remaining decimal.Decimal `json:"remaining"`
}

// ComputeLegacyDebt sums PreviousDebt over every owner the unit ever had and
// subtracts PREV-DEBT payments.
func ComputeLegacyDebt(owners []Owner, allocs []Allocation, ref EntityRef) LegacyDebt {
	assigned := decimal.Zero
	for _, o := range owners {
		if UnitRef(o.UnitID) == ref {
			assigned = assigned.Add(o.PreviousDebt)
		}
	}
	paid := PrevDebtPaid(allocs, ref)
	return LegacyDebt{Assigned: assigned, Paid: paid, Remaining: FloorZero(assigned.Sub(paid))}
}

// ExtraChargeBalance tracks one extra charge independently of the base fee.
type ExtraChargeBalance struct {
	ID          ExtraChargeID   `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Months      int             `json:"months"`
	Expected    decimal.Decimal `json:"expected"`
	Paid        decimal.Decimal `json:"paid"`
	Remaining   decimal.Decimal `json:"remaining"`
}

// ExtraChargeBalances computes balances for every charge billed to the
// entity, months counted from EffectiveFrom to min(EffectiveTo, asOf).
func ExtraChargeBalances(in DebtInput) []ExtraChargeBalance {
	out := []ExtraChargeBalance{}
	for _, x := range in.applicableExtras() {
		end := x.Range().EndOr(in.AsOf)
		if in.AsOf.Before(end) {
			end = in.AsOf
		}
		months := MonthsBetween(x.EffectiveFrom, end)
		expected := x.Amount.Mul(decimal.NewFromInt(int64(months)))
		paid := ExtraChargePaid(in.Allocations, in.ref(), x.ID)
		out = append(out, ExtraChargeBalance{
			ID:          x.ID,
			Description: x.Description,
			Amount:      x.Amount,
			Months:      months,
			Expected:    expected,
			Paid:        paid,
			Remaining:   FloorZero(expected.Sub(paid)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// =============================================================================
// DIVERGENCE
// =============================================================================

// Divergence explains why Capped and CarryForward disagree.
type Divergence struct {
	Capped       decimal.Decimal `json:"capped"`
	CarryForward decimal.Decimal `json:"carry_forward"`
	Difference   decimal.Decimal `json:"difference"`
	SurplusYears []int           `json:"surplus_years"`
	Explanation  string          `json:"explanation"`
}

// ExplainDivergence returns nil when both totals agree within Epsilon.
func ExplainDivergence(years []YearFigures, capped, carry PolicyResult) *Divergence {
	if MoneyEqual(capped.Total, carry.Total) {
		return nil
	}
	var surplus []int
	var parts []string
	for _, y := range ascending(years) {
		if MoneyPositive(y.Surplus) {
			surplus = append(surplus, y.Year)
			parts = append(parts, fmt.Sprintf("%d (+%s)", y.Year, y.Surplus.StringFixed(2)))
		}
	}
	diff := capped.Total.Sub(carry.Total)
	return &Divergence{
		Capped:       capped.Total,
		CarryForward: carry.Total,
		Difference:   diff,
		SurplusYears: surplus,
		Explanation: fmt.Sprintf(
			"capped total %s exceeds carry-forward total %s by %s: overpayments in %s offset carried shortfall under carry-forward but are ignored when each year is capped at zero",
			capped.Total.StringFixed(2), carry.Total.StringFixed(2), diff.StringFixed(2), strings.Join(parts, ", ")),
	}
}

// =============================================================================
// ACCUMULATOR
// =============================================================================

// DebtSummary is everything a debt endpoint or report row needs.
type DebtSummary struct {
	Entity       EntityRef            `json:"entity"`
	AsOf         Month                `json:"as_of"`
	Policy       PolicyName           `json:"policy"`
	Years        []YearFigures        `json:"years"`
	Capped       PolicyResult         `json:"capped"`
	CarryForward PolicyResult         `json:"carry_forward"`
	PastYears    decimal.Decimal      `json:"past_years"` // total of the selected policy
	Legacy       LegacyDebt           `json:"legacy"`
	CurrentYear  *YearFigures         `json:"current_year,omitempty"`
	ExtraCharges []ExtraChargeBalance `json:"extra_charges"`
	Divergence   *Divergence          `json:"divergence,omitempty"`
	Total        decimal.Decimal      `json:"total"`
}

// Accumulator computes DebtSummary values. It holds configuration only.
type Accumulator struct {
	Policy             DebtPolicy // nil means CarryForward
	IncludeCurrentYear bool
}

// Compute runs the full algorithm for one entity.
func (acc Accumulator) Compute(in DebtInput) DebtSummary {
	policy := acc.Policy
	if policy == nil {
		policy = CarryForward{}
	}

	years := EvaluationYears(in)
	figures := make([]YearFigures, 0, len(years))
	for _, y := range years {
		figures = append(figures, Figures(in.Schedule, in.Allocations, y, time.December))
	}

	capped := Capped{}.Apply(figures)
	carry := CarryForward{}.Apply(figures)
	selected := carry
	if policy.Name() == PolicyCapped {
		selected = capped
	} else if policy.Name() != PolicyCarryForward {
		selected = policy.Apply(figures)
	}

	summary := DebtSummary{
		Entity:       in.ref(),
		AsOf:         in.AsOf,
		Policy:       policy.Name(),
		Years:        figures,
		Capped:       capped,
		CarryForward: carry,
		PastYears:    selected.Total,
		Legacy:       LegacyDebt{Assigned: decimal.Zero, Paid: decimal.Zero, Remaining: decimal.Zero},
		ExtraCharges: ExtraChargeBalances(in),
		Divergence:   ExplainDivergence(figures, capped, carry),
	}
	if in.ref().Kind == EntityUnit {
		summary.Legacy = ComputeLegacyDebt(in.Owners, in.Allocations, in.ref())
	}

	summary.Total = summary.PastYears.Add(summary.Legacy.Remaining)
	if acc.IncludeCurrentYear {
		current := Figures(in.Schedule, in.Allocations, in.AsOf.Year(), in.AsOf.Month())
		summary.CurrentYear = &current
		summary.Total = summary.Total.Add(current.Shortfall)
	}
	return summary
}

// =============================================================================
// AGGREGATE
// =============================================================================

// DebtTotals aggregates many summaries (building-wide figures).
type DebtTotals struct {
	Entities     int             `json:"entities"`
	PastYears    decimal.Decimal `json:"past_years"`
	Capped       decimal.Decimal `json:"capped"`
	CarryForward decimal.Decimal `json:"carry_forward"`
	Legacy       decimal.Decimal `json:"legacy"`
	CurrentYear  decimal.Decimal `json:"current_year"`
	ExtraCharges decimal.Decimal `json:"extra_charges"`
	Total        decimal.Decimal `json:"total"`
	Diverging    int             `json:"diverging"`
}

// Aggregate sums summaries.
func Aggregate(summaries []DebtSummary) DebtTotals {
	t := DebtTotals{
		PastYears: decimal.Zero, Capped: decimal.Zero, CarryForward: decimal.Zero,
		Legacy: decimal.Zero, CurrentYear: decimal.Zero, ExtraCharges: decimal.Zero, Total: decimal.Zero,
	}
	for _, s := range summaries {
		t.Entities++
		t.PastYears = t.PastYears.Add(s.PastYears)
		t.Capped = t.Capped.Add(s.Capped.Total)
		t.CarryForward = t.CarryForward.Add(s.CarryForward.Total)
		t.Legacy = t.Legacy.Add(s.Legacy.Remaining)
		if s.CurrentYear != nil {
			t.CurrentYear = t.CurrentYear.Add(s.CurrentYear.Shortfall)
		}
		for _, x := range s.ExtraCharges {
			t.ExtraCharges = t.ExtraCharges.Add(x.Remaining)
		}
		t.Total = t.Total.Add(s.Total)
		if s.Divergence != nil {
			t.Diverging++
		}
	}
	return t
}
