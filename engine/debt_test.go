package engine_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/condo-ledger/engine"
)

// =============================================================================
// FIXTURE: three years at 45/month, paid 500, 600, 510
// =============================================================================

func threeYearInput(t *testing.T) engine.DebtInput {
	t.Helper()
	txs := []engine.Transaction{
		payment("t21", "A", "2021-12-20", 500),
		payment("t22", "A", "2022-12-20", 600),
		payment("t23", "A", "2023-12-20", 510),
	}
	recs := []engine.AllocationRecord{
		allocation("a21", "t21", "2021-06", 500),
		allocation("a22", "t22", "2022-06", 600),
		allocation("a23", "t23", "2023-06", 510),
	}
	return engine.DebtInput{
		Schedule:    engine.ChargeSchedule{Ref: engine.UnitRef("A"), Default: eur(45)},
		Allocations: normalized(txs, recs),
		AsOf:        month("2024-06"),
	}
}

// =============================================================================
// POLICIES
// =============================================================================

func TestPolicies_SurplusYearThenDeficit(t *testing.T) {
	// GIVEN: Y1 short 40, Y2 surplus 60, Y3 short 30
	years := []engine.YearFigures{
		{Year: 2021, Expected: eur(540), Paid: eur(500)},
		{Year: 2022, Expected: eur(540), Paid: eur(600)},
		{Year: 2023, Expected: eur(540), Paid: eur(510)},
	}

	capped := engine.Capped{}.Apply(years)
	carry := engine.CarryForward{}.Apply(years)

	// THEN: capped ignores the surplus, carry-forward absorbs it
	assertMoney(t, 70, capped.Total)
	assertMoney(t, 30, carry.Total)

	require.Len(t, carry.Steps, 3)
	assertMoney(t, 40, carry.Steps[0].Closing)
	assertMoney(t, 0, carry.Steps[1].Closing)
	assertMoney(t, 30, carry.Steps[2].Closing)
	assertMoney(t, 40, capped.Steps[0].Contribution)
	assertMoney(t, 0, capped.Steps[1].Contribution)
}

func TestPolicies_InputOrderDoesNotMatter(t *testing.T) {
	years := []engine.YearFigures{
		{Year: 2023, Expected: eur(540), Paid: eur(510)},
		{Year: 2021, Expected: eur(540), Paid: eur(500)},
		{Year: 2022, Expected: eur(540), Paid: eur(600)},
	}
	assertMoney(t, 30, engine.CarryForward{}.Apply(years).Total)
	assert.Equal(t, 2023, years[0].Year, "input must not be reordered")
}

func TestCarryForward_NeverNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 200; run++ {
		var years []engine.YearFigures
		for y := 0; y < 1+rng.Intn(8); y++ {
			years = append(years, engine.YearFigures{
				Year:     2010 + y,
				Expected: eur(float64(rng.Intn(1000))),
				Paid:     eur(float64(rng.Intn(3000))),
			})
		}
		carry := engine.CarryForward{}.Apply(years)
		capped := engine.Capped{}.Apply(years)
		for _, step := range carry.Steps {
			assert.False(t, step.Closing.IsNegative(), "run %d year %d", run, step.Year)
		}
		assert.True(t, capped.Total.GreaterThanOrEqual(carry.Total), "run %d", run)
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := engine.ParsePolicy("capped")
	require.NoError(t, err)
	assert.Equal(t, engine.PolicyCapped, p.Name())

	p, err = engine.ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, engine.PolicyCarryForward, p.Name())

	_, err = engine.ParsePolicy("fifo")
	assert.ErrorIs(t, err, engine.ErrUnknownPolicy)
}

// =============================================================================
// ACCUMULATOR
// =============================================================================

func TestAccumulator_ThreeYears(t *testing.T) {
	in := threeYearInput(t)

	summary := engine.Accumulator{}.Compute(in)

	require.Len(t, summary.Years, 3)
	assertMoney(t, 540, summary.Years[0].Expected)
	assertMoney(t, 500, summary.Years[0].Paid)
	assert.Equal(t, engine.PolicyCarryForward, summary.Policy)
	assertMoney(t, 30, summary.PastYears)
	assertMoney(t, 70, summary.Capped.Total)
	assertMoney(t, 30, summary.Total)

	require.NotNil(t, summary.Divergence)
	assertMoney(t, 40, summary.Divergence.Difference)
	assert.Equal(t, []int{2022}, summary.Divergence.SurplusYears)
	assert.Contains(t, summary.Divergence.Explanation, "2022")
}

func TestAccumulator_CappedPolicySelected(t *testing.T) {
	summary := engine.Accumulator{Policy: engine.Capped{}}.Compute(threeYearInput(t))
	assert.Equal(t, engine.PolicyCapped, summary.Policy)
	assertMoney(t, 70, summary.Total)
}

func TestAccumulator_CurrentYearThroughAsOf(t *testing.T) {
	// GIVEN: nothing paid in 2024, as of June
	summary := engine.Accumulator{IncludeCurrentYear: true}.Compute(threeYearInput(t))

	require.NotNil(t, summary.CurrentYear)
	assert.Equal(t, 2024, summary.CurrentYear.Year)
	assertMoney(t, 270, summary.CurrentYear.Expected)
	assertMoney(t, 270, summary.CurrentYear.Shortfall)
	assertMoney(t, 300, summary.Total)
}

func TestAccumulator_LegacyDebtIndependentBucket(t *testing.T) {
	// GIVEN: 1000 of pre-digital debt, 400 paid against PREV-DEBT
	txs := []engine.Transaction{payment("t1", "A", "2024-02-01", 400)}
	recs := []engine.AllocationRecord{allocation("a1", "t1", "PREV-DEBT", 400)}
	in := engine.DebtInput{
		Schedule:    engine.ChargeSchedule{Ref: engine.UnitRef("A"), Default: eur(0)},
		Allocations: normalized(txs, recs),
		Owners:      []engine.Owner{{ID: "o1", UnitID: "A", Name: "Ana", PreviousDebt: eur(1000)}},
		AsOf:        month("2024-06"),
	}

	summary := engine.Accumulator{}.Compute(in)

	assertMoney(t, 1000, summary.Legacy.Assigned)
	assertMoney(t, 400, summary.Legacy.Paid)
	assertMoney(t, 600, summary.Legacy.Remaining)
	assertMoney(t, 0, summary.PastYears)
	assertMoney(t, 600, summary.Total)
}

func TestAccumulator_LegacyDebtSumsEveryOwner(t *testing.T) {
	owners := []engine.Owner{
		{ID: "o1", UnitID: "A", PreviousDebt: eur(300), EndMonth: monthPtr("2020-12")},
		{ID: "o2", UnitID: "A", PreviousDebt: eur(200), StartMonth: monthPtr("2021-01")},
		{ID: "o3", UnitID: "B", PreviousDebt: eur(999)},
	}
	legacy := engine.ComputeLegacyDebt(owners, nil, engine.UnitRef("A"))
	assertMoney(t, 500, legacy.Remaining)

	overpaid := engine.ComputeLegacyDebt(owners[:1], []engine.Allocation{
		{Ref: engine.UnitRef("A"), Kind: engine.KindIncome, Target: engine.PrevDebtTarget(), Amount: eur(450)},
	}, engine.UnitRef("A"))
	assertMoney(t, 0, overpaid.Remaining)
}

func TestExtraChargeBalances(t *testing.T) {
	// GIVEN: global 10 since January, unit charge 5 for March..May; as of June
	txs := []engine.Transaction{payment("t1", "A", "2024-03-01", 30)}
	recs := []engine.AllocationRecord{
		extraAllocation("a1", "t1", "2024-01", 10, "roof"),
		extraAllocation("a2", "t1", "2024-02", 10, "roof"),
		extraAllocation("a3", "t1", "2024-03", 10, "balcony"),
	}
	in := engine.DebtInput{
		Schedule: engine.ChargeSchedule{
			Ref: engine.UnitRef("A"),
			Extras: []engine.ExtraChargeRecord{
				extraCharge("roof", "roof", 10, "2024-01", "", nil),
				extraCharge("balcony", "balcony", 5, "2024-03", "2024-05", unitPtr("A")),
				extraCharge("garage", "garage", 7, "2024-01", "", unitPtr("B")),
			},
			Default: eur(45),
		},
		Allocations: normalized(txs, recs),
		AsOf:        month("2024-06"),
	}

	balances := engine.ExtraChargeBalances(in)

	require.Len(t, balances, 2)
	balcony, roof := balances[0], balances[1]
	assert.Equal(t, 3, balcony.Months)
	assertMoney(t, 15, balcony.Expected)
	assertMoney(t, 5, balcony.Remaining)
	assert.Equal(t, 6, roof.Months)
	assertMoney(t, 60, roof.Expected)
	assertMoney(t, 40, roof.Remaining)
}

func TestEvaluationYears(t *testing.T) {
	t.Run("rate span clipped to past years", func(t *testing.T) {
		in := engine.DebtInput{
			Schedule: engine.ChargeSchedule{
				Ref:   engine.UnitRef("A"),
				Rates: []engine.RateRecord{unitRate("r1", "A", 45, "2019-03", "")},
			},
			AsOf: month("2022-03"),
		}
		assert.Equal(t, []int{2019, 2020, 2021}, engine.EvaluationYears(in))
	})

	t.Run("first digital year bounds from below", func(t *testing.T) {
		in := threeYearInput(t)
		in.FirstYear = 2022
		assert.Equal(t, []int{2022, 2023}, engine.EvaluationYears(in))
	})

	t.Run("no records, no years", func(t *testing.T) {
		in := engine.DebtInput{Schedule: engine.ChargeSchedule{Ref: engine.UnitRef("A"), Default: eur(45)}, AsOf: month("2024-01")}
		assert.Empty(t, engine.EvaluationYears(in))
	})
}

func TestAccumulator_Creditor(t *testing.T) {
	// GIVEN: 200/month due to cleaning, paid 11 months of 2023
	var txs []engine.Transaction
	var recs []engine.AllocationRecord
	for _, m := range engine.MonthsThrough(2023, 11) {
		id := engine.TransactionID("c" + m.String())
		txs = append(txs, expense(id, "cleaning", m.Start().Format("2006-01-02"), -200))
		recs = append(recs, allocation(engine.AllocationID("a"+m.String()), id, m.String(), 200))
	}
	in := engine.DebtInput{
		Schedule:    engine.ChargeSchedule{Ref: engine.CreditorRef("cleaning"), Default: eur(200)},
		Allocations: normalized(txs, recs),
		AsOf:        month("2024-02"),
	}

	summary := engine.Accumulator{}.Compute(in)

	assertMoney(t, 200, summary.Total)
	assert.Empty(t, summary.ExtraCharges)
	assertMoney(t, 0, summary.Legacy.Remaining)
}

func TestAccumulator_IdempotentAndInputsUntouched(t *testing.T) {
	in := threeYearInput(t)
	before := append([]engine.Allocation(nil), in.Allocations...)
	acc := engine.Accumulator{Policy: engine.Capped{}, IncludeCurrentYear: true}

	first := acc.Compute(in)
	second := acc.Compute(in)

	assert.Equal(t, first, second)
	assert.Equal(t, before, in.Allocations)
}

func TestAggregate(t *testing.T) {
	a := engine.Accumulator{}.Compute(threeYearInput(t))
	b := engine.Accumulator{}.Compute(threeYearInput(t))

	totals := engine.Aggregate([]engine.DebtSummary{a, b})

	assert.Equal(t, 2, totals.Entities)
	assertMoney(t, 60, totals.Total)
	assertMoney(t, 140, totals.Capped)
	assert.Equal(t, 2, totals.Diverging)
}
