package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/condo-ledger/engine"
)

// =============================================================================
// TRANSACTION BALANCE
// =============================================================================

func TestReconcileTransaction_Balanced(t *testing.T) {
	// GIVEN: 90 split into two months of 45
	tx := payment("t1", "A", "2024-02-03", 90)
	recs := []engine.AllocationRecord{
		allocation("a1", "t1", "2024-01", 45),
		allocation("a2", "t1", "2024-02", 45),
	}

	b := engine.ReconcileRecords(tx, recs)

	assert.True(t, b.IsBalanced)
	assertMoney(t, 0, b.Diff)
	assertMoney(t, 90, b.AllocatedSum)
}

func TestReconcileTransaction_MismatchFlagged(t *testing.T) {
	// GIVEN: second allocation short by one euro
	tx := payment("t1", "A", "2024-02-03", 90)
	recs := []engine.AllocationRecord{
		allocation("a1", "t1", "2024-01", 45),
		allocation("a2", "t1", "2024-02", 44),
	}

	b := engine.ReconcileRecords(tx, recs)
	assert.False(t, b.IsBalanced)
	assertMoney(t, 1, b.Diff)

	// THEN: the ledger check reports it as an error
	ledger, _ := engine.JoinLedger([]engine.Transaction{tx}, recs, nil)
	report := engine.CheckLedger(ledger)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, engine.CodeAllocationMismatch, report.Errors[0].Code)
}

func TestReconcileTransaction_WithinEpsilon(t *testing.T) {
	tx := payment("t1", "A", "2024-02-03", 100)
	recs := []engine.AllocationRecord{
		allocation("a1", "t1", "2024-01", 33.33),
		allocation("a2", "t1", "2024-02", 33.33),
		allocation("a3", "t1", "2024-03", 33.33),
	}
	b := engine.ReconcileRecords(tx, recs)
	assert.True(t, b.IsBalanced)
}

func TestReconcileTransaction_ExpenseSignedOrUnsigned(t *testing.T) {
	tx := expense("t1", "cleaning", "2024-01-31", -200)

	unsigned := engine.ReconcileRecords(tx, []engine.AllocationRecord{allocation("a1", "t1", "2024-01", 200)})
	signed := engine.ReconcileRecords(tx, []engine.AllocationRecord{allocation("a1", "t1", "2024-01", -200)})

	assert.True(t, unsigned.IsBalanced)
	assert.True(t, signed.IsBalanced)
}

// =============================================================================
// JOIN / NORMALIZATION
// =============================================================================

func TestJoinLedger_OrphanAllocationExcluded(t *testing.T) {
	txs := []engine.Transaction{payment("t1", "A", "2024-01-05", 45)}
	recs := []engine.AllocationRecord{
		allocation("a1", "t1", "2024-01", 45),
		allocation("a2", "gone", "2024-02", 45),
	}

	ledger, report := engine.JoinLedger(txs, recs, nil)

	assert.Len(t, ledger.Allocations, 1)
	require.Len(t, ledger.Orphans, 1)
	assert.Equal(t, engine.AllocationID("a2"), ledger.Orphans[0].ID)
	assert.Equal(t, []string{engine.CodeOrphanAllocation}, codes(report.Errors))
}

func TestJoinLedger_OrphanExtraChargeReportedButCounted(t *testing.T) {
	txs := []engine.Transaction{payment("t1", "A", "2024-01-05", 10)}
	recs := []engine.AllocationRecord{extraAllocation("a1", "t1", "2024-01", 10, "deleted")}

	ledger, report := engine.JoinLedger(txs, recs, nil)

	assert.Len(t, ledger.Allocations, 1)
	assert.Equal(t, []string{engine.CodeOrphanExtraCharge}, codes(report.Errors))
	assertMoney(t, 10, engine.MonthlyActual(ledger.Allocations, engine.UnitRef("A"), month("2024-01")))
}

func TestJoinLedger_SuspiciousSign(t *testing.T) {
	txs := []engine.Transaction{payment("t1", "A", "2024-01-05", 45)}
	recs := []engine.AllocationRecord{allocation("a1", "t1", "2024-01", -45)}

	ledger, report := engine.JoinLedger(txs, recs, nil)

	assert.Equal(t, []string{engine.CodeSuspiciousSign}, codes(report.Warnings))
	require.Len(t, ledger.Allocations, 1)
	assert.Equal(t, engine.KindIncome, ledger.Allocations[0].Kind)
	assertMoney(t, -45, ledger.Allocations[0].Amount)
}

func TestJoinLedger_CorrectionRowNetsOut(t *testing.T) {
	// GIVEN: a 90 payment split as 100 then a -10 correction on the same month
	txs := []engine.Transaction{payment("t1", "A", "2024-01-05", 90)}
	recs := []engine.AllocationRecord{
		allocation("a1", "t1", "2024-01", 100),
		allocation("a2", "t1", "2024-01", -10),
	}

	// WHEN
	ledger, report := engine.JoinLedger(txs, recs, nil)

	// THEN: the correction is flagged but the money nets to 90
	assert.Equal(t, []string{engine.CodeSuspiciousSign}, codes(report.Warnings))
	b := engine.ReconcileTransaction(txs[0], ledger.Entries[0].Allocations)
	assert.True(t, b.IsBalanced)
	assertMoney(t, 90, b.AllocatedSum)
	assertMoney(t, 0, b.Diff)
	assertMoney(t, 90, engine.MonthlyActual(ledger.Allocations, engine.UnitRef("A"), month("2024-01")))
	assertMoney(t, 90, engine.Categorize(ledger.Allocations, engine.UnitRef("A"), month("2024-01")).BaseFee)
	assert.Empty(t, engine.CheckLedger(ledger).Errors)
}

func TestJoinLedger_ExpenseRowsSignedOrUnsigned(t *testing.T) {
	txs := []engine.Transaction{expense("t1", "cleaning", "2024-01-31", -120)}
	recs := []engine.AllocationRecord{
		allocation("a1", "t1", "2024-01", -60),
		allocation("a2", "t1", "2024-01", 60),
	}

	ledger, report := engine.JoinLedger(txs, recs, nil)

	assert.Empty(t, report.All())
	b := engine.ReconcileTransaction(txs[0], ledger.Entries[0].Allocations)
	assert.True(t, b.IsBalanced)
	assertMoney(t, 120, engine.MonthlyActual(ledger.Allocations, engine.CreditorRef("cleaning"), month("2024-01")))
}

func TestCheckLedger_UnallocatedPayment(t *testing.T) {
	txs := []engine.Transaction{
		payment("t1", "A", "2024-01-05", 45),
		expense("t2", "cleaning", "2024-01-06", -80),
		{ID: "t3", Amount: eur(30), Date: date("2024-01-07"), Type: engine.TxTransfer, Ref: engine.UnitRef("A")},
	}
	ledger, _ := engine.JoinLedger(txs, nil, nil)

	report := engine.CheckLedger(ledger)

	// any income needs manual allocation, whatever its type; expenses do not
	require.Len(t, report.Warnings, 2)
	assert.Equal(t, []string{engine.CodeUnallocatedPayment, engine.CodeUnallocatedPayment}, codes(report.Warnings))
	assert.Equal(t, "t1", report.Warnings[0].RecordID)
	assert.Equal(t, "t3", report.Warnings[1].RecordID)
}

// =============================================================================
// PAID PER MONTH
// =============================================================================

func TestMonthlyActual_OnlyIncomeOfTheUnit(t *testing.T) {
	txs := []engine.Transaction{
		payment("t1", "A", "2024-01-05", 45),
		payment("t2", "B", "2024-01-05", 45),
		{ID: "t3", Amount: eur(-5), Date: date("2024-01-09"), Type: engine.TxFee, Ref: engine.UnitRef("A")},
		payment("t4", "A", "2024-01-20", 100),
	}
	recs := []engine.AllocationRecord{
		allocation("a1", "t1", "2024-01", 45),
		allocation("a2", "t2", "2024-01", 45),
		allocation("a3", "t3", "2024-01", 5),
		allocation("a4", "t4", "PREV-DEBT", 100),
	}
	allocs := normalized(txs, recs)

	assertMoney(t, 45, engine.MonthlyActual(allocs, engine.UnitRef("A"), month("2024-01")))
	assertMoney(t, 100, engine.PrevDebtPaid(allocs, engine.UnitRef("A")))
}

func TestMonthlyActual_CreditorCountsExpenses(t *testing.T) {
	txs := []engine.Transaction{expense("t1", "cleaning", "2024-01-31", -200)}
	recs := []engine.AllocationRecord{allocation("a1", "t1", "2024-01", -200)}
	allocs := normalized(txs, recs)

	assertMoney(t, 200, engine.MonthlyActual(allocs, engine.CreditorRef("cleaning"), month("2024-01")))
}

func TestCategorize_SplitsBaseAndExtras(t *testing.T) {
	txs := []engine.Transaction{payment("t1", "A", "2024-04-02", 60)}
	recs := []engine.AllocationRecord{
		allocation("a1", "t1", "2024-04", 45),
		extraAllocation("a2", "t1", "2024-04", 10, "roof"),
		extraAllocation("a3", "t1", "2024-04", 5, "balcony"),
	}
	c := engine.Categorize(normalized(txs, recs), engine.UnitRef("A"), month("2024-04"))

	assertMoney(t, 45, c.BaseFee)
	assertMoney(t, 10, c.PerExtra["roof"])
	assertMoney(t, 5, c.PerExtra["balcony"])
	assertMoney(t, 60, c.Total())
}

func TestMonthlyStatus_States(t *testing.T) {
	schedule := engine.ChargeSchedule{
		Ref:     engine.UnitRef("A"),
		Extras:  []engine.ExtraChargeRecord{extraCharge("roof", "roof", 10, "2024-03", "", nil)},
		Default: eur(45),
	}
	txs := []engine.Transaction{payment("t1", "A", "2024-04-02", 200)}
	recs := []engine.AllocationRecord{
		allocation("a1", "t1", "2024-01", 45),
		allocation("a2", "t1", "2024-02", 20),
		allocation("a3", "t1", "2024-03", 45),
		extraAllocation("a4", "t1", "2024-03", 10, "roof"),
		allocation("a5", "t1", "2024-04", 80),
	}
	months := engine.MonthsThrough(2024, 5)

	statuses := engine.MonthlyStatus(schedule, normalized(txs, recs), months)

	require.Len(t, statuses, 5)
	assert.Equal(t, engine.MonthPaid, statuses[0].State)
	assert.Equal(t, engine.MonthPartial, statuses[1].State)
	assertMoney(t, 25, statuses[1].Outstanding())
	assert.Equal(t, engine.MonthPaid, statuses[2].State)
	require.Len(t, statuses[2].Categories, 2)
	assertMoney(t, 10, statuses[2].Categories[1].Paid)
	assert.Equal(t, engine.MonthOverpaid, statuses[3].State)
	assert.Equal(t, engine.MonthUnpaid, statuses[4].State)
	assertMoney(t, 55, statuses[4].Outstanding())
}
