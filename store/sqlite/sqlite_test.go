package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/condo-ledger/engine"
	"github.com/warp/condo-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func mustMonth(s string) *engine.Month {
	m := engine.MustParseMonth(s)
	return &m
}

func sampleDataset() engine.Dataset {
	unitA := engine.UnitID("A")
	roof := engine.ExtraChargeID("roof")
	return engine.Dataset{
		Units:     []engine.Unit{{ID: "A", Label: "1A", MonthlyFee: decimal.RequireFromString("45")}},
		Creditors: []engine.Creditor{{ID: "cleaning", Name: "Cleaning Co", AmountDue: decimal.RequireFromString("200")}},
		Owners: []engine.Owner{{
			ID: "o1", UnitID: "A", Name: "Ana",
			StartMonth: mustMonth("2020-01"), PreviousDebt: decimal.RequireFromString("1000"),
		}},
		Rates: []engine.RateRecord{
			{ID: "r1", Owner: engine.UnitRef("A"), Amount: decimal.RequireFromString("37.5"),
				EffectiveFrom: engine.MustParseMonth("2024-01"), EffectiveTo: mustMonth("2024-05")},
			{ID: "r2", Owner: engine.UnitRef("A"), Amount: decimal.RequireFromString("45"),
				EffectiveFrom: engine.MustParseMonth("2024-06")},
		},
		ExtraCharges: []engine.ExtraChargeRecord{
			{ID: roof, Description: "roof", Amount: decimal.RequireFromString("10"), EffectiveFrom: engine.MustParseMonth("2024-01")},
			{ID: "balcony", Description: "balcony", Amount: decimal.RequireFromString("5"),
				EffectiveFrom: engine.MustParseMonth("2024-03"), EffectiveTo: mustMonth("2024-05"), UnitID: &unitA},
		},
		Transactions: []engine.Transaction{{
			ID: "t1", Amount: decimal.RequireFromString("455"), Date: time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC),
			Type: engine.TxPayment, Ref: engine.UnitRef("A"), Description: "bank transfer",
		}},
		Allocations: []engine.AllocationRecord{
			{ID: "a1", TransactionID: "t1", Target: engine.MonthTarget(engine.MustParseMonth("2024-01")), Amount: decimal.RequireFromString("45")},
			{ID: "a2", TransactionID: "t1", Target: engine.MonthTarget(engine.MustParseMonth("2024-01")), Amount: decimal.RequireFromString("10"), ExtraChargeID: &roof},
			{ID: "a3", TransactionID: "t1", Target: engine.PrevDebtTarget(), Amount: decimal.RequireFromString("400")},
		},
	}
}

// =============================================================================
// TESTS
// =============================================================================

func TestStore_ImportSnapshotRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Import(ctx, sampleDataset()))
	ds, err := store.Snapshot(ctx)
	require.NoError(t, err)

	assert.Empty(t, ds.Rejected)
	require.Len(t, ds.Rates, 2)
	assert.Equal(t, "2024-05", ds.Rates[0].EffectiveTo.String())
	assert.Nil(t, ds.Rates[1].EffectiveTo)
	assert.True(t, ds.Rates[0].Amount.Equal(decimal.RequireFromString("37.5")))

	require.Len(t, ds.ExtraCharges, 2)
	require.Len(t, ds.Allocations, 3)
	assert.True(t, ds.Allocations[2].Target.IsPrevDebt())
	require.NotNil(t, ds.Allocations[1].ExtraChargeID)

	// the engine sees the same figures as from the in-memory fixture
	summary := engine.Accumulator{}.Compute(ds.DebtInput(engine.UnitRef("A"), engine.MustParseMonth("2024-06"), 0))
	assert.True(t, summary.Legacy.Remaining.Equal(decimal.RequireFromString("600")))
}

func TestStore_SaveTransactionReplacesAllocations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Import(ctx, sampleDataset()))

	// WHEN: t1 is saved again with a single allocation
	ds, _ := store.Snapshot(ctx)
	tx := ds.Transactions[0]
	tx.Amount = decimal.RequireFromString("45")
	err := store.SaveTransaction(ctx, tx, []engine.AllocationRecord{
		{ID: "b1", Target: engine.MonthTarget(engine.MustParseMonth("2024-02")), Amount: decimal.RequireFromString("45")},
	})
	require.NoError(t, err)

	// THEN
	ds, err = store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, ds.Transactions, 1)
	require.Len(t, ds.Allocations, 1)
	assert.Equal(t, engine.TransactionID("t1"), ds.Allocations[0].TransactionID)
	assert.Equal(t, engine.AllocationID("b1"), ds.Allocations[0].ID)
}

func TestStore_SaveRatesIsAllOrNothing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Import(ctx, sampleDataset()))

	// GIVEN: the database refuses a rate with id "bad"
	_, err := store.DB().Exec(`CREATE TRIGGER reject_bad_rate BEFORE INSERT ON rate_records
		WHEN NEW.id = 'bad' BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)

	// WHEN: closing r2 and opening its successor in one call
	ds, err := store.Snapshot(ctx)
	require.NoError(t, err)
	next := engine.RateRecord{ID: "bad", Owner: engine.UnitRef("A"),
		Amount: decimal.RequireFromString("50"), EffectiveFrom: engine.MustParseMonth("2025-01")}
	closed := engine.Supersede(ds.Rates, next)
	require.Len(t, closed, 1)
	err = store.SaveRates(ctx, append(closed, next)...)

	// THEN: nothing was written, r2 is still open
	require.Error(t, err)
	ds, err = store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, ds.Rates, 2)
	assert.Equal(t, "r2", ds.Rates[1].ID)
	assert.Nil(t, ds.Rates[1].EffectiveTo)

	// AND: a successful call writes every rate
	next.ID = "r3"
	require.NoError(t, store.SaveRates(ctx, append(closed, next)...))
	ds, err = store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, ds.Rates, 3)
	assert.Equal(t, "2024-12", ds.Rates[1].EffectiveTo.String())
}

func TestStore_DeleteTransactionCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Import(ctx, sampleDataset()))

	require.NoError(t, store.DeleteTransaction(ctx, "t1"))
	ds, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, ds.Transactions)
	assert.Empty(t, ds.Allocations)

	assert.ErrorIs(t, store.DeleteTransaction(ctx, "t1"), engine.ErrTransactionNotFound)
}

func TestStore_OwnerRequiresUnit(t *testing.T) {
	store := newTestStore(t)
	err := store.SaveOwner(context.Background(), engine.Owner{ID: "o9", UnitID: "nope", Name: "X", PreviousDebt: decimal.Zero})
	assert.ErrorIs(t, err, engine.ErrUnitNotFound)
}

func TestStore_UpsertKeepsOneRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveUnit(ctx, engine.Unit{ID: "A", Label: "1A", MonthlyFee: decimal.RequireFromString("40")}))
	require.NoError(t, store.SaveUnit(ctx, engine.Unit{ID: "A", Label: "1A", MonthlyFee: decimal.RequireFromString("45")}))

	ds, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, ds.Units, 1)
	assert.True(t, ds.Units[0].MonthlyFee.Equal(decimal.RequireFromString("45")))
}

func TestStore_AuditRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-1", "run-2", "run-3"} {
		run := engine.AuditRun{
			ID: id, Trigger: "scheduled", AsOf: engine.MustParseMonth("2024-06"),
			Status: engine.AuditRunning, StartedAt: base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, store.SaveAuditRun(ctx, run))
		finished := run.StartedAt.Add(time.Second)
		run.Status, run.FinishedAt, run.Counts = engine.AuditCompleted, &finished, engine.Counts{Errors: i}
		require.NoError(t, store.SaveAuditRun(ctx, run))
	}

	runs, err := store.ListAuditRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].ID)
	assert.Equal(t, engine.AuditCompleted, runs[0].Status)
	assert.Equal(t, 2, runs[0].Counts.Errors)
	require.NotNil(t, runs[0].FinishedAt)
}

func TestStore_Reset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Import(ctx, sampleDataset()))

	require.NoError(t, store.Reset(ctx))

	ds, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, ds.Units)
	assert.Empty(t, ds.Transactions)
}

func TestStore_MalformedRowsAreRejectedNotZeroed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Import(ctx, sampleDataset()))

	// GIVEN: a legacy row with a bad month and one with a non-numeric amount
	_, err := store.DB().ExecContext(ctx,
		`INSERT INTO allocations (id, transaction_id, target, amount) VALUES ('bad1', 't1', '2024-1', '45')`)
	require.NoError(t, err)
	_, err = store.DB().ExecContext(ctx,
		`INSERT INTO allocations (id, transaction_id, target, amount) VALUES ('bad2', 't1', '2024-02', 'forty')`)
	require.NoError(t, err)

	// WHEN
	ds, err := store.Snapshot(ctx)
	require.NoError(t, err)

	// THEN: both rows are set aside and surface in the audit
	require.Len(t, ds.Rejected, 2)
	assert.Len(t, ds.Allocations, 3)
	result := engine.Audit(ds, engine.MustParseMonth("2024-06"), time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC))
	assert.Len(t, result.Report.ByCode(engine.CodeInvalidRecord), 2)
}
