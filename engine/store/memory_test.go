package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/condo-ledger/engine"
	"github.com/warp/condo-ledger/engine/store"
)

func TestMemory_SnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.SaveUnit(ctx, engine.Unit{ID: "A", Label: "1A", MonthlyFee: decimal.NewFromInt(45)}))

	ds, err := m.Snapshot(ctx)
	require.NoError(t, err)
	ds.Units[0].Label = "changed"

	again, _ := m.Snapshot(ctx)
	assert.Equal(t, "1A", again.Units[0].Label)
}

func TestMemory_TransactionLifecycle(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	tx := engine.Transaction{ID: "t1", Amount: decimal.NewFromInt(90), Date: time.Now(), Ref: engine.UnitRef("A")}
	jan := engine.MonthTarget(engine.MustParseMonth("2024-01"))

	require.NoError(t, m.SaveTransaction(ctx, tx, []engine.AllocationRecord{
		{ID: "a1", Target: jan, Amount: decimal.NewFromInt(45)},
		{ID: "a2", Target: jan, Amount: decimal.NewFromInt(45)},
	}))
	require.NoError(t, m.SaveTransaction(ctx, tx, []engine.AllocationRecord{
		{ID: "a3", Target: jan, Amount: decimal.NewFromInt(90)},
	}))

	ds, _ := m.Snapshot(ctx)
	require.Len(t, ds.Transactions, 1)
	require.Len(t, ds.Allocations, 1)
	assert.Equal(t, engine.TransactionID("t1"), ds.Allocations[0].TransactionID)

	require.NoError(t, m.DeleteTransaction(ctx, "t1"))
	assert.ErrorIs(t, m.DeleteTransaction(ctx, "t1"), engine.ErrTransactionNotFound)
	ds, _ = m.Snapshot(ctx)
	assert.Empty(t, ds.Allocations)
}

func TestMemory_OwnerNeedsUnit(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	assert.ErrorIs(t, m.SaveOwner(ctx, engine.Owner{ID: "o1", UnitID: "A"}), engine.ErrUnitNotFound)
	assert.ErrorIs(t, m.Import(ctx, engine.Dataset{Owners: []engine.Owner{{ID: "o1", UnitID: "A"}}}), engine.ErrUnitNotFound)
}

func TestMemory_AuditRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, m.SaveAuditRun(ctx, engine.AuditRun{ID: id, StartedAt: base.Add(time.Duration(i) * time.Hour)}))
	}

	runs, err := m.ListAuditRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r3", runs[0].ID)
	assert.Equal(t, "r2", runs[1].ID)
}
