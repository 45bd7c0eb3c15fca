/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario correctly sets up the expected state:
	- Units, owners and creditors are created
	- Generated transactions balance (except where dirtiness is the point)
	- Debt and audit figures match the scenario description

These tests run against the SQLite store so scenarios double as
integration tests of the import path.
*/
package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/condo-ledger/engine"
	"github.com/warp/condo-ledger/store/sqlite"
)

func setupTestHandler(t *testing.T) *Handler {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store)
	h.Clock = func() time.Time { return testNow }
	return h
}

func TestScenarios_AllLoad(t *testing.T) {
	for _, sc := range scenarios {
		t.Run(sc.ID, func(t *testing.T) {
			// GIVEN: an empty store
			h := setupTestHandler(t)
			ctx := context.Background()

			// WHEN: loading the scenario
			require.NoError(t, h.loadScenario(ctx, sc.ID))

			// THEN: it is the current one and has data
			assert.Equal(t, sc.ID, h.getCurrentScenario())
			ds, err := h.Store.Snapshot(ctx)
			require.NoError(t, err)
			assert.NotEmpty(t, ds.Units)
			assert.NotEmpty(t, ds.Transactions)
		})
	}
}

func TestScenarios_EveryDefinitionHasALoader(t *testing.T) {
	require.Len(t, scenarioLoaders, len(scenarios))
	for _, sc := range scenarios {
		assert.Contains(t, scenarioLoaders, sc.ID)
	}
}

func TestScenario_ReplacesPreviousData(t *testing.T) {
	h := setupTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.loadScenario(ctx, "clean-building"))
	require.NoError(t, h.loadScenario(ctx, "rate-change"))

	ds, err := h.Store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, ds.Units, 1)
	assert.Equal(t, engine.UnitID("2A"), ds.Units[0].ID)
	assert.Empty(t, ds.Creditors)
}

func TestScenario_CleanBuildingAuditsClean(t *testing.T) {
	h := setupTestHandler(t)
	ctx := context.Background()
	require.NoError(t, h.loadScenario(ctx, "clean-building"))

	ds, err := h.Store.Snapshot(ctx)
	require.NoError(t, err)

	result := engine.AuditOptions{AsOf: engine.MustParseMonth("2024-12"), Now: testNow}.Run(ds)
	assert.Empty(t, result.Report.Errors)
	assert.Empty(t, result.Report.Warnings)
	assert.Len(t, ds.Transactions, 3*12+12)

	// every generated transaction balances
	for _, e := range ds.Ledger().Entries {
		assert.True(t, engine.ReconcileTransaction(e.Transaction, e.Allocations).IsBalanced, e.Transaction.ID)
	}
}

func TestScenario_RateChangeShortfall(t *testing.T) {
	h := setupTestHandler(t)
	ctx := context.Background()
	require.NoError(t, h.loadScenario(ctx, "rate-change"))

	ds, err := h.Store.Snapshot(ctx)
	require.NoError(t, err)

	summary := engine.Accumulator{}.Compute(ds.DebtInput(engine.UnitRef("2A"), engine.MustParseMonth("2025-01"), 0))
	assertDecimal(t, "52.5", summary.Total)
	assert.Nil(t, summary.Divergence)
}

func TestScenario_PolicyDivergence(t *testing.T) {
	h := setupTestHandler(t)
	ctx := context.Background()
	require.NoError(t, h.loadScenario(ctx, "policy-divergence"))

	ds, err := h.Store.Snapshot(ctx)
	require.NoError(t, err)

	summary := engine.Accumulator{}.Compute(ds.DebtInput(engine.UnitRef("4B"), engine.MustParseMonth("2025-01"), 0))
	require.Len(t, summary.Years, 2)
	assertDecimal(t, "135", summary.Capped.Total)
	assertDecimal(t, "35", summary.CarryForward.Total)
	assert.True(t, summary.Capped.Total.GreaterThanOrEqual(summary.CarryForward.Total))

	// the audit reports it as information, not as a problem
	result := engine.AuditOptions{AsOf: engine.MustParseMonth("2025-01"), Now: testNow}.Run(ds)
	assert.Empty(t, result.Report.Errors)
	assert.NotEmpty(t, result.Report.ByCode(engine.CodePolicyDivergence))
}

func TestScenario_DirtyDataSurvivesTheStore(t *testing.T) {
	h := setupTestHandler(t)
	ctx := context.Background()
	require.NoError(t, h.loadScenario(ctx, "dirty-data"))

	ds, err := h.Store.Snapshot(ctx)
	require.NoError(t, err)

	// orphans are kept so the audit can see them
	result := engine.AuditOptions{AsOf: engine.MustParseMonth("2024-12"), Now: testNow}.Run(ds)
	assert.NotEmpty(t, result.Report.ByCode(engine.CodeOrphanAllocation))
	assert.NotEmpty(t, result.Report.ByCode(engine.CodeAllocationMismatch))
	assert.True(t, result.Report.HasErrors())
}
