/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built buildings that populate the store with realistic
	data for testing and demos. Each scenario parses a base JSON document
	(units, owners, rates, creditors, extra charges) through the dataset
	factory, then adds the bank movements in code.

AVAILABLE SCENARIOS:

	clean-building:    Every fee and due paid on time, audit is clean
	rate-change:       Fee raised mid-year, owner kept paying the old rate
	legacy-debt:       Owner inherited pre-digital debt, paying it down
	policy-divergence: Shortfall then surplus, Capped and CarryForward disagree
	dirty-data:        Orphans, unbalanced transactions, overlapping rates

HOW SCENARIOS WORK:
 1. Reset store (clear all data)
 2. Parse the base document via factory
 3. Generate transactions and allocations
 4. Import the dataset in one go

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "policy-divergence"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: xxxScenario(f) (engine.Dataset, error)
 3. Add it to the scenarioLoaders map

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Import endpoint (same path for user-supplied data)
  - factory/dataset.go: JSON document format
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/condo-ledger/engine"
	"github.com/warp/condo-ledger/factory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "clean-building",
		Name:        "Clean Building",
		Description: "Three units and a cleaning company, everything paid on time in 2024",
		Category:    "reconciliation",
	},
	{
		ID:          "rate-change",
		Name:        "Rate Change",
		Description: "Fee raised from 37.50 to 45.00 in June 2024; the owner kept paying 37.50",
		Category:    "reconciliation",
	},
	{
		ID:          "legacy-debt",
		Name:        "Legacy Debt",
		Description: "Owner inherited 1000.00 of pre-digital debt and a roof repair levy",
		Category:    "debt",
	},
	{
		ID:          "policy-divergence",
		Name:        "Policy Divergence",
		Description: "Short 135.00 in 2023, overpaid 100.00 in 2024: capped and carry-forward disagree",
		Category:    "debt",
	},
	{
		ID:          "dirty-data",
		Name:        "Dirty Data",
		Description: "Orphan allocations, unbalanced transactions, overlapping rates, future dates",
		Category:    "audit",
	},
}

type scenarioLoader func(f *factory.DatasetFactory) (engine.Dataset, error)

var scenarioLoaders = map[string]scenarioLoader{
	"clean-building":    cleanBuildingScenario,
	"rate-change":       rateChangeScenario,
	"legacy-debt":       legacyDebtScenario,
	"policy-divergence": policyDivergenceScenario,
	"dirty-data":        dirtyDataScenario,
}

// ListScenarios returns all available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	current := h.getCurrentScenario()
	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current, Description: "Currently loaded scenario"})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if _, ok := scenarioLoaders[req.ScenarioID]; !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "scenario": req.ScenarioID})
}

// ResetDatabase deletes every record.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.setCurrentScenario("")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	ds, err := scenarioLoaders[id](h.Factory)
	if err != nil {
		return err
	}
	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	h.setCurrentScenario("")
	if err := h.Store.Import(ctx, ds); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	h.setCurrentScenario(id)
	h.Logger.InfoContext(ctx, "Scenario loaded", "scenario", id,
		"units", len(ds.Units), "transactions", len(ds.Transactions))
	return nil
}

func (h *Handler) getCurrentScenario() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.currentScenario
}

func (h *Handler) setCurrentScenario(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentScenario = id
}

// =============================================================================
// SCENARIO: CLEAN BUILDING
// =============================================================================

func cleanBuildingScenario(f *factory.DatasetFactory) (engine.Dataset, error) {
	ds, err := f.ParseDataset([]byte(`{
	  "units": [
	    {"id": "1A", "label": "Apartment 1A", "monthly_fee": "45.00"},
	    {"id": "1B", "label": "Apartment 1B", "monthly_fee": "60.00"},
	    {"id": "G1", "label": "Shop G1", "monthly_fee": "30.00"}
	  ],
	  "owners": [
	    {"id": "o-1a", "unit_id": "1A", "name": "Ana Ruiz", "start_month": "2019-03"},
	    {"id": "o-1b", "unit_id": "1B", "name": "Luis Ortega", "start_month": "2021-07"},
	    {"id": "o-g1", "unit_id": "G1", "name": "Ferreteria Sol", "start_month": "2015-01"}
	  ],
	  "creditors": [{"id": "cleaning", "name": "Limpiezas Brillo", "amount_due": "120.00"}]
	}`))
	if err != nil {
		return ds, err
	}

	b := &scenarioBuilder{ds: ds}
	for _, unit := range []struct {
		id  engine.UnitID
		fee string
	}{{"1A", "45"}, {"1B", "60"}, {"G1", "30"}} {
		b.monthlyPayments(unit.id, "2024-01", "2024-12", unit.fee)
	}
	b.monthlyExpenses("cleaning", "2024-01", "2024-12", "120")
	return b.ds, nil
}

// =============================================================================
// SCENARIO: RATE CHANGE
// =============================================================================

func rateChangeScenario(f *factory.DatasetFactory) (engine.Dataset, error) {
	ds, err := f.ParseDataset([]byte(`{
	  "units": [{"id": "2A", "label": "Apartment 2A", "monthly_fee": "37.50"}],
	  "owners": [{"id": "o-2a", "unit_id": "2A", "name": "Marta Gil", "start_month": "2020-01"}],
	  "rates": [
	    {"id": "r-2a-1", "unit_id": "2A", "amount": "37.50", "effective_from": "2024-01", "effective_to": "2024-05"},
	    {"id": "r-2a-2", "unit_id": "2A", "amount": "45.00", "effective_from": "2024-06", "effective_to": null}
	  ]
	}`))
	if err != nil {
		return ds, err
	}

	// 7 months at 7.50 short: 52.50 owed for 2024
	b := &scenarioBuilder{ds: ds}
	b.monthlyPayments("2A", "2024-01", "2024-12", "37.50")
	return b.ds, nil
}

// =============================================================================
// SCENARIO: LEGACY DEBT
// =============================================================================

func legacyDebtScenario(f *factory.DatasetFactory) (engine.Dataset, error) {
	ds, err := f.ParseDataset([]byte(`{
	  "units": [{"id": "3A", "label": "Apartment 3A", "monthly_fee": "45.00"}],
	  "owners": [
	    {"id": "o-3a-old", "unit_id": "3A", "name": "Pedro Vidal", "start_month": "2010-01", "end_month": "2022-12", "previous_debt": "600.00"},
	    {"id": "o-3a", "unit_id": "3A", "name": "Elena Vidal", "start_month": "2023-01", "previous_debt": "400.00"}
	  ],
	  "extra_charges": [
	    {"id": "roof-2024", "description": "Roof repair", "amount": "10.00", "effective_from": "2024-01", "effective_to": "2024-12", "unit_id": null}
	  ]
	}`))
	if err != nil {
		return ds, err
	}

	b := &scenarioBuilder{ds: ds}
	b.monthlyPayments("3A", "2023-01", "2023-12", "45")
	for m := engine.MustParseMonth("2024-01"); !m.After(engine.MustParseMonth("2024-12")); m = m.Next() {
		// roof levy only paid in the first half
		if m.Month() <= time.June {
			b.payment("3A", m, "55", alloc(m, "45", ""), alloc(m, "10", "roof-2024"))
		} else {
			b.payment("3A", m, "45", alloc(m, "45", ""))
		}
	}
	b.legacyPayment("3A", "2024-03-15", "150")
	b.legacyPayment("3A", "2024-09-15", "50")
	return b.ds, nil
}

// =============================================================================
// SCENARIO: POLICY DIVERGENCE
// =============================================================================

func policyDivergenceScenario(f *factory.DatasetFactory) (engine.Dataset, error) {
	ds, err := f.ParseDataset([]byte(`{
	  "units": [{"id": "4B", "label": "Apartment 4B", "monthly_fee": "45.00"}],
	  "owners": [{"id": "o-4b", "unit_id": "4B", "name": "Jorge Sanz", "start_month": "2018-05"}]
	}`))
	if err != nil {
		return ds, err
	}

	// 2023: Jan-Sep paid, 135 short. 2024: fully paid plus 100 extra in December.
	// Capped keeps 135; CarryForward nets it down to 35.
	b := &scenarioBuilder{ds: ds}
	b.monthlyPayments("4B", "2023-01", "2023-09", "45")
	b.monthlyPayments("4B", "2024-01", "2024-11", "45")
	dec := engine.MustParseMonth("2024-12")
	b.payment("4B", dec, "145", alloc(dec, "145", ""))
	return b.ds, nil
}

// =============================================================================
// SCENARIO: DIRTY DATA
// =============================================================================

func dirtyDataScenario(f *factory.DatasetFactory) (engine.Dataset, error) {
	ds, err := f.ParseDataset([]byte(`{
	  "units": [
	    {"id": "5A", "label": "Apartment 5A", "monthly_fee": "45.00"},
	    {"id": "5B", "label": "Apartment 5B", "monthly_fee": "45.00"}
	  ],
	  "owners": [
	    {"id": "o-5a", "unit_id": "5A", "name": "Rosa Prat", "start_month": "2020-01"},
	    {"id": "o-5a-dup", "unit_id": "5A", "name": "Rosa Prat Jr", "start_month": "2022-01"}
	  ],
	  "rates": [
	    {"id": "r-5b-1", "unit_id": "5B", "amount": "40.00", "effective_from": "2024-01", "effective_to": null},
	    {"id": "r-5b-2", "unit_id": "5B", "amount": "45.00", "effective_from": "2024-06", "effective_to": null}
	  ],
	  "creditors": [{"id": "elevator", "name": "Ascensores Norte", "amount_due": "80.00"}],
	  "transactions": [
	    {"id": "tx-unbalanced", "amount": "100.00", "date": "2024-02-05", "unit_id": "5A",
	     "allocations": [{"id": "al-short", "month": "2024-02", "amount": "45.00"}]},
	    {"id": "tx-unallocated", "amount": "45.00", "date": "2024-03-05", "unit_id": "5B"},
	    {"id": "tx-future", "amount": "45.00", "date": "2099-01-05", "unit_id": "5B",
	     "allocations": [{"id": "al-future", "month": "2099-01", "amount": "45.00"}]},
	    {"id": "tx-ghost-extra", "amount": "55.00", "date": "2024-04-05", "unit_id": "5A",
	     "allocations": [
	       {"id": "al-base", "month": "2024-04", "amount": "45.00"},
	       {"id": "al-ghost-extra", "month": "2024-04", "amount": "10.00", "extra_charge_id": "does-not-exist"}
	     ]},
	    {"id": "tx-elevator", "amount": "-80.00", "date": "2024-01-31", "creditor_id": "elevator",
	     "allocations": [{"id": "al-elevator", "month": "2024-01", "amount": "80.00"}]}
	  ],
	  "allocations": [
	    {"id": "al-orphan", "transaction_id": "tx-deleted", "month": "2024-01", "amount": "45.00"}
	  ]
	}`))
	if err != nil {
		return ds, err
	}

	b := &scenarioBuilder{ds: ds}
	b.monthlyPayments("5B", "2024-01", "2024-01", "40")
	return b.ds, nil
}

// =============================================================================
// BUILDER
// =============================================================================

// scenarioBuilder appends transactions with deterministic IDs.
type scenarioBuilder struct {
	ds  engine.Dataset
	seq int
}

type allocSpec struct {
	target engine.Target
	amount string
	extra  string
}

func alloc(m engine.Month, amount, extra string) allocSpec {
	return allocSpec{target: engine.MonthTarget(m), amount: amount, extra: extra}
}

func (b *scenarioBuilder) nextID(prefix string) string {
	b.seq++
	return fmt.Sprintf("%s-%03d", prefix, b.seq)
}

func (b *scenarioBuilder) add(ref engine.EntityRef, typ engine.TxType, on time.Time, amount decimal.Decimal, desc string, specs ...allocSpec) {
	txID := engine.TransactionID(b.nextID("tx"))
	b.ds.Transactions = append(b.ds.Transactions, engine.Transaction{
		ID:          txID,
		Amount:      amount,
		Date:        on,
		Type:        typ,
		Ref:         ref,
		Description: desc,
	})
	for _, s := range specs {
		rec := engine.AllocationRecord{
			ID:            engine.AllocationID(b.nextID("al")),
			TransactionID: txID,
			Target:        s.target,
			Amount:        decimal.RequireFromString(s.amount),
		}
		if s.extra != "" {
			id := engine.ExtraChargeID(s.extra)
			rec.ExtraChargeID = &id
		}
		b.ds.Allocations = append(b.ds.Allocations, rec)
	}
}

// payment records a transfer on the 5th of m.
func (b *scenarioBuilder) payment(unit engine.UnitID, m engine.Month, amount string, specs ...allocSpec) {
	on := m.Start().AddDate(0, 0, 4)
	b.add(engine.UnitRef(unit), engine.TxPayment, on, decimal.RequireFromString(amount), "Fee "+m.String(), specs...)
}

// monthlyPayments pays amount against each month from..to.
func (b *scenarioBuilder) monthlyPayments(unit engine.UnitID, from, to, amount string) {
	for m := engine.MustParseMonth(from); !m.After(engine.MustParseMonth(to)); m = m.Next() {
		b.payment(unit, m, amount, alloc(m, amount, ""))
	}
}

// monthlyExpenses pays a creditor on the last day of each month.
func (b *scenarioBuilder) monthlyExpenses(creditor engine.CreditorID, from, to, amount string) {
	for m := engine.MustParseMonth(from); !m.After(engine.MustParseMonth(to)); m = m.Next() {
		on := m.Next().Start().AddDate(0, 0, -1)
		b.add(engine.CreditorRef(creditor), engine.TxExpense, on, decimal.RequireFromString(amount).Neg(),
			"Invoice "+m.String(), alloc(m, amount, ""))
	}
}

func (b *scenarioBuilder) legacyPayment(unit engine.UnitID, date, amount string) {
	on, _ := time.Parse("2006-01-02", date)
	b.add(engine.UnitRef(unit), engine.TxPayment, on, decimal.RequireFromString(amount), "Previous debt",
		allocSpec{target: engine.PrevDebtTarget(), amount: amount})
}
