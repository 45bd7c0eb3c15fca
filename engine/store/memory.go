// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/condo-ledger/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	data engine.Dataset
	runs []engine.AuditRun
}

var _ engine.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{}
}

// NewMemoryFrom returns a store preloaded with ds.
func NewMemoryFrom(ds engine.Dataset) *Memory {
	m := NewMemory()
	m.data = clone(ds)
	return m
}

func (m *Memory) Snapshot(_ context.Context) (engine.Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.data), nil
}

func (m *Memory) SaveUnit(_ context.Context, u engine.Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Units = upsert(m.data.Units, u, func(x engine.Unit) bool { return x.ID == u.ID })
	return nil
}

func (m *Memory) SaveCreditor(_ context.Context, c engine.Creditor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Creditors = upsert(m.data.Creditors, c, func(x engine.Creditor) bool { return x.ID == c.ID })
	return nil
}

func (m *Memory) SaveOwner(_ context.Context, o engine.Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasUnitLocked(o.UnitID) {
		return engine.ErrUnitNotFound
	}
	m.data.Owners = upsert(m.data.Owners, o, func(x engine.Owner) bool { return x.ID == o.ID })
	return nil
}

func (m *Memory) SaveRates(_ context.Context, rates ...engine.RateRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rates {
		m.data.Rates = upsert(m.data.Rates, r, func(x engine.RateRecord) bool { return x.ID == r.ID })
	}
	return nil
}

func (m *Memory) SaveExtraCharge(_ context.Context, x engine.ExtraChargeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.ExtraCharges = upsert(m.data.ExtraCharges, x, func(e engine.ExtraChargeRecord) bool { return e.ID == x.ID })
	return nil
}

// SaveTransaction upserts tx and replaces its allocations in one step.
func (m *Memory) SaveTransaction(_ context.Context, tx engine.Transaction, allocs []engine.AllocationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Transactions = upsert(m.data.Transactions, tx, func(x engine.Transaction) bool { return x.ID == tx.ID })
	m.data.Allocations = m.withoutAllocationsLocked(tx.ID)
	for _, a := range allocs {
		a.TransactionID = tx.ID
		m.data.Allocations = append(m.data.Allocations, a)
	}
	return nil
}

func (m *Memory) DeleteTransaction(_ context.Context, id engine.TransactionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := len(m.data.Transactions)
	for j, tx := range m.data.Transactions {
		if tx.ID == id {
			i = j
			break
		}
	}
	if i == len(m.data.Transactions) {
		return engine.ErrTransactionNotFound
	}
	m.data.Transactions = append(m.data.Transactions[:i:i], m.data.Transactions[i+1:]...)
	m.data.Allocations = m.withoutAllocationsLocked(id)
	return nil
}

func (m *Memory) Import(_ context.Context, ds engine.Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range ds.Owners {
		if _, ok := ds.Unit(o.UnitID); !ok {
			return fmt.Errorf("owner %s: %w", o.ID, engine.ErrUnitNotFound)
		}
	}
	m.data = clone(ds)
	m.data.Rejected = nil
	return nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = engine.Dataset{}
	m.runs = nil
	return nil
}

func (m *Memory) SaveAuditRun(_ context.Context, run engine.AuditRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = upsert(m.runs, run, func(x engine.AuditRun) bool { return x.ID == run.ID })
	return nil
}

// ListAuditRuns returns the most recent runs first.
func (m *Memory) ListAuditRuns(_ context.Context, limit int) ([]engine.AuditRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := append([]engine.AuditRun{}, m.runs...)
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *Memory) Close() error { return nil }

// =============================================================================
// HELPERS
// =============================================================================

func (m *Memory) hasUnitLocked(id engine.UnitID) bool {
	_, ok := m.data.Unit(id)
	return ok
}

func (m *Memory) withoutAllocationsLocked(id engine.TransactionID) []engine.AllocationRecord {
	kept := make([]engine.AllocationRecord, 0, len(m.data.Allocations))
	for _, a := range m.data.Allocations {
		if a.TransactionID != id {
			kept = append(kept, a)
		}
	}
	return kept
}

func upsert[T any](items []T, item T, match func(T) bool) []T {
	for i := range items {
		if match(items[i]) {
			items[i] = item
			return items
		}
	}
	return append(items, item)
}

func clone(ds engine.Dataset) engine.Dataset {
	return engine.Dataset{
		Units:        append([]engine.Unit(nil), ds.Units...),
		Creditors:    append([]engine.Creditor(nil), ds.Creditors...),
		Owners:       append([]engine.Owner(nil), ds.Owners...),
		Rates:        append([]engine.RateRecord(nil), ds.Rates...),
		ExtraCharges: append([]engine.ExtraChargeRecord(nil), ds.ExtraCharges...),
		Transactions: append([]engine.Transaction(nil), ds.Transactions...),
		Allocations:  append([]engine.AllocationRecord(nil), ds.Allocations...),
		Rejected:     append([]engine.RejectedRecord(nil), ds.Rejected...),
	}
}
