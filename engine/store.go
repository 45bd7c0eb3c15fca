/*
store.go - Persistence interface for condominium records

PURPOSE:
  Defines the boundary between the engine and the database. The engine
  itself never calls a Store: callers take a Snapshot, hand the Dataset to
  the pure functions, and persist admin edits through the write methods.

SNAPSHOT CONTRACT:
  Snapshot returns a consistent view of every table. Rows that cannot be
  parsed (malformed month, non-numeric amount) are not dropped silently:
  they are returned in Dataset.Rejected and surface in the audit.

ATOMIC WRITES:
  SaveTransaction writes a transaction and replaces its allocations in one
  unit of work. DeleteTransaction removes the allocations with it. Import
  replaces every table at once. SaveRates writes all of its rates or none,
  so closing a superseded rate and opening its successor cannot half-apply.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite with versioned migrations
  - engine/store/memory.go: In-memory for tests and demos

SEE ALSO:
  - dataset.go: what a snapshot contains
  - audit.go: consumes the snapshot
*/
package engine

import (
	"context"
	"time"
)

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// Snapshot returns every record. Slices are copies owned by the caller.
	Snapshot(ctx context.Context) (Dataset, error)

	// Upserts. Rates, owners and extra charges are keyed by their ID.
	SaveUnit(ctx context.Context, u Unit) error
	SaveCreditor(ctx context.Context, c Creditor) error
	SaveOwner(ctx context.Context, o Owner) error
	SaveExtraCharge(ctx context.Context, x ExtraChargeRecord) error

	// SaveRates upserts every rate in one unit of work.
	SaveRates(ctx context.Context, rates ...RateRecord) error

	// SaveTransaction upserts tx and replaces all of its allocations.
	SaveTransaction(ctx context.Context, tx Transaction, allocs []AllocationRecord) error

	// DeleteTransaction removes tx and its allocations.
	// Returns ErrTransactionNotFound when tx does not exist.
	DeleteTransaction(ctx context.Context, id TransactionID) error

	// Import replaces the whole dataset atomically. Rejected is ignored.
	Import(ctx context.Context, ds Dataset) error

	// Reset deletes every record (audit runs included).
	Reset(ctx context.Context) error

	// Audit run history.
	SaveAuditRun(ctx context.Context, run AuditRun) error
	ListAuditRuns(ctx context.Context, limit int) ([]AuditRun, error)

	Close() error
}

// =============================================================================
// AUDIT RUNS
// =============================================================================

type AuditRunStatus string

const (
	AuditRunning   AuditRunStatus = "running"
	AuditCompleted AuditRunStatus = "completed"
	AuditFailed    AuditRunStatus = "failed"
)

// AuditRun records one execution of the audit (scheduled or manual).
type AuditRun struct {
	ID         string         `json:"id"`
	Trigger    string         `json:"trigger"` // "scheduled" | "manual"
	AsOf       Month          `json:"as_of"`
	Status     AuditRunStatus `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Counts     Counts         `json:"counts"`
	Error      string         `json:"error,omitempty"`
}
