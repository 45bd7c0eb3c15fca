/*
Package sqlite provides a SQLite-backed implementation of engine.Store.

PURPOSE:
  Persists the condominium registry (units, creditors, owners), the
  effective-dated charge histories, the bank ledger and the audit run
  history. The engine never touches this package: callers take a
  Snapshot and pass the Dataset to the pure functions.

KEY TABLES:
  units, creditors, owners:      registry
  rate_records, extra_charges:   effective-dated charges
  transactions, allocations:     bank ledger (allocations have no FK so
                                 orphans survive and reach the audit)
  audit_runs:                    scheduler / manual audit history

MONEY & MONTHS:
  Amounts are stored as decimal TEXT, months as YYYY-MM TEXT. A row that
  fails to parse is returned in Dataset.Rejected, never coerced to zero.

MIGRATIONS:
  Versioned SQL files in migrations/, embedded and applied on New() with
  golang-migrate.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WAL mode lets readers proceed
  while a write is in progress.

USAGE:
  store, err := sqlite.New("./condo.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ds, err := store.Snapshot(ctx)

SEE ALSO:
  - engine/store.go: Interface definition
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/condo-ledger/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	dateLayout = "2006-01-02"
	// fixed width so that started_at sorts lexically
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Store implements engine.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ engine.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the embedded migrations. The migrate instance is not
// closed: its sqlite3 driver would close the shared *sql.DB with it.
func (s *Store) migrate() error {
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// REGISTRY
// =============================================================================

func (s *Store) SaveUnit(ctx context.Context, u engine.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveUnit(ctx, s.db, u)
}

func saveUnit(ctx context.Context, db execer, u engine.Unit) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO units (id, label, monthly_fee) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET label = excluded.label, monthly_fee = excluded.monthly_fee
	`, u.ID, u.Label, u.MonthlyFee.String())
	if err != nil {
		return fmt.Errorf("failed to save unit %s: %w", u.ID, err)
	}
	return nil
}

func (s *Store) SaveCreditor(ctx context.Context, c engine.Creditor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveCreditor(ctx, s.db, c)
}

func saveCreditor(ctx context.Context, db execer, c engine.Creditor) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO creditors (id, name, amount_due) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, amount_due = excluded.amount_due
	`, c.ID, c.Name, c.AmountDue.String())
	if err != nil {
		return fmt.Errorf("failed to save creditor %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) SaveOwner(ctx context.Context, o engine.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveOwner(ctx, s.db, o)
}

func saveOwner(ctx context.Context, db execer, o engine.Owner) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO owners (id, unit_id, name, start_month, end_month, previous_debt)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			unit_id = excluded.unit_id,
			name = excluded.name,
			start_month = excluded.start_month,
			end_month = excluded.end_month,
			previous_debt = excluded.previous_debt
	`, o.ID, o.UnitID, o.Name, nullMonth(o.StartMonth), nullMonth(o.EndMonth), o.PreviousDebt.String())
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("owner %s: %w", o.ID, engine.ErrUnitNotFound)
		}
		return fmt.Errorf("failed to save owner %s: %w", o.ID, err)
	}
	return nil
}

// =============================================================================
// EFFECTIVE-DATED CHARGES
// =============================================================================

// SaveRates upserts rates in a single transaction.
func (s *Store) SaveRates(ctx context.Context, rates ...engine.RateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, r := range rates {
		if err := saveRate(ctx, sqlTx, r); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

func saveRate(ctx context.Context, db execer, r engine.RateRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO rate_records (id, entity_kind, entity_id, amount, effective_from, effective_to)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			entity_kind = excluded.entity_kind,
			entity_id = excluded.entity_id,
			amount = excluded.amount,
			effective_from = excluded.effective_from,
			effective_to = excluded.effective_to
	`, r.ID, r.Owner.Kind, r.Owner.ID, r.Amount.String(), r.EffectiveFrom.String(), nullMonth(r.EffectiveTo))
	if err != nil {
		return fmt.Errorf("failed to save rate %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) SaveExtraCharge(ctx context.Context, x engine.ExtraChargeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveExtraCharge(ctx, s.db, x)
}

func saveExtraCharge(ctx context.Context, db execer, x engine.ExtraChargeRecord) error {
	var unit sql.NullString
	if x.UnitID != nil {
		unit = sql.NullString{String: string(*x.UnitID), Valid: true}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO extra_charges (id, description, amount, effective_from, effective_to, unit_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			amount = excluded.amount,
			effective_from = excluded.effective_from,
			effective_to = excluded.effective_to,
			unit_id = excluded.unit_id
	`, x.ID, x.Description, x.Amount.String(), x.EffectiveFrom.String(), nullMonth(x.EffectiveTo), unit)
	if err != nil {
		return fmt.Errorf("failed to save extra charge %s: %w", x.ID, err)
	}
	return nil
}

// =============================================================================
// LEDGER
// =============================================================================

// SaveTransaction upserts tx and replaces its allocations atomically.
func (s *Store) SaveTransaction(ctx context.Context, tx engine.Transaction, allocs []engine.AllocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := saveTransaction(ctx, sqlTx, tx); err != nil {
		return err
	}
	if _, err := sqlTx.ExecContext(ctx, `DELETE FROM allocations WHERE transaction_id = ?`, tx.ID); err != nil {
		return fmt.Errorf("failed to clear allocations of %s: %w", tx.ID, err)
	}
	for _, a := range allocs {
		a.TransactionID = tx.ID
		if err := saveAllocation(ctx, sqlTx, a); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

func saveTransaction(ctx context.Context, db execer, tx engine.Transaction) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO transactions (id, amount, date, tx_type, entity_kind, entity_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			date = excluded.date,
			tx_type = excluded.tx_type,
			entity_kind = excluded.entity_kind,
			entity_id = excluded.entity_id,
			description = excluded.description
	`,
		tx.ID,
		tx.Amount.String(),
		tx.Date.Format(dateLayout),
		tx.Type,
		entityKind(tx.Ref),
		tx.Ref.ID,
		tx.Description,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction %s: %w", tx.ID, err)
	}
	return nil
}

func saveAllocation(ctx context.Context, db execer, a engine.AllocationRecord) error {
	var extra sql.NullString
	if a.ExtraChargeID != nil {
		extra = sql.NullString{String: string(*a.ExtraChargeID), Valid: true}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO allocations (id, transaction_id, target, amount, extra_charge_id)
		VALUES (?, ?, ?, ?, ?)
	`, a.ID, a.TransactionID, a.Target.String(), a.Amount.String(), extra)
	if err != nil {
		return fmt.Errorf("failed to save allocation %s: %w", a.ID, err)
	}
	return nil
}

// DeleteTransaction removes a transaction and its allocations.
func (s *Store) DeleteTransaction(ctx context.Context, id engine.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	res, err := sqlTx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrTransactionNotFound
	}
	if _, err := sqlTx.ExecContext(ctx, `DELETE FROM allocations WHERE transaction_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete allocations of %s: %w", id, err)
	}
	return sqlTx.Commit()
}

// =============================================================================
// BULK: IMPORT / RESET
// =============================================================================

var dataTables = []string{"allocations", "transactions", "extra_charges", "rate_records", "owners", "creditors", "units"}

// Import replaces every record in one transaction.
func (s *Store) Import(ctx context.Context, ds engine.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, table := range dataTables {
		if _, err := sqlTx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	for _, u := range ds.Units {
		if err := saveUnit(ctx, sqlTx, u); err != nil {
			return err
		}
	}
	for _, c := range ds.Creditors {
		if err := saveCreditor(ctx, sqlTx, c); err != nil {
			return err
		}
	}
	for _, o := range ds.Owners {
		if err := saveOwner(ctx, sqlTx, o); err != nil {
			return err
		}
	}
	for _, r := range ds.Rates {
		if err := saveRate(ctx, sqlTx, r); err != nil {
			return err
		}
	}
	for _, x := range ds.ExtraCharges {
		if err := saveExtraCharge(ctx, sqlTx, x); err != nil {
			return err
		}
	}
	for _, tx := range ds.Transactions {
		if err := saveTransaction(ctx, sqlTx, tx); err != nil {
			return err
		}
	}
	for _, a := range ds.Allocations {
		if err := saveAllocation(ctx, sqlTx, a); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range append([]string{"audit_runs"}, dataTables...) {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot reads every table inside one read transaction.
func (s *Store) Snapshot(ctx context.Context) (engine.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return engine.Dataset{}, fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer sqlTx.Rollback()

	var ds engine.Dataset
	loaders := []func(context.Context, *sql.Tx, *engine.Dataset) error{
		loadUnits, loadCreditors, loadOwners, loadRates, loadExtraCharges, loadTransactions, loadAllocations,
	}
	for _, load := range loaders {
		if err := load(ctx, sqlTx, &ds); err != nil {
			return engine.Dataset{}, err
		}
	}
	return ds, nil
}

// rowParser accumulates the first parse failure of a row.
type rowParser struct {
	err error
}

func (p *rowParser) amount(field, s string) decimal.Decimal {
	d, err := engine.ParseAmount(field, s)
	if err != nil && p.err == nil {
		p.err = err
	}
	return d
}

func (p *rowParser) month(s string) engine.Month {
	m, err := engine.ParseMonth(s)
	if err != nil && p.err == nil {
		p.err = err
	}
	return m
}

func (p *rowParser) optMonth(ns sql.NullString) *engine.Month {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	m := p.month(ns.String)
	return &m
}

func reject(ds *engine.Dataset, table, id string, err error) {
	ds.Rejected = append(ds.Rejected, engine.RejectedRecord{Table: table, ID: id, Reason: err.Error()})
}

func loadUnits(ctx context.Context, tx *sql.Tx, ds *engine.Dataset) error {
	rows, err := tx.QueryContext(ctx, `SELECT id, label, monthly_fee FROM units ORDER BY id`)
	if err != nil {
		return fmt.Errorf("failed to load units: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, label, fee string
		if err := rows.Scan(&id, &label, &fee); err != nil {
			return err
		}
		var p rowParser
		u := engine.Unit{ID: engine.UnitID(id), Label: label, MonthlyFee: p.amount("monthly_fee", fee)}
		if p.err != nil {
			reject(ds, "units", id, p.err)
			continue
		}
		ds.Units = append(ds.Units, u)
	}
	return rows.Err()
}

func loadCreditors(ctx context.Context, tx *sql.Tx, ds *engine.Dataset) error {
	rows, err := tx.QueryContext(ctx, `SELECT id, name, amount_due FROM creditors ORDER BY id`)
	if err != nil {
		return fmt.Errorf("failed to load creditors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, name, due string
		if err := rows.Scan(&id, &name, &due); err != nil {
			return err
		}
		var p rowParser
		c := engine.Creditor{ID: engine.CreditorID(id), Name: name, AmountDue: p.amount("amount_due", due)}
		if p.err != nil {
			reject(ds, "creditors", id, p.err)
			continue
		}
		ds.Creditors = append(ds.Creditors, c)
	}
	return rows.Err()
}

func loadOwners(ctx context.Context, tx *sql.Tx, ds *engine.Dataset) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, unit_id, name, start_month, end_month, previous_debt
		FROM owners ORDER BY unit_id, id
	`)
	if err != nil {
		return fmt.Errorf("failed to load owners: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, unit, name, debt string
		var start, end sql.NullString
		if err := rows.Scan(&id, &unit, &name, &start, &end, &debt); err != nil {
			return err
		}
		var p rowParser
		o := engine.Owner{
			ID:           id,
			UnitID:       engine.UnitID(unit),
			Name:         name,
			StartMonth:   p.optMonth(start),
			EndMonth:     p.optMonth(end),
			PreviousDebt: p.amount("previous_debt", debt),
		}
		if p.err != nil {
			reject(ds, "owners", id, p.err)
			continue
		}
		ds.Owners = append(ds.Owners, o)
	}
	return rows.Err()
}

func loadRates(ctx context.Context, tx *sql.Tx, ds *engine.Dataset) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, entity_kind, entity_id, amount, effective_from, effective_to
		FROM rate_records ORDER BY rowid
	`)
	if err != nil {
		return fmt.Errorf("failed to load rates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, kind, entity, amount, from string
		var to sql.NullString
		if err := rows.Scan(&id, &kind, &entity, &amount, &from, &to); err != nil {
			return err
		}
		var p rowParser
		r := engine.RateRecord{
			ID:            id,
			Owner:         engine.EntityRef{Kind: engine.EntityKind(kind), ID: entity},
			Amount:        p.amount("amount", amount),
			EffectiveFrom: p.month(from),
			EffectiveTo:   p.optMonth(to),
		}
		if p.err != nil {
			reject(ds, "rate_records", id, p.err)
			continue
		}
		ds.Rates = append(ds.Rates, r)
	}
	return rows.Err()
}

func loadExtraCharges(ctx context.Context, tx *sql.Tx, ds *engine.Dataset) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, description, amount, effective_from, effective_to, unit_id
		FROM extra_charges ORDER BY id
	`)
	if err != nil {
		return fmt.Errorf("failed to load extra charges: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, desc, amount, from string
		var to, unit sql.NullString
		if err := rows.Scan(&id, &desc, &amount, &from, &to, &unit); err != nil {
			return err
		}
		var p rowParser
		x := engine.ExtraChargeRecord{
			ID:            engine.ExtraChargeID(id),
			Description:   desc,
			Amount:        p.amount("amount", amount),
			EffectiveFrom: p.month(from),
			EffectiveTo:   p.optMonth(to),
		}
		if unit.Valid && unit.String != "" {
			u := engine.UnitID(unit.String)
			x.UnitID = &u
		}
		if p.err != nil {
			reject(ds, "extra_charges", id, p.err)
			continue
		}
		ds.ExtraCharges = append(ds.ExtraCharges, x)
	}
	return rows.Err()
}

func loadTransactions(ctx context.Context, tx *sql.Tx, ds *engine.Dataset) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, amount, date, tx_type, entity_kind, entity_id, description
		FROM transactions ORDER BY date, rowid
	`)
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, amount, date, txType, kind, entity, desc string
		if err := rows.Scan(&id, &amount, &date, &txType, &kind, &entity, &desc); err != nil {
			return err
		}
		var p rowParser
		t := engine.Transaction{
			ID:          engine.TransactionID(id),
			Amount:      p.amount("amount", amount),
			Type:        engine.TxType(txType),
			Ref:         engine.EntityRef{Kind: engine.EntityKind(kind), ID: entity},
			Description: desc,
		}
		if t.Ref.Kind == engine.EntityNone {
			t.Ref = engine.NoEntity()
		}
		when, err := time.Parse(dateLayout, date)
		if err != nil && p.err == nil {
			p.err = &engine.ParseError{Field: "date", Value: date, Err: err}
		}
		t.Date = when
		if p.err != nil {
			reject(ds, "transactions", id, p.err)
			continue
		}
		ds.Transactions = append(ds.Transactions, t)
	}
	return rows.Err()
}

func loadAllocations(ctx context.Context, tx *sql.Tx, ds *engine.Dataset) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, transaction_id, target, amount, extra_charge_id
		FROM allocations ORDER BY rowid
	`)
	if err != nil {
		return fmt.Errorf("failed to load allocations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, txID, target, amount string
		var extra sql.NullString
		if err := rows.Scan(&id, &txID, &target, &amount, &extra); err != nil {
			return err
		}
		var p rowParser
		a := engine.AllocationRecord{
			ID:            engine.AllocationID(id),
			TransactionID: engine.TransactionID(txID),
			Amount:        p.amount("amount", amount),
		}
		tgt, err := engine.ParseTarget(target)
		if err != nil && p.err == nil {
			p.err = err
		}
		a.Target = tgt
		if extra.Valid && extra.String != "" {
			x := engine.ExtraChargeID(extra.String)
			a.ExtraChargeID = &x
		}
		if p.err != nil {
			reject(ds, "allocations", id, p.err)
			continue
		}
		ds.Allocations = append(ds.Allocations, a)
	}
	return rows.Err()
}

// =============================================================================
// AUDIT RUNS
// =============================================================================

// SaveAuditRun inserts or updates an audit run.
func (s *Store) SaveAuditRun(ctx context.Context, r engine.AuditRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var finished sql.NullString
	if r.FinishedAt != nil {
		finished = sql.NullString{String: r.FinishedAt.UTC().Format(timeLayout), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_runs (id, source, as_of, status, started_at, finished_at, errors, warnings, infos, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			finished_at = excluded.finished_at,
			errors = excluded.errors,
			warnings = excluded.warnings,
			infos = excluded.infos,
			error = excluded.error
	`,
		r.ID, r.Trigger, r.AsOf.String(), r.Status,
		r.StartedAt.UTC().Format(timeLayout), finished,
		r.Counts.Errors, r.Counts.Warnings, r.Counts.Infos, r.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save audit run %s: %w", r.ID, err)
	}
	return nil
}

// ListAuditRuns returns the most recent runs first; limit <= 0 means all.
func (s *Store) ListAuditRuns(ctx context.Context, limit int) ([]engine.AuditRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, source, as_of, status, started_at, finished_at, errors, warnings, infos, error
		FROM audit_runs ORDER BY started_at DESC
	`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit runs: %w", err)
	}
	defer rows.Close()

	runs := []engine.AuditRun{}
	for rows.Next() {
		var r engine.AuditRun
		var asOf, started string
		var finished sql.NullString
		if err := rows.Scan(&r.ID, &r.Trigger, &asOf, &r.Status, &started, &finished,
			&r.Counts.Errors, &r.Counts.Warnings, &r.Counts.Infos, &r.Error); err != nil {
			return nil, err
		}
		r.AsOf, _ = engine.ParseMonth(asOf)
		r.StartedAt, _ = time.Parse(timeLayout, started)
		if finished.Valid {
			t, _ := time.Parse(timeLayout, finished.String)
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Helper functions

func nullMonth(m *engine.Month) sql.NullString {
	if m == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: m.String(), Valid: true}
}

func entityKind(ref engine.EntityRef) string {
	if ref.IsNone() {
		return string(engine.EntityNone)
	}
	return string(ref.Kind)
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
