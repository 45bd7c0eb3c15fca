/*
handlers.go - HTTP API handlers for the condominium ledger

PURPOSE:
  Exposes the reconciliation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the engine. Every
  read handler takes a fresh Snapshot and runs pure engine functions over
  it; nothing is cached between requests.

ENDPOINTS:
  Units:
    GET    /api/units                   List units (current owner, fee)
    POST   /api/units                   Create or update a unit
    GET    /api/units/{id}              Unit with owners, rates, extras
    POST   /api/units/{id}/owners       Add an ownership period
    POST   /api/units/{id}/rates        Add a base-fee rate (supersedes)
    GET    /api/units/{id}/fees         Charge breakdown (?month=)
    GET    /api/units/{id}/status       Month-by-month status (?year=)
    GET    /api/units/{id}/debt         Debt summary (?as_of=&policy=&include_current=)

  Creditors:
    GET    /api/creditors               List creditors
    POST   /api/creditors               Create or update a creditor
    POST   /api/creditors/{id}/rates    Add a due rate (supersedes)
    GET    /api/creditors/{id}/debt     Unsettled dues (?as_of=&policy=)

  Extra charges:
    GET    /api/extra-charges           List extra charges
    POST   /api/extra-charges           Create or update an extra charge

  Transactions:
    GET    /api/transactions            List (?unit_id=&creditor_id=)
    POST   /api/transactions            Create with allocations (balanced)
    DELETE /api/transactions/{id}       Delete with allocations
    POST   /api/transactions/suggest    Propose an allocation split

  Audit:
    GET    /api/audit                   On-demand audit (?as_of=)
    GET    /api/audit/runs              Recorded runs (?limit=)
    POST   /api/audit/run               Run and record now (?as_of=)

  Data:
    POST   /api/import                  Replace everything with a JSON dataset
    GET    /api/export                  Dump everything as a JSON dataset

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed month/amount/date, invalid range, unknown policy
  - 404: Unit, creditor or transaction not found
  - 422: Allocations don't sum to the transaction amount
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - report.go: Annual report
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/condo-ledger/engine"
	"github.com/warp/condo-ledger/factory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     engine.Store
	Factory   *factory.DatasetFactory
	Scheduler *AuditScheduler
	Logger    *slog.Logger

	// Policy is the debt policy used when a request doesn't name one.
	Policy    engine.DebtPolicy
	FirstYear int

	// Clock returns "now"; tests pin it.
	Clock func() time.Time

	// Track currently loaded scenario
	mu              sync.RWMutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store engine.Store) *Handler {
	return &Handler{
		Store:     store,
		Factory:   factory.NewDatasetFactory(),
		Scheduler: NewAuditScheduler(store, nil, nil),
		Logger:    slog.Default().With("component", "api"),
		Policy:    engine.CarryForward{},
		Clock:     time.Now,
	}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// UNIT HANDLERS
// =============================================================================

// ListUnits returns all units.
func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	current := h.currentMonth()

	dtos := make([]UnitDTO, 0, len(ds.Units))
	for _, u := range ds.Units {
		dtos = append(dtos, unitDTO(ds, u, current))
	}
	writeJSON(w, http.StatusOK, map[string]any{"units": dtos})
}

// GetUnit returns a single unit with its history.
func (h *Handler) GetUnit(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	u, found := ds.Unit(engine.UnitID(chi.URLParam(r, "id")))
	if !found {
		writeError(w, http.StatusNotFound, "Unit not found", nil)
		return
	}

	detail := UnitDetailDTO{
		UnitDTO:      unitDTO(ds, u, h.currentMonth()),
		Owners:       []factory.OwnerJSON{},
		Rates:        []factory.RateJSON{},
		ExtraCharges: []factory.ExtraChargeJSON{},
	}
	for _, o := range ds.OwnersOf(u.ID) {
		detail.Owners = append(detail.Owners, factory.OwnerToJSON(o))
	}
	for _, rate := range ds.RatesFor(engine.UnitRef(u.ID)) {
		detail.Rates = append(detail.Rates, factory.RateToJSON(rate))
	}
	for _, x := range ds.ExtraCharges {
		if x.IsGlobal() || *x.UnitID == u.ID {
			detail.ExtraCharges = append(detail.ExtraCharges, factory.ExtraChargeToJSON(x))
		}
	}
	writeJSON(w, http.StatusOK, detail)
}

// CreateUnit creates or updates a unit.
func (h *Handler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	var req factory.UnitJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	u, err := h.Factory.Unit("unit", req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid unit", err)
		return
	}
	if err := h.Store.SaveUnit(r.Context(), u); err != nil {
		writeDomainError(w, "Failed to save unit", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.UnitToJSON(u))
}

// CreateOwner adds an ownership period to a unit.
// POST /api/units/{id}/owners
func (h *Handler) CreateOwner(w http.ResponseWriter, r *http.Request) {
	var req factory.OwnerJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.UnitID = chi.URLParam(r, "id")

	o, err := h.Factory.Owner("owner", req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid owner", err)
		return
	}
	if o.StartMonth != nil && o.EndMonth != nil && o.EndMonth.Before(*o.StartMonth) {
		writeError(w, http.StatusBadRequest, "Invalid owner", engine.ErrInvalidRange)
		return
	}
	if err := h.Store.SaveOwner(r.Context(), o); err != nil {
		writeDomainError(w, "Failed to save owner", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.OwnerToJSON(o))
}

// CreateUnitRate adds a base-fee rate to a unit.
// POST /api/units/{id}/rates
func (h *Handler) CreateUnitRate(w http.ResponseWriter, r *http.Request) {
	h.createRate(w, r, engine.UnitRef(engine.UnitID(chi.URLParam(r, "id"))))
}

// GetUnitFees returns the itemized charge for one month.
// GET /api/units/{id}/fees?month=YYYY-MM
func (h *Handler) GetUnitFees(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r, "month", h.currentMonth())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}
	ds, ref, ok := h.entity(w, r, engine.EntityUnit)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ds.ScheduleFor(ref).For(month))
}

// GetUnitStatus reconciles every month of a year.
// GET /api/units/{id}/status?year=YYYY
func (h *Handler) GetUnitStatus(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year", h.now().Year())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	ds, ref, ok := h.entity(w, r, engine.EntityUnit)
	if !ok {
		return
	}

	schedule := ds.ScheduleFor(ref)
	allocs := engine.ForEntity(ds.Ledger().Allocations, ref)
	statuses := engine.MonthlyStatus(schedule, allocs, engine.MonthsOfYear(year))

	resp := UnitStatusResponse{
		UnitID:   ref.ID,
		Year:     year,
		Months:   statuses,
		Expected: decimal.Zero,
		Paid:     decimal.Zero,
		Legacy:   engine.ComputeLegacyDebt(ds.OwnersOf(engine.UnitID(ref.ID)), allocs, ref),
	}
	for _, st := range statuses {
		resp.Expected = resp.Expected.Add(st.Expected.Total)
		resp.Paid = resp.Paid.Add(st.Paid)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetUnitDebt returns the debt summary of a unit.
// GET /api/units/{id}/debt?as_of=YYYY-MM&policy=capped&include_current=true
func (h *Handler) GetUnitDebt(w http.ResponseWriter, r *http.Request) {
	h.debt(w, r, engine.EntityUnit)
}

// =============================================================================
// CREDITOR HANDLERS
// =============================================================================

// ListCreditors returns all creditors.
func (h *Handler) ListCreditors(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	current := h.currentMonth()

	dtos := make([]CreditorDTO, 0, len(ds.Creditors))
	for _, c := range ds.Creditors {
		ref := engine.CreditorRef(c.ID)
		dto := CreditorDTO{
			CreditorJSON: factory.CreditorToJSON(c),
			CurrentDue:   ds.ScheduleFor(ref).For(current).Total,
			Rates:        []factory.RateJSON{},
		}
		for _, rate := range ds.RatesFor(ref) {
			dto.Rates = append(dto.Rates, factory.RateToJSON(rate))
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, map[string]any{"creditors": dtos})
}

// CreateCreditor creates or updates a creditor.
func (h *Handler) CreateCreditor(w http.ResponseWriter, r *http.Request) {
	var req factory.CreditorJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	c, err := h.Factory.Creditor("creditor", req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid creditor", err)
		return
	}
	if err := h.Store.SaveCreditor(r.Context(), c); err != nil {
		writeDomainError(w, "Failed to save creditor", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.CreditorToJSON(c))
}

// CreateCreditorRate adds a due rate to a creditor.
// POST /api/creditors/{id}/rates
func (h *Handler) CreateCreditorRate(w http.ResponseWriter, r *http.Request) {
	h.createRate(w, r, engine.CreditorRef(engine.CreditorID(chi.URLParam(r, "id"))))
}

// GetCreditorDebt returns what the building still owes a creditor.
// GET /api/creditors/{id}/debt?as_of=YYYY-MM&policy=capped
func (h *Handler) GetCreditorDebt(w http.ResponseWriter, r *http.Request) {
	h.debt(w, r, engine.EntityCreditor)
}

// =============================================================================
// EXTRA CHARGE HANDLERS
// =============================================================================

// ListExtraCharges returns all extra charges.
func (h *Handler) ListExtraCharges(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	dtos := make([]factory.ExtraChargeJSON, 0, len(ds.ExtraCharges))
	for _, x := range ds.ExtraCharges {
		dtos = append(dtos, factory.ExtraChargeToJSON(x))
	}
	writeJSON(w, http.StatusOK, map[string]any{"extra_charges": dtos})
}

// CreateExtraCharge creates or updates an extra charge.
func (h *Handler) CreateExtraCharge(w http.ResponseWriter, r *http.Request) {
	var req factory.ExtraChargeJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	x, err := h.Factory.ExtraCharge("extra_charge", req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid extra charge", err)
		return
	}
	if !x.Range().Valid() {
		writeError(w, http.StatusBadRequest, "Invalid extra charge", engine.ErrInvalidRange)
		return
	}
	if x.UnitID != nil {
		ds, ok := h.snapshot(w, r)
		if !ok {
			return
		}
		if _, found := ds.Unit(*x.UnitID); !found {
			writeError(w, http.StatusNotFound, "Unit not found", engine.ErrUnitNotFound)
			return
		}
	}
	if err := h.Store.SaveExtraCharge(r.Context(), x); err != nil {
		writeDomainError(w, "Failed to save extra charge", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.ExtraChargeToJSON(x))
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ListTransactions returns transactions with their allocations, oldest first.
// GET /api/transactions?unit_id=A&creditor_id=cleaning
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	unitID := r.URL.Query().Get("unit_id")
	creditorID := r.URL.Query().Get("creditor_id")

	byTx := make(map[engine.TransactionID][]engine.AllocationRecord)
	for _, a := range ds.Allocations {
		byTx[a.TransactionID] = append(byTx[a.TransactionID], a)
	}

	txs := append([]engine.Transaction(nil), ds.Transactions...)
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.Before(txs[j].Date) })

	dtos := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		if unitID != "" && tx.Ref != engine.UnitRef(engine.UnitID(unitID)) {
			continue
		}
		if creditorID != "" && tx.Ref != engine.CreditorRef(engine.CreditorID(creditorID)) {
			continue
		}
		recs := byTx[tx.ID]
		dtos = append(dtos, TransactionDTO{
			TransactionJSON: factory.TransactionToJSON(tx, recs),
			Balance:         engine.ReconcileRecords(tx, recs),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": dtos})
}

// CreateTransaction stores a transaction and replaces its allocations.
// Allocations must sum to |amount| unless allow_unbalanced is set.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	tx, recs, err := h.Factory.Transaction("transaction", req.TransactionJSON)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction", err)
		return
	}

	ds, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	if err := checkEntity(ds, tx.Ref); err != nil {
		writeDomainError(w, "Unknown entity", err)
		return
	}
	for _, rec := range recs {
		if rec.ExtraChargeID != nil && !hasExtraCharge(ds, *rec.ExtraChargeID) {
			writeError(w, http.StatusBadRequest, "Unknown extra charge",
				fmt.Errorf("allocation %s references extra charge %s", rec.ID, *rec.ExtraChargeID))
			return
		}
	}

	balance := engine.ReconcileRecords(tx, recs)
	if !balance.IsBalanced && !req.AllowUnbalanced {
		unbalanced := &engine.UnbalancedError{
			TransactionID: tx.ID,
			Amount:        tx.Amount,
			Allocated:     balance.AllocatedSum,
			Diff:          balance.Diff,
		}
		writeJSON(w, http.StatusUnprocessableEntity, UnbalancedResponse{Error: unbalanced.Error(), Balance: balance})
		return
	}

	if err := h.Store.SaveTransaction(r.Context(), tx, recs); err != nil {
		writeDomainError(w, "Failed to save transaction", err)
		return
	}
	h.Logger.InfoContext(r.Context(), "Transaction saved",
		"transaction_id", tx.ID, "entity", tx.Ref.String(), "allocations", len(recs), "balanced", balance.IsBalanced)

	writeJSON(w, http.StatusCreated, TransactionDTO{
		TransactionJSON: factory.TransactionToJSON(tx, recs),
		Balance:         balance,
	})
}

// DeleteTransaction removes a transaction and its allocations.
// DELETE /api/transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := engine.TransactionID(chi.URLParam(r, "id"))
	if err := h.Store.DeleteTransaction(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "transaction_id": id})
}

// SuggestAllocations proposes how a payment should be split: legacy debt
// first, then the oldest outstanding months.
// POST /api/transactions/suggest
func (h *Handler) SuggestAllocations(w http.ResponseWriter, r *http.Request) {
	var req SuggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := engine.ParseAmount("amount", string(req.Amount))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	asOf := h.currentMonth()
	if req.AsOf != "" {
		if asOf, err = engine.ParseMonth(req.AsOf); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of", err)
			return
		}
	}

	ds, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	ref := engine.UnitRef(engine.UnitID(req.UnitID))
	if err := checkEntity(ds, ref); err != nil {
		writeDomainError(w, "Unknown unit", err)
		return
	}

	in := ds.DebtInput(ref, asOf, h.FirstYear)
	statuses := engine.MonthlyStatus(in.Schedule, in.Allocations, outstandingWindow(in))
	legacy := decimal.Zero
	if req.IncludeLegacy == nil || *req.IncludeLegacy {
		legacy = engine.ComputeLegacyDebt(in.Owners, in.Allocations, ref).Remaining
	}

	writeJSON(w, http.StatusOK, engine.SuggestAllocations(engine.SuggestRequest{
		Amount:         amount,
		Statuses:       statuses,
		Legacy:         legacy,
		CarryRemainder: req.CarryRemainder,
	}))
}

// outstandingWindow returns every month from the first evaluated year
// through AsOf.
func outstandingWindow(in engine.DebtInput) []engine.Month {
	start := engine.NewMonth(in.AsOf.Year(), time.January)
	if years := engine.EvaluationYears(in); len(years) > 0 {
		start = engine.NewMonth(years[0], time.January)
	}
	var months []engine.Month
	for m := start; !m.After(in.AsOf); m = m.Next() {
		months = append(months, m)
	}
	return months
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

// GetAudit runs the audit without recording it.
// GET /api/audit?as_of=YYYY-MM
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	asOf, err := monthParam(r, "as_of", h.currentMonth())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of", err)
		return
	}
	ds, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	result := engine.AuditOptions{AsOf: asOf, Now: h.now(), FirstYear: h.FirstYear}.Run(ds)
	writeJSON(w, http.StatusOK, auditResponse(result))
}

// ListAuditRuns returns recorded audit runs, newest first.
// GET /api/audit/runs?limit=20
func (h *Handler) ListAuditRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 20)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}
	runs, err := h.Store.ListAuditRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list audit runs", err)
		return
	}
	if runs == nil {
		runs = []engine.AuditRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// RunAudit runs the audit now and records it.
// POST /api/audit/run?as_of=YYYY-MM
func (h *Handler) RunAudit(w http.ResponseWriter, r *http.Request) {
	asOf, err := monthParam(r, "as_of", engine.Month{})
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of", err)
		return
	}
	run, result := h.Scheduler.RunNow(r.Context(), "manual", asOf)
	if result == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"run": run})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "audit": auditResponse(*result)})
}

func auditResponse(result engine.AuditResult) AuditResponse {
	return AuditResponse{
		AsOf:     result.AsOf,
		Errors:   nonNil(result.Report.Errors),
		Warnings: nonNil(result.Report.Warnings),
		Infos:    nonNil(result.Report.Infos),
		Summary:  result.Summary,
	}
}

func nonNil(fs []engine.Finding) []engine.Finding {
	if fs == nil {
		return []engine.Finding{}
	}
	return fs
}

// =============================================================================
// IMPORT / EXPORT
// =============================================================================

// Import replaces every record with a JSON dataset.
// POST /api/import
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	ds, err := h.Factory.Decode(r.Body)
	if err != nil {
		if factory.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "Invalid dataset", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to read dataset", err)
		return
	}
	if err := h.Store.Import(r.Context(), ds); err != nil {
		if engine.IsNotFound(err) {
			writeError(w, http.StatusBadRequest, "Invalid dataset", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to import dataset", err)
		return
	}
	h.setCurrentScenario("")
	h.Logger.InfoContext(r.Context(), "Dataset imported",
		"units", len(ds.Units), "transactions", len(ds.Transactions), "allocations", len(ds.Allocations))

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "imported",
		"units":        len(ds.Units),
		"creditors":    len(ds.Creditors),
		"transactions": len(ds.Transactions),
		"allocations":  len(ds.Allocations),
	})
}

// Export dumps every record in the import format.
// GET /api/export
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.Factory.ToJSON(ds))
}

// =============================================================================
// SHARED HANDLER LOGIC
// =============================================================================

func (h *Handler) createRate(w http.ResponseWriter, r *http.Request, ref engine.EntityRef) {
	var req RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rj := factory.RateJSON{ID: req.ID, Amount: req.Amount, EffectiveFrom: req.EffectiveFrom, EffectiveTo: req.EffectiveTo}
	if ref.Kind == engine.EntityUnit {
		rj.UnitID = &ref.ID
	} else {
		rj.CreditorID = &ref.ID
	}
	rate, err := h.Factory.Rate("rate", rj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rate", err)
		return
	}
	if !rate.Range().Valid() {
		writeError(w, http.StatusBadRequest, "Invalid rate", engine.ErrInvalidRange)
		return
	}

	ds, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	if err := checkEntity(ds, ref); err != nil {
		writeDomainError(w, "Unknown entity", err)
		return
	}

	closed := engine.Supersede(ds.RatesFor(ref), rate)
	if err := h.Store.SaveRates(r.Context(), append(closed, rate)...); err != nil {
		writeDomainError(w, "Failed to save rate", err)
		return
	}

	resp := RateResponse{Rate: factory.RateToJSON(rate), Superseded: []factory.RateJSON{}}
	for _, old := range closed {
		resp.Superseded = append(resp.Superseded, factory.RateToJSON(old))
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) debt(w http.ResponseWriter, r *http.Request, kind engine.EntityKind) {
	asOf, err := monthParam(r, "as_of", h.currentMonth())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of", err)
		return
	}
	policy, err := h.policyParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid policy", err)
		return
	}
	includeCurrent, err := boolParam(r, "include_current", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid include_current", err)
		return
	}

	ds, ref, ok := h.entity(w, r, kind)
	if !ok {
		return
	}
	acc := engine.Accumulator{Policy: policy, IncludeCurrentYear: includeCurrent}
	writeJSON(w, http.StatusOK, acc.Compute(ds.DebtInput(ref, asOf, h.FirstYear)))
}

// entity loads a snapshot and resolves the {id} URL parameter, writing 404
// when it doesn't exist.
func (h *Handler) entity(w http.ResponseWriter, r *http.Request, kind engine.EntityKind) (engine.Dataset, engine.EntityRef, bool) {
	ds, ok := h.snapshot(w, r)
	if !ok {
		return ds, engine.EntityRef{}, false
	}
	ref := engine.EntityRef{Kind: kind, ID: chi.URLParam(r, "id")}
	if err := checkEntity(ds, ref); err != nil {
		writeDomainError(w, "Not found", err)
		return ds, ref, false
	}
	return ds, ref, true
}

func checkEntity(ds engine.Dataset, ref engine.EntityRef) error {
	switch ref.Kind {
	case engine.EntityUnit:
		if _, ok := ds.Unit(engine.UnitID(ref.ID)); !ok {
			return fmt.Errorf("unit %s: %w", ref.ID, engine.ErrUnitNotFound)
		}
	case engine.EntityCreditor:
		if _, ok := ds.Creditor(engine.CreditorID(ref.ID)); !ok {
			return fmt.Errorf("creditor %s: %w", ref.ID, engine.ErrCreditorNotFound)
		}
	}
	return nil
}

func hasExtraCharge(ds engine.Dataset, id engine.ExtraChargeID) bool {
	for _, x := range ds.ExtraCharges {
		if x.ID == id {
			return true
		}
	}
	return false
}

func unitDTO(ds engine.Dataset, u engine.Unit, current engine.Month) UnitDTO {
	dto := UnitDTO{
		UnitJSON:   factory.UnitToJSON(u),
		CurrentFee: ds.ScheduleFor(engine.UnitRef(u.ID)).For(current).Total,
	}
	if o, ok := ds.CurrentOwner(u.ID); ok {
		oj := factory.OwnerToJSON(o)
		dto.CurrentOwner = &oj
	}
	return dto
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (engine.Dataset, bool) {
	ds, err := h.Store.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load data", err)
		return engine.Dataset{}, false
	}
	return ds, true
}

func (h *Handler) now() time.Time {
	if h.Clock == nil {
		return time.Now()
	}
	return h.Clock()
}

func (h *Handler) currentMonth() engine.Month { return engine.MonthOf(h.now()) }

func (h *Handler) policyParam(r *http.Request) (engine.DebtPolicy, error) {
	name := r.URL.Query().Get("policy")
	if name == "" && h.Policy != nil {
		return h.Policy, nil
	}
	return engine.ParsePolicy(name)
}

// =============================================================================
// PARAMS & RESPONSES
// =============================================================================

func monthParam(r *http.Request, name string, def engine.Month) (engine.Month, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	return engine.ParseMonth(s)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s %q: not a number", name, s)
	}
	return v, nil
}

func boolParam(r *http.Request, name string, def bool) (bool, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	return strconv.ParseBool(s)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the error kind.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, engine.ErrUnbalancedAllocations):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case factory.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
