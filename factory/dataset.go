/*
Package factory provides JSON to Go dataset conversion.

PURPOSE:
  Converts JSON condominium datasets (exports, fixtures, API bodies) into
  engine records. This is the parsing boundary: malformed months, dates
  and amounts fail here with a path-qualified error instead of being
  coerced to zero and silently corrupting every sum downstream.

  Data-integrity problems (overlapping rates, orphan allocations, invalid
  ranges) are NOT rejected here. They load as-is and are reported by the
  audit.

JSON SCHEMA:
  {
    "units":     [{"id": "A", "label": "1A", "monthly_fee": "45.00"}],
    "creditors": [{"id": "cleaning", "name": "Cleaning Co", "amount_due": 200}],
    "owners": [
      {"id": "o1", "unit_id": "A", "name": "Ana",
       "start_month": "2020-01", "end_month": null, "previous_debt": "1000"}
    ],
    "rates": [
      {"id": "r1", "unit_id": "A", "amount": "37.50",
       "effective_from": "2024-01", "effective_to": "2024-05"}
    ],
    "extra_charges": [
      {"id": "roof", "description": "Roof repair", "amount": 10,
       "effective_from": "2024-01", "unit_id": null}
    ],
    "transactions": [
      {"id": "t1", "amount": 55, "date": "2024-01-05", "type": "payment",
       "unit_id": "A", "description": "Bank transfer",
       "allocations": [
         {"month": "2024-01", "amount": 45},
         {"month": "2024-01", "amount": 10, "extra_charge_id": "roof"}
       ]}
    ],
    "allocations": [
      {"id": "a9", "transaction_id": "t1", "month": "PREV-DEBT", "amount": 0}
    ]
  }

  Amounts may be JSON numbers or strings. Allocations may be nested under
  their transaction or listed flat with a transaction_id; both end up in
  the same table. Missing transaction and allocation IDs are generated.

KEY FEATURES:
  - Fail-fast, path-qualified errors ("transactions[2].allocations[0].month")
  - Exactly-one-of unit_id / creditor_id for rates
  - Duplicate IDs within a table are rejected
  - ToJSON emits the flat form (allocations listed once, top level)

USAGE:
  factory := NewDatasetFactory()
  ds, err := factory.ParseDataset(data)
  if errors.Is(err, engine.ErrInvalidMonth) {
      // 400 Bad Request
  }

SEE ALSO:
  - engine/dataset.go: Dataset type definition
  - api/scenarios.go: Demo datasets built from this schema
*/
package factory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/condo-ledger/engine"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrAmbiguousEntity is returned when a record names both a unit and a creditor.
	ErrAmbiguousEntity = errors.New("only one of unit_id or creditor_id may be set")

	// ErrMissingEntity is returned when a rate names neither a unit nor a creditor.
	ErrMissingEntity = errors.New("one of unit_id or creditor_id is required")

	// ErrMissingField is returned when a required field is empty.
	ErrMissingField = errors.New("required field missing")

	// ErrDuplicateID is returned when two records of one table share an ID.
	ErrDuplicateID = errors.New("duplicate id")
)

// FieldError locates a parsing failure inside the document.
type FieldError struct {
	Path string
	Err  error
}

func (e *FieldError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e *FieldError) Unwrap() error { return e.Err }

// IsClientError reports errors caused by the document rather than the server.
// A truncated or empty document counts.
func IsClientError(err error) bool {
	var fe *FieldError
	var se *json.SyntaxError
	var te *json.UnmarshalTypeError
	switch {
	case errors.As(err, &fe), errors.As(err, &se), errors.As(err, &te):
		return true
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return true
	}
	return engine.IsClientError(err)
}

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// Amount accepts a JSON number or a JSON string. Parsing is deferred so the
// error can name the field it came from.
type Amount string

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(strings.TrimSpace(s))
		return nil
	}
	*a = Amount(b)
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) { return json.Marshal(string(a)) }

// DatasetJSON is the JSON representation of a full dataset.
type DatasetJSON struct {
	Units        []UnitJSON        `json:"units"`
	Creditors    []CreditorJSON    `json:"creditors"`
	Owners       []OwnerJSON       `json:"owners"`
	Rates        []RateJSON        `json:"rates"`
	ExtraCharges []ExtraChargeJSON `json:"extra_charges"`
	Transactions []TransactionJSON `json:"transactions"`
	Allocations  []AllocationJSON  `json:"allocations,omitempty"`
}

type UnitJSON struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	MonthlyFee Amount `json:"monthly_fee"`
}

type CreditorJSON struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AmountDue Amount `json:"amount_due"`
}

type OwnerJSON struct {
	ID           string  `json:"id"`
	UnitID       string  `json:"unit_id"`
	Name         string  `json:"name"`
	StartMonth   *string `json:"start_month"`
	EndMonth     *string `json:"end_month"`
	PreviousDebt Amount  `json:"previous_debt"`
}

// RateJSON is one base-fee (unit_id) or due (creditor_id) history entry.
type RateJSON struct {
	ID            string  `json:"id"`
	UnitID        *string `json:"unit_id,omitempty"`
	CreditorID    *string `json:"creditor_id,omitempty"`
	Amount        Amount  `json:"amount"`
	EffectiveFrom string  `json:"effective_from"`
	EffectiveTo   *string `json:"effective_to"`
}

type ExtraChargeJSON struct {
	ID            string  `json:"id"`
	Description   string  `json:"description"`
	Amount        Amount  `json:"amount"`
	EffectiveFrom string  `json:"effective_from"`
	EffectiveTo   *string `json:"effective_to"`
	UnitID        *string `json:"unit_id"`
}

type TransactionJSON struct {
	ID          string           `json:"id"`
	Amount      Amount           `json:"amount"`
	Date        string           `json:"date"`
	Type        string           `json:"type,omitempty"`
	UnitID      *string          `json:"unit_id,omitempty"`
	CreditorID  *string          `json:"creditor_id,omitempty"`
	Description string           `json:"description,omitempty"`
	Allocations []AllocationJSON `json:"allocations,omitempty"`
}

// AllocationJSON carries "PREV-DEBT" in Month for legacy debt payments.
type AllocationJSON struct {
	ID            string  `json:"id,omitempty"`
	TransactionID string  `json:"transaction_id,omitempty"`
	Month         string  `json:"month"`
	Amount        Amount  `json:"amount"`
	ExtraChargeID *string `json:"extra_charge_id,omitempty"`
}

// =============================================================================
// DATASET FACTORY
// =============================================================================

// DatasetFactory converts JSON datasets to engine records.
type DatasetFactory struct {
	// NewID generates IDs for records that arrive without one.
	NewID func() string
}

// NewDatasetFactory creates a factory generating UUIDs for missing IDs.
func NewDatasetFactory() *DatasetFactory {
	return &DatasetFactory{NewID: uuid.NewString}
}

// ParseDataset parses a JSON document into a Dataset.
func (f *DatasetFactory) ParseDataset(data []byte) (engine.Dataset, error) {
	return f.Decode(bytes.NewReader(data))
}

// Decode reads one JSON document from r. Unknown fields are rejected.
func (f *DatasetFactory) Decode(r io.Reader) (engine.Dataset, error) {
	var dj DatasetJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&dj); err != nil {
		return engine.Dataset{}, fmt.Errorf("failed to parse dataset JSON: %w", err)
	}
	return f.FromJSON(dj)
}

// FromJSON converts DatasetJSON to an engine.Dataset.
func (f *DatasetFactory) FromJSON(dj DatasetJSON) (engine.Dataset, error) {
	var ds engine.Dataset
	seen := newIDSet()

	for i, uj := range dj.Units {
		u, err := f.Unit(fmt.Sprintf("units[%d]", i), uj)
		if err != nil {
			return engine.Dataset{}, err
		}
		if err := seen.add("units", i, string(u.ID)); err != nil {
			return engine.Dataset{}, err
		}
		ds.Units = append(ds.Units, u)
	}

	for i, cj := range dj.Creditors {
		c, err := f.Creditor(fmt.Sprintf("creditors[%d]", i), cj)
		if err != nil {
			return engine.Dataset{}, err
		}
		if err := seen.add("creditors", i, string(c.ID)); err != nil {
			return engine.Dataset{}, err
		}
		ds.Creditors = append(ds.Creditors, c)
	}

	for i, oj := range dj.Owners {
		o, err := f.Owner(fmt.Sprintf("owners[%d]", i), oj)
		if err != nil {
			return engine.Dataset{}, err
		}
		if err := seen.add("owners", i, o.ID); err != nil {
			return engine.Dataset{}, err
		}
		ds.Owners = append(ds.Owners, o)
	}

	for i, rj := range dj.Rates {
		r, err := f.Rate(fmt.Sprintf("rates[%d]", i), rj)
		if err != nil {
			return engine.Dataset{}, err
		}
		if err := seen.add("rates", i, r.ID); err != nil {
			return engine.Dataset{}, err
		}
		ds.Rates = append(ds.Rates, r)
	}

	for i, xj := range dj.ExtraCharges {
		x, err := f.ExtraCharge(fmt.Sprintf("extra_charges[%d]", i), xj)
		if err != nil {
			return engine.Dataset{}, err
		}
		if err := seen.add("extra_charges", i, string(x.ID)); err != nil {
			return engine.Dataset{}, err
		}
		ds.ExtraCharges = append(ds.ExtraCharges, x)
	}

	for i, tj := range dj.Transactions {
		path := fmt.Sprintf("transactions[%d]", i)
		tx, recs, err := f.Transaction(path, tj)
		if err != nil {
			return engine.Dataset{}, err
		}
		if err := seen.add("transactions", i, string(tx.ID)); err != nil {
			return engine.Dataset{}, err
		}
		for j, rec := range recs {
			if err := seen.addPath("allocations", fmt.Sprintf("%s.allocations[%d]", path, j), string(rec.ID)); err != nil {
				return engine.Dataset{}, err
			}
		}
		ds.Transactions = append(ds.Transactions, tx)
		ds.Allocations = append(ds.Allocations, recs...)
	}

	for i, aj := range dj.Allocations {
		path := fmt.Sprintf("allocations[%d]", i)
		if aj.TransactionID == "" {
			return engine.Dataset{}, &FieldError{Path: path + ".transaction_id", Err: ErrMissingField}
		}
		rec, err := f.Allocation(path, engine.TransactionID(aj.TransactionID), aj)
		if err != nil {
			return engine.Dataset{}, err
		}
		if err := seen.addPath("allocations", path, string(rec.ID)); err != nil {
			return engine.Dataset{}, err
		}
		ds.Allocations = append(ds.Allocations, rec)
	}

	return ds, nil
}

// =============================================================================
// RECORD CONVERTERS - shared with the API write endpoints
// =============================================================================

func (f *DatasetFactory) Unit(path string, uj UnitJSON) (engine.Unit, error) {
	if uj.ID == "" {
		return engine.Unit{}, &FieldError{Path: path + ".id", Err: ErrMissingField}
	}
	fee, err := amountOrZero(path+".monthly_fee", uj.MonthlyFee)
	if err != nil {
		return engine.Unit{}, err
	}
	return engine.Unit{ID: engine.UnitID(uj.ID), Label: uj.Label, MonthlyFee: fee}, nil
}

func (f *DatasetFactory) Creditor(path string, cj CreditorJSON) (engine.Creditor, error) {
	if cj.ID == "" {
		return engine.Creditor{}, &FieldError{Path: path + ".id", Err: ErrMissingField}
	}
	due, err := amountOrZero(path+".amount_due", cj.AmountDue)
	if err != nil {
		return engine.Creditor{}, err
	}
	return engine.Creditor{ID: engine.CreditorID(cj.ID), Name: cj.Name, AmountDue: due}, nil
}

func (f *DatasetFactory) Owner(path string, oj OwnerJSON) (engine.Owner, error) {
	if oj.UnitID == "" {
		return engine.Owner{}, &FieldError{Path: path + ".unit_id", Err: ErrMissingField}
	}
	start, err := optMonth(path+".start_month", oj.StartMonth)
	if err != nil {
		return engine.Owner{}, err
	}
	end, err := optMonth(path+".end_month", oj.EndMonth)
	if err != nil {
		return engine.Owner{}, err
	}
	debt, err := amountOrZero(path+".previous_debt", oj.PreviousDebt)
	if err != nil {
		return engine.Owner{}, err
	}
	return engine.Owner{
		ID:           f.idOr(oj.ID),
		UnitID:       engine.UnitID(oj.UnitID),
		Name:         oj.Name,
		StartMonth:   start,
		EndMonth:     end,
		PreviousDebt: debt,
	}, nil
}

func (f *DatasetFactory) Rate(path string, rj RateJSON) (engine.RateRecord, error) {
	ref, err := entityRef(path, rj.UnitID, rj.CreditorID)
	if err != nil {
		return engine.RateRecord{}, err
	}
	if ref.IsNone() {
		return engine.RateRecord{}, &FieldError{Path: path, Err: ErrMissingEntity}
	}
	amount, err := requiredAmount(path+".amount", rj.Amount)
	if err != nil {
		return engine.RateRecord{}, err
	}
	from, err := month(path+".effective_from", rj.EffectiveFrom)
	if err != nil {
		return engine.RateRecord{}, err
	}
	to, err := optMonth(path+".effective_to", rj.EffectiveTo)
	if err != nil {
		return engine.RateRecord{}, err
	}
	return engine.RateRecord{
		ID:            f.idOr(rj.ID),
		Owner:         ref,
		Amount:        amount,
		EffectiveFrom: from,
		EffectiveTo:   to,
	}, nil
}

func (f *DatasetFactory) ExtraCharge(path string, xj ExtraChargeJSON) (engine.ExtraChargeRecord, error) {
	amount, err := requiredAmount(path+".amount", xj.Amount)
	if err != nil {
		return engine.ExtraChargeRecord{}, err
	}
	from, err := month(path+".effective_from", xj.EffectiveFrom)
	if err != nil {
		return engine.ExtraChargeRecord{}, err
	}
	to, err := optMonth(path+".effective_to", xj.EffectiveTo)
	if err != nil {
		return engine.ExtraChargeRecord{}, err
	}
	x := engine.ExtraChargeRecord{
		ID:            engine.ExtraChargeID(f.idOr(xj.ID)),
		Description:   xj.Description,
		Amount:        amount,
		EffectiveFrom: from,
		EffectiveTo:   to,
	}
	if xj.UnitID != nil && *xj.UnitID != "" {
		unit := engine.UnitID(*xj.UnitID)
		x.UnitID = &unit
	}
	return x, nil
}

// Transaction converts a transaction and its nested allocations.
func (f *DatasetFactory) Transaction(path string, tj TransactionJSON) (engine.Transaction, []engine.AllocationRecord, error) {
	ref, err := entityRef(path, tj.UnitID, tj.CreditorID)
	if err != nil {
		return engine.Transaction{}, nil, err
	}
	amount, err := requiredAmount(path+".amount", tj.Amount)
	if err != nil {
		return engine.Transaction{}, nil, err
	}
	date, err := engine.ParseDate("date", tj.Date)
	if err != nil {
		return engine.Transaction{}, nil, &FieldError{Path: path + ".date", Err: err}
	}
	tx := engine.Transaction{
		ID:          engine.TransactionID(f.idOr(tj.ID)),
		Amount:      amount,
		Date:        date,
		Type:        txType(tj.Type, amount),
		Ref:         ref,
		Description: tj.Description,
	}

	recs := make([]engine.AllocationRecord, 0, len(tj.Allocations))
	for j, aj := range tj.Allocations {
		rec, err := f.Allocation(fmt.Sprintf("%s.allocations[%d]", path, j), tx.ID, aj)
		if err != nil {
			return engine.Transaction{}, nil, err
		}
		recs = append(recs, rec)
	}
	return tx, recs, nil
}

func (f *DatasetFactory) Allocation(path string, txID engine.TransactionID, aj AllocationJSON) (engine.AllocationRecord, error) {
	target, err := engine.ParseTarget(aj.Month)
	if err != nil {
		return engine.AllocationRecord{}, &FieldError{Path: path + ".month", Err: err}
	}
	amount, err := requiredAmount(path+".amount", aj.Amount)
	if err != nil {
		return engine.AllocationRecord{}, err
	}
	rec := engine.AllocationRecord{
		ID:            engine.AllocationID(f.idOr(aj.ID)),
		TransactionID: txID,
		Target:        target,
		Amount:        amount,
	}
	if aj.ExtraChargeID != nil && *aj.ExtraChargeID != "" {
		id := engine.ExtraChargeID(*aj.ExtraChargeID)
		rec.ExtraChargeID = &id
	}
	return rec, nil
}

// =============================================================================
// TO JSON
// =============================================================================

// ToJSON converts a Dataset to DatasetJSON. Allocations are emitted flat.
func (f *DatasetFactory) ToJSON(ds engine.Dataset) DatasetJSON {
	dj := DatasetJSON{
		Units:        make([]UnitJSON, 0, len(ds.Units)),
		Creditors:    make([]CreditorJSON, 0, len(ds.Creditors)),
		Owners:       make([]OwnerJSON, 0, len(ds.Owners)),
		Rates:        make([]RateJSON, 0, len(ds.Rates)),
		ExtraCharges: make([]ExtraChargeJSON, 0, len(ds.ExtraCharges)),
		Transactions: make([]TransactionJSON, 0, len(ds.Transactions)),
		Allocations:  make([]AllocationJSON, 0, len(ds.Allocations)),
	}
	for _, u := range ds.Units {
		dj.Units = append(dj.Units, UnitToJSON(u))
	}
	for _, c := range ds.Creditors {
		dj.Creditors = append(dj.Creditors, CreditorToJSON(c))
	}
	for _, o := range ds.Owners {
		dj.Owners = append(dj.Owners, OwnerToJSON(o))
	}
	for _, r := range ds.Rates {
		dj.Rates = append(dj.Rates, RateToJSON(r))
	}
	for _, x := range ds.ExtraCharges {
		dj.ExtraCharges = append(dj.ExtraCharges, ExtraChargeToJSON(x))
	}
	for _, tx := range ds.Transactions {
		dj.Transactions = append(dj.Transactions, TransactionToJSON(tx, nil))
	}
	for _, a := range ds.Allocations {
		dj.Allocations = append(dj.Allocations, AllocationToJSON(a))
	}
	return dj
}

func UnitToJSON(u engine.Unit) UnitJSON {
	return UnitJSON{ID: string(u.ID), Label: u.Label, MonthlyFee: money(u.MonthlyFee)}
}

func CreditorToJSON(c engine.Creditor) CreditorJSON {
	return CreditorJSON{ID: string(c.ID), Name: c.Name, AmountDue: money(c.AmountDue)}
}

func OwnerToJSON(o engine.Owner) OwnerJSON {
	return OwnerJSON{
		ID:           o.ID,
		UnitID:       string(o.UnitID),
		Name:         o.Name,
		StartMonth:   monthString(o.StartMonth),
		EndMonth:     monthString(o.EndMonth),
		PreviousDebt: money(o.PreviousDebt),
	}
}

func RateToJSON(r engine.RateRecord) RateJSON {
	rj := RateJSON{
		ID:            r.ID,
		Amount:        money(r.Amount),
		EffectiveFrom: r.EffectiveFrom.String(),
		EffectiveTo:   monthString(r.EffectiveTo),
	}
	rj.UnitID, rj.CreditorID = refIDs(r.Owner)
	return rj
}

func ExtraChargeToJSON(x engine.ExtraChargeRecord) ExtraChargeJSON {
	xj := ExtraChargeJSON{
		ID:            string(x.ID),
		Description:   x.Description,
		Amount:        money(x.Amount),
		EffectiveFrom: x.EffectiveFrom.String(),
		EffectiveTo:   monthString(x.EffectiveTo),
	}
	if x.UnitID != nil {
		s := string(*x.UnitID)
		xj.UnitID = &s
	}
	return xj
}

// TransactionToJSON converts tx, nesting allocs when given. Nested
// allocations omit the redundant transaction_id.
func TransactionToJSON(tx engine.Transaction, allocs []engine.AllocationRecord) TransactionJSON {
	tj := TransactionJSON{
		ID:          string(tx.ID),
		Amount:      money(tx.Amount),
		Date:        tx.Date.Format("2006-01-02"),
		Type:        string(tx.Type),
		Description: tx.Description,
	}
	tj.UnitID, tj.CreditorID = refIDs(tx.Ref)
	for _, a := range allocs {
		aj := AllocationToJSON(a)
		aj.TransactionID = ""
		tj.Allocations = append(tj.Allocations, aj)
	}
	return tj
}

// AllocationToJSON converts one stored allocation.
func AllocationToJSON(a engine.AllocationRecord) AllocationJSON {
	aj := AllocationJSON{
		ID:            string(a.ID),
		TransactionID: string(a.TransactionID),
		Month:         a.Target.String(),
		Amount:        money(a.Amount),
	}
	if a.ExtraChargeID != nil {
		s := string(*a.ExtraChargeID)
		aj.ExtraChargeID = &s
	}
	return aj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func (f *DatasetFactory) idOr(id string) string {
	if id != "" {
		return id
	}
	if f.NewID == nil {
		return uuid.NewString()
	}
	return f.NewID()
}

func requiredAmount(path string, a Amount) (decimal.Decimal, error) {
	if a == "" {
		return decimal.Zero, &FieldError{Path: path, Err: ErrMissingField}
	}
	d, err := engine.ParseAmount("amount", string(a))
	if err != nil {
		return decimal.Zero, &FieldError{Path: path, Err: err}
	}
	return d, nil
}

func amountOrZero(path string, a Amount) (decimal.Decimal, error) {
	if a == "" {
		return decimal.Zero, nil
	}
	return requiredAmount(path, a)
}

func month(path, s string) (engine.Month, error) {
	m, err := engine.ParseMonth(s)
	if err != nil {
		return engine.Month{}, &FieldError{Path: path, Err: err}
	}
	return m, nil
}

func optMonth(path string, s *string) (*engine.Month, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	m, err := month(path, *s)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func entityRef(path string, unitID, creditorID *string) (engine.EntityRef, error) {
	hasUnit := unitID != nil && *unitID != ""
	hasCreditor := creditorID != nil && *creditorID != ""
	switch {
	case hasUnit && hasCreditor:
		return engine.EntityRef{}, &FieldError{Path: path, Err: ErrAmbiguousEntity}
	case hasUnit:
		return engine.UnitRef(engine.UnitID(*unitID)), nil
	case hasCreditor:
		return engine.CreditorRef(engine.CreditorID(*creditorID)), nil
	default:
		return engine.NoEntity(), nil
	}
}

// txType defaults the type from the sign when the document omits it.
func txType(s string, amount decimal.Decimal) engine.TxType {
	if s != "" {
		return engine.TxType(s)
	}
	if amount.IsNegative() {
		return engine.TxExpense
	}
	return engine.TxPayment
}

// money keeps full precision so an export re-imports to the same values.
func money(d decimal.Decimal) Amount { return Amount(d.String()) }

func monthString(m *engine.Month) *string {
	if m == nil {
		return nil
	}
	s := m.String()
	return &s
}

func refIDs(ref engine.EntityRef) (unitID, creditorID *string) {
	id := ref.ID
	switch ref.Kind {
	case engine.EntityUnit:
		return &id, nil
	case engine.EntityCreditor:
		return nil, &id
	}
	return nil, nil
}

type idSet map[string]map[string]bool

func newIDSet() idSet { return idSet{} }

func (s idSet) add(table string, i int, id string) error {
	return s.addPath(table, fmt.Sprintf("%s[%d]", table, i), id)
}

func (s idSet) addPath(table, path, id string) error {
	if s[table] == nil {
		s[table] = map[string]bool{}
	}
	if s[table][id] {
		return &FieldError{Path: path + ".id", Err: fmt.Errorf("%w: %q", ErrDuplicateID, id)}
	}
	s[table][id] = true
	return nil
}
