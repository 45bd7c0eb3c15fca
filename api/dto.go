/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Record shapes are
  shared with the import format (factory.*JSON), so an exported dataset,
  an API response and an API request body all look the same.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Units:        UnitDTO, UnitDetailDTO, UnitStatusResponse
  Creditors:    CreditorDTO
  Transactions: TransactionDTO, CreateTransactionRequest, SuggestRequest
  Rates:        RateRequest
  Reports:      AnnualReport and its rows
  Scenarios:    ScenarioDTO

VALIDATION:
  Validation is done in handlers (through the factory converters), not in
  DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/dataset.go: Record JSON types
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/condo-ledger/engine"
	"github.com/warp/condo-ledger/factory"
)

// =============================================================================
// UNITS & CREDITORS
// =============================================================================

// UnitDTO is a unit with its current owner and this month's fee.
type UnitDTO struct {
	factory.UnitJSON
	CurrentOwner *factory.OwnerJSON `json:"current_owner,omitempty"`
	CurrentFee   decimal.Decimal    `json:"current_fee"`
}

// UnitDetailDTO adds the full history of a unit.
type UnitDetailDTO struct {
	UnitDTO
	Owners       []factory.OwnerJSON       `json:"owners"`
	Rates        []factory.RateJSON        `json:"rates"`
	ExtraCharges []factory.ExtraChargeJSON `json:"extra_charges"`
}

// UnitStatusResponse is the month-by-month reconciliation of one year.
type UnitStatusResponse struct {
	UnitID   string               `json:"unit_id"`
	Year     int                  `json:"year"`
	Months   []engine.MonthStatus `json:"months"`
	Expected decimal.Decimal      `json:"expected"`
	Paid     decimal.Decimal      `json:"paid"`
	Legacy   engine.LegacyDebt    `json:"legacy"`
}

// CreditorDTO is a creditor with this month's due.
type CreditorDTO struct {
	factory.CreditorJSON
	CurrentDue decimal.Decimal    `json:"current_due"`
	Rates      []factory.RateJSON `json:"rates"`
}

// RateRequest adds a rate to a unit or creditor history. The owner comes
// from the URL.
type RateRequest struct {
	ID            string         `json:"id"`
	Amount        factory.Amount `json:"amount"`
	EffectiveFrom string         `json:"effective_from"`
	EffectiveTo   *string        `json:"effective_to"`
}

// RateResponse reports the new rate and the records it closed.
type RateResponse struct {
	Rate       factory.RateJSON   `json:"rate"`
	Superseded []factory.RateJSON `json:"superseded"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionDTO is a transaction with its allocations and balance check.
type TransactionDTO struct {
	factory.TransactionJSON
	Balance engine.TxBalance `json:"balance"`
}

// CreateTransactionRequest is a transaction with nested allocations.
type CreateTransactionRequest struct {
	factory.TransactionJSON
	AllowUnbalanced bool `json:"allow_unbalanced"`
}

// SuggestRequest asks how a payment should be split.
type SuggestRequest struct {
	UnitID         string         `json:"unit_id"`
	Amount         factory.Amount `json:"amount"`
	AsOf           string         `json:"as_of"`
	IncludeLegacy  *bool          `json:"include_legacy"`
	CarryRemainder bool           `json:"carry_remainder"`
}

// UnbalancedResponse is the 422 body for a rejected transaction.
type UnbalancedResponse struct {
	Error   string           `json:"error"`
	Balance engine.TxBalance `json:"balance"`
}

// =============================================================================
// AUDIT
// =============================================================================

// AuditResponse wraps an on-demand audit.
type AuditResponse struct {
	AsOf     engine.Month        `json:"as_of"`
	Errors   []engine.Finding    `json:"errors"`
	Warnings []engine.Finding    `json:"warnings"`
	Infos    []engine.Finding    `json:"infos"`
	Summary  engine.AuditSummary `json:"summary"`
}

// =============================================================================
// ANNUAL REPORT
// =============================================================================

// AnnualReport is the building-wide view of one year.
type AnnualReport struct {
	Year       int                `json:"year"`
	Policy     engine.PolicyName  `json:"policy"`
	Units      []UnitDebtRow      `json:"units"`
	Creditors  []CreditorDueRow   `json:"creditors"`
	Budget     BudgetVsActual     `json:"budget"`
	Totals     engine.DebtTotals  `json:"totals"`
	Divergence []DivergenceRow    `json:"divergence"`
	Findings   engine.Counts      `json:"findings"`
}

// UnitDebtRow is one line of the per-unit debt table.
type UnitDebtRow struct {
	UnitID    string             `json:"unit_id"`
	Label     string             `json:"label"`
	Owner     string             `json:"owner,omitempty"`
	Year      engine.YearFigures `json:"year"`
	PastYears decimal.Decimal    `json:"past_years"`
	Legacy    decimal.Decimal    `json:"legacy"`
	Total     decimal.Decimal    `json:"total"`
}

// CreditorDueRow is expected vs settled dues of one creditor.
type CreditorDueRow struct {
	CreditorID string             `json:"creditor_id"`
	Name       string             `json:"name"`
	Year       engine.YearFigures `json:"year"`
}

// BudgetVsActual compares billed income and dues with what moved.
type BudgetVsActual struct {
	ExpectedIncome   decimal.Decimal `json:"expected_income"`
	ActualIncome     decimal.Decimal `json:"actual_income"`
	ExpectedExpenses decimal.Decimal `json:"expected_expenses"`
	ActualExpenses   decimal.Decimal `json:"actual_expenses"`
	ExpectedNet      decimal.Decimal `json:"expected_net"`
	ActualNet        decimal.Decimal `json:"actual_net"`
}

// DivergenceRow lists a unit whose policies disagree.
type DivergenceRow struct {
	UnitID string            `json:"unit_id"`
	engine.Divergence
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
