/*
errors.go - Error types for the reconciliation engine

PURPOSE:
  The engine distinguishes two kinds of problems:

  1. Input-shape errors (malformed month strings, non-numeric amounts).
     These fail fast at the parsing boundary, because coercing them to
     zero would silently corrupt every downstream sum.

  2. Data-integrity findings (overlapping rates, orphan allocations,
     unbalanced transactions). These are NEVER errors. The engine computes
     and reports them as Findings (see findings.go) and keeps going.

  Store implementations and the API wrap the sentinels below with context.

USAGE:
  if errors.Is(err, engine.ErrInvalidMonth) {
      // 400 Bad Request
  }

SEE ALSO:
  - findings.go: Diagnostic output (errors/warnings/infos as data)
  - month.go: ParseMonth / ParseTarget return ParseError
*/
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidMonth is returned for anything that is not YYYY-MM (or PREV-DEBT where allowed).
	ErrInvalidMonth = errors.New("invalid month: expected YYYY-MM")

	// ErrInvalidAmount is returned for non-numeric money values.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidDate is returned for transaction dates that are not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date: expected YYYY-MM-DD")

	// ErrInvalidRange is returned when an effective range ends before it starts.
	ErrInvalidRange = errors.New("invalid range: end before start")

	// ErrUnitNotFound is returned when a referenced unit doesn't exist.
	ErrUnitNotFound = errors.New("unit not found")

	// ErrCreditorNotFound is returned when a referenced creditor doesn't exist.
	ErrCreditorNotFound = errors.New("creditor not found")

	// ErrTransactionNotFound is returned when a referenced transaction doesn't exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrUnbalancedAllocations is returned by write paths that refuse to persist
	// a transaction whose allocations don't sum to its amount.
	ErrUnbalancedAllocations = errors.New("allocations do not match transaction amount")

	// ErrUnknownPolicy is returned by ParsePolicy for unknown names.
	ErrUnknownPolicy = errors.New("unknown debt policy")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ParseError describes a value rejected at the parsing boundary.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnbalancedError carries the reconciliation figures of a rejected transaction.
type UnbalancedError struct {
	TransactionID TransactionID
	Amount        decimal.Decimal
	Allocated     decimal.Decimal
	Diff          decimal.Decimal
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("transaction %s: allocated %s of %s (diff %s)",
		e.TransactionID, e.Allocated.StringFixed(2), e.Amount.Abs().StringFixed(2), e.Diff.StringFixed(2))
}

func (e *UnbalancedError) Unwrap() error { return ErrUnbalancedAllocations }

// ParseAmount parses a decimal money string, failing on anything non-numeric.
func ParseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ParseError{Field: field, Value: s, Err: ErrInvalidAmount}
	}
	return d, nil
}

// ParseDate parses a YYYY-MM-DD (or RFC 3339) transaction date.
func ParseDate(field, s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, &ParseError{Field: field, Value: s, Err: ErrInvalidDate}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidMonth) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrUnbalancedAllocations) ||
		errors.Is(err, ErrUnknownPolicy)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnitNotFound) ||
		errors.Is(err, ErrCreditorNotFound) ||
		errors.Is(err, ErrTransactionNotFound)
}
