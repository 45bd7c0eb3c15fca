package engine

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// MONTH - Calendar month, the granularity of every fee and allocation
// =============================================================================

// MonthFormat is the canonical textual form of a Month.
const MonthFormat = "2006-01"

// PrevDebtSentinel is the allocation target for legacy pre-digital debt.
const PrevDebtSentinel = "PREV-DEBT"

// Month is a calendar month. The zero value is not a valid month.
type Month struct {
	y int
	m time.Month
}

// NewMonth normalizes out-of-range months (13 -> January of next year).
func NewMonth(year int, month time.Month) Month {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Month{y: t.Year(), m: t.Month()}
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month { return NewMonth(t.Year(), t.Month()) }

// CurrentMonth returns the month containing now (UTC).
func CurrentMonth() Month { return MonthOf(time.Now().UTC()) }

// ParseMonth parses a strict YYYY-MM string.
func ParseMonth(s string) (Month, error) {
	if len(s) != len(MonthFormat) {
		return Month{}, &ParseError{Field: "month", Value: s, Err: ErrInvalidMonth}
	}
	t, err := time.Parse(MonthFormat, s)
	if err != nil {
		return Month{}, &ParseError{Field: "month", Value: s, Err: ErrInvalidMonth}
	}
	return MonthOf(t), nil
}

// MustParseMonth panics on malformed input. Use in tests and fixtures.
func MustParseMonth(s string) Month {
	m, err := ParseMonth(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Month) Year() int           { return m.y }
func (m Month) Month() time.Month   { return m.m }
func (m Month) IsZero() bool        { return m.y == 0 && m.m == 0 }
func (m Month) index() int          { return m.y*12 + int(m.m) - 1 }
func (m Month) Before(o Month) bool { return m.index() < o.index() }
func (m Month) After(o Month) bool  { return m.index() > o.index() }
func (m Month) Next() Month         { return m.AddMonths(1) }
func (m Month) Prev() Month         { return m.AddMonths(-1) }

// AddMonths shifts the month by n (negative allowed).
func (m Month) AddMonths(n int) Month { return NewMonth(m.y, m.m+time.Month(n)) }

// Compare returns -1, 0 or +1.
func (m Month) Compare(o Month) int {
	switch a, b := m.index(), o.index(); {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Start returns midnight UTC of the first day of the month.
func (m Month) Start() time.Time { return time.Date(m.y, m.m, 1, 0, 0, 0, 0, time.UTC) }

func (m Month) String() string {
	if m.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", m.y, int(m.m))
}

func (m Month) MarshalJSON() ([]byte, error) { return json.Marshal(m.String()) }

func (m *Month) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return &ParseError{Field: "month", Value: string(b), Err: ErrInvalidMonth}
	}
	parsed, err := ParseMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MonthsBetween counts months in [from, to], inclusive. Zero when to < from.
func MonthsBetween(from, to Month) int {
	n := to.index() - from.index() + 1
	if n < 0 {
		return 0
	}
	return n
}

// MonthsOfYear returns January..December of year.
func MonthsOfYear(year int) []Month {
	return MonthsThrough(year, time.December)
}

// MonthsThrough returns January..last of year.
func MonthsThrough(year int, last time.Month) []Month {
	months := make([]Month, 0, int(last))
	for m := time.January; m <= last; m++ {
		months = append(months, NewMonth(year, m))
	}
	return months
}

// =============================================================================
// RANGE - Inclusive month range, To == nil means open-ended
// =============================================================================

// Range is an effective-dated span [From, To]; a nil To is open-ended.
type Range struct {
	From Month  `json:"from"`
	To   *Month `json:"to"`
}

// OpenRange returns [from, +inf).
func OpenRange(from Month) Range { return Range{From: from} }

// ClosedRange returns [from, to].
func ClosedRange(from, to Month) Range { return Range{From: from, To: &to} }

// IsOpen reports whether the range has no end.
func (r Range) IsOpen() bool { return r.To == nil }

// Contains reports whether m falls in the range, bounds included.
func (r Range) Contains(m Month) bool {
	if m.Before(r.From) {
		return false
	}
	return r.To == nil || !m.After(*r.To)
}

// Valid reports whether To (if set) is not before From.
func (r Range) Valid() bool { return r.To == nil || !r.To.Before(r.From) }

// EndOr returns To, or fallback when the range is open.
func (r Range) EndOr(fallback Month) Month {
	if r.To == nil {
		return fallback
	}
	return *r.To
}

func (r Range) String() string {
	if r.To == nil {
		return "[" + r.From.String() + ", open)"
	}
	return "[" + r.From.String() + ", " + r.To.String() + "]"
}

// =============================================================================
// TARGET - What an allocation applies to: a calendar month or PREV-DEBT
// =============================================================================

// Target is either a calendar month or the legacy-debt sentinel.
type Target struct {
	month    Month
	prevDebt bool
}

// MonthTarget targets a calendar month.
func MonthTarget(m Month) Target { return Target{month: m} }

// PrevDebtTarget targets legacy pre-digital debt.
func PrevDebtTarget() Target { return Target{prevDebt: true} }

// ParseTarget accepts YYYY-MM or PREV-DEBT.
func ParseTarget(s string) (Target, error) {
	if s == PrevDebtSentinel {
		return PrevDebtTarget(), nil
	}
	m, err := ParseMonth(s)
	if err != nil {
		return Target{}, err
	}
	return MonthTarget(m), nil
}

// IsPrevDebt reports whether the target is the legacy-debt bucket.
func (t Target) IsPrevDebt() bool { return t.prevDebt }

// Month returns the calendar month and false for PREV-DEBT.
func (t Target) Month() (Month, bool) { return t.month, !t.prevDebt && !t.month.IsZero() }

// Is reports whether the target is exactly calendar month m.
func (t Target) Is(m Month) bool { return !t.prevDebt && t.month == m }

func (t Target) String() string {
	if t.prevDebt {
		return PrevDebtSentinel
	}
	return t.month.String()
}

func (t Target) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

func (t *Target) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return &ParseError{Field: "target", Value: string(b), Err: ErrInvalidMonth}
	}
	parsed, err := ParseTarget(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
