package engine

import "github.com/shopspring/decimal"

// =============================================================================
// RATE RESOLVER - Which amount is in effect for a month?
// =============================================================================

// ResolveRate returns the amount of the record covering month, or def when
// none does. When several records cover the month (overlapping history), the
// one with the latest EffectiveFrom wins; on an identical EffectiveFrom the
// record listed first wins. Never fails: dirty history degrades to a
// deterministic answer, and the Validator reports the overlap.
func ResolveRate(history []RateRecord, month Month, def decimal.Decimal) decimal.Decimal {
	rec, ok := ActiveRate(history, month)
	if !ok {
		return def
	}
	return rec.Amount
}

// ActiveRate returns the winning record for month, if any.
func ActiveRate(history []RateRecord, month Month) (RateRecord, bool) {
	var (
		best  RateRecord
		found bool
	)
	for _, r := range history {
		if !r.Range().Contains(month) {
			continue
		}
		if !found || r.EffectiveFrom.After(best.EffectiveFrom) {
			best, found = r, true
		}
	}
	return best, found
}

// Supersede returns the open-ended records of history that start before
// next, closed one month before next starts. Callers persist them together
// with next. Records starting on or after next are left alone; the
// validator will report them.
func Supersede(history []RateRecord, next RateRecord) []RateRecord {
	var closed []RateRecord
	for _, r := range history {
		if r.EffectiveTo != nil || !r.EffectiveFrom.Before(next.EffectiveFrom) {
			continue
		}
		end := next.EffectiveFrom.Prev()
		r.EffectiveTo = &end
		closed = append(closed, r)
	}
	return closed
}
