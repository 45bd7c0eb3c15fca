package engine

import (
	"sort"
	"time"
)

// =============================================================================
// OVERLAP/GAP VALIDATOR - Integrity of effective-dated histories
// =============================================================================
//
// The resolver tolerates overlapping or gappy histories; this validator is the
// other half of that contract and reports them. It is diagnostic only: it
// never mutates its input and never blocks another computation.

// Beginning stands in for "since records began" (an owner with no start month).
var Beginning = NewMonth(1, time.January)

// DatedRange is one effective-dated record, tagged with the group it belongs to.
type DatedRange struct {
	Key      string    `json:"key"`
	Entity   EntityRef `json:"entity"`
	RecordID string    `json:"record_id"`
	Range    Range     `json:"range"`
}

// Overlap is two consecutive records of the same group sharing months.
type Overlap struct {
	Key    string     `json:"key"`
	First  DatedRange `json:"first"`
	Second DatedRange `json:"second"`
}

// Gap is a run of months between two consecutive records that nothing covers.
type Gap struct {
	Key    string    `json:"key"`
	Entity EntityRef `json:"entity"`
	From   Month     `json:"from"`
	To     Month     `json:"to"`
	After  string    `json:"after"`
	Before string    `json:"before"`
}

// Months returns the number of uncovered months.
func (g Gap) Months() int { return MonthsBetween(g.From, g.To) }

// HistoryReport is the validator output.
type HistoryReport struct {
	Overlaps []Overlap    `json:"overlaps"`
	Gaps     []Gap        `json:"gaps"`
	Invalid  []DatedRange `json:"invalid"`
}

// Clean reports whether nothing was found.
func (h HistoryReport) Clean() bool {
	return len(h.Overlaps) == 0 && len(h.Gaps) == 0 && len(h.Invalid) == 0
}

// ValidateHistory checks each group independently. Records are sorted by
// EffectiveFrom (on a copy); for consecutive records curr, next:
//   - curr open-ended and next exists        -> overlap
//   - curr.To >= next.From                   -> overlap
//   - month after curr.To < next.From        -> gap [curr.To+1, next.From-1]
//
// Records whose To precedes From are reported as Invalid and left out.
func ValidateHistory(groups map[string][]DatedRange) HistoryReport {
	report := HistoryReport{Overlaps: []Overlap{}, Gaps: []Gap{}, Invalid: []DatedRange{}}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		records := make([]DatedRange, 0, len(groups[key]))
		for _, r := range groups[key] {
			if !r.Range.Valid() {
				report.Invalid = append(report.Invalid, r)
				continue
			}
			records = append(records, r)
		}
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Range.From.Before(records[j].Range.From)
		})

		for i := 0; i+1 < len(records); i++ {
			curr, next := records[i], records[i+1]
			if curr.Range.IsOpen() || !curr.Range.To.Before(next.Range.From) {
				report.Overlaps = append(report.Overlaps, Overlap{Key: key, First: curr, Second: next})
				continue
			}
			if after := curr.Range.To.Next(); after.Before(next.Range.From) {
				report.Gaps = append(report.Gaps, Gap{
					Key:    key,
					Entity: curr.Entity,
					From:   after,
					To:     next.Range.From.Prev(),
					After:  curr.RecordID,
					Before: next.RecordID,
				})
			}
		}
	}
	return report
}

// =============================================================================
// GROUPING HELPERS
// =============================================================================

// RateRanges groups rate records by owning entity.
func RateRanges(records []RateRecord) map[string][]DatedRange {
	groups := make(map[string][]DatedRange)
	for _, r := range records {
		key := r.Owner.String()
		groups[key] = append(groups[key], DatedRange{Key: key, Entity: r.Owner, RecordID: r.ID, Range: r.Range()})
	}
	return groups
}

// ExtraChargeRanges groups extra charges by conceptual charge, so that
// different charges may overlap freely while repeats of one charge may not.
func ExtraChargeRanges(records []ExtraChargeRecord) map[string][]DatedRange {
	groups := make(map[string][]DatedRange)
	for _, x := range records {
		key := x.ConceptKey()
		ref := NoEntity()
		if x.UnitID != nil {
			ref = UnitRef(*x.UnitID)
		}
		groups[key] = append(groups[key], DatedRange{Key: key, Entity: ref, RecordID: string(x.ID), Range: x.Range()})
	}
	return groups
}

// OwnerRanges groups ownership periods by unit.
func OwnerRanges(owners []Owner) map[string][]DatedRange {
	groups := make(map[string][]DatedRange)
	for _, o := range owners {
		ref := UnitRef(o.UnitID)
		from := Beginning
		if o.StartMonth != nil {
			from = *o.StartMonth
		}
		key := ref.String()
		groups[key] = append(groups[key], DatedRange{
			Key: key, Entity: ref, RecordID: o.ID,
			Range: Range{From: from, To: o.EndMonth},
		})
	}
	return groups
}
