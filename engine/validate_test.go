package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/condo-ledger/engine"
)

func TestValidateHistory_CleanHistory(t *testing.T) {
	rates := []engine.RateRecord{
		unitRate("r2", "A", 45, "2024-06", ""),
		unitRate("r1", "A", 37.5, "2024-01", "2024-05"),
	}
	report := engine.ValidateHistory(engine.RateRanges(rates))
	assert.True(t, report.Clean())
}

func TestValidateHistory_Overlap(t *testing.T) {
	// GIVEN: r1 ends in June but r2 starts in April
	rates := []engine.RateRecord{
		unitRate("r1", "A", 40, "2024-01", "2024-06"),
		unitRate("r2", "A", 45, "2024-04", ""),
	}

	report := engine.ValidateHistory(engine.RateRanges(rates))

	require.Len(t, report.Overlaps, 1)
	assert.Equal(t, "r1", report.Overlaps[0].First.RecordID)
	assert.Equal(t, "r2", report.Overlaps[0].Second.RecordID)
	assert.Empty(t, report.Gaps)
}

func TestValidateHistory_OpenEndedFollowedByAnotherIsOverlap(t *testing.T) {
	rates := []engine.RateRecord{
		unitRate("r1", "A", 40, "2024-01", ""),
		unitRate("r2", "A", 45, "2025-01", ""),
	}
	report := engine.ValidateHistory(engine.RateRanges(rates))
	assert.Len(t, report.Overlaps, 1)
}

func TestValidateHistory_Gap(t *testing.T) {
	// GIVEN: nothing covers 2024-06..2024-08
	rates := []engine.RateRecord{
		unitRate("r1", "A", 40, "2024-01", "2024-05"),
		unitRate("r2", "A", 45, "2024-09", ""),
	}

	report := engine.ValidateHistory(engine.RateRanges(rates))

	require.Len(t, report.Gaps, 1)
	gap := report.Gaps[0]
	assert.Equal(t, "2024-06", gap.From.String())
	assert.Equal(t, "2024-08", gap.To.String())
	assert.Equal(t, 3, gap.Months())
	assert.Equal(t, engine.UnitRef("A"), gap.Entity)
}

func TestValidateHistory_AdjacentIsNotAGap(t *testing.T) {
	rates := []engine.RateRecord{
		unitRate("r1", "A", 40, "2023-01", "2023-12"),
		unitRate("r2", "A", 45, "2024-01", ""),
	}
	assert.True(t, engine.ValidateHistory(engine.RateRanges(rates)).Clean())
}

func TestValidateHistory_GroupsAreIndependent(t *testing.T) {
	rates := []engine.RateRecord{
		unitRate("a1", "A", 40, "2024-01", ""),
		unitRate("b1", "B", 45, "2024-01", ""),
	}
	assert.True(t, engine.ValidateHistory(engine.RateRanges(rates)).Clean())
}

func TestValidateHistory_InvalidRangeReportedAndExcluded(t *testing.T) {
	rates := []engine.RateRecord{
		unitRate("r1", "A", 40, "2024-01", "2024-12"),
		unitRate("bad", "A", 45, "2024-09", "2024-03"),
	}
	report := engine.ValidateHistory(engine.RateRanges(rates))
	require.Len(t, report.Invalid, 1)
	assert.Equal(t, "bad", report.Invalid[0].RecordID)
	assert.Empty(t, report.Overlaps)
}

func TestValidateHistory_DoesNotMutateInput(t *testing.T) {
	rates := []engine.RateRecord{
		unitRate("r2", "A", 45, "2024-06", ""),
		unitRate("r1", "A", 40, "2024-01", "2024-08"),
	}
	groups := engine.RateRanges(rates)
	before := append([]engine.DatedRange(nil), groups["unit:A"]...)

	engine.ValidateHistory(groups)

	assert.Equal(t, before, groups["unit:A"])
}

func TestExtraChargeRanges_DifferentChargesMayOverlap(t *testing.T) {
	extras := []engine.ExtraChargeRecord{
		extraCharge("x1", "roof", 10, "2024-01", "", nil),
		extraCharge("x2", "lift", 5, "2024-01", "", nil),
		extraCharge("x3", "roof", 12, "2024-06", "", nil),
	}
	report := engine.ValidateHistory(engine.ExtraChargeRanges(extras))
	require.Len(t, report.Overlaps, 1)
	assert.Equal(t, "global/roof", report.Overlaps[0].Key)
}

func TestOwnerRanges_MissingStartMeansSinceRecordsBegan(t *testing.T) {
	owners := []engine.Owner{
		{ID: "o1", UnitID: "A", Name: "Ana", EndMonth: monthPtr("2020-12")},
		{ID: "o2", UnitID: "A", Name: "Bea", StartMonth: monthPtr("2021-01")},
		{ID: "o3", UnitID: "A", Name: "Carl"},
	}
	report := engine.ValidateHistory(engine.OwnerRanges(owners))
	// Carl (since the beginning, open) overlaps Ana
	assert.NotEmpty(t, report.Overlaps)
	assert.Empty(t, report.Gaps)
}
