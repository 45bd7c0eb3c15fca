package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/condo-ledger/engine"
)

// =============================================================================
// RATE RESOLVER
// =============================================================================

func TestResolveRate_RateChangeHistory(t *testing.T) {
	// GIVEN: 37.5 for Jan..May 2024, then 45 open-ended, default 45
	history := []engine.RateRecord{
		unitRate("r1", "A", 37.5, "2024-01", "2024-05"),
		unitRate("r2", "A", 45, "2024-06", ""),
	}

	// THEN: inside, after and before the records
	assertMoney(t, 37.5, engine.ResolveRate(history, month("2024-03"), eur(45)))
	assertMoney(t, 45, engine.ResolveRate(history, month("2024-08"), eur(45)))
	assertMoney(t, 45, engine.ResolveRate(history, month("2023-01"), eur(45)))
}

func TestResolveRate_OutsideEveryRecordReturnsDefault(t *testing.T) {
	history := []engine.RateRecord{
		unitRate("r1", "A", 30, "2022-01", "2022-12"),
		unitRate("r2", "A", 40, "2024-01", "2024-12"),
	}
	// 2023 is a gap: default applies
	for _, m := range engine.MonthsOfYear(2023) {
		assertMoney(t, 99, engine.ResolveRate(history, m, eur(99)))
	}
	assertMoney(t, 99, engine.ResolveRate(nil, month("2024-01"), eur(99)))
}

func TestResolveRate_OverlapLatestEffectiveFromWins(t *testing.T) {
	// GIVEN: an open-ended record overlapped by a later one
	history := []engine.RateRecord{
		unitRate("late", "A", 50, "2024-04", ""),
		unitRate("early", "A", 40, "2024-01", ""),
	}

	assertMoney(t, 40, engine.ResolveRate(history, month("2024-03"), eur(0)))
	assertMoney(t, 50, engine.ResolveRate(history, month("2024-04"), eur(0)))
	assertMoney(t, 50, engine.ResolveRate(history, month("2030-01"), eur(0)))
}

func TestResolveRate_TieOnEffectiveFromFirstListedWins(t *testing.T) {
	history := []engine.RateRecord{
		unitRate("first", "A", 41, "2024-01", ""),
		unitRate("second", "A", 42, "2024-01", ""),
	}
	rec, ok := engine.ActiveRate(history, month("2024-02"))
	require.True(t, ok)
	assert.Equal(t, "first", rec.ID)
}

func TestResolveRate_InvalidRangeNeverMatches(t *testing.T) {
	history := []engine.RateRecord{unitRate("bad", "A", 10, "2024-06", "2024-01")}
	assertMoney(t, 45, engine.ResolveRate(history, month("2024-03"), eur(45)))
}

func TestSupersede_ClosesOpenPredecessor(t *testing.T) {
	history := []engine.RateRecord{
		unitRate("r1", "A", 40, "2023-01", ""),
		unitRate("r0", "A", 30, "2020-01", "2022-12"),
	}
	next := unitRate("r2", "A", 45, "2024-06", "")

	closed := engine.Supersede(history, next)

	require.Len(t, closed, 1)
	assert.Equal(t, "r1", closed[0].ID)
	assert.Equal(t, "2024-05", closed[0].EffectiveTo.String())
	assert.Nil(t, history[0].EffectiveTo, "input must not be mutated")
}

// =============================================================================
// CHARGE AGGREGATOR
// =============================================================================

func TestResolveTotal_GlobalAndUnitScopedExtras(t *testing.T) {
	// GIVEN: base 45, global 10 from 2024-01, unit-specific 5 for 2024-03..05
	extras := []engine.ExtraChargeRecord{
		extraCharge("x-global", "roof", 10, "2024-01", "", nil),
		extraCharge("x-unit", "balcony", 5, "2024-03", "2024-05", unitPtr("A")),
	}

	apr := engine.ResolveTotal(nil, extras, month("2024-04"), eur(45), "A")
	jun := engine.ResolveTotal(nil, extras, month("2024-06"), eur(45), "A")

	assertMoney(t, 60, apr.Total)
	assert.Len(t, apr.Extras, 2)
	assertMoney(t, 55, jun.Total)
	assert.Len(t, jun.Extras, 1)

	// another unit never sees A's charge
	other := engine.ResolveTotal(nil, extras, month("2024-04"), eur(45), "B")
	assertMoney(t, 55, other.Total)
}

func TestResolveTotal_Additivity(t *testing.T) {
	rates := []engine.RateRecord{
		unitRate("r1", "A", 37.5, "2023-01", "2023-09"),
		unitRate("r2", "A", 42.25, "2023-07", ""),
	}
	extras := []engine.ExtraChargeRecord{
		extraCharge("x1", "roof", 10, "2023-03", "2024-02", nil),
		extraCharge("x2", "lift", 3.33, "2023-05", "", nil),
		extraCharge("x3", "balcony", 5, "2023-01", "2023-12", unitPtr("A")),
		extraCharge("x4", "garage", 7, "2023-01", "", unitPtr("B")),
	}
	for _, m := range engine.MonthsOfYear(2023) {
		b := engine.ResolveTotal(rates, extras, m, eur(45), "A")
		sum := b.BaseFee
		for _, x := range b.Extras {
			sum = sum.Add(x.Amount)
		}
		assert.True(t, b.Total.Equal(sum), "month %s", m)
	}
}

func TestResolveTotal_ExtrasSortedByID(t *testing.T) {
	extras := []engine.ExtraChargeRecord{
		extraCharge("x9", "b", 1, "2024-01", "", nil),
		extraCharge("x1", "a", 1, "2024-01", "", nil),
	}
	b := engine.ResolveTotal(nil, extras, month("2024-01"), eur(0), "A")
	require.Len(t, b.Extras, 2)
	assert.Equal(t, engine.ExtraChargeID("x1"), b.Extras[0].ID)
	assertMoney(t, 1, b.ExtraFor("x9"))
}

func TestChargeSchedule_CreditorIgnoresExtras(t *testing.T) {
	s := engine.ChargeSchedule{
		Ref:     engine.CreditorRef("cleaning"),
		Extras:  []engine.ExtraChargeRecord{extraCharge("x1", "roof", 10, "2024-01", "", nil)},
		Default: eur(200),
	}
	assertMoney(t, 200, s.For(month("2024-02")).Total)
	assertMoney(t, 600, s.ExpectedFor(engine.MonthsThrough(2024, 3)))
}
