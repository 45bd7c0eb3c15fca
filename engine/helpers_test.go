package engine_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/condo-ledger/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func month(s string) engine.Month { return engine.MustParseMonth(s) }

func monthPtr(s string) *engine.Month {
	m := month(s)
	return &m
}

func eur(v float64) decimal.Decimal { return engine.Eur(v) }

func assertMoney(t *testing.T, want float64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(eur(want)), "want %v, got %s", want, got.String())
}

// unitRate builds a rate record for unit; an empty to means open-ended.
func unitRate(id string, unit engine.UnitID, amount float64, from, to string) engine.RateRecord {
	r := engine.RateRecord{ID: id, Owner: engine.UnitRef(unit), Amount: eur(amount), EffectiveFrom: month(from)}
	if to != "" {
		r.EffectiveTo = monthPtr(to)
	}
	return r
}

func extraCharge(id engine.ExtraChargeID, desc string, amount float64, from, to string, unit *engine.UnitID) engine.ExtraChargeRecord {
	x := engine.ExtraChargeRecord{ID: id, Description: desc, Amount: eur(amount), EffectiveFrom: month(from), UnitID: unit}
	if to != "" {
		x.EffectiveTo = monthPtr(to)
	}
	return x
}

func unitPtr(id engine.UnitID) *engine.UnitID { return &id }

func extraPtr(id engine.ExtraChargeID) *engine.ExtraChargeID { return &id }

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func payment(id engine.TransactionID, unit engine.UnitID, on string, amount float64) engine.Transaction {
	return engine.Transaction{ID: id, Amount: eur(amount), Date: date(on), Type: engine.TxPayment, Ref: engine.UnitRef(unit)}
}

func expense(id engine.TransactionID, creditor engine.CreditorID, on string, amount float64) engine.Transaction {
	return engine.Transaction{ID: id, Amount: eur(amount), Date: date(on), Type: engine.TxExpense, Ref: engine.CreditorRef(creditor)}
}

func allocation(id engine.AllocationID, tx engine.TransactionID, target string, amount float64) engine.AllocationRecord {
	tgt, err := engine.ParseTarget(target)
	if err != nil {
		panic(err)
	}
	return engine.AllocationRecord{ID: id, TransactionID: tx, Target: tgt, Amount: eur(amount)}
}

func extraAllocation(id engine.AllocationID, tx engine.TransactionID, target string, amount float64, extra engine.ExtraChargeID) engine.AllocationRecord {
	a := allocation(id, tx, target, amount)
	a.ExtraChargeID = extraPtr(extra)
	return a
}

// normalized joins records and returns the canonical allocations.
func normalized(txs []engine.Transaction, recs []engine.AllocationRecord) []engine.Allocation {
	ledger, _ := engine.JoinLedger(txs, recs, nil)
	return ledger.Allocations
}

func codes(findings []engine.Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Code)
	}
	return out
}
