package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"github.com/warp/condo-ledger/engine"
	"github.com/warp/condo-ledger/factory"
	"github.com/warp/condo-ledger/store/sqlite"
)

// loadDataset reads the dataset from -f or the database.
func loadDataset(ctx context.Context) (engine.Dataset, error) {
	if *datasetFile != "" {
		f, err := os.Open(*datasetFile)
		if err != nil {
			return engine.Dataset{}, err
		}
		defer f.Close()
		return factory.NewDatasetFactory().Decode(f)
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		return engine.Dataset{}, err
	}
	defer store.Close()
	return store.Snapshot(ctx)
}

// monthFlag parses an optional YYYY-MM flag, defaulting to the current month.
func monthFlag(s string) (engine.Month, error) {
	if s == "" {
		return engine.CurrentMonth(), nil
	}
	return engine.ParseMonth(s)
}

func policyFlag(s string) (engine.DebtPolicy, error) {
	if s == "" {
		s = cfg.DebtPolicy
	}
	return engine.ParsePolicy(s)
}

func currentYear() int { return time.Now().Year() }

// amount formats d in the -currency currency, e.g. "€1,234.50".
// Unknown currencies fall back to two decimals.
func amount(d decimal.Decimal) string {
	cur := money.GetCurrency(*currency)
	if cur == nil {
		return d.StringFixed(2)
	}
	minor := d.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
}
