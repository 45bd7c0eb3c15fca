/*
report.go - Annual building report

PURPOSE:
  One page for the yearly assembly: what each unit owes, what each
  creditor was due vs what was paid, budget vs actual cash, where the two
  debt policies disagree, and how dirty the data is.

ENDPOINT:
  GET /api/reports/annual?year=2024&policy=capped

COMPUTATION:
  Past-year debt is evaluated as of January of the following year, so the
  report year counts as a closed year. Per-unit summaries are independent
  and run concurrently over the same immutable snapshot.
*/
package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/condo-ledger/engine"
	"golang.org/x/sync/errgroup"
)

// reportWorkers bounds the per-unit goroutines of one report.
const reportWorkers = 8

// GetAnnualReport builds the report for one year.
// GET /api/reports/annual?year=YYYY&policy=carry_forward
func (h *Handler) GetAnnualReport(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year", h.now().Year())
	if err != nil || year < 1 {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	policy, err := h.policyParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid policy", err)
		return
	}
	ds, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	report, err := BuildAnnualReport(r.Context(), ds, year, policy, h.FirstYear)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build report", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// BuildAnnualReport computes the report for year over ds.
func BuildAnnualReport(ctx context.Context, ds engine.Dataset, year int, policy engine.DebtPolicy, firstYear int) (AnnualReport, error) {
	if policy == nil {
		policy = engine.CarryForward{}
	}
	asOf := engine.NewMonth(year+1, time.January)
	acc := engine.Accumulator{Policy: policy}

	rows := make([]UnitDebtRow, len(ds.Units))
	summaries := make([]engine.DebtSummary, len(ds.Units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reportWorkers)
	for i, u := range ds.Units {
		i, u := i, u
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ref := engine.UnitRef(u.ID)
			in := ds.DebtInput(ref, asOf, firstYear)
			summary := acc.Compute(in)

			row := UnitDebtRow{
				UnitID:    string(u.ID),
				Label:     u.Label,
				Year:      engine.Figures(in.Schedule, in.Allocations, year, time.December),
				PastYears: summary.PastYears,
				Legacy:    summary.Legacy.Remaining,
				Total:     summary.Total,
			}
			if o, ok := ds.CurrentOwner(u.ID); ok {
				row.Owner = o.Name
			}
			rows[i] = row
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return AnnualReport{}, err
	}

	ledger := ds.Ledger()
	report := AnnualReport{
		Year:       year,
		Policy:     policy.Name(),
		Units:      rows,
		Creditors:  make([]CreditorDueRow, 0, len(ds.Creditors)),
		Totals:     engine.Aggregate(summaries),
		Divergence: []DivergenceRow{},
	}

	budget := BudgetVsActual{
		ExpectedIncome:   decimal.Zero,
		ActualIncome:     decimal.Zero,
		ExpectedExpenses: decimal.Zero,
		ActualExpenses:   decimal.Zero,
	}
	for _, row := range rows {
		budget.ExpectedIncome = budget.ExpectedIncome.Add(row.Year.Expected)
		budget.ActualIncome = budget.ActualIncome.Add(row.Year.Paid)
	}
	for _, c := range ds.Creditors {
		ref := engine.CreditorRef(c.ID)
		figures := engine.Figures(ds.ScheduleFor(ref), ledger.Allocations, year, time.December)
		report.Creditors = append(report.Creditors, CreditorDueRow{CreditorID: string(c.ID), Name: c.Name, Year: figures})
		budget.ExpectedExpenses = budget.ExpectedExpenses.Add(figures.Expected)
		budget.ActualExpenses = budget.ActualExpenses.Add(figures.Paid)
	}
	budget.ExpectedNet = budget.ExpectedIncome.Sub(budget.ExpectedExpenses)
	budget.ActualNet = budget.ActualIncome.Sub(budget.ActualExpenses)
	report.Budget = budget

	for i, s := range summaries {
		if s.Divergence != nil {
			report.Divergence = append(report.Divergence, DivergenceRow{UnitID: rows[i].UnitID, Divergence: *s.Divergence})
		}
	}
	sort.SliceStable(report.Divergence, func(i, j int) bool {
		return report.Divergence[i].Difference.GreaterThan(report.Divergence[j].Difference)
	})

	audit := engine.AuditOptions{
		AsOf:      engine.NewMonth(year, time.December),
		Now:       asOf.Start(),
		FirstYear: firstYear,
	}.Run(ds)
	report.Findings = audit.Report.Counts()

	return report, nil
}
