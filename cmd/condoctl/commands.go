package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"github.com/warp/condo-ledger/api"
	"github.com/warp/condo-ledger/engine"
	"github.com/warp/condo-ledger/factory"
	"github.com/warp/condo-ledger/store/sqlite"
)

// =============================================================================
// AUDIT
// =============================================================================

type auditCmd struct {
	asOf    string
	asJSON  bool
	verbose bool
}

func (*auditCmd) Name() string     { return "audit" }
func (*auditCmd) Synopsis() string { return "report data integrity problems" }
func (*auditCmd) Usage() string {
	return `condoctl audit [-as-of YYYY-MM] [-json] [-v]

  Checks rate, extra-charge and ownership histories, orphan and unbalanced
  allocations, duplicates and future-dated transactions. Exits with status 1
  when at least one error is found.
`
}

func (c *auditCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.asOf, "as-of", "", "Month the debt figures are computed at (defaults to this month).")
	f.BoolVar(&c.asJSON, "json", false, "Print the full result as JSON.")
	f.BoolVar(&c.verbose, "v", false, "Also print info findings.")
}

func (c *auditCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	asOf, err := monthFlag(c.asOf)
	if err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}
	ds, err := loadDataset(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	result := engine.AuditOptions{AsOf: asOf, Now: time.Now(), FirstYear: cfg.FirstDigitalYear}.Run(ds)
	if c.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
	} else {
		findings := append(result.Report.Errors, result.Report.Warnings...)
		if c.verbose {
			findings = append(findings, result.Report.Infos...)
		}
		for _, f := range findings {
			fmt.Println(f)
		}
		counts := result.Summary.Findings
		fmt.Printf("\n%d units, %d creditors, %d transactions, %d allocations: %d errors, %d warnings, %d infos\n",
			result.Summary.Units, result.Summary.Creditors, result.Summary.Transactions, result.Summary.Allocations,
			counts.Errors, counts.Warnings, counts.Infos)
	}

	if result.Report.HasErrors() {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// =============================================================================
// DEBT
// =============================================================================

type debtCmd struct {
	unit     string
	creditor string
	policy   string
	asOf     string
	current  bool
}

func (*debtCmd) Name() string     { return "debt" }
func (*debtCmd) Synopsis() string { return "compute outstanding debt" }
func (*debtCmd) Usage() string {
	return `condoctl debt [-unit <id> | -creditor <id>] [-policy capped|carry_forward] [-as-of YYYY-MM] [-current]

  Without -unit or -creditor, prints one line per unit and the building total.
`
}

func (c *debtCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.unit, "unit", "", "Unit ID.")
	f.StringVar(&c.creditor, "creditor", "", "Creditor ID.")
	f.StringVar(&c.policy, "policy", "", "Debt policy (defaults to DEBT_POLICY).")
	f.StringVar(&c.asOf, "as-of", "", "Evaluation month (defaults to this month).")
	f.BoolVar(&c.current, "current", false, "Include the current year through -as-of.")
}

func (c *debtCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	asOf, err := monthFlag(c.asOf)
	if err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}
	policy, err := policyFlag(c.policy)
	if err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}
	ds, err := loadDataset(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	acc := engine.Accumulator{Policy: policy, IncludeCurrentYear: c.current}

	var ref engine.EntityRef
	switch {
	case c.unit != "":
		if _, ok := ds.Unit(engine.UnitID(c.unit)); !ok {
			fail(fmt.Errorf("unit %s: %w", c.unit, engine.ErrUnitNotFound))
			return subcommands.ExitFailure
		}
		ref = engine.UnitRef(engine.UnitID(c.unit))
	case c.creditor != "":
		if _, ok := ds.Creditor(engine.CreditorID(c.creditor)); !ok {
			fail(fmt.Errorf("creditor %s: %w", c.creditor, engine.ErrCreditorNotFound))
			return subcommands.ExitFailure
		}
		ref = engine.CreditorRef(engine.CreditorID(c.creditor))
	default:
		printBuildingDebt(ds, acc, asOf)
		return subcommands.ExitSuccess
	}

	printDebtSummary(acc.Compute(ds.DebtInput(ref, asOf, cfg.FirstDigitalYear)))
	return subcommands.ExitSuccess
}

func printDebtSummary(s engine.DebtSummary) {
	fmt.Printf("%s as of %s (%s)\n\n", s.Entity, s.AsOf, s.Policy)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "year\texpected\tpaid\tcapped\tcarry forward\t")
	for i, y := range s.Years {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t\n", y.Year, amount(y.Expected), amount(y.Paid),
			amount(s.Capped.Steps[i].Closing), amount(s.CarryForward.Steps[i].Closing))
	}
	w.Flush()

	fmt.Printf("\npast years:  %s\n", amount(s.PastYears))
	if s.Entity.Kind == engine.EntityUnit {
		fmt.Printf("legacy debt: %s (assigned %s, paid %s)\n",
			amount(s.Legacy.Remaining), amount(s.Legacy.Assigned), amount(s.Legacy.Paid))
	}
	if s.CurrentYear != nil {
		fmt.Printf("%d so far:   %s\n", s.CurrentYear.Year, amount(s.CurrentYear.Shortfall))
	}
	for _, x := range s.ExtraCharges {
		if engine.MoneyPositive(x.Remaining) {
			fmt.Printf("  of which %s: %s\n", x.Description, amount(x.Remaining))
		}
	}
	fmt.Printf("total:       %s\n", amount(s.Total))
	if s.Divergence != nil {
		fmt.Printf("\nnote: %s\n", s.Divergence.Explanation)
	}
}

func printBuildingDebt(ds engine.Dataset, acc engine.Accumulator, asOf engine.Month) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "unit\towner\tpast years\tlegacy\ttotal\t")

	summaries := make([]engine.DebtSummary, 0, len(ds.Units))
	for _, u := range ds.Units {
		s := acc.Compute(ds.DebtInput(engine.UnitRef(u.ID), asOf, cfg.FirstDigitalYear))
		summaries = append(summaries, s)
		owner := ""
		if o, ok := ds.CurrentOwner(u.ID); ok {
			owner = o.Name
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n", u.ID, owner, amount(s.PastYears), amount(s.Legacy.Remaining), amount(s.Total))
	}
	totals := engine.Aggregate(summaries)
	fmt.Fprintf(w, "TOTAL\t\t%s\t%s\t%s\t\n", amount(totals.PastYears), amount(totals.Legacy), amount(totals.Total))
	w.Flush()

	if totals.Diverging > 0 {
		fmt.Printf("\n%d units diverge between policies (capped %s, carry forward %s)\n",
			totals.Diverging, amount(totals.Capped), amount(totals.CarryForward))
	}
}

// =============================================================================
// FEES & STATUS
// =============================================================================

type feesCmd struct {
	unit  string
	month string
}

func (*feesCmd) Name() string     { return "fees" }
func (*feesCmd) Synopsis() string { return "show the itemized charge of a unit for a month" }
func (*feesCmd) Usage() string {
	return `condoctl fees -unit <id> [-month YYYY-MM]
`
}

func (c *feesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.unit, "unit", "", "Unit ID (required).")
	f.StringVar(&c.month, "month", "", "Month (defaults to this month).")
}

func (c *feesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.unit == "" {
		fail(fmt.Errorf("-unit is required"))
		return subcommands.ExitUsageError
	}
	month, err := monthFlag(c.month)
	if err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}
	ds, err := loadDataset(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	if _, ok := ds.Unit(engine.UnitID(c.unit)); !ok {
		fail(fmt.Errorf("unit %s: %w", c.unit, engine.ErrUnitNotFound))
		return subcommands.ExitFailure
	}

	b := ds.ScheduleFor(engine.UnitRef(engine.UnitID(c.unit))).For(month)
	fmt.Printf("%s %s\n", c.unit, month)
	fmt.Printf("  base fee  %12s\n", amount(b.BaseFee))
	for _, x := range b.Extras {
		fmt.Printf("  %-9s %12s\n", x.Description, amount(x.Amount))
	}
	fmt.Printf("  total     %12s\n", amount(b.Total))
	return subcommands.ExitSuccess
}

type statusCmd struct {
	unit string
	year int
}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "reconcile a unit month by month" }
func (*statusCmd) Usage() string {
	return `condoctl status -unit <id> [-year YYYY]
`
}

func (c *statusCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.unit, "unit", "", "Unit ID (required).")
	f.IntVar(&c.year, "year", currentYear(), "Calendar year.")
}

func (c *statusCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.unit == "" {
		fail(fmt.Errorf("-unit is required"))
		return subcommands.ExitUsageError
	}
	ds, err := loadDataset(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	ref := engine.UnitRef(engine.UnitID(c.unit))
	if _, ok := ds.Unit(engine.UnitID(c.unit)); !ok {
		fail(fmt.Errorf("unit %s: %w", c.unit, engine.ErrUnitNotFound))
		return subcommands.ExitFailure
	}

	allocs := engine.ForEntity(ds.Ledger().Allocations, ref)
	statuses := engine.MonthlyStatus(ds.ScheduleFor(ref), allocs, engine.MonthsOfYear(c.year))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "month\texpected\tpaid\tdifference\tstate\t")
	for _, st := range statuses {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n", st.Month, amount(st.Expected.Total), amount(st.Paid), amount(st.Difference), st.State)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

// =============================================================================
// REPORT
// =============================================================================

type reportCmd struct {
	year   int
	policy string
	asJSON bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "print the annual building report" }
func (*reportCmd) Usage() string {
	return `condoctl report [-year YYYY] [-policy capped|carry_forward] [-json]
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "year", currentYear()-1, "Report year (defaults to last year).")
	f.StringVar(&c.policy, "policy", "", "Debt policy (defaults to DEBT_POLICY).")
	f.BoolVar(&c.asJSON, "json", false, "Print the report as JSON.")
}

func (c *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	policy, err := policyFlag(c.policy)
	if err != nil {
		fail(err)
		return subcommands.ExitUsageError
	}
	ds, err := loadDataset(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	report, err := api.BuildAnnualReport(ctx, ds, c.year, policy, cfg.FirstDigitalYear)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	if c.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	fmt.Printf("# %d annual report (%s)\n\n", report.Year, report.Policy)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "unit\towner\texpected\tpaid\tpast years\tlegacy\ttotal\t")
	for _, row := range report.Units {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n", row.UnitID, row.Owner,
			amount(row.Year.Expected), amount(row.Year.Paid), amount(row.PastYears), amount(row.Legacy), amount(row.Total))
	}
	w.Flush()

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "creditor\tdue\tpaid\t")
	for _, row := range report.Creditors {
		fmt.Fprintf(w, "%s\t%s\t%s\t\n", row.Name, amount(row.Year.Expected), amount(row.Year.Paid))
	}
	w.Flush()

	b := report.Budget
	fmt.Printf("\nincome   expected %s  actual %s\n", amount(b.ExpectedIncome), amount(b.ActualIncome))
	fmt.Printf("expenses expected %s  actual %s\n", amount(b.ExpectedExpenses), amount(b.ActualExpenses))
	fmt.Printf("net      expected %s  actual %s\n", amount(b.ExpectedNet), amount(b.ActualNet))
	fmt.Printf("\noutstanding %s across %d units\n", amount(report.Totals.Total), report.Totals.Entities)

	if len(report.Divergence) > 0 {
		ids := make([]string, 0, len(report.Divergence))
		for _, d := range report.Divergence {
			ids = append(ids, d.UnitID)
		}
		fmt.Printf("policies diverge for: %s\n", strings.Join(ids, ", "))
	}
	fmt.Printf("data findings: %d errors, %d warnings\n", report.Findings.Errors, report.Findings.Warnings)
	return subcommands.ExitSuccess
}

// =============================================================================
// IMPORT
// =============================================================================

type importCmd struct{}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "replace the database content with a JSON dataset" }
func (*importCmd) Usage() string {
	return `condoctl -db condo.db import <dataset.json>
`
}

func (*importCmd) SetFlags(*flag.FlagSet) {}

func (*importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fail(fmt.Errorf("expected exactly one dataset file"))
		return subcommands.ExitUsageError
	}
	file, err := os.Open(f.Arg(0))
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer file.Close()

	ds, err := factory.NewDatasetFactory().Decode(file)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer store.Close()

	if err := store.Import(ctx, ds); err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	fmt.Printf("imported %d units, %d creditors, %d transactions, %d allocations into %s\n",
		len(ds.Units), len(ds.Creditors), len(ds.Transactions), len(ds.Allocations), *dbPath)
	return subcommands.ExitSuccess
}
