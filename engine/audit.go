/*
audit.go - Whole-dataset integrity audit

PURPOSE:
  Runs the validator and the reconciler over every record and returns one
  structured result. There are no counters outside the result, so audits
  can run concurrently (the scheduler and an API request, for instance).

CHECKS:
  histories   rate_overlap, rate_gap, extra_charge_overlap,
              extra_charge_gap, owner_overlap, owner_gap, invalid_range
  owners      multiple_current_owners, unit_without_owner
  ledger      orphan_allocation, orphan_extra_charge, suspicious_sign,
              allocation_mismatch, unallocated_payment,
              duplicate_transaction, future_transaction
  storage     invalid_record
  debt        policy_divergence

SEE ALSO:
  - validate.go, reconcile.go: the checks themselves
  - findings.go: codes and severities
*/
package engine

import (
	"fmt"
	"sort"
	"time"
)

// AuditOptions configures an audit run.
type AuditOptions struct {
	AsOf      Month     // month the debt figures are computed at
	Now       time.Time // transactions after Now are future-dated
	FirstYear int       // see DebtInput.FirstYear
}

// AuditSummary counts what was checked and what was found.
type AuditSummary struct {
	Units        int    `json:"units"`
	Creditors    int    `json:"creditors"`
	Transactions int    `json:"transactions"`
	Allocations  int    `json:"allocations"`
	Findings     Counts `json:"findings"`
}

// AuditResult is the full audit output.
type AuditResult struct {
	AsOf    Month        `json:"as_of"`
	Report  Report       `json:"report"`
	Summary AuditSummary `json:"summary"`
}

// Audit runs every check with default options.
func Audit(ds Dataset, asOf Month, now time.Time) AuditResult {
	return AuditOptions{AsOf: asOf, Now: now}.Run(ds)
}

// Run audits ds. The dataset is not modified.
func (o AuditOptions) Run(ds Dataset) AuditResult {
	var report Report

	for _, r := range ds.Rejected {
		report.addf(SeverityError, CodeInvalidRecord, NoEntity(), r.ID, "%s row rejected: %s", r.Table, r.Reason)
	}

	report.Merge(historyFindings(ValidateHistory(RateRanges(ds.Rates)), CodeRateOverlap, CodeRateGap, SeverityWarning, "rate"))
	report.Merge(historyFindings(ValidateHistory(ExtraChargeRanges(ds.ExtraCharges)), CodeExtraChargeOverlap, CodeExtraChargeGap, SeverityInfo, "extra charge"))
	report.Merge(historyFindings(ValidateHistory(OwnerRanges(ds.Owners)), CodeOwnerOverlap, CodeOwnerGap, SeverityWarning, "ownership"))
	report.Merge(ownerFindings(ds))

	ledger, joined := JoinLedger(ds.Transactions, ds.Allocations, ds.ExtraCharges)
	report.Merge(joined)
	report.Merge(CheckLedger(ledger))
	report.Merge(transactionFindings(ds.Transactions, o.Now))
	report.Merge(o.divergenceFindings(ds, ledger))

	return AuditResult{
		AsOf:   o.AsOf,
		Report: report,
		Summary: AuditSummary{
			Units:        len(ds.Units),
			Creditors:    len(ds.Creditors),
			Transactions: len(ds.Transactions),
			Allocations:  len(ds.Allocations),
			Findings:     report.Counts(),
		},
	}
}

// =============================================================================
// HISTORIES
// =============================================================================

func historyFindings(h HistoryReport, overlapCode, gapCode string, gapSeverity Severity, noun string) Report {
	var report Report
	for _, inv := range h.Invalid {
		report.addf(SeverityError, CodeInvalidRange, inv.Entity, inv.RecordID,
			"%s record %s ends before it starts", noun, inv.Range)
	}
	for _, ov := range h.Overlaps {
		report.addf(SeverityError, overlapCode, ov.First.Entity, ov.Second.RecordID,
			"%s %s %s overlaps %s %s", noun, ov.First.RecordID, ov.First.Range, ov.Second.RecordID, ov.Second.Range)
	}
	for _, g := range h.Gaps {
		report.addf(gapSeverity, gapCode, g.Entity, g.Before,
			"%s history of %s has no record for %s..%s (%d months)", noun, g.Key, g.From, g.To, g.Months())
	}
	return report
}

func ownerFindings(ds Dataset) Report {
	var report Report
	for _, u := range ds.Units {
		owners := ds.OwnersOf(u.ID)
		if len(owners) == 0 {
			report.addf(SeverityInfo, CodeUnitWithoutOwner, UnitRef(u.ID), "", "unit %s has no owner on record", u.Label)
			continue
		}
		var current []string
		for _, o := range owners {
			if o.IsCurrent() {
				current = append(current, o.Name)
			}
		}
		if len(current) > 1 {
			report.addf(SeverityError, CodeMultipleCurrentOwners, UnitRef(u.ID), "",
				"unit %s has %d current owners: %v", u.Label, len(current), current)
		}
	}
	return report
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type txFingerprint struct {
	date   string
	amount string
	ref    EntityRef
}

func transactionFindings(txs []Transaction, now time.Time) Report {
	var report Report
	seen := make(map[txFingerprint]TransactionID)
	for _, tx := range txs {
		fp := txFingerprint{date: tx.Date.Format("2006-01-02"), amount: tx.Amount.StringFixed(2), ref: tx.Ref}
		if first, ok := seen[fp]; ok {
			report.addf(SeverityWarning, CodeDuplicateTransaction, tx.Ref, string(tx.ID),
				"same date, amount and entity as %s (%s, %s)", first, fp.date, fp.amount)
		} else {
			seen[fp] = tx.ID
		}
		if !now.IsZero() && tx.Date.After(now) {
			report.addf(SeverityWarning, CodeFutureTransaction, tx.Ref, string(tx.ID),
				"dated %s, after %s", fp.date, now.Format("2006-01-02"))
		}
	}
	return report
}

// =============================================================================
// DEBT POLICY DIVERGENCE
// =============================================================================

func (o AuditOptions) divergenceFindings(ds Dataset, ledger Ledger) Report {
	var report Report
	if o.AsOf.IsZero() {
		return report
	}
	refs := make([]EntityRef, 0, len(ds.Units)+len(ds.Creditors))
	for _, u := range ds.Units {
		refs = append(refs, UnitRef(u.ID))
	}
	for _, c := range ds.Creditors {
		refs = append(refs, CreditorRef(c.ID))
	}
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].String() < refs[j].String() })

	for _, ref := range refs {
		in := DebtInput{
			Schedule:    ds.ScheduleFor(ref),
			Allocations: ForEntity(ledger.Allocations, ref),
			AsOf:        o.AsOf,
			FirstYear:   o.FirstYear,
		}
		summary := Accumulator{}.Compute(in)
		if d := summary.Divergence; d != nil {
			report.Add(Finding{
				Code:     CodePolicyDivergence,
				Severity: SeverityInfo,
				Entity:   ref,
				Message:  fmt.Sprintf("capped %s vs carry-forward %s: %s", d.Capped.StringFixed(2), d.CarryForward.StringFixed(2), d.Explanation),
			})
		}
	}
	return report
}
