package engine

import "fmt"

// =============================================================================
// FINDINGS - Data-integrity diagnostics returned as data, never thrown
// =============================================================================

// Severity classifies a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Finding codes. Severity is assigned where the finding is produced.
const (
	CodeRateOverlap           = "rate_overlap"
	CodeRateGap               = "rate_gap"
	CodeExtraChargeOverlap    = "extra_charge_overlap"
	CodeExtraChargeGap        = "extra_charge_gap"
	CodeOwnerOverlap          = "owner_overlap"
	CodeOwnerGap              = "owner_gap"
	CodeMultipleCurrentOwners = "multiple_current_owners"
	CodeInvalidRange          = "invalid_range"
	CodeUnitWithoutOwner      = "unit_without_owner"
	CodeOrphanAllocation      = "orphan_allocation"
	CodeOrphanExtraCharge     = "orphan_extra_charge"
	CodeAllocationMismatch    = "allocation_mismatch"
	CodeUnallocatedPayment    = "unallocated_payment"
	CodeSuspiciousSign        = "suspicious_sign"
	CodeDuplicateTransaction  = "duplicate_transaction"
	CodeFutureTransaction     = "future_transaction"
	CodeInvalidRecord         = "invalid_record"
	CodePolicyDivergence      = "policy_divergence"
)

// Finding is one diagnostic about the data.
type Finding struct {
	Code     string    `json:"code"`
	Severity Severity  `json:"severity"`
	Entity   EntityRef `json:"entity"`
	RecordID string    `json:"record_id,omitempty"`
	Message  string    `json:"message"`
}

func (f Finding) String() string {
	if f.RecordID != "" {
		return fmt.Sprintf("[%s] %s %s (%s): %s", f.Severity, f.Code, f.Entity, f.RecordID, f.Message)
	}
	return fmt.Sprintf("[%s] %s %s: %s", f.Severity, f.Code, f.Entity, f.Message)
}

// Report collects findings by severity. The zero value is ready to use.
type Report struct {
	Errors   []Finding `json:"errors"`
	Warnings []Finding `json:"warnings"`
	Infos    []Finding `json:"infos"`
}

// Add routes f to the bucket of its severity.
func (r *Report) Add(f Finding) {
	switch f.Severity {
	case SeverityError:
		r.Errors = append(r.Errors, f)
	case SeverityWarning:
		r.Warnings = append(r.Warnings, f)
	default:
		f.Severity = SeverityInfo
		r.Infos = append(r.Infos, f)
	}
}

func (r *Report) addf(sev Severity, code string, ref EntityRef, recordID string, format string, args ...any) {
	r.Add(Finding{Code: code, Severity: sev, Entity: ref, RecordID: recordID, Message: fmt.Sprintf(format, args...)})
}

// Merge appends all findings of other.
func (r *Report) Merge(other Report) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Infos = append(r.Infos, other.Infos...)
}

// All returns errors, then warnings, then infos.
func (r Report) All() []Finding {
	all := make([]Finding, 0, len(r.Errors)+len(r.Warnings)+len(r.Infos))
	all = append(all, r.Errors...)
	all = append(all, r.Warnings...)
	return append(all, r.Infos...)
}

// ByCode returns findings with the given code.
func (r Report) ByCode(code string) []Finding {
	var out []Finding
	for _, f := range r.All() {
		if f.Code == code {
			out = append(out, f)
		}
	}
	return out
}

// HasErrors reports whether any error-severity finding exists.
func (r Report) HasErrors() bool { return len(r.Errors) > 0 }

// Counts summarizes the report.
type Counts struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`
}

func (r Report) Counts() Counts {
	return Counts{Errors: len(r.Errors), Warnings: len(r.Warnings), Infos: len(r.Infos)}
}
