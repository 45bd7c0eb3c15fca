/*
policy.go - Debt policies: how yearly shortfalls become outstanding debt

PURPOSE:
  Two parts of the building's bookkeeping answer "how much does this unit
  owe for past years?" differently, and both answers are legitimate:

  Capped (simple reporting):
    Each year's shortfall is counted on its own and summed.
    A surplus year contributes 0; it never offsets another year.
      total = sum(max(0, expected_y - paid_y))

  CarryForward (true running balance):
    Shortfall and surplus roll into the next year's opening balance,
    which is floored at zero after every step.
      balance_y = max(0, balance_{y-1} + expected_y - paid_y)

DIVERGENCE:
  The two agree until some year has a surplus. From then on CarryForward
  can only be lower or equal: Capped >= CarryForward always holds. The
  difference is reported (see Divergence in debt.go), it is not an error.

EXAMPLE:
  Y1 expected 540 paid 500   capped +40   carry 40
  Y2 expected 540 paid 600   capped +0    carry max(0, 40-60) = 0
  Y3 expected 540 paid 510   capped +30   carry 30
  Capped total 70, CarryForward total 30.

SEE ALSO:
  - debt.go: builds the YearFigures fed to Apply
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// POLICY INTERFACE
// =============================================================================

// PolicyName identifies a debt policy in config, APIs and reports.
type PolicyName string

const (
	PolicyCapped       PolicyName = "capped"
	PolicyCarryForward PolicyName = "carry_forward"
)

// DebtPolicy turns per-year figures into an outstanding total.
type DebtPolicy interface {
	Name() PolicyName
	// Apply walks years in ascending order. The input is not modified.
	Apply(years []YearFigures) PolicyResult
}

// PolicyStep is one year of a policy walk.
type PolicyStep struct {
	Year         int             `json:"year"`
	Opening      decimal.Decimal `json:"opening"`
	Delta        decimal.Decimal `json:"delta"`        // expected - paid
	Contribution decimal.Decimal `json:"contribution"` // closing - opening
	Closing      decimal.Decimal `json:"closing"`
}

// PolicyResult is the full walk and its final figure.
type PolicyResult struct {
	Policy PolicyName      `json:"policy"`
	Steps  []PolicyStep    `json:"steps"`
	Total  decimal.Decimal `json:"total"`
}

// ParsePolicy maps a config/API name to a policy.
func ParsePolicy(name string) (DebtPolicy, error) {
	switch PolicyName(name) {
	case PolicyCapped:
		return Capped{}, nil
	case PolicyCarryForward, "":
		return CarryForward{}, nil
	default:
		return nil, &ParseError{Field: "policy", Value: name, Err: ErrUnknownPolicy}
	}
}

func ascending(years []YearFigures) []YearFigures {
	sorted := make([]YearFigures, len(years))
	copy(sorted, years)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })
	return sorted
}

// =============================================================================
// CAPPED - per-year shortfall, surplus is lost
// =============================================================================

type Capped struct{}

func (Capped) Name() PolicyName { return PolicyCapped }

func (Capped) Apply(years []YearFigures) PolicyResult {
	result := PolicyResult{Policy: PolicyCapped, Steps: []PolicyStep{}, Total: decimal.Zero}
	for _, y := range ascending(years) {
		contribution := FloorZero(y.Delta())
		step := PolicyStep{
			Year:         y.Year,
			Opening:      result.Total,
			Delta:        y.Delta(),
			Contribution: contribution,
			Closing:      result.Total.Add(contribution),
		}
		result.Steps = append(result.Steps, step)
		result.Total = step.Closing
	}
	return result
}

// =============================================================================
// CARRY FORWARD - running balance floored at zero
// =============================================================================

type CarryForward struct{}

func (CarryForward) Name() PolicyName { return PolicyCarryForward }

func (CarryForward) Apply(years []YearFigures) PolicyResult {
	result := PolicyResult{Policy: PolicyCarryForward, Steps: []PolicyStep{}, Total: decimal.Zero}
	for _, y := range ascending(years) {
		closing := FloorZero(result.Total.Add(y.Delta()))
		step := PolicyStep{
			Year:         y.Year,
			Opening:      result.Total,
			Delta:        y.Delta(),
			Contribution: closing.Sub(result.Total),
			Closing:      closing,
		}
		result.Steps = append(result.Steps, step)
		result.Total = closing
	}
	return result
}
