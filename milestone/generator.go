/*
Package milestone generates labelled payment installments.

PURPOSE:
  Given a claiming period, a duration and a share of an amount, produce the
  ordered list of installments a vendor may claim. Generation is pure and
  deterministic: the same input always yields the same labels and amounts.

PARTITION RULE:
  periodsPerYear = {Monthly: 12, Quarterly: 4, Half-Yearly: 2, Annually: 1}
  totalPeriods   = floor(periodsPerYear * durationMonths / 12)
  amount         = total / totalPeriods        (every installment equal)
  percent        = percentage / totalPeriods

  There is no proration of a partial final period. When totalPeriods is
  zero the result is empty, not an error; callers must handle "nothing to
  claim".

LABELS:
  Labels carry the running index, the year and the index inside the year:

    Warranty Month 13 (Year 2, M1) (1.25%)
    AMC Quarter 6 (Year 2, Q2) (2.50%)
    Warranty Half 3 (Year 2, H1) (5.00%)
    Warranty Year 1 (15.00%)

  Staff Cost and Telecom use short installment labels instead
  ("Q1 Year 1" ... "Q4 Year 3"), see InstallmentLabels.

SEE ALSO:
  - schedule.go: Schedule helpers (totals, lookup)
  - contract/plan.go: Category plans that call into this package
*/
package milestone

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CLAIM PERIOD
// =============================================================================

// ClaimPeriod is how often an installment falls due.
type ClaimPeriod string

const (
	Monthly    ClaimPeriod = "Monthly"
	Quarterly  ClaimPeriod = "Quarterly"
	HalfYearly ClaimPeriod = "Half-Yearly"
	Annually   ClaimPeriod = "Annually"
)

// ErrUnknownPeriod is returned by ParseClaimPeriod.
var ErrUnknownPeriod = errors.New("unknown claiming period")

// Periods lists the claiming periods in display order.
var Periods = []ClaimPeriod{Monthly, Quarterly, HalfYearly, Annually}

// PeriodsPerYear returns how many installments one year holds.
// Unknown periods return 0.
func (p ClaimPeriod) PeriodsPerYear() int {
	switch p {
	case Monthly:
		return 12
	case Quarterly:
		return 4
	case HalfYearly:
		return 2
	case Annually:
		return 1
	default:
		return 0
	}
}

func (p ClaimPeriod) Valid() bool { return p.PeriodsPerYear() > 0 }

// ParseClaimPeriod accepts the display names and their common spellings
// ("half yearly", "HALFYEARLY", "annual", "yearly").
func ParseClaimPeriod(s string) (ClaimPeriod, error) {
	norm := strings.NewReplacer("-", "", " ", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "monthly", "month":
		return Monthly, nil
	case "quarterly", "quarter":
		return Quarterly, nil
	case "halfyearly", "halfyear", "biannual", "semiannual":
		return HalfYearly, nil
	case "annually", "annual", "yearly", "year":
		return Annually, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
	}
}

// TotalPeriods is floor(periodsPerYear * durationMonths / 12), never negative.
func TotalPeriods(period ClaimPeriod, durationMonths int) int {
	if durationMonths <= 0 {
		return 0
	}
	return period.PeriodsPerYear() * durationMonths / 12
}

// =============================================================================
// GENERATORS
// =============================================================================

// Generate splits total evenly over the periods in durationMonths.
// Labels start with prefix ("Warranty", "AMC", "Support 2").
func Generate(prefix string, period ClaimPeriod, durationMonths int, percentage, total decimal.Decimal) Schedule {
	n := TotalPeriods(period, durationMonths)
	if n <= 0 {
		return Schedule{}
	}

	count := decimal.NewFromInt(int64(n))
	amount := total.Div(count)
	percent := percentage.Div(count)

	out := make(Schedule, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Installment{
			Label:   periodLabel(prefix, period, i, percent),
			Percent: percent,
			Amount:  amount,
		})
	}
	return out
}

// Warranty generates warranty installments.
func Warranty(period ClaimPeriod, durationMonths int, percentage, total decimal.Decimal) Schedule {
	return Generate("Warranty", period, durationMonths, percentage, total)
}

// AMC generates annual-maintenance installments.
func AMC(period ClaimPeriod, durationMonths int, percentage, total decimal.Decimal) Schedule {
	return Generate("AMC", period, durationMonths, percentage, total)
}

// Support generates the installments for one row of a custom support plan.
// When the row spans at most one period it is claimed as a single entry
// carrying the whole amount.
func Support(idx int, period ClaimPeriod, durationMonths int, percentage, total decimal.Decimal) Schedule {
	prefix := fmt.Sprintf("Support %d", idx)
	if TotalPeriods(period, durationMonths) <= 1 {
		return Schedule{{
			Label:   fmt.Sprintf("%s (%s%%)", prefix, percentage.StringFixed(2)),
			Percent: percentage,
			Amount:  total,
		}}
	}
	return Generate(prefix, period, durationMonths, percentage, total)
}

// InstallmentLabels returns periodsPerYear*years short labels
// ("M1 Year 1", "Q3 Year 2", "H2 Year 1", "Year 4").
func InstallmentLabels(period ClaimPeriod, years int) []string {
	perYear := period.PeriodsPerYear()
	if perYear == 0 || years <= 0 {
		return nil
	}

	labels := make([]string, 0, perYear*years)
	for y := 1; y <= years; y++ {
		for k := 1; k <= perYear; k++ {
			switch period {
			case Monthly:
				labels = append(labels, fmt.Sprintf("M%d Year %d", k, y))
			case Quarterly:
				labels = append(labels, fmt.Sprintf("Q%d Year %d", k, y))
			case HalfYearly:
				labels = append(labels, fmt.Sprintf("H%d Year %d", k, y))
			default:
				labels = append(labels, fmt.Sprintf("Year %d", y))
			}
		}
	}
	return labels
}

// EqualInstallments divides amount evenly over InstallmentLabels(period, years).
// No percentage split is involved; each entry carries 100/n percent.
func EqualInstallments(period ClaimPeriod, years int, amount decimal.Decimal) Schedule {
	labels := InstallmentLabels(period, years)
	if len(labels) == 0 {
		return Schedule{}
	}

	count := decimal.NewFromInt(int64(len(labels)))
	each := amount.Div(count)
	percent := decimal.NewFromInt(100).Div(count)

	out := make(Schedule, len(labels))
	for i, label := range labels {
		out[i] = Installment{Label: label, Percent: percent, Amount: each}
	}
	return out
}

// periodLabel renders the label of the i-th (0-based) period.
func periodLabel(prefix string, period ClaimPeriod, i int, percent decimal.Decimal) string {
	perYear := period.PeriodsPerYear()
	n := i + 1
	year := i/perYear + 1
	k := i%perYear + 1
	pct := percent.StringFixed(2)

	switch period {
	case Monthly:
		return fmt.Sprintf("%s Month %d (Year %d, M%d) (%s%%)", prefix, n, year, k, pct)
	case Quarterly:
		return fmt.Sprintf("%s Quarter %d (Year %d, Q%d) (%s%%)", prefix, n, year, k, pct)
	case HalfYearly:
		return fmt.Sprintf("%s Half %d (Year %d, H%d) (%s%%)", prefix, n, year, k, pct)
	default:
		return fmt.Sprintf("%s Year %d (%s%%)", prefix, n, pct)
	}
}
