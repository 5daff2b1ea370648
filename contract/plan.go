/*
plan.go - Category milestone plans

PURPOSE:
  Each item category claims its invoice in a different shape. A plan holds
  the category's percentages and durations and builds the schedule of
  milestones the invoice may claim, priced on the admissible amount.

PLANS:
  Hardware          Delivery, UAT Submission, UAT Completion, then Warranty
                    installments over the warranty share
  AMC               AMC installments, optionally starting at a later label
  Hardware+AMC      Hardware's milestones followed by AMC installments
  Software          Delivery bundled with Support Year 1, then Support Year k
  Solution & Support  One generated block per custom row
  Staff Cost        Equal installments over whole years
  Telecom           Equal installments over whole years
  Others            Free rows: "Milestone i: remark (p%)"

  When a plan's percentages do not add up to 100 the schedule is still
  built and a warning is returned.
*/
package contract

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-admin/milestone"
)

var percentTolerance = decimal.RequireFromString("0.01")

// MilestonePlan builds the claimable schedule of one category.
type MilestonePlan interface {
	Category() Category
	Build(admissible decimal.Decimal) (milestone.Schedule, []Warning)
	validate(vs *violations)
}

func share(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred)
}

func fixed(label string, percent, admissible decimal.Decimal) milestone.Installment {
	return milestone.Installment{
		Label:   fmt.Sprintf("%s (%s%%)", label, percent.StringFixed(2)),
		Percent: percent,
		Amount:  share(admissible, percent),
	}
}

func percentTotalWarning(total decimal.Decimal) []Warning {
	if total.Sub(hundred).Abs().GreaterThan(percentTolerance) {
		return []Warning{warnf("percent_total", "milestone percentages add up to %s%%, expected 100%%", total.StringFixed(2))}
	}
	return nil
}

func checkPeriod(vs *violations, field string, months int, period milestone.ClaimPeriod) {
	if months < 0 {
		vs.add(field+"_months", CodeOutOfRange, "duration must not be negative")
	}
	if months > 0 && !period.Valid() {
		vs.add(field+"_period", CodeInvalid, "unknown claiming period %q", period)
	}
}

// =============================================================================
// HARDWARE
// =============================================================================

type HardwarePlan struct {
	DeliveryPercent      decimal.Decimal       `json:"delivery_percent"`
	UATSubmissionPercent decimal.Decimal       `json:"uat_submission_percent"`
	UATCompletionPercent decimal.Decimal       `json:"uat_completion_percent"`
	WarrantyPercent      decimal.Decimal       `json:"warranty_percent"`
	WarrantyMonths       int                   `json:"warranty_months"`
	WarrantyPeriod       milestone.ClaimPeriod `json:"warranty_period"`
}

func (HardwarePlan) Category() Category { return CategoryHardware }

func (p HardwarePlan) validate(vs *violations) {
	checkPercent(vs, "delivery_percent", p.DeliveryPercent)
	checkPercent(vs, "uat_submission_percent", p.UATSubmissionPercent)
	checkPercent(vs, "uat_completion_percent", p.UATCompletionPercent)
	checkPercent(vs, "warranty_percent", p.WarrantyPercent)
	checkPeriod(vs, "warranty", p.WarrantyMonths, p.WarrantyPeriod)
}

func (p HardwarePlan) Build(admissible decimal.Decimal) (milestone.Schedule, []Warning) {
	s, warnings := p.build(admissible)
	total := p.DeliveryPercent.Add(p.UATSubmissionPercent).Add(p.UATCompletionPercent).Add(p.WarrantyPercent)
	return s, append(warnings, percentTotalWarning(total)...)
}

func (p HardwarePlan) build(admissible decimal.Decimal) (milestone.Schedule, []Warning) {
	var warnings []Warning
	s := milestone.Schedule{}
	for _, m := range []struct {
		label   string
		percent decimal.Decimal
	}{
		{"Delivery", p.DeliveryPercent},
		{"UAT Submission", p.UATSubmissionPercent},
		{"UAT Completion", p.UATCompletionPercent},
	} {
		if m.percent.IsPositive() {
			s = append(s, fixed(m.label, m.percent, admissible))
		}
	}

	if p.WarrantyPercent.IsPositive() {
		w := milestone.Warranty(p.WarrantyPeriod, p.WarrantyMonths, p.WarrantyPercent, share(admissible, p.WarrantyPercent))
		if len(w) == 0 {
			warnings = append(warnings, warnf("no_warranty_installments",
				"a %d month warranty holds no full %s period", p.WarrantyMonths, p.WarrantyPeriod))
		}
		s = append(s, w...)
	}
	return s, warnings
}

// =============================================================================
// AMC
// =============================================================================

type AMCPlan struct {
	AMCPercent decimal.Decimal       `json:"amc_percent"`
	AMCMonths  int                   `json:"amc_months"`
	AMCPeriod  milestone.ClaimPeriod `json:"amc_period"`
	// StartingPeriod, when set, is the label of the first claimable installment.
	StartingPeriod string `json:"starting_period,omitempty"`
}

func (AMCPlan) Category() Category { return CategoryAMC }

func (p AMCPlan) validate(vs *violations) {
	checkPercent(vs, "amc_percent", p.AMCPercent)
	checkPeriod(vs, "amc", p.AMCMonths, p.AMCPeriod)
}

func (p AMCPlan) Build(admissible decimal.Decimal) (milestone.Schedule, []Warning) {
	s, warnings := p.build(admissible)
	return s, append(warnings, percentTotalWarning(p.AMCPercent)...)
}

func (p AMCPlan) build(admissible decimal.Decimal) (milestone.Schedule, []Warning) {
	var warnings []Warning
	s := milestone.AMC(p.AMCPeriod, p.AMCMonths, p.AMCPercent, share(admissible, p.AMCPercent))
	if len(s) == 0 && p.AMCPercent.IsPositive() {
		warnings = append(warnings, warnf("no_amc_installments",
			"a %d month AMC holds no full %s period", p.AMCMonths, p.AMCPeriod))
	}
	if start := strings.TrimSpace(p.StartingPeriod); start != "" {
		if tail := s.From(start); len(tail) > 0 {
			s = tail
		} else {
			warnings = append(warnings, warnf("unknown_starting_period",
				"starting period %q is not an AMC installment; offering all installments", start))
		}
	}
	return s, warnings
}

// =============================================================================
// HARDWARE + AMC
// =============================================================================

type HardwareAMCPlan struct {
	Hardware HardwarePlan `json:"hardware"`
	AMC      AMCPlan      `json:"amc"`
}

func (HardwareAMCPlan) Category() Category { return CategoryHardwareAMC }

func (p HardwareAMCPlan) validate(vs *violations) {
	p.Hardware.validate(vs)
	p.AMC.validate(vs)
}

func (p HardwareAMCPlan) Build(admissible decimal.Decimal) (milestone.Schedule, []Warning) {
	hw, hwWarnings := p.Hardware.build(admissible)
	amc, amcWarnings := p.AMC.build(admissible)

	h := p.Hardware
	total := h.DeliveryPercent.Add(h.UATSubmissionPercent).Add(h.UATCompletionPercent).
		Add(h.WarrantyPercent).Add(p.AMC.AMCPercent)

	warnings := append(hwWarnings, amcWarnings...)
	return milestone.Concat(hw, amc), append(warnings, percentTotalWarning(total)...)
}

// =============================================================================
// SOFTWARE
// =============================================================================

// SoftwarePlan bundles delivery with the first support year. Remaining
// support years share the support percentage equally.
type SoftwarePlan struct {
	DeliveryPercent decimal.Decimal `json:"delivery_percent"`
	SupportPercent  decimal.Decimal `json:"support_percent"`
	SupportYears    int             `json:"support_years"`
}

func (SoftwarePlan) Category() Category { return CategorySoftware }

func (p SoftwarePlan) validate(vs *violations) {
	checkPercent(vs, "delivery_percent", p.DeliveryPercent)
	checkPercent(vs, "support_percent", p.SupportPercent)
	if p.SupportYears < 0 {
		vs.add("support_years", CodeOutOfRange, "support years must not be negative")
	}
}

func (p SoftwarePlan) Build(admissible decimal.Decimal) (milestone.Schedule, []Warning) {
	total := p.DeliveryPercent.Add(p.SupportPercent)
	warnings := percentTotalWarning(total)

	if p.SupportYears <= 1 {
		return milestone.Schedule{fixed("Delivery + Support Year 1", total, admissible)}, warnings
	}

	perYear := p.SupportPercent.Div(decimal.NewFromInt(int64(p.SupportYears)))
	s := milestone.Schedule{fixed("Delivery + Support Year 1", p.DeliveryPercent.Add(perYear), admissible)}
	for y := 2; y <= p.SupportYears; y++ {
		s = append(s, fixed(fmt.Sprintf("Support Year %d", y), perYear, admissible))
	}
	return s, warnings
}

// =============================================================================
// SOLUTION & SUPPORT
// =============================================================================

type SupportRow struct {
	Percent        decimal.Decimal       `json:"percent"`
	Period         milestone.ClaimPeriod `json:"period"`
	DurationMonths int                   `json:"duration_months"`
}

type SolutionSupportPlan struct {
	Rows []SupportRow `json:"rows"`
}

func (SolutionSupportPlan) Category() Category { return CategorySolutionSupport }

func (p SolutionSupportPlan) validate(vs *violations) {
	if len(p.Rows) == 0 {
		vs.add("rows", CodeRequired, "at least one support row is required")
	}
	for i, r := range p.Rows {
		field := fmt.Sprintf("rows[%d]", i)
		checkPercent(vs, field+".percent", r.Percent)
		if r.DurationMonths < 0 {
			vs.add(field+".duration_months", CodeOutOfRange, "duration must not be negative")
		}
		if r.Period != "" && !r.Period.Valid() {
			vs.add(field+".period", CodeInvalid, "unknown claiming period %q", r.Period)
		}
	}
}

func (p SolutionSupportPlan) Build(admissible decimal.Decimal) (milestone.Schedule, []Warning) {
	parts := make([]milestone.Schedule, len(p.Rows))
	total := decimal.Zero
	for i, r := range p.Rows {
		parts[i] = milestone.Support(i+1, r.Period, r.DurationMonths, r.Percent, share(admissible, r.Percent))
		total = total.Add(r.Percent)
	}
	return milestone.Concat(parts...), percentTotalWarning(total)
}

// =============================================================================
// STAFF COST / TELECOM
// =============================================================================

// InstallmentPlan splits the admissible amount evenly over whole years.
type InstallmentPlan struct {
	Years  int                   `json:"years"`
	Period milestone.ClaimPeriod `json:"period"`
}

func (p InstallmentPlan) validate(vs *violations) {
	if p.Years < 1 {
		vs.add("years", CodeOutOfRange, "at least one year is required")
	}
	if !p.Period.Valid() {
		vs.add("period", CodeInvalid, "unknown claiming period %q", p.Period)
	}
}

func (p InstallmentPlan) build(admissible decimal.Decimal) (milestone.Schedule, []Warning) {
	return milestone.EqualInstallments(p.Period, p.Years, admissible), nil
}

type StaffPlan struct{ InstallmentPlan }

func (StaffPlan) Category() Category { return CategoryStaffCost }

func (p StaffPlan) Build(admissible decimal.Decimal) (milestone.Schedule, []Warning) {
	return p.build(admissible)
}

type TelecomPlan struct{ InstallmentPlan }

func (TelecomPlan) Category() Category { return CategoryTelecom }

func (p TelecomPlan) Build(admissible decimal.Decimal) (milestone.Schedule, []Warning) {
	return p.build(admissible)
}

// =============================================================================
// OTHERS
// =============================================================================

type OtherRow struct {
	Percent decimal.Decimal `json:"percent"`
	Remark  string          `json:"remark"`
}

type OthersPlan struct {
	Rows []OtherRow `json:"rows"`
}

func (OthersPlan) Category() Category { return CategoryOthers }

func (p OthersPlan) validate(vs *violations) {
	if len(p.Rows) == 0 {
		vs.add("rows", CodeRequired, "at least one milestone row is required")
	}
	for i, r := range p.Rows {
		checkPercent(vs, fmt.Sprintf("rows[%d].percent", i), r.Percent)
	}
}

func (p OthersPlan) Build(admissible decimal.Decimal) (milestone.Schedule, []Warning) {
	s := make(milestone.Schedule, 0, len(p.Rows))
	total := decimal.Zero
	for i, r := range p.Rows {
		label := fmt.Sprintf("Milestone %d", i+1)
		if remark := strings.TrimSpace(r.Remark); remark != "" {
			label += ": " + remark
		}
		s = append(s, fixed(label, r.Percent, admissible))
		total = total.Add(r.Percent)
	}
	return s, percentTotalWarning(total)
}

// ValidatePlan checks a plan on its own, for previews.
func ValidatePlan(p MilestonePlan) error {
	var vs violations
	p.validate(&vs)
	return vs.err()
}
