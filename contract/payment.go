package contract

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-admin/locale"
)

// DelayThresholdDays is how long a release order may trail receipt before
// a delay reason is required.
const DelayThresholdDays = 30

// ResolveLDBasis applies the two mutually exclusive "applied on" boxes.
// When both end up checked the box that was already on is turned off;
// with no prior choice Claimed wins.
func ResolveLDBasis(prev LDBasis, pqpChecked, claimedChecked bool) LDBasis {
	switch {
	case pqpChecked && claimedChecked:
		if prev == LDOnClaimed {
			return LDOnPQP
		}
		return LDOnClaimed
	case pqpChecked:
		return LDOnPQP
	case claimedChecked:
		return LDOnClaimed
	default:
		return LDNone
	}
}

// Checkboxes renders the basis as the pair of boxes shown on the form.
func (b LDBasis) Checkboxes() (pqp, claimed bool) {
	return b == LDOnPQP, b == LDOnClaimed
}

// ParseLDBasis accepts "PQP", "Claimed", "claimed value" and blank.
func ParseLDBasis(s string) LDBasis {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pqp", "planned", "planned claim":
		return LDOnPQP
	case "claimed", "claimed value", "claim":
		return LDOnClaimed
	default:
		return LDNone
	}
}

// LDAmount is the basis amount times percent / 100.
func LDAmount(planned, claimed, percent decimal.Decimal, basis LDBasis) decimal.Decimal {
	switch basis {
	case LDOnPQP:
		return share(planned, percent)
	case LDOnClaimed:
		return share(claimed, percent)
	default:
		return decimal.Zero
	}
}

// Payable deducts LD from the amount it was applied on. Without LD the
// claimed value is payable.
func Payable(planned, claimed, ldAmount decimal.Decimal, basis LDBasis) decimal.Decimal {
	switch basis {
	case LDOnPQP:
		return planned.Sub(ldAmount)
	case LDOnClaimed:
		return claimed.Sub(ldAmount)
	default:
		return claimed
	}
}

// PaymentStatusOf is Paid once a release order carries both a date and a
// positive amount.
func PaymentStatusOf(ro ReleaseOrder) PaymentStatus {
	if ro.Date != nil && ro.Amount.IsPositive() {
		return PaymentPaid
	}
	return PaymentPending
}

func daysReceiptToRO(received, roDate *time.Time) (int, bool) {
	if received == nil || roDate == nil {
		return 0, false
	}
	days := locale.DaysBetween(*received, *roDate)
	return days, days >= 0
}

// =============================================================================
// SHARED CLAIM RULES
// =============================================================================

// claim is the amount block shared by invoices and milestone progress.
type claim struct {
	category   Category
	admissible decimal.Decimal
	planned    decimal.Decimal
	claimed    decimal.Decimal
	ld         LiquidityDamage
	ro         ReleaseOrder
	received   *time.Time
	delay      string
}

// settle validates the claim, fills in LD amount and returns payable.
// Fatal breaches go to vs; soft ones are returned as warnings.
func (c *claim) settle(vs *violations) (decimal.Decimal, []Warning) {
	var warnings []Warning

	if c.planned.IsNegative() {
		vs.add("planned_claim", CodeOutOfRange, "planned claim must not be negative")
	}
	if c.claimed.IsNegative() {
		vs.add("claimed_value", CodeOutOfRange, "claimed value must not be negative")
	}
	if c.ro.Amount.IsNegative() {
		vs.add("release_order.amount", CodeOutOfRange, "release order amount must not be negative")
	}

	checkPercent(vs, "liquidity_damage.percent", c.ld.Percent)
	if c.ld.Percent.IsPositive() {
		if c.ld.AppliedOn == LDNone {
			vs.add("liquidity_damage.applied_on", CodeRequired, "choose whether LD applies on PQP or claimed value")
		}
		if strings.TrimSpace(c.ld.Reason) == "" {
			vs.add("liquidity_damage.reason", CodeReasonRequired, "a reason is required when LD is applied")
		}
	}
	if c.ld.AppliedOn == LDOnPQP && !c.category.RequiresPlannedClaim() {
		vs.add("liquidity_damage.applied_on", CodeBasisNotAllowed, "%s invoices have no PQP to apply LD on", c.category)
	}
	if !c.ld.Percent.IsPositive() {
		c.ld.AppliedOn = LDNone
	}

	c.ld.Amount = LDAmount(c.planned, c.claimed, c.ld.Percent, c.ld.AppliedOn)
	payable := Payable(c.planned, c.claimed, c.ld.Amount, c.ld.AppliedOn)

	if payable.GreaterThan(c.admissible) {
		vs.add("payable_amount", CodeCeiling, "payable %s exceeds admissible amount %s", payable, c.admissible)
	}
	if c.ro.Amount.GreaterThan(c.admissible) {
		vs.add("release_order.amount", CodeCeiling, "release order amount %s exceeds admissible amount %s", c.ro.Amount, c.admissible)
	}
	if c.ro.Amount.GreaterThan(payable) && !c.ro.Amount.GreaterThan(c.admissible) {
		warnings = append(warnings, warnf("release_order_exceeds_payable",
			"release order amount %s exceeds payable %s", c.ro.Amount, payable))
	}
	if c.category.RequiresPlannedClaim() && c.claimed.GreaterThan(c.planned) {
		warnings = append(warnings, warnf("claimed_exceeds_planned",
			"claimed value %s exceeds planned claim %s", c.claimed, c.planned))
	}
	if c.claimed.GreaterThan(c.admissible) {
		warnings = append(warnings, warnf("claimed_exceeds_admissible",
			"claimed value %s exceeds admissible amount %s", c.claimed, c.admissible))
	}

	if c.received != nil && c.ro.Date != nil {
		days := locale.DaysBetween(*c.received, *c.ro.Date)
		switch {
		case days < 0:
			vs.add("release_order.date", CodeDateOrder, "release order date is before the received date")
		case days > DelayThresholdDays && strings.TrimSpace(c.delay) == "":
			vs.add("delay_reason", CodeReasonRequired,
				"release order came %d days after receipt; a delay reason is required", days)
		}
	}
	return payable, warnings
}
