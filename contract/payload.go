package contract

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-admin/milestone"
)

// =============================================================================
// PAYLOAD VARIANTS
// =============================================================================

// Payload carries the category-specific fields of an item. The set of
// variants is closed: each category accepts exactly one of them, and
// Others accepts none.
type Payload interface {
	Kind() string
	validate(vs *violations, field string)
	derive(valuePerItem decimal.Decimal) Payload
	clone() Payload
}

// CoverageTerms describes a warranty or AMC cover priced as a share of the
// per-item value.
type CoverageTerms struct {
	DurationMonths int             `json:"duration_months"`
	Percent        decimal.Decimal `json:"percent"`
	// Rate is ValuePerItem * Percent / 100.
	Rate decimal.Decimal `json:"rate"`
}

func (c CoverageTerms) validate(vs *violations, field string) {
	if c.DurationMonths < 0 {
		vs.add(field+".duration_months", CodeOutOfRange, "duration must not be negative")
	}
	checkPercent(vs, field+".percent", c.Percent)
}

func (c CoverageTerms) derive(valuePerItem decimal.Decimal) CoverageTerms {
	c.Rate = valuePerItem.Mul(c.Percent).Div(hundred)
	return c
}

type HardwarePayload struct {
	Warranty CoverageTerms `json:"warranty"`
}

func (HardwarePayload) Kind() string { return string(CategoryHardware) }

func (p HardwarePayload) validate(vs *violations, field string) {
	p.Warranty.validate(vs, field+".warranty")
}

func (p HardwarePayload) derive(v decimal.Decimal) Payload {
	p.Warranty = p.Warranty.derive(v)
	return p
}

func (p HardwarePayload) clone() Payload { return p }

type AMCPayload struct {
	AMC CoverageTerms `json:"amc"`
}

func (AMCPayload) Kind() string { return string(CategoryAMC) }

func (p AMCPayload) validate(vs *violations, field string) {
	p.AMC.validate(vs, field+".amc")
}

func (p AMCPayload) derive(v decimal.Decimal) Payload {
	p.AMC = p.AMC.derive(v)
	return p
}

func (p AMCPayload) clone() Payload { return p }

type HardwareAMCPayload struct {
	Warranty CoverageTerms `json:"warranty"`
	AMC      CoverageTerms `json:"amc"`
}

func (HardwareAMCPayload) Kind() string { return string(CategoryHardwareAMC) }

func (p HardwareAMCPayload) validate(vs *violations, field string) {
	p.Warranty.validate(vs, field+".warranty")
	p.AMC.validate(vs, field+".amc")
}

func (p HardwareAMCPayload) derive(v decimal.Decimal) Payload {
	p.Warranty = p.Warranty.derive(v)
	p.AMC = p.AMC.derive(v)
	return p
}

func (p HardwareAMCPayload) clone() Payload { return p }

// SupportPayload serves Software and Solution & Support items.
type SupportPayload struct {
	DurationMonths int                   `json:"duration_months"`
	Period         milestone.ClaimPeriod `json:"period,omitempty"`
	Percent        decimal.Decimal       `json:"percent"`
}

func (SupportPayload) Kind() string { return "Support" }

func (p SupportPayload) validate(vs *violations, field string) {
	if p.DurationMonths < 0 {
		vs.add(field+".duration_months", CodeOutOfRange, "duration must not be negative")
	}
	if p.DurationMonths > 0 && p.Period != "" && !p.Period.Valid() {
		vs.add(field+".period", CodeInvalid, "unknown claiming period %q", p.Period)
	}
	checkPercent(vs, field+".percent", p.Percent)
}

func (p SupportPayload) derive(decimal.Decimal) Payload { return p }
func (p SupportPayload) clone() Payload                 { return p }

type StaffPayload struct {
	DurationMonths int                   `json:"duration_months"`
	Period         milestone.ClaimPeriod `json:"period,omitempty"`
	From           *time.Time            `json:"from,omitempty"`
	To             *time.Time            `json:"to,omitempty"`
}

func (StaffPayload) Kind() string { return string(CategoryStaffCost) }

func (p StaffPayload) validate(vs *violations, field string) {
	if p.DurationMonths < 0 {
		vs.add(field+".duration_months", CodeOutOfRange, "duration must not be negative")
	}
	if p.Period != "" && !p.Period.Valid() {
		vs.add(field+".period", CodeInvalid, "unknown claiming period %q", p.Period)
	}
	if p.From != nil && p.To != nil && p.To.Before(*p.From) {
		vs.add(field+".to", CodeDateOrder, "deployment end is before its start")
	}
}

func (p StaffPayload) derive(decimal.Decimal) Payload { return p }

func (p StaffPayload) clone() Payload {
	if p.From != nil {
		from := *p.From
		p.From = &from
	}
	if p.To != nil {
		to := *p.To
		p.To = &to
	}
	return p
}

type TelecomPayload struct {
	SubVendor string `json:"sub_vendor"`
	Link      string `json:"link"`
	LinkType  string `json:"link_type"`
	Capacity  string `json:"capacity"`
}

func (TelecomPayload) Kind() string { return string(CategoryTelecom) }

func (TelecomPayload) validate(*violations, string)    {}
func (p TelecomPayload) derive(decimal.Decimal) Payload { return p }
func (p TelecomPayload) clone() Payload                 { return p }

// payloadFits reports whether p is the variant category c accepts.
// A nil payload is accepted everywhere.
func payloadFits(c Category, p Payload) bool {
	if p == nil {
		return true
	}
	switch p.(type) {
	case HardwarePayload:
		return c == CategoryHardware
	case HardwareAMCPayload:
		return c == CategoryHardwareAMC
	case AMCPayload:
		return c == CategoryAMC
	case SupportPayload:
		return c == CategorySoftware || c == CategorySolutionSupport
	case StaffPayload:
		return c == CategoryStaffCost
	case TelecomPayload:
		return c == CategoryTelecom
	default:
		return false
	}
}

func checkPercent(vs *violations, field string, p decimal.Decimal) {
	if p.IsNegative() || p.GreaterThan(hundred) {
		vs.add(field, CodeOutOfRange, "percentage must be between 0 and 100, got %s", p)
	}
}
