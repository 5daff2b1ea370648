/*
Package factory converts JSON input into contract plans and item payloads.

PURPOSE:
  The forms that create items and invoices send category-specific fields
  as JSON. The factory picks the right contract type from the category
  and fills it in, parsing claiming periods and dates leniently.

JSON SCHEMA (plans):
  {
    "category": "Hardware",
    "delivery_percent": 60,
    "uat_submission_percent": 20,
    "uat_completion_percent": 10,
    "warranty": {"percent": 10, "months": 36, "period": "Annually"}
  }

  Hardware        delivery/uat_* percents, warranty
  AMC             amc (with optional starting_period)
  Hardware+AMC    hardware fields plus amc
  Software        delivery_percent, support_percent, support_years
  Solution & Support  rows[] of {percent, period, duration_months}
  Staff Cost      years, period
  Telecom         years, period
  Others          rows[] of {percent, remark}

DEFAULTS:
  - A blank claiming period is Annually
  - Category names are matched loosely ("hardware amc", "Staff-Cost")
  - Dates accept any format locale.ParseFlexibleDate does

SEE ALSO:
  - contract/plan.go: Plan types
  - contract/payload.go: Payload types
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-admin/contract"
	"github.com/warp/contract-admin/locale"
	"github.com/warp/contract-admin/milestone"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of a milestone plan.
type PlanJSON struct {
	Category string `json:"category"`

	DeliveryPercent      decimal.Decimal `json:"delivery_percent"`
	UATSubmissionPercent decimal.Decimal `json:"uat_submission_percent"`
	UATCompletionPercent decimal.Decimal `json:"uat_completion_percent"`
	Warranty             *ScheduleJSON   `json:"warranty,omitempty"`
	AMC                  *ScheduleJSON   `json:"amc,omitempty"`

	SupportPercent decimal.Decimal `json:"support_percent"`
	SupportYears   int             `json:"support_years"`

	Years  int    `json:"years"`
	Period string `json:"period"`

	Rows []RowJSON `json:"rows,omitempty"`
}

// ScheduleJSON is a percentage spread over a duration.
type ScheduleJSON struct {
	Percent        decimal.Decimal `json:"percent"`
	Months         int             `json:"months"`
	Period         string          `json:"period"`
	StartingPeriod string          `json:"starting_period,omitempty"` // AMC only
}

// RowJSON is one Solution & Support or Others row.
type RowJSON struct {
	Percent        decimal.Decimal `json:"percent"`
	Period         string          `json:"period,omitempty"`
	DurationMonths int             `json:"duration_months,omitempty"`
	Remark         string          `json:"remark,omitempty"`
}

// PayloadJSON is the JSON representation of an item's category fields.
type PayloadJSON struct {
	Category string        `json:"category"`
	Warranty *CoverageJSON `json:"warranty,omitempty"`
	AMC      *CoverageJSON `json:"amc,omitempty"`
	Support  *SupportJSON  `json:"support,omitempty"`
	Staff    *StaffJSON    `json:"staff,omitempty"`
	Telecom  *TelecomJSON  `json:"telecom,omitempty"`
}

type CoverageJSON struct {
	DurationMonths int             `json:"duration_months"`
	Percent        decimal.Decimal `json:"percent"`
	Rate           decimal.Decimal `json:"rate"`
}

type SupportJSON struct {
	DurationMonths int             `json:"duration_months"`
	Period         string          `json:"period"`
	Percent        decimal.Decimal `json:"percent"`
}

type StaffJSON struct {
	DurationMonths int    `json:"duration_months"`
	Period         string `json:"period"`
	From           string `json:"from,omitempty"`
	To             string `json:"to,omitempty"`
}

type TelecomJSON struct {
	SubVendor string `json:"sub_vendor"`
	Link      string `json:"link"`
	LinkType  string `json:"link_type"`
	Capacity  string `json:"capacity"`
}

// =============================================================================
// FACTORY
// =============================================================================

// Factory converts JSON input to contract types.
type Factory struct{}

// New creates a new factory.
func New() *Factory {
	return &Factory{}
}

// ParsePlan parses a JSON document into a MilestonePlan.
func (f *Factory) ParsePlan(data []byte) (contract.MilestonePlan, error) {
	var pj PlanJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, fmt.Errorf("failed to parse plan JSON: %w", err)
	}
	return f.PlanFromJSON(pj)
}

// PlanFromJSON converts PlanJSON to the plan type of its category.
func (f *Factory) PlanFromJSON(pj PlanJSON) (contract.MilestonePlan, error) {
	category, err := contract.ParseCategory(pj.Category)
	if err != nil {
		return nil, err
	}

	switch category {
	case contract.CategoryHardware:
		return hardwarePlan(pj)
	case contract.CategoryAMC:
		return amcPlan(pj.AMC)
	case contract.CategoryHardwareAMC:
		hw, err := hardwarePlan(pj)
		if err != nil {
			return nil, err
		}
		amc, err := amcPlan(pj.AMC)
		if err != nil {
			return nil, err
		}
		return contract.HardwareAMCPlan{Hardware: hw, AMC: amc}, nil
	case contract.CategorySoftware:
		return contract.SoftwarePlan{
			DeliveryPercent: pj.DeliveryPercent,
			SupportPercent:  pj.SupportPercent,
			SupportYears:    pj.SupportYears,
		}, nil
	case contract.CategorySolutionSupport:
		return solutionSupportPlan(pj.Rows)
	case contract.CategoryStaffCost, contract.CategoryTelecom:
		period, err := parsePeriod("period", pj.Period)
		if err != nil {
			return nil, err
		}
		ip := contract.InstallmentPlan{Years: pj.Years, Period: period}
		if category == contract.CategoryTelecom {
			return contract.TelecomPlan{InstallmentPlan: ip}, nil
		}
		return contract.StaffPlan{InstallmentPlan: ip}, nil
	case contract.CategoryOthers:
		plan := contract.OthersPlan{}
		for _, r := range pj.Rows {
			plan.Rows = append(plan.Rows, contract.OtherRow{Percent: r.Percent, Remark: r.Remark})
		}
		return plan, nil
	default:
		return nil, fmt.Errorf("%w: %q", contract.ErrUnknownCategory, pj.Category)
	}
}

func hardwarePlan(pj PlanJSON) (contract.HardwarePlan, error) {
	plan := contract.HardwarePlan{
		DeliveryPercent:      pj.DeliveryPercent,
		UATSubmissionPercent: pj.UATSubmissionPercent,
		UATCompletionPercent: pj.UATCompletionPercent,
		WarrantyPeriod:       milestone.Annually,
	}
	if w := pj.Warranty; w != nil {
		period, err := parsePeriod("warranty.period", w.Period)
		if err != nil {
			return contract.HardwarePlan{}, err
		}
		plan.WarrantyPercent = w.Percent
		plan.WarrantyMonths = w.Months
		plan.WarrantyPeriod = period
	}
	return plan, nil
}

func amcPlan(sj *ScheduleJSON) (contract.AMCPlan, error) {
	if sj == nil {
		return contract.AMCPlan{AMCPeriod: milestone.Annually}, nil
	}
	period, err := parsePeriod("amc.period", sj.Period)
	if err != nil {
		return contract.AMCPlan{}, err
	}
	return contract.AMCPlan{
		AMCPercent:     sj.Percent,
		AMCMonths:      sj.Months,
		AMCPeriod:      period,
		StartingPeriod: sj.StartingPeriod,
	}, nil
}

func solutionSupportPlan(rows []RowJSON) (contract.SolutionSupportPlan, error) {
	plan := contract.SolutionSupportPlan{}
	for i, r := range rows {
		period, err := parsePeriod(fmt.Sprintf("rows[%d].period", i), r.Period)
		if err != nil {
			return contract.SolutionSupportPlan{}, err
		}
		plan.Rows = append(plan.Rows, contract.SupportRow{
			Percent:        r.Percent,
			Period:         period,
			DurationMonths: r.DurationMonths,
		})
	}
	return plan, nil
}

// ParsePayload parses a JSON document into an item Payload.
func (f *Factory) ParsePayload(data []byte) (contract.Payload, error) {
	var pj PayloadJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, fmt.Errorf("failed to parse payload JSON: %w", err)
	}
	return f.PayloadFromJSON(pj)
}

// PayloadFromJSON converts PayloadJSON to the payload of its category.
// A category whose section is absent yields a nil payload.
func (f *Factory) PayloadFromJSON(pj PayloadJSON) (contract.Payload, error) {
	category, err := contract.ParseCategory(pj.Category)
	if err != nil {
		return nil, err
	}

	switch category {
	case contract.CategoryHardware:
		if pj.Warranty == nil {
			return nil, nil
		}
		return contract.HardwarePayload{Warranty: coverage(pj.Warranty)}, nil
	case contract.CategoryAMC:
		if pj.AMC == nil {
			return nil, nil
		}
		return contract.AMCPayload{AMC: coverage(pj.AMC)}, nil
	case contract.CategoryHardwareAMC:
		if pj.Warranty == nil && pj.AMC == nil {
			return nil, nil
		}
		return contract.HardwareAMCPayload{Warranty: coverage(pj.Warranty), AMC: coverage(pj.AMC)}, nil
	case contract.CategorySoftware, contract.CategorySolutionSupport:
		if pj.Support == nil {
			return nil, nil
		}
		period, err := parsePeriod("support.period", pj.Support.Period)
		if err != nil {
			return nil, err
		}
		return contract.SupportPayload{
			DurationMonths: pj.Support.DurationMonths,
			Period:         period,
			Percent:        pj.Support.Percent,
		}, nil
	case contract.CategoryStaffCost:
		if pj.Staff == nil {
			return nil, nil
		}
		return staffPayload(*pj.Staff)
	case contract.CategoryTelecom:
		if pj.Telecom == nil {
			return nil, nil
		}
		return contract.TelecomPayload{
			SubVendor: pj.Telecom.SubVendor,
			Link:      pj.Telecom.Link,
			LinkType:  pj.Telecom.LinkType,
			Capacity:  pj.Telecom.Capacity,
		}, nil
	default:
		// Others carries no category fields.
		return nil, nil
	}
}

func staffPayload(sj StaffJSON) (contract.Payload, error) {
	period, err := parsePeriod("staff.period", sj.Period)
	if err != nil {
		return nil, err
	}
	from, err := parseDate("staff.from", sj.From)
	if err != nil {
		return nil, err
	}
	to, err := parseDate("staff.to", sj.To)
	if err != nil {
		return nil, err
	}
	return contract.StaffPayload{DurationMonths: sj.DurationMonths, Period: period, From: from, To: to}, nil
}

func coverage(cj *CoverageJSON) contract.CoverageTerms {
	if cj == nil {
		return contract.CoverageTerms{}
	}
	return contract.CoverageTerms{DurationMonths: cj.DurationMonths, Percent: cj.Percent, Rate: cj.Rate}
}

// =============================================================================
// PARSE HELPERS
// =============================================================================

// FieldError names the input field a conversion failed on.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

func parsePeriod(field, s string) (milestone.ClaimPeriod, error) {
	if s == "" {
		return milestone.Annually, nil
	}
	p, err := milestone.ParseClaimPeriod(s)
	if err != nil {
		return "", &FieldError{Field: field, Err: err}
	}
	return p, nil
}

func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := locale.ParseFlexibleDate(s)
	if err != nil {
		return nil, &FieldError{Field: field, Err: err}
	}
	return &t, nil
}
