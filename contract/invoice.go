package contract

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-admin/milestone"
)

// =============================================================================
// REFERENCE
// =============================================================================

// ItemRef is a resolved work-order item an invoice is raised against.
type ItemRef struct {
	WorkOrder WorkOrder
	Item      Item
}

// ItemLookup selects an item by work-order key and name. Location and
// category narrow the match when one work order repeats a name.
type ItemLookup struct {
	WorkOrderKey
	ItemName     string   `json:"item_name"`
	ItemLocation string   `json:"item_location,omitempty"`
	Category     Category `json:"category,omitempty"`
}

func (l ItemLookup) matches(wo WorkOrder, it Item) bool {
	if !wo.WorkOrderKey.Matches(l.WorkOrderKey) {
		return false
	}
	if strings.TrimSpace(it.Name) != strings.TrimSpace(l.ItemName) {
		return false
	}
	if l.ItemLocation != "" && strings.TrimSpace(it.Location) != strings.TrimSpace(l.ItemLocation) {
		return false
	}
	return l.Category == "" || it.Category == l.Category
}

// =============================================================================
// INVOICE DRAFT
// =============================================================================

// InvoiceFinancials are the amount fields of the invoice form. A zero Qty
// defaults to the item quantity.
type InvoiceFinancials struct {
	Qty          int             `json:"qty"`
	InvoiceValue decimal.Decimal `json:"invoice_value"`
	GSTPercent   decimal.Decimal `json:"invoice_gst_percent"`
	Admissible   decimal.Decimal `json:"admissible_amount"`
	PlannedClaim decimal.Decimal `json:"planned_claim"`
	Claimed      decimal.Decimal `json:"claimed_value"`
	Location     string          `json:"location,omitempty"`
}

type LDInput struct {
	Percent   decimal.Decimal `json:"percent"`
	AppliedOn LDBasis         `json:"applied_on"`
	Reason    string          `json:"reason"`
}

type InvoiceTracking struct {
	SubmissionDate    *time.Time `json:"submission_date,omitempty"`
	ReceivedAtTMD     *time.Time `json:"received_at_tmd_date,omitempty"`
	ArtifactsReceived *time.Time `json:"artifacts_received_date,omitempty"`
}

// InvoiceDraft accumulates the invoice form step by step. Nothing is
// checked until Finalize.
type InvoiceDraft struct {
	number      string
	ref         *ItemRef
	fin         InvoiceFinancials
	plan        MilestonePlan
	claimed     []string
	ld          LDInput
	ro          ReleaseOrder
	tracking    InvoiceTracking
	delayReason string
	remarks     string
	proof       ArtifactRef
}

func NewInvoiceDraft(invoiceNumber string) *InvoiceDraft {
	return &InvoiceDraft{number: strings.TrimSpace(invoiceNumber)}
}

func (d *InvoiceDraft) WithReference(ref ItemRef) *InvoiceDraft {
	d.ref = &ref
	return d
}

func (d *InvoiceDraft) WithFinancials(f InvoiceFinancials) *InvoiceDraft {
	d.fin = f
	return d
}

func (d *InvoiceDraft) WithPlan(p MilestonePlan) *InvoiceDraft {
	d.plan = p
	return d
}

// ClaimMilestones selects milestones by label.
func (d *InvoiceDraft) ClaimMilestones(labels ...string) *InvoiceDraft {
	d.claimed = append([]string(nil), labels...)
	return d
}

func (d *InvoiceDraft) WithLiquidityDamage(ld LDInput) *InvoiceDraft {
	d.ld = ld
	return d
}

func (d *InvoiceDraft) WithReleaseOrder(ro ReleaseOrder) *InvoiceDraft {
	d.ro = ro
	return d
}

func (d *InvoiceDraft) WithTracking(t InvoiceTracking) *InvoiceDraft {
	d.tracking = t
	return d
}

func (d *InvoiceDraft) WithReasons(delay, remarks string) *InvoiceDraft {
	d.delayReason = delay
	d.remarks = remarks
	return d
}

func (d *InvoiceDraft) WithProof(a ArtifactRef) *InvoiceDraft {
	d.proof = a
	return d
}

// Number is the invoice number the draft was started with.
func (d *InvoiceDraft) Number() string { return d.number }

// Schedule builds the milestone options for the current plan and
// admissible amount.
func (d *InvoiceDraft) Schedule() (milestone.Schedule, []Warning) {
	if d.plan == nil {
		return milestone.Schedule{}, nil
	}
	return d.plan.Build(d.fin.Admissible)
}

// Finalize validates the whole draft and produces the invoice. It does
// not check invoice-number uniqueness; the Book does that against the Store.
func (d *InvoiceDraft) Finalize(now time.Time) (Invoice, []Warning, error) {
	var vs violations
	var warnings []Warning

	if d.number == "" {
		vs.add("invoice_number", CodeRequired, "invoice number is required")
	}
	if d.ref == nil {
		vs.add("reference", CodeRequired, "select the work order item being invoiced")
		return Invoice{}, nil, vs.err()
	}
	if !d.proof.Present() {
		vs.add("proof", CodeRequired, "invoice proof document is required")
	}

	wo, item := d.ref.WorkOrder, d.ref.Item
	fin := d.fin

	qty := fin.Qty
	if qty == 0 {
		qty = item.Qty
	}
	if qty < 1 {
		vs.add("qty", CodeOutOfRange, "quantity must be at least 1")
	}
	if qty > item.Qty {
		vs.add("qty", CodeCeiling, "quantity %d exceeds the %d ordered", qty, item.Qty)
	}
	if !fin.InvoiceValue.IsPositive() {
		vs.add("invoice_value", CodeOutOfRange, "invoice value must be positive")
	}
	checkPercent(&vs, "invoice_gst_percent", fin.GSTPercent)
	if !fin.Admissible.IsPositive() {
		vs.add("admissible_amount", CodeOutOfRange, "admissible amount must be positive")
	}

	claimed := fin.Claimed
	if item.Category.RequiresPlannedClaim() {
		if !fin.PlannedClaim.IsPositive() {
			vs.add("planned_claim", CodeRequired, "planned claim (PQP) is required")
		}
	} else if claimed.IsZero() {
		claimed = fin.Admissible
	}

	// Milestones
	var schedule milestone.Schedule
	if d.plan == nil {
		vs.add("plan", CodeRequired, "milestone plan is required")
	} else if d.plan.Category() != item.Category {
		vs.add("plan", CodeMismatch, "a %s plan cannot claim a %s item", d.plan.Category(), item.Category)
	} else {
		d.plan.validate(&vs)
		var planWarnings []Warning
		schedule, planWarnings = d.plan.Build(fin.Admissible)
		warnings = append(warnings, planWarnings...)
		if len(schedule) == 0 {
			vs.add("milestones", CodeNoMilestones, "the plan produces no claimable milestones")
		}
	}

	if len(d.claimed) == 0 {
		vs.add("claimed_milestones", CodeRequired, "select at least one milestone to claim")
	}
	claimedIDs := make([]MilestoneID, 0, len(d.claimed))
	seen := make(map[string]bool, len(d.claimed))
	for _, label := range d.claimed {
		if seen[label] {
			vs.add("claimed_milestones", CodeDuplicate, "milestone %q selected twice", label)
			continue
		}
		seen[label] = true
		if len(schedule) > 0 {
			if _, ok := schedule.Find(label); !ok {
				vs.add("claimed_milestones", CodeUnknownLabel, "%q is not one of the plan's milestones", label)
			}
		}
		claimedIDs = append(claimedIDs, MilestoneID(label))
	}

	c := claim{
		category:   item.Category,
		admissible: fin.Admissible,
		planned:    fin.PlannedClaim,
		claimed:    claimed,
		ld:         LiquidityDamage{Percent: d.ld.Percent, AppliedOn: d.ld.AppliedOn, Reason: strings.TrimSpace(d.ld.Reason)},
		ro:         d.ro,
		received:   d.tracking.ReceivedAtTMD,
		delay:      d.delayReason,
	}
	payable, claimWarnings := c.settle(&vs)
	warnings = append(warnings, claimWarnings...)

	if fin.Admissible.GreaterThan(wo.WorkOrderValueBasic) {
		warnings = append(warnings, warnf("admissible_exceeds_work_order",
			"admissible amount %s exceeds work order value %s", fin.Admissible, wo.WorkOrderValueBasic))
	}
	if fin.Admissible.GreaterThan(wo.ContractValueBasic) {
		warnings = append(warnings, warnf("admissible_exceeds_contract",
			"admissible amount %s exceeds contract value %s", fin.Admissible, wo.ContractValueBasic))
	}

	if err := vs.err(); err != nil {
		return Invoice{}, nil, err
	}

	location := strings.TrimSpace(fin.Location)
	if location == "" {
		location = item.Location
	}

	inv := Invoice{
		InvoiceNumber:     d.number,
		WorkOrderKey:      wo.WorkOrderKey,
		WorkOrderID:       wo.ID,
		ItemName:          item.Name,
		Category:          item.Category,
		ItemLocation:      location,
		ItemQtyCeiling:    item.Qty,
		ValuePerItem:      item.ValuePerItem,
		Vendor:            wo.Vendor,
		Qty:               qty,
		InvoiceValue:      fin.InvoiceValue,
		InvoiceGSTPercent: fin.GSTPercent,
		AdmissibleAmount:  fin.Admissible,
		PlannedClaim:      fin.PlannedClaim,
		ClaimedValue:      claimed,
		LD:                c.ld,
		PayableAmount:     payable,
		ReleaseOrder:      d.ro,
		PaymentStatus:     PaymentStatusOf(d.ro),
		Milestones:        schedule,
		ClaimedMilestones: claimedIDs,
		Progress:          make(map[MilestoneID]MilestoneProgress, len(claimedIDs)),
		SubmissionDate:    d.tracking.SubmissionDate,
		ReceivedAtTMD:     d.tracking.ReceivedAtTMD,
		ArtifactsReceived: d.tracking.ArtifactsReceived,
		DelayReason:       strings.TrimSpace(d.delayReason),
		Remarks:           strings.TrimSpace(d.remarks),
		Proof:             d.proof,
		CreatedAt:         now,
	}
	for _, id := range claimedIDs {
		in, _ := schedule.Find(string(id))
		inv.Progress[id] = MilestoneProgress{
			Milestone:      id,
			Scheduled:      in.Amount,
			SubmissionDate: inv.SubmissionDate,
			ReceivedDate:   inv.ReceivedAtTMD,
			ArtifactsDate:  inv.ArtifactsReceived,
		}
	}
	return inv, warnings, nil
}

// =============================================================================
// EDITS
// =============================================================================

// InvoiceEdit changes the editable invoice fields. Nil fields are left alone.
type InvoiceEdit struct {
	Location     *string          `json:"location,omitempty"`
	Qty          *int             `json:"qty,omitempty"`
	InvoiceValue *decimal.Decimal `json:"invoice_value,omitempty"`
	GSTPercent   *decimal.Decimal `json:"invoice_gst_percent,omitempty"`
	Admissible   *decimal.Decimal `json:"admissible_amount,omitempty"`
	Remarks      *string          `json:"remarks,omitempty"`
}

// Apply returns the edited copy. Lowering the admissible amount below
// payable or a release order is rejected.
func (e InvoiceEdit) Apply(inv Invoice) (Invoice, []Warning, error) {
	out := inv.Clone()
	var vs violations
	var warnings []Warning

	if e.Location != nil {
		out.ItemLocation = strings.TrimSpace(*e.Location)
	}
	if e.Remarks != nil {
		out.Remarks = strings.TrimSpace(*e.Remarks)
	}
	if e.Qty != nil {
		out.Qty = *e.Qty
		if out.Qty < 1 {
			vs.add("qty", CodeOutOfRange, "quantity must be at least 1")
		}
		if out.Qty > out.ItemQtyCeiling {
			vs.add("qty", CodeCeiling, "quantity %d exceeds the %d ordered", out.Qty, out.ItemQtyCeiling)
		}
	}
	if e.InvoiceValue != nil {
		out.InvoiceValue = *e.InvoiceValue
		if !out.InvoiceValue.IsPositive() {
			vs.add("invoice_value", CodeOutOfRange, "invoice value must be positive")
		}
	}
	if e.GSTPercent != nil {
		out.InvoiceGSTPercent = *e.GSTPercent
		checkPercent(&vs, "invoice_gst_percent", out.InvoiceGSTPercent)
	}
	if e.Admissible != nil {
		out.AdmissibleAmount = *e.Admissible
		switch {
		case !out.AdmissibleAmount.IsPositive():
			vs.add("admissible_amount", CodeOutOfRange, "admissible amount must be positive")
		case out.PayableAmount.GreaterThan(out.AdmissibleAmount):
			vs.add("admissible_amount", CodeCeiling, "admissible amount %s is below payable %s",
				out.AdmissibleAmount, out.PayableAmount)
		case out.ReleasedTotal().GreaterThan(out.AdmissibleAmount):
			vs.add("admissible_amount", CodeCeiling, "admissible amount %s is below released total %s",
				out.AdmissibleAmount, out.ReleasedTotal())
		}
		if out.ClaimedValue.GreaterThan(out.AdmissibleAmount) {
			warnings = append(warnings, warnf("claimed_exceeds_admissible",
				"claimed value %s exceeds admissible amount %s", out.ClaimedValue, out.AdmissibleAmount))
		}
	}

	if err := vs.err(); err != nil {
		return Invoice{}, nil, err
	}
	return out, warnings, nil
}

// MilestonePayment records progress on one claimed milestone.
type MilestonePayment struct {
	Milestone      MilestoneID     `json:"milestone"`
	SubmissionDate *time.Time      `json:"submission_date,omitempty"`
	ReceivedDate   *time.Time      `json:"received_date,omitempty"`
	ArtifactsDate  *time.Time      `json:"artifacts_date,omitempty"`
	PlannedClaim   decimal.Decimal `json:"planned_claim"`
	Claimed        decimal.Decimal `json:"claimed"`
	LD             LDInput         `json:"liquidity_damage"`
	ReleaseOrder   ReleaseOrder    `json:"release_order"`
	DelayReason    string          `json:"delay_reason,omitempty"`
}

// Apply records the payment on a copy of inv. The milestone payable and
// the invoice-wide released total are both capped by the admissible amount.
func (p MilestonePayment) Apply(inv Invoice) (Invoice, []Warning, error) {
	prev, ok := inv.Progress[p.Milestone]
	if !ok {
		return Invoice{}, nil, fmt.Errorf("%w: %q on invoice %s", ErrMilestoneNotFound, p.Milestone, inv.InvoiceNumber)
	}

	var vs violations
	c := claim{
		category:   inv.Category,
		admissible: inv.AdmissibleAmount,
		planned:    p.PlannedClaim,
		claimed:    p.Claimed,
		ld:         LiquidityDamage{Percent: p.LD.Percent, AppliedOn: p.LD.AppliedOn, Reason: strings.TrimSpace(p.LD.Reason)},
		ro:         p.ReleaseOrder,
		received:   p.ReceivedDate,
		delay:      p.DelayReason,
	}
	payable, warnings := c.settle(&vs)

	if p.Claimed.GreaterThan(prev.Scheduled) {
		warnings = append(warnings, warnf("claimed_exceeds_scheduled",
			"claimed %s exceeds the scheduled %s for %s", p.Claimed, prev.Scheduled, p.Milestone))
	}

	out := inv.Clone()
	out.Progress[p.Milestone] = MilestoneProgress{
		Milestone:      p.Milestone,
		Scheduled:      prev.Scheduled,
		SubmissionDate: p.SubmissionDate,
		ReceivedDate:   p.ReceivedDate,
		ArtifactsDate:  p.ArtifactsDate,
		PlannedClaim:   p.PlannedClaim,
		Claimed:        p.Claimed,
		LD:             c.ld,
		Payable:        payable,
		ReleaseOrder:   p.ReleaseOrder,
		DelayReason:    strings.TrimSpace(p.DelayReason),
	}
	if released := out.ReleasedTotal(); released.GreaterThan(out.AdmissibleAmount) {
		vs.add("release_order.amount", CodeCeiling, "released total %s exceeds admissible amount %s",
			released, out.AdmissibleAmount)
	}

	if err := vs.err(); err != nil {
		return Invoice{}, nil, err
	}
	return out, warnings, nil
}
