package contract

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// reconcileTolerance absorbs rounding when item totals are compared
// against the work-order value.
var reconcileTolerance = decimal.RequireFromString("0.01")

// =============================================================================
// DRAFTS
// =============================================================================

// ItemInput is one item line as entered, before derivation.
type ItemInput struct {
	Name         string          `json:"item_name"`
	Location     string          `json:"item_location"`
	Category     Category        `json:"category"`
	Qty          int             `json:"qty"`
	ValuePerItem decimal.Decimal `json:"value_per_item"`
	Remark       string          `json:"remark,omitempty"`
	Payload      Payload         `json:"payload,omitempty"`
}

func (in ItemInput) item() Item {
	it := Item{
		Name:         strings.TrimSpace(in.Name),
		Location:     strings.TrimSpace(in.Location),
		Category:     in.Category,
		Qty:          in.Qty,
		ValuePerItem: in.ValuePerItem,
		Remark:       in.Remark,
	}
	if in.Payload != nil {
		it.Payload = in.Payload.clone()
	}
	return it
}

func (in ItemInput) validate(vs *violations, field string) {
	if strings.TrimSpace(in.Name) == "" {
		vs.add(field+".item_name", CodeRequired, "item name is required")
	}
	if !in.Category.Valid() {
		vs.add(field+".category", CodeInvalid, "unknown category %q", in.Category)
	}
	if in.Qty < 1 {
		vs.add(field+".qty", CodeOutOfRange, "quantity must be at least 1")
	}
	if !in.ValuePerItem.IsPositive() {
		vs.add(field+".value_per_item", CodeOutOfRange, "value per item must be positive")
	}
	if !payloadFits(in.Category, in.Payload) {
		vs.add(field+".payload", CodeMismatch, "%s details do not belong to a %s item", in.Payload.Kind(), in.Category)
	} else if in.Payload != nil {
		in.Payload.validate(vs, field+".payload")
	}
}

// WorkOrderDraft is the work-order form. Finalize turns it into a record
// or reports every violation at once.
type WorkOrderDraft struct {
	WorkOrderKey
	Vendor             string          `json:"vendor"`
	Location           string          `json:"location"`
	ContractDate       time.Time       `json:"contract_date"`
	ContractValueBasic decimal.Decimal `json:"contract_value_basic"`
	GSTPercent         decimal.Decimal `json:"gst_percent"`
	WorkOrderPercent   decimal.Decimal `json:"work_order_percent"`
	Proof              ArtifactRef     `json:"proof"`
	Items              []ItemInput     `json:"items"`
}

// Finalize validates the draft and derives every dependent value. The
// result is not yet checked for duplicates against stored work orders.
func (d WorkOrderDraft) Finalize(id string, now time.Time) (WorkOrder, []Warning, error) {
	var vs violations
	key := d.WorkOrderKey.normalized()

	if key.ContractNumber == "" {
		vs.add("contract_number", CodeRequired, "contract number is required")
	}
	if key.SubContractNumber == "" {
		vs.add("sub_contract_number", CodeRequired, "sub-contract number is required")
	}
	if key.WorkOrderNumber == "" {
		vs.add("work_order_number", CodeRequired, "work order number is required")
	}
	if strings.TrimSpace(d.Vendor) == "" {
		vs.add("vendor", CodeRequired, "vendor is required")
	}
	if strings.TrimSpace(d.Location) == "" {
		vs.add("location", CodeRequired, "location is required")
	}
	if d.ContractDate.IsZero() {
		vs.add("contract_date", CodeRequired, "contract date is required")
	}
	checkHeaderAmounts(&vs, d.ContractValueBasic, d.GSTPercent, d.WorkOrderPercent)
	if !d.Proof.Present() {
		vs.add("proof", CodeRequired, "work order proof document is required")
	}

	if len(d.Items) == 0 {
		vs.add("items", CodeRequired, "at least one item is required")
	}
	seen := make([]ItemKey, 0, len(d.Items))
	for i, in := range d.Items {
		field := fmt.Sprintf("items[%d]", i)
		in.validate(&vs, field)

		k := in.item().keyIn(key)
		for _, prev := range seen {
			if prev.Matches(k) {
				vs.add(field, CodeDuplicate, "item %q at %q repeats an earlier line", in.Name, in.Location)
				break
			}
		}
		seen = append(seen, k)
	}

	if err := vs.err(); err != nil {
		return WorkOrder{}, nil, err
	}

	wo := WorkOrder{
		ID:                 id,
		WorkOrderKey:       key,
		Vendor:             strings.TrimSpace(d.Vendor),
		Location:           strings.TrimSpace(d.Location),
		ContractDate:       d.ContractDate,
		ContractValueBasic: d.ContractValueBasic,
		GSTPercent:         d.GSTPercent,
		WorkOrderPercent:   d.WorkOrderPercent,
		Proof:              d.Proof,
		Items:              make([]Item, len(d.Items)),
		CreatedAt:          now,
	}
	for i, in := range d.Items {
		wo.Items[i] = in.item()
	}
	wo.derive()
	return wo, wo.Warnings(), nil
}

// WorkOrderEdit changes header fields. Nil fields are left alone.
type WorkOrderEdit struct {
	Vendor             *string          `json:"vendor,omitempty"`
	Location           *string          `json:"location,omitempty"`
	ContractDate       *time.Time       `json:"contract_date,omitempty"`
	ContractValueBasic *decimal.Decimal `json:"contract_value_basic,omitempty"`
	GSTPercent         *decimal.Decimal `json:"gst_percent,omitempty"`
	WorkOrderPercent   *decimal.Decimal `json:"work_order_percent,omitempty"`
	Proof              *ArtifactRef     `json:"proof,omitempty"`
}

// Apply returns the edited copy of wo with derived values recomputed.
func (e WorkOrderEdit) Apply(wo WorkOrder) (WorkOrder, []Warning, error) {
	out := wo.Clone()
	var vs violations

	if e.Vendor != nil {
		if strings.TrimSpace(*e.Vendor) == "" {
			vs.add("vendor", CodeRequired, "vendor is required")
		}
		out.Vendor = strings.TrimSpace(*e.Vendor)
	}
	if e.Location != nil {
		if strings.TrimSpace(*e.Location) == "" {
			vs.add("location", CodeRequired, "location is required")
		}
		out.Location = strings.TrimSpace(*e.Location)
	}
	if e.ContractDate != nil {
		if e.ContractDate.IsZero() {
			vs.add("contract_date", CodeRequired, "contract date is required")
		}
		out.ContractDate = *e.ContractDate
	}
	if e.ContractValueBasic != nil {
		out.ContractValueBasic = *e.ContractValueBasic
	}
	if e.GSTPercent != nil {
		out.GSTPercent = *e.GSTPercent
	}
	if e.WorkOrderPercent != nil {
		out.WorkOrderPercent = *e.WorkOrderPercent
	}
	if e.Proof != nil {
		if !e.Proof.Present() {
			vs.add("proof", CodeRequired, "work order proof document is required")
		}
		out.Proof = *e.Proof
	}
	checkHeaderAmounts(&vs, out.ContractValueBasic, out.GSTPercent, out.WorkOrderPercent)

	if err := vs.err(); err != nil {
		return WorkOrder{}, nil, err
	}
	out.derive()
	return out, out.Warnings(), nil
}

func checkHeaderAmounts(vs *violations, contractValue, gst, woPercent decimal.Decimal) {
	if contractValue.IsNegative() {
		vs.add("contract_value_basic", CodeOutOfRange, "contract value must not be negative")
	}
	checkPercent(vs, "gst_percent", gst)
	checkPercent(vs, "work_order_percent", woPercent)
}

// =============================================================================
// WARNINGS
// =============================================================================

// Warnings lists the soft rule breaches of a derived work order.
func (w WorkOrder) Warnings() []Warning {
	var out []Warning

	if w.WorkOrderValueBasic.GreaterThan(w.ContractValueBasic) {
		out = append(out, warnf("work_order_exceeds_contract",
			"work order value %s exceeds contract value %s", w.WorkOrderValueBasic, w.ContractValueBasic))
	}

	itemsTotal := w.ItemsTotalWithGST()
	woTotal := w.WorkOrderValueWithGST()
	if itemsTotal.Sub(woTotal).Abs().GreaterThan(reconcileTolerance) {
		out = append(out, warnf("items_total_mismatch",
			"items total with GST %s does not match work order value with GST %s",
			itemsTotal.StringFixed(2), woTotal.StringFixed(2)))
	}
	return out
}
