/*
Package contract holds the work-order and invoice model and its business rules.

PURPOSE:
  Users record work orders (contracts with line items), then raise invoices
  against individual items, claim milestone installments, deduct liquidity
  damages and track release orders. This package owns the record shapes,
  the derivation of dependent amounts, the validation that guards every
  submit, and the Book service that applies them to a Store.

KEY CONCEPTS IN THIS FILE (types.go):
  - Category:      Selects the item payload and the invoice milestone plan
  - WorkOrder:     Contract header + owned items, keyed by
                   (contract, sub-contract, work order) numbers
  - Item:          One line of a work order with a category payload
  - Invoice:       A claim against one item; copies the item data it needs
  - MilestoneProgress: Per-milestone payment tracking
  - ArtifactRef:   Opaque proof document reference, never dereferenced

DESIGN PRINCIPLES:
  1. Precision: every amount and percentage is a decimal.Decimal
  2. No partial records: drafts are validated as a whole before anything
     reaches the Store
  3. Copies, not links: invoices copy item data at creation time
  4. Warnings are data: soft rule breaches are returned, fatal ones are errors

SEE ALSO:
  - payload.go: Category payload variants
  - workorder.go / invoice.go: Drafts and derivation
  - plan.go: Category milestone plans
  - book.go: Service applying the rules to a Store
*/
package contract

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-admin/milestone"
)

var hundred = decimal.NewFromInt(100)

// =============================================================================
// CATEGORY
// =============================================================================

type Category string

const (
	CategoryHardware        Category = "Hardware"
	CategoryHardwareAMC     Category = "Hardware+AMC"
	CategoryAMC             Category = "AMC"
	CategorySoftware        Category = "Software"
	CategoryStaffCost       Category = "Staff Cost"
	CategorySolutionSupport Category = "Solution & Support"
	CategoryTelecom         Category = "Telecom"
	CategoryOthers          Category = "Others"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryHardware,
	CategoryHardwareAMC,
	CategoryAMC,
	CategorySoftware,
	CategoryStaffCost,
	CategorySolutionSupport,
	CategoryTelecom,
	CategoryOthers,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// RequiresPlannedClaim reports whether invoices need a PQP value.
// Telecom claims the admissible amount directly.
func (c Category) RequiresPlannedClaim() bool { return c != CategoryTelecom }

// ParseCategory accepts display names and loose spellings
// ("hardware + amc", "staff_cost", "Solution and Support").
func ParseCategory(s string) (Category, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "", "-", "", "_", "", "+", "", "&", "", "and", "").Replace(norm)
	switch norm {
	case "hardware":
		return CategoryHardware, nil
	case "hardwareamc":
		return CategoryHardwareAMC, nil
	case "amc":
		return CategoryAMC, nil
	case "software":
		return CategorySoftware, nil
	case "staffcost", "staff":
		return CategoryStaffCost, nil
	case "solutionsupport", "solution":
		return CategorySolutionSupport, nil
	case "telecom":
		return CategoryTelecom, nil
	case "others", "other":
		return CategoryOthers, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// WorkOrderKey is the natural key shared by a work order and its invoices.
type WorkOrderKey struct {
	ContractNumber    string `json:"contract_number"`
	SubContractNumber string `json:"sub_contract_number"`
	WorkOrderNumber   string `json:"work_order_number"`
}

func (k WorkOrderKey) normalized() WorkOrderKey {
	return WorkOrderKey{
		ContractNumber:    strings.TrimSpace(k.ContractNumber),
		SubContractNumber: strings.TrimSpace(k.SubContractNumber),
		WorkOrderNumber:   strings.TrimSpace(k.WorkOrderNumber),
	}
}

// Matches compares keys ignoring surrounding whitespace.
func (k WorkOrderKey) Matches(other WorkOrderKey) bool {
	return k.normalized() == other.normalized()
}

func (k WorkOrderKey) String() string {
	return k.ContractNumber + "/" + k.SubContractNumber + "/" + k.WorkOrderNumber
}

// ItemKey is the six-part duplicate key of a work-order line.
type ItemKey struct {
	WorkOrderKey
	ItemName     string   `json:"item_name"`
	ItemLocation string   `json:"item_location"`
	Category     Category `json:"category"`
}

func (k ItemKey) Matches(other ItemKey) bool {
	return k.WorkOrderKey.Matches(other.WorkOrderKey) &&
		strings.TrimSpace(k.ItemName) == strings.TrimSpace(other.ItemName) &&
		strings.TrimSpace(k.ItemLocation) == strings.TrimSpace(other.ItemLocation) &&
		k.Category == other.Category
}

func (k ItemKey) String() string {
	return fmt.Sprintf("%s [%s @ %s, %s]", k.WorkOrderKey, k.ItemName, k.ItemLocation, k.Category)
}

// ArtifactRef points at an uploaded proof document. The core only checks
// that one was supplied.
type ArtifactRef struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

func (a ArtifactRef) Present() bool { return strings.TrimSpace(a.ID) != "" }

// =============================================================================
// WORK ORDER
// =============================================================================

type WorkOrder struct {
	ID string `json:"id"`
	WorkOrderKey

	Vendor       string    `json:"vendor"`
	Location     string    `json:"location"`
	ContractDate time.Time `json:"contract_date"`

	ContractValueBasic decimal.Decimal `json:"contract_value_basic"`
	GSTPercent         decimal.Decimal `json:"gst_percent"`
	WorkOrderPercent   decimal.Decimal `json:"work_order_percent"`

	// Derived
	WorkOrderValueBasic       decimal.Decimal `json:"work_order_value_basic"`
	TotalContractValueWithGST decimal.Decimal `json:"total_contract_value_with_gst"`

	Proof     ArtifactRef `json:"proof"`
	Items     []Item      `json:"items"`
	CreatedAt time.Time   `json:"created_at"`
}

// WorkOrderValueWithGST is the GST-inclusive work-order value the item
// totals are reconciled against.
func (w WorkOrder) WorkOrderValueWithGST() decimal.Decimal {
	return w.WorkOrderValueBasic.Mul(gstFactor(w.GSTPercent))
}

// ItemsTotalWithGST sums the GST-inclusive value of all items.
func (w WorkOrder) ItemsTotalWithGST() decimal.Decimal {
	total := decimal.Zero
	for _, it := range w.Items {
		total = total.Add(it.ValueWithGST)
	}
	return total
}

// ItemsTotalBasic sums the pre-GST value of all items.
func (w WorkOrder) ItemsTotalBasic() decimal.Decimal {
	total := decimal.Zero
	for _, it := range w.Items {
		total = total.Add(it.ValueWithoutGST)
	}
	return total
}

// FindItem returns the first item with the given name.
func (w WorkOrder) FindItem(name string) (Item, bool) {
	name = strings.TrimSpace(name)
	for _, it := range w.Items {
		if strings.TrimSpace(it.Name) == name {
			return it, true
		}
	}
	return Item{}, false
}

// ItemKeys returns the duplicate key of every item.
func (w WorkOrder) ItemKeys() []ItemKey {
	keys := make([]ItemKey, len(w.Items))
	for i, it := range w.Items {
		keys[i] = it.keyIn(w.WorkOrderKey)
	}
	return keys
}

// Clone returns a copy sharing no mutable state.
func (w WorkOrder) Clone() WorkOrder {
	out := w
	out.Items = make([]Item, len(w.Items))
	for i, it := range w.Items {
		out.Items[i] = it.clone()
	}
	return out
}

// derive recomputes every dependent amount and renumbers items.
func (w *WorkOrder) derive() {
	w.WorkOrderValueBasic = w.ContractValueBasic.Mul(w.WorkOrderPercent).Div(hundred)
	w.TotalContractValueWithGST = w.ContractValueBasic.Mul(gstFactor(w.GSTPercent))
	for i := range w.Items {
		w.Items[i].SerialNo = i + 1
		w.Items[i].derive(w.GSTPercent)
	}
}

// =============================================================================
// ITEM
// =============================================================================

type Item struct {
	SerialNo     int             `json:"serial_no"`
	Name         string          `json:"item_name"`
	Location     string          `json:"item_location"`
	Category     Category        `json:"category"`
	Qty          int             `json:"qty"`
	ValuePerItem decimal.Decimal `json:"value_per_item"`
	Remark       string          `json:"remark,omitempty"`

	// Derived
	ValueWithoutGST decimal.Decimal `json:"value_without_gst"`
	ValueWithGST    decimal.Decimal `json:"value_with_gst"`

	// Payload is nil for Others, otherwise the variant matching Category.
	Payload Payload `json:"payload,omitempty"`
}

func (it Item) keyIn(wo WorkOrderKey) ItemKey {
	return ItemKey{WorkOrderKey: wo, ItemName: it.Name, ItemLocation: it.Location, Category: it.Category}
}

func (it *Item) derive(gstPercent decimal.Decimal) {
	it.ValueWithoutGST = decimal.NewFromInt(int64(it.Qty)).Mul(it.ValuePerItem)
	it.ValueWithGST = it.ValueWithoutGST.Mul(gstFactor(gstPercent))
	if it.Payload != nil {
		it.Payload = it.Payload.derive(it.ValuePerItem)
	}
}

func (it Item) clone() Item {
	out := it
	if it.Payload != nil {
		out.Payload = it.Payload.clone()
	}
	return out
}

// =============================================================================
// INVOICE
// =============================================================================

// LDBasis selects which amount liquidity damages are deducted from.
type LDBasis string

const (
	LDNone      LDBasis = ""
	LDOnPQP     LDBasis = "PQP"
	LDOnClaimed LDBasis = "Claimed"
)

// PaymentStatus is fixed when the invoice is created.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "Paid"
	PaymentPending PaymentStatus = "Pending"
)

// ProcessingStatus tracks release orders on claimed milestones.
type ProcessingStatus string

const (
	StatusProcessed          ProcessingStatus = "Processed"
	StatusPartiallyProcessed ProcessingStatus = "Partially Processed"
	StatusPending            ProcessingStatus = "Pending"
)

// MilestoneID identifies a claimed milestone by its generated label.
type MilestoneID string

// ReleaseOrder authorizes a payment.
type ReleaseOrder struct {
	Number string          `json:"number,omitempty"`
	Amount decimal.Decimal `json:"amount"`
	Date   *time.Time      `json:"date,omitempty"`
}

func (ro ReleaseOrder) Issued() bool { return strings.TrimSpace(ro.Number) != "" }

// LiquidityDamage is a penalty deducted before computing payable.
type LiquidityDamage struct {
	Percent   decimal.Decimal `json:"percent"`
	Amount    decimal.Decimal `json:"amount"`
	AppliedOn LDBasis         `json:"applied_on,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// MilestoneProgress is the payment record of one claimed milestone.
type MilestoneProgress struct {
	Milestone MilestoneID     `json:"milestone"`
	Scheduled decimal.Decimal `json:"scheduled"`

	SubmissionDate *time.Time `json:"submission_date,omitempty"`
	ReceivedDate   *time.Time `json:"received_date,omitempty"`
	ArtifactsDate  *time.Time `json:"artifacts_date,omitempty"`

	PlannedClaim decimal.Decimal `json:"planned_claim"`
	Claimed      decimal.Decimal `json:"claimed"`
	LD           LiquidityDamage `json:"liquidity_damage"`
	Payable      decimal.Decimal `json:"payable"`

	ReleaseOrder ReleaseOrder `json:"release_order"`
	DelayReason  string       `json:"delay_reason,omitempty"`
}

// Status is Processed once a release order number is recorded.
func (p MilestoneProgress) Status() ProcessingStatus {
	if p.ReleaseOrder.Issued() {
		return StatusProcessed
	}
	return StatusPending
}

type Invoice struct {
	InvoiceNumber string `json:"invoice_number"`
	WorkOrderKey
	WorkOrderID string `json:"work_order_id"`

	// Copied from the referenced item at creation.
	ItemName       string          `json:"item_name"`
	Category       Category        `json:"category"`
	ItemLocation   string          `json:"item_location"`
	ItemQtyCeiling int             `json:"item_qty_ceiling"`
	ValuePerItem   decimal.Decimal `json:"value_per_item"`
	Vendor         string          `json:"vendor"`

	Qty               int             `json:"qty"`
	InvoiceValue      decimal.Decimal `json:"invoice_value"`
	InvoiceGSTPercent decimal.Decimal `json:"invoice_gst_percent"`
	AdmissibleAmount  decimal.Decimal `json:"admissible_amount"`
	PlannedClaim      decimal.Decimal `json:"planned_claim"`
	ClaimedValue      decimal.Decimal `json:"claimed_value"`
	LD                LiquidityDamage `json:"liquidity_damage"`
	PayableAmount     decimal.Decimal `json:"payable_amount"`
	ReleaseOrder      ReleaseOrder    `json:"release_order"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`

	Milestones        milestone.Schedule                `json:"milestones"`
	ClaimedMilestones []MilestoneID                     `json:"claimed_milestones"`
	Progress          map[MilestoneID]MilestoneProgress `json:"progress"`

	SubmissionDate    *time.Time `json:"submission_date,omitempty"`
	ReceivedAtTMD     *time.Time `json:"received_at_tmd_date,omitempty"`
	ArtifactsReceived *time.Time `json:"artifacts_received_date,omitempty"`
	DelayReason       string     `json:"delay_reason,omitempty"`
	Remarks           string     `json:"remarks,omitempty"`

	Proof     ArtifactRef `json:"proof"`
	CreatedAt time.Time   `json:"created_at"`
}

// InvoiceValueWithGST applies the invoice GST rate to the invoice value.
func (inv Invoice) InvoiceValueWithGST() decimal.Decimal {
	return inv.InvoiceValue.Mul(gstFactor(inv.InvoiceGSTPercent))
}

// DaysBetweenROAndReceive is release-order date minus received date. ok is
// false unless both dates exist and the delta is not negative.
func (inv Invoice) DaysBetweenROAndReceive() (days int, ok bool) {
	return daysReceiptToRO(inv.ReceivedAtTMD, inv.ReleaseOrder.Date)
}

// Status aggregates the claimed milestones' release orders.
func (inv Invoice) Status() ProcessingStatus {
	if len(inv.ClaimedMilestones) == 0 {
		return StatusPending
	}
	processed := 0
	for _, id := range inv.ClaimedMilestones {
		if p, ok := inv.Progress[id]; ok && p.Status() == StatusProcessed {
			processed++
		}
	}
	switch {
	case processed == len(inv.ClaimedMilestones):
		return StatusProcessed
	case processed > 0:
		return StatusPartiallyProcessed
	default:
		return StatusPending
	}
}

// ReleasedTotal sums the invoice release order and every milestone release
// order. Entries sharing an RO number are one release and count once, at
// the largest amount recorded for it. Unnumbered entries are all counted.
func (inv Invoice) ReleasedTotal() decimal.Decimal {
	total := decimal.Zero
	byNumber := make(map[string]decimal.Decimal)
	add := func(ro ReleaseOrder) {
		number := strings.TrimSpace(ro.Number)
		if number == "" {
			total = total.Add(ro.Amount)
			return
		}
		if prev, ok := byNumber[number]; !ok || ro.Amount.GreaterThan(prev) {
			byNumber[number] = ro.Amount
		}
	}

	add(inv.ReleaseOrder)
	for _, p := range inv.Progress {
		add(p.ReleaseOrder)
	}
	for _, amount := range byNumber {
		total = total.Add(amount)
	}
	return total
}

// ReferenceDate is the date reports bucket the invoice by: submission
// date when known, creation time otherwise.
func (inv Invoice) ReferenceDate() time.Time {
	if inv.SubmissionDate != nil {
		return *inv.SubmissionDate
	}
	return inv.CreatedAt
}

// References reports whether the invoice was raised against key.
func (inv Invoice) References(key WorkOrderKey) bool {
	return inv.WorkOrderKey.Matches(key)
}

// Clone returns a copy sharing no mutable state.
func (inv Invoice) Clone() Invoice {
	out := inv
	out.Milestones = append(milestone.Schedule(nil), inv.Milestones...)
	out.ClaimedMilestones = append([]MilestoneID(nil), inv.ClaimedMilestones...)
	out.Progress = make(map[MilestoneID]MilestoneProgress, len(inv.Progress))
	for k, v := range inv.Progress {
		out.Progress[k] = v
	}
	return out
}

// =============================================================================
// WARNINGS
// =============================================================================

// Warning is a soft rule breach. It never blocks a submit.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func warnf(code, format string, args ...any) Warning {
	return Warning{Code: code, Message: fmt.Sprintf(format, args...)}
}

func gstFactor(gstPercent decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Add(gstPercent.Div(hundred))
}
