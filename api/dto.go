/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Requests carry
  dates as free-form strings (parsed with locale.ParseFlexibleDate) and
  category-specific fields as factory JSON. Responses embed the contract
  records and add derived and display values.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *DTO: Response types returned to clients

VALIDATION:
  Struct tags cover request shape only (identifiers present, at least one
  item). Business rules are checked by the contract package, which reports
  every violation at once.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plan.go: PlanJSON and PayloadJSON
*/
package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/contract-admin/contract"
	"github.com/warp/contract-admin/export"
	"github.com/warp/contract-admin/factory"
	"github.com/warp/contract-admin/locale"
	"github.com/warp/contract-admin/milestone"
	"github.com/warp/contract-admin/report"
)

// =============================================================================
// REQUESTS
// =============================================================================

// ArtifactDTO references an uploaded proof document. A blank ID is
// assigned on receipt.
type ArtifactDTO struct {
	ID       string `json:"id,omitempty"`
	Filename string `json:"filename"`
}

type ItemRequest struct {
	ItemName     string               `json:"item_name" validate:"required"`
	ItemLocation string               `json:"item_location"`
	Category     string               `json:"category" validate:"required"`
	Qty          int                  `json:"qty"`
	ValuePerItem decimal.Decimal      `json:"value_per_item"`
	Remark       string               `json:"remark,omitempty"`
	Details      *factory.PayloadJSON `json:"details,omitempty"`
}

type CreateWorkOrderRequest struct {
	ContractNumber     string          `json:"contract_number" validate:"required"`
	SubContractNumber  string          `json:"sub_contract_number" validate:"required"`
	WorkOrderNumber    string          `json:"work_order_number" validate:"required"`
	Vendor             string          `json:"vendor" validate:"required"`
	Location           string          `json:"location"`
	ContractDate       string          `json:"contract_date" validate:"required"`
	ContractValueBasic decimal.Decimal `json:"contract_value_basic"`
	GSTPercent         decimal.Decimal `json:"gst_percent"`
	WorkOrderPercent   decimal.Decimal `json:"work_order_percent"`
	Proof              ArtifactDTO     `json:"proof"`
	Items              []ItemRequest   `json:"items" validate:"required,min=1,dive"`
}

// EditWorkOrderRequest changes header fields; absent fields are kept.
type EditWorkOrderRequest struct {
	Vendor             *string          `json:"vendor,omitempty"`
	Location           *string          `json:"location,omitempty"`
	ContractDate       *string          `json:"contract_date,omitempty"`
	ContractValueBasic *decimal.Decimal `json:"contract_value_basic,omitempty"`
	GSTPercent         *decimal.Decimal `json:"gst_percent,omitempty"`
	WorkOrderPercent   *decimal.Decimal `json:"work_order_percent,omitempty"`
	Proof              *ArtifactDTO     `json:"proof,omitempty"`
}

// LDRequest selects the LD basis either by name or by the two form
// checkboxes. When either checkbox is sent the checkboxes win.
type LDRequest struct {
	Percent   decimal.Decimal `json:"percent"`
	AppliedOn string          `json:"applied_on,omitempty"`
	PQP       *bool           `json:"pqp,omitempty"`
	Claimed   *bool           `json:"claimed,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

type ReleaseOrderRequest struct {
	Number string          `json:"number"`
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date,omitempty"`
}

type CreateInvoiceRequest struct {
	InvoiceNumber     string `json:"invoice_number" validate:"required"`
	ContractNumber    string `json:"contract_number" validate:"required"`
	SubContractNumber string `json:"sub_contract_number" validate:"required"`
	WorkOrderNumber   string `json:"work_order_number" validate:"required"`
	ItemName          string `json:"item_name" validate:"required"`
	ItemLocation      string `json:"item_location,omitempty"`
	Category          string `json:"category,omitempty"`

	contract.InvoiceFinancials

	// Plan.Category defaults to the item's category.
	Plan              factory.PlanJSON    `json:"plan"`
	ClaimedMilestones []string            `json:"claimed_milestones"`
	LiquidityDamage   LDRequest           `json:"liquidity_damage"`
	ReleaseOrder      ReleaseOrderRequest `json:"release_order"`
	SubmissionDate    string              `json:"submission_date,omitempty"`
	ReceivedAtTMD     string              `json:"received_at_tmd_date,omitempty"`
	ArtifactsReceived string              `json:"artifacts_received_date,omitempty"`
	DelayReason       string              `json:"delay_reason,omitempty"`
	Remarks           string              `json:"remarks,omitempty"`
	Proof             ArtifactDTO         `json:"proof"`
}

type PaymentRequest struct {
	Milestone       string              `json:"milestone" validate:"required"`
	SubmissionDate  string              `json:"submission_date,omitempty"`
	ReceivedDate    string              `json:"received_date,omitempty"`
	ArtifactsDate   string              `json:"artifacts_date,omitempty"`
	PlannedClaim    decimal.Decimal     `json:"planned_claim"`
	Claimed         decimal.Decimal     `json:"claimed"`
	LiquidityDamage LDRequest           `json:"liquidity_damage"`
	ReleaseOrder    ReleaseOrderRequest `json:"release_order"`
	DelayReason     string              `json:"delay_reason,omitempty"`
}

type PreviewRequest struct {
	Admissible decimal.Decimal  `json:"admissible_amount"`
	Plan       factory.PlanJSON `json:"plan"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type SessionDTO struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	Scenario  string `json:"scenario,omitempty"`
}

type ItemDTO struct {
	contract.Item
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}

type WorkOrderDisplay struct {
	ContractValue  report.Money `json:"contract_value"`
	WorkOrderValue report.Money `json:"work_order_value"`
	TotalWithGST   report.Money `json:"total_contract_value_with_gst"`
}

type WorkOrderDTO struct {
	contract.WorkOrder
	Items                 []ItemDTO          `json:"items"`
	FiscalYear            string             `json:"fiscal_year"`
	WorkOrderValueWithGST decimal.Decimal    `json:"work_order_value_with_gst"`
	Display               WorkOrderDisplay   `json:"display"`
	Warnings              []contract.Warning `json:"warnings,omitempty"`
}

type InvoiceDisplay struct {
	Admissible report.Money `json:"admissible_amount"`
	Payable    report.Money `json:"payable_amount"`
	Released   report.Money `json:"released"`
}

// LDCheckboxesDTO mirrors the two "LD applied on" boxes of the form.
type LDCheckboxesDTO struct {
	PQP     bool `json:"pqp"`
	Claimed bool `json:"claimed"`
}

type InvoiceDTO struct {
	contract.Invoice
	Status                  contract.ProcessingStatus `json:"status"`
	FiscalYear              string                    `json:"fiscal_year"`
	InvoiceValueWithGST     decimal.Decimal           `json:"invoice_value_with_gst"`
	ReleasedTotal           decimal.Decimal           `json:"released_total"`
	DaysBetweenROAndReceive *int                      `json:"days_between_ro_and_receive,omitempty"`
	LDAppliedOn             LDCheckboxesDTO           `json:"ld_applied_on"`
	Display                 InvoiceDisplay            `json:"display"`
	Warnings                []contract.Warning        `json:"warnings,omitempty"`
}

type InstallmentDTO struct {
	milestone.Installment
	Display string `json:"display"`
}

type PreviewDTO struct {
	Category contract.Category  `json:"category"`
	Schedule []InstallmentDTO   `json:"schedule"`
	Labels   []string           `json:"labels"`
	Total    report.Money       `json:"total"`
	Warnings []contract.Warning `json:"warnings,omitempty"`
}

type SummaryDTO struct {
	report.Summary
	Display     report.FormattedTotals `json:"display"`
	FiscalYears []string               `json:"fiscal_years"`
}

type ExportDTO struct {
	Path   string     `json:"path"`
	Sheets []SheetDTO `json:"sheets"`
}

type SheetDTO struct {
	Name     string `json:"name"`
	RowCount int    `json:"row_count"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error      string               `json:"error"`
	Code       string               `json:"code,omitempty"`
	Details    any                  `json:"details,omitempty"`
	Violations []contract.Violation `json:"violations,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toArtifact(a ArtifactDTO) contract.ArtifactRef {
	ref := contract.ArtifactRef{ID: a.ID, Filename: a.Filename}
	if ref.ID == "" && ref.Filename != "" {
		ref.ID = uuid.NewString()
	}
	return ref
}

func toWorkOrderDTO(wo contract.WorkOrder, warnings []contract.Warning) WorkOrderDTO {
	items := make([]ItemDTO, len(wo.Items))
	for i, it := range wo.Items {
		items[i] = ItemDTO{Item: it, Details: export.PayloadSummary(it.Payload)}
		if it.Payload != nil {
			items[i].Kind = it.Payload.Kind()
		}
	}
	return WorkOrderDTO{
		WorkOrder:             wo,
		Items:                 items,
		FiscalYear:            locale.FiscalYearOf(wo.ContractDate),
		WorkOrderValueWithGST: wo.WorkOrderValueWithGST(),
		Display: WorkOrderDisplay{
			ContractValue:  report.NewMoney(wo.ContractValueBasic),
			WorkOrderValue: report.NewMoney(wo.WorkOrderValueBasic),
			TotalWithGST:   report.NewMoney(wo.TotalContractValueWithGST),
		},
		Warnings: warnings,
	}
}

func toWorkOrderDTOs(wos []contract.WorkOrder) []WorkOrderDTO {
	dtos := make([]WorkOrderDTO, len(wos))
	for i, wo := range wos {
		dtos[i] = toWorkOrderDTO(wo, wo.Warnings())
	}
	return dtos
}

func toInvoiceDTO(inv contract.Invoice, warnings []contract.Warning) InvoiceDTO {
	pqp, claimed := inv.LD.AppliedOn.Checkboxes()
	dto := InvoiceDTO{
		Invoice:             inv,
		Status:              inv.Status(),
		FiscalYear:          locale.FiscalYearOf(inv.ReferenceDate()),
		InvoiceValueWithGST: inv.InvoiceValueWithGST(),
		ReleasedTotal:       inv.ReleasedTotal(),
		LDAppliedOn:         LDCheckboxesDTO{PQP: pqp, Claimed: claimed},
		Display: InvoiceDisplay{
			Admissible: report.NewMoney(inv.AdmissibleAmount),
			Payable:    report.NewMoney(inv.PayableAmount),
			Released:   report.NewMoney(inv.ReleasedTotal()),
		},
		Warnings: warnings,
	}
	if days, ok := inv.DaysBetweenROAndReceive(); ok {
		dto.DaysBetweenROAndReceive = &days
	}
	return dto
}

func toInvoiceDTOs(invs []contract.Invoice) []InvoiceDTO {
	dtos := make([]InvoiceDTO, len(invs))
	for i, inv := range invs {
		dtos[i] = toInvoiceDTO(inv, nil)
	}
	return dtos
}

func toInstallmentDTOs(s milestone.Schedule) []InstallmentDTO {
	dtos := make([]InstallmentDTO, len(s))
	for i, in := range s {
		dtos[i] = InstallmentDTO{Installment: in, Display: locale.FormatCurrency(in.Amount)}
	}
	return dtos
}

func (l LDRequest) input(prev contract.LDBasis) contract.LDInput {
	basis := contract.ParseLDBasis(l.AppliedOn)
	if l.PQP != nil || l.Claimed != nil {
		basis = contract.ResolveLDBasis(prev, l.PQP != nil && *l.PQP, l.Claimed != nil && *l.Claimed)
	}
	return contract.LDInput{Percent: l.Percent, AppliedOn: basis, Reason: l.Reason}
}

func (ro ReleaseOrderRequest) releaseOrder(field string) (contract.ReleaseOrder, error) {
	date, err := parseDate(field+".date", ro.Date)
	if err != nil {
		return contract.ReleaseOrder{}, err
	}
	return contract.ReleaseOrder{Number: ro.Number, Amount: ro.Amount, Date: date}, nil
}

// parseDate parses an optional date field. Blank is nil; anything else
// must parse.
func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := locale.ParseFlexibleDate(s)
	if err != nil {
		return nil, &factory.FieldError{Field: field, Err: err}
	}
	return &t, nil
}
