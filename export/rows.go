/*
Package export flattens records into tables for CSV, Excel and SQLite output.

PURPOSE:
  Spreadsheet-style export of a session. Each sheet is a Table: a header
  row plus string cells. Amounts are written as plain decimals and dates
  as DD-MM-YYYY so the files re-import cleanly.

SHEETS:
  work_orders  One row per item, work-order header repeated
  invoices     One row per invoice
  milestones   One row per claimed milestone of every invoice

SEE ALSO:
  - csv.go: CSV writer
  - xlsx.go: Excel workbook writer
  - export/sqlite: SQLite workbook writer
*/
package export

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-admin/contract"
	"github.com/warp/contract-admin/locale"
)

const dateLayout = "02-01-2006"

// ErrUnknownSheet is returned by BuildSheet.
var ErrUnknownSheet = errors.New("unknown export sheet")

// Table is a header row plus data rows of equal width.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Sheet is a named Table.
type Sheet struct {
	Name  string
	Table Table
}

// Sheet names.
const (
	SheetWorkOrders = "work_orders"
	SheetInvoices   = "invoices"
	SheetMilestones = "milestones"
)

// SheetNames lists the sheets in export order.
var SheetNames = []string{SheetWorkOrders, SheetInvoices, SheetMilestones}

// BuildSheet flattens the named sheet.
func BuildSheet(name string, wos []contract.WorkOrder, invs []contract.Invoice) (Table, error) {
	switch name {
	case SheetWorkOrders:
		return WorkOrderRows(wos), nil
	case SheetInvoices:
		return InvoiceRows(invs), nil
	case SheetMilestones:
		return MilestoneRows(invs), nil
	default:
		return Table{}, fmt.Errorf("%w: %q", ErrUnknownSheet, name)
	}
}

// AllSheets flattens every sheet in SheetNames order.
func AllSheets(wos []contract.WorkOrder, invs []contract.Invoice) []Sheet {
	out := make([]Sheet, 0, len(SheetNames))
	for _, name := range SheetNames {
		t, _ := BuildSheet(name, wos, invs)
		out = append(out, Sheet{Name: name, Table: t})
	}
	return out
}

// =============================================================================
// WORK ORDERS
// =============================================================================

var workOrderHeaders = []string{
	"Work Order ID", "Contract Number", "Sub Contract Number", "Work Order Number",
	"Vendor", "Location", "Contract Date", "Financial Year",
	"Contract Value (Basic)", "GST %", "Work Order %", "Work Order Value (Basic)",
	"Total Contract Value (With GST)",
	"S.No", "Item Name", "Item Location", "Category", "Qty", "Value Per Item",
	"Value Without GST", "Value With GST", "Remark", "Details",
	"Proof", "Created At",
}

func WorkOrderRows(wos []contract.WorkOrder) Table {
	t := Table{Headers: workOrderHeaders}
	for _, wo := range wos {
		head := []string{
			wo.ID, wo.ContractNumber, wo.SubContractNumber, wo.WorkOrderNumber,
			wo.Vendor, wo.Location, formatDate(wo.ContractDate), locale.FiscalYearOf(wo.ContractDate),
			wo.ContractValueBasic.String(), wo.GSTPercent.String(), wo.WorkOrderPercent.String(),
			wo.WorkOrderValueBasic.String(), wo.TotalContractValueWithGST.String(),
		}
		tail := []string{wo.Proof.Filename, formatTimestamp(wo.CreatedAt)}
		for _, it := range wo.Items {
			row := append(append([]string{}, head...),
				strconv.Itoa(it.SerialNo), it.Name, it.Location, string(it.Category),
				strconv.Itoa(it.Qty), it.ValuePerItem.String(),
				it.ValueWithoutGST.String(), it.ValueWithGST.String(), it.Remark,
				PayloadSummary(it.Payload),
			)
			t.Rows = append(t.Rows, append(row, tail...))
		}
	}
	return t
}

// PayloadSummary renders a payload as "key: value" pairs.
func PayloadSummary(p contract.Payload) string {
	switch v := p.(type) {
	case contract.HardwarePayload:
		return coverage("Warranty", v.Warranty)
	case contract.AMCPayload:
		return coverage("AMC", v.AMC)
	case contract.HardwareAMCPayload:
		return coverage("Warranty", v.Warranty) + "; " + coverage("AMC", v.AMC)
	case contract.SupportPayload:
		return fmt.Sprintf("Support: %d months %s at %s%%", v.DurationMonths, v.Period, v.Percent)
	case contract.StaffPayload:
		s := fmt.Sprintf("Staff: %d months %s", v.DurationMonths, v.Period)
		if v.From != nil && v.To != nil {
			s += fmt.Sprintf(" (%s to %s)", formatDate(*v.From), formatDate(*v.To))
		}
		return s
	case contract.TelecomPayload:
		return fmt.Sprintf("Sub-vendor: %s; Link: %s; Type: %s; Capacity: %s", v.SubVendor, v.Link, v.LinkType, v.Capacity)
	default:
		return ""
	}
}

func coverage(name string, c contract.CoverageTerms) string {
	return fmt.Sprintf("%s: %d months at %s%% (rate %s)", name, c.DurationMonths, c.Percent, c.Rate)
}

// =============================================================================
// INVOICES
// =============================================================================

var invoiceHeaders = []string{
	"Invoice Number", "Contract Number", "Sub Contract Number", "Work Order Number",
	"Vendor", "Item Name", "Category", "Location", "Qty",
	"Invoice Value", "Invoice GST %", "Invoice Value With GST",
	"Admissible Amount", "Planned Claim (PQP)", "Claimed Value",
	"LD %", "LD Amount", "LD Applied On", "LD Reason", "Payable Amount",
	"RO Number", "RO Amount", "RO Date", "Payment Status", "Status",
	"Claimed Milestones", "Submission Date", "Received At TMD", "Artifacts Received",
	"Days RO vs Receive", "Delay Reason", "Financial Year", "Remarks", "Created At",
}

func InvoiceRows(invs []contract.Invoice) Table {
	t := Table{Headers: invoiceHeaders}
	for _, inv := range invs {
		days := ""
		if n, ok := inv.DaysBetweenROAndReceive(); ok {
			days = strconv.Itoa(n)
		}
		claimed := make([]string, len(inv.ClaimedMilestones))
		for i, id := range inv.ClaimedMilestones {
			claimed[i] = string(id)
		}
		t.Rows = append(t.Rows, []string{
			inv.InvoiceNumber, inv.ContractNumber, inv.SubContractNumber, inv.WorkOrderNumber,
			inv.Vendor, inv.ItemName, string(inv.Category), inv.ItemLocation, strconv.Itoa(inv.Qty),
			inv.InvoiceValue.String(), inv.InvoiceGSTPercent.String(), inv.InvoiceValueWithGST().String(),
			inv.AdmissibleAmount.String(), inv.PlannedClaim.String(), inv.ClaimedValue.String(),
			inv.LD.Percent.String(), inv.LD.Amount.String(), string(inv.LD.AppliedOn), inv.LD.Reason,
			inv.PayableAmount.String(),
			inv.ReleaseOrder.Number, inv.ReleaseOrder.Amount.String(), formatDatePtr(inv.ReleaseOrder.Date),
			string(inv.PaymentStatus), string(inv.Status()),
			strings.Join(claimed, " | "),
			formatDatePtr(inv.SubmissionDate), formatDatePtr(inv.ReceivedAtTMD), formatDatePtr(inv.ArtifactsReceived),
			days, inv.DelayReason, locale.FiscalYearOf(inv.ReferenceDate()), inv.Remarks,
			formatTimestamp(inv.CreatedAt),
		})
	}
	return t
}

// =============================================================================
// MILESTONES
// =============================================================================

var milestoneHeaders = []string{
	"Invoice Number", "Milestone", "Scheduled Amount",
	"Submission Date", "Received Date", "Artifacts Date",
	"Planned Claim", "Claimed", "LD %", "LD Amount", "Payable",
	"RO Number", "RO Amount", "RO Date", "Status", "Delay Reason",
}

// MilestoneRows lists every claimed milestone in claim order. Progress
// entries outside the claimed list are appended in label order.
func MilestoneRows(invs []contract.Invoice) Table {
	t := Table{Headers: milestoneHeaders}
	for _, inv := range invs {
		ids := append([]contract.MilestoneID(nil), inv.ClaimedMilestones...)
		listed := make(map[contract.MilestoneID]bool, len(ids))
		for _, id := range ids {
			listed[id] = true
		}
		var extra []contract.MilestoneID
		for id := range inv.Progress {
			if !listed[id] {
				extra = append(extra, id)
			}
		}
		sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
		ids = append(ids, extra...)

		for _, id := range ids {
			p, ok := inv.Progress[id]
			if !ok {
				p = contract.MilestoneProgress{Milestone: id}
			}
			t.Rows = append(t.Rows, []string{
				inv.InvoiceNumber, string(id), amount(p.Scheduled),
				formatDatePtr(p.SubmissionDate), formatDatePtr(p.ReceivedDate), formatDatePtr(p.ArtifactsDate),
				amount(p.PlannedClaim), amount(p.Claimed), amount(p.LD.Percent), amount(p.LD.Amount), amount(p.Payable),
				p.ReleaseOrder.Number, amount(p.ReleaseOrder.Amount), formatDatePtr(p.ReleaseOrder.Date),
				string(p.Status()), p.DelayReason,
			})
		}
	}
	return t
}

func amount(v decimal.Decimal) string { return v.String() }

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDate(*t)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(locale.IST).Format(time.RFC3339)
}
