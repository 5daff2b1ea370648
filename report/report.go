/*
Package report filters, sorts and summarizes work orders and invoices.

PURPOSE:
  Read-only views over a session's records. Nothing here writes back to
  the Store; callers pass in the slices they got from the Book.

KEY CONCEPTS:
  - WorkOrderFilter / InvoiceFilter: Zero-valued fields match everything
  - SortWorkOrders / SortInvoices:   Stable sort on a named field
  - Summary:                         Totals plus per-fiscal-year and
                                     per-category breakdowns

FISCAL YEAR:
  Work orders are bucketed by contract date, invoices by submission date
  (creation time when no submission date was recorded).

SEE ALSO:
  - locale/fiscal.go: FiscalYearOf
  - export/rows.go: Flattening for CSV and SQLite export
*/
package report

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/contract-admin/contract"
	"github.com/warp/contract-admin/locale"
)

// =============================================================================
// FILTERS
// =============================================================================

type WorkOrderFilter struct {
	Vendor         string            `json:"vendor,omitempty"`
	ContractNumber string            `json:"contract_number,omitempty"`
	Location       string            `json:"location,omitempty"`
	FiscalYear     string            `json:"fiscal_year,omitempty"`
	Category       contract.Category `json:"category,omitempty"`
	// Query is a case-insensitive substring over keys, vendor, location
	// and item names.
	Query string `json:"query,omitempty"`
}

func (f WorkOrderFilter) Match(wo contract.WorkOrder) bool {
	if f.Vendor != "" && !strings.EqualFold(strings.TrimSpace(wo.Vendor), strings.TrimSpace(f.Vendor)) {
		return false
	}
	if f.ContractNumber != "" && strings.TrimSpace(wo.ContractNumber) != strings.TrimSpace(f.ContractNumber) {
		return false
	}
	if f.Location != "" && !strings.EqualFold(strings.TrimSpace(wo.Location), strings.TrimSpace(f.Location)) {
		return false
	}
	if f.FiscalYear != "" && locale.FiscalYearOf(wo.ContractDate) != f.FiscalYear {
		return false
	}
	if f.Category != "" && !hasCategory(wo, f.Category) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		fields := []string{wo.ContractNumber, wo.SubContractNumber, wo.WorkOrderNumber, wo.Vendor, wo.Location}
		for _, it := range wo.Items {
			fields = append(fields, it.Name, it.Location)
		}
		return containsAny(fields, q)
	}
	return true
}

func FilterWorkOrders(wos []contract.WorkOrder, f WorkOrderFilter) []contract.WorkOrder {
	out := make([]contract.WorkOrder, 0, len(wos))
	for _, wo := range wos {
		if f.Match(wo) {
			out = append(out, wo)
		}
	}
	return out
}

type InvoiceFilter struct {
	Status         contract.ProcessingStatus `json:"status,omitempty"`
	PaymentStatus  contract.PaymentStatus    `json:"payment_status,omitempty"`
	Category       contract.Category         `json:"category,omitempty"`
	FiscalYear     string                    `json:"fiscal_year,omitempty"`
	Vendor         string                    `json:"vendor,omitempty"`
	ContractNumber string                    `json:"contract_number,omitempty"`
	Query          string                    `json:"query,omitempty"`
}

func (f InvoiceFilter) Match(inv contract.Invoice) bool {
	if f.Status != "" && inv.Status() != f.Status {
		return false
	}
	if f.PaymentStatus != "" && inv.PaymentStatus != f.PaymentStatus {
		return false
	}
	if f.Category != "" && inv.Category != f.Category {
		return false
	}
	if f.FiscalYear != "" && locale.FiscalYearOf(inv.ReferenceDate()) != f.FiscalYear {
		return false
	}
	if f.Vendor != "" && !strings.EqualFold(strings.TrimSpace(inv.Vendor), strings.TrimSpace(f.Vendor)) {
		return false
	}
	if f.ContractNumber != "" && strings.TrimSpace(inv.ContractNumber) != strings.TrimSpace(f.ContractNumber) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		return containsAny([]string{
			inv.InvoiceNumber, inv.ContractNumber, inv.WorkOrderNumber,
			inv.ItemName, inv.ItemLocation, inv.Vendor, inv.ReleaseOrder.Number,
		}, q)
	}
	return true
}

func FilterInvoices(invs []contract.Invoice, f InvoiceFilter) []contract.Invoice {
	out := make([]contract.Invoice, 0, len(invs))
	for _, inv := range invs {
		if f.Match(inv) {
			out = append(out, inv)
		}
	}
	return out
}

func hasCategory(wo contract.WorkOrder, c contract.Category) bool {
	for _, it := range wo.Items {
		if it.Category == c {
			return true
		}
	}
	return false
}

func containsAny(fields []string, lowerQuery string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), lowerQuery) {
			return true
		}
	}
	return false
}

// =============================================================================
// SORTING
// =============================================================================

// SortField names a sortable column.
type SortField string

const (
	SortByCreatedAt       SortField = "created_at"
	SortByContractDate    SortField = "contract_date"
	SortByVendor          SortField = "vendor"
	SortByContractValue   SortField = "contract_value"
	SortByWorkOrderNumber SortField = "work_order_number"
	SortByInvoiceNumber   SortField = "invoice_number"
	SortBySubmissionDate  SortField = "submission_date"
	SortByAdmissible      SortField = "admissible"
	SortByPayable         SortField = "payable"
)

// SortWorkOrders sorts in place. Unknown fields fall back to creation time.
func SortWorkOrders(wos []contract.WorkOrder, field SortField, desc bool) {
	less := func(a, b contract.WorkOrder) bool {
		switch field {
		case SortByContractDate:
			return a.ContractDate.Before(b.ContractDate)
		case SortByVendor:
			return strings.ToLower(a.Vendor) < strings.ToLower(b.Vendor)
		case SortByContractValue:
			return a.ContractValueBasic.LessThan(b.ContractValueBasic)
		case SortByWorkOrderNumber:
			return a.WorkOrderNumber < b.WorkOrderNumber
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(wos, func(i, j int) bool {
		if desc {
			return less(wos[j], wos[i])
		}
		return less(wos[i], wos[j])
	})
}

// SortInvoices sorts in place. Unknown fields fall back to creation time.
func SortInvoices(invs []contract.Invoice, field SortField, desc bool) {
	less := func(a, b contract.Invoice) bool {
		switch field {
		case SortByInvoiceNumber:
			return a.InvoiceNumber < b.InvoiceNumber
		case SortBySubmissionDate:
			return a.ReferenceDate().Before(b.ReferenceDate())
		case SortByAdmissible:
			return a.AdmissibleAmount.LessThan(b.AdmissibleAmount)
		case SortByPayable:
			return a.PayableAmount.LessThan(b.PayableAmount)
		case SortByVendor:
			return strings.ToLower(a.Vendor) < strings.ToLower(b.Vendor)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(invs, func(i, j int) bool {
		if desc {
			return less(invs[j], invs[i])
		}
		return less(invs[i], invs[j])
	})
}

// =============================================================================
// SUMMARY
// =============================================================================

type Totals struct {
	ContractValue  decimal.Decimal `json:"contract_value"`
	WorkOrderValue decimal.Decimal `json:"work_order_value"`
	Admissible     decimal.Decimal `json:"admissible"`
	LD             decimal.Decimal `json:"liquidity_damage"`
	Payable        decimal.Decimal `json:"payable"`
	Released       decimal.Decimal `json:"released"`
	// PendingRelease is payable not yet covered by release orders,
	// summed per invoice and never negative.
	PendingRelease decimal.Decimal `json:"pending_release"`
}

func (t *Totals) addWorkOrder(contractValue, workOrderValue decimal.Decimal) {
	t.ContractValue = t.ContractValue.Add(contractValue)
	t.WorkOrderValue = t.WorkOrderValue.Add(workOrderValue)
}

func (t *Totals) addInvoice(inv contract.Invoice) {
	released := inv.ReleasedTotal()
	t.Admissible = t.Admissible.Add(inv.AdmissibleAmount)
	t.LD = t.LD.Add(inv.LD.Amount)
	t.Payable = t.Payable.Add(inv.PayableAmount)
	t.Released = t.Released.Add(released)
	if pending := inv.PayableAmount.Sub(released); pending.IsPositive() {
		t.PendingRelease = t.PendingRelease.Add(pending)
	}
}

// Bucket is one row of a breakdown.
type Bucket struct {
	Key        string `json:"key"`
	WorkOrders int    `json:"work_orders"`
	Invoices   int    `json:"invoices"`
	Totals
}

type Summary struct {
	WorkOrders int `json:"work_orders"`
	Invoices   int `json:"invoices"`
	Totals

	ByFiscalYear       []Bucket                           `json:"by_fiscal_year"`
	ByCategory         []Bucket                           `json:"by_category"`
	ByPaymentStatus    map[contract.PaymentStatus]int    `json:"by_payment_status"`
	ByProcessingStatus map[contract.ProcessingStatus]int `json:"by_processing_status"`
}

// Summarize aggregates every record. Category buckets count item values,
// so a work order with mixed items contributes to several categories.
func Summarize(wos []contract.WorkOrder, invs []contract.Invoice) Summary {
	s := Summary{
		WorkOrders:         len(wos),
		Invoices:           len(invs),
		ByPaymentStatus:    make(map[contract.PaymentStatus]int),
		ByProcessingStatus: make(map[contract.ProcessingStatus]int),
	}
	byFY := newBuckets()
	byCat := newBuckets()

	for _, wo := range wos {
		s.addWorkOrder(wo.ContractValueBasic, wo.WorkOrderValueBasic)

		fy := byFY.get(fiscalKey(locale.FiscalYearOf(wo.ContractDate)))
		fy.WorkOrders++
		fy.addWorkOrder(wo.ContractValueBasic, wo.WorkOrderValueBasic)

		counted := map[contract.Category]bool{}
		for _, it := range wo.Items {
			b := byCat.get(string(it.Category))
			if !counted[it.Category] {
				b.WorkOrders++
				counted[it.Category] = true
			}
			b.addWorkOrder(decimal.Zero, it.ValueWithoutGST)
		}
	}

	for _, inv := range invs {
		s.addInvoice(inv)
		s.ByPaymentStatus[inv.PaymentStatus]++
		s.ByProcessingStatus[inv.Status()]++

		fy := byFY.get(fiscalKey(locale.FiscalYearOf(inv.ReferenceDate())))
		fy.Invoices++
		fy.addInvoice(inv)

		cat := byCat.get(string(inv.Category))
		cat.Invoices++
		cat.addInvoice(inv)
	}

	s.ByFiscalYear = byFY.sorted(func(a, b string) bool { return a < b })
	s.ByCategory = byCat.sorted(func(a, b string) bool { return categoryRank(a) < categoryRank(b) })
	return s
}

// FiscalYears lists the distinct fiscal years present, newest first.
func FiscalYears(wos []contract.WorkOrder, invs []contract.Invoice) []string {
	seen := map[string]bool{}
	var out []string
	add := func(fy string) {
		if fy != "" && !seen[fy] {
			seen[fy] = true
			out = append(out, fy)
		}
	}
	for _, wo := range wos {
		add(locale.FiscalYearOf(wo.ContractDate))
	}
	for _, inv := range invs {
		add(locale.FiscalYearOf(inv.ReferenceDate()))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

const unknownFiscalYear = "Unknown"

func fiscalKey(fy string) string {
	if fy == "" {
		return unknownFiscalYear
	}
	return fy
}

func categoryRank(key string) int {
	for i, c := range contract.Categories {
		if string(c) == key {
			return i
		}
	}
	return len(contract.Categories)
}

type buckets map[string]*Bucket

func newBuckets() buckets { return buckets{} }

func (bs buckets) get(key string) *Bucket {
	b, ok := bs[key]
	if !ok {
		b = &Bucket{Key: key}
		bs[key] = b
	}
	return b
}

func (bs buckets) sorted(less func(a, b string) bool) []Bucket {
	out := make([]Bucket, 0, len(bs))
	for _, b := range bs {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i].Key, out[j].Key) })
	return out
}
