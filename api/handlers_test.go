/*
handlers_test.go - HTTP tests for the API handlers

Tests drive the full router through httptest so routing, session
middleware, request validation and error mapping are covered together.
*/
package api

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/contract-admin/contract"
	"github.com/warp/contract-admin/logger"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// =============================================================================
// TEST CLIENT
// =============================================================================

var testNow = time.Date(2025, time.October, 16, 10, 0, 0, 0, time.UTC)

type testClient struct {
	t        *testing.T
	router   http.Handler
	handler  *Handler
	sessions *Sessions
	session  string
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	log := zaptest.NewLogger(t)
	sessions := NewSessions(10, time.Hour, log)
	sessions.now = func() time.Time { return testNow }
	h := NewHandler(sessions, WithExportDir(t.TempDir()), WithLogger(log))

	c := &testClient{t: t, router: NewRouter(h, nil), handler: h, sessions: sessions}
	var s SessionDTO
	c.expect(http.MethodPost, "/api/sessions", nil, http.StatusCreated, &s)
	require.NotEmpty(t, s.ID)
	c.session = s.ID
	return c
}

func (c *testClient) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(c.t, err)
		r = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if c.session != "" {
		req.Header.Set(SessionHeader, c.session)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	return rec
}

// expect performs the request, checks the status and decodes into out
// when out is non-nil.
func (c *testClient) expect(method, path string, body any, status int, out any) *httptest.ResponseRecorder {
	c.t.Helper()
	rec := c.do(method, path, body)
	require.Equal(c.t, status, rec.Code, "body: %s", rec.Body.String())
	if out != nil {
		require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func (c *testClient) expectError(method, path string, body any, status int) ErrorResponse {
	c.t.Helper()
	var resp ErrorResponse
	c.expect(method, path, body, status, &resp)
	return resp
}

// workOrderBody is the subset of WorkOrderDTO the tests read. Item
// payloads are interfaces and do not decode back into contract.Item.
type workOrderBody struct {
	ID                  string             `json:"id"`
	ContractNumber      string             `json:"contract_number"`
	WorkOrderNumber     string             `json:"work_order_number"`
	Vendor              string             `json:"vendor"`
	FiscalYear          string             `json:"fiscal_year"`
	WorkOrderValueBasic decimal.Decimal    `json:"work_order_value_basic"`
	Display             WorkOrderDisplay   `json:"display"`
	Warnings            []contract.Warning `json:"warnings"`
	Items               []struct {
		SerialNo     int             `json:"serial_no"`
		Name         string          `json:"item_name"`
		Category     string          `json:"category"`
		ValueWithGST decimal.Decimal `json:"value_with_gst"`
		Kind         string          `json:"kind"`
		Details      string          `json:"details"`
	} `json:"items"`
}

func hasViolation(resp ErrorResponse, field string) bool {
	for _, v := range resp.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

// =============================================================================
// FIXTURES
// =============================================================================

const hardwareWorkOrderJSON = `{
	"contract_number": "C-100",
	"sub_contract_number": "S-1",
	"work_order_number": "WO-7",
	"vendor": "Acme Systems",
	"location": "Pune",
	"contract_date": "2025-04-02",
	"contract_value_basic": "1000000",
	"gst_percent": "18",
	"work_order_percent": "100",
	"proof": {"filename": "wo.pdf"},
	"items": [{
		"item_name": "Server Rack",
		"item_location": "Pune DC",
		"category": "hardware",
		"qty": 10,
		"value_per_item": "100000",
		"details": {"warranty": {"duration_months": 12, "percent": "15"}}
	}]
}`

func hardwareInvoice(number string, claimed ...string) map[string]any {
	return map[string]any{
		"invoice_number":      number,
		"contract_number":     "C-100",
		"sub_contract_number": "S-1",
		"work_order_number":   "WO-7",
		"item_name":           "Server Rack",
		"qty":                 4,
		"invoice_value":       "50000",
		"invoice_gst_percent": "18",
		"admissible_amount":   "50000",
		"planned_claim":       "50000",
		"claimed_value":       "45000",
		"plan": map[string]any{
			"delivery_percent":       "60",
			"uat_submission_percent": "10",
			"uat_completion_percent": "15",
			"warranty":               map[string]any{"percent": "15", "months": 12, "period": "annually"},
		},
		"claimed_milestones": claimed,
		"proof":              map[string]any{"filename": "inv.pdf"},
	}
}

const (
	delivery  = "Delivery (60.00%)"
	warranty1 = "Warranty Year 1 (15.00%)"
)

func (c *testClient) seedHardware() workOrderBody {
	c.t.Helper()
	var wo workOrderBody
	c.expect(http.MethodPost, "/api/work-orders", hardwareWorkOrderJSON, http.StatusCreated, &wo)
	return wo
}

func (c *testClient) seedInvoice() InvoiceDTO {
	c.t.Helper()
	c.seedHardware()
	var inv InvoiceDTO
	c.expect(http.MethodPost, "/api/invoices", hardwareInvoice("INV-1", delivery, warranty1), http.StatusCreated, &inv)
	return inv
}

// =============================================================================
// WORK ORDERS
// =============================================================================

func TestWorkOrderLifecycle(t *testing.T) {
	c := newTestClient(t)

	// GIVEN: a hardware work order
	wo := c.seedHardware()
	assert.NotEmpty(t, wo.ID)
	assert.Equal(t, "FY2025-2026", wo.FiscalYear)
	assert.True(t, decimal.RequireFromString("1000000").Equal(wo.WorkOrderValueBasic))
	assert.Equal(t, "₹ 10,00,000", wo.Display.WorkOrderValue.Display)
	assert.Empty(t, wo.Warnings)
	require.Len(t, wo.Items, 1)
	assert.Equal(t, "Hardware", wo.Items[0].Category)
	assert.Equal(t, "Hardware", wo.Items[0].Kind)
	assert.True(t, decimal.RequireFromString("1180000").Equal(wo.Items[0].ValueWithGST))
	assert.Contains(t, wo.Items[0].Details, "Warranty: 12 months at 15%")

	// WHEN: the same key is submitted again
	resp := c.expectError(http.MethodPost, "/api/work-orders", hardwareWorkOrderJSON, http.StatusConflict)
	assert.Equal(t, "duplicate_work_order", resp.Code)

	// THEN: list filters see one work order
	var list struct {
		WorkOrders []workOrderBody `json:"work_orders"`
	}
	c.expect(http.MethodGet, "/api/work-orders?category=hardware", nil, http.StatusOK, &list)
	assert.Len(t, list.WorkOrders, 1)
	c.expect(http.MethodGet, "/api/work-orders?category=telecom", nil, http.StatusOK, &list)
	assert.Empty(t, list.WorkOrders)
	c.expectError(http.MethodGet, "/api/work-orders?category=spaceships", nil, http.StatusBadRequest)

	path := "/api/work-orders/" + wo.ID
	var got workOrderBody
	c.expect(http.MethodGet, path, nil, http.StatusOK, &got)
	assert.Equal(t, "WO-7", got.WorkOrderNumber)

	// Edit header
	c.expect(http.MethodPatch, path, `{"vendor": "Acme Global"}`, http.StatusOK, &got)
	assert.Equal(t, "Acme Global", got.Vendor)

	// Add and remove an item
	c.expect(http.MethodPost, path+"/items", `{
		"item_name": "Install",
		"item_location": "Pune DC",
		"category": "Others",
		"qty": 1,
		"value_per_item": "5000"
	}`, http.StatusCreated, &got)
	require.Len(t, got.Items, 2)
	assert.Equal(t, 2, got.Items[1].SerialNo)
	assert.NotEmpty(t, got.Warnings, "items no longer reconcile with the work order value")

	c.expect(http.MethodDelete, path+"/items/2", nil, http.StatusOK, &got)
	assert.Len(t, got.Items, 1)

	resp = c.expectError(http.MethodDelete, path+"/items/1", nil, http.StatusBadRequest)
	assert.True(t, hasViolation(resp, "items"))
	c.expectError(http.MethodDelete, path+"/items/9", nil, http.StatusNotFound)
	c.expectError(http.MethodDelete, path+"/items/x", nil, http.StatusBadRequest)

	// Delete
	c.expect(http.MethodDelete, path, nil, http.StatusNoContent, nil)
	c.expectError(http.MethodGet, path, nil, http.StatusNotFound)
}

func TestCreateWorkOrder_Validation(t *testing.T) {
	c := newTestClient(t)

	t.Run("empty body", func(t *testing.T) {
		resp := c.expectError(http.MethodPost, "/api/work-orders", nil, http.StatusBadRequest)
		assert.Equal(t, "Request body is empty", resp.Error)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		c.expectError(http.MethodPost, "/api/work-orders", "{", http.StatusBadRequest)
	})

	t.Run("missing fields", func(t *testing.T) {
		resp := c.expectError(http.MethodPost, "/api/work-orders", "{}", http.StatusBadRequest)
		assert.Equal(t, "invalid_request", resp.Code)
		assert.True(t, hasViolation(resp, "contract_number"))
		assert.True(t, hasViolation(resp, "items"))
	})

	t.Run("unparseable date", func(t *testing.T) {
		body := strings.Replace(hardwareWorkOrderJSON, `"2025-04-02"`, `"not a date"`, 1)
		resp := c.expectError(http.MethodPost, "/api/work-orders", body, http.StatusBadRequest)
		assert.Equal(t, "invalid_field", resp.Code)
		assert.True(t, hasViolation(resp, "contract_date"))
	})

	t.Run("business rules", func(t *testing.T) {
		body := strings.Replace(hardwareWorkOrderJSON, `"qty": 10`, `"qty": 0`, 1)
		resp := c.expectError(http.MethodPost, "/api/work-orders", body, http.StatusBadRequest)
		assert.Equal(t, "validation_failed", resp.Code)
		assert.True(t, hasViolation(resp, "items[0].qty"))
	})

	t.Run("unknown item category", func(t *testing.T) {
		body := strings.Replace(hardwareWorkOrderJSON, `"category": "hardware"`, `"category": "gadgets"`, 1)
		resp := c.expectError(http.MethodPost, "/api/work-orders", body, http.StatusBadRequest)
		assert.True(t, hasViolation(resp, "items[0].category"))
	})
}

// =============================================================================
// INVOICES
// =============================================================================

func TestInvoiceFlow(t *testing.T) {
	c := newTestClient(t)

	// GIVEN: an invoice claiming delivery and the first warranty year
	inv := c.seedInvoice()
	assert.Equal(t, contract.StatusPending, inv.Status)
	assert.True(t, decimal.RequireFromString("45000").Equal(inv.PayableAmount))
	assert.Equal(t, "₹ 45,000", inv.Display.Payable.Display)
	assert.Equal(t, 4, inv.Qty)
	require.Len(t, inv.Progress, 2)
	assert.True(t, decimal.RequireFromString("30000").Equal(inv.Progress[delivery].Scheduled))
	assert.True(t, decimal.RequireFromString("7500").Equal(inv.Progress[warranty1].Scheduled))

	// Uniqueness and references
	resp := c.expectError(http.MethodPost, "/api/invoices", hardwareInvoice("INV-1", delivery), http.StatusConflict)
	assert.Equal(t, "duplicate_invoice", resp.Code)

	missing := hardwareInvoice("INV-2", delivery)
	missing["item_name"] = "Router"
	c.expectError(http.MethodPost, "/api/invoices", missing, http.StatusNotFound)

	var list struct {
		WorkOrders []workOrderBody `json:"work_orders"`
	}
	c.expect(http.MethodGet, "/api/work-orders", nil, http.StatusOK, &list)
	require.Len(t, list.WorkOrders, 1)
	woPath := "/api/work-orders/" + list.WorkOrders[0].ID

	resp = c.expectError(http.MethodDelete, woPath, nil, http.StatusConflict)
	assert.Equal(t, "work_order_referenced", resp.Code)

	var linked struct {
		Invoices []InvoiceDTO `json:"invoices"`
	}
	c.expect(http.MethodGet, woPath+"/invoices", nil, http.StatusOK, &linked)
	assert.Len(t, linked.Invoices, 1)

	// WHEN: delivery is paid
	c.expectError(http.MethodPost, "/api/invoices/INV-1/payments", `{"milestone": "Go-Live (5.00%)"}`, http.StatusNotFound)
	c.expect(http.MethodPost, "/api/invoices/INV-1/payments", `{
		"milestone": "Delivery (60.00%)",
		"received_date": "2025-05-20",
		"planned_claim": "30000",
		"claimed": "30000",
		"release_order": {"number": "RO-1", "amount": "30000", "date": "2025-06-01"}
	}`, http.StatusOK, &inv)

	// THEN: the invoice is partially processed
	assert.Equal(t, contract.StatusPartiallyProcessed, inv.Status)
	assert.True(t, decimal.RequireFromString("30000").Equal(inv.ReleasedTotal))

	c.expect(http.MethodGet, "/api/invoices?status=Partially%20Processed", nil, http.StatusOK, &linked)
	assert.Len(t, linked.Invoices, 1)
	c.expect(http.MethodGet, "/api/invoices?status=Processed", nil, http.StatusOK, &linked)
	assert.Empty(t, linked.Invoices)

	// Edits respect the admissible ceiling
	resp = c.expectError(http.MethodPatch, "/api/invoices/INV-1", `{"admissible_amount": "20000"}`, http.StatusBadRequest)
	assert.Equal(t, "ceiling_exceeded", resp.Code)
	c.expect(http.MethodPatch, "/api/invoices/INV-1", `{"remarks": "checked"}`, http.StatusOK, &inv)
	assert.Equal(t, "checked", inv.Remarks)

	// Cleanup order: invoice first, then the work order
	c.expect(http.MethodDelete, "/api/invoices/INV-1", nil, http.StatusNoContent, nil)
	c.expectError(http.MethodGet, "/api/invoices/INV-1", nil, http.StatusNotFound)
	c.expect(http.MethodDelete, woPath, nil, http.StatusNoContent, nil)
}

func TestCreateInvoice_Validation(t *testing.T) {
	c := newTestClient(t)
	c.seedHardware()

	t.Run("unknown milestone label", func(t *testing.T) {
		resp := c.expectError(http.MethodPost, "/api/invoices", hardwareInvoice("INV-9", "Go-Live"), http.StatusBadRequest)
		assert.True(t, hasViolation(resp, "claimed_milestones"))
	})

	t.Run("qty over the ordered quantity", func(t *testing.T) {
		body := hardwareInvoice("INV-9", delivery)
		body["qty"] = 11
		resp := c.expectError(http.MethodPost, "/api/invoices", body, http.StatusBadRequest)
		assert.Equal(t, "ceiling_exceeded", resp.Code)
		assert.True(t, hasViolation(resp, "qty"))
	})

	t.Run("bad plan period", func(t *testing.T) {
		body := hardwareInvoice("INV-9", delivery)
		body["plan"].(map[string]any)["warranty"] = map[string]any{"percent": "15", "months": 12, "period": "fortnightly"}
		resp := c.expectError(http.MethodPost, "/api/invoices", body, http.StatusBadRequest)
		assert.True(t, hasViolation(resp, "plan.warranty.period"))
	})

	t.Run("bad tracking date", func(t *testing.T) {
		body := hardwareInvoice("INV-9", delivery)
		body["submission_date"] = "someday"
		resp := c.expectError(http.MethodPost, "/api/invoices", body, http.StatusBadRequest)
		assert.True(t, hasViolation(resp, "submission_date"))
	})

	t.Run("LD without a reason", func(t *testing.T) {
		body := hardwareInvoice("INV-9", delivery)
		body["liquidity_damage"] = map[string]any{"percent": "5", "applied_on": "PQP"}
		resp := c.expectError(http.MethodPost, "/api/invoices", body, http.StatusBadRequest)
		assert.True(t, hasViolation(resp, "liquidity_damage.reason"))
	})
}

func TestRecordPayment_LDToggle(t *testing.T) {
	c := newTestClient(t)
	c.seedInvoice()

	pay := func(pqp, claimed bool) InvoiceDTO {
		t.Helper()
		var inv InvoiceDTO
		c.expect(http.MethodPost, "/api/invoices/INV-1/payments", map[string]any{
			"milestone":     warranty1,
			"planned_claim": "7500",
			"claimed":       "7500",
			"liquidity_damage": map[string]any{
				"percent": "10", "pqp": pqp, "claimed": claimed, "reason": "late",
			},
		}, http.StatusOK, &inv)
		return inv
	}

	// GIVEN: no prior basis, both boxes checked: Claimed wins
	inv := pay(true, true)
	p := inv.Progress[warranty1]
	assert.Equal(t, contract.LDOnClaimed, p.LD.AppliedOn)
	assert.True(t, decimal.RequireFromString("750").Equal(p.LD.Amount))
	assert.True(t, decimal.RequireFromString("6750").Equal(p.Payable))

	// WHEN: both are checked again, the box that was on turns off
	inv = pay(true, true)
	assert.Equal(t, contract.LDOnPQP, inv.Progress[warranty1].LD.AppliedOn)

	// THEN: a single box selects its basis directly
	inv = pay(false, true)
	assert.Equal(t, contract.LDOnClaimed, inv.Progress[warranty1].LD.AppliedOn)
}

func TestRecordPayment_DelayRules(t *testing.T) {
	c := newTestClient(t)
	c.seedInvoice()

	payment := func(received, roDate, reason string) map[string]any {
		return map[string]any{
			"milestone":     delivery,
			"received_date": received,
			"planned_claim": "30000",
			"claimed":       "30000",
			"release_order": map[string]any{"number": "RO-1", "amount": "30000", "date": roDate},
			"delay_reason":  reason,
		}
	}

	resp := c.expectError(http.MethodPost, "/api/invoices/INV-1/payments",
		payment("2025-05-01", "2025-07-15", ""), http.StatusBadRequest)
	assert.True(t, hasViolation(resp, "delay_reason"))

	resp = c.expectError(http.MethodPost, "/api/invoices/INV-1/payments",
		payment("2025-05-01", "2025-04-15", ""), http.StatusBadRequest)
	assert.True(t, hasViolation(resp, "release_order.date"))

	var inv InvoiceDTO
	c.expect(http.MethodPost, "/api/invoices/INV-1/payments",
		payment("2025-05-01", "2025-07-15", "Awaiting budget"), http.StatusOK, &inv)
	assert.Equal(t, "Awaiting budget", inv.Progress[delivery].DelayReason)
}

// =============================================================================
// MILESTONE PREVIEW
// =============================================================================

func TestPreviewMilestones(t *testing.T) {
	c := newTestClient(t)

	var preview PreviewDTO
	c.expect(http.MethodPost, "/api/milestones/preview", `{
		"admissible_amount": "100000",
		"plan": {
			"category": "Hardware",
			"delivery_percent": "60",
			"uat_submission_percent": "10",
			"uat_completion_percent": "15",
			"warranty": {"percent": "15", "months": 36, "period": "Annually"}
		}
	}`, http.StatusOK, &preview)

	assert.Equal(t, contract.CategoryHardware, preview.Category)
	assert.Equal(t, []string{
		"Delivery (60.00%)",
		"UAT Submission (10.00%)",
		"UAT Completion (15.00%)",
		"Warranty Year 1 (5.00%)",
		"Warranty Year 2 (5.00%)",
		"Warranty Year 3 (5.00%)",
	}, preview.Labels)
	assert.True(t, decimal.RequireFromString("100000").Equal(preview.Total.Value))
	assert.Equal(t, "₹ 1,00,000", preview.Total.Display)
	assert.Empty(t, preview.Warnings)

	// Installment plans split evenly
	c.expect(http.MethodPost, "/api/milestones/preview", `{
		"admissible_amount": "1000",
		"plan": {"category": "telecom", "years": 2, "period": "half-yearly"}
	}`, http.StatusOK, &preview)
	assert.Equal(t, []string{"H1 Year 1", "H2 Year 1", "H1 Year 2", "H2 Year 2"}, preview.Labels)
	assert.True(t, decimal.RequireFromString("250").Equal(preview.Schedule[0].Amount))

	// Percentages off 100 warn
	c.expect(http.MethodPost, "/api/milestones/preview", `{
		"admissible_amount": "1000",
		"plan": {"category": "Hardware", "delivery_percent": "50"}
	}`, http.StatusOK, &preview)
	require.Len(t, preview.Warnings, 1)
	assert.Equal(t, "percent_total", preview.Warnings[0].Code)

	resp := c.expectError(http.MethodPost, "/api/milestones/preview",
		`{"admissible_amount": "1000", "plan": {"category": "Spaceships"}}`, http.StatusBadRequest)
	assert.True(t, hasViolation(resp, "plan.category"))

	resp = c.expectError(http.MethodPost, "/api/milestones/preview",
		`{"admissible_amount": "1000", "plan": {"category": "Telecom", "years": 0, "period": "Quarterly"}}`, http.StatusBadRequest)
	assert.True(t, hasViolation(resp, "years"))
}

// =============================================================================
// REPORTS AND EXPORT
// =============================================================================

func TestReports(t *testing.T) {
	c := newTestClient(t)
	c.expect(http.MethodPost, "/api/scenarios/load", `{"scenario_id": "mixed-portfolio"}`, http.StatusOK, nil)

	var summary SummaryDTO
	c.expect(http.MethodGet, "/api/reports/summary", nil, http.StatusOK, &summary)
	assert.Equal(t, 3, summary.WorkOrders)
	assert.Equal(t, 4, summary.Invoices)
	assert.Equal(t, []string{"FY2025-2026", "FY2024-2025"}, summary.FiscalYears)
	assert.NotEmpty(t, summary.Display.Payable.Display)

	c.expect(http.MethodGet, "/api/reports/summary?fiscal_year=FY2024-2025", nil, http.StatusOK, &summary)
	assert.Equal(t, 1, summary.WorkOrders)
	assert.Equal(t, 1, summary.Invoices)
	assert.Equal(t, []string{"FY2025-2026", "FY2024-2025"}, summary.FiscalYears, "year list ignores filters")

	c.expect(http.MethodGet, "/api/reports/summary?category=telecom", nil, http.StatusOK, &summary)
	assert.Equal(t, 1, summary.WorkOrders)
	assert.Equal(t, 1, summary.Invoices)

	var years struct {
		FiscalYears []string `json:"fiscal_years"`
	}
	c.expect(http.MethodGet, "/api/reports/fiscal-years", nil, http.StatusOK, &years)
	assert.Equal(t, []string{"FY2025-2026", "FY2024-2025"}, years.FiscalYears)

	var list struct {
		WorkOrders []workOrderBody `json:"work_orders"`
	}
	c.expect(http.MethodGet, "/api/work-orders?sort=contract_date", nil, http.StatusOK, &list)
	require.Len(t, list.WorkOrders, 3)
	assert.Equal(t, "WO-DC-007", list.WorkOrders[0].WorkOrderNumber)
	c.expect(http.MethodGet, "/api/work-orders?sort=contract_date&desc=true", nil, http.StatusOK, &list)
	assert.Equal(t, "WO-NW-021", list.WorkOrders[0].WorkOrderNumber)
}

func TestExportCSV(t *testing.T) {
	c := newTestClient(t)
	c.expect(http.MethodPost, "/api/scenarios/load", `{"scenario_id": "mixed-portfolio"}`, http.StatusOK, nil)

	rec := c.expect(http.MethodGet, "/api/export/invoices.csv", nil, http.StatusOK, nil)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="invoices.csv"`)

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, "Invoice Number", records[0][0])

	c.expectError(http.MethodGet, "/api/export/payroll.csv", nil, http.StatusNotFound)
}

func TestExportSQLite(t *testing.T) {
	c := newTestClient(t)
	c.expect(http.MethodPost, "/api/scenarios/load", `{"scenario_id": "mixed-portfolio"}`, http.StatusOK, nil)

	var out ExportDTO
	c.expect(http.MethodPost, "/api/export/sqlite", nil, http.StatusCreated, &out)

	_, err := os.Stat(out.Path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Path, c.handler.ExportDir))

	counts := map[string]int{}
	for _, s := range out.Sheets {
		counts[s.Name] = s.RowCount
	}
	assert.Equal(t, map[string]int{"invoices": 4, "milestones": 5, "work_orders": 4}, counts)
}

func TestExportXLSX(t *testing.T) {
	c := newTestClient(t)
	c.expect(http.MethodPost, "/api/scenarios/load", `{"scenario_id": "mixed-portfolio"}`, http.StatusOK, nil)

	rec := c.expect(http.MethodGet, "/api/export/workbook.xlsx", nil, http.StatusOK, nil)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"work_orders", "invoices", "milestones"}, f.GetSheetList())
	rows, err := f.GetRows("invoices")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Invoice Number", rows[0][0])
}

func TestWriteJSON_LogsEncodeFailure(t *testing.T) {
	// GIVEN: a request whose context carries an observed logger
	core, logs := observer.New(zapcore.ErrorLevel)
	req := httptest.NewRequest(http.MethodGet, "/api/reports/summary", nil)
	req = req.WithContext(logger.WithContext(req.Context(), zap.New(core)))
	rec := httptest.NewRecorder()

	// WHEN: the body cannot be encoded
	writeJSON(rec, req, http.StatusOK, map[string]any{"bad": make(chan int)})

	// THEN: the failure is logged with the path
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "failed to encode response", entry.Message)
	assert.Equal(t, "/api/reports/summary", entry.ContextMap()["path"])
}
