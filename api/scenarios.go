/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate a session's book with
	realistic records. Each scenario is a set of JSON request documents fed
	through the same conversion path as the HTTP handlers, so a scenario
	that loads is also a worked example of the request format.

AVAILABLE SCENARIOS:

	empty:             Clean book
	hardware-warranty: Hardware work order, delivery invoice paid, warranty
	                   invoice with LD and a delayed release order
	mixed-portfolio:   Hardware+AMC, Telecom, Staff Cost and Others work
	                   orders across two fiscal years

HOW SCENARIOS WORK:
 1. Replace the session's book with an empty one
 2. Create work orders from CreateWorkOrderRequest JSON
 3. Create invoices from CreateInvoiceRequest JSON
 4. Record milestone payments from PaymentRequest JSON

USAGE VIA API:

	POST /api/scenarios/load
	X-Session-ID: <id>
	{"scenario_id": "hardware-warranty"}

SEE ALSO:
  - handlers.go: createInvoice, recordPayment
  - factory/plan.go: Plan and payload JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/contract-admin/contract"
	"go.uber.org/zap"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "empty",
		Name:        "Empty Book",
		Description: "No work orders or invoices",
	},
	{
		ID:          "hardware-warranty",
		Name:        "Hardware with Warranty",
		Description: "Server racks with a three year warranty; delivery paid, warranty claim under LD",
	},
	{
		ID:          "mixed-portfolio",
		Name:        "Mixed Portfolio",
		Description: "Hardware+AMC, Telecom, Staff Cost and Others across two fiscal years",
	},
}

// scenarioDoc is the JSON content of one scenario.
type scenarioDoc struct {
	WorkOrders []string
	Invoices   []string
	Payments   []paymentDoc
}

type paymentDoc struct {
	InvoiceNumber string
	Request       string
}

var scenarioDocs = map[string]scenarioDoc{
	"empty": {},
	"hardware-warranty": {
		WorkOrders: []string{`{
			"contract_number": "TMD/HW/2025/014",
			"sub_contract_number": "SC-01",
			"work_order_number": "WO-HW-001",
			"vendor": "Acme Systems",
			"location": "Pune",
			"contract_date": "2025-04-02",
			"contract_value_basic": "1000000",
			"gst_percent": "18",
			"work_order_percent": "100",
			"proof": {"filename": "wo-hw-001.pdf"},
			"items": [{
				"item_name": "Server Rack",
				"item_location": "Pune DC",
				"category": "Hardware",
				"qty": 10,
				"value_per_item": "100000",
				"details": {"warranty": {"duration_months": 36, "percent": "15", "rate": "0"}}
			}]
		}`},
		Invoices: []string{`{
			"invoice_number": "INV-HW-001",
			"contract_number": "TMD/HW/2025/014",
			"sub_contract_number": "SC-01",
			"work_order_number": "WO-HW-001",
			"item_name": "Server Rack",
			"qty": 10,
			"invoice_value": "600000",
			"invoice_gst_percent": "18",
			"admissible_amount": "600000",
			"planned_claim": "600000",
			"claimed_value": "600000",
			"plan": {
				"delivery_percent": "60",
				"uat_submission_percent": "10",
				"uat_completion_percent": "15",
				"warranty": {"percent": "15", "months": 36, "period": "Annually"}
			},
			"claimed_milestones": ["Delivery (60.00%)"],
			"release_order": {"number": "RO-HW-001", "amount": "600000", "date": "2025-06-20"},
			"submission_date": "2025-05-28",
			"received_at_tmd_date": "2025-06-02",
			"artifacts_received_date": "2025-06-02",
			"proof": {"filename": "inv-hw-001.pdf"}
		}`, `{
			"invoice_number": "INV-HW-002",
			"contract_number": "TMD/HW/2025/014",
			"sub_contract_number": "SC-01",
			"work_order_number": "WO-HW-001",
			"item_name": "Server Rack",
			"invoice_value": "150000",
			"invoice_gst_percent": "18",
			"admissible_amount": "150000",
			"planned_claim": "150000",
			"claimed_value": "150000",
			"plan": {
				"delivery_percent": "60",
				"uat_submission_percent": "10",
				"uat_completion_percent": "15",
				"warranty": {"percent": "15", "months": 36, "period": "Annually"}
			},
			"claimed_milestones": ["Warranty Year 1 (5.00%)", "Warranty Year 2 (5.00%)"],
			"liquidity_damage": {"percent": "2", "claimed": true, "reason": "Late site readiness report"},
			"submission_date": "2026-04-10",
			"received_at_tmd_date": "2026-04-15",
			"proof": {"filename": "inv-hw-002.pdf"}
		}`},
		Payments: []paymentDoc{{
			InvoiceNumber: "INV-HW-002",
			Request: `{
				"milestone": "Warranty Year 1 (5.00%)",
				"received_date": "2026-04-15",
				"planned_claim": "7500",
				"claimed": "7500",
				"liquidity_damage": {"percent": "2", "claimed": true, "reason": "Late site readiness report"},
				"release_order": {"number": "RO-HW-014", "amount": "7350", "date": "2026-06-01"},
				"delay_reason": "Budget head reallocation at year start"
			}`,
		}},
	},
	"mixed-portfolio": {
		WorkOrders: []string{`{
			"contract_number": "TMD/DC/2024/007",
			"sub_contract_number": "SC-02",
			"work_order_number": "WO-DC-007",
			"vendor": "Globex Infra",
			"location": "Chennai",
			"contract_date": "2024-11-18",
			"contract_value_basic": "2400000",
			"gst_percent": "18",
			"work_order_percent": "50",
			"proof": {"filename": "wo-dc-007.pdf"},
			"items": [{
				"item_name": "Storage Array",
				"item_location": "Chennai DC",
				"category": "Hardware+AMC",
				"qty": 2,
				"value_per_item": "600000",
				"details": {
					"warranty": {"duration_months": 12, "percent": "10", "rate": "0"},
					"amc": {"duration_months": 24, "percent": "10", "rate": "4"}
				}
			}]
		}`, `{
			"contract_number": "TMD/NW/2025/021",
			"sub_contract_number": "SC-01",
			"work_order_number": "WO-NW-021",
			"vendor": "Jio",
			"location": "Mumbai",
			"contract_date": "2025-07-01",
			"contract_value_basic": "480000",
			"gst_percent": "18",
			"work_order_percent": "100",
			"proof": {"filename": "wo-nw-021.pdf"},
			"items": [{
				"item_name": "MPLS Link",
				"item_location": "Mumbai HQ",
				"category": "Telecom",
				"qty": 1,
				"value_per_item": "480000",
				"details": {"telecom": {"sub_vendor": "Jio", "link": "HQ-DR", "link_type": "MPLS", "capacity": "100 Mbps"}}
			}]
		}`, `{
			"contract_number": "TMD/HR/2025/003",
			"sub_contract_number": "SC-01",
			"work_order_number": "WO-HR-003",
			"vendor": "Initech Staffing",
			"location": "Pune",
			"contract_date": "2025-05-15",
			"contract_value_basic": "1200000",
			"gst_percent": "18",
			"work_order_percent": "100",
			"proof": {"filename": "wo-hr-003.pdf"},
			"items": [{
				"item_name": "Onsite Engineers",
				"item_location": "Pune",
				"category": "Staff Cost",
				"qty": 4,
				"value_per_item": "250000",
				"details": {"staff": {"duration_months": 12, "period": "Quarterly", "from": "2025-06-01", "to": "2026-05-31"}}
			}, {
				"item_name": "Training",
				"item_location": "Pune",
				"category": "Others",
				"qty": 1,
				"value_per_item": "200000"
			}]
		}`},
		Invoices: []string{`{
			"invoice_number": "INV-DC-031",
			"contract_number": "TMD/DC/2024/007",
			"sub_contract_number": "SC-02",
			"work_order_number": "WO-DC-007",
			"item_name": "Storage Array",
			"invoice_value": "1200000",
			"invoice_gst_percent": "18",
			"admissible_amount": "1200000",
			"planned_claim": "960000",
			"claimed_value": "960000",
			"plan": {
				"delivery_percent": "70",
				"uat_completion_percent": "10",
				"warranty": {"percent": "10", "months": 12, "period": "Annually"},
				"amc": {"percent": "10", "months": 24, "period": "Annually"}
			},
			"claimed_milestones": ["Delivery (70.00%)", "UAT Completion (10.00%)"],
			"release_order": {"number": "RO-DC-031", "amount": "960000", "date": "2025-02-10"},
			"submission_date": "2025-01-20",
			"received_at_tmd_date": "2025-01-24",
			"proof": {"filename": "inv-dc-031.pdf"}
		}`, `{
			"invoice_number": "INV-NW-101",
			"contract_number": "TMD/NW/2025/021",
			"sub_contract_number": "SC-01",
			"work_order_number": "WO-NW-021",
			"item_name": "MPLS Link",
			"invoice_value": "120000",
			"invoice_gst_percent": "18",
			"admissible_amount": "120000",
			"plan": {"years": 1, "period": "Quarterly"},
			"claimed_milestones": ["Q1 Year 1"],
			"submission_date": "2025-10-03",
			"received_at_tmd_date": "2025-10-06",
			"proof": {"filename": "inv-nw-101.pdf"}
		}`, `{
			"invoice_number": "INV-HR-044",
			"contract_number": "TMD/HR/2025/003",
			"sub_contract_number": "SC-01",
			"work_order_number": "WO-HR-003",
			"item_name": "Onsite Engineers",
			"invoice_value": "250000",
			"invoice_gst_percent": "18",
			"admissible_amount": "250000",
			"planned_claim": "250000",
			"claimed_value": "250000",
			"plan": {"years": 1, "period": "Quarterly"},
			"claimed_milestones": ["Q1 Year 1"],
			"liquidity_damage": {"percent": "5", "applied_on": "PQP", "reason": "Two engineers joined late"},
			"submission_date": "2025-09-05",
			"proof": {"filename": "inv-hr-044.pdf"}
		}`, `{
			"invoice_number": "INV-OT-002",
			"contract_number": "TMD/HR/2025/003",
			"sub_contract_number": "SC-01",
			"work_order_number": "WO-HR-003",
			"item_name": "Training",
			"invoice_value": "200000",
			"invoice_gst_percent": "18",
			"admissible_amount": "200000",
			"planned_claim": "200000",
			"claimed_value": "200000",
			"plan": {"rows": [{"percent": "50", "remark": "Batch 1"}, {"percent": "50", "remark": "Batch 2"}]},
			"claimed_milestones": ["Milestone 1: Batch 1 (50.00%)"],
			"proof": {"filename": "inv-ot-002.pdf"}
		}`},
	},
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, scenarios)
}

// LoadScenario replaces the session's book with a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	doc, ok := scenarioDocs[req.ScenarioID]
	if !ok {
		writeError(w, r, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	s := sessionFrom(ctx)
	book := h.Sessions.NewBook(s.ID)
	if err := h.loadScenario(ctx, book, doc); err != nil {
		writeError(w, r, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	// Swap only after a full load so a failed scenario leaves the old book.
	s.reset(book, req.ScenarioID)
	h.log.Info("scenario loaded", zap.String("session_id", s.ID), zap.String("scenario", req.ScenarioID))

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADER
// =============================================================================

func (h *Handler) loadScenario(ctx context.Context, book *contract.Book, doc scenarioDoc) error {
	for i, js := range doc.WorkOrders {
		var req CreateWorkOrderRequest
		if err := h.unmarshalScenario(js, &req); err != nil {
			return fmt.Errorf("work order %d: %w", i, err)
		}
		draft, err := h.workOrderDraft(req)
		if err != nil {
			return fmt.Errorf("work order %s: %w", req.WorkOrderNumber, err)
		}
		if _, _, err := book.CreateWorkOrder(ctx, draft); err != nil {
			return fmt.Errorf("work order %s: %w", req.WorkOrderNumber, err)
		}
	}

	for i, js := range doc.Invoices {
		var req CreateInvoiceRequest
		if err := h.unmarshalScenario(js, &req); err != nil {
			return fmt.Errorf("invoice %d: %w", i, err)
		}
		if _, _, err := h.createInvoice(ctx, book, req); err != nil {
			return fmt.Errorf("invoice %s: %w", req.InvoiceNumber, err)
		}
	}

	for _, p := range doc.Payments {
		var req PaymentRequest
		if err := h.unmarshalScenario(p.Request, &req); err != nil {
			return fmt.Errorf("payment on %s: %w", p.InvoiceNumber, err)
		}
		if _, _, err := h.recordPayment(ctx, book, p.InvoiceNumber, req); err != nil {
			return fmt.Errorf("payment on %s: %w", p.InvoiceNumber, err)
		}
	}
	return nil
}

func (h *Handler) unmarshalScenario(js string, dst any) error {
	if err := json.Unmarshal([]byte(js), dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}
