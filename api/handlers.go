/*
handlers.go - HTTP API handlers for contract administration

PURPOSE:
  Exposes the per-session contract book via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the contract,
  report and export packages.

ENDPOINTS:
  Sessions:
    POST   /api/sessions                       Create session
    DELETE /api/sessions/{id}                  Drop session
    GET    /api/session                        Current session

  Work orders:
    GET    /api/work-orders                    List (filters, sort)
    POST   /api/work-orders                    Create
    GET    /api/work-orders/{id}               Get
    PATCH  /api/work-orders/{id}               Edit header fields
    DELETE /api/work-orders/{id}               Delete (guarded)
    GET    /api/work-orders/{id}/invoices      Invoices raised against it
    POST   /api/work-orders/{id}/items         Add item
    DELETE /api/work-orders/{id}/items/{serial} Remove item

  Invoices:
    GET    /api/invoices                       List (filters, sort)
    POST   /api/invoices                       Create
    GET    /api/invoices/{number}              Get
    PATCH  /api/invoices/{number}              Edit amounts
    DELETE /api/invoices/{number}              Delete
    POST   /api/invoices/{number}/payments     Record milestone payment

  Milestones, reports, export:
    POST   /api/milestones/preview             Schedule for a plan
    GET    /api/reports/summary                Totals and breakdowns
    GET    /api/reports/fiscal-years           Fiscal years in use
    GET    /api/export/{sheet}.csv             One sheet as CSV
    GET    /api/export/workbook.xlsx           All sheets as an Excel workbook
    POST   /api/export/sqlite                  All sheets to a workbook file

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, unparseable input
  - 404: Session, work order, item, invoice or milestone not found
  - 409: Duplicate keys, delete blocked by invoices
  - 500: Internal errors

SECURITY NOTE:
  No authentication. A session ID is an unguessable handle, not a
  credential.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/warp/contract-admin/contract"
	"github.com/warp/contract-admin/export"
	"github.com/warp/contract-admin/export/sqlite"
	"github.com/warp/contract-admin/factory"
	"github.com/warp/contract-admin/locale"
	"github.com/warp/contract-admin/logger"
	"github.com/warp/contract-admin/milestone"
	"github.com/warp/contract-admin/report"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Sessions  *Sessions
	Factory   *factory.Factory
	ExportDir string

	validate *validator.Validate
	maxBody  int64
	log      *zap.Logger
}

type HandlerOption func(*Handler)

func WithExportDir(dir string) HandlerOption {
	return func(h *Handler) { h.ExportDir = dir }
}

// WithMaxBodySize caps request bodies. Non-positive values are ignored.
func WithMaxBodySize(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

func WithLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) { h.log = l }
}

// NewHandler creates a handler over the session registry.
func NewHandler(sessions *Sessions, opts ...HandlerOption) *Handler {
	h := &Handler{
		Sessions:  sessions,
		Factory:   factory.New(),
		ExportDir: "./exports",
		validate:  newValidator(),
		maxBody:   10 << 20,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) book(r *http.Request) *contract.Book {
	return sessionFrom(r.Context()).Book()
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// CreateSession starts an empty session.
// POST /api/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Create()
	if err != nil {
		if errors.Is(err, ErrTooManySessions) {
			writeError(w, r, http.StatusTooManyRequests, "Too many open sessions", err)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "Failed to create session", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toSessionDTO(s))
}

// DeleteSession drops a session and everything in it.
// DELETE /api/sessions/{id}
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, r, http.StatusNotFound, "Session not found", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSession returns the session named by the request header.
// GET /api/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, toSessionDTO(sessionFrom(r.Context())))
}

func toSessionDTO(s *Session) SessionDTO {
	return SessionDTO{ID: s.ID, CreatedAt: s.CreatedAt.Format(time.RFC3339), Scenario: s.Scenario()}
}

// =============================================================================
// WORK ORDER HANDLERS
// =============================================================================

// ListWorkOrders returns work orders matching the query filters.
// GET /api/work-orders?vendor=&location=&contract_number=&fiscal_year=&category=&q=&sort=&desc=
func (h *Handler) ListWorkOrders(w http.ResponseWriter, r *http.Request) {
	category, err := queryCategory(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	wos, err := h.book(r).WorkOrders(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to list work orders", err)
		return
	}

	q := r.URL.Query()
	wos = report.FilterWorkOrders(wos, report.WorkOrderFilter{
		Vendor:         q.Get("vendor"),
		ContractNumber: q.Get("contract_number"),
		Location:       q.Get("location"),
		FiscalYear:     q.Get("fiscal_year"),
		Category:       category,
		Query:          q.Get("q"),
	})
	report.SortWorkOrders(wos, report.SortField(q.Get("sort")), queryBool(r, "desc"))

	writeJSON(w, r, http.StatusOK, map[string]any{"work_orders": toWorkOrderDTOs(wos)})
}

// CreateWorkOrder validates and stores a work order with its items.
// POST /api/work-orders
func (h *Handler) CreateWorkOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	draft, err := h.workOrderDraft(req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	wo, warnings, err := h.book(r).CreateWorkOrder(r.Context(), draft)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toWorkOrderDTO(wo, warnings))
}

func (h *Handler) workOrderDraft(req CreateWorkOrderRequest) (contract.WorkOrderDraft, error) {
	date, err := locale.ParseFlexibleDate(req.ContractDate)
	if err != nil {
		return contract.WorkOrderDraft{}, &factory.FieldError{Field: "contract_date", Err: err}
	}
	items := make([]contract.ItemInput, len(req.Items))
	for i, it := range req.Items {
		in, err := h.itemInput(fmt.Sprintf("items[%d]", i), it)
		if err != nil {
			return contract.WorkOrderDraft{}, err
		}
		items[i] = in
	}
	return contract.WorkOrderDraft{
		WorkOrderKey: contract.WorkOrderKey{
			ContractNumber:    req.ContractNumber,
			SubContractNumber: req.SubContractNumber,
			WorkOrderNumber:   req.WorkOrderNumber,
		},
		Vendor:             req.Vendor,
		Location:           req.Location,
		ContractDate:       date,
		ContractValueBasic: req.ContractValueBasic,
		GSTPercent:         req.GSTPercent,
		WorkOrderPercent:   req.WorkOrderPercent,
		Proof:              toArtifact(req.Proof),
		Items:              items,
	}, nil
}

// itemInput resolves the category and its details. Details without a
// category of their own take the item's.
func (h *Handler) itemInput(field string, req ItemRequest) (contract.ItemInput, error) {
	category, err := contract.ParseCategory(req.Category)
	if err != nil {
		return contract.ItemInput{}, &factory.FieldError{Field: field + ".category", Err: err}
	}
	in := contract.ItemInput{
		Name:         req.ItemName,
		Location:     req.ItemLocation,
		Category:     category,
		Qty:          req.Qty,
		ValuePerItem: req.ValuePerItem,
		Remark:       req.Remark,
	}
	if req.Details != nil {
		details := *req.Details
		if details.Category == "" {
			details.Category = string(category)
		}
		payload, err := h.Factory.PayloadFromJSON(details)
		if err != nil {
			return contract.ItemInput{}, fieldError(field+".details", err)
		}
		in.Payload = payload
	}
	return in, nil
}

// GetWorkOrder returns one work order.
// GET /api/work-orders/{id}
func (h *Handler) GetWorkOrder(w http.ResponseWriter, r *http.Request) {
	wo, err := h.book(r).GetWorkOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toWorkOrderDTO(wo, wo.Warnings()))
}

// EditWorkOrder changes header fields and re-derives values.
// PATCH /api/work-orders/{id}
func (h *Handler) EditWorkOrder(w http.ResponseWriter, r *http.Request) {
	var req EditWorkOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	edit := contract.WorkOrderEdit{
		Vendor:             req.Vendor,
		Location:           req.Location,
		ContractValueBasic: req.ContractValueBasic,
		GSTPercent:         req.GSTPercent,
		WorkOrderPercent:   req.WorkOrderPercent,
	}
	if req.ContractDate != nil {
		date, err := locale.ParseFlexibleDate(*req.ContractDate)
		if err != nil {
			writeDomainError(w, r, &factory.FieldError{Field: "contract_date", Err: err})
			return
		}
		edit.ContractDate = &date
	}
	if req.Proof != nil {
		proof := toArtifact(*req.Proof)
		edit.Proof = &proof
	}

	wo, warnings, err := h.book(r).EditWorkOrder(r.Context(), chi.URLParam(r, "id"), edit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toWorkOrderDTO(wo, warnings))
}

// DeleteWorkOrder removes a work order no invoice references.
// DELETE /api/work-orders/{id}
func (h *Handler) DeleteWorkOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.book(r).DeleteWorkOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WorkOrderInvoices lists the invoices raised against a work order.
// GET /api/work-orders/{id}/invoices
func (h *Handler) WorkOrderInvoices(w http.ResponseWriter, r *http.Request) {
	book := h.book(r)
	wo, err := book.GetWorkOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	invs, err := book.InvoicesFor(r.Context(), wo.WorkOrderKey)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"invoices": toInvoiceDTOs(invs)})
}

// AddItem appends an item to a work order.
// POST /api/work-orders/{id}/items
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := h.itemInput("item", req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	wo, warnings, err := h.book(r).AddItem(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toWorkOrderDTO(wo, warnings))
}

// RemoveItem deletes an item by serial number.
// DELETE /api/work-orders/{id}/items/{serial}
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	serial, err := strconv.Atoi(chi.URLParam(r, "serial"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid item serial number", err)
		return
	}

	wo, warnings, err := h.book(r).RemoveItem(r.Context(), chi.URLParam(r, "id"), serial)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toWorkOrderDTO(wo, warnings))
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// ListInvoices returns invoices matching the query filters.
// GET /api/invoices?status=&payment_status=&category=&fiscal_year=&vendor=&contract_number=&q=&sort=&desc=
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	category, err := queryCategory(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	invs, err := h.book(r).Invoices(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}

	q := r.URL.Query()
	invs = report.FilterInvoices(invs, report.InvoiceFilter{
		Status:         contract.ProcessingStatus(q.Get("status")),
		PaymentStatus:  contract.PaymentStatus(q.Get("payment_status")),
		Category:       category,
		FiscalYear:     q.Get("fiscal_year"),
		Vendor:         q.Get("vendor"),
		ContractNumber: q.Get("contract_number"),
		Query:          q.Get("q"),
	})
	report.SortInvoices(invs, report.SortField(q.Get("sort")), queryBool(r, "desc"))

	writeJSON(w, r, http.StatusOK, map[string]any{"invoices": toInvoiceDTOs(invs)})
}

// CreateInvoice resolves the item, builds the milestone plan and stores
// the invoice.
// POST /api/invoices
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if !h.decode(w, r, &req) {
		return
	}
	inv, warnings, err := h.createInvoice(r.Context(), h.book(r), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toInvoiceDTO(inv, warnings))
}

func (h *Handler) createInvoice(ctx context.Context, book *contract.Book, req CreateInvoiceRequest) (contract.Invoice, []contract.Warning, error) {
	lookup := contract.ItemLookup{
		WorkOrderKey: contract.WorkOrderKey{
			ContractNumber:    req.ContractNumber,
			SubContractNumber: req.SubContractNumber,
			WorkOrderNumber:   req.WorkOrderNumber,
		},
		ItemName:     req.ItemName,
		ItemLocation: req.ItemLocation,
	}
	if req.Category != "" {
		category, err := contract.ParseCategory(req.Category)
		if err != nil {
			return contract.Invoice{}, nil, &factory.FieldError{Field: "category", Err: err}
		}
		lookup.Category = category
	}
	ref, err := book.ResolveItem(ctx, lookup)
	if err != nil {
		return contract.Invoice{}, nil, err
	}

	draft, err := h.invoiceDraft(req, ref)
	if err != nil {
		return contract.Invoice{}, nil, err
	}
	return book.CreateInvoice(ctx, draft)
}

func (h *Handler) invoiceDraft(req CreateInvoiceRequest, ref contract.ItemRef) (*contract.InvoiceDraft, error) {
	pj := req.Plan
	if pj.Category == "" {
		pj.Category = string(ref.Item.Category)
	}
	plan, err := h.Factory.PlanFromJSON(pj)
	if err != nil {
		return nil, fieldError("plan", err)
	}

	ro, err := req.ReleaseOrder.releaseOrder("release_order")
	if err != nil {
		return nil, err
	}
	var tracking contract.InvoiceTracking
	if tracking.SubmissionDate, err = parseDate("submission_date", req.SubmissionDate); err != nil {
		return nil, err
	}
	if tracking.ReceivedAtTMD, err = parseDate("received_at_tmd_date", req.ReceivedAtTMD); err != nil {
		return nil, err
	}
	if tracking.ArtifactsReceived, err = parseDate("artifacts_received_date", req.ArtifactsReceived); err != nil {
		return nil, err
	}

	return contract.NewInvoiceDraft(req.InvoiceNumber).
		WithReference(ref).
		WithFinancials(req.InvoiceFinancials).
		WithPlan(plan).
		ClaimMilestones(req.ClaimedMilestones...).
		WithLiquidityDamage(req.LiquidityDamage.input(contract.LDNone)).
		WithReleaseOrder(ro).
		WithTracking(tracking).
		WithReasons(req.DelayReason, req.Remarks).
		WithProof(toArtifact(req.Proof)), nil
}

// GetInvoice returns one invoice.
// GET /api/invoices/{number}
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.book(r).GetInvoice(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toInvoiceDTO(inv, nil))
}

// EditInvoice changes amounts and free-text fields.
// PATCH /api/invoices/{number}
func (h *Handler) EditInvoice(w http.ResponseWriter, r *http.Request) {
	var edit contract.InvoiceEdit
	if !h.decode(w, r, &edit) {
		return
	}

	inv, warnings, err := h.book(r).EditInvoice(r.Context(), chi.URLParam(r, "number"), edit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toInvoiceDTO(inv, warnings))
}

// DeleteInvoice removes an invoice.
// DELETE /api/invoices/{number}
func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := h.book(r).DeleteInvoice(r.Context(), chi.URLParam(r, "number")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordPayment records progress on one claimed milestone. LD checkboxes
// toggle against the milestone's current basis.
// POST /api/invoices/{number}/payments
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	inv, warnings, err := h.recordPayment(r.Context(), h.book(r), chi.URLParam(r, "number"), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toInvoiceDTO(inv, warnings))
}

func (h *Handler) recordPayment(ctx context.Context, book *contract.Book, number string, req PaymentRequest) (contract.Invoice, []contract.Warning, error) {
	inv, err := book.GetInvoice(ctx, number)
	if err != nil {
		return contract.Invoice{}, nil, err
	}
	id := contract.MilestoneID(req.Milestone)
	prev := inv.Progress[id].LD.AppliedOn

	payment := contract.MilestonePayment{
		Milestone:    id,
		PlannedClaim: req.PlannedClaim,
		Claimed:      req.Claimed,
		LD:           req.LiquidityDamage.input(prev),
		DelayReason:  req.DelayReason,
	}
	if payment.SubmissionDate, err = parseDate("submission_date", req.SubmissionDate); err != nil {
		return contract.Invoice{}, nil, err
	}
	if payment.ReceivedDate, err = parseDate("received_date", req.ReceivedDate); err != nil {
		return contract.Invoice{}, nil, err
	}
	if payment.ArtifactsDate, err = parseDate("artifacts_date", req.ArtifactsDate); err != nil {
		return contract.Invoice{}, nil, err
	}
	if payment.ReleaseOrder, err = req.ReleaseOrder.releaseOrder("release_order"); err != nil {
		return contract.Invoice{}, nil, err
	}
	return book.RecordMilestonePayment(ctx, number, payment)
}

// =============================================================================
// MILESTONE PREVIEW
// =============================================================================

// PreviewMilestones builds the schedule a plan would offer for an
// admissible amount without storing anything.
// POST /api/milestones/preview
func (h *Handler) PreviewMilestones(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !h.decode(w, r, &req) {
		return
	}

	plan, err := h.Factory.PlanFromJSON(req.Plan)
	if err != nil {
		writeDomainError(w, r, fieldError("plan", err))
		return
	}
	if err := contract.ValidatePlan(plan); err != nil {
		writeDomainError(w, r, err)
		return
	}

	schedule, warnings := plan.Build(req.Admissible)
	writeJSON(w, r, http.StatusOK, PreviewDTO{
		Category: plan.Category(),
		Schedule: toInstallmentDTOs(schedule),
		Labels:   schedule.Labels(),
		Total:    report.NewMoney(schedule.Total()),
		Warnings: warnings,
	})
}

// =============================================================================
// REPORTS
// =============================================================================

// Summary returns totals and breakdowns over the filtered records.
// GET /api/reports/summary?fiscal_year=&category=&vendor=&contract_number=
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	category, err := queryCategory(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	wos, invs, ok := h.records(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	fy, vendor, contractNo := q.Get("fiscal_year"), q.Get("vendor"), q.Get("contract_number")
	years := report.FiscalYears(wos, invs)
	wos = report.FilterWorkOrders(wos, report.WorkOrderFilter{
		Vendor: vendor, ContractNumber: contractNo, FiscalYear: fy, Category: category,
	})
	invs = report.FilterInvoices(invs, report.InvoiceFilter{
		Vendor: vendor, ContractNumber: contractNo, FiscalYear: fy, Category: category,
	})

	s := report.Summarize(wos, invs)
	writeJSON(w, r, http.StatusOK, SummaryDTO{Summary: s, Display: s.Totals.Format(), FiscalYears: years})
}

// FiscalYears lists the fiscal years present, newest first.
// GET /api/reports/fiscal-years
func (h *Handler) FiscalYears(w http.ResponseWriter, r *http.Request) {
	wos, invs, ok := h.records(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"fiscal_years": report.FiscalYears(wos, invs)})
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportCSV streams one sheet as CSV.
// GET /api/export/{sheet}.csv
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "sheet")
	wos, invs, ok := h.records(w, r)
	if !ok {
		return
	}
	table, err := export.BuildSheet(name, wos, invs)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "Unknown export sheet", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, name))
	w.WriteHeader(http.StatusOK)
	if err := export.WriteCSV(w, table, export.WithBOM(queryBool(r, "bom"))); err != nil {
		logger.FromContext(r.Context()).Error("csv export failed", zap.String("sheet", name), zap.Error(err))
	}
}

// ExportXLSX returns every sheet as one Excel workbook.
// GET /api/export/workbook.xlsx
func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	wos, invs, ok := h.records(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, export.AllSheets(wos, invs)); err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to build workbook", err)
		return
	}

	s := sessionFrom(r.Context())
	name := fmt.Sprintf("contracts-%s-%s.xlsx", shortID(s.ID), time.Now().In(locale.IST).Format("20060102-150405"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logger.FromContext(r.Context()).Warn("xlsx export interrupted", zap.Error(err))
	}
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportSQLite writes every sheet to a new workbook under ExportDir.
// POST /api/export/sqlite
func (h *Handler) ExportSQLite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wos, invs, ok := h.records(w, r)
	if !ok {
		return
	}

	if err := os.MkdirAll(h.ExportDir, 0o755); err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to create export directory", err)
		return
	}
	s := sessionFrom(ctx)
	path := filepath.Join(h.ExportDir, fmt.Sprintf("contracts-%s-%s.db",
		shortID(s.ID), time.Now().In(locale.IST).Format("20060102-150405")))

	wb, err := sqlite.Open(path)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to open workbook", err)
		return
	}
	defer wb.Close()

	if err := wb.WriteSheets(ctx, export.AllSheets(wos, invs)); err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to write workbook", err)
		return
	}
	infos, err := wb.Sheets(ctx)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to read workbook", err)
		return
	}

	dto := ExportDTO{Path: path, Sheets: make([]SheetDTO, len(infos))}
	for i, info := range infos {
		dto.Sheets[i] = SheetDTO{Name: info.Name, RowCount: info.RowCount}
	}
	logger.FromContext(ctx).Info("workbook exported", zap.String("path", path), zap.Int("sheets", len(infos)))
	writeJSON(w, r, http.StatusCreated, dto)
}

func (h *Handler) records(w http.ResponseWriter, r *http.Request) ([]contract.WorkOrder, []contract.Invoice, bool) {
	book := h.book(r)
	wos, err := book.WorkOrders(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to list work orders", err)
		return nil, nil, false
	}
	invs, err := book.Invoices(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to list invoices", err)
		return nil, nil, false
	}
	return wos, invs, true
}

// =============================================================================
// HELPERS
// =============================================================================

// writeJSON logs encode failures. The status line is already sent by then,
// so the client sees a truncated body.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(r.Context()).Error("failed to encode response",
			zap.Int("status", status),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, r, status, resp)
}

// writeDomainError maps contract, factory and locale errors to a status.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *contract.ValidationError
	var fe *factory.FieldError
	switch {
	case errors.As(err, &ve):
		code := "validation_failed"
		if ve.HasCode(contract.CodeCeiling) {
			code = "ceiling_exceeded"
		}
		writeJSON(w, r, http.StatusBadRequest, ErrorResponse{
			Error:      "Validation failed",
			Code:       code,
			Violations: ve.Violations,
		})
	case errors.As(err, &fe):
		writeJSON(w, r, http.StatusBadRequest, ErrorResponse{
			Error: "Invalid field",
			Code:  "invalid_field",
			Violations: []contract.Violation{{
				Field: fe.Field, Code: contract.CodeInvalid, Message: fe.Err.Error(),
			}},
		})
	case contract.IsNotFound(err):
		writeJSON(w, r, http.StatusNotFound, ErrorResponse{Error: "Not found", Code: "not_found", Details: err.Error()})
	case contract.IsConflict(err):
		writeJSON(w, r, http.StatusConflict, ErrorResponse{Error: "Conflict", Code: conflictCode(err), Details: err.Error()})
	case contract.IsClientError(err),
		errors.Is(err, milestone.ErrUnknownPeriod),
		errors.Is(err, locale.ErrUnparseableDate):
		writeError(w, r, http.StatusBadRequest, "Invalid request", err)
	default:
		logger.FromContext(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Internal error", err)
	}
}

func conflictCode(err error) string {
	switch {
	case errors.Is(err, contract.ErrWorkOrderReferenced):
		return "work_order_referenced"
	case errors.Is(err, contract.ErrDuplicateInvoice):
		return "duplicate_invoice"
	default:
		return "duplicate_work_order"
	}
}

// fieldError prefixes a factory field path, or wraps a bare error.
func fieldError(prefix string, err error) error {
	var fe *factory.FieldError
	if errors.As(err, &fe) {
		return &factory.FieldError{Field: prefix + "." + fe.Field, Err: fe.Err}
	}
	return &factory.FieldError{Field: prefix + ".category", Err: err}
}

func queryCategory(r *http.Request) (contract.Category, error) {
	s := r.URL.Query().Get("category")
	if s == "" {
		return "", nil
	}
	c, err := contract.ParseCategory(s)
	if err != nil {
		return "", &factory.FieldError{Field: "category", Err: err}
	}
	return c, nil
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(key)))
	return v
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
