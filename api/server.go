/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in logs
  2. Logger:     zap request logging (logger.Middleware)
  3. Recoverer:  Panic recovery logged through zap (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/sessions          Session create/delete (no session header)
  /api/scenarios         Scenario list (no session header)
  everything else        Requires X-Session-ID

SEE ALSO:
  - handlers.go: Handler implementations
  - session.go: RequireSession middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/contract-admin/logger"
)

// NewRouter creates a new router with all routes configured. An empty
// corsOrigins allows the local frontend dev servers.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(logger.Middleware(h.log))
	r.Use(logger.Recoverer(h.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", SessionHeader},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]any{"status": "ok", "sessions": h.Sessions.Len()})
	})

	r.Route("/api", func(r chi.Router) {
		// Session lifecycle
		r.Post("/sessions", h.CreateSession)
		r.Delete("/sessions/{id}", h.DeleteSession)
		r.Get("/scenarios", h.ListScenarios)

		r.Group(func(r chi.Router) {
			r.Use(h.Sessions.RequireSession)

			r.Get("/session", h.GetSession)
			r.Post("/scenarios/load", h.LoadScenario)

			// Work order routes
			r.Route("/work-orders", func(r chi.Router) {
				r.Get("/", h.ListWorkOrders)
				r.Post("/", h.CreateWorkOrder)
				r.Get("/{id}", h.GetWorkOrder)
				r.Patch("/{id}", h.EditWorkOrder)
				r.Delete("/{id}", h.DeleteWorkOrder)
				r.Get("/{id}/invoices", h.WorkOrderInvoices)
				r.Post("/{id}/items", h.AddItem)
				r.Delete("/{id}/items/{serial}", h.RemoveItem)
			})

			// Invoice routes
			r.Route("/invoices", func(r chi.Router) {
				r.Get("/", h.ListInvoices)
				r.Post("/", h.CreateInvoice)
				r.Get("/{number}", h.GetInvoice)
				r.Patch("/{number}", h.EditInvoice)
				r.Delete("/{number}", h.DeleteInvoice)
				r.Post("/{number}/payments", h.RecordPayment)
			})

			r.Post("/milestones/preview", h.PreviewMilestones)

			// Report routes
			r.Route("/reports", func(r chi.Router) {
				r.Get("/summary", h.Summary)
				r.Get("/fiscal-years", h.FiscalYears)
			})

			// Export routes
			r.Route("/export", func(r chi.Router) {
				r.Get("/{sheet}.csv", h.ExportCSV)
				r.Get("/workbook.xlsx", h.ExportXLSX)
				r.Post("/sqlite", h.ExportSQLite)
			})
		})
	})

	return r
}
