/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/units/*          Units, owners, rates, fees, status, debt
  /api/creditors/*      Creditors, due rates, debt
  /api/extra-charges    Extra charges
  /api/transactions/*   Transactions, allocation suggestions
  /api/audit/*          Audit (on demand and recorded runs)
  /api/reports/*        Annual report
  /api/import, /export  Whole-dataset JSON
  /api/scenarios/*      Demo scenarios
  /*                    Landing page

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
// An empty corsOrigins falls back to the local frontend dev servers.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Unit routes
		r.Route("/units", func(r chi.Router) {
			r.Get("/", h.ListUnits)
			r.Post("/", h.CreateUnit)
			r.Get("/{id}", h.GetUnit)
			r.Post("/{id}/owners", h.CreateOwner)
			r.Post("/{id}/rates", h.CreateUnitRate)
			r.Get("/{id}/fees", h.GetUnitFees)
			r.Get("/{id}/status", h.GetUnitStatus)
			r.Get("/{id}/debt", h.GetUnitDebt)
		})

		// Creditor routes
		r.Route("/creditors", func(r chi.Router) {
			r.Get("/", h.ListCreditors)
			r.Post("/", h.CreateCreditor)
			r.Post("/{id}/rates", h.CreateCreditorRate)
			r.Get("/{id}/debt", h.GetCreditorDebt)
		})

		r.Get("/extra-charges", h.ListExtraCharges)
		r.Post("/extra-charges", h.CreateExtraCharge)

		// Transaction routes
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/", h.CreateTransaction)
			r.Post("/suggest", h.SuggestAllocations)
			r.Delete("/{id}", h.DeleteTransaction)
		})

		// Audit routes
		r.Route("/audit", func(r chi.Router) {
			r.Get("/", h.GetAudit)
			r.Get("/runs", h.ListAuditRuns)
			r.Post("/run", h.RunAudit)
		})

		r.Get("/reports/annual", h.GetAnnualReport)

		r.Post("/import", h.Import)
		r.Get("/export", h.Export)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Condo Ledger</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Condo Ledger API</h1>
<p>Fee and allocation reconciliation for a residential building.</p>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/units">/api/units</a> - List units</li>
<li><a href="/api/creditors">/api/creditors</a> - List creditors</li>
<li><a href="/api/transactions">/api/transactions</a> - List transactions</li>
<li><a href="/api/audit">/api/audit</a> - Run the data audit</li>
<li><a href="/api/reports/annual">/api/reports/annual</a> - Annual report</li>
<li><a href="/api/scenarios">/api/scenarios</a> - List demo scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
