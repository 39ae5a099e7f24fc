/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for back-office tools

ROUTE GROUPS:
  /api/templates/*      Template management and lifecycle
  /api/cycles/*         Daily cycle trigger and history
  /api/ledger           Sales ledger query
  /api/exports/*        Carrier export rows
  /api/scenarios/*      Demo scenarios and reset
  /                     Endpoint index

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cli/serve.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultAllowedOrigins is used when the config lists none.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.ListTemplates)
			r.Post("/", h.CreateTemplate)
			r.Get("/{id}", h.GetTemplate)
			r.Put("/{id}", h.UpdateTemplate)
			r.Delete("/{id}", h.DeleteTemplate)
			r.Post("/{id}/pause", h.PauseTemplate)
			r.Post("/{id}/resume", h.ResumeTemplate)
			r.Post("/{id}/cancel", h.CancelTemplate)
			r.Put("/{id}/interval", h.ChangeInterval)
			r.Get("/{id}/ledger", h.GetTemplateLedger)
		})

		r.Route("/cycles", func(r chi.Router) {
			r.Post("/run", h.RunCycle)
			r.Get("/runs", h.ListCycleRuns)
			r.Get("/next", h.NextCycle)
		})

		r.Get("/ledger", h.ListLedger)
		r.Get("/exports/{carrier}", h.ListExports)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Standing Orders</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Standing Orders API</h1>
<ul>
<li><a href="/api/templates">/api/templates</a> - Templates</li>
<li><a href="/api/cycles/runs">/api/cycles/runs</a> - Cycle runs</li>
<li><a href="/api/ledger">/api/ledger</a> - Sales ledger</li>
<li><a href="/api/exports/yamato">/api/exports/yamato</a> - Yamato export rows</li>
<li><a href="/api/exports/sagawa">/api/exports/sagawa</a> - Sagawa export rows</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Demo scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
