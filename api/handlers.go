/*
handlers.go - HTTP API handlers for the standing order engine

PURPOSE:
  Exposes template management, the daily cycle and its outputs via REST.
  Handles HTTP request/response and JSON, and delegates to the domain
  packages (recurring, scheduler, ledger).

ENDPOINTS:
  Templates:
    GET    /api/templates                 List (?status=active&customer=sato)
    POST   /api/templates                 Create from template JSON
    GET    /api/templates/{id}            Get one template
    PUT    /api/templates/{id}            Partial update
    DELETE /api/templates/{id}            Delete
    POST   /api/templates/{id}/pause      Pause
    POST   /api/templates/{id}/resume     Resume
    POST   /api/templates/{id}/cancel     Cancel (terminal)
    PUT    /api/templates/{id}/interval   Change interval and next dates
    GET    /api/templates/{id}/ledger     Ledger rows produced by the template

  Cycles:
    POST   /api/cycles/run                Run the daily cycle now
    GET    /api/cycles/runs               Recorded cycle runs, newest first
    GET    /api/cycles/next               Next automatic run (if a trigger runs)

  Outputs:
    GET    /api/ledger                    Ledger rows (?order_id= or ?template_id=)
    GET    /api/exports/{carrier}         Carrier export rows (yamato, sagawa)

  Scenarios:
    GET    /api/scenarios                 List demo scenarios
    GET    /api/scenarios/current         Currently loaded scenario
    POST   /api/scenarios/load            Load a demo scenario
    POST   /api/scenarios/reset           Clear all data

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Template or row not found
  - 409: Status refused the operation, or a cycle is already running
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

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
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/standing-orders/carrier"
	"github.com/warp/standing-orders/factory"
	"github.com/warp/standing-orders/ledger"
	"github.com/warp/standing-orders/recurring"
	"github.com/warp/standing-orders/scheduler"
)

const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Templates *recurring.Store
	Tables    recurring.TabularStore
	Ledger    *ledger.Reader
	Cycle     scheduler.CycleRunner
	Carriers  *carrier.Registry
	Clock     recurring.Clock

	// Trigger is optional; /api/cycles/next reports 404 without it.
	Trigger *scheduler.DailyTrigger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires a handler over one tabular store.
func NewHandler(tables recurring.TabularStore, templates *recurring.Store, cycle scheduler.CycleRunner, carriers *carrier.Registry, clock recurring.Clock) *Handler {
	if clock == nil {
		clock = recurring.SystemClock{}
	}
	return &Handler{
		Templates: templates,
		Tables:    tables,
		Ledger:    ledger.NewReader(tables),
		Cycle:     cycle,
		Carriers:  carriers,
		Clock:     clock,
	}
}

// =============================================================================
// TEMPLATE HANDLERS
// =============================================================================

// ListTemplates returns templates, optionally filtered by status and customer.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	var filter recurring.ListFilter
	if s := r.URL.Query().Get("status"); s != "" {
		status := recurring.Status(strings.ToLower(s))
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "Invalid status filter", fmt.Errorf("unknown status %q", s))
			return
		}
		filter.Status = &status
	}
	filter.CustomerNameContains = r.URL.Query().Get("customer")

	templates, err := h.Templates.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list templates", err)
		return
	}

	dtos := make([]TemplateDTO, len(templates))
	for i, t := range templates {
		dtos[i] = toTemplateDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTemplate returns one template.
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.Templates.Get(r.Context(), templateID(r))
	if err != nil {
		writeDomainError(w, "Failed to get template", err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateDTO(t))
}

// CreateTemplate creates a template from the factory JSON format.
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}
	parsed, err := factory.ParseTemplate(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid template", err)
		return
	}

	id, err := factory.Create(r.Context(), h.Templates, parsed)
	if err != nil {
		writeDomainError(w, "Failed to create template", err)
		return
	}
	t, err := h.Templates.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load created template", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTemplateDTO(t))
}

// UpdateTemplate applies a partial edit.
func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req UpdateTemplateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	fields := recurring.UpdateFields{
		Customer:  req.Customer,
		Recipient: req.Recipient,
		Shipping:  req.Shipping,
		Checklist: req.Checklist,
		Lines:     req.Lines,
		Note:      req.Note,
	}
	var problems []string
	if req.NextShippingDate != nil {
		d, err := recurring.ParseDate(*req.NextShippingDate)
		if err != nil {
			problems = append(problems, fmt.Sprintf("next_shipping_date: %v", err))
		}
		fields.NextShippingDate = &d
	}
	if req.NextDeliveryDate != nil {
		d, err := recurring.ParseDate(*req.NextDeliveryDate)
		if err != nil {
			problems = append(problems, fmt.Sprintf("next_delivery_date: %v", err))
		}
		fields.NextDeliveryDate = &d
	}
	if len(problems) > 0 {
		writeError(w, http.StatusBadRequest, "Invalid update", &recurring.ValidationError{Problems: problems})
		return
	}

	id := templateID(r)
	if err := h.Templates.Update(r.Context(), id, fields); err != nil {
		writeDomainError(w, "Failed to update template", err)
		return
	}
	h.respondTemplate(w, r, id)
}

// DeleteTemplate removes a template. Ledger rows it produced are kept.
func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.Templates.Delete(r.Context(), templateID(r)); err != nil {
		writeDomainError(w, "Failed to delete template", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PauseTemplate stops a template from firing.
func (h *Handler) PauseTemplate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "pause", h.Templates.Pause)
}

// ResumeTemplate reactivates a paused template.
func (h *Handler) ResumeTemplate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "resume", h.Templates.Resume)
}

// CancelTemplate ends a template permanently.
func (h *Handler) CancelTemplate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel", h.Templates.Cancel)
}

// ChangeInterval replaces the interval and the next shipping/delivery pair.
func (h *Handler) ChangeInterval(w http.ResponseWriter, r *http.Request) {
	var req ChangeIntervalRequest
	if !decodeBody(w, r, &req) {
		return
	}

	verr := &recurring.ValidationError{}
	spec, err := recurring.ParseInterval(req.Interval)
	if err != nil {
		verr.Problems = append(verr.Problems, fmt.Sprintf("interval: %v", err))
	}
	shipping, err := recurring.ParseDate(req.NextShippingDate)
	if err != nil {
		verr.Problems = append(verr.Problems, fmt.Sprintf("next_shipping_date: %v", err))
	}
	delivery, err := recurring.ParseDate(req.NextDeliveryDate)
	if err != nil {
		verr.Problems = append(verr.Problems, fmt.Sprintf("next_delivery_date: %v", err))
	}
	if len(verr.Problems) > 0 {
		writeError(w, http.StatusBadRequest, "Invalid interval change", verr)
		return
	}

	id := templateID(r)
	if err := h.Templates.ChangeInterval(r.Context(), id, spec, shipping, delivery); err != nil {
		writeDomainError(w, "Failed to change interval", err)
		return
	}
	h.respondTemplate(w, r, id)
}

// GetTemplateLedger returns the ledger rows a template produced.
func (h *Handler) GetTemplateLedger(w http.ResponseWriter, r *http.Request) {
	id := templateID(r)
	if _, err := h.Templates.Get(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to get template", err)
		return
	}
	rows, err := h.Ledger.ByTemplate(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerDTOs(rows))
}

// =============================================================================
// CYCLE HANDLERS
// =============================================================================

// RunCycle runs the daily cycle synchronously and returns its report.
// The cycle outlives a dropped client connection.
func (h *Handler) RunCycle(w http.ResponseWriter, r *http.Request) {
	var req RunCycleRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	today := h.Clock.Today()
	if req.Today != "" {
		d, err := recurring.ParseDate(req.Today)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid today", err)
			return
		}
		today = d
	}

	report, err := h.Cycle.RunDailyCycle(context.WithoutCancel(r.Context()), today)
	if err != nil {
		writeDomainError(w, "Daily cycle failed", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListCycleRuns returns recorded cycle runs, newest first.
func (h *Handler) ListCycleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := scheduler.ListRuns(r.Context(), h.Tables)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list cycle runs", err)
		return
	}
	if runs == nil {
		runs = []scheduler.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// NextCycle reports when the in-process trigger fires next.
func (h *Handler) NextCycle(w http.ResponseWriter, r *http.Request) {
	if h.Trigger == nil || !h.Trigger.Enabled {
		writeError(w, http.StatusNotFound, "No in-process trigger is running", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"run_at":   h.Trigger.RunAt,
		"next_run": h.Trigger.NextRunTime().Format(time.RFC3339),
	})
}

// =============================================================================
// OUTPUT HANDLERS
// =============================================================================

// ListLedger returns ledger rows, optionally narrowed to one order or template.
func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("order_id")
	tplID := recurring.TemplateID(r.URL.Query().Get("template_id"))

	rows, err := h.Ledger.Rows(r.Context(), func(row ledger.Row) bool {
		if orderID != "" && row.OrderID != orderID {
			return false
		}
		return tplID == "" || row.TemplateID == tplID
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerDTOs(rows))
}

// ListExports returns the queued export rows for one carrier.
func (h *Handler) ListExports(w http.ResponseWriter, r *http.Request) {
	kind := carrier.Kind(strings.ToLower(chi.URLParam(r, "carrier")))

	var table recurring.Table
	for _, f := range h.Carriers.Formatters() {
		if f.Kind() == kind {
			table = f.Table()
		}
	}
	if table == "" {
		writeError(w, http.StatusNotFound, "Unknown carrier", fmt.Errorf("carrier %q", kind))
		return
	}

	rows, err := h.Tables.ReadAll(r.Context(), table)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read export rows", err)
		return
	}
	dto := ExportDTO{Carrier: string(kind), Rows: make([]map[string]string, len(rows))}
	for i, row := range rows {
		dto.Rows[i] = row
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// ADMIN
// =============================================================================

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) reset(ctx context.Context) error {
	resetter, ok := h.Tables.(interface{ Reset(context.Context) error })
	if !ok {
		return errors.New("store does not support reset")
	}
	if err := resetter.Reset(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op string, apply func(context.Context, recurring.TemplateID) error) {
	id := templateID(r)
	if err := apply(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to "+op+" template", err)
		return
	}
	h.respondTemplate(w, r, id)
}

func (h *Handler) respondTemplate(w http.ResponseWriter, r *http.Request, id recurring.TemplateID) {
	t, err := h.Templates.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get template", err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateDTO(t))
}

func templateID(r *http.Request) recurring.TemplateID {
	return recurring.TemplateID(chi.URLParam(r, "id"))
}

func toLedgerDTOs(rows []ledger.Row) []LedgerRowDTO {
	dtos := make([]LedgerRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toLedgerRowDTO(row)
	}
	return dtos
}

// decodeBody decodes a JSON request body, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the error's kind.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case recurring.IsValidation(err):
		return http.StatusBadRequest
	case recurring.IsNotFound(err):
		return http.StatusNotFound
	case recurring.IsConflict(err), errors.Is(err, scheduler.ErrCycleInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
