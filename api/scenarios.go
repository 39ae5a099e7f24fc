/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	standing orders. Dates are relative to the handler clock so that a
	scenario loaded on any day has templates inside the execution window.

AVAILABLE SCENARIOS:

	weekly-box:      One chilled weekly box, due in the current cycle
	mixed-carriers:  Yamato, Sagawa and store pickup side by side
	lifecycle:       Active, paused and cancelled templates
	month-end:       Last-day-of-month and first-of-month anchors

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Build template JSON via factory.TemplateJSON
 3. Create through the template store (same validation as the API)
 4. Apply the scenario status (pause/cancel)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "mixed-carriers"}

	then POST /api/cycles/run to materialize the due templates.

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase
  - factory/template.go: Template JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/standing-orders/factory"
	"github.com/warp/standing-orders/recurring"
)

// =============================================================================
// SCENARIO CATALOG
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "weekly-box",
		Name:        "Weekly Vegetable Box",
		Description: "One chilled weekly box shipped by Yamato, seven days out. Running the cycle today creates one order, one export row and a delivery note.",
		Category:    "basic",
	},
	{
		ID:          "mixed-carriers",
		Name:        "Mixed Carriers",
		Description: "Three due templates: Yamato chilled, Sagawa frozen (legacy bi-monthly interval) and store pickup with no carrier export.",
		Category:    "carriers",
	},
	{
		ID:          "lifecycle",
		Name:        "Template Lifecycle",
		Description: "Active, paused and cancelled templates with the same dates. Only the active one fires.",
		Category:    "lifecycle",
	},
	{
		ID:          "month-end",
		Name:        "Month Anchors",
		Description: "Templates anchored to the last and first day of the month, showing day clamping across short months.",
		Category:    "intervals",
	},
}

// scenarioTemplate is the compact form the loaders build templates from.
type scenarioTemplate struct {
	interval      string
	shipIn        int
	leadDays      int
	status        recurring.Status
	customer      string
	method        string
	coolClass     string
	handling      []string
	checklist     recurring.Checklist
	lines         []recurring.Line
	note          string
	firstShipping *recurring.Date
}

// ListScenarios returns available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, or null.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current, Description: "Currently loaded scenario"})
}

// LoadScenario resets the store and loads a demo scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var build func(today recurring.Date) []scenarioTemplate
	switch req.ScenarioID {
	case "weekly-box":
		build = weeklyBoxScenario
	case "mixed-carriers":
		build = mixedCarriersScenario
	case "lifecycle":
		build = lifecycleScenario
	case "month-end":
		build = monthEndScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	ids := make([]string, 0)
	for _, st := range build(h.Clock.Today()) {
		id, err := h.createScenarioTemplate(ctx, st)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
			return
		}
		ids = append(ids, string(id))
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"status": "loaded", "scenario": req.ScenarioID, "templates": ids})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func weeklyBoxScenario(today recurring.Date) []scenarioTemplate {
	return []scenarioTemplate{{
		interval:  fmt.Sprintf(`{"type": "weekly", "weekday": %d}`, today.AddDays(7).ISOWeekday()),
		shipIn:    7,
		leadDays:  1,
		customer:  "Sato Farm Direct",
		method:    "Yamato Transport",
		coolClass: "冷蔵",
		handling:  []string{"ナマモノ"},
		checklist: recurring.Checklist{DeliveryNote: true},
		lines: []recurring.Line{
			line("vegetables", "Seasonal vegetable box", 3200, 1),
			line("eggs", "Free-range eggs (10)", 480, 2),
		},
		note: "Leave at the door if absent",
	}}
}

func mixedCarriersScenario(today recurring.Date) []scenarioTemplate {
	return []scenarioTemplate{
		{
			interval:  `{"type": "n_monthly", "n": 1}`,
			shipIn:    6,
			leadDays:  2,
			customer:  "Hokkaido Dairy Club",
			method:    "Yamato Transport",
			coolClass: "冷蔵",
			handling:  []string{"ナマモノ", "天地無用"},
			checklist: recurring.Checklist{DeliveryNote: true, Receipt: true},
			lines:     []recurring.Line{line("dairy", "Butter 200g", 850, 4)},
		},
		{
			interval:  `2`,
			shipIn:    7,
			leadDays:  1,
			customer:  "Kyushu Seafood Co.",
			method:    "Sagawa Express",
			coolClass: "冷凍",
			checklist: recurring.Checklist{Invoice: true},
			lines: []recurring.Line{
				line("seafood", "Frozen scallops 1kg", 4200, 1),
				line("seafood", "Salmon roe 250g", 3800, 1),
			},
		},
		{
			interval:  `{"type": "n_weekly", "n": 2, "weekday": 6}`,
			shipIn:    6,
			customer:  "Corner Cafe",
			method:    "Store pickup",
			checklist: recurring.Checklist{Receipt: true},
			lines:     []recurring.Line{line("bakery", "Sourdough loaf", 650, 6)},
		},
	}
}

func lifecycleScenario(today recurring.Date) []scenarioTemplate {
	base := scenarioTemplate{
		interval:  `{"type": "monthly_day", "day": 15}`,
		shipIn:    7,
		leadDays:  1,
		method:    "Yamato Transport",
		checklist: recurring.Checklist{DeliveryNote: true},
		lines:     []recurring.Line{line("rice", "Koshihikari 5kg", 2900, 1)},
	}
	active, paused, cancelled := base, base, base
	active.customer = "Active Household"
	paused.customer, paused.status = "Paused Household", recurring.StatusPaused
	cancelled.customer, cancelled.status = "Cancelled Household", recurring.StatusCancelled
	return []scenarioTemplate{active, paused, cancelled}
}

func monthEndScenario(today recurring.Date) []scenarioTemplate {
	last := recurring.EndOfMonth(today.Year(), today.Month())
	first := last.AddDays(1)
	return []scenarioTemplate{
		{
			interval:      `{"type": "monthly_day", "day": "last"}`,
			firstShipping: &last,
			leadDays:      2,
			customer:      "Month-End Accounts",
			method:        "Sagawa Express",
			lines:         []recurring.Line{line("office", "Coffee beans 1kg", 3600, 2)},
		},
		{
			interval:      `{"type": "monthly_day", "day": "first"}`,
			firstShipping: &first,
			leadDays:      1,
			customer:      "Start-of-Month Club",
			method:        "Yamato Transport",
			lines:         []recurring.Line{line("tea", "Sencha 100g", 1200, 3)},
		},
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) createScenarioTemplate(ctx context.Context, st scenarioTemplate) (recurring.TemplateID, error) {
	shipping := h.Clock.Today().AddDays(st.shipIn)
	if st.firstShipping != nil {
		shipping = *st.firstShipping
	}

	tj := factory.TemplateJSON{
		Interval:          json.RawMessage(st.interval),
		FirstShippingDate: shipping.String(),
		FirstDeliveryDate: shipping.AddDays(st.leadDays).String(),
		Status:            string(st.status),
		Customer: recurring.Party{
			Name:       st.customer,
			PostalCode: "0600001",
			Address:    "北海道札幌市中央区北一条西二丁目一番地 札幌時計台ビル三階",
			Phone:      "0111234567",
		},
		Recipient: recurring.Party{
			Name:       st.customer,
			PostalCode: "1000001",
			Address:    "東京都千代田区千代田一丁目一番",
			Phone:      "0312345678",
		},
		Shipping: recurring.Shipping{
			DeliveryMethod: st.method,
			InvoiceType:    "発払い",
			CoolClass:      st.coolClass,
			CargoHandling:  st.handling,
		},
		Checklist: st.checklist,
		Lines:     st.lines,
		Note:      st.note,
	}
	parsed, err := tj.ToParams()
	if err != nil {
		return "", fmt.Errorf("scenario template %q: %w", st.customer, err)
	}
	return factory.Create(ctx, h.Templates, parsed)
}

func line(category, product string, unitPrice int64, qty int) recurring.Line {
	return recurring.Line{
		Category:    category,
		ProductName: product,
		UnitPrice:   decimal.NewFromInt(unitPrice),
		Quantity:    qty,
	}
}
