/*
dto.go - Data Transfer Objects for the HTTP API

PURPOSE:
  Defines the JSON shapes exchanged with API clients. Domain types
  (recurring.Template, ledger.Row) are converted here so the wire format
  can stay stable while the domain evolves.

NAMING CONVENTION:
  - *DTO:      Response payloads
  - *Request:  Request payloads
  - *Response: Wrapper responses

DATES:
  Calendar dates are "YYYY-MM-DD". Timestamps are RFC3339.
  Money is a decimal string ("1200", "350.5").

SEE ALSO:
  - handlers.go: Conversion and usage
  - factory/template.go: Template creation payload
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/standing-orders/ledger"
	"github.com/warp/standing-orders/recurring"
)

// =============================================================================
// TEMPLATE DTOs
// =============================================================================

// TemplateDTO is the API representation of a template.
type TemplateDTO struct {
	ID               string                 `json:"id"`
	Interval         recurring.IntervalSpec `json:"interval"`
	IntervalLabel    string                 `json:"interval_label"`
	NextShippingDate string                 `json:"next_shipping_date"`
	NextDeliveryDate string                 `json:"next_delivery_date"`
	LeadDays         int                    `json:"lead_days"`
	Status           string                 `json:"status"`
	LastExecutedDate *string                `json:"last_executed_date,omitempty"`
	Customer         recurring.Party        `json:"customer"`
	Recipient        recurring.Party        `json:"recipient"`
	Shipping         recurring.Shipping     `json:"shipping"`
	Checklist        recurring.Checklist    `json:"checklist"`
	Lines            []LineDTO              `json:"lines"`
	Total            string                 `json:"total"`
	Note             string                 `json:"note,omitempty"`
	CreatedAt        string                 `json:"created_at"`
	UpdatedAt        string                 `json:"updated_at"`
}

// LineDTO is one product line with its computed total.
type LineDTO struct {
	Category    string `json:"category"`
	ProductName string `json:"product_name"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	Total       string `json:"total"`
}

// UpdateTemplateRequest is a partial edit. Omitted fields are unchanged.
type UpdateTemplateRequest struct {
	Customer         *recurring.Party     `json:"customer,omitempty"`
	Recipient        *recurring.Party     `json:"recipient,omitempty"`
	Shipping         *recurring.Shipping  `json:"shipping,omitempty"`
	Checklist        *recurring.Checklist `json:"checklist,omitempty"`
	Lines            []recurring.Line     `json:"lines,omitempty"`
	Note             *string              `json:"note,omitempty"`
	NextShippingDate *string              `json:"next_shipping_date,omitempty"`
	NextDeliveryDate *string              `json:"next_delivery_date,omitempty"`
}

// ChangeIntervalRequest replaces the interval and the next date pair.
type ChangeIntervalRequest struct {
	Interval         json.RawMessage `json:"interval"`
	NextShippingDate string          `json:"next_shipping_date"`
	NextDeliveryDate string          `json:"next_delivery_date"`
}

// =============================================================================
// CYCLE DTOs
// =============================================================================

// RunCycleRequest triggers a cycle. Today defaults to the server clock.
type RunCycleRequest struct {
	Today string `json:"today,omitempty"`
}

// =============================================================================
// LEDGER / EXPORT DTOs
// =============================================================================

// LedgerRowDTO is one sales ledger line.
type LedgerRowDTO struct {
	RowID          string `json:"row_id"`
	OrderID        string `json:"order_id"`
	TemplateID     string `json:"template_id,omitempty"`
	OrderDate      string `json:"order_date"`
	ShippingDate   string `json:"shipping_date"`
	DeliveryDate   string `json:"delivery_date"`
	CustomerName   string `json:"customer_name"`
	RecipientName  string `json:"recipient_name"`
	DeliveryMethod string `json:"delivery_method"`
	Category       string `json:"category"`
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPrice      string `json:"unit_price"`
	LineTotal      string `json:"line_total"`
	Note           string `json:"note,omitempty"`
	Generated      bool   `json:"generated"`
}

// ExportDTO holds every export row queued for one carrier.
type ExportDTO struct {
	Carrier string              `json:"carrier"`
	Rows    []map[string]string `json:"rows"`
}

// =============================================================================
// SCENARIO DTOs
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERROR RESPONSE
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toTemplateDTO(t *recurring.Template) TemplateDTO {
	dto := TemplateDTO{
		ID:               string(t.ID),
		Interval:         t.Interval,
		IntervalLabel:    t.Interval.String(),
		NextShippingDate: t.NextShippingDate.String(),
		NextDeliveryDate: t.NextDeliveryDate.String(),
		LeadDays:         t.LeadDays,
		Status:           string(t.Status),
		Customer:         t.Customer,
		Recipient:        t.Recipient,
		Shipping:         t.Shipping,
		Checklist:        t.Checklist,
		Lines:            make([]LineDTO, len(t.Lines)),
		Note:             t.Note,
		CreatedAt:        t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        t.UpdatedAt.Format(time.RFC3339),
	}
	if t.LastExecutedDate != nil {
		s := t.LastExecutedDate.String()
		dto.LastExecutedDate = &s
	}

	sum := decimal.Zero
	for i, l := range t.Lines {
		dto.Lines[i] = LineDTO{
			Category:    l.Category,
			ProductName: l.ProductName,
			UnitPrice:   l.UnitPrice.String(),
			Quantity:    l.Quantity,
			Total:       l.Total().String(),
		}
		sum = sum.Add(l.Total())
	}
	dto.Total = sum.String()
	return dto
}

func toLedgerRowDTO(r ledger.Row) LedgerRowDTO {
	return LedgerRowDTO{
		RowID:          r.RowID,
		OrderID:        r.OrderID,
		TemplateID:     string(r.TemplateID),
		OrderDate:      r.OrderDate.String(),
		ShippingDate:   r.ShippingDate.String(),
		DeliveryDate:   r.DeliveryDate.String(),
		CustomerName:   r.Customer.Name,
		RecipientName:  r.Recipient.Name,
		DeliveryMethod: r.Shipping.DeliveryMethod,
		Category:       r.Category,
		ProductName:    r.ProductName,
		Quantity:       r.Quantity,
		UnitPrice:      r.UnitPrice.String(),
		LineTotal:      r.LineTotal.String(),
		Note:           r.Note,
		Generated:      r.Generated(),
	}
}
