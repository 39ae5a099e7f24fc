/*
Package recurring provides the standing-order template model, the interval
calculator and the template store.

PURPOSE:
  A template is a customer order that re-materializes on a schedule until
  it is paused or cancelled. This package owns everything about a template
  except turning it into orders (see ledger/) and deciding when it fires
  (see scheduler/).

KEY CONCEPTS IN THIS FILE (types.go):
  - Template: the standing order definition
  - Status: active / paused / cancelled (cancelled is terminal)
  - Lead offset: LeadDays between shipping and delivery, fixed at creation
  - Line: one product line; quantity > 0, at least one per template

DESIGN PRINCIPLES:
  1. Dates are calendar days (Date), never timestamps
  2. Prices use decimal.Decimal
  3. Intervals are a tagged union, decoded once at the store boundary

SEE ALSO:
  - interval.go: NextDate
  - store.go: Create / Pause / Resume / Cancel / ChangeInterval
  - guards.go: state transition rules
*/
package recurring

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS & STATUS
// =============================================================================

type TemplateID string

type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCancelled:
		return true
	}
	return false
}

// =============================================================================
// TEMPLATE
// =============================================================================

// Party is a person or business on an order (orderer or recipient).
type Party struct {
	Name       string `json:"name"`
	PostalCode string `json:"postal_code"`
	Address    string `json:"address"`
	Phone      string `json:"phone"`
}

// Shipping holds the display labels of the delivery options. Carriers
// translate them to their own codes through master data.
type Shipping struct {
	DeliveryMethod   string   `json:"delivery_method"`
	DeliveryTimeBand string   `json:"delivery_time_band,omitempty"`
	InvoiceType      string   `json:"invoice_type,omitempty"`
	CoolClass        string   `json:"cool_class,omitempty"`
	CargoHandling    []string `json:"cargo_handling,omitempty"`
}

// Checklist flags which documents accompany each shipment.
type Checklist struct {
	DeliveryNote bool `json:"delivery_note"`
	Invoice      bool `json:"invoice"`
	Receipt      bool `json:"receipt"`
	Pamphlet     bool `json:"pamphlet"`
	Recipe       bool `json:"recipe"`
}

type Line struct {
	Category    string          `json:"category"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

// Total is Quantity x UnitPrice.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Template is one standing order definition.
type Template struct {
	ID               TemplateID
	Interval         IntervalSpec
	NextShippingDate Date
	NextDeliveryDate Date
	LeadDays         int
	Status           Status
	LastExecutedDate *Date

	Customer  Party
	Recipient Party
	Shipping  Shipping
	Checklist Checklist
	Lines     []Line
	Note      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Executable reports whether the template has something to materialize.
func (t *Template) Executable() bool {
	return len(t.Lines) > 0
}

// ExecutedOn reports whether the last successful execution happened on day.
func (t *Template) ExecutedOn(day Date) bool {
	return t.LastExecutedDate != nil && t.LastExecutedDate.Equal(day)
}

// reschedule sets the shipping date and derives delivery from the lead offset.
func (t *Template) reschedule(shipping Date) {
	t.NextShippingDate = shipping
	t.NextDeliveryDate = shipping.AddDays(t.LeadDays)
}

// =============================================================================
// STORE INPUTS
// =============================================================================

// CreateParams is everything a caller supplies to create a template.
// The first shipping/delivery pair fixes the lead offset.
type CreateParams struct {
	Interval          IntervalSpec
	FirstShippingDate Date
	FirstDeliveryDate Date
	Customer          Party
	Recipient         Party
	Shipping          Shipping
	Checklist         Checklist
	Lines             []Line
	Note              string
}

// UpdateFields is a partial edit; nil fields are left untouched.
// Status and interval have their own operations.
type UpdateFields struct {
	Customer         *Party
	Recipient        *Party
	Shipping         *Shipping
	Checklist        *Checklist
	Lines            []Line // nil = unchanged; empty = rejected
	Note             *string
	NextShippingDate *Date
	NextDeliveryDate *Date
}

// ListFilter narrows List results. Zero value lists everything.
type ListFilter struct {
	Status               *Status
	CustomerNameContains string
}
