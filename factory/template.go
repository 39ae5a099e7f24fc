/*
Package factory converts JSON template definitions into store inputs.

PURPOSE:
  Templates arrive as JSON from the HTTP API, from bulk import files and
  from demo scenarios. The factory validates the shape and produces a
  recurring.CreateParams; business validation (lines, date order) is still
  the store's job.

JSON SCHEMA:
  {
    "interval": {"type": "monthly_day", "day": "last"},
    "first_shipping_date": "2025-03-10",
    "first_delivery_date": "2025-03-12",
    "status": "active",
    "customer":  {"name": "...", "postal_code": "0600001", "address": "...", "phone": "..."},
    "recipient": {"name": "...", "postal_code": "...", "address": "...", "phone": "..."},
    "shipping": {
      "delivery_method": "Yamato Transport",
      "delivery_time_band": "午前中",
      "invoice_type": "発払い",
      "cool_class": "冷蔵",
      "cargo_handling": ["ナマモノ"]
    },
    "checklist": {"delivery_note": true, "receipt": true},
    "lines": [{"category": "veg", "product_name": "Asparagus", "unit_price": "1200", "quantity": 2}],
    "note": "..."
  }

  "interval" also accepts a bare month count (legacy form): 1, 2, "3".
  "status" is only honoured by imports ("paused" imports as paused).

SEE ALSO:
  - recurring/interval_codec.go: interval wire format
  - cli/import.go, api/handlers.go: callers
*/
package factory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/warp/standing-orders/recurring"
)

// TemplateJSON is the JSON representation of a template.
type TemplateJSON struct {
	Interval          json.RawMessage     `json:"interval"`
	FirstShippingDate string              `json:"first_shipping_date"`
	FirstDeliveryDate string              `json:"first_delivery_date"`
	Status            string              `json:"status,omitempty"`
	Customer          recurring.Party     `json:"customer"`
	Recipient         recurring.Party     `json:"recipient"`
	Shipping          recurring.Shipping  `json:"shipping"`
	Checklist         recurring.Checklist `json:"checklist"`
	Lines             []recurring.Line    `json:"lines"`
	Note              string              `json:"note,omitempty"`
}

// Parsed is a decoded template ready for Store.Create.
type Parsed struct {
	Params recurring.CreateParams
	Status recurring.Status
}

// ParseTemplate decodes one template.
func ParseTemplate(data []byte) (*Parsed, error) {
	var tj TemplateJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&tj); err != nil {
		return nil, fmt.Errorf("invalid template JSON: %w", err)
	}
	return tj.ToParams()
}

// ParseTemplates decodes a JSON array of templates (import files).
func ParseTemplates(data []byte) ([]*Parsed, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid template list: %w", err)
	}
	out := make([]*Parsed, 0, len(raw))
	for i, r := range raw {
		p, err := ParseTemplate(r)
		if err != nil {
			return nil, fmt.Errorf("template %d: %w", i+1, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// ToParams converts the JSON form.
func (tj TemplateJSON) ToParams() (*Parsed, error) {
	var problems []string

	interval := recurring.DefaultInterval()
	if raw := bytes.TrimSpace(tj.Interval); len(raw) > 0 && string(raw) != "null" {
		spec, err := recurring.ParseInterval(tj.Interval)
		if err != nil {
			problems = append(problems, fmt.Sprintf("interval: %v", err))
		} else {
			interval = spec
		}
	}

	shipping, err := parseDate("first_shipping_date", tj.FirstShippingDate)
	if err != nil {
		problems = append(problems, err.Error())
	}
	delivery, err := parseDate("first_delivery_date", tj.FirstDeliveryDate)
	if err != nil {
		problems = append(problems, err.Error())
	}

	status := recurring.StatusActive
	if tj.Status != "" {
		status = recurring.Status(strings.ToLower(tj.Status))
		if !status.Valid() {
			problems = append(problems, fmt.Sprintf("status: unknown value %q", tj.Status))
		}
	}

	if len(problems) > 0 {
		return nil, &recurring.ValidationError{Problems: problems}
	}
	return &Parsed{
		Params: recurring.CreateParams{
			Interval:          interval,
			FirstShippingDate: shipping,
			FirstDeliveryDate: delivery,
			Customer:          tj.Customer,
			Recipient:         tj.Recipient,
			Shipping:          tj.Shipping,
			Checklist:         tj.Checklist,
			Lines:             tj.Lines,
			Note:              tj.Note,
		},
		Status: status,
	}, nil
}

// Create stores p and applies its imported status. A template imported as
// paused or cancelled is created active first, so the status goes through
// the same guards as any other transition.
func Create(ctx context.Context, s *recurring.Store, p *Parsed) (recurring.TemplateID, error) {
	id, err := s.Create(ctx, p.Params)
	if err != nil {
		return "", err
	}
	switch p.Status {
	case recurring.StatusPaused:
		err = s.Pause(ctx, id)
	case recurring.StatusCancelled:
		err = s.Cancel(ctx, id)
	}
	if err != nil {
		return id, fmt.Errorf("template %s created but status %s not applied: %w", id, p.Status, err)
	}
	return id, nil
}

func parseDate(field, s string) (recurring.Date, error) {
	if strings.TrimSpace(s) == "" {
		return recurring.Date{}, fmt.Errorf("%s is required", field)
	}
	d, err := recurring.ParseDate(s)
	if err != nil {
		return recurring.Date{}, fmt.Errorf("%s: %v", field, err)
	}
	return d, nil
}
