package recurring

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Repository maps templates onto the templates table.
type Repository struct {
	tables TabularStore
}

func NewRepository(tables TabularStore) *Repository {
	return &Repository{tables: tables}
}

func (r *Repository) Insert(ctx context.Context, t *Template) error {
	row, err := EncodeTemplate(t)
	if err != nil {
		return err
	}
	return r.tables.AppendRow(ctx, TableTemplates, row)
}

func (r *Repository) Save(ctx context.Context, t *Template) error {
	row, err := EncodeTemplate(t)
	if err != nil {
		return err
	}
	err = r.tables.UpdateRow(ctx, TableTemplates, string(t.ID), row)
	if IsNotFound(err) {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, t.ID)
	}
	return err
}

func (r *Repository) Delete(ctx context.Context, id TemplateID) error {
	err := r.tables.DeleteRow(ctx, TableTemplates, string(id))
	if IsNotFound(err) {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return err
}

func (r *Repository) Get(ctx context.Context, id TemplateID) (*Template, error) {
	all, corrupt, err := r.Scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range all {
		if t.ID == id {
			return t, nil
		}
	}
	for _, c := range corrupt {
		if c.Key == string(id) {
			return nil, c
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
}

// All returns every decodable template in table order.
func (r *Repository) All(ctx context.Context) ([]*Template, error) {
	all, _, err := r.Scan(ctx)
	return all, err
}

// Scan decodes every template row. Rows that fail to decode come back as
// CorruptRowErrors instead of failing the whole read.
func (r *Repository) Scan(ctx context.Context) ([]*Template, []*CorruptRowError, error) {
	rows, err := r.tables.ReadAll(ctx, TableTemplates)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read templates: %w", err)
	}
	templates := make([]*Template, 0, len(rows))
	var corrupt []*CorruptRowError
	for _, row := range rows {
		t, err := DecodeTemplate(row)
		if err != nil {
			corrupt = append(corrupt, &CorruptRowError{Key: row.Key(TableTemplates), Err: err})
			continue
		}
		templates = append(templates, t)
	}
	return templates, corrupt, nil
}

// =============================================================================
// ROW CODEC
// =============================================================================

// EncodeTemplate flattens a template into a templates-table row.
func EncodeTemplate(t *Template) (Row, error) {
	lines, err := json.Marshal(t.Lines)
	if err != nil {
		return nil, fmt.Errorf("failed to encode lines: %w", err)
	}
	cargo, err := json.Marshal(t.Shipping.CargoHandling)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cargo handling: %w", err)
	}

	row := Row{
		"id":                 string(t.ID),
		"interval":           EncodeInterval(t.Interval),
		"next_shipping_date": t.NextShippingDate.String(),
		"next_delivery_date": t.NextDeliveryDate.String(),
		"lead_days":          strconv.Itoa(t.LeadDays),
		"status":             string(t.Status),
		"last_executed_date": "",

		"delivery_method":    t.Shipping.DeliveryMethod,
		"delivery_time_band": t.Shipping.DeliveryTimeBand,
		"invoice_type":       t.Shipping.InvoiceType,
		"cool_class":         t.Shipping.CoolClass,
		"cargo_handling":     string(cargo),

		"check_delivery_note": strconv.FormatBool(t.Checklist.DeliveryNote),
		"check_invoice":       strconv.FormatBool(t.Checklist.Invoice),
		"check_receipt":       strconv.FormatBool(t.Checklist.Receipt),
		"check_pamphlet":      strconv.FormatBool(t.Checklist.Pamphlet),
		"check_recipe":        strconv.FormatBool(t.Checklist.Recipe),

		"lines": string(lines),
		"note":  t.Note,

		"created_at": t.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": t.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if t.LastExecutedDate != nil {
		row["last_executed_date"] = t.LastExecutedDate.String()
	}
	putParty(row, "customer", t.Customer)
	putParty(row, "recipient", t.Recipient)
	return row, nil
}

// DecodeTemplate rebuilds a template from its row. The interval column may
// hold a JSON object or a legacy bare integer.
func DecodeTemplate(row Row) (*Template, error) {
	t := &Template{
		ID:        TemplateID(row["id"]),
		Interval:  DecodeStoredInterval(row["interval"]),
		Status:    Status(strings.ToLower(strings.TrimSpace(row["status"]))),
		Customer:  getParty(row, "customer"),
		Recipient: getParty(row, "recipient"),
		Shipping: Shipping{
			DeliveryMethod:   row["delivery_method"],
			DeliveryTimeBand: row["delivery_time_band"],
			InvoiceType:      row["invoice_type"],
			CoolClass:        row["cool_class"],
		},
		Checklist: Checklist{
			DeliveryNote: parseBool(row["check_delivery_note"]),
			Invoice:      parseBool(row["check_invoice"]),
			Receipt:      parseBool(row["check_receipt"]),
			Pamphlet:     parseBool(row["check_pamphlet"]),
			Recipe:       parseBool(row["check_recipe"]),
		},
		Note: row["note"],
	}
	if !t.Status.Valid() {
		return nil, fmt.Errorf("status: unknown status %q", row["status"])
	}

	var err error
	if t.NextShippingDate, err = ParseDate(row["next_shipping_date"]); err != nil {
		return nil, fmt.Errorf("next_shipping_date: %w", err)
	}
	if t.NextDeliveryDate, err = ParseDate(row["next_delivery_date"]); err != nil {
		return nil, fmt.Errorf("next_delivery_date: %w", err)
	}
	if lead, convErr := strconv.Atoi(row["lead_days"]); convErr == nil {
		t.LeadDays = lead
	} else {
		t.LeadDays = DaysBetween(t.NextShippingDate, t.NextDeliveryDate)
	}
	if s := row["last_executed_date"]; s != "" {
		d, err := ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("last_executed_date: %w", err)
		}
		t.LastExecutedDate = &d
	}
	if s := row["lines"]; s != "" {
		if err := json.Unmarshal([]byte(s), &t.Lines); err != nil {
			return nil, fmt.Errorf("lines: %w", err)
		}
	}
	if s := row["cargo_handling"]; s != "" && s != "null" {
		if err := json.Unmarshal([]byte(s), &t.Shipping.CargoHandling); err != nil {
			return nil, fmt.Errorf("cargo_handling: %w", err)
		}
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, row["created_at"])
	t.UpdatedAt, _ = time.Parse(time.RFC3339, row["updated_at"])
	return t, nil
}

func putParty(row Row, prefix string, p Party) {
	row[prefix+"_name"] = p.Name
	row[prefix+"_postal_code"] = p.PostalCode
	row[prefix+"_address"] = p.Address
	row[prefix+"_phone"] = p.Phone
}

func getParty(row Row, prefix string) Party {
	return Party{
		Name:       row[prefix+"_name"],
		PostalCode: row[prefix+"_postal_code"],
		Address:    row[prefix+"_address"],
		Phone:      row[prefix+"_phone"],
	}
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
