package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/standing-orders/recurring"
)

// GeneratedMarker starts the internal memo of every row the engine writes,
// so generated orders can be told apart from manually entered ones.
const GeneratedMarker = "[auto:recurring]"

// Row is one ledger line of a materialized order.
type Row struct {
	RowID        string
	OrderID      string
	TemplateID   recurring.TemplateID
	OrderDate    recurring.Date
	ShippingDate recurring.Date
	DeliveryDate recurring.Date

	Customer  recurring.Party
	Recipient recurring.Party
	Shipping  recurring.Shipping
	Checklist recurring.Checklist

	Category    string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal

	Note         string
	InternalMemo string
}

// Generated reports whether the row came from a recurring template.
func (r Row) Generated() bool {
	return strings.HasPrefix(r.InternalMemo, GeneratedMarker)
}

func generatedMemo(id recurring.TemplateID) string {
	return fmt.Sprintf("%s template=%s", GeneratedMarker, id)
}

// Encode flattens the row for the ledger table.
func (r Row) Encode() recurring.Row {
	row := recurring.Row{
		"row_id":             r.RowID,
		"order_id":           r.OrderID,
		"template_id":        string(r.TemplateID),
		"order_date":         r.OrderDate.String(),
		"shipping_date":      r.ShippingDate.String(),
		"delivery_date":      r.DeliveryDate.String(),
		"delivery_method":    r.Shipping.DeliveryMethod,
		"delivery_time_band": r.Shipping.DeliveryTimeBand,
		"invoice_type":       r.Shipping.InvoiceType,
		"cool_class":         r.Shipping.CoolClass,
		"cargo_handling":     encodeLabels(r.Shipping.CargoHandling),
		"delivery_note":      strconv.FormatBool(r.Checklist.DeliveryNote),
		"invoice":            strconv.FormatBool(r.Checklist.Invoice),
		"receipt":            strconv.FormatBool(r.Checklist.Receipt),
		"pamphlet":           strconv.FormatBool(r.Checklist.Pamphlet),
		"recipe":             strconv.FormatBool(r.Checklist.Recipe),
		"category":           r.Category,
		"product_name":       r.ProductName,
		"quantity":           strconv.Itoa(r.Quantity),
		"unit_price":         r.UnitPrice.String(),
		"line_total":         r.LineTotal.String(),
		"note":               r.Note,
		"internal_memo":      r.InternalMemo,
	}
	for prefix, p := range map[string]recurring.Party{"customer": r.Customer, "recipient": r.Recipient} {
		row[prefix+"_name"] = p.Name
		row[prefix+"_postal_code"] = p.PostalCode
		row[prefix+"_address"] = p.Address
		row[prefix+"_phone"] = p.Phone
	}
	return row
}

// DecodeRow rebuilds a ledger row.
func DecodeRow(row recurring.Row) (Row, error) {
	r := Row{
		RowID:        row["row_id"],
		OrderID:      row["order_id"],
		TemplateID:   recurring.TemplateID(row["template_id"]),
		Category:     row["category"],
		ProductName:  row["product_name"],
		Note:         row["note"],
		InternalMemo: row["internal_memo"],
		Shipping: recurring.Shipping{
			DeliveryMethod:   row["delivery_method"],
			DeliveryTimeBand: row["delivery_time_band"],
			InvoiceType:      row["invoice_type"],
			CoolClass:        row["cool_class"],
		},
	}
	r.Shipping.CargoHandling = decodeLabels(row["cargo_handling"])
	r.Checklist = recurring.Checklist{
		DeliveryNote: row["delivery_note"] == "true",
		Invoice:      row["invoice"] == "true",
		Receipt:      row["receipt"] == "true",
		Pamphlet:     row["pamphlet"] == "true",
		Recipe:       row["recipe"] == "true",
	}
	for _, prefix := range []string{"customer", "recipient"} {
		p := recurring.Party{
			Name:       row[prefix+"_name"],
			PostalCode: row[prefix+"_postal_code"],
			Address:    row[prefix+"_address"],
			Phone:      row[prefix+"_phone"],
		}
		if prefix == "customer" {
			r.Customer = p
		} else {
			r.Recipient = p
		}
	}

	var err error
	if r.OrderDate, err = recurring.ParseDate(row["order_date"]); err != nil {
		return r, fmt.Errorf("order_date: %w", err)
	}
	if r.ShippingDate, err = recurring.ParseDate(row["shipping_date"]); err != nil {
		return r, fmt.Errorf("shipping_date: %w", err)
	}
	if r.DeliveryDate, err = recurring.ParseDate(row["delivery_date"]); err != nil {
		return r, fmt.Errorf("delivery_date: %w", err)
	}
	if r.Quantity, err = strconv.Atoi(row["quantity"]); err != nil {
		return r, fmt.Errorf("quantity: %w", err)
	}
	if r.UnitPrice, err = decimal.NewFromString(row["unit_price"]); err != nil {
		return r, fmt.Errorf("unit_price: %w", err)
	}
	if r.LineTotal, err = decimal.NewFromString(row["line_total"]); err != nil {
		return r, fmt.Errorf("line_total: %w", err)
	}
	return r, nil
}

// encodeLabels stores a label list as a JSON array; labels may contain commas.
func encodeLabels(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	b, _ := json.Marshal(labels)
	return string(b)
}

// decodeLabels reads encodeLabels output. Rows written before the JSON
// encoding hold a comma-joined list.
func decodeLabels(s string) []string {
	if s == "" {
		return nil
	}
	var labels []string
	if strings.HasPrefix(s, "[") && json.Unmarshal([]byte(s), &labels) == nil {
		return labels
	}
	return strings.Split(s, ",")
}

// =============================================================================
// READER
// =============================================================================

// Reader queries the ledger table.
type Reader struct {
	tables recurring.TabularStore
}

func NewReader(tables recurring.TabularStore) *Reader {
	return &Reader{tables: tables}
}

// Rows returns ledger rows matching keep, in ledger order.
func (r *Reader) Rows(ctx context.Context, keep func(Row) bool) ([]Row, error) {
	raw, err := r.tables.ReadAll(ctx, recurring.TableLedger)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	var out []Row
	for _, rr := range raw {
		row, err := DecodeRow(rr)
		if err != nil {
			return nil, fmt.Errorf("ledger row %s: %w", rr["row_id"], err)
		}
		if keep == nil || keep(row) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *Reader) ByOrder(ctx context.Context, orderID string) ([]Row, error) {
	return r.Rows(ctx, func(row Row) bool { return row.OrderID == orderID })
}

func (r *Reader) ByTemplate(ctx context.Context, id recurring.TemplateID) ([]Row, error) {
	return r.Rows(ctx, func(row Row) bool { return row.TemplateID == id })
}
