/*
Package documents queues delivery notes and receipts for printing.

PURPOSE:
  Rendering the actual printable file is someone else's job (a print
  worker polls the documents table). This package records one job per
  requested document with everything the printer needs: the addressee
  resolved through the customer lookup, the lines and the total.

SEE ALSO:
  - ledger/materialize.go: defines DocumentRenderer and calls Render
*/
package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/standing-orders/ledger"
	"github.com/warp/standing-orders/recurring"
)

// StatusQueued is the status of a freshly written job.
const StatusQueued = "queued"

type jobLine struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
}

// QueueRenderer writes render jobs to the documents table.
type QueueRenderer struct {
	Tables recurring.TabularStore
	IDs    recurring.IDGenerator
	Now    func() time.Time
}

// NewQueueRenderer creates a renderer writing to tables.
func NewQueueRenderer(tables recurring.TabularStore, ids recurring.IDGenerator) *QueueRenderer {
	if ids == nil {
		ids = recurring.UUIDv7Generator{}
	}
	return &QueueRenderer{Tables: tables, IDs: ids, Now: time.Now}
}

// Render implements ledger.DocumentRenderer.
func (q *QueueRenderer) Render(ctx context.Context, kind ledger.DocumentKind, rows []ledger.Row, customers ledger.CustomerLookup) (ledger.Artifact, error) {
	if len(rows) == 0 {
		return ledger.Artifact{}, fmt.Errorf("render %s: no rows", kind)
	}
	if err := ctx.Err(); err != nil {
		return ledger.Artifact{}, err
	}
	first := rows[0]

	addressee := first.Customer
	if customers != nil {
		if p, ok := customers.LookupCustomer(first.Customer.Name); ok {
			addressee = p
		}
	}
	// Delivery notes travel with the parcel, so they go to the recipient.
	if kind == ledger.DocDeliveryNote {
		addressee = first.Recipient
	}

	total := decimal.Zero
	lines := make([]jobLine, len(rows))
	for i, r := range rows {
		total = total.Add(r.LineTotal)
		lines[i] = jobLine{
			ProductName: r.ProductName,
			Quantity:    r.Quantity,
			UnitPrice:   r.UnitPrice.String(),
			LineTotal:   r.LineTotal.String(),
		}
	}
	linesJSON, err := json.Marshal(lines)
	if err != nil {
		return ledger.Artifact{}, fmt.Errorf("encode lines: %w", err)
	}

	artifact := ledger.Artifact{ID: q.IDs.NewID(), Kind: kind, OrderID: first.OrderID}
	row := recurring.Row{
		"artifact_id":       artifact.ID,
		"kind":              string(kind),
		"order_id":          first.OrderID,
		"template_id":       string(first.TemplateID),
		"order_date":        first.OrderDate.String(),
		"addressee_name":    addressee.Name,
		"addressee_postal":  addressee.PostalCode,
		"addressee_address": addressee.Address,
		"addressee_phone":   addressee.Phone,
		"lines":             string(linesJSON),
		"total":             total.String(),
		"status":            StatusQueued,
		"queued_at":         q.now().UTC().Format(time.RFC3339),
	}
	if err := q.Tables.AppendRow(ctx, recurring.TableDocuments, row); err != nil {
		return ledger.Artifact{}, fmt.Errorf("queue %s for order %s: %w", kind, first.OrderID, err)
	}
	return artifact, nil
}

func (q *QueueRenderer) now() time.Time {
	if q.Now == nil {
		return time.Now()
	}
	return q.Now()
}
