/*
materialize.go - Turns one template execution into concrete orders

PURPOSE:
  Materialize is called by the scheduler for each template that fires.
  It produces three independent outputs:

    1. LEDGER ROWS   one per template line, sharing a fresh order id
    2. CARRIER ROW   one per order, when the delivery method names a carrier
    3. DOCUMENTS     delivery note / receipt, when the checklist asks

NOT TRANSACTIONAL:
  The three outputs are separate writes. A ledger failure aborts the
  execution (the template is not advanced). Carrier and document failures
  are logged and recorded on the result as side-effect errors; rows already
  written stay written. Rows written before a mid-order ledger failure also
  stay written.

SEE ALSO:
  - row.go: ledger row layout
  - carrier/: export formatters
  - documents/: renderer implementations
  - scheduler/cycle.go: the caller
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/warp/standing-orders/carrier"
	"github.com/warp/standing-orders/recurring"
)

// ErrNothingToMaterialize is returned for templates without lines.
var ErrNothingToMaterialize = errors.New("template has no lines")

// DefaultDocumentTimeout bounds one document render.
const DefaultDocumentTimeout = 30 * time.Second

// =============================================================================
// DOCUMENT RENDERER - external collaborator
// =============================================================================

type DocumentKind string

const (
	DocDeliveryNote DocumentKind = "delivery_note"
	DocReceipt      DocumentKind = "receipt"
)

// Artifact is a handle to a rendered (or queued) document.
type Artifact struct {
	ID      string
	Kind    DocumentKind
	OrderID string
}

// CustomerLookup resolves a customer name to full party details.
type CustomerLookup interface {
	LookupCustomer(name string) (recurring.Party, bool)
}

// DocumentRenderer produces a printable document for an order.
type DocumentRenderer interface {
	Render(ctx context.Context, kind DocumentKind, rows []Row, customers CustomerLookup) (Artifact, error)
}

// templateCustomers answers lookups from the template's own orderer.
type templateCustomers struct {
	party recurring.Party
}

func (c templateCustomers) LookupCustomer(name string) (recurring.Party, bool) {
	if name != c.party.Name {
		return recurring.Party{}, false
	}
	return c.party, true
}

// =============================================================================
// RESULT
// =============================================================================

// SideEffectError is a carrier or document failure that did not abort the
// execution.
type SideEffectError struct {
	Step string
	Err  error
}

func (e *SideEffectError) Error() string { return e.Step + ": " + e.Err.Error() }
func (e *SideEffectError) Unwrap() error { return e.Err }

// MaterializedOrder is everything one execution produced.
type MaterializedOrder struct {
	OrderID    string
	TemplateID recurring.TemplateID
	OrderDate  recurring.Date
	Rows       []Row

	Export      *carrier.ExportRow
	Documents   []Artifact
	SideEffects []*SideEffectError
}

// =============================================================================
// MATERIALIZER
// =============================================================================

// Materializer writes ledger rows, carrier rows and documents.
type Materializer struct {
	Tables    recurring.TabularStore
	IDs       recurring.IDGenerator
	Carriers  *carrier.Registry
	Codes     carrier.CodeLookup
	Documents DocumentRenderer // nil: documents are skipped
	Customers CustomerLookup   // nil: the template's customer
	Logger    *slog.Logger

	// DocumentTimeout bounds each render. Zero means DefaultDocumentTimeout.
	DocumentTimeout time.Duration
}

// Materialize executes t once on executedOn, the order date.
func (m *Materializer) Materialize(ctx context.Context, t *recurring.Template, executedOn recurring.Date) (*MaterializedOrder, error) {
	if !t.Executable() {
		return nil, fmt.Errorf("%w: %s", ErrNothingToMaterialize, t.ID)
	}
	logger := m.logger().With("template_id", string(t.ID))

	order := &MaterializedOrder{
		OrderID:    m.ids().NewID(),
		TemplateID: t.ID,
		OrderDate:  executedOn,
	}
	logger = logger.With("order_id", order.OrderID)

	// 1. Ledger rows
	for _, line := range t.Lines {
		row := Row{
			RowID:        m.ids().NewID(),
			OrderID:      order.OrderID,
			TemplateID:   t.ID,
			OrderDate:    executedOn,
			ShippingDate: t.NextShippingDate,
			DeliveryDate: t.NextDeliveryDate,
			Customer:     t.Customer,
			Recipient:    t.Recipient,
			Shipping:     t.Shipping,
			Checklist:    t.Checklist,
			Category:     line.Category,
			ProductName:  line.ProductName,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			LineTotal:    line.Total(),
			Note:         t.Note,
			InternalMemo: generatedMemo(t.ID),
		}
		if err := m.Tables.AppendRow(ctx, recurring.TableLedger, row.Encode()); err != nil {
			return order, fmt.Errorf("failed to write ledger row %d of order %s: %w", len(order.Rows)+1, order.OrderID, err)
		}
		order.Rows = append(order.Rows, row)
	}
	logger.Info("ledger rows written", "rows", len(order.Rows))

	// 2. Carrier export, once per order
	if m.Carriers != nil {
		if f, ok := m.Carriers.Select(t.Shipping.DeliveryMethod); ok {
			export, err := m.export(ctx, f, t, order)
			if err != nil {
				m.sideEffect(logger, order, "carrier "+string(f.Kind()), err)
			} else {
				order.Export = export
			}
		}
	}

	// 3. Documents
	for _, kind := range requestedDocuments(t.Checklist) {
		if m.Documents == nil {
			break
		}
		artifact, err := m.render(ctx, kind, t, order.Rows)
		if err != nil {
			m.sideEffect(logger, order, "document "+string(kind), err)
			continue
		}
		order.Documents = append(order.Documents, artifact)
	}

	return order, nil
}

func (m *Materializer) export(ctx context.Context, f carrier.Formatter, t *recurring.Template, order *MaterializedOrder) (export *carrier.ExportRow, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("formatter panic: %v", r)
		}
	}()
	row := f.Format(t, carrier.Order{
		OrderID:      order.OrderID,
		OrderDate:    order.OrderDate,
		ShippingDate: t.NextShippingDate,
		DeliveryDate: t.NextDeliveryDate,
		Lines:        t.Lines,
	}, m.Codes)
	if err := m.Tables.AppendRow(ctx, f.Table(), row.Row()); err != nil {
		return nil, err
	}
	return &row, nil
}

// render calls the renderer but returns as soon as its deadline passes, even
// if the renderer ignores ctx. The abandoned call finishes in the background.
func (m *Materializer) render(parent context.Context, kind DocumentKind, t *recurring.Template, rows []Row) (Artifact, error) {
	ctx, cancel := m.renderContext(parent)
	defer cancel()

	customers := m.Customers
	if customers == nil {
		customers = templateCustomers{party: t.Customer}
	}

	type result struct {
		artifact Artifact
		err      error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("renderer panic: %v", r)}
			}
		}()
		a, err := m.Documents.Render(ctx, kind, append([]Row(nil), rows...), customers)
		done <- result{artifact: a, err: err}
	}()

	select {
	case res := <-done:
		return res.artifact, res.err
	case <-ctx.Done():
		return Artifact{}, fmt.Errorf("render %s: %w", kind, ctx.Err())
	}
}

// renderContext leaves at least half of parent's remaining time to the caller.
func (m *Materializer) renderContext(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := m.DocumentTimeout
	if timeout <= 0 {
		timeout = DefaultDocumentTimeout
	}
	if deadline, ok := parent.Deadline(); ok {
		if half := time.Until(deadline) / 2; half < timeout {
			timeout = half
		}
	}
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

func (m *Materializer) sideEffect(logger *slog.Logger, order *MaterializedOrder, step string, err error) {
	logger.Error("side effect failed, ledger rows kept", "step", step, "error", err)
	order.SideEffects = append(order.SideEffects, &SideEffectError{Step: step, Err: err})
}

func (m *Materializer) ids() recurring.IDGenerator {
	if m.IDs == nil {
		return recurring.UUIDv7Generator{}
	}
	return m.IDs
}

func (m *Materializer) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

func requestedDocuments(c recurring.Checklist) []DocumentKind {
	var kinds []DocumentKind
	if c.DeliveryNote {
		kinds = append(kinds, DocDeliveryNote)
	}
	if c.Receipt {
		kinds = append(kinds, DocReceipt)
	}
	return kinds
}
