package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/standing-orders/carrier"
	"github.com/warp/standing-orders/documents"
	"github.com/warp/standing-orders/ledger"
	"github.com/warp/standing-orders/masterdata"
	"github.com/warp/standing-orders/recurring"
	"github.com/warp/standing-orders/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func sampleTemplate() *recurring.Template {
	return &recurring.Template{
		ID:               "tpl-1",
		Interval:         recurring.NMonthly(1),
		NextShippingDate: recurring.MustParseDate("2025-03-10"),
		NextDeliveryDate: recurring.MustParseDate("2025-03-12"),
		LeadDays:         2,
		Status:           recurring.StatusActive,
		Customer: recurring.Party{
			Name: "Sato Farm", PostalCode: "0600001", Address: "Sapporo Chuo 1-1", Phone: "0120111222",
		},
		Recipient: recurring.Party{
			Name: "Suzuki Taro", PostalCode: "0010010", Address: "Tokyo Minato Shiba 1-2-3 Grand Tower 1501", Phone: "0311112222",
		},
		Shipping: recurring.Shipping{
			DeliveryMethod: "Yamato Transport",
			CoolClass:      "冷蔵",
			InvoiceType:    "発払い",
			CargoHandling:  []string{"ナマモノ"},
		},
		Checklist: recurring.Checklist{DeliveryNote: true, Receipt: true},
		Lines: []recurring.Line{
			{Category: "veg", ProductName: "Asparagus", UnitPrice: decimal.NewFromInt(1200), Quantity: 2},
			{Category: "veg", ProductName: "Potato", UnitPrice: decimal.RequireFromString("350.5"), Quantity: 4},
		},
		Note: "leave at door",
	}
}

func newMaterializer(tables recurring.TabularStore) *ledger.Materializer {
	return &ledger.Materializer{
		Tables:    tables,
		IDs:       recurring.NewFixedGenerator("id"),
		Carriers:  carrier.NewRegistry(nil),
		Codes:     masterdata.Default(),
		Documents: documents.NewQueueRenderer(tables, recurring.NewFixedGenerator("doc")),
	}
}

type stubRenderer struct {
	mu    sync.Mutex
	err   error
	panic bool
	block chan struct{}
	calls []ledger.DocumentKind
}

func (s *stubRenderer) Render(_ context.Context, kind ledger.DocumentKind, rows []ledger.Row, _ ledger.CustomerLookup) (ledger.Artifact, error) {
	s.mu.Lock()
	s.calls = append(s.calls, kind)
	s.mu.Unlock()
	if s.block != nil {
		<-s.block
	}
	if s.panic {
		panic("printer on fire")
	}
	if s.err != nil {
		return ledger.Artifact{}, s.err
	}
	return ledger.Artifact{ID: "art-" + string(kind), Kind: kind, OrderID: rows[0].OrderID}, nil
}

// =============================================================================
// LEDGER ROWS
// =============================================================================

func TestMaterialize_OneRowPerLineSharingOrderID(t *testing.T) {
	// GIVEN: A template with two lines
	// WHEN: It is materialized
	// THEN: Two ledger rows share a fresh order id and carry template data

	tables := memory.New()
	m := newMaterializer(tables)
	executedOn := recurring.MustParseDate("2025-03-03")

	order, err := m.Materialize(context.Background(), sampleTemplate(), executedOn)
	require.NoError(t, err)

	assert.Equal(t, "id-1", order.OrderID)
	require.Len(t, order.Rows, 2)
	for _, r := range order.Rows {
		assert.Equal(t, order.OrderID, r.OrderID)
		assert.Equal(t, recurring.TemplateID("tpl-1"), r.TemplateID)
		assert.True(t, r.OrderDate.Equal(executedOn))
		assert.Equal(t, "2025-03-10", r.ShippingDate.String())
		assert.Equal(t, "2025-03-12", r.DeliveryDate.String())
		assert.True(t, r.Generated(), "memo should mark generated rows")
		assert.Contains(t, r.InternalMemo, "tpl-1")
	}
	assert.Equal(t, "2400", order.Rows[0].LineTotal.String())
	assert.Equal(t, "1402", order.Rows[1].LineTotal.String())
	assert.Equal(t, 2, tables.Len(recurring.TableLedger))
}

func TestMaterialize_LedgerRowsRoundTripThroughReader(t *testing.T) {
	tables := memory.New()
	m := newMaterializer(tables)

	order, err := m.Materialize(context.Background(), sampleTemplate(), recurring.MustParseDate("2025-03-03"))
	require.NoError(t, err)

	rows, err := ledger.NewReader(tables).ByOrder(context.Background(), order.OrderID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "0600001", rows[0].Customer.PostalCode)
	assert.Equal(t, "0120111222", rows[0].Customer.Phone, "leading zero must survive")
	assert.Equal(t, []string{"ナマモノ"}, rows[0].Shipping.CargoHandling)
	assert.True(t, rows[0].UnitPrice.Equal(decimal.NewFromInt(1200)))
	assert.Equal(t, 4, rows[1].Quantity)
}

func TestMaterialize_LedgerFailureIsReturned(t *testing.T) {
	// GIVEN: The ledger table rejects writes
	// WHEN: Materializing
	// THEN: An error is returned and no carrier row is written

	tables := memory.New()
	tables.FailWrites(recurring.TableLedger, errors.New("disk full"))
	m := newMaterializer(tables)

	_, err := m.Materialize(context.Background(), sampleTemplate(), recurring.MustParseDate("2025-03-03"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 0, tables.Len(recurring.TableYamatoExport))
}

func TestMaterialize_EmptyTemplateRejected(t *testing.T) {
	tpl := sampleTemplate()
	tpl.Lines = nil

	_, err := newMaterializer(memory.New()).Materialize(context.Background(), tpl, recurring.MustParseDate("2025-03-03"))
	assert.ErrorIs(t, err, ledger.ErrNothingToMaterialize)
}

// =============================================================================
// CARRIER EXPORT
// =============================================================================

func TestMaterialize_CarrierRowWrittenOncePerOrder(t *testing.T) {
	tables := memory.New()
	m := newMaterializer(tables)

	order, err := m.Materialize(context.Background(), sampleTemplate(), recurring.MustParseDate("2025-03-03"))
	require.NoError(t, err)

	require.NotNil(t, order.Export)
	assert.Equal(t, carrier.KindYamato, order.Export.Carrier)
	assert.Equal(t, "2", order.Export.Get("cool_class"))
	assert.Equal(t, "06", order.Export.Get("handling_1"))
	assert.Equal(t, "6", order.Export.Get("pieces"))
	assert.Equal(t, 1, tables.Len(recurring.TableYamatoExport))
	assert.Equal(t, 0, tables.Len(recurring.TableSagawaExport))
}

func TestMaterialize_UnknownDeliveryMethodSkipsExport(t *testing.T) {
	tables := memory.New()
	tpl := sampleTemplate()
	tpl.Shipping.DeliveryMethod = "customer pickup"

	order, err := newMaterializer(tables).Materialize(context.Background(), tpl, recurring.MustParseDate("2025-03-03"))
	require.NoError(t, err)
	assert.Nil(t, order.Export)
	assert.Empty(t, order.SideEffects)
	assert.Equal(t, 0, tables.Len(recurring.TableYamatoExport))
}

func TestMaterialize_CarrierFailureKeepsLedgerRows(t *testing.T) {
	// GIVEN: The carrier export table rejects writes
	// WHEN: Materializing
	// THEN: Ledger rows stay, the failure is recorded, no error is returned

	tables := memory.New()
	tables.FailWrites(recurring.TableYamatoExport, errors.New("sheet locked"))

	order, err := newMaterializer(tables).Materialize(context.Background(), sampleTemplate(), recurring.MustParseDate("2025-03-03"))
	require.NoError(t, err)

	assert.Equal(t, 2, tables.Len(recurring.TableLedger))
	assert.Nil(t, order.Export)
	require.Len(t, order.SideEffects, 1)
	assert.Contains(t, order.SideEffects[0].Error(), "sheet locked")
	assert.Len(t, order.Documents, 2, "documents still render after a carrier failure")
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func TestMaterialize_QueuesRequestedDocuments(t *testing.T) {
	tables := memory.New()

	order, err := newMaterializer(tables).Materialize(context.Background(), sampleTemplate(), recurring.MustParseDate("2025-03-03"))
	require.NoError(t, err)

	require.Len(t, order.Documents, 2)
	assert.Equal(t, ledger.DocDeliveryNote, order.Documents[0].Kind)
	assert.Equal(t, ledger.DocReceipt, order.Documents[1].Kind)

	jobs, err := tables.ReadAll(context.Background(), recurring.TableDocuments)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Suzuki Taro", jobs[0]["addressee_name"], "delivery note goes to the recipient")
	assert.Equal(t, "Sato Farm", jobs[1]["addressee_name"], "receipt goes to the customer")
	assert.Equal(t, "3802", jobs[1]["total"])
	assert.Equal(t, documents.StatusQueued, jobs[1]["status"])
}

func TestMaterialize_NoChecklistNoDocuments(t *testing.T) {
	tpl := sampleTemplate()
	tpl.Checklist = recurring.Checklist{Invoice: true}
	r := &stubRenderer{}
	m := newMaterializer(memory.New())
	m.Documents = r

	order, err := m.Materialize(context.Background(), tpl, recurring.MustParseDate("2025-03-03"))
	require.NoError(t, err)
	assert.Empty(t, order.Documents)
	assert.Empty(t, r.calls)
}

func TestMaterialize_RendererFailureRecorded(t *testing.T) {
	m := newMaterializer(memory.New())
	m.Documents = &stubRenderer{err: errors.New("template missing")}

	order, err := m.Materialize(context.Background(), sampleTemplate(), recurring.MustParseDate("2025-03-03"))
	require.NoError(t, err)
	assert.Len(t, order.SideEffects, 2)
	assert.NotNil(t, order.Export)
}

func TestMaterialize_RendererPanicRecorded(t *testing.T) {
	m := newMaterializer(memory.New())
	m.Documents = &stubRenderer{panic: true}

	order, err := m.Materialize(context.Background(), sampleTemplate(), recurring.MustParseDate("2025-03-03"))
	require.NoError(t, err)
	require.Len(t, order.SideEffects, 2)
	assert.Contains(t, order.SideEffects[0].Error(), "printer on fire")
}

func TestMaterialize_HungRendererAbandonedOnDeadline(t *testing.T) {
	// GIVEN: A renderer that never returns
	// WHEN: The context deadline passes
	// THEN: Materialize returns with the render recorded as failed

	block := make(chan struct{})
	defer close(block)
	m := newMaterializer(memory.New())
	m.Documents = &stubRenderer{block: block}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	order, err := m.Materialize(ctx, sampleTemplate(), recurring.MustParseDate("2025-03-03"))
	require.NoError(t, err)
	require.NotEmpty(t, order.SideEffects)
	assert.ErrorIs(t, order.SideEffects[0], context.DeadlineExceeded)
}

func TestMaterialize_HungRendererLeavesCallerTime(t *testing.T) {
	// GIVEN: A renderer that never returns and a caller with a deadline
	// WHEN: Both documents are attempted
	// THEN: Materialize returns while the caller's context is still live

	block := make(chan struct{})
	defer close(block)
	m := newMaterializer(memory.New())
	m.Documents = &stubRenderer{block: block}

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()

	order, err := m.Materialize(ctx, sampleTemplate(), recurring.MustParseDate("2025-03-03"))
	require.NoError(t, err)
	require.Len(t, order.SideEffects, 2)
	assert.NoError(t, ctx.Err(), "caller deadline must not be used up by the renderer")
}

func TestMaterialize_DocumentTimeoutWithoutCallerDeadline(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	m := newMaterializer(memory.New())
	m.Documents = &stubRenderer{block: block}
	m.DocumentTimeout = 20 * time.Millisecond

	order, err := m.Materialize(context.Background(), sampleTemplate(), recurring.MustParseDate("2025-03-03"))
	require.NoError(t, err)
	require.Len(t, order.SideEffects, 2)
	assert.ErrorIs(t, order.SideEffects[1], context.DeadlineExceeded)
}

func TestRow_CargoHandlingLabelsWithCommas(t *testing.T) {
	// GIVEN: A handling label that itself contains a comma
	tables := memory.New()
	m := newMaterializer(tables)
	tpl := sampleTemplate()
	tpl.Shipping.CargoHandling = []string{"ナマモノ", "Fragile, glass"}

	// WHEN: The order is written and read back
	order, err := m.Materialize(context.Background(), tpl, recurring.MustParseDate("2025-03-03"))
	require.NoError(t, err)
	rows, err := ledger.NewReader(tables).ByOrder(context.Background(), order.OrderID)

	// THEN: The label list comes back unsplit
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"ナマモノ", "Fragile, glass"}, rows[0].Shipping.CargoHandling)
}

func TestDecodeRow_CommaJoinedCargoHandling(t *testing.T) {
	// Rows written before labels were stored as JSON.
	row := sampleRow()
	row["cargo_handling"] = "ナマモノ,天地無用"

	r, err := ledger.DecodeRow(row)
	require.NoError(t, err)
	assert.Equal(t, []string{"ナマモノ", "天地無用"}, r.Shipping.CargoHandling)

	row["cargo_handling"] = ""
	r, err = ledger.DecodeRow(row)
	require.NoError(t, err)
	assert.Nil(t, r.Shipping.CargoHandling)
}

func sampleRow() recurring.Row {
	return ledger.Row{
		RowID:        "row-1",
		OrderID:      "ord-1",
		TemplateID:   "tpl-1",
		OrderDate:    recurring.MustParseDate("2025-03-03"),
		ShippingDate: recurring.MustParseDate("2025-03-10"),
		DeliveryDate: recurring.MustParseDate("2025-03-12"),
		ProductName:  "Asparagus",
		Quantity:     1,
		UnitPrice:    decimal.NewFromInt(1200),
		LineTotal:    decimal.NewFromInt(1200),
	}.Encode()
}
