package documents_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/standing-orders/documents"
	"github.com/warp/standing-orders/ledger"
	"github.com/warp/standing-orders/recurring"
	"github.com/warp/standing-orders/store/memory"
)

type directory map[string]recurring.Party

func (d directory) LookupCustomer(name string) (recurring.Party, bool) {
	p, ok := d[name]
	return p, ok
}

func orderRows() []ledger.Row {
	base := ledger.Row{
		OrderID:    "ord-1",
		TemplateID: "tpl-1",
		OrderDate:  recurring.MustParseDate("2025-03-03"),
		Customer:   recurring.Party{Name: "Tanaka Foods"},
		Recipient:  recurring.Party{Name: "Yamada Hanako", PostalCode: "5300001", Address: "Osaka"},
	}
	a, b := base, base
	a.RowID, a.ProductName, a.Quantity = "row-1", "Tomatoes", 2
	a.UnitPrice, a.LineTotal = decimal.NewFromInt(1200), decimal.NewFromInt(2400)
	b.RowID, b.ProductName, b.Quantity = "row-2", "Cucumbers", 1
	b.UnitPrice, b.LineTotal = decimal.NewFromInt(1400), decimal.NewFromInt(1400)
	return []ledger.Row{a, b}
}

func newRenderer(tables recurring.TabularStore) *documents.QueueRenderer {
	q := documents.NewQueueRenderer(tables, recurring.NewFixedGenerator("doc"))
	q.Now = func() time.Time { return time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC) }
	return q
}

func TestRender_ReceiptGoesToLookedUpCustomer(t *testing.T) {
	// GIVEN: A customer directory with the full orderer address
	tables := memory.New()
	q := newRenderer(tables)
	customers := directory{"Tanaka Foods": {Name: "Tanaka Foods", PostalCode: "1500001", Address: "Tokyo Shibuya"}}

	// WHEN: A receipt is rendered
	artifact, err := q.Render(context.Background(), ledger.DocReceipt, orderRows(), customers)

	// THEN: One queued job addressed to the customer, totalling every line
	require.NoError(t, err)
	assert.Equal(t, ledger.Artifact{ID: "doc-1", Kind: ledger.DocReceipt, OrderID: "ord-1"}, artifact)

	rows, err := tables.ReadAll(context.Background(), recurring.TableDocuments)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Tokyo Shibuya", rows[0]["addressee_address"])
	assert.Equal(t, "3800", rows[0]["total"])
	assert.Equal(t, documents.StatusQueued, rows[0]["status"])
	assert.Equal(t, "2025-03-03T00:00:00Z", rows[0]["queued_at"])
	assert.JSONEq(t, `[
		{"product_name": "Tomatoes", "quantity": 2, "unit_price": "1200", "line_total": "2400"},
		{"product_name": "Cucumbers", "quantity": 1, "unit_price": "1400", "line_total": "1400"}
	]`, rows[0]["lines"])
}

func TestRender_DeliveryNoteGoesToRecipient(t *testing.T) {
	tables := memory.New()
	q := newRenderer(tables)

	_, err := q.Render(context.Background(), ledger.DocDeliveryNote, orderRows(), nil)
	require.NoError(t, err)

	rows, err := tables.ReadAll(context.Background(), recurring.TableDocuments)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Yamada Hanako", rows[0]["addressee_name"])
	assert.Equal(t, "delivery_note", rows[0]["kind"])
}

func TestRender_Errors(t *testing.T) {
	tables := memory.New()
	q := newRenderer(tables)

	_, err := q.Render(context.Background(), ledger.DocReceipt, nil, nil)
	assert.ErrorContains(t, err, "no rows")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = q.Render(ctx, ledger.DocReceipt, orderRows(), nil)
	assert.ErrorIs(t, err, context.Canceled)

	boom := errors.New("sheet locked")
	tables.FailWrites(recurring.TableDocuments, boom)
	_, err = q.Render(context.Background(), ledger.DocReceipt, orderRows(), nil)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, tables.Len(recurring.TableDocuments))
}
