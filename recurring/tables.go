/*
tables.go - Persistence interface for templates, ledger and export rows

PURPOSE:
  Defines the boundary between the engine and whatever durable store holds
  its tables. The store is deliberately dumb: named tables of flat rows,
  addressed by a key column. Different implementations can use SQLite, a
  spreadsheet or memory.

TABLES:
  templates      one row per template            key: id
  ledger         one row per materialized line   key: row_id
  yamato_export  carrier export A, one per order key: order_id
  sagawa_export  carrier export B, one per order key: order_id
  documents      queued document renders         key: artifact_id
  cycle_runs     one row per daily cycle         key: run_id

TEXT ONLY:
  Row values are strings. Postal codes and phone numbers such as "0120"
  must come back exactly as written, so implementations never coerce
  values to numbers.

CONCURRENCY:
  The engine assumes ONE writer: one scheduler instance plus the API's
  occasional manual edits. Implementations serialize their own calls but
  provide no cross-call transactions; a manual edit racing an in-flight
  cycle on the same template is last-write-wins.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: durable
  - store/memory/memory.go: tests and dev
*/
package recurring

import "context"

// Table names a logical table.
type Table string

const (
	TableTemplates    Table = "templates"
	TableLedger       Table = "ledger"
	TableYamatoExport Table = "yamato_export"
	TableSagawaExport Table = "sagawa_export"
	TableDocuments    Table = "documents"
	TableCycleRuns    Table = "cycle_runs"
)

// KeyField returns the column that identifies rows of t.
func (t Table) KeyField() string {
	switch t {
	case TableTemplates:
		return "id"
	case TableLedger:
		return "row_id"
	case TableYamatoExport, TableSagawaExport:
		return "order_id"
	case TableDocuments:
		return "artifact_id"
	case TableCycleRuns:
		return "run_id"
	}
	return "id"
}

// Row is one flat record.
type Row map[string]string

// Key returns the row's value for the table's key column.
func (r Row) Key(t Table) string { return r[t.KeyField()] }

// Clone returns a copy safe to hand to another owner.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// TabularStore persists rows in named tables.
type TabularStore interface {
	// AppendRow adds a row. The row must carry its table's key column.
	AppendRow(ctx context.Context, table Table, row Row) error

	// ReadAll returns every row of table in insertion order.
	ReadAll(ctx context.Context, table Table) ([]Row, error)

	// UpdateRow replaces the row with the given key. ErrRowNotFound if absent.
	UpdateRow(ctx context.Context, table Table, key string, row Row) error

	// DeleteRow removes the row with the given key. ErrRowNotFound if absent.
	DeleteRow(ctx context.Context, table Table, key string) error
}
