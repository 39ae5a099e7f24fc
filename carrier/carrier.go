/*
Package carrier translates materialized orders into courier export rows.

PURPOSE:
  Each supported courier wants one denormalized row per shipment in its
  own fixed column layout. A Formatter builds that row from the template
  and the order; coded columns are resolved from master data.

CARRIERS:
  Yamato (export table yamato_export): B2-style columns, dates 2006/01/02
  Sagawa (export table sagawa_export): e-hiden-style columns, dates 20060102

SHARED RULES:
  - Address fields longer than AddressLimit characters are SPLIT into the
    address column and the building/room column, never truncated.
  - Coded fields are looked up by displayed label; an unknown label gives
    an empty code, not an error.

SELECTION:
  Registry.Select matches a template's delivery method against each
  carrier's names and aliases, exactly or as a prefix
  ("Yamato Transport (cool)" selects Yamato).

SEE ALSO:
  - split.go: SplitAddress
  - ledger/materialize.go: the only caller of Format
  - masterdata/catalog.go, store/sqlite: CodeLookup implementations
*/
package carrier

import (
	"fmt"
	"strings"

	"github.com/warp/standing-orders/recurring"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Kind identifies a carrier.
type Kind string

const (
	KindYamato Kind = "yamato"
	KindSagawa Kind = "sagawa"
)

// Master data tables.
const (
	MasterInvoiceTypes      = "invoice_types"
	MasterCoolClasses       = "cool_classes"
	MasterCargoHandling     = "cargo_handling"
	MasterDeliveryTimeBands = "delivery_time_bands"
)

// CodeLookup resolves a displayed label to the code stored in keyField of
// the matching master row. Unknown labels return "".
type CodeLookup interface {
	CodeLookup(table, label, keyField string) string
}

// CodeLookupFunc adapts a function to CodeLookup.
type CodeLookupFunc func(table, label, keyField string) string

func (f CodeLookupFunc) CodeLookup(table, label, keyField string) string {
	return f(table, label, keyField)
}

// =============================================================================
// ORDER & EXPORT ROW
// =============================================================================

// Order is what a formatter needs to know about one materialized order.
type Order struct {
	OrderID      string
	OrderDate    recurring.Date
	ShippingDate recurring.Date
	DeliveryDate recurring.Date
	Lines        []recurring.Line
}

// Pieces is the total quantity across lines.
func (o Order) Pieces() int {
	n := 0
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}

// ItemName is the first line's product name.
func (o Order) ItemName() string {
	if len(o.Lines) == 0 {
		return ""
	}
	return o.Lines[0].ProductName
}

type Field struct {
	Name  string
	Value string
}

// ExportRow is one row in a carrier's column order.
type ExportRow struct {
	Carrier Kind
	Fields  []Field
}

func (r ExportRow) Get(name string) string {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// Row flattens the export row for a TabularStore.
func (r ExportRow) Row() recurring.Row {
	row := make(recurring.Row, len(r.Fields)+1)
	for _, f := range r.Fields {
		row[f.Name] = f.Value
	}
	row["carrier"] = string(r.Carrier)
	return row
}

// String renders "name=value" lines in column order.
func (r ExportRow) String() string {
	var b strings.Builder
	for _, f := range r.Fields {
		fmt.Fprintf(&b, "%s=%s\n", f.Name, f.Value)
	}
	return b.String()
}

// =============================================================================
// FORMATTER & REGISTRY
// =============================================================================

// Formatter builds one export row per materialized order.
type Formatter interface {
	Kind() Kind
	Table() recurring.Table
	Format(t *recurring.Template, order Order, lookup CodeLookup) ExportRow
}

// DefaultAliases are the delivery-method names each carrier answers to.
var DefaultAliases = map[Kind][]string{
	KindYamato: {"Yamato Transport", "Yamato", "ヤマト運輸", "ヤマト"},
	KindSagawa: {"Sagawa Express", "Sagawa", "佐川急便", "佐川"},
}

type entry struct {
	formatter Formatter
	aliases   []string
}

// Registry selects a formatter by delivery method.
type Registry struct {
	entries []entry
}

// NewRegistry registers the built-in formatters with the given aliases;
// carriers missing from aliases fall back to DefaultAliases.
func NewRegistry(aliases map[Kind][]string) *Registry {
	r := &Registry{}
	for _, f := range []Formatter{Yamato{}, Sagawa{}} {
		names := aliases[f.Kind()]
		if len(names) == 0 {
			names = DefaultAliases[f.Kind()]
		}
		r.Register(f, names...)
	}
	return r
}

// Register adds a formatter. Later registrations lose ties.
func (r *Registry) Register(f Formatter, aliases ...string) {
	r.entries = append(r.entries, entry{formatter: f, aliases: aliases})
}

// Select returns the formatter whose name or alias equals deliveryMethod,
// or failing that, prefixes it.
func (r *Registry) Select(deliveryMethod string) (Formatter, bool) {
	method := strings.ToLower(strings.TrimSpace(deliveryMethod))
	if method == "" {
		return nil, false
	}
	for _, e := range r.entries {
		for _, a := range e.aliases {
			if method == strings.ToLower(a) {
				return e.formatter, true
			}
		}
	}
	for _, e := range r.entries {
		for _, a := range e.aliases {
			if a != "" && strings.HasPrefix(method, strings.ToLower(a)) {
				return e.formatter, true
			}
		}
	}
	return nil, false
}

// Formatters lists registered formatters in registration order.
func (r *Registry) Formatters() []Formatter {
	out := make([]Formatter, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.formatter
	}
	return out
}

func lookup(l CodeLookup, table, label, keyField string) string {
	if l == nil || strings.TrimSpace(label) == "" {
		return ""
	}
	return l.CodeLookup(table, label, keyField)
}
