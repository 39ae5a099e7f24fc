/*
Package masterdata holds the read-only reference tables carriers use to turn
displayed labels into codes.

FILE FORMAT (YAML):
  cool_classes:
    - label: 冷蔵
      yamato_code: "2"
      sagawa_code: "002"

  Every table is a list of rows; "label" is the displayed value and every
  other key is a code column. Values are read as text, so "002" stays "002".

USAGE:
  cat, err := masterdata.Load("master.yaml")
  code := cat.CodeLookup(carrier.MasterCoolClasses, "冷蔵", carrier.YamatoCodeField)

SEE ALSO:
  - carrier/carrier.go: CodeLookup interface
  - store/sqlite/sqlite.go: durable copy seeded with SeedInto
*/
package masterdata

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// LabelField is the column matched against displayed values.
const LabelField = "label"

// Entry is one reference row.
type Entry map[string]string

func (e Entry) Label() string { return e[LabelField] }

// Catalog is an in-memory set of master tables.
type Catalog struct {
	tables map[string][]Entry
}

// Default returns the built-in catalog.
func Default() *Catalog {
	cat, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("masterdata: built-in catalog is invalid: %v", err))
	}
	return cat
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read master data: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	tables := map[string][]Entry{}
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("failed to parse master data: %w", err)
	}
	for name, entries := range tables {
		for i, e := range entries {
			if strings.TrimSpace(e.Label()) == "" {
				return nil, fmt.Errorf("master table %s row %d: missing %q", name, i+1, LabelField)
			}
		}
	}
	return &Catalog{tables: tables}, nil
}

// CodeLookup implements carrier.CodeLookup.
func (c *Catalog) CodeLookup(table, label, keyField string) string {
	label = strings.TrimSpace(label)
	for _, e := range c.tables[table] {
		if e.Label() == label {
			return e[keyField]
		}
	}
	return ""
}

// Tables returns the table names, sorted.
func (c *Catalog) Tables() []string {
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns the rows of table in file order.
func (c *Catalog) Entries(table string) []Entry {
	return c.tables[table]
}

// MasterWriter receives reference rows (store/sqlite implements it).
type MasterWriter interface {
	SaveMasterRow(ctx context.Context, table, label string, fields map[string]string) error
}

// SeedInto copies every row into w.
func (c *Catalog) SeedInto(ctx context.Context, w MasterWriter) error {
	for _, table := range c.Tables() {
		for _, e := range c.tables[table] {
			fields := make(map[string]string, len(e))
			for k, v := range e {
				if k != LabelField {
					fields[k] = v
				}
			}
			if err := w.SaveMasterRow(ctx, table, e.Label(), fields); err != nil {
				return fmt.Errorf("failed to seed %s/%s: %w", table, e.Label(), err)
			}
		}
	}
	return nil
}
