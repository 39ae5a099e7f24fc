package masterdata

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_CarrierCodes(t *testing.T) {
	cat := Default()

	tests := []struct {
		table, label, field, want string
	}{
		{"cool_classes", "冷蔵", "yamato_code", "2"},
		{"cool_classes", "冷蔵", "sagawa_code", "002"},
		{"cool_classes", "冷凍", "yamato_code", "1"},
		{"cool_classes", "冷凍", "sagawa_code", "003"},
		{"cargo_handling", "ナマモノ", "yamato_code", "06"},
		{"cargo_handling", "ナマモノ", "sagawa_code", "015"},
		{"invoice_types", "発払い", "yamato_code", "0"},
		{"invoice_types", "発払い", "sagawa_code", "1"},
		{"invoice_types", "コレクト", "sagawa_code", ""},
		{"cool_classes", "Dry ice", "yamato_code", ""},
		{"no_such_table", "冷蔵", "yamato_code", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cat.CodeLookup(tt.table, tt.label, tt.field), "%s/%s/%s", tt.table, tt.label, tt.field)
	}
}

func TestParse_KeepsCodesAsText(t *testing.T) {
	cat, err := Parse([]byte(`
cool_classes:
  - label: 冷蔵
    sagawa_code: "002"
  - label: " 冷凍 "
    sagawa_code: 003
`))
	require.NoError(t, err)

	assert.Equal(t, "002", cat.CodeLookup("cool_classes", " 冷蔵 ", "sagawa_code"))
	assert.Equal(t, []string{"cool_classes"}, cat.Tables())
	assert.Len(t, cat.Entries("cool_classes"), 2)
}

func TestParse_Rejects(t *testing.T) {
	_, err := Parse([]byte("cool_classes:\n  - sagawa_code: \"002\"\n"))
	assert.ErrorContains(t, err, `row 1: missing "label"`)

	_, err = Parse([]byte("cool_classes: [unclosed"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.yaml")
	require.NoError(t, os.WriteFile(path, []byte("invoice_types:\n  - label: 着払い\n    yamato_code: \"5\"\n"), 0o644))

	cat, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "5", cat.CodeLookup("invoice_types", "着払い", "yamato_code"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

type recordingWriter struct {
	rows map[string]map[string]string
	fail error
}

func (w *recordingWriter) SaveMasterRow(_ context.Context, table, label string, fields map[string]string) error {
	if w.fail != nil {
		return w.fail
	}
	w.rows[table+"/"+label] = fields
	return nil
}

func TestSeedInto(t *testing.T) {
	w := &recordingWriter{rows: map[string]map[string]string{}}

	require.NoError(t, Default().SeedInto(context.Background(), w))

	assert.Equal(t, map[string]string{"yamato_code": "2", "sagawa_code": "002"}, w.rows["cool_classes/冷蔵"])
	assert.NotContains(t, w.rows["cool_classes/冷蔵"], LabelField)
	assert.Contains(t, w.rows, "delivery_time_bands/午前中")
}

func TestSeedInto_StopsOnError(t *testing.T) {
	boom := errors.New("read-only database")
	w := &recordingWriter{rows: map[string]map[string]string{}, fail: boom}

	err := Default().SeedInto(context.Background(), w)

	assert.ErrorIs(t, err, boom)
}
