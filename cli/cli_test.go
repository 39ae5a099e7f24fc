package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/standing-orders/cli"
	"github.com/warp/standing-orders/scheduler"
)

const importFile = `[
  {
    "interval": {"type": "weekly", "weekday": 1},
    "first_shipping_date": "2025-03-10",
    "first_delivery_date": "2025-03-11",
    "customer": {"name": "Sato Farm", "postal_code": "0600001", "address": "Sapporo", "phone": "0120111222"},
    "recipient": {"name": "Suzuki", "postal_code": "0010010", "address": "Tokyo", "phone": "0311112222"},
    "shipping": {"delivery_method": "Sagawa Express", "cool_class": "冷凍"},
    "checklist": {"receipt": true},
    "lines": [{"product_name": "Scallops", "unit_price": "4200", "quantity": 1}]
  },
  {
    "interval": 2,
    "status": "paused",
    "first_shipping_date": "2025-03-10",
    "first_delivery_date": "2025-03-10",
    "customer": {"name": "Kato Dairy"},
    "shipping": {"delivery_method": "Store pickup"},
    "lines": [{"product_name": "Butter", "unit_price": "850", "quantity": 2}]
  }
]`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func setup(t *testing.T) (db string, file string) {
	t.Helper()
	dir := t.TempDir()
	file = filepath.Join(dir, "templates.json")
	require.NoError(t, os.WriteFile(file, []byte(importFile), 0o644))
	return filepath.Join(dir, "orders.db"), file
}

func TestImportThenRun(t *testing.T) {
	// GIVEN: An imported file with one active and one paused template
	db, file := setup(t)
	out, err := execute(t, "--db", db, "import", file)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "✓ Created template"))

	// WHEN: The cycle runs seven days before the first shipping date
	out, err = execute(t, "--db", db, "run", "--today", "2025-03-03", "--json")
	require.NoError(t, err)

	// THEN: Only the active template is materialized
	var report scheduler.CycleReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Evaluated)
	assert.Equal(t, 1, report.Executed)
	assert.Empty(t, report.Failures)

	out, err = execute(t, "--db", db, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, report.RunID)
	assert.Contains(t, out, "2025-03-03")
}

func TestImport_DryRunWritesNothing(t *testing.T) {
	db, file := setup(t)

	out, err := execute(t, "--db", db, "import", "--dry-run", file)
	require.NoError(t, err)
	assert.Contains(t, out, "2 templates valid")

	out, err = execute(t, "--db", db, "templates", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No templates found.")
}

func TestImport_InvalidFileFails(t *testing.T) {
	db, _ := setup(t)
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"interval": {"type": "yearly"}}]`), 0o644))

	_, err := execute(t, "--db", db, "import", bad)

	assert.ErrorContains(t, err, "template 1")
}

func TestTemplatesList_Filters(t *testing.T) {
	db, file := setup(t)
	_, err := execute(t, "--db", db, "import", file)
	require.NoError(t, err)

	out, err := execute(t, "--db", db, "templates", "list", "--status", "paused")
	require.NoError(t, err)
	assert.Contains(t, out, "Kato Dairy")
	assert.NotContains(t, out, "Sato Farm")

	_, err = execute(t, "--db", db, "templates", "list", "--status", "archived")
	assert.Error(t, err)
}

func TestRun_TextReport(t *testing.T) {
	db, file := setup(t)
	_, err := execute(t, "--db", db, "import", file)
	require.NoError(t, err)

	out, err := execute(t, "--db", db, "run", "--today", "2025-03-03")
	require.NoError(t, err)
	assert.Contains(t, out, "Cycle ")
	assert.Contains(t, out, "Executed:")
	assert.Contains(t, out, "-> order ")
}

func TestRoot_RejectsBadConfig(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("scheduler:\n  run_at: noon\n"), 0o644))

	_, err := execute(t, "--config", cfg, "templates", "list")

	assert.ErrorContains(t, err, "run_at")
}
