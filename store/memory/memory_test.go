package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/standing-orders/recurring"
)

func TestMemory_RowsAreCopies(t *testing.T) {
	m := New()
	ctx := context.Background()
	row := recurring.Row{"id": "t1", "note": "original"}
	require.NoError(t, m.AppendRow(ctx, recurring.TableTemplates, row))

	// Mutating the caller's map or a read result does not reach the store.
	row["note"] = "changed"
	rows, err := m.ReadAll(ctx, recurring.TableTemplates)
	require.NoError(t, err)
	rows[0]["note"] = "also changed"

	rows, err = m.ReadAll(ctx, recurring.TableTemplates)
	require.NoError(t, err)
	assert.Equal(t, "original", rows[0]["note"])
}

func TestMemory_UpdateAndDelete(t *testing.T) {
	m := New()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, m.AppendRow(ctx, recurring.TableTemplates, recurring.Row{"id": id}))
	}

	require.NoError(t, m.UpdateRow(ctx, recurring.TableTemplates, "b", recurring.Row{"note": "x"}))
	require.NoError(t, m.DeleteRow(ctx, recurring.TableTemplates, "a"))

	rows, err := m.ReadAll(ctx, recurring.TableTemplates)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, recurring.Row{"id": "b", "note": "x"}, rows[0])
	assert.Equal(t, "c", rows[1]["id"])

	assert.ErrorIs(t, m.DeleteRow(ctx, recurring.TableTemplates, "a"), recurring.ErrRowNotFound)
	assert.ErrorIs(t, m.AppendRow(ctx, recurring.TableTemplates, recurring.Row{"id": "c"}), recurring.ErrDuplicateRow)
}

func TestMemory_FailWrites(t *testing.T) {
	m := New()
	ctx := context.Background()
	boom := errors.New("quota exceeded")

	m.FailWrites(recurring.TableLedger, boom)
	assert.ErrorIs(t, m.AppendRow(ctx, recurring.TableLedger, recurring.Row{"row_id": "r1"}), boom)
	require.NoError(t, m.AppendRow(ctx, recurring.TableDocuments, recurring.Row{"artifact_id": "d1"}))

	m.FailWrites(recurring.TableLedger, nil)
	require.NoError(t, m.AppendRow(ctx, recurring.TableLedger, recurring.Row{"row_id": "r1"}))
	assert.Equal(t, 1, m.Len(recurring.TableLedger))

	require.NoError(t, m.Reset(ctx))
	assert.Zero(t, m.Len(recurring.TableLedger))
	assert.Zero(t, m.Len(recurring.TableDocuments))
}
