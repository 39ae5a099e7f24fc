// Package memory provides an in-memory recurring.TabularStore.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/standing-orders/recurring"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu     sync.RWMutex
	tables map[recurring.Table][]recurring.Row

	// failures injects errors per table for tests.
	failures map[recurring.Table]error
}

func New() *Memory {
	return &Memory{
		tables:   make(map[recurring.Table][]recurring.Row),
		failures: make(map[recurring.Table]error),
	}
}

// AppendRow adds a row at the end of table.
func (m *Memory) AppendRow(_ context.Context, table recurring.Table, row recurring.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[table]; err != nil {
		return err
	}
	key := row.Key(table)
	if key == "" {
		return fmt.Errorf("append to %s: missing key column %q", table, table.KeyField())
	}
	if m.indexLocked(table, key) >= 0 {
		return fmt.Errorf("%w: %s/%s", recurring.ErrDuplicateRow, table, key)
	}
	m.tables[table] = append(m.tables[table], row.Clone())
	return nil
}

// ReadAll returns copies of every row, in insertion order.
func (m *Memory) ReadAll(_ context.Context, table recurring.Table) ([]recurring.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.tables[table]
	result := make([]recurring.Row, len(rows))
	for i, r := range rows {
		result[i] = r.Clone()
	}
	return result, nil
}

// UpdateRow replaces the row in place, keeping its position.
func (m *Memory) UpdateRow(_ context.Context, table recurring.Table, key string, row recurring.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[table]; err != nil {
		return err
	}
	i := m.indexLocked(table, key)
	if i < 0 {
		return fmt.Errorf("%w: %s/%s", recurring.ErrRowNotFound, table, key)
	}
	updated := row.Clone()
	updated[table.KeyField()] = key
	m.tables[table][i] = updated
	return nil
}

func (m *Memory) DeleteRow(_ context.Context, table recurring.Table, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[table]; err != nil {
		return err
	}
	i := m.indexLocked(table, key)
	if i < 0 {
		return fmt.Errorf("%w: %s/%s", recurring.ErrRowNotFound, table, key)
	}
	rows := m.tables[table]
	m.tables[table] = append(rows[:i:i], rows[i+1:]...)
	return nil
}

// FailWrites makes every write to table return err until cleared with nil.
func (m *Memory) FailWrites(table recurring.Table, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, table)
		return
	}
	m.failures[table] = err
}

// Reset drops every row. Injected failures are kept.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables = make(map[recurring.Table][]recurring.Row)
	return nil
}

// Len returns the number of rows in table.
func (m *Memory) Len(table recurring.Table) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[table])
}

func (m *Memory) indexLocked(table recurring.Table, key string) int {
	for i, r := range m.tables[table] {
		if r.Key(table) == key {
			return i
		}
	}
	return -1
}
