/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements recurring.TabularStore (templates, ledger, carrier exports,
  documents, cycle runs) and carrier.CodeLookup (master data) on SQLite.

KEY TABLES:
  table_rows:   every logical table's rows, one JSON object of strings per
                row, addressed by (table_name, row_key), ordered by seq
  master_data:  reference rows (label -> code columns) for carrier codes,
                delivery-time bands, cargo handling tags, invoice types

TEXT ONLY:
  Row payloads are JSON objects whose values are all strings, so a postal
  code "0600001" or phone "0120123456" is read back unchanged. Nothing is
  ever stored in a numeric column.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The engine assumes a single writer
  process; SQLite's own locking is the only cross-process protection.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so API reads do not block
  behind the daily cycle's writes.

USAGE:
  store, err := sqlite.New("./data/standing-orders.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  templates := recurring.NewStore(store, recurring.SystemClock{}, nil)

SEE ALSO:
  - recurring/tables.go: TabularStore interface
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/warp/standing-orders/recurring"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// ":memory:" databases are per-connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Logical tables (templates, ledger, exports, documents, cycle runs)
	CREATE TABLE IF NOT EXISTS table_rows (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		table_name TEXT NOT NULL,
		row_key TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_table_rows_key
		ON table_rows(table_name, row_key);
	CREATE INDEX IF NOT EXISTS idx_table_rows_table_seq
		ON table_rows(table_name, seq);

	-- Master data (read-only reference tables)
	CREATE TABLE IF NOT EXISTS master_data (
		table_name TEXT NOT NULL,
		label TEXT NOT NULL,
		fields_json TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (table_name, label)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TABULAR STORE (recurring.TabularStore interface)
// =============================================================================

// AppendRow adds a row at the end of table.
func (s *Store) AppendRow(ctx context.Context, table recurring.Table, row recurring.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := row.Key(table)
	if key == "" {
		return fmt.Errorf("append to %s: missing key column %q", table, table.KeyField())
	}
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO table_rows (table_name, row_key, payload_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, string(table), key, string(payload), now, now)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s/%s", recurring.ErrDuplicateRow, table, key)
		}
		return fmt.Errorf("failed to append to %s: %w", table, err)
	}
	return nil
}

// ReadAll returns every row of table in insertion order.
func (s *Store) ReadAll(ctx context.Context, table recurring.Table) ([]recurring.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT payload_json FROM table_rows WHERE table_name = ? ORDER BY seq ASC",
		string(table),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var result []recurring.Row
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		row := recurring.Row{}
		if err := json.Unmarshal([]byte(payload), &row); err != nil {
			return nil, fmt.Errorf("failed to decode %s row: %w", table, err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// UpdateRow replaces a row's payload, keeping its position.
func (s *Store) UpdateRow(ctx context.Context, table recurring.Table, key string, row recurring.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := row.Clone()
	updated[table.KeyField()] = key
	payload, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE table_rows SET payload_json = ?, updated_at = ?
		WHERE table_name = ? AND row_key = ?
	`, string(payload), time.Now().UTC().Format(time.RFC3339), string(table), key)
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", table, key, err)
	}
	return requireAffected(res, table, key)
}

func (s *Store) DeleteRow(ctx context.Context, table recurring.Table, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM table_rows WHERE table_name = ? AND row_key = ?",
		string(table), key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", table, key, err)
	}
	return requireAffected(res, table, key)
}

// =============================================================================
// MASTER DATA (carrier.CodeLookup interface)
// =============================================================================

// SaveMasterRow upserts one reference row. fields holds the code columns
// (e.g. "yamato_code", "sagawa_code") for the displayed label.
func (s *Store) SaveMasterRow(ctx context.Context, table, label string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode master row: %w", err)
	}

	query := `
		INSERT INTO master_data (table_name, label, fields_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(table_name, label) DO UPDATE SET
			fields_json = excluded.fields_json,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query, table, label, string(payload), time.Now().UTC().Format(time.RFC3339))
	return err
}

// CodeLookup returns the keyField code of the row whose label matches, or
// "" when the label or the field is unknown.
func (s *Store) CodeLookup(table, label, keyField string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload string
	err := s.db.QueryRowContext(context.Background(),
		"SELECT fields_json FROM master_data WHERE table_name = ? AND label = ?",
		table, label,
	).Scan(&payload)
	if err != nil {
		return ""
	}

	fields := map[string]string{}
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return ""
	}
	return fields[keyField]
}

// =============================================================================
// ADMIN OPERATIONS
// =============================================================================

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM table_rows")
	return err
}

// Helper functions

func requireAffected(res sql.Result, table recurring.Table, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", recurring.ErrRowNotFound, table, key)
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
	}
	return false
}
