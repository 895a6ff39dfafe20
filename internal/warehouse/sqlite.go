package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/loadstone/loadstone/pkg/types"
)

// SQLiteSink implements TableSink on a local SQLite database. It exists
// for development and integration testing, where a warehouse is not
// reachable. A batch is one transaction: it commits entirely or not at all.
type SQLiteSink struct {
	db    *sql.DB
	table string

	mu     sync.RWMutex
	schema types.Schema
}

// NewSQLiteSink opens (or creates) the database file at path.
func NewSQLiteSink(path, table string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return &SQLiteSink{db: db, table: table}, nil
}

// EnsureTable creates the destination table if it does not exist and
// records the column order for subsequent writes.
func (s *SQLiteSink) EnsureTable(ctx context.Context, schema types.Schema) error {
	cols := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		col := fmt.Sprintf("%q %s", f.Name, sqliteType(f))
		if f.Mode == types.FieldModeRequired {
			col += " NOT NULL"
		}
		cols = append(cols, col)
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (%s)", s.table, strings.Join(cols, ", "))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}

	s.mu.Lock()
	s.schema = schema
	s.mu.Unlock()
	return nil
}

// WriteBatch inserts all rows inside a single transaction.
func (s *SQLiteSink) WriteBatch(ctx context.Context, rows []types.Record) error {
	s.mu.RLock()
	schema := s.schema
	s.mu.RUnlock()
	if len(schema.Fields) == 0 {
		return fmt.Errorf("table %s not initialized: EnsureTable must run first", s.table)
	}

	names := make([]string, 0, len(schema.Fields))
	placeholders := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		names = append(names, fmt.Sprintf("%q", f.Name))
		placeholders = append(placeholders, "?")
	}
	insert := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		s.table, strings.Join(names, ", "), strings.Join(placeholders, ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]interface{}, 0, len(schema.Fields))
		for _, f := range schema.Fields {
			arg, convErr := sqliteValue(row[f.Name])
			if convErr != nil {
				tx.Rollback()
				return fmt.Errorf("field %q: %w", f.Name, convErr)
			}
			args = append(args, arg)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func sqliteType(f types.FieldDescriptor) string {
	if f.Mode == types.FieldModeRepeated {
		return "TEXT" // stored as JSON
	}
	switch f.Type {
	case types.FieldTypeInteger:
		return "INTEGER"
	case types.FieldTypeFloat:
		return "REAL"
	case types.FieldTypeBoolean:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// sqliteValue maps a record value onto a driver-compatible argument.
// Nested mappings and sequences are stored as JSON text.
func sqliteValue(v interface{}) (interface{}, error) {
	switch tv := v.(type) {
	case nil, string, bool, float64, int, int64:
		return tv, nil
	case map[string]interface{}, []interface{}:
		raw, err := json.Marshal(tv)
		if err != nil {
			return nil, fmt.Errorf("cannot encode nested value: %w", err)
		}
		return string(raw), nil
	default:
		return fmt.Sprintf("%v", tv), nil
	}
}
