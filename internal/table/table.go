// Package table provides the columnar table model of the pipeline outputs and
// the writers that persist tables as Parquet or SQLite files.
package table

import (
	"fmt"
	"time"
)

// ColumnType is the logical type of a column.
type ColumnType string

const (
	TypeString    ColumnType = "string"
	TypeInt64     ColumnType = "int64"
	TypeFloat64   ColumnType = "float64"
	TypeBool      ColumnType = "bool"
	TypeTimestamp ColumnType = "timestamp"
)

// Column describes one column.
type Column struct {
	Name string
	Type ColumnType

	// Compressed string columns are stored snappy-compressed where the format
	// supports blobs (SQLite)
	Compressed bool
}

// Table is a named, typed set of rows. Each row holds one value per column:
// string, int64, float64, bool or time.Time.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Validate checks that every row matches the column types.
func (t *Table) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table: name is required")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s: no columns", t.Name)
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("table %s: row %d has %d values, want %d", t.Name, i, len(row), len(t.Columns))
		}
		for j, v := range row {
			if !t.Columns[j].Type.accepts(v) {
				return fmt.Errorf("table %s: row %d column %s: unexpected %T for %s",
					t.Name, i, t.Columns[j].Name, v, t.Columns[j].Type)
			}
		}
	}
	return nil
}

func (ct ColumnType) accepts(v any) bool {
	switch v.(type) {
	case string:
		return ct == TypeString
	case int64:
		return ct == TypeInt64
	case float64:
		return ct == TypeFloat64
	case bool:
		return ct == TypeBool
	case time.Time:
		return ct == TypeTimestamp
	default:
		return false
	}
}

// duckDBType maps a column type to a DuckDB type.
func (ct ColumnType) duckDBType() string {
	switch ct {
	case TypeInt64:
		return "BIGINT"
	case TypeFloat64:
		return "DOUBLE"
	case TypeBool:
		return "BOOLEAN"
	case TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

// sqliteType maps a column type to a SQLite storage class. Timestamps are
// stored as Unix nanoseconds.
func (c Column) sqliteType() string {
	switch c.Type {
	case TypeInt64, TypeBool, TypeTimestamp:
		return "INTEGER"
	case TypeFloat64:
		return "REAL"
	default:
		if c.Compressed {
			return "BLOB"
		}
		return "TEXT"
	}
}
