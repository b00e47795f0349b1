package table

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang/snappy"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteWriter writes each table as a single-table SQLite database.
type SQLiteWriter struct{}

// NewSQLiteWriter creates a SQLite table writer.
func NewSQLiteWriter() *SQLiteWriter {
	return &SQLiteWriter{}
}

// Format returns FormatSQLite.
func (w *SQLiteWriter) Format() Format { return FormatSQLite }

// Write builds the database under WAL, then checkpoints and switches to
// DELETE journaling so the published file is self-contained.
func (w *SQLiteWriter) Write(ctx context.Context, t *Table, path string) (*FileInfo, error) {
	if err := prepare(t, path); err != nil {
		return nil, err
	}

	tmp := tempPath(path)
	if err := w.build(ctx, t, tmp); err != nil {
		removeSQLite(tmp)
		return nil, err
	}
	return commit(tmp, path, t, FormatSQLite)
}

func (w *SQLiteWriter) build(ctx context.Context, t *Table, path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("table: failed to create SQLite database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("table: failed to set journal mode: %w", err)
	}

	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = quoteIdent(c.Name) + " " + c.sqliteType()
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(t.Name), strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("table: failed to create table %s: %w", t.Name, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("table: failed to begin transaction: %w", err)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(t.Name), columnList(t.Columns), placeholders(len(t.Columns)))
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("table: failed to prepare insert statement: %w", err)
	}

	args := make([]any, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			args[i] = toSQLite(t.Columns[i], v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			stmt.Close()
			_ = tx.Rollback()
			return fmt.Errorf("table: failed to insert row: %w", err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("table: failed to commit rows: %w", err)
	}

	if err := writeSchema(ctx, db, t.Columns); err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("table: failed to checkpoint WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		return fmt.Errorf("table: failed to set journal mode to DELETE: %w", err)
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("table: failed to close database: %w", err)
	}
	return nil
}

func toSQLite(c Column, v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().UnixNano()
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case string:
		if c.Compressed {
			return snappy.Encode(nil, []byte(x))
		}
		return x
	default:
		return v
	}
}

func fromSQLite(c Column, v any) (any, error) {
	switch c.Type {
	case TypeTimestamp:
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("table: column %s: expected integer timestamp, got %T", c.Name, v)
		}
		return time.Unix(0, n).UTC(), nil
	case TypeBool:
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("table: column %s: expected integer bool, got %T", c.Name, v)
		}
		return n != 0, nil
	case TypeString:
		switch x := v.(type) {
		case []byte:
			if c.Compressed {
				decoded, err := snappy.Decode(nil, x)
				if err != nil {
					return nil, fmt.Errorf("table: column %s: %w", c.Name, err)
				}
				return string(decoded), nil
			}
			return string(x), nil
		case string:
			return x, nil
		}
	}
	return v, nil
}

// schemaTable records the logical column types, which SQLite storage classes
// cannot carry.
const schemaTable = "_weblog_columns"

func writeSchema(ctx context.Context, db *sql.DB, cols []Column) error {
	createSQL := `
		CREATE TABLE ` + schemaTable + ` (
			position INTEGER PRIMARY KEY,
			column_name TEXT NOT NULL,
			column_type TEXT NOT NULL,
			compressed INTEGER NOT NULL
		)
	`
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("table: failed to create schema table: %w", err)
	}
	for i, c := range cols {
		if _, err := db.ExecContext(ctx,
			"INSERT INTO "+schemaTable+" (position, column_name, column_type, compressed) VALUES (?, ?, ?, ?)",
			i, c.Name, string(c.Type), c.Compressed); err != nil {
			return fmt.Errorf("table: failed to record column %s: %w", c.Name, err)
		}
	}
	return nil
}

// readSQLite reads back a file written by SQLiteWriter.
func readSQLite(ctx context.Context, path string) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("table: failed to open %s: %w", path, err)
	}
	defer db.Close()

	var name string
	if err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name != ? ORDER BY name LIMIT 1",
		schemaTable).Scan(&name); err != nil {
		return nil, fmt.Errorf("table: no table in %s: %w", path, err)
	}

	t := &Table{Name: name}
	schemaRows, err := db.QueryContext(ctx,
		"SELECT column_name, column_type, compressed FROM "+schemaTable+" ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("table: failed to read schema of %s: %w", path, err)
	}
	for schemaRows.Next() {
		var c Column
		var typ string
		if err := schemaRows.Scan(&c.Name, &typ, &c.Compressed); err != nil {
			schemaRows.Close()
			return nil, err
		}
		c.Type = ColumnType(typ)
		t.Columns = append(t.Columns, c)
	}
	schemaRows.Close()

	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s", columnList(t.Columns), quoteIdent(name)))
	if err != nil {
		return nil, fmt.Errorf("table: failed to query %s: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		raw := make([]any, len(t.Columns))
		ptrs := make([]any, len(raw))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]any, len(raw))
		for i, v := range raw {
			if row[i], err = fromSQLite(t.Columns[i], v); err != nil {
				return nil, err
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, rows.Err()
}

func removeSQLite(path string) {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		_ = os.Remove(p)
	}
}
