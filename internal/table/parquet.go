package table

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
)

// ParquetWriter writes tables as ZSTD-compressed Parquet through an in-memory
// DuckDB instance.
type ParquetWriter struct{}

// NewParquetWriter creates a Parquet table writer.
func NewParquetWriter() *ParquetWriter {
	return &ParquetWriter{}
}

// Format returns FormatParquet.
func (w *ParquetWriter) Format() Format { return FormatParquet }

// Write loads the rows into a DuckDB table and exports it with COPY.
func (w *ParquetWriter) Write(ctx context.Context, t *Table, path string) (*FileInfo, error) {
	if err := prepare(t, path); err != nil {
		return nil, err
	}

	db, err := openDuckDB(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = quoteIdent(c.Name) + " " + c.Type.duckDBType()
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(t.Name), strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return nil, fmt.Errorf("table: failed to create table %s: %w", t.Name, err)
	}

	if err := insertRows(ctx, db, t); err != nil {
		return nil, err
	}

	tmp := tempPath(path)
	// Row order is the insertion order; a single thread keeps output bytes stable.
	exportSQL := fmt.Sprintf("COPY (SELECT * FROM %s) TO %s (FORMAT PARQUET, COMPRESSION 'ZSTD')",
		quoteIdent(t.Name), quoteLiteral(tmp))
	if _, err := db.ExecContext(ctx, exportSQL); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("table: failed to export %s to parquet: %w", t.Name, err)
	}
	return commit(tmp, path, t, FormatParquet)
}

func openDuckDB(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("table: failed to open duckdb: %w", err)
	}
	// One connection: the in-memory database lives and dies with it.
	db.SetMaxOpenConns(1)
	for _, stmt := range []string{"SET threads=1", "SET preserve_insertion_order=true"} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("table: failed to configure duckdb (%s): %w", stmt, err)
		}
	}
	return db, nil
}

func insertRows(ctx context.Context, db *sql.DB, t *Table) error {
	if len(t.Rows) == 0 {
		return nil
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
	defer stmt.Close()

	for _, row := range t.Rows {
		args := make([]any, len(row))
		for i, v := range row {
			if ts, ok := v.(time.Time); ok {
				v = ts.UTC()
			}
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("table: failed to insert row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("table: failed to commit rows: %w", err)
	}
	return nil
}

// readParquet reads a Parquet file into a table named after the file.
func readParquet(ctx context.Context, path string) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}
	db, err := openDuckDB(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SELECT * FROM read_parquet("+quoteLiteral(path)+")")
	if err != nil {
		return nil, fmt.Errorf("table: failed to read %s: %w", path, err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(filepath.Base(path), "."+string(FormatParquet))
	t := &Table{Name: base, Columns: make([]Column, len(colTypes))}
	for i, ct := range colTypes {
		t.Columns[i] = Column{Name: ct.Name(), Type: columnFromDuckDB(ct.DatabaseTypeName())}
	}

	for rows.Next() {
		row := make([]any, len(t.Columns))
		ptrs := make([]any, len(row))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range row {
			switch x := v.(type) {
			case time.Time:
				row[i] = x.UTC()
			case int32:
				row[i] = int64(x)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, rows.Err()
}

func columnFromDuckDB(dbType string) ColumnType {
	switch {
	case dbType == "BIGINT" || dbType == "INTEGER":
		return TypeInt64
	case dbType == "DOUBLE" || dbType == "FLOAT":
		return TypeFloat64
	case dbType == "BOOLEAN":
		return TypeBool
	case strings.HasPrefix(dbType, "TIMESTAMP"):
		return TypeTimestamp
	default:
		return TypeString
	}
}
