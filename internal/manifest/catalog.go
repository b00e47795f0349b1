package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrRunNotFound is returned by LatestRun when a day has no recorded run.
var ErrRunNotFound = errors.New("manifest: run not found")

// Catalog records pipeline runs and the files they wrote.
type Catalog interface {
	// RecordRun stores a finished run together with its table files in one
	// transaction.
	RecordRun(ctx context.Context, run *RunRecord, tables []*TableRecord) error

	// LatestRun returns the most recent run of day.
	LatestRun(ctx context.Context, day string) (*RunRecord, error)

	// ListTables returns the current table files of day ordered by kind
	// and table name.
	ListTables(ctx context.Context, day string) ([]*TableRecord, error)

	Close() error
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID      string
	Day        string
	BatchID    string
	SourceFile string
	Format     string
	Lines      int64
	BronzeRows int64
	Quarantine map[string]int64
	SilverRows int64
	GoldEvents int64
	Sessions   int64
	Users      int64
	Purchases  int64
	StartedAt  time.Time
	FinishedAt time.Time
}

// TableRecord is one row of the tables table.
type TableRecord struct {
	FileID    string
	RunID     string
	Table     string
	Day       string
	Kind      string // silver, gold or quarantine
	Path      string
	RowCount  int64
	SizeBytes int64
	Format    string
	CreatedAt time.Time
}

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex // single writer
}

// Open opens the catalog at dbPath, creating the file and schema if needed.
func Open(dbPath string) (*SQLiteCatalog, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("manifest: failed to create directory: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("manifest: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	c := &SQLiteCatalog{db: db, dbPath: dbPath}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("manifest: failed to initialize schema: %w", err)
	}
	return c, nil
}

func (c *SQLiteCatalog) initSchema() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, stmt := range AllSchemaSQL() {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// RecordRun stores run and its tables. Empty RunID and FileID values are
// filled with new UUIDs.
func (c *SQLiteCatalog) RecordRun(ctx context.Context, run *RunRecord, tables []*TableRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	quarantine := run.Quarantine
	if quarantine == nil {
		quarantine = map[string]int64{}
	}
	qJSON, err := json.Marshal(quarantine)
	if err != nil {
		return fmt.Errorf("manifest: failed to marshal quarantine counts: %w", err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("manifest: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, day, batch_id, source_file, format,
			lines, bronze_rows, quarantine_json, silver_rows, gold_events,
			sessions, users, purchases, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Day, run.BatchID, run.SourceFile, run.Format,
		run.Lines, run.BronzeRows, string(qJSON), run.SilverRows, run.GoldEvents,
		run.Sessions, run.Users, run.Purchases, run.StartedAt.UnixNano(), run.FinishedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("manifest: failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tables (
			file_id, run_id, table_name, day, kind, path,
			row_count, size_bytes, format, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			file_id = excluded.file_id,
			run_id = excluded.run_id,
			table_name = excluded.table_name,
			day = excluded.day,
			kind = excluded.kind,
			row_count = excluded.row_count,
			size_bytes = excluded.size_bytes,
			format = excluded.format,
			created_at = excluded.created_at`)
	if err != nil {
		return fmt.Errorf("manifest: failed to prepare table insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tables {
		if t.FileID == "" {
			t.FileID = uuid.New().String()
		}
		t.RunID = run.RunID
		if _, err := stmt.ExecContext(ctx,
			t.FileID, t.RunID, t.Table, t.Day, t.Kind, t.Path,
			t.RowCount, t.SizeBytes, t.Format, t.CreatedAt.UnixNano(),
		); err != nil {
			return fmt.Errorf("manifest: failed to insert table %s: %w", t.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("manifest: failed to commit run: %w", err)
	}
	return nil
}

// LatestRun returns the most recently finished run of day.
func (c *SQLiteCatalog) LatestRun(ctx context.Context, day string) (*RunRecord, error) {
	var r RunRecord
	var qJSON string
	var startedAt, finishedAt int64

	err := c.db.QueryRowContext(ctx, `
		SELECT run_id, day, batch_id, source_file, format,
			lines, bronze_rows, quarantine_json, silver_rows, gold_events,
			sessions, users, purchases, started_at, finished_at
		FROM runs WHERE day = ?
		ORDER BY finished_at DESC, rowid DESC LIMIT 1`, day,
	).Scan(
		&r.RunID, &r.Day, &r.BatchID, &r.SourceFile, &r.Format,
		&r.Lines, &r.BronzeRows, &qJSON, &r.SilverRows, &r.GoldEvents,
		&r.Sessions, &r.Users, &r.Purchases, &startedAt, &finishedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: day %s", ErrRunNotFound, day)
		}
		return nil, fmt.Errorf("manifest: failed to query run: %w", err)
	}
	if err := json.Unmarshal([]byte(qJSON), &r.Quarantine); err != nil {
		return nil, fmt.Errorf("manifest: failed to unmarshal quarantine counts: %w", err)
	}
	r.StartedAt = time.Unix(0, startedAt).UTC()
	r.FinishedAt = time.Unix(0, finishedAt).UTC()
	return &r, nil
}

// ListTables returns the table files of day.
func (c *SQLiteCatalog) ListTables(ctx context.Context, day string) ([]*TableRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT file_id, run_id, table_name, day, kind, path,
			row_count, size_bytes, format, created_at
		FROM tables WHERE day = ?
		ORDER BY kind, table_name, path`, day)
	if err != nil {
		return nil, fmt.Errorf("manifest: failed to query tables: %w", err)
	}
	defer rows.Close()

	var records []*TableRecord
	for rows.Next() {
		var t TableRecord
		var createdAt int64
		if err := rows.Scan(
			&t.FileID, &t.RunID, &t.Table, &t.Day, &t.Kind, &t.Path,
			&t.RowCount, &t.SizeBytes, &t.Format, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("manifest: failed to scan table: %w", err)
		}
		t.CreatedAt = time.Unix(0, createdAt).UTC()
		records = append(records, &t)
	}
	return records, rows.Err()
}

// Path returns the database file path.
func (c *SQLiteCatalog) Path() string {
	return c.dbPath
}

// Close closes the database connection.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}
