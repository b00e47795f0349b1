package table

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Format is a table file format.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatSQLite  Format = "sqlite"
)

// FileInfo describes a written table file.
type FileInfo struct {
	Table     string
	Path      string
	Format    Format
	RowCount  int64
	SizeBytes int64
}

// Writer persists a table to a file. Implementations write to a temporary file
// in the destination directory and rename it into place, so readers never see
// a partial file and reruns replace the previous file.
type Writer interface {
	Write(ctx context.Context, t *Table, path string) (*FileInfo, error)
	Format() Format
}

// NewWriter returns the writer for format.
func NewWriter(format Format) (Writer, error) {
	switch format {
	case FormatParquet:
		return NewParquetWriter(), nil
	case FormatSQLite:
		return NewSQLiteWriter(), nil
	default:
		return nil, fmt.Errorf("table: unsupported format %q", format)
	}
}

// Path returns <dir>/<day>/<name>.<ext>.
func Path(dir, day, name string, format Format) string {
	return filepath.Join(dir, day, name+"."+string(format))
}

// tempPath returns a hidden sibling of path for building the file.
func tempPath(path string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp-"+uuid.New().String()[:8])
}

// commit renames a finished temp file over path and reports its size.
func commit(tmp, path string, t *Table, format Format) (*FileInfo, error) {
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("table: failed to rename %s: %w", tmp, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("table: failed to stat %s: %w", path, err)
	}
	return &FileInfo{
		Table:     t.Name,
		Path:      path,
		Format:    format,
		RowCount:  int64(t.Len()),
		SizeBytes: info.Size(),
	}, nil
}

func prepare(t *Table, path string) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("table: failed to create output directory: %w", err)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func columnList(cols []Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quoteIdent(c.Name)
	}
	return strings.Join(names, ", ")
}

// Read loads a table file written by a Writer, choosing the reader from the
// file extension.
func Read(ctx context.Context, path string) (*Table, error) {
	switch strings.TrimPrefix(filepath.Ext(path), ".") {
	case string(FormatParquet):
		return readParquet(ctx, path)
	case string(FormatSQLite):
		return readSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("table: unknown file type %s", path)
	}
}
