package table

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/arkilian/weblog/internal/bloom"
)

// Sidecar is the .meta.json file written next to every table file.
type Sidecar struct {
	Table        string                      `json:"table"`
	Day          string                      `json:"day"`
	Format       Format                      `json:"format"`
	BatchID      string                      `json:"batch_id"`
	Stats        Stats                       `json:"stats"`
	BloomFilters map[string]*BloomFilterMeta `json:"bloom_filters,omitempty"`
	CreatedAt    time.Time                   `json:"created_at"`
}

// Stats holds file-level statistics.
type Stats struct {
	RowCount  int64      `json:"row_count"`
	SizeBytes int64      `json:"size_bytes"`
	MinTS     *time.Time `json:"min_ts,omitempty"`
	MaxTS     *time.Time `json:"max_ts,omitempty"`
}

// BloomFilterMeta holds a serialized bloom filter.
type BloomFilterMeta struct {
	Algorithm  string `json:"algorithm"`
	NumBits    int    `json:"num_bits"`
	NumHashes  int    `json:"num_hashes"`
	Base64Data string `json:"base64_data"`
}

// Filter decodes the bloom filter.
func (m *BloomFilterMeta) Filter() (*bloom.Filter, error) {
	return bloom.FromBase64(m.Base64Data)
}

// tsColumns are the timestamp columns summarized in Stats, by preference.
var tsColumns = []string{"ts", "start_ts", "ingestion_ts"}

// bloomColumn is indexed with a bloom filter when a table has it.
const bloomColumn = "user_id"

// NewSidecar computes the sidecar of a written table.
func NewSidecar(t *Table, info *FileInfo, day, batchID string, createdAt time.Time) *Sidecar {
	s := &Sidecar{
		Table:   t.Name,
		Day:     day,
		Format:  info.Format,
		BatchID: batchID,
		Stats: Stats{
			RowCount:  info.RowCount,
			SizeBytes: info.SizeBytes,
		},
		CreatedAt: createdAt.UTC(),
	}

	for _, name := range tsColumns {
		if idx := t.ColumnIndex(name); idx >= 0 {
			s.Stats.MinTS, s.Stats.MaxTS = timeRange(t, idx)
			break
		}
	}

	if idx := t.ColumnIndex(bloomColumn); idx >= 0 && t.Len() > 0 {
		distinct := make(map[string]bool)
		for _, row := range t.Rows {
			if v, ok := row[idx].(string); ok {
				distinct[v] = true
			}
		}
		f := bloom.New(len(distinct), bloom.DefaultFPR)
		for v := range distinct {
			f.Add(v)
		}
		s.BloomFilters = map[string]*BloomFilterMeta{
			bloomColumn: {
				Algorithm:  bloom.Algorithm,
				NumBits:    f.NumBits(),
				NumHashes:  f.NumHashes(),
				Base64Data: f.Base64(),
			},
		}
	}
	return s
}

func timeRange(t *Table, idx int) (minTS, maxTS *time.Time) {
	for _, row := range t.Rows {
		ts, ok := row[idx].(time.Time)
		if !ok {
			continue
		}
		if minTS == nil || ts.Before(*minTS) {
			v := ts
			minTS = &v
		}
		if maxTS == nil || ts.After(*maxTS) {
			v := ts
			maxTS = &v
		}
	}
	return minTS, maxTS
}

// MightContainUser reports whether the table may hold rows for userID. Tables
// without a filter always may.
func (s *Sidecar) MightContainUser(userID string) bool {
	meta, ok := s.BloomFilters[bloomColumn]
	if !ok {
		return true
	}
	f, err := meta.Filter()
	if err != nil {
		return true
	}
	return f.Contains(userID)
}

// SidecarPath returns the sidecar path of a table file.
func SidecarPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".meta.json"
}

// WriteSidecar writes s atomically next to the table file at path.
func WriteSidecar(s *Sidecar, path string) (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("table: failed to marshal sidecar: %w", err)
	}
	sidecarPath := SidecarPath(path)
	if err := WriteFileAtomic(sidecarPath, data, 0644); err != nil {
		return "", fmt.Errorf("table: failed to write sidecar: %w", err)
	}
	return sidecarPath, nil
}

// ReadSidecar reads the sidecar of the table file at path.
func ReadSidecar(path string) (*Sidecar, error) {
	data, err := os.ReadFile(SidecarPath(path))
	if err != nil {
		return nil, fmt.Errorf("table: failed to read sidecar: %w", err)
	}
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("table: failed to unmarshal sidecar: %w", err)
	}
	return &s, nil
}

// WriteFileAtomic writes content to a temp file in the destination directory,
// syncs it and renames it over path.
func WriteFileAtomic(path string, content []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	cleanup = false
	return nil
}
