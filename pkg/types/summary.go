package types

import "time"

// OutputFile is one file written by a run.
type OutputFile struct {
	Layer     string `json:"layer"`
	Table     string `json:"table"`
	Path      string `json:"path"`
	RowCount  int64  `json:"row_count"`
	SizeBytes int64  `json:"size_bytes"`

	// SidecarPath is the .meta.json written next to a table file
	SidecarPath string `json:"sidecar_path,omitempty"`
}

// RunSummary reports the counts and outputs of one pipeline run.
type RunSummary struct {
	RunID      string `json:"run_id"`
	Day        string `json:"day"`
	BatchID    string `json:"batch_id"`
	SourceFile string `json:"source_file"`
	Format     string `json:"format"`

	// Lines counts non-blank input lines; BronzeRows those that decoded to
	// JSON objects
	Lines      int `json:"lines"`
	BronzeRows int `json:"bronze_rows"`

	Quarantine map[ErrorKind]int `json:"quarantine"`
	SilverRows int               `json:"silver_rows"`
	GoldEvents int               `json:"gold_events"`
	Sessions   int               `json:"sessions"`
	Users      int               `json:"users"`
	Purchases  int               `json:"purchases"`

	Files []OutputFile `json:"files"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// QuarantineRows returns the number of quarantined rows across kinds.
func (s *RunSummary) QuarantineRows() int {
	n := 0
	for _, c := range s.Quarantine {
		n += c
	}
	return n
}

// Coverage returns the share of input lines that reached the silver layer.
func (s *RunSummary) Coverage() float64 {
	if s.Lines == 0 {
		return 0
	}
	return float64(s.SilverRows) / float64(s.Lines)
}
