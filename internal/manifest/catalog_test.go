package manifest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	catalog, err := Open(filepath.Join(t.TempDir(), "nested", "manifest.db"))
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}
	t.Cleanup(func() { catalog.Close() })
	return catalog
}

func TestCatalog_RecordAndLatestRun(t *testing.T) {
	catalog := openTestCatalog(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 2, 1, 0, 0, 0, time.UTC)

	run := &RunRecord{
		Day: "2025-03-01", BatchID: "B1", SourceFile: "events.ndjson", Format: "sqlite",
		Lines: 10, BronzeRows: 9,
		Quarantine: map[string]int64{"invalid_json": 1, "ts": 2},
		SilverRows: 7, GoldEvents: 7, Sessions: 3, Users: 2, Purchases: 1,
		StartedAt: start, FinishedAt: start.Add(time.Second),
	}
	tables := []*TableRecord{
		{Table: "events_silver", Day: "2025-03-01", Kind: "silver", Path: "/out/silver/events_silver.sqlite", RowCount: 7, SizeBytes: 100, Format: "sqlite", CreatedAt: start},
		{Table: "error_ts", Day: "2025-03-01", Kind: "quarantine", Path: "/out/q/error_ts.sqlite", RowCount: 2, SizeBytes: 50, Format: "sqlite", CreatedAt: start},
	}
	if err := catalog.RecordRun(ctx, run, tables); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if run.RunID == "" || tables[0].FileID == "" || tables[0].RunID != run.RunID {
		t.Errorf("ids not assigned: run=%q table=%+v", run.RunID, tables[0])
	}

	got, err := catalog.LatestRun(ctx, "2025-03-01")
	if err != nil {
		t.Fatalf("LatestRun failed: %v", err)
	}
	if got.RunID != run.RunID || got.SilverRows != 7 || got.Purchases != 1 {
		t.Errorf("run = %+v", got)
	}
	if got.Quarantine["ts"] != 2 || got.Quarantine["invalid_json"] != 1 {
		t.Errorf("quarantine = %v", got.Quarantine)
	}
	if !got.FinishedAt.Equal(run.FinishedAt) {
		t.Errorf("finished_at = %v, want %v", got.FinishedAt, run.FinishedAt)
	}

	list, err := catalog.ListTables(ctx, "2025-03-01")
	if err != nil {
		t.Fatalf("ListTables failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("tables = %d, want 2", len(list))
	}
	if list[0].Kind != "quarantine" || list[1].Table != "events_silver" {
		t.Errorf("order = %s, %s", list[0].Table, list[1].Table)
	}
}

func TestCatalog_RerunReplacesTables(t *testing.T) {
	catalog := openTestCatalog(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 2, 1, 0, 0, 0, time.UTC)

	for i, rows := range []int64{5, 8} {
		run := &RunRecord{
			Day: "2025-03-01", BatchID: "B", SilverRows: rows,
			StartedAt: start.Add(time.Duration(i) * time.Hour), FinishedAt: start.Add(time.Duration(i) * time.Hour),
		}
		tbl := &TableRecord{Table: "events_silver", Day: "2025-03-01", Kind: "silver", Path: "/out/events_silver.parquet", RowCount: rows, Format: "parquet", CreatedAt: start}
		if err := catalog.RecordRun(ctx, run, []*TableRecord{tbl}); err != nil {
			t.Fatalf("RecordRun %d failed: %v", i, err)
		}
	}

	got, err := catalog.LatestRun(ctx, "2025-03-01")
	if err != nil {
		t.Fatalf("LatestRun failed: %v", err)
	}
	if got.SilverRows != 8 {
		t.Errorf("latest silver rows = %d, want 8", got.SilverRows)
	}

	list, err := catalog.ListTables(ctx, "2025-03-01")
	if err != nil {
		t.Fatalf("ListTables failed: %v", err)
	}
	if len(list) != 1 || list[0].RowCount != 8 || list[0].RunID != got.RunID {
		t.Errorf("tables = %+v", list)
	}
}

func TestCatalog_RunNotFound(t *testing.T) {
	catalog := openTestCatalog(t)
	_, err := catalog.LatestRun(context.Background(), "1999-01-01")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("err = %v, want ErrRunNotFound", err)
	}
	list, err := catalog.ListTables(context.Background(), "1999-01-01")
	if err != nil || len(list) != 0 {
		t.Errorf("ListTables = %v, %v", list, err)
	}
}
