package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/arkilian/weblog/internal/gold"
	"github.com/arkilian/weblog/pkg/types"
)

var generated = time.Date(2025, 3, 2, 6, 0, 0, 0, time.UTC)

func sampleTables() *gold.Tables {
	sessions := []types.Session{
		{SessionID: "a", UserID: "u1", Date: "2025-03-01", Pageviews: 4, DurationSec: 120,
			FunnelProgress: types.FunnelProgress{SawRoot: true, SawProductosAfterRoot: true, SawCarritoAfterProductos: true, SawCheckoutAfterCarrito: true, Purchases: 1}},
		{SessionID: "b", UserID: "u2", Date: "2025-03-01", Pageviews: 2, DurationSec: 0,
			FunnelProgress: types.FunnelProgress{SawRoot: true}},
	}
	return &gold.Tables{
		Sessions:       sessions,
		TopPaths:       []types.PathCount{{Path: "/", Views: 2}, {Path: "/productos", Views: 1}},
		DeviceUsage:    []types.DeviceCount{{Device: "mobile", Events: 6}},
		SessionsPerDay: []types.DayCount{{Date: "2025-03-01", Sessions: 2}},
		Funnel:         gold.FunnelTable(sessions),
	}
}

func sampleSummary() *types.RunSummary {
	return &types.RunSummary{
		Day: "2025-03-01", BatchID: "01JNB", SourceFile: "events.ndjson",
		Lines: 10, BronzeRows: 9, SilverRows: 6, Users: 2,
		Quarantine: map[types.ErrorKind]int{types.KindInvalidJSON: 1, types.KindTS: 3},
	}
}

func TestComputeKPIs(t *testing.T) {
	k := ComputeKPIs(sampleSummary(), sampleTables())
	if k.Sessions != 2 || k.Purchases != 1 || k.Users != 2 || k.SilverEvents != 6 {
		t.Errorf("kpis = %+v", k)
	}
	if k.MeanPageviews != 3 {
		t.Errorf("mean pageviews = %v, want 3", k.MeanPageviews)
	}
	if k.MeanSessionMinutes != 1 {
		t.Errorf("mean session minutes = %v, want 1", k.MeanSessionMinutes)
	}

	empty := ComputeKPIs(&types.RunSummary{}, &gold.Tables{})
	if empty.MeanPageviews != 0 || empty.MeanSessionMinutes != 0 {
		t.Errorf("empty kpis = %+v", empty)
	}
}

func TestBuild(t *testing.T) {
	md, err := Build(sampleSummary(), sampleTables(), generated)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for _, want := range []string{
		"# Web logs report · 2025-03-01",
		"**Generated:** 2025-03-02T06:00:00Z",
		"2 unique users, 2 sessions, 1 purchases.",
		"- **Pages per session (mean):** 3.00",
		"| /productos | 1 |",
		"| mobile | 6 |",
		"| Sessions | 2 | 1.00 | 1.00 |",
		"| → checkout after carrito | 1 | 1.00 | 0.50 |",
		"  - error_ts: 3",
		"  - error_device: 0",
		"- Silver coverage: 60.00%",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q\n%s", want, md)
		}
	}
}

func TestBuild_NoData(t *testing.T) {
	md, err := Build(&types.RunSummary{Day: "2025-03-01"}, &gold.Tables{Funnel: gold.FunnelTable(nil)}, generated)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if strings.Count(md, "_(no data)_") != 3 {
		t.Errorf("expected three empty sections:\n%s", md)
	}
	if !strings.Contains(md, "- Silver coverage: 0.00%") {
		t.Errorf("coverage of an empty day should be zero:\n%s", md)
	}
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	path, err := Write(dir, sampleSummary(), sampleTables(), generated)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if path != filepath.Join(dir, "2025-03-01-report.md") {
		t.Errorf("path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.HasPrefix(string(data), "# Web logs report") {
		t.Errorf("unexpected content: %.40s", data)
	}
}
