package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arkilian/weblog/internal/bronze"
	"github.com/arkilian/weblog/internal/config"
	weberrors "github.com/arkilian/weblog/internal/errors"
	"github.com/arkilian/weblog/internal/logging"
	"github.com/arkilian/weblog/internal/manifest"
	"github.com/arkilian/weblog/internal/observability"
	"github.com/arkilian/weblog/internal/report"
	"github.com/arkilian/weblog/internal/storage"
	"github.com/arkilian/weblog/internal/table"
	"github.com/arkilian/weblog/pkg/types"
)

// Summary reports one run.
type Summary = types.RunSummary

// Output layers, also used as object store prefixes and catalog kinds.
const (
	LayerSilver     = "silver"
	LayerGold       = "gold"
	LayerQuarantine = "quarantine"
	LayerReports    = "reports"
)

// Pipeline runs a configured day.
type Pipeline struct {
	cfg     *config.Config
	clock   types.Clock
	store   storage.ObjectStorage
	writer  table.Writer
	metrics *observability.RunMetrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock that supplies the default day and the ingestion
// instant.
func WithClock(c types.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithStorage overrides the object store built from the configuration.
func WithStorage(s storage.ObjectStorage) Option {
	return func(p *Pipeline) { p.store = s }
}

// New resolves and validates cfg and prepares the writers and object store.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{cfg: cfg, clock: types.SystemClock{}}
	for _, opt := range opts {
		opt(p)
	}

	cfg.Resolve(p.clock)
	if err := cfg.Validate(); err != nil {
		return nil, weberrors.NewConfigError("invalid configuration", err)
	}

	writer, err := table.NewWriter(table.Format(cfg.Format))
	if err != nil {
		return nil, weberrors.NewConfigError("unsupported format", err)
	}
	p.writer = writer

	if p.store == nil {
		store, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			return nil, weberrors.NewConfigError("failed to create object storage", err)
		}
		p.store = store
	}
	return p, nil
}

// Metrics returns the metrics of the last run, or nil before the first.
func (p *Pipeline) Metrics() *observability.RunMetrics {
	return p.metrics
}

// Run processes the configured day. Input errors are returned as INPUT
// pipeline errors; every other failure aborts the run with the error of the
// failing step.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	wallStart := time.Now()
	cfg := p.cfg

	day, err := cfg.ParsedDay()
	if err != nil {
		return nil, weberrors.NewConfigError("invalid day", err)
	}
	run, err := types.NewRunContext(day, cfg.SessionTimeout(), p.clock, filepath.Base(cfg.Input))
	if err != nil {
		return nil, weberrors.NewInternalError("failed to create run context", err)
	}

	runID := logging.GenerateRunID()
	ctx = logging.ContextWithRunID(ctx, runID)
	ctx = logging.ContextWithBatchID(ctx, run.BatchID)
	log := logging.Ctx(ctx)

	log.Info().
		Str("day", run.DayString()).
		Str("input", cfg.Input).
		Str("format", string(cfg.Format)).
		Dur("session_timeout", run.SessionTimeout).
		Msg("Starting run")

	metrics := observability.NewRunMetrics()
	p.metrics = metrics

	done := metrics.TimeStage(observability.StageParse)
	parsed, err := bronze.ParseFile(ctx, cfg.Input, run)
	done()
	if err != nil {
		return nil, err
	}
	metrics.AddBronzeLines(parsed.Lines)
	log.Info().
		Int("lines", parsed.Lines).
		Int("valid", parsed.Valid).
		Int("invalid_json", parsed.Invalid).
		Msg("Parsed bronze input")

	out := process(parsed.Records, parsed.Rejects, run, cfg.Workers, metrics.TimeStage)

	counts := out.QuarantineCounts()
	quarantined := 0
	for kind, n := range counts {
		metrics.AddQuarantine(kind, n)
		quarantined += n
	}
	if quarantined+len(out.Events) != parsed.Lines {
		return nil, weberrors.NewInternalError(fmt.Sprintf(
			"row accounting mismatch: %d lines, %d silver, %d quarantined",
			parsed.Lines, len(out.Events), quarantined), nil)
	}
	log.Info().
		Int("silver_rows", len(out.Events)).
		Int("quarantined", quarantined).
		Int("sessions", len(out.Gold.Sessions)).
		Int("purchases", out.Gold.Purchases()).
		Msg("Processed day")

	summary := &Summary{
		RunID:      runID,
		Day:        run.DayString(),
		BatchID:    run.BatchID,
		SourceFile: run.SourceFile,
		Format:     string(cfg.Format),
		Lines:      parsed.Lines,
		BronzeRows: parsed.Valid,
		Quarantine: counts,
		SilverRows: len(out.Events),
		GoldEvents: len(out.GoldEvents),
		Sessions:   len(out.Gold.Sessions),
		Users:      out.Users(),
		Purchases:  out.Gold.Purchases(),
		StartedAt:  run.IngestionTS,
	}
	metrics.SetOutputs(summary.SilverRows, summary.Sessions, summary.Purchases)

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, weberrors.NewStorageError(weberrors.CodeWriteFailed, "failed to create output directories", err)
	}

	done = metrics.TimeStage(observability.StageWrite)
	files, err := p.writeOutputs(ctx, run, out)
	done()
	if err != nil {
		return nil, err
	}
	summary.Files = files

	if cfg.Report {
		path, err := report.Write(cfg.ReportDir, summary, out.Gold, run.IngestionTS)
		if err != nil {
			return nil, weberrors.NewStorageError(weberrors.CodeWriteFailed, "failed to write report", err)
		}
		summary.Files = append(summary.Files, reportFile(path))
		log.Info().Str("path", path).Msg("Wrote report")
	}

	if cfg.ManifestPath != "" {
		if err := p.recordCatalog(ctx, summary); err != nil {
			return nil, err
		}
	}

	if p.store != nil {
		done = metrics.TimeStage(observability.StagePublish)
		err := p.publish(ctx, summary)
		done()
		if err != nil {
			return nil, err
		}
	}

	summary.Duration = time.Since(wallStart)
	metrics.MarkSuccess(p.clock.Now())
	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			return nil, weberrors.NewStorageError(weberrors.CodeWriteFailed, "failed to write metrics file", err)
		}
	}

	log.Info().
		Int("files", len(summary.Files)).
		Dur("duration", summary.Duration).
		Msg("Run completed")
	return summary, nil
}

func reportFile(path string) types.OutputFile {
	size := int64(0)
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	return types.OutputFile{
		Layer:     LayerReports,
		Table:     "report",
		Path:      path,
		SizeBytes: size,
	}
}

// recordCatalog stores the run and its files in the manifest catalog.
func (p *Pipeline) recordCatalog(ctx context.Context, s *Summary) error {
	catalog, err := manifest.Open(p.cfg.ManifestPath)
	if err != nil {
		return weberrors.NewManifestError(weberrors.CodeCatalogFailed, "failed to open catalog", err)
	}
	defer catalog.Close()

	quarantine := make(map[string]int64, len(s.Quarantine))
	for kind, n := range s.Quarantine {
		quarantine[string(kind)] = int64(n)
	}
	run := &manifest.RunRecord{
		RunID:      s.RunID,
		Day:        s.Day,
		BatchID:    s.BatchID,
		SourceFile: s.SourceFile,
		Format:     s.Format,
		Lines:      int64(s.Lines),
		BronzeRows: int64(s.BronzeRows),
		Quarantine: quarantine,
		SilverRows: int64(s.SilverRows),
		GoldEvents: int64(s.GoldEvents),
		Sessions:   int64(s.Sessions),
		Users:      int64(s.Users),
		Purchases:  int64(s.Purchases),
		StartedAt:  s.StartedAt,
		FinishedAt: p.clock.Now(),
	}

	records := make([]*manifest.TableRecord, 0, len(s.Files))
	for _, f := range s.Files {
		records = append(records, &manifest.TableRecord{
			Table:     f.Table,
			Day:       s.Day,
			Kind:      f.Layer,
			Path:      f.Path,
			RowCount:  f.RowCount,
			SizeBytes: f.SizeBytes,
			Format:    formatOf(f),
			CreatedAt: s.StartedAt,
		})
	}
	if err := catalog.RecordRun(ctx, run, records); err != nil {
		return weberrors.NewManifestError(weberrors.CodeCatalogFailed, "failed to record run", err)
	}
	logging.Ctx(ctx).Debug().Str("catalog", p.cfg.ManifestPath).Int("tables", len(records)).Msg("Recorded run in catalog")
	return nil
}

func formatOf(f types.OutputFile) string {
	ext := filepath.Ext(f.Path)
	if ext == "" {
		return ""
	}
	return ext[1:]
}
