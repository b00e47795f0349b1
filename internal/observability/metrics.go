// Package observability exposes the metrics of a pipeline run in a private
// Prometheus registry that can be exported as a node_exporter textfile.
package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arkilian/weblog/pkg/types"
)

// Stage names used with the stage duration gauge.
const (
	StageParse     = "parse"
	StageClean     = "clean"
	StageSessions  = "sessionize"
	StageAggregate = "aggregate"
	StageWrite     = "write"
	StagePublish   = "publish"
)

// RunMetrics holds the metrics of one run.
type RunMetrics struct {
	registry *prometheus.Registry

	bronzeLines    prometheus.Counter
	quarantineRows *prometheus.CounterVec
	silverRows     prometheus.Gauge
	sessions       prometheus.Gauge
	purchases      prometheus.Gauge
	stageDuration  *prometheus.GaugeVec
	lastSuccess    prometheus.Gauge
}

// NewRunMetrics registers the run metrics in a fresh registry.
func NewRunMetrics() *RunMetrics {
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		bronzeLines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weblog_bronze_lines_total",
			Help: "Non-blank bronze lines read",
		}),
		quarantineRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weblog_quarantine_rows_total",
			Help: "Rows routed to quarantine by error kind",
		}, []string{"error_kind"}),
		silverRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "weblog_silver_rows",
			Help: "Cleaned events written to the silver layer",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "weblog_sessions",
			Help: "Sessions built for the day",
		}),
		purchases: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "weblog_purchases",
			Help: "Completed purchase sequences for the day",
		}),
		stageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "weblog_stage_duration_seconds",
			Help: "Wall time spent in each pipeline stage",
		}, []string{"stage"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "weblog_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
	}
	m.registry.MustRegister(
		m.bronzeLines,
		m.quarantineRows,
		m.silverRows,
		m.sessions,
		m.purchases,
		m.stageDuration,
		m.lastSuccess,
	)

	// Every kind is exported, including those with zero rows.
	for _, kind := range types.ErrorKinds {
		m.quarantineRows.WithLabelValues(string(kind))
	}
	return m
}

// Registry returns the registry holding the run metrics.
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *RunMetrics) AddBronzeLines(n int) {
	m.bronzeLines.Add(float64(n))
}

func (m *RunMetrics) AddQuarantine(kind types.ErrorKind, n int) {
	m.quarantineRows.WithLabelValues(string(kind)).Add(float64(n))
}

// SetOutputs records the silver, session and purchase totals.
func (m *RunMetrics) SetOutputs(silverRows, sessions, purchases int) {
	m.silverRows.Set(float64(silverRows))
	m.sessions.Set(float64(sessions))
	m.purchases.Set(float64(purchases))
}

// ObserveStage records the duration of stage.
func (m *RunMetrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Set(d.Seconds())
}

// TimeStage starts timing stage; call the returned func when it ends.
func (m *RunMetrics) TimeStage(stage string) func() {
	start := time.Now()
	return func() { m.ObserveStage(stage, time.Since(start)) }
}

// MarkSuccess sets the last success timestamp.
func (m *RunMetrics) MarkSuccess(t time.Time) {
	m.lastSuccess.Set(float64(t.Unix()))
}

// WriteTextfile writes the registry to path in text exposition format. The
// file is replaced atomically.
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("observability: failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("observability: failed to write metrics file: %w", err)
	}
	return nil
}
