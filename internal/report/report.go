// Package report renders the Markdown summary of a pipeline run.
package report

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/arkilian/weblog/internal/gold"
	"github.com/arkilian/weblog/internal/table"
	"github.com/arkilian/weblog/pkg/types"
)

// FileName returns the report file name of day.
func FileName(day string) string {
	return day + "-report.md"
}

// Path returns <dir>/<day>-report.md.
func Path(dir, day string) string {
	return filepath.Join(dir, FileName(day))
}

// KPIs are the headline numbers of a day.
type KPIs struct {
	Users              int
	Sessions           int
	Purchases          int
	SilverEvents       int
	MeanPageviews      float64
	MeanSessionMinutes float64
}

// ComputeKPIs derives the headline numbers from a summary and its tables.
func ComputeKPIs(s *types.RunSummary, t *gold.Tables) KPIs {
	k := KPIs{
		Users:        s.Users,
		Sessions:     len(t.Sessions),
		Purchases:    t.Purchases(),
		SilverEvents: s.SilverRows,
	}
	if len(t.Sessions) > 0 {
		var pageviews int
		var seconds float64
		for _, sess := range t.Sessions {
			pageviews += sess.Pageviews
			seconds += sess.DurationSec
		}
		k.MeanPageviews = float64(pageviews) / float64(len(t.Sessions))
		k.MeanSessionMinutes = seconds / float64(len(t.Sessions)) / 60
	}
	return k
}

type view struct {
	S           *types.RunSummary
	T           *gold.Tables
	K           KPIs
	GeneratedAt time.Time
	Kinds       []types.ErrorKind
}

var funcs = template.FuncMap{
	"f2":      func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"pct":     func(v float64) string { return fmt.Sprintf("%.2f%%", v*100) },
	"rfc3339": func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	"step": func(name string) string {
		if name == gold.FunnelTotalStep {
			return "Sessions"
		}
		return "→ " + strings.TrimPrefix(strings.ReplaceAll(name, "_", " "), "saw ")
	},
	"kindName": func(k types.ErrorKind) string { return table.QuarantineName(k) },
	"count":    func(m map[types.ErrorKind]int, k types.ErrorKind) int { return m[k] },
}

var tmpl = template.Must(template.New("report").Funcs(funcs).Parse(reportTemplate))

const reportTemplate = `# Web logs report · {{.S.Day}}
**Source:** {{.S.SourceFile}} · **Batch:** {{.S.BatchID}} · **Generated:** {{rfc3339 .GeneratedAt}}

## 1. Headline
{{.K.Users}} unique users, {{.K.Sessions}} sessions, {{.K.Purchases}} purchases.

## 2. KPIs
- **Unique users:** {{.K.Users}}
- **Sessions:** {{.K.Sessions}}
- **Purchases (checkouts):** {{.K.Purchases}}
- **Events (silver):** {{.K.SilverEvents}}
- **Pages per session (mean):** {{f2 .K.MeanPageviews}}
- **Session duration (mean, min):** {{f2 .K.MeanSessionMinutes}}

## 3. Top pages
{{if .T.TopPaths}}| path | views |
|---|---|
{{range .T.TopPaths}}| {{.Path}} | {{.Views}} |
{{end}}{{else}}_(no data)_
{{end}}
## 4. Device usage (events)
{{if .T.DeviceUsage}}| device | events |
|---|---|
{{range .T.DeviceUsage}}| {{.Device}} | {{.Events}} |
{{end}}{{else}}_(no data)_
{{end}}
## 5. Sessions per day
{{if .T.SessionsPerDay}}| date | sessions |
|---|---|
{{range .T.SessionsPerDay}}| {{.Date}} | {{.Sessions}} |
{{end}}{{else}}_(no data)_
{{end}}
## 6. Session funnel
| step | count | rate_step | rate_overall |
|---|---|---|---|
{{range .T.Funnel}}| {{step .Step}} | {{.Count}} | {{f2 .RateStep}} | {{f2 .RateOverall}} |
{{end}}
## 7. Data quality
- Bronze lines: {{.S.Lines}}
- Bronze rows (valid JSON): {{.S.BronzeRows}}
- Silver rows: {{.S.SilverRows}}
- Quarantined rows: {{.S.QuarantineRows}}
{{range .Kinds}}  - {{kindName .}}: {{count $.S.Quarantine .}}
{{end}}- Silver coverage: {{pct .S.Coverage}}
`

// Build renders the Markdown report. generatedAt is printed in the header.
func Build(s *types.RunSummary, t *gold.Tables, generatedAt time.Time) (string, error) {
	var buf bytes.Buffer
	err := tmpl.Execute(&buf, view{
		S:           s,
		T:           t,
		K:           ComputeKPIs(s, t),
		GeneratedAt: generatedAt,
		Kinds:       types.ErrorKinds,
	})
	if err != nil {
		return "", fmt.Errorf("report: failed to render: %w", err)
	}
	return buf.String(), nil
}

// Write renders the report and writes it atomically to Path(dir, s.Day).
func Write(dir string, s *types.RunSummary, t *gold.Tables, generatedAt time.Time) (string, error) {
	content, err := Build(s, t, generatedAt)
	if err != nil {
		return "", err
	}
	path := Path(dir, s.Day)
	if err := table.WriteFileAtomic(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("report: failed to write %s: %w", path, err)
	}
	return path, nil
}
