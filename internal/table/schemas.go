package table

import (
	"github.com/arkilian/weblog/pkg/types"
)

// Table names, which are also the output file base names.
const (
	NameSilver         = "events_silver"
	NameGoldEvents     = "events_gold"
	NameSessions       = "sessions"
	NameUserStats      = "users_stats"
	NameTopPaths       = "top_paths"
	NameDeviceUsage    = "device_usage"
	NameSessionsPerDay = "sessions_per_day"
	NameFunnel         = "funnel"
)

// QuarantineName returns the table name of a quarantine partition.
func QuarantineName(kind types.ErrorKind) string {
	return "error_" + string(kind)
}

var eventColumns = []Column{
	{Name: "ts", Type: TypeTimestamp},
	{Name: "user_id", Type: TypeString},
	{Name: "path", Type: TypeString},
	{Name: "referrer", Type: TypeString},
	{Name: "device", Type: TypeString},
	{Name: "date", Type: TypeString},
}

func eventRow(e types.CleanEvent) []any {
	return []any{e.TS, e.UserID, e.Path, e.Referrer, e.Device, e.Date}
}

// FromSilver builds the cleaned events table.
func FromSilver(events []types.CleanEvent) *Table {
	t := &Table{Name: NameSilver, Columns: eventColumns, Rows: make([][]any, len(events))}
	for i, e := range events {
		t.Rows[i] = eventRow(e)
	}
	return t
}

// FromGoldEvents builds the sessionized events table.
func FromGoldEvents(events []types.SessionEvent) *Table {
	cols := append(append([]Column{}, eventColumns...),
		Column{Name: "session_index", Type: TypeInt64},
		Column{Name: "session_id", Type: TypeString},
	)
	t := &Table{Name: NameGoldEvents, Columns: cols, Rows: make([][]any, len(events))}
	for i, e := range events {
		t.Rows[i] = append(eventRow(e.CleanEvent), int64(e.SessionIndex), e.SessionID)
	}
	return t
}

// FromSessions builds the sessions table.
func FromSessions(sessions []types.Session) *Table {
	t := &Table{
		Name: NameSessions,
		Columns: []Column{
			{Name: "session_id", Type: TypeString},
			{Name: "user_id", Type: TypeString},
			{Name: "date", Type: TypeString},
			{Name: "start_ts", Type: TypeTimestamp},
			{Name: "end_ts", Type: TypeTimestamp},
			{Name: "pageviews", Type: TypeInt64},
			{Name: "device_first", Type: TypeString},
			{Name: "saw_root", Type: TypeBool},
			{Name: "saw_productos_after_root", Type: TypeBool},
			{Name: "saw_carrito_after_productos", Type: TypeBool},
			{Name: "saw_checkout_after_carrito", Type: TypeBool},
			{Name: "purchases_in_session", Type: TypeInt64},
			{Name: "session_duration_sec", Type: TypeFloat64},
		},
		Rows: make([][]any, len(sessions)),
	}
	for i, s := range sessions {
		t.Rows[i] = []any{
			s.SessionID, s.UserID, s.Date, s.StartTS, s.EndTS, int64(s.Pageviews), s.DeviceFirst,
			s.SawRoot, s.SawProductosAfterRoot, s.SawCarritoAfterProductos, s.SawCheckoutAfterCarrito,
			int64(s.Purchases), s.DurationSec,
		}
	}
	return t
}

// FromUserStats builds the per-user table.
func FromUserStats(stats []types.UserStat) *Table {
	t := &Table{
		Name: NameUserStats,
		Columns: []Column{
			{Name: "user_id", Type: TypeString},
			{Name: "sessions", Type: TypeInt64},
			{Name: "purchases", Type: TypeInt64},
			{Name: "avg_session_duration_sec", Type: TypeFloat64},
			{Name: "events", Type: TypeInt64},
		},
		Rows: make([][]any, len(stats)),
	}
	for i, s := range stats {
		t.Rows[i] = []any{s.UserID, int64(s.Sessions), int64(s.Purchases), s.AvgSessionDuration, int64(s.Events)}
	}
	return t
}

// FromTopPaths builds the top paths table.
func FromTopPaths(paths []types.PathCount) *Table {
	t := &Table{
		Name:    NameTopPaths,
		Columns: []Column{{Name: "path", Type: TypeString}, {Name: "views", Type: TypeInt64}},
		Rows:    make([][]any, len(paths)),
	}
	for i, p := range paths {
		t.Rows[i] = []any{p.Path, int64(p.Views)}
	}
	return t
}

// FromDeviceUsage builds the device usage table.
func FromDeviceUsage(devices []types.DeviceCount) *Table {
	t := &Table{
		Name:    NameDeviceUsage,
		Columns: []Column{{Name: "device", Type: TypeString}, {Name: "events", Type: TypeInt64}},
		Rows:    make([][]any, len(devices)),
	}
	for i, d := range devices {
		t.Rows[i] = []any{d.Device, int64(d.Events)}
	}
	return t
}

// FromSessionsPerDay builds the sessions per day table.
func FromSessionsPerDay(days []types.DayCount) *Table {
	t := &Table{
		Name:    NameSessionsPerDay,
		Columns: []Column{{Name: "date", Type: TypeString}, {Name: "sessions", Type: TypeInt64}},
		Rows:    make([][]any, len(days)),
	}
	for i, d := range days {
		t.Rows[i] = []any{d.Date, int64(d.Sessions)}
	}
	return t
}

// FromFunnel builds the funnel table.
func FromFunnel(steps []types.FunnelStep) *Table {
	t := &Table{
		Name: NameFunnel,
		Columns: []Column{
			{Name: "step", Type: TypeString},
			{Name: "count", Type: TypeInt64},
			{Name: "rate_step", Type: TypeFloat64},
			{Name: "rate_overall", Type: TypeFloat64},
		},
		Rows: make([][]any, len(steps)),
	}
	for i, s := range steps {
		t.Rows[i] = []any{s.Step, int64(s.Count), s.RateStep, s.RateOverall}
	}
	return t
}

// FromQuarantine builds one quarantine partition table.
func FromQuarantine(kind types.ErrorKind, rows []types.QuarantineRecord) *Table {
	t := &Table{
		Name: QuarantineName(kind),
		Columns: []Column{
			{Name: "line_no", Type: TypeInt64},
			{Name: "payload", Type: TypeString, Compressed: true},
			{Name: "error_kind", Type: TypeString},
			{Name: "source_file", Type: TypeString},
			{Name: "ingestion_ts", Type: TypeTimestamp},
			{Name: "batch_id", Type: TypeString},
		},
		Rows: make([][]any, len(rows)),
	}
	for i, q := range rows {
		t.Rows[i] = []any{int64(q.LineNo), q.Payload, string(q.ErrorKind), q.SourceFile, q.IngestionTS, q.BatchID}
	}
	return t
}
