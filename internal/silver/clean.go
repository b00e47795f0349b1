// Package silver turns raw records into validated, day-windowed, deduplicated
// events. It performs no I/O: rejected rows are returned as quarantine
// partitions for the caller to persist.
package silver

import (
	"sort"
	"time"

	"github.com/arkilian/weblog/internal/normalize"
	"github.com/arkilian/weblog/pkg/types"
)

// Partition is the set of quarantine rows of one error kind.
type Partition struct {
	Kind types.ErrorKind
	Rows []types.QuarantineRecord
}

// Result is the outcome of cleaning one day's records.
type Result struct {
	// Events are sorted by (user_id, ts, path), one per key
	Events []types.CleanEvent

	// Quarantine holds rejected rows per kind, each in line order
	Quarantine map[types.ErrorKind][]types.QuarantineRecord
}

// QuarantineCount returns the number of rejected rows across all kinds.
func (r *Result) QuarantineCount() int {
	n := 0
	for _, rows := range r.Quarantine {
		n += len(rows)
	}
	return n
}

// Partitions returns the non-empty quarantine partitions in ErrorKinds order.
func (r *Result) Partitions() []Partition {
	var parts []Partition
	for _, kind := range types.ErrorKinds {
		if rows := r.Quarantine[kind]; len(rows) > 0 {
			parts = append(parts, Partition{Kind: kind, Rows: rows})
		}
	}
	return parts
}

// typed is a raw record with every canonical field normalized once.
type typed struct {
	raw types.RawRecord

	ts       time.Time
	userID   string
	path     string
	referrer string
	device   string

	// present is indexed in field check order
	present [5]bool
}

// fieldChecks is the fixed validation order. A row failing several fields is
// attributed to the first one listed.
var fieldChecks = []types.ErrorKind{
	types.KindTS,
	types.KindUserID,
	types.KindPath,
	types.KindReferrer,
	types.KindDevice,
}

func normalizeRecord(rec types.RawRecord) typed {
	t := typed{raw: rec}
	t.ts, t.present[0] = normalize.Timestamp(rec.Fields[types.FieldTS])
	t.userID, t.present[1] = normalize.UserID(rec.Fields[types.FieldUserID])
	t.path, t.present[2] = normalize.Path(rec.Fields[types.FieldPath])
	t.referrer, t.present[3] = normalize.Referrer(rec.Fields[types.FieldReferrer])
	t.device, t.present[4] = normalize.Device(rec.Fields[types.FieldDevice])
	return t
}

func (t typed) event() types.CleanEvent {
	return types.CleanEvent{
		LineNo:   t.raw.LineNo,
		TS:       t.ts,
		UserID:   t.userID,
		Path:     t.path,
		Referrer: t.referrer,
		Device:   t.device,
		Date:     t.ts.Format(types.DateLayout),
	}
}

// Clean validates records field by field, filters them to the run's day and
// removes duplicates on (user_id, ts, path). Every input record ends up either
// in Events or in exactly one quarantine partition.
func Clean(records []types.RawRecord, run types.RunContext) *Result {
	res := &Result{Quarantine: make(map[types.ErrorKind][]types.QuarantineRecord)}

	working := make([]typed, 0, len(records))
	for _, rec := range records {
		working = append(working, normalizeRecord(rec))
	}

	// Each pass removes the rows absent for one field before the next is checked.
	for i, kind := range fieldChecks {
		kept := working[:0]
		for _, row := range working {
			if row.present[i] {
				kept = append(kept, row)
				continue
			}
			res.Quarantine[kind] = append(res.Quarantine[kind], quarantineRow(row, kind))
		}
		working = kept
	}

	start, end := run.DayStart(), run.DayEnd()
	inDay := working[:0]
	for _, row := range working {
		if row.ts.Before(start) || !row.ts.Before(end) {
			res.Quarantine[types.KindOutsideDay] = append(res.Quarantine[types.KindOutsideDay],
				quarantineRow(row, types.KindOutsideDay))
			continue
		}
		inDay = append(inDay, row)
	}

	survivors, dropped := dedupKeepLast(inDay)
	for _, row := range dropped {
		res.Quarantine[types.KindDuplicate] = append(res.Quarantine[types.KindDuplicate],
			quarantineRow(row, types.KindDuplicate))
	}
	sortByLine(res.Quarantine[types.KindDuplicate])

	res.Events = make([]types.CleanEvent, len(survivors))
	for i, row := range survivors {
		res.Events[i] = row.event()
	}
	return res
}

// dedupKeepLast stable-sorts rows by (user_id, ts, path) and keeps the last row
// in input order of every key.
func dedupKeepLast(rows []typed) (kept, dropped []typed) {
	sorted := make([]typed, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return lessKey(sorted[i], sorted[j])
	})

	for i := 0; i < len(sorted); i++ {
		if i+1 < len(sorted) && sameKey(sorted[i], sorted[i+1]) {
			dropped = append(dropped, sorted[i])
			continue
		}
		kept = append(kept, sorted[i])
	}
	return kept, dropped
}

func lessKey(a, b typed) bool {
	if a.userID != b.userID {
		return a.userID < b.userID
	}
	if !a.ts.Equal(b.ts) {
		return a.ts.Before(b.ts)
	}
	return a.path < b.path
}

func sameKey(a, b typed) bool {
	return a.userID == b.userID && a.ts.Equal(b.ts) && a.path == b.path
}

func sortByLine(rows []types.QuarantineRecord) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].LineNo < rows[j].LineNo
	})
}
