// Package pipeline runs one day through the bronze, silver and gold layers and
// persists every output.
package pipeline

import (
	"github.com/arkilian/weblog/internal/gold"
	"github.com/arkilian/weblog/internal/observability"
	"github.com/arkilian/weblog/internal/sessionize"
	"github.com/arkilian/weblog/internal/silver"
	"github.com/arkilian/weblog/pkg/types"
)

// Output holds the in-memory result of processing one day.
type Output struct {
	// Events are the cleaned silver events
	Events []types.CleanEvent

	// GoldEvents are Events with their session assignment, ordered by
	// (user_id, ts)
	GoldEvents []types.SessionEvent

	Gold *gold.Tables

	// Quarantine holds every rejected row per kind, invalid_json included
	Quarantine map[types.ErrorKind][]types.QuarantineRecord
}

// Partitions returns the non-empty quarantine partitions in kind order.
func (o *Output) Partitions() []silver.Partition {
	r := silver.Result{Quarantine: o.Quarantine}
	return r.Partitions()
}

// QuarantineCounts returns the row count of every kind.
func (o *Output) QuarantineCounts() map[types.ErrorKind]int {
	counts := make(map[types.ErrorKind]int, len(types.ErrorKinds))
	for _, kind := range types.ErrorKinds {
		counts[kind] = len(o.Quarantine[kind])
	}
	return counts
}

// Users returns the number of distinct users in the silver events.
func (o *Output) Users() int {
	return len(o.Gold.UserStats)
}

// Process runs the pure part of the pipeline over parsed records. rejects are
// the parser's invalid_json rows. It performs no I/O and its output depends
// only on its arguments.
func Process(records []types.RawRecord, rejects []types.QuarantineRecord, run types.RunContext, workers int) *Output {
	return process(records, rejects, run, workers, func(string) func() { return func() {} })
}

// process is Process with a stage timer.
func process(records []types.RawRecord, rejects []types.QuarantineRecord, run types.RunContext, workers int, timeStage func(string) func()) *Output {
	done := timeStage(observability.StageClean)
	cleaned := silver.Clean(records, run)
	done()

	quarantine := make(map[types.ErrorKind][]types.QuarantineRecord, len(cleaned.Quarantine)+1)
	for kind, rows := range cleaned.Quarantine {
		quarantine[kind] = rows
	}
	if len(rejects) > 0 {
		quarantine[types.KindInvalidJSON] = append(quarantine[types.KindInvalidJSON], rejects...)
	}

	done = timeStage(observability.StageSessions)
	events := sessionize.Sessionize(cleaned.Events, run.SessionTimeout, workers)
	done()

	done = timeStage(observability.StageAggregate)
	sessions := gold.BuildSessions(events, workers)
	tables := gold.Aggregate(events, sessions)
	done()

	return &Output{
		Events:     cleaned.Events,
		GoldEvents: events,
		Gold:       tables,
		Quarantine: quarantine,
	}
}
