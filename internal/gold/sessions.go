// Package gold derives sessions and the summary tables of the gold layer.
package gold

import (
	"runtime"
	"sort"
	"sync"

	"github.com/arkilian/weblog/internal/funnel"
	"github.com/arkilian/weblog/pkg/types"
)

// BuildSessions reduces sessionized events to one Session per session id,
// ordered by (user_id, start_ts). Events must be sorted by (user_id, ts), as
// sessionize.Sessionize returns them. Funnel detection runs on up to workers
// goroutines.
func BuildSessions(events []types.SessionEvent, workers int) []types.Session {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	groups := sessionRanges(events)
	sessions := make([]types.Session, len(groups))

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, r := range groups {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, group []types.SessionEvent) {
			defer wg.Done()
			defer func() { <-sem }()
			sessions[idx] = reduce(group)
		}(i, events[r[0]:r[1]])
	}
	wg.Wait()

	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].UserID != sessions[j].UserID {
			return sessions[i].UserID < sessions[j].UserID
		}
		return sessions[i].StartTS.Before(sessions[j].StartTS)
	})
	return sessions
}

func reduce(group []types.SessionEvent) types.Session {
	first := group[0]
	s := types.Session{
		SessionID:   first.SessionID,
		UserID:      first.UserID,
		Date:        first.Date,
		StartTS:     first.TS,
		EndTS:       first.TS,
		Pageviews:   len(group),
		DeviceFirst: first.Device,
	}

	paths := make([]string, len(group))
	for i, e := range group {
		if e.TS.Before(s.StartTS) {
			s.StartTS = e.TS
			s.DeviceFirst = e.Device
		}
		if e.TS.After(s.EndTS) {
			s.EndTS = e.TS
		}
		paths[i] = e.Path
	}

	s.FunnelProgress = funnel.Detect(paths)
	s.DurationSec = s.EndTS.Sub(s.StartTS).Seconds()
	return s
}

// sessionRanges returns the [start, end) bounds of each contiguous session run.
func sessionRanges(events []types.SessionEvent) [][2]int {
	var ranges [][2]int
	start := 0
	for i := 1; i <= len(events); i++ {
		if i == len(events) || events[i].SessionID != events[start].SessionID {
			ranges = append(ranges, [2]int{start, i})
			start = i
		}
	}
	return ranges
}
