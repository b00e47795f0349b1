package gold

import (
	"sort"

	"github.com/arkilian/weblog/internal/funnel"
	"github.com/arkilian/weblog/pkg/types"
)

// TopPathsLimit caps the top paths table.
const TopPathsLimit = 10

// FunnelTotalStep labels the first funnel row, the total session count.
const FunnelTotalStep = "sessions"

// Tables holds the gold summary tables of one day.
type Tables struct {
	Sessions       []types.Session
	UserStats      []types.UserStat
	TopPaths       []types.PathCount
	DeviceUsage    []types.DeviceCount
	SessionsPerDay []types.DayCount
	Funnel         []types.FunnelStep
}

// Purchases returns the total purchases across sessions.
func (t *Tables) Purchases() int {
	n := 0
	for _, s := range t.Sessions {
		n += s.Purchases
	}
	return n
}

// Aggregate computes every summary table from sessionized events and their sessions.
func Aggregate(events []types.SessionEvent, sessions []types.Session) *Tables {
	return &Tables{
		Sessions:       sessions,
		UserStats:      UserStats(events, sessions),
		TopPaths:       TopPaths(events, TopPathsLimit),
		DeviceUsage:    DeviceUsage(events),
		SessionsPerDay: SessionsPerDay(sessions),
		Funnel:         FunnelTable(sessions),
	}
}

// UserStats summarizes each user, ordered by purchases, sessions and events
// descending, then user_id.
func UserStats(events []types.SessionEvent, sessions []types.Session) []types.UserStat {
	byUser := make(map[string]*types.UserStat)
	durations := make(map[string]float64)
	get := func(user string) *types.UserStat {
		st, ok := byUser[user]
		if !ok {
			st = &types.UserStat{UserID: user}
			byUser[user] = st
		}
		return st
	}

	for _, s := range sessions {
		st := get(s.UserID)
		st.Sessions++
		st.Purchases += s.Purchases
		durations[s.UserID] += s.DurationSec
	}
	for _, e := range events {
		get(e.UserID).Events++
	}

	out := make([]types.UserStat, 0, len(byUser))
	for user, st := range byUser {
		if st.Sessions > 0 {
			st.AvgSessionDuration = durations[user] / float64(st.Sessions)
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Purchases != b.Purchases {
			return a.Purchases > b.Purchases
		}
		if a.Sessions != b.Sessions {
			return a.Sessions > b.Sessions
		}
		if a.Events != b.Events {
			return a.Events > b.Events
		}
		return a.UserID < b.UserID
	})
	return out
}

// TopPaths returns the limit most viewed paths, ties broken by path.
func TopPaths(events []types.SessionEvent, limit int) []types.PathCount {
	counts := make(map[string]int)
	for _, e := range events {
		counts[e.Path]++
	}
	out := make([]types.PathCount, 0, len(counts))
	for p, n := range counts {
		out = append(out, types.PathCount{Path: p, Views: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Views != out[j].Views {
			return out[i].Views > out[j].Views
		}
		return out[i].Path < out[j].Path
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// DeviceUsage counts events per device, most used first.
func DeviceUsage(events []types.SessionEvent) []types.DeviceCount {
	counts := make(map[string]int)
	for _, e := range events {
		counts[e.Device]++
	}
	out := make([]types.DeviceCount, 0, len(counts))
	for d, n := range counts {
		out = append(out, types.DeviceCount{Device: d, Events: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Events != out[j].Events {
			return out[i].Events > out[j].Events
		}
		return out[i].Device < out[j].Device
	})
	return out
}

// SessionsPerDay counts distinct sessions per date, in date order.
func SessionsPerDay(sessions []types.Session) []types.DayCount {
	ids := make(map[string]map[string]bool)
	for _, s := range sessions {
		if ids[s.Date] == nil {
			ids[s.Date] = make(map[string]bool)
		}
		ids[s.Date][s.SessionID] = true
	}
	out := make([]types.DayCount, 0, len(ids))
	for d, set := range ids {
		out = append(out, types.DayCount{Date: d, Sessions: len(set)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// FunnelTable returns the total session row followed by one row per funnel
// step. rate_step divides by the previous row (1.0 when it is 0); rate_overall
// divides by total sessions (0.0 when there are none).
func FunnelTable(sessions []types.Session) []types.FunnelStep {
	total := len(sessions)
	counts := make([]int, len(funnel.StepNames))
	for _, s := range sessions {
		for i, reached := range funnel.Reached(s.FunnelProgress) {
			if reached {
				counts[i]++
			}
		}
	}

	overall := func(n int) float64 {
		if total == 0 {
			return 0.0
		}
		return float64(n) / float64(total)
	}

	rows := make([]types.FunnelStep, 0, len(counts)+1)
	rows = append(rows, types.FunnelStep{
		Step:        FunnelTotalStep,
		Count:       total,
		RateStep:    1.0,
		RateOverall: overall(total),
	})
	prev := total
	for i, n := range counts {
		step := 1.0
		if prev != 0 {
			step = float64(n) / float64(prev)
		}
		rows = append(rows, types.FunnelStep{
			Step:        funnel.StepNames[i],
			Count:       n,
			RateStep:    step,
			RateOverall: overall(n),
		})
		prev = n
	}
	return rows
}
