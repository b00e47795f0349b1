// Package sessionize groups each user's events into gap-delimited sessions.
package sessionize

import (
	"crypto/sha1"
	"encoding/hex"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/arkilian/weblog/pkg/types"
)

// SessionID returns the deterministic identifier of a user's session: the first
// 16 hex characters of SHA-1("user_id|date|session_index").
func SessionID(userID, date string, index int) string {
	sum := sha1.Sum([]byte(userID + "|" + date + "|" + strconv.Itoa(index)))
	return hex.EncodeToString(sum[:])[:16]
}

// Sessionize sorts events by (user_id, ts) and assigns session indexes and ids.
// A new session starts with a user's first event and whenever the gap since the
// previous event exceeds timeout. Users are processed in parallel by up to
// workers goroutines; the output order does not depend on workers.
func Sessionize(events []types.CleanEvent, timeout time.Duration, workers int) []types.SessionEvent {
	if timeout <= 0 {
		timeout = types.DefaultSessionTimeout
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	out := make([]types.SessionEvent, len(events))
	for i, e := range events {
		out[i] = types.SessionEvent{CleanEvent: e}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].TS.Before(out[j].TS)
	})

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for _, r := range userRanges(out) {
		wg.Add(1)
		sem <- struct{}{}
		go func(group []types.SessionEvent) {
			defer wg.Done()
			defer func() { <-sem }()
			assign(group, timeout)
		}(out[r[0]:r[1]])
	}
	wg.Wait()

	return out
}

// assign numbers the sessions of one user's chronologically sorted events.
// Each goroutine owns a disjoint sub-slice.
func assign(group []types.SessionEvent, timeout time.Duration) {
	index := -1
	var sessionDate string
	for i := range group {
		if i == 0 || group[i].TS.Sub(group[i-1].TS) > timeout {
			index++
			sessionDate = group[i].Date
		}
		group[i].SessionIndex = index
		group[i].SessionID = SessionID(group[i].UserID, sessionDate, index)
	}
}

// userRanges returns the [start, end) bounds of each user's run in sorted events.
func userRanges(events []types.SessionEvent) [][2]int {
	var ranges [][2]int
	start := 0
	for i := 1; i <= len(events); i++ {
		if i == len(events) || events[i].UserID != events[start].UserID {
			ranges = append(ranges, [2]int{start, i})
			start = i
		}
	}
	return ranges
}
