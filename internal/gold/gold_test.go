package gold

import (
	"math"
	"testing"
	"time"

	"github.com/arkilian/weblog/internal/sessionize"
	"github.com/arkilian/weblog/pkg/types"
)

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func clean(user string, minutes int, path, device string) types.CleanEvent {
	ts := base.Add(time.Duration(minutes) * time.Minute)
	return types.CleanEvent{TS: ts, UserID: user, Path: path, Referrer: "direct", Device: device, Date: ts.Format(types.DateLayout)}
}

func fixture() []types.SessionEvent {
	events := []types.CleanEvent{
		// u1 session 0: full funnel, one purchase
		clean("u1", 0, "/", "desktop"),
		clean("u1", 2, "/productos", "mobile"),
		clean("u1", 4, "/carrito", "mobile"),
		clean("u1", 6, "/checkout", "mobile"),
		// u1 session 1
		clean("u1", 120, "/productos", "mobile"),
		// u2 single session, root and productos
		clean("u2", 10, "/", "tablet"),
		clean("u2", 11, "/productos", "tablet"),
	}
	return sessionize.Sessionize(events, 30*time.Minute, 2)
}

func TestBuildSessions(t *testing.T) {
	sessions := BuildSessions(fixture(), 3)
	if len(sessions) != 3 {
		t.Fatalf("sessions = %d, want 3", len(sessions))
	}

	s := sessions[0]
	if s.UserID != "u1" || s.Pageviews != 4 || s.DeviceFirst != "desktop" {
		t.Errorf("session 0 = %+v", s)
	}
	if s.DurationSec != 360 {
		t.Errorf("duration = %v, want 360", s.DurationSec)
	}
	if !s.SawCheckoutAfterCarrito || s.Purchases != 1 {
		t.Errorf("funnel = %+v", s.FunnelProgress)
	}
	if s.SessionID != sessionize.SessionID("u1", "2025-03-01", 0) {
		t.Errorf("session id = %s", s.SessionID)
	}

	single := sessions[1]
	if single.UserID != "u1" || single.Pageviews != 1 || single.DurationSec != 0 {
		t.Errorf("single-event session = %+v", single)
	}
	if single.SawRoot {
		t.Error("second u1 session has no root")
	}
	if sessions[2].UserID != "u2" {
		t.Errorf("sessions must be ordered by user, got %s", sessions[2].UserID)
	}
}

func TestAggregate(t *testing.T) {
	events := fixture()
	tables := Aggregate(events, BuildSessions(events, 1))

	if len(tables.UserStats) != 2 {
		t.Fatalf("user stats = %+v", tables.UserStats)
	}
	u1 := tables.UserStats[0]
	if u1.UserID != "u1" || u1.Sessions != 2 || u1.Purchases != 1 || u1.Events != 5 || u1.AvgSessionDuration != 180 {
		t.Errorf("u1 = %+v", u1)
	}
	if tables.Purchases() != 1 {
		t.Errorf("purchases = %d", tables.Purchases())
	}

	if tables.TopPaths[0].Path != "/productos" || tables.TopPaths[0].Views != 3 {
		t.Errorf("top path = %+v", tables.TopPaths[0])
	}
	if tables.DeviceUsage[0].Device != "mobile" || tables.DeviceUsage[0].Events != 4 {
		t.Errorf("device usage = %+v", tables.DeviceUsage)
	}
	if len(tables.SessionsPerDay) != 1 || tables.SessionsPerDay[0].Sessions != 3 {
		t.Errorf("sessions per day = %+v", tables.SessionsPerDay)
	}

	wantCounts := []int{3, 2, 2, 1, 1}
	for i, row := range tables.Funnel {
		if row.Count != wantCounts[i] {
			t.Errorf("funnel row %s count = %d, want %d", row.Step, row.Count, wantCounts[i])
		}
	}
	if tables.Funnel[0].Step != FunnelTotalStep || tables.Funnel[0].RateStep != 1.0 || tables.Funnel[0].RateOverall != 1.0 {
		t.Errorf("total row = %+v", tables.Funnel[0])
	}
	if r := tables.Funnel[3]; math.Abs(r.RateStep-0.5) > 1e-9 || math.Abs(r.RateOverall-1.0/3) > 1e-9 {
		t.Errorf("carrito row = %+v", r)
	}
}

func TestTopPaths_TiesByPath(t *testing.T) {
	var events []types.SessionEvent
	add := func(path string, n int) {
		for i := 0; i < n; i++ {
			events = append(events, types.SessionEvent{CleanEvent: types.CleanEvent{Path: path}})
		}
	}
	add("/c", 3)
	add("/b", 5)
	add("/a", 5)

	top := TopPaths(events, TopPathsLimit)
	want := []types.PathCount{{Path: "/a", Views: 5}, {Path: "/b", Views: 5}, {Path: "/c", Views: 3}}
	for i := range want {
		if top[i] != want[i] {
			t.Fatalf("top paths = %+v, want %+v", top, want)
		}
	}
}

func TestTopPaths_Limit(t *testing.T) {
	var events []types.SessionEvent
	for i := 0; i < 15; i++ {
		events = append(events, types.SessionEvent{CleanEvent: types.CleanEvent{Path: string(rune('a'+i))}})
	}
	if got := len(TopPaths(events, TopPathsLimit)); got != 10 {
		t.Errorf("top paths length = %d, want 10", got)
	}
}

func TestFunnelTable_ZeroSessions(t *testing.T) {
	rows := FunnelTable(nil)
	if len(rows) != 5 {
		t.Fatalf("rows = %d", len(rows))
	}
	for _, r := range rows {
		if r.Count != 0 || r.RateStep != 1.0 || r.RateOverall != 0.0 {
			t.Errorf("row %+v", r)
		}
	}
}

func TestUserStats_Ordering(t *testing.T) {
	sessions := []types.Session{
		{UserID: "c", SessionID: "1"},
		{UserID: "b", SessionID: "2", FunnelProgress: types.FunnelProgress{Purchases: 1}},
		{UserID: "a", SessionID: "3"},
		{UserID: "a", SessionID: "4"},
		{UserID: "d", SessionID: "5"},
	}
	events := []types.SessionEvent{
		{CleanEvent: types.CleanEvent{UserID: "d"}},
		{CleanEvent: types.CleanEvent{UserID: "d"}},
		{CleanEvent: types.CleanEvent{UserID: "c"}},
	}
	stats := UserStats(events, sessions)

	order := ""
	for _, s := range stats {
		order += s.UserID
	}
	if order != "badc" {
		t.Errorf("order = %s, want badc", order)
	}
}
