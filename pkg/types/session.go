package types

import "time"

// Funnel steps, in order.
const (
	PathRoot      = "/"
	PathProductos = "/productos"
	PathCarrito   = "/carrito"
	PathCheckout  = "/checkout"
)

// FunnelProgress is the funnel outcome of one session. Each flag implies the previous one.
type FunnelProgress struct {
	SawRoot                  bool `json:"saw_root"`
	SawProductosAfterRoot    bool `json:"saw_productos_after_root"`
	SawCarritoAfterProductos bool `json:"saw_carrito_after_productos"`
	SawCheckoutAfterCarrito  bool `json:"saw_checkout_after_carrito"`

	// Purchases counts complete non-overlapping funnel cycles
	Purchases int `json:"purchases_in_session"`
}

// Session is derived from the events sharing a session id; it is recomputed every run.
type Session struct {
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	Date        string    `json:"date"`
	StartTS     time.Time `json:"start_ts"`
	EndTS       time.Time `json:"end_ts"`
	Pageviews   int       `json:"pageviews"`
	DeviceFirst string    `json:"device_first"`

	FunnelProgress

	DurationSec float64 `json:"session_duration_sec"`
}

// UserStat is one row of the per-user summary table.
type UserStat struct {
	UserID             string  `json:"user_id"`
	Sessions           int     `json:"sessions"`
	Purchases          int     `json:"purchases"`
	AvgSessionDuration float64 `json:"avg_session_duration_sec"`
	Events             int     `json:"events"`
}

// PathCount is one row of the top paths table.
type PathCount struct {
	Path  string `json:"path"`
	Views int    `json:"views"`
}

// DeviceCount is one row of the device usage table.
type DeviceCount struct {
	Device string `json:"device"`
	Events int    `json:"events"`
}

// DayCount is one row of the sessions per day table.
type DayCount struct {
	Date     string `json:"date"`
	Sessions int    `json:"sessions"`
}

// FunnelStep is one row of the funnel table.
type FunnelStep struct {
	Step        string  `json:"step"`
	Count       int     `json:"count"`
	RateStep    float64 `json:"rate_step"`
	RateOverall float64 `json:"rate_overall"`
}
