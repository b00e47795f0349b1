// Package types provides the shared data model of the weblog pipeline.
package types

import "time"

// Canonical field names of an input event.
const (
	FieldTS       = "ts"
	FieldUserID   = "user_id"
	FieldPath     = "path"
	FieldReferrer = "referrer"
	FieldDevice   = "device"
)

// Accepted device classes.
const (
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
	DeviceTablet  = "tablet"
)

// DateLayout is the layout of calendar dates (partition keys, the date column).
const DateLayout = "2006-01-02"

// RawRecord is one decoded input line before any validation.
type RawRecord struct {
	// LineNo is the 1-based line number of the record in the source file
	LineNo int `json:"line_no"`

	// Fields holds the decoded JSON object, untyped
	Fields map[string]any `json:"fields"`

	// SourceFile is the base name of the file the line was read from
	SourceFile string `json:"source_file"`

	// IngestionTS is the instant the run started reading; identical for every record of a run
	IngestionTS time.Time `json:"ingestion_ts"`

	// BatchID identifies the run that ingested the record
	BatchID string `json:"batch_id"`
}

// CleanEvent is a validated, normalized event of the silver layer.
type CleanEvent struct {
	// LineNo links the event back to its bronze line; it is not persisted
	LineNo int `json:"-"`

	TS       time.Time `json:"ts"`
	UserID   string    `json:"user_id"`
	Path     string    `json:"path"`
	Referrer string    `json:"referrer"`
	Device   string    `json:"device"`

	// Date is the UTC calendar date of TS (YYYY-MM-DD)
	Date string `json:"date"`
}

// SessionEvent is a CleanEvent annotated with its session.
type SessionEvent struct {
	CleanEvent

	// SessionIndex is the zero-based session ordinal of the event within its user's day
	SessionIndex int `json:"session_index"`

	// SessionID is the first 16 hex characters of SHA-1(user_id|date|session_index)
	SessionID string `json:"session_id"`
}
