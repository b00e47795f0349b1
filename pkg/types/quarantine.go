package types

import "time"

// ErrorKind names the reason a record was diverted to quarantine.
type ErrorKind string

const (
	KindInvalidJSON ErrorKind = "invalid_json"
	KindTS          ErrorKind = "ts"
	KindUserID      ErrorKind = "user_id"
	KindPath        ErrorKind = "path"
	KindReferrer    ErrorKind = "referrer"
	KindDevice      ErrorKind = "device"
	KindOutsideDay  ErrorKind = "outside_day"
	KindDuplicate   ErrorKind = "duplicate"
)

// ErrorKinds lists every quarantine kind in the order a record can be rejected.
var ErrorKinds = []ErrorKind{
	KindInvalidJSON,
	KindTS,
	KindUserID,
	KindPath,
	KindReferrer,
	KindDevice,
	KindOutsideDay,
	KindDuplicate,
}

// QuarantineRecord is a rejected input record. Quarantine is write-once and never
// read back by the pipeline.
type QuarantineRecord struct {
	// LineNo is the bronze line number of the rejected record
	LineNo int `json:"line_no"`

	// Payload is the raw line text for invalid_json, otherwise the canonical JSON
	// of the partially-typed row
	Payload string `json:"payload"`

	ErrorKind   ErrorKind `json:"error_kind"`
	SourceFile  string    `json:"source_file"`
	IngestionTS time.Time `json:"ingestion_ts"`
	BatchID     string    `json:"batch_id"`
}
