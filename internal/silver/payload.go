package silver

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/gowebpki/jcs"

	"github.com/arkilian/weblog/pkg/types"
)

// quarantineRow builds the quarantine record for a row rejected after decoding.
func quarantineRow(row typed, kind types.ErrorKind) types.QuarantineRecord {
	return types.QuarantineRecord{
		LineNo:      row.raw.LineNo,
		Payload:     Payload(row),
		ErrorKind:   kind,
		SourceFile:  row.raw.SourceFile,
		IngestionTS: row.raw.IngestionTS,
		BatchID:     row.raw.BatchID,
	}
}

// Payload renders the partially-typed row: the original fields with the five
// canonical keys replaced by their normalized values (null when absent), as
// RFC 8785 canonical JSON so identical rows always produce identical bytes.
func Payload(row typed) string {
	out := make(map[string]any, len(row.raw.Fields)+5)
	for k, v := range row.raw.Fields {
		out[k] = v
	}
	out[types.FieldTS] = nullable(row.present[0], row.ts.UTC().Format(time.RFC3339Nano))
	out[types.FieldUserID] = nullable(row.present[1], row.userID)
	out[types.FieldPath] = nullable(row.present[2], row.path)
	out[types.FieldReferrer] = nullable(row.present[3], row.referrer)
	out[types.FieldDevice] = nullable(row.present[4], row.device)

	raw, err := json.Marshal(out)
	if err != nil {
		// unreachable for decoded JSON
		return "{}"
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return string(raw)
	}
	return string(canonical)
}

func nullable(ok bool, v string) any {
	if !ok {
		return nil
	}
	return v
}
