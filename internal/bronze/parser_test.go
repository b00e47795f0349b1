package bronze

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	weberrors "github.com/arkilian/weblog/internal/errors"
	"github.com/arkilian/weblog/pkg/types"
)

func testRun(t *testing.T) types.RunContext {
	t.Helper()
	day, _ := types.ParseDay("2025-03-01")
	run, err := types.NewRunContext(day, 0, types.FixedClock{T: time.Date(2025, 3, 2, 0, 5, 0, 0, time.UTC)}, "events.ndjson")
	if err != nil {
		t.Fatalf("NewRunContext failed: %v", err)
	}
	return run
}

func TestParse_SplitsValidAndInvalid(t *testing.T) {
	input := strings.Join([]string{
		`{"ts":"2025-03-01T10:00:00Z","user_id":"u1","path":"/"}`,
		``,
		`   `,
		`{"ts": broken`,
		`[1,2,3]`,
		`"just a string"`,
		`{"a":1} trailing`,
		`{"user_id":"u2","extra":{"nested":true}}`,
	}, "\n")

	run := testRun(t)
	res, err := Parse(context.Background(), strings.NewReader(input), run)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if res.Lines != 6 {
		t.Errorf("lines = %d, want 6 (blank lines skipped)", res.Lines)
	}
	if res.Valid != 2 || len(res.Records) != 2 {
		t.Errorf("valid = %d, want 2", res.Valid)
	}
	if res.Invalid != 4 || len(res.Rejects) != 4 {
		t.Errorf("invalid = %d, want 4", res.Invalid)
	}

	if res.Records[0].LineNo != 1 || res.Records[1].LineNo != 8 {
		t.Errorf("line numbers = %d, %d", res.Records[0].LineNo, res.Records[1].LineNo)
	}
	if res.Records[1].Fields["user_id"] != "u2" {
		t.Errorf("fields = %v", res.Records[1].Fields)
	}

	reject := res.Rejects[0]
	if reject.Payload != `{"ts": broken` {
		t.Errorf("raw line should be preserved, got %q", reject.Payload)
	}
	if reject.ErrorKind != types.KindInvalidJSON || reject.LineNo != 4 {
		t.Errorf("reject = %+v", reject)
	}

	for _, q := range res.Rejects {
		if !q.IngestionTS.Equal(run.IngestionTS) || q.BatchID != run.BatchID || q.SourceFile != "events.ndjson" {
			t.Errorf("reject missing run metadata: %+v", q)
		}
	}
	for _, r := range res.Records {
		if !r.IngestionTS.Equal(run.IngestionTS) || r.BatchID != run.BatchID {
			t.Errorf("record missing run metadata: %+v", r)
		}
	}
}

func TestParse_RejectsLenientJSON(t *testing.T) {
	lines := []string{
		`{"ts":"2025-03-01T10:00:00Z","user_id":"u1","path":"/","n":01}`,
		`{"user_id":"u1","n":-01}`,
		`{"user_id":"u1","n":1.}`,
		"{\"user_id\":\"u1\tu2\"}",
		`{"user_id":"u1","n":1.5e3}`,
	}
	res, err := Parse(context.Background(), strings.NewReader(strings.Join(lines, "\n")), testRun(t))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Valid != 1 || res.Invalid != 4 {
		t.Fatalf("valid = %d, invalid = %d, want 1 and 4", res.Valid, res.Invalid)
	}
	for i, q := range res.Rejects {
		if q.ErrorKind != types.KindInvalidJSON || q.LineNo != i+1 || q.Payload != lines[i] {
			t.Errorf("reject %d = %+v", i, q)
		}
	}
	if res.Records[0].LineNo != 5 {
		t.Errorf("valid record line = %d, want 5", res.Records[0].LineNo)
	}
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile(context.Background(), filepath.Join(t.TempDir(), "absent.ndjson"), testRun(t))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if weberrors.GetCode(err) != weberrors.CodeInputNotFound {
		t.Errorf("code = %q, want %q", weberrors.GetCode(err), weberrors.CodeInputNotFound)
	}
}

func TestParseFile_Directory(t *testing.T) {
	_, err := ParseFile(context.Background(), t.TempDir(), testRun(t))
	if !weberrors.IsInputError(err) {
		t.Errorf("expected input error, got %v", err)
	}
}

func TestParseFile_SetsSourceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drop.ndjson")
	if err := os.WriteFile(path, []byte("{\"user_id\":\"u\"}\nnope\n"), 0644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}
	run := testRun(t)
	run.SourceFile = ""

	res, err := ParseFile(context.Background(), path, run)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if res.Records[0].SourceFile != "drop.ndjson" || res.Rejects[0].SourceFile != "drop.ndjson" {
		t.Errorf("source file not set from path")
	}
}

func TestParse_EmptyInput(t *testing.T) {
	res, err := Parse(context.Background(), strings.NewReader("\n\n"), testRun(t))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Lines != 0 || res.Valid != 0 || res.Invalid != 0 {
		t.Errorf("unexpected counts %+v", res)
	}
}
