package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Logger()
	prevLevel := zerolog.GlobalLevel()
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() {
		SetLogger(prev)
		zerolog.SetGlobalLevel(prevLevel)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":    zerolog.DebugLevel,
		"INFO":     zerolog.InfoLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
		"bogus":    zerolog.InfoLevel,
		"":         zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCtx_AddsRunAndBatchIDs(t *testing.T) {
	buf := captureLogger(t)

	ctx := ContextWithRunID(context.Background(), "abcd1234")
	ctx = ContextWithBatchID(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	Ctx(ctx).Info().Int("rows", 3).Msg("stage done")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["run_id"] != "abcd1234" {
		t.Errorf("run_id = %v", entry["run_id"])
	}
	if entry["batch_id"] != "01ARZ3NDEKTSV4RRFFQ69G5FAV" {
		t.Errorf("batch_id = %v", entry["batch_id"])
	}
	if entry["message"] != "stage done" {
		t.Errorf("message = %v", entry["message"])
	}
}

func TestWithComponent(t *testing.T) {
	buf := captureLogger(t)

	l := WithComponent("silver")
	l.Warn().Msg("late rows")

	if !strings.Contains(buf.String(), `"component":"silver"`) {
		t.Errorf("component field missing: %s", buf.String())
	}
}

func TestGenerateRunID(t *testing.T) {
	a, b := GenerateRunID(), GenerateRunID()
	if len(a) != 8 || a == b {
		t.Errorf("unexpected run ids %q %q", a, b)
	}
	if RunIDFromContext(context.Background()) != "" {
		t.Error("empty context should have no run id")
	}
}
