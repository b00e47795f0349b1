package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/arkilian/weblog/pkg/types"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve(types.FixedClock{T: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)})

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Day != "2025-03-01" {
		t.Errorf("day = %q", cfg.Day)
	}
	if want := filepath.Join("data/drops", "2025-03-01", "events.ndjson"); cfg.Input != want {
		t.Errorf("input = %q, want %q", cfg.Input, want)
	}
	if cfg.SessionTimeout() != 30*time.Minute {
		t.Errorf("timeout = %v", cfg.SessionTimeout())
	}
	if cfg.Workers <= 0 {
		t.Errorf("workers should default to NumCPU, got %d", cfg.Workers)
	}
}

func TestExtension(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.Extension(); got != "parquet" {
		t.Errorf("default extension = %q, want parquet", got)
	}
	cfg.Format = FormatSQLite
	if got := cfg.Extension(); got != "sqlite" {
		t.Errorf("sqlite extension = %q", got)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad day", func(c *Config) { c.Day = "01/03/2025" }},
		{"zero timeout", func(c *Config) { c.SessionTimeoutMin = 0 }},
		{"bad format", func(c *Config) { c.Format = "csv" }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"missing silver dir", func(c *Config) { c.SilverDir = "" }},
		{"bad storage", func(c *Config) { c.Storage.Type = "gcs" }},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = "s3" }},
		{"report without dir", func(c *Config) { c.ReportDir = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Day = "2025-03-01"
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_Layering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weblog.yaml")
	yml := strings.Join([]string{
		`day: "2025-03-01"`,
		"format: sqlite",
		"gold_dir: /tmp/gold-from-file",
		"storage:",
		"  type: s3",
		"  s3:",
		"    bucket: from-file",
	}, "\n")
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Setenv("WEBLOG_GOLD_DIR", "/tmp/gold-from-env")
	t.Setenv("WEBLOG_SESSION_TIMEOUT_MIN", "45")
	t.Setenv("WEBLOG_REPORT", "false")
	t.Setenv("WEBLOG_UNRELATED", "ignored")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Day != "2025-03-01" {
		t.Errorf("day = %q", cfg.Day)
	}
	if cfg.Format != FormatSQLite {
		t.Errorf("format = %q", cfg.Format)
	}
	if cfg.GoldDir != "/tmp/gold-from-env" {
		t.Errorf("env should override file, got %q", cfg.GoldDir)
	}
	if cfg.SessionTimeoutMin != 45 {
		t.Errorf("timeout = %d", cfg.SessionTimeoutMin)
	}
	if cfg.Report {
		t.Error("report should be disabled by env")
	}
	if cfg.Storage.Type != "s3" || cfg.Storage.S3.Bucket != "from-file" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.SilverDir != "output/silver" {
		t.Errorf("default should survive, got %q", cfg.SilverDir)
	}
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("bronze_dir: drops\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BronzeDir != "drops" {
		t.Errorf("bronze_dir = %q", cfg.BronzeDir)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"WEBLOG_S3_BUCKET": "storage.s3.bucket",
		"WEBLOG_LOG_LEVEL": "log.level",
		"WEBLOG_FORMAT":    "format",
		"WEBLOG_CONFIG":    "",
		"WEBLOG_SOMETHING": "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.SilverDir = filepath.Join(root, "silver")
	cfg.GoldDir = filepath.Join(root, "gold")
	cfg.QuarantineDir = filepath.Join(root, "q")
	cfg.ReportDir = filepath.Join(root, "reports")
	cfg.ManifestPath = filepath.Join(root, "meta", "manifest.db")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, d := range []string{cfg.SilverDir, cfg.GoldDir, cfg.QuarantineDir, cfg.ReportDir, filepath.Join(root, "meta")} {
		if info, err := os.Stat(d); err != nil || !info.IsDir() {
			t.Errorf("directory %s not created", d)
		}
	}
}
