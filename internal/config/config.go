// Package config provides configuration for the weblog pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/arkilian/weblog/pkg/types"
)

// Format is the on-disk table format.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatSQLite  Format = "sqlite"
)

// Config holds the configuration for one pipeline run.
type Config struct {
	// Day is the processing day (YYYY-MM-DD); empty means today in UTC
	Day string `koanf:"day" validate:"omitempty,datetime=2006-01-02"`

	// SessionTimeoutMin is the inactivity gap in minutes that starts a new session
	SessionTimeoutMin int `koanf:"session_timeout_min" validate:"gt=0"`

	// Input overrides the derived input path
	Input string `koanf:"input"`

	// BronzeDir holds one drop directory per day
	BronzeDir string `koanf:"bronze_dir" validate:"required"`

	// BronzeFile is the file name inside each day's drop directory
	BronzeFile string `koanf:"bronze_file" validate:"required"`

	SilverDir     string `koanf:"silver_dir" validate:"required"`
	GoldDir       string `koanf:"gold_dir" validate:"required"`
	QuarantineDir string `koanf:"quarantine_dir" validate:"required"`
	ReportDir     string `koanf:"report_dir"`

	// Format is parquet or sqlite
	Format Format `koanf:"format" validate:"oneof=parquet sqlite"`

	// Workers bounds per-user parallelism; 0 means NumCPU
	Workers int `koanf:"workers" validate:"gte=0"`

	// ManifestPath is the run catalog database; empty disables it
	ManifestPath string `koanf:"manifest_path"`

	// MetricsFile receives Prometheus text exposition output when set
	MetricsFile string `koanf:"metrics_file"`

	// Report controls whether the Markdown report is written
	Report bool `koanf:"report"`

	Storage StorageConfig `koanf:"storage"`
	Log     LogConfig     `koanf:"log"`
}

// StorageConfig holds publishing configuration.
type StorageConfig struct {
	// Type is none, local or s3
	Type string `koanf:"type" validate:"oneof=none local s3"`

	// Path is the local object store root (local type)
	Path string `koanf:"path"`

	// Prefix is prepended to every published object key
	Prefix string `koanf:"prefix"`

	S3 S3Config `koanf:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	Bucket string `koanf:"bucket"`
	Region string `koanf:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint     string `koanf:"endpoint"`
	UsePathStyle bool   `koanf:"use_path_style"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SessionTimeoutMin: 30,
		BronzeDir:         "data/drops",
		BronzeFile:        "events.ndjson",
		SilverDir:         "output/silver",
		GoldDir:           "output/gold",
		QuarantineDir:     "output/quarantine",
		ReportDir:         "output/reports",
		Format:            FormatParquet,
		ManifestPath:      "output/manifest.db",
		Report:            true,
		Storage: StorageConfig{
			Type: "none",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Resolve fills values derived from other settings. The clock supplies the
// default day.
func (c *Config) Resolve(clock types.Clock) {
	if clock == nil {
		clock = types.SystemClock{}
	}
	if c.Day == "" {
		c.Day = clock.Now().UTC().Format(types.DateLayout)
	}
	if c.Input == "" {
		c.Input = filepath.Join(c.BronzeDir, c.Day, c.BronzeFile)
	}
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Storage.Type == "local" && c.Storage.Path == "" {
		c.Storage.Path = filepath.Join("output", "published")
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required when storage type is s3")
	}
	if c.Report && c.ReportDir == "" {
		return fmt.Errorf("report_dir is required when report is enabled")
	}
	return nil
}

// SessionTimeout returns the session inactivity gap.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMin) * time.Minute
}

// ParsedDay returns the processing day as midnight UTC.
func (c *Config) ParsedDay() (time.Time, error) {
	return types.ParseDay(c.Day)
}

// Extension returns the file extension for the configured format.
func (c *Config) Extension() string {
	return string(c.Format)
}

// EnsureDirectories creates the output directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.SilverDir,
		c.GoldDir,
		c.QuarantineDir,
	}
	if c.Report {
		dirs = append(dirs, c.ReportDir)
	}
	if c.ManifestPath != "" {
		dirs = append(dirs, filepath.Dir(c.ManifestPath))
	}
	if c.MetricsFile != "" {
		dirs = append(dirs, filepath.Dir(c.MetricsFile))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
