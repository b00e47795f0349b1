package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment variable the loader reads.
const EnvPrefix = "WEBLOG_"

// ConfigPathEnvVar names a YAML config file when no path is passed to Load.
const ConfigPathEnvVar = "WEBLOG_CONFIG"

// Load layers configuration: defaults, then the YAML file at path (or
// $WEBLOG_CONFIG), then WEBLOG_* environment variables. CLI flags are applied
// by the caller on top of the result. The returned config is not yet resolved
// or validated.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(ConfigPathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

// envMappings maps lowercased variable names, prefix removed, to koanf paths.
var envMappings = map[string]string{
	"day":                 "day",
	"session_timeout_min": "session_timeout_min",
	"input":               "input",
	"bronze_dir":          "bronze_dir",
	"bronze_file":         "bronze_file",
	"silver_dir":          "silver_dir",
	"gold_dir":            "gold_dir",
	"quarantine_dir":      "quarantine_dir",
	"report_dir":          "report_dir",
	"format":              "format",
	"workers":             "workers",
	"manifest_path":       "manifest_path",
	"metrics_file":        "metrics_file",
	"report":              "report",
	"storage_type":        "storage.type",
	"storage_path":        "storage.path",
	"storage_prefix":      "storage.prefix",
	"s3_bucket":           "storage.s3.bucket",
	"s3_region":           "storage.s3.region",
	"s3_endpoint":         "storage.s3.endpoint",
	"s3_use_path_style":   "storage.s3.use_path_style",
	"log_level":           "log.level",
	"log_format":          "log.format",
}

// envTransformFunc maps WEBLOG_GOLD_DIR to gold_dir, WEBLOG_S3_BUCKET to
// storage.s3.bucket and so on. Unknown variables (including WEBLOG_CONFIG)
// map to "" and are skipped.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return envMappings[key]
}
