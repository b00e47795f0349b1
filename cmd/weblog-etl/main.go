// Package main implements weblog-etl, the daily web log batch job. It reads one
// day's NDJSON drop and writes the silver, gold and quarantine tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/arkilian/weblog/internal/config"
	weberrors "github.com/arkilian/weblog/internal/errors"
	"github.com/arkilian/weblog/internal/logging"
	"github.com/arkilian/weblog/internal/pipeline"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitInput   = 2
)

func main() {
	os.Exit(run())
}

// options holds the command line. Only flags the user set override the
// loaded configuration.
type options struct {
	configFile  string
	day         string
	input       string
	timeoutMin  int
	format      string
	bronzeDir   string
	silverDir   string
	goldDir     string
	quarantine  string
	reportDir   string
	noReport    bool
	workers     int
	logLevel    string
	logFormat   string
	metricsFile string
	showVersion bool
}

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.configFile, "config", "", "Path to YAML configuration file (or $WEBLOG_CONFIG)")
	fs.StringVar(&o.day, "day", "", "Processing day YYYY-MM-DD (default: today UTC)")
	fs.StringVar(&o.input, "input", "", "Input NDJSON file (default: <bronze>/<day>/events.ndjson)")
	fs.IntVar(&o.timeoutMin, "timeout-min", 0, "Session inactivity timeout in minutes")
	fs.StringVar(&o.format, "format", "", "Output format: parquet or sqlite")
	fs.StringVar(&o.bronzeDir, "bronze", "", "Bronze drop directory")
	fs.StringVar(&o.silverDir, "silver", "", "Silver output directory")
	fs.StringVar(&o.goldDir, "gold", "", "Gold output directory")
	fs.StringVar(&o.quarantine, "quarantine", "", "Quarantine output directory")
	fs.StringVar(&o.reportDir, "report-dir", "", "Report output directory")
	fs.BoolVar(&o.noReport, "no-report", false, "Skip the Markdown report")
	fs.IntVar(&o.workers, "workers", 0, "Parallel workers (default: NumCPU)")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&o.logFormat, "log-format", "", "Log format: json or console")
	fs.StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus textfile metrics to this path")
	fs.BoolVar(&o.showVersion, "version", false, "Show version information")
}

// apply copies the flags set on fs into cfg.
func (o *options) apply(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "day":
			cfg.Day = o.day
		case "input":
			cfg.Input = o.input
		case "timeout-min":
			cfg.SessionTimeoutMin = o.timeoutMin
		case "format":
			cfg.Format = config.Format(o.format)
		case "bronze":
			cfg.BronzeDir = o.bronzeDir
		case "silver":
			cfg.SilverDir = o.silverDir
		case "gold":
			cfg.GoldDir = o.goldDir
		case "quarantine":
			cfg.QuarantineDir = o.quarantine
		case "report-dir":
			cfg.ReportDir = o.reportDir
		case "no-report":
			cfg.Report = !o.noReport
		case "workers":
			cfg.Workers = o.workers
		case "log-level":
			cfg.Log.Level = o.logLevel
		case "log-format":
			cfg.Log.Format = o.logFormat
		case "metrics-file":
			cfg.MetricsFile = o.metricsFile
		}
	})
}

func usage() {
	fmt.Fprintf(os.Stderr, "weblog-etl - daily web log ETL (bronze -> silver -> gold)\n\n")
	fmt.Fprintf(os.Stderr, "Usage: weblog-etl [options]\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  weblog-etl --day 2025-03-01\n")
	fmt.Fprintf(os.Stderr, "  weblog-etl --day 2025-03-01 --format sqlite --timeout-min 20 --no-report\n")
	fmt.Fprintf(os.Stderr, "  weblog-etl --config /etc/weblog/config.yaml\n")
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  WEBLOG_CONFIG           Configuration file path\n")
	fmt.Fprintf(os.Stderr, "  WEBLOG_DAY              Processing day\n")
	fmt.Fprintf(os.Stderr, "  WEBLOG_FORMAT           Output format\n")
	fmt.Fprintf(os.Stderr, "  WEBLOG_STORAGE_TYPE     Publishing target (none, local, s3)\n")
	fmt.Fprintf(os.Stderr, "\nExit codes: 0 success, 2 input missing or unreadable, 1 other failure\n")
}

func run() int {
	var opts options
	opts.register(flag.CommandLine)
	flag.Usage = usage
	flag.Parse()

	if opts.showVersion {
		fmt.Printf("weblog-etl version %s (commit: %s)\n", version, commit)
		return exitOK
	}

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return exitFailure
	}
	opts.apply(flag.CommandLine, cfg)

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	log := logging.WithComponent("weblog-etl")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create pipeline")
		return exitCode(err)
	}

	summary, err := p.Run(ctx)
	if err != nil {
		log.Error().Err(err).Str("code", weberrors.GetCode(err)).Msg("Run failed")
		return exitCode(err)
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode summary")
		return exitFailure
	}
	fmt.Println(string(out))
	return exitOK
}

func exitCode(err error) int {
	if weberrors.IsInputError(err) {
		return exitInput
	}
	return exitFailure
}
