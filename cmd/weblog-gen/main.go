// Package main implements weblog-gen, which writes a synthetic NDJSON drop for
// one day.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arkilian/weblog/internal/logging"
	"github.com/arkilian/weblog/internal/synth"
	"github.com/arkilian/weblog/pkg/types"
)

func main() {
	var (
		day       string
		bronzeDir string
		events    int
		seed      int64
		maxKB     int
	)

	flag.StringVar(&day, "day", time.Now().UTC().Format(types.DateLayout), "Day to generate YYYY-MM-DD")
	flag.StringVar(&bronzeDir, "bronze", "data/drops", "Bronze drop directory")
	flag.IntVar(&events, "n", 500, "Number of generation rounds")
	flag.Int64Var(&seed, "seed", 42, "Random seed")
	flag.IntVar(&maxKB, "max-kb", 100, "Maximum output size in KiB")
	flag.Parse()

	log := logging.WithComponent("weblog-gen")

	d, err := types.ParseDay(day)
	if err != nil {
		log.Fatal().Err(err).Str("day", day).Msg("Invalid day")
	}

	path := filepath.Join(bronzeDir, day, "events.ndjson")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create drop directory")
	}
	f, err := os.Create(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create drop file")
	}

	lines := synth.Generate(d, events, seed)
	written, err := synth.WriteLimited(f, lines, maxKB*1024)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to write drop file")
	}

	log.Info().
		Str("path", path).
		Int("lines", len(lines)).
		Str("size", fmt.Sprintf("%.2f KB", float64(written)/1024)).
		Msg("Generated drop file")
}
