// Package bronze reads a day's raw NDJSON drop into untyped records, isolating
// lines that are not JSON objects.
package bronze

import (
	"bufio"
	"bytes"
	"context"
	stdjson "encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	weberrors "github.com/arkilian/weblog/internal/errors"
	"github.com/arkilian/weblog/pkg/types"
)

// MaxLineBytes is the longest input line the parser accepts.
const MaxLineBytes = 16 << 20

// checkEvery is how many lines pass between context checks.
const checkEvery = 4096

// Result holds the outcome of parsing one file.
type Result struct {
	// Records are the lines that decoded to JSON objects, in file order
	Records []types.RawRecord

	// Rejects are invalid_json quarantine rows, in file order
	Rejects []types.QuarantineRecord

	// Lines is the number of non-blank lines read
	Lines int

	Valid   int
	Invalid int
}

// ParseFile parses the NDJSON file at path. Only a missing or unreadable file is
// an error; malformed lines become rejects.
func ParseFile(ctx context.Context, path string, run types.RunContext) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, weberrors.NewInputError(weberrors.CodeInputNotFound,
				fmt.Sprintf("input file %s does not exist", path), err)
		}
		return nil, weberrors.NewInputError(weberrors.CodeInputUnreadable,
			fmt.Sprintf("failed to open input file %s", path), err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.IsDir() {
		return nil, weberrors.NewInputError(weberrors.CodeInputUnreadable,
			fmt.Sprintf("input path %s is a directory", path), nil)
	}

	if run.SourceFile == "" {
		run.SourceFile = filepath.Base(path)
	}
	return Parse(ctx, f, run)
}

// Parse reads NDJSON from r. Every record and reject carries the run's source
// file, ingestion instant and batch id.
func Parse(ctx context.Context, r io.Reader, run types.RunContext) (*Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)

	res := &Result{}
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		res.Lines++

		fields, ok := decodeObject(line)
		if !ok {
			res.Invalid++
			res.Rejects = append(res.Rejects, types.QuarantineRecord{
				LineNo:      lineNo,
				Payload:     string(line),
				ErrorKind:   types.KindInvalidJSON,
				SourceFile:  run.SourceFile,
				IngestionTS: run.IngestionTS,
				BatchID:     run.BatchID,
			})
			continue
		}

		res.Valid++
		res.Records = append(res.Records, types.RawRecord{
			LineNo:      lineNo,
			Fields:      fields,
			SourceFile:  run.SourceFile,
			IngestionTS: run.IngestionTS,
			BatchID:     run.BatchID,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, weberrors.NewInputError(weberrors.CodeInputUnreadable,
			fmt.Sprintf("failed to read input at line %d", lineNo+1), err)
	}
	return res, nil
}

// decodeObject decodes line as a JSON object. Arrays, scalars and trailing
// garbage are rejected. goccy accepts numbers like 01 or 1. and raw control
// characters in strings, so the grammar is checked with encoding/json first.
func decodeObject(line []byte) (map[string]any, bool) {
	if line[0] != '{' || !stdjson.Valid(line) {
		return nil, false
	}
	var fields map[string]any
	if err := json.Unmarshal(line, &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}
