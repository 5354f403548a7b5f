package json

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
)

// LineError reports a record that could not be decoded. Line is 1-based and
// counts physical lines, blank ones included.
type LineError struct {
	Path string
	Line int
	Err  error
}

func (e *LineError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("json: line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("json: %s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// ReadFile decodes every record of a newline-delimited JSON file into T.
//
// The whole file fails on the first malformed line: callers never see a
// partial slice. The returned error is a *LineError carrying path and line.
func ReadFile[T any](ctx context.Context, path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("json: open %s: %w", path, err)
	}
	defer f.Close()

	recs, err := DecodeLines[T](ctx, f, nil)
	if err != nil {
		var le *LineError
		if errors.As(err, &le) {
			le.Path = path
		}
		return nil, err
	}
	return recs, nil
}

// DecodeLines streams NDJSON from r and decodes each non-blank line into T,
// preserving input order.
//
// Behavior:
//   - Blank (whitespace-only) lines are skipped.
//   - Lines have no length limit; a final line without '\n' is accepted.
//   - onParseErr, when non-nil, is called once with the failing line before
//     DecodeLines returns the error.
//   - ctx is checked between lines.
func DecodeLines[T any](ctx context.Context, r io.Reader, onParseErr func(line int, err error)) ([]T, error) {
	br := bufio.NewReader(r)

	var out []T
	line := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, readErr := br.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, fmt.Errorf("json: read line %d: %w", line+1, readErr)
		}
		if len(raw) == 0 && readErr == io.EOF {
			return out, nil
		}
		line++

		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 {
			var rec T
			if err := json.Unmarshal(raw, &rec); err != nil {
				if onParseErr != nil {
					onParseErr(line, err)
				}
				return nil, &LineError{Line: line, Err: err}
			}
			out = append(out, rec)
		}

		if readErr == io.EOF {
			return out, nil
		}
	}
}
