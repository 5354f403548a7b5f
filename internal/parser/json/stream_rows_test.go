package json

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sparkify/internal/records"
)

type pair struct {
	A int64  `json:"a"`
	B string `json:"b"`
}

func TestDecodeLines_PreservesOrderAndSkipsBlankLines(t *testing.T) {
	t.Parallel()

	input := "{\"a\": 1, \"b\": \"x\"}\n\n   \n{\"a\": 2, \"b\": \"y\"}\n{\"a\": 3, \"b\": \"z\"}"

	got, err := DecodeLines[pair](context.Background(), strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("DecodeLines() err=%v, want nil", err)
	}
	if len(got) != 3 {
		t.Fatalf("len=%d, want 3", len(got))
	}
	for i, want := range []pair{{1, "x"}, {2, "y"}, {3, "z"}} {
		if got[i] != want {
			t.Fatalf("got[%d]=%+v, want %+v", i, got[i], want)
		}
	}
}

func TestDecodeLines_EmptyInput(t *testing.T) {
	t.Parallel()

	got, err := DecodeLines[pair](context.Background(), strings.NewReader(""), nil)
	if err != nil {
		t.Fatalf("DecodeLines() err=%v, want nil", err)
	}
	if len(got) != 0 {
		t.Fatalf("len=%d, want 0", len(got))
	}
}

func TestDecodeLines_MalformedLineFailsWholeInput(t *testing.T) {
	t.Parallel()

	input := "{\"a\": 1, \"b\": \"x\"}\n\n{\"a\": 2, \"b\": \n{\"a\": 3, \"b\": \"z\"}\n"

	var calls []string
	onParseErr := func(line int, err error) {
		calls = append(calls, fmt.Sprintf("line=%d", line))
	}

	got, err := DecodeLines[pair](context.Background(), strings.NewReader(input), onParseErr)
	if err == nil {
		t.Fatalf("DecodeLines() err=nil, want error")
	}
	if got != nil {
		t.Fatalf("got=%v, want nil slice on failure", got)
	}

	var le *LineError
	if !errors.As(err, &le) {
		t.Fatalf("err=%T, want *LineError", err)
	}
	if le.Line != 3 {
		t.Fatalf("LineError.Line=%d, want 3", le.Line)
	}
	if len(calls) != 1 || calls[0] != "line=3" {
		t.Fatalf("onParseErr calls=%v, want [line=3]", calls)
	}
}

func TestDecodeLines_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DecodeLines[pair](ctx, strings.NewReader("{\"a\":1}\n"), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}

func TestDecodeLines_LongLine(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 256*1024)
	input := fmt.Sprintf("{\"a\": 7, \"b\": %q}\n", long)

	got, err := DecodeLines[pair](context.Background(), strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("DecodeLines() err=%v", err)
	}
	if len(got) != 1 || len(got[0].B) != len(long) {
		t.Fatalf("long line not decoded intact")
	}
}

func TestReadFile_ActivityEventsAndPathInError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "2018-11-01-events.json")
	content := `{"ts":1541106106796,"userId":"8","firstName":"Kaylee","lastName":"Summers","gender":"F","level":"free","page":"NextSong","song":"In The Dark","artist":"Gene Krupa","length":152.92036,"sessionId":139,"location":"Phoenix","userAgent":"UA"}
{"ts":1541106496796,"userId":"8","firstName":"Kaylee","lastName":"Summers","gender":"F","level":"free","page":"Home","song":null,"artist":null,"length":null,"sessionId":139,"location":"Phoenix","userAgent":"UA"}
`
	if err := os.WriteFile(good, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	events, err := ReadFile[records.ActivityEvent](context.Background(), good)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len=%d, want 2", len(events))
	}
	if events[0].Page != "NextSong" || events[1].Page != "Home" {
		t.Fatalf("pages=%q,%q", events[0].Page, events[1].Page)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err = ReadFile[records.ActivityEvent](context.Background(), bad)
	var le *LineError
	if !errors.As(err, &le) {
		t.Fatalf("err=%v, want *LineError", err)
	}
	if le.Path != bad || le.Line != 1 {
		t.Fatalf("LineError=%+v, want path=%s line=1", le, bad)
	}
}

func TestReadFile_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := ReadFile[pair](context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v, want os.ErrNotExist", err)
	}
}
