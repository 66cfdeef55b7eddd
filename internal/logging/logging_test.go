package logging

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoggerWritesLogfmt(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Info).(*logfmtLogger)
	l.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	l.With(F("component", "requester")).Warn("retry exhausted",
		F("kind", "GET_CURRENT_STATE"),
		F("attempts", 3),
		F("err", errors.New("channel timeout")),
	)

	got := strings.TrimSpace(buf.String())
	want := `ts=2024-05-01T12:00:00Z level=warn msg="retry exhausted" component=requester kind=GET_CURRENT_STATE attempts=3 err="channel timeout"`
	if got != want {
		t.Fatalf("log line = %q\nwant %q", got, want)
	}
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Warn)
	l.Info("hidden")
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below warn, got %q", buf.String())
	}
	if l.Enabled(Info) {
		t.Fatalf("Enabled(Info) = true, want false at warn level")
	}
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	if l.Enabled(Error) {
		t.Fatalf("Nop logger should not be enabled")
	}
	l.Error("dropped")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   Debug,
		" WARN ":  Warn,
		"warning": Warn,
		"error":   Error,
		"":        Info,
		"verbose": Info,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestOpenFileCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "popup.log")
	l, closeFn, err := OpenFile(path, Debug)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	l.Info("hello")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
