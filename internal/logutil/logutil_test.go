package logutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range cases {
		got, err := parseSlogLevel(in)
		if err != nil || got != want {
			t.Errorf("parseSlogLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := parseSlogLevel("loud"); err == nil {
		t.Fatalf("unknown level should fail")
	}
}

func TestNewLoggerFormats(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "log"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	// A regular file is not a terminal, so auto selects JSON.
	logger, err := newLogger(f, loggerConfig{Format: "auto"})
	if err != nil {
		t.Fatalf("newLogger(auto) error = %v", err)
	}
	if _, ok := logger.Handler().(*slog.JSONHandler); !ok {
		t.Fatalf("auto on a file = %T, want JSON", logger.Handler())
	}
	logger, err = newLogger(f, loggerConfig{Format: "text"})
	if err != nil {
		t.Fatalf("newLogger(text) error = %v", err)
	}
	if _, ok := logger.Handler().(*slog.TextHandler); !ok {
		t.Fatalf("text = %T", logger.Handler())
	}
	if _, err := newLogger(f, loggerConfig{Format: "xml"}); err == nil {
		t.Fatalf("unknown format should fail")
	}
}
