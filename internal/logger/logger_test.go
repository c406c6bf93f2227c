package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultAndDiscard(t *testing.T) {
	t.Parallel()
	for _, log := range []Logger{Default(), Discard()} {
		if log == nil {
			t.Fatal("constructor returned nil")
		}
		// Should not panic
		log.Debug("debug message")
		log.Error("error message")
	}
}

func TestJSONLevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelWarn)
	log.Info("should not appear")

	if buf.Len() > 0 {
		t.Fatalf("expected no output for info at warn level, got: %s", buf.String())
	}

	log.Warn("should appear", "model", "default")
	out := buf.String()
	if !strings.Contains(out, "should appear") || !strings.Contains(out, `"model":"default"`) {
		t.Fatalf("unexpected JSON output: %s", out)
	}
}

func TestWithAndGroup(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo).With("component", "bridge").WithGroup("req")
	log.Info("tokenize", "model", "gpt2")

	out := buf.String()
	if !strings.Contains(out, `"component":"bridge"`) {
		t.Fatalf("expected component attr, got: %s", out)
	}
	if !strings.Contains(out, `"req":{"model":"gpt2"}`) {
		t.Fatalf("expected grouped attr, got: %s", out)
	}
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := Text(&buf, slog.LevelInfo)

	ctx := WithContext(context.Background(), log)
	FromContext(ctx).Info("roundtrip test")
	if !strings.Contains(buf.String(), "roundtrip test") {
		t.Fatalf("expected message via context logger, got: %s", buf.String())
	}
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext with no logger returned nil")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" info ", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tc := range tests {
		if got := ParseLevel(tc.input); got != tc.expected {
			t.Errorf("ParseLevel(%q): expected %v, got %v", tc.input, tc.expected, got)
		}
	}
}

func TestOpenFormats(t *testing.T) {
	t.Parallel()

	for _, format := range []string{"", "pretty", "json", "TEXT"} {
		var buf bytes.Buffer
		log, closer, err := Open(Options{Level: "info", Format: format, Stderr: &buf})
		if err != nil {
			t.Fatalf("Open(%q): %v", format, err)
		}
		log.Info("opened", "format", format)
		if err := closer.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		if !strings.Contains(buf.String(), "opened") {
			t.Fatalf("format %q wrote nothing: %q", format, buf.String())
		}
	}

	if _, _, err := Open(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestOpenWritesRotatingFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tokbridge.log")

	var buf bytes.Buffer
	log, closer, err := Open(Options{Level: "debug", Format: "json", File: path, Stderr: &buf})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	log.Debug("to file", "n", 1)
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), "to file") {
		t.Fatalf("expected record in file, got: %s", raw)
	}
	if !strings.Contains(buf.String(), "to file") {
		t.Fatalf("expected record on stderr sink too, got: %s", buf.String())
	}
}

func TestPrettyHandlerEnabled(t *testing.T) {
	t.Parallel()
	h := NewPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info to be disabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("expected error to be enabled at warn level")
	}
}

func TestPrettyHandlerAttrsAndGroups(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil)

	log := slog.New(h.WithAttrs([]slog.Attr{slog.String("service", "test")}).WithGroup("a").WithGroup("b"))
	log.Info("nested", "key", "val", "text", "hello world")

	out := buf.String()
	for _, want := range []string{"service=test", "a.b.key=val", `a.b.text="hello world"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got: %s", want, out)
		}
	}
}

func TestPrettyHandlerEmptyGroup(t *testing.T) {
	t.Parallel()
	h := NewPrettyHandler(&bytes.Buffer{}, nil)
	if h.WithGroup("") != slog.Handler(h) {
		t.Fatal("WithGroup empty string should return same handler")
	}
}
