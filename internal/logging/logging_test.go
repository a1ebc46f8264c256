package logging

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_HasComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelDebug, "text", &buf)

	logger := New("harness")
	logger.Info("hello")

	output := buf.String()
	if !strings.Contains(output, "component=harness") {
		t.Errorf("expected component=harness in output, got: %s", output)
	}
	if !strings.Contains(output, "hello") {
		t.Errorf("expected 'hello' in output, got: %s", output)
	}
}

func TestInit_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelInfo, "text", &buf)

	logger := New("orchestrator")
	logger.Info("text check")

	output := buf.String()
	if !strings.Contains(output, "level=INFO") {
		t.Errorf("expected level=INFO in text output, got: %s", output)
	}
}

func TestInit_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelInfo, "json", &buf)

	logger := New("session-registry")
	logger.Info("json check")

	output := buf.String()
	if !strings.Contains(output, `"level":"INFO"`) {
		t.Errorf("expected JSON level field, got: %s", output)
	}
	if !strings.Contains(output, `"component":"session-registry"`) {
		t.Errorf("expected JSON component field, got: %s", output)
	}
}

func TestInit_LevelGating(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelWarn, "text", &buf)

	logger := New("finalizer")
	logger.Info("should be suppressed")
	logger.Warn("should appear")

	output := buf.String()
	if strings.Contains(output, "should be suppressed") {
		t.Error("Info message should be suppressed at Warn level")
	}
	if !strings.Contains(output, "should appear") {
		t.Error("Warn message should appear at Warn level")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestForCase_TagsWorkerCaseAttempt(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelInfo, FormatJSON, &buf)

	ForCase(New("orchestrator"), slot(3), "booking-json-01 Ada Lovelace", 2).Info("Test retried")

	out := buf.String()
	for _, want := range []string{`"worker":"worker-3"`, `"case":"booking-json-01 Ada Lovelace"`, `"attempt":2`, `"component":"orchestrator"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}

func TestForWorker(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelInfo, FormatText, &buf)

	ForWorker(New("browser"), slot(1)).Info("tab opened")

	if !strings.Contains(buf.String(), "worker=worker-1") {
		t.Errorf("output = %s", buf.String())
	}
}

type slot int

func (s slot) String() string { return fmt.Sprintf("worker-%d", int(s)) }
