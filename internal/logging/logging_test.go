package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: slog.LevelInfo, Format: "text", Writer: &buf})

	logger.Info("probe attempt", "attempt", 3)

	output := buf.String()
	if !strings.Contains(output, "probe attempt") {
		t.Errorf("expected message in output, got: %s", output)
	}
	if !strings.Contains(output, "attempt=3") {
		t.Errorf("expected attempt=3 in output, got: %s", output)
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: slog.LevelInfo, Format: "JSON", Writer: &buf})

	logger.Info("job submitted", "job_id", "123456")

	output := buf.String()
	if !strings.Contains(output, `"msg":"job submitted"`) {
		t.Errorf("expected JSON msg field in output, got: %s", output)
	}
	if !strings.Contains(output, `"job_id":"123456"`) {
		t.Errorf("expected JSON job_id field in output, got: %s", output)
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: slog.LevelWarn, Writer: &buf})

	logger.Info("should not appear")
	logger.Warn("should appear")

	output := buf.String()
	if strings.Contains(output, "should not appear") {
		t.Errorf("INFO message should be filtered at WARN level, got: %s", output)
	}
	if !strings.Contains(output, "should appear") {
		t.Errorf("WARN message should appear at WARN level, got: %s", output)
	}
}

func TestNew_Attrs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{
		Level:  slog.LevelDebug,
		Writer: &buf,
		Attrs:  []slog.Attr{slog.String("experiment", "S2S-2_1_ANA_002")},
	})
	logger.With("component", "poll").Debug("tick")

	output := buf.String()
	if !strings.Contains(output, "experiment=S2S-2_1_ANA_002") {
		t.Errorf("expected experiment attr in output, got: %s", output)
	}
	if !strings.Contains(output, "component=poll") {
		t.Errorf("expected component in output, got: %s", output)
	}
}

func TestDiscard(t *testing.T) {
	// Must not panic and must be usable as a parent logger.
	Discard().With("component", "x").Error("dropped")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" DEBUG ", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
