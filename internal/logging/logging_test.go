package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{"text", []string{"msg=dispatch", "task_id=T1", "tick=3"}},
		{"", []string{"msg=dispatch", "task_id=T1"}},
		{"JSON", []string{`"msg":"dispatch"`, `"task_id":"T1"`, `"tick":3`}},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := NewWithWriter(Config{Format: tt.format}, &buf)
		logger.Info("dispatch", "task_id", "T1", "tick", 3)

		for _, w := range tt.want {
			if !strings.Contains(buf.String(), w) {
				t.Errorf("format %q: expected %s in output, got: %s", tt.format, w, buf.String())
			}
		}
	}
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: "warn"}, &buf)

	logger.Info("period missed")
	logger.Warn("tick execution failed")

	output := buf.String()
	if strings.Contains(output, "period missed") {
		t.Errorf("INFO message should be filtered at WARN level, got: %s", output)
	}
	if !strings.Contains(output, "tick execution failed") {
		t.Errorf("WARN message should appear at WARN level, got: %s", output)
	}
}

func TestNewWithWriter_ChildLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Config{Level: "debug"}, &buf)
	logger.With("component", "scheduler").Debug("task added", "task_id", "T1")

	output := buf.String()
	if !strings.Contains(output, "component=scheduler") || !strings.Contains(output, "task_id=T1") {
		t.Errorf("expected component and task_id in output, got: %s", output)
	}
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
		{"ERROR", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestDiscard(t *testing.T) {
	if !Discard().Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger should accept records and drop them")
	}
}
