package view

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, slog.LevelInfo, FormatJSON)
	l.Debug("hidden")
	l.Info("compiled", "kernel", "Main")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec["msg"] != "compiled" || rec["kernel"] != "Main" || rec["level"] != "INFO" {
		t.Errorf("record = %v", rec)
	}
}

func TestNewLoggerText(t *testing.T) {
	old := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = old }()

	var buf bytes.Buffer
	l := NewLogger(&buf, slog.LevelWarn, FormatText)
	l.Info("hidden")
	l.Warn("kernel failed", "kernel", "Main")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Info logged at Warn level: %q", out)
	}
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "kernel failed") || !strings.Contains(out, "kernel=Main") {
		t.Errorf("output = %q", out)
	}
}

func TestStatus(t *testing.T) {
	old := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = old }()

	if Status(true) != "ok" || Status(false) != "FAIL" {
		t.Errorf("Status = %q, %q", Status(true), Status(false))
	}
}
