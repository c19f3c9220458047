package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, test := range tests {
		if got := Level(test.name); got != test.want {
			t.Errorf("Level(%q): want %v, got %v", test.name, test.want, got)
		}
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New("info", &buf)
	l.Debug("hidden")
	l.Info("iteration", "iter", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("want 1 record, got %v: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["msg"] != "iteration" || rec["iter"] != float64(3) {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	NewText("debug", &buf).Debug("evaluated", "particle", 2)
	if out := buf.String(); !strings.Contains(out, "evaluated") || !strings.Contains(out, "particle=2") {
		t.Errorf("unexpected output %q", out)
	}
}
