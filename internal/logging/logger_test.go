package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"mixed case Trace", "Trace", LevelTrace},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)
	logger.Log(t.Context(), LevelTrace, "analyzer took")

	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("output %q does not label trace level", buf.String())
	}
}

func TestNewLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", &buf)
	logger.Debug("hidden")
	logger.Info("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message leaked at info level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("info message missing: %q", out)
	}
}

func TestNewEventLog_InfoLevelReturnsNil(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLog(dir, "info")
	if el != nil {
		t.Fatal("NewEventLog at info level should return nil")
	}
	if _, err := os.Stat(filepath.Join(dir, EventFileName)); !os.IsNotExist(err) {
		t.Error("events file should not be created at info level")
	}
}

func TestEventLog_WritesJSONL(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLog(dir, "debug")
	if el == nil {
		t.Fatal("NewEventLog at debug level returned nil")
	}

	fields := map[string]any{"runs": 3}
	el.Log("sweep_start", fields)
	el.Log("sweep_done", map[string]any{"runs": 3, "ok": true})
	el.Close()

	if _, ok := fields["event"]; ok {
		t.Error("Log mutated the caller's map")
	}

	data, err := os.ReadFile(filepath.Join(dir, EventFileName))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if first["event"] != "sweep_start" {
		t.Errorf("event = %v, want sweep_start", first["event"])
	}
	if _, ok := first["time"]; !ok {
		t.Error("event missing time field")
	}
}

func TestEventLog_NilSafe(t *testing.T) {
	var el *EventLog
	el.Log("anything", nil)
	el.Close()
}

func TestTimed_LogsDurationAndPropagates(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("debug", &buf)

	got, err := Timed(logger, "work", func() (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Fatalf("Timed() = %d, %v; want 7, nil", got, err)
	}
	if !strings.Contains(buf.String(), "work took") || !strings.Contains(buf.String(), "duration=") {
		t.Errorf("timing line missing: %q", buf.String())
	}

	boom := errors.New("boom")
	if _, err := Timed(logger, "fail", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Errorf("Timed() error = %v, want %v", err, boom)
	}
}

func TestTrack_NilLogger(t *testing.T) {
	Track(nil, slog.LevelInfo, "noop")()
}
