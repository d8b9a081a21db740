package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Tiliavir/kv-time-tracker/internal/logging"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelWarn},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := logging.ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = (%v, %v), want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := logging.ParseLevel("loud"); err == nil {
		t.Error("ParseLevel(loud): want error")
	}
}

func TestFanOutLevels(t *testing.T) {
	var stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "timetracker.log")

	logger, closer, err := logging.New(logging.Options{
		Stderr: &stderr,
		Level:  slog.LevelWarn,
		File:   path,
		RunID:  "run-1",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("hidden everywhere")
	logger.Info("command", "command", "start", "outcome", "ok")
	logger.Warn("store unavailable")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	if strings.Contains(stderr.String(), "command") {
		t.Errorf("info record reached stderr: %q", stderr.String())
	}
	if !strings.Contains(stderr.String(), "store unavailable") {
		t.Errorf("warning missing from stderr: %q", stderr.String())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("log file lines = %d, want 2: %q", len(lines), data)
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if record["msg"] != "command" || record["run_id"] != "run-1" || record["outcome"] != "ok" {
		t.Errorf("record = %v", record)
	}
}

func TestGeneratedRunID(t *testing.T) {
	var stderr bytes.Buffer
	logger, _, err := logging.New(logging.Options{Stderr: &stderr, Level: slog.LevelInfo})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hello")

	var record map[string]any
	if err := json.Unmarshal(stderr.Bytes(), &record); err != nil {
		t.Fatalf("stderr is not JSON when not a terminal: %v", err)
	}
	if id, _ := record["run_id"].(string); len(id) != 36 {
		t.Errorf("run_id = %v, want a UUID", record["run_id"])
	}
}

func TestUnwritableLogFileFallsBackToStderr(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	var stderr bytes.Buffer
	logger, closer, err := logging.New(logging.Options{
		Stderr: &stderr,
		Level:  slog.LevelWarn,
		File:   filepath.Join(blocker, "sub", "x.log"),
	})
	if err == nil {
		t.Fatal("New with unusable log path: want error")
	}
	if logger == nil || closer == nil {
		t.Fatal("New must return a usable logger and closer on file errors")
	}
	logger.Warn("still works")
	if !strings.Contains(stderr.String(), "still works") {
		t.Errorf("stderr = %q", stderr.String())
	}
}
