package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerRejectsUnknownBackend(t *testing.T) {
	if _, err := NewLogger(&LoggerConfig{Logger: "logrus"}); err == nil {
		t.Fatalf("expected unsupported backend error")
	}
}

func TestZerologWritesCategoryFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "convoy.log")

	l, err := NewLogger(&LoggerConfig{FilePath: path, Level: "info", Logger: "zerolog"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	l.Debug(Room, Join, "hidden", nil)
	l.Info(Room, Join, "participant joined", map[ExtraKey]any{RoomCode: "ABC"})

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected debug line filtered out, got %d lines", len(lines))
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["Category"] != "Room" || entry["SubCategory"] != "Join" || entry["RoomCode"] != "ABC" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNopLoggerDoesNotPanic(t *testing.T) {
	l := NewNop()
	l.Info(General, Startup, "ignored", nil)
	l.Errorf("ignored %d", 1)
	if err := l.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
}
