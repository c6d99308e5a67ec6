package eventlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPushWithoutPersistenceKeepsRingOnly(t *testing.T) {
	l, err := Open("", 4, 10)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	l.Event("info", "tick", "fast tick fired", 0)
	l.Event("warn", "streamer", "report dropped", 5)

	if got := l.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
	recent := l.Recent(10)
	if len(recent) != 2 || recent[0].Message != "fast tick fired" {
		t.Fatalf("unexpected recent entries: %+v", recent)
	}
}

func TestRingDropsOldestBeyondCapacity(t *testing.T) {
	l, _ := Open("", 2, 10)
	l.Event("info", "tick", "one", 0)
	l.Event("info", "tick", "two", 0)
	l.Event("info", "tick", "three", 0)

	recent := l.Recent(10)
	if len(recent) != 2 || recent[0].Message != "two" || recent[1].Message != "three" {
		t.Fatalf("unexpected ring contents after overflow: %+v", recent)
	}
}

func TestOpenReloadsPersistedEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")

	l, err := Open(path, 10, 100)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	l.Event("error", "rpc", "push_reading failed", 3)
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, 10, 100)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	recent := reopened.Recent(10)
	if len(recent) != 1 || recent[0].Message != "push_reading failed" {
		t.Fatalf("expected persisted entry to reload, got %+v", recent)
	}
}

func TestRotateKeepsNewestHalf(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")

	l, err := Open(path, 100, 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < 10; i++ {
		l.Event("info", "tick", "n", i)
	}
	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading rotated file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected rotated file to retain some entries")
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) > 4 {
		t.Fatalf("expected rotation to keep the file within 4 lines, got %d", len(lines))
	}
	var newest Entry
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &newest); err != nil || newest.Stream != 9 {
		t.Fatalf("expected the newest event (stream 9) as the last line, got %q", lines[len(lines)-1])
	}
}
