package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Log combines an in-memory ring with JSONL file persistence. Every Push
// appends a JSON line; on startup the most recent lines repopulate the
// ring. When the file exceeds maxLines it is rewritten keeping only the
// newest maxLines/2 lines, bounding growth without losing recent history.
type Log struct {
	ring      *ring
	file      *os.File
	mu        sync.Mutex
	maxLines  int
	lineCount int
	path      string
}

// Open opens (or creates) the JSONL file at path and loads its most
// recent entries into a ring of capacity ringCap. maxLines sets the
// rotation threshold. path == "" disables persistence; the ring still
// works in-memory only.
func Open(path string, ringCap, maxLines int) (*Log, error) {
	if maxLines <= 0 {
		maxLines = 10000
	}

	r := newRing(ringCap)

	if path == "" {
		return &Log{ring: r, maxLines: maxLines}, nil
	}

	entries, lineCount, err := loadJSONL(path)
	if err != nil {
		return nil, fmt.Errorf("eventlog: loading %q: %w", path, err)
	}

	start := 0
	if len(entries) > ringCap {
		start = len(entries) - ringCap
	}
	for _, e := range entries[start:] {
		r.push(e)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: opening %q for append: %w", path, err)
	}

	return &Log{ring: r, file: f, maxLines: maxLines, lineCount: lineCount, path: path}, nil
}

func loadJSONL(path string) ([]Entry, int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	defer f.Close()

	var entries []Entry
	lineCount := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		lineCount++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}

	return entries, lineCount, scanner.Err()
}

// Push records an event in the ring and, if persistence is enabled,
// appends it to the JSONL file.
func (l *Log) Push(e Entry) {
	l.ring.push(e)

	if l.file == nil {
		return
	}

	recent := l.ring.recent(1)
	if len(recent) == 0 {
		return
	}
	filled := recent[0]

	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(filled)
	if err != nil {
		return
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return
	}

	l.lineCount++
	if l.lineCount > l.maxLines {
		l.rotate()
	}
}

// Event is a helper constructing and pushing an entry from its common
// fields.
func (l *Log) Event(level, eventType, message string, stream int) {
	l.Push(Entry{Level: level, Type: eventType, Stream: stream, Message: message})
}

// Recent returns the last limit events, oldest first.
func (l *Log) Recent(limit int) []Entry {
	return l.ring.recent(limit)
}

// Len returns the number of events currently held in memory.
func (l *Log) Len() int {
	return l.ring.length()
}

// Close closes the backing file, if persistence is enabled.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// rotate keeps only the newest maxLines/2 lines of the backing file.
// Must be called with l.mu held.
func (l *Log) rotate() {
	keep := l.maxLines / 2

	entries, _, err := loadJSONL(l.path)
	if err != nil || len(entries) <= keep {
		return
	}
	entries = entries[len(entries)-keep:]

	l.file.Close()

	f, err := os.Create(l.path)
	if err != nil {
		l.file, _ = os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		return
	}

	w := bufio.NewWriter(f)
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	w.Flush()
	f.Close()

	l.file, err = os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	l.lineCount = len(entries)
}
