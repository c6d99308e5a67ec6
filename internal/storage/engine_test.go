package storage

import (
	"errors"
	"testing"

	"github.com/iotile-sg/sensorgraph/internal/stream"
)

func reading(v uint32) stream.Reading {
	return stream.Reading{Value: v}
}

func TestPushWithinCapacity(t *testing.T) {
	e := NewEngine(Config{StorageCapacity: 4, StreamingCapacity: 4, StorageRollover: true, StreamingRollover: true})

	for i := uint32(0); i < 3; i++ {
		if _, _, _, _, err := e.Push(Storage, reading(i)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := e.Count(Storage); got != 3 {
		t.Fatalf("count = %d, want 3", got)
	}
}

func TestRolloverDropOldest(t *testing.T) {
	e := NewEngine(Config{StreamingCapacity: 4, StreamingRollover: true})

	for i := uint32(10); i <= 50; i += 10 {
		if _, _, _, _, err := e.Push(Streaming, reading(i)); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	if got := e.Count(Streaming); got != 4 {
		t.Fatalf("count = %d, want 4 (capacity)", got)
	}

	var values []uint32
	e.Scan(Streaming, func(_ SeqNo, r stream.Reading) {
		values = append(values, r.Value)
	})
	want := []uint32{20, 30, 40, 50}
	if len(values) != len(want) {
		t.Fatalf("values = %v, want %v", values, want)
	}
	for i := range want {
		if values[i] != want[i] {
			t.Fatalf("values = %v, want %v", values, want)
		}
	}
}

func TestFillStopRejectsOverCapacity(t *testing.T) {
	e := NewEngine(Config{StorageCapacity: 2, StorageRollover: false})

	if _, _, _, _, err := e.Push(Storage, reading(1)); err != nil {
		t.Fatalf("push 1: %v", err)
	}
	if _, _, _, _, err := e.Push(Storage, reading(2)); err != nil {
		t.Fatalf("push 2: %v", err)
	}

	if _, _, _, _, err := e.Push(Storage, reading(3)); !errors.Is(err, ErrStorageFull) {
		t.Fatalf("expected ErrStorageFull, got %v", err)
	}

	if got := e.Count(Storage); got != 2 {
		t.Fatalf("count = %d, want 2 (unchanged after rejected push)", got)
	}

	var values []uint32
	e.Scan(Storage, func(_ SeqNo, r stream.Reading) { values = append(values, r.Value) })
	if len(values) != 2 || values[0] != 1 || values[1] != 2 {
		t.Fatalf("contents changed after rejected push: %v", values)
	}
}

func TestOldestSeqMatchesDropCount(t *testing.T) {
	e := NewEngine(Config{StreamingCapacity: 3, StreamingRollover: true})

	for i := uint32(0); i < 10; i++ {
		e.Push(Streaming, reading(i))
	}

	// 10 pushed, capacity 3 -> oldest live seq should be 7.
	if got := e.Oldest(Streaming); got != 7 {
		t.Fatalf("oldest = %d, want 7", got)
	}
}

func TestClearEmptiesBothBuffers(t *testing.T) {
	e := NewEngine(Config{StorageCapacity: 4, StreamingCapacity: 4, StorageRollover: true, StreamingRollover: true})
	e.Push(Storage, reading(1))
	e.Push(Streaming, reading(2))

	e.Clear()

	if e.Count(Storage) != 0 || e.Count(Streaming) != 0 {
		t.Fatal("expected both buffers empty after Clear")
	}
}

func TestSetRolloverSwitchesPolicy(t *testing.T) {
	e := NewEngine(Config{StorageCapacity: 1, StorageRollover: true})
	e.Push(Storage, reading(1))

	e.SetRollover(Storage, false)

	if _, _, _, _, err := e.Push(Storage, reading(2)); !errors.Is(err, ErrStorageFull) {
		t.Fatalf("expected ErrStorageFull after switching to fill-stop, got %v", err)
	}
}
