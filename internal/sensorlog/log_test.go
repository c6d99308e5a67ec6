package sensorlog

import (
	"errors"
	"testing"

	"github.com/iotile-sg/sensorgraph/internal/storage"
	"github.com/iotile-sg/sensorgraph/internal/stream"
)

func newTestLog() *SensorLog {
	return New(storage.Config{
		StorageCapacity:   8,
		StreamingCapacity: 4,
		StorageRollover:   true,
		StreamingRollover: true,
	})
}

// Scenario 1 from spec.md §8: buffered push/pop against "streaming".
func TestBufferedPushPopRollover(t *testing.T) {
	l := newTestLog()
	id := stream.Encode(false, stream.BufferedOutput, 0x001)

	w, err := l.CreateWalker(stream.Exact(id), false)
	if err != nil {
		t.Fatalf("CreateWalker: %v", err)
	}

	for _, v := range []uint32{10, 20, 30, 40, 50} {
		if _, err := l.Push(stream.Reading{Stream: id, Value: v}); err != nil {
			t.Fatalf("push %d: %v", v, err)
		}
	}

	storageCt, streamingCt := l.Counts()
	_ = storageCt
	if streamingCt != 4 {
		t.Fatalf("streaming count = %d, want 4", streamingCt)
	}

	want := []uint32{20, 30, 40, 50}
	for _, v := range want {
		r, err := w.Pop()
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if r.Value != v {
			t.Fatalf("pop value = %d, want %d", r.Value, v)
		}
	}
	if _, err := w.Pop(); !errors.Is(err, ErrStreamEmpty) {
		t.Fatalf("expected ErrStreamEmpty, got %v", err)
	}
}

// Scenario 2: fill-stop storage buffer at capacity.
func TestFillStopStorageReturnsErrorAndLeavesCountUnchanged(t *testing.T) {
	l := New(storage.Config{StorageCapacity: 2, StorageRollover: false, StreamingCapacity: 1, StreamingRollover: true})
	id := stream.Encode(false, stream.BufferedInput, 0x00A)

	for i := 0; i < 2; i++ {
		if _, err := l.Push(stream.Reading{Stream: id, Value: uint32(i)}); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	if _, err := l.Push(stream.Reading{Stream: id, Value: 99}); err == nil {
		t.Fatal("expected third push to fail with storage full")
	}

	storageCt, _ := l.Counts()
	if storageCt != 2 {
		t.Fatalf("storage count = %d, want 2", storageCt)
	}
}

// Important streams duplicate the same reading id into their associated
// output stream.
func TestImportantPushDuplicatesSameReadingID(t *testing.T) {
	l := newTestLog()
	in := stream.Encode(false, stream.BufferedInput, 0x001)
	out := in.AssociatedOutput()

	outWalker, err := l.CreateWalker(stream.Exact(out), false)
	if err != nil {
		t.Fatalf("CreateWalker: %v", err)
	}

	pushed, err := l.Push(stream.Reading{Stream: in, Value: 7})
	if err != nil {
		t.Fatalf("push: %v", err)
	}

	r, err := outWalker.Pop()
	if err != nil {
		t.Fatalf("pop from duplicated output: %v", err)
	}
	if r.ReadingID != pushed.ReadingID {
		t.Fatalf("duplicated reading id = %d, want %d (same object reused)", r.ReadingID, pushed.ReadingID)
	}
	if r.Value != 7 {
		t.Fatalf("duplicated reading value = %d, want 7", r.Value)
	}
}

func TestConstantWalkerNeverEmpties(t *testing.T) {
	l := newTestLog()
	id := stream.Encode(false, stream.Constant, 0x002)

	w, err := l.CreateWalker(stream.Exact(id), false)
	if err != nil {
		t.Fatalf("CreateWalker: %v", err)
	}

	for i := 0; i < 3; i++ {
		r, err := w.Pop()
		if err != nil {
			t.Fatalf("pop %d: %v", i, err)
		}
		if r.Value != 0 {
			t.Fatalf("expected default constant value 0 before any SetConstant, got %d", r.Value)
		}
	}

	if err := l.SetConstant(id, 42); err != nil {
		t.Fatalf("SetConstant: %v", err)
	}
	r, err := w.Peek()
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if r.Value != 42 {
		t.Fatalf("peek value = %d, want 42", r.Value)
	}
}

func TestInspectLastUnresolvedForUnknownVirtual(t *testing.T) {
	l := newTestLog()
	id := stream.Encode(false, stream.UnbufferedInput, 0x003)

	if _, err := l.InspectLast(id, false); !errors.Is(err, ErrUnresolvedIdentifier) {
		t.Fatalf("expected ErrUnresolvedIdentifier, got %v", err)
	}
}

func TestClearResetsCountsButKeepsReadingIDCounter(t *testing.T) {
	l := newTestLog()
	id := stream.Encode(false, stream.BufferedOutput, 0x004)

	w, _ := l.CreateWalker(stream.Exact(id), false)
	l.Push(stream.Reading{Stream: id, Value: 1})
	l.Push(stream.Reading{Stream: id, Value: 2})

	before := l.NextReadingID()
	l.Clear()
	after := l.NextReadingID()

	if before != after {
		t.Fatalf("reading id counter changed across Clear: before=%d after=%d", before, after)
	}
	if w.Count() != 0 {
		t.Fatalf("expected walker count reset to 0 after Clear, got %d", w.Count())
	}
	storageCt, streamingCt := l.Counts()
	if storageCt != 0 || streamingCt != 0 {
		t.Fatalf("expected both buffers empty after Clear, got storage=%d streaming=%d", storageCt, streamingCt)
	}
}

func TestSeekReportsExactAndInexact(t *testing.T) {
	l := newTestLog()
	id := stream.Encode(false, stream.BufferedOutput, 0x005)

	for i := 0; i < 5; i++ {
		l.Push(stream.Reading{Stream: id, Value: uint32(i)})
	}

	w, err := l.CreateWalker(stream.Exact(id), true)
	if err != nil {
		t.Fatalf("CreateWalker: %v", err)
	}

	exact, err := w.Seek(3)
	if err != nil {
		t.Fatalf("seek: %v", err)
	}
	if !exact {
		t.Fatal("expected exact match for id 3")
	}
	r, err := w.Peek()
	if err != nil {
		t.Fatalf("peek after seek: %v", err)
	}
	if r.ReadingID != 3 {
		t.Fatalf("peek after seek reading id = %d, want 3", r.ReadingID)
	}

	if _, err := w.Seek(9999); !errors.Is(err, ErrUnresolvedIdentifier) {
		t.Fatalf("expected ErrUnresolvedIdentifier seeking past the tail, got %v", err)
	}
}

func TestHighestReadingIDScansBothBuffers(t *testing.T) {
	l := newTestLog()
	important := stream.Encode(false, stream.BufferedInput, 0x006)
	plain := stream.Encode(false, stream.BufferedOutput, 0x007)

	l.Push(stream.Reading{Stream: important, Value: 1})
	l.Push(stream.Reading{Stream: plain, Value: 2})

	if got := l.HighestReadingID(); got == 0 {
		t.Fatal("expected a non-zero highest reading id")
	}
}
