// Package storage implements the two fixed-capacity ring buffers that back
// the raw sensor log: "storage" (important readings, retained until
// acknowledged) and "streaming" (high-frequency readings that may rotate
// freely). Both buffers share the same ring implementation; only their
// capacity and rollover policy differ.
package storage

import (
	"errors"
	"fmt"

	"github.com/iotile-sg/sensorgraph/internal/stream"
)

// Buffer names.
const (
	Storage   = "storage"
	Streaming = "streaming"
)

// ErrStorageFull is returned by Push when a fill-stop buffer is at
// capacity.
var ErrStorageFull = errors.New("storage: ring buffer full")

// SeqNo is an absolute, monotonically increasing insertion sequence
// number. It resets to zero only when the buffer is cleared; base and
// length together describe which sequence numbers are currently live.
type SeqNo uint64

// ring is a single fixed-capacity ring buffer of readings.
type ring struct {
	slots    []stream.Reading
	cap      int
	base     SeqNo // sequence number of the oldest live reading
	len      int   // number of live readings
	rollover bool  // true = drop-oldest, false = fill-stop
}

func newRing(capacity int, rollover bool) *ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring{
		slots:    make([]stream.Reading, capacity),
		cap:      capacity,
		rollover: rollover,
	}
}

// nextSeq is the sequence number that the next push will receive.
func (r *ring) nextSeq() SeqNo {
	return r.base + SeqNo(r.len)
}

// push inserts a reading, returning the sequence number it was assigned
// and, when a drop-oldest rollover occurred, the reading that was dropped
// and its sequence number (ok=true). The caller needs the dropped
// reading's content (not just its seq) to decide whether any walker's
// cached match count must be decremented.
func (r *ring) push(reading stream.Reading) (assigned SeqNo, droppedSeq SeqNo, droppedReading stream.Reading, droppedOK bool, err error) {
	assigned = r.nextSeq()

	if r.len < r.cap {
		r.slots[int(assigned)%r.cap] = reading
		r.len++
		return assigned, 0, stream.Reading{}, false, nil
	}

	// Buffer is full.
	if !r.rollover {
		return 0, 0, stream.Reading{}, false, ErrStorageFull
	}

	droppedSeq = r.base
	droppedReading = r.slots[int(droppedSeq)%r.cap]
	r.slots[int(assigned)%r.cap] = reading
	r.base++
	return assigned, droppedSeq, droppedReading, true, nil
}

func (r *ring) count() int {
	return r.len
}

func (r *ring) oldest() SeqNo {
	return r.base
}

func (r *ring) next() SeqNo {
	return r.nextSeq()
}

func (r *ring) read(seq SeqNo) (stream.Reading, bool) {
	if seq < r.base || seq >= r.base+SeqNo(r.len) {
		return stream.Reading{}, false
	}
	return r.slots[int(seq)%r.cap], true
}

func (r *ring) scan(visit func(seq SeqNo, reading stream.Reading)) {
	for i := 0; i < r.len; i++ {
		seq := r.base + SeqNo(i)
		visit(seq, r.slots[int(seq)%r.cap])
	}
}

func (r *ring) setRollover(enabled bool) {
	r.rollover = enabled
}

func (r *ring) clear() {
	r.base = 0
	r.len = 0
}

// Engine owns the two independent ring buffers. It is not itself
// thread-safe; callers (SensorLog) serialize access with their own mutex
// per spec §5.
type Engine struct {
	buffers map[string]*ring
}

// Config describes the fixed capacity and default rollover policy for
// each of the two buffers.
type Config struct {
	StorageCapacity   int
	StreamingCapacity int
	StorageRollover   bool // true = drop-oldest, false = fill-stop
	StreamingRollover bool
}

// NewEngine builds an Engine with the two named buffers.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		buffers: map[string]*ring{
			Storage:   newRing(cfg.StorageCapacity, cfg.StorageRollover),
			Streaming: newRing(cfg.StreamingCapacity, cfg.StreamingRollover),
		},
	}
}

func (e *Engine) get(buffer string) *ring {
	r, ok := e.buffers[buffer]
	if !ok {
		panic(fmt.Sprintf("storage: unknown buffer %q", buffer))
	}
	return r
}

// Push appends a reading to the named buffer. When the buffer rolls over
// and drops its oldest reading, droppedOK reports that, and droppedSeq
// plus droppedReading describe what was lost — callers use this to keep
// walker cursors and counts consistent (spec §4.3).
func (e *Engine) Push(buffer string, reading stream.Reading) (assigned SeqNo, droppedSeq SeqNo, droppedReading stream.Reading, droppedOK bool, err error) {
	return e.get(buffer).push(reading)
}

// Count returns the number of readings currently live in the buffer.
func (e *Engine) Count(buffer string) int {
	return e.get(buffer).count()
}

// Oldest returns the sequence number of the oldest live reading.
func (e *Engine) Oldest(buffer string) SeqNo {
	return e.get(buffer).oldest()
}

// NextSeq returns the sequence number that the next push to this buffer
// will receive (the current tail).
func (e *Engine) NextSeq(buffer string) SeqNo {
	return e.get(buffer).next()
}

// Read returns the reading at the given sequence number, if still live.
func (e *Engine) Read(buffer string, seq SeqNo) (stream.Reading, bool) {
	return e.get(buffer).read(seq)
}

// Scan visits every live reading in the buffer, oldest first.
func (e *Engine) Scan(buffer string, visit func(seq SeqNo, reading stream.Reading)) {
	e.get(buffer).scan(visit)
}

// SetRollover changes the rollover policy for a buffer.
func (e *Engine) SetRollover(buffer string, enabled bool) {
	e.get(buffer).setRollover(enabled)
}

// EnsureBuffer lazily registers an additional named ring buffer (used for
// the single-slot virtual/constant-stream rings SensorLog keeps outside
// "storage"/"streaming"). A no-op if the buffer already exists.
func (e *Engine) EnsureBuffer(name string, capacity int, rollover bool) {
	if _, ok := e.buffers[name]; !ok {
		e.buffers[name] = newRing(capacity, rollover)
	}
}

// Clear empties the two primary buffers ("storage" and "streaming") only.
// Virtual/constant single-slot buffers registered via EnsureBuffer are
// untouched — clearing the RSL never forgets the last value of a virtual
// or constant stream.
func (e *Engine) Clear() {
	e.get(Storage).clear()
	e.get(Streaming).clear()
}
