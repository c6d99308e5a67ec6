// Package sensorlog implements the raw sensor log: the typed façade over
// the two-region ring-buffered storage engine, virtual/constant stream
// state, and the set of live walkers that survive pushes and rollovers.
package sensorlog

import (
	"errors"
	"fmt"
	"sync"

	"github.com/iotile-sg/sensorgraph/internal/storage"
	"github.com/iotile-sg/sensorgraph/internal/stream"
)

// virtualCapacity is the ring size backing every virtual/constant
// stream's synthetic buffer: a push always overwrites the single slot.
const virtualCapacity = 1

// SensorLog owns the storage engine, virtual/constant stream state, and
// every live walker. A single mutex guards all of it (spec.md §5): every
// exported method and every walker operation holds it for its whole
// body, and none of them perform I/O or invoke user code.
type SensorLog struct {
	mu            sync.Mutex
	engine        *storage.Engine
	nextReadingID uint32
	walkers       map[WalkerID]*walkerState
	nextWalkerID  WalkerID
}

// New builds an empty SensorLog over a freshly constructed storage
// engine. The reading-id counter starts at 1 (0 means "unallocated").
func New(cfg storage.Config) *SensorLog {
	return &SensorLog{
		engine:        storage.NewEngine(cfg),
		nextReadingID: 1,
		walkers:       make(map[WalkerID]*walkerState),
	}
}

func bufferFor(id stream.ID) string {
	if id.Important() {
		return storage.Storage
	}
	return storage.Streaming
}

func virtualBuffer(id stream.ID) string {
	return fmt.Sprintf("virtual:%d", uint16(id))
}

// Push routes a reading by the pushed stream's own classification. Virtual
// streams (constant or unbuffered) overwrite their single last-value slot
// and never touch a ring buffer. Buffered streams allocate a reading id if
// unset, route to "storage" or "streaming" per the important bit, and
// notify every live walker whose selector matches so cached counts stay
// correct. Important streams additionally duplicate the SAME reading
// (same reading id) into their associated output stream — this mirrors
// the original RSL's process_input, which pushes one reading object to
// both places rather than allocating two ids.
func (l *SensorLog) Push(reading stream.Reading) (stream.Reading, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pushLocked(reading)
}

func (l *SensorLog) pushLocked(reading stream.Reading) (stream.Reading, error) {
	id := reading.Stream

	if id.Virtual() {
		buf := virtualBuffer(id)
		l.engine.EnsureBuffer(buf, virtualCapacity, true)
		assigned, droppedSeq, droppedReading, droppedOK, err := l.engine.Push(buf, reading)
		if err != nil {
			return reading, err
		}
		l.notifyPush(buf, assigned, reading)
		if droppedOK {
			l.notifyDrop(buf, droppedSeq, droppedReading)
		}
		return reading, nil
	}

	if reading.ReadingID == 0 {
		reading.ReadingID = l.nextReadingID
		l.nextReadingID++
	}

	buf := bufferFor(id)
	assigned, droppedSeq, droppedReading, droppedOK, err := l.engine.Push(buf, reading)
	if err != nil {
		return reading, err
	}
	l.notifyPush(buf, assigned, reading)
	if droppedOK {
		l.notifyDrop(buf, droppedSeq, droppedReading)
	}

	if id.Important() {
		dupe := reading
		dupe.Stream = id.AssociatedOutput()
		dupeBuf := bufferFor(dupe.Stream)
		dupeAssigned, dupeDroppedSeq, dupeDroppedReading, dupeDroppedOK, err := l.engine.Push(dupeBuf, dupe)
		if err != nil {
			return reading, err
		}
		l.notifyPush(dupeBuf, dupeAssigned, dupe)
		if dupeDroppedOK {
			l.notifyDrop(dupeBuf, dupeDroppedSeq, dupeDroppedReading)
		}
	}

	return reading, nil
}

// notifyPush increments the cached count of every live walker on buf whose
// selector matches the newly pushed reading.
func (l *SensorLog) notifyPush(buf string, seq storage.SeqNo, reading stream.Reading) {
	for _, w := range l.walkers {
		if w.buffer != buf || w.constant {
			continue
		}
		if w.selector.Matches(reading.Stream) {
			w.count++
		}
	}
}

// notifyDrop advances every walker on buf whose cursor was at or before
// the dropped sequence number, decrementing its count if the dropped
// reading matched its selector (spec.md §4.3's rollover-correctness
// invariant).
func (l *SensorLog) notifyDrop(buf string, droppedSeq storage.SeqNo, droppedReading stream.Reading) {
	for _, w := range l.walkers {
		if w.buffer != buf || w.constant {
			continue
		}
		if w.cursor <= droppedSeq {
			w.cursor = droppedSeq + 1
			if w.selector.Matches(droppedReading.Stream) {
				w.count--
			}
		}
	}
}

// CreateWalker returns a fresh Walker over the given selector. skipAll, if
// true, starts the cursor at the current tail so only future readings are
// visible. Constant/virtual selectors must be Exact — wildcard selectors
// over virtual/constant streams are rejected, a documented simplification
// of the synthetic single-slot-ring design (see DESIGN.md).
func (l *SensorLog) CreateWalker(sel stream.Selector, skipAll bool) (Walker, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if sel.Inexhaustible() || (sel.IsExact() && sel.StreamID().Virtual()) {
		if !sel.IsExact() {
			return Walker{}, errors.New("sensorlog: virtual/constant walkers require an exact selector")
		}
		return l.createVirtualWalkerLocked(sel)
	}

	var buf string
	if sel.IsExact() {
		buf = bufferFor(sel.StreamID())
	} else {
		typ, ok := sel.WildcardType()
		if !ok || !typ.Buffered() {
			return Walker{}, errors.New("sensorlog: wildcard selector must resolve to a single buffered stream class")
		}
		if typ.Important() {
			buf = storage.Storage
		} else {
			buf = storage.Streaming
		}
	}

	st := &walkerState{selector: sel, buffer: buf}
	if skipAll {
		st.cursor = l.engine.NextSeq(buf)
	} else {
		st.cursor = l.engine.Oldest(buf)
		st.count = l.countMatchingLocked(buf, sel, st.cursor)
	}

	id := l.nextWalkerID
	l.nextWalkerID++
	l.walkers[id] = st
	return Walker{id: id, log: l}, nil
}

func (l *SensorLog) createVirtualWalkerLocked(sel stream.Selector) (Walker, error) {
	id := sel.StreamID()
	buf := virtualBuffer(id)
	l.engine.EnsureBuffer(buf, virtualCapacity, true)

	st := &walkerState{selector: sel, buffer: buf, constant: id.Constant()}

	id2 := l.nextWalkerID
	l.nextWalkerID++
	l.walkers[id2] = st
	return Walker{id: id2, log: l}, nil
}

func (l *SensorLog) countMatchingLocked(buf string, sel stream.Selector, from storage.SeqNo) int {
	n := 0
	l.engine.Scan(buf, func(seq storage.SeqNo, r stream.Reading) {
		if seq >= from && sel.Matches(r.Stream) {
			n++
		}
	})
	return n
}

// DestroyWalker removes a walker from the live set.
func (l *SensorLog) DestroyWalker(id WalkerID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.walkers, id)
}

// DestroyAllWalkers clears the entire live-walker set.
func (l *SensorLog) DestroyAllWalkers() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.walkers = make(map[WalkerID]*walkerState)
}

// InspectLast returns the most recent reading matching id: the virtual
// slot for unbuffered/constant streams, or the newest buffered reading
// (optionally requiring an allocated id) otherwise.
func (l *SensorLog) InspectLast(id stream.ID, onlyAllocated bool) (stream.Reading, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id.Virtual() {
		buf := virtualBuffer(id)
		l.engine.EnsureBuffer(buf, virtualCapacity, true)
		count := l.engine.Count(buf)
		if count == 0 {
			return stream.Reading{}, ErrUnresolvedIdentifier
		}
		r, ok := l.engine.Read(buf, l.engine.Oldest(buf))
		if !ok {
			return stream.Reading{}, ErrUnresolvedIdentifier
		}
		return r, nil
	}

	buf := bufferFor(id)
	var last stream.Reading
	found := false
	l.engine.Scan(buf, func(_ storage.SeqNo, r stream.Reading) {
		if r.Stream != id {
			return
		}
		if onlyAllocated && !r.Allocated() {
			return
		}
		last = r
		found = true
	})
	if !found {
		return stream.Reading{}, ErrStreamEmpty
	}
	return last, nil
}

// SetConstant overwrites a constant/virtual stream's last-value slot
// directly, without going through the duplication/allocation logic
// ordinary pushes use. Used by host-stats-style samplers that feed
// system-scope constant streams.
func (l *SensorLog) SetConstant(id stream.ID, value uint32) error {
	if !id.Virtual() {
		return fmt.Errorf("sensorlog: stream %s is not virtual/constant", id)
	}
	_, err := l.Push(stream.Reading{Stream: id, Value: value})
	return err
}

// Clear empties both ring buffers and resets every walker's cached count
// to zero; the reading-id counter's high-water mark is left unchanged
// (callers push a DATA_CLEARED marker themselves to record it, per
// spec.md §3). Virtual/constant single-slot buffers are untouched.
func (l *SensorLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.engine.Clear()
	for _, w := range l.walkers {
		if w.constant {
			continue
		}
		w.cursor = 0
		w.count = 0
	}
}

// SetRollover changes the rollover policy of "storage" or "streaming".
func (l *SensorLog) SetRollover(buffer string, enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.engine.SetRollover(buffer, enabled)
}

// NextReadingID returns the reading id the next buffered push will
// allocate, without consuming it — used to stamp a DATA_CLEARED marker
// with the current high-water mark.
func (l *SensorLog) NextReadingID() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextReadingID
}

// HighestReadingID scans both buffers for the maximum allocated reading
// id, per the original RSL's rsl_get_highest_saved_id.
func (l *SensorLog) HighestReadingID() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()

	var max uint32
	visit := func(_ storage.SeqNo, r stream.Reading) {
		if r.ReadingID > max {
			max = r.ReadingID
		}
	}
	l.engine.Scan(storage.Storage, visit)
	l.engine.Scan(storage.Streaming, visit)
	return max
}

// Counts returns the number of live readings in "storage" and
// "streaming", for the count_readings RPC.
func (l *SensorLog) Counts() (storageCount, streamingCount int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engine.Count(storage.Storage), l.engine.Count(storage.Streaming)
}

// --- walker operations, all requiring SensorLog's lock ---

func (l *SensorLog) walkerPop(id WalkerID) (stream.Reading, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.walkers[id]
	if !ok {
		return stream.Reading{}, errors.New("sensorlog: unknown walker")
	}

	if st.constant {
		return l.constantReadingLocked(st), nil
	}

	r, found := l.nextMatchLocked(st)
	if !found {
		return stream.Reading{}, ErrStreamEmpty
	}
	st.cursor++
	st.count--
	return r, nil
}

func (l *SensorLog) walkerPeek(id WalkerID) (stream.Reading, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.walkers[id]
	if !ok {
		return stream.Reading{}, errors.New("sensorlog: unknown walker")
	}
	if st.constant {
		return l.constantReadingLocked(st), nil
	}
	r, found := l.nextMatchLocked(st)
	if !found {
		return stream.Reading{}, ErrStreamEmpty
	}
	return r, nil
}

func (l *SensorLog) walkerCount(id WalkerID) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.walkers[id]
	if !ok {
		return 0
	}
	if st.constant {
		return 1 << 30
	}
	return st.count
}

func (l *SensorLog) walkerSeek(id WalkerID, targetID uint32) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.walkers[id]
	if !ok {
		return false, errors.New("sensorlog: unknown walker")
	}
	if st.constant {
		return true, nil
	}

	var (
		foundSeq storage.SeqNo
		foundAny bool
		exact    bool
	)
	l.engine.Scan(st.buffer, func(seq storage.SeqNo, r stream.Reading) {
		if foundAny || !st.selector.Matches(r.Stream) {
			return
		}
		if r.ReadingID >= targetID {
			foundSeq = seq
			foundAny = true
			exact = r.ReadingID == targetID
		}
	})

	if !foundAny {
		st.cursor = l.engine.NextSeq(st.buffer)
		st.count = 0
		return false, ErrUnresolvedIdentifier
	}

	st.cursor = foundSeq
	st.count = l.countMatchingLocked(st.buffer, st.selector, foundSeq)
	return exact, nil
}

// nextMatchLocked scans forward from st.cursor for the first reading
// matching st.selector, advancing cursor past any non-matching readings
// it skips over (their presence does not affect count bookkeeping, which
// only tracks matching readings).
func (l *SensorLog) nextMatchLocked(st *walkerState) (stream.Reading, bool) {
	oldest := l.engine.Oldest(st.buffer)
	if st.cursor < oldest {
		st.cursor = oldest
	}
	tail := l.engine.NextSeq(st.buffer)
	for seq := st.cursor; seq < tail; seq++ {
		r, ok := l.engine.Read(st.buffer, seq)
		if !ok {
			continue
		}
		if st.selector.Matches(r.Stream) {
			st.cursor = seq
			return r, true
		}
	}
	return stream.Reading{}, false
}

func (l *SensorLog) constantReadingLocked(st *walkerState) stream.Reading {
	count := l.engine.Count(st.buffer)
	if count == 0 {
		return stream.Reading{Stream: st.selector.StreamID(), Value: 0, RawTime: 0xFFFFFFFF}
	}
	r, _ := l.engine.Read(st.buffer, l.engine.Oldest(st.buffer))
	return r
}
