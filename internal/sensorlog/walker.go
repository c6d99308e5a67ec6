package sensorlog

import (
	"errors"

	"github.com/iotile-sg/sensorgraph/internal/storage"
	"github.com/iotile-sg/sensorgraph/internal/stream"
)

// ErrStreamEmpty is returned by Pop/Peek when no matching reading is
// available.
var ErrStreamEmpty = errors.New("sensorlog: stream empty")

// ErrUnresolvedIdentifier is returned by Seek when no reading at or past
// the target id exists, and by InspectLast for an unknown virtual stream.
var ErrUnresolvedIdentifier = errors.New("sensorlog: unresolved identifier")

// WalkerID is a small integer handle into SensorLog's walker arena — per
// spec.md §9's design note, nodes store this index rather than a pointer,
// and SensorLog owns the arena behind it.
type WalkerID uint32

// walkerState is the mutable state of one walker, held inside SensorLog's
// arena and mutated only while SensorLog's mutex is held.
type walkerState struct {
	selector stream.Selector
	buffer   string // "storage", "streaming", or "virtual:<id>" for virtual/constant
	cursor   storage.SeqNo
	count    int
	constant bool // inexhaustible: cursor never advances, count is a sentinel
}

// Walker is a lightweight handle over a walkerState owned by a SensorLog.
// Its methods delegate to the owning log's locked walker operations so
// that a Walker can be safely copied and held by a Node without owning
// any state itself.
type Walker struct {
	id  WalkerID
	log *SensorLog
}

// Pop advances the cursor and returns the next matching reading, or
// ErrStreamEmpty. Inexhaustible (constant) walkers always return their
// cached constant reading and never advance.
func (w Walker) Pop() (stream.Reading, error) {
	return w.log.walkerPop(w.id)
}

// Peek returns the next matching reading without advancing the cursor.
func (w Walker) Peek() (stream.Reading, error) {
	return w.log.walkerPeek(w.id)
}

// Count returns the cached number of matching readings at or after the
// cursor. Inexhaustible walkers return a large sentinel so any trigger
// predicate ("count >= n") is always satisfied.
func (w Walker) Count() int {
	return w.log.walkerCount(w.id)
}

// Seek positions the cursor so the next Pop returns the first reading
// with id >= target. exact reports whether a reading with id == target
// exists; ErrUnresolvedIdentifier if no reading >= target exists at all.
func (w Walker) Seek(targetID uint32) (exact bool, err error) {
	return w.log.walkerSeek(w.id, targetID)
}

// Destroy removes this walker from its SensorLog's live set.
func (w Walker) Destroy() {
	w.log.DestroyWalker(w.id)
}

// ID returns the walker's arena handle.
func (w Walker) ID() WalkerID {
	return w.id
}
