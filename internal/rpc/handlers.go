package rpc

import (
	"errors"
	"sync"

	"github.com/iotile-sg/sensorgraph/internal/sensorlog"
	"github.com/iotile-sg/sensorgraph/internal/stream"
)

// DataClearedStream is the system counter stream a clear_readings call
// pushes a marker reading to, so the device can always recover the
// highest reading id it had allocated before the clear — grounded on the
// original's SensorLogSubsystem.clear pushing to streams.DATA_CLEARED.
var DataClearedStream = stream.Encode(true, stream.Counter, 0)

// Handlers implements the RPC surface spec.md §4.7 describes, wrapping a
// SensorLog so every operation returns a packed error word instead of a
// Go error. A small additional mutex guards the dump walker's identity
// (not the storage it reads, which SensorLog already protects), matching
// the original's subsystem-level lock around self.dump_walker.
type Handlers struct {
	log *sensorlog.SensorLog

	mu         sync.Mutex
	dumpWalker *sensorlog.Walker
}

// NewHandlers builds a Handlers over an existing SensorLog.
func NewHandlers(log *sensorlog.SensorLog) *Handlers {
	return &Handlers{log: log}
}

// PushReading pushes one reading stamped with timestamp and returns a
// packed error (RING_BUFFER_FULL on a fill-stop buffer at capacity).
func (h *Handlers) PushReading(id stream.ID, timestamp, value uint32) uint32 {
	if _, err := h.log.Push(stream.Reading{Stream: id, RawTime: timestamp, Value: value}); err != nil {
		return PackSensorLog(RingBufferFull)
	}
	return PackSensorLog(NoError)
}

// PushManyReadings pushes count copies of the same value, stopping at
// the first StorageFull and reporting how many actually landed.
func (h *Handlers) PushManyReadings(id stream.ID, timestamp, value uint32, count int) (errWord uint32, numPushed int) {
	for i := 0; i < count; i++ {
		if _, err := h.log.Push(stream.Reading{Stream: id, RawTime: timestamp, Value: value}); err != nil {
			return PackSensorLog(RingBufferFull), i
		}
	}
	return PackSensorLog(NoError), count
}

// CountReadings reports how many readings are currently live in each
// ring buffer.
func (h *Handlers) CountReadings() (errWord uint32, storageCount, streamingCount int) {
	s, st := h.log.Counts()
	return PackSensorLog(NoError), s, st
}

// ClearReadings empties both buffers and pushes a DATA_CLEARED marker
// stamped with timestamp, preserving the reading-id high-water mark
// across the clear.
func (h *Handlers) ClearReadings(timestamp uint32) uint32 {
	h.log.Clear()
	if _, err := h.log.Push(stream.Reading{Stream: DataClearedStream, RawTime: timestamp, Value: 1}); err != nil {
		return PackSensorLog(RingBufferFull)
	}
	return PackSensorLog(NoError)
}

// InspectVirtualStream returns a virtual/constant stream's last value.
// Buffered streams are rejected with VIRTUAL_STREAM_NOT_FOUND, matching
// the original's stream.buffered guard.
func (h *Handlers) InspectVirtualStream(id stream.ID) (errWord uint32, value uint32) {
	if id.Buffered() {
		return PackSensorLog(VirtualStreamNotFound), 0
	}

	r, err := h.log.InspectLast(id, true)
	if err != nil {
		if errors.Is(err, sensorlog.ErrStreamEmpty) {
			return PackSensorLog(NoError), 0
		}
		return PackSensorLog(VirtualStreamNotFound), 0
	}
	return PackSensorLog(NoError), r.Value
}

// DumpStreamBegin destroys any previous dump walker and creates a fresh
// one over selector, returning the number of readings it can see.
func (h *Handlers) DumpStreamBegin(sel stream.Selector, uptime uint32) (errWord, errWord2 uint32, count int, reportedUptime uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.dumpWalker != nil {
		h.dumpWalker.Destroy()
		h.dumpWalker = nil
	}

	w, err := h.log.CreateWalker(sel, false)
	if err != nil {
		return PackSensorLog(StreamWalkerNotInitialized), PackSensorLog(NoError), 0, uptime
	}
	h.dumpWalker = &w
	return PackSensorLog(NoError), PackSensorLog(NoError), w.Count(), uptime
}

// DumpStreamSeek positions the active dump walker so the next
// DumpStreamNext returns the first reading with id >= targetID.
func (h *Handlers) DumpStreamSeek(targetID uint32) (errWord uint32, errWord2 uint32, remaining int) {
	h.mu.Lock()
	w := h.dumpWalker
	h.mu.Unlock()

	if w == nil {
		return PackSensorLog(StreamWalkerNotInitialized), PackSensorLog(NoError), 0
	}

	exact, err := w.Seek(targetID)
	if err != nil {
		if errors.Is(err, sensorlog.ErrUnresolvedIdentifier) {
			return PackSensorLog(NoMoreReadings), PackSensorLog(NoError), 0
		}
		return PackSensorLog(StreamWalkerNotInitialized), PackSensorLog(NoError), 0
	}

	if !exact {
		e := PackSensorLog(IDFoundForAnotherStream)
		return e, e, w.Count()
	}
	return PackSensorLog(NoError), PackSensorLog(NoError), w.Count()
}

// DumpStreamNext pops the next reading from the active dump walker.
// format must be 1 (the only output format this implementation
// supports, matching the original's rejection of format 0).
func (h *Handlers) DumpStreamNext(format int) (errWord uint32, timestamp, value, readingID uint32, streamID stream.ID) {
	h.mu.Lock()
	w := h.dumpWalker
	h.mu.Unlock()

	if format != 1 {
		return PackSensorLog(StreamWalkerNotInitialized), 0, 0, 0, 0
	}
	if w == nil {
		return PackSensorLog(StreamWalkerNotInitialized), 0, 0, 0, 0
	}

	r, err := w.Pop()
	if err != nil {
		if errors.Is(err, sensorlog.ErrStreamEmpty) {
			return PackSensorLog(NoMoreReadings), 0, 0, 0, 0
		}
		return PackSensorLog(StreamWalkerNotInitialized), 0, 0, 0, 0
	}
	return PackSensorLog(NoError), r.RawTime, r.Value, r.ReadingID, r.Stream
}

// HighestReadingID scans both buffers for the maximum allocated reading
// id.
func (h *Handlers) HighestReadingID() (errWord uint32, id uint32) {
	return PackSensorLog(NoError), h.log.HighestReadingID()
}
