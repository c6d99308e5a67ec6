package streamer

import "fmt"

// Registry owns the streamer list and the manual-mark set SensorGraph
// consults via mark_streamer/check_streamers.
type Registry struct {
	streamers []*Streamer
	manual    map[int]bool
	maxCount  int // 0 = unbounded
}

// NewRegistry builds an empty registry. maxCount <= 0 means unbounded
// (enforce_limits=false in the original).
func NewRegistry(maxCount int) *Registry {
	return &Registry{manual: make(map[int]bool), maxCount: maxCount}
}

// ErrTooManyStreamers is returned by Add when maxCount would be exceeded.
type ErrTooManyStreamers struct {
	MaxStreamers int
}

func (e *ErrTooManyStreamers) Error() string {
	return fmt.Sprintf("streamer: maximum number of streamers (%d) exceeded", e.MaxStreamers)
}

// Add appends a streamer, assigning it the next index.
func (r *Registry) Add(s *Streamer) error {
	if r.maxCount > 0 && len(r.streamers) >= r.maxCount {
		return &ErrTooManyStreamers{MaxStreamers: r.maxCount}
	}
	s.Index = len(r.streamers)
	r.streamers = append(r.streamers, s)
	return nil
}

// All returns every registered streamer, in index order.
func (r *Registry) All() []*Streamer {
	return r.streamers
}

// ErrInvalidIndex is returned by Mark for an out-of-range streamer index.
type ErrInvalidIndex struct {
	Index        int
	NumStreamers int
}

func (e *ErrInvalidIndex) Error() string {
	return fmt.Sprintf("streamer: invalid streamer index %d (have %d)", e.Index, e.NumStreamers)
}

// Mark records a manual trigger for the streamer at index; consumed by
// the next Check call.
func (r *Registry) Mark(index int) error {
	if index < 0 || index >= len(r.streamers) {
		return &ErrInvalidIndex{Index: index, NumStreamers: len(r.streamers)}
	}
	r.manual[index] = true
	return nil
}

// Tick advances every streamer's periodic counter — called once per
// graph tick.
func (r *Registry) Tick() {
	for _, s := range r.streamers {
		s.Tick()
	}
}

// Check returns the streamers that should fire now, honoring blacklist
// (indices to skip), manual marks (consumed exactly once here), and
// with_other coupling: once a leader streamer fires, any follower whose
// WithOther equals the leader's index is included too if it has data.
func (r *Registry) Check(blacklist map[int]bool) []*Streamer {
	var ready []*Streamer
	selected := make(map[int]bool)

	for i, s := range r.streamers {
		if blacklist[i] || selected[i] {
			continue
		}

		marked := r.manual[i]
		if marked {
			delete(r.manual, i)
		}

		if s.Triggered(marked) {
			ready = append(ready, s)
			selected[i] = true
			s.resetPeriodic()

			for j := i; j < len(r.streamers); j++ {
				other := r.streamers[j]
				if other.WithOther != i || selected[j] {
					continue
				}
				if other.Triggered(true) {
					ready = append(ready, other)
					selected[j] = true
					other.resetPeriodic()
				}
			}
		}
	}

	return ready
}
