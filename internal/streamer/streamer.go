// Package streamer implements the triggering rules, manual-mark handling,
// and with-other coupling that decide when a report should be assembled
// over a selector's new data.
package streamer

import (
	"errors"

	"github.com/iotile-sg/sensorgraph/internal/sensorlog"
	"github.com/iotile-sg/sensorgraph/internal/stream"
)

// NoWithOther marks a streamer that does not follow another streamer's
// trigger (spec.md's with_other: Option<index>, encoded here as a
// sentinel rather than a pointer/optional type).
const NoWithOther = -1

// TriggerKind is the rule deciding when a streamer auto-fires.
type TriggerKind uint8

const (
	Periodic   TriggerKind = iota // fires every Ticks calls to Tick()
	OnCount                       // fires once the selector's walker count >= Count
	ManualOnly                    // never auto-fires; only a mark_streamer call can trigger it
)

// Trigger is a streamer's auto-firing rule.
type Trigger struct {
	Kind  TriggerKind
	Ticks uint32 // meaningful for Periodic
	Count uint32 // meaningful for OnCount
}

// ReportType distinguishes a streamer that reports each matching reading
// individually from one that broadcasts a single combined report over its
// whole window — supplementing spec.md's Streamer fields with the
// original's report_type/reliable distinction (see SPEC_FULL.md §4.6).
type ReportType uint8

const (
	IndividualReports ReportType = iota
	BroadcastReports
)

// Streamer is one outbound reporting rule: a selector, a trigger, and
// state for with-other coupling and manual marks.
type Streamer struct {
	Index      int
	Selector   stream.Selector
	Trigger    Trigger
	ReportType ReportType
	Reliable   bool
	WithOther  int // NoWithOther, or the index of the streamer this one follows

	walker       sensorlog.Walker
	ticksElapsed uint32
}

// ErrNotLinked is returned by operations requiring LinkToStorage to have
// run first.
var ErrNotLinked = errors.New("streamer: not linked to storage")

// New builds a Streamer; call LinkToStorage before use.
func New(sel stream.Selector, trig Trigger, reportType ReportType, reliable bool, withOther int) *Streamer {
	return &Streamer{
		Selector:   sel,
		Trigger:    trig,
		ReportType: reportType,
		Reliable:   reliable,
		WithOther:  withOther,
	}
}

// LinkToStorage creates the streamer's walker against the given log. Must
// be called exactly once, by SensorGraph.AddStreamer.
func (s *Streamer) LinkToStorage(log *sensorlog.SensorLog) error {
	w, err := log.CreateWalker(s.Selector, false)
	if err != nil {
		return err
	}
	s.walker = w
	return nil
}

// HasData reports whether the selector's walker has matched at least one
// reading since the last report.
func (s *Streamer) HasData() bool {
	return s.walker.Count() >= 1
}

// Tick advances this streamer's periodic-trigger counter. Called once per
// graph tick (one process_input invocation) regardless of trigger kind;
// non-periodic streamers simply ignore the counter.
func (s *Streamer) Tick() {
	s.ticksElapsed++
}

// autoTriggered evaluates this streamer's trigger rule without regard to
// any manual mark.
func (s *Streamer) autoTriggered() bool {
	switch s.Trigger.Kind {
	case Periodic:
		return s.ticksElapsed >= s.Trigger.Ticks && s.Trigger.Ticks > 0
	case OnCount:
		return uint32(s.walker.Count()) >= s.Trigger.Count
	case ManualOnly:
		return false
	default:
		return false
	}
}

// Triggered reports whether this streamer should fire now: the selector
// must have new data, and either the auto rule is satisfied or manual is
// true (a mark_streamer call or with-other coupling).
func (s *Streamer) Triggered(manual bool) bool {
	if !s.HasData() {
		return false
	}
	return s.autoTriggered() || manual
}

// resetPeriodic clears the periodic tick counter; called once a streamer
// has actually been selected to fire.
func (s *Streamer) resetPeriodic() {
	s.ticksElapsed = 0
}

// Walker exposes the streamer's underlying walker for report assembly.
func (s *Streamer) Walker() sensorlog.Walker {
	return s.walker
}

func (s *Streamer) String() string {
	return s.Selector.String()
}
