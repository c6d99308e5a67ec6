// Package scheduler drives the sensor-graph's periodic tick streams
// ("fast", "user1", "user2") from wall-clock time.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Slot names the three configurable tick streams a device model exposes.
// Interval 0 means the slot is disabled and no cron entry is registered.
type Slot string

const (
	Fast  Slot = "fast"
	User1 Slot = "user1"
	User2 Slot = "user2"
)

// Intervals holds each slot's period in seconds; 0 disables the slot.
type Intervals struct {
	Fast  uint32
	User1 uint32
	User2 uint32
}

func (iv Intervals) seconds(slot Slot) uint32 {
	switch slot {
	case Fast:
		return iv.Fast
	case User1:
		return iv.User1
	case User2:
		return iv.User2
	default:
		return 0
	}
}

// TickResult records the outcome of the last firing of a slot, exposed so
// a diagnostics surface can report scheduler health.
type TickResult struct {
	Slot       Slot
	Err        error
	Fired      time.Time
	Duration   time.Duration
	Suppressed bool // a previous firing of this slot was still running
}

// tickJob guards one slot against overlapping firings: a slow processing
// function must never let two ticks for the same slot run concurrently,
// since both would contend for the same SensorLog mutex.
type tickJob struct {
	slot    Slot
	mu      sync.Mutex
	running bool
	last    *TickResult
}

// Ticker owns one cron entry per enabled slot and invokes a caller-supplied
// function on each firing.
type Ticker struct {
	cron   *cron.Cron
	logger *slog.Logger
	jobs   []*tickJob
}

// TickFunc is called once per firing of a slot with the wall-clock time of
// the firing. It should push the slot's tick reading into the graph and
// run process_input; errors are logged and do not stop the scheduler.
type TickFunc func(ctx context.Context, slot Slot, firedAt time.Time) error

// New builds a Ticker with one cron job per slot whose interval is
// non-zero. Intervals are expressed as "@every Ns" cron specs, grounded on
// the teacher's per-entry cron.AddFunc registration pattern.
func New(intervals Intervals, logger *slog.Logger, run TickFunc) (*Ticker, error) {
	t := &Ticker{
		logger: logger,
		cron:   cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug)))),
	}

	for _, slot := range []Slot{Fast, User1, User2} {
		secs := intervals.seconds(slot)
		if secs == 0 {
			continue
		}
		job := &tickJob{slot: slot}
		t.jobs = append(t.jobs, job)

		spec := fmt.Sprintf("@every %ds", secs)
		if _, err := t.cron.AddFunc(spec, func() { t.fire(job, run) }); err != nil {
			return nil, fmt.Errorf("scheduler: registering slot %q: %w", slot, err)
		}
		logger.Info("registered tick slot", "slot", slot, "interval_secs", secs)
	}

	return t, nil
}

// Start begins firing registered slots.
func (t *Ticker) Start() {
	t.logger.Info("scheduler started", "slots", len(t.jobs))
	t.cron.Start()
}

// Stop halts the scheduler and waits for in-flight firings to finish or
// ctx to expire, whichever comes first.
func (t *Ticker) Stop(ctx context.Context) {
	stopCtx := t.cron.Stop()
	select {
	case <-stopCtx.Done():
		t.logger.Info("scheduler stopped")
	case <-ctx.Done():
		t.logger.Warn("scheduler stop timed out")
	}
}

// Results returns the last recorded firing outcome for every enabled slot.
func (t *Ticker) Results() []TickResult {
	out := make([]TickResult, 0, len(t.jobs))
	for _, job := range t.jobs {
		job.mu.Lock()
		if job.last != nil {
			out = append(out, *job.last)
		}
		job.mu.Unlock()
	}
	return out
}

func (t *Ticker) fire(job *tickJob, run TickFunc) {
	slotLogger := t.logger.With("slot", job.slot)

	job.mu.Lock()
	if job.running {
		job.mu.Unlock()
		slotLogger.Warn("tick still running, skipping this firing")
		job.mu.Lock()
		job.last = &TickResult{Slot: job.slot, Fired: time.Now(), Suppressed: true}
		job.mu.Unlock()
		return
	}
	job.running = true
	job.mu.Unlock()

	defer func() {
		job.mu.Lock()
		job.running = false
		job.mu.Unlock()
	}()

	start := time.Now()
	err := run(context.Background(), job.slot, start)
	duration := time.Since(start)

	result := &TickResult{Slot: job.slot, Err: err, Fired: start, Duration: duration}
	if err != nil {
		slotLogger.Error("tick processing failed", "error", err, "duration", duration)
	}

	job.mu.Lock()
	job.last = result
	job.mu.Unlock()
}
