package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewSkipsDisabledSlots(t *testing.T) {
	ticker, err := New(Intervals{Fast: 0, User1: 0, User2: 0}, discardLogger(), func(context.Context, Slot, time.Time) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ticker.jobs) != 0 {
		t.Fatalf("expected no jobs registered, got %d", len(ticker.jobs))
	}
}

func TestFireInvokesCallbackAndRecordsResult(t *testing.T) {
	job := &tickJob{slot: Fast}
	var calls int32

	ticker := &Ticker{logger: discardLogger()}
	ticker.fire(job, func(ctx context.Context, slot Slot, firedAt time.Time) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	if calls != 1 {
		t.Fatalf("expected callback invoked once, got %d", calls)
	}
	if job.last == nil || job.last.Err != nil {
		t.Fatalf("expected a recorded success result, got %+v", job.last)
	}
}

func TestFireSkipsOverlappingRun(t *testing.T) {
	job := &tickJob{slot: Fast, running: true}
	var calls int32

	ticker := &Ticker{logger: discardLogger()}
	ticker.fire(job, func(ctx context.Context, slot Slot, firedAt time.Time) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	if calls != 0 {
		t.Fatalf("expected callback skipped while already running, got %d calls", calls)
	}
	if job.last == nil || !job.last.Suppressed {
		t.Fatalf("expected a suppressed result recorded, got %+v", job.last)
	}
}
