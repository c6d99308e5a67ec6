package hoststats

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iotile-sg/sensorgraph/internal/stream"
)

type fakeSetter struct {
	mu     sync.Mutex
	values map[stream.ID]uint32
	calls  int32
}

func (f *fakeSetter) SetConstant(id stream.ID, value uint32) error {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values == nil {
		f.values = map[stream.ID]uint32{}
	}
	f.values[id] = value
	return nil
}

func TestSamplerWritesConstantStreamsPeriodically(t *testing.T) {
	target := &fakeSetter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cpuID := stream.Encode(true, stream.Constant, 1)
	memID := stream.Encode(true, stream.Constant, 2)

	s := New(target, logger, 10*time.Millisecond, cpuID, memID)
	s.Start()
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&target.calls) == 0 {
		select {
		case <-deadline:
			t.Fatal("expected at least one sample to be written")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
