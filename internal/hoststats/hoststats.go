// Package hoststats periodically samples host CPU and memory utilization
// and feeds them into the sensor-graph's constant streams, supplementing
// the pure in-memory RSL with a real source of ambient telemetry — the
// kind of system-scope constant stream spec.md §2 anticipates but leaves
// unsourced.
package hoststats

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/iotile-sg/sensorgraph/internal/stream"
)

// ConstantSetter is the subset of SensorLog's API a sampler needs: writing
// the current value of a constant/system stream without going through the
// push/duplication machinery ordinary readings use.
type ConstantSetter interface {
	SetConstant(id stream.ID, value uint32) error
}

// Sampler periodically refreshes a fixed set of system-scope constant
// streams from host metrics.
type Sampler struct {
	target   ConstantSetter
	logger   *slog.Logger
	interval time.Duration
	cpuUtil  stream.ID
	memUtil  stream.ID
	cancel   context.CancelFunc
	done     chan struct{}
}

// New builds a Sampler writing CPU and memory utilization (as a percentage
// scaled to 0..10000, two implied decimal places, matching the firmware's
// fixed-point reading convention) to the given constant stream IDs every
// interval.
func New(target ConstantSetter, logger *slog.Logger, interval time.Duration, cpuUtil, memUtil stream.ID) *Sampler {
	return &Sampler{
		target:   target,
		logger:   logger,
		interval: interval,
		cpuUtil:  cpuUtil,
		memUtil:  memUtil,
		done:     make(chan struct{}),
	}
}

// Start begins the sampling goroutine.
func (s *Sampler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sample()
			case <-ctx.Done():
				return
			}
		}
	}()

	s.logger.Info("host stats sampler started", "interval", s.interval)
}

// Stop halts the sampling goroutine and waits for it to exit.
func (s *Sampler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
	s.logger.Info("host stats sampler stopped")
}

func (s *Sampler) sample() {
	if percents, err := cpu.Percent(0, false); err != nil {
		s.logger.Warn("cpu sample failed", "error", err)
	} else if len(percents) > 0 {
		if err := s.target.SetConstant(s.cpuUtil, uint32(percents[0]*100)); err != nil {
			s.logger.Warn("writing cpu constant stream failed", "error", err)
		}
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		s.logger.Warn("memory sample failed", "error", err)
		return
	}
	if err := s.target.SetConstant(s.memUtil, uint32(vm.UsedPercent*100)); err != nil {
		s.logger.Warn("writing memory constant stream failed", "error", err)
	}
}
