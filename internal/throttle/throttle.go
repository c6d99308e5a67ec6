// Package throttle provides a reading-count rate limiter for the
// RPC-facing ingestion path, so a misbehaving or overeager external host
// cannot starve the sensor-graph tick loop of its SensorLog mutex. The
// rpc handlers do not call it themselves; a caller must wrap them.
package throttle

import (
	"context"

	"golang.org/x/time/rate"
)

// maxBurst bounds how many readings a single push_many_readings call may
// admit in one reservation, so one oversized RPC can't reserve the entire
// steady-state budget up front.
const maxBurst = 256

// ReadingLimiter is a token-bucket limiter over readings/sec, generalized
// from the teacher's ThrottledWriter (bytes/sec) to reading counts — the
// quantity that matters on the RPC ingestion path.
type ReadingLimiter struct {
	limiter *rate.Limiter
}

// NewReadingLimiter builds a limiter admitting readingsPerSec readings per
// second. readingsPerSec <= 0 disables throttling (nil receiver, every
// method becomes a no-op).
func NewReadingLimiter(readingsPerSec int) *ReadingLimiter {
	if readingsPerSec <= 0 {
		return nil
	}
	burst := readingsPerSec
	if burst > maxBurst {
		burst = maxBurst
	}
	return &ReadingLimiter{limiter: rate.NewLimiter(rate.Limit(readingsPerSec), burst)}
}

// Admit blocks until n readings may be pushed, splitting n into
// burst-sized waits so a large push_many_readings call is throttled
// gradually rather than reserving its entire cost at once.
func (l *ReadingLimiter) Admit(ctx context.Context, n int) error {
	if l == nil {
		return nil
	}
	for n > 0 {
		chunk := n
		if chunk > l.limiter.Burst() {
			chunk = l.limiter.Burst()
		}
		if err := l.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
