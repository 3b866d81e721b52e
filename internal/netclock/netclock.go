// Package netclock centralizes the monotonic/wall-clock access the
// scheduler needs, wrapping clockwork.Clock so tests can drive time
// deterministically instead of sleeping in real time.
package netclock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the subset of clockwork.Clock the scheduler depends on.
type Clock = clockwork.Clock

// Real returns the real-time clock, for production wiring.
func Real() Clock {
	return clockwork.NewRealClock()
}

// MonoMillis returns c's current instant as milliseconds, suitable for
// all scheduling arithmetic (next_probe_ms, bad_start_monotonic_ms,
// etc). It is monotonic only in the sense that clockwork.FakeClock and
// the real wall clock both produce non-decreasing values under normal
// advancement; the scheduler never computes deltas across a clock
// reset.
func MonoMillis(c Clock) int64 {
	return c.Now().UnixMilli()
}

// WallMillis returns c's current instant as milliseconds for display
// and event timestamps. With the real clock this is identical to
// MonoMillis; kept distinct so call sites document their intent.
func WallMillis(c Clock) int64 {
	return c.Now().UnixMilli()
}

// MillisDuration converts a millisecond count to a time.Duration, for
// passing to Clock.Sleep/After in tests.
func MillisDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
