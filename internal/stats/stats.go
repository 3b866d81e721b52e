// Package stats computes per-target quality metrics (loss, jitter,
// percentiles, current/max RTT) from a window of samples at fixed
// cadence. Computation is O(n log n) per call because of the percentile
// sort; n is bounded by the window's capacity (120 by default), so this
// is cheap even run once per second per target.
package stats

import (
	"sort"

	"github.com/conneroisu/netpulse/internal/ring"
	"github.com/conneroisu/netpulse/internal/sample"
)

// Engine computes Metrics over a RingBuffer<Sample>. It owns a reusable
// scratch slice so repeated calls for the same target don't allocate.
type Engine struct {
	scratch []float64
}

// NewEngine returns an Engine with scratch space sized for capacity
// samples. Capacity should match the target window's size.
func NewEngine(capacity int) *Engine {
	return &Engine{scratch: make([]float64, 0, capacity)}
}

// Compute derives Metrics from window as of nowMonoMillis. window is read
// only; Compute does not mutate it.
func (e *Engine) Compute(window *ring.Buffer[sample.Sample], nowMonoMillis int64) sample.Metrics {
	count := window.Count()

	var (
		metrics     sample.Metrics
		failed      int
		jitterSum   float64
		jitterPairs int
		havePrev    bool
		prevRTT     float64
		haveCurrent bool
	)

	e.scratch = e.scratch[:0]

	for i := count - 1; i >= 0; i-- {
		s, _ := window.Get(i)
		if s.Success && !haveCurrent {
			metrics.CurrentRTTMillis = s.RTTMillis
			haveCurrent = true
		}
	}

	for i := 0; i < count; i++ {
		s, _ := window.Get(i)
		if !s.Success {
			failed++
			havePrev = false
			continue
		}

		if s.RTTMillis > metrics.MaxRTTMillis {
			metrics.MaxRTTMillis = s.RTTMillis
		}
		e.scratch = append(e.scratch, s.RTTMillis)

		if havePrev {
			diff := s.RTTMillis - prevRTT
			if diff < 0 {
				diff = -diff
			}
			jitterSum += diff
			jitterPairs++
		}
		prevRTT = s.RTTMillis
		havePrev = true
	}

	if count > 0 {
		metrics.LossPercent = 100 * float64(failed) / float64(count)
	}
	if jitterPairs > 0 {
		metrics.JitterMillis = jitterSum / float64(jitterPairs)
	}

	sort.Float64s(e.scratch)
	metrics.P50Millis = percentile(e.scratch, 50)
	metrics.P95Millis = percentile(e.scratch, 95)

	metrics.LastUpdatedMonoMillis = nowMonoMillis
	return metrics
}

// percentile returns the p-th percentile (0..100) of sorted, using linear
// interpolation between the two nearest ranks. sorted must already be
// ascending. Returns 0 for an empty slice.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}

	idx := (p / 100) * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
