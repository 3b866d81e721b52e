package stats

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/conneroisu/netpulse/internal/ring"
	"github.com/conneroisu/netpulse/internal/sample"
)

func push(b *ring.Buffer[sample.Sample], rtt float64, ok bool) {
	b.Push(sample.Sample{RTTMillis: rtt, Success: ok})
}

func TestEngine_EmptyWindow(t *testing.T) {
	b := ring.New[sample.Sample](8)
	e := NewEngine(8)

	m := e.Compute(b, 1000)
	assert.Zero(t, m.LossPercent)
	assert.Zero(t, m.P50Millis)
	assert.Zero(t, m.P95Millis)
	assert.Zero(t, m.MaxRTTMillis)
	assert.Equal(t, int64(1000), m.LastUpdatedMonoMillis)
}

// S6 — RTTs [10,20,30,40] -> p50=25.0, p95=38.5.
func TestEngine_PercentileInterpolation(t *testing.T) {
	b := ring.New[sample.Sample](8)
	for _, rtt := range []float64{10, 20, 30, 40} {
		push(b, rtt, true)
	}

	m := NewEngine(8).Compute(b, 0)
	assert.InDelta(t, 25.0, m.P50Millis, 1e-9)
	assert.InDelta(t, 38.5, m.P95Millis, 1e-9)
	assert.InDelta(t, 40.0, m.MaxRTTMillis, 1e-9)
	assert.InDelta(t, 40.0, m.CurrentRTTMillis, 1e-9)
}

// Invariant 3 — 0 <= loss_pct <= 100; all failures -> 100; empty -> 0.
func TestEngine_LossPercent(t *testing.T) {
	b := ring.New[sample.Sample](4)
	push(b, 0, false)
	push(b, 0, false)
	push(b, 0, false)
	push(b, 0, false)

	m := NewEngine(4).Compute(b, 0)
	assert.InDelta(t, 100.0, m.LossPercent, 1e-9)

	b2 := ring.New[sample.Sample](4)
	push(b2, 10, true)
	push(b2, 0, false)
	push(b2, 20, true)
	push(b2, 0, false)
	m2 := NewEngine(4).Compute(b2, 0)
	assert.InDelta(t, 50.0, m2.LossPercent, 1e-9)
}

// Invariant 4 — jitter is the mean absolute delta between consecutive
// successful RTTs; a failure breaks the chain rather than contributing a
// delta against a stale RTT.
func TestEngine_JitterSkipsAcrossFailures(t *testing.T) {
	b := ring.New[sample.Sample](8)
	push(b, 10, true)
	push(b, 0, false)
	push(b, 50, true)

	m := NewEngine(8).Compute(b, 0)
	assert.Zero(t, m.JitterMillis)

	b2 := ring.New[sample.Sample](8)
	push(b2, 10, true)
	push(b2, 20, true)
	push(b2, 10, true)
	m2 := NewEngine(8).Compute(b2, 0)
	assert.InDelta(t, 10.0, m2.JitterMillis, 1e-9)
}

func TestEngine_CurrentRTTIgnoresTrailingFailures(t *testing.T) {
	b := ring.New[sample.Sample](8)
	push(b, 15, true)
	push(b, 0, false)
	push(b, 0, false)

	m := NewEngine(8).Compute(b, 0)
	assert.InDelta(t, 15.0, m.CurrentRTTMillis, 1e-9)
}

// Invariant 2 — p50 <= p95 <= max_rtt, and current_rtt (when present) <=
// max_rtt, for any sequence of samples.
func TestEngine_OrderingProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("percentile and max ordering", prop.ForAll(
		func(rtts []float64, fails []bool) bool {
			b := ring.New[sample.Sample](64)
			n := len(rtts)
			for i := 0; i < n; i++ {
				ok := true
				if i < len(fails) {
					ok = !fails[i]
				}
				r := rtts[i]
				if r < 0 {
					r = -r
				}
				if !ok {
					r = 0
				}
				push(b, r, ok)
			}

			m := NewEngine(64).Compute(b, 0)
			if m.P50Millis > m.P95Millis+1e-9 {
				return false
			}
			if m.P95Millis > m.MaxRTTMillis+1e-9 {
				return false
			}
			if m.CurrentRTTMillis > m.MaxRTTMillis+1e-9 {
				return false
			}
			return m.LossPercent >= 0 && m.LossPercent <= 100
		},
		gen.SliceOfN(20, gen.Float64Range(0, 500)),
		gen.SliceOfN(20, gen.Bool()),
	))

	properties.TestingRun(t)
}
