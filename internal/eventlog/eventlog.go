// Package eventlog implements the per-target bad-condition hysteresis
// (BadStateTracker) and the shared EventLog that replays recent events
// to new telemetry subscribers and journals every event to disk.
package eventlog

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/conneroisu/netpulse/internal/ring"
	"github.com/conneroisu/netpulse/internal/sample"
)

// EventLogCapacity bounds the in-memory ring buffer used for snapshot
// replay; it is independent of the journal file, which is unbounded.
const EventLogCapacity = 100

// BadConditionDurationS is the dwell time a target must remain in a bad
// state before its first event of that period is emitted. It exists to
// suppress event floods from brief threshold flaps.
const BadConditionDurationS = 10

// EventType classifies which threshold an Event crossed.
type EventType int

const (
	// BadLoss means loss_pct exceeded its threshold.
	BadLoss EventType = iota
	// BadP95 means p95_ms exceeded its threshold.
	BadP95
	// BadJitter means jitter_ms exceeded its threshold.
	BadJitter
)

func (t EventType) String() string {
	switch t {
	case BadLoss:
		return "BadLoss"
	case BadP95:
		return "BadP95"
	case BadJitter:
		return "BadJitter"
	default:
		return "BadUnknown"
	}
}

// metricName returns the details-object key used when journaling an
// event of this type.
func (t EventType) metricName() string {
	switch t {
	case BadLoss:
		return "loss_pct"
	case BadP95:
		return "p95_ms"
	case BadJitter:
		return "jitter_ms"
	default:
		return "value"
	}
}

// Thresholds holds the three bad-condition limits a target's Metrics
// are checked against on every metrics refresh.
type Thresholds struct {
	LossPercent  float64
	P95Millis    float64
	JitterMillis float64
}

// DefaultThresholds matches the spec's default configuration values.
func DefaultThresholds() Thresholds {
	return Thresholds{LossPercent: 5.0, P95Millis: 100.0, JitterMillis: 20.0}
}

// Event is one bad-condition crossing: a target stayed over one
// threshold for at least BadConditionDurationS seconds.
type Event struct {
	TimestampWallMillis int64
	TargetID            string
	Type                EventType
	Reason              string
	Value               float64
	Threshold           float64
	DurationS           uint32
}

// BadStateTracker is the per-target hysteresis state machine described
// in the bad-condition transitions table: it holds is_bad across
// metrics refreshes so a single breach doesn't fire repeated events.
type BadStateTracker struct {
	isBad              bool
	badStartMonoMillis int64
	eventEmitted       bool
	lastBadType        EventType
}

// classify returns the highest-priority threshold Metrics exceeds, in
// loss_pct > p95_ms > jitter_ms order. exceeding is false if none do.
func classify(m sample.Metrics, th Thresholds) (typ EventType, value, threshold float64, exceeding bool) {
	switch {
	case m.LossPercent > th.LossPercent:
		return BadLoss, m.LossPercent, th.LossPercent, true
	case m.P95Millis > th.P95Millis:
		return BadP95, m.P95Millis, th.P95Millis, true
	case m.JitterMillis > th.JitterMillis:
		return BadJitter, m.JitterMillis, th.JitterMillis, true
	default:
		return 0, 0, 0, false
	}
}

// Check runs one metrics-refresh evaluation against th and returns a
// newly emitted Event, or nil if none fires this refresh. targetID and
// nowWallMillis are only used to stamp the returned Event.
func (b *BadStateTracker) Check(m sample.Metrics, th Thresholds, nowMonoMillis, nowWallMillis int64, targetID string) *Event {
	typ, value, threshold, exceeding := classify(m, th)

	if !exceeding {
		if b.isBad {
			b.isBad = false
			b.eventEmitted = false
		}
		return nil
	}

	if !b.isBad {
		b.isBad = true
		b.badStartMonoMillis = nowMonoMillis
		b.eventEmitted = false
		b.lastBadType = typ
		return nil
	}

	if b.eventEmitted {
		return nil
	}

	elapsedS := (nowMonoMillis - b.badStartMonoMillis) / 1000
	if elapsedS < BadConditionDurationS {
		return nil
	}

	b.eventEmitted = true
	return &Event{
		TimestampWallMillis: nowWallMillis,
		TargetID:            targetID,
		Type:                typ,
		Reason:              reasonFor(typ, value, threshold),
		Value:               value,
		Threshold:           threshold,
		DurationS:           uint32(elapsedS),
	}
}

func reasonFor(typ EventType, value, threshold float64) string {
	switch typ {
	case BadLoss:
		return fmt.Sprintf("packet loss %.2f%% exceeds threshold %.2f%%", value, threshold)
	case BadP95:
		return fmt.Sprintf("p95 latency %.2fms exceeds threshold %.2fms", value, threshold)
	case BadJitter:
		return fmt.Sprintf("jitter %.2fms exceeds threshold %.2fms", value, threshold)
	default:
		return "unknown bad condition"
	}
}

// EventLog fans out each recorded Event to an in-memory ring buffer
// (for snapshot replay to new subscribers) and to a line-delimited
// journal writer. Journal writes are best-effort: a write error is
// dropped rather than propagated, since losing one journal line must
// never stall probing.
type EventLog struct {
	buf     *ring.Buffer[Event]
	journal io.Writer
}

// NewEventLog returns an EventLog backed by a capacity-100 ring buffer.
// journal may be nil to disable journaling (e.g. in tests).
func NewEventLog(journal io.Writer) *EventLog {
	return &EventLog{buf: ring.New[Event](EventLogCapacity), journal: journal}
}

// Record pushes e onto the snapshot buffer and appends it to the
// journal.
func (l *EventLog) Record(e Event) {
	l.buf.Push(e)
	if l.journal == nil {
		return
	}
	line, err := marshalJournalLine(e)
	if err != nil {
		return
	}
	_, _ = l.journal.Write(line)
}

// Snapshot returns all retained events, oldest first.
func (l *EventLog) Snapshot() []Event {
	return l.buf.Slice()
}

func marshalJournalLine(e Event) ([]byte, error) {
	details := map[string]any{
		e.Type.metricName(): round2(e.Value),
		"threshold":         round2(e.Threshold),
		"duration_s":        e.DurationS,
	}
	rec := map[string]any{
		"ts":        e.TimestampWallMillis,
		"target_id": e.TargetID,
		"reason":    e.Reason,
		"details":   details,
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("eventlog: marshal journal line: %w", err)
	}
	return append(b, '\n'), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
