// Package scheduler is the cooperative, single-threaded core: it drives
// every target's probe state machine from tick(), refreshes metrics and
// bad-condition detection at a fixed cadence independent of probing, and
// delivers all three results through caller-registered callbacks.
package scheduler

import (
	"fmt"

	"github.com/conneroisu/netpulse/internal/eventlog"
	"github.com/conneroisu/netpulse/internal/netclock"
	"github.com/conneroisu/netpulse/internal/perr"
	"github.com/conneroisu/netpulse/internal/probe"
	"github.com/conneroisu/netpulse/internal/ring"
	"github.com/conneroisu/netpulse/internal/sample"
	"github.com/conneroisu/netpulse/internal/stats"
	"github.com/conneroisu/netpulse/internal/target"
)

// DefaultWindowSize is the sample history kept per target.
const DefaultWindowSize = 120

// metricsIntervalMillis is how often, at minimum, metrics and event
// detection re-run for every target. Independent of probe cadence.
const metricsIntervalMillis = 1000

// reactorPollCapMillis is the spec's bound on how long the embedder's
// own I/O reactor poll may block: the smaller of tick()'s return value
// and this cap. The scheduler does not enforce it directly (that's the
// embedder's main loop), but exposes it for callers to use.
const reactorPollCapMillis = 2

// ReactorPollCapMillis returns the upper bound the embedder's main loop
// should pass to its own I/O poll, so a completed non-blocking connect
// is never observed more than this many milliseconds late.
func ReactorPollCapMillis() int64 { return reactorPollCapMillis }

// ProbeType selects which transport every target in a Scheduler uses.
type ProbeType int

const (
	// ProbeTCP drives the non-blocking connect/poll FSM.
	ProbeTCP ProbeType = iota
	// ProbeICMP drives blocking ICMP echoes, one target after another
	// within a tick.
	ProbeICMP
)

// Config is the subset of Configuration the scheduler needs to
// (re)initialize its targets. The ambient configuration layer
// translates the on-disk/flag configuration into this shape.
type Config struct {
	ProbeIntervalMillis int64
	ProbeTimeoutMillis  int64
	ProbeType           ProbeType
	Targets             []target.Target
	Thresholds          eventlog.Thresholds
}

// OnSample is invoked synchronously every time a probe resolves to a
// Sample, in the order Samples are recorded for that target.
type OnSample func(targetID string, s sample.Sample)

// OnMetrics is invoked once per target on every metrics refresh.
type OnMetrics func(targetID string, m sample.Metrics)

// OnEvent is invoked when a metrics refresh's hysteresis check emits an
// Event, immediately after that target's OnMetrics call in the same
// refresh.
type OnEvent func(e eventlog.Event)

type fsmState int

const (
	stateIdle fsmState = iota
	stateConnecting
)

// targetRuntime is the scheduler-owned per-target state: its configured
// Target, its sample history, latest derived Metrics, hysteresis
// tracker, probe FSM state, and scheduling timestamps.
type targetRuntime struct {
	target               target.Target
	window               *ring.Buffer[sample.Sample]
	metrics              sample.Metrics
	tracker              eventlog.BadStateTracker
	state                fsmState
	handle               probe.Handle
	nextProbeMonoMillis  int64
	probeStartMonoMillis int64
}

// Scheduler is the main loop's cooperative core. It is not safe for
// concurrent use; callers that reach it from more than one goroutine
// must serialize every call (Tick, SyncTargets, GetTarget, GetSamples,
// TargetIDs, Free) under one lock.
type Scheduler struct {
	clock    netclock.Clock
	tcp      probe.TCPTransport
	icmp     probe.ICMPTransport
	eventLog *eventlog.EventLog
	engine   *stats.Engine

	cfg      Config
	runtimes map[string]*targetRuntime
	order    []string

	lastMetricsUpdateMonoMillis int64

	onSample  OnSample
	onMetrics OnMetrics
	onEvent   OnEvent
}

// New returns an empty Scheduler. icmp may be nil if ICMP is
// unavailable on this host; the scheduler falls back to TCP for any
// target configured with ProbeICMP in that case. eventLogger may be nil
// to disable event journaling (tests commonly do this).
func New(clock netclock.Clock, tcp probe.TCPTransport, icmp probe.ICMPTransport, eventLogger *eventlog.EventLog) *Scheduler {
	return &Scheduler{
		clock:    clock,
		tcp:      tcp,
		icmp:     icmp,
		eventLog: eventLogger,
		runtimes: make(map[string]*targetRuntime),
	}
}

// OnSample registers fn as the sample callback, replacing any previous
// registration.
func (s *Scheduler) OnSample(fn OnSample) { s.onSample = fn }

// OnMetrics registers fn as the metrics callback.
func (s *Scheduler) OnMetrics(fn OnMetrics) { s.onMetrics = fn }

// OnEvent registers fn as the event callback.
func (s *Scheduler) OnEvent(fn OnEvent) { s.onEvent = fn }

// Init is the first call on a fresh Scheduler; it is equivalent to
// SyncTargets with no prior state to release.
func (s *Scheduler) Init(cfg Config) error {
	return s.SyncTargets(cfg)
}

// SyncTargets destructively re-initializes the Scheduler from cfg:
// every in-flight probe handle is released, every per-target sample
// history is discarded, and fresh TargetRuntimes are created with
// next_probe_ms set to now so each fires on the next Tick. If cfg's
// targets fail validation, the Scheduler is left with zero targets.
func (s *Scheduler) SyncTargets(cfg Config) error {
	s.releaseAll()
	s.runtimes = make(map[string]*targetRuntime)
	s.order = nil

	if err := target.ValidateSet(cfg.Targets); err != nil {
		s.cfg = Config{}
		return fmt.Errorf("%w: %v", perr.ErrSyncFailed, err)
	}

	now := netclock.MonoMillis(s.clock)
	runtimes := make(map[string]*targetRuntime, len(cfg.Targets))
	order := make([]string, 0, len(cfg.Targets))

	for _, t := range cfg.Targets {
		if !t.Enabled {
			continue
		}
		runtimes[t.ID] = &targetRuntime{
			target:              t,
			window:              ring.New[sample.Sample](DefaultWindowSize),
			state:               stateIdle,
			nextProbeMonoMillis: now,
		}
		order = append(order, t.ID)
	}

	s.cfg = cfg
	s.runtimes = runtimes
	s.order = order
	s.engine = stats.NewEngine(DefaultWindowSize)
	s.lastMetricsUpdateMonoMillis = now
	return nil
}

// GetTarget returns the configured Target and its latest Metrics for
// id, or ErrUnknownTarget if no runtime exists for it.
func (s *Scheduler) GetTarget(id string) (target.Target, sample.Metrics, error) {
	rt, ok := s.runtimes[id]
	if !ok {
		return target.Target{}, sample.Metrics{}, fmt.Errorf("%w: %q", perr.ErrUnknownTarget, id)
	}
	return rt.target, rt.metrics, nil
}

// GetSamples returns the retained sample window for id, oldest first,
// or ErrUnknownTarget if no runtime exists for it.
func (s *Scheduler) GetSamples(id string) ([]sample.Sample, error) {
	rt, ok := s.runtimes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", perr.ErrUnknownTarget, id)
	}
	return rt.window.Slice(), nil
}

// TargetIDs returns the ids of every currently configured target, in
// sync order.
func (s *Scheduler) TargetIDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Free releases every in-flight handle and drops every TargetRuntime.
// Idempotent: calling Free twice, or on a Scheduler with no targets, is
// a no-op.
func (s *Scheduler) Free() {
	s.releaseAll()
	s.runtimes = make(map[string]*targetRuntime)
	s.order = nil
}

func (s *Scheduler) releaseAll() {
	for _, rt := range s.runtimes {
		if rt.state == stateConnecting && rt.handle != nil {
			s.tcp.Release(rt.handle)
			rt.handle = nil
		}
	}
}

// Tick advances every target's probe FSM by one step and, if the
// metrics cadence has elapsed, refreshes Metrics and runs hysteresis
// detection for all of them. It returns the number of milliseconds
// after which the caller should call Tick again to do useful work;
// never zero or negative.
func (s *Scheduler) Tick() int64 {
	now := netclock.MonoMillis(s.clock)

	nextWait := int64(metricsIntervalMillis)
	for _, id := range s.order {
		rt := s.runtimes[id]
		if wait := s.stepTarget(rt, now); wait > 0 && wait < nextWait {
			nextWait = wait
		}
	}

	if now-s.lastMetricsUpdateMonoMillis >= metricsIntervalMillis {
		s.refreshMetrics(now)
		s.lastMetricsUpdateMonoMillis = now
	}

	if nextWait <= 0 {
		return 1
	}
	return nextWait
}

func (s *Scheduler) stepTarget(rt *targetRuntime, now int64) int64 {
	switch rt.state {
	case stateIdle:
		if now < rt.nextProbeMonoMillis {
			return rt.nextProbeMonoMillis - now
		}
		return s.startProbe(rt, now)
	case stateConnecting:
		return s.pollProbe(rt, now)
	default:
		return s.cfg.ProbeIntervalMillis
	}
}

func (s *Scheduler) usesICMP() bool {
	return s.cfg.ProbeType == ProbeICMP && s.icmp != nil
}

func (s *Scheduler) startProbe(rt *targetRuntime, now int64) int64 {
	if s.usesICMP() {
		rtt, err := s.icmp.Ping(rt.target.Host, netclock.MillisDuration(s.cfg.ProbeTimeoutMillis))
		if err != nil {
			s.recordSample(rt, sample.Sample{TimestampWallMillis: netclock.WallMillis(s.clock)})
		} else {
			s.recordSample(rt, sample.Sample{
				Success:             true,
				RTTMillis:           float64(rtt.Microseconds()) / 1000.0,
				TimestampWallMillis: netclock.WallMillis(s.clock),
			})
		}
		rt.nextProbeMonoMillis = now + s.cfg.ProbeIntervalMillis
		return s.cfg.ProbeIntervalMillis
	}

	handle, err := s.tcp.Start(rt.target.Host, rt.target.Port)
	if err != nil {
		s.recordSample(rt, sample.Sample{TimestampWallMillis: netclock.WallMillis(s.clock)})
		rt.nextProbeMonoMillis = now + s.cfg.ProbeIntervalMillis
		return s.cfg.ProbeIntervalMillis
	}

	rt.handle = handle
	rt.probeStartMonoMillis = now
	rt.state = stateConnecting
	return s.cfg.ProbeTimeoutMillis
}

func (s *Scheduler) pollProbe(rt *targetRuntime, now int64) int64 {
	remaining := s.cfg.ProbeTimeoutMillis - (now - rt.probeStartMonoMillis)
	if remaining <= 0 {
		s.failConnecting(rt, now)
		return s.cfg.ProbeIntervalMillis
	}

	state, err := s.tcp.Poll(rt.handle)
	if err != nil {
		state = probe.PollError
	}

	switch state {
	case probe.PollPending:
		return remaining
	case probe.PollSuccess:
		rttMillis := float64(now - rt.probeStartMonoMillis)
		s.tcp.Release(rt.handle)
		rt.handle = nil
		s.recordSample(rt, sample.Sample{
			Success:             true,
			RTTMillis:           rttMillis,
			TimestampWallMillis: netclock.WallMillis(s.clock),
		})
		rt.state = stateIdle
		rt.nextProbeMonoMillis = now + s.cfg.ProbeIntervalMillis
		return s.cfg.ProbeIntervalMillis
	default:
		s.failConnecting(rt, now)
		return s.cfg.ProbeIntervalMillis
	}
}

func (s *Scheduler) failConnecting(rt *targetRuntime, now int64) {
	s.tcp.Release(rt.handle)
	rt.handle = nil
	s.recordSample(rt, sample.Sample{TimestampWallMillis: netclock.WallMillis(s.clock)})
	rt.state = stateIdle
	rt.nextProbeMonoMillis = now + s.cfg.ProbeIntervalMillis
}

func (s *Scheduler) recordSample(rt *targetRuntime, smp sample.Sample) {
	rt.window.Push(smp)
	if s.onSample != nil {
		s.onSample(rt.target.ID, smp)
	}
}

func (s *Scheduler) refreshMetrics(now int64) {
	wall := netclock.WallMillis(s.clock)
	for _, id := range s.order {
		rt := s.runtimes[id]
		m := s.engine.Compute(rt.window, now)
		rt.metrics = m

		if s.onMetrics != nil {
			s.onMetrics(id, m)
		}

		ev := rt.tracker.Check(m, s.cfg.Thresholds, now, wall, id)
		if ev == nil {
			continue
		}
		if s.eventLog != nil {
			s.eventLog.Record(*ev)
		}
		if s.onEvent != nil {
			s.onEvent(*ev)
		}
	}
}
