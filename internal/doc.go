// Package internal contains the core implementation packages for
// NetPulse.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the netpulse CLI tool.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - ring: generic sliding-window ring buffer
//   - sample: core Sample/Metrics value types shared across packages
//   - stats: sliding-window metrics computation (RTT, loss, jitter, percentiles)
//   - target: Target validation and id slugification
//   - probe: TCP connect and ICMP echo probe transports
//   - scheduler: cooperative per-target probe FSM and metrics cadence
//   - eventlog: bad-condition hysteresis detector and journal writer
//   - netclock: clockwork-backed monotonic/wall time access
//   - websocket: telemetry hub broadcasting to connected observers
//   - server: HTTP server exposing /ws and /healthz
//   - config: Viper-based configuration loading and validation
//   - logging: structured logging used by every component
//   - perr: sentinel error values shared across packages
//
// # Design Principles
//
// All internal packages follow these design principles:
//
//   - Deterministic time: every component that schedules or measures takes a clock, never calls time.Now directly
//   - Copy-on-cross-goroutine: callbacks crossing from the scheduler to the HTTP/WebSocket layer always receive value types
//   - Bounded resources: MAX_TARGETS and fixed-capacity ring buffers keep memory and FD usage flat over the monitor's lifetime
//   - Testability with comprehensive unit and property-based test coverage
//
// # Inter-Package Communication
//
// Packages communicate through well-defined interfaces:
//
//   - Scheduler drives probe transports and reports samples/metrics/events through callbacks
//   - The websocket Hub consumes those callbacks; the scheduler records events on its eventlog (ring buffer and journal) directly
//   - Server coordinates the Hub, the scheduler's read-only accessors, and the HTTP surface
//   - Config translates on-disk/flag/env configuration into the Scheduler's Config and the Target set
//
// For detailed documentation, see the individual package documentation.
package internal
