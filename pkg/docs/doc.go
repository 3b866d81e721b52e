// Package docs documents NetPulse, a long-running network-quality
// monitor that probes a small set of network targets over TCP or ICMP,
// aggregates round-trip-time samples into per-target quality metrics,
// detects sustained bad conditions, and streams live telemetry over a
// local HTTP + WebSocket endpoint.
//
// # Key Features
//
//   - Target probing: non-blocking TCP connect probes or ICMP echoes
//   - Sliding-window metrics: current/max RTT, loss percentage, jitter, p50/p95
//   - Bad-condition detection: hysteresis-based, avoids flapping on noisy samples
//   - Live telemetry: snapshot + delta messages over WebSocket
//   - Event journal: append-only JSON lines, one per emitted bad-condition event
//
// # Quick Start
//
//	// Start the monitor with the default configuration
//	netpulse
//
//	// Probe with ICMP echoes instead of TCP
//	netpulse --probe-type icmp
//
//	// Show build information
//	netpulse version
//
// # Architecture
//
// NetPulse is organized into several core components:
//
//   - CLI Commands (cmd/): Cobra-based command interface
//   - Scheduler (internal/scheduler/): cooperative per-target probe FSM
//   - Probe transports (internal/probe/): TCP connect and ICMP echo
//   - Stats engine (internal/stats/): sliding-window metrics computation
//   - Event log (internal/eventlog/): hysteresis detector and journal writer
//   - Telemetry hub (internal/websocket/): broadcasts samples/metrics/events
//   - HTTP server (internal/server/): /ws and /healthz endpoints
//   - Configuration (internal/config/): Viper-based configuration management
//
// # Configuration
//
// NetPulse supports configuration through multiple sources:
//
//   - Configuration file (.netpulse.yml)
//   - Environment variables (NETPULSE_*)
//   - Command-line flags
//
// Example configuration:
//
//	probe_interval_ms: 500
//	probe_timeout_ms: 1500
//	probe_type: tcp
//	http_port: 7331
//	thresholds:
//	  loss_pct: 5.0
//	  p95_ms: 100.0
//	  jitter_ms: 20.0
//	targets:
//	  - host: 1.1.1.1
//	    port: 53
//	    label: Cloudflare DNS
//
// # Testing
//
// The package includes comprehensive test coverage:
//
//   - Unit tests for individual components
//   - Property-based tests for ring buffer, stats, and slug invariants
//   - Integration tests for the scheduler's probe FSM and the HTTP/WebSocket surface
//
// For more information, see the individual package documentation.
package docs
