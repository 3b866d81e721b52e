// Package perr defines the sentinel error values returned by the NetPulse
// core. Callers use errors.Is against these values; none of them carry
// partial mutation of target state (see spec §7).
package perr

import "errors"

var (
	// ErrInvalidTarget is returned when a Target fails validation: empty
	// host, out-of-range port, or a label that slugifies to the empty
	// string.
	ErrInvalidTarget = errors.New("netpulse: invalid target")

	// ErrDuplicateTarget is returned when two targets in the same
	// configuration slugify to the same id.
	ErrDuplicateTarget = errors.New("netpulse: duplicate target id")

	// ErrTooManyTargets is returned when a configuration names more than
	// MaxTargets targets.
	ErrTooManyTargets = errors.New("netpulse: too many targets")

	// ErrSyncFailed is returned by Scheduler.SyncTargets when the new
	// target set fails validation (too many targets or a duplicate id).
	// The scheduler is left with zero targets and the caller is expected
	// to retry.
	ErrSyncFailed = errors.New("netpulse: target sync failed")

	// ErrUnknownTarget is returned by Scheduler.GetTarget for an id with
	// no matching runtime.
	ErrUnknownTarget = errors.New("netpulse: unknown target")

	// ErrICMPUnavailable is returned by the ICMP transport constructor
	// when the process cannot open a raw socket (missing privilege or
	// unsupported OS). It is not fatal: callers fall back to TCP.
	ErrICMPUnavailable = errors.New("netpulse: icmp transport unavailable")
)
