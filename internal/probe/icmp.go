package probe

import (
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/conneroisu/netpulse/internal/perr"
)

// ICMPProbe sends one privileged ICMP echo per Ping call via pro-bing,
// which owns the raw socket, checksum, and identifier/sequence framing;
// we only supply the per-call host and timeout and read back the
// round-trip time.
type ICMPProbe struct{}

// NewICMPTransport attempts to open a raw ICMP socket against loopback
// as a preflight check. If the host OS denies the operation (commonly:
// missing CAP_NET_RAW, or no ping_group_range for unprivileged mode),
// it returns ErrICMPUnavailable wrapping the OS's reason; callers fall
// back to TCP in that case rather than treating it as fatal.
func NewICMPTransport() (*ICMPProbe, error) {
	p := &ICMPProbe{}
	if err := p.preflight(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *ICMPProbe) preflight() error {
	pinger, err := probing.NewPinger("127.0.0.1")
	if err != nil {
		return fmt.Errorf("%w: %v", perr.ErrICMPUnavailable, err)
	}
	pinger.SetPrivileged(true)
	pinger.Count = 1
	pinger.Timeout = 200 * time.Millisecond

	if err := pinger.Run(); err != nil {
		return fmt.Errorf("%w: %v", perr.ErrICMPUnavailable, err)
	}
	return nil
}

// Ping blocks for at most timeout waiting for one echo reply from host.
func (p *ICMPProbe) Ping(host string, timeout time.Duration) (time.Duration, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return 0, fmt.Errorf("probe: icmp resolve %q: %w", host, err)
	}
	pinger.SetPrivileged(true)
	pinger.Count = 1
	pinger.Timeout = timeout

	if err := pinger.Run(); err != nil {
		return 0, fmt.Errorf("probe: icmp run against %q: %w", host, err)
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, fmt.Errorf("probe: icmp no reply from %q within %s", host, timeout)
	}
	return stats.AvgRtt, nil
}

// Close is a no-op; pro-bing's Pinger owns a socket only for the
// duration of Run, so ICMPProbe holds no long-lived resource to
// release. Present to satisfy ICMPTransport.
func (p *ICMPProbe) Close() error {
	return nil
}
