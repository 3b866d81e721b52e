//go:build linux

package probe

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// tcpHandle wraps a raw non-blocking socket. fd is owned by this handle
// until Release closes it.
type tcpHandle struct {
	fd int
}

// LinuxTCPTransport drives TCP connects with raw non-blocking sockets
// and epoll-free poll(2) calls, matching the scheduler's own
// cooperative, single-threaded poll loop rather than spinning up a
// goroutine per probe.
type LinuxTCPTransport struct{}

// NewTCPTransport returns the Linux raw-socket TCP transport.
func NewTCPTransport() *LinuxTCPTransport {
	return &LinuxTCPTransport{}
}

// Start resolves host's first IPv4 address and issues a non-blocking
// connect. EINPROGRESS is the expected outcome and is not an error; any
// other failure to create the socket or issue the connect is returned
// synchronously.
func (t *LinuxTCPTransport) Start(host string, port uint16) (Handle, error) {
	addr, err := firstIPv4(host)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("probe: socket: %w", err)
	}

	sa := &unix.SockaddrInet4{Port: int(port)}
	copy(sa.Addr[:], addr.To4())

	err = unix.Connect(fd, sa)
	if err != nil && err != unix.EINPROGRESS {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("probe: connect: %w", err)
	}

	return &tcpHandle{fd: fd}, nil
}

// Poll checks h's socket for writability without blocking.
func (t *LinuxTCPTransport) Poll(h Handle) (PollState, error) {
	th, ok := h.(*tcpHandle)
	if !ok || th == nil {
		return PollError, fmt.Errorf("probe: invalid handle")
	}

	fds := []unix.PollFd{{Fd: int32(th.fd), Events: unix.POLLOUT}}
	n, err := unix.Poll(fds, 0)
	if err != nil {
		return PollError, fmt.Errorf("probe: poll: %w", err)
	}
	if n == 0 {
		return PollPending, nil
	}

	revents := fds[0].Revents
	if revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		return PollError, nil
	}
	if revents&unix.POLLOUT == 0 {
		return PollPending, nil
	}

	errno, err := unix.GetsockoptInt(th.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return PollError, fmt.Errorf("probe: getsockopt: %w", err)
	}
	if errno != 0 {
		return PollError, nil
	}
	return PollSuccess, nil
}

// Release closes h's file descriptor. Safe to call on an already-closed
// handle.
func (t *LinuxTCPTransport) Release(h Handle) {
	th, ok := h.(*tcpHandle)
	if !ok || th == nil || th.fd < 0 {
		return
	}
	_ = unix.Close(th.fd)
	th.fd = -1
}

func firstIPv4(host string) (net.IP, error) {
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("probe: resolve %q: %w", host, err)
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, fmt.Errorf("probe: no IPv4 address for %q", host)
}
