// Package netutil wraps the raw, non-blocking socket syscalls shared
// by both reactors (internal/reactor drives readiness; this package
// owns turning that readiness into accept/connect/close on real file
// descriptors). Everything here is Linux-only: epoll pins the whole
// reactor design to Linux per SPEC_FULL.md §4.4, so there is no
// portability layer to maintain above it.
package netutil

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Listen creates a non-blocking, listening TCP socket bound to
// 0.0.0.0:port with SO_REUSEADDR set (same rationale as the C
// source's setupServer: survive a restart while the previous socket is
// still in TIME_WAIT).
func Listen(port int, backlog int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, fmt.Errorf("netutil: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netutil: setsockopt SO_REUSEADDR: %w", err)
	}
	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netutil: bind :%d: %w", port, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netutil: listen :%d: %w", port, err)
	}
	return fd, nil
}

// Accept accepts one pending connection on listenFD, returning a
// non-blocking connection fd. Returns unix.EAGAIN itself, unwrapped, as
// the error when nothing is pending (the caller should treat that as "try again
// next readiness event", not a failure).
func Accept(listenFD int) (int, error) {
	connFD, _, err := unix.Accept4(listenFD, unix.SOCK_NONBLOCK)
	if err != nil {
		return -1, err
	}
	return connFD, nil
}

// DialLoopback starts a non-blocking TCP connect to 127.0.0.1:port and
// returns immediately with the new fd; the connect itself completes
// asynchronously and its outcome is observed later via ConnectError
// once the fd reports writable.
func DialLoopback(port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, fmt.Errorf("netutil: socket: %w", err)
	}
	addr := &unix.SockaddrInet4{Port: port, Addr: [4]byte{127, 0, 0, 1}}
	err = unix.Connect(fd, addr)
	if err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return -1, fmt.Errorf("netutil: connect 127.0.0.1:%d: %w", port, err)
	}
	return fd, nil
}

// ConnectError reports whether a non-blocking connect that just became
// writable actually succeeded, via SO_ERROR.
func ConnectError(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno != 0 {
		return unix.Errno(errno)
	}
	return nil
}

// Close closes fd, ignoring EBADF (already closed) so shutdown paths
// that may double-close stay simple.
func Close(fd int) {
	if fd < 0 {
		return
	}
	_ = unix.Close(fd)
}

// IsTemporary reports whether err is a transient condition (EAGAIN on
// a non-blocking fd) that should leave the fd registered for the next
// readiness event, as opposed to a real failure.
func IsTemporary(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}
