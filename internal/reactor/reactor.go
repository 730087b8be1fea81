// Package reactor wraps a single Linux epoll instance behind the
// level-triggered add/modify/remove vocabulary both servers use to
// drive their per-connection state machines (SPEC_FULL.md §4.4). It
// deliberately does not use Go's net package or runtime netpoller:
// each connection's fd is registered directly with epoll so a single
// goroutine can own the whole readiness loop instead of fighting Go's
// own poller for the same fd.
package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Reactor is a thin, stateful wrapper around one epoll fd. It is not
// safe for concurrent use — callers run it from a single goroutine,
// exactly like the event loop it drives.
type Reactor struct {
	epfd int
	// interest records the last registered event mask per fd. Remove
	// consults it so that removing an fd that was never added is a
	// no-op. SetInterest always takes the full mask from the caller
	// (epoll_ctl MOD replaces the whole mask, it doesn't OR into it).
	interest map[int]uint32
	events   []unix.EpollEvent
}

// New creates a Reactor with room for maxEvents readiness events per
// Wait call.
func New(maxEvents int) (*Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	return &Reactor{
		epfd:     epfd,
		interest: make(map[int]uint32),
		events:   make([]unix.EpollEvent, maxEvents),
	}, nil
}

// Close closes the underlying epoll fd. It does not close any of the
// registered connection fds — callers own those.
func (r *Reactor) Close() error {
	return unix.Close(r.epfd)
}

// Event is one readiness notification: an fd paired with the opaque
// userData it was registered with, and whether it is ready for
// reading and/or writing.
type Event struct {
	UserData int32
	Readable bool
	Writable bool
	Error    bool
	Hangup   bool
}

// Add registers fd for the given initial interest (readable and/or
// writable), tagging it with userData (typically an index or key into
// the caller's connection table, since epoll events don't carry Go
// pointers safely across the cgo-free unix.EpollEvent struct).
func (r *Reactor) Add(fd int, userData int32, readable, writable bool) error {
	mask := maskFor(readable, writable)
	if err := r.ctl(unix.EPOLL_CTL_ADD, fd, userData, mask); err != nil {
		return err
	}
	r.interest[fd] = mask
	return nil
}

// SetInterest replaces fd's registered interest in one call (e.g. when
// a write completes and the connection goes back to read-only).
func (r *Reactor) SetInterest(fd int, userData int32, readable, writable bool) error {
	mask := maskFor(readable, writable)
	if err := r.ctl(unix.EPOLL_CTL_MOD, fd, userData, mask); err != nil {
		return err
	}
	r.interest[fd] = mask
	return nil
}

// Remove deregisters fd. Safe to call even if fd was never added.
func (r *Reactor) Remove(fd int) {
	if _, ok := r.interest[fd]; !ok {
		return
	}
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	delete(r.interest, fd)
}

func maskFor(readable, writable bool) uint32 {
	var mask uint32
	if readable {
		mask |= unix.EPOLLIN
	}
	if writable {
		mask |= unix.EPOLLOUT
	}
	return mask
}

func (r *Reactor) ctl(op int, fd int, userData int32, mask uint32) error {
	ev := unix.EpollEvent{Events: mask, Fd: userData}
	if err := unix.EpollCtl(r.epfd, op, fd, &ev); err != nil {
		return fmt.Errorf("reactor: epoll_ctl(op=%d, fd=%d): %w", op, fd, err)
	}
	return nil
}

// Wait blocks until at least one registered fd is ready, or timeoutMs
// elapses (-1 blocks indefinitely), and returns the ready fds' events.
// UserData is whatever tag was passed to Add/SetInterest for that fd —
// every caller in this module registers the fd itself as its own
// userData, so Event.UserData can be used directly as a real fd.
func (r *Reactor) Wait(timeoutMs int) ([]Event, error) {
	n, err := unix.EpollWait(r.epfd, r.events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("reactor: epoll_wait: %w", err)
	}
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		ev := r.events[i]
		out = append(out, Event{
			UserData: ev.Fd,
			Readable: ev.Events&unix.EPOLLIN != 0,
			Writable: ev.Events&unix.EPOLLOUT != 0,
			Error:    ev.Events&unix.EPOLLERR != 0,
			Hangup:   ev.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0,
		})
	}
	return out, nil
}
