//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based poller.

package reactor

import (
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/momentics/hioload-relay/api"
	"golang.org/x/sys/unix"
)

// wakeToken tags the internal eventfd; it is never reported to callers.
const wakeToken = ^uint64(0)

// EpollPoller is an edge-triggered api.Poller.
type EpollPoller struct {
	epfd   int
	wakefd int
	raw    []unix.EpollEvent

	// fds maps registered descriptors to their tokens. Owned by the
	// goroutine that drives Wait.
	fds   map[int]api.ConnectionID
	count atomic.Int64

	closed atomic.Bool
}

var _ api.Poller = (*EpollPoller)(nil)

// New constructs an epoll instance with its wake-up eventfd registered.
func New() (*EpollPoller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN}
	setToken(&ev, wakeToken)
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add eventfd: %w", err)
	}
	return &EpollPoller{
		epfd:   epfd,
		wakefd: wakefd,
		fds:    make(map[int]api.ConnectionID),
	}, nil
}

// Register adds fd to the epoll set under token.
func (p *EpollPoller) Register(fd int, token api.ConnectionID, interest api.Interest) error {
	if _, ok := p.fds[fd]; ok {
		return fmt.Errorf("register fd %d: %w", fd, api.ErrAlreadyExists)
	}
	ev := epollEvent(token, interest)
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	p.fds[fd] = token
	p.count.Add(1)
	return nil
}

// Modify replaces the token and interest set of a registered fd.
func (p *EpollPoller) Modify(fd int, token api.ConnectionID, interest api.Interest) error {
	if _, ok := p.fds[fd]; !ok {
		return fmt.Errorf("modify fd %d: %w", fd, api.ErrNotFound)
	}
	ev := epollEvent(token, interest)
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	p.fds[fd] = token
	return nil
}

// Deregister removes fd from the epoll set.
func (p *EpollPoller) Deregister(fd int) error {
	if _, ok := p.fds[fd]; !ok {
		return fmt.Errorf("deregister fd %d: %w", fd, api.ErrNotFound)
	}
	delete(p.fds, fd)
	p.count.Add(-1)
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// Wait blocks for readiness and translates raw epoll events.
// A wake-up consumes the eventfd counter and yields no event.
func (p *EpollPoller) Wait(events []api.Event, timeout time.Duration) (int, error) {
	if p.closed.Load() {
		return 0, api.ErrClosed
	}
	if len(events) == 0 {
		return 0, fmt.Errorf("epoll wait: %w: empty event buffer", api.ErrInvalidArgument)
	}
	if cap(p.raw) < len(events) {
		p.raw = make([]unix.EpollEvent, len(events))
	}
	raw := p.raw[:len(events)]

	n, err := unix.EpollWait(p.epfd, raw, timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return 0, nil // interrupted by signal, normal
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}

	out := 0
	for i := 0; i < n; i++ {
		ev := &raw[i]
		tok := getToken(ev)
		if tok == wakeToken {
			p.drainWake()
			continue
		}
		flags := ev.Events
		events[out] = api.Event{
			Token:    api.ConnectionID(tok),
			Readable: flags&(unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			Writable: flags&unix.EPOLLOUT != 0,
			Error:    flags&(unix.EPOLLHUP|unix.EPOLLERR) != 0,
		}
		out++
	}
	return out, nil
}

// Wake interrupts a blocked Wait. Safe for concurrent use.
func (p *EpollPoller) Wake() error {
	if p.closed.Load() {
		return api.ErrClosed
	}
	var one [8]byte
	*(*uint64)(unsafe.Pointer(&one[0])) = 1
	if _, err := unix.Write(p.wakefd, one[:]); err != nil && err != unix.EAGAIN {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

// Registered reports the live registration count. Safe for concurrent use.
func (p *EpollPoller) Registered() int {
	return int(p.count.Load())
}

// Close releases the eventfd and the epoll descriptor.
func (p *EpollPoller) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	werr := unix.Close(p.wakefd)
	if err := unix.Close(p.epfd); err != nil {
		return fmt.Errorf("close epoll: %w", err)
	}
	if werr != nil {
		return fmt.Errorf("close eventfd: %w", werr)
	}
	return nil
}

func (p *EpollPoller) drainWake() {
	var buf [8]byte
	for {
		if _, err := unix.Read(p.wakefd, buf[:]); err != nil {
			return
		}
	}
}

func epollEvent(token api.ConnectionID, interest api.Interest) unix.EpollEvent {
	ev := unix.EpollEvent{Events: unix.EPOLLET}
	if interest&api.InterestReadable != 0 {
		ev.Events |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if interest&api.InterestWritable != 0 {
		ev.Events |= unix.EPOLLOUT
	}
	setToken(&ev, uint64(token))
	return ev
}

// The Fd and Pad fields together form the 8-byte epoll_data union on every
// Linux port, so the token is stored there instead of the descriptor. A
// stale event for a closed connection then carries its own token and can
// never be confused with a newer connection reusing the descriptor number.
func setToken(ev *unix.EpollEvent, token uint64) {
	*(*uint64)(unsafe.Pointer(&ev.Fd)) = token
}

func getToken(ev *unix.EpollEvent) uint64 {
	return *(*uint64)(unsafe.Pointer(&ev.Fd))
}

func timeoutMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	return int(ms)
}
