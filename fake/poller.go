// File: fake/poller.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Scripted api.Poller: tests push readiness events, the dispatch loop
// receives them from Wait in push order.

package fake

import (
	"sync"
	"time"

	"github.com/momentics/hioload-relay/api"
)

// Registration is one live registration seen by the Poller.
type Registration struct {
	Fd       int
	Token    api.ConnectionID
	Interest api.Interest
}

// Poller is a fake implementation of api.Poller for testing.
type Poller struct {
	mu      sync.Mutex
	regs    map[int]Registration
	pending []api.Event
	woken   bool
	closed  bool
	notify  chan struct{}

	waitErr error
}

var _ api.Poller = (*Poller)(nil)

// NewPoller creates an empty fake poller.
func NewPoller() *Poller {
	return &Poller{
		regs:   make(map[int]Registration),
		notify: make(chan struct{}, 1),
	}
}

func (p *Poller) Register(fd int, token api.ConnectionID, interest api.Interest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return api.ErrClosed
	}
	if _, ok := p.regs[fd]; ok {
		return api.ErrAlreadyExists
	}
	p.regs[fd] = Registration{Fd: fd, Token: token, Interest: interest}
	return nil
}

func (p *Poller) Modify(fd int, token api.ConnectionID, interest api.Interest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.regs[fd]; !ok {
		return api.ErrNotFound
	}
	p.regs[fd] = Registration{Fd: fd, Token: token, Interest: interest}
	return nil
}

func (p *Poller) Deregister(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.regs[fd]; !ok {
		return api.ErrNotFound
	}
	delete(p.regs, fd)
	return nil
}

// Wait returns pushed events. With nothing pending it honours the timeout
// and returns early on Push or Wake.
func (p *Poller) Wait(events []api.Event, timeout time.Duration) (int, error) {
	if len(events) == 0 {
		return 0, api.ErrInvalidArgument
	}
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return 0, api.ErrClosed
		}
		if p.waitErr != nil {
			err := p.waitErr
			p.waitErr = nil
			p.mu.Unlock()
			return 0, err
		}
		if len(p.pending) > 0 {
			n := copy(events, p.pending)
			p.pending = p.pending[n:]
			p.mu.Unlock()
			return n, nil
		}
		if p.woken {
			p.woken = false
			p.mu.Unlock()
			return 0, nil
		}
		p.mu.Unlock()

		if timeout == 0 {
			return 0, nil
		}
		select {
		case <-p.notify:
		case <-deadline:
			return 0, nil
		}
	}
}

func (p *Poller) Wake() error {
	p.mu.Lock()
	p.woken = true
	p.mu.Unlock()
	p.signal()
	return nil
}

func (p *Poller) Registered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.regs)
}

func (p *Poller) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.signal()
	return nil
}

// Push queues events for the next Wait.
func (p *Poller) Push(events ...api.Event) {
	p.mu.Lock()
	p.pending = append(p.pending, events...)
	p.mu.Unlock()
	p.signal()
}

// FailWait makes the next Wait return err.
func (p *Poller) FailWait(err error) {
	p.mu.Lock()
	p.waitErr = err
	p.mu.Unlock()
	p.signal()
}

// Lookup returns the registration for fd.
func (p *Poller) Lookup(fd int) (Registration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.regs[fd]
	return r, ok
}

// Tokens returns the tokens of all live registrations.
func (p *Poller) Tokens() []api.ConnectionID {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]api.ConnectionID, 0, len(p.regs))
	for _, r := range p.regs {
		out = append(out, r.Token)
	}
	return out
}

// Closed reports whether Close was called.
func (p *Poller) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Poller) signal() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}
